package config

import (
	"fmt"
	"log/slog"
	"strings"
)

var validBackends = map[string]bool{
	BackendAuto:       true,
	BackendWGC:        true,
	BackendScreenshot: true,
}

var validOutputFormats = map[string]bool{
	"png":  true,
	"jpeg": true,
	"jpg":  true,
}

var validLogLevels = map[string]bool{
	"debug":   true,
	"info":    true,
	"warn":    true,
	"warning": true,
	"error":   true,
}

// Validate checks the config for invalid values and returns all errors found.
// Values that would hang or break a capture are clamped to safe defaults;
// unknown names are reset to their defaults.
func (c *Config) Validate() []error {
	var errs []error
	def := Default()

	c.Backend = strings.ToLower(strings.TrimSpace(c.Backend))
	if c.Backend == "" {
		c.Backend = def.Backend
	} else if !validBackends[c.Backend] {
		errs = append(errs, fmt.Errorf("backend %q is not valid (use auto, wgc or screenshot), using %q", c.Backend, def.Backend))
		c.Backend = def.Backend
	}

	// A capture with no deadline can hang forever on an occluded window.
	if c.FrameTimeoutSeconds < 1 {
		errs = append(errs, fmt.Errorf("frame_timeout_seconds %d is below minimum 1, clamping", c.FrameTimeoutSeconds))
		c.FrameTimeoutSeconds = 1
	} else if c.FrameTimeoutSeconds > 300 {
		errs = append(errs, fmt.Errorf("frame_timeout_seconds %d exceeds maximum 300, clamping", c.FrameTimeoutSeconds))
		c.FrameTimeoutSeconds = 300
	}

	c.OutputFormat = strings.ToLower(strings.TrimSpace(c.OutputFormat))
	if c.OutputFormat == "" {
		c.OutputFormat = def.OutputFormat
	} else if !validOutputFormats[c.OutputFormat] {
		errs = append(errs, fmt.Errorf("output_format %q is not valid (use png or jpeg), using %q", c.OutputFormat, def.OutputFormat))
		c.OutputFormat = def.OutputFormat
	}

	if c.JPEGQuality < 1 {
		errs = append(errs, fmt.Errorf("jpeg_quality %d is below minimum 1, clamping", c.JPEGQuality))
		c.JPEGQuality = 1
	} else if c.JPEGQuality > 100 {
		errs = append(errs, fmt.Errorf("jpeg_quality %d exceeds maximum 100, clamping", c.JPEGQuality))
		c.JPEGQuality = 100
	}

	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	} else if !validLogLevels[c.LogLevel] {
		errs = append(errs, fmt.Errorf("log_level %q is not valid (use debug, info, warn, error), using %q", c.LogLevel, def.LogLevel))
		c.LogLevel = def.LogLevel
	}

	c.LogFormat = strings.ToLower(strings.TrimSpace(c.LogFormat))
	if c.LogFormat == "" {
		c.LogFormat = def.LogFormat
	} else if c.LogFormat != "text" && c.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("log_format %q is not valid (use text or json), using %q", c.LogFormat, def.LogFormat))
		c.LogFormat = def.LogFormat
	}

	if c.LogMaxSizeMB < 1 {
		c.LogMaxSizeMB = def.LogMaxSizeMB
	}
	if c.LogMaxBackups < 1 {
		c.LogMaxBackups = def.LogMaxBackups
	}

	for _, err := range errs {
		slog.Warn("config validation", "error", err)
	}

	return errs
}
