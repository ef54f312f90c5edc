package config

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Backend names accepted by the backend setting.
const (
	BackendAuto       = "auto"
	BackendWGC        = "wgc"
	BackendScreenshot = "screenshot"
)

type Config struct {
	Backend             string `mapstructure:"backend" yaml:"backend"`
	FrameTimeoutSeconds int    `mapstructure:"frame_timeout_seconds" yaml:"frame_timeout_seconds"`
	BorderRequired      bool   `mapstructure:"border_required" yaml:"border_required"`
	OutputFormat        string `mapstructure:"output_format" yaml:"output_format"`
	JPEGQuality         int    `mapstructure:"jpeg_quality" yaml:"jpeg_quality"`
	LogLevel            string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat           string `mapstructure:"log_format" yaml:"log_format"`
	LogFile             string `mapstructure:"log_file" yaml:"log_file,omitempty"`
	LogMaxSizeMB        int    `mapstructure:"log_max_size_mb" yaml:"log_max_size_mb"`
	LogMaxBackups       int    `mapstructure:"log_max_backups" yaml:"log_max_backups"`
}

func Default() *Config {
	return &Config{
		Backend:             BackendAuto,
		FrameTimeoutSeconds: 10,
		BorderRequired:      false,
		OutputFormat:        "png",
		JPEGQuality:         90,
		LogLevel:            "warn",
		LogFormat:           "text",
		LogMaxSizeMB:        10,
		LogMaxBackups:       3,
	}
}

// FrameTimeout returns how long a capture waits for its first frame.
func (c *Config) FrameTimeout() time.Duration {
	return time.Duration(c.FrameTimeoutSeconds) * time.Second
}

// Load reads cfgFile (or wincapture.yaml from the config search path) on top
// of the defaults. A missing config file is not an error.
func Load(cfgFile string) (*Config, error) {
	cfg := Default()
	v := viper.New()

	setDefaults(v, cfg)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("wincapture")
		v.SetConfigType("yaml")
		v.AddConfigPath(configDir())
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("WINCAPTURE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override keys that are
// absent from the config file.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("backend", cfg.Backend)
	v.SetDefault("frame_timeout_seconds", cfg.FrameTimeoutSeconds)
	v.SetDefault("border_required", cfg.BorderRequired)
	v.SetDefault("output_format", cfg.OutputFormat)
	v.SetDefault("jpeg_quality", cfg.JPEGQuality)
	v.SetDefault("log_level", cfg.LogLevel)
	v.SetDefault("log_format", cfg.LogFormat)
	v.SetDefault("log_file", cfg.LogFile)
	v.SetDefault("log_max_size_mb", cfg.LogMaxSizeMB)
	v.SetDefault("log_max_backups", cfg.LogMaxBackups)
}

func configDir() string {
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("ProgramData"), "wincapture")
	case "darwin":
		return "/Library/Application Support/wincapture"
	default:
		return "/etc/wincapture"
	}
}
