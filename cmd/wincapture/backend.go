package main

import (
	"errors"
	"fmt"

	"github.com/breeze-rmm/wincapture/internal/capture"
	"github.com/breeze-rmm/wincapture/internal/capture/grab"
	"github.com/breeze-rmm/wincapture/internal/capture/wgc"
	"github.com/breeze-rmm/wincapture/internal/config"
)

// newWGC is swapped out in tests.
var newWGC = wgc.New

// selectPlatform returns the capture backend for name. "auto" prefers
// Windows.Graphics.Capture and falls back to screen grabs where it is not
// available.
func selectPlatform(name string) (capture.Platform, error) {
	switch name {
	case config.BackendWGC:
		return newWGC()
	case config.BackendScreenshot:
		return grab.New(), nil
	case config.BackendAuto, "":
		p, err := newWGC()
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, capture.ErrNotSupported) {
			log.Warn("Windows.Graphics.Capture unavailable, falling back to screen grabs", "error", err)
		} else {
			log.Debug("Windows.Graphics.Capture not supported, using screen grabs")
		}
		return grab.New(), nil
	default:
		return nil, fmt.Errorf("unknown backend %q", name)
	}
}
