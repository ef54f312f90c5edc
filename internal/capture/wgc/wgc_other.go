//go:build !windows

package wgc

import (
	"github.com/breeze-rmm/wincapture/internal/capture"
)

// New reports capture.ErrNotSupported off Windows.
func New() (capture.Platform, error) {
	return nil, capture.ErrNotSupported
}
