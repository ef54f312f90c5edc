// Package capture grabs a single still frame from a monitor or a window and
// returns it as a BGRA bitmap.
//
// The package owns the platform-neutral pipeline: resolving a handle into a
// capture item, creating a one-slot frame pool and session, and turning the
// platform's push-style frame notification into one blocking result. Platform
// backends (see the wgc and grab subpackages) implement Platform.
package capture

import (
	"errors"
	"fmt"
)

// WindowHandle is a native window handle (HWND on Windows).
type WindowHandle uintptr

// MonitorHandle is a native monitor handle (HMONITOR on Windows).
type MonitorHandle uintptr

// DefaultMonitor asks CaptureMonitor to pick the monitor nearest to the null
// window, which is the primary monitor on a single-display system.
const DefaultMonitor MonitorHandle = 0

// Size is a pixel extent as reported by the platform.
type Size struct {
	Width  int32
	Height int32
}

// Empty reports whether either dimension is not positive.
func (s Size) Empty() bool {
	return s.Width <= 0 || s.Height <= 0
}

func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// TargetKind says what a Target was resolved from.
type TargetKind int

const (
	TargetMonitor TargetKind = iota
	TargetWindow
)

func (k TargetKind) String() string {
	switch k {
	case TargetMonitor:
		return "monitor"
	case TargetWindow:
		return "window"
	default:
		return fmt.Sprintf("TargetKind(%d)", int(k))
	}
}

// Error kinds. Every failure returned by Capturer wraps exactly one of these,
// together with the underlying platform error when there is one.
var (
	// ErrDeviceCreation means the shared rendering device could not be created.
	ErrDeviceCreation = errors.New("capture device unavailable")

	// ErrTargetResolution means the window or monitor handle could not be
	// turned into a capture item. No session was started.
	ErrTargetResolution = errors.New("capture target could not be resolved")

	// ErrCaptureStart means the item was resolved but the frame pool or
	// session could not be built or started.
	ErrCaptureStart = errors.New("capture session could not be started")

	// ErrFrameConversion means a frame arrived but could not be turned into a
	// bitmap. The session is already stopped.
	ErrFrameConversion = errors.New("captured frame could not be converted")

	// ErrFrameTimeout means no frame arrived before the deadline.
	ErrFrameTimeout = errors.New("no frame delivered before deadline")

	// ErrNotSupported is returned when screen capture is not supported on the platform.
	ErrNotSupported = errors.New("screen capture not supported on this platform")
)
