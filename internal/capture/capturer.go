package capture

import (
	"context"
	"fmt"
	"time"

	"github.com/breeze-rmm/wincapture/internal/logging"
)

var log = logging.L("capture")

// DefaultFrameTimeout bounds how long a capture waits for its first frame
// when Options.FrameTimeout is not set.
const DefaultFrameTimeout = 10 * time.Second

// Options tunes a Capturer.
type Options struct {
	// FrameTimeout bounds the wait for the first frame. Zero means
	// DefaultFrameTimeout.
	FrameTimeout time.Duration

	// BorderRequired keeps the platform's yellow capture border on screen.
	BorderRequired bool
}

// Capturer is the public entry point: one bitmap per CaptureMonitor or
// CaptureWindow call. A Capturer is safe for concurrent use; every call
// builds its own frame pool, session and bridge and only the rendering
// device is shared.
type Capturer struct {
	platform Platform
	devices  *DeviceProvider
	resolver *Resolver
	opts     Options
}

// New returns a Capturer backed by p. Create one per process so every
// capture shares the same rendering device.
func New(p Platform, opts Options) *Capturer {
	if opts.FrameTimeout <= 0 {
		opts.FrameTimeout = DefaultFrameTimeout
	}
	return &Capturer{
		platform: p,
		devices:  NewDeviceProvider(p.CreateDevice),
		resolver: NewResolver(p),
		opts:     opts,
	}
}

// Backend returns the platform backend name.
func (c *Capturer) Backend() string {
	return c.platform.Name()
}

// Monitors lists connected displays.
func (c *Capturer) Monitors() ([]MonitorInfo, error) {
	return c.platform.Monitors()
}

// CaptureMonitor captures one frame of the given monitor. DefaultMonitor
// selects the monitor nearest to the null window.
func (c *Capturer) CaptureMonitor(ctx context.Context, monitor MonitorHandle) (*Bitmap, error) {
	if monitor == DefaultMonitor {
		h, err := c.platform.DefaultMonitor()
		if err != nil {
			return nil, fmt.Errorf("%w: default monitor: %w", ErrTargetResolution, err)
		}
		monitor = h
	}

	target, err := c.resolver.ResolveForMonitor(monitor)
	if err != nil {
		return nil, err
	}
	return c.captureTarget(ctx, target)
}

// CaptureWindow captures one frame of the given window.
func (c *Capturer) CaptureWindow(ctx context.Context, hwnd WindowHandle) (*Bitmap, error) {
	target, err := c.resolver.ResolveForWindow(hwnd)
	if err != nil {
		return nil, err
	}
	return c.captureTarget(ctx, target)
}

// captureTarget runs the shared pipeline for one resolved target: device,
// one-slot frame pool, borderless session, fresh bridge, start, wait.
func (c *Capturer) captureTarget(ctx context.Context, target *Target) (*Bitmap, error) {
	if target == nil || target.Item == nil {
		return nil, fmt.Errorf("%w: no capture item", ErrCaptureStart)
	}
	defer target.Release()

	logger := logging.FromContext(ctx).With(
		logging.KeyComponent, "capture",
		logging.KeyTarget, target.Kind.String(),
		logging.KeyHandle, fmt.Sprintf("%#x", target.Handle),
		"backend", c.platform.Name(),
	)
	start := time.Now()

	if target.Size.Empty() {
		return nil, fmt.Errorf("%w: %s has empty size %s", ErrCaptureStart, target.Kind, target.Size)
	}

	dev, err := c.devices.Get()
	if err != nil {
		return nil, err
	}

	pool, err := c.platform.CreateFramePool(dev, PixelFormatBGRA8, 1, target.Size)
	if err != nil {
		return nil, fmt.Errorf("%w: create frame pool: %w", ErrCaptureStart, err)
	}
	defer pool.Close()

	session, err := pool.CreateSession(target.Item)
	if err != nil {
		return nil, fmt.Errorf("%w: create session: %w", ErrCaptureStart, err)
	}

	if err := session.SetBorderRequired(c.opts.BorderRequired); err != nil {
		// Older Windows builds cannot toggle the border; the frame is still valid.
		logger.Warn("capture border setting not applied", "borderRequired", c.opts.BorderRequired, logging.KeyError, err)
	}

	bridge := newFrameBridge(pool, session, func(f Frame) (*Bitmap, error) {
		return c.platform.ConvertFrame(dev, f, AlphaPremultiplied)
	}, logger)

	if err := pool.SetFrameArrived(bridge.onFrameArrived); err != nil {
		session.Close()
		return nil, fmt.Errorf("%w: register frame handler: %w", ErrCaptureStart, err)
	}

	if err := session.Start(); err != nil {
		startErr := fmt.Errorf("%w: start session: %w", ErrCaptureStart, err)
		bridge.abort(startErr)
		return nil, startErr
	}
	logger.Debug("capture session started", "size", target.Size.String())

	// The session holds its own reference to the item from here on.
	target.Release()

	waitCtx, cancel := context.WithTimeout(ctx, c.opts.FrameTimeout)
	defer cancel()

	bmp, err := bridge.wait(waitCtx)
	if err != nil {
		logger.Debug("capture failed", logging.KeyError, err, logging.KeyDurationMs, time.Since(start).Milliseconds())
		return nil, err
	}

	logger.Debug("capture complete",
		"width", bmp.Width,
		"height", bmp.Height,
		logging.KeyDurationMs, time.Since(start).Milliseconds(),
	)
	return bmp, nil
}
