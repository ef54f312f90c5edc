package capture

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/breeze-rmm/wincapture/internal/logging"
)

func TestCaptureMonitorDefault1080p(t *testing.T) {
	p := newFakePlatform()
	c := New(p, Options{})

	bmp, err := c.CaptureMonitor(context.Background(), DefaultMonitor)
	if err != nil {
		t.Fatalf("CaptureMonitor: %v", err)
	}
	if bmp.Width != 1920 || bmp.Height != 1080 {
		t.Fatalf("bitmap size = %dx%d, want 1920x1080", bmp.Width, bmp.Height)
	}
	if bmp.Format != PixelFormatBGRA8 {
		t.Fatalf("format = %v, want BGRA8", bmp.Format)
	}
	if bmp.Alpha != AlphaPremultiplied {
		t.Fatalf("alpha = %v, want premultiplied", bmp.Alpha)
	}
	if len(bmp.Pix) != 1920*1080*4 {
		t.Fatalf("pixel buffer length = %d, want %d", len(bmp.Pix), 1920*1080*4)
	}

	pool := p.lastPool()
	if pool.buffers != 1 {
		t.Fatalf("frame pool buffers = %d, want 1", pool.buffers)
	}
	if pool.format != PixelFormatBGRA8 {
		t.Fatalf("frame pool format = %v, want BGRA8", pool.format)
	}
	if pool.size != (Size{Width: 1920, Height: 1080}) {
		t.Fatalf("frame pool size = %v, want 1920x1080", pool.size)
	}
}

func TestCaptureMonitorExplicitHandle(t *testing.T) {
	p := newFakePlatform()
	p.monitors[0x20002] = Size{Width: 2560, Height: 1440}
	c := New(p, Options{})

	bmp, err := c.CaptureMonitor(context.Background(), 0x20002)
	if err != nil {
		t.Fatalf("CaptureMonitor: %v", err)
	}
	if bmp.Width != 2560 || bmp.Height != 1440 {
		t.Fatalf("bitmap size = %dx%d, want 2560x1440", bmp.Width, bmp.Height)
	}
}

func TestCaptureMonitorDefaultResolutionFailure(t *testing.T) {
	p := newFakePlatform()
	p.defaultErr = errors.New("no monitor")
	c := New(p, Options{})

	_, err := c.CaptureMonitor(context.Background(), DefaultMonitor)
	if !errors.Is(err, ErrTargetResolution) {
		t.Fatalf("err = %v, want ErrTargetResolution", err)
	}
}

func TestCaptureWindowResized(t *testing.T) {
	p := newFakePlatform()
	p.windows[0x5150] = Size{Width: 300, Height: 200}
	c := New(p, Options{})

	bmp, err := c.CaptureWindow(context.Background(), 0x5150)
	if err != nil {
		t.Fatalf("CaptureWindow: %v", err)
	}
	if bmp.Width != 300 || bmp.Height != 200 {
		t.Fatalf("bitmap size = %dx%d, want 300x200", bmp.Width, bmp.Height)
	}
}

func TestCaptureWindowDestroyedHandle(t *testing.T) {
	p := newFakePlatform()
	c := New(p, Options{})

	bmp, err := c.CaptureWindow(context.Background(), 0xDEAD)
	if !errors.Is(err, ErrTargetResolution) {
		t.Fatalf("err = %v, want ErrTargetResolution", err)
	}
	if !errors.Is(err, errInvalidHandle) {
		t.Fatalf("err = %v, want platform cause preserved", err)
	}
	if bmp != nil {
		t.Fatal("bitmap returned alongside error")
	}
	if p.lastPool() != nil {
		t.Fatal("frame pool created for an unresolved window")
	}
}

func TestCaptureWindowNullHandle(t *testing.T) {
	c := New(newFakePlatform(), Options{})
	if _, err := c.CaptureWindow(context.Background(), 0); !errors.Is(err, ErrTargetResolution) {
		t.Fatalf("err = %v, want ErrTargetResolution", err)
	}
}

func TestCaptureReleasesReferencesOnSuccess(t *testing.T) {
	p := newFakePlatform()
	c := New(p, Options{})

	if _, err := c.CaptureMonitor(context.Background(), DefaultMonitor); err != nil {
		t.Fatalf("CaptureMonitor: %v", err)
	}

	raw := p.lastRaw()
	if n := raw.releases.Load(); n != 1 {
		t.Fatalf("raw item released %d times, want 1", n)
	}
	if n := raw.item.releases.Load(); n != 1 {
		t.Fatalf("wrapped item released %d times, want 1", n)
	}

	pool := p.lastPool()
	if n := pool.closes.Load(); n != 1 {
		t.Fatalf("frame pool closed %d times, want 1", n)
	}
	if n := pool.session.closes.Load(); n != 1 {
		t.Fatalf("session closed %d times, want 1", n)
	}
	if pool.session.border == nil || *pool.session.border {
		t.Fatal("capture border was not disabled")
	}
}

func TestCaptureReleasesReferencesOnFailure(t *testing.T) {
	tests := []struct {
		name  string
		setup func(p *fakePlatform)
		want  error
	}{
		{"device", func(p *fakePlatform) { p.deviceErr = errors.New("no gpu") }, ErrDeviceCreation},
		{"pool", func(p *fakePlatform) { p.poolErr = errors.New("E_OUTOFMEMORY") }, ErrCaptureStart},
		{"session", func(p *fakePlatform) { p.sessionErr = errors.New("E_ACCESSDENIED") }, ErrCaptureStart},
		{"start", func(p *fakePlatform) { p.startErr = errors.New("E_FAIL") }, ErrCaptureStart},
		{"convert", func(p *fakePlatform) { p.convertErr = errors.New("map failed") }, ErrFrameConversion},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newFakePlatform()
			tt.setup(p)
			c := New(p, Options{})

			bmp, err := c.CaptureMonitor(context.Background(), DefaultMonitor)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			if bmp != nil {
				t.Fatal("bitmap returned alongside error")
			}

			raw := p.lastRaw()
			if n := raw.releases.Load(); n != 1 {
				t.Fatalf("raw item released %d times, want 1", n)
			}
			if n := raw.item.releases.Load(); n != 1 {
				t.Fatalf("wrapped item released %d times, want 1", n)
			}
			if pool := p.lastPool(); pool != nil {
				if n := pool.closes.Load(); n != 1 {
					t.Fatalf("frame pool closed %d times, want 1", n)
				}
				if pool.session != nil && pool.session.closes.Load() != 1 {
					t.Fatalf("session closed %d times, want 1", pool.session.closes.Load())
				}
			}
		})
	}
}

func TestCaptureZeroSizeTarget(t *testing.T) {
	p := newFakePlatform()
	p.windows[0x77] = Size{Width: 0, Height: 0}
	c := New(p, Options{})

	_, err := c.CaptureWindow(context.Background(), 0x77)
	if !errors.Is(err, ErrCaptureStart) {
		t.Fatalf("err = %v, want ErrCaptureStart", err)
	}
	if p.lastPool() != nil {
		t.Fatal("frame pool created for an empty target")
	}
	if n := p.lastRaw().item.releases.Load(); n != 1 {
		t.Fatalf("wrapped item released %d times, want 1", n)
	}
}

func TestCaptureBorderFailureIsNotFatal(t *testing.T) {
	p := newFakePlatform()
	p.borderErr = errors.New("E_NOINTERFACE")
	c := New(p, Options{})

	if _, err := c.CaptureMonitor(context.Background(), DefaultMonitor); err != nil {
		t.Fatalf("CaptureMonitor: %v", err)
	}
}

func TestCaptureTimesOutWhenNoFrameArrives(t *testing.T) {
	p := newFakePlatform()
	p.onStart = nil // compositor never delivers (minimized window)
	c := New(p, Options{FrameTimeout: 20 * time.Millisecond})

	_, err := c.CaptureMonitor(context.Background(), DefaultMonitor)
	if !errors.Is(err, ErrFrameTimeout) {
		t.Fatalf("err = %v, want ErrFrameTimeout", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want DeadlineExceeded in chain", err)
	}
	pool := p.lastPool()
	if n := pool.session.closes.Load(); n != 1 {
		t.Fatalf("session closed %d times, want 1", n)
	}
}

func TestCaptureHonoursCallerCancellation(t *testing.T) {
	p := newFakePlatform()
	p.onStart = nil
	c := New(p, Options{FrameTimeout: time.Minute})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.CaptureMonitor(ctx, DefaultMonitor)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if errors.Is(err, ErrFrameTimeout) {
		t.Fatalf("cancellation reported as timeout: %v", err)
	}
}

func TestCaptureSharesDeviceAcrossCalls(t *testing.T) {
	p := newFakePlatform()
	p.windows[0x1] = Size{Width: 10, Height: 10}
	c := New(p, Options{})

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var err error
			if i%2 == 0 {
				_, err = c.CaptureMonitor(context.Background(), DefaultMonitor)
			} else {
				_, err = c.CaptureWindow(context.Background(), 0x1)
			}
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent capture: %v", err)
		}
	}

	if p.devicesMade != 1 {
		t.Fatalf("devices created = %d, want 1", p.devicesMade)
	}
	if len(p.pools) != 8 {
		t.Fatalf("frame pools created = %d, want one per call", len(p.pools))
	}
}

func TestCaptureRetriesAfterDeviceFailure(t *testing.T) {
	p := newFakePlatform()
	p.deviceErr = errors.New("adapter busy")
	c := New(p, Options{})

	if _, err := c.CaptureMonitor(context.Background(), DefaultMonitor); !errors.Is(err, ErrDeviceCreation) {
		t.Fatalf("err = %v, want ErrDeviceCreation", err)
	}

	p.mu.Lock()
	p.deviceErr = nil
	p.mu.Unlock()

	if _, err := c.CaptureMonitor(context.Background(), DefaultMonitor); err != nil {
		t.Fatalf("second capture: %v", err)
	}
}

func TestMonitorsDelegatesToPlatform(t *testing.T) {
	c := New(newFakePlatform(), Options{})
	monitors, err := c.Monitors()
	if err != nil {
		t.Fatalf("Monitors: %v", err)
	}
	if len(monitors) != 1 || !monitors[0].IsPrimary {
		t.Fatalf("monitors = %+v, want one primary", monitors)
	}
	if c.Backend() != "fake" {
		t.Fatalf("Backend = %q, want fake", c.Backend())
	}
}

func TestCaptureLogsThroughContextLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})).With("command", "monitor")
	ctx := logging.NewContext(context.Background(), logger)

	c := New(newFakePlatform(), Options{})
	if _, err := c.CaptureMonitor(ctx, DefaultMonitor); err != nil {
		t.Fatalf("CaptureMonitor: %v", err)
	}

	var complete string
	for _, line := range strings.Split(buf.String(), "\n") {
		if strings.Contains(line, `"msg":"capture complete"`) {
			complete = line
		}
	}
	if complete == "" {
		t.Fatalf("no capture complete record in: %s", buf.String())
	}
	for _, want := range []string{`"command":"monitor"`, `"component":"capture"`, `"target":"monitor"`, `"width":1920`} {
		if !strings.Contains(complete, want) {
			t.Fatalf("record %s missing %s", complete, want)
		}
	}
}
