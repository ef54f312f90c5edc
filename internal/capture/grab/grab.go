// Package grab is a portable capture.Platform built on
// github.com/kbinani/screenshot. It captures whole monitors only; there is
// no window capture and no GPU device.
//
// Monitor handles are display index + 1, so 0 keeps meaning "default".
package grab

import (
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/kbinani/screenshot"

	"github.com/breeze-rmm/wincapture/internal/capture"
	"github.com/breeze-rmm/wincapture/internal/logging"
)

// Name is the backend name reported by Platform.Name.
const Name = "screenshot"

var log = logging.L("grab")

// Platform implements capture.Platform with screen-rectangle grabs.
type Platform struct {
	displays    func() []image.Rectangle
	captureRect func(image.Rectangle) (*image.RGBA, error)
}

var _ capture.Platform = (*Platform)(nil)

// New returns a Platform reading the active displays.
func New() *Platform {
	return &Platform{
		displays:    activeDisplays,
		captureRect: screenshot.CaptureRect,
	}
}

func activeDisplays() []image.Rectangle {
	n := screenshot.NumActiveDisplays()
	rects := make([]image.Rectangle, 0, n)
	for i := 0; i < n; i++ {
		rects = append(rects, screenshot.GetDisplayBounds(i))
	}
	return rects
}

func (p *Platform) Name() string { return Name }

// CreateForWindow is not supported: screen-rectangle grabs cannot isolate a
// window's content.
func (p *Platform) CreateForWindow(hwnd capture.WindowHandle) (capture.RawItem, error) {
	return nil, fmt.Errorf("%w: window capture needs the wgc backend", capture.ErrNotSupported)
}

func (p *Platform) CreateForMonitor(hmon capture.MonitorHandle) (capture.RawItem, error) {
	displays := p.displays()
	idx := int(hmon) - 1
	if idx < 0 || idx >= len(displays) {
		return nil, fmt.Errorf("monitor %d not found (%d active displays)", hmon, len(displays))
	}
	return &rawItem{rect: displays[idx]}, nil
}

// CreateDevice returns a placeholder; screen grabs need no rendering device.
func (p *Platform) CreateDevice() (capture.Device, error) {
	return noDevice{}, nil
}

// DefaultMonitor returns the primary display, which the screenshot library
// always reports first.
func (p *Platform) DefaultMonitor() (capture.MonitorHandle, error) {
	if len(p.displays()) == 0 {
		return 0, errors.New("no active displays")
	}
	return 1, nil
}

func (p *Platform) Monitors() ([]capture.MonitorInfo, error) {
	displays := p.displays()
	if len(displays) == 0 {
		return nil, errors.New("no active displays")
	}
	monitors := make([]capture.MonitorInfo, 0, len(displays))
	for i, r := range displays {
		monitors = append(monitors, capture.MonitorInfo{
			Index:     i,
			Name:      fmt.Sprintf("display%d", i),
			Handle:    capture.MonitorHandle(i + 1),
			Width:     r.Dx(),
			Height:    r.Dy(),
			X:         r.Min.X,
			Y:         r.Min.Y,
			IsPrimary: i == 0,
		})
	}
	return monitors, nil
}

func (p *Platform) CreateFramePool(dev capture.Device, format capture.PixelFormat, buffers int, size capture.Size) (capture.FramePool, error) {
	if format != capture.PixelFormatBGRA8 {
		return nil, fmt.Errorf("unsupported pixel format %s", format)
	}
	if buffers < 1 {
		return nil, fmt.Errorf("frame pool needs at least one buffer, got %d", buffers)
	}
	return &framePool{platform: p, buffers: buffers}, nil
}

func (p *Platform) ConvertFrame(dev capture.Device, f capture.Frame, alpha capture.AlphaMode) (*capture.Bitmap, error) {
	gf, ok := f.(*frame)
	if !ok {
		return nil, errors.New("frame was not produced by this backend")
	}
	return bitmapFromRGBA(gf.img, alpha)
}

// bitmapFromRGBA swizzles an RGBA image into a tightly packed BGRA bitmap.
func bitmapFromRGBA(img *image.RGBA, alpha capture.AlphaMode) (*capture.Bitmap, error) {
	if img == nil {
		return nil, errors.New("no image")
	}
	b := img.Bounds()
	if b.Empty() {
		return nil, fmt.Errorf("empty image %v", b)
	}
	bmp := capture.NewBitmap(b.Dx(), b.Dy(), alpha)
	for y := 0; y < b.Dy(); y++ {
		src := img.Pix[y*img.Stride : y*img.Stride+b.Dx()*4]
		dst := bmp.Pix[y*bmp.Stride : (y+1)*bmp.Stride]
		for i := 0; i < len(src); i += 4 {
			dst[i+0] = src[i+2]
			dst[i+1] = src[i+1]
			dst[i+2] = src[i+0]
			dst[i+3] = src[i+3]
		}
	}
	return bmp, nil
}

type noDevice struct{}

type rawItem struct {
	rect image.Rectangle
}

func (r *rawItem) Wrap() (capture.Item, error) { return &item{rect: r.rect}, nil }
func (r *rawItem) Release()                     {}

type item struct {
	rect image.Rectangle
}

func (i *item) Size() (capture.Size, error) {
	return capture.Size{Width: int32(i.rect.Dx()), Height: int32(i.rect.Dy())}, nil
}

func (i *item) Release() {}

// frame holds one grab, or the error the grab failed with.
type frame struct {
	img *image.RGBA
	err error
}

func (f *frame) ContentSize() capture.Size {
	if f.img == nil {
		return capture.Size{}
	}
	b := f.img.Bounds()
	return capture.Size{Width: int32(b.Dx()), Height: int32(b.Dy())}
}

func (f *frame) Close() { f.img = nil }

// framePool queues at most buffers grabs and notifies the registered handler
// from the grabbing goroutine.
type framePool struct {
	platform *Platform
	buffers  int

	mu      sync.Mutex
	queue   []*frame
	handler func()
	closed  bool
}

func (p *framePool) CreateSession(it capture.Item) (capture.Session, error) {
	gi, ok := it.(*item)
	if !ok {
		return nil, errors.New("capture item was not created by this backend")
	}
	return &session{pool: p, rect: gi.rect}, nil
}

func (p *framePool) SetFrameArrived(handler func()) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return errors.New("frame pool is closed")
	}
	p.handler = handler
	return nil
}

func (p *framePool) TryGetNextFrame() (capture.Frame, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.queue) == 0 {
		return nil, nil
	}
	f := p.queue[0]
	p.queue = p.queue[1:]
	if f.err != nil {
		return nil, f.err
	}
	return f, nil
}

func (p *framePool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.handler = nil
	p.queue = nil
}

// deliver queues f and notifies the handler outside the pool lock. A full or
// closed pool drops the frame.
func (p *framePool) deliver(f *frame) {
	p.mu.Lock()
	if p.closed || len(p.queue) >= p.buffers {
		p.mu.Unlock()
		return
	}
	p.queue = append(p.queue, f)
	h := p.handler
	p.mu.Unlock()

	if h != nil {
		h()
	}
}

type session struct {
	pool *framePool
	rect image.Rectangle

	mu      sync.Mutex
	started bool
	closed  bool
}

// SetBorderRequired is accepted and ignored; screen grabs draw no border.
func (s *session) SetBorderRequired(bool) error { return nil }

// Start grabs the monitor rectangle on a separate goroutine, the way a
// compositor delivers frames on its own thread.
func (s *session) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("session is closed")
	}
	if s.started {
		return errors.New("session already started")
	}
	s.started = true

	go func() {
		img, err := s.pool.platform.captureRect(s.rect)
		if err != nil {
			log.Debug("screen grab failed", "rect", s.rect.String(), "error", err)
		}
		if s.isClosed() {
			return
		}
		s.pool.deliver(&frame{img: img, err: err})
	}()
	return nil
}

func (s *session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}
