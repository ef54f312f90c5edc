package capture

import (
	"errors"
	"sync"
	"sync/atomic"
)

// In-package test doubles for the platform interfaces. Reference counts are
// tracked so tests can assert that every native reference is released once.

type fakeItem struct {
	size     Size
	sizeErr  error
	releases atomic.Int32
}

func (i *fakeItem) Size() (Size, error) { return i.size, i.sizeErr }
func (i *fakeItem) Release()            { i.releases.Add(1) }

type fakeRawItem struct {
	item     *fakeItem
	wrapErr  error
	releases atomic.Int32
}

func (r *fakeRawItem) Wrap() (Item, error) {
	if r.wrapErr != nil {
		return nil, r.wrapErr
	}
	return r.item, nil
}

func (r *fakeRawItem) Release() { r.releases.Add(1) }

type fakeFrame struct {
	size   Size
	closes atomic.Int32
}

func (f *fakeFrame) ContentSize() Size { return f.size }
func (f *fakeFrame) Close()            { f.closes.Add(1) }

type fakeSession struct {
	pool      *fakePool
	item      Item
	startErr  error
	border    *bool
	borderErr error

	starts atomic.Int32
	closes atomic.Int32
}

func (s *fakeSession) SetBorderRequired(required bool) error {
	s.border = &required
	return s.borderErr
}

func (s *fakeSession) Start() error {
	s.starts.Add(1)
	if s.startErr != nil {
		return s.startErr
	}
	if s.pool.onStart != nil {
		s.pool.onStart(s.pool)
	}
	return nil
}

func (s *fakeSession) Close() { s.closes.Add(1) }

type fakePool struct {
	platform *fakePlatform
	size     Size
	buffers  int
	format   PixelFormat

	// onStart simulates the compositor once the session starts.
	onStart func(p *fakePool)

	mu      sync.Mutex
	queue   []*fakeFrame
	handler func()
	session *fakeSession
	nextErr error
	closes  atomic.Int32
}

func (p *fakePool) CreateSession(item Item) (Session, error) {
	if p.platform.sessionErr != nil {
		return nil, p.platform.sessionErr
	}
	s := &fakeSession{pool: p, item: item, startErr: p.platform.startErr, borderErr: p.platform.borderErr}
	p.mu.Lock()
	p.session = s
	p.mu.Unlock()
	return s, nil
}

func (p *fakePool) SetFrameArrived(handler func()) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handler = handler
	return nil
}

func (p *fakePool) TryGetNextFrame() (Frame, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.nextErr != nil {
		return nil, p.nextErr
	}
	if len(p.queue) == 0 {
		return nil, nil
	}
	f := p.queue[0]
	p.queue = p.queue[1:]
	return f, nil
}

func (p *fakePool) Close() { p.closes.Add(1) }

// push queues a frame when the one-slot pool has room.
func (p *fakePool) push(f *fakeFrame) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.queue) < p.buffers {
		p.queue = append(p.queue, f)
	}
}

func (p *fakePool) notify() {
	p.mu.Lock()
	h := p.handler
	p.mu.Unlock()
	if h != nil {
		h()
	}
}

// deliverFrame is the default onStart: queue one frame of the pool's size
// and notify from another goroutine, like the compositor thread does.
func deliverFrame(p *fakePool) {
	go func() {
		p.push(&fakeFrame{size: p.size})
		p.notify()
	}()
}

type fakePlatform struct {
	windows        map[WindowHandle]Size
	monitors       map[MonitorHandle]Size
	defaultMonitor MonitorHandle
	defaultErr     error

	deviceErr  error
	poolErr    error
	sessionErr error
	startErr   error
	borderErr  error
	convertErr error
	onStart    func(p *fakePool)

	mu           sync.Mutex
	devicesMade  int
	raws         []*fakeRawItem
	pools        []*fakePool
	convertCalls int
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{
		windows:        map[WindowHandle]Size{},
		monitors:       map[MonitorHandle]Size{0x10001: {Width: 1920, Height: 1080}},
		defaultMonitor: 0x10001,
		onStart:        deliverFrame,
	}
}

var errInvalidHandle = errors.New("E_INVALIDARG")

func (f *fakePlatform) Name() string { return "fake" }

func (f *fakePlatform) CreateForWindow(hwnd WindowHandle) (RawItem, error) {
	size, ok := f.windows[hwnd]
	if !ok {
		return nil, errInvalidHandle
	}
	return f.newRaw(size), nil
}

func (f *fakePlatform) CreateForMonitor(hmon MonitorHandle) (RawItem, error) {
	size, ok := f.monitors[hmon]
	if !ok {
		return nil, errInvalidHandle
	}
	return f.newRaw(size), nil
}

func (f *fakePlatform) newRaw(size Size) *fakeRawItem {
	raw := &fakeRawItem{item: &fakeItem{size: size}}
	f.mu.Lock()
	f.raws = append(f.raws, raw)
	f.mu.Unlock()
	return raw
}

func (f *fakePlatform) CreateDevice() (Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deviceErr != nil {
		return nil, f.deviceErr
	}
	f.devicesMade++
	return &struct{ id int }{id: f.devicesMade}, nil
}

func (f *fakePlatform) DefaultMonitor() (MonitorHandle, error) {
	return f.defaultMonitor, f.defaultErr
}

func (f *fakePlatform) Monitors() ([]MonitorInfo, error) {
	var out []MonitorInfo
	for h, s := range f.monitors {
		out = append(out, MonitorInfo{Handle: h, Width: int(s.Width), Height: int(s.Height), IsPrimary: h == f.defaultMonitor})
	}
	return out, nil
}

func (f *fakePlatform) CreateFramePool(dev Device, format PixelFormat, buffers int, size Size) (FramePool, error) {
	if f.poolErr != nil {
		return nil, f.poolErr
	}
	p := &fakePool{platform: f, size: size, buffers: buffers, format: format, onStart: f.onStart}
	f.mu.Lock()
	f.pools = append(f.pools, p)
	f.mu.Unlock()
	return p, nil
}

func (f *fakePlatform) ConvertFrame(dev Device, frame Frame, alpha AlphaMode) (*Bitmap, error) {
	f.mu.Lock()
	f.convertCalls++
	f.mu.Unlock()
	if f.convertErr != nil {
		return nil, f.convertErr
	}
	size := frame.ContentSize()
	bmp := NewBitmap(int(size.Width), int(size.Height), alpha)
	for i := 3; i < len(bmp.Pix); i += 4 {
		bmp.Pix[i] = 0xFF
	}
	return bmp, nil
}

func (f *fakePlatform) lastPool() *fakePool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.pools) == 0 {
		return nil
	}
	return f.pools[len(f.pools)-1]
}

func (f *fakePlatform) lastRaw() *fakeRawItem {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.raws) == 0 {
		return nil
	}
	return f.raws[len(f.raws)-1]
}
