//go:build windows

package wgc

import (
	"errors"
	"fmt"
	"sync"
	"unsafe"

	"github.com/breeze-rmm/wincapture/internal/capture"
)

// framePool is an IDirect3D11CaptureFramePool created free-threaded, so
// FrameArrived fires on a system thread instead of a dispatcher queue.
type framePool struct {
	ptr uintptr

	mu         sync.Mutex
	handler    *frameArrivedHandler
	token      int64 // EventRegistrationToken
	registered bool
	closed     bool
}

func createFramePool(statics uintptr, dev *device, format capture.PixelFormat, buffers int, size capture.Size) (*framePool, error) {
	dxgi, err := dxgiFormat(format)
	if err != nil {
		return nil, err
	}
	var ptr uintptr
	if _, err := comCall(statics, vtblFramePoolCreateFreeThreaded,
		dev.winrt,
		uintptr(dxgi),
		uintptr(buffers),
		uintptr(packSize(size)),
		uintptr(unsafe.Pointer(&ptr)),
	); err != nil {
		return nil, fmt.Errorf("Direct3D11CaptureFramePool.CreateFreeThreaded: %w", err)
	}
	return &framePool{ptr: ptr}, nil
}

func (p *framePool) CreateSession(it capture.Item) (capture.Session, error) {
	wi, ok := it.(*item)
	if !ok || wi.ptr == 0 {
		return nil, errors.New("capture item was not created by this backend")
	}
	var ptr uintptr
	if _, err := comCall(p.ptr, vtblFramePoolCreateCaptureSession,
		wi.ptr,
		uintptr(unsafe.Pointer(&ptr)),
	); err != nil {
		return nil, fmt.Errorf("CreateCaptureSession: %w", err)
	}
	return &session{ptr: ptr}, nil
}

func (p *framePool) SetFrameArrived(fn func()) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return errors.New("frame pool is closed")
	}
	if p.registered {
		return errors.New("frame-arrived handler already registered")
	}

	h := newFrameArrivedHandler(fn)
	var token int64
	_, err := comCall(p.ptr, vtblFramePoolAddFrameArrived,
		h.ptr(),
		uintptr(unsafe.Pointer(&token)),
	)
	// The pool took its own reference on success.
	handlerRelease(h)
	if err != nil {
		return fmt.Errorf("add_FrameArrived: %w", err)
	}
	p.handler = h
	p.token = token
	p.registered = true
	return nil
}

func (p *framePool) TryGetNextFrame() (capture.Frame, error) {
	var ptr uintptr
	if _, err := comCall(p.ptr, vtblFramePoolTryGetNextFrame, uintptr(unsafe.Pointer(&ptr))); err != nil {
		return nil, fmt.Errorf("TryGetNextFrame: %w", err)
	}
	if ptr == 0 {
		return nil, nil
	}

	var s sizeInt32
	if _, err := comCall(ptr, vtblFrameGetContentSize, uintptr(unsafe.Pointer(&s))); err != nil {
		closeWinRT(ptr)
		return nil, fmt.Errorf("Direct3D11CaptureFrame.ContentSize: %w", err)
	}
	return &frame{ptr: ptr, size: capture.Size{Width: s.Width, Height: s.Height}}, nil
}

// Close unregisters the frame-arrived handler and closes the pool.
func (p *framePool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	p.closed = true

	if p.registered {
		if _, err := comCall(p.ptr, vtblFramePoolRemoveFrameArrived, uintptr(p.token)); err != nil {
			log.Warn("remove_FrameArrived failed", "error", err)
		}
		p.registered = false
		p.handler = nil
	}
	if err := closeWinRT(p.ptr); err != nil {
		log.Warn("frame pool close failed", "error", err)
	}
	p.ptr = 0
}

// session is an IGraphicsCaptureSession.
type session struct {
	ptr       uintptr
	closeOnce sync.Once
}

func (s *session) SetBorderRequired(required bool) error {
	s3, err := queryInterface(s.ptr, iidGraphicsCaptureSession3)
	if err != nil {
		// Before Windows 10 2104 the border cannot be toggled.
		return err
	}
	defer comRelease(s3)

	var v uintptr
	if required {
		v = 1
	}
	if _, err := comCall(s3, vtblSessionPutBorderRequired, v); err != nil {
		return fmt.Errorf("put_IsBorderRequired: %w", err)
	}
	return nil
}

func (s *session) Start() error {
	if _, err := comCall(s.ptr, vtblSessionStartCapture); err != nil {
		return fmt.Errorf("StartCapture: %w", err)
	}
	return nil
}

func (s *session) Close() {
	s.closeOnce.Do(func() {
		if err := closeWinRT(s.ptr); err != nil {
			log.Warn("capture session close failed", "error", err)
		}
	})
}

// frame is an IDirect3D11CaptureFrame.
type frame struct {
	ptr       uintptr
	size      capture.Size
	closeOnce sync.Once
}

func (f *frame) ContentSize() capture.Size { return f.size }

func (f *frame) Close() {
	f.closeOnce.Do(func() {
		if err := closeWinRT(f.ptr); err != nil {
			log.Debug("capture frame close failed", "error", err)
		}
	})
}
