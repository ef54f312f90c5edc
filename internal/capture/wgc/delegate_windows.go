//go:build windows

package wgc

import (
	"sync"
	"sync/atomic"
	"syscall"
	"unsafe"

	"github.com/go-ole/go-ole"
)

// frameArrivedHandler is a hand-built COM object implementing
// TypedEventHandler<Direct3D11CaptureFramePool, Object>. The vtable pointer
// must stay the first field.
type frameArrivedHandler struct {
	vtbl *frameArrivedVtbl
	refs int32
	fn   func()
}

type frameArrivedVtbl struct {
	QueryInterface uintptr
	AddRef         uintptr
	Release        uintptr
	Invoke         uintptr
}

var (
	frameArrivedVtable = &frameArrivedVtbl{
		QueryInterface: syscall.NewCallback(handlerQueryInterface),
		AddRef:         syscall.NewCallback(handlerAddRef),
		Release:        syscall.NewCallback(handlerRelease),
		Invoke:         syscall.NewCallback(handlerInvoke),
	}

	// Handlers referenced from native code stay reachable here until their
	// COM reference count drops to zero.
	liveHandlers sync.Map
)

func newFrameArrivedHandler(fn func()) *frameArrivedHandler {
	h := &frameArrivedHandler{vtbl: frameArrivedVtable, refs: 1, fn: fn}
	liveHandlers.Store(h, struct{}{})
	return h
}

func (h *frameArrivedHandler) ptr() uintptr {
	return uintptr(unsafe.Pointer(h))
}

func handlerQueryInterface(this *frameArrivedHandler, riid *ole.GUID, ppv *uintptr) uintptr {
	if ppv == nil {
		return eNoInterface
	}
	if ole.IsEqualGUID(riid, ole.IID_IUnknown) ||
		ole.IsEqualGUID(riid, iidFrameArrivedHandler) ||
		ole.IsEqualGUID(riid, iidAgileObject) {
		*ppv = this.ptr()
		handlerAddRef(this)
		return sOK
	}
	*ppv = 0
	return eNoInterface
}

func handlerAddRef(this *frameArrivedHandler) uintptr {
	return uintptr(atomic.AddInt32(&this.refs, 1))
}

func handlerRelease(this *frameArrivedHandler) uintptr {
	n := atomic.AddInt32(&this.refs, -1)
	if n == 0 {
		liveHandlers.Delete(this)
	}
	return uintptr(n)
}

// handlerInvoke runs on a WinRT thread-pool thread. A panic must not unwind
// into the caller's frames, so it is logged and swallowed.
func handlerInvoke(this *frameArrivedHandler, sender, args uintptr) uintptr {
	defer func() {
		if r := recover(); r != nil {
			log.Error("frame-arrived handler panicked", "panic", r)
		}
	}()
	this.fn()
	return sOK
}
