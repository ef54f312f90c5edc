//go:build windows

package wgc

import (
	"fmt"
	"unsafe"

	"github.com/go-ole/go-ole"
	"golang.org/x/sys/windows"

	"github.com/breeze-rmm/wincapture/internal/capture"
)

var (
	user32 = windows.NewLazySystemDLL("user32.dll")

	procIsWindow          = user32.NewProc("IsWindow")
	procMonitorFromWindow = user32.NewProc("MonitorFromWindow")
)

// sizeInt32 matches Windows.Graphics.SizeInt32.
type sizeInt32 struct {
	Width  int32
	Height int32
}

// itemFactory creates capture items through IGraphicsCaptureItemInterop.
type itemFactory struct {
	interop uintptr
}

func newItemFactory() (*itemFactory, error) {
	interop, err := activationFactory(classGraphicsCaptureItem, iidGraphicsCaptureItemInterop)
	if err != nil {
		return nil, err
	}
	return &itemFactory{interop: interop}, nil
}

func (f *itemFactory) CreateForWindow(hwnd capture.WindowHandle) (capture.RawItem, error) {
	// The interop call also fails for a dead handle, but with a generic
	// E_INVALIDARG; checking first gives a clearer cause.
	if ok, _, _ := procIsWindow.Call(uintptr(hwnd)); ok == 0 {
		return nil, fmt.Errorf("window %#x does not exist", uintptr(hwnd))
	}
	return f.create(vtblInteropCreateForWindow, uintptr(hwnd))
}

func (f *itemFactory) CreateForMonitor(hmon capture.MonitorHandle) (capture.RawItem, error) {
	return f.create(vtblInteropCreateForMonitor, uintptr(hmon))
}

func (f *itemFactory) create(method int, handle uintptr) (capture.RawItem, error) {
	var out uintptr
	if _, err := comCall(f.interop, method,
		handle,
		uintptr(unsafe.Pointer(ole.IID_IInspectable)),
		uintptr(unsafe.Pointer(&out)),
	); err != nil {
		return nil, err
	}
	if out == 0 {
		return nil, fmt.Errorf("interop returned a null item")
	}
	return &rawItem{ptr: out}, nil
}

// rawItem is the IInspectable reference straight out of the interop call.
type rawItem struct {
	ptr uintptr
}

// Wrap projects the raw reference onto IGraphicsCaptureItem. The result holds
// its own reference.
func (r *rawItem) Wrap() (capture.Item, error) {
	ptr, err := queryInterface(r.ptr, iidGraphicsCaptureItem)
	if err != nil {
		return nil, err
	}
	return &item{ptr: ptr}, nil
}

func (r *rawItem) Release() {
	comRelease(r.ptr)
	r.ptr = 0
}

// item is an IGraphicsCaptureItem.
type item struct {
	ptr uintptr
}

func (i *item) Size() (capture.Size, error) {
	var s sizeInt32
	if _, err := comCall(i.ptr, vtblItemGetSize, uintptr(unsafe.Pointer(&s))); err != nil {
		return capture.Size{}, fmt.Errorf("GraphicsCaptureItem.Size: %w", err)
	}
	return capture.Size{Width: s.Width, Height: s.Height}, nil
}

func (i *item) Release() {
	comRelease(i.ptr)
	i.ptr = 0
}
