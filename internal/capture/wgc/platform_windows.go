//go:build windows

package wgc

import (
	"errors"
	"fmt"
	"unsafe"

	"github.com/breeze-rmm/wincapture/internal/capture"
)

// Platform is the Windows.Graphics.Capture backend.
type Platform struct {
	*itemFactory
	poolStatics uintptr // IDirect3D11CaptureFramePoolStatics2
}

var _ capture.Platform = (*Platform)(nil)

// New initializes the WinRT apartment and the activation factories. It
// returns capture.ErrNotSupported when the OS has no Graphics Capture.
func New() (capture.Platform, error) {
	if err := ensureApartment(); err != nil {
		return nil, err
	}

	supported, err := isSupported()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", capture.ErrNotSupported, err)
	}
	if !supported {
		return nil, fmt.Errorf("%w: GraphicsCaptureSession.IsSupported returned false", capture.ErrNotSupported)
	}

	items, err := newItemFactory()
	if err != nil {
		return nil, err
	}
	statics, err := activationFactory(classFramePool, iidFramePoolStatics2)
	if err != nil {
		comRelease(items.interop)
		return nil, err
	}
	return &Platform{itemFactory: items, poolStatics: statics}, nil
}

func isSupported() (bool, error) {
	statics, err := activationFactory(classGraphicsCaptureSession, iidSessionStatics)
	if err != nil {
		return false, err
	}
	defer comRelease(statics)

	var ok uint8
	if _, err := comCall(statics, vtblSessionStaticsIsSupported, uintptr(unsafe.Pointer(&ok))); err != nil {
		return false, fmt.Errorf("GraphicsCaptureSession.IsSupported: %w", err)
	}
	return ok != 0, nil
}

func (p *Platform) Name() string { return Name }

func (p *Platform) CreateDevice() (capture.Device, error) {
	d, err := createDevice()
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (p *Platform) DefaultMonitor() (capture.MonitorHandle, error) {
	return defaultMonitor()
}

func (p *Platform) Monitors() ([]capture.MonitorInfo, error) {
	return listMonitors()
}

func (p *Platform) CreateFramePool(dev capture.Device, format capture.PixelFormat, buffers int, size capture.Size) (capture.FramePool, error) {
	d, ok := dev.(*device)
	if !ok {
		return nil, errors.New("device was not created by this backend")
	}
	pool, err := createFramePool(p.poolStatics, d, format, buffers, size)
	if err != nil {
		return nil, err
	}
	return pool, nil
}

func (p *Platform) ConvertFrame(dev capture.Device, f capture.Frame, alpha capture.AlphaMode) (*capture.Bitmap, error) {
	d, ok := dev.(*device)
	if !ok {
		return nil, errors.New("device was not created by this backend")
	}
	wf, ok := f.(*frame)
	if !ok {
		return nil, errors.New("frame was not produced by this backend")
	}
	return readFrame(d, wf, alpha)
}
