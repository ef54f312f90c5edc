//go:build windows

package wgc

import (
	"errors"
	"fmt"
	"syscall"
	"unsafe"

	"github.com/breeze-rmm/wincapture/internal/capture"
)

const (
	monitorDefaultToNearest = 2

	dxgiErrNotFound = 0x887A0002
)

// DXGI_OUTPUT_DESC layout:
//   WCHAR DeviceName[32]     64 bytes (UTF-16)
//   RECT  DesktopCoordinates 16 bytes (left, top, right, bottom int32)
//   BOOL  AttachedToDesktop   4 bytes
//   DXGI_MODE_ROTATION        4 bytes
//   HMONITOR                  8 bytes (pointer)
type dxgiOutputDesc struct {
	DeviceName        [32]uint16
	Left              int32
	Top               int32
	Right             int32
	Bottom            int32
	AttachedToDesktop int32
	Rotation          uint32
	Monitor           uintptr
}

// defaultMonitor returns the monitor nearest to the null window.
func defaultMonitor() (capture.MonitorHandle, error) {
	h, _, _ := procMonitorFromWindow.Call(0, monitorDefaultToNearest)
	if h == 0 {
		return 0, errors.New("MonitorFromWindow returned no monitor")
	}
	return capture.MonitorHandle(h), nil
}

// listMonitors enumerates the outputs of the default adapter through a
// temporary hardware device. The HMONITOR of each output is the handle
// CaptureMonitor accepts.
func listMonitors() ([]capture.MonitorInfo, error) {
	d3d, ctx, err := createD3D11Device(d3dDriverTypeHardware)
	if err != nil {
		return nil, err
	}
	defer comRelease(ctx)
	defer comRelease(d3d)

	dxgiDevice, err := queryInterface(d3d, iidIDXGIDevice)
	if err != nil {
		return nil, err
	}
	defer comRelease(dxgiDevice)

	var adapter uintptr
	if _, err := comCall(dxgiDevice, dxgiDeviceGetAdapter, uintptr(unsafe.Pointer(&adapter))); err != nil {
		return nil, fmt.Errorf("IDXGIDevice::GetAdapter: %w", err)
	}
	defer comRelease(adapter)

	var monitors []capture.MonitorInfo
	for i := 0; ; i++ {
		var output uintptr
		hr, _, _ := syscall.SyscallN(
			comVtblFn(adapter, dxgiAdapterEnumOutputs),
			adapter,
			uintptr(i),
			uintptr(unsafe.Pointer(&output)),
		)
		if int32(hr) < 0 {
			if uint32(hr) != dxgiErrNotFound {
				log.Warn("DXGI EnumOutputs failed", "index", i, "hr", fmt.Sprintf("0x%08X", uint32(hr)))
			}
			break
		}

		var desc dxgiOutputDesc
		hr, _, _ = syscall.SyscallN(
			comVtblFn(output, dxgiOutputGetDesc),
			output,
			uintptr(unsafe.Pointer(&desc)),
		)
		comRelease(output)

		if int32(hr) < 0 {
			log.Warn("DXGI GetDesc failed", "index", i, "hr", fmt.Sprintf("0x%08X", uint32(hr)))
			continue
		}
		if desc.AttachedToDesktop == 0 {
			continue
		}

		monitors = append(monitors, capture.MonitorInfo{
			Index:     i,
			Name:      syscall.UTF16ToString(desc.DeviceName[:]),
			Handle:    capture.MonitorHandle(desc.Monitor),
			Width:     int(desc.Right - desc.Left),
			Height:    int(desc.Bottom - desc.Top),
			X:         int(desc.Left),
			Y:         int(desc.Top),
			IsPrimary: desc.Left == 0 && desc.Top == 0,
		})
	}

	if len(monitors) == 0 {
		return nil, errors.New("no monitors found")
	}
	return monitors, nil
}
