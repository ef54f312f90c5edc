//go:build windows

package wgc

import (
	"fmt"
	"sync"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	d3d11DLL = windows.NewLazySystemDLL("d3d11.dll")

	procD3D11CreateDevice                    = d3d11DLL.NewProc("D3D11CreateDevice")
	procCreateDirect3D11DeviceFromDXGIDevice = d3d11DLL.NewProc("CreateDirect3D11DeviceFromDXGIDevice")
)

const (
	d3dDriverTypeHardware = 1
	d3dDriverTypeWarp     = 5

	d3dFeatureLevel11_0 = 0xb000
	d3dFeatureLevel10_1 = 0xa100
	d3dFeatureLevel10_0 = 0xa000
	d3d11SDKVersion     = 7

	d3d11CreateDeviceBGRASupport = 0x20
)

// device is the shared rendering device: the D3D11 device and immediate
// context used for readback, plus the WinRT IDirect3DDevice the frame pool
// renders into.
type device struct {
	d3d     uintptr // ID3D11Device
	context uintptr // ID3D11DeviceContext
	winrt   uintptr // IDirect3DDevice

	// The immediate context is single-threaded; concurrent captures share it.
	ctxMu sync.Mutex
}

// createDevice builds a BGRA-capable hardware device, falling back to WARP on
// machines without a usable GPU (some VMs and Session 0).
func createDevice() (*device, error) {
	d3d, ctx, err := createD3D11Device(d3dDriverTypeHardware)
	if err != nil {
		log.Warn("hardware D3D11 device unavailable, falling back to WARP", "error", err)
		d3d, ctx, err = createD3D11Device(d3dDriverTypeWarp)
		if err != nil {
			return nil, err
		}
	}

	winrt, err := wrapDirect3DDevice(d3d)
	if err != nil {
		comRelease(ctx)
		comRelease(d3d)
		return nil, err
	}
	return &device{d3d: d3d, context: ctx, winrt: winrt}, nil
}

func createD3D11Device(driverType uintptr) (d3d, ctx uintptr, err error) {
	featureLevels := [...]uint32{d3dFeatureLevel11_0, d3dFeatureLevel10_1, d3dFeatureLevel10_0}
	var actualLevel uint32

	hr, _, _ := procD3D11CreateDevice.Call(
		0,          // pAdapter (NULL = default)
		driverType, // DriverType
		0,          // Software
		uintptr(d3d11CreateDeviceBGRASupport),
		uintptr(unsafe.Pointer(&featureLevels[0])),
		uintptr(len(featureLevels)),
		uintptr(d3d11SDKVersion),
		uintptr(unsafe.Pointer(&d3d)),
		uintptr(unsafe.Pointer(&actualLevel)),
		uintptr(unsafe.Pointer(&ctx)),
	)
	if int32(hr) < 0 {
		return 0, 0, fmt.Errorf("D3D11CreateDevice(driver=%d) failed: 0x%08X", driverType, uint32(hr))
	}
	log.Debug("D3D11 device created", "driverType", driverType, "featureLevel", fmt.Sprintf("0x%x", actualLevel))
	return d3d, ctx, nil
}

// wrapDirect3DDevice exposes a D3D11 device to WinRT as IDirect3DDevice.
func wrapDirect3DDevice(d3d uintptr) (uintptr, error) {
	dxgiDevice, err := queryInterface(d3d, iidIDXGIDevice)
	if err != nil {
		return 0, err
	}
	defer comRelease(dxgiDevice)

	var inspectable uintptr
	hr, _, _ := procCreateDirect3D11DeviceFromDXGIDevice.Call(
		dxgiDevice,
		uintptr(unsafe.Pointer(&inspectable)),
	)
	if int32(hr) < 0 {
		return 0, fmt.Errorf("CreateDirect3D11DeviceFromDXGIDevice failed: 0x%08X", uint32(hr))
	}
	defer comRelease(inspectable)

	return queryInterface(inspectable, iidDirect3DDevice)
}
