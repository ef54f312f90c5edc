//go:build windows

package wgc

import (
	"fmt"
	"syscall"
	"unsafe"

	"github.com/breeze-rmm/wincapture/internal/capture"
)

const (
	d3d11UsageStaging  = 3
	d3d11CPUAccessRead = 0x20000
	d3d11MapRead       = 1
)

// d3d11Texture2DDesc matches D3D11_TEXTURE2D_DESC (44 bytes).
type d3d11Texture2DDesc struct {
	Width          uint32
	Height         uint32
	MipLevels      uint32
	ArraySize      uint32
	Format         uint32
	SampleCount    uint32 // DXGI_SAMPLE_DESC.Count
	SampleQuality  uint32 // DXGI_SAMPLE_DESC.Quality
	Usage          uint32
	BindFlags      uint32
	CPUAccessFlags uint32
	MiscFlags      uint32
}

// d3d11MappedSubresource matches D3D11_MAPPED_SUBRESOURCE.
type d3d11MappedSubresource struct {
	PData      uintptr
	RowPitch   uint32
	DepthPitch uint32
}

// readFrame copies the frame's GPU surface into a CPU bitmap through a
// staging texture.
func readFrame(dev *device, f *frame, alpha capture.AlphaMode) (*capture.Bitmap, error) {
	var surface uintptr
	if _, err := comCall(f.ptr, vtblFrameGetSurface, uintptr(unsafe.Pointer(&surface))); err != nil {
		return nil, fmt.Errorf("Direct3D11CaptureFrame.Surface: %w", err)
	}
	defer comRelease(surface)

	access, err := queryInterface(surface, iidDxgiInterfaceAccess)
	if err != nil {
		return nil, err
	}
	defer comRelease(access)

	var texture uintptr
	if _, err := comCall(access, vtblDxgiAccessGetInterface,
		uintptr(unsafe.Pointer(iidID3D11Texture2D)),
		uintptr(unsafe.Pointer(&texture)),
	); err != nil {
		return nil, fmt.Errorf("IDirect3DDxgiInterfaceAccess.GetInterface: %w", err)
	}
	defer comRelease(texture)

	var desc d3d11Texture2DDesc
	comCallVoid(texture, d3d11Texture2DGetDesc, uintptr(unsafe.Pointer(&desc)))
	if desc.Format != dxgiFormatB8G8R8A8 {
		return nil, fmt.Errorf("unexpected surface format %d", desc.Format)
	}

	stagingDesc := desc
	stagingDesc.MipLevels = 1
	stagingDesc.ArraySize = 1
	stagingDesc.SampleCount = 1
	stagingDesc.SampleQuality = 0
	stagingDesc.Usage = d3d11UsageStaging
	stagingDesc.BindFlags = 0
	stagingDesc.CPUAccessFlags = d3d11CPUAccessRead
	stagingDesc.MiscFlags = 0

	var staging uintptr
	if _, err := comCall(dev.d3d, d3d11DeviceCreateTexture2D,
		uintptr(unsafe.Pointer(&stagingDesc)),
		0, // pInitialData
		uintptr(unsafe.Pointer(&staging)),
	); err != nil {
		return nil, fmt.Errorf("CreateTexture2D staging: %w", err)
	}
	defer comRelease(staging)

	width, height := readbackSize(desc.Width, desc.Height, f.size)

	dev.ctxMu.Lock()
	defer dev.ctxMu.Unlock()

	comCallVoid(dev.context, d3d11CtxCopyResource, staging, texture)

	var mapped d3d11MappedSubresource
	hr, _, _ := syscall.SyscallN(
		comVtblFn(dev.context, d3d11CtxMap),
		dev.context,
		staging,
		0, // Subresource
		d3d11MapRead,
		0, // MapFlags
		uintptr(unsafe.Pointer(&mapped)),
	)
	if int32(hr) < 0 {
		return nil, fmt.Errorf("Map staging texture: 0x%08X", uint32(hr))
	}
	defer comCallVoid(dev.context, d3d11CtxUnmap, staging, 0)
	if mapped.PData == 0 || width <= 0 || height <= 0 {
		return nil, fmt.Errorf("mapped staging texture is empty (%dx%d)", width, height)
	}

	rowPitch := int(mapped.RowPitch)
	src := unsafe.Slice((*byte)(unsafe.Pointer(mapped.PData)), (height-1)*rowPitch+width*4)
	return capture.CopyBGRA(width, height, src, rowPitch, alpha)
}
