// Package wgc implements capture.Platform on top of Windows.Graphics.Capture.
//
// Everything is called through raw COM/WinRT vtables with syscall.SyscallN;
// no cgo and no generated projections. The package builds on every OS so the
// CLI can link it, but New only succeeds on Windows 10 1803 or later.
package wgc

import (
	"fmt"

	"github.com/breeze-rmm/wincapture/internal/capture"
	"github.com/breeze-rmm/wincapture/internal/logging"
)

// Name is the backend name reported by Platform.Name.
const Name = "wgc"

var log = logging.L("wgc")

// DirectXPixelFormat values
const (
	dxgiFormatB8G8R8A8 = 87
)

func dxgiFormat(f capture.PixelFormat) (uint32, error) {
	switch f {
	case capture.PixelFormatBGRA8:
		return dxgiFormatB8G8R8A8, nil
	default:
		return 0, fmt.Errorf("unsupported pixel format %s", f)
	}
}

// packSize lays out a SizeInt32 the way the x64 and arm64 ABIs pass an
// 8-byte struct by value: Width in the low half, Height in the high half.
func packSize(s capture.Size) uint64 {
	return uint64(uint32(s.Width)) | uint64(uint32(s.Height))<<32
}

// readbackSize picks the region to copy out of a frame texture. The texture
// is allocated at the pool size, so a window that shrank after the pool was
// created only fills its top-left corner.
func readbackSize(texWidth, texHeight uint32, content capture.Size) (int, int) {
	w, h := int(texWidth), int(texHeight)
	if content.Empty() {
		return w, h
	}
	if int(content.Width) < w {
		w = int(content.Width)
	}
	if int(content.Height) < h {
		h = int(content.Height)
	}
	return w, h
}
