//go:build windows

package wgc

import (
	"fmt"
	"syscall"
	"unsafe"

	"github.com/go-ole/go-ole"
)

const (
	sOK          = 0x00000000
	sFalse       = 0x00000001
	eNoInterface = 0x80004002

	rpcEChangedMode = 0x80010106
)

// comCall invokes a COM vtable method at the given index.
// obj is a pointer to a COM interface (pointer to pointer to vtable).
func comCall(obj uintptr, vtableIdx int, args ...uintptr) (uintptr, error) {
	if obj == 0 {
		return 0, fmt.Errorf("COM vtable[%d]: nil interface", vtableIdx)
	}
	allArgs := make([]uintptr, 0, 1+len(args))
	allArgs = append(allArgs, obj)
	allArgs = append(allArgs, args...)
	ret, _, _ := syscall.SyscallN(comVtblFn(obj, vtableIdx), allArgs...)
	if int32(ret) < 0 {
		return ret, fmt.Errorf("COM vtable[%d] HRESULT 0x%08X: %w", vtableIdx, uint32(ret), ole.NewError(ret))
	}
	return ret, nil
}

// comCallVoid invokes a vtable method that returns nothing.
func comCallVoid(obj uintptr, vtableIdx int, args ...uintptr) {
	allArgs := make([]uintptr, 0, 1+len(args))
	allArgs = append(allArgs, obj)
	allArgs = append(allArgs, args...)
	syscall.SyscallN(comVtblFn(obj, vtableIdx), allArgs...)
}

func comVtblFn(obj uintptr, idx int) uintptr {
	vtablePtr := *(*uintptr)(unsafe.Pointer(obj))
	return *(*uintptr)(unsafe.Pointer(vtablePtr + uintptr(idx)*unsafe.Sizeof(uintptr(0))))
}

// comRelease calls IUnknown::Release (vtable index 2).
func comRelease(obj uintptr) {
	if obj != 0 {
		syscall.SyscallN(comVtblFn(obj, vtblRelease), obj)
	}
}

func queryInterface(obj uintptr, iid *ole.GUID) (uintptr, error) {
	var out uintptr
	if _, err := comCall(obj, vtblQueryInterface,
		uintptr(unsafe.Pointer(iid)),
		uintptr(unsafe.Pointer(&out)),
	); err != nil {
		return 0, fmt.Errorf("QueryInterface %s: %w", iid, err)
	}
	return out, nil
}

// closeWinRT calls IClosable::Close and then drops the reference.
func closeWinRT(obj uintptr) error {
	if obj == 0 {
		return nil
	}
	defer comRelease(obj)
	closable, err := queryInterface(obj, iidClosable)
	if err != nil {
		return err
	}
	defer comRelease(closable)
	_, err = comCall(closable, vtblClosableClose)
	return err
}

// activationFactory returns the activation factory of a WinRT runtime class
// as the requested interface.
func activationFactory(class string, iid *ole.GUID) (uintptr, error) {
	ins, err := ole.RoGetActivationFactory(class, iid)
	if err != nil {
		return 0, fmt.Errorf("RoGetActivationFactory %s: %w", class, err)
	}
	return uintptr(unsafe.Pointer(ins)), nil
}

// --- GUIDs ---

var (
	iidGraphicsCaptureItemInterop = ole.NewGUID("{3628E81B-3CAC-4C60-B7F4-23CE0E0C3356}")
	iidGraphicsCaptureItem        = ole.NewGUID("{79C3F95B-31F7-4EC2-A464-632EF5D30760}")
	iidFramePoolStatics2          = ole.NewGUID("{589B103F-6BBC-5DF5-A991-02E28B3B66D5}")
	iidGraphicsCaptureSession3    = ole.NewGUID("{F2CDD966-22AE-5EA1-9596-3A289344C3BE}")
	iidSessionStatics             = ole.NewGUID("{2224A540-5974-49AA-B232-0882536F4CB5}")
	iidClosable                   = ole.NewGUID("{30D5A829-7FA4-4026-83BB-D75BAE4EA99E}")
	iidDirect3DDevice             = ole.NewGUID("{A37624AB-8D5F-4650-9D3E-9EAE3D9BC670}")
	iidDxgiInterfaceAccess        = ole.NewGUID("{A9B3D012-3DF2-4EE3-B8D1-8695F457D3C1}")
	iidFrameArrivedHandler        = ole.NewGUID("{51A947F7-79CF-5A3E-A3A5-1289CFA6DFE8}")
	iidAgileObject                = ole.NewGUID("{94EA2B94-E9CC-49E0-C0FF-EE64CA8F5B90}")

	iidIDXGIDevice     = ole.NewGUID("{54EC77FA-1377-44E6-8C32-88FD5F44C84C}")
	iidID3D11Texture2D = ole.NewGUID("{6F15AAF2-D208-4E89-9AB4-489535D34F9C}")
)

const (
	classGraphicsCaptureItem    = "Windows.Graphics.Capture.GraphicsCaptureItem"
	classGraphicsCaptureSession = "Windows.Graphics.Capture.GraphicsCaptureSession"
	classFramePool              = "Windows.Graphics.Capture.Direct3D11CaptureFramePool"
)

// --- vtable index constants ---
//
// IUnknown:     0=QueryInterface, 1=AddRef, 2=Release
// IInspectable: 3..5 (GetIids, GetRuntimeClassName, GetTrustLevel), so WinRT
//               interface methods start at 6.

const (
	vtblQueryInterface = 0
	vtblAddRef         = 1
	vtblRelease        = 2

	// IGraphicsCaptureItemInterop (plain IUnknown)
	vtblInteropCreateForWindow  = 3
	vtblInteropCreateForMonitor = 4

	vtblItemGetSize = 7 // IGraphicsCaptureItem: 6=get_DisplayName, 7=get_Size

	vtblFramePoolCreateFreeThreaded = 6 // IDirect3D11CaptureFramePoolStatics2

	// IDirect3D11CaptureFramePool
	vtblFramePoolTryGetNextFrame      = 7
	vtblFramePoolAddFrameArrived      = 8
	vtblFramePoolRemoveFrameArrived   = 9
	vtblFramePoolCreateCaptureSession = 10

	vtblSessionStartCapture       = 6 // IGraphicsCaptureSession
	vtblSessionPutBorderRequired  = 7 // IGraphicsCaptureSession3: 6=get, 7=put
	vtblSessionStaticsIsSupported = 6

	// IDirect3D11CaptureFrame
	vtblFrameGetSurface     = 6
	vtblFrameGetContentSize = 8

	vtblClosableClose = 6

	vtblDxgiAccessGetInterface = 3 // IDirect3DDxgiInterfaceAccess (plain IUnknown)

	d3d11DeviceCreateTexture2D = 5  // ID3D11Device
	d3d11Texture2DGetDesc      = 10 // ID3D11Texture2D
	d3d11CtxMap                = 14 // ID3D11DeviceContext
	d3d11CtxUnmap              = 15 // ID3D11DeviceContext
	d3d11CtxCopyResource       = 47 // ID3D11DeviceContext

	dxgiDeviceGetAdapter   = 7 // IDXGIDevice (after IUnknown+IDXGIObject)
	dxgiAdapterEnumOutputs = 7 // IDXGIAdapter
	dxgiOutputGetDesc      = 7 // IDXGIOutput
)
