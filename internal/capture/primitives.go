// Package capture implements the capture session (C3): a continuously
// ticked pixel stream from a single target window, using BitBlt for
// on-screen windows and PrintWindow as the fallback for minimized or
// occluded ones.
package capture

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/southflowpeak/pin/pkg/types"
)

var (
	user32 = windows.NewLazyDLL("user32.dll")
	gdi32  = windows.NewLazyDLL("gdi32.dll")

	procGetDC            = user32.NewProc("GetDC")
	procGetWindowDC      = user32.NewProc("GetWindowDC")
	procReleaseDC        = user32.NewProc("ReleaseDC")
	procPrintWindow      = user32.NewProc("PrintWindow")
	procIsIconic         = user32.NewProc("IsIconic")
	procGetClientRect    = user32.NewProc("GetClientRect")

	procCreateCompatibleDC     = gdi32.NewProc("CreateCompatibleDC")
	procSelectObject           = gdi32.NewProc("SelectObject")
	procBitBlt                 = gdi32.NewProc("BitBlt")
	procDeleteDC                = gdi32.NewProc("DeleteDC")
	procDeleteObject           = gdi32.NewProc("DeleteObject")
	procCreateDIBSection       = gdi32.NewProc("CreateDIBSection")
)

const (
	srcCopy        = 0x00CC0020
	dibRGBColors   = 0
	biRGB          = 0
	pwClientOnly   = 1
	pwRenderFullContent = 2
)

type rect struct {
	Left, Top, Right, Bottom int32
}

type bitmapInfoHeader struct {
	Size          uint32
	Width         int32
	Height        int32
	Planes        uint16
	BitCount      uint16
	Compression   uint32
	SizeImage     uint32
	XPelsPerMeter int32
	YPelsPerMeter int32
	ClrUsed       uint32
	ClrImportant  uint32
}

type bitmapInfo struct {
	Header bitmapInfoHeader
	Colors [1]uint32
}

// captureBitBlt copies pixels from the window's own device context,
// the method for a window that is actually on screen.
func captureBitBlt(handle uintptr, width, height int) (*types.FrameBuffer, error) {
	hdc, _, _ := procGetWindowDC.Call(handle)
	if hdc == 0 {
		return nil, fmt.Errorf("GetWindowDC failed")
	}
	defer procReleaseDC.Call(handle, hdc)

	return blitInto(hdc, func(memDC uintptr) (uintptr, uintptr, uintptr) {
		return procBitBlt.Call(memDC, 0, 0, uintptr(width), uintptr(height), hdc, 0, 0, srcCopy)
	}, width, height)
}

// capturePrintWindow asks the window to render itself into our DC,
// the fallback for windows BitBlt can't see (minimized or cloaked).
func capturePrintWindow(handle uintptr, width, height int) (*types.FrameBuffer, error) {
	screenDC, _, _ := procGetDC.Call(0)
	if screenDC == 0 {
		return nil, fmt.Errorf("GetDC failed")
	}
	defer procReleaseDC.Call(0, screenDC)

	return blitInto(screenDC, func(memDC uintptr) (uintptr, uintptr, uintptr) {
		return procPrintWindow.Call(handle, memDC, pwRenderFullContent)
	}, width, height)
}

func blitInto(refDC uintptr, paint func(memDC uintptr) (uintptr, uintptr, uintptr), width, height int) (*types.FrameBuffer, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid capture dimensions: %dx%d", width, height)
	}

	memDC, _, _ := procCreateCompatibleDC.Call(refDC)
	if memDC == 0 {
		return nil, fmt.Errorf("CreateCompatibleDC failed")
	}
	defer procDeleteDC.Call(memDC)

	var bmi bitmapInfo
	bmi.Header.Size = uint32(unsafe.Sizeof(bmi.Header))
	bmi.Header.Width = int32(width)
	bmi.Header.Height = -int32(height) // top-down
	bmi.Header.Planes = 1
	bmi.Header.BitCount = 32
	bmi.Header.Compression = biRGB

	var pBits uintptr
	bitmap, _, _ := procCreateDIBSection.Call(memDC, uintptr(unsafe.Pointer(&bmi)), dibRGBColors, uintptr(unsafe.Pointer(&pBits)), 0, 0)
	if bitmap == 0 {
		return nil, fmt.Errorf("CreateDIBSection failed")
	}
	defer procDeleteObject.Call(bitmap)

	oldBitmap, _, _ := procSelectObject.Call(memDC, bitmap)
	defer procSelectObject.Call(memDC, oldBitmap)

	ret, _, _ := paint(memDC)
	if ret == 0 {
		return nil, fmt.Errorf("window paint call failed")
	}

	pixelCount := width * height * 4
	data := make([]byte, pixelCount)
	if pBits != 0 {
		copy(data, (*[1 << 30]byte)(unsafe.Pointer(pBits))[:pixelCount:pixelCount])
	}

	return &types.FrameBuffer{
		Data:   data,
		Width:  width,
		Height: height,
		Stride: width * 4,
	}, nil
}

func isMinimized(handle uintptr) bool {
	ret, _, _ := procIsIconic.Call(handle)
	return ret != 0
}

func clientSize(handle uintptr) (int, int) {
	var r rect
	procGetClientRect.Call(handle, uintptr(unsafe.Pointer(&r)))
	return int(r.Right), int(r.Bottom)
}
