// Package overlay implements the overlay window (C4): a pair of
// borderless, layered, topmost windows — a mirror window that displays
// the frames a capture session delivers, and a small always-clickable
// unpin button window anchored to its top-left corner — owning a
// dedicated message-loop OS thread the way a Win32 overlay must.
package overlay

import (
	"fmt"
	"runtime"
	"sync"
	"syscall"
	"time"
	"unsafe"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"
	"golang.org/x/sys/windows"

	"github.com/southflowpeak/pin/pkg/types"
)

var (
	user32 = windows.NewLazyDLL("user32.dll")
	gdi32  = windows.NewLazyDLL("gdi32.dll")
	dwmapi = windows.NewLazyDLL("dwmapi.dll")

	procRegisterClassExW           = user32.NewProc("RegisterClassExW")
	procCreateWindowExW            = user32.NewProc("CreateWindowExW")
	procDestroyWindow              = user32.NewProc("DestroyWindow")
	procDefWindowProcW             = user32.NewProc("DefWindowProcW")
	procShowWindow                 = user32.NewProc("ShowWindow")
	procGetMessageW                = user32.NewProc("GetMessageW")
	procTranslateMessage           = user32.NewProc("TranslateMessage")
	procDispatchMessageW           = user32.NewProc("DispatchMessageW")
	procPostMessageW               = user32.NewProc("PostMessageW")
	procPostQuitMessage            = user32.NewProc("PostQuitMessage")
	procGetWindowLongPtrW          = user32.NewProc("GetWindowLongPtrW")
	procSetWindowLongPtrW          = user32.NewProc("SetWindowLongPtrW")
	procSetWindowPos               = user32.NewProc("SetWindowPos")
	procSetLayeredWindowAttributes = user32.NewProc("SetLayeredWindowAttributes")
	procGetModuleHandleW           = windows.NewLazyDLL("kernel32.dll").NewProc("GetModuleHandleW")
	procBeginPaint                 = user32.NewProc("BeginPaint")
	procEndPaint                   = user32.NewProc("EndPaint")
	procInvalidateRect             = user32.NewProc("InvalidateRect")
	procFillRect                   = user32.NewProc("FillRect")
	procCreateSolidBrush            = gdi32.NewProc("CreateSolidBrush")
	procDeleteObject                = gdi32.NewProc("DeleteObject")
	procStretchDIBits                = gdi32.NewProc("StretchDIBits")
	procDwmExtendFrameIntoClientArea = dwmapi.NewProc("DwmExtendFrameIntoClientArea")
	sendMessageW                     = user32.NewProc("SendMessageW")
)

const (
	wsPopup = 0x80000000

	wsExTopmost     = 0x00000008
	wsExToolWindow  = 0x00000080
	wsExNoActivate  = 0x08000000
	wsExLayered     = 0x00080000
	wsExTransparent = 0x00000020

	gwlExStyle = ^uintptr(19) // -20

	swShow = 5
	swHide = 0

	swpNoSize     = 0x0001
	swpNoMove     = 0x0002
	swpNoActivate = 0x0010
	swpShowWindow = 0x0040

	hwndTopmost = ^uintptr(0)

	lwaAlpha = 0x00000002

	srcCopy      = 0x00CC0020
	dibRGBColors = 0
	biRGB        = 0

	wmDestroy   = 0x0002
	wmPaint     = 0x000F
	wmLButtonUp = 0x0202
	wmUser      = 0x0400

	wmPinSetFrame     = wmUser + 1
	wmPinShow         = wmUser + 2
	wmPinHide         = wmUser + 3
	wmPinDestroy      = wmUser + 4
	wmPinClickThrough = wmUser + 5
	wmPinGeometry     = wmUser + 6
	wmPinOpacity      = wmUser + 7
	wmPinMirrorHidden = wmUser + 9

	// unpinSize is the fixed square dimension of the unpin button
	// window; unpinOffsetX/Y anchor it to the mirror's top-left corner.
	unpinSize    = 26
	unpinOffsetX = 6
	unpinOffsetY = 6
)

type wndClassExW struct {
	CbSize        uint32
	Style         uint32
	LpfnWndProc   uintptr
	CnClsExtra    int32
	CbWndExtra    int32
	HInstance     uintptr
	HIcon         uintptr
	HCursor       uintptr
	HbrBackground uintptr
	LpszMenuName  *uint16
	LpszClassName *uint16
	HIconSm       uintptr
}

type msgT struct {
	Hwnd    uintptr
	Message uint32
	WParam  uintptr
	LParam  uintptr
	Time    uint32
	PtX     int32
	PtY     int32
}

type marginsT struct {
	CxLeftWidth, CxRightWidth, CyTopHeight, CyBottomHeight int32
}

type rectT struct {
	Left, Top, Right, Bottom int32
}

type paintStructT struct {
	Hdc                                                  uintptr
	FErase                                               int32
	RcPaintLeft, RcPaintTop, RcPaintRight, RcPaintBottom int32
	FRestore                                             int32
	FIncUpdate                                            int32
	Reserved                                              [32]byte
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

// Manager owns the mirror window and its companion unpin button window.
// One Manager exists per pin; creating a second while the first is open
// is the caller's mistake, not this package's job to prevent.
type Manager struct {
	logger  *zap.Logger
	onUnpin func()

	mu          sync.RWMutex
	mirrorHwnd  uintptr
	unpinHwnd   uintptr
	frame       *types.FrameBuffer
	clientW     int
	clientH     int
	mirrorHide  bool
	lastOpacity types.OverlayOpacity

	ready chan struct{}
	done  chan struct{}
}

// NewManager spawns the overlay's dedicated message-loop thread,
// creates both windows, and waits for them to be ready.
func NewManager(logger *zap.Logger, onUnpin func()) (*Manager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Manager{
		logger:      logger,
		onUnpin:     onUnpin,
		ready:       make(chan struct{}),
		done:        make(chan struct{}),
		lastOpacity: types.DefaultOpacity,
	}

	go m.overlayThread()

	select {
	case <-m.ready:
	case <-time.After(5 * time.Second):
		return nil, fmt.Errorf("overlay window thread init timed out")
	}
	if m.mirrorHwnd == 0 || m.unpinHwnd == 0 {
		return nil, fmt.Errorf("overlay window creation failed")
	}
	return m, nil
}

func (m *Manager) overlayThread() {
	runtime.LockOSThread()
	defer close(m.done)

	hInstance, _, _ := procGetModuleHandleW.Call(0)

	mirrorClass := windows.StringToUTF16Ptr("PinMirrorWindow")
	mirrorProc := syscall.NewCallback(m.mirrorWndProc)
	var mwc wndClassExW
	mwc.CbSize = uint32(unsafe.Sizeof(mwc))
	mwc.LpfnWndProc = mirrorProc
	mwc.HInstance = hInstance
	mwc.LpszClassName = mirrorClass
	procRegisterClassExW.Call(uintptr(unsafe.Pointer(&mwc)))

	unpinClass := windows.StringToUTF16Ptr("PinUnpinButton")
	unpinProc := syscall.NewCallback(m.unpinWndProc)
	var uwc wndClassExW
	uwc.CbSize = uint32(unsafe.Sizeof(uwc))
	uwc.LpfnWndProc = unpinProc
	uwc.HInstance = hInstance
	uwc.LpszClassName = unpinClass
	procRegisterClassExW.Call(uintptr(unsafe.Pointer(&uwc)))

	mirrorExStyle := uintptr(wsExTopmost | wsExToolWindow | wsExNoActivate | wsExLayered)
	mirrorHwnd, _, _ := procCreateWindowExW.Call(
		mirrorExStyle,
		uintptr(unsafe.Pointer(mirrorClass)),
		uintptr(unsafe.Pointer(windows.StringToUTF16Ptr(""))),
		wsPopup,
		0, 0, 1, 1,
		0, 0, hInstance, 0,
	)
	if mirrorHwnd == 0 {
		m.logger.Error("overlay mirror CreateWindowExW failed")
		close(m.ready)
		return
	}

	// The unpin button never carries WS_EX_TRANSPARENT: it must stay
	// clickable in every state the overlay exists, independent of the
	// mirror's hidden flag.
	unpinExStyle := uintptr(wsExTopmost | wsExToolWindow | wsExNoActivate | wsExLayered)
	unpinHwnd, _, _ := procCreateWindowExW.Call(
		unpinExStyle,
		uintptr(unsafe.Pointer(unpinClass)),
		uintptr(unsafe.Pointer(windows.StringToUTF16Ptr(""))),
		wsPopup,
		0, 0, unpinSize, unpinSize,
		0, 0, hInstance, 0,
	)
	if unpinHwnd == 0 {
		m.logger.Error("overlay unpin CreateWindowExW failed")
		procDestroyWindow.Call(mirrorHwnd)
		close(m.ready)
		return
	}

	margins := marginsT{-1, -1, -1, -1}
	procDwmExtendFrameIntoClientArea.Call(mirrorHwnd, uintptr(unsafe.Pointer(&margins)))
	procSetLayeredWindowAttributes.Call(mirrorHwnd, 0, 255, lwaAlpha)
	procSetLayeredWindowAttributes.Call(unpinHwnd, 0, 255, lwaAlpha)

	m.mu.Lock()
	m.mirrorHwnd = mirrorHwnd
	m.unpinHwnd = unpinHwnd
	m.mu.Unlock()

	close(m.ready)

	var msg msgT
	for {
		ret, _, _ := procGetMessageW.Call(uintptr(unsafe.Pointer(&msg)), 0, 0, 0)
		if ret == 0 || ret == ^uintptr(0) {
			return
		}
		procTranslateMessage.Call(uintptr(unsafe.Pointer(&msg)))
		procDispatchMessageW.Call(uintptr(unsafe.Pointer(&msg)))
	}
}

// unpinRectFor computes the unpin button's screen rect anchored to the
// mirror window's top-left corner.
func unpinRectFor(mirror rectT) rectT {
	left := mirror.Left + unpinOffsetX
	top := mirror.Top + unpinOffsetY
	return rectT{Left: left, Top: top, Right: left + unpinSize, Bottom: top + unpinSize}
}

func (m *Manager) mirrorWndProc(hwnd, msg, wparam, lparam uintptr) uintptr {
	switch msg {
	case wmPinShow:
		procShowWindow.Call(hwnd, swShow)
		procSetWindowPos.Call(hwnd, hwndTopmost, 0, 0, 0, 0, swpNoMove|swpNoSize|swpNoActivate|swpShowWindow)
		return 0

	case wmPinHide:
		procShowWindow.Call(hwnd, swHide)
		return 0

	case wmPinGeometry:
		r := (*rectT)(unsafe.Pointer(lparam))
		procSetWindowPos.Call(hwnd, hwndTopmost,
			uintptr(r.Left), uintptr(r.Top),
			uintptr(r.Right-r.Left), uintptr(r.Bottom-r.Top),
			swpNoActivate|swpShowWindow)
		m.mu.Lock()
		m.clientW = int(r.Right - r.Left)
		m.clientH = int(r.Bottom - r.Top)
		unpinHwnd := m.unpinHwnd
		m.mu.Unlock()

		// The unpin button window is repositioned alongside the mirror
		// on every geometry sync sample, staying anchored to its
		// top-left corner and above it in z-order.
		if unpinHwnd != 0 {
			ur := unpinRectFor(*r)
			procSetWindowPos.Call(unpinHwnd, hwndTopmost,
				uintptr(ur.Left), uintptr(ur.Top),
				uintptr(unpinSize), uintptr(unpinSize),
				swpNoActivate|swpShowWindow)
		}
		return 0

	case wmPinOpacity:
		alpha := byte(wparam)
		procSetLayeredWindowAttributes.Call(hwnd, 0, uintptr(alpha), lwaAlpha)
		return 0

	case wmPinClickThrough:
		style, _, _ := procGetWindowLongPtrW.Call(hwnd, uintptr(gwlExStyle))
		if wparam != 0 {
			style |= wsExTransparent
		} else {
			style &^= wsExTransparent
		}
		procSetWindowLongPtrW.Call(hwnd, uintptr(gwlExStyle), style)
		return 0

	case wmPinMirrorHidden:
		m.mu.Lock()
		m.mirrorHide = wparam != 0
		m.mu.Unlock()
		procInvalidateRect.Call(hwnd, 0, 1)
		return 0

	case wmPinSetFrame:
		procInvalidateRect.Call(hwnd, 0, 0)
		return 0

	case wmPaint:
		m.paintMirror(hwnd)
		return 0

	case wmPinDestroy:
		procDestroyWindow.Call(hwnd)
		return 0

	case wmDestroy:
		return 0
	}

	ret, _, _ := procDefWindowProcW.Call(hwnd, msg, wparam, lparam)
	return ret
}

func (m *Manager) unpinWndProc(hwnd, msg, wparam, lparam uintptr) uintptr {
	switch msg {
	case wmPinShow:
		procShowWindow.Call(hwnd, swShow)
		procSetWindowPos.Call(hwnd, hwndTopmost, 0, 0, 0, 0, swpNoMove|swpNoSize|swpNoActivate|swpShowWindow)
		return 0

	case wmPinHide:
		procShowWindow.Call(hwnd, swHide)
		return 0

	case wmLButtonUp:
		if m.onUnpin != nil {
			go m.onUnpin()
		}
		return 0

	case wmPaint:
		m.paintUnpin(hwnd)
		return 0

	case wmPinDestroy:
		procDestroyWindow.Call(hwnd)
		return 0

	case wmDestroy:
		procPostQuitMessage.Call(0)
		return 0
	}

	ret, _, _ := procDefWindowProcW.Call(hwnd, msg, wparam, lparam)
	return ret
}

func (m *Manager) paintMirror(hwnd uintptr) {
	var ps paintStructT
	hdc, _, _ := procBeginPaint.Call(hwnd, uintptr(unsafe.Pointer(&ps)))
	defer procEndPaint.Call(hwnd, uintptr(unsafe.Pointer(&ps)))
	if hdc == 0 {
		return
	}

	m.mu.RLock()
	frame := m.frame
	w, h := m.clientW, m.clientH
	hidden := m.mirrorHide
	m.mu.RUnlock()

	if hidden || frame == nil || w <= 0 || h <= 0 {
		return
	}

	src := frame
	if src.Width != w || src.Height != h {
		src = resample(src, w, h)
	}
	var bmi bitmapInfo
	bmi.Header.Size = uint32(unsafe.Sizeof(bmi.Header))
	bmi.Header.Width = int32(src.Width)
	bmi.Header.Height = -int32(src.Height)
	bmi.Header.Planes = 1
	bmi.Header.BitCount = 32
	bmi.Header.Compression = biRGB

	procStretchDIBits.Call(
		hdc,
		0, 0, uintptr(w), uintptr(h),
		0, 0, uintptr(src.Width), uintptr(src.Height),
		uintptr(unsafe.Pointer(&src.Data[0])),
		uintptr(unsafe.Pointer(&bmi)),
		dibRGBColors, srcCopy,
	)
}

func (m *Manager) paintUnpin(hwnd uintptr) {
	var ps paintStructT
	hdc, _, _ := procBeginPaint.Call(hwnd, uintptr(unsafe.Pointer(&ps)))
	defer procEndPaint.Call(hwnd, uintptr(unsafe.Pointer(&ps)))
	if hdc == 0 {
		return
	}
	badge := rectT{Left: 0, Top: 0, Right: unpinSize, Bottom: unpinSize}
	brush, _, _ := procCreateSolidBrush.Call(0x2A2A2A)
	procFillRect.Call(hdc, uintptr(unsafe.Pointer(&badge)), brush)
	procDeleteObject.Call(brush)
}

// resample rescales a BGRA32 frame to the overlay's current client
// size when a geometry change or display-scale change leaves the last
// delivered frame mismatched.
func resample(fb *types.FrameBuffer, w, h int) *types.FrameBuffer {
	src := bgraToImage(fb)
	dst := imaging.Resize(src, w, h, imaging.Lanczos)
	return imageToBGRA(dst)
}

// SetFrame stores the latest captured frame and requests a repaint.
func (m *Manager) SetFrame(fb types.FrameBuffer) {
	m.mu.Lock()
	m.frame = &fb
	hwnd := m.mirrorHwnd
	m.mu.Unlock()
	if hwnd != 0 {
		procPostMessageW.Call(hwnd, wmPinSetFrame, 0, 0)
	}
}

// SetGeometry repositions and resizes the mirror window, and the
// companion unpin button window alongside it.
func (m *Manager) SetGeometry(bounds types.Rectangle) {
	m.mu.RLock()
	hwnd := m.mirrorHwnd
	m.mu.RUnlock()
	if hwnd == 0 {
		return
	}
	r := rectT{
		Left:   int32(bounds.X),
		Top:    int32(bounds.Y),
		Right:  int32(bounds.X + bounds.Width),
		Bottom: int32(bounds.Y + bounds.Height),
	}
	sendMessageW.Call(hwnd, wmPinGeometry, 0, uintptr(unsafe.Pointer(&r)))
}

// SetOpacity applies the persisted opacity preference as the mirror
// window's layered alpha value, and remembers it so a later
// SetMirrorHidden(false) restores exactly this value rather than full
// opacity. The unpin button is never dimmed. Has no visible effect
// while the mirror is currently hidden for hover — the hidden alpha of
// 0 stays in force until shown again.
func (m *Manager) SetOpacity(op types.OverlayOpacity) {
	op = op.Clamp()
	m.mu.Lock()
	m.lastOpacity = op
	hwnd := m.mirrorHwnd
	hidden := m.mirrorHide
	m.mu.Unlock()
	if hwnd == 0 || hidden {
		return
	}
	procPostMessageW.Call(hwnd, wmPinOpacity, uintptr(op*255), 0)
}

// SetClickThrough toggles WS_EX_TRANSPARENT on the mirror window only,
// the Win32 analogue of ignoresMouseEvents. The unpin button window
// never ignores pointer events, in every state where the overlay
// exists, independent of this flag.
func (m *Manager) SetClickThrough(enabled bool) {
	m.mu.RLock()
	hwnd := m.mirrorHwnd
	m.mu.RUnlock()
	if hwnd == 0 {
		return
	}
	var w uintptr
	if enabled {
		w = 1
	}
	procPostMessageW.Call(hwnd, wmPinClickThrough, w, 0)
}

// SetMirrorHidden suppresses painting the captured frame while keeping
// the mirror window (and the still-clickable
// unpin button) alive, so the real target window underneath becomes
// visible again without destroying the pin. A layered window keeps
// showing its last painted bitmap at its last alpha until something
// changes that alpha — skipping the paint alone does not make it
// transparent — so this also drives the layered-window alpha to 0 on
// hide and restores the persisted opacity on show.
func (m *Manager) SetMirrorHidden(hidden bool) {
	m.mu.RLock()
	hwnd := m.mirrorHwnd
	opacity := m.lastOpacity
	m.mu.RUnlock()
	if hwnd == 0 {
		return
	}
	var w uintptr
	if hidden {
		w = 1
	}
	procPostMessageW.Call(hwnd, wmPinMirrorHidden, w, 0)

	alpha := uintptr(opacity * 255)
	if hidden {
		alpha = 0
	}
	procPostMessageW.Call(hwnd, wmPinOpacity, alpha, 0)
}

// Show makes both the mirror and unpin button windows visible.
func (m *Manager) Show() {
	m.mu.RLock()
	mirror, unpin := m.mirrorHwnd, m.unpinHwnd
	m.mu.RUnlock()
	if mirror != 0 {
		procPostMessageW.Call(mirror, wmPinShow, 0, 0)
	}
	if unpin != 0 {
		procPostMessageW.Call(unpin, wmPinShow, 0, 0)
	}
}

// Bounds returns the mirror window's last known client size.
func (m *Manager) Bounds() (width, height int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.clientW, m.clientH
}

// Close orders both windows out (hides them) before destroying either,
// then waits for the shared message-loop thread to exit.
func (m *Manager) Close() {
	m.mu.RLock()
	mirror, unpin := m.mirrorHwnd, m.unpinHwnd
	m.mu.RUnlock()

	if mirror != 0 {
		procPostMessageW.Call(mirror, wmPinHide, 0, 0)
	}
	if unpin != 0 {
		procPostMessageW.Call(unpin, wmPinHide, 0, 0)
	}
	if mirror != 0 {
		procPostMessageW.Call(mirror, wmPinDestroy, 0, 0)
	}
	if unpin != 0 {
		// Destroying the unpin window last posts WM_QUIT, ending the
		// shared message loop only once the mirror is already gone.
		procPostMessageW.Call(unpin, wmPinDestroy, 0, 0)
	}
	<-m.done
}
