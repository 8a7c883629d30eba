// Package window implements the on-screen window enumerator (C2): the
// candidate list the picker shows, frontmost-window resolution for
// "pin what's active," and process-grouped listing for a menu-bar
// picker variant.
package window

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/southflowpeak/pin/pkg/types"
)

var (
	user32   = windows.NewLazyDLL("user32.dll")
	dwmapi   = windows.NewLazyDLL("dwmapi.dll")
	kernel32 = windows.NewLazyDLL("kernel32.dll")

	procEnumWindows              = user32.NewProc("EnumWindows")
	procGetWindowTextW           = user32.NewProc("GetWindowTextW")
	procGetWindowTextLengthW     = user32.NewProc("GetWindowTextLengthW")
	procGetClassNameW            = user32.NewProc("GetClassNameW")
	procGetWindowRect            = user32.NewProc("GetWindowRect")
	procGetWindowThreadProcessId = user32.NewProc("GetWindowThreadProcessId")
	procIsWindowVisible          = user32.NewProc("IsWindowVisible")
	procIsIconic                 = user32.NewProc("IsIconic")
	procGetForegroundWindow      = user32.NewProc("GetForegroundWindow")
	procGetWindowLongPtrW        = user32.NewProc("GetWindowLongPtrW")

	procDwmGetWindowAttribute = dwmapi.NewProc("DwmGetWindowAttribute")

	procOpenProcess             = kernel32.NewProc("OpenProcess")
	procCloseHandle             = kernel32.NewProc("CloseHandle")
	procQueryFullProcessImageName = kernel32.NewProc("QueryFullProcessImageNameW")
)

const (
	gwlExStyle = -20

	wsExToolWindow = 0x00000080

	dwmwaCloaked = 14

	processQueryLimitedInformation = 0x1000
	maxPath                        = 260
)

type rect struct {
	Left, Top, Right, Bottom int32
}

// Info is a single enumerated window, the unit the candidate list and
// the frontmost/app lookups return.
type Info struct {
	Handle      uintptr
	Title       string
	ClassName   string
	AppName     string
	ProcessID   uint32
	Bounds      types.Rectangle
	IsVisible   bool
	IsMinimized bool
	ZOrder      int
}

// Manager enumerates top-level windows via EnumWindows and keeps a
// short-lived cache of per-handle details for the detailed lookups that
// back a single selection rather than a full re-enumeration.
type Manager struct {
	cache       map[uintptr]*Info
	cacheExpiry time.Duration
	lastUpdate  time.Time
}

// NewManager creates a window enumerator.
func NewManager() *Manager {
	return &Manager{
		cache:       make(map[uintptr]*Info),
		cacheExpiry: 2 * time.Second,
	}
}

// DefaultExcludedProcesses are always excluded from candidate lists:
// the agent's own processes, and the Windows shell/launcher surfaces a
// pin target should never resolve to.
var DefaultExcludedProcesses = []string{
	"pinagent", "pinctl",
	"ShellExperienceHost", "SearchApp", "StartMenuExperienceHost", "SearchHost",
}

// mergeFilter folds caller-supplied filter into the mandatory baseline
// (width > 50, height > 50, default exclusions) every candidate list
// enforces, regardless of whether a caller passes one.
func mergeFilter(filter *types.WindowFilter) *types.WindowFilter {
	merged := &types.WindowFilter{
		ExcludedProcessNames: append([]string{}, DefaultExcludedProcesses...),
		MinWidth:             51,
		MinHeight:            51,
	}
	if filter != nil {
		merged.ExcludedProcessNames = append(merged.ExcludedProcessNames, filter.ExcludedProcessNames...)
		if filter.MinWidth > merged.MinWidth {
			merged.MinWidth = filter.MinWidth
		}
		if filter.MinHeight > merged.MinHeight {
			merged.MinHeight = filter.MinHeight
		}
	}
	return merged
}

// ListCandidates returns every on-screen, non-system window in z-order,
// filtered by filter (merged onto the mandatory baseline), as the
// picker's candidate list.
func (m *Manager) ListCandidates(filter *types.WindowFilter) ([]Info, error) {
	return m.list(mergeFilter(filter))
}

// ListByApp collapses the candidate list to one representative window
// per owning process, at the picker's larger 100x100 minimum, for the
// menu-bar picker variant.
func (m *Manager) ListByApp(filter *types.WindowFilter) ([]Info, error) {
	eff := mergeFilter(filter)
	if eff.MinWidth < 100 {
		eff.MinWidth = 100
	}
	if eff.MinHeight < 100 {
		eff.MinHeight = 100
	}
	all, err := m.list(eff)
	if err != nil {
		return nil, err
	}
	seen := make(map[uint32]bool)
	var out []Info
	for _, w := range all {
		if seen[w.ProcessID] {
			continue
		}
		seen[w.ProcessID] = true
		out = append(out, w)
	}
	return out, nil
}

func (m *Manager) list(filter *types.WindowFilter) ([]Info, error) {
	var windows []Info
	zOrder := 0

	callback := syscall.NewCallback(func(hwnd, lParam uintptr) uintptr {
		info, err := m.describe(hwnd, zOrder)
		zOrder++
		if err != nil {
			return 1
		}
		if !info.IsVisible || m.isCloaked(hwnd) || isSystemWindow(info) {
			return 1
		}
		if !matchesFilter(info, filter) {
			return 1
		}
		windows = append(windows, *info)
		return 1
	})

	ret, _, _ := procEnumWindows.Call(callback, 0)
	if ret == 0 {
		return nil, fmt.Errorf("EnumWindows failed")
	}

	sort.Slice(windows, func(i, j int) bool { return windows[i].ZOrder < windows[j].ZOrder })
	return windows, nil
}

// FindFrontmost returns the target a bare "pin" command with no
// explicit selection resolves to: the current foreground window when it
// passes the candidate filter, otherwise the first window of
// ListCandidates, so an excluded foreground window is skipped in favour
// of the window beneath it.
func (m *Manager) FindFrontmost() (*Info, error) {
	hwnd, _, _ := procGetForegroundWindow.Call()
	if hwnd != 0 {
		info, err := m.describe(hwnd, 0)
		if err == nil && info.IsVisible && !m.isCloaked(hwnd) && !isSystemWindow(info) && matchesFilter(info, mergeFilter(nil)) {
			return info, nil
		}
	}
	candidates, err := m.ListCandidates(nil)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("no candidate window")
	}
	return &candidates[0], nil
}

// Describe looks up a specific handle, using the short-lived cache.
func (m *Manager) Describe(handle uintptr) (*Info, error) {
	if time.Since(m.lastUpdate) < m.cacheExpiry {
		if cached, ok := m.cache[handle]; ok {
			return cached, nil
		}
	}
	info, err := m.describe(handle, 0)
	if err != nil {
		return nil, err
	}
	m.cache[handle] = info
	m.lastUpdate = time.Now()
	return info, nil
}

// StillValid reports whether handle still refers to a visible window,
// used by the state machine to reject an unknown handle and to detect
// that the target closed.
func (m *Manager) StillValid(handle uintptr) bool {
	info, err := m.describe(handle, 0)
	if err != nil {
		return false
	}
	return info.IsVisible && !m.isCloaked(handle)
}

func (m *Manager) describe(handle uintptr, zOrder int) (*Info, error) {
	info := &Info{Handle: handle, ZOrder: zOrder}

	titleLen, _, _ := procGetWindowTextLengthW.Call(handle)
	if titleLen > 0 {
		buf := make([]uint16, titleLen+1)
		procGetWindowTextW.Call(handle, uintptr(unsafe.Pointer(&buf[0])), uintptr(len(buf)))
		info.Title = syscall.UTF16ToString(buf)
	}

	classBuf := make([]uint16, 256)
	procGetClassNameW.Call(handle, uintptr(unsafe.Pointer(&classBuf[0])), 256)
	info.ClassName = syscall.UTF16ToString(classBuf)

	var pid uint32
	procGetWindowThreadProcessId.Call(handle, uintptr(unsafe.Pointer(&pid)))
	info.ProcessID = pid
	info.AppName = processName(pid)

	var r rect
	procGetWindowRect.Call(handle, uintptr(unsafe.Pointer(&r)))
	info.Bounds = types.Rectangle{
		X:      int(r.Left),
		Y:      int(r.Top),
		Width:  int(r.Right - r.Left),
		Height: int(r.Bottom - r.Top),
	}

	visible, _, _ := procIsWindowVisible.Call(handle)
	info.IsVisible = visible != 0

	minimized, _, _ := procIsIconic.Call(handle)
	info.IsMinimized = minimized != 0

	return info, nil
}

func (m *Manager) isCloaked(handle uintptr) bool {
	var cloaked int32
	ret, _, _ := procDwmGetWindowAttribute.Call(
		handle,
		uintptr(dwmwaCloaked),
		uintptr(unsafe.Pointer(&cloaked)),
		unsafe.Sizeof(cloaked),
	)
	return ret == 0 && cloaked != 0
}

// processName resolves pid's executable base name for the friendlier
// owner-name labelling the menu-bar picker wants.
func processName(pid uint32) string {
	handle, _, _ := procOpenProcess.Call(processQueryLimitedInformation, 0, uintptr(pid))
	if handle == 0 {
		return ""
	}
	defer procCloseHandle.Call(handle)

	var pathBuf [maxPath]uint16
	size := uint32(maxPath)
	ret, _, _ := procQueryFullProcessImageName.Call(handle, 0, uintptr(unsafe.Pointer(&pathBuf[0])), uintptr(unsafe.Pointer(&size)))
	if ret == 0 {
		return ""
	}
	full := syscall.UTF16ToString(pathBuf[:size])
	base := filepath.Base(full)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func isToolWindow(handle uintptr) bool {
	exStyle, _, _ := procGetWindowLongPtrW.Call(handle, uintptr(int32(gwlExStyle)))
	return exStyle&wsExToolWindow != 0
}

func matchesFilter(info *Info, filter *types.WindowFilter) bool {
	for _, excluded := range filter.ExcludedProcessNames {
		if strings.EqualFold(info.AppName, excluded) || strings.EqualFold(info.ClassName, excluded) {
			return false
		}
	}
	if filter.MinWidth > 0 && info.Bounds.Width < filter.MinWidth {
		return false
	}
	if filter.MinHeight > 0 && info.Bounds.Height < filter.MinHeight {
		return false
	}
	return true
}

func isSystemWindow(info *Info) bool {
	systemClasses := []string{
		"Shell_TrayWnd",
		"DV2ControlHost",
		"MsgrIMEWindowClass",
		"SysShadow",
		"Button",
		"Progman",
		"WorkerW",
		"Windows.UI.Core.CoreWindow",
	}
	for _, c := range systemClasses {
		if strings.EqualFold(info.ClassName, c) {
			return true
		}
	}
	if info.Title == "" && (info.Bounds.Width < 100 || info.Bounds.Height < 100) {
		return true
	}
	if isToolWindow(info.Handle) {
		return true
	}
	return false
}
