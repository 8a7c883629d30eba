package agent

import (
	"sync"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/southflowpeak/pin/internal/overlay"
	"github.com/southflowpeak/pin/pkg/types"
)

var (
	user32 = windows.NewLazyDLL("user32.dll")

	procGetCursorPos             = user32.NewProc("GetCursorPos")
	procGetForegroundWindow      = user32.NewProc("GetForegroundWindow")
	procGetWindowThreadProcessId = user32.NewProc("GetWindowThreadProcessId")
)

type pointT struct {
	X, Y int32
}

// monitor polls cursor position, target geometry, window validity, and
// the foreground window on a single ticker, the idiom this pack uses
// in place of any hook-based (SetWinEventHook) notification — there is
// no such usage anywhere in the retrieval pack to ground a hook design
// on, and it plays the role of the platform's workspace-notification
// service for foreground-app-change.
type monitor struct {
	agent  *Agent
	handle uintptr

	stopCh chan struct{}
	wg     sync.WaitGroup

	hovering       bool
	hoverTimer     *time.Timer
	lastForeground uintptr
	lastBounds     types.Rectangle
}

func newMonitor(a *Agent, handle uintptr) *monitor {
	return &monitor{agent: a, handle: handle, stopCh: make(chan struct{})}
}

func (m *monitor) start() {
	m.wg.Add(1)
	go m.loop()
}

func (m *monitor) stop() {
	close(m.stopCh)
	m.wg.Wait()
	if m.hoverTimer != nil {
		m.hoverTimer.Stop()
	}
}

func (m *monitor) loop() {
	defer m.wg.Done()

	ticker := time.NewTicker(pointerPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.tick()
		}
	}
}

func (m *monitor) currentOverlay() *overlay.Manager {
	m.agent.mu.Lock()
	defer m.agent.mu.Unlock()
	return m.agent.ov
}

func (m *monitor) tick() {
	if !m.agent.windows.StillValid(m.handle) {
		go m.agent.handleTargetDisappeared()
		return
	}

	info, err := m.agent.windows.Describe(m.handle)
	ov := m.currentOverlay()
	if err == nil && ov != nil && !info.Bounds.Equal(m.lastBounds) {
		m.lastBounds = info.Bounds
		ov.SetGeometry(info.Bounds)
		m.agent.resizeSession()
	}

	var cursor pointT
	procGetCursorPos.Call(uintptr(unsafe.Pointer(&cursor)))
	over := info != nil && info.Bounds.Contains(types.Point{X: int(cursor.X), Y: int(cursor.Y)})

	switch {
	case over && !m.hovering:
		m.hovering = true
		m.hoverTimer = time.AfterFunc(hoverActivationDelay, func() {
			m.agent.hoverEnter()
		})
	case !over && m.hovering:
		m.hovering = false
		if m.hoverTimer != nil {
			m.hoverTimer.Stop()
		}
		m.agent.hoverExit()
	}

	m.pollForeground()
}

// pollForeground stands in for the platform's workspace notification:
// it diffs the foreground window's owning pid against the last sample
// and reports a change to the agent's re-show policy.
func (m *monitor) pollForeground() {
	fg, _, _ := procGetForegroundWindow.Call()
	if fg == 0 || fg == m.lastForeground {
		return
	}
	m.lastForeground = fg

	var pid uint32
	procGetWindowThreadProcessId.Call(fg, uintptr(unsafe.Pointer(&pid)))
	m.agent.onForegroundChanged(pid)
}
