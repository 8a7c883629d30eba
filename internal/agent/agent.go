// Package agent implements the state machine (C5): the single owner of
// AgentState, the capture session, and the overlay window, and the
// hover/geometry/foreground polling loops that keep a pin alive.
package agent

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sys/windows"

	"github.com/southflowpeak/pin/internal/capture"
	"github.com/southflowpeak/pin/internal/overlay"
	"github.com/southflowpeak/pin/internal/permission"
	"github.com/southflowpeak/pin/internal/prefs"
	"github.com/southflowpeak/pin/internal/window"
	"github.com/southflowpeak/pin/pkg/types"
)

var (
	agentUser32             = windows.NewLazyDLL("user32.dll")
	procSetForegroundWindow = agentUser32.NewProc("SetForegroundWindow")
)

// hoverActivationDelay is how long the pointer must dwell over the
// mirror before the target is activated and the mirror hidden; a
// hover-exit observed before the timer fires cancels the pending hide.
const hoverActivationDelay = 250 * time.Millisecond

// foregroundRecheckDelay is the settle window after a hide before a
// foreground-app change not involving the target is trusted to mean
// "show the mirror again" — fixes the interaction between the 250ms
// hide delay and the source's undocumented re-show delay.
const foregroundRecheckDelay = 500 * time.Millisecond

// pointerPollInterval also drives the geometry-sync sample on the same
// tick, matching the 100ms cadence spec.md's geometry observer polls at.
const pointerPollInterval = 100 * time.Millisecond

// Agent owns the pin lifecycle end to end: resolving a target, driving
// the capture session, and presenting the overlay.
type Agent struct {
	logger  *zap.Logger
	windows *window.Manager
	gate    *permission.Gate
	store   *prefs.Store

	mu             sync.Mutex
	state          types.AgentState
	target         *types.TargetDescriptor
	pinnedSince    *time.Time
	mirrorHiddenAt *time.Time
	lastError      string
	opacity        types.OverlayOpacity

	ov      *overlay.Manager
	session *capture.Session
	monitor *monitor
}

// New constructs an idle Agent. store's last persisted opacity becomes
// the opacity applied to the next pin.
func New(logger *zap.Logger, windows *window.Manager, gate *permission.Gate, store *prefs.Store) *Agent {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Agent{
		logger:  logger,
		windows: windows,
		gate:    gate,
		store:   store,
		state:   types.StateIdle,
		opacity: store.LoadOpacity(),
	}
}

// Status returns the current read-only projection.
func (a *Agent) Status() types.AgentStatus {
	a.mu.Lock()
	defer a.mu.Unlock()
	status := types.AgentStatus{
		State:     a.state,
		Pinned:    a.state.Pinned(),
		LastError: a.lastError,
	}
	if a.target != nil {
		status.TargetApp = a.target.AppName
		status.TargetTitle = a.target.WindowTitle
	}
	status.MirrorVisible = a.state == types.StateMirroring
	status.PinnedSince = a.pinnedSince
	return status
}

// Pin starts mirroring handle (or, if handle is 0, the current
// foreground window). Legal only from Idle.
func (a *Agent) Pin(handle uintptr) error {
	if !a.gate.Allowed() {
		return permissionDenied()
	}

	var info *window.Info
	var err error
	if handle == 0 {
		info, err = a.windows.FindFrontmost()
	} else if a.windows.StillValid(handle) {
		info, err = a.windows.Describe(handle)
	}
	if err != nil || info == nil {
		return noTargetWindow("target window could not be resolved")
	}

	a.mu.Lock()
	if a.state != types.StateIdle {
		from := a.state
		a.mu.Unlock()
		return invalidTransition(from, "pin")
	}
	a.mu.Unlock()

	target := &types.TargetDescriptor{
		ProcessID:   info.ProcessID,
		WindowID:    info.Handle,
		AppName:     info.AppName,
		WindowTitle: info.Title,
		Bounds:      info.Bounds,
	}

	ov, err := overlay.NewManager(a.logger, func() { a.Unpin() })
	if err != nil {
		// CaptureFailure is transactional: pin either fully succeeds into
		// Mirroring or leaves the machine exactly as it found it, Idle.
		// a.state was never moved off Idle above, so there's nothing to
		// unwind here.
		a.logger.Error("opening mirror window failed", zap.Error(err))
		return captureFailure(err)
	}
	ov.SetGeometry(target.Bounds)
	ov.SetOpacity(a.opacity)
	ov.Show()

	sess := capture.NewSession(info.Handle, capture.SinkFunc(func(fb types.FrameBuffer) {
		ov.SetFrame(fb)
	}), a.logger)

	cfg := types.DefaultCaptureConfiguration(target.Bounds.Width, target.Bounds.Height, 30)
	if err := sess.Start(context.Background(), cfg); err != nil {
		ov.Close()
		a.logger.Error("starting capture session failed", zap.Error(err))
		return captureFailure(err)
	}

	now := time.Now()
	a.mu.Lock()
	a.state = types.StateMirroring
	a.target = target
	a.pinnedSince = &now
	a.lastError = ""
	a.ov = ov
	a.session = sess
	a.mu.Unlock()

	a.monitor = newMonitor(a, info.Handle)
	a.monitor.start()

	a.logger.Info("pin started",
		zap.Uintptr("handle", info.Handle),
		zap.String("title", info.Title))
	return nil
}

// Unpin tears a pin down. Idempotent: calling it while already Idle
// succeeds without touching any edge in the transition table.
func (a *Agent) Unpin() error {
	a.mu.Lock()
	state := a.state
	if state == types.StateIdle {
		a.mu.Unlock()
		return nil
	}
	if _, ok := next(state, "unpin"); !ok && state != types.StateError {
		a.mu.Unlock()
		return invalidTransition(state, "unpin")
	}
	a.mu.Unlock()

	a.teardown()

	a.mu.Lock()
	a.state = types.StateIdle
	a.target = nil
	a.pinnedSince = nil
	a.mu.Unlock()
	a.logger.Info("pin released")
	return nil
}

// Panic is the unconditional escape hatch: it tears down whatever is
// running and forces Idle regardless of the current state, including
// Error. It never itself returns an error.
func (a *Agent) Panic() {
	a.teardown()
	a.mu.Lock()
	a.state = types.StateIdle
	a.target = nil
	a.pinnedSince = nil
	a.lastError = ""
	a.mu.Unlock()
	a.logger.Warn("panic: pin force-released")
}

// SetOpacity updates and persists the mirror opacity, applying it
// immediately if a mirror is open.
func (a *Agent) SetOpacity(op types.OverlayOpacity) error {
	op = op.Clamp()
	a.mu.Lock()
	a.opacity = op
	ov := a.ov
	a.mu.Unlock()
	if ov != nil {
		ov.SetOpacity(op)
	}
	return a.store.SaveOpacity(op)
}

// resizeSession notifies the capture session to reconfigure after the
// geometry observer samples a new target bounds. Resize reports no
// errors, and a resize never tears the session down.
func (a *Agent) resizeSession() {
	a.mu.Lock()
	sess := a.session
	a.mu.Unlock()
	if sess != nil {
		sess.Resize(30)
	}
}

func (a *Agent) teardown() {
	a.mu.Lock()
	mon := a.monitor
	sess := a.session
	ov := a.ov
	a.monitor = nil
	a.session = nil
	a.ov = nil
	a.mu.Unlock()

	if mon != nil {
		mon.stop()
	}
	if sess != nil {
		sess.Stop()
	}
	if ov != nil {
		ov.Close()
	}
}

// handleTargetDisappeared is the liveness monitor's "window no longer
// exists" signal. Per spec it is an ordinary transition to Idle, not a
// fault: the monitor calls this on its own goroutine (never its polling
// loop goroutine) because Unpin joins that loop via teardown.
func (a *Agent) handleTargetDisappeared() {
	a.mu.Lock()
	pinned := a.state == types.StateMirroring || a.state == types.StateMirrorHidden
	a.mu.Unlock()
	if !pinned {
		return
	}
	a.logger.Info("target window disappeared; releasing pin")
	a.Unpin()
}

// Reset clears an Error state back to Idle.
func (a *Agent) Reset() error {
	a.mu.Lock()
	if a.state != types.StateError {
		state := a.state
		a.mu.Unlock()
		return invalidTransition(state, "reset")
	}
	a.state = types.StateIdle
	a.lastError = ""
	a.mu.Unlock()
	return nil
}

// hoverEnter implements the "see-through" model's entry side: bring
// the target window forward before hiding the mirror, so the window
// underneath is actually interactable once the mirror stops painting.
func (a *Agent) hoverEnter() {
	a.mu.Lock()
	if a.state != types.StateMirroring {
		a.mu.Unlock()
		return
	}
	ov := a.ov
	handle, _ := a.targetHandleLocked()
	a.mu.Unlock()

	if handle != 0 {
		procSetForegroundWindow.Call(handle)
	}
	if ov != nil {
		ov.SetMirrorHidden(true)
		ov.SetClickThrough(true)
	}

	now := time.Now()
	a.mu.Lock()
	a.mirrorHiddenAt = &now
	a.mu.Unlock()
	a.apply("hoverHide")
}

// hoverExit handles the pointer leaving the mirror's own rectangle: an
// immediate, same-frame restore.
func (a *Agent) hoverExit() {
	a.showMirror()
}

// onForegroundChanged implements the re-show policy: besides the
// monitor's pointer-exit check, a foreground-app change is the signal
// that restores a hidden mirror, which itself ignores pointer events.
// Remaining hidden while the target itself is foreground avoids the
// flicker a raw "any change" rule would cause during the activation
// handoff in hoverEnter.
func (a *Agent) onForegroundChanged(pid uint32) {
	a.mu.Lock()
	if a.state != types.StateMirrorHidden {
		a.mu.Unlock()
		return
	}
	isTarget := a.target != nil && a.target.ProcessID == pid
	hiddenAt := a.mirrorHiddenAt
	a.mu.Unlock()

	if isTarget {
		return
	}

	if hiddenAt != nil {
		if elapsed := time.Since(*hiddenAt); elapsed < foregroundRecheckDelay {
			time.AfterFunc(foregroundRecheckDelay-elapsed, func() { a.recheckForegroundShow(pid) })
			return
		}
	}
	a.showMirror()
}

func (a *Agent) recheckForegroundShow(pid uint32) {
	a.mu.Lock()
	stillHiddenAndNotTarget := a.state == types.StateMirrorHidden && (a.target == nil || a.target.ProcessID != pid)
	a.mu.Unlock()
	if stillHiddenAndNotTarget {
		a.showMirror()
	}
}

func (a *Agent) showMirror() {
	a.mu.Lock()
	if a.state != types.StateMirrorHidden && a.state != types.StateMirroring {
		a.mu.Unlock()
		return
	}
	ov := a.ov
	a.mirrorHiddenAt = nil
	a.mu.Unlock()
	if ov != nil {
		ov.SetMirrorHidden(false)
		ov.SetClickThrough(false)
	}
	a.apply("hoverShow")
}

func (a *Agent) apply(cmd string) {
	a.mu.Lock()
	to, ok := next(a.state, cmd)
	if ok {
		a.state = to
	}
	a.mu.Unlock()
}

func (a *Agent) targetHandleLocked() (uintptr, bool) {
	if a.target == nil {
		return 0, false
	}
	return a.target.WindowID, true
}

