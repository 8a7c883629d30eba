// Package permission implements the permission gate (C1): the single
// check every pin attempt passes through before a capture session is
// started.
//
// Win32 has no consent-dialog equivalent to ScreenCaptureKit's capture
// permission or the Accessibility API's trust prompt — window capture
// and window enumeration are ambient OS capabilities for any desktop
// process. The gate still exists as a narrow point components can query
// and a future platform capability can hook into without callers
// changing shape.
package permission

import (
	"os/exec"
	"sync"

	"go.uber.org/zap"

	"github.com/southflowpeak/pin/pkg/types"
)

// Gate reports and caches the current permission status.
type Gate struct {
	logger *zap.Logger

	mu     sync.RWMutex
	status types.PermissionStatus
}

// NewGate returns a gate already probed once.
func NewGate() *Gate {
	return NewGateWithLogger(nil)
}

// NewGateWithLogger is like NewGate but logs promptAccessibility/
// guideToCaptureSettings failures through logger.
func NewGateWithLogger(logger *zap.Logger) *Gate {
	if logger == nil {
		logger = zap.NewNop()
	}
	g := &Gate{logger: logger}
	g.Probe()
	return g
}

// Probe re-checks the platform's capture and accessibility capability
// and returns the refreshed status.
func (g *Gate) Probe() types.PermissionStatus {
	status := types.PermissionStatus{
		CaptureGranted:       true,
		AccessibilityGranted: true,
	}
	g.mu.Lock()
	g.status = status
	g.mu.Unlock()
	return status
}

// Status returns the last probed status without re-checking.
func (g *Gate) Status() types.PermissionStatus {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.status
}

// Allowed reports whether a pin attempt may proceed.
func (g *Gate) Allowed() bool {
	s := g.Status()
	return s.CaptureGranted && s.AccessibilityGranted
}

// PromptAccessibility triggers the platform's user-facing permission
// prompt, non-blocking. Win32 window capture and enumeration carry no
// accessibility trust prompt of their own, so this opens the nearest
// equivalent guidance surface (Windows privacy settings) rather than
// doing nothing.
func (g *Gate) PromptAccessibility() {
	go g.openSettings("ms-settings:privacy-general")
}

// GuideToCaptureSettings opens the camera page of the Windows privacy
// settings; it does not open a page specific to screen capture.
func (g *Gate) GuideToCaptureSettings() {
	go g.openSettings("ms-settings:privacy-webcam")
}

func (g *Gate) openSettings(uri string) {
	cmd := exec.Command("rundll32", "url.dll,FileProtocolHandler", uri)
	if err := cmd.Start(); err != nil {
		g.logger.Warn("opening settings pane failed", zap.String("uri", uri), zap.Error(err))
	}
}
