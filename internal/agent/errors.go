package agent

import (
	"errors"
	"fmt"

	"github.com/southflowpeak/pin/pkg/types"
)

// Sentinel errors for the four error kinds the agent can surface,
// wrapped with fmt.Errorf so callers can still errors.Is against them.
var (
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrNoTargetWindow    = errors.New("no target window")
	ErrCaptureFailure    = errors.New("capture failure")
	ErrPermissionDenied  = errors.New("permission denied")
)

func invalidTransition(from types.AgentState, cmd string) error {
	return fmt.Errorf("%s from state %s: %w", cmd, from, ErrInvalidTransition)
}

func noTargetWindow(reason string) error {
	return fmt.Errorf("%s: %w", reason, ErrNoTargetWindow)
}

func captureFailure(err error) error {
	return fmt.Errorf("capture session failed: %w: %w", err, ErrCaptureFailure)
}

func permissionDenied() error {
	return fmt.Errorf("capture or accessibility permission not granted: %w", ErrPermissionDenied)
}
