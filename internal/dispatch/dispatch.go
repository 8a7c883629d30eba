// Package dispatch implements the command dispatcher (C6): parsing
// pin://<command>?k=v activations, routing them to the state machine,
// and writing the JSON result atomically to the well-known response
// file every external command answers through.
package dispatch

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"

	"go.uber.org/zap"

	"github.com/southflowpeak/pin/internal/agent"
	"github.com/southflowpeak/pin/internal/window"
	"github.com/southflowpeak/pin/pkg/types"
)

// PinResult is the JSON shape written after pin, pin-window, unpin, and
// panic commands.
type PinResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// WindowEntry is a single serialized candidate in a list-windows
// response.
type WindowEntry struct {
	WindowID    uintptr         `json:"windowID"`
	PID         uint32          `json:"pid"`
	AppName     string          `json:"appName"`
	WindowTitle string          `json:"windowTitle,omitempty"`
	Bounds      types.Rectangle `json:"bounds"`
}

// ListWindowsResult is the JSON shape written after a list-windows
// command.
type ListWindowsResult struct {
	Success bool          `json:"success"`
	Windows []WindowEntry `json:"windows,omitempty"`
	Error   string        `json:"error,omitempty"`
}

// UnknownCommandResult is written for any unrecognized command name.
type UnknownCommandResult struct {
	Error string `json:"error"`
}

// Dispatcher routes parsed commands to an Agent and persists the
// outcome.
type Dispatcher struct {
	agent        *agent.Agent
	windows      *window.Manager
	responsePath string
	logger       *zap.Logger
}

// New constructs a Dispatcher writing results to responsePath.
func New(a *agent.Agent, windows *window.Manager, responsePath string, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{agent: a, windows: windows, responsePath: responsePath, logger: logger}
}

// ParseCommand reads a pin://<command>?k=v URL into a name and its
// query parameters.
func ParseCommand(raw string) (string, url.Values, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", nil, fmt.Errorf("parsing command url: %w", err)
	}
	if u.Scheme != "pin" {
		return "", nil, fmt.Errorf("unsupported command scheme %q", u.Scheme)
	}
	name := u.Host
	if name == "" {
		name = u.Opaque
	}
	return name, u.Query(), nil
}

// Dispatch executes name with params and writes the response file.
// Names outside the recognized command set (pin, pin-window,
// list-windows, unpin, panic, status, reset, setOpacity) fall through
// to the "unknown command" shape.
func (d *Dispatcher) Dispatch(name string, params url.Values) any {
	result := d.execute(name, params)
	if err := d.writeResponse(result); err != nil {
		d.logger.Error("writing response file failed", zap.Error(err))
	}
	return result
}

func (d *Dispatcher) execute(name string, params url.Values) any {
	switch name {
	case "pin":
		return d.pin(0)
	case "pin-window":
		raw := params.Get("id")
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return PinResult{Success: false, Error: fmt.Sprintf("invalid id: %v", err)}
		}
		return d.pin(uintptr(id))
	case "list-windows":
		return d.listWindows()
	case "unpin":
		if err := d.agent.Unpin(); err != nil {
			return PinResult{Success: false, Error: errorMessage(err)}
		}
		return PinResult{Success: true, Message: "unpinned"}
	case "panic":
		d.agent.Panic()
		return PinResult{Success: true, Message: "panic_complete"}
	case "reset":
		if err := d.agent.Reset(); err != nil {
			return PinResult{Success: false, Error: errorMessage(err)}
		}
		return PinResult{Success: true, Message: "reset"}
	case "setOpacity":
		raw := params.Get("value")
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return PinResult{Success: false, Error: fmt.Sprintf("invalid opacity: %v", err)}
		}
		if err := d.agent.SetOpacity(types.OverlayOpacity(v)); err != nil {
			return PinResult{Success: false, Error: err.Error()}
		}
		return PinResult{Success: true, Message: "opacity_set"}
	case "status":
		status := d.agent.Status()
		return status
	default:
		return UnknownCommandResult{Error: fmt.Sprintf("unknown_command: %s", name)}
	}
}

func (d *Dispatcher) pin(handle uintptr) PinResult {
	if err := d.agent.Pin(handle); err != nil {
		return PinResult{Success: false, Error: errorMessage(err)}
	}
	return PinResult{Success: true, Message: "pinned"}
}

func (d *Dispatcher) listWindows() any {
	infos, err := d.windows.ListCandidates(nil)
	if err != nil {
		return ListWindowsResult{Success: false, Error: err.Error()}
	}
	entries := make([]WindowEntry, 0, len(infos))
	for _, w := range infos {
		entries = append(entries, WindowEntry{
			WindowID:    w.Handle,
			PID:         w.ProcessID,
			AppName:     w.AppName,
			WindowTitle: w.Title,
			Bounds:      w.Bounds,
		})
	}
	return ListWindowsResult{Success: true, Windows: entries}
}

// errorMessage renders err as "No target window found" for a resolution
// miss, and the wrapped detail for everything else.
func errorMessage(err error) string {
	if errors.Is(err, agent.ErrNoTargetWindow) {
		return "No target window found"
	}
	return err.Error()
}

// writeResponse writes result to a temp file in the same directory and
// renames it into place, so a reader never observes a partial write.
func (d *Dispatcher) writeResponse(result any) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling response: %w", err)
	}

	dir := filepath.Dir(d.responsePath)
	tmp, err := os.CreateTemp(dir, ".pin-response-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp response file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing temp response file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp response file: %w", err)
	}
	if err := os.Rename(tmpPath, d.responsePath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming response file into place: %w", err)
	}
	return nil
}
