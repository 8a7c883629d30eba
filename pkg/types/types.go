// Package types holds the data model shared by every Pin Agent package:
// the window/target descriptors produced by the enumerator, the tagged
// AgentState variant owned by the state machine, and the wire shapes used
// by the command dispatcher.
package types

import "time"

// Rectangle is a top-left-origin screen rectangle, matching the
// coordinate convention the window enumerator reports in.
type Rectangle struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Point is a 2D screen coordinate.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Contains reports whether p falls within r.
func (r Rectangle) Contains(p Point) bool {
	return p.X >= r.X && p.X < r.X+r.Width && p.Y >= r.Y && p.Y < r.Y+r.Height
}

// Intersects reports whether r and other share any area.
func (r Rectangle) Intersects(other Rectangle) bool {
	if r.Width <= 0 || r.Height <= 0 || other.Width <= 0 || other.Height <= 0 {
		return false
	}
	return r.X < other.X+other.Width && other.X < r.X+r.Width &&
		r.Y < other.Y+other.Height && other.Y < r.Y+r.Height
}

// Equal reports whether two rectangles cover the same area.
func (r Rectangle) Equal(other Rectangle) bool {
	return r.X == other.X && r.Y == other.Y && r.Width == other.Width && r.Height == other.Height
}

// TargetDescriptor identifies the window Pin has chosen to mirror.
// Immutable after creation — a new pin always produces a fresh
// descriptor rather than mutating an existing one.
type TargetDescriptor struct {
	ProcessID   uint32    `json:"pid"`
	WindowID    uintptr   `json:"window_id"`
	AppName     string    `json:"app_name"`
	WindowTitle string    `json:"window_title,omitempty"`
	Bounds      Rectangle `json:"bounds"`
}

// AgentState is the tagged variant driving the pin lifecycle. It is
// exhaustively dispatched everywhere it is switched on; adding a fifth
// value without updating every switch is a mistake this package tries
// to make easy to spot (see agent.ValidStates).
type AgentState string

const (
	StateIdle         AgentState = "idle"
	StateMirroring    AgentState = "mirroring"
	StateMirrorHidden AgentState = "mirror_hidden"
	StateError        AgentState = "error"
)

// Pinned reports whether s represents an active pin, in either its
// visible or hover-hidden form.
func (s AgentState) Pinned() bool {
	return s == StateMirroring || s == StateMirrorHidden
}

// AgentStatus is the read-only projection exposed to the dispatcher and,
// transitively, to status queries.
type AgentStatus struct {
	State         AgentState `json:"state"`
	Pinned        bool       `json:"pinned"`
	TargetApp     string     `json:"target_app,omitempty"`
	TargetTitle   string     `json:"target_title,omitempty"`
	MirrorVisible bool       `json:"mirror_visible"`
	PinnedSince   *time.Time `json:"pinned_since,omitempty"`
	LastError     string     `json:"last_error,omitempty"`
}

// OverlayOpacity is the single persisted preference.
type OverlayOpacity float64

const (
	MinOpacity     OverlayOpacity = 0.1
	MaxOpacity     OverlayOpacity = 1.0
	DefaultOpacity OverlayOpacity = 1.0
)

// Clamp folds v into [MinOpacity, MaxOpacity].
func (v OverlayOpacity) Clamp() OverlayOpacity {
	switch {
	case v < MinOpacity:
		return MinOpacity
	case v > MaxOpacity:
		return MaxOpacity
	default:
		return v
	}
}

// CaptureConfiguration describes a capture session's pixel stream
// parameters.
type CaptureConfiguration struct {
	Width            int // device pixels: content size x backing scale
	Height           int // device pixels
	MinFrameInterval float64
	CursorCaptureOff bool
	PixelFormatBGRA  bool
}

// DefaultCaptureConfiguration returns a configuration for the given
// device-pixel size and frame rate, falling back to 60fps.
func DefaultCaptureConfiguration(width, height int, fps float64) CaptureConfiguration {
	if fps <= 0 {
		fps = 60
	}
	return CaptureConfiguration{
		Width:            width,
		Height:           height,
		MinFrameInterval: 1.0 / fps,
		CursorCaptureOff: true,
		PixelFormatBGRA:  true,
	}
}

// WindowFilter narrows window enumeration results.
type WindowFilter struct {
	ExcludedProcessNames []string
	MinWidth             int
	MinHeight            int
}

// FrameBuffer is a single decoded sample delivered by the capture
// session's sink.
type FrameBuffer struct {
	Data   []byte // BGRA32, top-down
	Width  int
	Height int
	Stride int
}

// PermissionStatus is the projection returned by the permission gate's
// probe operation.
type PermissionStatus struct {
	CaptureGranted       bool `json:"capture_granted"`
	AccessibilityGranted bool `json:"accessibility_granted"`
}
