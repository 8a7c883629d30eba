package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRectangleContains(t *testing.T) {
	r := Rectangle{X: 10, Y: 10, Width: 100, Height: 50}
	assert.True(t, r.Contains(Point{X: 10, Y: 10}))
	assert.True(t, r.Contains(Point{X: 109, Y: 59}))
	assert.False(t, r.Contains(Point{X: 110, Y: 10}))
	assert.False(t, r.Contains(Point{X: 9, Y: 10}))
}

func TestRectangleIntersects(t *testing.T) {
	a := Rectangle{X: 0, Y: 0, Width: 10, Height: 10}
	b := Rectangle{X: 5, Y: 5, Width: 10, Height: 10}
	c := Rectangle{X: 100, Y: 100, Width: 10, Height: 10}

	assert.True(t, a.Intersects(b))
	assert.False(t, a.Intersects(c))
}

func TestOverlayOpacityClamp(t *testing.T) {
	assert.Equal(t, MinOpacity, OverlayOpacity(0).Clamp())
	assert.Equal(t, MaxOpacity, OverlayOpacity(2).Clamp())
	assert.Equal(t, OverlayOpacity(0.5), OverlayOpacity(0.5).Clamp())
}

func TestAgentStatePinned(t *testing.T) {
	assert.False(t, StateIdle.Pinned())
	assert.True(t, StateMirroring.Pinned())
	assert.True(t, StateMirrorHidden.Pinned())
	assert.False(t, StateError.Pinned())
}

func TestDefaultCaptureConfiguration(t *testing.T) {
	cfg := DefaultCaptureConfiguration(800, 600, 0)
	assert.Equal(t, 800, cfg.Width)
	assert.InDelta(t, 1.0/60, cfg.MinFrameInterval, 1e-9)

	cfg30 := DefaultCaptureConfiguration(800, 600, 30)
	assert.InDelta(t, 1.0/30, cfg30.MinFrameInterval, 1e-9)
}
