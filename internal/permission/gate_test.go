package permission

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewGateProbesOnConstruction(t *testing.T) {
	g := NewGate()
	assert.True(t, g.Allowed())
}

func TestProbeRefreshesStatus(t *testing.T) {
	g := &Gate{}
	status := g.Probe()
	assert.True(t, status.CaptureGranted)
	assert.True(t, status.AccessibilityGranted)
	assert.Equal(t, status, g.Status())
}
