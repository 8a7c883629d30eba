package capture

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/southflowpeak/pin/pkg/types"
)

func TestSinkFuncDelivers(t *testing.T) {
	var got types.FrameBuffer
	sink := SinkFunc(func(fb types.FrameBuffer) { got = fb })
	sink.Deliver(types.FrameBuffer{Width: 10, Height: 20})
	assert.Equal(t, 10, got.Width)
	assert.Equal(t, 20, got.Height)
}

func TestNewSessionDefaultsToSixtyFPS(t *testing.T) {
	s := NewSession(0, nil, nil)
	assert.Equal(t, float64(60), s.fps)
}

func TestStopWithoutStartIsANoop(t *testing.T) {
	s := NewSession(0, nil, nil)
	assert.NotPanics(t, func() { s.Stop() })
}

func TestResizeWithoutStartIsANoop(t *testing.T) {
	s := NewSession(0, nil, nil)
	assert.NotPanics(t, func() { s.Resize(30) })
	assert.Equal(t, float64(30), s.fps)
}

func TestCapturingFalseBeforeStart(t *testing.T) {
	s := NewSession(0, nil, nil)
	assert.False(t, s.Capturing())
	assert.False(t, s.CaptureError())
}
