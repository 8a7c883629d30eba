package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/southflowpeak/pin/pkg/types"
)

func TestNextLegalTransitions(t *testing.T) {
	to, ok := next(types.StateIdle, "pin")
	assert.True(t, ok)
	assert.Equal(t, types.StateMirroring, to)

	to, ok = next(types.StateMirroring, "hoverHide")
	assert.True(t, ok)
	assert.Equal(t, types.StateMirrorHidden, to)

	to, ok = next(types.StateMirrorHidden, "hoverShow")
	assert.True(t, ok)
	assert.Equal(t, types.StateMirroring, to)

	to, ok = next(types.StateError, "reset")
	assert.True(t, ok)
	assert.Equal(t, types.StateIdle, to)
}

func TestNextRejectsIllegalTransitions(t *testing.T) {
	_, ok := next(types.StateIdle, "unpin")
	assert.False(t, ok)

	_, ok = next(types.StateMirroring, "pin")
	assert.False(t, ok)

	_, ok = next(types.StateIdle, "hoverHide")
	assert.False(t, ok)
}

func TestValidStatesCoversTheTransitionTable(t *testing.T) {
	for from := range transitions {
		assert.Contains(t, ValidStates, from)
	}
}
