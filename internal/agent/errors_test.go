package agent

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/southflowpeak/pin/pkg/types"
)

func TestErrorWrappingPreservesSentinels(t *testing.T) {
	assert.True(t, errors.Is(invalidTransition(types.StateIdle, "unpin"), ErrInvalidTransition))
	assert.True(t, errors.Is(noTargetWindow("closed"), ErrNoTargetWindow))
	assert.True(t, errors.Is(captureFailure(errors.New("boom")), ErrCaptureFailure))
	assert.True(t, errors.Is(permissionDenied(), ErrPermissionDenied))
}
