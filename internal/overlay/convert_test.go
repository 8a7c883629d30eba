package overlay

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/southflowpeak/pin/pkg/types"
)

func TestBgraToImageRoundTrips(t *testing.T) {
	fb := &types.FrameBuffer{
		Width:  2,
		Height: 1,
		Stride: 8,
		Data: []byte{
			10, 20, 30, 255, // pixel 0: B,G,R,A
			40, 50, 60, 128, // pixel 1
		},
	}

	img := bgraToImage(fb)
	back := imageToBGRA(img)

	assert.Equal(t, fb.Width, back.Width)
	assert.Equal(t, fb.Height, back.Height)
	assert.Equal(t, fb.Data, back.Data)
}
