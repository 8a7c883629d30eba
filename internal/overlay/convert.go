package overlay

import (
	"image"

	"github.com/southflowpeak/pin/pkg/types"
)

// bgraToImage converts a captured BGRA32 frame to image.RGBA, the
// shape the imaging package's Resize expects.
func bgraToImage(fb *types.FrameBuffer) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, fb.Width, fb.Height))
	for y := 0; y < fb.Height; y++ {
		srcRow := fb.Data[y*fb.Stride : y*fb.Stride+fb.Width*4]
		dstRow := img.Pix[y*img.Stride : y*img.Stride+fb.Width*4]
		for x := 0; x < fb.Width; x++ {
			b := srcRow[x*4+0]
			g := srcRow[x*4+1]
			r := srcRow[x*4+2]
			a := srcRow[x*4+3]
			dstRow[x*4+0] = r
			dstRow[x*4+1] = g
			dstRow[x*4+2] = b
			dstRow[x*4+3] = a
		}
	}
	return img
}

// imageToBGRA converts a resized image.Image back to a BGRA32
// FrameBuffer for StretchDIBits.
func imageToBGRA(img image.Image) *types.FrameBuffer {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	data := make([]byte, w*h*4)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, a := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			i := (y*w + x) * 4
			data[i+0] = byte(b >> 8)
			data[i+1] = byte(g >> 8)
			data[i+2] = byte(r >> 8)
			data[i+3] = byte(a >> 8)
		}
	}
	return &types.FrameBuffer{Data: data, Width: w, Height: h, Stride: w * 4}
}
