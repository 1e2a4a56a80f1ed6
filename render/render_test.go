package render

import (
	"image"
	"testing"

	iface "VisionTracker/interface"

	"github.com/stretchr/testify/assert"
	"gocv.io/x/gocv"
)

func TestRenderer_All(t *testing.T) {
	r := NewRenderer(0.6, 2)

	t.Run("class colors are stable and wrap", func(t *testing.T) {
		assert.Equal(t, r.ClassColor(3), r.ClassColor(3))
		assert.Equal(t, r.ClassColor(0), r.ClassColor(paletteSize))
		assert.NotEqual(t, r.ClassColor(0), r.ClassColor(1))
	})

	t.Run("negative class id gets the fallback color", func(t *testing.T) {
		c := r.ClassColor(-1)
		assert.Equal(t, uint8(255), c.G)
	})

	t.Run("render returns a copy", func(t *testing.T) {
		frame := gocv.NewMatWithSize(240, 320, gocv.MatTypeCV8UC3)
		defer frame.Close()

		dets := []iface.Detection{{
			ClassID:    0,
			ClassName:  "person",
			Confidence: 0.9,
			Box:        image.Rect(50, 50, 120, 150),
		}}
		out := r.RenderDetections(frame, dets)
		defer out.Close()

		assert.Equal(t, frame.Rows(), out.Rows())
		assert.Equal(t, frame.Cols(), out.Cols())

		// the input frame is untouched, the copy has drawings
		inMean := frame.Mean()
		outMean := out.Mean()
		assert.Equal(t, 0.0, inMean.Val1+inMean.Val2+inMean.Val3)
		assert.Greater(t, outMean.Val1+outMean.Val2+outMean.Val3, 0.0)
	})

	t.Run("render with no detections still copies", func(t *testing.T) {
		frame := gocv.NewMatWithSize(240, 320, gocv.MatTypeCV8UC3)
		defer frame.Close()

		out := r.RenderDetections(frame, nil)
		defer out.Close()
		assert.False(t, out.Empty())
	})

	t.Run("info overlay draws every entry", func(t *testing.T) {
		frame := gocv.NewMatWithSize(240, 320, gocv.MatTypeCV8UC3)
		defer frame.Close()

		out := r.AddInfoOverlay(frame, []OverlayEntry{
			{Key: "FPS", Value: "30.0"},
			{Key: "Mode", Value: "Test"},
		})
		defer out.Close()

		mean := out.Mean()
		assert.Greater(t, mean.Val2, 0.0, "green overlay text must land on the copy")
	})

	t.Run("invalid renderer params fall back", func(t *testing.T) {
		r2 := NewRenderer(-1, 0)
		assert.Equal(t, 0.6, r2.fontScale)
		assert.Equal(t, 2, r2.lineThickness)
	})
}
