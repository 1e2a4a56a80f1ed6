// Package render turns frames plus detections into annotated frames. Both
// entry points are pure transforms over the input Mat; nothing here holds
// shared state, so calls belong on the loop goroutine only.
package render

import (
	"fmt"
	"image"
	"image/color"

	iface "VisionTracker/interface"

	"gocv.io/x/gocv"
)

const paletteSize = 100

// Renderer draws bounding boxes, labels and the info overlay.
type Renderer struct {
	fontScale     float64
	lineThickness int
	palette       []color.RGBA
}

func NewRenderer(fontScale float64, lineThickness int) *Renderer {
	if fontScale <= 0 {
		fontScale = 0.6
	}
	if lineThickness <= 0 {
		lineThickness = 2
	}
	return &Renderer{
		fontScale:     fontScale,
		lineThickness: lineThickness,
		palette:       buildPalette(),
	}
}

// buildPalette spreads hues evenly so each class id maps to a stable,
// distinct color across frames and runs.
func buildPalette() []color.RGBA {
	palette := make([]color.RGBA, paletteSize)
	for i := range palette {
		hue := 360 * float64(i) / paletteSize
		palette[i] = hsvToRGB(hue, 1, 1)
	}
	return palette
}

func hsvToRGB(h, s, v float64) color.RGBA {
	c := v * s
	hp := h / 60
	x := c * (1 - abs(mod2(hp)-1))
	var r, g, b float64
	switch {
	case hp < 1:
		r, g, b = c, x, 0
	case hp < 2:
		r, g, b = x, c, 0
	case hp < 3:
		r, g, b = 0, c, x
	case hp < 4:
		r, g, b = 0, x, c
	case hp < 5:
		r, g, b = x, 0, c
	default:
		r, g, b = c, 0, x
	}
	m := v - c
	return color.RGBA{
		R: uint8(255 * (r + m)),
		G: uint8(255 * (g + m)),
		B: uint8(255 * (b + m)),
		A: 255,
	}
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

func mod2(f float64) float64 {
	for f >= 2 {
		f -= 2
	}
	return f
}

// ClassColor returns the deterministic color for a class id.
func (r *Renderer) ClassColor(classID int) color.RGBA {
	if classID < 0 {
		return color.RGBA{G: 255, A: 255}
	}
	return r.palette[classID%len(r.palette)]
}

// RenderDetections draws one box and label per detection onto a copy of the
// frame. The caller owns the returned Mat.
func (r *Renderer) RenderDetections(frame gocv.Mat, detections []iface.Detection) gocv.Mat {
	out := frame.Clone()
	for _, det := range detections {
		r.drawDetection(&out, det)
	}
	return out
}

func (r *Renderer) drawDetection(frame *gocv.Mat, det iface.Detection) {
	c := r.ClassColor(det.ClassID)
	gocv.Rectangle(frame, det.Box, c, r.lineThickness)

	label := fmt.Sprintf("%s: %.2f", det.ClassName, det.Confidence)
	size := gocv.GetTextSize(label, gocv.FontHersheySimplex, r.fontScale, r.lineThickness)

	bg := image.Rect(det.Box.Min.X, det.Box.Min.Y-size.Y-10,
		det.Box.Min.X+size.X, det.Box.Min.Y)
	gocv.Rectangle(frame, bg, c, -1)
	gocv.PutText(frame, label, image.Pt(det.Box.Min.X, det.Box.Min.Y-5),
		gocv.FontHersheySimplex, r.fontScale, color.RGBA{A: 255}, r.lineThickness)
}

// OverlayEntry is one ordered key/value line of the info block.
type OverlayEntry struct {
	Key   string
	Value string
}

// AddInfoOverlay draws the info block top-left onto a copy of the frame.
func (r *Renderer) AddInfoOverlay(frame gocv.Mat, info []OverlayEntry) gocv.Mat {
	out := frame.Clone()
	y := 20
	for _, entry := range info {
		text := fmt.Sprintf("%s: %s", entry.Key, entry.Value)
		gocv.PutText(&out, text, image.Pt(10, y),
			gocv.FontHersheySimplex, r.fontScale, color.RGBA{G: 255, A: 255}, 1)
		y += 25
	}
	return out
}
