package camera

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"time"

	"gocv.io/x/gocv"
)

// Generator produces deterministic procedural frames so the pipeline can run
// without any capture hardware.
type Generator struct {
	width      int
	height     int
	fps        float64
	frameCount int
	start      time.Time
}

func NewGenerator(width, height int, fps float64) *Generator {
	if width <= 0 {
		width = 640
	}
	if height <= 0 {
		height = 480
	}
	if fps <= 0 {
		fps = 30
	}
	return &Generator{width: width, height: height, fps: fps, start: time.Now()}
}

func (g *Generator) Width() int  { return g.width }
func (g *Generator) Height() int { return g.height }

// GenerateFrame renders the next animation frame. The caller owns the Mat.
func (g *Generator) GenerateFrame() gocv.Mat {
	frame := gocv.NewMatWithSize(g.height, g.width, gocv.MatTypeCV8UC3)
	t := time.Since(g.start).Seconds()

	g.drawGradient(&frame)
	g.drawCircle(&frame, t)
	g.drawRectangle(&frame, t)
	g.drawGrid(&frame)
	g.drawText(&frame, t)

	g.frameCount++
	return frame
}

func (g *Generator) drawGradient(frame *gocv.Mat) {
	const band = 4
	for y := 0; y < g.height; y += band {
		intensity := 50 + 100*y/g.height
		end := y + band
		if end > g.height {
			end = g.height
		}
		gocv.Rectangle(frame, image.Rect(0, y, g.width, end),
			color.RGBA{R: uint8(intensity), G: uint8(intensity / 2), B: uint8(intensity / 3)}, -1)
	}
}

func (g *Generator) drawCircle(frame *gocv.Mat, t float64) {
	cx := g.width/2 + int(float64(g.width/4)*math.Sin(t*0.5))
	cy := g.height/2 + int(float64(g.height/4)*math.Cos(t*0.7))
	radius := 30 + int(20*math.Sin(t*2))
	gocv.Circle(frame, image.Pt(cx, cy), radius, color.RGBA{R: 100, G: 200, B: 100}, -1)
	gocv.Circle(frame, image.Pt(cx, cy), radius+5, color.RGBA{R: 255, G: 255, B: 255}, 2)
}

func (g *Generator) drawRectangle(frame *gocv.Mat, t float64) {
	x := int(float64(g.width+100)*math.Mod(t*0.1, 1)) - 50
	y := int(float64(g.height) * 0.7)
	r := image.Rect(x, y, x+80, y+40)
	gocv.Rectangle(frame, r, color.RGBA{R: 200, G: 50, B: 50}, -1)
	gocv.Rectangle(frame, r, color.RGBA{R: 255, G: 255, B: 255}, 2)
}

func (g *Generator) drawGrid(frame *gocv.Mat) {
	const spacing = 80
	c := color.RGBA{R: 80, G: 80, B: 80}
	for x := 0; x < g.width; x += spacing {
		gocv.Line(frame, image.Pt(x, 0), image.Pt(x, g.height), c, 1)
	}
	for y := 0; y < g.height; y += spacing {
		gocv.Line(frame, image.Pt(0, y), image.Pt(g.width, y), c, 1)
	}
}

func (g *Generator) drawText(frame *gocv.Mat, t float64) {
	white := color.RGBA{R: 255, G: 255, B: 255}
	grey := color.RGBA{R: 200, G: 200, B: 200}

	gocv.PutText(frame, "TEST MODE - Synthetic Data", image.Pt(10, 30),
		gocv.FontHersheySimplex, 0.8, white, 2)
	gocv.PutText(frame, fmt.Sprintf("Frame: %d", g.frameCount), image.Pt(10, 60),
		gocv.FontHersheySimplex, 0.6, grey, 1)
	gocv.PutText(frame, fmt.Sprintf("Time: %.1fs", t), image.Pt(10, 85),
		gocv.FontHersheySimplex, 0.6, grey, 1)
	gocv.PutText(frame, fmt.Sprintf("Resolution: %dx%d", g.width, g.height),
		image.Pt(10, g.height-40), gocv.FontHersheySimplex, 0.5, white, 1)

	fps := 0.0
	if t > 0 {
		fps = float64(g.frameCount) / t
	}
	gocv.PutText(frame, fmt.Sprintf("FPS: %.1f", fps), image.Pt(10, g.height-15),
		gocv.FontHersheySimplex, 0.5, color.RGBA{G: 255}, 1)
}
