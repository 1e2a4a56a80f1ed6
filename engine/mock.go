package engine

import (
	"fmt"
	"image"
	"math"
	"time"

	iface "VisionTracker/interface"

	"gocv.io/x/gocv"
)

var mockClasses = []string{"person", "car", "bicycle"}

// mockBackend emits deterministic detections that orbit the frame. It has no
// external requirements and exists so the full pipeline can run and be
// tested without a model or network.
type mockBackend struct {
	cfg    iface.BackendConfig
	loaded bool
	frame  int
	timer  inferenceTimer
}

func newMockBackend(cfg iface.BackendConfig) *mockBackend {
	return &mockBackend{cfg: cfg}
}

func (b *mockBackend) Load(modelPath string) error {
	b.loaded = true
	return nil
}

func (b *mockBackend) Detect(frame gocv.Mat) ([]iface.Detection, error) {
	if !b.loaded {
		return nil, &iface.DetectionError{Backend: "mock", Err: fmt.Errorf("model not loaded")}
	}
	start := time.Now()
	defer func() { b.timer.record(time.Since(start)) }()

	w := frame.Cols()
	h := frame.Rows()
	if w < 64 || h < 64 {
		return nil, nil
	}

	b.frame++
	t := float64(b.frame) * 0.05
	detections := make([]iface.Detection, 0, len(mockClasses))
	for i, name := range mockClasses {
		phase := t + float64(i)*2.1
		cx := w/2 + int(float64(w/3)*math.Sin(phase))
		cy := h/2 + int(float64(h/3)*math.Cos(phase*0.8))
		bw := 40 + 10*i
		bh := 30 + 8*i
		box := image.Rect(cx-bw/2, cy-bh/2, cx+bw/2, cy+bh/2)
		box = box.Intersect(image.Rect(0, 0, w, h))
		if box.Dx() <= 0 || box.Dy() <= 0 {
			continue
		}
		conf := float32(0.6 + 0.35*math.Abs(math.Sin(phase)))
		if conf < b.cfg.ConfidenceThreshold {
			continue
		}
		detections = append(detections, iface.Detection{
			ClassID:    i,
			ClassName:  name,
			Confidence: conf,
			Box:        box,
		})
	}
	return detections, nil
}

func (b *mockBackend) AverageInferenceTime() float64 { return b.timer.average() }
func (b *mockBackend) FPS() float64                  { return b.timer.fps() }

func (b *mockBackend) ModelInfo() map[string]string {
	return map[string]string{
		"backend": "mock",
		"loaded":  fmt.Sprintf("%t", b.loaded),
		"classes": fmt.Sprintf("%d", len(mockClasses)),
	}
}

func (b *mockBackend) Close() error {
	b.loaded = false
	return nil
}
