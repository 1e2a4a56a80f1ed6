package iface

import (
	"image"

	"gocv.io/x/gocv"
)

// Detection is one recognized object on a single frame. Values are produced
// fresh per frame by a backend and never mutated afterwards.
type Detection struct {
	ClassID    int
	ClassName  string
	Confidence float32
	Box        image.Rectangle
}

// Center returns the midpoint of the bounding box.
func (d Detection) Center() image.Point {
	return image.Pt((d.Box.Min.X+d.Box.Max.X)/2, (d.Box.Min.Y+d.Box.Max.Y)/2)
}

// Area returns the bounding box area in pixels.
func (d Detection) Area() float64 {
	return float64(d.Box.Dx()) * float64(d.Box.Dy())
}

// Valid reports whether the detection satisfies the geometry and
// confidence invariants.
func (d Detection) Valid() bool {
	return d.Confidence >= 0 && d.Confidence <= 1 &&
		d.Box.Min.X < d.Box.Max.X && d.Box.Min.Y < d.Box.Max.Y
}

// Backend is the capability contract every pluggable detection engine
// implements. Implementations are stateful and not safe for concurrent
// Detect calls.
type Backend interface {
	Load(modelPath string) error
	Detect(frame gocv.Mat) ([]Detection, error)
	AverageInferenceTime() float64
	FPS() float64
	ModelInfo() map[string]string
	Close() error
}

// BackendConfig carries the settings handed to a backend constructor.
type BackendConfig struct {
	Device              string
	ConfidenceThreshold float32
	IouThreshold        float32
	Endpoint            string
	CacheDir            string
}

// BackendDescriptor is the static metadata registered for each installable
// backend. Registered once at startup, read-only afterwards.
type BackendDescriptor struct {
	Name        string
	Description string
	Tags        []string
	Requires    []string
}
