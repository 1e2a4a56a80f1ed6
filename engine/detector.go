package engine

import (
	"errors"
	"fmt"

	iface "VisionTracker/interface"

	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

// Detector wraps exactly one backend instance behind the uniform detect
// contract. It carries no retry logic: a failed detection is reported upward
// once and the next frame starts fresh.
type Detector struct {
	cfg         iface.BackendConfig
	log         *zap.Logger
	backend     iface.Backend
	backendName string
	loaded      bool
}

func NewDetector(cfg iface.BackendConfig, log *zap.Logger) *Detector {
	return &Detector{cfg: cfg, log: log.Named("detector")}
}

// Load resolves the backend (explicit name, or auto-detect when empty),
// constructs it and asks it to load the model.
func (d *Detector) Load(modelPath, backendName string) error {
	if backendName == "" {
		name, err := AutoDetect(d.cfg, modelPath)
		if err != nil {
			d.log.Error("backend auto-detection failed", zap.Error(err))
			return err
		}
		backendName = name
		d.log.Info("auto-detected backend", zap.String("backend", backendName))
	}

	backend, err := CreateBackend(backendName, d.cfg)
	if err != nil {
		return err
	}
	if err := backend.Load(modelPath); err != nil {
		_ = backend.Close()
		return err
	}

	d.backend = backend
	d.backendName = backendName
	d.loaded = true
	d.log.Info("model loaded",
		zap.String("backend", backendName), zap.String("model", modelPath))
	return nil
}

// Detect delegates to the backend. Fails when no model is loaded.
func (d *Detector) Detect(frame gocv.Mat) ([]iface.Detection, error) {
	if !d.loaded || d.backend == nil {
		return nil, &iface.DetectionError{Backend: d.backendName, Err: fmt.Errorf("model not loaded")}
	}
	detections, err := d.backend.Detect(frame)
	if err != nil {
		var derr *iface.DetectionError
		if errors.As(err, &derr) {
			return nil, err
		}
		return nil, &iface.DetectionError{Backend: d.backendName, Err: err}
	}
	return detections, nil
}

// AverageInferenceTime reports the backend's rolling mean in seconds, zero
// before any detection has run.
func (d *Detector) AverageInferenceTime() float64 {
	if d.backend == nil {
		return 0
	}
	return d.backend.AverageInferenceTime()
}

func (d *Detector) FPS() float64 {
	if d.backend == nil {
		return 0
	}
	return d.backend.FPS()
}

func (d *Detector) IsReady() bool { return d.loaded && d.backend != nil }

func (d *Detector) BackendName() string { return d.backendName }

func (d *Detector) ModelInfo() map[string]string {
	if d.backend == nil {
		return map[string]string{"backend": "none", "loaded": "false"}
	}
	return d.backend.ModelInfo()
}

func (d *Detector) Close() error {
	if d.backend == nil {
		return nil
	}
	d.loaded = false
	err := d.backend.Close()
	d.backend = nil
	return err
}
