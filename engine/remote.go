package engine

import (
	"fmt"
	"image"
	"time"

	iface "VisionTracker/interface"

	"github.com/go-resty/resty/v2"
	"gocv.io/x/gocv"
)

// remoteBackend posts JPEG-encoded frames to an external inference service.
// Expected API: GET /health for the readiness probe, POST /detect with
// image/jpeg body returning remoteResponse.
type remoteBackend struct {
	cfg    iface.BackendConfig
	client *resty.Client
	model  string
	loaded bool
	timer  inferenceTimer
}

type remoteResponse struct {
	Detections []remoteDetection `json:"detections"`
}

type remoteDetection struct {
	ClassID    int     `json:"class_id"`
	ClassName  string  `json:"class_name"`
	Confidence float32 `json:"confidence"`
	X1         int     `json:"x1"`
	Y1         int     `json:"y1"`
	X2         int     `json:"x2"`
	Y2         int     `json:"y2"`
}

func newRemoteBackend(cfg iface.BackendConfig) *remoteBackend {
	client := resty.New().
		SetBaseURL(cfg.Endpoint).
		SetTimeout(5 * time.Second).
		SetRetryCount(0)
	return &remoteBackend{cfg: cfg, client: client}
}

// Load verifies the service is reachable; the model identifier is forwarded
// with every request so the service picks the weights.
func (b *remoteBackend) Load(modelPath string) error {
	if b.cfg.Endpoint == "" {
		return &iface.ModelLoadError{Backend: "remote", Err: fmt.Errorf("no endpoint configured")}
	}
	resp, err := b.client.R().Get("/health")
	if err != nil {
		return &iface.ModelLoadError{Backend: "remote", Err: err}
	}
	if !resp.IsSuccess() {
		return &iface.ModelLoadError{Backend: "remote", Err: fmt.Errorf("health probe returned %s", resp.Status())}
	}
	b.model = modelPath
	b.loaded = true
	return nil
}

func (b *remoteBackend) Detect(frame gocv.Mat) ([]iface.Detection, error) {
	if !b.loaded {
		return nil, &iface.DetectionError{Backend: "remote", Err: fmt.Errorf("model not loaded")}
	}
	start := time.Now()
	defer func() { b.timer.record(time.Since(start)) }()

	buf, err := gocv.IMEncode(".jpg", frame)
	if err != nil {
		return nil, &iface.DetectionError{Backend: "remote", Err: err}
	}
	defer buf.Close()

	var result remoteResponse
	resp, err := b.client.R().
		SetHeader("Content-Type", "image/jpeg").
		SetQueryParam("model", b.model).
		SetQueryParam("conf", fmt.Sprintf("%g", b.cfg.ConfidenceThreshold)).
		SetQueryParam("iou", fmt.Sprintf("%g", b.cfg.IouThreshold)).
		SetBody(buf.GetBytes()).
		SetResult(&result).
		Post("/detect")
	if err != nil {
		return nil, &iface.DetectionError{Backend: "remote", Err: err}
	}
	if !resp.IsSuccess() {
		return nil, &iface.DetectionError{Backend: "remote", Err: fmt.Errorf("service returned %s", resp.Status())}
	}

	detections := make([]iface.Detection, 0, len(result.Detections))
	for _, d := range result.Detections {
		det := iface.Detection{
			ClassID:    d.ClassID,
			ClassName:  d.ClassName,
			Confidence: d.Confidence,
			Box:        image.Rect(d.X1, d.Y1, d.X2, d.Y2),
		}
		// discard malformed entries instead of propagating them
		if !det.Valid() {
			continue
		}
		detections = append(detections, det)
	}
	return detections, nil
}

func (b *remoteBackend) AverageInferenceTime() float64 { return b.timer.average() }
func (b *remoteBackend) FPS() float64                  { return b.timer.fps() }

func (b *remoteBackend) ModelInfo() map[string]string {
	return map[string]string{
		"backend":  "remote",
		"endpoint": b.cfg.Endpoint,
		"model":    b.model,
	}
}

func (b *remoteBackend) Close() error {
	b.loaded = false
	return nil
}
