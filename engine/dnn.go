package engine

import (
	"fmt"
	"image"
	"os"
	"strings"
	"time"

	iface "VisionTracker/interface"

	"gocv.io/x/gocv"
)

const dnnInputSize = 640

// cocoNames is the default label set for YOLO-family models. A labels file
// next to the model (same basename, .txt) overrides it.
var cocoNames = []string{
	"person", "bicycle", "car", "motorbike", "aeroplane", "bus", "train",
	"truck", "boat", "traffic light", "fire hydrant", "stop sign",
	"parking meter", "bench", "bird", "cat", "dog", "horse", "sheep", "cow",
	"elephant", "bear", "zebra", "giraffe", "backpack", "umbrella", "handbag",
	"tie", "suitcase", "frisbee", "skis", "snowboard", "sports ball", "kite",
	"baseball bat", "baseball glove", "skateboard", "surfboard",
	"tennis racket", "bottle", "wine glass", "cup", "fork", "knife", "spoon",
	"bowl", "banana", "apple", "sandwich", "orange", "broccoli", "carrot",
	"hot dog", "pizza", "donut", "cake", "chair", "sofa", "pottedplant",
	"bed", "diningtable", "toilet", "tvmonitor", "laptop", "mouse", "remote",
	"keyboard", "cell phone", "microwave", "oven", "toaster", "sink",
	"refrigerator", "book", "clock", "vase", "scissors", "teddy bear",
	"hair drier", "toothbrush",
}

// dnnBackend runs a YOLO-family ONNX model through the OpenCV DNN module.
type dnnBackend struct {
	cfg       iface.BackendConfig
	net       gocv.Net
	names     []string
	modelPath string
	loaded    bool
	timer     inferenceTimer
}

func newDNNBackend(cfg iface.BackendConfig) *dnnBackend {
	return &dnnBackend{cfg: cfg, names: cocoNames}
}

func (b *dnnBackend) Load(modelPath string) error {
	if modelPath == "" {
		return &iface.ModelLoadError{Backend: "yolo", Err: fmt.Errorf("empty model path")}
	}
	if !strings.HasSuffix(modelPath, ".onnx") {
		return &iface.ModelLoadError{Backend: "yolo", Err: fmt.Errorf("only .onnx models are supported, got %s", modelPath)}
	}
	if _, err := os.Stat(modelPath); err != nil {
		return &iface.ModelLoadError{Backend: "yolo", Err: err}
	}

	net := gocv.ReadNetFromONNX(modelPath)
	if net.Empty() {
		return &iface.ModelLoadError{Backend: "yolo", Err: fmt.Errorf("failed to read network from %s", modelPath)}
	}

	backend := gocv.NetBackendDefault
	target := gocv.NetTargetCPU
	if b.cfg.Device == "cuda" {
		backend = gocv.NetBackendCUDA
		target = gocv.NetTargetCUDA
	}
	if err := net.SetPreferableBackend(backend); err != nil {
		_ = net.Close()
		return &iface.ModelLoadError{Backend: "yolo", Err: err}
	}
	if err := net.SetPreferableTarget(target); err != nil {
		_ = net.Close()
		return &iface.ModelLoadError{Backend: "yolo", Err: err}
	}

	if names, err := readLabelFile(labelPathFor(modelPath)); err == nil {
		b.names = names
	}

	b.net = net
	b.modelPath = modelPath
	b.loaded = true
	return nil
}

func labelPathFor(modelPath string) string {
	return strings.TrimSuffix(modelPath, ".onnx") + ".txt"
}

func readLabelFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimRight(line, "\r")
		if line != "" {
			names = append(names, line)
		}
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("no labels in %s", path)
	}
	return names, nil
}

func (b *dnnBackend) Detect(frame gocv.Mat) ([]iface.Detection, error) {
	if !b.loaded {
		return nil, &iface.DetectionError{Backend: "yolo", Err: fmt.Errorf("model not loaded")}
	}
	if frame.Empty() {
		return nil, &iface.DetectionError{Backend: "yolo", Err: fmt.Errorf("empty frame")}
	}
	start := time.Now()
	defer func() { b.timer.record(time.Since(start)) }()

	blob := gocv.BlobFromImage(frame, 1.0/255.0,
		image.Pt(dnnInputSize, dnnInputSize), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	b.net.SetInput(blob, "")
	output := b.net.Forward("")
	defer output.Close()

	detections, err := b.decode(output, frame.Cols(), frame.Rows())
	if err != nil {
		return nil, &iface.DetectionError{Backend: "yolo", Err: err}
	}
	return detections, nil
}

// decode handles the YOLOv8 output layout [1, 4+classes, anchors]: box
// center/size rows first, then one score row per class.
func (b *dnnBackend) decode(output gocv.Mat, frameW, frameH int) ([]iface.Detection, error) {
	sizes := output.Size()
	if len(sizes) != 3 || sizes[0] != 1 || sizes[1] < 5 {
		return nil, fmt.Errorf("unexpected output shape %v", sizes)
	}
	rows := sizes[1]
	anchors := sizes[2]
	classes := rows - 4
	data, err := output.DataPtrFloat32()
	if err != nil {
		return nil, err
	}
	if len(data) < rows*anchors {
		return nil, fmt.Errorf("short output buffer: %d < %d", len(data), rows*anchors)
	}

	scaleX := float32(frameW) / float32(dnnInputSize)
	scaleY := float32(frameH) / float32(dnnInputSize)

	var boxes []image.Rectangle
	var scores []float32
	var classIDs []int

	for a := 0; a < anchors; a++ {
		bestClass := -1
		bestScore := float32(0)
		for c := 0; c < classes; c++ {
			s := data[(4+c)*anchors+a]
			if s > bestScore {
				bestScore = s
				bestClass = c
			}
		}
		if bestClass < 0 || bestScore < b.cfg.ConfidenceThreshold {
			continue
		}
		cx := data[a] * scaleX
		cy := data[anchors+a] * scaleY
		w := data[2*anchors+a] * scaleX
		h := data[3*anchors+a] * scaleY
		box := image.Rect(int(cx-w/2), int(cy-h/2), int(cx+w/2), int(cy+h/2))
		box = box.Intersect(image.Rect(0, 0, frameW, frameH))
		if box.Dx() <= 0 || box.Dy() <= 0 {
			continue
		}
		boxes = append(boxes, box)
		scores = append(scores, bestScore)
		classIDs = append(classIDs, bestClass)
	}

	if len(boxes) == 0 {
		return nil, nil
	}

	keep := gocv.NMSBoxes(boxes, scores, b.cfg.ConfidenceThreshold, b.cfg.IouThreshold)
	detections := make([]iface.Detection, 0, len(keep))
	for _, idx := range keep {
		if idx < 0 || idx >= len(boxes) {
			continue
		}
		name := fmt.Sprintf("class_%d", classIDs[idx])
		if classIDs[idx] < len(b.names) {
			name = b.names[classIDs[idx]]
		}
		conf := scores[idx]
		if conf > 1 {
			conf = 1
		}
		detections = append(detections, iface.Detection{
			ClassID:    classIDs[idx],
			ClassName:  name,
			Confidence: conf,
			Box:        boxes[idx],
		})
	}
	return detections, nil
}

func (b *dnnBackend) AverageInferenceTime() float64 { return b.timer.average() }
func (b *dnnBackend) FPS() float64                  { return b.timer.fps() }

func (b *dnnBackend) ModelInfo() map[string]string {
	return map[string]string{
		"backend":   "yolo",
		"model":     b.modelPath,
		"device":    b.cfg.Device,
		"inputSize": fmt.Sprintf("%d", dnnInputSize),
		"classes":   fmt.Sprintf("%d", len(b.names)),
	}
}

func (b *dnnBackend) Close() error {
	if !b.loaded {
		return nil
	}
	b.loaded = false
	return b.net.Close()
}
