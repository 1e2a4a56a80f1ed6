// Package camera provides the frame source for the tracking pipeline: a
// video file, a camera device behind platform-specific capture backends, or
// a synthetic generator when no hardware source works.
package camera

import (
	"fmt"
	"os"
	"strconv"
	"sync"

	"VisionTracker/config"
	iface "VisionTracker/interface"
	"VisionTracker/platform"

	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

type Mode int

const (
	ModeClosed Mode = iota
	ModeFile
	ModeCamera
	ModeSynthetic
)

func (m Mode) String() string {
	switch m {
	case ModeFile:
		return "file"
	case ModeCamera:
		return "camera"
	case ModeSynthetic:
		return "synthetic"
	}
	return "closed"
}

const probeIndexLimit = 5

// Manager owns one frame source at a time. Initialize walks the fallback
// chain (file, requested camera, probed camera indices, synthetic) so the
// pipeline always ends up with a working source.
type Manager struct {
	cfg  config.CameraConfig
	plat platform.Info
	log  *zap.Logger

	mu        sync.Mutex
	cap       *gocv.VideoCapture
	gen       *Generator
	mode      Mode
	lastFrame gocv.Mat
	hasLast   bool

	frameCount  int
	failStreak  int
	deviceIndex int
}

func NewManager(cfg config.CameraConfig, plat platform.Info, log *zap.Logger) *Manager {
	return &Manager{
		cfg:         cfg,
		plat:        plat,
		log:         log.Named("camera"),
		deviceIndex: cfg.DeviceIndex,
	}
}

// Initialize opens the requested source, which may be a video file path, a
// camera index, or empty to use the configured device index. Hardware
// failures are warnings that advance the fallback chain; the synthetic
// generator at the end never fails, so the returned error is reserved for
// sources that cannot even be attempted.
func (m *Manager) Initialize(source string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if source != "" {
		if st, err := os.Stat(source); err == nil && !st.IsDir() {
			return m.openFileLocked(source)
		}
		if idx, err := strconv.Atoi(source); err == nil {
			m.deviceIndex = idx
		} else {
			m.log.Warn("source is neither a file nor a camera index, falling back",
				zap.String("source", source))
			m.useSyntheticLocked()
			return nil
		}
	}

	if cap, name := m.openDevice(m.deviceIndex); cap != nil {
		m.adopt(cap, ModeCamera)
		m.log.Info("camera opened",
			zap.Int("index", m.deviceIndex), zap.String("backend", name))
		return nil
	}

	m.log.Info("requested camera failed, probing alternative indices")
	for i := 0; i < probeIndexLimit; i++ {
		if i == m.deviceIndex {
			continue
		}
		if cap, name := m.openDevice(i); cap != nil {
			m.deviceIndex = i
			m.adopt(cap, ModeCamera)
			m.log.Info("camera found at alternative index",
				zap.Int("index", i), zap.String("backend", name))
			return nil
		}
	}

	m.log.Warn("no working camera found, using synthetic frames")
	m.useSyntheticLocked()
	return nil
}

// InitializeSynthetic skips the hardware chain entirely (test mode).
func (m *Manager) InitializeSynthetic() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.useSyntheticLocked()
}

func (m *Manager) openFileLocked(path string) error {
	cap, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return &iface.FrameSourceError{Op: "open file " + path, Err: err}
	}
	if !cap.IsOpened() {
		_ = cap.Close()
		return &iface.FrameSourceError{Op: "open file " + path, Err: fmt.Errorf("capture not opened")}
	}
	m.adopt(cap, ModeFile)
	m.log.Info("video file opened", zap.String("path", path))
	return nil
}

// openDevice tries each platform backend for one index. A backend only
// counts as working when it opens and yields a test frame.
func (m *Manager) openDevice(index int) (*gocv.VideoCapture, string) {
	for _, be := range m.plat.CameraBackends() {
		cap, err := gocv.VideoCaptureDeviceWithAPI(index, be.API)
		if err != nil || !cap.IsOpened() {
			if cap != nil {
				_ = cap.Close()
			}
			m.log.Debug("backend failed to open",
				zap.String("backend", be.Name), zap.Int("index", index))
			continue
		}
		m.configure(cap)
		probe := gocv.NewMat()
		ok := cap.Read(&probe)
		empty := probe.Empty()
		_ = probe.Close()
		if ok && !empty {
			return cap, be.Name
		}
		_ = cap.Close()
		m.log.Debug("backend opened but produced no frame",
			zap.String("backend", be.Name), zap.Int("index", index))
	}
	return nil, ""
}

func (m *Manager) configure(cap *gocv.VideoCapture) {
	cap.Set(gocv.VideoCaptureFrameWidth, float64(m.cfg.Width))
	cap.Set(gocv.VideoCaptureFrameHeight, float64(m.cfg.Height))
	cap.Set(gocv.VideoCaptureFPS, float64(m.cfg.FPS))
	// buffer of 1 keeps capture latency down
	cap.Set(gocv.VideoCaptureBufferSize, 1)
}

func (m *Manager) adopt(cap *gocv.VideoCapture, mode Mode) {
	m.releaseLocked()
	m.cap = cap
	m.mode = mode
}

func (m *Manager) useSyntheticLocked() {
	m.releaseLocked()
	m.gen = NewGenerator(m.cfg.Width, m.cfg.Height, float64(m.cfg.FPS))
	m.mode = ModeSynthetic
}

// ReadFrame performs a single read attempt with no retry. The returned Mat
// is owned by the caller, who must Close it. A second Mat is kept internally
// for LastFrame.
func (m *Manager) ReadFrame() (gocv.Mat, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var frame gocv.Mat
	switch m.mode {
	case ModeSynthetic:
		frame = m.gen.GenerateFrame()
	case ModeFile, ModeCamera:
		if m.cap == nil {
			return gocv.Mat{}, false
		}
		frame = gocv.NewMat()
		if !m.cap.Read(&frame) || frame.Empty() {
			_ = frame.Close()
			m.failStreak++
			if m.failStreak == 1 {
				m.log.Warn("failed to read frame from source",
					zap.String("mode", m.mode.String()))
			}
			return gocv.Mat{}, false
		}
	default:
		return gocv.Mat{}, false
	}

	m.failStreak = 0
	m.frameCount++
	if m.hasLast {
		_ = m.lastFrame.Close()
	}
	m.lastFrame = frame.Clone()
	m.hasLast = true
	return frame, true
}

// LastFrame returns a copy of the most recent frame. Safe to call from a
// different goroutine than the one reading frames.
func (m *Manager) LastFrame() (gocv.Mat, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.hasLast {
		return gocv.Mat{}, false
	}
	return m.lastFrame.Clone(), true
}

// Resolution reports the active source dimensions.
func (m *Manager) Resolution() (int, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch m.mode {
	case ModeSynthetic:
		return m.gen.Width(), m.gen.Height()
	case ModeFile, ModeCamera:
		if m.cap != nil {
			return int(m.cap.Get(gocv.VideoCaptureFrameWidth)),
				int(m.cap.Get(gocv.VideoCaptureFrameHeight))
		}
	}
	return 0, 0
}

func (m *Manager) Mode() Mode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mode
}

func (m *Manager) IsSynthetic() bool { return m.Mode() == ModeSynthetic }

func (m *Manager) FrameCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.frameCount
}

// Release closes the underlying capture. Idempotent; a loop iteration that
// races a Release sees a failed read rather than a freed handle.
func (m *Manager) Release() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.releaseLocked()
	if m.hasLast {
		_ = m.lastFrame.Close()
		m.hasLast = false
	}
	m.mode = ModeClosed
}

func (m *Manager) releaseLocked() {
	if m.cap != nil {
		if err := m.cap.Close(); err != nil {
			m.log.Error("error releasing capture", zap.Error(err))
		}
		m.cap = nil
	}
	m.gen = nil
}
