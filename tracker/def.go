// Package tracker is the top-level orchestrator: it owns the frame source,
// the backend pool and the renderer, runs the state machine and the
// processing loop, and exposes the public control API.
package tracker

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"VisionTracker/camera"
	"VisionTracker/config"
	"VisionTracker/engine"
	iface "VisionTracker/interface"
	"VisionTracker/monitor"
	"VisionTracker/platform"
	"VisionTracker/render"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

const (
	windowTitle      = "Vision Tracker"
	headlessInterval = 33 * time.Millisecond
	pausedInterval   = 100 * time.Millisecond
	stopJoinTimeout  = 2 * time.Second
	debugSaveEvery   = 300
)

type FrameCallback func(frame gocv.Mat, detections []iface.Detection)
type DetectionCallback func(detections []iface.Detection)

// Tracker coordinates one capture/detect/render pipeline. At most one loop
// is active per instance: the caller's goroutine when a display is
// available, otherwise one background worker.
type Tracker struct {
	cfg     *config.Config
	plat    platform.Info
	log     *zap.Logger
	metrics *monitor.Metrics
	runID   string

	source   *camera.Manager
	pool     *engine.Pool
	renderer *render.Renderer

	mu               sync.Mutex
	state            State
	testMode         bool
	forceHeadless    bool
	displayAvailable bool
	stopCh           chan struct{}
	stopOnce         *sync.Once
	teardownOnce     *sync.Once
	loopDone         chan struct{}
	commands         chan command

	frameCount atomic.Int64
	startTime  time.Time
	stats      *Statistics

	window     *gocv.Window
	fullscreen bool

	cbMu        sync.Mutex
	onFrame     FrameCallback
	onDetection DetectionCallback
}

// New builds a tracker. metrics may be nil when no metrics endpoint is
// wanted (tests). forceHeadless overrides the platform GUI probe.
func New(cfg *config.Config, plat platform.Info, log *zap.Logger, metrics *monitor.Metrics, forceHeadless bool) *Tracker {
	t := &Tracker{
		cfg:           cfg,
		plat:          plat,
		log:           log.Named("tracker"),
		metrics:       metrics,
		runID:         uuid.New().String(),
		state:         StateStopped,
		forceHeadless: forceHeadless,
		stats:         NewStatistics(),
	}
	t.displayAvailable = plat.HasGUI && !forceHeadless
	t.log.Info("tracker created",
		zap.String("runId", t.runID),
		zap.String("system", plat.System),
		zap.Bool("display", t.displayAvailable))
	return t
}

// Initialize wires the frame source and the backend pool. source may be a
// video file path, a camera index, or empty for the configured device;
// testMode skips hardware and uses the synthetic generator directly.
// preloadBackends is the ordered request list for the pool; empty means the
// configured (or auto-detected) single backend.
func (t *Tracker) Initialize(source string, testMode bool, modelPath string, preloadBackends []string) error {
	t.mu.Lock()
	st, err := t.state.transition(StateInitializing)
	if err != nil {
		t.mu.Unlock()
		t.log.Warn("cannot initialize", zap.String("state", t.state.String()))
		return err
	}
	t.state = st
	t.mu.Unlock()
	t.log.Info("initializing tracker")

	if err := t.initialize(source, testMode, modelPath, preloadBackends); err != nil {
		t.setState(StateError)
		t.log.Error("initialization failed", zap.Error(err))
		return err
	}

	t.setState(StateStopped)
	t.log.Info("tracker initialized",
		zap.Strings("backends", t.pool.Available()),
		zap.String("current", t.pool.CurrentName()),
		zap.Bool("switching", t.pool.SwitchingEnabled()),
		zap.String("source", t.source.Mode().String()))
	return nil
}

func (t *Tracker) initialize(source string, testMode bool, modelPath string, preloadBackends []string) error {
	if modelPath == "" {
		modelPath = t.cfg.Model.Name
	}
	requested := preloadBackends
	if len(requested) == 0 {
		name := t.cfg.Model.Backend
		if name == "auto" {
			name = ""
		}
		requested = []string{name}
	}

	backendCfg := iface.BackendConfig{
		Device:              t.cfg.Model.Device,
		ConfidenceThreshold: t.cfg.Model.ConfidenceThreshold,
		IouThreshold:        t.cfg.Model.IouThreshold,
		Endpoint:            t.cfg.Model.RemoteEndpoint,
		CacheDir:            t.cfg.Model.CacheDir,
	}

	pool, err := engine.NewPool(requested, backendCfg, modelPath, t.log)
	if err != nil {
		return err
	}

	t.renderer = render.NewRenderer(t.cfg.Display.FontScale, t.cfg.Display.LineThickness)
	t.source = camera.NewManager(t.cfg.Camera, t.plat, t.log)
	if testMode {
		t.source.InitializeSynthetic()
	} else if err := t.source.Initialize(source); err != nil {
		// the fallback chain ends in the synthetic generator, so reaching
		// here means the source could not even be attempted
		t.log.Warn("frame source error, using synthetic frames", zap.Error(err))
		t.source.InitializeSynthetic()
	}

	t.mu.Lock()
	t.pool = pool
	t.testMode = t.source.IsSynthetic()
	// armed here so Stop releases resources even when Start was never called
	t.teardownOnce = new(sync.Once)
	t.mu.Unlock()
	return nil
}

// Start runs the processing loop. With a display it blocks on the caller's
// goroutine until the run ends; headless it spawns the worker and returns.
// Calling Start in any state but stopped is a warned no-op.
func (t *Tracker) Start() {
	t.mu.Lock()
	if t.state != StateStopped || t.pool == nil {
		t.log.Warn("cannot start",
			zap.String("state", t.state.String()),
			zap.Bool("initialized", t.pool != nil))
		t.mu.Unlock()
		return
	}
	st, err := t.state.transition(StateRunning)
	if err != nil {
		t.mu.Unlock()
		return
	}
	t.state = st
	t.startTime = time.Now()
	t.frameCount.Store(0)
	t.stats.Reset()
	t.stopCh = make(chan struct{})
	t.stopOnce = new(sync.Once)
	t.teardownOnce = new(sync.Once)
	t.commands = make(chan command, 16)
	// closed when the loop exits, foreground or headless, so Stop can wait
	// for the iteration in flight before tearing resources down
	t.loopDone = make(chan struct{})
	display := t.displayAvailable
	t.mu.Unlock()

	t.log.Info("tracker started", zap.Bool("display", display))
	if display {
		t.runForegroundLoop()
	} else {
		go t.runHeadlessLoop()
	}
}

// Stop signals the loop, waits for it to exit with a bounded timeout and
// tears the run down. The wait covers both loop flavors: a closed pool must
// never race an iteration in flight. Safe to call more than once.
func (t *Tracker) Stop() {
	t.mu.Lock()
	stopCh, once, done := t.stopCh, t.stopOnce, t.loopDone
	t.mu.Unlock()

	if stopCh != nil && once != nil {
		once.Do(func() { close(stopCh) })
	}
	if done != nil {
		select {
		case <-done:
		case <-time.After(stopJoinTimeout):
			t.log.Warn("loop did not exit within timeout, proceeding with teardown")
		}
	}
	t.teardown(false)
}

// Pause drops frames until resume; acquisition and detection are skipped
// entirely while paused.
func (t *Tracker) Pause() {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, err := t.state.transition(StatePaused)
	if err != nil {
		t.log.Warn("cannot pause", zap.String("state", t.state.String()))
		return
	}
	t.state = st
	t.log.Info("tracker paused")
}

// Resume continues a paused run. Frame count is preserved.
func (t *Tracker) Resume() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != StatePaused {
		t.log.Warn("cannot resume", zap.String("state", t.state.String()))
		return
	}
	st, err := t.state.transition(StateRunning)
	if err != nil {
		return
	}
	t.state = st
	t.log.Info("tracker resumed")
}

// State returns the current tracker state.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Tracker) setState(target State) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if st, err := t.state.transition(target); err == nil {
		t.state = st
	} else {
		t.log.Warn("state transition rejected", zap.Error(err))
	}
}

func (t *Tracker) teardown(fatal bool) {
	t.mu.Lock()
	once := t.teardownOnce
	t.mu.Unlock()
	if once == nil {
		return
	}
	once.Do(func() {
		t.mu.Lock()
		pool := t.pool
		source := t.source
		// a fresh Initialize is required before the next Start
		t.pool = nil
		t.mu.Unlock()

		if pool != nil {
			pool.Close()
		}
		if source != nil {
			source.Release()
		}

		t.mu.Lock()
		target := StateStopped
		if fatal || t.state == StateError {
			target = StateError
		}
		if t.state != target {
			if st, err := t.state.transition(target); err == nil {
				t.state = st
			}
		}
		t.mu.Unlock()
		t.log.Info("tracker stopped", zap.Bool("fatal", fatal))
	})
}

// SetFrameCallback registers a callback invoked once per processed frame.
func (t *Tracker) SetFrameCallback(cb FrameCallback) {
	t.cbMu.Lock()
	t.onFrame = cb
	t.cbMu.Unlock()
}

// SetDetectionCallback registers a callback invoked for frames with at
// least one detection.
func (t *Tracker) SetDetectionCallback(cb DetectionCallback) {
	t.cbMu.Lock()
	t.onDetection = cb
	t.cbMu.Unlock()
}

// SwitchBackendByName switches the pool to the named backend. Callable from
// any goroutine; the pool guards its current index.
func (t *Tracker) SwitchBackendByName(name string) bool {
	t.mu.Lock()
	pool := t.pool
	t.mu.Unlock()
	if pool == nil {
		t.log.Warn("no backend pool loaded")
		return false
	}
	ok := pool.SwitchToName(name)
	if ok && t.metrics != nil {
		t.metrics.ObserveSwitch()
	}
	return ok
}

// CurrentBackend returns the active backend's name, or "".
func (t *Tracker) CurrentBackend() string {
	t.mu.Lock()
	pool := t.pool
	t.mu.Unlock()
	if pool == nil {
		return ""
	}
	return pool.CurrentName()
}

// AvailableBackends lists loaded backend names in request order.
func (t *Tracker) AvailableBackends() []string {
	t.mu.Lock()
	pool := t.pool
	t.mu.Unlock()
	if pool == nil {
		return nil
	}
	return pool.Available()
}

// SwitchingEnabled reports whether backend switching is active.
func (t *Tracker) SwitchingEnabled() bool {
	t.mu.Lock()
	pool := t.pool
	t.mu.Unlock()
	return pool != nil && pool.SwitchingEnabled()
}

// RequestScreenshot queues a screenshot for the next loop iteration.
func (t *Tracker) RequestScreenshot() bool {
	t.mu.Lock()
	ch := t.commands
	running := t.state == StateRunning || t.state == StatePaused
	t.mu.Unlock()
	if !running || ch == nil {
		return false
	}
	select {
	case ch <- command{kind: cmdScreenshot}:
		return true
	default:
		return false
	}
}

// Snapshot is the stats payload returned by Stats and served by the
// control API.
type Snapshot struct {
	RunID             string            `json:"runId"`
	State             string            `json:"state"`
	FrameCount        int64             `json:"frameCount"`
	RuntimeSeconds    float64           `json:"runtimeSeconds"`
	CurrentFPS        float64           `json:"currentFps"`
	AverageFPS        float64           `json:"averageFps"`
	Detections        map[string]int64  `json:"detections"`
	ModelInfo         map[string]string `json:"modelInfo"`
	CameraWidth       int               `json:"cameraWidth"`
	CameraHeight      int               `json:"cameraHeight"`
	TestMode          bool              `json:"testMode"`
	CurrentBackend    string            `json:"currentBackend"`
	AvailableBackends []string          `json:"availableBackends"`
	SwitchingEnabled  bool              `json:"switchingEnabled"`
}

// Stats returns a point-in-time snapshot of the run.
func (t *Tracker) Stats() Snapshot {
	t.mu.Lock()
	state := t.state
	start := t.startTime
	testMode := t.testMode
	pool := t.pool
	source := t.source
	t.mu.Unlock()

	snap := Snapshot{
		RunID:      t.runID,
		State:      state.String(),
		FrameCount: t.frameCount.Load(),
		CurrentFPS: t.stats.CurrentFPS(),
		AverageFPS: t.stats.AverageFPS(),
		Detections: t.stats.Counts(),
		TestMode:   testMode,
		ModelInfo:  map[string]string{},
	}
	if !start.IsZero() {
		snap.RuntimeSeconds = time.Since(start).Seconds()
	}
	if pool != nil {
		snap.CurrentBackend = pool.CurrentName()
		snap.AvailableBackends = pool.Available()
		snap.SwitchingEnabled = pool.SwitchingEnabled()
		if det := pool.Current(); det != nil {
			snap.ModelInfo = det.ModelInfo()
		}
	}
	if source != nil {
		snap.CameraWidth, snap.CameraHeight = source.Resolution()
	}
	return snap
}

// --- processing loops ---

func (t *Tracker) runForegroundLoop() {
	window := gocv.NewWindow(windowTitle)
	window.ResizeWindow(t.cfg.Display.WindowWidth, t.cfg.Display.WindowHeight)
	if t.cfg.Display.Fullscreen {
		window.SetWindowProperty(gocv.WindowPropertyFullscreen, gocv.WindowFullscreen)
		t.fullscreen = true
	}
	t.window = window

	fatal := false
loop:
	for {
		select {
		case <-t.stopCh:
			break loop
		default:
		}

		if t.State() == StatePaused {
			// keep polling input so resume/quit still work while frames drop
			if !t.handleKey(window.WaitKey(int(pausedInterval.Milliseconds()))) {
				break loop
			}
			if !t.drainCommands() {
				break loop
			}
			continue
		}

		annotated, ok, isFatal := t.processFrame()
		if isFatal {
			fatal = true
			break loop
		}
		if !ok {
			if !t.handleKey(window.WaitKey(10)) {
				break loop
			}
			continue
		}

		window.IMShow(annotated)
		key := window.WaitKey(1)
		_ = annotated.Close()
		if !t.handleKey(key) {
			break loop
		}
		if !t.drainCommands() {
			break loop
		}
	}

	_ = window.Close()
	t.window = nil
	if fatal {
		t.setState(StateError)
	}
	close(t.loopDone)
	t.teardown(fatal)
}

func (t *Tracker) runHeadlessLoop() {
	defer close(t.loopDone)

	fatal := false
loop:
	for {
		select {
		case <-t.stopCh:
			break loop
		default:
		}

		if t.State() == StatePaused {
			time.Sleep(pausedInterval)
			if !t.drainCommands() {
				break loop
			}
			continue
		}

		annotated, ok, isFatal := t.processFrame()
		if isFatal {
			fatal = true
			break loop
		}
		if !ok {
			time.Sleep(headlessInterval)
			continue
		}

		if fc := t.frameCount.Load(); fc%debugSaveEvery == 0 {
			path := fmt.Sprintf("output_frame_%06d.jpg", fc)
			if gocv.IMWrite(path, annotated) {
				t.log.Info("saved frame", zap.String("path", path))
			}
		}
		_ = annotated.Close()

		if !t.drainCommands() {
			break loop
		}
		time.Sleep(headlessInterval)
	}

	if fatal {
		// release resources here too: with no display there is nobody left
		// to call Stop once the worker dies
		t.setState(StateError)
		t.teardown(true)
	}
}

// processFrame runs one iteration: read, detect, render, callbacks, stats.
// ok is false when no frame was available (idle iteration). fatal is set
// when the iteration panicked; per-frame detection errors are logged and the
// frame still renders without boxes.
func (t *Tracker) processFrame() (annotated gocv.Mat, ok bool, fatal bool) {
	defer func() {
		if r := recover(); r != nil {
			t.log.Error("unrecoverable loop error", zap.Any("panic", r))
			ok = false
			fatal = true
		}
	}()

	frame, got := t.source.ReadFrame()
	if !got {
		return gocv.Mat{}, false, false
	}
	defer frame.Close()

	t.frameCount.Add(1)

	var detections []iface.Detection
	detector := t.pool.Current()
	if detector != nil && detector.IsReady() {
		dets, err := detector.Detect(frame)
		if err != nil {
			t.log.Error("detection error", zap.Error(err))
		} else {
			detections = dets
		}
	}

	annotated = t.renderer.RenderDetections(frame, detections)
	if t.cfg.Display.ShowFPS || t.cfg.Display.ShowConfidence {
		overlaid := t.renderer.AddInfoOverlay(annotated, t.infoOverlay())
		_ = annotated.Close()
		annotated = overlaid
	}

	t.invokeCallbacks(annotated, detections)

	fps := t.currentComputedFPS()
	t.stats.Record(fps, detections)
	if t.metrics != nil {
		inference := 0.0
		if detector != nil {
			inference = detector.AverageInferenceTime()
		}
		t.metrics.ObserveFrame(fps, inference, detections)
	}
	return annotated, true, false
}

func (t *Tracker) currentComputedFPS() float64 {
	t.mu.Lock()
	start := t.startTime
	t.mu.Unlock()
	elapsed := time.Since(start).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(t.frameCount.Load()) / elapsed
}

func (t *Tracker) invokeCallbacks(frame gocv.Mat, detections []iface.Detection) {
	t.cbMu.Lock()
	onFrame, onDetection := t.onFrame, t.onDetection
	t.cbMu.Unlock()

	if onFrame != nil {
		func() {
			defer func() {
				if r := recover(); r != nil {
					t.log.Error("frame callback panic", zap.Any("panic", r))
				}
			}()
			onFrame(frame, detections)
		}()
	}
	if onDetection != nil && len(detections) > 0 {
		func() {
			defer func() {
				if r := recover(); r != nil {
					t.log.Error("detection callback panic", zap.Any("panic", r))
				}
			}()
			onDetection(detections)
		}()
	}
}

func (t *Tracker) infoOverlay() []render.OverlayEntry {
	var info []render.OverlayEntry
	if t.cfg.Display.ShowFPS {
		info = append(info, render.OverlayEntry{Key: "FPS", Value: fmt.Sprintf("%.1f", t.stats.CurrentFPS())})
	}
	detector := t.pool.Current()
	if detector != nil {
		info = append(info, render.OverlayEntry{
			Key:   "Inference",
			Value: fmt.Sprintf("%.1fms", detector.AverageInferenceTime()*1000),
		})
	}
	info = append(info, render.OverlayEntry{Key: "Frame", Value: fmt.Sprintf("%d", t.frameCount.Load())})
	mode := "Live"
	if t.testMode {
		mode = "Test"
	}
	info = append(info, render.OverlayEntry{Key: "Mode", Value: mode})
	if detector != nil {
		info = append(info, render.OverlayEntry{Key: "Backend", Value: strings.ToUpper(detector.BackendName())})
		if idx, total := t.pool.CurrentIndex(); t.pool.SwitchingEnabled() && total > 1 {
			info = append(info, render.OverlayEntry{Key: "Backends", Value: fmt.Sprintf("(%d/%d)", idx+1, total)})
		}
	}
	return info
}

// --- command dispatch ---

// handleKey maps a pressed key to a command and dispatches it. Returns
// false when the run should end.
func (t *Tracker) handleKey(key int) bool {
	if key < 0 {
		return true
	}
	cmd, bound := keyCommand(key)
	if !bound {
		return true
	}
	return t.dispatch(cmd)
}

// drainCommands consumes every queued command. Returns false on quit.
func (t *Tracker) drainCommands() bool {
	for {
		select {
		case cmd := <-t.commands:
			if !t.dispatch(cmd) {
				return false
			}
		default:
			return true
		}
	}
}

func (t *Tracker) dispatch(cmd command) bool {
	switch cmd.kind {
	case cmdQuit:
		return false
	case cmdPauseToggle:
		if t.State() == StatePaused {
			t.Resume()
		} else {
			t.Pause()
		}
	case cmdScreenshot:
		t.saveScreenshot()
	case cmdFullscreen:
		t.toggleFullscreen()
	case cmdResetWindow:
		t.resetWindow()
	case cmdSwitchIndex:
		if t.pool.SwitchToIndex(cmd.index) && t.metrics != nil {
			t.metrics.ObserveSwitch()
		}
	case cmdSwitchNext:
		if t.pool.Next() && t.metrics != nil {
			t.metrics.ObserveSwitch()
		}
	case cmdSwitchPrev:
		if t.pool.Previous() && t.metrics != nil {
			t.metrics.ObserveSwitch()
		}
	case cmdBackendInfo:
		t.logBackendInfo()
	}
	return true
}

func (t *Tracker) saveScreenshot() {
	frame, ok := t.source.LastFrame()
	if !ok {
		t.log.Warn("no frame available for screenshot")
		return
	}
	defer frame.Close()

	name := fmt.Sprintf("screenshot_%s_%s.jpg",
		time.Now().Format("20060102_150405"), t.runID[:8])
	if gocv.IMWrite(name, frame) {
		t.log.Info("screenshot saved", zap.String("path", name))
	} else {
		t.log.Error("failed to save screenshot", zap.String("path", name))
	}
}

func (t *Tracker) toggleFullscreen() {
	if t.window == nil {
		return
	}
	if t.fullscreen {
		t.window.SetWindowProperty(gocv.WindowPropertyFullscreen, gocv.WindowNormal)
		t.fullscreen = false
		t.log.Info("fullscreen off")
	} else {
		t.window.SetWindowProperty(gocv.WindowPropertyFullscreen, gocv.WindowFullscreen)
		t.fullscreen = true
		t.log.Info("fullscreen on")
	}
}

func (t *Tracker) resetWindow() {
	if t.window == nil {
		return
	}
	t.window.ResizeWindow(t.cfg.Display.WindowWidth, t.cfg.Display.WindowHeight)
	t.log.Info("window size reset")
}

func (t *Tracker) logBackendInfo() {
	detector := t.pool.Current()
	if detector == nil {
		t.log.Info("no detector loaded")
		return
	}
	fields := []zap.Field{}
	for k, v := range detector.ModelInfo() {
		fields = append(fields, zap.String(k, v))
	}
	t.log.Info("backend information", fields...)
	if t.pool.SwitchingEnabled() {
		idx, total := t.pool.CurrentIndex()
		t.log.Info("backend pool",
			zap.Strings("available", t.pool.Available()),
			zap.String("current", t.pool.CurrentName()),
			zap.String("position", fmt.Sprintf("%d/%d", idx+1, total)))
	}
}
