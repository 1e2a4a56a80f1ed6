package tracker

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"VisionTracker/config"
	iface "VisionTracker/interface"
	"VisionTracker/platform"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

func newTestTracker() *Tracker {
	cfg := config.Default()
	plat := platform.Info{System: "linux", Arch: "amd64", HasGUI: false}
	return New(cfg, plat, zap.NewNop(), nil, true)
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met within timeout")
}

func TestTracker_All(t *testing.T) {
	trk := newTestTracker()

	t.Run("initialize with partial backend preload", func(t *testing.T) {
		err := trk.Initialize("", true, "", []string{"mock", "yolo", "detectron2"})
		assert.NoError(t, err)

		// yolo has no model file and detectron2 does not exist, so only mock
		// loads; switching still follows the request list length
		assert.Equal(t, []string{"mock"}, trk.AvailableBackends())
		assert.Equal(t, "mock", trk.CurrentBackend())
		assert.True(t, trk.SwitchingEnabled())
		assert.Equal(t, StateStopped, trk.State())

		snap := trk.Stats()
		assert.True(t, snap.TestMode)
		assert.Equal(t, 640, snap.CameraWidth)
		assert.Equal(t, 480, snap.CameraHeight)
	})

	var detected atomic.Int64
	trk.SetDetectionCallback(func(dets []iface.Detection) {
		detected.Add(int64(len(dets)))
	})
	trk.SetFrameCallback(func(frame gocv.Mat, dets []iface.Detection) {
		panic("callback failure must not kill the loop")
	})

	t.Run("headless run produces frames and detections", func(t *testing.T) {
		trk.Start()
		assert.Equal(t, StateRunning, trk.State())

		waitFor(t, 3*time.Second, func() bool {
			return trk.Stats().FrameCount >= 3 && detected.Load() > 0
		})

		snap := trk.Stats()
		assert.Greater(t, snap.CurrentFPS, 0.0)
		assert.NotEmpty(t, snap.Detections)
		assert.Equal(t, "mock", snap.ModelInfo["backend"])
	})

	t.Run("double start is a no-op", func(t *testing.T) {
		before := trk.Stats().FrameCount
		trk.Start()
		assert.Equal(t, StateRunning, trk.State())
		assert.GreaterOrEqual(t, trk.Stats().FrameCount, before)
	})

	t.Run("pause drops frames and resume continues counting", func(t *testing.T) {
		trk.Pause()
		assert.Equal(t, StatePaused, trk.State())

		time.Sleep(150 * time.Millisecond)
		paused := trk.Stats().FrameCount
		time.Sleep(200 * time.Millisecond)
		assert.Equal(t, paused, trk.Stats().FrameCount, "no frames while paused")

		trk.Resume()
		assert.Equal(t, StateRunning, trk.State())
		waitFor(t, 3*time.Second, func() bool {
			return trk.Stats().FrameCount > paused
		})
	})

	t.Run("switch to unavailable backend fails", func(t *testing.T) {
		assert.False(t, trk.SwitchBackendByName("nonexistent"))
		assert.False(t, trk.SwitchBackendByName("yolo"), "yolo never loaded")
		assert.Equal(t, "mock", trk.CurrentBackend())
	})

	t.Run("switch to current backend succeeds", func(t *testing.T) {
		assert.True(t, trk.SwitchBackendByName("mock"))
		assert.Equal(t, "mock", trk.CurrentBackend())
	})

	t.Run("screenshot request is accepted while running", func(t *testing.T) {
		assert.True(t, trk.RequestScreenshot())
	})

	t.Run("stop joins the worker and releases resources", func(t *testing.T) {
		trk.Stop()
		assert.Equal(t, StateStopped, trk.State())
		assert.False(t, trk.RequestScreenshot())
		assert.Equal(t, "", trk.CurrentBackend(), "pool is gone after stop")

		// idempotent
		trk.Stop()
		assert.Equal(t, StateStopped, trk.State())
	})

	t.Run("start after stop requires a fresh initialize", func(t *testing.T) {
		before := trk.Stats().FrameCount
		trk.Start()
		assert.Equal(t, StateStopped, trk.State(), "no run without a loaded pool")
		assert.Equal(t, before, trk.Stats().FrameCount)
	})
}

func TestTracker_InitializeErrors(t *testing.T) {
	trk := newTestTracker()

	t.Run("no loadable backend moves to error", func(t *testing.T) {
		err := trk.Initialize("", true, "", []string{"yolo", "detectron2"})
		assert.Error(t, err)
		assert.Equal(t, StateError, trk.State())
	})

	t.Run("error state allows a fresh initialize", func(t *testing.T) {
		err := trk.Initialize("", true, "", []string{"mock"})
		assert.NoError(t, err)
		assert.Equal(t, StateStopped, trk.State())
		assert.False(t, trk.SwitchingEnabled(), "single backend request")
	})
}

func TestTracker_ProcessFrame(t *testing.T) {
	trk := newTestTracker()
	assert.NoError(t, trk.Initialize("", true, "", []string{"mock"}))
	defer trk.Stop()

	t.Run("iteration renders and counts", func(t *testing.T) {
		annotated, ok, fatal := trk.processFrame()
		assert.True(t, ok)
		assert.False(t, fatal)
		assert.False(t, annotated.Empty())
		assert.NoError(t, annotated.Close())
		assert.Equal(t, int64(1), trk.frameCount.Load())
	})

	t.Run("unusable detector still renders the frame", func(t *testing.T) {
		assert.NoError(t, trk.pool.Current().Close())

		annotated, ok, fatal := trk.processFrame()
		assert.True(t, ok, "the loop keeps going without detections")
		assert.False(t, fatal)
		assert.False(t, annotated.Empty())
		assert.NoError(t, annotated.Close())
		assert.Equal(t, int64(2), trk.frameCount.Load(), "iteration counter still advances")
	})
}

func TestTracker_DetectionErrorKeepsLoopAlive(t *testing.T) {
	// a service that passes the health probe but fails every inference call
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		http.Error(w, "inference failed", http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := config.Default()
	cfg.Model.RemoteEndpoint = srv.URL
	plat := platform.Info{System: "linux", Arch: "amd64", HasGUI: false}
	trk := New(cfg, plat, zap.NewNop(), nil, true)
	assert.NoError(t, trk.Initialize("", true, "", []string{"remote"}))
	defer trk.Stop()

	assert.True(t, trk.pool.Current().IsReady(), "backend is loaded, every Detect fails")

	annotated, ok, fatal := trk.processFrame()
	assert.True(t, ok, "a failed detection does not end the iteration")
	assert.False(t, fatal)
	assert.False(t, annotated.Empty(), "the frame still renders, just without boxes")
	assert.NoError(t, annotated.Close())
	assert.Equal(t, int64(1), trk.frameCount.Load(), "the counter still advances")
	assert.Empty(t, trk.stats.Counts(), "no detections were recorded")
}

func TestTracker_StopWaitsForLoopExit(t *testing.T) {
	trk := newTestTracker()
	assert.NoError(t, trk.Initialize("", true, "", []string{"mock"}))

	// stand in for a loop mid-iteration: running state with an open done
	// channel that only the loop goroutine may close
	trk.mu.Lock()
	trk.state = StateRunning
	trk.stopCh = make(chan struct{})
	trk.stopOnce = new(sync.Once)
	trk.teardownOnce = new(sync.Once)
	trk.loopDone = make(chan struct{})
	trk.mu.Unlock()

	stopped := make(chan struct{})
	go func() {
		trk.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("stop must wait for the loop to exit before tearing down")
	case <-time.After(100 * time.Millisecond):
	}
	assert.NotNil(t, trk.pool.Current(), "no teardown while the loop is alive")

	close(trk.loopDone)
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("stop did not finish after the loop exited")
	}
	assert.Equal(t, StateStopped, trk.State())
	assert.Equal(t, "", trk.CurrentBackend())
}

func TestTracker_FatalLoopError(t *testing.T) {
	trk := newTestTracker()
	assert.NoError(t, trk.Initialize("", true, "", []string{"mock"}))

	// a nil renderer makes the first iteration panic
	trk.renderer = nil
	trk.Start()

	waitFor(t, 3*time.Second, func() bool {
		return trk.State() == StateError
	})
	assert.Equal(t, "", trk.CurrentBackend(), "the dying worker releases its resources")

	trk.Stop()
	assert.Equal(t, StateError, trk.State(), "the terminal state survives stop")
}

func TestTracker_StartBeforeInitialize(t *testing.T) {
	trk := newTestTracker()
	trk.Start()
	assert.Equal(t, StateStopped, trk.State(), "start without initialize is a warned no-op")
}
