package camera

import (
	"testing"

	"VisionTracker/config"
	"VisionTracker/platform"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func newTestManager() *Manager {
	cfg := config.CameraConfig{Width: 320, Height: 240, FPS: 30}
	plat := platform.Info{System: "linux", Arch: "amd64"}
	return NewManager(cfg, plat, zap.NewNop())
}

func TestGenerator_All(t *testing.T) {
	t.Run("frames match the requested resolution", func(t *testing.T) {
		g := NewGenerator(320, 240, 30)
		frame := g.GenerateFrame()
		defer frame.Close()

		assert.Equal(t, 320, frame.Cols())
		assert.Equal(t, 240, frame.Rows())
		assert.False(t, frame.Empty())
	})

	t.Run("invalid dimensions fall back to defaults", func(t *testing.T) {
		g := NewGenerator(0, -10, 0)
		assert.Equal(t, 640, g.Width())
		assert.Equal(t, 480, g.Height())
	})

	t.Run("frames are not blank", func(t *testing.T) {
		g := NewGenerator(320, 240, 30)
		frame := g.GenerateFrame()
		defer frame.Close()

		mean := frame.Mean()
		assert.Greater(t, mean.Val1+mean.Val2+mean.Val3, 0.0)
	})
}

func TestManager_All(t *testing.T) {
	t.Run("synthetic mode", func(t *testing.T) {
		m := newTestManager()
		m.InitializeSynthetic()
		defer m.Release()

		assert.Equal(t, ModeSynthetic, m.Mode())
		assert.True(t, m.IsSynthetic())

		w, h := m.Resolution()
		assert.Equal(t, 320, w)
		assert.Equal(t, 240, h)
	})

	t.Run("read frame and last frame", func(t *testing.T) {
		m := newTestManager()
		m.InitializeSynthetic()
		defer m.Release()

		frame, ok := m.ReadFrame()
		assert.True(t, ok)
		defer frame.Close()
		assert.Equal(t, 1, m.FrameCount())

		last, ok := m.LastFrame()
		assert.True(t, ok)
		defer last.Close()
		assert.Equal(t, frame.Cols(), last.Cols())
	})

	t.Run("last frame before any read", func(t *testing.T) {
		m := newTestManager()
		m.InitializeSynthetic()
		defer m.Release()

		_, ok := m.LastFrame()
		assert.False(t, ok)
	})

	t.Run("unknown source falls back to synthetic", func(t *testing.T) {
		m := newTestManager()
		err := m.Initialize("definitely/not/a/file")
		defer m.Release()

		assert.NoError(t, err)
		assert.Equal(t, ModeSynthetic, m.Mode())
	})

	t.Run("release is idempotent", func(t *testing.T) {
		m := newTestManager()
		m.InitializeSynthetic()
		m.Release()
		m.Release()

		assert.Equal(t, ModeClosed, m.Mode())
		_, ok := m.ReadFrame()
		assert.False(t, ok)
	})
}
