package engine

import (
	"testing"

	iface "VisionTracker/interface"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func testBackendConfig() iface.BackendConfig {
	return iface.BackendConfig{ConfidenceThreshold: 0.5, IouThreshold: 0.45, Device: "cpu"}
}

func TestPool_All(t *testing.T) {
	log := zap.NewNop()
	cfg := testBackendConfig()

	t.Run("single backend disables switching", func(t *testing.T) {
		p, err := NewPool([]string{"mock"}, cfg, "", log)
		assert.NoError(t, err)
		defer p.Close()

		assert.False(t, p.SwitchingEnabled())
		assert.Equal(t, "mock", p.CurrentName())
		assert.Equal(t, []string{"mock"}, p.Available())
		assert.False(t, p.SwitchToIndex(0), "switching must stay disabled")
	})

	t.Run("failed backends are skipped", func(t *testing.T) {
		p, err := NewPool([]string{"mock", "yolo", "detectron2"}, cfg, "missing.onnx", log)
		assert.NoError(t, err)
		defer p.Close()

		// yolo has no model file and detectron2 is unknown, only mock survives
		assert.Equal(t, []string{"mock"}, p.Available())
		assert.True(t, p.SwitchingEnabled(), "switching follows the request, not the survivors")
	})

	t.Run("all backends failing is fatal", func(t *testing.T) {
		p, err := NewPool([]string{"yolo", "detectron2"}, cfg, "missing.onnx", log)
		assert.Nil(t, p)
		var mlErr *iface.ModelLoadError
		assert.ErrorAs(t, err, &mlErr)
	})

	t.Run("switch by index", func(t *testing.T) {
		p, err := NewPool([]string{"mock", "mock"}, cfg, "", log)
		assert.NoError(t, err)
		defer p.Close()

		assert.True(t, p.SwitchToIndex(1))
		idx, total := p.CurrentIndex()
		assert.Equal(t, 1, idx)
		assert.Equal(t, 2, total)

		assert.True(t, p.SwitchToIndex(1), "same index is a no-op success")
		assert.False(t, p.SwitchToIndex(5))
		assert.False(t, p.SwitchToIndex(-1))
		idx, _ = p.CurrentIndex()
		assert.Equal(t, 1, idx, "failed switch must not move the index")
	})

	t.Run("switch by name", func(t *testing.T) {
		p, err := NewPool([]string{"mock", "ghost"}, cfg, "", log)
		assert.NoError(t, err)
		defer p.Close()

		assert.True(t, p.SwitchToName("mock"))
		assert.False(t, p.SwitchToName("ghost"), "ghost never loaded")
		assert.False(t, p.SwitchToName("nonexistent"))
		assert.Equal(t, "mock", p.CurrentName())
	})

	t.Run("next and previous wrap around", func(t *testing.T) {
		p, err := NewPool([]string{"mock", "mock", "mock"}, cfg, "", log)
		assert.NoError(t, err)
		defer p.Close()

		assert.True(t, p.Previous(), "previous from 0 wraps to the last entry")
		idx, _ := p.CurrentIndex()
		assert.Equal(t, 2, idx)

		assert.True(t, p.Next())
		idx, _ = p.CurrentIndex()
		assert.Equal(t, 0, idx)
	})

	t.Run("close empties the pool", func(t *testing.T) {
		p, err := NewPool([]string{"mock"}, cfg, "", log)
		assert.NoError(t, err)

		p.Close()
		assert.Nil(t, p.Current())
		assert.Equal(t, "", p.CurrentName())
		assert.Empty(t, p.Available())
	})
}
