package engine

import (
	"fmt"
	"sync"

	iface "VisionTracker/interface"

	"go.uber.org/zap"
)

// Handle pairs a backend name with its live detector. Handles stay resident
// for the pool's lifetime: switching is a current-index reassignment, never
// an unload, trading memory for instantaneous switches.
type Handle struct {
	Name     string
	Detector *Detector
}

// Pool owns every successfully preloaded detector and tracks which one is
// current. Switch operations are mutex-guarded so the control API can call
// them from a different goroutine than the processing loop.
type Pool struct {
	log *zap.Logger

	mu               sync.RWMutex
	handles          []Handle
	current          int
	switchingEnabled bool
}

// NewPool preloads the requested backends in order. A backend that fails to
// load is logged and skipped; the pool is only fatal when nothing loads.
// Switching is enabled whenever more than one backend was requested, even if
// only one survived loading.
func NewPool(requested []string, cfg iface.BackendConfig, modelPath string, log *zap.Logger) (*Pool, error) {
	p := &Pool{log: log.Named("pool")}
	p.switchingEnabled = len(requested) > 1

	for _, name := range requested {
		det := NewDetector(cfg, log)
		if err := det.Load(modelPath, name); err != nil {
			p.log.Warn("backend failed to load, skipping",
				zap.String("backend", name), zap.Error(err))
			continue
		}
		p.handles = append(p.handles, Handle{Name: name, Detector: det})
		p.log.Info("backend preloaded", zap.String("backend", name))
	}

	if len(p.handles) == 0 {
		return nil, &iface.ModelLoadError{Err: fmt.Errorf("no backends loaded successfully")}
	}
	p.log.Info("backend pool ready",
		zap.Int("loaded", len(p.handles)),
		zap.Bool("switching", p.switchingEnabled),
		zap.String("current", p.handles[0].Name))
	return p, nil
}

// Current returns the active detector, or nil after Close.
func (p *Pool) Current() *Detector {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if len(p.handles) == 0 {
		return nil
	}
	return p.handles[p.current].Detector
}

// CurrentName returns the active backend's name.
func (p *Pool) CurrentName() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if len(p.handles) == 0 {
		return ""
	}
	return p.handles[p.current].Name
}

// CurrentIndex returns the active index and the number of loaded backends.
func (p *Pool) CurrentIndex() (int, int) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current, len(p.handles)
}

// Available lists loaded backend names preserving request order.
func (p *Pool) Available() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	names := make([]string, len(p.handles))
	for i, h := range p.handles {
		names[i] = h.Name
	}
	return names
}

// SwitchingEnabled reports whether switch operations are active. It depends
// on the request, not on how many backends survived loading.
func (p *Pool) SwitchingEnabled() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.switchingEnabled
}

// SwitchToIndex makes the backend at index current. Switching to the current
// index succeeds as a no-op.
func (p *Pool) SwitchToIndex(index int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.switchingEnabled {
		p.log.Warn("backend switching not enabled")
		return false
	}
	if index < 0 || index >= len(p.handles) {
		p.log.Warn("invalid backend index", zap.Int("index", index))
		return false
	}
	if index == p.current {
		p.log.Info("already using backend", zap.String("backend", p.handles[index].Name))
		return true
	}
	from := p.handles[p.current].Name
	p.current = index
	p.log.Info("switched backend",
		zap.String("from", from), zap.String("to", p.handles[index].Name))
	return true
}

// SwitchToName resolves a name to its index in the available list. Unknown
// names fail without state change.
func (p *Pool) SwitchToName(name string) bool {
	p.mu.RLock()
	idx := -1
	for i, h := range p.handles {
		if h.Name == name {
			idx = i
			break
		}
	}
	available := len(p.handles)
	p.mu.RUnlock()

	if idx < 0 {
		p.log.Warn("backend not available",
			zap.String("backend", name), zap.Int("available", available))
		return false
	}
	return p.SwitchToIndex(idx)
}

// Next advances to the next backend with wraparound.
func (p *Pool) Next() bool {
	p.mu.RLock()
	n := len(p.handles)
	if n == 0 {
		p.mu.RUnlock()
		return false
	}
	idx := (p.current + 1) % n
	p.mu.RUnlock()
	return p.SwitchToIndex(idx)
}

// Previous moves back one backend; index 0 wraps to the last entry.
func (p *Pool) Previous() bool {
	p.mu.RLock()
	n := len(p.handles)
	if n == 0 {
		p.mu.RUnlock()
		return false
	}
	idx := (p.current - 1 + n) % n
	p.mu.RUnlock()
	return p.SwitchToIndex(idx)
}

// Close releases every loaded backend and empties the pool.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, h := range p.handles {
		if err := h.Detector.Close(); err != nil {
			p.log.Warn("error closing backend",
				zap.String("backend", h.Name), zap.Error(err))
		}
	}
	p.handles = nil
	p.current = 0
}
