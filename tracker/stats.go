package tracker

import (
	"sync"

	iface "VisionTracker/interface"
)

const (
	fpsHistoryMax  = 100
	fpsHistoryKeep = 50
)

// Statistics holds the rolling FPS history and per-class detection counts.
// Writes come from the processing loop only; reads may come from the control
// API, hence the mutex. Per-class counters grow for the lifetime of a run:
// class vocabularies are small and fixed per model, so no eviction is done.
type Statistics struct {
	mu         sync.Mutex
	fpsHistory []float64
	perClass   map[string]int64
}

func NewStatistics() *Statistics {
	return &Statistics{perClass: make(map[string]int64)}
}

// Record appends one FPS sample and counts the batch's detections. When the
// history exceeds 100 samples it is trimmed to the most recent 50.
func (s *Statistics) Record(fps float64, detections []iface.Detection) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.fpsHistory = append(s.fpsHistory, fps)
	if len(s.fpsHistory) > fpsHistoryMax {
		trimmed := make([]float64, fpsHistoryKeep)
		copy(trimmed, s.fpsHistory[len(s.fpsHistory)-fpsHistoryKeep:])
		s.fpsHistory = trimmed
	}

	for _, det := range detections {
		s.perClass[det.ClassName]++
	}
}

// CurrentFPS returns the most recent sample, or 0 when empty.
func (s *Statistics) CurrentFPS() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.fpsHistory) == 0 {
		return 0
	}
	return s.fpsHistory[len(s.fpsHistory)-1]
}

// AverageFPS returns the mean of the history, or 0 when empty.
func (s *Statistics) AverageFPS() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.fpsHistory) == 0 {
		return 0
	}
	var sum float64
	for _, f := range s.fpsHistory {
		sum += f
	}
	return sum / float64(len(s.fpsHistory))
}

// HistoryLen reports the current history length.
func (s *Statistics) HistoryLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.fpsHistory)
}

// Counts returns a copy of the per-class counters.
func (s *Statistics) Counts() map[string]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int64, len(s.perClass))
	for k, v := range s.perClass {
		out[k] = v
	}
	return out
}

// Reset clears history and counters for a fresh run.
func (s *Statistics) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fpsHistory = nil
	s.perClass = make(map[string]int64)
}
