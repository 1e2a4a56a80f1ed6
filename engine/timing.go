package engine

import "time"

const timingWindow = 50

// inferenceTimer keeps a rolling window of inference durations so backends
// can report average latency and implied FPS.
type inferenceTimer struct {
	samples []float64
	next    int
	filled  bool
}

func (t *inferenceTimer) record(d time.Duration) {
	if t.samples == nil {
		t.samples = make([]float64, timingWindow)
	}
	t.samples[t.next] = d.Seconds()
	t.next++
	if t.next == len(t.samples) {
		t.next = 0
		t.filled = true
	}
}

// average returns the mean inference time in seconds, 0 before any sample.
func (t *inferenceTimer) average() float64 {
	n := t.next
	if t.filled {
		n = len(t.samples)
	}
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += t.samples[i]
	}
	return sum / float64(n)
}

// fps returns the frame rate implied by the average inference time.
func (t *inferenceTimer) fps() float64 {
	avg := t.average()
	if avg <= 0 {
		return 0
	}
	return 1 / avg
}
