package tracker

import (
	"testing"

	iface "VisionTracker/interface"

	"github.com/stretchr/testify/assert"
)

func TestStatistics_All(t *testing.T) {
	t.Run("empty statistics", func(t *testing.T) {
		s := NewStatistics()
		assert.Equal(t, 0.0, s.CurrentFPS())
		assert.Equal(t, 0.0, s.AverageFPS())
		assert.Empty(t, s.Counts())
	})

	t.Run("current and average fps", func(t *testing.T) {
		s := NewStatistics()
		s.Record(10, nil)
		s.Record(20, nil)
		s.Record(30, nil)
		assert.Equal(t, 30.0, s.CurrentFPS())
		assert.Equal(t, 20.0, s.AverageFPS())
	})

	t.Run("history trims to the most recent 50 past 100", func(t *testing.T) {
		s := NewStatistics()
		for i := 0; i < 100; i++ {
			s.Record(float64(i), nil)
		}
		assert.Equal(t, 100, s.HistoryLen(), "exactly 100 samples are kept")

		s.Record(100, nil)
		assert.Equal(t, 50, s.HistoryLen())
		assert.Equal(t, 100.0, s.CurrentFPS(), "newest sample survives the trim")
		// after trimming, the history holds samples 51..100
		assert.Equal(t, 75.5, s.AverageFPS())
	})

	t.Run("per-class counters accumulate", func(t *testing.T) {
		s := NewStatistics()
		s.Record(1, []iface.Detection{
			{ClassName: "person"}, {ClassName: "person"}, {ClassName: "car"},
		})
		s.Record(1, []iface.Detection{{ClassName: "person"}})

		counts := s.Counts()
		assert.Equal(t, int64(3), counts["person"])
		assert.Equal(t, int64(1), counts["car"])
	})

	t.Run("reset clears everything", func(t *testing.T) {
		s := NewStatistics()
		s.Record(5, []iface.Detection{{ClassName: "car"}})
		s.Reset()
		assert.Equal(t, 0, s.HistoryLen())
		assert.Empty(t, s.Counts())
	})
}
