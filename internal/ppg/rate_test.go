package ppg

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKalmanFilter(t *testing.T) {
	t.Parallel()

	t.Run("reset restores default prior", func(t *testing.T) {
		f := NewKalmanFilter(1.0)
		f.Step(120, 90)
		f.Reset()
		estimate, cov := f.State()
		assert.Equal(t, 75.0, estimate)
		assert.Equal(t, 1.0, cov)
	})

	t.Run("repeated identical measurements converge to the measurement", func(t *testing.T) {
		f := NewKalmanFilter(1.0)
		var got float64
		for i := 0; i < 200; i++ {
			got = f.Step(100, 80)
		}
		assert.InDelta(t, 100, got, 0.5)
	})

	t.Run("full confidence adopts the measurement immediately", func(t *testing.T) {
		f := NewKalmanFilter(1.0)
		got := f.Step(132, 100)
		assert.InDelta(t, 132, got, 1e-9)
	})

	t.Run("low confidence moves the estimate slowly", func(t *testing.T) {
		f := NewKalmanFilter(1.0)
		got := f.Step(175, 5)
		// prior 75, predicted covariance 2, noise 95: gain ~0.021.
		assert.InDelta(t, 77.06, got, 0.1)
	})
}

func TestRateEstimator(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	t.Run("fewer than two peaks rejected", func(t *testing.T) {
		e := NewRateEstimator(30, 1.0)
		_, ok := e.Estimate([]float64{42}, 0.9, now)
		assert.False(t, ok)
	})

	t.Run("regular peaks yield the expected rate", func(t *testing.T) {
		e := NewRateEstimator(30, 1.0)
		// 25-sample spacing at 30 Hz is exactly 72 BPM. Drive the
		// filter with repeated identical windows until it settles.
		peaks := []float64{10, 35, 60, 85, 110, 135}
		var est RateEstimate
		var ok bool
		for i := 0; i < 100; i++ {
			est, ok = e.Estimate(peaks, 0.95, now)
			require.True(t, ok)
		}
		assert.InDelta(t, 72, est.BPM, 1)
		assert.Equal(t, 0.95, est.Confidence)
		assert.Equal(t, now, est.Timestamp)
	})

	t.Run("implausibly fast rate discarded without touching the filter", func(t *testing.T) {
		e := NewRateEstimator(30, 1.0)
		before, _ := e.Filter().State()
		// 5-sample spacing at 30 Hz would be 360 BPM.
		_, ok := e.Estimate([]float64{0, 5, 10}, 0.9, now)
		assert.False(t, ok)
		after, _ := e.Filter().State()
		assert.Equal(t, before, after)
	})

	t.Run("implausibly slow rate discarded", func(t *testing.T) {
		e := NewRateEstimator(30, 1.0)
		// 60-sample spacing at 30 Hz would be 30 BPM.
		_, ok := e.Estimate([]float64{0, 60, 120}, 0.9, now)
		assert.False(t, ok)
	})

	t.Run("accepted estimates stay within physiological bounds", func(t *testing.T) {
		e := NewRateEstimator(30, 1.0)
		for _, spacing := range []float64{9, 12, 20, 25, 40} {
			peaks := []float64{0, spacing, 2 * spacing, 3 * spacing}
			if est, ok := e.Estimate(peaks, 0.8, now); ok {
				assert.GreaterOrEqual(t, est.BPM, MinHeartRate)
				assert.LessOrEqual(t, est.BPM, MaxHeartRate)
			}
		}
	})

	t.Run("reset clears filter state between sessions", func(t *testing.T) {
		e := NewRateEstimator(30, 1.0)
		for i := 0; i < 50; i++ {
			e.Estimate([]float64{0, 10, 20, 30}, 0.95, now) // 180 BPM
		}
		e.Reset()
		estimate, _ := e.Filter().State()
		assert.Equal(t, 75.0, estimate)
	})
}
