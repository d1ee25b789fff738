package ppg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOxygenFromPulsatility(t *testing.T) {
	t.Parallel()

	t.Run("documented ratio formula with equal weights", func(t *testing.T) {
		// r1 = 0.6/0.4 = 1.5 -> 110 - 25*1.5 = 72.5
		// r2 = 0.6/0.3 = 2.0 -> 104 - 17*2.0 = 70.0
		// weighted mean 71.25, rounded 71, clamped up to 85.
		got := OxygenFromPulsatility(0.6, 0.4, 0.3, 1, 1, 1)
		assert.Equal(t, MinOxygen, got)
	})

	t.Run("healthy pulsatility balance", func(t *testing.T) {
		// r1 = 0.5 -> 97.5, r2 = 0.4 -> 97.2 (weighted equally).
		got := OxygenFromPulsatility(0.2, 0.4, 0.5, 1, 1, 1)
		assert.Equal(t, 97, got)
	})

	t.Run("quality weighting favours the stronger channel pair", func(t *testing.T) {
		// Green pair says 97.5, blue pair says 70.4. With the blue
		// channel weight collapsed, only the green pair counts.
		got := OxygenFromPulsatility(0.5, 1.0, 0.253, 1, 1, 0)
		assert.Equal(t, 98, got)
	})

	t.Run("zero total weight falls back to default", func(t *testing.T) {
		assert.Equal(t, defaultOxygen, OxygenFromPulsatility(0.6, 0.4, 0.3, 0, 0, 0))
	})

	t.Run("zero denominators contribute nothing", func(t *testing.T) {
		assert.Equal(t, defaultOxygen, OxygenFromPulsatility(0.6, 0, 0, 1, 1, 1))
	})

	t.Run("estimate always clamped", func(t *testing.T) {
		for _, pi := range []struct{ r, g, b float64 }{
			{2.0, 0.2, 0.2}, // ratios far too high -> below range
			{0.01, 1, 1},    // ratios near zero -> above range
		} {
			got := OxygenFromPulsatility(pi.r, pi.g, pi.b, 1, 1, 1)
			assert.GreaterOrEqual(t, got, MinOxygen)
			assert.LessOrEqual(t, got, MaxOxygen)
		}
	})
}

func TestOxygenEstimator(t *testing.T) {
	t.Parallel()

	t.Run("insufficient history defers", func(t *testing.T) {
		e := NewOxygenEstimator(nil)
		short := make([]float64, minOxygenSamples-1)
		long := make([]float64, minOxygenSamples)
		_, ok := e.Estimate(short, long, long)
		assert.False(t, ok)
	})

	t.Run("correlated channels yield an in-range estimate", func(t *testing.T) {
		e := NewOxygenEstimator(nil)
		red := pulseTrain(120, 72, 30, 180, 12)
		green := pulseTrain(120, 72, 30, 100, 20)
		blue := pulseTrain(120, 72, 30, 60, 6)
		got, ok := e.Estimate(red, green, blue)
		require.True(t, ok)
		assert.GreaterOrEqual(t, got, MinOxygen)
		assert.LessOrEqual(t, got, MaxOxygen)
	})
}

func TestPulsatilityIndex(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 0.0, PulsatilityIndex(nil))
	assert.Equal(t, 0.0, PulsatilityIndex([]float64{0, 0, 0}))
	// (max-min)/mean = (80-20)/50 = 1.2
	assert.InDelta(t, 1.2, PulsatilityIndex([]float64{20, 50, 80}), 1e-9)
}
