package ppg

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectPeaks(t *testing.T) {
	t.Parallel()

	t.Run("short signal yields no peaks", func(t *testing.T) {
		assert.Empty(t, DetectPeaks(make([]float64, 9)))
	})

	t.Run("flat signal yields no peaks", func(t *testing.T) {
		sig := make([]float64, 100)
		for i := range sig {
			sig[i] = 50
		}
		assert.Empty(t, DetectPeaks(sig))
	})

	t.Run("regular pulse train is fully detected", func(t *testing.T) {
		sig := spikySignal(150, 25, 15, 85)
		peaks := DetectPeaks(sig)
		require.Len(t, peaks, 6)
		for i, p := range peaks {
			assert.InDelta(t, float64(10+25*i), p, 0.5)
		}
	})

	t.Run("indices strictly increasing and separated", func(t *testing.T) {
		for _, period := range []int{25, 32, 40} {
			sig := spikySignal(300, period, 20, 80)
			peaks := DetectPeaks(sig)
			for i := 1; i < len(peaks); i++ {
				assert.Greater(t, peaks[i], peaks[i-1])
				assert.GreaterOrEqual(t, peaks[i]-peaks[i-1], float64(MinPeakSeparation)-1,
					"peaks %f and %f too close (period %d)", peaks[i-1], peaks[i], period)
			}
		}
	})

	t.Run("sub-sample refinement recovers off-grid peaks", func(t *testing.T) {
		// A symmetric bump sampled off-centre: the parabolic fit must
		// land between the two highest samples.
		sig := make([]float64, 60)
		for i := range sig {
			d := float64(i) - 30.4
			sig[i] = 10 + 80*math.Exp(-d*d/3)
		}
		peaks := DetectPeaks(sig)
		require.Len(t, peaks, 1)
		assert.InDelta(t, 30.4, peaks[0], 0.1)
	})

	t.Run("refinement offset never reaches a full sample", func(t *testing.T) {
		sig := spikySignal(200, 25, 15, 85)
		for _, p := range DetectPeaks(sig) {
			frac := math.Abs(p - math.Round(p))
			assert.Less(t, frac, 1.0)
		}
	})
}

func TestRefinePeakIllConditioned(t *testing.T) {
	t.Parallel()

	// Flat three-point neighbourhood: denominator zero, integer index kept.
	sig := []float64{0, 0, 5, 5, 5, 0, 0}
	assert.Equal(t, 3.0, refinePeak(sig, 3))
}
