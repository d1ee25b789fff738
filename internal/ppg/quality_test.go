package ppg

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQualityScore(t *testing.T) {
	t.Parallel()

	t.Run("too few samples scores zero", func(t *testing.T) {
		assert.Equal(t, 0.0, QualityScore(make([]float64, 19)))
	})

	t.Run("no detectable rhythm scores the fixed low value", func(t *testing.T) {
		flat := make([]float64, 100)
		for i := range flat {
			flat[i] = 50
		}
		assert.Equal(t, fewPeaksScore, QualityScore(flat))
	})

	t.Run("perfectly regular strong pulse scores near one", func(t *testing.T) {
		sig := spikySignal(150, 25, 15, 85)
		q := QualityScore(sig)
		assert.Greater(t, q, 0.95)
		assert.LessOrEqual(t, q, 1.0)
	})

	t.Run("irregular rhythm scores below a regular one", func(t *testing.T) {
		regular := spikySignal(300, 25, 15, 85)
		qRegular := QualityScore(regular)

		// Perturb the rhythm: alternate short and long beats by
		// splicing two period trains together.
		irregular := make([]float64, 0, 300)
		irregular = append(irregular, spikySignal(150, 25, 15, 85)...)
		irregular = append(irregular, spikySignal(150, 40, 15, 85)...)
		qIrregular := QualityScore(irregular)

		assert.Less(t, qIrregular, qRegular)
	})

	t.Run("score always within unit interval", func(t *testing.T) {
		for _, sig := range [][]float64{
			spikySignal(50, 25, 15, 85),
			spikySignal(400, 40, 10, 90),
			make([]float64, 30),
		} {
			q := QualityScore(sig)
			assert.GreaterOrEqual(t, q, 0.0)
			assert.LessOrEqual(t, q, 1.0)
		}
	})
}
