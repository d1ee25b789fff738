package ppg

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// SpO2 output bounds. Estimates are clamped into this range; consumer
// displays treat anything below 85% from a camera sensor as noise.
const (
	MinOxygen = 85
	MaxOxygen = 100

	// defaultOxygen is reported when every channel weight collapses to
	// zero (no usable signal on any channel pair).
	defaultOxygen = 97

	// minOxygenSamples is the per-channel history length required
	// before an estimate is attempted; callers keep their prior value
	// until then.
	minOxygenSamples = 30

	// oxygenWindow caps conditioning to the most recent samples of
	// each channel.
	oxygenWindow = 100
)

// Empirical linear calibration for the two pulsatility ratios. The
// red/green pair is the primary estimator; red/blue is a weaker
// secondary source that the quality weighting can still promote when
// the green channel is poor.
const (
	redGreenIntercept = 110.0
	redGreenSlope     = 25.0
	redBlueIntercept  = 104.0
	redBlueSlope      = 17.0
)

// OxygenEstimator computes a pulsatility-ratio SpO2 estimate from the
// conditioned red/green/blue channel histories, weighting each ratio
// by the product of its channels' signal quality scores.
type OxygenEstimator struct {
	cond *Conditioner
}

// NewOxygenEstimator creates an estimator that conditions channels
// with the given conditioner.
func NewOxygenEstimator(cond *Conditioner) *OxygenEstimator {
	if cond == nil {
		cond = NewConditioner(DefaultConditionerConfig())
	}
	return &OxygenEstimator{cond: cond}
}

// Estimate returns the SpO2 percentage for the given raw channel
// histories. ok is false while any channel has fewer than
// minOxygenSamples samples; callers keep their prior value.
func (e *OxygenEstimator) Estimate(red, green, blue []float64) (int, bool) {
	if len(red) < minOxygenSamples || len(green) < minOxygenSamples || len(blue) < minOxygenSamples {
		return 0, false
	}

	condRed := e.cond.Condition(tail(red, oxygenWindow))
	condGreen := e.cond.Condition(tail(green, oxygenWindow))
	condBlue := e.cond.Condition(tail(blue, oxygenWindow))

	redPI := PulsatilityIndex(condRed)
	greenPI := PulsatilityIndex(condGreen)
	bluePI := PulsatilityIndex(condBlue)

	qRed := QualityScore(condRed)
	qGreen := QualityScore(condGreen)
	qBlue := QualityScore(condBlue)

	return OxygenFromPulsatility(redPI, greenPI, bluePI, qRed, qGreen, qBlue), true
}

// OxygenFromPulsatility combines per-channel pulsatility indices into a
// clamped SpO2 percentage. Each of the two empirical linear estimates
// is weighted by the product of its channels' quality scores; a zero
// total weight falls back to the default.
func OxygenFromPulsatility(redPI, greenPI, bluePI, qRed, qGreen, qBlue float64) int {
	var weighted, totalWeight float64
	if greenPI > 0 {
		spo2 := redGreenIntercept - redGreenSlope*(redPI/greenPI)
		w := qRed * qGreen
		weighted += spo2 * w
		totalWeight += w
	}
	if bluePI > 0 {
		spo2 := redBlueIntercept - redBlueSlope*(redPI/bluePI)
		w := qRed * qBlue
		weighted += spo2 * w
		totalWeight += w
	}

	if totalWeight == 0 {
		return defaultOxygen
	}

	estimate := int(math.Round(weighted / totalWeight))
	if estimate < MinOxygen {
		estimate = MinOxygen
	}
	if estimate > MaxOxygen {
		estimate = MaxOxygen
	}
	return estimate
}

// PulsatilityIndex returns (max-min)/mean for a signal, a proxy for
// blood-flow-induced amplitude. Returns 0 for an empty or zero-mean
// signal.
func PulsatilityIndex(signal []float64) float64 {
	if len(signal) == 0 {
		return 0
	}
	mean := stat.Mean(signal, nil)
	if mean == 0 {
		return 0
	}
	return (floats.Max(signal) - floats.Min(signal)) / mean
}

// tail returns the most recent n elements of s.
func tail(s []float64, n int) []float64 {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
