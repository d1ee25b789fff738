package ppg

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

const (
	// minQualitySamples is the minimum conditioned-signal length for a
	// non-zero quality score.
	minQualitySamples = 20

	// fewPeaksScore is the fixed low score when fewer than two peaks
	// are found: some signal exists but rhythm cannot be assessed.
	fewPeaksScore = 0.2

	// amplitudeFullScale is the peak-to-peak amplitude that counts as
	// a full-strength signal. Conditioned signals span 80 units, so a
	// healthy pulse saturates this easily.
	amplitudeFullScale = 50.0

	regularityWeight = 0.7
	amplitudeWeight  = 0.3
)

// QualityScore returns a [0,1] quality score for a conditioned signal.
// The score weighs beat regularity (1 minus the coefficient of
// variation of inter-peak intervals) against peak-to-peak amplitude.
// It feeds both the oxygenation channel weights and the user-facing
// confidence percentage (score × 100).
func QualityScore(signal []float64) float64 {
	if len(signal) < minQualitySamples {
		return 0
	}

	peaks := DetectPeaks(signal)
	if len(peaks) < 2 {
		return fewPeaksScore
	}

	intervals := make([]float64, len(peaks)-1)
	for i := 1; i < len(peaks); i++ {
		intervals[i-1] = peaks[i] - peaks[i-1]
	}

	mean := stat.Mean(intervals, nil)
	stddev := math.Sqrt(stat.PopVariance(intervals, nil))
	var regularity float64
	if mean > 0 {
		regularity = clamp01(1 - stddev/mean)
	}

	amplitude := clamp01((floats.Max(signal) - floats.Min(signal)) / amplitudeFullScale)

	return regularityWeight*regularity + amplitudeWeight*amplitude
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
