package ppg

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

const (
	// minPeakSignalLen is the minimum conditioned-signal length for
	// peak detection to run at all.
	minPeakSignalLen = 10

	// MinPeakSeparation is the minimum spacing between accepted peaks
	// in samples. At the 30 Hz sampling rate the physiological ceiling
	// of 220 BPM implies at least 8 samples between beats.
	MinPeakSeparation = 8

	// baseThresholdSigma is the baseline number of standard deviations
	// above the mean a sample must reach to be a peak candidate.
	baseThresholdSigma = 1.5

	// noiseFactorScale converts signal stddev into the extra threshold
	// margin applied to noisy signals, capped at 1.0.
	noiseFactorScale = 20.0
)

// DetectPeaks locates pulse peaks in a conditioned signal and returns
// their positions as fractional indices, strictly increasing. Signals
// shorter than minPeakSignalLen yield no peaks.
//
// A sample is a candidate when it strictly exceeds an adaptive
// threshold and both of its two neighbours on each side (a 5-point
// local maximum). The threshold is mean + (1.5+noiseFactor)*stddev
// with noiseFactor = min(1, stddev/20), raising the bar for noisier
// signals to suppress false peaks. Candidates closer than
// MinPeakSeparation to an already-accepted peak are discarded;
// first-found wins and accepted peaks are never re-evaluated.
func DetectPeaks(signal []float64) []float64 {
	if len(signal) < minPeakSignalLen {
		return nil
	}

	mean := stat.Mean(signal, nil)
	stddev := math.Sqrt(stat.PopVariance(signal, nil))
	noiseFactor := stddev / noiseFactorScale
	if noiseFactor > 1 {
		noiseFactor = 1
	}
	threshold := mean + (baseThresholdSigma+noiseFactor)*stddev

	var peaks []float64
	lastAccepted := -MinPeakSeparation // allow a peak at the window start
	for i := 2; i < len(signal)-2; i++ {
		v := signal[i]
		if v <= threshold {
			continue
		}
		if v <= signal[i-1] || v <= signal[i-2] || v <= signal[i+1] || v <= signal[i+2] {
			continue
		}
		if i-lastAccepted < MinPeakSeparation {
			continue
		}
		lastAccepted = i
		peaks = append(peaks, refinePeak(signal, i))
	}
	return peaks
}

// refinePeak applies parabolic interpolation over the three amplitudes
// around an integer peak index to recover sub-sample precision. The
// offset is only applied when |offset| < 1; near-flat neighbourhoods
// produce ill-conditioned fits and keep the integer index.
func refinePeak(signal []float64, i int) float64 {
	y0 := signal[i-1]
	y1 := signal[i]
	y2 := signal[i+1]
	denom := 2 * (y0 - 2*y1 + y2)
	if denom == 0 {
		return float64(i)
	}
	offset := (y0 - y2) / denom
	if math.Abs(offset) >= 1 {
		return float64(i)
	}
	return float64(i) + offset
}
