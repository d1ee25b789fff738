package ppg

import "math"

// pulseTrain generates a synthetic PPG channel: a narrow raised-cosine
// systolic peak repeating at the given rate, riding on a DC offset. A
// realistic pulse spends most of each cycle near the diastolic
// baseline, unlike a sinusoid.
func pulseTrain(n int, bpm, samplingHz, dc, amplitude float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		phase := float64(i) / samplingHz * bpm / 60
		frac := phase - math.Floor(phase)
		c := 0.5 * (1 + math.Cos(2*math.Pi*(frac-0.5)))
		out[i] = dc + amplitude*math.Pow(c, 6)
	}
	return out
}

// spikySignal builds a conditioned-style signal: flat baseline with
// narrow Gaussian bumps to peakValue centred every period samples,
// starting at index 10. Peak positions are exactly 10, 10+period, ...
func spikySignal(n, period int, base, peakValue float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		var best float64
		for c := 10; c < n+period; c += period {
			d := float64(i - c)
			if g := math.Exp(-d * d / 4.5); g > best {
				best = g
			}
		}
		out[i] = base + (peakValue-base)*best
	}
	return out
}
