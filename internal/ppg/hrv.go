package ppg

import "math"

// RMSSD returns the root-mean-square of successive differences between
// beat intervals in milliseconds, a standard short-window heart-rate
// variability metric. Fewer than two intervals yield 0.
func RMSSD(intervalsMs []float64) float64 {
	if len(intervalsMs) < 2 {
		return 0
	}
	var sumSq float64
	for i := 1; i < len(intervalsMs); i++ {
		d := intervalsMs[i] - intervalsMs[i-1]
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(intervalsMs)-1))
}
