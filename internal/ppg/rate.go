package ppg

import (
	"math"
	"time"
)

// Physiological heart-rate bounds in BPM. Instantaneous estimates
// outside this range are discarded before they reach the filter and
// are never stored.
const (
	MinHeartRate = 40
	MaxHeartRate = 220
)

// DefaultSamplingRateHz is the nominal frame-acquisition rate.
const DefaultSamplingRateHz = 30.0

// defaultPriorBPM seeds the filter when no prior estimate exists.
const defaultPriorBPM = 75.0

// RateEstimate is one validated, filter-smoothed heart-rate reading.
type RateEstimate struct {
	BPM        int       `json:"bpm"`
	Confidence float64   `json:"confidence"` // [0,1] signal quality at estimation time
	Timestamp  time.Time `json:"timestamp"`
}

// KalmanFilter is a scalar recursive filter used to smooth heart-rate
// measurements over a session. The state is owned by the session
// controller and must be Reset() when a new session starts.
type KalmanFilter struct {
	estimate        float64
	errorCovariance float64
	processNoise    float64
	initialized     bool
}

// NewKalmanFilter creates a filter with the given process noise.
func NewKalmanFilter(processNoise float64) *KalmanFilter {
	f := &KalmanFilter{processNoise: processNoise}
	f.Reset()
	return f
}

// Reset restores the filter to its initial state: the default prior
// estimate with unit error covariance.
func (f *KalmanFilter) Reset() {
	f.estimate = defaultPriorBPM
	f.errorCovariance = 1
	f.initialized = false
}

// State returns the current estimate and error covariance.
func (f *KalmanFilter) State() (estimate, errorCovariance float64) {
	return f.estimate, f.errorCovariance
}

// Step runs one predict/update cycle with a new measurement.
// confidencePercent in [0,100] sets the measurement noise to
// 100-confidence, so a high-confidence measurement pulls the estimate
// harder. Returns the updated estimate.
func (f *KalmanFilter) Step(measurement, confidencePercent float64) float64 {
	if !f.initialized {
		// First measurement after reset: the prior is the default 75,
		// which still gets blended below. Mark initialised so callers
		// can distinguish a prior-only state.
		f.initialized = true
	}

	// Predict. The state model is a random walk: the predicted estimate
	// is the prior and uncertainty grows by the process noise.
	predicted := f.estimate
	predictedCovariance := f.errorCovariance + f.processNoise

	measurementNoise := 100 - confidencePercent
	if measurementNoise < 0 {
		measurementNoise = 0
	}

	gain := predictedCovariance / (predictedCovariance + measurementNoise)
	f.estimate = predicted + gain*(measurement-predicted)
	f.errorCovariance = (1 - gain) * predictedCovariance
	return f.estimate
}

// RateEstimator converts detected peak positions into validated,
// Kalman-smoothed BPM estimates. The embedded filter persists across
// ticks within one session.
type RateEstimator struct {
	samplingRateHz float64
	filter         *KalmanFilter
}

// NewRateEstimator creates an estimator for the given sampling rate.
// processNoise tunes how quickly the filter tracks changing rates.
func NewRateEstimator(samplingRateHz, processNoise float64) *RateEstimator {
	if samplingRateHz <= 0 {
		samplingRateHz = DefaultSamplingRateHz
	}
	return &RateEstimator{
		samplingRateHz: samplingRateHz,
		filter:         NewKalmanFilter(processNoise),
	}
}

// Reset clears the filter state for a new session.
func (e *RateEstimator) Reset() { e.filter.Reset() }

// Filter exposes the underlying filter state for inspection.
func (e *RateEstimator) Filter() *KalmanFilter { return e.filter }

// Estimate computes the instantaneous BPM from peak positions and
// feeds it through the filter. quality is the [0,1] signal quality
// score used as filter confidence. It returns ok=false when fewer than
// two peaks are available or the instantaneous value falls outside the
// physiological bounds; rejected values never touch the filter.
func (e *RateEstimator) Estimate(peaks []float64, quality float64, now time.Time) (RateEstimate, bool) {
	if len(peaks) < 2 {
		return RateEstimate{}, false
	}

	// Mean inter-peak interval in samples.
	var total float64
	for i := 1; i < len(peaks); i++ {
		total += peaks[i] - peaks[i-1]
	}
	meanInterval := total / float64(len(peaks)-1)
	if meanInterval <= 0 {
		return RateEstimate{}, false
	}

	instantaneous := 60 * e.samplingRateHz / meanInterval
	if instantaneous < MinHeartRate || instantaneous > MaxHeartRate {
		return RateEstimate{}, false
	}

	smoothed := e.filter.Step(instantaneous, quality*100)
	return RateEstimate{
		BPM:        int(math.Round(smoothed)),
		Confidence: quality,
		Timestamp:  now,
	}, true
}
