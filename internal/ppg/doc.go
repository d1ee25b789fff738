// Package ppg implements the photoplethysmography signal pipeline that
// turns per-frame colour-channel averages from a fingertip camera feed
// into heart-rate and blood-oxygen estimates.
//
// The pipeline stages are pure functions over accumulated sample
// buffers: ROI sampling, liveness classification, signal conditioning
// (smoothing, baseline removal, normalisation), adaptive peak
// detection, Kalman-smoothed rate estimation, pulsatility-ratio SpO2
// estimation, and signal quality scoring. Only the Kalman filter
// carries state across ticks; it is owned and reset by the session
// controller in internal/session.
package ppg
