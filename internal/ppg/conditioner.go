package ppg

import (
	"gonum.org/v1/gonum/floats"
)

// Normalised output range for conditioned signals. Keeping the signal
// away from 0 and 100 leaves headroom for downstream display widgets
// and avoids zero means in pulsatility ratios.
const (
	NormalisedMin = 10.0
	NormalisedMax = 90.0
	normalisedMid = 50.0
)

// Sensitivity selects the smoothing window used by the conditioner.
// Higher sensitivity smooths less and follows the raw signal more
// closely; lower sensitivity trades latency for noise rejection.
type Sensitivity string

const (
	SensitivityLow    Sensitivity = "low"
	SensitivityMedium Sensitivity = "medium"
	SensitivityHigh   Sensitivity = "high"
)

// SmoothingWindow returns the conditioner window size for the
// sensitivity level. Unknown values fall back to medium.
func (s Sensitivity) SmoothingWindow() int {
	switch s {
	case SensitivityLow:
		return 7
	case SensitivityHigh:
		return 3
	default:
		return 5
	}
}

// ConditionerConfig holds tunable parameters for signal conditioning.
type ConditionerConfig struct {
	SmoothingWindow int // distance-weighted smoothing window (samples)
	MinSamples      int // minimum input length before conditioning activates
	MaxWindow       int // most-recent-N cap on the input buffer (0 = unbounded)
	BaselineWindow  int // maximum baseline estimation window (samples)
}

// DefaultConditionerConfig returns the conditioning parameters used in
// production at the nominal 30 Hz sampling rate.
func DefaultConditionerConfig() ConditionerConfig {
	return ConditionerConfig{
		SmoothingWindow: SensitivityMedium.SmoothingWindow(),
		MinSamples:      20,
		MaxWindow:       512,
		BaselineWindow:  50,
	}
}

// Conditioner turns a raw single-channel sample sequence into a
// smoothed, detrended, normalised signal ready for peak extraction.
// It is stateless over its input window and is re-run from the full
// accumulated buffer each tick; MaxWindow bounds the cost for long
// sessions by dropping all but the most recent samples.
type Conditioner struct {
	cfg ConditionerConfig
}

// NewConditioner creates a conditioner with the given configuration.
// Zero-valued fields are replaced with defaults.
func NewConditioner(cfg ConditionerConfig) *Conditioner {
	def := DefaultConditionerConfig()
	if cfg.SmoothingWindow <= 0 {
		cfg.SmoothingWindow = def.SmoothingWindow
	}
	if cfg.MinSamples <= 0 {
		cfg.MinSamples = def.MinSamples
	}
	if cfg.BaselineWindow <= 0 {
		cfg.BaselineWindow = def.BaselineWindow
	}
	return &Conditioner{cfg: cfg}
}

// Condition applies smoothing, baseline removal and normalisation to a
// raw channel sequence. Inputs shorter than MinSamples are returned
// unchanged (copied), preserving recency ordering. The output length
// equals the (possibly windowed) input length.
func (c *Conditioner) Condition(raw []float64) []float64 {
	if c.cfg.MaxWindow > 0 && len(raw) > c.cfg.MaxWindow {
		raw = raw[len(raw)-c.cfg.MaxWindow:]
	}
	out := make([]float64, len(raw))
	copy(out, raw)
	if len(raw) < c.cfg.MinSamples {
		return out
	}

	out = c.smooth(out)
	out = c.removeBaseline(out)
	return normalise(out)
}

// smooth applies a distance-weighted local average with weight
// 1/(1+d^2). The quadratic falloff approximates a Savitzky-Golay
// smoother and preserves peak shape better than a flat moving average.
func (c *Conditioner) smooth(in []float64) []float64 {
	half := c.cfg.SmoothingWindow / 2
	if half < 1 {
		return in
	}
	out := make([]float64, len(in))
	for i := range in {
		var sum, wsum float64
		for j := i - half; j <= i+half; j++ {
			if j < 0 || j >= len(in) {
				continue
			}
			d := float64(i - j)
			w := 1 / (1 + d*d)
			sum += in[j] * w
			wsum += w
		}
		out[i] = sum / wsum
	}
	return out
}

// removeBaseline subtracts a local baseline estimated from two flanking
// sub-windows, excluding the ±window/3 region nearest the target sample
// so the pulse itself does not bias its own baseline. Interior points
// are re-centred at 50; points within one window of either edge are
// left unmodified, an accepted edge artefact.
func (c *Conditioner) removeBaseline(in []float64) []float64 {
	window := c.cfg.BaselineWindow
	if w := len(in) / 4; w < window {
		window = w
	}
	if window < 3 {
		return in
	}

	out := make([]float64, len(in))
	copy(out, in)
	exclude := window / 3
	for i := window; i < len(in)-window; i++ {
		var sum float64
		var n int
		for j := i - window; j <= i+window; j++ {
			if j >= i-exclude && j <= i+exclude {
				continue
			}
			sum += in[j]
			n++
		}
		if n == 0 {
			continue
		}
		out[i] = in[i] - sum/float64(n) + normalisedMid
	}
	return out
}

// BaselineWindow returns the baseline estimation window used for an
// input of length n: min(BaselineWindow, n/4).
func (c *Conditioner) BaselineWindow(n int) int {
	window := c.cfg.BaselineWindow
	if w := n / 4; w < window {
		window = w
	}
	return window
}

// TrimEdges strips the un-recentred boundary segment (one baseline
// window at each end) from a conditioned signal and returns the core
// plus the index offset of its first sample. The boundary points keep
// their pre-detrend values and sit far from the re-centred interior,
// which would otherwise poison the adaptive peak threshold. Signals too
// short to trim are returned whole.
func (c *Conditioner) TrimEdges(sig []float64) ([]float64, int) {
	window := c.BaselineWindow(len(sig))
	if window < 3 || len(sig) <= 2*window+minPeakSignalLen {
		return sig, 0
	}
	return sig[window : len(sig)-window], window
}

// normalise rescales the signal to [NormalisedMin, NormalisedMax].
// A degenerate (constant) signal maps every sample to the midpoint.
func normalise(in []float64) []float64 {
	if len(in) == 0 {
		return in
	}
	lo := floats.Min(in)
	hi := floats.Max(in)
	out := make([]float64, len(in))
	if hi == lo {
		for i := range out {
			out[i] = normalisedMid
		}
		return out
	}
	scale := (NormalisedMax - NormalisedMin) / (hi - lo)
	for i, v := range in {
		out[i] = NormalisedMin + (v-lo)*scale
	}
	return out
}
