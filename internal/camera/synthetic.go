package camera

import (
	"math"
	"math/rand"
	"sync"

	"github.com/banshee-data/pulse.report/internal/timeutil"
)

// Synthetic frame geometry. Uniform fill means the ROI average equals
// the per-channel value exactly, so small frames are fine.
const (
	syntheticWidth  = 32
	syntheticHeight = 32
)

// Channel baselines and pulse amplitudes for the synthetic fingertip.
// Red dominates strongly (fingertip transilluminated by the LED), so
// the liveness gate accepts every frame.
const (
	syntheticRedDC    = 180.0
	syntheticRedAmp   = 12.0
	syntheticGreenDC  = 100.0
	syntheticGreenAmp = 20.0
	syntheticBlueDC   = 60.0
	syntheticBlueAmp  = 6.0
)

// SyntheticSource simulates a fingertip pressed against the camera. It
// emits uniform frames whose channel intensities carry a narrow
// raised-cosine systolic pulse at a fixed rate. Frames advance one
// sample per call regardless of wall-clock time, so tests can drive it
// as fast as they like.
type SyntheticSource struct {
	mu         sync.Mutex
	clock      timeutil.Clock
	bpm        float64
	samplingHz float64
	index      int
	closed     bool
}

// NewSyntheticSource returns a source pulsing at the given rate,
// sampled at samplingHz frames per second.
func NewSyntheticSource(bpm, samplingHz float64, clock timeutil.Clock) *SyntheticSource {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &SyntheticSource{
		clock:      clock,
		bpm:        bpm,
		samplingHz: samplingHz,
	}
}

// Frame returns the next synthetic frame.
func (s *SyntheticSource) Frame() (Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Frame{}, ErrSourceClosed
	}

	// Narrow raised-cosine pulse: most of each cycle sits at the
	// diastolic baseline, with a short systolic peak.
	phase := float64(s.index) / s.samplingHz * s.bpm / 60
	frac := phase - math.Floor(phase)
	c := 0.5 * (1 + math.Cos(2*math.Pi*(frac-0.5)))
	pulse := math.Pow(c, 6)
	s.index++

	r := byte(syntheticRedDC + syntheticRedAmp*pulse)
	g := byte(syntheticGreenDC + syntheticGreenAmp*pulse)
	b := byte(syntheticBlueDC + syntheticBlueAmp*pulse)
	return Frame{
		Pixels:    uniformFrame(syntheticWidth, syntheticHeight, r, g, b),
		Width:     syntheticWidth,
		Height:    syntheticHeight,
		Timestamp: s.clock.Now(),
	}, nil
}

// Close stops the source.
func (s *SyntheticSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// NoiseSource simulates a camera with no finger on it: dim, roughly
// grey frames with random flicker. The liveness gate rejects these.
type NoiseSource struct {
	mu     sync.Mutex
	clock  timeutil.Clock
	rng    *rand.Rand
	closed bool
}

// NewNoiseSource returns a source of non-finger frames. The seed makes
// test runs reproducible.
func NewNoiseSource(seed int64, clock timeutil.Clock) *NoiseSource {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &NoiseSource{
		clock: clock,
		rng:   rand.New(rand.NewSource(seed)),
	}
}

// Frame returns the next noise frame.
func (s *NoiseSource) Frame() (Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Frame{}, ErrSourceClosed
	}

	// Grey with independent channel flicker. Red never dominates blue
	// by the fingertip ratio, so these frames always fail liveness.
	base := 40 + s.rng.Intn(40)
	r := byte(base + s.rng.Intn(10))
	g := byte(base + s.rng.Intn(10))
	b := byte(base + s.rng.Intn(10))
	return Frame{
		Pixels:    uniformFrame(syntheticWidth, syntheticHeight, r, g, b),
		Width:     syntheticWidth,
		Height:    syntheticHeight,
		Timestamp: s.clock.Now(),
	}, nil
}

// Close stops the source.
func (s *NoiseSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func uniformFrame(width, height int, r, g, b byte) []byte {
	pixels := make([]byte, width*height*4)
	for i := 0; i < len(pixels); i += 4 {
		pixels[i] = r
		pixels[i+1] = g
		pixels[i+2] = b
		pixels[i+3] = 0xff
	}
	return pixels
}
