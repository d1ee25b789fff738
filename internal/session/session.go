// Package session orchestrates the pulse pipeline over a fixed-length
// measurement window: it polls the camera once per tick, gates samples
// through the liveness check, runs conditioning, peak detection, rate
// and oxygen estimation, and emits per-tick and terminal events.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/banshee-data/pulse.report/internal/ppg"
	"github.com/banshee-data/pulse.report/internal/zones"
)

// State names the session controller's position in its lifecycle.
type State string

const (
	// Idle means no session is running.
	Idle State = "idle"
	// Calibrating is the warm-up phase at the start of a session while
	// the signal buffers fill.
	Calibrating State = "calibrating"
	// Measuring is the active phase producing numeric updates.
	Measuring State = "measuring"
	// Finishing is the terminal transition while the final result is
	// computed and persisted.
	Finishing State = "finishing"
)

// ErrSessionActive is returned by Start while a session is running.
var ErrSessionActive = errors.New("session: a session is already active")

// ErrInsufficientSignal is reported in strict mode when a session ends
// with fewer than two accepted heart-rate estimates.
var ErrInsufficientSignal = errors.New("session: insufficient signal to produce a measurement")

// TickEvent is emitted once per tick while a session runs.
type TickEvent struct {
	SessionID         string        `json:"session_id"`
	State             State         `json:"state"`
	HeartRate         int           `json:"heart_rate"`
	OxygenLevel       int           `json:"oxygen_level"`
	ConfidencePercent float64       `json:"confidence_percent"`
	IsLive            bool          `json:"is_live"`
	Zone              zones.Zone    `json:"zone"`
	Elapsed           time.Duration `json:"elapsed"`
}

// Result is the terminal output of a finished session.
type Result struct {
	SessionID        string `json:"session_id"`
	FinalHeartRate   int    `json:"final_heart_rate"`
	FinalOxygenLevel int    `json:"final_oxygen_level"`
	// Measurements holds every accepted per-tick BPM estimate in order.
	Measurements []int      `json:"measurements"`
	Confidence   float64    `json:"confidence"` // [0,1] quality at the last accepted estimate
	RMSSDMs      float64    `json:"rmssd_ms"`
	Zone         zones.Zone `json:"zone"`
	StartedAt    time.Time  `json:"started_at"`
	EndedAt      time.Time  `json:"ended_at"`
	// Synthetic marks a result produced by the fallback path rather
	// than measured signal.
	Synthetic bool `json:"synthetic"`
}

// Reading is a persisted session outcome, finished or cancelled.
type Reading struct {
	ID           string
	HeartRate    int
	OxygenLevel  int
	Confidence   float64
	RMSSDMs      float64
	Zone         zones.Zone
	Synthetic    bool
	Cancelled    bool
	StartedAt    time.Time
	EndedAt      time.Time
	Measurements []int
}

// ReadingStore persists session outcomes. The controller calls it
// synchronously from the finish and cancel paths; implementations
// should be fast or buffer internally.
type ReadingStore interface {
	SaveReading(ctx context.Context, r Reading) error
}

// SignalRecorder receives per-tick raw samples and the latest
// conditioned window for offline plotting. Calls happen on the tick
// path under the controller lock; implementations must be cheap.
type SignalRecorder interface {
	Record(s ppg.Sample)
	RecordConditioned(signal, peaks []float64)
}

// InsightsProvider produces a free-text summary of a finished session.
// Called out-of-band after Finishing; a slow response never blocks the
// tick loop, and responses for superseded sessions are discarded.
type InsightsProvider interface {
	Summarize(ctx context.Context, r Result) (string, error)
}
