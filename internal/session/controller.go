package session

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/pulse.report/internal/camera"
	"github.com/banshee-data/pulse.report/internal/config"
	"github.com/banshee-data/pulse.report/internal/ppg"
	"github.com/banshee-data/pulse.report/internal/timeutil"
	"github.com/banshee-data/pulse.report/internal/zones"
)

// defaultOxygenLevel is reported when a session finishes with a
// measured heart rate but no accepted oxygen estimate.
const defaultOxygenLevel = 97

// guidanceNoFinger is emitted after the no-finger grace period.
const guidanceNoFinger = "no finger detected, cover the camera lens with your fingertip"

// Config holds the per-session tuning and the collaborator callbacks.
// Zero values fall back to production defaults in NewController.
type Config struct {
	SamplingRateHz       float64
	Sensitivity          ppg.Sensitivity
	Conditioner          ppg.ConditionerConfig
	ProcessNoise         float64
	FinalAverageCount    int
	CalibrationDuration  time.Duration
	MeasurementDuration  time.Duration
	NoFingerGrace        time.Duration
	SyntheticFallback    bool
	MaxHeartRateBaseline int // 0 = derive from Age
	Age                  int
	InsightsTimeout      time.Duration

	Clock    timeutil.Clock
	Store    ReadingStore
	Insights InsightsProvider
	Recorder SignalRecorder

	// Callbacks are invoked from the tick goroutine with no controller
	// lock held; they may call back into the controller.
	OnTick     func(TickEvent)
	OnComplete func(Result)
	OnGuidance func(message string)
	OnError    func(error)
	OnInsight  func(sessionID, text string)
}

// ConfigFromTuning builds a session Config from the loaded tuning file.
func ConfigFromTuning(t *config.TuningConfig) Config {
	sens := ppg.Sensitivity(t.GetSensitivity())
	return Config{
		SamplingRateHz: t.GetSamplingRateHz(),
		Sensitivity:    sens,
		Conditioner: ppg.ConditionerConfig{
			SmoothingWindow: sens.SmoothingWindow(),
			MinSamples:      t.GetMinConditioningSamples(),
			MaxWindow:       t.GetConditioningMaxWindow(),
			BaselineWindow:  t.GetBaselineWindow(),
		},
		ProcessNoise:         t.GetProcessNoise(),
		FinalAverageCount:    t.GetFinalAverageCount(),
		CalibrationDuration:  t.GetCalibrationDuration(),
		MeasurementDuration:  t.GetMeasurementDuration(),
		NoFingerGrace:        t.GetNoFingerGrace(),
		SyntheticFallback:    t.GetSyntheticFallback(),
		MaxHeartRateBaseline: t.GetMaxHeartRateBaseline(),
		Age:                  t.GetAge(),
	}
}

// Controller runs measurement sessions against a frame source. One
// session is active at a time; all per-session buffers live in the
// measurement struct and are torn down through a single routine on
// finish, cancel or shutdown.
type Controller struct {
	cfg    Config
	source camera.FrameSource

	mu          sync.Mutex
	state       State
	sess        *measurement
	generation  int // bumped on every Start; stale insights are discarded
	stop        chan struct{}
	lastTick    TickEvent
	lastInsight string

	wg sync.WaitGroup
}

// measurement owns the per-session buffers and pipeline state. No other
// component retains a reference across ticks.
type measurement struct {
	id        string
	startedAt time.Time

	red, green, blue []float64
	cond             *ppg.Conditioner
	rate             *ppg.RateEstimator
	oxygen           *ppg.OxygenEstimator

	accepted       []ppg.RateEstimate
	lastHeartRate  int
	lastOxygen     int
	lastConfidence float64   // [0,1]
	lastIntervals  []float64 // ms, from the latest peak detection
	lastLiveAt     time.Time
	guidanceSent   bool
}

// NewController creates a controller over the given frame source.
func NewController(source camera.FrameSource, cfg Config) *Controller {
	if cfg.SamplingRateHz <= 0 {
		cfg.SamplingRateHz = ppg.DefaultSamplingRateHz
	}
	if cfg.ProcessNoise <= 0 {
		cfg.ProcessNoise = 1.0
	}
	if cfg.FinalAverageCount <= 0 {
		cfg.FinalAverageCount = 5
	}
	if cfg.CalibrationDuration <= 0 {
		cfg.CalibrationDuration = 5 * time.Second
	}
	if cfg.MeasurementDuration <= 0 {
		cfg.MeasurementDuration = 15 * time.Second
	}
	if cfg.NoFingerGrace <= 0 {
		cfg.NoFingerGrace = 3 * time.Second
	}
	if cfg.InsightsTimeout <= 0 {
		cfg.InsightsTimeout = 30 * time.Second
	}
	if cfg.Clock == nil {
		cfg.Clock = timeutil.RealClock{}
	}
	if cfg.Conditioner == (ppg.ConditionerConfig{}) {
		cfg.Conditioner = ppg.DefaultConditionerConfig()
		if cfg.Sensitivity != "" {
			cfg.Conditioner.SmoothingWindow = cfg.Sensitivity.SmoothingWindow()
		}
	}
	return &Controller{
		cfg:    cfg,
		source: source,
		state:  Idle,
	}
}

// Start begins a new session and returns its ID. It fails with
// ErrSessionActive while a session is running.
func (c *Controller) Start() (string, error) {
	c.mu.Lock()
	if c.state != Idle {
		c.mu.Unlock()
		return "", ErrSessionActive
	}

	cond := ppg.NewConditioner(c.cfg.Conditioner)
	m := &measurement{
		id:        uuid.NewString(),
		startedAt: c.cfg.Clock.Now(),
		cond:      cond,
		rate:      ppg.NewRateEstimator(c.cfg.SamplingRateHz, c.cfg.ProcessNoise),
		oxygen:    ppg.NewOxygenEstimator(cond),
	}
	c.sess = m
	c.state = Calibrating
	c.generation++

	stop := make(chan struct{})
	c.stop = stop
	ticker := c.cfg.Clock.NewTicker(c.tickInterval())
	c.wg.Add(1)
	go c.run(stop, ticker)
	c.mu.Unlock()

	opsf("session %s started (%.0f Hz, calibration %v, window %v)",
		m.id, c.cfg.SamplingRateHz, c.cfg.CalibrationDuration, c.cfg.MeasurementDuration)
	return m.id, nil
}

// Cancel stops the active session, persisting whatever heart rate was
// last computed (if any) as a cancelled reading. No-op when idle.
func (c *Controller) Cancel() {
	c.mu.Lock()
	if c.sess == nil {
		c.mu.Unlock()
		return
	}
	m := c.sess
	now := c.cfg.Clock.Now()
	var reading *Reading
	if m.lastHeartRate > 0 {
		reading = &Reading{
			ID:           m.id,
			HeartRate:    m.lastHeartRate,
			OxygenLevel:  m.lastOxygen,
			Confidence:   m.lastConfidence,
			RMSSDMs:      ppg.RMSSD(m.lastIntervals),
			Zone:         zones.Classify(m.lastHeartRate, c.maxHeartRate()),
			Cancelled:    true,
			StartedAt:    m.startedAt,
			EndedAt:      now,
			Measurements: acceptedBPMs(m.accepted),
		}
	}
	c.teardownLocked()
	c.mu.Unlock()

	opsf("session %s cancelled", m.id)
	if reading != nil && c.cfg.Store != nil {
		if err := c.cfg.Store.SaveReading(context.Background(), *reading); err != nil {
			opsf("session %s: save cancelled reading: %v", m.id, err)
		}
	}
}

// Shutdown tears down any active session without persisting and waits
// for background work to drain.
func (c *Controller) Shutdown() {
	c.mu.Lock()
	if c.sess != nil {
		opsf("controller shutdown with session %s active", c.sess.id)
	}
	c.teardownLocked()
	c.mu.Unlock()
	c.wg.Wait()
}

// Snapshot reports the controller state for the API layer.
type Snapshot struct {
	State       State      `json:"state"`
	LastTick    *TickEvent `json:"last_tick,omitempty"`
	LastInsight string     `json:"last_insight,omitempty"`
}

// Snapshot returns the current state and the most recent tick event.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := Snapshot{State: c.state, LastInsight: c.lastInsight}
	if c.lastTick.SessionID != "" {
		ev := c.lastTick
		s.LastTick = &ev
	}
	return s
}

func (c *Controller) tickInterval() time.Duration {
	return time.Duration(float64(time.Second) / c.cfg.SamplingRateHz)
}

func (c *Controller) maxHeartRate() int {
	if c.cfg.MaxHeartRateBaseline > 0 {
		return c.cfg.MaxHeartRateBaseline
	}
	return zones.MaxHRForAge(c.cfg.Age)
}

// run is the session tick loop. The loop is strictly serial: the next
// tick cannot begin until the previous pipeline evaluation returns, so
// at most one evaluation is in flight per session.
func (c *Controller) run(stop chan struct{}, ticker timeutil.Ticker) {
	defer c.wg.Done()
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case now := <-ticker.C():
			c.tick(now)
		}
	}
}

// tickOutcome collects the events produced by one locked pipeline
// evaluation, delivered after the lock is released.
type tickOutcome struct {
	tick     *TickEvent
	result   *Result
	guidance string
	err      error
}

// tick runs one pipeline evaluation and delivers the resulting events.
func (c *Controller) tick(now time.Time) {
	out := c.step(now)
	if out.guidance != "" && c.cfg.OnGuidance != nil {
		c.cfg.OnGuidance(out.guidance)
	}
	if out.tick != nil && c.cfg.OnTick != nil {
		c.cfg.OnTick(*out.tick)
	}
	if out.result != nil {
		c.complete(*out.result)
	}
	if out.err != nil && c.cfg.OnError != nil {
		c.cfg.OnError(out.err)
	}
}

func (c *Controller) step(now time.Time) tickOutcome {
	var out tickOutcome
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess == nil || (c.state != Calibrating && c.state != Measuring) {
		return out
	}
	m := c.sess

	frame, err := c.source.Frame()
	if err != nil {
		// Acquisition failure is the one fatal per-tick error: the
		// session cannot proceed without frames.
		opsf("session %s: frame acquisition failed: %v", m.id, err)
		c.teardownLocked()
		out.err = fmt.Errorf("acquire frame: %w", err)
		return out
	}
	sample, err := ppg.SampleFrame(frame.Pixels, frame.Width, frame.Height)
	if err != nil {
		opsf("session %s: bad frame: %v", m.id, err)
		c.teardownLocked()
		out.err = fmt.Errorf("sample frame: %w", err)
		return out
	}
	if c.cfg.Recorder != nil {
		c.cfg.Recorder.Record(sample)
	}

	elapsed := now.Sub(m.startedAt)
	if c.state == Calibrating && elapsed >= c.cfg.CalibrationDuration {
		c.state = Measuring
		diagf("session %s: calibration complete after %v", m.id, elapsed.Round(time.Millisecond))
	}

	live := ppg.IsLive(sample)
	if live {
		m.lastLiveAt = now
		m.guidanceSent = false
		bound := c.cfg.Conditioner.MaxWindow
		m.red = appendBounded(m.red, sample.Red, bound)
		m.green = appendBounded(m.green, sample.Green, bound)
		m.blue = appendBounded(m.blue, sample.Blue, bound)
		c.evaluateLocked(m, now)
	} else {
		// Not an error: withhold numeric updates, keep the clock
		// running, and nudge the user after the grace period.
		ref := m.lastLiveAt
		if ref.IsZero() {
			ref = m.startedAt
		}
		if !m.guidanceSent && now.Sub(ref) >= c.cfg.NoFingerGrace {
			m.guidanceSent = true
			diagf("session %s: no finger for %v, emitting guidance", m.id, now.Sub(ref).Round(time.Millisecond))
			out.guidance = guidanceNoFinger
		}
	}

	ev := TickEvent{
		SessionID:         m.id,
		State:             c.state,
		HeartRate:         m.lastHeartRate,
		OxygenLevel:       m.lastOxygen,
		ConfidencePercent: m.lastConfidence * 100,
		IsLive:            live,
		Zone:              zones.Classify(m.lastHeartRate, c.maxHeartRate()),
		Elapsed:           elapsed,
	}
	c.lastTick = ev
	out.tick = &ev

	if elapsed >= c.cfg.MeasurementDuration {
		out.result, out.err = c.finishLocked(m, now)
	}
	return out
}

// evaluateLocked runs conditioning, peak detection, rate and oxygen
// estimation over the accumulated buffers for one live tick.
func (c *Controller) evaluateLocked(m *measurement, now time.Time) {
	conditioned := m.cond.Condition(m.green)

	// The detrend pass leaves the boundary segment un-recentred, which
	// would distort the adaptive peak threshold, so peaks and quality
	// run on the trimmed core.
	core, _ := m.cond.TrimEdges(conditioned)
	quality := ppg.QualityScore(core)
	m.lastConfidence = quality

	peaks := ppg.DetectPeaks(core)
	if c.cfg.Recorder != nil {
		c.cfg.Recorder.RecordConditioned(core, peaks)
	}
	if len(peaks) >= 2 {
		m.lastIntervals = intervalsMs(peaks, c.cfg.SamplingRateHz)
	}
	if est, ok := m.rate.Estimate(peaks, quality, now); ok {
		m.lastHeartRate = est.BPM
		m.accepted = append(m.accepted, est)
	}
	if ox, ok := m.oxygen.Estimate(m.red, m.green, m.blue); ok {
		m.lastOxygen = ox
	}
	tracef("session %s: n=%d peaks=%d q=%.2f hr=%d ox=%d",
		m.id, len(m.green), len(peaks), quality, m.lastHeartRate, m.lastOxygen)
}

// finishLocked computes the terminal result and tears the session down.
// With fewer than two accepted estimates the synthetic fallback (when
// enabled) reports a plausible resting result instead of failing; in
// strict mode the session ends with ErrInsufficientSignal.
func (c *Controller) finishLocked(m *measurement, now time.Time) (*Result, error) {
	c.state = Finishing
	diagf("session %s: finishing with %d accepted estimates", m.id, len(m.accepted))

	res := Result{
		SessionID:    m.id,
		Measurements: acceptedBPMs(m.accepted),
		StartedAt:    m.startedAt,
		EndedAt:      now,
	}
	switch {
	case len(m.accepted) >= 2:
		res.FinalHeartRate = averageLast(res.Measurements, c.cfg.FinalAverageCount)
		res.FinalOxygenLevel = m.lastOxygen
		if res.FinalOxygenLevel == 0 {
			res.FinalOxygenLevel = defaultOxygenLevel
		}
		res.Confidence = m.lastConfidence
		res.RMSSDMs = ppg.RMSSD(m.lastIntervals)
	case c.cfg.SyntheticFallback:
		res.FinalHeartRate = 65 + rand.Intn(20)
		res.FinalOxygenLevel = 96 + rand.Intn(3)
		res.Synthetic = true
		opsf("session %s: insufficient signal, reporting synthesized result", m.id)
	default:
		c.teardownLocked()
		opsf("session %s: insufficient signal, strict mode", m.id)
		return nil, ErrInsufficientSignal
	}
	res.Zone = zones.Classify(res.FinalHeartRate, c.maxHeartRate())
	c.teardownLocked()
	return &res, nil
}

// complete persists and announces a finished session's result.
func (c *Controller) complete(res Result) {
	opsf("session %s finished: hr=%d ox=%d synthetic=%v",
		res.SessionID, res.FinalHeartRate, res.FinalOxygenLevel, res.Synthetic)
	if c.cfg.Store != nil {
		if err := c.cfg.Store.SaveReading(context.Background(), readingFromResult(res)); err != nil {
			opsf("session %s: save reading: %v", res.SessionID, err)
		}
	}
	c.fetchInsights(res)
	if c.cfg.OnComplete != nil {
		c.cfg.OnComplete(res)
	}
}

// teardownLocked is the single exit path for finish, cancel and
// shutdown: it stops the tick loop, releases the session buffers and
// returns the controller to Idle. The filter state dies with the
// measurement struct; a new session always starts from the default
// prior.
func (c *Controller) teardownLocked() {
	if c.stop != nil {
		close(c.stop)
		c.stop = nil
	}
	if c.sess != nil {
		c.sess.rate.Reset()
		c.sess = nil
	}
	c.state = Idle
}

func readingFromResult(res Result) Reading {
	return Reading{
		ID:           res.SessionID,
		HeartRate:    res.FinalHeartRate,
		OxygenLevel:  res.FinalOxygenLevel,
		Confidence:   res.Confidence,
		RMSSDMs:      res.RMSSDMs,
		Zone:         res.Zone,
		Synthetic:    res.Synthetic,
		StartedAt:    res.StartedAt,
		EndedAt:      res.EndedAt,
		Measurements: res.Measurements,
	}
}

func acceptedBPMs(accepted []ppg.RateEstimate) []int {
	out := make([]int, len(accepted))
	for i, e := range accepted {
		out[i] = e.BPM
	}
	return out
}

// averageLast returns the rounded mean of the last n values.
func averageLast(values []int, n int) int {
	if len(values) == 0 {
		return 0
	}
	if n > len(values) {
		n = len(values)
	}
	var sum int
	for _, v := range values[len(values)-n:] {
		sum += v
	}
	return int(math.Round(float64(sum) / float64(n)))
}

// intervalsMs converts inter-peak sample spacings to milliseconds.
func intervalsMs(peaks []float64, samplingRateHz float64) []float64 {
	out := make([]float64, 0, len(peaks)-1)
	for i := 1; i < len(peaks); i++ {
		out = append(out, (peaks[i]-peaks[i-1])/samplingRateHz*1000)
	}
	return out
}

// appendBounded appends v and drops the oldest samples beyond the
// bound. Bound 0 means unbounded.
func appendBounded(buf []float64, v float64, bound int) []float64 {
	buf = append(buf, v)
	if bound > 0 && len(buf) > bound {
		buf = buf[len(buf)-bound:]
	}
	return buf
}
