// Package monitor provides offline visualisation of captured signals
// for pipeline debugging and tuning.
package monitor

import (
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/pulse.report/internal/ppg"
)

// SignalPlotter records raw channel samples and the latest conditioned
// signal over a session, and renders them to PNG after a run. It is
// sampled from the tick path, so Record must stay cheap.
type SignalPlotter struct {
	mu        sync.Mutex
	enabled   bool
	outputDir string

	red, green, blue []float64

	// Latest conditioned signal and its detected peaks; overwritten
	// each tick so the final plot shows the end-of-session view.
	conditioned []float64
	peaks       []float64
}

// NewSignalPlotter creates a disabled plotter. Call Start to begin
// recording.
func NewSignalPlotter() *SignalPlotter {
	return &SignalPlotter{}
}

// Start initializes the plotter for a new run.
// outputDir should be a timestamped directory (e.g., "plots/20260823_101500").
func (sp *SignalPlotter) Start(outputDir string) error {
	sp.mu.Lock()
	defer sp.mu.Unlock()

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}

	sp.outputDir = outputDir
	sp.enabled = true
	sp.red = nil
	sp.green = nil
	sp.blue = nil
	sp.conditioned = nil
	sp.peaks = nil
	return nil
}

// Stop disables sampling. Call GeneratePlots() to produce output files.
func (sp *SignalPlotter) Stop() {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	sp.enabled = false
}

// IsEnabled returns true if the plotter is currently recording.
func (sp *SignalPlotter) IsEnabled() bool {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	return sp.enabled
}

// Record captures one tick's raw channel averages.
func (sp *SignalPlotter) Record(s ppg.Sample) {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	if !sp.enabled {
		return
	}
	sp.red = append(sp.red, s.Red)
	sp.green = append(sp.green, s.Green)
	sp.blue = append(sp.blue, s.Blue)
}

// RecordConditioned keeps the most recent conditioned signal and its
// detected peak positions for the conditioned-signal plot.
func (sp *SignalPlotter) RecordConditioned(signal, peaks []float64) {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	if !sp.enabled {
		return
	}
	sp.conditioned = append(sp.conditioned[:0], signal...)
	sp.peaks = append(sp.peaks[:0], peaks...)
}

// SampleCount returns the number of raw samples recorded so far.
func (sp *SignalPlotter) SampleCount() int {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	return len(sp.green)
}

// GeneratePlots renders the raw channel and conditioned-signal PNGs.
// Returns the number of plots generated and any error.
func (sp *SignalPlotter) GeneratePlots() (int, error) {
	sp.mu.Lock()
	defer sp.mu.Unlock()

	if sp.outputDir == "" {
		return 0, fmt.Errorf("no output directory configured")
	}
	if len(sp.green) == 0 {
		return 0, nil
	}

	count := 0
	if err := sp.generateRawPlot(); err != nil {
		return count, fmt.Errorf("raw channels: %w", err)
	}
	count++

	if len(sp.conditioned) > 0 {
		if err := sp.generateConditionedPlot(); err != nil {
			return count, fmt.Errorf("conditioned signal: %w", err)
		}
		count++
	}
	return count, nil
}

// generateRawPlot draws the three raw channel series on one plot.
func (sp *SignalPlotter) generateRawPlot() error {
	p := plot.New()
	p.Title.Text = "Raw Channel Averages"
	p.X.Label.Text = "Tick"
	p.Y.Label.Text = "Intensity"

	channels := []struct {
		name   string
		values []float64
		color  color.Color
	}{
		{"red", sp.red, color.RGBA{R: 220, A: 255}},
		{"green", sp.green, color.RGBA{G: 160, A: 255}},
		{"blue", sp.blue, color.RGBA{B: 220, A: 255}},
	}
	for _, ch := range channels {
		line, err := plotter.NewLine(seriesXYs(ch.values))
		if err != nil {
			return err
		}
		line.Color = ch.color
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(ch.name, line)
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	file := filepath.Join(sp.outputDir, "raw_channels.png")
	if err := p.Save(14*vg.Inch, 6*vg.Inch, file); err != nil {
		return fmt.Errorf("save raw plot: %w", err)
	}
	return nil
}

// generateConditionedPlot draws the final conditioned signal with the
// detected peaks marked.
func (sp *SignalPlotter) generateConditionedPlot() error {
	p := plot.New()
	p.Title.Text = "Conditioned Signal"
	p.X.Label.Text = "Sample"
	p.Y.Label.Text = "Normalised Amplitude"

	line, err := plotter.NewLine(seriesXYs(sp.conditioned))
	if err != nil {
		return err
	}
	line.Width = vg.Points(1)
	p.Add(line)
	p.Legend.Add("signal", line)

	if len(sp.peaks) > 0 {
		pts := make(plotter.XYs, 0, len(sp.peaks))
		for _, pk := range sp.peaks {
			pts = append(pts, plotter.XY{X: pk, Y: interpolateAt(sp.conditioned, pk)})
		}
		scatter, err := plotter.NewScatter(pts)
		if err != nil {
			return err
		}
		scatter.Color = color.RGBA{R: 220, A: 255}
		p.Add(scatter)
		p.Legend.Add("peaks", scatter)
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	file := filepath.Join(sp.outputDir, "conditioned.png")
	if err := p.Save(14*vg.Inch, 6*vg.Inch, file); err != nil {
		return fmt.Errorf("save conditioned plot: %w", err)
	}
	return nil
}

func seriesXYs(values []float64) plotter.XYs {
	pts := make(plotter.XYs, len(values))
	for i, v := range values {
		pts[i] = plotter.XY{X: float64(i), Y: v}
	}
	return pts
}

// interpolateAt linearly interpolates the signal value at a fractional
// index, for placing sub-sample peak markers on the curve.
func interpolateAt(signal []float64, x float64) float64 {
	if len(signal) == 0 {
		return 0
	}
	i := int(math.Floor(x))
	if i < 0 {
		return signal[0]
	}
	if i >= len(signal)-1 {
		return signal[len(signal)-1]
	}
	frac := x - float64(i)
	return signal[i]*(1-frac) + signal[i+1]*frac
}

// FormatTimestamp generates a timestamp string for directory naming.
func FormatTimestamp(t time.Time) string {
	return t.Format("20060102_150405")
}

// MakePlotOutputDir creates a timestamped output directory path for a
// session's plots: plots/<session-id>/<timestamp>.
func MakePlotOutputDir(baseDir, sessionID string) string {
	ts := FormatTimestamp(time.Now())
	if sessionID != "" {
		return filepath.Join(baseDir, sessionID, ts)
	}
	return filepath.Join(baseDir, "live_"+ts)
}
