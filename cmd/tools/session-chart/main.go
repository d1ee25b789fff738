// Command session-chart renders a stored session's measurement series
// as an ECharts line chart (HTML). With no -id it charts the most
// recent reading in the database.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/pulse.report/internal/db"
	"github.com/banshee-data/pulse.report/internal/session"
)

var (
	dbFile    = flag.String("db", "pulse.db", "Path to the SQLite database file")
	readingID = flag.String("id", "", "Reading ID to chart (default: most recent)")
	outFile   = flag.String("out", "session_chart.html", "Output HTML file")
)

func main() {
	flag.Parse()

	database, err := db.NewDB(*dbFile)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer database.Close()

	reading, err := loadReading(database)
	if err != nil {
		log.Fatalf("Failed to load reading: %v", err)
	}
	if len(reading.Measurements) == 0 {
		log.Fatalf("Reading %s has no measurement series (synthetic=%v cancelled=%v)",
			reading.ID, reading.Synthetic, reading.Cancelled)
	}

	if err := renderChart(reading, *outFile); err != nil {
		log.Fatalf("Failed to render chart: %v", err)
	}
	log.Printf("wrote %s (%d measurements, final hr=%d)", *outFile, len(reading.Measurements), reading.HeartRate)
}

func loadReading(database *db.DB) (session.Reading, error) {
	ctx := context.Background()
	if *readingID != "" {
		return database.GetReading(ctx, *readingID)
	}
	latest, err := database.ListReadings(ctx, 1)
	if err != nil {
		return session.Reading{}, err
	}
	if len(latest) == 0 {
		return session.Reading{}, fmt.Errorf("no readings in %s", *dbFile)
	}
	// ListReadings omits the measurement series; fetch the full row.
	return database.GetReading(ctx, latest[0].ID)
}

func renderChart(r session.Reading, outPath string) error {
	x := make([]string, len(r.Measurements))
	y := make([]opts.LineData, len(r.Measurements))
	for i, bpm := range r.Measurements {
		x[i] = fmt.Sprintf("%d", i+1)
		y[i] = opts.LineData{Value: bpm}
	}

	subtitle := fmt.Sprintf("reading=%s hr=%d ox=%d zone=%s rmssd=%.1fms ended=%s",
		r.ID, r.HeartRate, r.OxygenLevel, r.Zone, r.RMSSDMs,
		r.EndedAt.UTC().Format("2006-01-02 15:04:05"))

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Pulse Session", Theme: "dark", Width: "1200px", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{Title: "Heart Rate Estimates", Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Estimate"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "BPM"}),
	)
	line.SetXAxis(x).
		AddSeries("bpm", y,
			charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(true)}),
		)

	f, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer f.Close()
	return line.Render(f)
}
