// Command pulsed runs the pulse measurement daemon: it owns the frame
// source, the session controller, the readings database and the HTTP
// API, and shuts the lot down cleanly on SIGINT/SIGTERM.
package main

import (
	"context"
	"flag"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "modernc.org/sqlite"

	"github.com/banshee-data/pulse.report/internal/api"
	"github.com/banshee-data/pulse.report/internal/camera"
	"github.com/banshee-data/pulse.report/internal/config"
	"github.com/banshee-data/pulse.report/internal/db"
	"github.com/banshee-data/pulse.report/internal/insights"
	"github.com/banshee-data/pulse.report/internal/monitor"
	"github.com/banshee-data/pulse.report/internal/session"
	"github.com/banshee-data/pulse.report/internal/version"
)

var (
	listen      = flag.String("listen", ":8080", "HTTP listen address")
	dbFile      = flag.String("db", "pulse.db", "Path to the SQLite database file")
	configPath  = flag.String("config", "", "Path to tuning config JSON (default: bundled defaults)")
	source      = flag.String("source", "synthetic", "Frame source: synthetic or noise")
	bpm         = flag.Float64("bpm", 72, "Heart rate of the synthetic frame source")
	strict      = flag.Bool("strict", false, "Fail sessions with insufficient signal instead of synthesizing a result")
	plotDir     = flag.String("plots", "", "Write signal plots for each run under this directory (empty: disabled)")
	insightsURL = flag.String("insights-url", "", "URL of the insights summary service (empty: disabled)")
	showVersion = flag.Bool("version", false, "Print version information and exit")
	verbose     = flag.Bool("v", false, "Enable diagnostic logging")
	trace       = flag.Bool("vv", false, "Enable per-tick trace logging (implies -v)")
)

func main() {
	flag.Parse()

	if *showVersion {
		log.Printf("pulsed %s (%s, built %s)", version.Version, version.GitSHA, version.BuildTime)
		return
	}

	if *listen == "" {
		log.Fatal("Listen address is required")
	}

	var diagW, traceW io.Writer
	if *verbose || *trace {
		diagW = os.Stderr
	}
	if *trace {
		traceW = os.Stderr
	}
	session.SetLogWriters(session.LogWriters{Ops: os.Stderr, Diag: diagW, Trace: traceW})

	var tuning *config.TuningConfig
	if *configPath != "" {
		var err error
		tuning, err = config.LoadTuningConfig(*configPath)
		if err != nil {
			log.Fatalf("Failed to load tuning config: %v", err)
		}
	} else {
		tuning = config.MustLoadDefaultConfig()
	}

	var frames camera.FrameSource
	switch *source {
	case "synthetic":
		frames = camera.NewSyntheticSource(*bpm, tuning.GetSamplingRateHz(), nil)
	case "noise":
		frames = camera.NewNoiseSource(time.Now().UnixNano(), nil)
	default:
		log.Fatalf("Unknown frame source %q (want synthetic or noise)", *source)
	}
	defer frames.Close()

	database, err := db.NewDB(*dbFile)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	sessCfg := session.ConfigFromTuning(tuning)
	sessCfg.Store = database
	if *strict {
		sessCfg.SyntheticFallback = false
	}
	if *insightsURL != "" {
		sessCfg.Insights = insights.NewClient(*insightsURL, nil)
		sessCfg.OnInsight = func(sessionID, text string) {
			log.Printf("insight for session %s: %s", sessionID, text)
		}
	}

	var plotter *monitor.SignalPlotter
	if *plotDir != "" {
		plotter = monitor.NewSignalPlotter()
		if err := plotter.Start(monitor.MakePlotOutputDir(*plotDir, "")); err != nil {
			log.Fatalf("Failed to start signal plotter: %v", err)
		}
		sessCfg.Recorder = plotter
	}

	ctrl := session.NewController(frames, sessCfg)
	defer ctrl.Shutdown()

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := http.NewServeMux()

		// mount the admin debugging routes (accessible only in dev mode or over Tailscale)
		database.AttachAdminRoutes(mux)

		apiMux := api.NewServer(ctrl, database).ServeMux()
		mux.Handle("/", api.LoggingMiddleware(apiMux))

		server := &http.Server{
			Addr:    *listen,
			Handler: mux,
		}

		go func() {
			log.Printf("listening on %s (source=%s, db=%s)", *listen, *source, *dbFile)
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
		}

		log.Printf("HTTP server routine stopped")
	}()

	wg.Wait()

	if plotter != nil {
		plotter.Stop()
		if n, err := plotter.GeneratePlots(); err != nil {
			log.Printf("failed to generate signal plots: %v", err)
		} else if n > 0 {
			log.Printf("wrote %d signal plots under %s", n, *plotDir)
		}
	}
	log.Printf("Graceful shutdown complete")
}
