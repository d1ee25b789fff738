// Package api exposes the pulse daemon's HTTP surface: session
// control, the live tick snapshot, and stored readings.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/pulse.report/internal/session"
	"github.com/banshee-data/pulse.report/internal/version"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// Controller is the session-control surface the API needs.
type Controller interface {
	Start() (string, error)
	Cancel()
	Snapshot() session.Snapshot
}

// ReadingSource serves stored readings.
type ReadingSource interface {
	ListReadings(ctx context.Context, limit int) ([]session.Reading, error)
	GetReading(ctx context.Context, id string) (session.Reading, error)
}

type Server struct {
	ctrl     Controller
	readings ReadingSource
}

func NewServer(ctrl Controller, readings ReadingSource) *Server {
	return &Server{
		ctrl:     ctrl,
		readings: readings,
	}
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.health)
	mux.HandleFunc("/api/session", s.showSession)
	mux.HandleFunc("/api/session/start", s.startSession)
	mux.HandleFunc("/api/session/cancel", s.cancelSession)
	mux.HandleFunc("/api/readings", s.listReadings)
	return mux
}

func (s *Server) writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok", "version": version.Version})
}

// showSession reports the controller state and the latest tick event.
func (s *Server) showSession(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	if err := json.NewEncoder(w).Encode(s.ctrl.Snapshot()); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write session snapshot")
		return
	}
}

func (s *Server) startSession(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	id, err := s.ctrl.Start()
	if err != nil {
		if errors.Is(err, session.ErrSessionActive) {
			s.writeJSONError(w, http.StatusConflict, "A session is already active")
			return
		}
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to start session: %v", err))
		return
	}
	json.NewEncoder(w).Encode(map[string]string{"session_id": id})
}

func (s *Server) cancelSession(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodPost {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	s.ctrl.Cancel()
	json.NewEncoder(w).Encode(map[string]string{"status": "cancelled"})
}

// listReadings serves stored readings, newest first. With ?id= it
// returns a single reading including its measurement series.
func (s *Server) listReadings(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	if id := r.URL.Query().Get("id"); id != "" {
		reading, err := s.readings.GetReading(r.Context(), id)
		if err != nil {
			s.writeJSONError(w, http.StatusNotFound,
				fmt.Sprintf("Failed to retrieve reading %s: %v", id, err))
			return
		}
		if err := json.NewEncoder(w).Encode(readingToAPI(reading)); err != nil {
			s.writeJSONError(w, http.StatusInternalServerError, "Failed to write reading")
		}
		return
	}

	limit := 50 // default value
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 {
			s.writeJSONError(w, http.StatusBadRequest, "Invalid 'limit' parameter")
			return
		}
		limit = parsed
	}

	readings, err := s.readings.ListReadings(r.Context(), limit)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to retrieve readings: %v", err))
		return
	}

	// The ReadingAPI struct controls the wire format; session.Reading
	// is a storage type, not a response contract.
	apiReadings := make([]ReadingAPI, len(readings))
	for i, rd := range readings {
		apiReadings[i] = readingToAPI(rd)
	}

	if err := json.NewEncoder(w).Encode(apiReadings); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, "Failed to write readings")
		return
	}
}

// ReadingAPI is the JSON shape served for a stored reading.
type ReadingAPI struct {
	ID           string    `json:"id"`
	HeartRate    int       `json:"heart_rate"`
	OxygenLevel  int       `json:"oxygen_level"`
	Confidence   float64   `json:"confidence"`
	RMSSDMs      float64   `json:"rmssd_ms"`
	Zone         string    `json:"zone"`
	Synthetic    bool      `json:"synthetic"`
	Cancelled    bool      `json:"cancelled"`
	StartedAt    time.Time `json:"started_at"`
	EndedAt      time.Time `json:"ended_at"`
	Measurements []int     `json:"measurements,omitempty"`
}

func readingToAPI(r session.Reading) ReadingAPI {
	return ReadingAPI{
		ID:           r.ID,
		HeartRate:    r.HeartRate,
		OxygenLevel:  r.OxygenLevel,
		Confidence:   r.Confidence,
		RMSSDMs:      r.RMSSDMs,
		Zone:         string(r.Zone),
		Synthetic:    r.Synthetic,
		Cancelled:    r.Cancelled,
		StartedAt:    r.StartedAt,
		EndedAt:      r.EndedAt,
		Measurements: r.Measurements,
	}
}
