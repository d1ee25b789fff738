package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/banshee-data/pulse.report/internal/session"
	"github.com/banshee-data/pulse.report/internal/testutil"
	"github.com/banshee-data/pulse.report/internal/zones"
)

type fakeController struct {
	startID   string
	startErr  error
	cancelled int
	snapshot  session.Snapshot
}

func (f *fakeController) Start() (string, error)     { return f.startID, f.startErr }
func (f *fakeController) Cancel()                    { f.cancelled++ }
func (f *fakeController) Snapshot() session.Snapshot { return f.snapshot }

type fakeReadings struct {
	readings []session.Reading
	err      error
}

func (f *fakeReadings) ListReadings(_ context.Context, limit int) ([]session.Reading, error) {
	if f.err != nil {
		return nil, f.err
	}
	if limit < len(f.readings) {
		return f.readings[:limit], nil
	}
	return f.readings, nil
}

func (f *fakeReadings) GetReading(_ context.Context, id string) (session.Reading, error) {
	for _, r := range f.readings {
		if r.ID == id {
			return r, nil
		}
	}
	return session.Reading{}, errors.New("not found")
}

func sampleReading(id string) session.Reading {
	ended := time.Date(2026, 8, 23, 10, 0, 0, 0, time.UTC)
	return session.Reading{
		ID:           id,
		HeartRate:    72,
		OxygenLevel:  97,
		Confidence:   0.9,
		Zone:         zones.Rest,
		StartedAt:    ended.Add(-15 * time.Second),
		EndedAt:      ended,
		Measurements: []int{71, 72},
	}
}

func TestHealth(t *testing.T) {
	s := NewServer(&fakeController{}, &fakeReadings{})
	mux := s.ServeMux()

	req := testutil.NewTestRequest(http.MethodGet, "/healthz")
	rec := testutil.NewTestRecorder()
	mux.ServeHTTP(rec, req)
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
}

func TestShowSession(t *testing.T) {
	ctrl := &fakeController{
		snapshot: session.Snapshot{
			State: session.Measuring,
			LastTick: &session.TickEvent{
				SessionID: "s-1",
				HeartRate: 72,
				IsLive:    true,
			},
		},
	}
	mux := NewServer(ctrl, &fakeReadings{}).ServeMux()

	req := testutil.NewTestRequest(http.MethodGet, "/api/session")
	rec := testutil.NewTestRecorder()
	mux.ServeHTTP(rec, req)
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)

	var snap session.Snapshot
	testutil.AssertNoError(t, json.NewDecoder(rec.Body).Decode(&snap))
	if snap.State != session.Measuring {
		t.Errorf("state = %s, want %s", snap.State, session.Measuring)
	}
	if snap.LastTick == nil || snap.LastTick.HeartRate != 72 {
		t.Errorf("unexpected last tick: %+v", snap.LastTick)
	}
}

func TestStartSession(t *testing.T) {
	ctrl := &fakeController{startID: "s-new"}
	mux := NewServer(ctrl, &fakeReadings{}).ServeMux()

	req := testutil.NewTestRequest(http.MethodPost, "/api/session/start")
	rec := testutil.NewTestRecorder()
	mux.ServeHTTP(rec, req)
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)

	var body map[string]string
	testutil.AssertNoError(t, json.NewDecoder(rec.Body).Decode(&body))
	if body["session_id"] != "s-new" {
		t.Errorf("session_id = %q, want s-new", body["session_id"])
	}
}

func TestStartSessionConflict(t *testing.T) {
	ctrl := &fakeController{startErr: session.ErrSessionActive}
	mux := NewServer(ctrl, &fakeReadings{}).ServeMux()

	req := testutil.NewTestRequest(http.MethodPost, "/api/session/start")
	rec := testutil.NewTestRecorder()
	mux.ServeHTTP(rec, req)
	testutil.AssertStatusCode(t, rec.Code, http.StatusConflict)
}

func TestStartSessionWrongMethod(t *testing.T) {
	mux := NewServer(&fakeController{}, &fakeReadings{}).ServeMux()

	req := testutil.NewTestRequest(http.MethodGet, "/api/session/start")
	rec := testutil.NewTestRecorder()
	mux.ServeHTTP(rec, req)
	testutil.AssertStatusCode(t, rec.Code, http.StatusMethodNotAllowed)
}

func TestCancelSession(t *testing.T) {
	ctrl := &fakeController{}
	mux := NewServer(ctrl, &fakeReadings{}).ServeMux()

	req := testutil.NewTestRequest(http.MethodPost, "/api/session/cancel")
	rec := testutil.NewTestRecorder()
	mux.ServeHTTP(rec, req)
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	if ctrl.cancelled != 1 {
		t.Errorf("cancelled %d times, want 1", ctrl.cancelled)
	}
}

func TestListReadings(t *testing.T) {
	readings := &fakeReadings{readings: []session.Reading{sampleReading("a"), sampleReading("b")}}
	mux := NewServer(&fakeController{}, readings).ServeMux()

	req := testutil.NewTestRequest(http.MethodGet, "/api/readings?limit=1")
	rec := testutil.NewTestRecorder()
	mux.ServeHTTP(rec, req)
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)

	var got []ReadingAPI
	testutil.AssertNoError(t, json.NewDecoder(rec.Body).Decode(&got))
	if len(got) != 1 || got[0].ID != "a" {
		t.Errorf("unexpected readings: %+v", got)
	}
}

func TestListReadingsBadLimit(t *testing.T) {
	mux := NewServer(&fakeController{}, &fakeReadings{}).ServeMux()

	req := testutil.NewTestRequest(http.MethodGet, "/api/readings?limit=zero")
	rec := testutil.NewTestRecorder()
	mux.ServeHTTP(rec, req)
	testutil.AssertStatusCode(t, rec.Code, http.StatusBadRequest)
}

func TestGetReadingByID(t *testing.T) {
	readings := &fakeReadings{readings: []session.Reading{sampleReading("a")}}
	mux := NewServer(&fakeController{}, readings).ServeMux()

	req := testutil.NewTestRequest(http.MethodGet, "/api/readings?id=a")
	rec := testutil.NewTestRecorder()
	mux.ServeHTTP(rec, req)
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)

	var got ReadingAPI
	testutil.AssertNoError(t, json.NewDecoder(rec.Body).Decode(&got))
	if got.ID != "a" || len(got.Measurements) != 2 {
		t.Errorf("unexpected reading: %+v", got)
	}

	req = testutil.NewTestRequest(http.MethodGet, "/api/readings?id=missing")
	rec = testutil.NewTestRecorder()
	mux.ServeHTTP(rec, req)
	testutil.AssertStatusCode(t, rec.Code, http.StatusNotFound)
}
