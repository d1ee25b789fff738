package db

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/banshee-data/pulse.report/internal/session"
	"github.com/banshee-data/pulse.report/internal/zones"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "pulse_test.db"))
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testReading(id string, endedAt time.Time) session.Reading {
	return session.Reading{
		ID:           id,
		HeartRate:    72,
		OxygenLevel:  97,
		Confidence:   0.91,
		RMSSDMs:      42.5,
		Zone:         zones.Rest,
		StartedAt:    endedAt.Add(-15 * time.Second),
		EndedAt:      endedAt,
		Measurements: []int{70, 71, 72, 72},
	}
}

func TestSaveAndGetReading(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	want := testReading("r-1", time.Date(2026, 8, 23, 10, 0, 0, 0, time.UTC))
	if err := db.SaveReading(ctx, want); err != nil {
		t.Fatalf("SaveReading failed: %v", err)
	}

	got, err := db.GetReading(ctx, "r-1")
	if err != nil {
		t.Fatalf("GetReading failed: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("reading round-trip mismatch (-want +got):\n%s", diff)
	}
}

func TestSaveReadingDuplicateID(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	r := testReading("dup", time.Now().UTC())
	if err := db.SaveReading(ctx, r); err != nil {
		t.Fatalf("first SaveReading failed: %v", err)
	}
	if err := db.SaveReading(ctx, r); err == nil {
		t.Error("expected error on duplicate reading id, got nil")
	}
}

func TestListReadingsNewestFirst(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 23, 10, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		r := testReading(id, base.Add(time.Duration(i)*time.Minute))
		if err := db.SaveReading(ctx, r); err != nil {
			t.Fatalf("SaveReading(%s) failed: %v", id, err)
		}
	}

	got, err := db.ListReadings(ctx, 2)
	if err != nil {
		t.Fatalf("ListReadings failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 readings, got %d", len(got))
	}
	if got[0].ID != "c" || got[1].ID != "b" {
		t.Errorf("expected newest-first [c b], got [%s %s]", got[0].ID, got[1].ID)
	}
	if got[0].Measurements != nil {
		t.Error("ListReadings should not load measurement series")
	}
}

func TestCancelledReadingRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	r := testReading("cancelled", time.Now().UTC().Truncate(time.Millisecond))
	r.Cancelled = true
	r.Measurements = nil
	if err := db.SaveReading(ctx, r); err != nil {
		t.Fatalf("SaveReading failed: %v", err)
	}

	got, err := db.GetReading(ctx, "cancelled")
	if err != nil {
		t.Fatalf("GetReading failed: %v", err)
	}
	if !got.Cancelled {
		t.Error("expected Cancelled to round-trip")
	}
	if len(got.Measurements) != 0 {
		t.Errorf("expected no measurements, got %d", len(got.Measurements))
	}
}

func TestGetReadingMissing(t *testing.T) {
	db := setupTestDB(t)
	if _, err := db.GetReading(context.Background(), "nope"); err == nil {
		t.Error("expected error for missing reading, got nil")
	}
}

func TestMigrateUpAndVersion(t *testing.T) {
	db := setupTestDB(t)

	if err := db.MigrateUp("migrations"); err != nil {
		t.Fatalf("MigrateUp failed: %v", err)
	}
	version, dirty, err := db.MigrateVersion("migrations")
	if err != nil {
		t.Fatalf("MigrateVersion failed: %v", err)
	}
	if dirty {
		t.Error("database should not be dirty after MigrateUp")
	}
	if version == 0 {
		t.Error("expected non-zero version after MigrateUp")
	}

	// Idempotent: a second up is a no-op.
	if err := db.MigrateUp("migrations"); err != nil {
		t.Fatalf("second MigrateUp failed: %v", err)
	}
}

func TestAttachAdminRoutes(t *testing.T) {
	db := setupTestDB(t)
	mux := http.NewServeMux()
	db.AttachAdminRoutes(mux)

	// Routes may answer 403 behind tsweb auth; only 404 means the
	// route was not registered.
	for _, path := range []string{"/debug/", "/debug/tailsql/", "/debug/backup"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		if rec.Code == http.StatusNotFound {
			t.Errorf("route %s should be registered, got 404", path)
		}
	}
}
