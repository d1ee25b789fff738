// Package db persists session readings in sqlite and exposes the admin
// debug surface (live SQL console, backup download).
package db

import (
	"compress/gzip"
	"context"
	"database/sql"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/tailscale/tailsql/server/tailsql"
	_ "modernc.org/sqlite"
	"tailscale.com/tsweb"

	"github.com/banshee-data/pulse.report/internal/session"
	"github.com/banshee-data/pulse.report/internal/zones"
)

type DB struct {
	*sql.DB
}

// NewDB opens (creating if needed) the sqlite database at path and
// ensures the baseline schema exists. Later schema changes ship as
// migrations; the inline DDL below is the version-1 baseline.
func NewDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS readings (
			id                TEXT PRIMARY KEY,
			heart_rate        BIGINT NOT NULL,
			oxygen_level      BIGINT NOT NULL,
			confidence        DOUBLE NOT NULL DEFAULT 0,
			rmssd_ms          DOUBLE NOT NULL DEFAULT 0,
			zone              TEXT NOT NULL DEFAULT 'rest',
			synthetic         BIGINT NOT NULL DEFAULT 0,
			cancelled         BIGINT NOT NULL DEFAULT 0,
			started_at_ms     BIGINT NOT NULL,
			ended_at_ms       BIGINT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_readings_ended_at ON readings(ended_at_ms);
		CREATE TABLE IF NOT EXISTS measurements (
			reading_id        TEXT NOT NULL,
			seq               BIGINT NOT NULL,
			bpm               BIGINT NOT NULL,
			PRIMARY KEY (reading_id, seq),
			FOREIGN KEY (reading_id) REFERENCES readings(id)
		);
	`)
	if err != nil {
		return nil, err
	}

	return &DB{db}, nil
}

// SaveReading stores a finished or cancelled session outcome together
// with its per-tick measurements. Implements session.ReadingStore.
func (db *DB) SaveReading(ctx context.Context, r session.Reading) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO readings
			(id, heart_rate, oxygen_level, confidence, rmssd_ms, zone,
			 synthetic, cancelled, started_at_ms, ended_at_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.HeartRate, r.OxygenLevel, r.Confidence, r.RMSSDMs, string(r.Zone),
		boolToInt(r.Synthetic), boolToInt(r.Cancelled),
		r.StartedAt.UnixMilli(), r.EndedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("insert reading %s: %w", r.ID, err)
	}

	for i, bpm := range r.Measurements {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO measurements (reading_id, seq, bpm) VALUES (?, ?, ?)`,
			r.ID, i, bpm); err != nil {
			return fmt.Errorf("insert measurement %d for %s: %w", i, r.ID, err)
		}
	}

	return tx.Commit()
}

// ListReadings returns the most recent readings, newest first, without
// their per-tick measurement series.
func (db *DB) ListReadings(ctx context.Context, limit int) ([]session.Reading, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.QueryContext(ctx, `
		SELECT id, heart_rate, oxygen_level, confidence, rmssd_ms, zone,
		       synthetic, cancelled, started_at_ms, ended_at_ms
		FROM readings ORDER BY ended_at_ms DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []session.Reading
	for rows.Next() {
		r, err := scanReading(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetReading returns one reading with its full measurement series.
func (db *DB) GetReading(ctx context.Context, id string) (session.Reading, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, heart_rate, oxygen_level, confidence, rmssd_ms, zone,
		       synthetic, cancelled, started_at_ms, ended_at_ms
		FROM readings WHERE id = ?`, id)
	r, err := scanReading(row)
	if err != nil {
		return session.Reading{}, err
	}

	rows, err := db.QueryContext(ctx,
		`SELECT bpm FROM measurements WHERE reading_id = ? ORDER BY seq`, id)
	if err != nil {
		return session.Reading{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var bpm int
		if err := rows.Scan(&bpm); err != nil {
			return session.Reading{}, err
		}
		r.Measurements = append(r.Measurements, bpm)
	}
	return r, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReading(row rowScanner) (session.Reading, error) {
	var r session.Reading
	var zone string
	var synthetic, cancelled int
	var startedMs, endedMs int64
	err := row.Scan(&r.ID, &r.HeartRate, &r.OxygenLevel, &r.Confidence, &r.RMSSDMs,
		&zone, &synthetic, &cancelled, &startedMs, &endedMs)
	if err != nil {
		return session.Reading{}, err
	}
	r.Zone = zones.Zone(zone)
	r.Synthetic = synthetic != 0
	r.Cancelled = cancelled != 0
	r.StartedAt = time.UnixMilli(startedMs).UTC()
	r.EndedAt = time.UnixMilli(endedMs).UTC()
	return r, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func (db *DB) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)
	// create a tailSQL instance and point it to our DB
	tsql, err := tailsql.NewServer(tailsql.Options{
		RoutePrefix: "/debug/tailsql/",
	})
	if err != nil {
		log.Fatalf("failed to create tailsql server: %v", err)
	}
	tsql.SetDB("sqlite://pulse.db", db.DB, &tailsql.DBOptions{
		Label: "Pulse DB",
	})

	// mount the tailSQL server on the debug /tailsql path
	debug.Handle("tailsql/", "SQL live debugging", tsql.NewMux())

	debug.Handle("backup", "Create and download a backup of the database now", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		unixTime := time.Now().Unix()
		backupPath := fmt.Sprintf("backup-%d.db", unixTime)
		if _, err := db.DB.Exec("VACUUM INTO ?", backupPath); err != nil {
			http.Error(w, fmt.Sprintf("Failed to create backup: %v", err), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", backupPath))
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Content-Encoding", "gzip")

		backupFile, err := os.Open(backupPath)
		if err != nil {
			http.Error(w, fmt.Sprintf("Failed to open backup file: %v", err), http.StatusInternalServerError)
			return
		}

		// close the backup file after sending it
		// and remove it from the filesystem
		defer func() {
			backupFile.Close()
			if err := os.Remove(backupPath); err != nil {
				log.Printf("Failed to remove backup file: %v", err)
			}
		}()

		gzipWriter := gzip.NewWriter(w)
		defer gzipWriter.Close()

		if _, err := io.Copy(gzipWriter, backupFile); err != nil {
			http.Error(w, fmt.Sprintf("Failed to write backup file: %v", err), http.StatusInternalServerError)
			return
		}
	}))
}
