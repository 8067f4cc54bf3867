// Package store manages PostgreSQL persistence for recognized phone numbers.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/jackc/pgx/v5"
)

// Store manages the PostgreSQL connection.
type Store struct {
	conn *pgx.Conn
}

// KnownNumber is a phone number that has reached stability at least once.
type KnownNumber struct {
	Number    string
	Label     string
	FirstSeen time.Time
	LastSeen  time.Time
	TotalHits int64
}

// Run summarizes one tracked pass over a source.
type Run struct {
	ID         string
	SourcePath string
	Engine     string
	StartedAt  time.Time
	FinishedAt *time.Time
	Frames     int64
	Numbers    int
}

// Sighting is one closed interval during which a number stayed stable.
type Sighting struct {
	SourceID   string
	RunID      string
	Number     string
	StartFrame int64
	EndFrame   int64
	StartTime  float64 // Seconds into the source; zero when unknown
	EndTime    float64
	Hits       int64
}

// SightingHit is a sighting joined with its source for display.
type SightingHit struct {
	SourcePath string
	Kind       string
	RunID      string
	StartFrame int64
	EndFrame   int64
	StartTime  float64
	EndTime    float64
	Hits       int64
}

// New establishes a connection to the database and ensures the schema is
// initialized. Connecting is retried with a short delay so a database
// container that is still booting does not fail the command.
func New(ctx context.Context, connString string) (*Store, error) {
	var conn *pgx.Conn
	err := retry.Do(
		func() error {
			var err error
			conn, err = pgx.Connect(ctx, connString)
			return err
		},
		retry.Context(ctx),
		retry.Attempts(5),
		retry.Delay(500*time.Millisecond),
	)
	if err != nil {
		return nil, err
	}

	// Initialize schema (Auto-Migration)
	if err := initSchema(ctx, conn); err != nil {
		conn.Close(ctx)
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	return &Store{conn: conn}, nil
}

// initSchema creates the necessary tables if they don't exist (Auto-Migration).
func initSchema(ctx context.Context, conn *pgx.Conn) error {
	query := `
		CREATE TABLE IF NOT EXISTS sources (
			id TEXT PRIMARY KEY,
			path TEXT NOT NULL,
			kind TEXT NOT NULL,
			fps DOUBLE PRECISION NOT NULL DEFAULT 0,
			scanned_at TIMESTAMPTZ DEFAULT NOW()
		);
		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			source_id TEXT REFERENCES sources(id),
			engine TEXT NOT NULL,
			started_at TIMESTAMPTZ DEFAULT NOW(),
			finished_at TIMESTAMPTZ,
			frames BIGINT NOT NULL DEFAULT 0,
			numbers INT NOT NULL DEFAULT 0
		);
		CREATE TABLE IF NOT EXISTS sightings (
			id BIGSERIAL PRIMARY KEY,
			source_id TEXT REFERENCES sources(id),
			run_id TEXT REFERENCES runs(id),
			number TEXT NOT NULL,
			start_frame BIGINT NOT NULL,
			end_frame BIGINT NOT NULL,
			start_time DOUBLE PRECISION NOT NULL,
			end_time DOUBLE PRECISION NOT NULL,
			hits BIGINT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS known_numbers (
			number TEXT PRIMARY KEY,
			label TEXT NOT NULL DEFAULT '',
			first_seen TIMESTAMPTZ DEFAULT NOW(),
			last_seen TIMESTAMPTZ DEFAULT NOW(),
			total_hits BIGINT NOT NULL DEFAULT 0
		);
		CREATE INDEX IF NOT EXISTS sightings_source_id_idx ON sightings (source_id);
		CREATE INDEX IF NOT EXISTS sightings_number_idx ON sightings (number);
	`
	_, err := conn.Exec(ctx, query)
	return err
}

// Close terminates the database connection.
func (s *Store) Close(ctx context.Context) {
	s.conn.Close(ctx)
}

// EnsureSource registers the source in the database. Prior sightings and
// runs for the same source are removed first so re-scanning is idempotent.
func (s *Store) EnsureSource(ctx context.Context, sourceID, path, kind string, fps float64) error {
	if _, err := s.conn.Exec(ctx, "DELETE FROM sightings WHERE source_id = $1", sourceID); err != nil {
		return err
	}
	if _, err := s.conn.Exec(ctx, "DELETE FROM runs WHERE source_id = $1", sourceID); err != nil {
		return err
	}

	_, err := s.conn.Exec(ctx, `
		INSERT INTO sources (id, path, kind, fps, scanned_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (id) DO UPDATE SET scanned_at = NOW(), path = EXCLUDED.path, kind = EXCLUDED.kind, fps = EXCLUDED.fps
	`, sourceID, path, kind, fps)
	return err
}

// BeginRun records the start of a pass over a source.
func (s *Store) BeginRun(ctx context.Context, runID, sourceID, engine string) error {
	_, err := s.conn.Exec(ctx, `
		INSERT INTO runs (id, source_id, engine, started_at)
		VALUES ($1, $2, $3, NOW())
	`, runID, sourceID, engine)
	return err
}

// FinishRun closes out a run with its final counters.
func (s *Store) FinishRun(ctx context.Context, runID string, frames int64, numbers int) error {
	_, err := s.conn.Exec(ctx, `
		UPDATE runs SET finished_at = NOW(), frames = $2, numbers = $3 WHERE id = $1
	`, runID, frames, numbers)
	return err
}

// InsertSighting saves one closed stability interval.
func (s *Store) InsertSighting(ctx context.Context, sg Sighting) error {
	_, err := s.conn.Exec(ctx, `
		INSERT INTO sightings (source_id, run_id, number, start_frame, end_frame, start_time, end_time, hits)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, sg.SourceID, sg.RunID, sg.Number, sg.StartFrame, sg.EndFrame, sg.StartTime, sg.EndTime, sg.Hits)
	return err
}

// UpsertKnownNumber bumps the lifetime record for a number, creating it on
// first sight. Hits accumulate across sources and runs.
func (s *Store) UpsertKnownNumber(ctx context.Context, number string, hits int64) error {
	_, err := s.conn.Exec(ctx, `
		INSERT INTO known_numbers (number, total_hits, first_seen, last_seen)
		VALUES ($1, $2, NOW(), NOW())
		ON CONFLICT (number) DO UPDATE SET last_seen = NOW(), total_hits = known_numbers.total_hits + EXCLUDED.total_hits
	`, number, hits)
	return err
}

// LabelNumber attaches an operator-assigned name to a known number.
func (s *Store) LabelNumber(ctx context.Context, number, label string) error {
	tag, err := s.conn.Exec(ctx, "UPDATE known_numbers SET label = $1 WHERE number = $2", label, number)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("number %s has never been seen", number)
	}
	return nil
}

// GetNumber fetches the lifetime record for one number.
// Returns nil if the number has never been seen.
func (s *Store) GetNumber(ctx context.Context, number string) (*KnownNumber, error) {
	var kn KnownNumber
	err := s.conn.QueryRow(ctx, `
		SELECT number, label, first_seen, last_seen, total_hits
		FROM known_numbers WHERE number = $1
	`, number).Scan(&kn.Number, &kn.Label, &kn.FirstSeen, &kn.LastSeen, &kn.TotalHits)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &kn, nil
}

// ListNumbers returns every known number, most recently seen first.
func (s *Store) ListNumbers(ctx context.Context) ([]KnownNumber, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT number, label, first_seen, last_seen, total_hits
		FROM known_numbers ORDER BY last_seen DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var numbers []KnownNumber
	for rows.Next() {
		var kn KnownNumber
		if err := rows.Scan(&kn.Number, &kn.Label, &kn.FirstSeen, &kn.LastSeen, &kn.TotalHits); err != nil {
			return nil, err
		}
		numbers = append(numbers, kn)
	}
	return numbers, rows.Err()
}

// ListRuns returns the most recent runs with their source paths.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT r.id, s.path, r.engine, r.started_at, r.finished_at, r.frames, r.numbers
		FROM runs r JOIN sources s ON s.id = r.source_id
		ORDER BY r.started_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.SourcePath, &r.Engine, &r.StartedAt, &r.FinishedAt, &r.Frames, &r.Numbers); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// FindNumber returns every sighting of a number joined with its source.
func (s *Store) FindNumber(ctx context.Context, number string) ([]SightingHit, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT s.path, s.kind, g.run_id, g.start_frame, g.end_frame, g.start_time, g.end_time, g.hits
		FROM sightings g JOIN sources s ON s.id = g.source_id
		WHERE g.number = $1
		ORDER BY s.path, g.start_time
	`, number)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hits []SightingHit
	for rows.Next() {
		var h SightingHit
		if err := rows.Scan(&h.SourcePath, &h.Kind, &h.RunID, &h.StartFrame, &h.EndFrame, &h.StartTime, &h.EndTime, &h.Hits); err != nil {
			return nil, err
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// Reset drops all application tables to clear the database state.
// This is useful for development to force a schema refresh without migrations.
func (s *Store) Reset(ctx context.Context) error {
	_, err := s.conn.Exec(ctx, `
		DROP TABLE IF EXISTS sightings CASCADE;
		DROP TABLE IF EXISTS runs CASCADE;
		DROP TABLE IF EXISTS known_numbers CASCADE;
		DROP TABLE IF EXISTS sources CASCADE;
	`)
	return err
}
