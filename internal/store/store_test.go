package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestStoreIntegration runs a full integration test against a real Postgres container.
// It requires Docker to be running.
func TestStoreIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()

	// Explicitly check for Docker availability and fail hard if missing
	// We wrap this in a function to recover from panics inside testcontainers (e.g. socket not found)
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("testcontainers panicked: %v", r)
			}
		}()
		_, err = testcontainers.NewDockerClientWithOpts(ctx)
		return
	}()
	if err != nil {
		t.Fatalf("Docker not available, cannot run integration test: %v", err)
	}

	// Start Postgres Container
	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("dialsight_test"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(5*time.Second)),
		testcontainers.WithLogger(noopLogger{}),
	)
	if err != nil {
		t.Fatalf("Failed to start postgres container: %v", err)
	}
	defer func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Fatalf("Failed to terminate container: %v", err)
		}
	}()

	// Get Connection String
	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("Failed to get connection string: %v", err)
	}

	// Initialize Store (runs migrations)
	s, err := New(ctx, connStr)
	if err != nil {
		t.Fatalf("Failed to connect to store: %v", err)
	}
	defer s.Close(ctx)

	// --- Test Scenarios ---

	sourceID := "src_test_123"
	if err := s.EnsureSource(ctx, sourceID, "/tmp/clip.mp4", "video", 29.97); err != nil {
		t.Fatalf("EnsureSource failed: %v", err)
	}

	runID := uuid.NewString()
	if err := s.BeginRun(ctx, runID, sourceID, "tesseract"); err != nil {
		t.Fatalf("BeginRun failed: %v", err)
	}

	// Two intervals for one number, one for another
	sightings := []Sighting{
		{SourceID: sourceID, RunID: runID, Number: "4155550134", StartFrame: 10, EndFrame: 52, StartTime: 0.3, EndTime: 1.7, Hits: 12},
		{SourceID: sourceID, RunID: runID, Number: "4155550134", StartFrame: 300, EndFrame: 360, StartTime: 10.0, EndTime: 12.0, Hits: 20},
		{SourceID: sourceID, RunID: runID, Number: "5551234567", StartFrame: 90, EndFrame: 120, StartTime: 3.0, EndTime: 4.0, Hits: 11},
	}
	for _, sg := range sightings {
		if err := s.InsertSighting(ctx, sg); err != nil {
			t.Fatalf("InsertSighting failed: %v", err)
		}
	}

	if err := s.UpsertKnownNumber(ctx, "4155550134", 12); err != nil {
		t.Fatalf("UpsertKnownNumber failed: %v", err)
	}
	if err := s.UpsertKnownNumber(ctx, "4155550134", 20); err != nil {
		t.Fatalf("UpsertKnownNumber (second) failed: %v", err)
	}
	if err := s.UpsertKnownNumber(ctx, "5551234567", 11); err != nil {
		t.Fatalf("UpsertKnownNumber failed: %v", err)
	}

	if err := s.FinishRun(ctx, runID, 400, 2); err != nil {
		t.Fatalf("FinishRun failed: %v", err)
	}

	// Known numbers accumulate hits across upserts
	kn, err := s.GetNumber(ctx, "4155550134")
	if err != nil {
		t.Fatalf("GetNumber failed: %v", err)
	}
	if kn == nil {
		t.Fatal("Expected a known number, got nil")
	}
	if kn.TotalHits != 32 {
		t.Errorf("Expected 32 accumulated hits, got %d", kn.TotalHits)
	}

	// Unknown numbers come back nil without error
	missing, err := s.GetNumber(ctx, "0000000000")
	if err != nil {
		t.Fatalf("GetNumber (missing) failed: %v", err)
	}
	if missing != nil {
		t.Errorf("Expected nil for unseen number, got %+v", missing)
	}

	// Labeling
	if err := s.LabelNumber(ctx, "4155550134", "Front desk"); err != nil {
		t.Fatalf("LabelNumber failed: %v", err)
	}
	if err := s.LabelNumber(ctx, "0000000000", "ghost"); err == nil {
		t.Error("Expected LabelNumber to fail for an unseen number")
	}
	kn, err = s.GetNumber(ctx, "4155550134")
	if err != nil || kn == nil {
		t.Fatalf("GetNumber after label failed: %v", err)
	}
	if kn.Label != "Front desk" {
		t.Errorf("Expected label 'Front desk', got %q", kn.Label)
	}

	numbers, err := s.ListNumbers(ctx)
	if err != nil {
		t.Fatalf("ListNumbers failed: %v", err)
	}
	if len(numbers) != 2 {
		t.Errorf("Expected 2 known numbers, got %d", len(numbers))
	}

	// Sightings join back to their source, ordered by start time
	hits, err := s.FindNumber(ctx, "4155550134")
	if err != nil {
		t.Fatalf("FindNumber failed: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("Expected 2 sightings, got %d", len(hits))
	}
	if hits[0].SourcePath != "/tmp/clip.mp4" || hits[0].StartTime != 0.3 || hits[1].StartTime != 10.0 {
		t.Errorf("Mismatch in persisted sighting data. Got %+v", hits)
	}

	runs, err := s.ListRuns(ctx, 10)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("Expected 1 run, got %d", len(runs))
	}
	if runs[0].ID != runID || runs[0].Frames != 400 || runs[0].Numbers != 2 {
		t.Errorf("Mismatch in run data. Got %+v", runs[0])
	}
	if runs[0].FinishedAt == nil {
		t.Error("Expected run to be finished")
	}

	// Re-registering a source wipes its sightings and runs but keeps the
	// lifetime number records.
	if err := s.EnsureSource(ctx, sourceID, "/tmp/clip.mp4", "video", 29.97); err != nil {
		t.Fatalf("EnsureSource (re-scan) failed: %v", err)
	}
	hits, err = s.FindNumber(ctx, "4155550134")
	if err != nil {
		t.Fatalf("FindNumber after re-scan failed: %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("Expected prior sightings to be cleared, got %d", len(hits))
	}
	runs, err = s.ListRuns(ctx, 10)
	if err != nil {
		t.Fatalf("ListRuns after re-scan failed: %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("Expected prior runs to be cleared, got %d", len(runs))
	}
	kn, err = s.GetNumber(ctx, "4155550134")
	if err != nil || kn == nil || kn.TotalHits != 32 {
		t.Errorf("Expected lifetime record to survive re-scan, got %+v (err %v)", kn, err)
	}

	// Reset drops everything; a fresh connection re-migrates cleanly.
	if err := s.Reset(ctx); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}
	s2, err := New(ctx, connStr)
	if err != nil {
		t.Fatalf("Re-initializing after reset failed: %v", err)
	}
	defer s2.Close(ctx)
	numbers, err = s2.ListNumbers(ctx)
	if err != nil {
		t.Fatalf("ListNumbers after reset failed: %v", err)
	}
	if len(numbers) != 0 {
		t.Errorf("Expected empty database after reset, got %d numbers", len(numbers))
	}
}

type noopLogger struct{}

func (n noopLogger) Printf(format string, v ...interface{}) {}
