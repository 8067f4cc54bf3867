package cmd

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/dialsight/dialsight/internal/phone"
	"github.com/dialsight/dialsight/internal/stability"
	"github.com/dialsight/dialsight/internal/store"
)

// numberSpan is one contiguous stretch of a number holding stable on screen.
type numberSpan struct {
	Number     string
	StartFrame int64 // sampled frame ordinal of the first stable report
	EndFrame   int64 // sampled frame ordinal of the latest stable report
	Hits       int64 // stable reports folded into the span
}

// sessionParams wires a tracking session to its source and run.
type sessionParams struct {
	SourceID string
	RunID    string
	FPS      float64 // raw frames per second, zero when the source has no clock
	NthFrame int64   // raw frames represented by one sampled frame
	Tracking stability.Config
}

// trackSession drives the stability tracker over an ordered frame stream.
// Each stable report either extends the open span or closes it and opens a
// new one; closed spans are persisted as sightings unless db is nil.
type trackSession struct {
	db      *store.Store
	params  sessionParams
	tracker *stability.Tracker

	open      *numberSpan
	spans     []numberSpan
	perNumber map[string]int64 // stable reports per number
	frames    int64
	failures  int64
}

func newTrackSession(db *store.Store, params sessionParams) *trackSession {
	if params.NthFrame < 1 {
		params.NthFrame = 1
	}
	if params.Tracking.WindowFrames <= 0 {
		params.Tracking.WindowFrames = stability.DefaultConfig().WindowFrames
	}
	if params.Tracking.StableHits <= 0 {
		params.Tracking.StableHits = stability.DefaultConfig().StableHits
	}
	return &trackSession{
		db:        db,
		params:    params,
		tracker:   stability.New(params.Tracking),
		perNumber: make(map[string]int64),
	}
}

// HandleFrame processes one sampled frame's OCR lines. tick is the sampled
// frame ordinal starting at zero; empty frames must still be passed in so
// the tracker's clock keeps pace with the source.
func (ts *trackSession) HandleFrame(ctx context.Context, tick int64, lines []string, ocrErr error) error {
	ts.frames++
	if ocrErr != nil {
		ts.failures++
		fmt.Fprintf(os.Stderr, "\n⚠️  OCR failed on frame %d: %v\n", tick, ocrErr)
		lines = nil
	}

	var found []string
	for _, line := range lines {
		if m, ok := phone.Extract(line); ok {
			found = append(found, m.Digits)
		}
	}
	ts.tracker.RecordFrame(found)

	if number, ok := ts.tracker.StableString(); ok {
		// Reset so the tracker starts counting toward the next report.
		ts.tracker.Reset(number)
		if err := ts.report(ctx, number, tick); err != nil {
			return err
		}
	}

	// A span that has gone a full window of ticks without a fresh stable
	// report is finished. A report landing exactly on the window edge still
	// extends it, matching the tracker's own eviction horizon.
	if ts.open != nil && tick-ts.open.EndFrame > ts.params.Tracking.WindowFrames {
		if err := ts.closeSpan(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (ts *trackSession) report(ctx context.Context, number string, tick int64) error {
	ts.perNumber[number]++
	if ts.open != nil && ts.open.Number == number {
		ts.open.EndFrame = tick
		ts.open.Hits++
		return nil
	}
	if err := ts.closeSpan(ctx); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "\n📞 %s locked in at %s (frame %d)\n", formatNumber(number), fmtTime(ts.seconds(tick)), tick*ts.params.NthFrame)
	// One machine-readable line per lock-in, so stdout pipes cleanly.
	fmt.Println(formatNumber(number))
	ts.open = &numberSpan{Number: number, StartFrame: tick, EndFrame: tick, Hits: 1}
	return nil
}

func (ts *trackSession) closeSpan(ctx context.Context) error {
	if ts.open == nil {
		return nil
	}
	span := *ts.open
	ts.open = nil
	ts.spans = append(ts.spans, span)

	if ts.db == nil {
		return nil
	}
	sg := store.Sighting{
		SourceID:   ts.params.SourceID,
		RunID:      ts.params.RunID,
		Number:     span.Number,
		StartFrame: span.StartFrame * ts.params.NthFrame,
		EndFrame:   span.EndFrame * ts.params.NthFrame,
		StartTime:  ts.seconds(span.StartFrame),
		EndTime:    ts.seconds(span.EndFrame),
		Hits:       span.Hits,
	}
	if err := ts.db.InsertSighting(ctx, sg); err != nil {
		return fmt.Errorf("failed to insert sighting for %s: %w", span.Number, err)
	}
	if err := ts.db.UpsertKnownNumber(ctx, span.Number, span.Hits); err != nil {
		return fmt.Errorf("failed to update known number %s: %w", span.Number, err)
	}
	return nil
}

// Finish flushes the span still open when the stream ends.
func (ts *trackSession) Finish(ctx context.Context) error {
	return ts.closeSpan(ctx)
}

// PrintSummary writes the per-number breakdown to stderr.
func (ts *trackSession) PrintSummary() {
	fmt.Fprintf(os.Stderr, "\n---------------------------------------------------------\n")
	fmt.Fprintf(os.Stderr, "📊 TRACKING SUMMARY\n")
	fmt.Fprintf(os.Stderr, "---------------------------------------------------------\n")

	byNumber := make(map[string][]numberSpan)
	for _, span := range ts.spans {
		byNumber[span.Number] = append(byNumber[span.Number], span)
	}
	var numbers []string
	for n := range byNumber {
		numbers = append(numbers, n)
	}
	sort.Strings(numbers)

	for _, n := range numbers {
		fmt.Fprintf(os.Stderr, "\n📞 %s Found: %d stable reports\n", formatNumber(n), ts.perNumber[n])
		for _, span := range byNumber[n] {
			if ts.params.FPS > 0 {
				fmt.Fprintf(os.Stderr, "   %s -> %s\n", fmtTime(ts.seconds(span.StartFrame)), fmtTime(ts.seconds(span.EndFrame)))
			} else {
				fmt.Fprintf(os.Stderr, "   frame %d -> %d\n", span.StartFrame*ts.params.NthFrame, span.EndFrame*ts.params.NthFrame)
			}
		}
	}

	fmt.Fprintf(os.Stderr, "\n---------------------------------------------------------\n")
	fmt.Fprintf(os.Stderr, "☎️  Distinct Numbers Found:   %d\n", len(ts.perNumber))
	if ts.failures > 0 {
		fmt.Fprintf(os.Stderr, "⚠️  Frames With OCR Errors:   %d\n", ts.failures)
	}
	fmt.Fprintf(os.Stderr, "---------------------------------------------------------\n")
}

func (ts *trackSession) seconds(tick int64) float64 {
	if ts.params.FPS <= 0 {
		return 0
	}
	return float64(tick*ts.params.NthFrame) / ts.params.FPS
}

// formatNumber renders ten raw digits the way a person would dial them.
func formatNumber(digits string) string {
	if len(digits) != 10 {
		return digits
	}
	return fmt.Sprintf("(%s) %s-%s", digits[:3], digits[3:6], digits[6:])
}
