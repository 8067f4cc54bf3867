package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/dialsight/dialsight/internal/stability"
	"github.com/dialsight/dialsight/internal/transcript"
	"github.com/dialsight/dialsight/internal/utils"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var replayCmd = &cobra.Command{
	Use:   "replay <transcript>",
	Short: "Re-run number tracking over a saved OCR transcript",
	Long: `Replay reads a JSONL transcript produced by scan --transcript and runs the
same extraction and stability tracking without touching the video or OCR.
Use "-" to read the transcript from stdin.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		applyTickDefaults(cmd, &opts)
		runReplay(cmd.Context(), args[0], opts)
	},
}

func init() {
	replayCmd.Flags().Int64Var(&opts.WindowFrames, "window-frames", 30, "Frames a number may vanish before its sighting is closed")
	replayCmd.Flags().Int64Var(&opts.StableHits, "stable-hits", 10, "Repeat sightings required before a number is reported")
	replayCmd.Flags().BoolVar(&opts.NoStore, "no-store", false, "Skip the database entirely")
	rootCmd.AddCommand(replayCmd)
}

// applyTickDefaults is the config fill-in for the sources that count raw
// ticks instead of wall-clock windows (replay and watch).
func applyTickDefaults(cmd *cobra.Command, opts *Options) {
	if !cmd.Flags().Changed("stable-hits") {
		opts.StableHits = Cfg.Get().Tracking.StableHits
	}
}

func runReplay(ctx context.Context, path string, opts Options) {
	var in io.Reader
	sourceID := "stdin"
	if path == "-" {
		in = os.Stdin
	} else {
		id, err := utils.GenerateSourceID(path)
		if err != nil {
			utils.Die("Failed to generate source ID", err, nil)
		}
		sourceID = id
		f, err := os.Open(path)
		if err != nil {
			utils.Die("Failed to open transcript", err, nil)
		}
		defer f.Close()
		in = f
	}

	if DB != nil {
		if err := DB.EnsureSource(ctx, sourceID, path, "transcript", 0); err != nil {
			utils.Die("Failed to register source", err, nil)
		}
	}
	fmt.Fprintf(os.Stderr, "📼 Replaying Source ID: %s\n", shortID(sourceID))

	runID := uuid.NewString()
	if DB != nil {
		if err := DB.BeginRun(ctx, runID, sourceID, "transcript"); err != nil {
			utils.Die("Failed to register run", err, nil)
		}
	}

	session := newTrackSession(DB, sessionParams{
		SourceID: sourceID,
		RunID:    runID,
		NthFrame: 1,
		Tracking: stability.Config{WindowFrames: opts.WindowFrames, StableHits: opts.StableHits},
	})

	reader := transcript.NewReader(in)
	var nextTick int64
	for {
		frame, err := reader.ReadFrame()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			utils.Die("Malformed transcript", err, nil)
		}

		// Frames missing from the transcript still tick the clock so the
		// stability window behaves exactly as it did during the scan.
		for ; nextTick < frame.Index; nextTick++ {
			if err := session.HandleFrame(ctx, nextTick, nil, nil); err != nil {
				utils.Die("Failed to record sighting", err, nil)
			}
		}
		if err := session.HandleFrame(ctx, frame.Index, frame.Lines, nil); err != nil {
			utils.Die("Failed to record sighting", err, nil)
		}
		nextTick = frame.Index + 1
	}

	if err := session.Finish(ctx); err != nil {
		utils.Die("Failed to flush final sighting", err, nil)
	}

	if DB != nil {
		if err := DB.FinishRun(ctx, runID, session.frames, len(session.perNumber)); err != nil {
			utils.Die("Failed to finalize run", err, nil)
		}
	}

	session.PrintSummary()
	fmt.Fprintf(os.Stderr, "\n🏁 Replay Complete. Processed %d frames.\n", session.frames)
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
