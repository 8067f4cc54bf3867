package cmd

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dialsight/dialsight/internal/ocr"
	"github.com/dialsight/dialsight/internal/stability"
	"github.com/dialsight/dialsight/internal/utils"
	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch <spool-dir>",
	Short: "Track numbers from OCR text files dropped into a spool directory",
	Long: `Watch treats a spool directory as a live frame source: an external OCR
process writes one .txt file per frame (one recognized line per file line)
and each file advances the tracker by one frame. Files already present are
replayed in name order first. Stop with Ctrl+C.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		applyTickDefaults(cmd, &opts)
		runWatch(cmd.Context(), args[0], opts)
	},
}

func init() {
	watchCmd.Flags().Int64Var(&opts.WindowFrames, "window-frames", 30, "Frames a number may vanish before its sighting is closed")
	watchCmd.Flags().Int64Var(&opts.StableHits, "stable-hits", 10, "Repeat sightings required before a number is reported")
	watchCmd.Flags().BoolVar(&opts.NoStore, "no-store", false, "Skip the database entirely")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(ctx context.Context, dir string, opts Options) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		utils.Die("Cannot resolve spool directory", err, nil)
	}
	info, err := os.Stat(absDir)
	if err != nil {
		utils.Die("Cannot access spool directory", err, nil)
	}
	if !info.IsDir() {
		utils.Die("Spool path is not a directory", nil, nil)
	}

	// The directory itself is the source; its path stays stable across runs
	// so re-watching replaces the previous sightings.
	sourceID := spoolSourceID(absDir)
	if DB != nil {
		if err := DB.EnsureSource(ctx, sourceID, absDir, "spool", 0); err != nil {
			utils.Die("Failed to register source", err, nil)
		}
	}

	runID := uuid.NewString()
	if DB != nil {
		if err := DB.BeginRun(ctx, runID, sourceID, "spool"); err != nil {
			utils.Die("Failed to register run", err, nil)
		}
	}

	session := newTrackSession(DB, sessionParams{
		SourceID: sourceID,
		RunID:    runID,
		NthFrame: 1,
		Tracking: stability.Config{WindowFrames: opts.WindowFrames, StableHits: opts.StableHits},
	})

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		utils.Die("Failed to create directory watcher", err, nil)
	}
	defer watcher.Close()
	if err := watcher.Add(absDir); err != nil {
		utils.Die("Failed to watch spool directory", err, nil)
	}

	fmt.Fprintf(os.Stderr, "👁️  Watching %s (one .txt per frame)...\n", absDir)

	processed := make(map[string]bool)
	var tick int64

	ingest := func(path string) {
		if strings.ToLower(filepath.Ext(path)) != ".txt" || processed[path] {
			return
		}
		processed[path] = true

		data, err := os.ReadFile(path)
		if err != nil {
			// A frame we cannot read is dropout; the tracker absorbs it.
			fmt.Fprintf(os.Stderr, "\n⚠️  Unreadable frame %s: %v\n", filepath.Base(path), err)
			data = nil
		}
		if err := session.HandleFrame(ctx, tick, ocr.SplitLines(string(data)), nil); err != nil {
			utils.Die("Failed to record sighting", err, nil)
		}
		tick++
	}

	// Frames already spooled are replayed in name order before going live.
	entries, err := os.ReadDir(absDir)
	if err != nil {
		utils.Die("Failed to read spool directory", err, nil)
	}
	var names []string
	for _, entry := range entries {
		if !entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	for _, name := range names {
		ingest(filepath.Join(absDir, name))
	}

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case event, ok := <-watcher.Events:
			if !ok {
				break loop
			}
			if event.Has(fsnotify.Create) {
				ingest(event.Name)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				break loop
			}
			fmt.Fprintf(os.Stderr, "\n⚠️  Watcher error: %v\n", err)
		}
	}

	// The watch context is already cancelled by the time we get here, so the
	// final flush runs against the background context.
	flushCtx := context.Background()
	if err := session.Finish(flushCtx); err != nil {
		utils.Die("Failed to flush final sighting", err, nil)
	}
	if DB != nil {
		if err := DB.FinishRun(flushCtx, runID, session.frames, len(session.perNumber)); err != nil {
			utils.Die("Failed to finalize run", err, nil)
		}
	}

	session.PrintSummary()
	fmt.Fprintf(os.Stderr, "\n🏁 Watch stopped. Processed %d frames.\n", session.frames)
}

func spoolSourceID(dir string) string {
	sum := sha256.Sum256([]byte(dir))
	return hex.EncodeToString(sum[:])
}
