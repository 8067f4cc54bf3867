package cmd

import (
	"bufio"
	"context"
	"fmt"
	"math"
	"os"
	"sync"
	"time"

	"github.com/dialsight/dialsight/internal/ocr"
	"github.com/dialsight/dialsight/internal/stability"
	"github.com/dialsight/dialsight/internal/transcript"
	"github.com/dialsight/dialsight/internal/types"
	"github.com/dialsight/dialsight/internal/utils"
	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

const megabyte = 1024 * 1024

var opts Options

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan a video for on-screen phone numbers with parallel OCR engines",
	Run: func(cmd *cobra.Command, args []string) {
		applyConfigDefaults(cmd, &opts)
		runScan(cmd.Context(), opts)
	},
}

func init() {
	scanCmd.Flags().StringVarP(&opts.InputPath, "input", "i", "", "Path to video")
	scanCmd.Flags().IntVarP(&opts.NthFrame, "nth-frame", "n", 1, "OCR keyframe interval (e.g. scan every 10th frame)")
	scanCmd.Flags().IntVarP(&opts.NumEngines, "engines", "e", 4, "Number of parallel OCR workers")
	scanCmd.Flags().StringVarP(&opts.Window, "window", "w", "1s", "How long a number may vanish before its sighting is closed")
	scanCmd.Flags().Int64Var(&opts.StableHits, "stable-hits", 10, "Repeat sightings required before a number is reported")
	scanCmd.Flags().StringSliceVar(&opts.Languages, "langs", []string{"eng"}, "Tesseract language packs to load")
	scanCmd.Flags().StringVar(&opts.TranscriptPath, "transcript", "", "Write per-frame OCR lines to a JSONL transcript")
	scanCmd.Flags().BoolVar(&opts.NoStore, "no-store", false, "Skip the database entirely")

	scanCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(scanCmd)
}

// applyConfigDefaults lets the config file fill in any knob the user did not
// set on the command line. Flags always win over the file.
func applyConfigDefaults(cmd *cobra.Command, opts *Options) {
	cfg := Cfg.Get()
	if !cmd.Flags().Changed("nth-frame") {
		opts.NthFrame = cfg.Scan.NthFrame
	}
	if !cmd.Flags().Changed("engines") {
		opts.NumEngines = cfg.Scan.Workers
	}
	if !cmd.Flags().Changed("window") {
		opts.Window = fmt.Sprintf("%gs", cfg.Tracking.WindowSeconds)
	}
	if !cmd.Flags().Changed("stable-hits") {
		opts.StableHits = cfg.Tracking.StableHits
	}
	if !cmd.Flags().Changed("langs") {
		opts.Languages = cfg.OCR.Languages
	}
}

// Buffer pool to reduce GC pressure during scanning
var frameBufferPool = sync.Pool{
	New: func() interface{} { return make([]byte, 0, megabyte) },
}

// runScan orchestrates the video scanning process: DB setup, OCR pool,
// FFmpeg streaming, and progress tracking.
func runScan(ctx context.Context, opts Options) {
	if err := validateScanFlags(&opts); err != nil {
		utils.Die("Invalid scan flags", err, nil)
	}

	// 1. Database is initialized in Root PersistentPreRunE (nil with --no-store)

	// 2. Generate Source ID & Register
	sourceID, err := utils.GenerateSourceID(opts.InputPath)
	if err != nil {
		utils.Die("Failed to generate source ID", err, nil)
	}

	// 3. Get FPS for time calculations and window calibration
	fps, err := utils.GetVideoFPS(opts.InputPath)
	if err != nil {
		utils.Die("Failed to determine video FPS", err, nil)
	}
	window, _ := time.ParseDuration(opts.Window)
	windowFrames := int64(math.Round(window.Seconds() * fps / float64(opts.NthFrame)))
	if windowFrames < 1 {
		windowFrames = 1
	}

	if DB != nil {
		if err := DB.EnsureSource(ctx, sourceID, opts.InputPath, "video", fps); err != nil {
			utils.Die("Failed to register source", err, nil)
		}
	}
	fmt.Fprintf(os.Stderr, "📼 Processing Source ID: %s\n", sourceID[:12])
	fmt.Fprintf(os.Stderr, "⚙️  Spawning %d OCR Engines...\n", opts.NumEngines)

	runID := uuid.NewString()
	if DB != nil {
		if err := DB.BeginRun(ctx, runID, sourceID, "tesseract"); err != nil {
			utils.Die("Failed to register run", err, nil)
		}
	}

	// 4. Get total frames for progress bar
	totalVideoFrames := utils.GetTotalFrames(opts.InputPath)

	if totalVideoFrames <= 0 {
		// Fallback to a spinner or unknown total if ffprobe fails
		totalVideoFrames = -1
	}

	bar := progressbar.NewOptions(totalVideoFrames,
		progressbar.OptionSetDescription("🔍 Dialsight Scanning"),
		progressbar.OptionSetWriter(os.Stderr), // Write bar to Stderr
		progressbar.OptionShowCount(),
	)

	var tw *transcript.Writer
	if opts.TranscriptPath != "" {
		f, err := os.Create(opts.TranscriptPath)
		if err != nil {
			utils.Die("Failed to create transcript file", err, nil)
		}
		defer f.Close()
		tw = transcript.NewWriter(f)
	}

	session := newTrackSession(DB, sessionParams{
		SourceID: sourceID,
		RunID:    runID,
		FPS:      fps,
		NthFrame: int64(opts.NthFrame),
		Tracking: stability.Config{WindowFrames: windowFrames, StableHits: opts.StableHits},
	})

	taskChan := make(chan types.FrameTask, opts.NumEngines)
	resultsChan := make(chan types.FrameText, opts.NumEngines*2)
	var wg sync.WaitGroup

	// 5. Start Aggregator (Consumer)
	// Must run concurrently to prevent deadlock on resultsChan
	aggDone := make(chan struct{})
	go func() {
		processResults(ctx, resultsChan, session, tw)
		close(aggDone)
	}()

	// 6. Spawn the OCR Pool
	engineCfg := ocr.Config{Languages: opts.Languages, DPI: Cfg.Get().OCR.DPI}
	for i := 0; i < opts.NumEngines; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			startWorker(ctx, workerID, engineCfg, taskChan, resultsChan)
		}(i)
	}

	// 7. Start FFmpeg. SafeCommand keeps its stderr so a decoder crash
	// shows up in the error box instead of vanishing.
	ffmpeg := utils.NewFFmpegCmd(opts.InputPath)

	ffmpegOut, err := ffmpeg.StdoutPipe()
	if err != nil {
		utils.Die("Failed to create FFmpeg stdout pipe", err, nil)
	}
	defer ffmpegOut.Close() // Ensure pipe is closed to prevent leaks/zombies

	if err := ffmpeg.Start(); err != nil {
		utils.Die("Failed to start FFmpeg", err, ffmpeg)
	}

	// 8. Frame Splitter & Nth-Frame Logic
	scanner := bufio.NewScanner(ffmpegOut)
	scanner.Buffer(make([]byte, megabyte), 64*megabyte)
	scanner.Split(utils.SplitJpeg)

	totalFrames := 0
	sentFrames := 0
	for scanner.Scan() {
		bar.Add(1) // Update progress bar for every frame read

		// Raw frames are indexed from zero, so the very first frame is
		// always sampled and sampled frames get contiguous ordinals.
		if totalFrames%opts.NthFrame == 0 {
			// Get buffer from pool
			buf := frameBufferPool.Get().([]byte)
			if cap(buf) < len(scanner.Bytes()) {
				buf = make([]byte, len(scanner.Bytes()))
			}
			buf = buf[:len(scanner.Bytes())]
			copy(buf, scanner.Bytes())
			taskChan <- types.FrameTask{Index: int64(sentFrames), Data: buf}
			sentFrames++
		}
		totalFrames++
	}

	// Check for scanner errors (e.g. token too long, unexpected EOF)
	if err := scanner.Err(); err != nil {
		utils.Die("Frame scanner failed", err, nil)
	}

	// 9. Cleanup & Completion Check
	if err := ffmpeg.Wait(); err != nil {
		utils.Die("FFmpeg execution failed", err, ffmpeg)
	}

	close(taskChan)
	wg.Wait()
	close(resultsChan)

	// Wait for aggregator to finish processing
	<-aggDone

	bar.Finish()

	if DB != nil {
		if err := DB.FinishRun(ctx, runID, session.frames, len(session.perNumber)); err != nil {
			utils.Die("Failed to finalize run", err, nil)
		}
	}

	session.PrintSummary()
	fmt.Fprintf(os.Stderr, "\n🏁 Scan Complete. Processed %d keyframes out of %d total.\n", sentFrames, totalFrames)
}

// startWorker owns one Tesseract engine for its lifetime. Engines hold
// native state, so each worker gets its own and they are never shared.
func startWorker(ctx context.Context, id int, cfg ocr.Config, tasks <-chan types.FrameTask, results chan<- types.FrameText) {
	engine, err := ocr.NewTesseract(cfg)
	if err != nil {
		utils.Die(fmt.Sprintf("OCR engine %d startup failed", id), err, nil)
	}
	defer engine.Close()

	for task := range tasks {
		lines, err := engine.RecognizeLines(ctx, task.Data)

		// Return buffer to pool immediately after recognition
		frameBufferPool.Put(task.Data)

		// Errors ride along so the aggregator still ticks the frame
		results <- types.FrameText{Index: task.Index, Lines: lines, Err: err}
	}
}

// processResults consumes worker output, restores frame order, and feeds the
// tracking session. Failed frames are logged and tick the tracker empty; they
// are left out of the transcript so a replay sees the same gap.
func processResults(ctx context.Context, results <-chan types.FrameText, session *trackSession, tw *transcript.Writer) {
	// Buffer for re-ordering frames (Worker 2 might finish before Worker 1)
	buffer := make(map[int64]types.FrameText)
	var nextTick int64

	for res := range results {
		buffer[res.Index] = res

		// Process frames in strict order
		for {
			frame, ok := buffer[nextTick]
			if !ok {
				break
			}
			delete(buffer, nextTick)

			if tw != nil && frame.Err == nil {
				if err := tw.WriteFrame(transcript.Frame{Index: frame.Index, Lines: frame.Lines}); err != nil {
					utils.Die("Failed to write transcript", err, nil)
				}
			}
			if err := session.HandleFrame(ctx, frame.Index, frame.Lines, frame.Err); err != nil {
				utils.Die("Failed to record sighting", err, nil)
			}
			nextTick++
		}
	}

	if err := session.Finish(ctx); err != nil {
		utils.Die("Failed to flush final sighting", err, nil)
	}
}

func validateScanFlags(opts *Options) error {
	info, err := os.Stat(opts.InputPath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("input file does not exist: %s", opts.InputPath)
		}
		return fmt.Errorf("unable to access input file: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("input path is a directory, expected a video file: %s", opts.InputPath)
	}
	if opts.NthFrame < 1 {
		return fmt.Errorf("nth-frame interval must be >= 1, got %d", opts.NthFrame)
	}
	if opts.NumEngines < 1 {
		opts.NumEngines = 1
	}
	if opts.StableHits < 1 {
		return fmt.Errorf("stable-hits must be >= 1, got %d", opts.StableHits)
	}
	if _, err := time.ParseDuration(opts.Window); err != nil {
		return fmt.Errorf("invalid window format (use '1s', '500ms'): %w", err)
	}
	return nil
}

func fmtTime(seconds float64) string {
	duration := time.Duration(seconds * float64(time.Second))
	h := int(duration.Hours())
	m := int(duration.Minutes()) % 60
	s := int(duration.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
