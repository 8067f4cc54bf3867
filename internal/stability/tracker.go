// Package stability decides when a candidate number read off individual
// frames has been seen often enough, recently enough, to be trusted.
// Recognition output flickers from frame to frame, so a number only
// counts as stable once it has persisted across repeated sightings
// inside a sliding frame window.
package stability

// Config controls the sliding window and the promotion threshold.
type Config struct {
	// WindowFrames is how many frames a candidate may go unseen before
	// it is dropped from tracking.
	WindowFrames int64

	// StableHits is the repeat count a candidate must reach before
	// StableString reports it. The first sighting does not count toward
	// the total, so a candidate needs StableHits+1 sightings in all.
	StableHits int64
}

// DefaultConfig returns the tracking parameters tuned for ~30fps video:
// a candidate survives about a second of dropout and must persist for
// roughly a third of a second before it is trusted.
func DefaultConfig() Config {
	return Config{
		WindowFrames: 30,
		StableHits:   10,
	}
}

type observation struct {
	lastSeen int64
	count    int64
	seq      int64
}

// Tracker counts sightings of candidate strings across frames. It is not
// safe for concurrent use; feed it from a single goroutine in frame order.
type Tracker struct {
	cfg        Config
	frameIndex int64
	nextSeq    int64
	seen       map[string]observation

	bestNumber string
	bestCount  int64
}

// New returns a Tracker using cfg. Zero or negative fields fall back to
// the corresponding DefaultConfig values.
func New(cfg Config) *Tracker {
	def := DefaultConfig()
	if cfg.WindowFrames <= 0 {
		cfg.WindowFrames = def.WindowFrames
	}
	if cfg.StableHits <= 0 {
		cfg.StableHits = def.StableHits
	}
	return &Tracker{
		cfg:  cfg,
		seen: make(map[string]observation),
	}
}

// RecordFrame ingests the candidates recognized on one frame and advances
// the frame clock. Candidates absent for more than WindowFrames frames are
// forgotten, and the current leader is recomputed over what remains. Call
// it once per processed frame, even when numbers is empty, so dropout
// frames still age out stale candidates.
func (t *Tracker) RecordFrame(numbers []string) {
	for _, n := range numbers {
		obs, ok := t.seen[n]
		if !ok {
			// Start at -1 so the first sighting lands on zero and the
			// count reads as "repeats since first seen".
			obs = observation{count: -1, seq: t.nextSeq}
			t.nextSeq++
		}
		obs.lastSeen = t.frameIndex
		obs.count++
		t.seen[n] = obs
	}

	horizon := t.frameIndex - t.cfg.WindowFrames
	var (
		bestNumber string
		bestCount  int64
		bestSeq    int64
	)
	for n, obs := range t.seen {
		if obs.lastSeen < horizon {
			delete(t.seen, n)
			continue
		}
		// Highest count wins; on a tie the earliest-tracked candidate
		// keeps the lead so map iteration order never shows through.
		if obs.count > bestCount || (bestNumber != "" && obs.count == bestCount && obs.seq < bestSeq) {
			bestNumber = n
			bestCount = obs.count
			bestSeq = obs.seq
		}
	}
	t.bestNumber = bestNumber
	t.bestCount = bestCount

	t.frameIndex++
}

// StableString reports the current leader once it has repeated at least
// StableHits times. The second return is false while no candidate has
// crossed the threshold.
func (t *Tracker) StableString() (string, bool) {
	if t.bestCount >= t.cfg.StableHits {
		return t.bestNumber, true
	}
	return "", false
}

// Reset forgets number and unconditionally clears the current leader,
// whether or not number held the lead. Call it after acting on a stable
// result so the next leader has to earn the threshold from scratch.
func (t *Tracker) Reset(number string) {
	delete(t.seen, number)
	t.bestNumber = ""
	t.bestCount = 0
}

// FrameIndex returns how many frames have been recorded.
func (t *Tracker) FrameIndex() int64 {
	return t.frameIndex
}

// Tracked returns the number of live candidates.
func (t *Tracker) Tracked() int {
	return len(t.seen)
}
