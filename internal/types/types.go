package types

// FrameTask represents a single sampled frame sent to a worker for processing
type FrameTask struct {
	Index int64  // Sampled-frame ordinal, counted from zero
	Data  []byte // Encoded JPEG
}

// FrameText carries recognition output for one sampled frame back from a
// worker. Err is set when recognition failed; the frame still counts as a
// (textless) tick so the tracker ages candidates correctly.
type FrameText struct {
	Index int64
	Lines []string
	Err   error
}
