// Package transcript reads and writes per-frame recognition transcripts.
// A transcript is JSON Lines, one frame record per line, in frame order:
//
//	{"frame":0,"lines":["Call 415-555-0134"]}
//	{"frame":1}
//
// Frames with no recognized text may be omitted entirely; consumers treat
// index gaps as empty frames so the original timeline can be replayed.
package transcript

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// Frame is one sampled frame's recognition output. Index counts sampled
// frames from zero, not raw video frames.
type Frame struct {
	Index int64    `json:"frame"`
	Lines []string `json:"lines,omitempty"`
}

// Writer emits frame records as JSON Lines.
type Writer struct {
	enc *json.Encoder
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{enc: json.NewEncoder(w)}
}

// WriteFrame appends one record. Callers are expected to write frames in
// strictly increasing index order; Reader enforces it on the way back in.
func (w *Writer) WriteFrame(f Frame) error {
	if f.Index < 0 {
		return fmt.Errorf("negative frame index %d", f.Index)
	}
	if err := w.enc.Encode(f); err != nil {
		return fmt.Errorf("write frame %d: %w", f.Index, err)
	}
	return nil
}

// Reader parses a transcript one frame at a time.
type Reader struct {
	scanner   *bufio.Scanner
	line      int
	lastIndex int64
}

func NewReader(r io.Reader) *Reader {
	scanner := bufio.NewScanner(r)
	// OCR output on a busy frame can outgrow the default token size.
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &Reader{scanner: scanner, lastIndex: -1}
}

// ReadFrame returns the next record, skipping blank lines. It returns
// io.EOF once the transcript is exhausted and an error naming the line for
// malformed or out-of-order records.
func (r *Reader) ReadFrame() (Frame, error) {
	for r.scanner.Scan() {
		r.line++
		raw := bytes.TrimSpace(r.scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		var f Frame
		if err := json.Unmarshal(raw, &f); err != nil {
			return Frame{}, fmt.Errorf("transcript line %d: %w", r.line, err)
		}
		if f.Index < 0 {
			return Frame{}, fmt.Errorf("transcript line %d: negative frame index %d", r.line, f.Index)
		}
		if f.Index <= r.lastIndex {
			return Frame{}, fmt.Errorf("transcript line %d: frame %d out of order after %d", r.line, f.Index, r.lastIndex)
		}
		r.lastIndex = f.Index
		return f, nil
	}
	if err := r.scanner.Err(); err != nil {
		return Frame{}, fmt.Errorf("read transcript: %w", err)
	}
	return Frame{}, io.EOF
}
