// Package ocr puts text recognition behind a small engine interface so the
// scan pipeline does not care which recognizer produced the lines.
package ocr

import (
	"context"
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"
)

// Engine recognizes text lines on a single encoded video frame.
// Implementations are not required to be safe for concurrent use; the
// pipeline gives each worker its own instance.
type Engine interface {
	// Name identifies the recognizer in logs and run records.
	Name() string

	// RecognizeLines returns the text lines found on one encoded image,
	// trimmed and with empty lines dropped, in top-to-bottom order.
	RecognizeLines(ctx context.Context, image []byte) ([]string, error)

	Close() error
}

// Config adjusts the Tesseract engine.
type Config struct {
	// Languages handed to Tesseract in priority order. Empty means "eng".
	Languages []string

	// DPI overrides Tesseract's resolution guess for images that carry no
	// density metadata, like frames ripped out of a video stream. Zero
	// leaves the guess alone.
	DPI int
}

// Tesseract is an Engine backed by a dedicated gosseract client. The client
// keeps native state per instance, so create one per worker goroutine.
type Tesseract struct {
	client *gosseract.Client
}

// NewTesseract starts a Tesseract client configured with cfg.
func NewTesseract(cfg Config) (*Tesseract, error) {
	client := gosseract.NewClient()
	langs := cfg.Languages
	if len(langs) == 0 {
		langs = []string{"eng"}
	}
	if err := client.SetLanguage(langs...); err != nil {
		client.Close()
		return nil, fmt.Errorf("set languages: %w", err)
	}
	if cfg.DPI > 0 {
		if err := client.SetVariable(gosseract.SettableVariable("user_defined_dpi"), fmt.Sprint(cfg.DPI)); err != nil {
			client.Close()
			return nil, fmt.Errorf("set dpi: %w", err)
		}
	}
	return &Tesseract{client: client}, nil
}

func (t *Tesseract) Name() string { return "tesseract" }

func (t *Tesseract) RecognizeLines(ctx context.Context, image []byte) ([]string, error) {
	// gosseract calls into native code and cannot be interrupted, so bail
	// before starting if the pipeline has already been torn down.
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	if err := t.client.SetImageFromBytes(image); err != nil {
		return nil, fmt.Errorf("set image: %w", err)
	}
	text, err := t.client.Text()
	if err != nil {
		return nil, fmt.Errorf("recognize text: %w", err)
	}
	return SplitLines(text), nil
}

// Close releases the native Tesseract resources.
func (t *Tesseract) Close() error {
	return t.client.Close()
}

// SplitLines breaks raw recognizer output into trimmed, non-empty lines.
func SplitLines(text string) []string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}
