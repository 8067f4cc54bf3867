package config

import "fmt"

// Config holds dialsight configuration.
// Stored at: ./dialsight.yaml or ~/.dialsight/dialsight.yaml
type Config struct {
	Scan     ScanCfg     `mapstructure:"scan" yaml:"scan"`
	Tracking TrackingCfg `mapstructure:"tracking" yaml:"tracking"`
	OCR      OCRCfg      `mapstructure:"ocr" yaml:"ocr"`
	Database DatabaseCfg `mapstructure:"database" yaml:"database"`
}

// ScanCfg controls frame ingestion.
type ScanCfg struct {
	NthFrame int `mapstructure:"nth_frame" yaml:"nth_frame"` // Sample every Nth raw frame
	Workers  int `mapstructure:"workers" yaml:"workers"`     // Concurrent OCR workers
}

// TrackingCfg controls when a recognized number counts as stable.
type TrackingCfg struct {
	WindowSeconds float64 `mapstructure:"window_seconds" yaml:"window_seconds"` // Dropout tolerance in wall-clock seconds
	StableHits    int64   `mapstructure:"stable_hits" yaml:"stable_hits"`       // Repeats before a number is trusted
}

// OCRCfg configures the Tesseract recognizer.
type OCRCfg struct {
	Languages []string `mapstructure:"languages" yaml:"languages"`
	DPI       int      `mapstructure:"dpi" yaml:"dpi"` // 0 lets Tesseract guess
}

// DatabaseCfg holds the Postgres connection settings.
type DatabaseCfg struct {
	URL string `mapstructure:"url" yaml:"url"` // Connection string (supports ${ENV_VAR} syntax)
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Scan: ScanCfg{
			NthFrame: 1,
			Workers:  4,
		},
		Tracking: TrackingCfg{
			WindowSeconds: 1.0,
			StableHits:    10,
		},
		OCR: OCRCfg{
			Languages: []string{"eng"},
			DPI:       300,
		},
		Database: DatabaseCfg{
			URL: "",
		},
	}
}

// Validate rejects values the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Scan.NthFrame < 1 {
		return fmt.Errorf("scan.nth_frame must be >= 1, got %d", c.Scan.NthFrame)
	}
	if c.Scan.Workers < 1 {
		return fmt.Errorf("scan.workers must be >= 1, got %d", c.Scan.Workers)
	}
	if c.Tracking.WindowSeconds <= 0 {
		return fmt.Errorf("tracking.window_seconds must be > 0, got %g", c.Tracking.WindowSeconds)
	}
	if c.Tracking.StableHits < 1 {
		return fmt.Errorf("tracking.stable_hits must be >= 1, got %d", c.Tracking.StableHits)
	}
	return nil
}
