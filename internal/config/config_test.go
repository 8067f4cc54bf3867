package config

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Scan.NthFrame < 1 {
		t.Error("expected a usable default sampling interval")
	}
	if cfg.Tracking.StableHits != 10 {
		t.Errorf("expected 10 stable hits by default, got %d", cfg.Tracking.StableHits)
	}
	if cfg.Tracking.WindowSeconds != 1.0 {
		t.Errorf("expected a 1 second window by default, got %g", cfg.Tracking.WindowSeconds)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config does not validate: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "Zero nth frame", mutate: func(c *Config) { c.Scan.NthFrame = 0 }},
		{name: "Zero workers", mutate: func(c *Config) { c.Scan.Workers = 0 }},
		{name: "Zero window", mutate: func(c *Config) { c.Tracking.WindowSeconds = 0 }},
		{name: "Zero stable hits", mutate: func(c *Config) { c.Tracking.StableHits = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected a validation error")
			}
		})
	}
}

func TestResolveEnvVars(t *testing.T) {
	t.Run("resolves environment variable", func(t *testing.T) {
		os.Setenv("TEST_DB_URL", "postgres://localhost/test")
		defer os.Unsetenv("TEST_DB_URL")

		result := ResolveEnvVars("${TEST_DB_URL}")
		if result != "postgres://localhost/test" {
			t.Errorf("expected postgres://localhost/test, got %s", result)
		}
	})

	t.Run("returns empty for missing env var", func(t *testing.T) {
		result := ResolveEnvVars("${DEFINITELY_NOT_SET_12345}")
		if result != "" {
			t.Errorf("expected empty string, got %s", result)
		}
	})

	t.Run("leaves literal values unchanged", func(t *testing.T) {
		result := ResolveEnvVars("literal-value")
		if result != "literal-value" {
			t.Errorf("expected literal-value, got %s", result)
		}
	})
}

func TestNewManager(t *testing.T) {
	t.Run("loads from config file", func(t *testing.T) {
		tmpDir := t.TempDir()
		configFile := filepath.Join(tmpDir, "config.yaml")

		configContent := `
scan:
  nth_frame: 3
  workers: 2
`
		if err := os.WriteFile(configFile, []byte(configContent), 0644); err != nil {
			t.Fatalf("failed to write config file: %v", err)
		}

		mgr, err := NewManager(configFile)
		if err != nil {
			t.Fatalf("failed to create manager: %v", err)
		}

		cfg := mgr.Get()
		if cfg.Scan.NthFrame != 3 {
			t.Errorf("expected nth_frame 3, got %d", cfg.Scan.NthFrame)
		}
		if cfg.Scan.Workers != 2 {
			t.Errorf("expected 2 workers, got %d", cfg.Scan.Workers)
		}
		// Untouched sections keep their defaults.
		if cfg.Tracking.StableHits != 10 {
			t.Errorf("expected default stable_hits, got %d", cfg.Tracking.StableHits)
		}
	})
}

func TestManagerOnChangeRegistration(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "config.yaml")

	if err := os.WriteFile(configFile, []byte("scan:\n  nth_frame: 1\n"), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	mgr, err := NewManager(configFile)
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}

	mgr.OnChange(func(cfg *Config) {})
	mgr.OnChange(func(cfg *Config) {})

	mgr.mu.RLock()
	if len(mgr.callbacks) != 2 {
		t.Errorf("expected 2 callbacks, got %d", len(mgr.callbacks))
	}
	mgr.mu.RUnlock()
}

func TestManagerGetThreadSafe(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "config.yaml")

	if err := os.WriteFile(configFile, []byte("scan:\n  nth_frame: 1\n"), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	mgr, err := NewManager(configFile)
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}

	// Call Get concurrently to verify no race conditions
	done := make(chan struct{})
	for i := 0; i < 10; i++ {
		go func() {
			for j := 0; j < 100; j++ {
				cfg := mgr.Get()
				_ = cfg.Scan.NthFrame
			}
			done <- struct{}{}
		}()
	}

	// Wait for all goroutines
	for i := 0; i < 10; i++ {
		<-done
	}
}

func TestManagerWatchConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "config.yaml")

	if err := os.WriteFile(configFile, []byte("scan:\n  nth_frame: 2\n"), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	mgr, err := NewManager(configFile)
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}

	if got := mgr.Get().Scan.NthFrame; got != 2 {
		t.Errorf("initial nth_frame mismatch: expected 2, got %d", got)
	}

	// Track callback invocations
	var callbackCount atomic.Int32
	var lastValue atomic.Int64

	mgr.OnChange(func(cfg *Config) {
		callbackCount.Add(1)
		lastValue.Store(int64(cfg.Scan.NthFrame))
	})

	// Start watching
	mgr.WatchConfig()

	// Give fsnotify time to set up the watcher
	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(configFile, []byte("scan:\n  nth_frame: 5\n"), 0644); err != nil {
		t.Fatalf("failed to write updated config file: %v", err)
	}

	// Wait for the watcher to detect the change (fsnotify is async)
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if callbackCount.Load() > 0 {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}

	if callbackCount.Load() == 0 {
		t.Error("callback was not invoked after config file change")
	}

	if got := mgr.Get().Scan.NthFrame; got != 5 {
		t.Errorf("config not updated: expected 5, got %d", got)
	}
	if v := lastValue.Load(); v != 5 {
		t.Errorf("callback received wrong value: expected 5, got %d", v)
	}
}

func TestWriteDefault(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.yaml")

	if err := WriteDefault(path); err != nil {
		t.Fatalf("WriteDefault: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		t.Fatalf("written file is not valid yaml: %v", err)
	}
	if cfg.Tracking.StableHits != DefaultConfig().Tracking.StableHits {
		t.Errorf("round-tripped stable_hits = %d, want default", cfg.Tracking.StableHits)
	}
}
