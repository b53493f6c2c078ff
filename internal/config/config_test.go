package config

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/1broseidon/winrestore/internal/layout"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected defaults to validate, got %v", err)
	}
	if cfg.SignatureMode() != layout.SignatureCount {
		t.Fatalf("expected count signature by default, got %q", cfg.SignatureMode())
	}
	if cfg.SlogLevel() != slog.LevelInfo {
		t.Fatalf("expected info level, got %v", cfg.SlogLevel())
	}
}

func TestLoadFromPath_MissingFileUsesDefaults(t *testing.T) {
	res, err := LoadFromPath(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if res.File != "" {
		t.Fatalf("expected no source file, got %q", res.File)
	}
	if res.Config.MaxSpaces != DefaultMaxSpaces {
		t.Fatalf("expected max_spaces %d, got %d", DefaultMaxSpaces, res.Config.MaxSpaces)
	}
}

func TestLoadFromPath_EmptyFileUsesDefaults(t *testing.T) {
	res, err := LoadFromPath(writeConfig(t, "# empty\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if res.Config.EventTimeout != DefaultEventTimeout {
		t.Fatalf("expected event_timeout %v, got %v", DefaultEventTimeout, res.Config.EventTimeout)
	}
}

func TestLoadFromPath_OverridesDefaults(t *testing.T) {
	path := writeConfig(t, strings.Join([]string{
		"signature: geometry",
		"matcher: identifier",
		"max_spaces: 4",
		"log_level: debug",
		"dry_run: true",
		"event_timeout: 500ms",
		"settle_delay: 1s",
		"poll_interval: 0s",
		"metrics_listen: 127.0.0.1:9464",
		"display: \":1\"",
		"restore_hotkey: Mod4-Shift-r",
		"",
	}, "\n"))

	res, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	cfg := res.Config
	if cfg.SignatureMode() != layout.SignatureGeometry {
		t.Fatalf("signature = %q", cfg.Signature)
	}
	if cfg.Matcher != "identifier" || cfg.MaxSpaces != 4 || !cfg.DryRun {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.EventTimeout != 500*time.Millisecond || cfg.SettleDelay != time.Second || cfg.PollInterval != 0 {
		t.Fatalf("unexpected durations: %+v", cfg)
	}
	if cfg.SlogLevel() != slog.LevelDebug {
		t.Fatalf("expected debug level")
	}
	if cfg.Display != ":1" || cfg.MetricsListen != "127.0.0.1:9464" || cfg.RestoreHotkey != "Mod4-Shift-r" {
		t.Fatalf("unexpected display/metrics: %+v", cfg)
	}
	if src, ok := res.Sources["max_spaces"]; !ok || src.Line != 3 {
		t.Fatalf("expected max_spaces source on line 3, got %+v", src)
	}
}

func TestLoadFromPath_StrictUnknownKeyErrors(t *testing.T) {
	_, err := LoadFromPath(writeConfig(t, "signatures: count\n"))
	if err == nil {
		t.Fatalf("expected unknown key error")
	}
	if !strings.Contains(err.Error(), "signatures") {
		t.Fatalf("expected error to name the key, got %v", err)
	}
}

func TestLoadFromPath_ValidationErrorHasSourceContext(t *testing.T) {
	path := writeConfig(t, "log_level: info\nmax_spaces: 0\n")
	_, err := LoadFromPath(path)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if verr.Path != "max_spaces" || verr.Source.Line != 2 {
		t.Fatalf("unexpected validation error: %+v", verr)
	}
	if !strings.HasPrefix(err.Error(), path+":2:") {
		t.Fatalf("expected file:line prefix, got %q", err.Error())
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		path   string
	}{
		{"signature", func(c *Config) { c.Signature = "edid" }, "signature"},
		{"matcher", func(c *Config) { c.Matcher = "fuzzy" }, "matcher"},
		{"log level", func(c *Config) { c.LogLevel = "trace" }, "log_level"},
		{"event timeout", func(c *Config) { c.EventTimeout = 0 }, "event_timeout"},
		{"settle", func(c *Config) { c.SettleDelay = -time.Second }, "settle_delay"},
		{"poll", func(c *Config) { c.PollInterval = -time.Second }, "poll_interval"},
		{"metrics", func(c *Config) { c.MetricsListen = "9464" }, "metrics_listen"},
		{"hotkey", func(c *Config) { c.RestoreHotkey = "Mod4 r" }, "restore_hotkey"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			var verr *ValidationError
			if !errors.As(err, &verr) || verr.Path != tt.path {
				t.Fatalf("expected validation error on %q, got %v", tt.path, err)
			}
		})
	}
}

func TestMarshalRoundTripsDurations(t *testing.T) {
	data, err := Marshal(DefaultConfig())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(data), "event_timeout: 2s") {
		t.Fatalf("expected human-readable duration, got:\n%s", data)
	}
}

func TestWatcherFiresOnWrite(t *testing.T) {
	path := writeConfig(t, "log_level: info\n")

	var calls atomic.Int32
	w := NewWatcher(path, nil, func() { calls.Add(1) })
	w.debounce = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	// Give the watcher time to register before writing.
	time.Sleep(50 * time.Millisecond)
	if err := os.WriteFile(filepath.Join(filepath.Dir(path), "other.yaml"), []byte("x"), 0644); err != nil {
		t.Fatalf("write other: %v", err)
	}
	if err := os.WriteFile(path, []byte("log_level: debug\n"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if calls.Load() == 0 {
		t.Fatal("expected a change notification")
	}
}
