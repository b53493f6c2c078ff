package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/1broseidon/winrestore/internal/layout"
)

// Config is the effective daemon configuration.
type Config struct {
	// Signature selects how monitor arrangements are keyed: count or geometry.
	Signature string `yaml:"signature"`
	// Matcher pairs cached positions with live windows: positional or identifier.
	Matcher string `yaml:"matcher"`
	// MaxSpaces caps the virtual desktop registry.
	MaxSpaces int    `yaml:"max_spaces"`
	LogLevel  string `yaml:"log_level"`
	// DryRun logs restores without moving any window.
	DryRun bool `yaml:"dry_run"`

	EventTimeout time.Duration `yaml:"event_timeout"` // per-notification bound on window-system calls
	SettleDelay  time.Duration `yaml:"settle_delay"`  // 0 = handle display changes immediately
	PollInterval time.Duration `yaml:"poll_interval"` // 0 = no arrangement polling

	// MetricsListen is a host:port for the Prometheus endpoint. Empty disables it.
	MetricsListen string `yaml:"metrics_listen"`
	// Display overrides $DISPLAY for the X11 connection.
	Display string `yaml:"display"`
	// RestoreHotkey forces a restore of the active desktop, e.g. "Mod4-Shift-r".
	// Only read at startup.
	RestoreHotkey string `yaml:"restore_hotkey"`
}

const (
	DefaultMaxSpaces    = 16
	DefaultEventTimeout = 2 * time.Second
	DefaultPollInterval = 10 * time.Second
)

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() *Config {
	return &Config{
		Signature:    string(layout.SignatureCount),
		Matcher:      "positional",
		MaxSpaces:    DefaultMaxSpaces,
		LogLevel:     "info",
		EventTimeout: DefaultEventTimeout,
		PollInterval: DefaultPollInterval,
	}
}

// ValidationError points at the offending key, and at its file position when
// known.
type ValidationError struct {
	Path   string
	Source Source
	Err    error
}

func (e *ValidationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Source.File != "" && e.Source.Line > 0 {
		return fmt.Sprintf("%s:%d:%d: %s: %v", e.Source.File, e.Source.Line, e.Source.Column, e.Path, e.Err)
	}
	if e.Path != "" {
		return fmt.Sprintf("%s: %v", e.Path, e.Err)
	}
	return e.Err.Error()
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Validate checks every key.
func (c *Config) Validate() error {
	if _, err := layout.ParseSignatureMode(c.Signature); err != nil {
		return &ValidationError{Path: "signature", Err: err}
	}
	switch strings.ToLower(strings.TrimSpace(c.Matcher)) {
	case "", "positional", "identifier":
	default:
		return &ValidationError{Path: "matcher", Err: fmt.Errorf("matcher must be one of: positional, identifier")}
	}
	if c.MaxSpaces < 1 {
		return &ValidationError{Path: "max_spaces", Err: fmt.Errorf("max_spaces must be >= 1")}
	}
	if _, ok := parseLevel(c.LogLevel); !ok {
		return &ValidationError{Path: "log_level", Err: fmt.Errorf("log_level must be one of: debug, info, warning, error")}
	}
	if c.EventTimeout <= 0 {
		return &ValidationError{Path: "event_timeout", Err: fmt.Errorf("event_timeout must be > 0")}
	}
	if c.SettleDelay < 0 {
		return &ValidationError{Path: "settle_delay", Err: fmt.Errorf("settle_delay must be >= 0")}
	}
	if c.PollInterval < 0 {
		return &ValidationError{Path: "poll_interval", Err: fmt.Errorf("poll_interval must be >= 0")}
	}
	if c.MetricsListen != "" && !strings.Contains(c.MetricsListen, ":") {
		return &ValidationError{Path: "metrics_listen", Err: fmt.Errorf("metrics_listen must be host:port")}
	}
	if strings.ContainsAny(c.RestoreHotkey, " \t") {
		return &ValidationError{Path: "restore_hotkey", Err: fmt.Errorf("restore_hotkey must be a key sequence like Mod4-Shift-r")}
	}
	return nil
}

// SignatureMode returns the validated arrangement keyer.
func (c *Config) SignatureMode() layout.SignatureMode {
	mode, err := layout.ParseSignatureMode(c.Signature)
	if err != nil {
		return layout.SignatureCount
	}
	return mode
}

// SlogLevel maps log_level onto slog.
func (c *Config) SlogLevel() slog.Level {
	level, _ := parseLevel(c.LogLevel)
	return level
}

func parseLevel(s string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, true
	case "", "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}
