// Package daemon wires window-system notifications to the restore engine and
// owns the engine state for the lifetime of the process.
package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/1broseidon/winrestore/internal/config"
	"github.com/1broseidon/winrestore/internal/engine"
	"github.com/1broseidon/winrestore/internal/layout"
	"github.com/1broseidon/winrestore/internal/platform"
	"github.com/1broseidon/winrestore/internal/spaces"
)

// Options configures a Daemon.
type Options struct {
	Config *config.Config
	// ConfigPath is re-read by Reload.
	ConfigPath string
	Logger     *slog.Logger
	// Level is adjusted when log_level changes on reload.
	Level    *slog.LevelVar
	Recorder engine.Recorder
	SelfPID  int
}

// Status summarizes the daemon for IPC clients.
type Status struct {
	Signature          layout.Signature        `json:"signature"`
	SignatureMode      layout.SignatureMode    `json:"signature_mode"`
	Matcher            string                  `json:"matcher"`
	DryRun             bool                    `json:"dry_run"`
	CachedArrangements int                     `json:"cached_arrangements"`
	CachedWindows      int                     `json:"cached_windows"`
	VisitedWindows     int                     `json:"visited_windows"`
	KnownSpaces        int                     `json:"known_spaces"`
	PendingSpaces      int                     `json:"pending_spaces"`
	UptimeSeconds      int64                   `json:"uptime_seconds"`
	LastRestore        *engine.RestoreReport   `json:"last_restore,omitempty"`
	LastReconcile      *engine.ReconcileReport `json:"last_reconcile,omitempty"`
}

// Daemon serializes every engine call behind one mutex. Notifications from
// the X event loop, the reconciler and IPC requests may arrive concurrently.
type Daemon struct {
	mu sync.Mutex

	backend    platform.Backend
	cfg        *config.Config
	configPath string
	logger     *slog.Logger
	level      *slog.LevelVar

	mode    layout.SignatureMode
	state   *engine.State
	tracker *spaces.Tracker
	eng     *engine.Engine

	started       time.Time
	lastRestore   *engine.RestoreReport
	lastReconcile *engine.ReconcileReport

	baseCtx context.Context
	cancel  context.CancelFunc
	settle  *time.Timer
}

// New builds the engine for the arrangement that is live right now, registers
// the active desktop and seeds the cache with its windows.
func New(ctx context.Context, backend platform.Backend, opts Options) (*Daemon, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	matcher, err := engine.MatcherByName(cfg.Matcher)
	if err != nil {
		return nil, err
	}

	mode := cfg.SignatureMode()
	displays, err := backend.Displays(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query displays: %w", err)
	}
	sig := layout.SignatureFor(mode, displays)

	tracker := spaces.NewTracker(backend, backend, spaces.Options{
		MaxSpaces: cfg.MaxSpaces,
		Logger:    logger.With("component", "spaces"),
	})
	state := engine.NewState(sig, tracker)
	eng := engine.New(state, backend, backend, engine.Options{
		Logger:   logger.With("component", "engine"),
		Matcher:  matcher,
		DryRun:   cfg.DryRun,
		SelfPID:  opts.SelfPID,
		Recorder: opts.Recorder,
	})

	baseCtx, cancel := context.WithCancel(context.Background())
	d := &Daemon{
		backend:    backend,
		cfg:        cfg,
		configPath: opts.ConfigPath,
		logger:     logger,
		level:      opts.Level,
		mode:       mode,
		state:      state,
		tracker:    tracker,
		eng:        eng,
		started:    time.Now(),
		baseCtx:    baseCtx,
		cancel:     cancel,
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := eng.Observe(ctx); !ok {
		logger.Warn("active desktop could not be identified at startup")
	}
	rep := eng.Refresh(ctx)
	d.lastReconcile = &rep
	logger.Info("layout engine ready",
		"signature", sig,
		"displays", len(displays),
		"processes", rep.Processes,
		"windows", rep.Windows)
	return d, nil
}

// Start subscribes to window-system notifications.
func (d *Daemon) Start() error {
	return d.backend.Subscribe(platform.Handlers{
		DisplaysChanged: d.HandleDisplaysChanged,
		SpaceChanged:    d.HandleSpaceChanged,
	})
}

// HandleDisplaysChanged reacts to a screen configuration notification. With a
// settle delay, bursts of notifications collapse into one check.
func (d *Daemon) HandleDisplaysChanged() {
	d.mu.Lock()
	delay := d.cfg.SettleDelay
	if delay > 0 {
		if d.settle != nil {
			d.settle.Stop()
		}
		d.settle = time.AfterFunc(delay, func() {
			d.mu.Lock()
			defer d.mu.Unlock()
			d.checkArrangementLocked()
		})
		d.mu.Unlock()
		return
	}
	defer d.mu.Unlock()
	d.checkArrangementLocked()
}

// HandleSpaceChanged restores the newly active desktop if it is pending.
func (d *Daemon) HandleSpaceChanged() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.baseCtx.Err() != nil {
		return
	}
	ctx, cancel := d.eventContext()
	defer cancel()
	d.restoreLocked(ctx)
}

// Tick is one reconciler pass: a missed arrangement change is handled,
// otherwise the cache is refreshed for the live arrangement.
func (d *Daemon) Tick(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if changed := d.checkArrangementLocked(); changed {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, d.cfg.EventTimeout)
	defer cancel()
	d.eng.Observe(ctx)
	rep := d.eng.Refresh(ctx)
	d.lastReconcile = &rep
}

// RestoreNow forces a restore pass on the active desktop.
func (d *Daemon) RestoreNow() engine.RestoreReport {
	d.mu.Lock()
	defer d.mu.Unlock()
	ctx, cancel := d.eventContext()
	defer cancel()
	rep := d.eng.ForceRestore(ctx)
	d.lastRestore = &rep
	return rep
}

// Capture merges a fresh capture into the cache without an arrangement change.
func (d *Daemon) Capture() engine.ReconcileReport {
	d.mu.Lock()
	defer d.mu.Unlock()
	ctx, cancel := d.eventContext()
	defer cancel()
	rep := d.eng.Refresh(ctx)
	d.lastReconcile = &rep
	return rep
}

// Status returns a summary of the engine state.
func (d *Daemon) Status() Status {
	d.mu.Lock()
	defer d.mu.Unlock()

	cached := 0
	for _, snap := range d.state.Cache.Entries() {
		cached += snap.WindowCount()
	}
	pending := 0
	for _, sp := range d.tracker.Spaces() {
		if sp.State == spaces.PendingRestore {
			pending++
		}
	}
	return Status{
		Signature:          d.state.Signature,
		SignatureMode:      d.mode,
		Matcher:            d.eng.Matcher().Name(),
		DryRun:             d.eng.DryRun(),
		CachedArrangements: d.state.Cache.Len(),
		CachedWindows:      cached,
		VisitedWindows:     len(d.state.Visited),
		KnownSpaces:        d.tracker.Len(),
		PendingSpaces:      pending,
		UptimeSeconds:      int64(time.Since(d.started).Seconds()),
		LastRestore:        d.lastRestore,
		LastReconcile:      d.lastReconcile,
	}
}

// Cache returns the live signature and a copy of every cached snapshot.
func (d *Daemon) Cache() (layout.Signature, map[layout.Signature]layout.Snapshot) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state.Signature, d.state.Cache.Entries()
}

// Spaces lists known virtual desktops.
func (d *Daemon) Spaces() []spaces.Space {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.tracker.Spaces()
}

// Reload re-reads the config file and applies it.
func (d *Daemon) Reload() error {
	res, err := config.LoadFromPath(d.configPath)
	if err != nil {
		return err
	}
	return d.ApplyConfig(res.Config)
}

// ApplyConfig switches to cfg. A new signature mode drops the cache since
// keys of the old mode can never match again.
func (d *Daemon) ApplyConfig(cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	matcher, err := engine.MatcherByName(cfg.Matcher)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.cfg = cfg
	if d.level != nil {
		d.level.Set(cfg.SlogLevel())
	}
	d.eng.SetMatcher(matcher)
	d.eng.SetDryRun(cfg.DryRun)
	d.tracker.SetMaxSpaces(cfg.MaxSpaces)

	if mode := cfg.SignatureMode(); mode != d.mode {
		ctx, cancel := d.eventContext()
		defer cancel()
		d.mode = mode
		d.state.Cache.Reset()
		if displays, err := d.backend.Displays(ctx); err == nil {
			d.state.Signature = layout.SignatureFor(mode, displays)
		}
		rep := d.eng.Refresh(ctx)
		d.lastReconcile = &rep
		d.logger.Info("signature mode changed, cache reset", "mode", mode, "signature", d.state.Signature)
	}

	d.logger.Info("config applied",
		"matcher", matcher.Name(),
		"dry_run", cfg.DryRun,
		"max_spaces", cfg.MaxSpaces,
		"log_level", cfg.LogLevel)
	return nil
}

// PollInterval returns the configured reconciler interval.
func (d *Daemon) PollInterval() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cfg.PollInterval
}

// Close stops pending work and destroys every marker window.
func (d *Daemon) Close(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cancel()
	if d.settle != nil {
		d.settle.Stop()
	}
	d.tracker.Close(ctx)
}

// checkArrangementLocked compares the live signature against the tracked one
// and runs a reconcile plus restore when it changed.
func (d *Daemon) checkArrangementLocked() bool {
	if d.baseCtx.Err() != nil {
		return false
	}
	ctx, cancel := d.eventContext()
	defer cancel()

	displays, err := d.backend.Displays(ctx)
	if err != nil {
		d.logger.Warn("failed to query displays", "error", err)
		return false
	}
	sig := layout.SignatureFor(d.mode, displays)
	if sig == d.state.Signature {
		return false
	}

	rep := d.eng.OnArrangementChanged(ctx, sig)
	d.lastReconcile = &rep
	d.restoreLocked(ctx)
	return true
}

func (d *Daemon) restoreLocked(ctx context.Context) {
	rep := d.eng.RestoreIfPending(ctx)
	if rep.Status == engine.StatusNotPending {
		d.eng.Observe(ctx)
		return
	}
	d.lastRestore = &rep
	if rep.Status == engine.StatusApplied {
		d.logger.Info("layout restored",
			"space", rep.Space,
			"signature", rep.Signature,
			"written", rep.Written(),
			"failed", rep.Failed())
	}
}

func (d *Daemon) eventContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(d.baseCtx, d.cfg.EventTimeout)
}
