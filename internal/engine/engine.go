// Package engine captures window layouts, reconciles them into the
// per-arrangement cache and replays cached bounds onto live windows.
//
// An Engine is not safe for concurrent use. Callers serialize access.
package engine

import (
	"log/slog"

	"github.com/1broseidon/winrestore/internal/layout"
	"github.com/1broseidon/winrestore/internal/platform"
	"github.com/1broseidon/winrestore/internal/spaces"
)

// State is everything the engine remembers between notifications.
type State struct {
	Cache     *layout.Cache
	Signature layout.Signature
	Visited   layout.WindowSet
	Spaces    *spaces.Tracker
}

// NewState returns state for a session that starts in arrangement sig.
func NewState(sig layout.Signature, tracker *spaces.Tracker) *State {
	return &State{
		Cache:     layout.NewCache(),
		Signature: sig,
		Visited:   layout.NewWindowSet(),
		Spaces:    tracker,
	}
}

// Recorder observes engine outcomes.
type Recorder interface {
	ObserveReconcile(ReconcileReport)
	ObserveRestore(RestoreReport)
	ObserveState(arrangements, spaces int)
}

type nopRecorder struct{}

func (nopRecorder) ObserveReconcile(ReconcileReport) {}
func (nopRecorder) ObserveRestore(RestoreReport)     {}
func (nopRecorder) ObserveState(int, int)            {}

// Options configures an Engine.
type Options struct {
	Logger  *slog.Logger
	Matcher Matcher
	// DryRun skips bounds writes; reports still count them.
	DryRun bool
	// SelfPID is never captured or moved.
	SelfPID  int
	Recorder Recorder
}

// Engine drives capture, reconciliation and restore over a State.
type Engine struct {
	state   *State
	windows platform.WindowLister
	access  platform.Accessor
	logger  *slog.Logger
	matcher Matcher
	dryRun  bool
	selfPID int
	rec     Recorder
}

// New creates an engine operating on state.
func New(state *State, windows platform.WindowLister, access platform.Accessor, opts Options) *Engine {
	e := &Engine{
		state:   state,
		windows: windows,
		access:  access,
		logger:  opts.Logger,
		matcher: opts.Matcher,
		dryRun:  opts.DryRun,
		selfPID: opts.SelfPID,
		rec:     opts.Recorder,
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.matcher == nil {
		e.matcher = Positional{}
	}
	if e.rec == nil {
		e.rec = nopRecorder{}
	}
	return e
}

// SetMatcher swaps the restore matcher.
func (e *Engine) SetMatcher(m Matcher) {
	if m == nil {
		m = Positional{}
	}
	e.matcher = m
}

// SetDryRun toggles bounds writes.
func (e *Engine) SetDryRun(v bool) { e.dryRun = v }

// Matcher returns the active matcher.
func (e *Engine) Matcher() Matcher { return e.matcher }

// DryRun reports whether bounds writes are skipped.
func (e *Engine) DryRun() bool { return e.dryRun }

func (e *Engine) observeState() {
	n := 0
	if e.state.Spaces != nil {
		n = e.state.Spaces.Len()
	}
	e.rec.ObserveState(e.state.Cache.Len(), n)
}
