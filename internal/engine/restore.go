package engine

import (
	"context"

	"github.com/1broseidon/winrestore/internal/layout"
	"github.com/1broseidon/winrestore/internal/platform"
	"github.com/1broseidon/winrestore/internal/spaces"
)

// RestoreStatus is the outcome of a restore pass.
type RestoreStatus string

const (
	StatusApplied          RestoreStatus = "applied"
	StatusNotPending       RestoreStatus = "not_pending"
	StatusNoCache          RestoreStatus = "no_cache"
	StatusSpaceUnavailable RestoreStatus = "space_unavailable"
)

// ProcessStatus is the outcome for one process within a pass.
type ProcessStatus string

const (
	ProcessApplied       ProcessStatus = "applied"
	ProcessCountMismatch ProcessStatus = "count_mismatch"
	ProcessEmpty         ProcessStatus = "empty"
)

// ProcessReport describes what happened to one process.
type ProcessReport struct {
	PID    layout.ProcessID `json:"pid"`
	Status ProcessStatus    `json:"status"`
	Cached int              `json:"cached"`
	Live   int              `json:"live"`
	// Written counts bounds writes that succeeded (or would have, in dry-run).
	Written      int `json:"written"`
	Placeholders int `json:"placeholders"`
	Failed       int `json:"failed"`
}

// RestoreReport describes one restore pass.
type RestoreReport struct {
	Status    RestoreStatus    `json:"status"`
	Space     spaces.ID        `json:"space,omitempty"`
	Signature layout.Signature `json:"signature"`
	DryRun    bool             `json:"dry_run,omitempty"`
	Processes []ProcessReport  `json:"processes,omitempty"`
}

// Written sums successful writes across processes.
func (r RestoreReport) Written() int {
	n := 0
	for _, p := range r.Processes {
		n += p.Written
	}
	return n
}

// Failed sums rejected writes across processes.
func (r RestoreReport) Failed() int {
	n := 0
	for _, p := range r.Processes {
		n += p.Failed
	}
	return n
}

// RestoreIfPending replays the cached layout of the current arrangement onto
// the active space if that space still needs it.
func (e *Engine) RestoreIfPending(ctx context.Context) RestoreReport {
	report := e.restoreIfPending(ctx)
	e.logger.Debug("restore pass",
		"status", report.Status,
		"space", report.Space,
		"signature", report.Signature,
		"written", report.Written(),
		"failed", report.Failed())
	e.rec.ObserveRestore(report)
	e.observeState()
	return report
}

// ForceRestore marks the active space pending and restores it.
func (e *Engine) ForceRestore(ctx context.Context) RestoreReport {
	if id, ok := e.state.Spaces.Current(ctx); ok {
		e.state.Spaces.MarkPending(id)
	}
	return e.RestoreIfPending(ctx)
}

// Observe trusts the active space's windows as laid out for the current
// arrangement unless the space still waits for a restore. Its windows join the
// visited set and the space becomes Visited.
func (e *Engine) Observe(ctx context.Context) (spaces.ID, bool) {
	space, ok := e.state.Spaces.Current(ctx)
	if !ok || e.state.Spaces.State(space) == spaces.PendingRestore {
		return space, false
	}
	liveIDs, err := e.windows.RecencyOrder(ctx, platform.ScopeCurrentSpace)
	if err != nil {
		e.logger.Debug("observe: no windows on current desktop", "space", space, "error", err)
		return space, false
	}
	e.state.Visited.AddAll(layout.NewWindowSet(liveIDs...))
	e.state.Spaces.MarkVisited(space)
	return space, true
}

func (e *Engine) restoreIfPending(ctx context.Context) RestoreReport {
	report := RestoreReport{Signature: e.state.Signature, DryRun: e.dryRun}

	space, ok := e.state.Spaces.Current(ctx)
	if !ok {
		report.Status = StatusSpaceUnavailable
		return report
	}
	report.Space = space

	if e.state.Spaces.State(space) != spaces.PendingRestore {
		report.Status = StatusNotPending
		return report
	}

	cached, ok := e.state.Cache.Get(e.state.Signature)
	if !ok {
		e.state.Spaces.MarkVisited(space)
		report.Status = StatusNoCache
		return report
	}

	liveIDs, err := e.windows.RecencyOrder(ctx, platform.ScopeCurrentSpace)
	if err != nil {
		e.logger.Debug("restore: no windows on current desktop", "space", space, "error", err)
	}
	live := layout.NewWindowSet(liveIDs...)

	for _, pid := range cached.Processes() {
		var onSpace []layout.WindowPosition
		for _, wp := range cached[pid] {
			if live.Has(wp.ID) {
				onSpace = append(onSpace, wp)
			}
		}
		if len(onSpace) == 0 {
			continue
		}
		report.Processes = append(report.Processes, e.restoreProcess(ctx, pid, onSpace))
	}

	e.state.Visited.AddAll(live)
	e.state.Spaces.MarkVisited(space)
	report.Status = StatusApplied
	return report
}

func (e *Engine) restoreProcess(ctx context.Context, pid layout.ProcessID, cached []layout.WindowPosition) ProcessReport {
	pr := ProcessReport{PID: pid, Cached: len(cached)}

	handles, err := e.access.ProcessWindows(ctx, int(pid))
	if err != nil {
		e.logger.Debug("restore: cannot read process windows", "pid", pid, "error", err)
	}
	var windows []platform.Handle
	for _, h := range handles {
		if h.Role == platform.RoleWindow {
			windows = append(windows, h)
		}
	}
	pr.Live = len(windows)

	if pr.Live == 0 || pr.Cached == 0 {
		pr.Status = ProcessEmpty
		return pr
	}
	if pr.Live != pr.Cached {
		pr.Status = ProcessCountMismatch
		e.logger.Info("restore: window count changed, skipping process",
			"pid", pid, "cached", pr.Cached, "live", pr.Live)
		return pr
	}

	pairs, ok := e.matcher.Match(cached, windows)
	if !ok {
		pr.Status = ProcessCountMismatch
		e.logger.Info("restore: windows could not be matched, skipping process",
			"pid", pid, "matcher", e.matcher.Name())
		return pr
	}

	for _, p := range pairs {
		if p.Position.Bounds.IsPlaceholder() {
			pr.Placeholders++
			continue
		}
		if e.dryRun {
			e.logger.Info("dry run: would move window", "pid", pid, "window", p.Position.ID, "bounds", p.Position.Bounds)
			pr.Written++
			continue
		}
		if err := e.access.SetBounds(ctx, p.Handle, p.Position.Bounds.Rect()); err != nil {
			pr.Failed++
			e.logger.Debug("restore: window refused bounds", "pid", pid, "window", p.Position.ID, "error", err)
			continue
		}
		pr.Written++
	}
	pr.Status = ProcessApplied
	return pr
}
