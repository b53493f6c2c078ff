package engine

import (
	"context"

	"github.com/1broseidon/winrestore/internal/layout"
)

// ReconcileReport describes one reconciliation pass.
type ReconcileReport struct {
	From    layout.Signature `json:"from"`
	To      layout.Signature `json:"to"`
	Windows int              `json:"windows"`
	layout.ReconcileStats
}

// OnArrangementChanged handles a switch from the tracked arrangement to sig.
// Every known space becomes pending, a fresh capture is merged into the
// cache under the outgoing arrangement, and the visited set is cleared.
func (e *Engine) OnArrangementChanged(ctx context.Context, sig layout.Signature) ReconcileReport {
	if e.state.Spaces != nil {
		e.state.Spaces.MarkAllPending()
	}

	report := e.reconcile(ctx)
	report.To = sig

	e.state.Signature = sig
	e.state.Visited.Clear()

	e.logger.Info("arrangement changed",
		"from", report.From,
		"to", sig,
		"processes", report.Processes,
		"placeholders", report.Placeholders)
	e.rec.ObserveReconcile(report)
	e.observeState()
	return report
}

// Refresh merges a fresh capture into the live arrangement's entry without an
// arrangement change. Visited windows and new processes update it; every
// other arrangement is left alone. A failed capture leaves the cache as is.
func (e *Engine) Refresh(ctx context.Context) ReconcileReport {
	report := ReconcileReport{From: e.state.Signature, To: e.state.Signature}
	fresh, err := e.Capture(ctx)
	if err != nil {
		e.logger.Debug("refresh skipped, capture failed", "error", err)
		return report
	}
	report.Windows = fresh.WindowCount()
	report.ReconcileStats = e.state.Cache.RefreshLive(e.state.Signature, fresh, e.state.Visited)

	e.logger.Debug("cache refreshed",
		"signature", report.From,
		"processes", report.Processes,
		"adopted", report.Adopted)
	e.rec.ObserveReconcile(report)
	e.observeState()
	return report
}

func (e *Engine) reconcile(ctx context.Context) ReconcileReport {
	fresh, err := e.Capture(ctx)
	if err != nil {
		// Treated as "no windows".
		e.logger.Debug("capture returned no data", "error", err)
	}
	stats := e.state.Cache.Reconcile(e.state.Signature, fresh, e.state.Visited)
	return ReconcileReport{
		From:           e.state.Signature,
		Windows:        fresh.WindowCount(),
		ReconcileStats: stats,
	}
}
