package engine

import (
	"context"
	"fmt"
	"math"

	"github.com/1broseidon/winrestore/internal/layout"
	"github.com/1broseidon/winrestore/internal/platform"
)

// Capture snapshots every normal-layer window on all desktops, grouped by
// process and ordered most recently used first. Marker windows and the
// daemon's own windows are left out. On enumeration failure the snapshot is
// empty and the error says why.
func (e *Engine) Capture(ctx context.Context) (layout.Snapshot, error) {
	snap := layout.Snapshot{}

	windows, err := e.windows.Windows(ctx, platform.ScopeAllSpaces)
	if err != nil {
		return snap, fmt.Errorf("enumerate windows: %w", err)
	}

	order, err := e.windows.RecencyOrder(ctx, platform.ScopeAllSpaces)
	if err != nil {
		e.logger.Debug("capture: recency order unavailable", "error", err)
	}
	rank := make(map[platform.WindowID]int, len(order))
	for i, id := range order {
		if _, dup := rank[id]; !dup {
			rank[id] = i
		}
	}
	rankOf := func(id platform.WindowID) int {
		if r, ok := rank[id]; ok {
			return r
		}
		return math.MaxInt
	}

	for _, w := range windows {
		if w.Layer != platform.LayerNormal || w.PID <= 0 || w.PID == e.selfPID {
			continue
		}
		if e.state.Spaces != nil && e.state.Spaces.IsMarker(w.ID) {
			continue
		}

		pid := layout.ProcessID(w.PID)
		wp := layout.WindowPosition{ID: w.ID, Bounds: layout.BoundsFromRect(w.Bounds)}
		seq := snap[pid]

		r := rankOf(w.ID)
		at := len(seq)
		for i, existing := range seq {
			if rankOf(existing.ID) > r {
				at = i
				break
			}
		}
		seq = append(seq, layout.WindowPosition{})
		copy(seq[at+1:], seq[at:])
		seq[at] = wp
		snap[pid] = seq
	}

	e.logger.Debug("capture complete", "processes", len(snap), "windows", snap.WindowCount())
	return snap, nil
}
