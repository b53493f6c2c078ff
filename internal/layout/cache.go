package layout

import "sort"

// Cache maps each arrangement signature to the last known snapshot for it.
// It is not safe for concurrent use.
type Cache struct {
	entries map[Signature]Snapshot
}

// ReconcileStats summarizes one Reconcile pass.
type ReconcileStats struct {
	Signatures   int `json:"signatures"`
	Processes    int `json:"processes"`
	Adopted      int `json:"adopted"`
	Preserved    int `json:"preserved"`
	Placeholders int `json:"placeholders"`
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[Signature]Snapshot)}
}

// Get returns the snapshot cached for sig.
func (c *Cache) Get(sig Signature) (Snapshot, bool) {
	snap, ok := c.entries[sig]
	return snap, ok
}

// Ensure inserts an empty snapshot for sig if none exists.
func (c *Cache) Ensure(sig Signature) {
	if _, ok := c.entries[sig]; !ok {
		c.entries[sig] = Snapshot{}
	}
}

// Len returns the number of cached arrangements.
func (c *Cache) Len() int {
	return len(c.entries)
}

// Signatures returns the cached signatures in sorted order.
func (c *Cache) Signatures() []Signature {
	sigs := make([]Signature, 0, len(c.entries))
	for sig := range c.entries {
		sigs = append(sigs, sig)
	}
	sort.Slice(sigs, func(i, j int) bool { return sigs[i] < sigs[j] })
	return sigs
}

// Entries returns a deep copy of every cached snapshot.
func (c *Cache) Entries() map[Signature]Snapshot {
	out := make(map[Signature]Snapshot, len(c.entries))
	for sig, snap := range c.entries {
		out[sig] = snap.Clone()
	}
	return out
}

// Reset drops every cached arrangement.
func (c *Cache) Reset() {
	c.entries = make(map[Signature]Snapshot)
}

// Reconcile merges fresh into every cached arrangement.
//
// live is the arrangement the windows in fresh are currently laid out for. Its
// entry takes fresh bounds for visited windows and for processes it has never
// seen. Every other arrangement only advances structurally: windows it already
// knows keep their old bounds and new windows get placeholders. For each
// process in fresh, every arrangement that holds it ends up with exactly
// len(fresh[p]) slots in fresh order. Processes missing from fresh are dropped.
func (c *Cache) Reconcile(live Signature, fresh Snapshot, visited WindowSet) ReconcileStats {
	c.Ensure(live)

	stats := ReconcileStats{Signatures: len(c.entries), Processes: len(fresh)}
	for sig, old := range c.entries {
		next := make(Snapshot, len(fresh))
		for pid, seq := range fresh {
			prev, known := old[pid]
			switch {
			case sig == live && !known:
				next[pid] = cloneSeq(seq)
				stats.Adopted += len(seq)
			case sig == live:
				next[pid] = mergeSeq(prev, seq, visited, &stats)
			case known:
				next[pid] = mergeSeq(prev, seq, nil, &stats)
			}
		}
		c.entries[sig] = next
	}
	return stats
}

// RefreshLive merges fresh into the live arrangement only. Known processes
// follow the same visited/preserved/placeholder rules as Reconcile; processes
// absent from fresh (minimized, briefly unmapped) keep their cached sequence.
// Other arrangements are not touched, so sequence lengths may differ from
// theirs until the next Reconcile realigns them.
func (c *Cache) RefreshLive(live Signature, fresh Snapshot, visited WindowSet) ReconcileStats {
	c.Ensure(live)

	stats := ReconcileStats{Signatures: 1, Processes: len(fresh)}
	old := c.entries[live]
	next := make(Snapshot, len(old)+len(fresh))
	for pid, seq := range old {
		next[pid] = seq
	}
	for pid, seq := range fresh {
		prev, known := old[pid]
		if !known {
			next[pid] = cloneSeq(seq)
			stats.Adopted += len(seq)
			continue
		}
		next[pid] = mergeSeq(prev, seq, visited, &stats)
	}
	c.entries[live] = next
	return stats
}

// mergeSeq walks fresh in order. Windows in trusted take their fresh bounds,
// windows present in prev keep the previous position, anything else becomes a
// placeholder.
func mergeSeq(prev, fresh []WindowPosition, trusted WindowSet, stats *ReconcileStats) []WindowPosition {
	known := make(map[WindowID]WindowPosition, len(prev))
	for _, wp := range prev {
		if _, dup := known[wp.ID]; !dup {
			known[wp.ID] = wp
		}
	}

	out := make([]WindowPosition, 0, len(fresh))
	for _, wp := range fresh {
		if trusted.Has(wp.ID) {
			out = append(out, wp)
			stats.Adopted++
			continue
		}
		if old, ok := known[wp.ID]; ok {
			out = append(out, old)
			stats.Preserved++
			continue
		}
		out = append(out, PlaceholderFor(wp.ID))
		stats.Placeholders++
	}
	return out
}

func cloneSeq(seq []WindowPosition) []WindowPosition {
	out := make([]WindowPosition, len(seq))
	copy(out, seq)
	return out
}
