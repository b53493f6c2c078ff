// Package spaces discovers virtual desktops through invisible marker windows
// and tracks which of them still need a restore pass.
package spaces

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"github.com/1broseidon/winrestore/internal/platform"
)

// DefaultMaxSpaces caps the registry when no limit is configured.
const DefaultMaxSpaces = 16

// ID names a virtual desktop. It is the window id of the desktop's marker.
type ID = platform.WindowID

// State is the restore state of one space.
//
// Unknown -> PendingRestore on an arrangement change.
// PendingRestore -> Visited after a restore pass (or when nothing is cached).
// Visited -> PendingRestore on the next arrangement change.
type State int

const (
	Unknown State = iota
	PendingRestore
	Visited
)

func (s State) String() string {
	switch s {
	case PendingRestore:
		return "pending"
	case Visited:
		return "visited"
	default:
		return "unknown"
	}
}

// MarshalText renders the state name in JSON output.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Space is a snapshot of one registry entry.
type Space struct {
	ID        ID        `json:"id"`
	State     State     `json:"state"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
}

type entry struct {
	state     State
	firstSeen time.Time
	lastSeen  time.Time
	// seq orders discovery; lower is older.
	seq uint64
	// touched orders use for eviction.
	touched uint64
}

// Options configures a Tracker.
type Options struct {
	MaxSpaces int
	Logger    *slog.Logger
	Now       func() time.Time
}

// Tracker is the registry of known spaces. It is not safe for concurrent use.
type Tracker struct {
	lister  platform.WindowLister
	markers platform.MarkerFactory
	logger  *slog.Logger
	now     func() time.Time

	spaces map[ID]*entry
	max    int
	seq    uint64
	clock  uint64
}

// NewTracker creates an empty registry.
func NewTracker(lister platform.WindowLister, markers platform.MarkerFactory, opts Options) *Tracker {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	t := &Tracker{
		lister:  lister,
		markers: markers,
		logger:  logger,
		now:     now,
		spaces:  make(map[ID]*entry),
	}
	t.SetMaxSpaces(opts.MaxSpaces)
	return t
}

// Current returns the active space. Markers of known spaces that are
// on-screen identify it; when several are visible at once the oldest wins and
// the others are destroyed. With no marker on-screen a new one is created.
// ok is false when the active desktop cannot be identified.
func (t *Tracker) Current(ctx context.Context) (ID, bool) {
	onScreen, err := t.lister.RecencyOrder(ctx, platform.ScopeCurrentSpace)
	if err != nil {
		t.logger.Debug("spaces: cannot list current desktop", "error", err)
		return 0, false
	}

	var found []ID
	for _, wid := range onScreen {
		if _, ok := t.spaces[wid]; ok {
			found = append(found, wid)
		}
	}

	if len(found) > 0 {
		sort.Slice(found, func(i, j int) bool { return t.spaces[found[i]].seq < t.spaces[found[j]].seq })
		canonical := found[0]
		for _, dup := range found[1:] {
			t.logger.Info("spaces: merged desktop detected", "space", canonical, "duplicate", dup)
			t.drop(ctx, dup)
		}
		t.touch(canonical)
		return canonical, true
	}

	id, err := t.markers.CreateMarker(ctx)
	if err != nil {
		if errors.Is(err, platform.ErrSpaceUnavailable) {
			t.logger.Debug("spaces: desktop refused marker window")
		} else {
			t.logger.Warn("spaces: failed to create marker window", "error", err)
		}
		return 0, false
	}

	t.seq++
	now := t.now()
	t.spaces[id] = &entry{state: Unknown, firstSeen: now, seq: t.seq}
	t.touch(id)
	t.logger.Info("spaces: new desktop discovered", "space", id, "known", len(t.spaces))
	t.evict(ctx, id)
	return id, true
}

// IsMarker reports whether wid is one of the tracker's marker windows.
func (t *Tracker) IsMarker(wid platform.WindowID) bool {
	_, ok := t.spaces[wid]
	return ok
}

// State returns the state of id; unregistered spaces are Unknown.
func (t *Tracker) State(id ID) State {
	if e, ok := t.spaces[id]; ok {
		return e.state
	}
	return Unknown
}

// MarkAllPending flags every known space for a restore pass.
func (t *Tracker) MarkAllPending() {
	for _, e := range t.spaces {
		e.state = PendingRestore
	}
}

// MarkPending flags a single space for a restore pass.
func (t *Tracker) MarkPending(id ID) {
	if e, ok := t.spaces[id]; ok {
		e.state = PendingRestore
	}
}

// MarkVisited records that id has been restored for the current arrangement.
func (t *Tracker) MarkVisited(id ID) {
	if e, ok := t.spaces[id]; ok {
		e.state = Visited
	}
}

// Spaces lists known spaces in discovery order.
func (t *Tracker) Spaces() []Space {
	out := make([]Space, 0, len(t.spaces))
	for id, e := range t.spaces {
		out = append(out, Space{ID: id, State: e.state, FirstSeen: e.firstSeen, LastSeen: e.lastSeen})
	}
	sort.Slice(out, func(i, j int) bool { return t.spaces[out[i].ID].seq < t.spaces[out[j].ID].seq })
	return out
}

// Len returns the number of known spaces.
func (t *Tracker) Len() int {
	return len(t.spaces)
}

// SetMaxSpaces changes the registry cap. Values below one select
// DefaultMaxSpaces. A lower cap takes effect on the next discovery.
func (t *Tracker) SetMaxSpaces(n int) {
	if n < 1 {
		n = DefaultMaxSpaces
	}
	t.max = n
}

// Close destroys every marker window.
func (t *Tracker) Close(ctx context.Context) {
	for id := range t.spaces {
		t.drop(ctx, id)
	}
}

func (t *Tracker) touch(id ID) {
	t.clock++
	e := t.spaces[id]
	e.touched = t.clock
	e.lastSeen = t.now()
}

// evict removes least recently seen spaces until the registry fits its cap.
// keep is never evicted.
func (t *Tracker) evict(ctx context.Context, keep ID) {
	for len(t.spaces) > t.max {
		var victim ID
		var oldest uint64
		for id, e := range t.spaces {
			if id == keep {
				continue
			}
			if victim == 0 || e.touched < oldest {
				victim, oldest = id, e.touched
			}
		}
		if victim == 0 {
			return
		}
		t.logger.Info("spaces: evicting least recently seen desktop", "space", victim, "max_spaces", t.max)
		t.drop(ctx, victim)
	}
}

func (t *Tracker) drop(ctx context.Context, id ID) {
	delete(t.spaces, id)
	if err := t.markers.DestroyMarker(ctx, id); err != nil {
		t.logger.Debug("spaces: failed to destroy marker", "space", id, "error", err)
	}
}
