// Package layout holds window-layout snapshots and the per-arrangement cache
// that reconciles them.
package layout

import (
	"fmt"
	"sort"

	"github.com/1broseidon/winrestore/internal/platform"
)

// ProcessID identifies the process owning one or more windows.
type ProcessID int32

// WindowID is the window system's identifier for a single window. It may be
// reused after the window is destroyed.
type WindowID = platform.WindowID

// Bounds is a window rectangle in screen coordinates. A Bounds with zero area
// is a placeholder: the position for that slot is unknown.
type Bounds struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Placeholder marks a slot whose position is unknown.
var Placeholder = Bounds{}

// BoundsFromRect converts a platform rectangle.
func BoundsFromRect(r platform.Rect) Bounds {
	return Bounds{X: r.X, Y: r.Y, Width: r.Width, Height: r.Height}
}

// Rect converts back to a platform rectangle.
func (b Bounds) Rect() platform.Rect {
	return platform.Rect{X: b.X, Y: b.Y, Width: b.Width, Height: b.Height}
}

// Area returns width*height, or 0 when either dimension is non-positive.
func (b Bounds) Area() int {
	if b.Width <= 0 || b.Height <= 0 {
		return 0
	}
	return b.Width * b.Height
}

// IsPlaceholder reports whether b carries no usable position.
func (b Bounds) IsPlaceholder() bool {
	return b.Area() == 0
}

func (b Bounds) String() string {
	if b.IsPlaceholder() {
		return "placeholder"
	}
	return fmt.Sprintf("%dx%d+%d+%d", b.Width, b.Height, b.X, b.Y)
}

// WindowPosition pairs a window with its bounds.
type WindowPosition struct {
	ID     WindowID `json:"id"`
	Bounds Bounds   `json:"bounds"`
}

// PlaceholderFor returns a slot for id with unknown bounds. The id is kept so
// the slot still lines up with the live window during restore.
func PlaceholderFor(id WindowID) WindowPosition {
	return WindowPosition{ID: id, Bounds: Placeholder}
}

// Snapshot maps each process to its windows, most recently used first.
type Snapshot map[ProcessID][]WindowPosition

// Clone returns a deep copy of s.
func (s Snapshot) Clone() Snapshot {
	out := make(Snapshot, len(s))
	for pid, seq := range s {
		cp := make([]WindowPosition, len(seq))
		copy(cp, seq)
		out[pid] = cp
	}
	return out
}

// Processes returns the process ids in ascending order.
func (s Snapshot) Processes() []ProcessID {
	pids := make([]ProcessID, 0, len(s))
	for pid := range s {
		pids = append(pids, pid)
	}
	sort.Slice(pids, func(i, j int) bool { return pids[i] < pids[j] })
	return pids
}

// WindowCount returns the total number of slots across all processes.
func (s Snapshot) WindowCount() int {
	n := 0
	for _, seq := range s {
		n += len(seq)
	}
	return n
}

// WindowIDs returns every window id in s.
func (s Snapshot) WindowIDs() WindowSet {
	set := make(WindowSet, s.WindowCount())
	for _, seq := range s {
		for _, wp := range seq {
			set.Add(wp.ID)
		}
	}
	return set
}

// WindowSet is an unordered set of window ids.
type WindowSet map[WindowID]struct{}

// NewWindowSet builds a set from ids.
func NewWindowSet(ids ...WindowID) WindowSet {
	set := make(WindowSet, len(ids))
	for _, id := range ids {
		set.Add(id)
	}
	return set
}

func (s WindowSet) Add(id WindowID) { s[id] = struct{}{} }

func (s WindowSet) Has(id WindowID) bool {
	_, ok := s[id]
	return ok
}

// AddAll inserts every id of other into s.
func (s WindowSet) AddAll(other WindowSet) {
	for id := range other {
		s[id] = struct{}{}
	}
}

// Clear empties the set in place.
func (s WindowSet) Clear() {
	for id := range s {
		delete(s, id)
	}
}
