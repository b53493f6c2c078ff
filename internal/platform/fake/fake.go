// Package fake is an in-memory window system for tests.
package fake

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/1broseidon/winrestore/internal/platform"
)

// ErrMoveRejected is returned by SetBounds for windows that refuse moves.
var ErrMoveRejected = errors.New("window refused programmatic move")

// Window is a simulated top-level window.
type Window struct {
	ID     platform.WindowID
	PID    int
	Bounds platform.Rect
	Layer  platform.Layer
	Role   string
	Space  int
	// Sticky windows are shown on every space.
	Sticky bool
	// RejectMoves makes SetBounds fail for this window.
	RejectMoves bool
	marker      bool
}

// Write records one successful SetBounds call.
type Write struct {
	ID     platform.WindowID
	Bounds platform.Rect
}

// Backend implements platform.Backend in memory. Windows are kept most
// recently used first.
type Backend struct {
	mu       sync.Mutex
	displays []platform.Display
	windows  []*Window
	current  int
	nextID   platform.WindowID
	selfPID  int
	refuse   map[int]bool
	handlers platform.Handlers
	writes   []Write
	keys     map[string]func()

	// HideHandleIDs leaves Handle.WindowID zero, like platforms whose
	// accessibility handles cannot be correlated with window ids.
	HideHandleIDs bool
	// FailEnumeration makes Windows and RecencyOrder return ErrNoWindows.
	FailEnumeration bool
}

var (
	_ platform.Backend   = (*Backend)(nil)
	_ platform.KeyBinder = (*Backend)(nil)
)

// New returns a backend with n displays and no windows. selfPID owns the
// marker windows.
func New(n int, selfPID int) *Backend {
	b := &Backend{
		nextID:  1000,
		selfPID: selfPID,
		refuse:  make(map[int]bool),
		keys:    make(map[string]func()),
	}
	b.setDisplays(n)
	return b
}

// SetDisplays replaces the display list with n side-by-side 1920x1080 screens.
func (b *Backend) SetDisplays(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.setDisplays(n)
}

func (b *Backend) setDisplays(n int) {
	b.displays = make([]platform.Display, n)
	for i := range b.displays {
		r := platform.Rect{X: i * 1920, Width: 1920, Height: 1080}
		b.displays[i] = platform.Display{ID: i, Name: fmt.Sprintf("OUT-%d", i), Bounds: r, Usable: r}
	}
}

// AddWindow opens w as the most recently used window. Zero IDs are assigned
// and an empty Role defaults to platform.RoleWindow.
func (b *Backend) AddWindow(w Window) platform.WindowID {
	b.mu.Lock()
	defer b.mu.Unlock()
	if w.ID == 0 {
		w.ID = b.allocID()
	}
	if w.Role == "" {
		w.Role = platform.RoleWindow
	}
	cp := w
	b.windows = append([]*Window{&cp}, b.windows...)
	return cp.ID
}

// Focus moves id to the front of the recency order.
func (b *Backend) Focus(id platform.WindowID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, w := range b.windows {
		if w.ID == id {
			b.windows = append([]*Window{w}, append(b.windows[:i:i], b.windows[i+1:]...)...)
			return
		}
	}
}

// Move changes bounds the way the OS relayout would, without recording a write.
func (b *Backend) Move(id platform.WindowID, r platform.Rect) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if w := b.find(id); w != nil {
		w.Bounds = r
	}
}

// Close destroys id.
func (b *Backend) Close(id platform.WindowID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, w := range b.windows {
		if w.ID == id {
			b.windows = append(b.windows[:i], b.windows[i+1:]...)
			return
		}
	}
}

// SetRejectMoves toggles move rejection for id.
func (b *Backend) SetRejectMoves(id platform.WindowID, reject bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if w := b.find(id); w != nil {
		w.RejectMoves = reject
	}
}

// SwitchSpace makes space active.
func (b *Backend) SwitchSpace(space int) {
	b.mu.Lock()
	b.current = space
	b.mu.Unlock()
}

// MoveToSpace reassigns a window (or marker) to another space, e.g. when two
// spaces merge after a full-screen application exits.
func (b *Backend) MoveToSpace(id platform.WindowID, space int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if w := b.find(id); w != nil {
		w.Space = space
	}
}

// RefuseMarkers makes CreateMarker fail while space is active.
func (b *Backend) RefuseMarkers(space int, refuse bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refuse[space] = refuse
}

// Bounds returns the current bounds of id.
func (b *Backend) Bounds(id platform.WindowID) platform.Rect {
	b.mu.Lock()
	defer b.mu.Unlock()
	if w := b.find(id); w != nil {
		return w.Bounds
	}
	return platform.Rect{}
}

// Writes returns every successful SetBounds call so far.
func (b *Backend) Writes() []Write {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Write, len(b.writes))
	copy(out, b.writes)
	return out
}

// ResetWrites clears the write log.
func (b *Backend) ResetWrites() {
	b.mu.Lock()
	b.writes = nil
	b.mu.Unlock()
}

// Markers returns the ids of live marker windows.
func (b *Backend) Markers() []platform.WindowID {
	b.mu.Lock()
	defer b.mu.Unlock()
	var ids []platform.WindowID
	for _, w := range b.windows {
		if w.marker {
			ids = append(ids, w.ID)
		}
	}
	return ids
}

// FireDisplaysChanged delivers a display notification to the subscriber.
func (b *Backend) FireDisplaysChanged() {
	b.mu.Lock()
	h := b.handlers.DisplaysChanged
	b.mu.Unlock()
	if h != nil {
		h()
	}
}

// FireSpaceChanged delivers a space notification to the subscriber.
func (b *Backend) FireSpaceChanged() {
	b.mu.Lock()
	h := b.handlers.SpaceChanged
	b.mu.Unlock()
	if h != nil {
		h()
	}
}

func (b *Backend) Displays(ctx context.Context) ([]platform.Display, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]platform.Display, len(b.displays))
	copy(out, b.displays)
	return out, nil
}

// Windows lists every window within scope, markers included; they are normal
// windows as far as the window system is concerned.
func (b *Backend) Windows(ctx context.Context, scope platform.Scope) ([]platform.WindowInfo, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.FailEnumeration {
		return nil, platform.ErrNoWindows
	}
	var out []platform.WindowInfo
	for _, w := range b.windows {
		if !b.inScope(w, scope) {
			continue
		}
		out = append(out, platform.WindowInfo{ID: w.ID, PID: w.PID, Bounds: w.Bounds, Layer: w.Layer})
	}
	return out, nil
}

func (b *Backend) RecencyOrder(ctx context.Context, scope platform.Scope) ([]platform.WindowID, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.FailEnumeration {
		return nil, platform.ErrNoWindows
	}
	var out []platform.WindowID
	for _, w := range b.windows {
		if b.inScope(w, scope) {
			out = append(out, w.ID)
		}
	}
	return out, nil
}

func (b *Backend) ProcessWindows(ctx context.Context, pid int) ([]platform.Handle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []platform.Handle
	for _, w := range b.windows {
		if w.PID != pid || w.marker || !b.inScope(w, platform.ScopeCurrentSpace) {
			continue
		}
		h := platform.Handle{Ref: w.ID, Role: w.Role}
		if !b.HideHandleIDs {
			h.WindowID = w.ID
		}
		out = append(out, h)
	}
	return out, nil
}

func (b *Backend) SetBounds(ctx context.Context, h platform.Handle, r platform.Rect) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	id, _ := h.Ref.(platform.WindowID)
	w := b.find(id)
	if w == nil {
		return fmt.Errorf("window %d not found", id)
	}
	if w.RejectMoves {
		return ErrMoveRejected
	}
	w.Bounds = r
	b.writes = append(b.writes, Write{ID: id, Bounds: r})
	return nil
}

func (b *Backend) CreateMarker(ctx context.Context) (platform.WindowID, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.refuse[b.current] {
		return 0, platform.ErrSpaceUnavailable
	}
	w := &Window{
		ID:     b.allocID(),
		PID:    b.selfPID,
		Bounds: platform.Rect{Width: 1, Height: 1},
		Role:   platform.RoleWindow,
		Space:  b.current,
		marker: true,
	}
	b.windows = append([]*Window{w}, b.windows...)
	return w.ID, nil
}

func (b *Backend) DestroyMarker(ctx context.Context, id platform.WindowID) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, w := range b.windows {
		if w.ID == id && w.marker {
			b.windows = append(b.windows[:i], b.windows[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("marker %d not found", id)
}

func (b *Backend) Subscribe(h platform.Handlers) error {
	b.mu.Lock()
	b.handlers = h
	b.mu.Unlock()
	return nil
}

func (b *Backend) inScope(w *Window, scope platform.Scope) bool {
	return scope == platform.ScopeAllSpaces || w.Sticky || w.Space == b.current
}

func (b *Backend) find(id platform.WindowID) *Window {
	for _, w := range b.windows {
		if w.ID == id {
			return w
		}
	}
	return nil
}

func (b *Backend) allocID() platform.WindowID {
	b.nextID++
	return b.nextID
}

// BindKey records fn for PressKey. Binding the same sequence twice fails.
func (b *Backend) BindKey(keySequence string, fn func()) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if keySequence == "" {
		return fmt.Errorf("empty key sequence")
	}
	if _, ok := b.keys[keySequence]; ok {
		return fmt.Errorf("key %q already grabbed", keySequence)
	}
	b.keys[keySequence] = fn
	return nil
}

// PressKey runs the callback bound to keySequence and reports whether one was.
func (b *Backend) PressKey(keySequence string) bool {
	b.mu.Lock()
	fn := b.keys[keySequence]
	b.mu.Unlock()
	if fn == nil {
		return false
	}
	fn()
	return true
}
