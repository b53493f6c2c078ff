package platform

import (
	"context"
	"errors"
)

// WindowID is a platform-neutral window identifier.
type WindowID uint32

// Rect describes a rectangular region in screen coordinates.
type Rect struct {
	X      int
	Y      int
	Width  int
	Height int
}

// Display describes a physical display and its usable work area.
type Display struct {
	ID     int
	Name   string
	Bounds Rect
	Usable Rect
}

// Layer is the stacking layer a window lives on. Only LayerNormal windows are
// tracked.
type Layer int

const (
	LayerNormal Layer = iota
	LayerUtility
	LayerPanel
	LayerOverlay
)

// Scope restricts window queries.
type Scope int

const (
	ScopeAllSpaces Scope = iota
	ScopeCurrentSpace
)

func (s Scope) String() string {
	if s == ScopeCurrentSpace {
		return "current-space"
	}
	return "all-spaces"
}

// WindowInfo is one row of a window enumeration.
type WindowInfo struct {
	ID     WindowID
	PID    int
	Bounds Rect
	Layer  Layer
}

// RoleWindow is the accessibility role of a real top-level window. Other roles
// (scroll areas, sheets) are exposed by some applications and are ignored.
const RoleWindow = "window"

// Handle is an accessibility reference to a live window. WindowID is zero when
// the platform cannot correlate the handle with the window system's id.
type Handle struct {
	Ref      any
	WindowID WindowID
	Role     string
}

var (
	// ErrSpaceUnavailable is returned when a marker window cannot be shown on
	// the active desktop.
	ErrSpaceUnavailable = errors.New("marker window not shown on the active desktop")
	// ErrNoWindows is returned when the window system reports no data.
	ErrNoWindows = errors.New("window system returned no window data")
)

// Screens reports the connected displays.
type Screens interface {
	Displays(ctx context.Context) ([]Display, error)
}

// WindowLister enumerates windows.
type WindowLister interface {
	// Windows lists on-screen windows within scope.
	Windows(ctx context.Context, scope Scope) ([]WindowInfo, error)
	// RecencyOrder lists window ids within scope, most recently used first.
	RecencyOrder(ctx context.Context, scope Scope) ([]WindowID, error)
}

// Accessor reads and writes live window geometry.
type Accessor interface {
	// ProcessWindows returns handles for pid's windows on the active desktop,
	// most recently used first.
	ProcessWindows(ctx context.Context, pid int) ([]Handle, error)
	// SetBounds moves and resizes the window behind h.
	SetBounds(ctx context.Context, h Handle, bounds Rect) error
}

// MarkerFactory creates invisible marker windows bound to the active desktop.
type MarkerFactory interface {
	CreateMarker(ctx context.Context) (WindowID, error)
	DestroyMarker(ctx context.Context, id WindowID) error
}

// Handlers receive window-system notifications. Both carry no payload.
type Handlers struct {
	DisplaysChanged func()
	SpaceChanged    func()
}

// Notifier delivers display and desktop change notifications.
type Notifier interface {
	Subscribe(h Handlers) error
}

// KeyBinder grabs global hotkeys. Callbacks run on the event loop.
type KeyBinder interface {
	BindKey(keySequence string, fn func()) error
}

// Backend abstracts window-system operations across platforms.
type Backend interface {
	Screens
	WindowLister
	Accessor
	MarkerFactory
	Notifier
}
