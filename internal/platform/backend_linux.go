//go:build linux

package platform

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/1broseidon/winrestore/internal/x11"
	"github.com/BurntSushi/xgb/xproto"
)

// markerShowTimeout bounds how long CreateMarker waits for the window manager
// to map a new marker.
const markerShowTimeout = 500 * time.Millisecond

// LinuxBackend wraps an existing X11 connection behind the platform Backend interface.
type LinuxBackend struct {
	conn *x11.Connection
	pid  int
}

var (
	_ Backend   = (*LinuxBackend)(nil)
	_ KeyBinder = (*LinuxBackend)(nil)
)

// NewLinuxBackend creates a Linux platform backend from an existing X11 connection.
func NewLinuxBackend(conn *x11.Connection) *LinuxBackend {
	return &LinuxBackend{conn: conn, pid: os.Getpid()}
}

// NewLinuxBackendFromDisplay opens a fresh X11 connection to display (empty
// means $DISPLAY).
func NewLinuxBackendFromDisplay(display string) (*LinuxBackend, error) {
	conn, err := x11.NewConnection(display)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X11: %w", err)
	}
	return NewLinuxBackend(conn), nil
}

// Disconnect closes the underlying X11 connection.
func (b *LinuxBackend) Disconnect() {
	if b != nil && b.conn != nil {
		b.conn.Close()
	}
}

// EventLoop starts the X11 event loop (blocking).
func (b *LinuxBackend) EventLoop() {
	if b != nil && b.conn != nil {
		b.conn.EventLoop()
	}
}

// Quit stops EventLoop.
func (b *LinuxBackend) Quit() {
	if b != nil && b.conn != nil {
		b.conn.Quit()
	}
}

// Displays returns all active displays.
func (b *LinuxBackend) Displays(ctx context.Context) ([]Display, error) {
	conn, err := b.connection(ctx)
	if err != nil {
		return nil, err
	}

	monitors, err := conn.GetMonitors()
	if err != nil {
		return nil, err
	}

	displays := make([]Display, 0, len(monitors))
	for _, m := range monitors {
		displays = append(displays, displayFromMonitor(m))
	}
	return displays, nil
}

// Windows lists normal, non-minimized client windows within scope.
func (b *LinuxBackend) Windows(ctx context.Context, scope Scope) ([]WindowInfo, error) {
	conn, err := b.connection(ctx)
	if err != nil {
		return nil, err
	}

	ids, err := b.scoped(ctx, scope)
	if err != nil {
		return nil, err
	}

	windows := make([]WindowInfo, 0, len(ids))
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		g, ok := conn.FrameGeometry(id)
		if !ok {
			continue
		}
		windows = append(windows, WindowInfo{
			ID:     WindowID(id),
			PID:    conn.WindowPID(id),
			Bounds: Rect{X: g.X, Y: g.Y, Width: g.Width, Height: g.Height},
			Layer:  layerFor(conn.GetWindowType(id)),
		})
	}
	return windows, nil
}

// RecencyOrder lists client windows top of the stack first. The stacking
// order is the closest thing X11 has to a most-recently-used list.
func (b *LinuxBackend) RecencyOrder(ctx context.Context, scope Scope) ([]WindowID, error) {
	ids, err := b.scoped(ctx, scope)
	if err != nil {
		return nil, err
	}
	out := make([]WindowID, len(ids))
	for i, id := range ids {
		out[i] = WindowID(id)
	}
	return out, nil
}

// ProcessWindows returns pid's windows on the current desktop. Handles carry
// the X window id, so identifier matching is possible on this backend.
func (b *LinuxBackend) ProcessWindows(ctx context.Context, pid int) ([]Handle, error) {
	conn, err := b.connection(ctx)
	if err != nil {
		return nil, err
	}

	ids, err := b.scoped(ctx, ScopeCurrentSpace)
	if err != nil {
		return nil, err
	}

	var handles []Handle
	for _, id := range ids {
		if conn.WindowPID(id) != pid {
			continue
		}
		handles = append(handles, Handle{
			Ref:      id,
			WindowID: WindowID(id),
			Role:     roleFor(conn.GetWindowType(id)),
		})
	}
	return handles, nil
}

// SetBounds moves and resizes a window to the specified bounds.
func (b *LinuxBackend) SetBounds(ctx context.Context, h Handle, bounds Rect) error {
	conn, err := b.connection(ctx)
	if err != nil {
		return err
	}

	id, ok := h.Ref.(xproto.Window)
	if !ok {
		id = xproto.Window(h.WindowID)
	}
	if id == 0 {
		return fmt.Errorf("handle has no window reference")
	}

	return conn.MoveResizeWindow(id, x11.Geometry{
		X:      bounds.X,
		Y:      bounds.Y,
		Width:  bounds.Width,
		Height: bounds.Height,
	})
}

// CreateMarker creates a marker on the current desktop and waits until the
// window manager shows it. A marker that never becomes viewable is destroyed
// and ErrSpaceUnavailable returned.
func (b *LinuxBackend) CreateMarker(ctx context.Context) (WindowID, error) {
	conn, err := b.connection(ctx)
	if err != nil {
		return 0, err
	}

	desktop, err := conn.GetCurrentDesktop()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrSpaceUnavailable, err)
	}

	id, err := conn.CreateMarker(desktop, b.pid)
	if err != nil {
		return 0, err
	}

	ctx, cancel := context.WithTimeout(ctx, markerShowTimeout)
	defer cancel()
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()

	for {
		if conn.IsViewable(id) {
			if !conn.OnDesktop(id, desktop) {
				_ = conn.SetWindowDesktop(id, desktop)
			}
			return WindowID(id), nil
		}
		select {
		case <-ctx.Done():
			conn.DestroyWindow(id)
			return 0, ErrSpaceUnavailable
		case <-ticker.C:
		}
	}
}

// DestroyMarker destroys a marker created by CreateMarker.
func (b *LinuxBackend) DestroyMarker(ctx context.Context, id WindowID) error {
	conn, err := b.connection(ctx)
	if err != nil {
		return err
	}
	conn.DestroyWindow(xproto.Window(id))
	return nil
}

// Subscribe registers notification handlers on the X event loop.
func (b *LinuxBackend) Subscribe(h Handlers) error {
	conn, err := b.connection(context.Background())
	if err != nil {
		return err
	}
	return conn.Watch(x11.EventHandlers{
		ScreensChanged: h.DisplaysChanged,
		DesktopChanged: h.SpaceChanged,
	})
}

// BindKey grabs a global hotkey on the root window.
func (b *LinuxBackend) BindKey(keySequence string, fn func()) error {
	conn, err := b.connection(context.Background())
	if err != nil {
		return err
	}
	return conn.BindKey(keySequence, fn)
}

// scoped returns client windows top-of-stack first, restricted to the current
// desktop when asked. Minimized windows are never included.
func (b *LinuxBackend) scoped(ctx context.Context, scope Scope) ([]xproto.Window, error) {
	conn, err := b.connection(ctx)
	if err != nil {
		return nil, err
	}

	stacking, err := conn.StackingOrder()
	if err != nil {
		return nil, fmt.Errorf("%w: %s stacking order: %v", ErrNoWindows, scope.String(), err)
	}

	current := -1
	if scope == ScopeCurrentSpace {
		if current, err = conn.GetCurrentDesktop(); err != nil {
			return nil, err
		}
	}

	out := make([]xproto.Window, 0, len(stacking))
	for i := len(stacking) - 1; i >= 0; i-- {
		id := stacking[i]
		if conn.IsHidden(id) {
			continue
		}
		if scope == ScopeCurrentSpace && !conn.OnDesktop(id, current) {
			continue
		}
		out = append(out, id)
	}
	return out, nil
}

func (b *LinuxBackend) connection(ctx context.Context) (*x11.Connection, error) {
	if b == nil || b.conn == nil {
		return nil, fmt.Errorf("x11 backend connection is nil")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return b.conn, nil
}

func layerFor(t x11.WindowType) Layer {
	switch t {
	case x11.TypeNormal, x11.TypeDialog:
		return LayerNormal
	case x11.TypeDock, x11.TypeDesktop:
		return LayerPanel
	case x11.TypeUtility:
		return LayerUtility
	default:
		return LayerOverlay
	}
}

func roleFor(t x11.WindowType) string {
	if layerFor(t) == LayerNormal {
		return RoleWindow
	}
	return string(t)
}

func displayFromMonitor(m x11.Monitor) Display {
	bounds := Rect{
		X:      m.X,
		Y:      m.Y,
		Width:  m.Width,
		Height: m.Height,
	}
	return Display{
		ID:     m.ID,
		Name:   m.Name,
		Bounds: bounds,
		Usable: bounds,
	}
}
