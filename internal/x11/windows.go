package x11

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil/ewmh"
)

// Geometry is a window's outer frame rectangle in root coordinates.
type Geometry struct {
	X, Y, Width, Height int
}

// WindowType is the primary _NET_WM_WINDOW_TYPE of a window, without the
// "_NET_WM_WINDOW_TYPE_" prefix and lower-cased ("normal", "dialog", "dock").
type WindowType string

const (
	TypeNormal  WindowType = "normal"
	TypeDialog  WindowType = "dialog"
	TypeUtility WindowType = "utility"
	TypeDock    WindowType = "dock"
	TypeDesktop WindowType = "desktop"
)

// StackingOrder returns managed clients bottom-to-top. Window managers that do
// not publish _NET_CLIENT_LIST_STACKING fall back to _NET_CLIENT_LIST, which is
// in mapping order.
func (c *Connection) StackingOrder() ([]xproto.Window, error) {
	clients, err := ewmh.ClientListStackingGet(c.XUtil)
	if err == nil && len(clients) > 0 {
		return clients, nil
	}
	return ewmh.ClientListGet(c.XUtil)
}

// WindowPID returns _NET_WM_PID, or 0 when unset.
func (c *Connection) WindowPID(windowID xproto.Window) int {
	pid, err := ewmh.WmPidGet(c.XUtil, windowID)
	if err != nil {
		return 0
	}
	return int(pid)
}

// GetWindowType returns the first window type the window declares. Windows
// without a type are normal per EWMH.
func (c *Connection) GetWindowType(windowID xproto.Window) WindowType {
	types, err := ewmh.WmWindowTypeGet(c.XUtil, windowID)
	if err != nil || len(types) == 0 {
		return TypeNormal
	}
	return WindowType(strings.ToLower(strings.TrimPrefix(types[0], "_NET_WM_WINDOW_TYPE_")))
}

// IsHidden reports whether the window is minimized.
func (c *Connection) IsHidden(windowID xproto.Window) bool {
	states, err := ewmh.WmStateGet(c.XUtil, windowID)
	if err != nil {
		return false
	}
	for _, state := range states {
		if state == "_NET_WM_STATE_HIDDEN" {
			return true
		}
	}
	return false
}

// IsViewable reports whether the window and all its ancestors are mapped.
func (c *Connection) IsViewable(windowID xproto.Window) bool {
	attrs, err := xproto.GetWindowAttributes(c.XUtil.Conn(), windowID).Reply()
	if err != nil {
		return false
	}
	return attrs.MapState == xproto.MapStateViewable
}

// FrameGeometry returns the outer geometry including window decorations.
func (c *Connection) FrameGeometry(windowID xproto.Window) (Geometry, bool) {
	geom, err := xproto.GetGeometry(c.XUtil.Conn(), xproto.Drawable(windowID)).Reply()
	if err != nil {
		return Geometry{}, false
	}

	translate, err := xproto.TranslateCoordinates(
		c.XUtil.Conn(),
		windowID,
		c.Root,
		0, 0,
	).Reply()
	if err != nil {
		return Geometry{}, false
	}

	left, right, top, bottom := c.GetFrameExtents(windowID)
	return Geometry{
		X:      int(translate.DstX) - left,
		Y:      int(translate.DstY) - top,
		Width:  int(geom.Width) + left + right,
		Height: int(geom.Height) + top + bottom,
	}, true
}

// MoveResizeWindow places the window's outer frame at g. It fails when the
// window is gone or the direct configure fallback is rejected.
func (c *Connection) MoveResizeWindow(windowID xproto.Window, g Geometry) error {
	conn := c.XUtil.Conn()
	if _, err := xproto.GetGeometry(conn, xproto.Drawable(windowID)).Reply(); err != nil {
		return fmt.Errorf("window 0x%x: %w", windowID, err)
	}

	// Maximized windows ignore move requests on most window managers.
	c.unmaximizeWindow(windowID)

	left, right, top, bottom := c.GetFrameExtents(windowID)
	client := clientGeometry(g, left, right, top, bottom)

	// _NET_MOVERESIZE_WINDOW positions the frame and sizes the client.
	if err := ewmh.MoveresizeWindow(c.XUtil, windowID, g.X, g.Y, client.Width, client.Height); err == nil {
		return nil
	}
	mask, values := configureRequest(client)
	if err := xproto.ConfigureWindowChecked(conn, windowID, mask, values).Check(); err != nil {
		return fmt.Errorf("configure window 0x%x: %w", windowID, err)
	}
	return nil
}

// clientGeometry converts a frame rectangle to the client rectangle inside
// the given decoration extents. Sizes never drop below 1.
func clientGeometry(frame Geometry, left, right, top, bottom int) Geometry {
	g := Geometry{
		X:      frame.X + left,
		Y:      frame.Y + top,
		Width:  frame.Width - left - right,
		Height: frame.Height - top - bottom,
	}
	if g.Width < 1 {
		g.Width = 1
	}
	if g.Height < 1 {
		g.Height = 1
	}
	return g
}

func configureRequest(g Geometry) (uint16, []uint32) {
	mask := uint16(xproto.ConfigWindowX | xproto.ConfigWindowY | xproto.ConfigWindowWidth | xproto.ConfigWindowHeight)
	return mask, []uint32{uint32(int32(g.X)), uint32(int32(g.Y)), uint32(g.Width), uint32(g.Height)}
}

// unmaximizeWindow removes maximized state from a window
func (c *Connection) unmaximizeWindow(windowID xproto.Window) {
	states, err := ewmh.WmStateGet(c.XUtil, windowID)
	if err != nil {
		return
	}

	for _, state := range states {
		switch state {
		case "_NET_WM_STATE_MAXIMIZED_HORZ", "_NET_WM_STATE_MAXIMIZED_VERT":
			ewmh.WmStateReq(c.XUtil, windowID, 0, state) // 0 = remove
		}
	}
}

// GetFrameExtents returns the window decoration sizes, zero when the window
// manager does not publish _NET_FRAME_EXTENTS.
func (c *Connection) GetFrameExtents(windowID xproto.Window) (left, right, top, bottom int) {
	extents, err := ewmh.FrameExtentsGet(c.XUtil, windowID)
	if err != nil {
		return 0, 0, 0, 0
	}
	return int(extents.Left), int(extents.Right), int(extents.Top), int(extents.Bottom)
}
