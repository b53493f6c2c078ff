package x11

import (
	"fmt"

	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil/ewmh"
	"github.com/BurntSushi/xgbutil/icccm"
	"github.com/BurntSushi/xgbutil/xwindow"
)

// MarkerClass is the WM_CLASS of desktop marker windows.
const MarkerClass = "winrestore-marker"

// CreateMarker maps a 1x1 transparent utility window pinned to desktop. The
// window manager hides it whenever another desktop is active, which is what
// makes it usable as a desktop marker.
func (c *Connection) CreateMarker(desktop, pid int) (xproto.Window, error) {
	win, err := xwindow.Generate(c.XUtil)
	if err != nil {
		return 0, fmt.Errorf("failed to allocate marker window id: %w", err)
	}
	if err := win.CreateChecked(c.Root, 0, 0, 1, 1, 0); err != nil {
		return 0, fmt.Errorf("failed to create marker window: %w", err)
	}

	id := win.Id
	_ = icccm.WmClassSet(c.XUtil, id, &icccm.WmClass{Instance: MarkerClass, Class: MarkerClass})
	_ = ewmh.WmNameSet(c.XUtil, id, MarkerClass)
	_ = ewmh.WmPidSet(c.XUtil, id, uint(pid))
	_ = ewmh.WmWindowTypeSet(c.XUtil, id, []string{"_NET_WM_WINDOW_TYPE_UTILITY"})
	_ = ewmh.WmStateSet(c.XUtil, id, []string{
		"_NET_WM_STATE_SKIP_TASKBAR",
		"_NET_WM_STATE_SKIP_PAGER",
		"_NET_WM_STATE_BELOW",
	})
	_ = ewmh.WmWindowOpacitySet(c.XUtil, id, 0)
	if err := ewmh.WmDesktopSet(c.XUtil, id, uint(desktop)); err != nil {
		win.Destroy()
		return 0, fmt.Errorf("failed to pin marker to desktop %d: %w", desktop, err)
	}

	win.Map()
	return id, nil
}

// DestroyWindow destroys a window this client created.
func (c *Connection) DestroyWindow(windowID xproto.Window) {
	xwindow.New(c.XUtil, windowID).Destroy()
}
