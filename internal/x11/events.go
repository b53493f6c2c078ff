package x11

import (
	"fmt"

	"github.com/BurntSushi/xgb/randr"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/xevent"
	"github.com/BurntSushi/xgbutil/xprop"
	"github.com/BurntSushi/xgbutil/xwindow"
)

// EventHandlers are invoked from the X event loop goroutine.
type EventHandlers struct {
	ScreensChanged func()
	DesktopChanged func()
}

// Watch subscribes to RandR screen/CRTC/output changes and to
// _NET_CURRENT_DESKTOP updates on the root window.
func (c *Connection) Watch(h EventHandlers) error {
	mask := uint16(randr.NotifyMaskScreenChange | randr.NotifyMaskCrtcChange | randr.NotifyMaskOutputChange)
	if err := randr.SelectInputChecked(c.XUtil.Conn(), c.Root, mask).Check(); err != nil {
		return fmt.Errorf("failed to select randr input: %w", err)
	}

	// RandR events are extension events; xevent only dispatches core events to
	// typed callbacks, so they are picked up in a hook.
	xevent.HookFun(func(xu *xgbutil.XUtil, event interface{}) bool {
		switch event.(type) {
		case randr.ScreenChangeNotifyEvent, randr.NotifyEvent:
			if h.ScreensChanged != nil {
				h.ScreensChanged()
			}
		}
		return true
	}).Connect(c.XUtil)

	if err := xwindow.New(c.XUtil, c.Root).Listen(xproto.EventMaskPropertyChange); err != nil {
		return fmt.Errorf("failed to listen on root window: %w", err)
	}

	xevent.PropertyNotifyFun(func(xu *xgbutil.XUtil, ev xevent.PropertyNotifyEvent) {
		name, err := xprop.AtomName(xu, ev.Atom)
		if err != nil || name != "_NET_CURRENT_DESKTOP" {
			return
		}
		if h.DesktopChanged != nil {
			h.DesktopChanged()
		}
	}).Connect(c.XUtil, c.Root)

	return nil
}
