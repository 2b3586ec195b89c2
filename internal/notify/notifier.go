package notify

import (
	"fmt"

	"github.com/godbus/dbus/v5"
)

const (
	notifyService   = "org.freedesktop.Notifications"
	notifyPath      = "/org/freedesktop/Notifications"
	notifyInterface = "org.freedesktop.Notifications"
)

// Poster posts a desktop notification.
type Poster interface {
	Post(summary, body string) error
}

// Notifier posts desktop notifications over the session bus.
type Notifier struct {
	conn    *dbus.Conn
	appName string
	icon    string
}

// NewNotifier connects to the session bus notification service.
func NewNotifier(appName, icon string) (*Notifier, error) {
	conn, err := dbus.SessionBus()
	if err != nil {
		return nil, fmt.Errorf("connect session bus: %w", err)
	}
	return &Notifier{conn: conn, appName: appName, icon: icon}, nil
}

// Post sends a transient notification with server-default expiry.
func (n *Notifier) Post(summary, body string) error {
	obj := n.conn.Object(notifyService, notifyPath)
	call := obj.Call(notifyInterface+".Notify", 0,
		n.appName,
		uint32(0),
		n.icon,
		summary,
		body,
		[]string{},
		map[string]dbus.Variant{},
		int32(-1))
	var id uint32
	if err := call.Store(&id); err != nil {
		return fmt.Errorf("post notification: %w", err)
	}
	return nil
}
