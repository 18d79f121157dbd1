package delivery

import (
	"context"
	"time"

	"github.com/godbus/dbus/v5"

	"pomodoro/internal/notification"
)

const (
	notifyDest   = "org.freedesktop.Notifications"
	notifyPath   = dbus.ObjectPath("/org/freedesktop/Notifications")
	notifyMethod = "org.freedesktop.Notifications.Notify"
)

// notifier posts a desktop banner. Tests replace the D-Bus implementation.
type notifier func(ctx context.Context, appName, summary, body string, expire time.Duration) error

// Desktop shows banners through the freedesktop notification service on the session bus.
type Desktop struct {
	appName string
	expire  time.Duration
	notify  notifier
}

func NewDesktop(appName string, expire time.Duration) *Desktop {
	if appName == "" {
		appName = "pomodoro"
	}
	if expire <= 0 {
		expire = 5 * time.Second
	}
	return &Desktop{appName: appName, expire: expire, notify: dbusNotify}
}

func (d *Desktop) Name() string { return "desktop" }

func (d *Desktop) Deliver(ctx context.Context, a notification.Alert) error {
	return transportErr(d.Name(), d.notify(ctx, d.appName, a.Summary, a.Body, d.expire))
}

func dbusNotify(ctx context.Context, appName, summary, body string, expire time.Duration) error {
	conn, err := dbus.SessionBus()
	if err != nil {
		return err
	}
	hints := map[string]dbus.Variant{
		"category":   dbus.MakeVariant("im.received"),
		"sound-name": dbus.MakeVariant("message-new-instant"),
	}
	obj := conn.Object(notifyDest, notifyPath)
	call := obj.CallWithContext(ctx, notifyMethod, 0,
		appName, uint32(0), "", summary, body, []string{}, hints, int32(expire.Milliseconds()))
	if call.Err != nil {
		return call.Err
	}
	var id uint32
	return call.Store(&id)
}
