package bluez

import (
	"errors"

	"github.com/godbus/dbus/v5"

	"github.com/chaz8081/gatt-peripheral/internal/gatt"
)

// BlueZ error names returned to the daemon.
const (
	ErrorFailed             = "org.bluez.Error.Failed"
	ErrorInvalidValueLength = "org.bluez.Error.InvalidValueLength"
	ErrorNotPermitted       = "org.bluez.Error.NotPermitted"
	ErrorInvalidArguments   = "org.bluez.Error.InvalidArguments"
)

// dbusError converts a Go error into the D-Bus error BlueZ expects.
func dbusError(err error) *dbus.Error {
	if err == nil {
		return nil
	}
	name := ErrorFailed
	switch {
	case errors.Is(err, gatt.ErrInvalidValueLength):
		name = ErrorInvalidValueLength
	case errors.Is(err, gatt.ErrNotPermitted):
		name = ErrorNotPermitted
	case errors.Is(err, errInvalidArguments):
		name = ErrorInvalidArguments
	}
	return dbus.NewError(name, []interface{}{err.Error()})
}
