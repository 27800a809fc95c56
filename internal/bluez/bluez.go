// Package bluez connects a gatt.Application to the BlueZ daemon over D-Bus.
// It finds a capable adapter, exports the application and advertisement
// objects, registers them with the adapter's managers and turns daemon
// method calls into calls on the event loop.
package bluez

import (
	"context"
	"errors"

	"github.com/godbus/dbus/v5"
)

// D-Bus names used by BlueZ.
const (
	ServiceName = "org.bluez"

	ObjectManagerInterface = "org.freedesktop.DBus.ObjectManager"
	PropertiesInterface    = "org.freedesktop.DBus.Properties"
	IntrospectInterface    = "org.freedesktop.DBus.Introspectable"

	AdapterInterface            = "org.bluez.Adapter1"
	GattManagerInterface        = "org.bluez.GattManager1"
	AdvertisingManagerInterface = "org.bluez.LEAdvertisingManager1"
	AdvertisementInterface      = "org.bluez.LEAdvertisement1"

	propertiesChangedSignal = PropertiesInterface + ".PropertiesChanged"
	getManagedObjects       = ObjectManagerInterface + ".GetManagedObjects"
	registerApplication     = GattManagerInterface + ".RegisterApplication"
	registerAdvertisement   = AdvertisingManagerInterface + ".RegisterAdvertisement"
	unregisterAdvertisement = AdvertisingManagerInterface + ".UnregisterAdvertisement"
)

var (
	// ErrAdapterNotFound is returned when no adapter offers both the GATT
	// manager and the LE advertising manager.
	ErrAdapterNotFound = errors.New("bluez: BLE adapter not found")

	// ErrRegistrationFailed wraps a rejected RegisterApplication or
	// RegisterAdvertisement call.
	ErrRegistrationFailed = errors.New("bluez: registration failed")
)

// Bus is the part of a D-Bus connection the peripheral needs. Method calls
// are addressed to org.bluez.
type Bus interface {
	// Call performs a blocking method call and stores the reply in out
	// (which may be nil).
	Call(ctx context.Context, path dbus.ObjectPath, method string, out interface{}, args ...interface{}) error
	// Go starts a method call without waiting. The returned channel
	// receives the call's error (nil on success) exactly once.
	Go(path dbus.ObjectPath, method string, args ...interface{}) <-chan error
	// Export publishes the exported methods of v at path under iface.
	Export(v interface{}, path dbus.ObjectPath, iface string) error
	// ExportMethodTable publishes methods at path under iface.
	ExportMethodTable(methods map[string]interface{}, path dbus.ObjectPath, iface string) error
	// Emit sends a signal from path.
	Emit(path dbus.ObjectPath, name string, values ...interface{}) error
}

// Invoker runs a function on the event loop and waits for it.
type Invoker interface {
	Invoke(fn func()) error
}

// Poster queues a function on the event loop without waiting.
type Poster interface {
	Post(fn func()) bool
}
