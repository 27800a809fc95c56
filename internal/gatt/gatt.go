// Package gatt models a BlueZ GATT application as an ownership tree:
// an Application owns Services, and each Service owns its Characteristics.
// The D-Bus view of the tree (object paths, interfaces and properties) is
// always computed by walking it, never stored separately.
//
// What a characteristic can do is decided by its Go method set. A type that
// implements Reader is readable, Writer writable, Notifier notifiable; the
// "Flags" property and the exported D-Bus methods follow from that.
package gatt

import (
	"errors"
	"time"

	"github.com/godbus/dbus/v5"
)

// BlueZ GATT interface names.
const (
	ServiceInterface        = "org.bluez.GattService1"
	CharacteristicInterface = "org.bluez.GattCharacteristic1"
	ObjectManagerInterface  = "org.freedesktop.DBus.ObjectManager"
)

// Characteristic flag strings understood by BlueZ.
const (
	FlagRead   = "read"
	FlagWrite  = "write"
	FlagNotify = "notify"
)

var (
	// ErrInvalidValueLength is returned by a write whose payload has the wrong size.
	ErrInvalidValueLength = errors.New("gatt: invalid value length")

	// ErrNotPermitted is returned when a caller tries to change a read-only property.
	ErrNotPermitted = errors.New("gatt: not permitted")
)

// Options carries the option dictionary BlueZ passes to ReadValue and WriteValue
// (offset, mtu, device, link, ...).
type Options map[string]dbus.Variant

// Characteristic is the part every characteristic role has in common.
// Embed Base to get it.
type Characteristic interface {
	UUID() string
	Index() int
	Path() dbus.ObjectPath
	Service() *Service
}

// Reader is implemented by readable characteristics.
type Reader interface {
	ReadValue(opts Options) ([]byte, error)
}

// Writer is implemented by writable characteristics.
type Writer interface {
	WriteValue(value []byte, opts Options) error
}

// Notifier is implemented by characteristics that push value changes.
type Notifier interface {
	StartNotify() error
	StopNotify() error
}

// Scheduler runs fn every interval until fn returns false.
type Scheduler interface {
	AddTimeout(interval time.Duration, fn func() bool)
}

// Emitter publishes a new characteristic value to subscribed centrals.
type Emitter interface {
	ValueChanged(path dbus.ObjectPath, value []byte) error
}

// Flags returns the BlueZ flags for c, derived from the interfaces it implements.
func Flags(c Characteristic) []string {
	flags := []string{}
	if _, ok := c.(Reader); ok {
		flags = append(flags, FlagRead)
	}
	if _, ok := c.(Writer); ok {
		flags = append(flags, FlagWrite)
	}
	if _, ok := c.(Notifier); ok {
		flags = append(flags, FlagNotify)
	}
	return flags
}
