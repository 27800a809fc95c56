package gatt

import (
	"fmt"

	"github.com/godbus/dbus/v5"
	"github.com/google/uuid"
)

// Base holds the identity of a characteristic: its UUID, its index among
// the service's characteristics and a non-owning reference to the service.
type Base struct {
	uuid    string
	index   int
	service *Service
}

// NewBase returns the common part of a characteristic belonging to s.
// It panics if u is not a valid UUID.
func NewBase(s *Service, index int, u string) Base {
	return Base{
		uuid:    uuid.MustParse(u).String(),
		index:   index,
		service: s,
	}
}

// UUID returns the characteristic UUID in canonical lower-case form.
func (b *Base) UUID() string { return b.uuid }

// Index returns the characteristic index within its service.
func (b *Base) Index() int { return b.index }

// Service returns the owning service.
func (b *Base) Service() *Service { return b.service }

// Path returns the characteristic object path, below its service.
func (b *Base) Path() dbus.ObjectPath {
	return dbus.ObjectPath(fmt.Sprintf("%s/char%d", b.service.Path(), b.index))
}

// CharacteristicProperties returns the org.bluez.GattCharacteristic1 properties of c.
func CharacteristicProperties(c Characteristic) map[string]dbus.Variant {
	return map[string]dbus.Variant{
		"Service":     dbus.MakeVariant(c.Service().Path()),
		"UUID":        dbus.MakeVariant(c.UUID()),
		"Flags":       dbus.MakeVariant(Flags(c)),
		"Descriptors": dbus.MakeVariant([]dbus.ObjectPath{}),
	}
}
