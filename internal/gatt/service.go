package gatt

import (
	"fmt"

	"github.com/godbus/dbus/v5"
	"github.com/google/uuid"
)

// BasePath is the object path prefix for services.
const BasePath dbus.ObjectPath = "/org/bluez/example"

// A Service is a GATT service. Calls to AddCharacteristic must happen
// before the application is registered.
type Service struct {
	uuid    string
	index   int
	primary bool
	chars   []Characteristic
}

// NewService creates a service. It panics if u is not a valid UUID.
func NewService(index int, u string, primary bool) *Service {
	return &Service{
		uuid:    uuid.MustParse(u).String(),
		index:   index,
		primary: primary,
	}
}

// AddCharacteristic appends c to the service. It panics if c belongs to
// another service or if the service already has a characteristic with the
// same index.
func (s *Service) AddCharacteristic(c Characteristic) {
	if c.Service() != s {
		panic(fmt.Sprintf("gatt: characteristic %s belongs to another service", c.UUID()))
	}
	for _, existing := range s.chars {
		if existing.Index() == c.Index() {
			panic(fmt.Sprintf("gatt: service already contains a characteristic with index %d", c.Index()))
		}
	}
	s.chars = append(s.chars, c)
}

// Characteristics returns the characteristics in insertion order.
func (s *Service) Characteristics() []Characteristic {
	return s.chars
}

// UUID returns the service UUID.
func (s *Service) UUID() string { return s.uuid }

// Index returns the service index within its application.
func (s *Service) Index() int { return s.index }

// Primary reports whether this is a primary service.
func (s *Service) Primary() bool { return s.primary }

// Path returns the service object path.
func (s *Service) Path() dbus.ObjectPath {
	return dbus.ObjectPath(fmt.Sprintf("%s/service%d", BasePath, s.index))
}

// ServiceProperties returns the org.bluez.GattService1 properties of s.
func ServiceProperties(s *Service) map[string]dbus.Variant {
	paths := make([]dbus.ObjectPath, 0, len(s.chars))
	for _, c := range s.chars {
		paths = append(paths, c.Path())
	}
	return map[string]dbus.Variant{
		"UUID":            dbus.MakeVariant(s.uuid),
		"Primary":         dbus.MakeVariant(s.primary),
		"Characteristics": dbus.MakeVariant(paths),
	}
}
