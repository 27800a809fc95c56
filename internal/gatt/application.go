package gatt

import (
	"fmt"

	"github.com/godbus/dbus/v5"
)

// DefaultRootPath is where the application's object manager lives.
const DefaultRootPath dbus.ObjectPath = "/"

// ManagedObjects is the reply shape of ObjectManager.GetManagedObjects.
type ManagedObjects map[dbus.ObjectPath]map[string]map[string]dbus.Variant

// An Application is the unit registered with org.bluez.GattManager1.
type Application struct {
	path     dbus.ObjectPath
	services []*Service
}

// NewApplication creates an empty application rooted at path.
// An empty path means DefaultRootPath.
func NewApplication(path dbus.ObjectPath) *Application {
	if path == "" {
		path = DefaultRootPath
	}
	return &Application{path: path}
}

// Path returns the object manager path passed to RegisterApplication.
func (a *Application) Path() dbus.ObjectPath { return a.path }

// AddService appends s. It panics on a duplicate service index.
func (a *Application) AddService(s *Service) {
	for _, existing := range a.services {
		if existing.Index() == s.Index() {
			panic(fmt.Sprintf("gatt: application already contains a service with index %d", s.Index()))
		}
	}
	a.services = append(a.services, s)
}

// Services returns the services in insertion order.
func (a *Application) Services() []*Service {
	return a.services
}

// ManagedObjects walks the tree and returns every object path with its
// interfaces and properties.
func (a *Application) ManagedObjects() ManagedObjects {
	objects := ManagedObjects{
		a.path: {ObjectManagerInterface: {}},
	}
	for _, s := range a.services {
		objects[s.Path()] = map[string]map[string]dbus.Variant{
			ServiceInterface: ServiceProperties(s),
		}
		for _, c := range s.Characteristics() {
			objects[c.Path()] = map[string]map[string]dbus.Variant{
				CharacteristicInterface: CharacteristicProperties(c),
			}
		}
	}
	return objects
}

// Properties returns the properties of the object at path for iface.
// ok is false if no such object or interface exists in the tree.
func (a *Application) Properties(path dbus.ObjectPath, iface string) (props map[string]dbus.Variant, ok bool) {
	ifaces, ok := a.ManagedObjects()[path]
	if !ok {
		return nil, false
	}
	props, ok = ifaces[iface]
	return props, ok
}

// Characteristic finds the characteristic exported at path.
func (a *Application) Characteristic(path dbus.ObjectPath) (Characteristic, bool) {
	for _, s := range a.services {
		for _, c := range s.Characteristics() {
			if c.Path() == path {
				return c, true
			}
		}
	}
	return nil, false
}
