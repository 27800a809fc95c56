package bluez

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
	"github.com/godbus/dbus/v5/prop"

	"github.com/chaz8081/gatt-peripheral/internal/gatt"
)

var errInvalidArguments = errors.New("bluez: invalid arguments")

// properties serves org.freedesktop.DBus.Properties for one object path.
// Values come from lookup on every call, so they always match the tree.
type properties struct {
	path   dbus.ObjectPath
	lookup func(iface string) (map[string]dbus.Variant, bool)
	run    Invoker
}

func (p *properties) GetAll(iface string) (map[string]dbus.Variant, *dbus.Error) {
	var (
		props map[string]dbus.Variant
		ok    bool
	)
	if err := p.run.Invoke(func() { props, ok = p.lookup(iface) }); err != nil {
		return nil, dbusError(err)
	}
	if !ok {
		return nil, dbusError(fmt.Errorf("%w: %s has no interface %s", errInvalidArguments, p.path, iface))
	}
	return props, nil
}

func (p *properties) Get(iface, name string) (dbus.Variant, *dbus.Error) {
	props, derr := p.GetAll(iface)
	if derr != nil {
		return dbus.Variant{}, derr
	}
	v, ok := props[name]
	if !ok {
		return dbus.Variant{}, dbusError(fmt.Errorf("%w: %s has no property %s", errInvalidArguments, iface, name))
	}
	return v, nil
}

func (p *properties) Set(iface, name string, _ dbus.Variant) *dbus.Error {
	return dbusError(fmt.Errorf("%w: %s.%s is read-only", gatt.ErrNotPermitted, iface, name))
}

// objectManager answers GetManagedObjects by walking the application.
type objectManager struct {
	app *gatt.Application
	run Invoker
}

func (m *objectManager) GetManagedObjects() (gatt.ManagedObjects, *dbus.Error) {
	var objects gatt.ManagedObjects
	if err := m.run.Invoke(func() { objects = m.app.ManagedObjects() }); err != nil {
		return nil, dbusError(err)
	}
	return objects, nil
}

// ExportApplication publishes app on bus: the object manager at the
// application root, and Properties plus the GATT interfaces on every service
// and characteristic. Every call is served on run.
func ExportApplication(bus Bus, app *gatt.Application, run Invoker) error {
	root := app.Path()
	if err := bus.Export(&objectManager{app: app, run: run}, root, ObjectManagerInterface); err != nil {
		return fmt.Errorf("bluez: export object manager: %w", err)
	}
	if err := exportIntrospection(bus, root, objectManagerIntrospection); err != nil {
		return err
	}

	for _, s := range app.Services() {
		if err := exportProperties(bus, app, s.Path(), run); err != nil {
			return err
		}
		if err := exportIntrospection(bus, s.Path(), prop.IntrospectData, serviceIntrospection); err != nil {
			return err
		}

		for _, c := range s.Characteristics() {
			methods := characteristicMethods(c, run)
			if err := bus.ExportMethodTable(methods, c.Path(), gatt.CharacteristicInterface); err != nil {
				return fmt.Errorf("bluez: export characteristic %s: %w", c.Path(), err)
			}
			if err := exportProperties(bus, app, c.Path(), run); err != nil {
				return err
			}
			if err := exportIntrospection(bus, c.Path(), prop.IntrospectData, characteristicIntrospection(c)); err != nil {
				return err
			}
			slog.Debug("[BLUEZ] exported characteristic", "path", c.Path(), "uuid", c.UUID(), "flags", gatt.Flags(c))
		}
	}
	return nil
}

func exportProperties(bus Bus, app *gatt.Application, path dbus.ObjectPath, run Invoker) error {
	p := &properties{
		path:   path,
		lookup: func(iface string) (map[string]dbus.Variant, bool) { return app.Properties(path, iface) },
		run:    run,
	}
	if err := bus.Export(p, path, PropertiesInterface); err != nil {
		return fmt.Errorf("bluez: export properties %s: %w", path, err)
	}
	return nil
}

// characteristicMethods builds the GattCharacteristic1 method table for c.
// Only the operations c implements are present; BlueZ gets UnknownMethod
// for the rest.
func characteristicMethods(c gatt.Characteristic, run Invoker) map[string]interface{} {
	methods := map[string]interface{}{}
	path := c.Path()

	if r, ok := c.(gatt.Reader); ok {
		methods["ReadValue"] = func(opts map[string]dbus.Variant) ([]byte, *dbus.Error) {
			var (
				value []byte
				err   error
			)
			if ierr := run.Invoke(func() { value, err = r.ReadValue(gatt.Options(opts)) }); ierr != nil {
				return nil, dbusError(ierr)
			}
			if err != nil {
				slog.Debug("[BLUEZ] read rejected", "path", path, "error", err)
				return nil, dbusError(err)
			}
			return value, nil
		}
	}

	if w, ok := c.(gatt.Writer); ok {
		methods["WriteValue"] = func(value []byte, opts map[string]dbus.Variant) *dbus.Error {
			var err error
			if ierr := run.Invoke(func() { err = w.WriteValue(value, gatt.Options(opts)) }); ierr != nil {
				return dbusError(ierr)
			}
			if err != nil {
				slog.Debug("[BLUEZ] write rejected", "path", path, "len", len(value), "error", err)
			}
			return dbusError(err)
		}
	}

	if n, ok := c.(gatt.Notifier); ok {
		methods["StartNotify"] = func() *dbus.Error {
			var err error
			if ierr := run.Invoke(func() { err = n.StartNotify() }); ierr != nil {
				return dbusError(ierr)
			}
			return dbusError(err)
		}
		methods["StopNotify"] = func() *dbus.Error {
			var err error
			if ierr := run.Invoke(func() { err = n.StopNotify() }); ierr != nil {
				return dbusError(ierr)
			}
			return dbusError(err)
		}
	}

	return methods
}

func exportIntrospection(bus Bus, path dbus.ObjectPath, ifaces ...introspect.Interface) error {
	node := &introspect.Node{
		Name:       string(path),
		Interfaces: append([]introspect.Interface{introspect.IntrospectData}, ifaces...),
	}
	if err := bus.Export(introspect.NewIntrospectable(node), path, IntrospectInterface); err != nil {
		return fmt.Errorf("bluez: export introspection %s: %w", path, err)
	}
	return nil
}

var objectManagerIntrospection = introspect.Interface{
	Name: ObjectManagerInterface,
	Methods: []introspect.Method{{
		Name: "GetManagedObjects",
		Args: []introspect.Arg{{Name: "objects", Type: "a{oa{sa{sv}}}", Direction: "out"}},
	}},
}

var serviceIntrospection = introspect.Interface{
	Name: gatt.ServiceInterface,
	Properties: []introspect.Property{
		{Name: "UUID", Type: "s", Access: "read"},
		{Name: "Primary", Type: "b", Access: "read"},
		{Name: "Characteristics", Type: "ao", Access: "read"},
	},
}

func characteristicIntrospection(c gatt.Characteristic) introspect.Interface {
	iface := introspect.Interface{
		Name: gatt.CharacteristicInterface,
		Properties: []introspect.Property{
			{Name: "Service", Type: "o", Access: "read"},
			{Name: "UUID", Type: "s", Access: "read"},
			{Name: "Flags", Type: "as", Access: "read"},
			{Name: "Descriptors", Type: "ao", Access: "read"},
		},
	}
	options := introspect.Arg{Name: "options", Type: "a{sv}", Direction: "in"}
	if _, ok := c.(gatt.Reader); ok {
		iface.Methods = append(iface.Methods, introspect.Method{
			Name: "ReadValue",
			Args: []introspect.Arg{options, {Name: "value", Type: "ay", Direction: "out"}},
		})
	}
	if _, ok := c.(gatt.Writer); ok {
		iface.Methods = append(iface.Methods, introspect.Method{
			Name: "WriteValue",
			Args: []introspect.Arg{{Name: "value", Type: "ay", Direction: "in"}, options},
		})
	}
	if _, ok := c.(gatt.Notifier); ok {
		iface.Methods = append(iface.Methods,
			introspect.Method{Name: "StartNotify"},
			introspect.Method{Name: "StopNotify"},
		)
	}
	return iface
}
