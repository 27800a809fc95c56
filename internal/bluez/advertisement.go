package bluez

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
	"github.com/godbus/dbus/v5/prop"
	"github.com/google/uuid"

	"github.com/chaz8081/gatt-peripheral/internal/gatt"
)

// AdvertisementType is the only advertisement type this package produces.
const AdvertisementType = "peripheral"

// Advertisement is an org.bluez.LEAdvertisement1 object.
type Advertisement struct {
	index          int
	localName      string
	includeTxPower bool
	serviceUUIDs   []string

	mu       sync.Mutex
	released bool
}

// NewAdvertisement creates the advertisement at
// /org/bluez/example/advertisement<index>. Service UUIDs are stored in
// canonical lowercase form and must parse.
func NewAdvertisement(index int, localName string, includeTxPower bool, serviceUUIDs ...string) *Advertisement {
	uuids := make([]string, 0, len(serviceUUIDs))
	for _, u := range serviceUUIDs {
		uuids = append(uuids, uuid.MustParse(u).String())
	}
	return &Advertisement{
		index:          index,
		localName:      localName,
		includeTxPower: includeTxPower,
		serviceUUIDs:   uuids,
	}
}

// Path returns the advertisement's object path.
func (a *Advertisement) Path() dbus.ObjectPath {
	return dbus.ObjectPath(fmt.Sprintf("%s/advertisement%d", gatt.BasePath, a.index))
}

// Properties returns the LEAdvertisement1 property set.
func (a *Advertisement) Properties() map[string]dbus.Variant {
	props := map[string]dbus.Variant{
		"Type":         dbus.MakeVariant(AdvertisementType),
		"ServiceUUIDs": dbus.MakeVariant(append([]string(nil), a.serviceUUIDs...)),
	}
	if a.localName != "" {
		props["LocalName"] = dbus.MakeVariant(a.localName)
	}
	if a.includeTxPower {
		props["Includes"] = dbus.MakeVariant([]string{"tx-power"})
	}
	return props
}

// Release is called by BlueZ when it drops the advertisement, and by the
// server on shutdown.
func (a *Advertisement) Release() {
	a.mu.Lock()
	a.released = true
	a.mu.Unlock()
	slog.Info("[BLUEZ] advertisement released", "path", a.Path())
}

// Released reports whether Release has been called.
func (a *Advertisement) Released() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.released
}

// ExportAdvertisement publishes adv on bus with its Release method,
// Properties and introspection data. Calls are served on run.
func ExportAdvertisement(bus Bus, adv *Advertisement, run Invoker) error {
	path := adv.Path()
	methods := map[string]interface{}{
		"Release": func() *dbus.Error {
			return dbusError(run.Invoke(adv.Release))
		},
	}
	if err := bus.ExportMethodTable(methods, path, AdvertisementInterface); err != nil {
		return fmt.Errorf("bluez: export advertisement: %w", err)
	}

	p := &properties{
		path: path,
		lookup: func(iface string) (map[string]dbus.Variant, bool) {
			if iface != AdvertisementInterface {
				return nil, false
			}
			return adv.Properties(), true
		},
		run: run,
	}
	if err := bus.Export(p, path, PropertiesInterface); err != nil {
		return fmt.Errorf("bluez: export advertisement properties: %w", err)
	}

	return exportIntrospection(bus, path, prop.IntrospectData, introspect.Interface{
		Name:    AdvertisementInterface,
		Methods: []introspect.Method{{Name: "Release"}},
		Properties: []introspect.Property{
			{Name: "Type", Type: "s", Access: "read"},
			{Name: "ServiceUUIDs", Type: "as", Access: "read"},
			{Name: "LocalName", Type: "s", Access: "read"},
			{Name: "Includes", Type: "as", Access: "read"},
		},
	})
}
