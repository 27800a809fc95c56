package bluez

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/godbus/dbus/v5"
)

// AdapterPath turns "hci0" into "/org/bluez/hci0". Full paths are returned unchanged.
func AdapterPath(name string) dbus.ObjectPath {
	if name == "" || strings.HasPrefix(name, "/") {
		return dbus.ObjectPath(name)
	}
	return dbus.ObjectPath("/org/bluez/" + name)
}

// FindAdapter returns the first adapter, in object path order, that exposes
// both the GATT manager and the LE advertising manager. If preferred is set,
// only that adapter is considered.
func FindAdapter(ctx context.Context, bus Bus, preferred string) (dbus.ObjectPath, error) {
	var objects map[dbus.ObjectPath]map[string]map[string]dbus.Variant
	if err := bus.Call(ctx, "/", getManagedObjects, &objects); err != nil {
		return "", fmt.Errorf("bluez: get managed objects: %w", err)
	}

	paths := make([]dbus.ObjectPath, 0, len(objects))
	for p := range objects {
		paths = append(paths, p)
	}
	sort.Slice(paths, func(i, j int) bool { return paths[i] < paths[j] })

	want := AdapterPath(preferred)
	for _, p := range paths {
		if want != "" && p != want {
			continue
		}
		ifaces := objects[p]
		_, hasGatt := ifaces[GattManagerInterface]
		_, hasAdv := ifaces[AdvertisingManagerInterface]
		if hasGatt && hasAdv {
			return p, nil
		}
		if _, ok := ifaces[AdapterInterface]; ok {
			slog.Debug("[BLUEZ] skipping adapter", "path", p, "gatt_manager", hasGatt, "advertising_manager", hasAdv)
		}
	}

	if want != "" {
		return "", fmt.Errorf("%w: %s lacks GATT or advertising support", ErrAdapterNotFound, want)
	}
	return "", ErrAdapterNotFound
}
