// Package probe is a BLE central for exercising the peripheral from another
// machine. It scans for the service, reads and writes the byte
// characteristics, and follows counter notifications.
package probe

import (
	"context"
	"fmt"
	"sort"

	"github.com/chaz8081/gatt-peripheral/internal/peripheral"
)

// Characteristic represents a BLE GATT characteristic on the remote device.
type Characteristic interface {
	// Read fetches the current value.
	Read() ([]byte, error)
	// Write sends data to the characteristic and waits for the response.
	Write(data []byte) error
	// Subscribe registers a callback for notifications on this characteristic.
	Subscribe(callback func(data []byte)) error
}

// Device represents a discovered BLE peripheral.
type Device struct {
	Name    string
	Address string
	RSSI    int
}

// Connection represents an active BLE connection to a peripheral.
type Connection interface {
	// DiscoverCharacteristic finds a characteristic by UUID within a service.
	DiscoverCharacteristic(serviceUUID, charUUID string) (Characteristic, error)
	// Disconnect terminates the connection.
	Disconnect() error
	// OnDisconnect registers a callback invoked when the connection drops.
	OnDisconnect(callback func())
}

// Adapter abstracts the BLE hardware adapter for testing.
type Adapter interface {
	// Enable powers on the BLE adapter.
	Enable() error
	// Scan discovers BLE peripherals advertising the given service UUID.
	// Returns discovered devices until ctx is cancelled or timeout.
	Scan(ctx context.Context, serviceUUID string) ([]Device, error)
	// Connect establishes a connection to the device with the given address.
	Connect(ctx context.Context, address string) (Connection, error)
}

// characteristicNames maps the short names used on the command line to the
// peripheral's characteristic UUIDs.
var characteristicNames = map[string]string{
	"notify": peripheral.NotifyCharUUID,
	"read":   peripheral.ReadCharUUID,
	"write":  peripheral.WriteCharUUID,
	"rw":     peripheral.ReadWriteCharUUID,
}

// CharacteristicUUID resolves a short name ("notify", "read", "write", "rw")
// to its UUID.
func CharacteristicUUID(name string) (string, error) {
	u, ok := characteristicNames[name]
	if !ok {
		return "", fmt.Errorf("probe: unknown characteristic %q (want one of %v)", name, CharacteristicNames())
	}
	return u, nil
}

// CharacteristicNames returns the accepted short names in sorted order.
func CharacteristicNames() []string {
	names := make([]string, 0, len(characteristicNames))
	for n := range characteristicNames {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
