package probe

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"
)

// ErrNoDevice is returned when a scan finds no peripheral.
var ErrNoDevice = errors.New("probe: no device advertising the service")

// ScanForDevices scans for peripherals advertising serviceUUID and returns
// them strongest signal first.
func ScanForDevices(ctx context.Context, adapter Adapter, serviceUUID string, timeout time.Duration) ([]Device, error) {
	if err := adapter.Enable(); err != nil {
		return nil, fmt.Errorf("probe: enable adapter: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	devices, err := adapter.Scan(ctx, serviceUUID)
	if err != nil {
		return nil, fmt.Errorf("probe: scan: %w", err)
	}
	sort.SliceStable(devices, func(i, j int) bool { return devices[i].RSSI > devices[j].RSSI })
	return devices, nil
}

// Resolve returns address if set, otherwise the address of the strongest
// peripheral found by a scan, preferring one whose name matches.
func Resolve(ctx context.Context, adapter Adapter, address, name, serviceUUID string, timeout time.Duration) (string, error) {
	if address != "" {
		return address, nil
	}
	devices, err := ScanForDevices(ctx, adapter, serviceUUID, timeout)
	if err != nil {
		return "", err
	}
	if len(devices) == 0 {
		return "", ErrNoDevice
	}
	for _, d := range devices {
		if name != "" && d.Name == name {
			return d.Address, nil
		}
	}
	return devices[0].Address, nil
}
