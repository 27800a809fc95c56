package bluez

import (
	"github.com/godbus/dbus/v5"

	"github.com/chaz8081/gatt-peripheral/internal/gatt"
)

// Emitter sends characteristic value changes as PropertiesChanged signals,
// which BlueZ forwards to subscribed centrals as notifications.
type Emitter struct {
	bus Bus
}

// NewEmitter returns an Emitter that signals on bus.
func NewEmitter(bus Bus) *Emitter {
	return &Emitter{bus: bus}
}

// ValueChanged emits PropertiesChanged(GattCharacteristic1, {"Value": value}, []).
func (e *Emitter) ValueChanged(path dbus.ObjectPath, value []byte) error {
	changed := map[string]dbus.Variant{"Value": dbus.MakeVariant(value)}
	return e.bus.Emit(path, propertiesChangedSignal, gatt.CharacteristicInterface, changed, []string{})
}

var _ gatt.Emitter = (*Emitter)(nil)
