package peripheral

import (
	"log/slog"
	"time"

	"github.com/chaz8081/gatt-peripheral/internal/gatt"
)

// NotifyCharacteristic pushes an incrementing counter every period while a
// central is subscribed. It is also readable.
type NotifyCharacteristic struct {
	gatt.Base

	scheduler gatt.Scheduler
	emitter   gatt.Emitter
	period    time.Duration

	notifying bool
	scheduled bool // a timer is pending; cleared when tick ends it
	z         byte
}

// ReadValue returns the current counter.
func (c *NotifyCharacteristic) ReadValue(gatt.Options) ([]byte, error) {
	return []byte{c.z}, nil
}

// StartNotify starts the periodic timer unless it is already running.
func (c *NotifyCharacteristic) StartNotify() error {
	if c.notifying {
		return nil
	}
	c.notifying = true
	if !c.scheduled {
		c.scheduled = true
		c.scheduler.AddTimeout(c.period, c.tick)
	}
	slog.Debug("[GATT] notify started", "uuid", c.UUID(), "period", c.period)
	return nil
}

// StopNotify clears the flag. The pending tick sees it and does not reschedule.
func (c *NotifyCharacteristic) StopNotify() error {
	c.notifying = false
	slog.Debug("[GATT] notify stopped", "uuid", c.UUID())
	return nil
}

// Notifying reports whether a central is subscribed.
func (c *NotifyCharacteristic) Notifying() bool {
	return c.notifying
}

// tick is the timer callback. Returning false ends the timer.
func (c *NotifyCharacteristic) tick() bool {
	if !c.notifying {
		c.scheduled = false
		return false
	}

	if c.z == 0xff {
		c.z = 0
	} else {
		c.z++
	}

	if err := c.emitter.ValueChanged(c.Path(), []byte{c.z}); err != nil {
		slog.Warn("[GATT] notify emit failed", "uuid", c.UUID(), "error", err)
	}
	return true
}

// ReadOnlyCharacteristic exposes the service's x field.
type ReadOnlyCharacteristic struct {
	gatt.Base
	svc *Service
}

// ReadValue returns x.
func (c *ReadOnlyCharacteristic) ReadValue(gatt.Options) ([]byte, error) {
	slog.Debug("[GATT] read", "uuid", c.UUID(), "x", c.svc.x)
	return []byte{c.svc.x}, nil
}

// WriteOnlyCharacteristic stores into the service's x field.
type WriteOnlyCharacteristic struct {
	gatt.Base
	svc *Service
}

// WriteValue sets x. value must be exactly one byte.
func (c *WriteOnlyCharacteristic) WriteValue(value []byte, _ gatt.Options) error {
	slog.Debug("[GATT] write", "uuid", c.UUID(), "value", value)
	b, err := singleByte(value)
	if err != nil {
		return err
	}
	c.svc.x = b
	return nil
}

// ReadWriteCharacteristic reads and writes the service's y field.
type ReadWriteCharacteristic struct {
	gatt.Base
	svc *Service
}

// ReadValue returns y.
func (c *ReadWriteCharacteristic) ReadValue(gatt.Options) ([]byte, error) {
	slog.Debug("[GATT] read", "uuid", c.UUID(), "y", c.svc.y)
	return []byte{c.svc.y}, nil
}

// WriteValue sets y. value must be exactly one byte.
func (c *ReadWriteCharacteristic) WriteValue(value []byte, _ gatt.Options) error {
	slog.Debug("[GATT] write", "uuid", c.UUID(), "value", value)
	b, err := singleByte(value)
	if err != nil {
		return err
	}
	c.svc.y = b
	return nil
}

func singleByte(value []byte) (byte, error) {
	if len(value) != 1 {
		return 0, gatt.ErrInvalidValueLength
	}
	return value[0], nil
}

// Compile-time checks that each role exposes exactly its capabilities.
var (
	_ gatt.Reader   = (*NotifyCharacteristic)(nil)
	_ gatt.Notifier = (*NotifyCharacteristic)(nil)
	_ gatt.Reader   = (*ReadOnlyCharacteristic)(nil)
	_ gatt.Writer   = (*WriteOnlyCharacteristic)(nil)
	_ gatt.Reader   = (*ReadWriteCharacteristic)(nil)
	_ gatt.Writer   = (*ReadWriteCharacteristic)(nil)
)
