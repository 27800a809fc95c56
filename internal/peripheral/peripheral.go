// Package peripheral defines the demo GATT service: one primary service
// with a notifying counter, a read-only and a write-only characteristic
// sharing the x field, and a read/write characteristic on the y field.
package peripheral

import (
	"time"

	"github.com/chaz8081/gatt-peripheral/internal/gatt"
)

// Advertised identifiers.
const (
	LocalName = "jumpnow"

	ServiceUUID         = "bc5f3500-fc8e-4704-a4c9-7311da5d6a9b"
	NotifyCharUUID      = "bc5f3501-fc8e-4704-a4c9-7311da5d6a9b"
	WriteCharUUID       = "bc5f3502-fc8e-4704-a4c9-7311da5d6a9b"
	ReadCharUUID        = "bc5f3503-fc8e-4704-a4c9-7311da5d6a9b"
	ReadWriteCharUUID   = "bc5f3504-fc8e-4704-a4c9-7311da5d6a9b"
	DefaultNotifyPeriod = 5 * time.Second
)

// Characteristic indices within the service.
const (
	NotifyIndex = iota
	ReadIndex
	WriteIndex
	ReadWriteIndex
)

// Default values of the shared service fields.
const (
	DefaultX byte = 10
	DefaultY byte = 20
)

// Options wires the service to the event loop and the bus. Scheduler and
// Emitter are required.
type Options struct {
	Scheduler    gatt.Scheduler
	Emitter      gatt.Emitter
	NotifyPeriod time.Duration // default 5s
}

// Service is the demo GATT service. x and y are only touched from the
// event loop, so they need no locking.
type Service struct {
	*gatt.Service

	x byte
	y byte
}

// NewService builds the service and its four characteristics.
func NewService(index int, opts Options) *Service {
	if opts.Scheduler == nil || opts.Emitter == nil {
		panic("peripheral: NewService needs a Scheduler and an Emitter")
	}
	if opts.NotifyPeriod <= 0 {
		opts.NotifyPeriod = DefaultNotifyPeriod
	}

	s := &Service{
		Service: gatt.NewService(index, ServiceUUID, true),
		x:       DefaultX,
		y:       DefaultY,
	}

	s.AddCharacteristic(&NotifyCharacteristic{
		Base:      gatt.NewBase(s.Service, NotifyIndex, NotifyCharUUID),
		scheduler: opts.Scheduler,
		emitter:   opts.Emitter,
		period:    opts.NotifyPeriod,
	})
	s.AddCharacteristic(&ReadOnlyCharacteristic{
		Base: gatt.NewBase(s.Service, ReadIndex, ReadCharUUID),
		svc:  s,
	})
	s.AddCharacteristic(&WriteOnlyCharacteristic{
		Base: gatt.NewBase(s.Service, WriteIndex, WriteCharUUID),
		svc:  s,
	})
	s.AddCharacteristic(&ReadWriteCharacteristic{
		Base: gatt.NewBase(s.Service, ReadWriteIndex, ReadWriteCharUUID),
		svc:  s,
	})
	return s
}

// NewApplication returns an application holding a single demo service at index 0.
func NewApplication(opts Options) *gatt.Application {
	app := gatt.NewApplication(gatt.DefaultRootPath)
	app.AddService(NewService(0, opts).Service)
	return app
}
