// Package server runs the peripheral: it finds an adapter, exports the
// application and advertisement, registers both with BlueZ and serves
// requests on the event loop until the context ends or registration fails.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/chaz8081/gatt-peripheral/internal/bluez"
	"github.com/chaz8081/gatt-peripheral/internal/loop"
	"github.com/chaz8081/gatt-peripheral/internal/peripheral"
)

// DefaultShutdownTimeout bounds the UnregisterAdvertisement call on exit.
const DefaultShutdownTimeout = 2 * time.Second

// Config holds the runtime settings of a Server.
type Config struct {
	Adapter         string // "" picks the first capable adapter
	LocalName       string
	IncludeTxPower  bool
	NotifyInterval  time.Duration
	ShutdownTimeout time.Duration
}

// Server owns one peripheral session on a bus.
type Server struct {
	bus bluez.Bus
	cfg Config

	// set during Run
	adapter string
	adv     *bluez.Advertisement
}

// New creates a Server. Zero durations in cfg take their defaults.
func New(bus bluez.Bus, cfg Config) *Server {
	if cfg.NotifyInterval <= 0 {
		cfg.NotifyInterval = peripheral.DefaultNotifyPeriod
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}
	return &Server{bus: bus, cfg: cfg}
}

// Run blocks until ctx is cancelled or BlueZ rejects a registration.
// It returns bluez.ErrAdapterNotFound if no adapter qualifies and an error
// wrapping bluez.ErrRegistrationFailed if a registration is rejected.
// Cancellation is a clean shutdown and returns nil.
func (s *Server) Run(ctx context.Context) error {
	adapter, err := bluez.FindAdapter(ctx, s.bus, s.cfg.Adapter)
	if err != nil {
		return err
	}
	s.adapter = string(adapter)
	slog.Info("[BLUEZ] using adapter", "path", adapter)

	l := loop.New(0)

	app := peripheral.NewApplication(peripheral.Options{
		Scheduler:    l,
		Emitter:      bluez.NewEmitter(s.bus),
		NotifyPeriod: s.cfg.NotifyInterval,
	})
	if err := bluez.ExportApplication(s.bus, app, l); err != nil {
		return err
	}

	adv := bluez.NewAdvertisement(0, s.cfg.LocalName, s.cfg.IncludeTxPower, peripheral.ServiceUUID)
	if err := bluez.ExportAdvertisement(s.bus, adv, l); err != nil {
		return err
	}
	s.adv = adv

	reg := bluez.NewRegistrar(s.bus, l, adapter)
	reg.RegisterApplication(app.Path(),
		func() { slog.Info("[BLUEZ] application registered", "path", app.Path()) },
		func(err error) {
			slog.Error("[BLUEZ] register application failed", "error", err)
			l.Quit(fmt.Errorf("%w: application: %v", bluez.ErrRegistrationFailed, err))
		})
	reg.RegisterAdvertisement(adv.Path(),
		func() { slog.Info("[BLUEZ] advertisement registered", "path", adv.Path()) },
		func(err error) {
			slog.Error("[BLUEZ] register advertisement failed", "error", err)
			l.Quit(fmt.Errorf("%w: advertisement: %v", bluez.ErrRegistrationFailed, err))
		})

	if err := l.Run(ctx); err != nil {
		return err
	}

	slog.Info("[BLUEZ] shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := reg.UnregisterAdvertisement(sctx, adv.Path()); err != nil {
		slog.Warn("[BLUEZ] unregister advertisement", "error", err)
	}
	adv.Release()
	return nil
}
