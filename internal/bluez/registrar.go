package bluez

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/godbus/dbus/v5"
)

// Registrar registers objects with one adapter's GATT and advertising
// managers. Replies are delivered on the event loop.
type Registrar struct {
	bus     Bus
	loop    Poster
	adapter dbus.ObjectPath
}

// NewRegistrar returns a Registrar for adapter.
func NewRegistrar(bus Bus, loop Poster, adapter dbus.ObjectPath) *Registrar {
	return &Registrar{bus: bus, loop: loop, adapter: adapter}
}

// Adapter returns the adapter path.
func (r *Registrar) Adapter() dbus.ObjectPath {
	return r.adapter
}

// RegisterApplication asks BlueZ to register the application rooted at
// app. Exactly one of onSuccess or onError runs on the loop once the reply
// arrives.
func (r *Registrar) RegisterApplication(app dbus.ObjectPath, onSuccess func(), onError func(error)) {
	r.register(registerApplication, app, onSuccess, onError)
}

// RegisterAdvertisement is RegisterApplication for an advertisement.
func (r *Registrar) RegisterAdvertisement(adv dbus.ObjectPath, onSuccess func(), onError func(error)) {
	r.register(registerAdvertisement, adv, onSuccess, onError)
}

func (r *Registrar) register(method string, path dbus.ObjectPath, onSuccess func(), onError func(error)) {
	slog.Debug("[BLUEZ] registering", "method", method, "adapter", r.adapter, "path", path)
	errc := r.bus.Go(r.adapter, method, path, map[string]dbus.Variant{})
	go func() {
		err := <-errc
		posted := r.loop.Post(func() {
			if err != nil {
				onError(err)
				return
			}
			onSuccess()
		})
		if !posted {
			slog.Debug("[BLUEZ] reply after loop stopped", "method", method, "path", path, "error", err)
		}
	}()
}

// UnregisterAdvertisement removes a registered advertisement.
func (r *Registrar) UnregisterAdvertisement(ctx context.Context, adv dbus.ObjectPath) error {
	if err := r.bus.Call(ctx, r.adapter, unregisterAdvertisement, nil, adv); err != nil {
		return fmt.Errorf("bluez: unregister advertisement %s: %w", adv, err)
	}
	return nil
}
