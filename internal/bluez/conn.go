package bluez

import (
	"context"
	"fmt"

	"github.com/godbus/dbus/v5"
)

// Conn implements Bus on top of a godbus connection.
type Conn struct {
	conn *dbus.Conn
}

// Connect opens a private connection to the "system" or "session" bus.
func Connect(kind string) (*Conn, error) {
	var (
		conn *dbus.Conn
		err  error
	)
	switch kind {
	case "", "system":
		conn, err = dbus.ConnectSystemBus()
	case "session":
		conn, err = dbus.ConnectSessionBus()
	default:
		return nil, fmt.Errorf("bluez: unknown bus %q", kind)
	}
	if err != nil {
		return nil, fmt.Errorf("bluez: connect %s bus: %w", kind, err)
	}
	return &Conn{conn: conn}, nil
}

// Close closes the underlying connection.
func (c *Conn) Close() error {
	return c.conn.Close()
}

func (c *Conn) Call(ctx context.Context, path dbus.ObjectPath, method string, out interface{}, args ...interface{}) error {
	call := c.conn.Object(ServiceName, path).CallWithContext(ctx, method, 0, args...)
	if call.Err != nil {
		return call.Err
	}
	if out == nil {
		return nil
	}
	return call.Store(out)
}

func (c *Conn) Go(path dbus.ObjectPath, method string, args ...interface{}) <-chan error {
	done := make(chan *dbus.Call, 1)
	c.conn.Object(ServiceName, path).Go(method, 0, done, args...)

	errc := make(chan error, 1)
	go func() {
		call := <-done
		errc <- call.Err
	}()
	return errc
}

func (c *Conn) Export(v interface{}, path dbus.ObjectPath, iface string) error {
	return c.conn.Export(v, path, iface)
}

func (c *Conn) ExportMethodTable(methods map[string]interface{}, path dbus.ObjectPath, iface string) error {
	return c.conn.ExportMethodTable(methods, path, iface)
}

func (c *Conn) Emit(path dbus.ObjectPath, name string, values ...interface{}) error {
	return c.conn.Emit(path, name, values...)
}

// Compile-time check that Conn implements Bus.
var _ Bus = (*Conn)(nil)
