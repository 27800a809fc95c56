package probe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/chaz8081/gatt-peripheral/internal/peripheral"
)

var (
	// ErrNotConnected is returned by operations that need a connection.
	ErrNotConnected = errors.New("probe: not connected")
	// ErrUnexpectedLength is returned when a read yields anything but one byte.
	ErrUnexpectedLength = errors.New("probe: unexpected value length")
)

// ClientOptions configures the probe client.
type ClientOptions struct {
	ServiceUUID   string
	ReconnectBase time.Duration // first reconnect delay while watching
	ReconnectMax  time.Duration // reconnect delay cap
}

// DefaultClientOptions returns sensible defaults.
func DefaultClientOptions() ClientOptions {
	return ClientOptions{
		ServiceUUID:   peripheral.ServiceUUID,
		ReconnectBase: time.Second,
		ReconnectMax:  30 * time.Second,
	}
}

// Client talks to one peripheral.
type Client struct {
	adapter Adapter
	address string
	opts    ClientOptions

	mu    sync.Mutex
	conn  Connection
	chars map[string]Characteristic
}

// NewClient creates a client for the device at address.
func NewClient(adapter Adapter, address string, opts ClientOptions) *Client {
	def := DefaultClientOptions()
	if opts.ServiceUUID == "" {
		opts.ServiceUUID = def.ServiceUUID
	}
	if opts.ReconnectBase <= 0 {
		opts.ReconnectBase = def.ReconnectBase
	}
	if opts.ReconnectMax <= 0 {
		opts.ReconnectMax = def.ReconnectMax
	}
	return &Client{adapter: adapter, address: address, opts: opts}
}

// Connect powers on the adapter and connects to the device.
func (c *Client) Connect(ctx context.Context) error {
	if err := c.adapter.Enable(); err != nil {
		return fmt.Errorf("probe: enable adapter: %w", err)
	}
	return c.dial(ctx)
}

func (c *Client) dial(ctx context.Context) error {
	conn, err := c.adapter.Connect(ctx, c.address)
	if err != nil {
		return fmt.Errorf("probe: connect to %s: %w", c.address, err)
	}

	c.mu.Lock()
	c.conn = conn
	c.chars = make(map[string]Characteristic)
	c.mu.Unlock()

	slog.Info("[PROBE] connected", "address", c.address)
	return nil
}

// characteristic discovers charUUID once per connection.
func (c *Client) characteristic(charUUID string) (Characteristic, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil, ErrNotConnected
	}
	if ch, ok := c.chars[charUUID]; ok {
		return ch, nil
	}
	ch, err := c.conn.DiscoverCharacteristic(c.opts.ServiceUUID, charUUID)
	if err != nil {
		return nil, fmt.Errorf("probe: discover %s: %w", charUUID, err)
	}
	c.chars[charUUID] = ch
	return ch, nil
}

// ReadByte reads a single-byte characteristic.
func (c *Client) ReadByte(charUUID string) (byte, error) {
	ch, err := c.characteristic(charUUID)
	if err != nil {
		return 0, err
	}
	data, err := ch.Read()
	if err != nil {
		return 0, fmt.Errorf("probe: read %s: %w", charUUID, err)
	}
	if len(data) != 1 {
		return 0, fmt.Errorf("%w: read %d bytes from %s", ErrUnexpectedLength, len(data), charUUID)
	}
	return data[0], nil
}

// WriteByte writes v to a characteristic.
func (c *Client) WriteByte(charUUID string, v byte) error {
	return c.Write(charUUID, []byte{v})
}

// Write sends raw data, which lets callers check that the peripheral
// rejects values of the wrong length.
func (c *Client) Write(charUUID string, data []byte) error {
	ch, err := c.characteristic(charUUID)
	if err != nil {
		return err
	}
	if err := ch.Write(data); err != nil {
		return fmt.Errorf("probe: write %s: %w", charUUID, err)
	}
	return nil
}

// Watch subscribes to the counter characteristic and calls fn for each
// notification until ctx ends. Dropped connections are re-established with
// exponential backoff.
func (c *Client) Watch(ctx context.Context, fn func(v byte)) error {
	for attempt := 0; ; attempt++ {
		dropped, err := c.subscribe(fn)
		if err == nil {
			attempt = 0
			select {
			case <-ctx.Done():
				return nil
			case <-dropped:
				slog.Warn("[PROBE] disconnected, reconnecting...")
				c.setDisconnected()
			}
		} else if errors.Is(err, ErrNotConnected) {
			slog.Debug("[PROBE] not connected, dialing")
		} else {
			return err
		}

		for {
			delay := backoffDelay(attempt, c.opts.ReconnectBase, c.opts.ReconnectMax)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(delay):
			}
			if err := c.dial(ctx); err != nil {
				slog.Warn("[PROBE] reconnect failed", "error", err, "attempt", attempt+1)
				attempt++
				continue
			}
			break
		}
	}
}

func (c *Client) subscribe(fn func(byte)) (<-chan struct{}, error) {
	ch, err := c.characteristic(peripheral.NotifyCharUUID)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	dropped := make(chan struct{})
	var once sync.Once
	conn.OnDisconnect(func() { once.Do(func() { close(dropped) }) })

	if err := ch.Subscribe(func(data []byte) {
		if len(data) != 1 {
			slog.Debug("[PROBE] ignoring notification", "len", len(data))
			return
		}
		fn(data[0])
	}); err != nil {
		return nil, fmt.Errorf("probe: subscribe: %w", err)
	}
	return dropped, nil
}

func (c *Client) setDisconnected() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn = nil
	c.chars = nil
}

// Close disconnects from the device.
func (c *Client) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.chars = nil
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	return conn.Disconnect()
}

// backoffDelay returns base * 2^attempt, capped at max.
func backoffDelay(attempt int, base, max time.Duration) time.Duration {
	delay := base
	for i := 0; i < attempt && delay < max; i++ {
		delay *= 2
	}
	if delay > max {
		return max
	}
	return delay
}
