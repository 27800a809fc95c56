// Command gatt-probe is a BLE central for checking a running gatt-peripheral
// from another machine.
//
// Usage:
//
//	go run ./cmd/gatt-probe scan
//	go run ./cmd/gatt-probe write write 0x2a
//	go run ./cmd/gatt-probe read read
//	go run ./cmd/gatt-probe watch
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/alecthomas/kong"

	"github.com/chaz8081/gatt-peripheral/internal/config"
	"github.com/chaz8081/gatt-peripheral/internal/peripheral"
	"github.com/chaz8081/gatt-peripheral/internal/probe"
)

// CLI is the root command structure for gatt-probe.
type CLI struct {
	Verbose bool   `short:"v" help:"Enable verbose debug output"`
	Config  string `type:"path" help:"Config file (default: ~/.config/gatt-peripheral/config.yaml)"`
	Address string `short:"a" help:"Device address; scan for the service when empty"`
	Name    string `default:"${local_name}" help:"Prefer the device with this local name when scanning"`

	Scan  ScanCmd  `cmd:"" help:"List devices advertising the service"`
	Read  ReadCmd  `cmd:"" help:"Read a characteristic"`
	Write WriteCmd `cmd:"" help:"Write one byte to a characteristic"`
	Watch WatchCmd `cmd:"" help:"Print counter notifications until interrupted"`
}

// session carries what every command needs after flag parsing.
type session struct {
	cfg     *config.Config
	adapter probe.Adapter
}

func (c *CLI) session() (*session, error) {
	level := slog.LevelInfo
	if c.Verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	cfg := config.Default()
	path := c.Config
	if path == "" {
		if _, err := os.Stat(config.DefaultConfigPath()); err == nil {
			path = config.DefaultConfigPath()
		}
	}
	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	if c.Address != "" {
		cfg.Probe.Address = c.Address
	}
	return &session{cfg: cfg, adapter: probe.NewBluetoothAdapter()}, nil
}

// connect resolves the device and returns a connected client.
func (c *CLI) connect(ctx context.Context) (*probe.Client, error) {
	s, err := c.session()
	if err != nil {
		return nil, err
	}
	addr, err := probe.Resolve(ctx, s.adapter, s.cfg.Probe.Address, c.Name, s.cfg.Probe.ServiceUUID, s.cfg.Probe.ScanTimeout)
	if err != nil {
		return nil, err
	}

	opts := probe.DefaultClientOptions()
	opts.ServiceUUID = s.cfg.Probe.ServiceUUID
	client := probe.NewClient(s.adapter, addr, opts)
	if err := client.Connect(ctx); err != nil {
		return nil, err
	}
	return client, nil
}

// --- Scan Command ---

type ScanCmd struct {
	Timeout time.Duration `default:"0s" help:"Scan duration (default from config)"`
}

func (cmd *ScanCmd) Run(globals *CLI) error {
	s, err := globals.session()
	if err != nil {
		return err
	}
	timeout := cmd.Timeout
	if timeout <= 0 {
		timeout = s.cfg.Probe.ScanTimeout
	}
	fmt.Printf("Scanning for %s (%s)...\n", s.cfg.Probe.ServiceUUID, timeout)
	devices, err := probe.ScanForDevices(context.Background(), s.adapter, s.cfg.Probe.ServiceUUID, timeout)
	if err != nil {
		return err
	}
	if len(devices) == 0 {
		fmt.Println("No devices found")
		return nil
	}
	for _, d := range devices {
		fmt.Printf("  %s  %4d dBm  %s\n", d.Address, d.RSSI, d.Name)
	}
	return nil
}

// --- Read Command ---

type ReadCmd struct {
	Char string `arg:"" enum:"notify,read,rw" help:"Characteristic: notify, read or rw"`
}

func (cmd *ReadCmd) Run(globals *CLI) error {
	uuid, err := probe.CharacteristicUUID(cmd.Char)
	if err != nil {
		return err
	}
	client, err := globals.connect(context.Background())
	if err != nil {
		return err
	}
	defer client.Close()

	v, err := client.ReadByte(uuid)
	if err != nil {
		return err
	}
	fmt.Printf("%s = %d (0x%02x)\n", cmd.Char, v, v)
	return nil
}

// --- Write Command ---

type WriteCmd struct {
	Char  string `arg:"" enum:"write,rw" help:"Characteristic: write or rw"`
	Value string `arg:"" help:"Byte value, decimal or 0x-prefixed hex"`
}

func (cmd *WriteCmd) Run(globals *CLI) error {
	uuid, err := probe.CharacteristicUUID(cmd.Char)
	if err != nil {
		return err
	}
	v, err := strconv.ParseUint(cmd.Value, 0, 8)
	if err != nil {
		return fmt.Errorf("value %q: must be a byte (0-255)", cmd.Value)
	}
	client, err := globals.connect(context.Background())
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.WriteByte(uuid, byte(v)); err != nil {
		return err
	}
	fmt.Printf("%s <- %d\n", cmd.Char, v)
	return nil
}

// --- Watch Command ---

type WatchCmd struct{}

func (cmd *WatchCmd) Run(globals *CLI) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := globals.connect(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	fmt.Println("Watching counter. Ctrl+C to quit.")
	return client.Watch(ctx, func(v byte) {
		fmt.Printf("%s  %3d\n", time.Now().Format("15:04:05"), v)
	})
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("gatt-probe"),
		kong.Description("Scan for and talk to a gatt-peripheral over BLE."),
		kong.UsageOnError(),
		kong.Vars{"local_name": peripheral.LocalName},
	)
	err := ctx.Run(&cli)
	ctx.FatalIfErrorf(err)
}
