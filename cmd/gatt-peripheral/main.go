package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/chaz8081/gatt-peripheral/internal/bluez"
	"github.com/chaz8081/gatt-peripheral/internal/config"
	"github.com/chaz8081/gatt-peripheral/internal/server"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "path to config file (default: ~/.config/gatt-peripheral/config.yaml)")
	adapter := flag.String("adapter", "", "adapter to use, e.g. hci0 (overrides config)")
	writeConfig := flag.Bool("write-config", false, "write the default config file and exit")
	flag.Parse()

	if *writeConfig {
		path, err := config.WriteDefault()
		if err != nil {
			log.Fatalf("config: %v", err)
		}
		if path == "" {
			log.Printf("Config already exists at %s", config.DefaultConfigPath())
		} else {
			log.Printf("Wrote %s", path)
		}
		return
	}

	// Load configuration
	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if *adapter != "" {
		cfg.Adapter = *adapter
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("config validation: %v", err)
	}

	slog.SetDefault(slog.New(newHandler(cfg)))

	printBanner(cfg)

	conn, err := bluez.Connect(cfg.Bus)
	if err != nil {
		log.Fatalf("Failed to connect to D-Bus: %v", err)
	}
	defer conn.Close()

	// Signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := server.New(conn, server.Config{
		Adapter:        cfg.Adapter,
		LocalName:      cfg.LocalName,
		IncludeTxPower: cfg.IncludeTxPower,
		NotifyInterval: cfg.NotifyInterval,
	})

	err = srv.Run(ctx)
	switch {
	case err == nil:
		log.Println("Goodbye!")
	case errors.Is(err, bluez.ErrAdapterNotFound):
		log.Println("BLE adapter not found")
	default:
		log.Printf("ERROR: %v", err)
		conn.Close()
		os.Exit(1)
	}
}

// loadConfig loads the config from the specified path, or falls back to
// the default config path, or uses built-in defaults.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}

	// Try default config path
	defaultPath := config.DefaultConfigPath()
	if _, err := os.Stat(defaultPath); err == nil {
		cfg, err := config.Load(defaultPath)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", defaultPath, err)
		}
		log.Printf("Config loaded from %s", defaultPath)
		return cfg, nil
	}

	// No config file, use defaults
	log.Println("No config file found, using defaults")
	return config.Default(), nil
}

// newHandler builds the slog handler selected by log_format and log_level.
func newHandler(cfg *config.Config) slog.Handler {
	opts := &slog.HandlerOptions{Level: config.ParseLogLevel(cfg.LogLevel)}
	if cfg.LogFormat == "json" {
		return slog.NewJSONHandler(os.Stderr, opts)
	}
	return slog.NewTextHandler(os.Stderr, opts)
}

// printBanner displays the startup configuration summary.
func printBanner(cfg *config.Config) {
	adapter := cfg.Adapter
	if adapter == "" {
		adapter = "auto"
	}
	fmt.Println("=== gatt-peripheral ===")
	fmt.Printf("  Bus:      %s\n", cfg.Bus)
	fmt.Printf("  Adapter:  %s\n", adapter)
	fmt.Printf("  Name:     %s (tx-power: %t)\n", cfg.LocalName, cfg.IncludeTxPower)
	fmt.Printf("  Notify:   every %s\n", cfg.NotifyInterval)
	fmt.Printf("  Log:      %s (%s)\n", cfg.LogLevel, cfg.LogFormat)
	fmt.Println("=======================")
}
