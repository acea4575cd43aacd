// warpsyncd is the long-running wallet synchronizer daemon: it connects to
// the wallet store, initializes the synchronizer from the latest
// checkpoint and starts the tip notifier, then waits for a shutdown
// signal. No block source is wired in, so it processes no blocks, and it
// does not serve the note-selection planner.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/warpsync/core/internal/chainsync"
	"github.com/warpsync/core/internal/transport"
)

const (
	version = "0.1.0"
	banner  = `
 __      __                  _____
 \ \    / /                 / ____|
  \ \  / /_ _ _ __ _ __  ___| (___  _   _ _ __   ___
   \ \/ / _  | '__| '_ \/ __|\___ \| | | | '_ \ / __|
    \  / (_| | |  | |_) \__ \____) | |_| | | | | (__
     \/ \__,_|_|  | .__/|___/_____/ \__, |_| |_|\___|
                   | |               __/ |
                   |_|              |___/
  warpsyncd v%s
`
)

// Config holds the daemon's startup configuration.
type Config struct {
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string

	ListenAddr string
	Account    uint
}

func main() {
	cfg := parseFlags()
	fmt.Printf(banner, version)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nShutting down...")
		cancel()
	}()

	if err := run(ctx, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags() *Config {
	cfg := &Config{}

	flag.StringVar(&cfg.DBHost, "db-host", "localhost", "PostgreSQL host")
	flag.IntVar(&cfg.DBPort, "db-port", 5432, "PostgreSQL port")
	flag.StringVar(&cfg.DBUser, "db-user", "warpsync", "PostgreSQL user")
	flag.StringVar(&cfg.DBPassword, "db-password", "", "PostgreSQL password")
	flag.StringVar(&cfg.DBName, "db-name", "warpsync", "PostgreSQL database name")

	flag.StringVar(&cfg.ListenAddr, "listen", "/ip4/0.0.0.0/tcp/0", "tip-notifier P2P listen address")
	flag.UintVar(&cfg.Account, "account", 0, "wallet account index to synchronize")

	flag.Parse()
	return cfg
}

func run(ctx context.Context, cfg *Config) error {
	fmt.Println("Connecting to wallet store...")
	store, err := chainsync.NewPostgresWalletStore(ctx, &chainsync.Config{
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
		Database: cfg.DBName,
		SSLMode:  "disable",
		MaxConns: 20,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to wallet store: %w", err)
	}
	defer store.Close()
	fmt.Println("Wallet store connected.")

	sync := chainsync.NewSynchronizer(store, nil, uint32(cfg.Account), nil)
	if err := sync.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize synchronizer: %w", err)
	}
	fmt.Printf("Synchronizer initialized. Height: %d\n", sync.Height())

	fmt.Println("Starting tip notifier...")
	notifier, err := transport.NewTipNotifier(ctx, &transport.Config{ListenAddrs: []string{cfg.ListenAddr}})
	if err != nil {
		return fmt.Errorf("failed to start tip notifier: %w", err)
	}
	defer notifier.Close()

	// TODO: wire a concrete transport.BlockSource (lightwalletd client or
	// local full node RPC) and drive sync.Process from notifier.Tips().

	fmt.Println("warpsyncd started successfully!")
	fmt.Println("Press Ctrl+C to stop.")

	<-ctx.Done()

	fmt.Println("Synchronizer stopped.")
	return nil
}
