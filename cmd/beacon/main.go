// Package main implements the beacon replay binary.
// It reads events as JSON lines, feeds them through a telemetry session and
// delivers the batches to the configured collector.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/arkilian/beacon/internal/config"
	"github.com/arkilian/beacon/internal/sdk"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	var (
		configFile  string
		dataDir     string
		collector   string
		transport   string
		siteID      string
		input       string
		showVersion bool
		showHelp    bool
	)

	pflag.StringVar(&configFile, "config", "", "Path to configuration file (YAML or JSON)")
	pflag.StringVar(&dataDir, "data-dir", "", "Base directory for the identifier cache and outbox")
	pflag.StringVar(&collector, "collector", "", "Collector endpoint (URL for http, address for grpc)")
	pflag.StringVar(&transport, "transport", "", "Delivery transport: http, grpc, s3, file")
	pflag.StringVar(&siteID, "site-id", "", "Site identifier shipped in every payload")
	pflag.StringVarP(&input, "input", "i", "-", "Event source, one JSON event per line (- for stdin)")
	pflag.BoolVar(&showVersion, "version", false, "Show version information")
	pflag.BoolVarP(&showHelp, "help", "h", false, "Show help message")

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Beacon - behavioral telemetry capture and delivery\n\n")
		fmt.Fprintf(os.Stderr, "Usage: beacon [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		pflag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  beacon --site-id shop-1 --collector https://collector.example.com/v1/events < events.jsonl\n")
		fmt.Fprintf(os.Stderr, "  beacon --transport file --data-dir /tmp/beacon --input events.jsonl\n")
		fmt.Fprintf(os.Stderr, "  beacon --config /etc/beacon/config.yaml\n")
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  BEACON_SITE_ID              Site identifier\n")
		fmt.Fprintf(os.Stderr, "  BEACON_DATA_DIR             Base directory for local files\n")
		fmt.Fprintf(os.Stderr, "  BEACON_DELIVERY_TRANSPORT   Delivery transport (http, grpc, s3, file)\n")
		fmt.Fprintf(os.Stderr, "  BEACON_DELIVERY_ENDPOINT    Collector endpoint\n")
		fmt.Fprintf(os.Stderr, "  BEACON_FLUSH_INTERVAL       Periodic delivery interval\n")
		fmt.Fprintf(os.Stderr, "  BEACON_IDENTIFIER_ENABLED   Run device identifier acquisition\n")
		fmt.Fprintf(os.Stderr, "\nVariables are also read from ./.env when present.\n")
	}

	pflag.Parse()

	if showHelp {
		pflag.Usage()
		os.Exit(0)
	}

	if showVersion {
		fmt.Printf("beacon version %s (commit: %s)\n", version, commit)
		os.Exit(0)
	}

	cfg, err := loadConfig(configFile, dataDir, collector, transport, siteID)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	printBanner(cfg)

	src, err := openInput(input)
	if err != nil {
		log.Fatalf("Failed to open input: %v", err)
	}
	defer src.Close()

	client, err := sdk.New(cfg)
	if err != nil {
		log.Fatalf("Failed to create SDK: %v", err)
	}

	// The session outlives the signal context so Shutdown can still close it.
	if err := client.Start(context.Background()); err != nil {
		log.Fatalf("Failed to start session: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	res, err := replay(ctx, src, client, log.Default())
	if err != nil {
		log.Printf("[ERROR] input: %v", err)
	}
	if ctx.Err() != nil {
		log.Printf("Received shutdown signal")
	}
	log.Printf("Replayed %d lines (%d recorded, %d rejected)", res.Lines, res.Recorded, res.Rejected)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Delivery.Timeout+5*time.Second)
	defer cancel()
	if err := client.Shutdown(shutdownCtx); err != nil {
		log.Printf("Shutdown error: %v", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(client.Stats()); err != nil {
		log.Printf("Failed to print stats: %v", err)
	}
}

// loadConfig loads configuration from .env, file, environment, and command line flags.
func loadConfig(configFile, dataDir, collector, transport, siteID string) (*config.Config, error) {
	if err := config.LoadDotEnv(""); err != nil {
		return nil, err
	}

	var cfg *config.Config
	var err error

	if configFile != "" {
		cfg, err = config.LoadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	} else {
		cfg = config.DefaultConfig()
	}

	config.LoadFromEnv(cfg)

	// Flags win over everything else.
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if collector != "" {
		cfg.Delivery.Endpoint = collector
	}
	if transport != "" {
		cfg.Delivery.Transport = transport
	}
	if siteID != "" {
		cfg.SiteID = siteID
	}
	cfg.Resolve()

	return cfg, nil
}

func openInput(path string) (io.ReadCloser, error) {
	if path == "" || path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	return os.Open(path)
}

// printBanner prints the startup banner with configuration summary.
func printBanner(cfg *config.Config) {
	log.Printf("BEACON %s", version)
	log.Printf("")
	log.Printf("Configuration:")
	log.Printf("  Site:       %s", cfg.SiteID)
	log.Printf("  Data Dir:   %s", cfg.DataDir)
	log.Printf("  Transport:  %s", cfg.Delivery.Transport)
	if cfg.Delivery.Transport == config.TransportFile {
		log.Printf("  Outbox:     %s", cfg.Delivery.Dir)
	} else {
		log.Printf("  Endpoint:   %s", cfg.Delivery.Endpoint)
	}
	log.Printf("  Flush:      every %v", cfg.Flush.Interval)
	log.Printf("  Buffer:     %d events", cfg.Buffer.MaxEvents)
	log.Printf("  Identifier: %v", cfg.Identifier.Enabled)
	log.Printf("")
}
