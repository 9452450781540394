// Package config provides the configuration consumed by the telemetry pipeline.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Transport names accepted by DeliveryConfig.Transport.
const (
	TransportHTTP = "http"
	TransportGRPC = "grpc"
	TransportS3   = "s3"
	TransportFile = "file"
)

// Compression names accepted by DeliveryConfig.Compression.
const (
	CompressionNone   = "none"
	CompressionSnappy = "snappy"
	CompressionZstd   = "zstd"
)

// Store types accepted by StoreConfig.Type.
const (
	StoreSQLite = "sqlite"
	StoreMemory = "memory"
)

// Config holds the configuration of one SDK instance.
type Config struct {
	// SiteID identifies the customer site in every outbound payload
	SiteID string `json:"site_id" yaml:"site_id"`

	// SiteKey is the path parameter of the key exchange call
	SiteKey string `json:"site_key" yaml:"site_key"`

	// Environment is shipped verbatim in the payload (e.g. "production")
	Environment string `json:"environment" yaml:"environment"`

	// JSVersion is the legacy web-collector version field, shipped verbatim
	JSVersion string `json:"js_version" yaml:"js_version"`

	// DataDir is the base directory for the identifier cache database
	DataDir string `json:"data_dir" yaml:"data_dir"`

	Buffer     BufferConfig     `json:"buffer" yaml:"buffer"`
	Flush      FlushConfig      `json:"flush" yaml:"flush"`
	Inactivity InactivityConfig `json:"inactivity" yaml:"inactivity"`
	Delivery   DeliveryConfig   `json:"delivery" yaml:"delivery"`
	Identifier IdentifierConfig `json:"identifier" yaml:"identifier"`
	Store      StoreConfig      `json:"store" yaml:"store"`
}

// BufferConfig holds event buffer configuration.
type BufferConfig struct {
	// MaxEvents is the hard ceiling on buffered events, excluding the sentinel
	MaxEvents int `json:"max_events" yaml:"max_events"`

	// LowMemoryHeapBytes arms the memory monitor; 0 disables it
	LowMemoryHeapBytes uint64 `json:"low_memory_heap_bytes" yaml:"low_memory_heap_bytes"`

	// MemoryCheckInterval is how often the memory monitor samples the heap
	MemoryCheckInterval time.Duration `json:"memory_check_interval" yaml:"memory_check_interval"`
}

// FlushConfig holds flush scheduler configuration.
type FlushConfig struct {
	// Interval between periodic deliveries
	Interval time.Duration `json:"interval" yaml:"interval"`

	// MaxBackground caps concurrent fire-and-forget deliveries
	MaxBackground int `json:"max_background" yaml:"max_background"`
}

// InactivityConfig holds inactivity watchdog configuration.
type InactivityConfig struct {
	// Timeout after the last activity event before INACTIVE is recorded
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
}

// DeliveryConfig holds collector delivery configuration.
type DeliveryConfig struct {
	// Transport is one of http, grpc, s3, file
	Transport string `json:"transport" yaml:"transport"`

	// Endpoint is the collector URL (http) or target address (grpc)
	Endpoint string `json:"endpoint" yaml:"endpoint"`

	// Compression is the HTTP body encoding: none, snappy, zstd
	Compression string `json:"compression" yaml:"compression"`

	// Timeout bounds a single send
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// GRPCInsecure disables TLS on the gRPC connection
	GRPCInsecure bool `json:"grpc_insecure" yaml:"grpc_insecure"`

	// Dir receives one JSON file per batch (for file transport); defaults to DataDir/outbox
	Dir string `json:"dir" yaml:"dir"`

	// S3 configuration (for s3 transport)
	S3 S3Config `json:"s3" yaml:"s3"`
}

// S3Config holds object-store delivery configuration.
type S3Config struct {
	Bucket       string `json:"bucket" yaml:"bucket"`
	Prefix       string `json:"prefix" yaml:"prefix"`
	Region       string `json:"region" yaml:"region"`
	Endpoint     string `json:"endpoint" yaml:"endpoint"`
	UsePathStyle bool   `json:"use_path_style" yaml:"use_path_style"`
}

// IdentifierConfig holds device identifier acquisition configuration.
type IdentifierConfig struct {
	// Enabled controls whether acquisition runs on Start
	Enabled bool `json:"enabled" yaml:"enabled"`

	// KeyExchangeURL is the base URL of the SDK backend serving GET /a/{key}
	KeyExchangeURL string `json:"key_exchange_url" yaml:"key_exchange_url"`

	// KeyExchangeAttempts is the number of access-key fetch attempts
	KeyExchangeAttempts int `json:"key_exchange_attempts" yaml:"key_exchange_attempts"`

	// ProviderURL is the fingerprint provider endpoint
	ProviderURL string `json:"provider_url" yaml:"provider_url"`

	// MaxRetries is the number of fingerprint attempts
	MaxRetries int `json:"max_retries" yaml:"max_retries"`

	// RetryDelay is the fixed pause between fingerprint attempts
	RetryDelay time.Duration `json:"retry_delay" yaml:"retry_delay"`

	// CacheTTL is how long an acquired identifier stays valid
	CacheTTL time.Duration `json:"cache_ttl" yaml:"cache_ttl"`

	// RequestTimeout bounds each HTTP call
	RequestTimeout time.Duration `json:"request_timeout" yaml:"request_timeout"`
}

// StoreConfig holds key-value store configuration.
type StoreConfig struct {
	// Type is sqlite or memory
	Type string `json:"type" yaml:"type"`

	// Path is the sqlite database path; defaults to DataDir/beacon.db
	Path string `json:"path" yaml:"path"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Environment: "production",
		DataDir:     "./data/beacon",
		Buffer: BufferConfig{
			MaxEvents:           2000,
			MemoryCheckInterval: 10 * time.Second,
		},
		Flush: FlushConfig{
			Interval:      5 * time.Second,
			MaxBackground: 4,
		},
		Inactivity: InactivityConfig{
			Timeout: 30 * time.Second,
		},
		Delivery: DeliveryConfig{
			Transport:   TransportHTTP,
			Compression: CompressionNone,
			Timeout:     10 * time.Second,
		},
		Identifier: IdentifierConfig{
			Enabled:             true,
			KeyExchangeAttempts: 3,
			MaxRetries:          3,
			RetryDelay:          5 * time.Second,
			CacheTTL:            24 * time.Hour,
			RequestTimeout:      10 * time.Second,
		},
		Store: StoreConfig{
			Type: StoreSQLite,
		},
	}
}

// Resolve fills derived values.
func (c *Config) Resolve() {
	if c.DataDir == "" {
		c.DataDir = "./data/beacon"
	}
	if c.Store.Type == StoreSQLite && c.Store.Path == "" {
		c.Store.Path = filepath.Join(c.DataDir, "beacon.db")
	}
	if c.Delivery.Compression == "" {
		c.Delivery.Compression = CompressionNone
	}
	if c.Delivery.Transport == "" {
		c.Delivery.Transport = TransportHTTP
	}
	if c.Delivery.Transport == TransportFile && c.Delivery.Dir == "" {
		c.Delivery.Dir = filepath.Join(c.DataDir, "outbox")
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.SiteID == "" {
		return fmt.Errorf("site_id is required")
	}
	if c.Buffer.MaxEvents <= 0 {
		return fmt.Errorf("buffer.max_events must be positive, got %d", c.Buffer.MaxEvents)
	}
	if c.Flush.Interval <= 0 {
		return fmt.Errorf("flush.interval must be positive, got %s", c.Flush.Interval)
	}
	if c.Inactivity.Timeout <= 0 {
		return fmt.Errorf("inactivity.timeout must be positive, got %s", c.Inactivity.Timeout)
	}

	switch c.Delivery.Transport {
	case TransportHTTP, TransportGRPC:
		if c.Delivery.Endpoint == "" {
			return fmt.Errorf("delivery.endpoint is required for %s transport", c.Delivery.Transport)
		}
	case TransportS3:
		if c.Delivery.S3.Bucket == "" {
			return fmt.Errorf("delivery.s3.bucket is required when transport is s3")
		}
	case TransportFile:
		if c.Delivery.Dir == "" {
			return fmt.Errorf("delivery.dir is required when transport is file")
		}
	default:
		return fmt.Errorf("invalid delivery transport: %s (must be http, grpc, s3 or file)", c.Delivery.Transport)
	}

	switch c.Delivery.Compression {
	case CompressionNone, CompressionSnappy, CompressionZstd:
	default:
		return fmt.Errorf("invalid delivery compression: %s (must be none, snappy, or zstd)", c.Delivery.Compression)
	}

	if c.Identifier.Enabled {
		if c.Identifier.KeyExchangeURL == "" || c.Identifier.ProviderURL == "" {
			return fmt.Errorf("identifier.key_exchange_url and identifier.provider_url are required when identifier is enabled")
		}
		if c.Identifier.KeyExchangeAttempts < 1 || c.Identifier.MaxRetries < 1 {
			return fmt.Errorf("identifier attempts must be at least 1")
		}
		if c.Identifier.RetryDelay < 0 {
			return fmt.Errorf("identifier.retry_delay must not be negative")
		}
	}

	if c.Store.Type != StoreSQLite && c.Store.Type != StoreMemory {
		return fmt.Errorf("invalid store type: %s (must be sqlite or memory)", c.Store.Type)
	}

	return nil
}

// LoadFromFile loads configuration from a YAML or JSON file on top of the defaults.
// Durations are Go duration strings ("5s", "1m30s") in both formats.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		// JSON is valid YAML; yaml.v3 also accepts durations written as "5s".
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s", ext)
	}

	return cfg, nil
}

// LoadDotEnv loads variables from a .env file into the process environment.
// A missing file is not an error; variables already set are not overridden.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// LoadFromEnv overlays environment variables onto cfg.
// Environment variables use the BEACON_ prefix.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("BEACON_SITE_ID"); v != "" {
		cfg.SiteID = v
	}
	if v := os.Getenv("BEACON_SITE_KEY"); v != "" {
		cfg.SiteKey = v
	}
	if v := os.Getenv("BEACON_ENVIRONMENT"); v != "" {
		cfg.Environment = v
	}
	if v := os.Getenv("BEACON_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}

	// Buffer and timers
	if v := os.Getenv("BEACON_BUFFER_MAX_EVENTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Buffer.MaxEvents = n
		}
	}
	if v := os.Getenv("BEACON_FLUSH_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Flush.Interval = d
		}
	}
	if v := os.Getenv("BEACON_INACTIVITY_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Inactivity.Timeout = d
		}
	}

	// Delivery
	if v := os.Getenv("BEACON_DELIVERY_TRANSPORT"); v != "" {
		cfg.Delivery.Transport = v
	}
	if v := os.Getenv("BEACON_DELIVERY_ENDPOINT"); v != "" {
		cfg.Delivery.Endpoint = v
	}
	if v := os.Getenv("BEACON_DELIVERY_COMPRESSION"); v != "" {
		cfg.Delivery.Compression = v
	}
	if v := os.Getenv("BEACON_DELIVERY_DIR"); v != "" {
		cfg.Delivery.Dir = v
	}
	if v := os.Getenv("BEACON_S3_BUCKET"); v != "" {
		cfg.Delivery.S3.Bucket = v
	}
	if v := os.Getenv("BEACON_S3_REGION"); v != "" {
		cfg.Delivery.S3.Region = v
	}
	if v := os.Getenv("BEACON_S3_ENDPOINT"); v != "" {
		cfg.Delivery.S3.Endpoint = v
	}

	// Identifier acquisition
	if v := os.Getenv("BEACON_IDENTIFIER_ENABLED"); v != "" {
		cfg.Identifier.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("BEACON_KEY_EXCHANGE_URL"); v != "" {
		cfg.Identifier.KeyExchangeURL = v
	}
	if v := os.Getenv("BEACON_PROVIDER_URL"); v != "" {
		cfg.Identifier.ProviderURL = v
	}
	if v := os.Getenv("BEACON_IDENTIFIER_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Identifier.MaxRetries = n
		}
	}
	if v := os.Getenv("BEACON_IDENTIFIER_RETRY_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Identifier.RetryDelay = d
		}
	}

	// Store
	if v := os.Getenv("BEACON_STORE_TYPE"); v != "" {
		cfg.Store.Type = v
	}
	if v := os.Getenv("BEACON_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
}

// EnsureDirectories creates the directories the configuration points at.
func (c *Config) EnsureDirectories() error {
	var dirs []string
	if c.Store.Type == StoreSQLite {
		dirs = append(dirs, c.DataDir, filepath.Dir(c.Store.Path))
	}
	if c.Delivery.Transport == TransportFile {
		dirs = append(dirs, c.Delivery.Dir)
	}
	for _, dir := range dirs {
		if dir == "" || dir == "." {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}
