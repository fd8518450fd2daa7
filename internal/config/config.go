// Package config handles loading and validation of service configuration.
// Supports both development (env vars) and production (Secret Manager) modes.
package config

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"

	"wholesale-cart/internal/rules"
	"wholesale-cart/internal/shipping"
	"wholesale-cart/internal/storage"
	"wholesale-cart/internal/transport"
)

// Config holds all service configuration.
// Environment determines whether store credentials load from env vars
// (development) or Secret Manager (production).
type Config struct {
	// Server settings
	Port        string
	Environment string // "development" or "production"
	LogLevel    string // "debug", "info", "warn", "error"

	// GCP settings (required in production)
	GCPProject string
	StoreID    string

	// RulesFile is a JSON rules document. Empty uses the built-in rules.
	RulesFile string
	// StorageDir holds one file per cart. Empty keeps carts in memory.
	StorageDir string

	// Store is the storefront the shipping endpoint lives on. In production
	// it is loaded from Secret Manager as JSON.
	Store StoreConfig
}

// StoreConfig contains storefront connection settings. An empty StoreURL
// disables shipping quotes.
type StoreConfig struct {
	StoreURL       string `json:"store_url"`
	APIKey         string `json:"api_key"`
	APISecret      string `json:"api_secret"`
	ShippingPath   string `json:"shipping_path,omitempty"`
	TLSFingerprint string `json:"tls_fingerprint,omitempty"`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty"`
}

// Load reads configuration from file, environment, or Secret Manager.
// Priority: CONFIG_FILE (if set) → ENV vars / Secret Manager.
func Load(ctx context.Context) (*Config, error) {
	if configPath := os.Getenv("CONFIG_FILE"); configPath != "" {
		return loadFromFile(configPath)
	}

	cfg := &Config{
		Port:        envOrDefault("PORT", "8080"),
		Environment: envOrDefault("ENVIRONMENT", "development"),
		LogLevel:    envOrDefault("LOG_LEVEL", "info"),
		GCPProject:  os.Getenv("GCP_PROJECT"),
		StoreID:     os.Getenv("STORE_ID"),
		RulesFile:   os.Getenv("RULES_FILE"),
		StorageDir:  os.Getenv("STORAGE_DIR"),
	}

	var err error
	if cfg.Environment == "production" {
		if cfg.GCPProject == "" {
			return nil, fmt.Errorf("GCP_PROJECT required in production environment")
		}
		if cfg.StoreID == "" {
			return nil, fmt.Errorf("STORE_ID required in production environment")
		}
		err = cfg.loadFromSecretManager(ctx)
	} else {
		err = cfg.loadFromEnv()
	}
	if err != nil {
		return nil, fmt.Errorf("loading store config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFromFile reads all configuration from a JSON file.
func loadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var fileConfig struct {
		Port        string      `json:"port"`
		Environment string      `json:"environment"`
		LogLevel    string      `json:"log_level"`
		StoreID     string      `json:"store_id"`
		RulesFile   string      `json:"rules_file"`
		StorageDir  string      `json:"storage_dir"`
		Store       StoreConfig `json:"store"`
	}
	if err := json.Unmarshal(data, &fileConfig); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg := &Config{
		Port:        withDefault(fileConfig.Port, "8080"),
		Environment: withDefault(fileConfig.Environment, "development"),
		LogLevel:    withDefault(fileConfig.LogLevel, "info"),
		StoreID:     fileConfig.StoreID,
		RulesFile:   fileConfig.RulesFile,
		StorageDir:  fileConfig.StorageDir,
		Store:       fileConfig.Store,
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// withDefault returns val if non-empty, otherwise defaultVal.
func withDefault(val, defaultVal string) string {
	if val != "" {
		return val
	}
	return defaultVal
}

// loadFromSecretManager fetches store config from GCP Secret Manager.
// Secret name format: projects/{project}/secrets/{store_id}/versions/latest
func (c *Config) loadFromSecretManager(ctx context.Context) error {
	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("creating secret manager client: %w", err)
	}
	defer client.Close()

	secretName := fmt.Sprintf("projects/%s/secrets/%s/versions/latest", c.GCPProject, c.StoreID)

	result, err := client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: secretName,
	})
	if err != nil {
		return fmt.Errorf("accessing secret %s: %w", secretName, err)
	}

	if err := json.Unmarshal(result.Payload.Data, &c.Store); err != nil {
		return fmt.Errorf("parsing secret JSON: %w", err)
	}
	return nil
}

// loadFromEnv reads store config from individual environment variables.
func (c *Config) loadFromEnv() error {
	c.Store = StoreConfig{
		StoreURL:       os.Getenv("STORE_URL"),
		APIKey:         os.Getenv("STORE_API_KEY"),
		APISecret:      os.Getenv("STORE_API_SECRET"),
		ShippingPath:   os.Getenv("SHIPPING_PATH"),
		TLSFingerprint: os.Getenv("TLS_FINGERPRINT"),
	}
	if v := os.Getenv("STORE_TIMEOUT_SECONDS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parsing STORE_TIMEOUT_SECONDS: %w", err)
		}
		c.Store.TimeoutSeconds = n
	}
	return nil
}

// validate checks that the configuration is usable.
func (c *Config) validate() error {
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	if _, err := transport.ParseFingerprint(c.Store.TLSFingerprint); err != nil {
		return fmt.Errorf("invalid tls_fingerprint: %w", err)
	}
	if c.Store.TimeoutSeconds < 0 {
		return fmt.Errorf("timeout_seconds must not be negative")
	}

	if c.Store.StoreURL == "" {
		return nil
	}
	if c.Store.APIKey == "" {
		return fmt.Errorf("api_key is required when store_url is set")
	}
	if c.Store.APISecret == "" {
		return fmt.Errorf("api_secret is required when store_url is set")
	}
	u, err := url.Parse(c.Store.StoreURL)
	if err != nil {
		return fmt.Errorf("invalid store_url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid store_url: scheme must be http or https")
	}
	return nil
}

// BuildRules returns the rules engine from RulesFile, or the built-in rules.
func (c *Config) BuildRules() (*rules.Engine, error) {
	if c.RulesFile == "" {
		return rules.New(rules.Default())
	}
	return rules.LoadFile(c.RulesFile)
}

// BuildStorage returns file storage under StorageDir, or memory storage.
func (c *Config) BuildStorage() (storage.Storage, error) {
	if c.StorageDir == "" {
		return storage.NewMemory(), nil
	}
	return storage.NewFile(c.StorageDir)
}

// BuildShipping returns the storefront shipping client, or nil when no store
// is configured.
func (c *Config) BuildShipping() (shipping.Calculator, error) {
	if c.Store.StoreURL == "" {
		return nil, nil
	}
	fp, err := transport.ParseFingerprint(c.Store.TLSFingerprint)
	if err != nil {
		return nil, err
	}
	client, err := shipping.NewClient(shipping.Config{
		StoreURL:    c.Store.StoreURL,
		APIKey:      c.Store.APIKey,
		APISecret:   c.Store.APISecret,
		Path:        c.Store.ShippingPath,
		Timeout:     time.Duration(c.Store.TimeoutSeconds) * time.Second,
		Fingerprint: fp,
	})
	if err != nil {
		return nil, fmt.Errorf("building shipping client: %w", err)
	}
	return client, nil
}

// Level returns the slog level for LogLevel.
func (c *Config) Level() slog.Level {
	l, _ := parseLevel(c.LogLevel)
	return l
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", s)
	}
}

// envOrDefault returns the environment variable value or the default if not set.
func envOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
