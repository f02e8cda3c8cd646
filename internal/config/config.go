// Package config provides configuration loading for order-ocr.
// Settings come from an optional YAML file, a .env file and environment
// variables, in that order of precedence (environment wins).
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for order-ocr.
type Config struct {
	Recognition   RecognitionConfig   `yaml:"recognition"`
	Currency      CurrencyConfig      `yaml:"currency"`
	Rasterizer    RasterizerConfig    `yaml:"rasterizer"`
	Output        OutputConfig        `yaml:"output"`
	Ledger        LedgerConfig        `yaml:"ledger"`
	Cache         CacheConfig         `yaml:"cache"`
	Server        ServerConfig        `yaml:"server"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// RecognitionConfig holds the recognition service settings.
type RecognitionConfig struct {
	APIKey               string        `yaml:"api_key"`
	Model                string        `yaml:"model"`
	Endpoint             string        `yaml:"endpoint"`
	InputCostPerMillion  float64       `yaml:"input_cost_per_million"`
	OutputCostPerMillion float64       `yaml:"output_cost_per_million"`
	MockMode             bool          `yaml:"mock_mode"`
	MockLatency          time.Duration `yaml:"mock_latency"`
	Timeout              time.Duration `yaml:"timeout"`
	MaxRetries           int           `yaml:"max_retries"`
}

// CurrencyConfig holds dual-currency cost display settings.
type CurrencyConfig struct {
	ExchangeRate float64 `yaml:"exchange_rate"`
	BaseSymbol   string  `yaml:"base_symbol"`
	LocalSymbol  string  `yaml:"local_symbol"`
}

// RasterizerConfig selects the PDF rendering backend.
type RasterizerConfig struct {
	Backend string `yaml:"backend"` // auto, mupdf or poppler
	DPI     int    `yaml:"dpi"`
}

// OutputConfig controls where result files are written.
type OutputConfig struct {
	Dir string `yaml:"dir"`
}

// LedgerConfig holds run ledger database settings.
type LedgerConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Driver      string `yaml:"driver"` // sqlite or postgres
	SQLitePath  string `yaml:"sqlite_path"`
	PostgresDSN string `yaml:"postgres_dsn"`
}

// CacheConfig holds the result cache used by the HTTP API to avoid
// re-processing identical uploads.
type CacheConfig struct {
	Enabled    bool          `yaml:"enabled"`
	Driver     string        `yaml:"driver"` // memory or redis
	RedisAddr  string        `yaml:"redis_addr"` // host:port or redis:// URL
	RedisDB    int           `yaml:"redis_db"`
	MaxEntries int           `yaml:"max_entries"`
	TTL        time.Duration `yaml:"ttl"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	GracefulShutdown time.Duration `yaml:"graceful_shutdown"`
	MaxUploadMB      int64         `yaml:"max_upload_mb"`
}

// ObservabilityConfig holds logging settings.
type ObservabilityConfig struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// Load reads configuration from a YAML file and applies environment overrides.
// An empty path falls back to ORDER_OCR_CONFIG and then DefaultPath; a
// missing default file is not an error.
func Load(path string) (*Config, error) {
	_ = godotenv.Load() // .env is optional

	cfg := DefaultConfig()

	explicit := path != ""
	if !explicit {
		if v := os.Getenv("ORDER_OCR_CONFIG"); v != "" {
			path, explicit = v, true
		} else {
			path = DefaultPath()
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config file: %w", err)
			}
		case errors.Is(err, os.ErrNotExist) && !explicit:
		default:
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Save writes cfg as YAML to path, creating parent directories.
func Save(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	// The file may hold an API key.
	return os.WriteFile(path, data, 0o600)
}

// DefaultPath returns ~/.order-ocr/config.yaml, or "" without a home dir.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".order-ocr", "config.yaml")
}

// DefaultConfig returns a configuration with development defaults.
func DefaultConfig() *Config {
	dataDir := "."
	if home, err := os.UserHomeDir(); err == nil {
		dataDir = filepath.Join(home, ".order-ocr")
	}

	return &Config{
		Recognition: RecognitionConfig{
			Model:                "gpt-4o-mini",
			Endpoint:             "https://api.openai.com/v1",
			InputCostPerMillion:  0.10,
			OutputCostPerMillion: 0.40,
			MockMode:             true,
			Timeout:              120 * time.Second,
		},
		Currency: CurrencyConfig{
			ExchangeRate: 1399,
			BaseSymbol:   "$",
			LocalSymbol:  "₩",
		},
		Rasterizer: RasterizerConfig{
			Backend: "auto",
			DPI:     300,
		},
		Output: OutputConfig{
			Dir: ".",
		},
		Ledger: LedgerConfig{
			Enabled:    true,
			Driver:     "sqlite",
			SQLitePath: filepath.Join(dataDir, "ledger.db"),
		},
		Cache: CacheConfig{
			Enabled:    false,
			Driver:     "memory",
			RedisAddr:  "localhost:6379",
			MaxEntries: 1000,
			TTL:        24 * time.Hour,
		},
		Server: ServerConfig{
			Host:             "127.0.0.1",
			Port:             8086,
			ReadTimeout:      30 * time.Second,
			WriteTimeout:     10 * time.Minute,
			GracefulShutdown: 10 * time.Second,
			MaxUploadMB:      50,
		},
		Observability: ObservabilityConfig{
			LogLevel:  "info",
			LogFormat: "console",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	switch c.Rasterizer.Backend {
	case "auto", "mupdf", "poppler":
	default:
		return fmt.Errorf("invalid rasterizer backend: %s", c.Rasterizer.Backend)
	}

	if c.Rasterizer.DPI < 1 {
		return fmt.Errorf("rasterizer dpi must be positive, got %d", c.Rasterizer.DPI)
	}

	if c.Recognition.InputCostPerMillion < 0 || c.Recognition.OutputCostPerMillion < 0 {
		return fmt.Errorf("recognition costs must not be negative")
	}

	if c.Recognition.MaxRetries < 0 {
		return fmt.Errorf("max_retries must not be negative")
	}

	if c.Currency.ExchangeRate < 0 {
		return fmt.Errorf("exchange_rate must not be negative")
	}

	if c.Ledger.Driver != "sqlite" && c.Ledger.Driver != "postgres" {
		return fmt.Errorf("invalid ledger driver: %s", c.Ledger.Driver)
	}

	if c.Cache.Driver != "memory" && c.Cache.Driver != "redis" {
		return fmt.Errorf("invalid cache driver: %s", c.Cache.Driver)
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	return nil
}

// UseLiveRecognition reports whether the live recognizer should be used:
// mock mode is off and a credential is configured.
func (c *Config) UseLiveRecognition() bool {
	return !c.Recognition.MockMode && c.Recognition.APIKey != ""
}

// LedgerDSN returns the connection string for the configured ledger driver.
func (c *Config) LedgerDSN() string {
	if c.Ledger.Driver == "sqlite" {
		return c.Ledger.SQLitePath
	}
	return c.Ledger.PostgresDSN
}

// applyEnvOverrides applies environment variable overrides to config.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.Recognition.APIKey = v
	}

	if v := os.Getenv("OCR_MODEL"); v != "" {
		cfg.Recognition.Model = v
	}

	if v := os.Getenv("OCR_ENDPOINT"); v != "" {
		cfg.Recognition.Endpoint = v
	}

	if v, ok := envFloat("OCR_INPUT_COST"); ok {
		cfg.Recognition.InputCostPerMillion = v
	}

	if v, ok := envFloat("OCR_OUTPUT_COST"); ok {
		cfg.Recognition.OutputCostPerMillion = v
	}

	if v, ok := envFloat("OCR_EXCHANGE_RATE"); ok {
		cfg.Currency.ExchangeRate = v
	}

	if v := os.Getenv("OCR_MOCK_MODE"); v != "" {
		cfg.Recognition.MockMode = strings.EqualFold(v, "true") || v == "1"
	}

	if v := os.Getenv("RASTER_BACKEND"); v != "" {
		cfg.Rasterizer.Backend = v
	}

	if v := os.Getenv("LEDGER_DRIVER"); v != "" {
		cfg.Ledger.Driver = v
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		if strings.HasPrefix(v, "sqlite:") {
			cfg.Ledger.Driver = "sqlite"
			cfg.Ledger.SQLitePath = strings.TrimPrefix(v, "sqlite:")
		} else if strings.HasPrefix(v, "postgres") {
			cfg.Ledger.Driver = "postgres"
			cfg.Ledger.PostgresDSN = v
		}
	}

	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Cache.Enabled = true
		cfg.Cache.Driver = "redis"
		cfg.Cache.RedisAddr = v
	}

	if v := os.Getenv("SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Observability.LogFormat = v
	}
}

func envFloat(key string) (float64, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
