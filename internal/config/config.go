package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for the kestrel backtester.
type Config struct {
	Storage  Storage        `yaml:"storage"`
	Data     Data           `yaml:"data"`
	Alpaca   Alpaca         `yaml:"alpaca"`
	Backtest BacktestConfig `yaml:"backtest"`
	Logging  Logging        `yaml:"logging"`
}

// Storage holds paths for data persistence.
type Storage struct {
	DataDir    string `yaml:"data_dir"`
	SQLitePath string `yaml:"sqlite_path"`
}

// Data controls price-data retrieval and caching.
type Data struct {
	Source           string `yaml:"source"`
	CacheMaxAgeHours int    `yaml:"cache_max_age_hours"`
	RateLimitPerMin  int    `yaml:"rate_limit_per_min"`
}

// Alpaca holds credentials and endpoints for the Alpaca market-data API.
type Alpaca struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	DataURL   string `yaml:"data_url"`
}

// BacktestConfig defines default simulation parameters. Command-line flags
// take precedence over these values.
type BacktestConfig struct {
	InitialCapital float64 `yaml:"initial_capital"`
	CostRate       float64 `yaml:"cost_rate"`
	FastWindow     int     `yaml:"fast_window"`
	SlowWindow     int     `yaml:"slow_window"`
}

// Logging configures the application logger.
type Logging struct {
	Level string `yaml:"level"`
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Default returns the built-in configuration used when no config file is
// given.
func Default() *Config {
	return &Config{
		Storage: Storage{
			DataDir:    "data",
			SQLitePath: "data/kestrel.db",
		},
		Data: Data{
			Source:           "stooq",
			CacheMaxAgeHours: 12,
			RateLimitPerMin:  200,
		},
		Backtest: BacktestConfig{
			InitialCapital: 10000,
			CostRate:       0,
			FastWindow:     12,
			SlowWindow:     26,
		},
		Logging: Logging{
			Level: "info",
		},
	}
}

// Load reads the YAML configuration file at the given path, fills unset
// fields from Default, and then applies environment variable overrides. An
// empty path yields the defaults with overrides applied.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)

	return cfg, nil
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PRICE_DATA_CACHE"); v != "" {
		cfg.Storage.SQLitePath = v
	}

	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}

	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}

	if v := os.Getenv("DATA_SOURCE"); v != "" {
		cfg.Data.Source = v
	}

	if v := os.Getenv("ALPACA_API_KEY"); v != "" {
		cfg.Alpaca.APIKey = v
	}

	if v := os.Getenv("ALPACA_API_SECRET"); v != "" {
		cfg.Alpaca.APISecret = v
	}

	if v := os.Getenv("ALPACA_DATA_URL"); v != "" {
		cfg.Alpaca.DataURL = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// Standard Alpaca env vars (highest priority — canonical names used by SDK).
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Alpaca.APISecret = v
	}
}
