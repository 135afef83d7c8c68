package infra

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"exchange_pro/internal/domain"
)

const (
	// DefaultUserAgent is a browser-like user agent string to avoid bot detection
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// Config holds every application setting.
// Values come from defaults, then the YAML file, then environment variables.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	API struct {
		Finnhub struct {
			RestURL   string `yaml:"rest_url"`
			APIKey    string `yaml:"api_key"`
			TimeoutMS int    `yaml:"timeout_ms"`
		} `yaml:"finnhub"`
		Council struct {
			WSURL                string `yaml:"ws_url"`
			MaxReconnectAttempts int    `yaml:"max_reconnect_attempts"`
			ReconnectDelayMS     int    `yaml:"reconnect_delay_ms"`
		} `yaml:"council"`
	} `yaml:"api"`

	Market struct {
		RefreshIntervalMS int    `yaml:"refresh_interval_ms"`
		CacheWindowMS     int    `yaml:"cache_window_ms"`
		CandleCount       int    `yaml:"candle_count"`
		DefaultSymbol     string `yaml:"default_symbol"`
		DefaultTimeframe  string `yaml:"default_timeframe"`
	} `yaml:"market"`

	Server struct {
		Host string `yaml:"host"`
		Port int    `yaml:"port"`
	} `yaml:"server"`

	Storage struct {
		Path string `yaml:"path"`
	} `yaml:"storage"`

	Assets struct {
		LogoDir  string `yaml:"logo_dir"`
		LogoSize int    `yaml:"logo_size"`
	} `yaml:"assets"`

	Logging struct {
		Level string `yaml:"level"`
		Dir   string `yaml:"dir"`
	} `yaml:"logging"`
}

// DefaultConfig returns the built-in settings used when no file overrides them
func DefaultConfig() *Config {
	var cfg Config
	cfg.App.Name = "Exchange Pro"
	cfg.App.Version = "1.0.0"
	cfg.API.Finnhub.RestURL = "https://finnhub.io/api/v1"
	cfg.API.Finnhub.TimeoutMS = 10000
	cfg.API.Council.WSURL = "ws://localhost:8000/ws"
	cfg.API.Council.MaxReconnectAttempts = 5
	cfg.API.Council.ReconnectDelayMS = 3000
	cfg.Market.RefreshIntervalMS = 5000
	cfg.Market.CacheWindowMS = 5000
	cfg.Market.CandleCount = 100
	cfg.Market.DefaultSymbol = domain.DefaultSymbol
	cfg.Market.DefaultTimeframe = "1W"
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 8080
	cfg.Assets.LogoSize = 24
	cfg.Logging.Level = "info"
	cfg.Logging.Dir = "logs"
	return &cfg
}

// LoadConfig reads path over the defaults. A missing file is not an error:
// the dashboard runs in demo mode out of the box.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, err
	}

	// .env is optional; real environment variables take precedence over it
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	overrideWithEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks configuration validity
func (c *Config) Validate() error {
	if !hasPrefix(c.API.Finnhub.RestURL, "http://") && !hasPrefix(c.API.Finnhub.RestURL, "https://") {
		return &domain.ConfigError{Field: "api.finnhub.rest_url", Err: fmt.Errorf("invalid URL: %q", c.API.Finnhub.RestURL)}
	}
	if err := ValidateCouncilURL(c.API.Council.WSURL); err != nil {
		return &domain.ConfigError{Field: "api.council.ws_url", Err: err}
	}
	if c.API.Council.MaxReconnectAttempts < 0 {
		return &domain.ConfigError{Field: "api.council.max_reconnect_attempts", Err: errors.New("must not be negative")}
	}
	if c.Market.RefreshIntervalMS <= 0 {
		return &domain.ConfigError{Field: "market.refresh_interval_ms", Err: errors.New("must be positive")}
	}
	if c.Market.CacheWindowMS <= 0 {
		return &domain.ConfigError{Field: "market.cache_window_ms", Err: errors.New("must be positive")}
	}
	if c.Market.CandleCount <= 0 {
		return &domain.ConfigError{Field: "market.candle_count", Err: errors.New("must be positive")}
	}
	if _, ok := domain.LookupSymbol(c.Market.DefaultSymbol); !ok {
		return &domain.ConfigError{Field: "market.default_symbol", Err: domain.ErrUnknownSymbol}
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return &domain.ConfigError{Field: "server.port", Err: fmt.Errorf("out of range: %d", c.Server.Port)}
	}
	return nil
}

// ValidateCouncilURL accepts ws:// and wss:// endpoints
func ValidateCouncilURL(u string) error {
	if !hasPrefix(u, "ws://") && !hasPrefix(u, "wss://") {
		return fmt.Errorf("invalid WS URL: %q", u)
	}
	return nil
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[0:len(prefix)] == prefix
}

// overrideWithEnv overwrites settings from environment variables when present
func overrideWithEnv(cfg *Config) {
	if key := os.Getenv("FINNHUB_API_KEY"); key != "" {
		cfg.API.Finnhub.APIKey = key
	}
	if u := os.Getenv("COUNCIL_URL"); u != "" {
		cfg.API.Council.WSURL = u
	}
	if v := os.Getenv("REFRESH_INTERVAL_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			cfg.Market.RefreshIntervalMS = ms
		}
	}
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if p := os.Getenv("DB_PATH"); p != "" {
		cfg.Storage.Path = p
	}
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		cfg.Logging.Level = lvl
	}
}
