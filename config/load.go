package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"calendar-trader-go/infrastructure/logger"
)

// AppConfig holds the main runtime configuration.
type AppConfig struct {
	Env     string        `yaml:"env"`
	Alpaca  AlpacaConfig  `yaml:"alpaca"`
	Trading TradingConfig `yaml:"trading"`
	Chase   ChaseConfig   `yaml:"chase"`
	Journal JournalConfig `yaml:"journal"`
	Metrics MetricsConfig `yaml:"metrics"`
	Log     logger.Config `yaml:"log"`
}

type AlpacaConfig struct {
	APIKey            string `yaml:"apiKey"`
	APISecret         string `yaml:"apiSecret"`
	BaseURL           string `yaml:"baseURL"`   // trading API, paper or live
	DataURL           string `yaml:"dataURL"`   // market data API
	StreamURL         string `yaml:"streamURL"` // trade_updates websocket
	RequestsPerMinute int    `yaml:"requestsPerMinute"`
}

type TradingConfig struct {
	CandidatesFile     string  `yaml:"candidatesFile"`     // earnings candidate list (yaml)
	KellyFraction      float64 `yaml:"kellyFraction"`      // fraction of equity per trade
	PortfolioBudgetUSD float64 `yaml:"portfolioBudgetUSD"` // 0 = derive from account equity
	MaxConcurrent      int     `yaml:"maxConcurrent"`      // parallel chases across symbols
	ChaseOnClose       bool    `yaml:"chaseOnClose"`       // false = single limit order at mid on close
	OpenAt             string  `yaml:"openAt"`             // HH:MM eastern, e.g. 15:45
	CloseAt            string  `yaml:"closeAt"`            // HH:MM eastern, e.g. 09:45
	WindowMinutes      int     `yaml:"windowMinutes"`      // validity window after openAt/closeAt
}

type ChaseConfig struct {
	OpenWaitSec    int `yaml:"openWaitSec"`    // per-rung wait when opening
	CloseWaitSec   int `yaml:"closeWaitSec"`   // per-rung wait when closing
	PollIntervalMs int `yaml:"pollIntervalMs"` // order status poll interval
}

type JournalConfig struct {
	Path string `yaml:"path"` // sqlite file
}

type MetricsConfig struct {
	Addr string `yaml:"addr"` // empty disables the /metrics endpoint
}

// Load reads YAML config from path, fills defaults and validates.
func Load(path string) (AppConfig, error) {
	var cfg AppConfig
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse yaml: %w", err)
	}
	applyDefaults(&cfg)
	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadWithEnvOverrides loads config then overrides sensitive fields from env vars if present.
func LoadWithEnvOverrides(path string) (AppConfig, error) {
	cfg, err := Load(path)
	if err != nil {
		return cfg, err
	}
	if v := os.Getenv("CT_ALPACA_API_KEY"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("CT_ALPACA_API_SECRET"); v != "" {
		cfg.Alpaca.APISecret = v
	}
	return cfg, Validate(cfg)
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Alpaca.BaseURL == "" {
		cfg.Alpaca.BaseURL = "https://paper-api.alpaca.markets"
	}
	if cfg.Alpaca.DataURL == "" {
		cfg.Alpaca.DataURL = "https://data.alpaca.markets"
	}
	if cfg.Alpaca.StreamURL == "" {
		cfg.Alpaca.StreamURL = "wss://paper-api.alpaca.markets/stream"
	}
	if cfg.Alpaca.RequestsPerMinute == 0 {
		cfg.Alpaca.RequestsPerMinute = 200
	}
	if cfg.Trading.KellyFraction == 0 {
		cfg.Trading.KellyFraction = 0.10
	}
	if cfg.Trading.MaxConcurrent == 0 {
		cfg.Trading.MaxConcurrent = 4
	}
	if cfg.Trading.OpenAt == "" {
		cfg.Trading.OpenAt = "15:45"
	}
	if cfg.Trading.CloseAt == "" {
		cfg.Trading.CloseAt = "09:45"
	}
	if cfg.Trading.WindowMinutes == 0 {
		cfg.Trading.WindowMinutes = 30
	}
	if cfg.Chase.OpenWaitSec == 0 {
		cfg.Chase.OpenWaitSec = 30
	}
	if cfg.Chase.CloseWaitSec == 0 {
		cfg.Chase.CloseWaitSec = 60
	}
	if cfg.Chase.PollIntervalMs == 0 {
		cfg.Chase.PollIntervalMs = 1000
	}
	if cfg.Journal.Path == "" {
		cfg.Journal.Path = "trades.db"
	}
	if cfg.Log.Level == "" {
		cfg.Log = logger.DefaultConfig()
	}
}

// Validate ensures required fields are present.
func Validate(cfg AppConfig) error {
	if cfg.Env == "" {
		return errors.New("env is required")
	}
	if cfg.Alpaca.APIKey == "" || cfg.Alpaca.APISecret == "" {
		return errors.New("alpaca.apiKey/apiSecret is required (or env overrides)")
	}
	if cfg.Trading.KellyFraction <= 0 || cfg.Trading.KellyFraction > 1 {
		return fmt.Errorf("trading.kellyFraction must be in (0,1], got %v", cfg.Trading.KellyFraction)
	}
	if cfg.Trading.PortfolioBudgetUSD < 0 {
		return errors.New("trading.portfolioBudgetUSD must be >= 0")
	}
	if cfg.Trading.MaxConcurrent < 1 {
		return errors.New("trading.maxConcurrent must be >= 1")
	}
	if _, err := parseClock(cfg.Trading.OpenAt); err != nil {
		return fmt.Errorf("trading.openAt: %w", err)
	}
	if _, err := parseClock(cfg.Trading.CloseAt); err != nil {
		return fmt.Errorf("trading.closeAt: %w", err)
	}
	if cfg.Trading.WindowMinutes < 1 {
		return errors.New("trading.windowMinutes must be >= 1")
	}
	if cfg.Chase.OpenWaitSec < 1 || cfg.Chase.CloseWaitSec < 1 {
		return errors.New("chase wait seconds must be >= 1")
	}
	if cfg.Chase.PollIntervalMs < 100 {
		return errors.New("chase.pollIntervalMs must be >= 100")
	}
	return nil
}

func parseClock(s string) (time.Time, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("want HH:MM, got %q", s)
	}
	return t, nil
}

// OpenWait 开仓单档等待时长。
func (c ChaseConfig) OpenWait() time.Duration {
	return time.Duration(c.OpenWaitSec) * time.Second
}

// CloseWait 平仓单档等待时长。
func (c ChaseConfig) CloseWait() time.Duration {
	return time.Duration(c.CloseWaitSec) * time.Second
}

// PollInterval 查单间隔。
func (c ChaseConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}
