// Package config loads runtime configuration from environment
// variables and the strategy parameter file.
package config

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Huobi credentials
	HuobiAccessKey string
	HuobiSecretKey string

	// Venue endpoints
	WSURL    string
	WSHost   string
	WSPath   string
	RESTBase string

	// Infrastructure
	RedisAddr     string
	RedisPassword string
	SQLitePath    string
	MetricsAddr   string

	// Notifications (empty disables the backend)
	TelegramBotToken string
	TelegramChatID   string
	WebhookURL       string

	// Subscription
	Symbols       string
	KlineInterval string

	// Strategy parameter file
	StrategyPath string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		HuobiAccessKey: mustEnv("HUOBI_ACCESS_KEY"),
		HuobiSecretKey: mustEnv("HUOBI_SECRET_KEY"),

		WSURL:    getEnv("HUOBI_WS_URL", "wss://api.huobi.pro/ws"),
		WSHost:   getEnv("HUOBI_WS_HOST", "api.huobi.pro"),
		WSPath:   getEnv("HUOBI_WS_PATH", "/ws"),
		RESTBase: getEnv("HUOBI_REST_BASE", "https://api.huobi.pro"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		SQLitePath:    getEnv("SQLITE_PATH", "data/quant.db"),
		MetricsAddr:   getEnv("METRICS_ADDR", ":9090"),

		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:   getEnv("TELEGRAM_CHAT_ID", ""),
		WebhookURL:       getEnv("WEBHOOK_URL", ""),

		Symbols:       getEnv("SYMBOLS", "btcusdt"),
		KlineInterval: getEnv("KLINE_INTERVAL", "1min"),

		StrategyPath: getEnv("STRATEGY_PATH", "strategy.yaml"),
	}
}

// ParseSymbols splits the SYMBOLS list into cleaned lowercase symbols.
func (c *Config) ParseSymbols() []string {
	parts := strings.Split(c.Symbols, ",")
	symbols := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		symbols = append(symbols, p)
	}
	return symbols
}

// Strategy holds the tunable trading parameters, loaded from YAML so
// they can change without a rebuild. Decimal fields are declared as
// strings in the file and parsed exactly, never through float64.
type Strategy struct {
	Upper decimal.Decimal
	Lower decimal.Decimal

	MACD struct {
		Fast   int `yaml:"fast"`
		Slow   int `yaml:"slow"`
		Signal int `yaml:"signal"`
	} `yaml:"macd"`

	LockWindow  int `yaml:"lock_window"`
	MaxOpen     int `yaml:"max_open"`
	PnLWindow   int `yaml:"pnl_window"`
	OrderQty    decimal.Decimal
	HistoryBars int `yaml:"history_bars"`
}

// strategyFile mirrors Strategy with string decimals for YAML decoding.
type strategyFile struct {
	Upper string `yaml:"upper"`
	Lower string `yaml:"lower"`

	MACD struct {
		Fast   int `yaml:"fast"`
		Slow   int `yaml:"slow"`
		Signal int `yaml:"signal"`
	} `yaml:"macd"`

	LockWindow  int    `yaml:"lock_window"`
	MaxOpen     int    `yaml:"max_open"`
	PnLWindow   int    `yaml:"pnl_window"`
	OrderQty    string `yaml:"order_qty"`
	HistoryBars int    `yaml:"history_bars"`
}

// DefaultStrategy returns the parameters used when no file exists.
func DefaultStrategy() Strategy {
	s := Strategy{
		Upper:       decimal.NewFromFloat(0.5),
		Lower:       decimal.NewFromFloat(-0.5),
		LockWindow:  10,
		MaxOpen:     3,
		PnLWindow:   100,
		OrderQty:    decimal.NewFromInt(1),
		HistoryBars: 300,
	}
	s.MACD.Fast, s.MACD.Slow, s.MACD.Signal = 12, 26, 9
	return s
}

// LoadStrategy reads the strategy YAML at path. A missing file falls
// back to defaults; a malformed file is a startup error.
func LoadStrategy(path string) (Strategy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Printf("[config] strategy file %s not found, using defaults", path)
			return DefaultStrategy(), nil
		}
		return Strategy{}, fmt.Errorf("read strategy: %w", err)
	}

	var raw strategyFile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Strategy{}, fmt.Errorf("parse strategy %s: %w", path, err)
	}

	s := DefaultStrategy()
	if err := s.merge(raw); err != nil {
		return Strategy{}, fmt.Errorf("strategy %s: %w", path, err)
	}
	if err := s.validate(); err != nil {
		return Strategy{}, fmt.Errorf("strategy %s: %w", path, err)
	}
	return s, nil
}

// merge overlays non-empty file values onto the defaults.
func (s *Strategy) merge(raw strategyFile) error {
	var err error
	if raw.Upper != "" {
		if s.Upper, err = decimal.NewFromString(raw.Upper); err != nil {
			return fmt.Errorf("upper: %w", err)
		}
	}
	if raw.Lower != "" {
		if s.Lower, err = decimal.NewFromString(raw.Lower); err != nil {
			return fmt.Errorf("lower: %w", err)
		}
	}
	if raw.OrderQty != "" {
		if s.OrderQty, err = decimal.NewFromString(raw.OrderQty); err != nil {
			return fmt.Errorf("order_qty: %w", err)
		}
	}
	if raw.MACD.Fast > 0 {
		s.MACD.Fast = raw.MACD.Fast
	}
	if raw.MACD.Slow > 0 {
		s.MACD.Slow = raw.MACD.Slow
	}
	if raw.MACD.Signal > 0 {
		s.MACD.Signal = raw.MACD.Signal
	}
	if raw.LockWindow > 0 {
		s.LockWindow = raw.LockWindow
	}
	if raw.MaxOpen > 0 {
		s.MaxOpen = raw.MaxOpen
	}
	if raw.PnLWindow > 0 {
		s.PnLWindow = raw.PnLWindow
	}
	if raw.HistoryBars > 0 {
		s.HistoryBars = raw.HistoryBars
	}
	return nil
}

func (s Strategy) validate() error {
	if s.Upper.LessThanOrEqual(s.Lower) {
		return fmt.Errorf("upper threshold %s must exceed lower %s", s.Upper, s.Lower)
	}
	if s.MACD.Fast <= 0 || s.MACD.Slow <= s.MACD.Fast || s.MACD.Signal <= 0 {
		return fmt.Errorf("invalid macd periods %d/%d/%d", s.MACD.Fast, s.MACD.Slow, s.MACD.Signal)
	}
	if s.OrderQty.Sign() <= 0 {
		return fmt.Errorf("order_qty must be positive, got %s", s.OrderQty)
	}
	return nil
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		log.Fatalf("[config] required env var %s not set", key)
	}
	return v
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}
