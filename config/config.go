package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Chartflow ChartflowConfig `yaml:"chartflow"`
	Server    ServerConfig    `yaml:"server"`
	Market    MarketConfig    `yaml:"market"`
	Session   SessionConfig   `yaml:"session"`
	Channels  ChannelsConfig  `yaml:"channels"`
	Source    SourceConfig    `yaml:"source"`
	History   HistoryConfig   `yaml:"history"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

type ChartflowConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
}

type ServerConfig struct {
	Address         string        `yaml:"address"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type MarketConfig struct {
	Instruments      []string `yaml:"instruments"`
	QuoteAsset       string   `yaml:"quote_asset"`
	CandleDepth      int      `yaml:"candle_depth"`
	TradeDepth       int      `yaml:"trade_depth"`
	LiquidationDepth int      `yaml:"liquidation_depth"`
}

type SessionConfig struct {
	QueueSize          int           `yaml:"queue_size"`
	KeepAlive          time.Duration `yaml:"keep_alive"`
	WriteTimeout       time.Duration `yaml:"write_timeout"`
	ReplayTrades       int           `yaml:"replay_trades"`
	ReplayLiquidations int           `yaml:"replay_liquidations"`
}

type ChannelsConfig struct {
	EventBuffer int `yaml:"event_buffer"`
}

type SourceConfig struct {
	Binance BinanceSourceConfig `yaml:"binance"`
}

type BinanceSourceConfig struct {
	Enabled        bool               `yaml:"enabled"`
	ReconnectDelay time.Duration      `yaml:"reconnect_delay"`
	LiveTimeframe  string             `yaml:"live_timeframe"`
	OpenInterest   OpenInterestConfig `yaml:"open_interest"`
}

type OpenInterestConfig struct {
	Enabled      bool          `yaml:"enabled"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

type HistoryConfig struct {
	DefaultTimeframe  string        `yaml:"default_timeframe"`
	DefaultLimit      int           `yaml:"default_limit"`
	MaxLimit          int           `yaml:"max_limit"`
	RequestTimeout    time.Duration `yaml:"request_timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	RequestBurst      int           `yaml:"request_burst"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
	MaxAge int    `yaml:"max_age"`
}

type MetricsConfig struct {
	CloudWatch CloudWatchConfig `yaml:"cloudwatch"`
}

type CloudWatchConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Region    string `yaml:"region"`
	Namespace string `yaml:"namespace"`
	Dashboard string `yaml:"dashboard"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Config{
		Server: ServerConfig{
			Address:         ":8000",
			ShutdownTimeout: 5 * time.Second,
		},
		Market: MarketConfig{
			QuoteAsset:       "USDT",
			CandleDepth:      500,
			TradeDepth:       100,
			LiquidationDepth: 50,
		},
		Session: SessionConfig{
			QueueSize:          200,
			KeepAlive:          20 * time.Second,
			WriteTimeout:       10 * time.Second,
			ReplayTrades:       20,
			ReplayLiquidations: 10,
		},
		Channels: ChannelsConfig{EventBuffer: 1024},
		Source: SourceConfig{
			Binance: BinanceSourceConfig{
				Enabled:        true,
				ReconnectDelay: 5 * time.Second,
				LiveTimeframe:  "1m",
			},
		},
		History: HistoryConfig{
			DefaultTimeframe:  "1h",
			DefaultLimit:      200,
			MaxLimit:          500,
			RequestTimeout:    10 * time.Second,
			RequestsPerSecond: 5,
			RequestBurst:      5,
		},
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Override CloudWatch region from the environment if available
	if config.Metrics.CloudWatch.Enabled {
		if v := os.Getenv("AWS_REGION"); v != "" {
			config.Metrics.CloudWatch.Region = strings.TrimSpace(v)
		}
	}

	for i, symbol := range config.Market.Instruments {
		config.Market.Instruments[i] = strings.ToUpper(strings.TrimSpace(symbol))
	}
	config.Market.QuoteAsset = strings.ToUpper(strings.TrimSpace(config.Market.QuoteAsset))

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

func validateConfig(cfg *Config) error {
	if cfg.Chartflow.Name == "" {
		return fmt.Errorf("chartflow.name is required")
	}

	if cfg.Chartflow.Version == "" {
		return fmt.Errorf("chartflow.version is required")
	}

	if len(cfg.Market.Instruments) == 0 {
		return fmt.Errorf("market.instruments must list at least one instrument")
	}
	seen := make(map[string]struct{}, len(cfg.Market.Instruments))
	for _, symbol := range cfg.Market.Instruments {
		if symbol == "" {
			return fmt.Errorf("market.instruments must not contain empty symbols")
		}
		if _, dup := seen[symbol]; dup {
			return fmt.Errorf("market.instruments lists '%s' more than once", symbol)
		}
		seen[symbol] = struct{}{}
	}

	if cfg.Market.CandleDepth <= 0 {
		return fmt.Errorf("market.candle_depth must be greater than 0")
	}
	if cfg.Market.TradeDepth <= 0 {
		return fmt.Errorf("market.trade_depth must be greater than 0")
	}
	if cfg.Market.LiquidationDepth <= 0 {
		return fmt.Errorf("market.liquidation_depth must be greater than 0")
	}

	if cfg.Session.QueueSize <= 0 {
		return fmt.Errorf("session.queue_size must be greater than 0")
	}
	if cfg.Session.KeepAlive <= 0 {
		return fmt.Errorf("session.keep_alive must be greater than 0")
	}
	if cfg.Session.ReplayTrades < 0 || cfg.Session.ReplayLiquidations < 0 {
		return fmt.Errorf("session replay depths must not be negative")
	}

	if cfg.Channels.EventBuffer <= 0 {
		return fmt.Errorf("channels.event_buffer must be greater than 0")
	}

	if cfg.History.DefaultLimit <= 0 {
		return fmt.Errorf("history.default_limit must be greater than 0")
	}
	if cfg.History.MaxLimit < cfg.History.DefaultLimit {
		return fmt.Errorf("history.max_limit must be at least history.default_limit")
	}
	if cfg.History.RequestTimeout <= 0 {
		return fmt.Errorf("history.request_timeout must be greater than 0")
	}

	if cfg.Metrics.CloudWatch.Enabled && cfg.Metrics.CloudWatch.Namespace == "" {
		return fmt.Errorf("metrics.cloudwatch.namespace is required when CloudWatch is enabled")
	}

	return nil
}
