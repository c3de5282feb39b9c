package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
)

// Config is the single configuration document for the bot. It is loaded once
// at startup and handed to components at construction; nothing re-reads the
// file on its own.
type Config struct {
	Exchange       ExchangeConfig     `json:"exchange"`
	Trading        TradingConfig      `json:"trading"`
	Strategies     StrategiesConfig   `json:"strategies"`
	RiskManagement RiskConfig         `json:"risk_management"`
	Logging        LoggingConfig      `json:"logging"`
	Notification   NotificationConfig `json:"notification"`
	Database       DatabaseConfig     `json:"database"`
	Redis          RedisConfig        `json:"redis"`
	Stream         StreamConfig       `json:"stream"`
}

// ExchangeConfig holds exchange API credentials and connection settings.
type ExchangeConfig struct {
	Name      string `json:"name"`
	APIKey    string `json:"api_key"`
	APISecret string `json:"api_secret"`
	Testnet   bool   `json:"testnet"`
	BaseURL   string `json:"base_url"`
	MockMode  bool   `json:"mock_mode"` // Use simulated market data, no real exchange
}

// TradingConfig holds the trading pair and sizing settings.
type TradingConfig struct {
	BaseSymbol           string  `json:"base_symbol"`
	QuoteSymbol          string  `json:"quote_symbol"`
	TradeAmount          float64 `json:"trade_amount"`      // Base position size in quote currency
	MaxPositionSize      float64 `json:"max_position_size"` // Hard cap in quote currency
	AutoTrade            bool    `json:"auto_trade"`        // false = simulate executions
	TradeIntervalSeconds int     `json:"trade_interval_seconds"`
}

// Symbol returns the trading pair in exchange format, e.g. "BTCUSDT".
func (t TradingConfig) Symbol() string {
	return t.BaseSymbol + t.QuoteSymbol
}

// Pair returns the trading pair in display format, e.g. "BTC/USDT".
func (t TradingConfig) Pair() string {
	return t.BaseSymbol + "/" + t.QuoteSymbol
}

// StrategiesConfig selects and parameterizes the signal strategies.
type StrategiesConfig struct {
	ActiveStrategy string           `json:"active_strategy"` // rsi_strategy, macd_strategy, hyperfocus_strategy
	RSI            RSIConfig        `json:"rsi_strategy"`
	MACD           MACDConfig       `json:"macd_strategy"`
	HyperFocus     HyperFocusConfig `json:"hyperfocus_strategy"`
}

type RSIConfig struct {
	Timeframe     string  `json:"timeframe"`
	RSIPeriod     int     `json:"rsi_period"`
	RSIOverbought float64 `json:"rsi_overbought"`
	RSIOversold   float64 `json:"rsi_oversold"`
}

type MACDConfig struct {
	Timeframe    string `json:"timeframe"`
	FastPeriod   int    `json:"fast_period"`
	SlowPeriod   int    `json:"slow_period"`
	SignalPeriod int    `json:"signal_period"`
}

type HyperFocusConfig struct {
	Timeframe           string  `json:"timeframe"`
	RSIPeriod           int     `json:"rsi_period"`
	RSIOverbought       float64 `json:"rsi_overbought"`
	RSIOversold         float64 `json:"rsi_oversold"`
	FastPeriod          int     `json:"fast_period"`
	SlowPeriod          int     `json:"slow_period"`
	SignalPeriod        int     `json:"signal_period"`
	MAFast              int     `json:"ma_fast"`
	MASlow              int     `json:"ma_slow"`
	VolumeFactor        float64 `json:"volume_factor"`
	VolumeLookback      int     `json:"volume_lookback"`
	RequireConfirmation bool    `json:"require_confirmation"`
}

// RiskConfig holds the risk management limits.
type RiskConfig struct {
	StopLossPercentage    float64 `json:"stop_loss_percentage"`
	TakeProfitPercentage  float64 `json:"take_profit_percentage"`
	MaxDailyTrades        int     `json:"max_daily_trades"`
	MaxOpenPositions      int     `json:"max_open_positions"`
	MaxExposurePercentage float64 `json:"max_exposure_percentage"`
}

type LoggingConfig struct {
	Level      string `json:"level"`  // debug, info, warn, error
	Output     string `json:"output"` // stdout, stderr, or file path
	JSONFormat bool   `json:"json_format"`
}

type NotificationConfig struct {
	Enabled  bool           `json:"enabled"`
	Telegram TelegramConfig `json:"telegram"`
	Discord  DiscordConfig  `json:"discord"`
}

type TelegramConfig struct {
	Enabled  bool   `json:"enabled"`
	BotToken string `json:"bot_token"`
	ChatID   string `json:"chat_id"`
}

type DiscordConfig struct {
	Enabled    bool   `json:"enabled"`
	WebhookURL string `json:"webhook_url"`
}

// DatabaseConfig enables the optional PostgreSQL trade store. When disabled
// the ledger falls back to the JSON history file.
type DatabaseConfig struct {
	Enabled  bool   `json:"enabled"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSLMode  string `json:"ssl_mode"`
}

// RedisConfig enables risk-state persistence across restarts.
type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

// StreamConfig enables the WebSocket candle stream that keeps the market
// cache warm between REST refreshes.
type StreamConfig struct {
	Enabled bool   `json:"enabled"`
	URL     string `json:"url"`
}

// Load reads the configuration file and applies environment overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := defaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration back to disk. Used by the emergency kill
// path to persist auto_trade=false.
func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// Validate checks settings that would make the bot misbehave silently.
func (c *Config) Validate() error {
	if c.Trading.BaseSymbol == "" || c.Trading.QuoteSymbol == "" {
		return fmt.Errorf("trading.base_symbol and trading.quote_symbol are required")
	}
	if c.Trading.TradeAmount <= 0 {
		return fmt.Errorf("trading.trade_amount must be positive")
	}
	if c.Trading.MaxPositionSize < c.Trading.TradeAmount {
		return fmt.Errorf("trading.max_position_size (%.2f) is below trade_amount (%.2f)",
			c.Trading.MaxPositionSize, c.Trading.TradeAmount)
	}
	switch c.Strategies.ActiveStrategy {
	case "rsi_strategy", "macd_strategy", "hyperfocus_strategy":
	default:
		return fmt.Errorf("unknown active_strategy %q", c.Strategies.ActiveStrategy)
	}
	if !c.Exchange.MockMode {
		if c.Exchange.APIKey == "" || c.Exchange.APISecret == "" {
			return fmt.Errorf("exchange.api_key and exchange.api_secret are required outside mock mode")
		}
	}
	return nil
}

func defaultConfig() *Config {
	return &Config{
		Exchange: ExchangeConfig{
			Name:    "mexc",
			BaseURL: "https://api.mexc.com",
		},
		Trading: TradingConfig{
			BaseSymbol:           "BTC",
			QuoteSymbol:          "USDT",
			TradeAmount:          10.0,
			MaxPositionSize:      100.0,
			TradeIntervalSeconds: 60,
		},
		Strategies: StrategiesConfig{
			ActiveStrategy: "rsi_strategy",
			RSI: RSIConfig{
				Timeframe:     "5m",
				RSIPeriod:     14,
				RSIOverbought: 70,
				RSIOversold:   30,
			},
			MACD: MACDConfig{
				Timeframe:    "15m",
				FastPeriod:   12,
				SlowPeriod:   26,
				SignalPeriod: 9,
			},
			HyperFocus: HyperFocusConfig{
				Timeframe:           "15m",
				RSIPeriod:           14,
				RSIOverbought:       70,
				RSIOversold:         30,
				FastPeriod:          12,
				SlowPeriod:          26,
				SignalPeriod:        9,
				MAFast:              20,
				MASlow:              50,
				VolumeFactor:        1.5,
				VolumeLookback:      20,
				RequireConfirmation: true,
			},
		},
		RiskManagement: RiskConfig{
			StopLossPercentage:    2.0,
			TakeProfitPercentage:  4.0,
			MaxDailyTrades:        10,
			MaxOpenPositions:      3,
			MaxExposurePercentage: 50.0,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: "stdout",
		},
		Database: DatabaseConfig{
			Host:    "localhost",
			Port:    5432,
			SSLMode: "disable",
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Stream: StreamConfig{
			URL: "wss://wbs.mexc.com/ws",
		},
	}
}

// applyEnvOverrides lets credentials and deployment knobs come from the
// environment instead of the config file.
func applyEnvOverrides(cfg *Config) {
	cfg.Exchange.APIKey = getEnvOrDefault("EXCHANGE_API_KEY", cfg.Exchange.APIKey)
	cfg.Exchange.APISecret = getEnvOrDefault("EXCHANGE_API_SECRET", cfg.Exchange.APISecret)
	cfg.Exchange.BaseURL = getEnvOrDefault("EXCHANGE_BASE_URL", cfg.Exchange.BaseURL)

	cfg.Notification.Telegram.BotToken = getEnvOrDefault("TELEGRAM_BOT_TOKEN", cfg.Notification.Telegram.BotToken)
	cfg.Notification.Telegram.ChatID = getEnvOrDefault("TELEGRAM_CHAT_ID", cfg.Notification.Telegram.ChatID)
	cfg.Notification.Discord.WebhookURL = getEnvOrDefault("DISCORD_WEBHOOK_URL", cfg.Notification.Discord.WebhookURL)

	cfg.Database.Host = getEnvOrDefault("DB_HOST", cfg.Database.Host)
	cfg.Database.Port = getEnvIntOrDefault("DB_PORT", cfg.Database.Port)
	cfg.Database.User = getEnvOrDefault("DB_USER", cfg.Database.User)
	cfg.Database.Password = getEnvOrDefault("DB_PASSWORD", cfg.Database.Password)
	cfg.Database.Database = getEnvOrDefault("DB_NAME", cfg.Database.Database)

	cfg.Redis.Addr = getEnvOrDefault("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = getEnvOrDefault("REDIS_PASSWORD", cfg.Redis.Password)

	cfg.Logging.Level = getEnvOrDefault("LOG_LEVEL", cfg.Logging.Level)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

// GenerateSampleConfig writes a fully populated example config file.
func GenerateSampleConfig(path string) error {
	cfg := defaultConfig()
	cfg.Exchange.APIKey = "your-api-key"
	cfg.Exchange.APISecret = "your-api-secret"
	return cfg.Save(path)
}
