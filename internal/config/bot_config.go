package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	boterrors "github.com/ducminhle1904/signal-relay-bot/internal/errors"
	"github.com/ducminhle1904/signal-relay-bot/internal/exchange"
	"github.com/ducminhle1904/signal-relay-bot/internal/position"
)

const (
	FeedDiscord = "discord"
	FeedReplay  = "replay"

	DefaultRiskAmount = 100.0
)

// BotConfig represents the complete configuration for the signal bot
type BotConfig struct {
	Feed     FeedConfig              `json:"feed"`
	Exchange exchange.ExchangeConfig `json:"exchange"`
	Risk     RiskConfig              `json:"risk"`
	Trading  TradingConfig           `json:"trading"`

	Monitoring    MonitoringConfig    `json:"monitoring"`
	Notifications *NotificationConfig `json:"notifications,omitempty"`
	Journal       JournalConfig       `json:"journal"`
}

// FeedConfig selects and configures the message source
type FeedConfig struct {
	Type            string `json:"type"`               // discord or replay
	ChannelURL      string `json:"channel_url"`        // Discord channel to watch
	Email           string `json:"email,omitempty"`    // Usually supplied via DISCORD_EMAIL
	Password        string `json:"password,omitempty"` // Usually supplied via DISCORD_PASSWORD
	ProfileDir      string `json:"profile_dir"`        // Chrome profile, keeps the session
	Headless        bool   `json:"headless"`
	LoginTimeoutSec int    `json:"login_timeout_sec"` // Time allowed for manual CAPTCHA/2FA
	ReplayFile      string `json:"replay_file"`       // JSON file for the replay feed
}

// RiskConfig holds position sizing configuration
type RiskConfig struct {
	Amount      float64 `json:"amount"`       // Quote currency lost if the stop is hit
	MaxNotional float64 `json:"max_notional"` // Optional cap on entry * quantity, 0 disables
}

// TradingConfig holds loop and order settings
type TradingConfig struct {
	QuoteAsset      string `json:"quote_asset"`
	PollIntervalSec int    `json:"poll_interval_sec"`
	ClosePolicy     string `json:"close_policy"` // unconditional or confirmed
	CallTimeoutSec  int    `json:"call_timeout_sec"`
}

// MonitoringConfig configures the HTTP monitoring server
type MonitoringConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr"`
}

// NotificationConfig holds notification settings
type NotificationConfig struct {
	Enabled       bool   `json:"enabled"`
	TelegramToken string `json:"telegram_token,omitempty"`
	TelegramChat  string `json:"telegram_chat,omitempty"`
}

// JournalConfig configures the Excel trade journal
type JournalConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// LoadEnvFile loads KEY=VALUE pairs from an env file. A missing file is
// not an error since everything can come from the real environment.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// ResolvePath maps bare names to configs/<name>.json
func ResolvePath(configFile string) string {
	if !strings.ContainsAny(configFile, "/\\") {
		configFile = filepath.Join("configs", configFile)
	}
	if !strings.HasSuffix(configFile, ".json") {
		configFile += ".json"
	}
	return configFile
}

// Overrides carries command line switches that win over file and env
type Overrides struct {
	Paper    bool // route orders to the in-memory executor
	Demo     bool // use the Bybit demo environment
	Headless bool
}

func (c *BotConfig) applyOverrides(ov Overrides) {
	if ov.Paper {
		c.Exchange.Name = exchange.NamePaper
	}
	if ov.Demo && strings.EqualFold(c.Exchange.Name, exchange.NameBybit) {
		if c.Exchange.Bybit == nil {
			c.Exchange.Bybit = &exchange.BybitConfig{}
		}
		c.Exchange.Bybit.Demo = true
		c.Exchange.Bybit.Testnet = false
	}
	if ov.Headless {
		c.Feed.Headless = true
	}
}

// LoadBotConfig loads configuration from file, applies environment and
// command line overrides and defaults, and validates the result. An empty
// configFile builds the configuration from defaults and the environment.
func LoadBotConfig(configFile string, ov Overrides) (*BotConfig, error) {
	var config BotConfig

	if configFile != "" {
		path := ResolvePath(configFile)
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, boterrors.WrapError(fmt.Errorf("failed to read config file %s: %w", path, err),
				boterrors.ErrorCategoryConfiguration, "config", "load")
		}
		if err := json.Unmarshal(data, &config); err != nil {
			return nil, boterrors.WrapError(fmt.Errorf("failed to parse config file: %w", err),
				boterrors.ErrorCategoryConfiguration, "config", "load")
		}
	}

	// Credentials are read per exchange, so the name must be known first
	if config.Exchange.Name == "" {
		config.Exchange.Name = exchange.NameBybit
	}
	if err := config.applyEnv(); err != nil {
		return nil, boterrors.WrapError(err, boterrors.ErrorCategoryConfiguration, "config", "env")
	}

	config.applyOverrides(ov)
	config.setDefaults()

	if err := config.Validate(); err != nil {
		return nil, boterrors.WrapError(fmt.Errorf("config validation failed: %w", err),
			boterrors.ErrorCategoryConfiguration, "config", "validate")
	}

	return &config, nil
}

// applyEnv overlays secrets and per-deployment values from the environment
func (c *BotConfig) applyEnv() error {
	if v := os.Getenv("RISK_AMOUNT"); v != "" {
		amount, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return fmt.Errorf("invalid RISK_AMOUNT %q: %w", v, err)
		}
		c.Risk.Amount = amount
	}

	setIfEnv(&c.Feed.ChannelURL, "DISCORD_CHANNEL_URL")
	setIfEnv(&c.Feed.Email, "DISCORD_EMAIL")
	setIfEnv(&c.Feed.Password, "DISCORD_PASSWORD")

	switch strings.ToLower(c.Exchange.Name) {
	case exchange.NameBybit:
		if c.Exchange.Bybit == nil {
			c.Exchange.Bybit = &exchange.BybitConfig{}
		}
		setIfEnv(&c.Exchange.Bybit.APIKey, "BYBIT_API_KEY")
		setIfEnv(&c.Exchange.Bybit.APISecret, "BYBIT_API_SECRET")
	case exchange.NameBinance:
		if c.Exchange.Binance == nil {
			c.Exchange.Binance = &exchange.BinanceConfig{}
		}
		setIfEnv(&c.Exchange.Binance.APIKey, "BINANCE_API_KEY")
		setIfEnv(&c.Exchange.Binance.APISecret, "BINANCE_API_SECRET")
	}

	token, chat := os.Getenv("TELEGRAM_TOKEN"), os.Getenv("TELEGRAM_CHAT_ID")
	if token != "" || chat != "" {
		if c.Notifications == nil {
			c.Notifications = &NotificationConfig{Enabled: true}
		}
		setIfEnv(&c.Notifications.TelegramToken, "TELEGRAM_TOKEN")
		setIfEnv(&c.Notifications.TelegramChat, "TELEGRAM_CHAT_ID")
	}
	return nil
}

func setIfEnv(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// setDefaults sets default values for missing configuration
func (c *BotConfig) setDefaults() {
	if c.Feed.Type == "" {
		c.Feed.Type = FeedDiscord
	}
	if c.Feed.ProfileDir == "" {
		c.Feed.ProfileDir = ".chrome-profile"
	}
	if c.Feed.LoginTimeoutSec == 0 {
		c.Feed.LoginTimeoutSec = 300
	}

	if c.Risk.Amount == 0 {
		c.Risk.Amount = DefaultRiskAmount
	}

	if c.Trading.QuoteAsset == "" {
		c.Trading.QuoteAsset = "USDT"
	}
	if c.Trading.PollIntervalSec == 0 {
		c.Trading.PollIntervalSec = 10
	}
	if c.Trading.ClosePolicy == "" {
		c.Trading.ClosePolicy = string(position.ClosePolicyUnconditional)
	}
	if c.Trading.CallTimeoutSec == 0 {
		c.Trading.CallTimeoutSec = 15
	}

	if c.Monitoring.Addr == "" {
		c.Monitoring.Addr = ":9090"
	}
	if c.Journal.Path == "" {
		c.Journal.Path = filepath.Join("results", "trade_journal.xlsx")
	}
}

// Validate validates the configuration
func (c *BotConfig) Validate() error {
	switch c.Feed.Type {
	case FeedDiscord:
		if c.Feed.ChannelURL == "" {
			return fmt.Errorf("discord channel url is required (set DISCORD_CHANNEL_URL)")
		}
	case FeedReplay:
		if c.Feed.ReplayFile == "" {
			return fmt.Errorf("replay feed requires replay_file")
		}
	default:
		return fmt.Errorf("unknown feed type %q", c.Feed.Type)
	}
	if c.Feed.LoginTimeoutSec < 0 {
		return fmt.Errorf("login timeout must not be negative")
	}

	if c.Risk.Amount <= 0 {
		return fmt.Errorf("risk amount must be greater than 0")
	}
	if c.Risk.MaxNotional < 0 {
		return fmt.Errorf("max notional must not be negative")
	}

	if c.Trading.PollIntervalSec <= 0 {
		return fmt.Errorf("poll interval must be greater than 0")
	}
	if c.Trading.CallTimeoutSec <= 0 {
		return fmt.Errorf("call timeout must be greater than 0")
	}
	if _, err := position.ParseClosePolicy(c.Trading.ClosePolicy); err != nil {
		return err
	}

	if c.Notifications != nil && c.Notifications.Enabled {
		if c.Notifications.TelegramToken == "" || c.Notifications.TelegramChat == "" {
			return fmt.Errorf("telegram notifications need both token and chat id")
		}
	}

	if err := exchange.ValidateConfig(c.Exchange); err != nil {
		return fmt.Errorf("exchange config validation failed: %w", err)
	}

	return nil
}

// PollInterval returns the delay between cycles
func (c *BotConfig) PollInterval() time.Duration {
	return time.Duration(c.Trading.PollIntervalSec) * time.Second
}

// CallTimeout bounds each exchange call
func (c *BotConfig) CallTimeout() time.Duration {
	return time.Duration(c.Trading.CallTimeoutSec) * time.Second
}

// LoginTimeout is the time allowed for an interactive Discord login
func (c *BotConfig) LoginTimeout() time.Duration {
	return time.Duration(c.Feed.LoginTimeoutSec) * time.Second
}

// ClosePolicy returns the parsed close policy. Only valid after Validate.
func (c *BotConfig) ClosePolicy() position.ClosePolicy {
	p, _ := position.ParseClosePolicy(c.Trading.ClosePolicy)
	return p
}

// NotificationsEnabled reports whether alerts should be sent
func (c *BotConfig) NotificationsEnabled() bool {
	return c.Notifications != nil && c.Notifications.Enabled
}
