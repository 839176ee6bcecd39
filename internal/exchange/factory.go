package exchange

import (
	"fmt"
	"strings"
)

const (
	NameBybit   = "bybit"
	NameBinance = "binance"
	NamePaper   = "paper"
)

// ExchangeConfig holds configuration for creating executors
type ExchangeConfig struct {
	Name    string         `json:"name"`              // bybit, binance or paper
	Bybit   *BybitConfig   `json:"bybit,omitempty"`   // Bybit-specific config
	Binance *BinanceConfig `json:"binance,omitempty"` // Binance-specific config
	Safety  SafetyConfig   `json:"safety"`
}

// BybitConfig holds Bybit-specific configuration
type BybitConfig struct {
	APIKey    string `json:"api_key"`
	APISecret string `json:"api_secret"`
	Testnet   bool   `json:"testnet"`
	Demo      bool   `json:"demo"`
	Category  string `json:"category"`
}

// BinanceConfig holds Binance futures configuration
type BinanceConfig struct {
	APIKey    string `json:"api_key"`
	APISecret string `json:"api_secret"`
	Testnet   bool   `json:"testnet"`
}

// SafetyConfig tunes the protection layer wrapped around every executor
type SafetyConfig struct {
	RequestsPerSecond int     `json:"requests_per_second"`
	Burst             int     `json:"burst"`
	MaxFailures       int     `json:"max_failures"`
	ResetTimeoutSec   int     `json:"reset_timeout_sec"`
	MaxQuantity       float64 `json:"max_quantity"`
}

// SupportedExchanges returns the list of executor names
func SupportedExchanges() []string {
	return []string{NameBybit, NameBinance, NamePaper}
}

// ValidateConfig validates the exchange configuration
func ValidateConfig(config ExchangeConfig) error {
	name := strings.ToLower(strings.TrimSpace(config.Name))
	if name == "" {
		return &ExchangeError{
			Code:    "MISSING_EXCHANGE_NAME",
			Message: "Exchange name is required",
		}
	}

	switch name {
	case NamePaper:
		return nil
	case NameBybit:
		if config.Bybit == nil {
			return missingSection("Bybit")
		}
		if err := requireCredentials("Bybit", "BYBIT", config.Bybit.APIKey, config.Bybit.APISecret); err != nil {
			return err
		}
		if config.Bybit.Testnet && config.Bybit.Demo {
			return &ExchangeError{
				Code:    "INVALID_ENVIRONMENT_CONFIG",
				Message: "Cannot use both testnet and demo mode simultaneously",
				Details: "Choose either testnet OR demo mode, not both",
			}
		}
		return nil
	case NameBinance:
		if config.Binance == nil {
			return missingSection("Binance")
		}
		return requireCredentials("Binance", "BINANCE", config.Binance.APIKey, config.Binance.APISecret)
	default:
		return &ExchangeError{
			Code:    "UNSUPPORTED_EXCHANGE",
			Message: fmt.Sprintf("Exchange '%s' is not supported", config.Name),
			Details: fmt.Sprintf("Supported exchanges: %v", SupportedExchanges()),
		}
	}
}

func missingSection(name string) error {
	return &ExchangeError{
		Code:    "MISSING_" + strings.ToUpper(name) + "_CONFIG",
		Message: name + " configuration is required",
	}
}

func requireCredentials(name, envPrefix, key, secret string) error {
	if key == "" {
		return &ExchangeError{
			Code:    "MISSING_API_KEY",
			Message: name + " API key is required",
			Details: "Set " + envPrefix + "_API_KEY environment variable or provide in config",
		}
	}
	if secret == "" {
		return &ExchangeError{
			Code:    "MISSING_API_SECRET",
			Message: name + " API secret is required",
			Details: "Set " + envPrefix + "_API_SECRET environment variable or provide in config",
		}
	}
	return nil
}
