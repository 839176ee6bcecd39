package exchange

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ducminhle1904/signal-relay-bot/pkg/types"
)

func TestSymbolFor(t *testing.T) {
	assert.Equal(t, "ETHUSDT", SymbolFor("eth", "USDT"))
	assert.Equal(t, "BTCUSDT", SymbolFor("BTCUSDT", "usdt"))
	assert.Equal(t, "SOL", SymbolFor("SOL", ""))
}

func TestEntrySide(t *testing.T) {
	assert.Equal(t, OrderSideBuy, EntrySide(types.DirectionLong))
	assert.Equal(t, OrderSideSell, EntrySide(types.DirectionShort))
}

func TestExchangeErrorIs(t *testing.T) {
	err := fmt.Errorf("place: %w", WrapExchangeError(ErrRateLimitExceeded, errors.New("429")))
	assert.True(t, errors.Is(err, ErrRateLimitExceeded))
	assert.False(t, errors.Is(err, ErrCircuitOpen))
	assert.Contains(t, err.Error(), "429")
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name   string
		config ExchangeConfig
		code   string
	}{
		{"paper", ExchangeConfig{Name: "paper"}, ""},
		{"missing name", ExchangeConfig{}, "MISSING_EXCHANGE_NAME"},
		{"unsupported", ExchangeConfig{Name: "kraken"}, "UNSUPPORTED_EXCHANGE"},
		{"bybit missing section", ExchangeConfig{Name: "bybit"}, "MISSING_BYBIT_CONFIG"},
		{"bybit missing key", ExchangeConfig{Name: "bybit", Bybit: &BybitConfig{}}, "MISSING_API_KEY"},
		{"bybit both envs", ExchangeConfig{Name: "Bybit", Bybit: &BybitConfig{APIKey: "k", APISecret: "s", Demo: true, Testnet: true}}, "INVALID_ENVIRONMENT_CONFIG"},
		{"bybit ok", ExchangeConfig{Name: "bybit", Bybit: &BybitConfig{APIKey: "k", APISecret: "s", Demo: true}}, ""},
		{"binance missing secret", ExchangeConfig{Name: "binance", Binance: &BinanceConfig{APIKey: "k"}}, "MISSING_API_SECRET"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateConfig(tt.config)
			if tt.code == "" {
				assert.NoError(t, err)
				return
			}
			var exErr *ExchangeError
			if assert.True(t, errors.As(err, &exErr)) {
				assert.Equal(t, tt.code, exErr.Code)
			}
		})
	}
}
