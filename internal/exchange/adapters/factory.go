package adapters

import (
	"fmt"
	"strings"
	"time"

	"github.com/ducminhle1904/signal-relay-bot/internal/exchange"
)

// NewExecutor creates the executor named in config, wrapped in the safety
// layer. quote is appended to asset tickers to build symbols.
func NewExecutor(config exchange.ExchangeConfig, quote string, callTimeout time.Duration) (*ProtectedExecutor, error) {
	if err := exchange.ValidateConfig(config); err != nil {
		return nil, err
	}

	var inner exchange.Executor
	var err error

	switch strings.ToLower(strings.TrimSpace(config.Name)) {
	case exchange.NameBybit:
		inner, err = NewBybitAdapter(config.Bybit, quote)
	case exchange.NameBinance:
		inner, err = NewBinanceAdapter(config.Binance, quote)
	case exchange.NamePaper:
		inner = NewPaperExchange()
	default:
		err = fmt.Errorf("exchange %q is not supported", config.Name)
	}
	if err != nil {
		return nil, err
	}

	return NewProtectedExecutor(inner, config.Safety, callTimeout), nil
}
