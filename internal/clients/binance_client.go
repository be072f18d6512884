// Package clients constructs the exchange SDK clients used by the candle feeds.
package clients

import (
	"github.com/adshao/go-binance/v2"
)

// NewBinanceClient builds a Binance client. Kline endpoints are public, so
// empty credentials are fine for a data-only client.
func NewBinanceClient(apiKey, apiSecret string) *binance.Client {
	return binance.NewClient(apiKey, apiSecret)
}
