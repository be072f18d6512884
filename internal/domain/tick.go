package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PoolTick one replay step of pool state: the price of the base token in
// quote units and the pool liquidity at that moment.
type PoolTick struct {
	Time      time.Time
	Price     decimal.Decimal
	Liquidity decimal.Decimal
}

// MarketCandle single OHLCV candlestick fetched from an exchange.
type MarketCandle struct {
	OpenTime  time.Time
	Open      decimal.Decimal
	High      decimal.Decimal
	Low       decimal.Decimal
	Close     decimal.Decimal
	Volume    decimal.Decimal
	CloseTime time.Time
}
