// Package marketdata fetches the historical series the replay environment
// plays back. Exchange candles approximate pool state (close price, volume as
// the liquidity proxy); the Uniswap reader samples real pool state on-chain.
package marketdata

import (
	"context"

	"github.com/vadiminshakov/bandit/internal/domain"
)

// KlineProvider fetches historical candlestick data for a trading pair.
type KlineProvider interface {
	GetKlines(ctx context.Context, pair domain.Pair, interval string, limit int) ([]domain.MarketCandle, error)
}

// TicksFromCandles converts exchange candles into replay ticks: the close
// price becomes the pool price, traded volume stands in for pool liquidity.
func TicksFromCandles(candles []domain.MarketCandle) []domain.PoolTick {
	ticks := make([]domain.PoolTick, len(candles))
	for i, c := range candles {
		ticks[i] = domain.PoolTick{
			Time:      c.CloseTime,
			Price:     c.Close,
			Liquidity: c.Volume,
		}
	}
	return ticks
}
