package marketdata

import (
	"math/big"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/bandit/internal/domain"
)

func TestTicksFromCandles(t *testing.T) {
	candles := []domain.MarketCandle{
		{
			Close:     decimal.NewFromInt(2000),
			Volume:    decimal.NewFromInt(500),
			CloseTime: time.Date(2021, 6, 21, 0, 5, 0, 0, time.UTC),
		},
		{
			Close:     decimal.NewFromInt(2010),
			Volume:    decimal.NewFromInt(450),
			CloseTime: time.Date(2021, 6, 21, 0, 10, 0, 0, time.UTC),
		},
	}

	ticks := TicksFromCandles(candles)
	require.Len(t, ticks, 2)
	require.True(t, decimal.NewFromInt(2000).Equal(ticks[0].Price))
	require.True(t, decimal.NewFromInt(500).Equal(ticks[0].Liquidity))
	require.Equal(t, candles[1].CloseTime, ticks[1].Time)
}

func TestParseIntervalToDuration(t *testing.T) {
	d, err := parseIntervalToDuration("15m")
	require.NoError(t, err)
	require.Equal(t, 15*time.Minute, d)

	d, err = parseIntervalToDuration("4h")
	require.NoError(t, err)
	require.Equal(t, 4*time.Hour, d)

	d, err = parseIntervalToDuration("1d")
	require.NoError(t, err)
	require.Equal(t, 24*time.Hour, d)

	_, err = parseIntervalToDuration("")
	require.Error(t, err)
	_, err = parseIntervalToDuration("m")
	require.Error(t, err)
	_, err = parseIntervalToDuration("5x")
	require.Error(t, err)
}

func TestPriceFromSqrtX96(t *testing.T) {
	// sqrtPriceX96 = 2^96 means a raw pool price of exactly 1
	q96int := new(big.Int).Lsh(big.NewInt(1), 96)

	price, err := priceFromSqrtX96(q96int, 18, 18)
	require.NoError(t, err)
	require.True(t, decimal.NewFromInt(1).Equal(price), "got %s", price.String())

	// doubling the sqrt price quadruples the price
	price, err = priceFromSqrtX96(new(big.Int).Lsh(q96int, 1), 18, 18)
	require.NoError(t, err)
	require.True(t, decimal.NewFromInt(4).Equal(price))

	// decimal adjustment: base has 6 decimals (USDC), quote 18 (WETH)
	price, err = priceFromSqrtX96(q96int, 6, 18)
	require.NoError(t, err)
	require.True(t, decimal.NewFromFloat(1e-12).Equal(price), "got %s", price.String())

	_, err = priceFromSqrtX96(big.NewInt(0), 18, 18)
	require.Error(t, err)
}
