package marketdata

import (
	"context"
	"time"

	bybit "github.com/hirokisan/bybit/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/bandit/internal/domain"
	"github.com/vadiminshakov/bandit/pkg/retrier"
)

const bybitCategory = bybit.CategoryV5Spot

// BybitKlineProvider implements KlineProvider for Bybit.
type BybitKlineProvider struct {
	client  *bybit.Client
	retrier *retrier.Retrier
}

// NewBybitKlineProvider creates a new Bybit kline provider.
func NewBybitKlineProvider(client *bybit.Client) *BybitKlineProvider {
	return &BybitKlineProvider{client: client, retrier: retrier.New()}
}

// GetKlines fetches kline data from Bybit.
func (p *BybitKlineProvider) GetKlines(ctx context.Context, pair domain.Pair, interval string, limit int) ([]domain.MarketCandle, error) {
	bybitInterval, err := toBybitInterval(interval)
	if err != nil {
		return nil, err
	}

	resp, err := retrier.DoWithData(p.retrier, ctx, func(ctx context.Context) (*bybit.V5GetKlineResponse, error) {
		return p.client.V5().Market().GetKline(bybit.V5GetKlineParam{
			Category: bybitCategory,
			Symbol:   bybit.SymbolV5(pair.Symbol()),
			Interval: bybitInterval,
			Limit:    &limit,
		})
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch klines from Bybit for %s", pair.String())
	}

	if len(resp.Result.List) == 0 {
		return nil, errors.Errorf("no klines data received from Bybit for %s", pair.String())
	}

	duration, err := parseIntervalToDuration(interval)
	if err != nil {
		return nil, err
	}

	// Bybit returns newest first; the replay wants chronological order
	list := resp.Result.List
	result := make([]domain.MarketCandle, 0, len(list))
	for i := len(list) - 1; i >= 0; i-- {
		k := list[i]

		candle, err := convertBybitKline(k, duration)
		if err != nil {
			return nil, err
		}
		result = append(result, candle)
	}

	return result, nil
}

func convertBybitKline(k bybit.V5GetKlineItem, duration time.Duration) (domain.MarketCandle, error) {
	startMs, err := decimal.NewFromString(k.StartTime)
	if err != nil {
		return domain.MarketCandle{}, errors.Wrapf(err, "failed to parse kline start time %s", k.StartTime)
	}

	open, err := decimal.NewFromString(k.Open)
	if err != nil {
		return domain.MarketCandle{}, errors.Wrapf(err, "failed to parse open price %s", k.Open)
	}
	high, err := decimal.NewFromString(k.High)
	if err != nil {
		return domain.MarketCandle{}, errors.Wrapf(err, "failed to parse high price %s", k.High)
	}
	low, err := decimal.NewFromString(k.Low)
	if err != nil {
		return domain.MarketCandle{}, errors.Wrapf(err, "failed to parse low price %s", k.Low)
	}
	closePrice, err := decimal.NewFromString(k.Close)
	if err != nil {
		return domain.MarketCandle{}, errors.Wrapf(err, "failed to parse close price %s", k.Close)
	}
	volume, err := decimal.NewFromString(k.Volume)
	if err != nil {
		return domain.MarketCandle{}, errors.Wrapf(err, "failed to parse volume %s", k.Volume)
	}

	openTime := time.Unix(0, startMs.IntPart()*int64(time.Millisecond))

	return domain.MarketCandle{
		OpenTime:  openTime,
		Open:      open,
		High:      high,
		Low:       low,
		Close:     closePrice,
		Volume:    volume,
		CloseTime: openTime.Add(duration),
	}, nil
}

// toBybitInterval maps common interval strings onto Bybit API values.
func toBybitInterval(interval string) (bybit.Interval, error) {
	switch interval {
	case "1m":
		return bybit.Interval1, nil
	case "3m":
		return bybit.Interval3, nil
	case "5m":
		return bybit.Interval5, nil
	case "15m":
		return bybit.Interval15, nil
	case "30m":
		return bybit.Interval30, nil
	case "1h":
		return bybit.Interval60, nil
	case "4h":
		return bybit.Interval240, nil
	case "1d":
		return bybit.IntervalD, nil
	}
	return "", errors.Errorf("unsupported Bybit interval %s", interval)
}
