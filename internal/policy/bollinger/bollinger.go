// Package bollinger implements a Bollinger-band trading policy for a single
// AMM pool. Entries are gated by the rolling correlation between price and
// pool liquidity: only an inverse relationship (correlation below -0.5)
// lets a band crossing become a trade.
package bollinger

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/bandit/internal/domain"
	"github.com/vadiminshakov/bandit/internal/policy"
	"go.uber.org/zap"
)

const (
	// correlationGate is the threshold below which the price/liquidity
	// correlation is considered inverse enough to trade on.
	correlationGate = -0.5
	// correlationSignal is the advisory-signal name published every step.
	correlationSignal = "Correlation"
)

// defaultTradeFraction is the share of the relevant holding committed per
// trade.
var defaultTradeFraction = decimal.NewFromFloat(0.3)

// Policy trades one pool using Bollinger bands over a rolling price window.
// State is owned exclusively by the policy and mutated only by Predict, which
// must be called strictly sequentially.
type Policy struct {
	agent         policy.Agent
	pool          string
	direction     domain.Direction
	tradeFraction decimal.Decimal
	stats         *rollingStats
	l             *zap.Logger
}

// New returns a configured Bollinger-band policy. The window sizes the SMA
// and bands, bandWidth is the standard-deviation multiplier, corrWindow the
// trailing slice used for the price/liquidity correlation.
func New(l *zap.Logger, agent policy.Agent, pool string, window int, bandWidth float64, corrWindow int, direction domain.Direction) (*Policy, error) {
	if l == nil {
		l = zap.NewNop()
	}
	if agent == nil {
		return nil, errors.New("agent is required")
	}
	if pool == "" {
		return nil, errors.New("pool is required")
	}
	if window < 1 {
		return nil, fmt.Errorf("window must be at least 1, got %d", window)
	}
	if bandWidth <= 0 {
		return nil, fmt.Errorf("std dev multiplier must be positive, got %f", bandWidth)
	}
	if corrWindow < 2 {
		return nil, fmt.Errorf("correlation window must be at least 2, got %d", corrWindow)
	}
	if !direction.Valid() {
		return nil, fmt.Errorf("invalid direction %d", int(direction))
	}

	return &Policy{
		agent:         agent,
		pool:          pool,
		direction:     direction,
		tradeFraction: defaultTradeFraction,
		stats:         newRollingStats(window, corrWindow, bandWidth),
		l:             l,
	}, nil
}

// Name identifies the policy in logs and reports.
func (p *Policy) Name() string {
	return "bollinger"
}

// SetTradeFraction overrides the share of the holding committed per trade.
func (p *Policy) SetTradeFraction(fraction decimal.Decimal) error {
	if !fraction.IsPositive() || fraction.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("trade fraction must be in (0, 1], got %s", fraction.String())
	}
	p.tradeFraction = fraction
	return nil
}

// Predict consumes one observation and returns zero or more trade intents.
// During warm-up (window not yet full) it always returns an empty list.
func (p *Policy) Predict(obs policy.Observation) ([]domain.TradeIntent, error) {
	base, quote, err := obs.PoolTokens(p.pool)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve tokens for pool %s", p.pool)
	}

	priceDec, err := obs.Price(base, quote, p.pool)
	if err != nil {
		return nil, errors.Wrapf(err, "get price for pool %s", p.pool)
	}
	liquidityDec, err := obs.Liquidity(p.pool)
	if err != nil {
		return nil, errors.Wrapf(err, "get liquidity for pool %s", p.pool)
	}

	price := priceDec.InexactFloat64()
	p.stats.Update(price, liquidityDec.InexactFloat64())

	lower, _, upper := p.stats.BollingerBands()
	correlation := p.stats.Correlation()
	obs.AddSignal(correlationSignal, correlation)

	if !p.stats.Ready() {
		return nil, nil
	}

	var intents []domain.TradeIntent

	if p.direction.AllowsLong() && price < lower && correlation < correlationGate {
		quoteHolding, err := p.agent.Quantity(quote)
		if err != nil {
			return nil, errors.Wrapf(err, "get %s holding of agent %s", quote, p.agent.Name())
		}
		intents = append(intents, domain.TradeIntent{
			ID:            uuid.NewString(),
			Agent:         p.agent.Name(),
			Pool:          p.pool,
			QuoteQuantity: quoteHolding.Mul(p.tradeFraction),
		})
		p.l.Debug("long entry",
			zap.Float64("price", price),
			zap.Float64("lower_band", lower),
			zap.Float64("correlation", correlation))
	}

	if p.direction.AllowsShort() && price > upper && correlation < correlationGate {
		baseHolding, err := p.agent.Quantity(base)
		if err != nil {
			return nil, errors.Wrapf(err, "get %s holding of agent %s", base, p.agent.Name())
		}
		intents = append(intents, domain.TradeIntent{
			ID:           uuid.NewString(),
			Agent:        p.agent.Name(),
			Pool:         p.pool,
			BaseQuantity: baseHolding.Mul(p.tradeFraction),
		})
		p.l.Debug("short entry",
			zap.Float64("price", price),
			zap.Float64("upper_band", upper),
			zap.Float64("correlation", correlation))
	}

	return intents, nil
}
