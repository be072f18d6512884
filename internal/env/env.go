// Package env implements a replay pool environment: it plays back a prepared
// series of (price, liquidity) ticks for a single AMM pool, exposes the
// observation contract to policies and settles their trade intents against
// agent portfolios.
package env

import (
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/bandit/internal/domain"
	"go.uber.org/zap"
)

var one = decimal.NewFromInt(1)

// Wallet is the settlement side of an agent: the environment debits one leg
// and credits the other when an intent executes.
type Wallet interface {
	Name() string
	Quantity(token string) (decimal.Decimal, error)
	Apply(deltas map[string]decimal.Decimal) error
}

// SignalPoint one advisory value recorded during the run.
type SignalPoint struct {
	Step  int
	Name  string
	Value float64
}

// ReplayEnv steps through the tick series of one pool.
type ReplayEnv struct {
	mu      sync.RWMutex
	pool    domain.Pool
	ticks   []domain.PoolTick
	cursor  int
	wallets map[string]Wallet
	signals []SignalPoint
	logger  *zap.Logger
}

// NewReplay creates a replay environment over the given tick series.
func NewReplay(logger *zap.Logger, pool domain.Pool, ticks []domain.PoolTick, wallets ...Wallet) (*ReplayEnv, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(ticks) == 0 {
		return nil, errors.Errorf("no ticks to replay for pool %s", pool.ID)
	}

	registry := make(map[string]Wallet, len(wallets))
	for _, w := range wallets {
		if _, dup := registry[w.Name()]; dup {
			return nil, errors.Errorf("duplicate agent %s", w.Name())
		}
		registry[w.Name()] = w
	}

	return &ReplayEnv{
		pool:    pool,
		ticks:   ticks,
		cursor:  -1,
		wallets: registry,
		logger:  logger,
	}, nil
}

// Advance moves to the next tick. It returns false once the series is
// exhausted.
func (e *ReplayEnv) Advance() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cursor+1 >= len(e.ticks) {
		return false
	}
	e.cursor++
	return true
}

// Step returns the current step number, starting at 0 after the first
// Advance.
func (e *ReplayEnv) Step() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.cursor
}

// Now returns the timestamp of the current tick.
func (e *ReplayEnv) Now() time.Time {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.current().Time
}

func (e *ReplayEnv) current() domain.PoolTick {
	if e.cursor < 0 {
		return e.ticks[0]
	}
	return e.ticks[e.cursor]
}

// Pools returns the ordered list of active pool IDs.
func (e *ReplayEnv) Pools() []string {
	return []string{e.pool.ID}
}

// PoolTokens returns the base and quote token symbols of a pool.
func (e *ReplayEnv) PoolTokens(pool string) (string, string, error) {
	if pool != e.pool.ID {
		return "", "", errors.Errorf("unknown pool %s", pool)
	}
	return e.pool.Pair.Base, e.pool.Pair.Quote, nil
}

// Price returns the price of token denominated in unit. Asking for the
// inverse orientation returns the reciprocal; any other token combination is
// a contract violation.
func (e *ReplayEnv) Price(token, unit, pool string) (decimal.Decimal, error) {
	if pool != e.pool.ID {
		return decimal.Decimal{}, errors.Errorf("unknown pool %s", pool)
	}

	e.mu.RLock()
	price := e.current().Price
	e.mu.RUnlock()

	switch {
	case token == e.pool.Pair.Base && unit == e.pool.Pair.Quote:
		return price, nil
	case token == e.pool.Pair.Quote && unit == e.pool.Pair.Base:
		if price.IsZero() {
			return decimal.Decimal{}, errors.Errorf("pool %s price is zero, cannot invert", pool)
		}
		return one.Div(price), nil
	}
	return decimal.Decimal{}, errors.Errorf("pool %s does not quote %s in %s", pool, token, unit)
}

// Liquidity returns the pool liquidity at the current tick.
func (e *ReplayEnv) Liquidity(pool string) (decimal.Decimal, error) {
	if pool != e.pool.ID {
		return decimal.Decimal{}, errors.Errorf("unknown pool %s", pool)
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.current().Liquidity, nil
}

// AddSignal records a named advisory value at the current step.
func (e *ReplayEnv) AddSignal(name string, value float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.signals = append(e.signals, SignalPoint{Step: e.cursor, Name: name, Value: value})
}

// Signals returns all advisory values recorded so far.
func (e *ReplayEnv) Signals() []SignalPoint {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]SignalPoint, len(e.signals))
	copy(out, e.signals)
	return out
}

// Execute settles a trade intent against the acting agent at the current pool
// price, deducting the pool fee from the received leg. Exactly one intent leg
// must be nonzero.
func (e *ReplayEnv) Execute(intent domain.TradeIntent) error {
	wallet, ok := e.wallets[intent.Agent]
	if !ok {
		return errors.Errorf("unknown agent %s", intent.Agent)
	}
	if intent.IsBuy() == intent.IsSell() {
		return errors.Errorf("intent %s must have exactly one nonzero leg", intent.ID)
	}

	e.mu.RLock()
	price := e.current().Price
	e.mu.RUnlock()

	base := e.pool.Pair.Base
	quote := e.pool.Pair.Quote
	keep := one.Sub(e.pool.FeeRate)

	var deltas map[string]decimal.Decimal
	if intent.IsBuy() {
		received := intent.QuoteQuantity.Div(price).Mul(keep)
		deltas = map[string]decimal.Decimal{
			quote: intent.QuoteQuantity.Neg(),
			base:  received,
		}
	} else {
		received := intent.BaseQuantity.Mul(price).Mul(keep)
		deltas = map[string]decimal.Decimal{
			base:  intent.BaseQuantity.Neg(),
			quote: received,
		}
	}

	if err := wallet.Apply(deltas); err != nil {
		return errors.Wrapf(err, "settle intent %s", intent.ID)
	}

	e.logger.Debug("trade executed",
		zap.String("agent", intent.Agent),
		zap.String("pool", intent.Pool),
		zap.String("price", price.String()),
		zap.String("base_delta", deltas[base].String()),
		zap.String("quote_delta", deltas[quote].String()))

	return nil
}

// Pool returns the pool descriptor.
func (e *ReplayEnv) Pool() domain.Pool {
	return e.pool
}

// PriceHistory returns the prices of all ticks played so far.
func (e *ReplayEnv) PriceHistory() []decimal.Decimal {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.cursor < 0 {
		return nil
	}
	out := make([]decimal.Decimal, 0, e.cursor+1)
	for _, tick := range e.ticks[:e.cursor+1] {
		out = append(out, tick.Price)
	}
	return out
}

// Wallet returns the registered wallet of an agent.
func (e *ReplayEnv) Wallet(name string) (Wallet, error) {
	w, ok := e.wallets[name]
	if !ok {
		return nil, fmt.Errorf("unknown agent %s", name)
	}
	return w, nil
}
