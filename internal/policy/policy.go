// Package policy defines the contracts between trading policies and the
// simulation environment that feeds them.
package policy

import (
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/bandit/internal/domain"
)

// Observation is the per-step view of the simulated market a policy consumes.
// Implementations report contract violations (unknown pool, wrong token
// ordering) as explicit errors.
type Observation interface {
	// Pools returns the ordered list of active pool IDs.
	Pools() []string
	// PoolTokens returns the base and quote token symbols of a pool.
	PoolTokens(pool string) (base, quote string, err error)
	// Price returns the price of token denominated in unit for the pool.
	Price(token, unit, pool string) (decimal.Decimal, error)
	// Liquidity returns the current pool liquidity.
	Liquidity(pool string) (decimal.Decimal, error)
	// AddSignal records a named advisory value for diagnostics dashboards.
	AddSignal(name string, value float64)
}

// Agent is the acting party whose holdings size the trades.
type Agent interface {
	Name() string
	// Quantity returns the agent's current holding of a token.
	Quantity(token string) (decimal.Decimal, error)
}

// Policy converts a stream of observations into trade intents. Predict is
// called once per simulation step, strictly sequentially.
type Policy interface {
	Name() string
	Predict(obs Observation) ([]domain.TradeIntent, error)
}
