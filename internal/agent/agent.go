// Package agent implements the pool-wealth agent whose portfolio backs the
// trading policies.
package agent

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// PoolWealthAgent holds a named portfolio of token balances. Policies size
// their trades from it, the environment settles executed swaps against it.
type PoolWealthAgent struct {
	mu       sync.RWMutex
	name     string
	holdings map[string]decimal.Decimal
}

// New creates an agent with the given initial portfolio.
func New(name string, initial map[string]decimal.Decimal) (*PoolWealthAgent, error) {
	if name == "" {
		return nil, errors.New("agent name is required")
	}

	holdings := make(map[string]decimal.Decimal, len(initial))
	for token, amount := range initial {
		if amount.IsNegative() {
			return nil, errors.Errorf("initial %s balance cannot be negative", token)
		}
		holdings[token] = amount
	}

	return &PoolWealthAgent{name: name, holdings: holdings}, nil
}

// Name returns the agent name.
func (a *PoolWealthAgent) Name() string {
	return a.name
}

// Quantity returns the current holding of a token. Unknown tokens are a zero
// holding, not an error.
func (a *PoolWealthAgent) Quantity(token string) (decimal.Decimal, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.holdings[token], nil
}

// Apply settles a set of balance deltas atomically. If any resulting balance
// would go negative nothing is changed.
func (a *PoolWealthAgent) Apply(deltas map[string]decimal.Decimal) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	for token, delta := range deltas {
		if a.holdings[token].Add(delta).IsNegative() {
			return errors.Errorf("agent %s: insufficient %s balance (have %s, need %s)",
				a.name, token, a.holdings[token].String(), delta.Neg().String())
		}
	}
	for token, delta := range deltas {
		a.holdings[token] = a.holdings[token].Add(delta)
	}

	return nil
}

// Holdings returns a copy of the current portfolio.
func (a *PoolWealthAgent) Holdings() map[string]decimal.Decimal {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make(map[string]decimal.Decimal, len(a.holdings))
	for token, amount := range a.holdings {
		out[token] = amount
	}
	return out
}

// Wealth values the whole portfolio in the quote token at the given base
// price.
func (a *PoolWealthAgent) Wealth(base, quote string, price decimal.Decimal) decimal.Decimal {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.holdings[quote].Add(a.holdings[base].Mul(price))
}
