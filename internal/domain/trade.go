package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// TradeIntent a proposed swap against a pool, not yet validated or executed.
// Exactly one of the two quantities is nonzero: a nonzero BaseQuantity sells
// that much of the base token, a nonzero QuoteQuantity buys base using that
// much of the quote token.
type TradeIntent struct {
	// ID client-side identifier for journaling.
	ID string
	// Agent name of the acting party.
	Agent string
	// Pool target pool ID.
	Pool string
	// BaseQuantity amount of the base token to sell.
	BaseQuantity decimal.Decimal
	// QuoteQuantity amount of the quote token to spend on a buy.
	QuoteQuantity decimal.Decimal
}

// IsBuy reports whether the intent spends quote to acquire base.
func (t *TradeIntent) IsBuy() bool {
	return t.QuoteQuantity.IsPositive()
}

// IsSell reports whether the intent sells base for quote.
func (t *TradeIntent) IsSell() bool {
	return t.BaseQuantity.IsPositive()
}

// String returns a human-readable string representation.
func (t *TradeIntent) String() string {
	if t.IsBuy() {
		return fmt.Sprintf("%s buy on %s spending %s quote", t.Agent, t.Pool, t.QuoteQuantity.String())
	}
	return fmt.Sprintf("%s sell on %s of %s base", t.Agent, t.Pool, t.BaseQuantity.String())
}
