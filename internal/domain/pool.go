package domain

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Pool a single AMM liquidity pool. ID is the human-readable pool name
// ("USDC/WETH-0.05"), Address the on-chain contract address when the pool is
// read from a live chain.
type Pool struct {
	ID      string
	Address common.Address
	Pair    Pair
	// FeeRate fraction taken by the pool on every swap, e.g. 0.0005 for the
	// 0.05% fee tier.
	FeeRate decimal.Decimal
	// TokenDecimals on-chain decimals of base and quote tokens, used when
	// converting sqrtPriceX96 readings into a human price.
	BaseDecimals  int32
	QuoteDecimals int32
}

// String returns the pool ID.
func (p *Pool) String() string {
	return p.ID
}

// NewPool builds a pool descriptor from a human-readable spec like
// "USDC/WETH-0.05" plus the swap fee implied by the fee tier.
func NewPool(id string, pair Pair, feePercent decimal.Decimal) (Pool, error) {
	if id == "" {
		return Pool{}, fmt.Errorf("pool id is required")
	}
	if pair.Base == "" || pair.Quote == "" {
		return Pool{}, fmt.Errorf("pool %s: both tokens are required", id)
	}
	if feePercent.IsNegative() {
		return Pool{}, fmt.Errorf("pool %s: fee cannot be negative", id)
	}

	return Pool{
		ID:      id,
		Pair:    pair,
		FeeRate: feePercent.Div(decimal.NewFromInt(100)),
	}, nil
}
