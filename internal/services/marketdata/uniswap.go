package marketdata

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/bandit/internal/domain"
	"github.com/vadiminshakov/bandit/pkg/retrier"
)

// function selectors of the Uniswap v3 pool contract
var (
	slot0Selector     = common.Hex2Bytes("3850c7bd") // slot0()
	liquiditySelector = common.Hex2Bytes("1a686502") // liquidity()
)

// q96 is the 2^96 fixed-point scale of sqrtPriceX96.
var q96 = new(big.Float).SetInt(new(big.Int).Lsh(big.NewInt(1), 96))

// UniswapPoolReader samples live pool state (sqrtPriceX96 and liquidity) from
// an Ethereum node, producing the same (price, liquidity) series the exchange
// providers approximate with candles.
type UniswapPoolReader struct {
	client  *ethclient.Client
	pool    domain.Pool
	retrier *retrier.Retrier
}

// NewUniswapPoolReader creates a reader for the given pool contract. The pool
// descriptor must carry the on-chain address and both token decimals.
func NewUniswapPoolReader(client *ethclient.Client, pool domain.Pool) (*UniswapPoolReader, error) {
	if client == nil {
		return nil, errors.New("ethclient is required")
	}
	if pool.Address == (common.Address{}) {
		return nil, errors.Errorf("pool %s has no on-chain address", pool.ID)
	}

	return &UniswapPoolReader{client: client, pool: pool, retrier: retrier.New()}, nil
}

// ReadTick fetches the current pool price and liquidity.
func (r *UniswapPoolReader) ReadTick(ctx context.Context) (domain.PoolTick, error) {
	slot0, err := retrier.DoWithData(r.retrier, ctx, func(ctx context.Context) ([]byte, error) {
		return r.client.CallContract(ctx, ethereum.CallMsg{To: &r.pool.Address, Data: slot0Selector}, nil)
	})
	if err != nil {
		return domain.PoolTick{}, errors.Wrapf(err, "call slot0 on pool %s", r.pool.ID)
	}
	if len(slot0) < 32 {
		return domain.PoolTick{}, errors.Errorf("short slot0 response from pool %s", r.pool.ID)
	}

	liquidityRaw, err := retrier.DoWithData(r.retrier, ctx, func(ctx context.Context) ([]byte, error) {
		return r.client.CallContract(ctx, ethereum.CallMsg{To: &r.pool.Address, Data: liquiditySelector}, nil)
	})
	if err != nil {
		return domain.PoolTick{}, errors.Wrapf(err, "call liquidity on pool %s", r.pool.ID)
	}
	if len(liquidityRaw) < 32 {
		return domain.PoolTick{}, errors.Errorf("short liquidity response from pool %s", r.pool.ID)
	}

	sqrtPriceX96 := new(big.Int).SetBytes(slot0[:32])
	price, err := priceFromSqrtX96(sqrtPriceX96, r.pool.BaseDecimals, r.pool.QuoteDecimals)
	if err != nil {
		return domain.PoolTick{}, errors.Wrapf(err, "decode price of pool %s", r.pool.ID)
	}

	liquidity := decimal.NewFromBigInt(new(big.Int).SetBytes(liquidityRaw[:32]), 0)

	return domain.PoolTick{Time: time.Now().UTC(), Price: price, Liquidity: liquidity}, nil
}

// CollectTicks polls the pool at the given interval until n ticks are
// gathered or the context ends.
func (r *UniswapPoolReader) CollectTicks(ctx context.Context, n int, interval time.Duration) ([]domain.PoolTick, error) {
	if n <= 0 {
		return nil, errors.New("tick count must be positive")
	}

	ticks := make([]domain.PoolTick, 0, n)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for len(ticks) < n {
		tick, err := r.ReadTick(ctx)
		if err != nil {
			return nil, err
		}
		ticks = append(ticks, tick)

		if len(ticks) == n {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}

	return ticks, nil
}

// priceFromSqrtX96 converts the pool's sqrtPriceX96 into the price of token0
// (base) denominated in token1 (quote), adjusted for token decimals.
func priceFromSqrtX96(sqrtPriceX96 *big.Int, baseDecimals, quoteDecimals int32) (decimal.Decimal, error) {
	if sqrtPriceX96.Sign() <= 0 {
		return decimal.Decimal{}, errors.New("sqrtPriceX96 must be positive")
	}

	sqrt := new(big.Float).Quo(new(big.Float).SetInt(sqrtPriceX96), q96)
	raw := new(big.Float).Mul(sqrt, sqrt)

	price, err := decimal.NewFromString(raw.Text('g', 18))
	if err != nil {
		return decimal.Decimal{}, errors.Wrap(err, "format pool price")
	}

	// token decimals shift the raw fixed-point price by a power of ten
	return price.Shift(baseDecimals - quoteDecimals), nil
}
