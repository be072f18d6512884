package backtest

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/bandit/internal/agent"
	"github.com/vadiminshakov/bandit/internal/domain"
	"github.com/vadiminshakov/bandit/internal/env"
	"github.com/vadiminshakov/bandit/internal/policy/bollinger"
	"github.com/vadiminshakov/bandit/internal/policy/passive"
	"github.com/vadiminshakov/bandit/internal/storage/results"
	"go.uber.org/zap"
)

func testPool(t *testing.T) domain.Pool {
	t.Helper()
	pool, err := domain.NewPool("USDC/WETH-0.05",
		domain.Pair{Base: "USDC", Quote: "WETH"},
		decimal.NewFromFloat(0.05))
	require.NoError(t, err)
	return pool
}

func makeTicks(prices, liquidity []float64) []domain.PoolTick {
	start := time.Date(2021, 6, 21, 0, 0, 0, 0, time.UTC)
	out := make([]domain.PoolTick, len(prices))
	for i := range prices {
		out[i] = domain.PoolTick{
			Time:      start.Add(time.Duration(i) * time.Minute),
			Price:     decimal.NewFromFloat(prices[i]),
			Liquidity: decimal.NewFromFloat(liquidity[i]),
		}
	}
	return out
}

func TestRunExecutesLongEntry(t *testing.T) {
	pool := testPool(t)

	bbAgent, err := agent.New("bb_agent", map[string]decimal.Decimal{
		"USDC": decimal.NewFromInt(10000),
		"WETH": decimal.NewFromInt(4),
	})
	require.NoError(t, err)

	// last step crosses the lower band with liquidity moving inversely
	ticks := makeTicks(
		[]float64{10, 10, 10, 7},
		[]float64{90, 90, 90, 93})

	environment, err := env.NewReplay(zap.NewNop(), pool, ticks, bbAgent)
	require.NoError(t, err)

	pol, err := bollinger.New(zap.NewNop(), bbAgent, pool.ID, 3, 1.0, 3, domain.DirectionBoth)
	require.NoError(t, err)

	store, err := results.NewWALStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	runner := NewRunner(zap.NewNop(), environment, store)
	require.NoError(t, runner.AddPolicy(pol, "bb_agent"))

	report, err := runner.Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, 4, report.Steps)
	require.Equal(t, 1, report.Trades)

	// 30% of 4 WETH spent, USDC received at price 7 minus the fee
	holdings := bbAgent.Holdings()
	require.True(t, decimal.NewFromFloat(2.8).Equal(holdings["WETH"]), "got %s", holdings["WETH"].String())
	require.True(t, holdings["USDC"].GreaterThan(decimal.NewFromInt(10000)))

	trades, err := store.TradesAfter(0)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	require.Equal(t, "bb_agent", trades[0].Trade.Agent)
	require.Equal(t, 3, trades[0].Trade.Step)

	// one snapshot per agent per step
	snapshots, err := store.SnapshotsAfter(0)
	require.NoError(t, err)
	require.Len(t, snapshots, 4)
}

func TestRunNoTradesDuringWarmup(t *testing.T) {
	pool := testPool(t)

	bbAgent, err := agent.New("bb_agent", map[string]decimal.Decimal{
		"USDC": decimal.NewFromInt(10000),
		"WETH": decimal.NewFromInt(1),
	})
	require.NoError(t, err)

	prices := make([]float64, 19)
	liquidity := make([]float64, 19)
	for i := range prices {
		prices[i] = float64(1 + i%2*1000)
		liquidity[i] = float64(2000 - i*100)
	}

	environment, err := env.NewReplay(zap.NewNop(), pool, makeTicks(prices, liquidity), bbAgent)
	require.NoError(t, err)

	pol, err := bollinger.New(zap.NewNop(), bbAgent, pool.ID, 20, 2.0, 10, domain.DirectionBoth)
	require.NoError(t, err)

	runner := NewRunner(zap.NewNop(), environment, nil)
	require.NoError(t, runner.AddPolicy(pol, "bb_agent"))

	report, err := runner.Run(context.Background())
	require.NoError(t, err)
	require.Zero(t, report.Trades)
}

func TestRunComparesAgainstPassiveBaseline(t *testing.T) {
	pool := testPool(t)

	bbAgent, err := agent.New("bb_agent", map[string]decimal.Decimal{
		"USDC": decimal.NewFromInt(10000),
		"WETH": decimal.NewFromInt(1),
	})
	require.NoError(t, err)
	lpAgent, err := agent.New("lp_agent", map[string]decimal.Decimal{
		"USDC": decimal.NewFromInt(10000),
		"WETH": decimal.NewFromInt(1),
	})
	require.NoError(t, err)

	ticks := makeTicks(
		[]float64{10, 10, 10, 7, 8},
		[]float64{90, 90, 90, 93, 92})

	environment, err := env.NewReplay(zap.NewNop(), pool, ticks, bbAgent, lpAgent)
	require.NoError(t, err)

	pol, err := bollinger.New(zap.NewNop(), bbAgent, pool.ID, 3, 1.0, 3, domain.DirectionLongOnly)
	require.NoError(t, err)

	runner := NewRunner(zap.NewNop(), environment, nil)
	require.NoError(t, runner.AddPolicy(pol, "bb_agent"))
	require.NoError(t, runner.AddPolicy(passive.New(lpAgent, pool.ID), "lp_agent"))

	report, err := runner.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, report.Agents, 2)
	// the passive agent never traded
	lpHoldings := lpAgent.Holdings()
	require.True(t, decimal.NewFromInt(10000).Equal(lpHoldings["USDC"]))
	require.True(t, decimal.NewFromInt(1).Equal(lpHoldings["WETH"]))
}

func TestReportCarriesMarketContext(t *testing.T) {
	pool := testPool(t)

	lpAgent, err := agent.New("lp_agent", map[string]decimal.Decimal{
		"USDC": decimal.NewFromInt(10000),
		"WETH": decimal.NewFromInt(1),
	})
	require.NoError(t, err)

	prices := make([]float64, 30)
	liquidity := make([]float64, 30)
	for i := range prices {
		prices[i] = float64(100 + i%5)
		liquidity[i] = 1000
	}

	environment, err := env.NewReplay(zap.NewNop(), pool, makeTicks(prices, liquidity), lpAgent)
	require.NoError(t, err)

	runner := NewRunner(zap.NewNop(), environment, nil)
	require.NoError(t, runner.AddPolicy(passive.New(lpAgent, pool.ID), "lp_agent"))

	report, err := runner.Run(context.Background())
	require.NoError(t, err)

	require.False(t, report.SMA.IsZero())
	require.False(t, report.EMA.IsZero())
	// the trailing 20 prices cycle over 100..104, so the averages sit inside
	require.True(t, report.SMA.GreaterThan(decimal.NewFromInt(100)))
	require.True(t, report.SMA.LessThan(decimal.NewFromInt(104)))
	require.Contains(t, report.String(), "SMA20")
}

func TestRunFailsWithoutPolicies(t *testing.T) {
	environment, err := env.NewReplay(zap.NewNop(), testPool(t), makeTicks([]float64{1}, []float64{1}))
	require.NoError(t, err)

	runner := NewRunner(zap.NewNop(), environment, nil)
	_, err = runner.Run(context.Background())
	require.Error(t, err)
}

func TestRunHonorsContextCancellation(t *testing.T) {
	bbAgent, err := agent.New("bb_agent", map[string]decimal.Decimal{"WETH": decimal.NewFromInt(1)})
	require.NoError(t, err)

	environment, err := env.NewReplay(zap.NewNop(), testPool(t), makeTicks([]float64{1, 2}, []float64{1, 2}), bbAgent)
	require.NoError(t, err)

	runner := NewRunner(zap.NewNop(), environment, nil)
	require.NoError(t, runner.AddPolicy(passive.New(bbAgent, "USDC/WETH-0.05"), "bb_agent"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = runner.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
}
