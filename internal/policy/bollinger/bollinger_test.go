package bollinger

import (
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/bandit/internal/domain"
	"go.uber.org/zap"
)

const testPool = "USDC/WETH-0.05"

// fakeObservation is a scriptable observation for one pool. The test loop
// sets price/liquidity before each Predict call.
type fakeObservation struct {
	pool      string
	base      string
	quote     string
	price     decimal.Decimal
	liquidity decimal.Decimal
	signals   map[string][]float64
}

func newFakeObservation() *fakeObservation {
	return &fakeObservation{
		pool:    testPool,
		base:    "USDC",
		quote:   "WETH",
		signals: make(map[string][]float64),
	}
}

func (o *fakeObservation) set(price, liquidity float64) {
	o.price = decimal.NewFromFloat(price)
	o.liquidity = decimal.NewFromFloat(liquidity)
}

func (o *fakeObservation) Pools() []string { return []string{o.pool} }

func (o *fakeObservation) PoolTokens(pool string) (string, string, error) {
	if pool != o.pool {
		return "", "", fmt.Errorf("unknown pool %s", pool)
	}
	return o.base, o.quote, nil
}

func (o *fakeObservation) Price(token, unit, pool string) (decimal.Decimal, error) {
	if pool != o.pool {
		return decimal.Decimal{}, fmt.Errorf("unknown pool %s", pool)
	}
	if token != o.base || unit != o.quote {
		return decimal.Decimal{}, fmt.Errorf("price for %s in %s is not quoted by pool %s", token, unit, pool)
	}
	return o.price, nil
}

func (o *fakeObservation) Liquidity(pool string) (decimal.Decimal, error) {
	if pool != o.pool {
		return decimal.Decimal{}, fmt.Errorf("unknown pool %s", pool)
	}
	return o.liquidity, nil
}

func (o *fakeObservation) AddSignal(name string, value float64) {
	o.signals[name] = append(o.signals[name], value)
}

type fakeAgent struct {
	name     string
	holdings map[string]decimal.Decimal
}

func (a *fakeAgent) Name() string { return a.name }

func (a *fakeAgent) Quantity(token string) (decimal.Decimal, error) {
	return a.holdings[token], nil
}

func newTestAgent() *fakeAgent {
	return &fakeAgent{
		name: "bb_agent",
		holdings: map[string]decimal.Decimal{
			"USDC": decimal.NewFromInt(10000),
			"WETH": decimal.NewFromInt(4),
		},
	}
}

func newTestPolicy(t *testing.T, direction domain.Direction) (*Policy, *fakeObservation, *fakeAgent) {
	t.Helper()
	agent := newTestAgent()
	pol, err := New(zap.NewNop(), agent, testPool, 3, 1.0, 3, direction)
	require.NoError(t, err)
	return pol, newFakeObservation(), agent
}

// feed runs Predict over a (price, liquidity) series and returns the intents
// of the final step.
func feed(t *testing.T, pol *Policy, obs *fakeObservation, prices, liquidity []float64) []domain.TradeIntent {
	t.Helper()
	var last []domain.TradeIntent
	for i := range prices {
		obs.set(prices[i], liquidity[i])
		intents, err := pol.Predict(obs)
		require.NoError(t, err)
		last = intents
	}
	return last
}

func TestWarmupGate(t *testing.T) {
	agent := newTestAgent()
	pol, err := New(zap.NewNop(), agent, testPool, 20, 2.0, 10, domain.DirectionBoth)
	require.NoError(t, err)

	obs := newFakeObservation()
	for i := 0; i < 19; i++ {
		// wild swings: without the gate these would trigger trades
		obs.set(float64(1+i%2*1000), float64(2000-i*100))
		intents, err := pol.Predict(obs)
		require.NoError(t, err)
		require.Empty(t, intents, "no trading before the window fills (step %d)", i)
	}

	// correlation advisory signal is still published during warm-up
	require.Len(t, obs.signals[correlationSignal], 19)
}

func TestLongEntry(t *testing.T) {
	pol, obs, agent := newTestPolicy(t, domain.DirectionBoth)

	// window [10 10 7]: mean 9, population std sqrt(2), lower band ~7.586;
	// liquidity moves against price so the trailing correlation is -1
	intents := feed(t, pol, obs,
		[]float64{10, 10, 10, 7},
		[]float64{90, 90, 90, 93})

	require.Len(t, intents, 1)
	intent := intents[0]
	require.True(t, intent.IsBuy())
	require.True(t, intent.BaseQuantity.IsZero(), "buy intent must leave the base leg empty")
	wantQuote := agent.holdings["WETH"].Mul(decimal.NewFromFloat(0.3))
	require.True(t, wantQuote.Equal(intent.QuoteQuantity),
		"want %s, got %s", wantQuote.String(), intent.QuoteQuantity.String())
	require.Equal(t, "bb_agent", intent.Agent)
	require.Equal(t, testPool, intent.Pool)
	require.NotEmpty(t, intent.ID)
}

func TestShortEntry(t *testing.T) {
	pol, obs, agent := newTestPolicy(t, domain.DirectionBoth)

	// window [10 10 13]: mean 11, upper band ~12.414, price 13 crosses above
	intents := feed(t, pol, obs,
		[]float64{10, 10, 13},
		[]float64{90, 90, 87})

	require.Len(t, intents, 1)
	intent := intents[0]
	require.True(t, intent.IsSell())
	require.True(t, intent.QuoteQuantity.IsZero(), "sell intent must leave the quote leg empty")
	wantBase := agent.holdings["USDC"].Mul(decimal.NewFromFloat(0.3))
	require.True(t, wantBase.Equal(intent.BaseQuantity))
}

func TestDirectionFilterBlocksLong(t *testing.T) {
	pol, obs, _ := newTestPolicy(t, domain.DirectionShortOnly)

	intents := feed(t, pol, obs,
		[]float64{10, 10, 10, 7},
		[]float64{90, 90, 90, 93})

	require.Empty(t, intents, "short-only policy must ignore long signals")
}

func TestDirectionFilterBlocksShort(t *testing.T) {
	pol, obs, _ := newTestPolicy(t, domain.DirectionLongOnly)

	intents := feed(t, pol, obs,
		[]float64{10, 10, 13},
		[]float64{90, 90, 87})

	require.Empty(t, intents, "long-only policy must ignore short signals")
}

func TestCorrelationGateBlocksTrade(t *testing.T) {
	pol, obs, _ := newTestPolicy(t, domain.DirectionBoth)

	// same band crossing as the long scenario, but liquidity follows price
	intents := feed(t, pol, obs,
		[]float64{10, 10, 10, 7},
		[]float64{100, 100, 100, 70})

	require.Empty(t, intents, "positive correlation must block the entry")
}

func TestNoSignalInsideBands(t *testing.T) {
	agent := newTestAgent()
	pol, err := New(zap.NewNop(), agent, testPool, 3, 2.0, 3, domain.DirectionBoth)
	require.NoError(t, err)
	obs := newFakeObservation()

	// with two standard deviations of width no price stays outside the bands
	// it just entered, whatever the correlation does
	prices := []float64{10, 10.1, 9.9, 10, 12, 8, 10.5}
	liquidity := []float64{90, 89, 91, 90, 70, 110, 88}
	for i := range prices {
		obs.set(prices[i], liquidity[i])
		intents, err := pol.Predict(obs)
		require.NoError(t, err)
		require.Empty(t, intents, "step %d", i)
	}
}

func TestPredictPublishesCorrelationSignal(t *testing.T) {
	pol, obs, _ := newTestPolicy(t, domain.DirectionBoth)

	feed(t, pol, obs,
		[]float64{10, 10, 10, 7},
		[]float64{90, 90, 90, 93})

	values := obs.signals[correlationSignal]
	require.Len(t, values, 4)
	require.InDelta(t, -1.0, values[3], 1e-12)
}

func TestPredictPropagatesCollaboratorErrors(t *testing.T) {
	agent := newTestAgent()
	pol, err := New(zap.NewNop(), agent, "WBTC/USDT-0.3", 3, 1.0, 3, domain.DirectionBoth)
	require.NoError(t, err)

	obs := newFakeObservation() // only knows USDC/WETH-0.05
	obs.set(10, 90)
	_, err = pol.Predict(obs)
	require.Error(t, err)
}

func TestNewValidation(t *testing.T) {
	agent := newTestAgent()
	logger := zap.NewNop()

	_, err := New(logger, nil, testPool, 3, 1.0, 3, domain.DirectionBoth)
	require.Error(t, err)

	_, err = New(logger, agent, "", 3, 1.0, 3, domain.DirectionBoth)
	require.Error(t, err)

	_, err = New(logger, agent, testPool, 0, 1.0, 3, domain.DirectionBoth)
	require.Error(t, err)

	_, err = New(logger, agent, testPool, 3, -2.0, 3, domain.DirectionBoth)
	require.Error(t, err)

	_, err = New(logger, agent, testPool, 3, 1.0, 1, domain.DirectionBoth)
	require.Error(t, err)

	_, err = New(logger, agent, testPool, 3, 1.0, 3, domain.Direction(42))
	require.Error(t, err)
}

func TestSetTradeFraction(t *testing.T) {
	pol, obs, agent := newTestPolicy(t, domain.DirectionBoth)
	require.NoError(t, pol.SetTradeFraction(decimal.NewFromFloat(0.5)))
	require.Error(t, pol.SetTradeFraction(decimal.Zero))
	require.Error(t, pol.SetTradeFraction(decimal.NewFromInt(2)))

	intents := feed(t, pol, obs,
		[]float64{10, 10, 10, 7},
		[]float64{90, 90, 90, 93})

	require.Len(t, intents, 1)
	wantQuote := agent.holdings["WETH"].Mul(decimal.NewFromFloat(0.5))
	require.True(t, wantQuote.Equal(intents[0].QuoteQuantity))
}
