// Package backtest drives a replay environment through its tick series,
// invoking the registered policies once per step and settling their intents.
package backtest

import (
	"context"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/bandit/internal/domain"
	"github.com/vadiminshakov/bandit/internal/env"
	"github.com/vadiminshakov/bandit/internal/policy"
	"go.uber.org/zap"
)

// resultsJournal is the subset of the results store the runner writes to.
type resultsJournal interface {
	SaveTrade(trade domain.TradeRecord) error
	SaveSnapshot(snapshot domain.BalanceSnapshot) error
}

// boundPolicy ties a policy to the agent whose wealth it is measured by.
type boundPolicy struct {
	policy policy.Policy
	agent  env.Wallet
}

// Runner executes one backtest over a single pool.
type Runner struct {
	env      *env.ReplayEnv
	policies []boundPolicy
	journal  resultsJournal
	logger   *zap.Logger
}

// NewRunner creates a runner. The journal may be nil when persistence is not
// wanted (tests).
func NewRunner(logger *zap.Logger, environment *env.ReplayEnv, journal resultsJournal) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{env: environment, journal: journal, logger: logger}
}

// AddPolicy registers a policy bound to the named agent.
func (r *Runner) AddPolicy(pol policy.Policy, agentName string) error {
	wallet, err := r.env.Wallet(agentName)
	if err != nil {
		return errors.Wrapf(err, "bind policy %s", pol.Name())
	}
	r.policies = append(r.policies, boundPolicy{policy: pol, agent: wallet})
	return nil
}

// Run replays every tick, calling each policy strictly sequentially and
// executing the intents it returns. Policy errors abort the run: they signal
// a broken collaborator contract, not a market condition.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	if len(r.policies) == 0 {
		return nil, errors.New("no policies registered")
	}

	pool := r.env.Pool()
	trades := 0

	for r.env.Advance() {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		for _, bound := range r.policies {
			intents, err := bound.policy.Predict(r.env)
			if err != nil {
				return nil, errors.Wrapf(err, "policy %s failed at step %d", bound.policy.Name(), r.env.Step())
			}

			for _, intent := range intents {
				if err := r.env.Execute(intent); err != nil {
					// infeasible intents (insufficient balance) are logged
					// and skipped: sizing mistakes should not kill the run
					r.logger.Warn("intent rejected",
						zap.String("policy", bound.policy.Name()),
						zap.Int("step", r.env.Step()),
						zap.Error(err))
					continue
				}
				trades++
				r.journalTrade(intent)
			}
		}

		r.journalSnapshots()
	}

	report := r.buildReport(pool, trades)
	r.logger.Info("backtest finished",
		zap.String("pool", pool.ID),
		zap.Int("steps", report.Steps),
		zap.Int("trades", report.Trades))

	return report, nil
}

func (r *Runner) journalTrade(intent domain.TradeIntent) {
	if r.journal == nil {
		return
	}

	pool := r.env.Pool()
	price, err := r.env.Price(pool.Pair.Base, pool.Pair.Quote, pool.ID)
	if err != nil {
		r.logger.Warn("skip trade journaling", zap.Error(err))
		return
	}

	record := domain.TradeRecord{
		Timestamp:     r.env.Now(),
		Step:          r.env.Step(),
		ID:            intent.ID,
		Agent:         intent.Agent,
		Pool:          intent.Pool,
		BaseQuantity:  intent.BaseQuantity.String(),
		QuoteQuantity: intent.QuoteQuantity.String(),
		Price:         price.String(),
	}
	if err := r.journal.SaveTrade(record); err != nil {
		r.logger.Warn("failed to journal trade", zap.String("id", intent.ID), zap.Error(err))
	}
}

func (r *Runner) journalSnapshots() {
	if r.journal == nil {
		return
	}

	pool := r.env.Pool()
	price, err := r.env.Price(pool.Pair.Base, pool.Pair.Quote, pool.ID)
	if err != nil {
		r.logger.Warn("skip snapshot journaling", zap.Error(err))
		return
	}

	for _, bound := range r.policies {
		holdings := make(map[string]string)
		baseQty, _ := bound.agent.Quantity(pool.Pair.Base)
		quoteQty, _ := bound.agent.Quantity(pool.Pair.Quote)
		holdings[pool.Pair.Base] = baseQty.String()
		holdings[pool.Pair.Quote] = quoteQty.String()

		wealth := quoteQty.Add(baseQty.Mul(price))
		snapshot := domain.BalanceSnapshot{
			Timestamp: r.env.Now(),
			Step:      r.env.Step(),
			Agent:     bound.agent.Name(),
			Pool:      pool.ID,
			Holdings:  holdings,
			Wealth:    wealth.String(),
			Price:     price.String(),
		}
		if err := r.journal.SaveSnapshot(snapshot); err != nil {
			r.logger.Warn("failed to journal snapshot",
				zap.String("agent", bound.agent.Name()), zap.Error(err))
		}
	}
}
