// Package passive implements a buy-and-hold baseline policy that is run
// alongside the active policies so their performance has a reference.
package passive

import (
	"github.com/vadiminshakov/bandit/internal/domain"
	"github.com/vadiminshakov/bandit/internal/policy"
)

// Policy never trades; its agent's wealth snapshots trace what doing nothing
// would have earned.
type Policy struct {
	agent policy.Agent
	pool  string
}

// New returns a hold policy for the given agent and pool.
func New(agent policy.Agent, pool string) *Policy {
	return &Policy{agent: agent, pool: pool}
}

// Name identifies the policy in logs and reports.
func (p *Policy) Name() string {
	return "passive_hold"
}

// Predict returns no intents.
func (p *Policy) Predict(policy.Observation) ([]domain.TradeIntent, error) {
	return nil, nil
}
