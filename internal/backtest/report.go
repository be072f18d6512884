package backtest

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/bandit/internal/domain"
	"github.com/vadiminshakov/bandit/pkg/indicators"
)

const (
	reportSMAPeriod = 20
	reportEMAPeriod = 20
	reportRSIPeriod = 14
)

// AgentResult final state of one agent after the run.
type AgentResult struct {
	Agent    string
	Policy   string
	Holdings map[string]decimal.Decimal
	// Wealth total value in the quote token at the final price.
	Wealth decimal.Decimal
}

// Report summarizes a finished backtest.
type Report struct {
	Pool   string
	Steps  int
	Trades int
	// FinalPrice last replayed price of the base token in quote units.
	FinalPrice decimal.Decimal
	Agents     []AgentResult
	// SMA, EMA and RSI of the replayed price series at the final step, for
	// market context in the report. Zero when the series is too short.
	SMA decimal.Decimal
	EMA decimal.Decimal
	RSI decimal.Decimal
}

func (r *Runner) buildReport(pool domain.Pool, trades int) *Report {
	prices := r.env.PriceHistory()

	report := &Report{
		Pool:   pool.ID,
		Steps:  len(prices),
		Trades: trades,
	}
	if len(prices) > 0 {
		report.FinalPrice = prices[len(prices)-1]
	}

	if sma, err := indicators.CalculateSMA(prices, reportSMAPeriod); err == nil && len(sma) > 0 {
		report.SMA = sma[len(sma)-1]
	}
	if ema, err := indicators.CalculateEMA(prices, reportEMAPeriod); err == nil && len(ema) > 0 {
		report.EMA = ema[len(ema)-1]
	}
	if rsi, err := indicators.CalculateRSI(prices, reportRSIPeriod); err == nil && len(rsi) > 0 {
		report.RSI = rsi[len(rsi)-1]
	}

	for _, bound := range r.policies {
		baseQty, _ := bound.agent.Quantity(pool.Pair.Base)
		quoteQty, _ := bound.agent.Quantity(pool.Pair.Quote)
		report.Agents = append(report.Agents, AgentResult{
			Agent:  bound.agent.Name(),
			Policy: bound.policy.Name(),
			Holdings: map[string]decimal.Decimal{
				pool.Pair.Base:  baseQty,
				pool.Pair.Quote: quoteQty,
			},
			Wealth: quoteQty.Add(baseQty.Mul(report.FinalPrice)),
		})
	}

	return report
}

// String renders the report for the console.
func (r *Report) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "pool %s: %d steps, %d trades, final price %s\n",
		r.Pool, r.Steps, r.Trades, r.FinalPrice.String())
	if !r.EMA.IsZero() {
		fmt.Fprintf(&b, "market context: SMA%d %s, EMA%d %s, RSI%d %s\n",
			reportSMAPeriod, r.SMA.StringFixed(4),
			reportEMAPeriod, r.EMA.StringFixed(4), reportRSIPeriod, r.RSI.StringFixed(2))
	}
	for _, a := range r.Agents {
		fmt.Fprintf(&b, "agent %s (%s): wealth %s\n", a.Agent, a.Policy, a.Wealth.StringFixed(4))
	}
	return b.String()
}
