package domain

import "time"

// BalanceSnapshot portfolio state of one agent at a simulation step.
// Quantities are serialized as strings to keep WAL payloads exact.
type BalanceSnapshot struct {
	Timestamp time.Time         `json:"ts"`
	Step      int               `json:"step"`
	Agent     string            `json:"agent"`
	Pool      string            `json:"pool"`
	Holdings  map[string]string `json:"holdings"`
	// Wealth total portfolio value denominated in the quote token.
	Wealth string `json:"wealth"`
	Price  string `json:"price"`
}

// BalanceSnapshotRecord bundles a snapshot with its WAL index.
type BalanceSnapshotRecord struct {
	Index    uint64
	Snapshot BalanceSnapshot
}

// TradeRecord an executed trade as journaled by the backtest runner.
type TradeRecord struct {
	Timestamp     time.Time `json:"ts"`
	Step          int       `json:"step"`
	ID            string    `json:"id"`
	Agent         string    `json:"agent"`
	Pool          string    `json:"pool"`
	BaseQuantity  string    `json:"base_quantity"`
	QuoteQuantity string    `json:"quote_quantity"`
	Price         string    `json:"price"`
}

// TradeRecordEntry bundles a trade record with its WAL index.
type TradeRecordEntry struct {
	Index uint64
	Trade TradeRecord
}
