// Package results persists backtest output (trades and balance snapshots) in
// a WAL so dashboards can stream them and finished runs survive restarts.
package results

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/bandit/internal/domain"
	"github.com/vadiminshakov/gowal"
)

const (
	defaultResultsDir = "./wal/results"
	segmentThreshold  = 1000
	maxSegments       = 100
	snapshotKeyPrefix = "snapshot_"
	tradeKeyPrefix    = "trade_"
)

// WALStore journals trades and balance snapshots of one backtest run.
type WALStore struct {
	wal *gowal.Wal
	mu  sync.RWMutex
}

// NewWALStore opens the journal under the provided directory.
func NewWALStore(dir string) (*WALStore, error) {
	if dir == "" {
		dir = defaultResultsDir
	}

	cfg := gowal.Config{
		Dir:              dir,
		Prefix:           "log_",
		SegmentThreshold: segmentThreshold,
		MaxSegments:      maxSegments,
		IsInSyncDiskMode: true,
	}

	wal, err := gowal.NewWAL(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "init results WAL")
	}

	return &WALStore{wal: wal}, nil
}

// SaveSnapshot journals one balance snapshot.
func (s *WALStore) SaveSnapshot(snapshot domain.BalanceSnapshot) error {
	if s == nil || s.wal == nil {
		return errors.New("results store is not initialized")
	}
	if snapshot.Agent == "" {
		return fmt.Errorf("balance snapshot agent is required")
	}

	payload, err := json.Marshal(snapshot)
	if err != nil {
		return errors.Wrap(err, "marshal balance snapshot")
	}

	key := fmt.Sprintf("%s%s", snapshotKeyPrefix, snapshot.Agent)

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.wal.Write(s.wal.CurrentIndex()+1, key, payload)
}

// SaveTrade journals one executed trade.
func (s *WALStore) SaveTrade(trade domain.TradeRecord) error {
	if s == nil || s.wal == nil {
		return errors.New("results store is not initialized")
	}
	if trade.ID == "" {
		return fmt.Errorf("trade id is required")
	}

	payload, err := json.Marshal(trade)
	if err != nil {
		return errors.Wrap(err, "marshal trade record")
	}

	key := fmt.Sprintf("%s%s", tradeKeyPrefix, trade.ID)

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.wal.Write(s.wal.CurrentIndex()+1, key, payload)
}

// SnapshotsAfter returns all balance snapshots written after the given WAL
// index.
func (s *WALStore) SnapshotsAfter(index uint64) ([]domain.BalanceSnapshotRecord, error) {
	if s == nil || s.wal == nil {
		return nil, errors.New("results store is not initialized")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	current := s.wal.CurrentIndex()
	if current <= index {
		return nil, nil
	}

	records := make([]domain.BalanceSnapshotRecord, 0, current-index)
	for idx := index + 1; idx <= current; idx++ {
		key, payload, err := s.wal.Get(idx)
		if err != nil {
			return nil, errors.Wrapf(err, "read WAL entry %d", idx)
		}
		if !strings.HasPrefix(key, snapshotKeyPrefix) {
			continue
		}
		var snapshot domain.BalanceSnapshot
		if err := json.Unmarshal(payload, &snapshot); err != nil {
			return nil, errors.Wrap(err, "decode balance snapshot")
		}
		records = append(records, domain.BalanceSnapshotRecord{Index: idx, Snapshot: snapshot})
	}

	return records, nil
}

// TradesAfter returns all trades written after the given WAL index.
func (s *WALStore) TradesAfter(index uint64) ([]domain.TradeRecordEntry, error) {
	if s == nil || s.wal == nil {
		return nil, errors.New("results store is not initialized")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	current := s.wal.CurrentIndex()
	if current <= index {
		return nil, nil
	}

	records := make([]domain.TradeRecordEntry, 0, current-index)
	for idx := index + 1; idx <= current; idx++ {
		key, payload, err := s.wal.Get(idx)
		if err != nil {
			return nil, errors.Wrapf(err, "read WAL entry %d", idx)
		}
		if !strings.HasPrefix(key, tradeKeyPrefix) {
			continue
		}
		var trade domain.TradeRecord
		if err := json.Unmarshal(payload, &trade); err != nil {
			return nil, errors.Wrap(err, "decode trade record")
		}
		records = append(records, domain.TradeRecordEntry{Index: idx, Trade: trade})
	}

	return records, nil
}

// CurrentIndex returns the latest WAL index stored.
func (s *WALStore) CurrentIndex() uint64 {
	if s == nil || s.wal == nil {
		return 0
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.wal.CurrentIndex()
}

// Close closes the underlying WAL.
func (s *WALStore) Close() error {
	if s == nil || s.wal == nil {
		return errors.New("results store is not initialized")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.wal.Close()
}
