package results

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/bandit/internal/domain"
)

func TestSaveAndReadBack(t *testing.T) {
	store, err := NewWALStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	ts := time.Date(2021, 6, 21, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.SaveTrade(domain.TradeRecord{
		Timestamp: ts, Step: 20, ID: "t1", Agent: "bb_agent",
		Pool: "USDC/WETH-0.05", QuoteQuantity: "0.3", Price: "2000",
	}))
	require.NoError(t, store.SaveSnapshot(domain.BalanceSnapshot{
		Timestamp: ts, Step: 20, Agent: "bb_agent", Pool: "USDC/WETH-0.05",
		Holdings: map[string]string{"USDC": "10000"}, Wealth: "12000", Price: "2000",
	}))

	trades, err := store.TradesAfter(0)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	require.Equal(t, "t1", trades[0].Trade.ID)

	snapshots, err := store.SnapshotsAfter(0)
	require.NoError(t, err)
	require.Len(t, snapshots, 1)
	require.Equal(t, "bb_agent", snapshots[0].Snapshot.Agent)
	require.Equal(t, "12000", snapshots[0].Snapshot.Wealth)

	// reading past the end yields nothing
	trades, err = store.TradesAfter(store.CurrentIndex())
	require.NoError(t, err)
	require.Empty(t, trades)
}

func TestMixedStreamsFilterByPrefix(t *testing.T) {
	store, err := NewWALStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	ts := time.Date(2021, 6, 21, 0, 0, 0, 0, time.UTC)

	// interleave the two record kinds so each reader has to step over
	// entries belonging to the other stream
	for step := 1; step <= 3; step++ {
		require.NoError(t, store.SaveSnapshot(domain.BalanceSnapshot{
			Timestamp: ts, Step: step, Agent: "bb_agent", Pool: "USDC/WETH-0.05",
			Holdings: map[string]string{"USDC": "10000"}, Wealth: "12000", Price: "2000",
		}))
		require.NoError(t, store.SaveTrade(domain.TradeRecord{
			Timestamp: ts, Step: step, ID: fmt.Sprintf("t%d", step), Agent: "bb_agent",
			Pool: "USDC/WETH-0.05", QuoteQuantity: "0.3", Price: "2000",
		}))
	}

	trades, err := store.TradesAfter(0)
	require.NoError(t, err)
	require.Len(t, trades, 3)
	for i, entry := range trades {
		require.Equal(t, fmt.Sprintf("t%d", i+1), entry.Trade.ID)
	}

	snapshots, err := store.SnapshotsAfter(0)
	require.NoError(t, err)
	require.Len(t, snapshots, 3)
	for i, record := range snapshots {
		require.Equal(t, i+1, record.Snapshot.Step)
	}

	// a resume from the middle only returns the tail of each stream
	mid := trades[1].Index
	trades, err = store.TradesAfter(mid)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	require.Equal(t, "t3", trades[0].Trade.ID)
}

func TestValidation(t *testing.T) {
	store, err := NewWALStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	require.Error(t, store.SaveTrade(domain.TradeRecord{}))
	require.Error(t, store.SaveSnapshot(domain.BalanceSnapshot{}))
}
