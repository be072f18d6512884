package web

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/bandit/internal/domain"
)

type fakeSnapshotStore struct {
	records []domain.BalanceSnapshotRecord
}

func (f *fakeSnapshotStore) SnapshotsAfter(index uint64) ([]domain.BalanceSnapshotRecord, error) {
	var out []domain.BalanceSnapshotRecord
	for _, r := range f.records {
		if r.Index > index {
			out = append(out, r)
		}
	}
	return out, nil
}

type fakeTradeStore struct {
	records []domain.TradeRecordEntry
}

func (f *fakeTradeStore) TradesAfter(index uint64) ([]domain.TradeRecordEntry, error) {
	var out []domain.TradeRecordEntry
	for _, r := range f.records {
		if r.Index > index {
			out = append(out, r)
		}
	}
	return out, nil
}

// streamRequest builds a request whose context is already cancelled, so the
// handler sends the initial batch and returns instead of polling forever.
func streamRequest(t *testing.T, target string) *http.Request {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return httptest.NewRequest(http.MethodGet, target, nil).WithContext(ctx)
}

func TestBalanceStreamReplaysJournal(t *testing.T) {
	store := &fakeSnapshotStore{records: []domain.BalanceSnapshotRecord{
		{Index: 1, Snapshot: domain.BalanceSnapshot{Step: 0, Agent: "bollinger_band", Wealth: "100"}},
		{Index: 2, Snapshot: domain.BalanceSnapshot{Step: 1, Agent: "bollinger_band", Wealth: "101"}},
	}}
	server := NewServer(":0", store, &fakeTradeStore{})

	rec := httptest.NewRecorder()
	server.handleBalanceStream(rec, streamRequest(t, "/balance/stream"))

	resp := rec.Result()
	defer resp.Body.Close()
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	body := rec.Body.String()
	require.Contains(t, body, "id: 1")
	require.Contains(t, body, "id: 2")
	require.Contains(t, body, "event: balance")
	require.Contains(t, body, `"wealth":"101"`)
}

func TestBalanceStreamResumesFromLastEventID(t *testing.T) {
	store := &fakeSnapshotStore{records: []domain.BalanceSnapshotRecord{
		{Index: 1, Snapshot: domain.BalanceSnapshot{Step: 0, Agent: "bollinger_band", Wealth: "100"}},
		{Index: 2, Snapshot: domain.BalanceSnapshot{Step: 1, Agent: "bollinger_band", Wealth: "101"}},
	}}
	server := NewServer(":0", store, &fakeTradeStore{})

	req := streamRequest(t, "/balance/stream")
	req.Header.Set("Last-Event-ID", "1")

	rec := httptest.NewRecorder()
	server.handleBalanceStream(rec, req)

	body := rec.Body.String()
	require.NotContains(t, body, "id: 1\n")
	require.Contains(t, body, "id: 2")
	require.NotContains(t, body, `"wealth":"100"`)
}

func TestTradeStreamSendsRecords(t *testing.T) {
	trades := &fakeTradeStore{records: []domain.TradeRecordEntry{
		{Index: 3, Trade: domain.TradeRecord{Step: 3, Agent: "bollinger_band", QuoteQuantity: "1.2"}},
	}}
	server := NewServer(":0", &fakeSnapshotStore{}, trades)

	rec := httptest.NewRecorder()
	server.handleTradeStream(rec, streamRequest(t, "/trades/stream"))

	body := rec.Body.String()
	require.Contains(t, body, "id: 3")
	require.Contains(t, body, "event: trade")
	require.Contains(t, body, `"quote_quantity":"1.2"`)
}

func TestStreamsUnavailableWithoutStores(t *testing.T) {
	server := NewServer(":0", nil, nil)

	rec := httptest.NewRecorder()
	server.handleBalanceStream(rec, httptest.NewRequest(http.MethodGet, "/balance/stream", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	server.handleTradeStream(rec, httptest.NewRequest(http.MethodGet, "/trades/stream", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestIndexServesDashboard(t *testing.T) {
	server := NewServer(":0", &fakeSnapshotStore{}, &fakeTradeStore{})

	rec := httptest.NewRecorder()
	server.handleIndex(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "bandit backtest")
}

func TestLastEventIDParsing(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/balance/stream", nil)
	require.Equal(t, uint64(0), lastEventID(req))

	req.Header.Set("Last-Event-ID", "42")
	require.Equal(t, uint64(42), lastEventID(req))

	req = httptest.NewRequest(http.MethodGet, "/balance/stream?last_event_id=7", nil)
	require.Equal(t, uint64(7), lastEventID(req))

	req.Header.Set("Last-Event-ID", "not-a-number")
	require.Equal(t, uint64(7), lastEventID(req))
}
