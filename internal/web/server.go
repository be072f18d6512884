package web

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/vadiminshakov/bandit/internal/domain"
	"golang.org/x/crypto/acme/autocert"
)

const recordPollInterval = 2 * time.Second

type balanceSnapshotReader interface {
	SnapshotsAfter(index uint64) ([]domain.BalanceSnapshotRecord, error)
}

type tradeReader interface {
	TradesAfter(index uint64) ([]domain.TradeRecordEntry, error)
}

// Server exposes HTTP endpoints serving the HTML UI and SSE streams of
// balance snapshots and executed trades.
type Server struct {
	Addr       string
	Store      balanceSnapshotReader
	TradeStore tradeReader
}

// NewServer creates a new web server instance.
func NewServer(addr string, store balanceSnapshotReader, tradeStore tradeReader) *Server {
	return &Server{Addr: addr, Store: store, TradeStore: tradeStore}
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/balance/stream", s.handleBalanceStream)
	mux.HandleFunc("/trades/stream", s.handleTradeStream)
	return mux
}

// Start runs the HTTP server (blocking) and shuts it down when ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	server := &http.Server{
		Addr:              s.Addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// StartWithAutoTLS runs an HTTPS server with certificates obtained via ACME.
// A plain HTTP listener on :80 answers the HTTP-01 challenges and redirects
// everything else to HTTPS.
func (s *Server) StartWithAutoTLS(ctx context.Context, domains []string, cacheDir string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if len(domains) == 0 {
		return errors.New("no domains provided for automatic TLS")
	}
	if cacheDir == "" {
		cacheDir = "certcache"
	}

	manager := &autocert.Manager{
		Prompt:     autocert.AcceptTOS,
		HostPolicy: autocert.HostWhitelist(domains...),
		Cache:      autocert.DirCache(cacheDir),
	}

	challengeSrv := &http.Server{
		Addr:              ":80",
		Handler:           manager.HTTPHandler(nil),
		ReadHeaderTimeout: 5 * time.Second,
	}

	tlsConfig := manager.TLSConfig()
	tlsConfig.MinVersion = tls.VersionTLS12

	server := &http.Server{
		Addr:              s.Addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		TLSConfig:         tlsConfig,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = challengeSrv.Shutdown(shutdownCtx)
		_ = server.Shutdown(shutdownCtx)
	}()

	go func() {
		if err := challengeSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("acme challenge server: %v", err)
		}
	}()

	if err := server.ListenAndServeTLS("", ""); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, indexHTML)
}

func (s *Server) handleBalanceStream(w http.ResponseWriter, r *http.Request) {
	if s.Store == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, "snapshot store not available")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	writeSSEHeaders(w)

	lastIndex := lastEventID(r)
	sendSnapshots := func() error {
		records, err := s.Store.SnapshotsAfter(lastIndex)
		if err != nil {
			return err
		}
		for _, record := range records {
			payload, err := json.Marshal(record.Snapshot)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "id: %d\n", record.Index)
			fmt.Fprintf(w, "event: balance\n")
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
			lastIndex = record.Index
		}
		return nil
	}

	s.streamLoop(w, r, flusher, sendSnapshots, "balance")
}

func (s *Server) handleTradeStream(w http.ResponseWriter, r *http.Request) {
	if s.TradeStore == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, "trade store not available")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	writeSSEHeaders(w)

	lastIndex := lastEventID(r)
	sendTrades := func() error {
		records, err := s.TradeStore.TradesAfter(lastIndex)
		if err != nil {
			return err
		}
		for _, record := range records {
			payload, err := json.Marshal(record.Trade)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "id: %d\n", record.Index)
			fmt.Fprintf(w, "event: trade\n")
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
			lastIndex = record.Index
		}
		return nil
	}

	s.streamLoop(w, r, flusher, sendTrades, "trade")
}

// streamLoop pushes fresh records to the client until it disconnects. A
// comment heartbeat every 30s keeps proxies from closing the connection.
func (s *Server) streamLoop(w http.ResponseWriter, r *http.Request, flusher http.Flusher, send func() error, name string) {
	if err := send(); err != nil {
		http.Error(w, "failed to load records", http.StatusInternalServerError)
		log.Printf("%s stream initial load: %v", name, err)
		return
	}

	heartbeat := time.NewTicker(30 * time.Second)
	defer heartbeat.Stop()

	pollTicker := time.NewTicker(recordPollInterval)
	defer pollTicker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprintf(w, ": ping\n\n")
			flusher.Flush()
		case <-pollTicker.C:
			if err := send(); err != nil {
				log.Printf("%s stream poll err: %v", name, err)
			}
		}
	}
}

func writeSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
}

// lastEventID resumes a reconnecting client from where it left off. The
// browser sends the Last-Event-ID header automatically; the query parameter
// serves manual clients.
func lastEventID(r *http.Request) uint64 {
	for _, candidate := range []string{r.Header.Get("Last-Event-ID"), r.URL.Query().Get("last_event_id")} {
		if candidate == "" {
			continue
		}
		if v, err := strconv.ParseUint(candidate, 10, 64); err == nil {
			return v
		}
	}
	return 0
}

// Dashboard with a wealth chart per agent and a trade feed.
const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <title>Bandit</title>
  <script src="https://cdn.jsdelivr.net/npm/chart.js"></script>
  <link rel="preconnect" href="https://fonts.googleapis.com">
  <link rel="preconnect" href="https://fonts.gstatic.com" crossorigin>
  <link href="https://fonts.googleapis.com/css2?family=Press+Start+2P&family=Space+Mono:wght@400;700&display=swap" rel="stylesheet">
  <style>
    :root {
      --bg:#ffffff;
      --ink:#111111;
      --ink-mid:#4d4d4d;
      --ink-soft:#9c9c9c;
      --panel:#f6f6f6;
    }
    * { box-sizing:border-box; }
    body {
      margin:0;
      min-height:100vh;
      display:flex;
      align-items:center;
      justify-content:center;
      padding:2rem;
      background:var(--bg);
      color:var(--ink);
      font-family:'Space Mono','JetBrains Mono',monospace;
    }
    body::before {
      content:'';
      position:fixed;
      inset:0;
      background:
        linear-gradient(90deg, rgba(0,0,0,.02) 1px, transparent 1px),
        linear-gradient(rgba(0,0,0,.02) 1px, transparent 1px);
      background-size:12px 12px;
      pointer-events:none;
    }
    #app {
      width:min(1400px, 96vw);
      background:var(--panel);
      border:3px solid var(--ink);
      padding:2rem;
      position:relative;
      box-shadow:12px 12px 0 rgba(0,0,0,.15);
      display:grid;
      grid-template-columns:1fr 380px;
      gap:2rem;
    }
    .main-content { display:flex; flex-direction:column; gap:2rem; }
    #app::after {
      content:'';
      position:absolute;
      inset:8px;
      border:1px dashed rgba(0,0,0,.15);
      pointer-events:none;
    }
    header { display:flex; justify-content:space-between; align-items:flex-start; gap:1rem; }
    .eyebrow {
      font-family:'Press Start 2P','Space Mono',monospace;
      font-size:.55rem;
      text-transform:uppercase;
      letter-spacing:.2em;
      margin:0;
    }
    .status {
      font-size:.65rem;
      text-transform:uppercase;
      letter-spacing:.1em;
      border:2px solid var(--ink);
      padding:.4rem .9rem;
      background:#ffffff;
      box-shadow:4px 4px 0 rgba(0,0,0,.15);
    }
    .agent-grid {
      display:grid;
      grid-template-columns:repeat(auto-fit, minmax(320px, 1fr));
      gap:1.5rem;
    }
    .chart-wrap {
      width:100%;
      border:2px solid var(--ink);
      background:#fff;
    }
    .agent-card {
      border:3px solid var(--ink);
      padding:1.5rem;
      background:#fff;
      box-shadow:8px 8px 0 rgba(0,0,0,.15);
      display:flex;
      flex-direction:column;
      gap:1rem;
    }
    .agent-card-header {
      display:flex;
      justify-content:space-between;
      align-items:center;
      gap:.5rem;
    }
    .agent-name {
      font-family:'Press Start 2P','Space Mono',monospace;
      font-size:.75rem;
      letter-spacing:.08em;
      margin:0;
      line-height:1.3;
    }
    .equity {
      border:3px solid var(--ink);
      padding:1.2rem;
      background:#fff;
      box-shadow:6px 6px 0 rgba(0,0,0,.12);
    }
    .equity .label {
      font-size:.62rem;
      text-transform:uppercase;
      letter-spacing:.2em;
      color:var(--ink-mid);
    }
    .equity .value {
      margin-top:.8rem;
      font-size:1.8rem;
      font-weight:700;
      letter-spacing:.08em;
    }
    .pill {
      font-size:.55rem;
      letter-spacing:.12em;
      text-transform:uppercase;
      padding:.35rem .7rem;
      border:2px solid var(--ink);
      background:#fefefe;
      box-shadow:4px 4px 0 rgba(0,0,0,.15);
    }
    .pill.muted { color:var(--ink-mid); border-color:var(--ink-mid); }
    .empty-state {
      border:2px dashed var(--ink-soft);
      padding:2rem;
      text-align:center;
      font-size:.8rem;
      letter-spacing:.12em;
      text-transform:uppercase;
      color:var(--ink-mid);
    }
    .trades-sidebar {
      display:flex;
      flex-direction:column;
      gap:1rem;
      max-height:calc(100vh - 8rem);
      overflow-y:auto;
    }
    .trade-card {
      border:2px solid var(--ink);
      padding:1rem;
      background:#fff;
      box-shadow:4px 4px 0 rgba(0,0,0,.12);
      font-size:.7rem;
      line-height:1.4;
    }
    .trade-header {
      display:flex;
      justify-content:space-between;
      align-items:center;
      margin-bottom:.8rem;
      padding-bottom:.8rem;
      border-bottom:1px dashed var(--ink-soft);
    }
    .trade-side {
      font-weight:700;
      text-transform:uppercase;
      letter-spacing:.1em;
    }
    .trade-side.buy { color:#1b9aaa; }
    .trade-side.sell { color:#d7263d; }
    .trade-step { font-size:.6rem; color:var(--ink-mid); }
    .trade-meta { margin-top:.8rem; display:flex; flex-wrap:wrap; gap:.4rem; }
    .meta-pill {
      font-size:.55rem;
      padding:.25rem .5rem;
      background:var(--panel);
      border:1px solid var(--ink-soft);
    }
    .sidebar-title {
      font-family:'Press Start 2P','Space Mono',monospace;
      font-size:.6rem;
      text-transform:uppercase;
      letter-spacing:.15em;
      margin-bottom:1rem;
      padding-bottom:.8rem;
      border-bottom:2px solid var(--ink);
    }
    @media (max-width:640px) {
      body { padding:1rem; }
      #app { padding:1.2rem; grid-template-columns:1fr; }
      header { flex-direction:column; align-items:flex-start; }
      .agent-grid { grid-template-columns:1fr; }
      .trades-sidebar { max-height:400px; }
    }
  </style>
</head>
<body>
  <div id="app">
    <div class="main-content">
      <header>
        <div>
          <p class="eyebrow">bandit backtest</p>
        </div>
        <div id="sse-status" class="status">Connecting…</div>
      </header>
      <section>
        <canvas id="wealthChart" class="chart-wrap" height="320"></canvas>
      </section>
      <section id="agents" class="agent-grid">
        <div id="emptyState" class="empty-state">Waiting for balance snapshots…</div>
      </section>
    </div>
    <aside class="trades-sidebar">
      <h3 class="sidebar-title">Trades</h3>
      <div id="trades"></div>
    </aside>
  </div>
<script>
const statusEl = document.getElementById('sse-status');
const agentContainer = document.getElementById('agents');
const emptyState = document.getElementById('emptyState');
const chartCanvas = document.getElementById('wealthChart');
const agentViews = new Map();
const datasetByAgent = new Map();
const colorPalette = [
  { line:'#111111', fill:'rgba(17,17,17,0.12)' },
  { line:'#d7263d', fill:'rgba(215,38,61,0.15)' },
  { line:'#1b9aaa', fill:'rgba(27,154,170,0.15)' },
  { line:'#ff7f11', fill:'rgba(255,127,17,0.18)' },
  { line:'#3c91e6', fill:'rgba(60,145,230,0.15)' }
];
let colorIndex = 0;

Chart.defaults.font.family = "'Space Mono', 'JetBrains Mono', monospace";
Chart.defaults.font.size = 11;
Chart.defaults.color = '#111111';

const wealthChart = new Chart(chartCanvas.getContext('2d'), {
  type: 'line',
  data: { labels: [], datasets: [] },
  options: {
    animation: false,
    responsive: true,
    interaction: { intersect: false, mode: 'index' },
    scales: {
      x:{ ticks:{ maxRotation:0, autoSkip:true }, grid:{ color:'rgba(0,0,0,0.08)' } },
      y:{ grid:{ color:'rgba(0,0,0,0.08)' } }
    },
    plugins:{
      decimation:{ enabled:true, algorithm:'lttb', samples:500 },
      legend:{ display:true, labels:{ usePointStyle:true, boxWidth:12 } },
      tooltip:{
        backgroundColor:'#ffffff',
        borderColor:'#111111',
        borderWidth:1,
        titleColor:'#111111',
        bodyColor:'#111111'
      }
    }
  }
});

const parseNum = (value) => {
  const num = parseFloat(value);
  return Number.isFinite(num) ? num : 0;
};

const nextColor = () => {
  const color = colorPalette[colorIndex % colorPalette.length];
  colorIndex += 1;
  return color;
};

function ensureDataset(agent){
  if(datasetByAgent.has(agent)){
    return datasetByAgent.get(agent);
  }
  const palette = nextColor();
  const dataset = {
    label: agent,
    data: new Array(wealthChart.data.labels.length).fill(null),
    borderColor: palette.line,
    backgroundColor: palette.fill,
    borderWidth: 2,
    pointRadius: 0,
    tension: 0.15,
    fill: false
  };
  wealthChart.data.datasets.push(dataset);
  datasetByAgent.set(agent, dataset);
  return dataset;
}

function appendLabel(step){
  const labels = wealthChart.data.labels;
  if(labels.length && labels[labels.length - 1] === step){
    return false;
  }
  labels.push(step);
  wealthChart.data.datasets.forEach((dataset) => {
    const last = dataset.data.length ? dataset.data[dataset.data.length - 1] : null;
    dataset.data.push(last);
  });
  if(labels.length > 50000){
    labels.shift();
    wealthChart.data.datasets.forEach((dataset) => dataset.data.shift());
  }
  return true;
}

function ensureAgentView(agent){
  if(agentViews.has(agent)){
    return agentViews.get(agent);
  }
  if(emptyState){ emptyState.remove(); }

  const card = document.createElement('article');
  card.className = 'agent-card';

  const header = document.createElement('div');
  header.className = 'agent-card-header';
  const title = document.createElement('h2');
  title.className = 'agent-name';
  title.textContent = agent;
  const step = document.createElement('span');
  step.className = 'pill muted';
  step.textContent = 'Waiting…';
  header.append(title, step);

  const equity = document.createElement('div');
  equity.className = 'equity';
  const label = document.createElement('div');
  label.className = 'label';
  label.textContent = 'Wealth';
  const value = document.createElement('div');
  value.className = 'value';
  value.textContent = '0';
  equity.append(label, value);

  const holdings = document.createElement('div');
  holdings.style.fontSize = '.65rem';
  holdings.style.color = 'var(--ink-mid)';

  card.append(header, equity, holdings);
  agentContainer.appendChild(card);

  const view = { valueEl: value, stepEl: step, holdingsEl: holdings };
  agentViews.set(agent, view);
  return view;
}

function formatHoldings(holdings){
  if(!holdings || typeof holdings !== 'object'){ return ''; }
  return Object.entries(holdings)
    .map(([token, amount]) => parseNum(amount).toFixed(4) + ' ' + token)
    .join(' / ');
}

function handleSnapshot(payload){
  const agent = payload.agent || '—';
  const wealth = parseNum(payload.wealth);
  const view = ensureAgentView(agent);

  view.valueEl.textContent = wealth.toFixed(4);
  view.stepEl.textContent = 'step ' + payload.step;
  view.holdingsEl.textContent = formatHoldings(payload.holdings);

  appendLabel(payload.step);
  const dataset = ensureDataset(agent);
  dataset.data[dataset.data.length - 1] = wealth;
  wealthChart.update('none');
}

function connectBalanceSSE(){
  const source = new EventSource('/balance/stream');
  statusEl.textContent = 'Status: receiving data';
  source.addEventListener('balance', (event) => {
    try{
      handleSnapshot(JSON.parse(event.data));
    }catch(err){
      console.error('snapshot parse', err);
    }
  });
  source.addEventListener('error', () => {
    statusEl.textContent = 'Reconnecting…';
    source.close();
    setTimeout(connectBalanceSSE, 2000);
  });
}

connectBalanceSSE();

const tradesContainer = document.getElementById('trades');
const MAX_TRADES = 50;

function createTradeCard(trade){
  const card = document.createElement('div');
  card.className = 'trade-card';

  const header = document.createElement('div');
  header.className = 'trade-header';

  const side = document.createElement('div');
  const sideText = parseNum(trade.quote_quantity) !== 0 ? 'buy' : 'sell';
  side.className = 'trade-side ' + sideText;
  side.textContent = sideText;

  const step = document.createElement('div');
  step.className = 'trade-step';
  step.textContent = 'step ' + trade.step;

  header.append(side, step);
  card.appendChild(header);

  if(trade.agent){
    const agent = document.createElement('div');
    agent.style.fontWeight = '700';
    agent.style.marginBottom = '.5rem';
    agent.textContent = trade.agent;
    card.appendChild(agent);
  }

  if(trade.pool){
    const pool = document.createElement('div');
    pool.style.fontSize = '.65rem';
    pool.style.color = 'var(--ink-mid)';
    pool.textContent = trade.pool;
    card.appendChild(pool);
  }

  const meta = document.createElement('div');
  meta.className = 'trade-meta';

  if(trade.price){
    const price = document.createElement('span');
    price.className = 'meta-pill';
    price.textContent = 'Price: ' + parseFloat(trade.price).toFixed(4);
    meta.appendChild(price);
  }
  if(trade.base_quantity && parseFloat(trade.base_quantity) !== 0){
    const qty = document.createElement('span');
    qty.className = 'meta-pill';
    qty.textContent = 'Base: ' + trade.base_quantity;
    meta.appendChild(qty);
  }
  if(trade.quote_quantity && parseFloat(trade.quote_quantity) !== 0){
    const qty = document.createElement('span');
    qty.className = 'meta-pill';
    qty.textContent = 'Quote: ' + trade.quote_quantity;
    meta.appendChild(qty);
  }
  if(meta.children.length > 0){
    card.appendChild(meta);
  }

  return card;
}

function connectTradeSSE(){
  const source = new EventSource('/trades/stream');
  source.addEventListener('trade', (event) => {
    try{
      const card = createTradeCard(JSON.parse(event.data));
      tradesContainer.insertBefore(card, tradesContainer.firstChild);
      while(tradesContainer.children.length > MAX_TRADES){
        tradesContainer.removeChild(tradesContainer.lastChild);
      }
    }catch(err){
      console.error('trade parse error', err);
    }
  });
  source.addEventListener('error', () => {
    source.close();
    setTimeout(connectTradeSSE, 2000);
  });
}

connectTradeSSE();
</script>
</body>
</html>`
