package bollinger

import "math"

// priceWindow is a fixed-capacity ring buffer of the most recent prices.
// Once full, every push evicts the oldest entry.
type priceWindow struct {
	buf  []float64
	head int
	size int
}

func newPriceWindow(capacity int) *priceWindow {
	return &priceWindow{buf: make([]float64, capacity)}
}

func (w *priceWindow) Push(v float64) {
	w.buf[w.head] = v
	w.head = (w.head + 1) % len(w.buf)
	if w.size < len(w.buf) {
		w.size++
	}
}

func (w *priceWindow) Len() int {
	return w.size
}

func (w *priceWindow) Full() bool {
	return w.size == len(w.buf)
}

// Values returns the window contents ordered oldest to newest.
func (w *priceWindow) Values() []float64 {
	out := make([]float64, 0, w.size)
	start := w.head - w.size
	if start < 0 {
		start += len(w.buf)
	}
	for i := 0; i < w.size; i++ {
		out = append(out, w.buf[(start+i)%len(w.buf)])
	}
	return out
}

// rollingStats maintains the bounded price window plus the unbounded,
// lock-step price and liquidity histories, and computes the moving statistics
// the decision rules consume. Band and correlation values are additionally
// appended to diagnostic histories so a finished run can be inspected.
type rollingStats struct {
	window     *priceWindow
	windowSize int
	corrWindow int
	bandWidth  float64

	priceHist     []float64
	liquidityHist []float64

	upperHist []float64
	lowerHist []float64
	corrHist  []float64
}

func newRollingStats(window, corrWindow int, bandWidth float64) *rollingStats {
	return &rollingStats{
		window:     newPriceWindow(window),
		windowSize: window,
		corrWindow: corrWindow,
		bandWidth:  bandWidth,
	}
}

// Update appends the observation to the bounded window and both histories.
// Call exactly once per step; the histories stay equal in length.
func (s *rollingStats) Update(price, liquidity float64) {
	s.window.Push(price)
	s.priceHist = append(s.priceHist, price)
	s.liquidityHist = append(s.liquidityHist, liquidity)
}

// SMA returns the arithmetic mean of the bounded window.
func (s *rollingStats) SMA() float64 {
	return mean(s.window.Values())
}

// BollingerBands returns (lower, middle, upper). Until the window is full it
// returns the (0, 0, 0) sentinel; that is the expected warm-up output, not an
// error. Non-sentinel results are appended to the diagnostic band histories.
func (s *rollingStats) BollingerBands() (lower, middle, upper float64) {
	if !s.window.Full() {
		return 0, 0, 0
	}

	values := s.window.Values()
	middle = mean(values)
	std := popStdDev(values, middle)
	upper = middle + std*s.bandWidth
	lower = middle - std*s.bandWidth

	s.upperHist = append(s.upperHist, upper)
	s.lowerHist = append(s.lowerHist, lower)

	return lower, middle, upper
}

// Correlation returns the Pearson correlation between the trailing corrWindow
// slices of the price and liquidity histories, or the 0.0 sentinel while
// either history is still shorter than corrWindow. Genuine results are
// appended to the diagnostic correlation history.
func (s *rollingStats) Correlation() float64 {
	if len(s.priceHist) < s.corrWindow || len(s.liquidityHist) < s.corrWindow {
		return 0
	}

	prices := s.priceHist[len(s.priceHist)-s.corrWindow:]
	liquidity := s.liquidityHist[len(s.liquidityHist)-s.corrWindow:]
	if len(prices) != len(liquidity) {
		return 0
	}

	corr := pearson(prices, liquidity)
	s.corrHist = append(s.corrHist, corr)

	return corr
}

// Ready reports whether the warm-up period is over. The transition is one-way:
// the window never shrinks once filled.
func (s *rollingStats) Ready() bool {
	return s.window.Full()
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// popStdDev computes the population standard deviation (divide by N).
func popStdDev(values []float64, mu float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		d := v - mu
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(values)))
}

// pearson computes the Pearson correlation coefficient of two equal-length
// series. A zero-variance series makes the coefficient undefined; 0 is
// returned in that case.
func pearson(xs, ys []float64) float64 {
	mx := mean(xs)
	my := mean(ys)

	var cov, varX, varY float64
	for i := range xs {
		dx := xs[i] - mx
		dy := ys[i] - my
		cov += dx * dy
		varX += dx * dx
		varY += dy * dy
	}
	if varX == 0 || varY == 0 {
		return 0
	}
	return cov / math.Sqrt(varX*varY)
}
