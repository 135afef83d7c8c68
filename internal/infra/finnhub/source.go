package finnhub

import (
	"context"
	"encoding/json"
	"log/slog"
	"math/rand/v2"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"exchange_pro/internal/domain"
	"exchange_pro/internal/infra"
)

type quoteResponse struct {
	C  decimal.Decimal `json:"c"`
	Pc decimal.Decimal `json:"pc"`
	O  decimal.Decimal `json:"o"`
	H  decimal.Decimal `json:"h"`
	L  decimal.Decimal `json:"l"`
	Dp decimal.Decimal `json:"dp"`
}

type candleResponse struct {
	S string            `json:"s"`
	T []int64           `json:"t"`
	O []decimal.Decimal `json:"o"`
	H []decimal.Decimal `json:"h"`
	L []decimal.Decimal `json:"l"`
	C []decimal.Decimal `json:"c"`
	V []float64         `json:"v"`
}

type newsResponse []struct {
	Headline string `json:"headline"`
	Source   string `json:"source"`
	URL      string `json:"url"`
	Datetime int64  `json:"datetime"`
}

// Source resolves quotes, profiles, candles and news, substituting demo data
// whenever the provider cannot serve a usable answer.
type Source struct {
	client      *Client
	metrics     *infra.Metrics
	logger      *slog.Logger
	rand        func() float64
	now         func() time.Time
	candleCount int

	mu      sync.RWMutex
	session *Session
}

// SourceOption customizes a Source
type SourceOption func(*Source)

// WithRand injects the uniform [0,1) generator used for demo data
func WithRand(fn func() float64) SourceOption {
	return func(s *Source) { s.rand = fn }
}

// WithClock injects the clock used to timestamp synthetic candles
func WithClock(fn func() time.Time) SourceOption {
	return func(s *Source) { s.now = fn }
}

// WithCandleCount sets the synthetic series length
func WithCandleCount(n int) SourceOption {
	return func(s *Source) {
		if n > 0 {
			s.candleCount = n
		}
	}
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) SourceOption {
	return func(s *Source) { s.logger = l }
}

// NewSource creates a Source over client with a fresh session
func NewSource(client *Client, metrics *infra.Metrics, opts ...SourceOption) *Source {
	if metrics == nil {
		metrics = infra.GlobalMetrics
	}
	s := &Source{
		client:      client,
		metrics:     metrics,
		logger:      slog.Default().With(slog.String("module", "finnhub")),
		rand:        rand.Float64,
		now:         time.Now,
		candleCount: DefaultCandleCount,
		session:     NewSession(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Session returns the current connectivity session
func (s *Source) Session() *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session
}

// ResetSession installs new credentials and starts a fresh, non-degraded session.
// Observers of the previous session carry over.
func (s *Source) ResetSession(apiKey string) {
	s.client.SetAPIKey(apiKey)

	s.mu.Lock()
	old := s.session
	next := NewSession()
	old.mu.Lock()
	next.observers = append(next.observers, old.observers...)
	old.mu.Unlock()
	s.session = next
	s.mu.Unlock()

	s.metrics.SetDegraded(false)
	s.logger.Info("🔑 Market data session reset", slog.Bool("has_key", apiKey != ""))
}

// get performs a provider call unless the session is degraded, applying the
// session effects of the outcome. It reports whether a payload is available.
func (s *Source) get(ctx context.Context, sess *Session, endpoint string, params url.Values) ([]byte, bool) {
	if sess.Degraded() {
		return nil, false
	}

	res := s.client.Get(ctx, endpoint, params)
	switch res.Outcome {
	case OutcomeOK:
		return res.Payload, true
	case OutcomeUnauthorized:
		s.logger.Warn("Finnhub API 401, invalid key. Using demo mode", slog.String("endpoint", endpoint))
		sess.Degrade()
		// A call that started before ResetSession must not flag the fresh session.
		if sess == s.Session() {
			s.metrics.SetDegraded(true)
		}
	case OutcomeRateLimited:
		s.logger.Debug("Finnhub rate limited", slog.String("endpoint", endpoint))
	case OutcomeMalformed:
		s.logger.Warn("Finnhub returned an unusable response",
			slog.String("endpoint", endpoint),
			slog.Any("error", res.Err),
		)
	case OutcomeTransportError:
		if domain.IsRetriable(res.Err) {
			s.logger.Warn("Finnhub fetch failed, retrying next pass",
				slog.String("endpoint", endpoint),
				slog.Any("error", res.Err),
			)
		} else {
			// The request itself cannot be built; every retry fails the same way.
			s.logger.Error("Finnhub request rejected before sending",
				slog.String("endpoint", endpoint),
				slog.Any("error", res.Err),
			)
		}
	case OutcomeSkipped:
	}
	return nil, false
}

// FetchQuote returns a real quote when one with a non-zero price is available,
// otherwise a jittered demo quote. Symbols without a baseline yield false.
func (s *Source) FetchQuote(ctx context.Context, symbol string) (domain.Quote, bool) {
	sess := s.Session()

	if payload, ok := s.get(ctx, sess, "/quote", url.Values{"symbol": {symbol}}); ok {
		var raw quoteResponse
		if err := json.Unmarshal(payload, &raw); err != nil {
			s.logger.Warn("Quote decode failed", slog.String("symbol", symbol), slog.Any("error", err))
		} else if !raw.C.IsZero() {
			sess.Report(domain.StateConnected)
			return domain.Quote{
				Current:       raw.C,
				PreviousClose: raw.Pc,
				Open:          raw.O,
				High:          raw.H,
				Low:           raw.L,
				PercentChange: raw.Dp,
			}, true
		}
	}

	baseline, ok := demoBaseline(symbol)
	if !ok {
		return domain.Quote{}, false
	}
	sess.Report(domain.StateDemo)
	s.metrics.IncrementDemoFallbacks()
	return jitterQuote(baseline, s.rand()), true
}

// FetchProfile returns company metadata, falling back to demo profiles
func (s *Source) FetchProfile(ctx context.Context, symbol string) domain.Profile {
	if payload, ok := s.get(ctx, s.Session(), "/stock/profile2", url.Values{"symbol": {symbol}}); ok {
		var p domain.Profile
		if err := json.Unmarshal(payload, &p); err == nil && p.Name != "" {
			return p
		}
	}
	return demoProfile(symbol)
}

// FetchCandles returns the provider series for [from, to] at resolution,
// or a synthetic series when the provider has none.
func (s *Source) FetchCandles(ctx context.Context, symbol, resolution string, from, to int64) domain.CandleSeries {
	params := url.Values{
		"symbol":     {symbol},
		"resolution": {resolution},
		"from":       {strconv.FormatInt(from, 10)},
		"to":         {strconv.FormatInt(to, 10)},
	}
	if payload, ok := s.get(ctx, s.Session(), "/stock/candle", params); ok {
		var raw candleResponse
		if err := json.Unmarshal(payload, &raw); err == nil {
			if series, ok := raw.series(); ok {
				return series
			}
		}
	}

	base := defaultCandleBase
	if b, ok := demoBaseline(symbol); ok {
		base = b.Current
	}
	s.metrics.IncrementDemoFallbacks()
	return syntheticCandles(base, s.candleCount, resolutionStep(resolution), s.now().Unix(), s.rand)
}

// FetchNews returns market headlines; there is no demo substitute
func (s *Source) FetchNews(ctx context.Context, category string) ([]domain.NewsItem, bool) {
	if category == "" {
		category = "general"
	}
	payload, ok := s.get(ctx, s.Session(), "/news", url.Values{"category": {category}})
	if !ok {
		return nil, false
	}
	var raw newsResponse
	if err := json.Unmarshal(payload, &raw); err != nil || len(raw) == 0 {
		return nil, false
	}
	items := make([]domain.NewsItem, 0, len(raw))
	for _, n := range raw {
		items = append(items, domain.NewsItem{
			Headline: n.Headline,
			Source:   n.Source,
			URL:      n.URL,
			Datetime: n.Datetime,
		})
	}
	return items, true
}

// series validates the provider's parallel arrays
func (r candleResponse) series() (domain.CandleSeries, bool) {
	n := len(r.T)
	if r.S != "ok" || n == 0 || len(r.O) != n || len(r.H) != n || len(r.L) != n || len(r.C) != n {
		return nil, false
	}
	out := make(domain.CandleSeries, n)
	for i := 0; i < n; i++ {
		var vol int64
		if i < len(r.V) {
			vol = int64(r.V[i])
		}
		out[i] = domain.Candle{
			Time:   r.T[i],
			Open:   r.O[i],
			High:   r.H[i],
			Low:    r.L[i],
			Close:  r.C[i],
			Volume: vol,
		}
	}
	return out, true
}
