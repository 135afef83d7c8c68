package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"exchange_pro/internal/domain"
	"exchange_pro/internal/infra"
)

// DefaultInterval is the refresh cadence between polling passes
const DefaultInterval = 5000 * time.Millisecond

// Ticker abstracts time.Ticker so tests can drive passes by hand
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFactory creates a Ticker firing every d
type TickerFactory func(d time.Duration) Ticker

type realTicker struct{ t *time.Ticker }

func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()               { r.t.Stop() }

func newRealTicker(d time.Duration) Ticker {
	return realTicker{t: time.NewTicker(d)}
}

// Scheduler owns the single active polling session.
// Each pass fetches every symbol in order on one goroutine, so onQuote for
// symbol i returns before the fetch for symbol i+1 starts and passes never overlap.
type Scheduler struct {
	source    domain.QuoteSource
	metrics   *infra.Metrics
	logger    *slog.Logger
	newTicker TickerFactory

	startMu  sync.Mutex // serializes Start so only one session goroutine ever exists
	mu       sync.Mutex
	interval time.Duration
	stop     chan struct{}
	done     chan struct{}
}

// NewScheduler creates an idle scheduler. Non-positive interval uses DefaultInterval.
func NewScheduler(source domain.QuoteSource, interval time.Duration, metrics *infra.Metrics) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if metrics == nil {
		metrics = infra.GlobalMetrics
	}
	return &Scheduler{
		source:    source,
		metrics:   metrics,
		logger:    slog.Default().With(slog.String("module", "scheduler")),
		newTicker: newRealTicker,
		interval:  interval,
	}
}

// SetTickerFactory replaces the ticker source; takes effect on the next Start
func (s *Scheduler) SetTickerFactory(f TickerFactory) {
	s.mu.Lock()
	s.newTicker = f
	s.mu.Unlock()
}

// SetInterval changes the refresh cadence; takes effect on the next Start
func (s *Scheduler) SetInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	s.mu.Lock()
	s.interval = d
	s.mu.Unlock()
}

// Interval returns the configured refresh cadence
func (s *Scheduler) Interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

// Running reports whether a polling session is active. A session whose context
// was cancelled is not running.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop == nil {
		return false
	}
	select {
	case <-s.done:
		return false
	default:
		return true
	}
}

// Start cancels any prior session, runs a full pass immediately and then one per tick.
// A pass of the prior session that is still running finishes before the new session
// starts, so Start may block for up to one pass. It must not be called from onQuote.
// The symbol list is copied; onQuote only ever sees valid quotes.
func (s *Scheduler) Start(ctx context.Context, symbols []string, onQuote domain.QuoteHandler) {
	syms := append([]string(nil), symbols...)

	s.startMu.Lock()
	defer s.startMu.Unlock()

	s.mu.Lock()
	prev := s.done
	s.stopLocked()
	s.mu.Unlock()

	if prev != nil {
		<-prev
	}

	s.mu.Lock()
	stop := make(chan struct{})
	done := make(chan struct{})
	s.stop, s.done = stop, done
	interval, factory := s.interval, s.newTicker
	s.mu.Unlock()

	s.logger.Info("📈 Market polling started", slog.Int("symbols", len(syms)), slog.Duration("interval", interval))
	go s.run(ctx, stop, done, syms, onQuote, interval, factory)
}

// Stop disarms the active session. A pass already running finishes; no new pass starts.
// Stop is a no-op when idle.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

func (s *Scheduler) stopLocked() {
	if s.stop == nil {
		return
	}
	close(s.stop)
	s.stop = nil
	s.logger.Info("Market polling stopped")
}

func (s *Scheduler) run(ctx context.Context, stop, done chan struct{}, symbols []string, onQuote domain.QuoteHandler, interval time.Duration, factory TickerFactory) {
	defer close(done)

	s.pass(ctx, symbols, onQuote)

	ticker := factory(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C():
			// A tick and a stop can be ready together; stop wins.
			select {
			case <-stop:
				return
			default:
			}
			s.pass(ctx, symbols, onQuote)
		}
	}
}

func (s *Scheduler) pass(ctx context.Context, symbols []string, onQuote domain.QuoteHandler) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Polling pass panic recovered", slog.Any("panic", r))
		}
		s.metrics.RecordPass(time.Since(start))
	}()

	for _, sym := range symbols {
		if ctx.Err() != nil {
			return
		}
		q, ok := s.source.FetchQuote(ctx, sym)
		if !ok || !q.Valid() {
			continue
		}
		onQuote(sym, q)
		s.metrics.IncrementQuotesDelivered()
	}
}
