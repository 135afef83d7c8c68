package engine

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"exchange_pro/internal/domain"
	"exchange_pro/internal/infra"
)

type fakeTicker struct {
	ch      chan time.Time
	mu      sync.Mutex
	stopped bool
}

func newFakeTicker() *fakeTicker { return &fakeTicker{ch: make(chan time.Time, 4)} }

func (f *fakeTicker) C() <-chan time.Time { return f.ch }
func (f *fakeTicker) Stop() {
	f.mu.Lock()
	f.stopped = true
	f.mu.Unlock()
}
func (f *fakeTicker) tick() { f.ch <- time.Now() }

// recordingSource logs every fetch so tests can assert interleaving with deliveries
type recordingSource struct {
	mu     sync.Mutex
	events []string
	prices map[string]int64
	gate   chan struct{} // when set, the first fetch of a pass blocks until closed
}

func (r *recordingSource) FetchQuote(ctx context.Context, symbol string) (domain.Quote, bool) {
	r.mu.Lock()
	r.events = append(r.events, "fetch:"+symbol)
	gate := r.gate
	r.gate = nil
	price, ok := r.prices[symbol]
	r.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if !ok {
		return domain.Quote{}, false
	}
	return domain.Quote{Current: decimal.NewFromInt(price)}, true
}

func (r *recordingSource) record(e string) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recordingSource) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

type harness struct {
	sched      *Scheduler
	source     *recordingSource
	ticker     *fakeTicker
	deliveries chan string
	metrics    *infra.Metrics
}

func newHarness(prices map[string]int64) *harness {
	h := &harness{
		source:     &recordingSource{prices: prices},
		ticker:     newFakeTicker(),
		deliveries: make(chan string, 64),
		metrics:    &infra.Metrics{},
	}
	h.sched = NewScheduler(h.source, time.Second, h.metrics)
	h.sched.SetTickerFactory(func(time.Duration) Ticker { return h.ticker })
	return h
}

func (h *harness) onQuote(symbol string, q domain.Quote) {
	h.source.record("deliver:" + symbol)
	h.deliveries <- symbol
}

func (h *harness) done() chan struct{} {
	h.sched.mu.Lock()
	defer h.sched.mu.Unlock()
	return h.sched.done
}

func waitDeliveries(t *testing.T, ch <-chan string, n int) []string {
	t.Helper()
	var got []string
	timeout := time.After(2 * time.Second)
	for len(got) < n {
		select {
		case s := <-ch:
			got = append(got, s)
		case <-timeout:
			t.Fatalf("timed out after %d of %d deliveries: %v", len(got), n, got)
		}
	}
	return got
}

func waitClosed(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("session goroutine did not exit")
	}
}

func TestScheduler_ImmediatePassInOrder(t *testing.T) {
	h := newHarness(map[string]int64{"A": 1, "B": 2, "C": 3})
	h.sched.Start(context.Background(), []string{"A", "B", "C"}, h.onQuote)
	defer h.sched.Stop()

	got := waitDeliveries(t, h.deliveries, 3)
	if fmt.Sprint(got) != "[A B C]" {
		t.Errorf("deliveries = %v, want [A B C]", got)
	}

	want := []string{"fetch:A", "deliver:A", "fetch:B", "deliver:B", "fetch:C", "deliver:C"}
	if fmt.Sprint(h.source.snapshot()) != fmt.Sprint(want) {
		t.Errorf("events = %v, want %v", h.source.snapshot(), want)
	}
}

func TestScheduler_SkipsMissingQuotes(t *testing.T) {
	h := newHarness(map[string]int64{"A": 1, "B": 0, "D": 4})
	h.sched.Start(context.Background(), []string{"A", "B", "C", "D"}, h.onQuote)
	defer h.sched.Stop()

	got := waitDeliveries(t, h.deliveries, 2)
	if fmt.Sprint(got) != "[A D]" {
		t.Errorf("deliveries = %v, want [A D]", got)
	}
}

func TestScheduler_TickRunsAnotherPass(t *testing.T) {
	h := newHarness(map[string]int64{"A": 1, "B": 2})
	h.sched.Start(context.Background(), []string{"A", "B"}, h.onQuote)
	defer h.sched.Stop()

	waitDeliveries(t, h.deliveries, 2)
	h.ticker.tick()
	got := waitDeliveries(t, h.deliveries, 2)
	if fmt.Sprint(got) != "[A B]" {
		t.Errorf("second pass = %v", got)
	}
}

func TestScheduler_StopPreventsFurtherPasses(t *testing.T) {
	h := newHarness(map[string]int64{"A": 1})
	h.sched.Start(context.Background(), []string{"A"}, h.onQuote)
	waitDeliveries(t, h.deliveries, 1)

	done := h.done()
	h.sched.Stop()
	h.ticker.tick()
	waitClosed(t, done)

	if h.sched.Running() {
		t.Error("Running should be false after Stop")
	}
	select {
	case s := <-h.deliveries:
		t.Errorf("unexpected delivery %s after Stop", s)
	default:
	}

	h.ticker.mu.Lock()
	stopped := h.ticker.stopped
	h.ticker.mu.Unlock()
	if !stopped {
		t.Error("ticker should be stopped when the session exits")
	}
}

func TestScheduler_StopIdleIsNoop(t *testing.T) {
	h := newHarness(nil)
	h.sched.Stop()
	h.sched.Stop()
	if h.sched.Running() {
		t.Error("idle scheduler must not report running")
	}
}

func TestScheduler_RestartReplacesSession(t *testing.T) {
	h := newHarness(map[string]int64{"A": 1, "B": 2})
	h.sched.Start(context.Background(), []string{"A"}, h.onQuote)
	waitDeliveries(t, h.deliveries, 1)
	first := h.done()

	second := newFakeTicker()
	h.sched.SetTickerFactory(func(time.Duration) Ticker { return second })
	h.sched.Start(context.Background(), []string{"B"}, h.onQuote)
	defer h.sched.Stop()

	waitClosed(t, first)
	if got := waitDeliveries(t, h.deliveries, 1); got[0] != "B" {
		t.Errorf("restarted session delivered %v", got)
	}

	// The old ticker is no longer consulted.
	h.ticker.tick()
	second.tick()
	if got := waitDeliveries(t, h.deliveries, 1); got[0] != "B" {
		t.Errorf("tick delivered %v, want B", got)
	}
}

func TestScheduler_RestartWaitsForInFlightPass(t *testing.T) {
	h := newHarness(map[string]int64{"A": 1, "B": 2})
	gate := make(chan struct{})
	h.source.gate = gate

	h.sched.Start(context.Background(), []string{"A"}, h.onQuote)
	deadline := time.Now().Add(2 * time.Second)
	for len(h.source.snapshot()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("first fetch never started")
		}
		time.Sleep(time.Millisecond)
	}

	restarted := make(chan struct{})
	go func() {
		h.sched.Start(context.Background(), []string{"B"}, h.onQuote)
		close(restarted)
	}()
	defer func() {
		<-restarted
		h.sched.Stop()
	}()

	// The new session must not begin while the old pass is blocked.
	time.Sleep(50 * time.Millisecond)
	if got := h.source.snapshot(); fmt.Sprint(got) != "[fetch:A]" {
		t.Fatalf("events while old pass blocked = %v, want [fetch:A]", got)
	}

	close(gate)
	waitDeliveries(t, h.deliveries, 2)

	if got := fmt.Sprint(h.source.snapshot()); got != "[fetch:A deliver:A fetch:B deliver:B]" {
		t.Errorf("events = %s, want old pass to finish before the new one starts", got)
	}
}

func TestScheduler_InFlightPassCompletesAfterStop(t *testing.T) {
	h := newHarness(map[string]int64{"A": 1, "B": 2, "C": 3})
	gate := make(chan struct{})
	h.source.gate = gate

	h.sched.Start(context.Background(), []string{"A", "B", "C"}, h.onQuote)
	done := h.done()

	// Let the goroutine reach the blocked first fetch.
	deadline := time.Now().Add(2 * time.Second)
	for len(h.source.snapshot()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("first fetch never started")
		}
		time.Sleep(time.Millisecond)
	}

	h.sched.Stop()
	close(gate)

	got := waitDeliveries(t, h.deliveries, 3)
	if fmt.Sprint(got) != "[A B C]" {
		t.Errorf("in-flight pass deliveries = %v", got)
	}
	waitClosed(t, done)
}

func TestScheduler_PanicInHandlerIsRecovered(t *testing.T) {
	h := newHarness(map[string]int64{"A": 1})
	var mu sync.Mutex
	calls := 0
	h.sched.Start(context.Background(), []string{"A"}, func(symbol string, q domain.Quote) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n == 1 {
			panic("boom")
		}
		h.deliveries <- symbol
	})
	defer h.sched.Stop()

	h.ticker.tick()
	waitDeliveries(t, h.deliveries, 1)

	deadline := time.Now().Add(2 * time.Second)
	for h.metrics.Snapshot().PollPasses < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("PollPasses = %d, want 2", h.metrics.Snapshot().PollPasses)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestScheduler_ContextCancelEndsSession(t *testing.T) {
	h := newHarness(map[string]int64{"A": 1})
	ctx, cancel := context.WithCancel(context.Background())
	h.sched.Start(ctx, []string{"A"}, h.onQuote)
	waitDeliveries(t, h.deliveries, 1)

	done := h.done()
	cancel()
	waitClosed(t, done)
	if h.sched.Running() {
		t.Error("Running should be false once the context is cancelled")
	}
}

func TestScheduler_SetInterval(t *testing.T) {
	h := newHarness(nil)
	h.sched.SetInterval(0)
	if h.sched.Interval() != time.Second {
		t.Errorf("non-positive interval must be ignored, got %v", h.sched.Interval())
	}
	h.sched.SetInterval(30 * time.Second)
	if h.sched.Interval() != 30*time.Second {
		t.Errorf("Interval = %v", h.sched.Interval())
	}
	if NewScheduler(h.source, 0, nil).Interval() != DefaultInterval {
		t.Error("zero interval should default")
	}
}
