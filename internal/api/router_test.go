package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"path/filepath"
	"testing"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/ut"
	"github.com/shopspring/decimal"

	"exchange_pro/internal/domain"
	"exchange_pro/internal/infra"
	"exchange_pro/internal/infra/council"
	"exchange_pro/internal/infra/storage"
	"exchange_pro/internal/service"
)

type candleStub struct{}

func (candleStub) FetchCandles(_ context.Context, symbol, resolution string, from, to int64) domain.CandleSeries {
	var out domain.CandleSeries
	for i := int64(1); i <= 5; i++ {
		out = append(out, domain.Candle{Time: i, Close: decimal.NewFromInt(i)})
	}
	return out
}

type newsStub struct{ items []domain.NewsItem }

func (n newsStub) FetchNews(context.Context, string) ([]domain.NewsItem, bool) {
	return n.items, len(n.items) > 0
}

type councilStub struct {
	online bool
	asked  []string
}

func (c *councilStub) Ask(q string) error {
	if !c.online {
		return domain.ErrNotConnected
	}
	c.asked = append(c.asked, q)
	return nil
}

func (c *councilStub) Transcript() []council.Envelope {
	return []council.Envelope{{Type: council.TypeCouncilComplete, Message: "hold"}}
}

func (c *councilStub) IsConnected() bool { return c.online }

type controllerStub struct {
	prices  *service.PriceService
	chart   *service.ChartService
	updates []domain.SettingsUpdate
	state   domain.ConnectivityState
}

func (c *controllerStub) Focus(ctx context.Context, symbol, timeframe string) error {
	if _, ok := domain.LookupSymbol(symbol); !ok {
		return domain.ErrUnknownSymbol
	}
	if timeframe != "" {
		c.chart.LoadChart(ctx, symbol, timeframe)
	}
	c.prices.SetFocus(symbol)
	return nil
}

func (c *controllerStub) ApplySettings(_ context.Context, u domain.SettingsUpdate) error {
	c.updates = append(c.updates, u)
	return nil
}

func (c *controllerStub) Connectivity() domain.ConnectivityState { return c.state }
func (c *controllerStub) Polling() bool                          { return true }

type fixture struct {
	h       *server.Hertz
	deps    Deps
	council *councilStub
	control *controllerStub
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := storage.NewStorage(filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatalf("NewStorage: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	metrics := &infra.Metrics{}
	alerts, err := service.NewAlertService(store, metrics)
	if err != nil {
		t.Fatal(err)
	}
	watchlist, err := service.NewWatchlistService(store)
	if err != nil {
		t.Fatal(err)
	}
	chart := service.NewChartService(candleStub{})
	chart.LoadChart(context.Background(), "AAPL", "1W")
	prices := service.NewPriceService("AAPL", alerts, chart)

	f := &fixture{
		h:       server.New(server.WithHostPorts("127.0.0.1:0")),
		council: &councilStub{},
		control: &controllerStub{prices: prices, chart: chart, state: domain.StateDemo},
	}
	f.deps = Deps{
		Prices:    prices,
		Chart:     chart,
		Alerts:    alerts,
		Watchlist: watchlist,
		News:      service.NewNewsService(newsStub{items: []domain.NewsItem{{Headline: "Stocks surge"}}}),
		Council:   f.council,
		Control:   f.control,
		Metrics:   metrics,
	}
	RegisterRoutes(f.h, f.deps)
	return f
}

func (f *fixture) do(t *testing.T, method, url string, body any) (int, map[string]any) {
	t.Helper()
	var reqBody *ut.Body
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reqBody = &ut.Body{Body: bytes.NewReader(raw), Len: len(raw)}
	}
	w := ut.PerformRequest(f.h.Engine, method, url, reqBody,
		ut.Header{Key: "Content-Type", Value: "application/json"})
	resp := w.Result()

	var out map[string]any
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		t.Fatalf("%s %s: decode %q: %v", method, url, resp.Body(), err)
	}
	return resp.StatusCode(), out
}

func TestHealthz(t *testing.T) {
	f := newFixture(t)
	code, body := f.do(t, http.MethodGet, "/healthz", nil)
	if code != http.StatusOK || body["ok"] != true {
		t.Errorf("healthz = %d %v", code, body)
	}
}

func TestSymbolsAndSearch(t *testing.T) {
	f := newFixture(t)

	_, body := f.do(t, http.MethodGet, "/api/v1/symbols", nil)
	if syms := body["symbols"].([]any); len(syms) != len(domain.Registry()) {
		t.Errorf("symbols = %d", len(syms))
	}

	_, body = f.do(t, http.MethodGet, "/api/v1/search?q=btc", nil)
	results := body["results"].([]any)
	if len(results) == 0 || results[0].(map[string]any)["symbol"] != "BINANCE:BTCUSDT" {
		t.Errorf("search = %v", results)
	}
}

func TestQuotesAndStatus(t *testing.T) {
	f := newFixture(t)
	f.deps.Prices.OnQuote("AAPL", domain.Quote{Current: decimal.NewFromInt(180), PreviousClose: decimal.NewFromInt(175)})

	_, body := f.do(t, http.MethodGet, "/api/v1/quotes", nil)
	if quotes := body["quotes"].([]any); len(quotes) != 1 {
		t.Errorf("quotes = %v", quotes)
	}
	if _, ok := body["projection"]; !ok {
		t.Error("projection missing for focused symbol")
	}

	_, body = f.do(t, http.MethodGet, "/api/v1/status", nil)
	if body["connectivity"] != "demo" || body["label"] != "Demo Mode" || body["council_online"] != false {
		t.Errorf("status = %v", body)
	}
}

func TestFocus(t *testing.T) {
	f := newFixture(t)

	code, _ := f.do(t, http.MethodPost, "/api/v1/focus", map[string]string{"symbol": "TSLA"})
	if code != http.StatusOK || f.deps.Prices.Focused() != "TSLA" {
		t.Errorf("focus = %d, focused %s", code, f.deps.Prices.Focused())
	}

	code, body := f.do(t, http.MethodPost, "/api/v1/focus", map[string]string{"symbol": "NOPE"})
	if code != http.StatusBadRequest || body["ok"] != false {
		t.Errorf("unknown focus = %d %v", code, body)
	}
}

func TestChart(t *testing.T) {
	f := newFixture(t)

	_, body := f.do(t, http.MethodGet, "/api/v1/chart?sma=2,3", nil)
	if bars := body["bars"].([]any); len(bars) != 5 {
		t.Errorf("bars = %d", len(bars))
	}
	sma := body["sma"].(map[string]any)
	if len(sma["2"].([]any)) != 4 || len(sma["3"].([]any)) != 3 {
		t.Errorf("sma = %v", sma)
	}

	_, body = f.do(t, http.MethodGet, "/api/v1/chart?timeframe=1D", nil)
	if body["timeframe"] != "1D" {
		t.Errorf("timeframe = %v", body["timeframe"])
	}

	code, _ := f.do(t, http.MethodGet, "/api/v1/chart?sma=abc", nil)
	if code != http.StatusBadRequest {
		t.Errorf("bad sma = %d", code)
	}
}

func TestWatchlistRoutes(t *testing.T) {
	f := newFixture(t)

	_, body := f.do(t, http.MethodPost, "/api/v1/watchlist", map[string]string{"symbol": "TSLA"})
	if body["added"] != true {
		t.Errorf("add = %v", body)
	}
	_, body = f.do(t, http.MethodPost, "/api/v1/watchlist", map[string]string{"symbol": "TSLA"})
	if body["added"] != false {
		t.Errorf("duplicate add = %v", body)
	}

	_, body = f.do(t, http.MethodDelete, "/api/v1/watchlist/TSLA", nil)
	if body["removed"] != true {
		t.Errorf("remove = %v", body)
	}

	_, body = f.do(t, http.MethodGet, "/api/v1/watchlist", nil)
	if syms := body["symbols"].([]any); len(syms) != len(domain.DefaultWatchlist) {
		t.Errorf("watchlist = %v", syms)
	}
}

func TestAlertRoutes(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		body map[string]any
		code int
	}{
		{"valid", map[string]any{"symbol": "AAPL", "condition": "above", "price": 200}, http.StatusOK},
		{"bad condition", map[string]any{"symbol": "AAPL", "condition": "near", "price": 200}, http.StatusBadRequest},
		{"unknown symbol", map[string]any{"symbol": "NOPE", "condition": "below", "price": 1}, http.StatusBadRequest},
		{"zero price", map[string]any{"symbol": "AAPL", "condition": "below", "price": 0}, http.StatusBadRequest},
	}
	var id string
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := f.do(t, http.MethodPost, "/api/v1/alerts", tt.body)
			if code != tt.code {
				t.Errorf("code = %d, want %d (%v)", code, tt.code, body)
			}
			if a, ok := body["alert"].(map[string]any); ok {
				id = a["id"].(string)
			}
		})
	}

	_, body := f.do(t, http.MethodGet, "/api/v1/alerts", nil)
	if alerts := body["alerts"].([]any); len(alerts) != 1 {
		t.Fatalf("alerts = %v", alerts)
	}

	if code, _ := f.do(t, http.MethodDelete, "/api/v1/alerts/"+id, nil); code != http.StatusOK {
		t.Errorf("delete = %d", code)
	}
	if code, _ := f.do(t, http.MethodDelete, "/api/v1/alerts/"+id, nil); code != http.StatusNotFound {
		t.Errorf("second delete = %d", code)
	}
}

func TestNews(t *testing.T) {
	f := newFixture(t)
	_, body := f.do(t, http.MethodGet, "/api/v1/news", nil)
	if body["available"] != true || body["bullish_pct"] != float64(100) {
		t.Errorf("news = %v", body)
	}
}

func TestCouncilRoutes(t *testing.T) {
	f := newFixture(t)

	code, body := f.do(t, http.MethodPost, "/api/v1/council/ask", map[string]string{"question": "Buy AAPL?"})
	if code != http.StatusServiceUnavailable || body["error"] != domain.ErrNotConnected.Error() {
		t.Errorf("offline ask = %d %v", code, body)
	}

	f.council.online = true
	if code, _ := f.do(t, http.MethodPost, "/api/v1/council/ask", map[string]string{"question": "Buy AAPL?"}); code != http.StatusOK {
		t.Errorf("ask = %d", code)
	}
	if len(f.council.asked) != 1 {
		t.Errorf("asked = %v", f.council.asked)
	}

	_, body = f.do(t, http.MethodGet, "/api/v1/council/messages", nil)
	if msgs := body["messages"].([]any); len(msgs) != 1 || body["online"] != true {
		t.Errorf("messages = %v", body)
	}
}

func TestSettings(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		body map[string]any
		code int
	}{
		{"key", map[string]any{"finnhub_key": "abc"}, http.StatusOK},
		{"interval", map[string]any{"refresh_interval_ms": 2000}, http.StatusOK},
		{"bad interval", map[string]any{"refresh_interval_ms": 0}, http.StatusBadRequest},
		{"bad council url", map[string]any{"council_url": "http://x"}, http.StatusBadRequest},
		{"empty", map[string]any{}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if code, body := f.do(t, http.MethodPut, "/api/v1/settings", tt.body); code != tt.code {
				t.Errorf("code = %d, want %d (%v)", code, tt.code, body)
			}
		})
	}
	if len(f.control.updates) != 2 || *f.control.updates[0].FinnhubKey != "abc" {
		t.Errorf("updates = %+v", f.control.updates)
	}
}
