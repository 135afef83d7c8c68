package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// QuoteSource supplies one quote per call; false means nothing usable was produced
type QuoteSource interface {
	FetchQuote(ctx context.Context, symbol string) (Quote, bool)
}

// CandleSource supplies a bar series for a symbol
type CandleSource interface {
	FetchCandles(ctx context.Context, symbol, resolution string, from, to int64) CandleSeries
}

// ProfileSource supplies company metadata
type ProfileSource interface {
	FetchProfile(ctx context.Context, symbol string) Profile
}

// NewsSource supplies market headlines
type NewsSource interface {
	FetchNews(ctx context.Context, category string) ([]NewsItem, bool)
}

// QuoteHandler receives every valid quote of a polling pass, in pass order
type QuoteHandler func(symbol string, q Quote)

// AlertChecker evaluates price alerts for a symbol
type AlertChecker interface {
	CheckAlerts(symbol string, price decimal.Decimal)
}

// BarExtender folds a price into the most recent chart bar when the chart
// currently shows symbol. It reports whether a bar was changed.
type BarExtender interface {
	ExtendLastBarOf(symbol string, high, low, close decimal.Decimal) bool
}

// Worker is a long-lived connection to a remote service
type Worker interface {
	Connect(ctx context.Context) error
	Disconnect()
	IsConnected() bool
}
