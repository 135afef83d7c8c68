package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Quote is a point-in-time price snapshot for one symbol
type Quote struct {
	Current       decimal.Decimal `json:"c"`
	PreviousClose decimal.Decimal `json:"pc"`
	Open          decimal.Decimal `json:"o"`
	High          decimal.Decimal `json:"h"`
	Low           decimal.Decimal `json:"l"`
	PercentChange decimal.Decimal `json:"dp"`
}

// Valid reports whether the quote carries a usable price
func (q Quote) Valid() bool {
	return !q.Current.IsZero()
}

// Projection is the focused-symbol view derived from a quote
type Projection struct {
	Symbol    string          `json:"symbol"`
	Price     decimal.Decimal `json:"price"`
	Change    decimal.Decimal `json:"change"`
	ChangePct decimal.Decimal `json:"change_pct"`
	Open      decimal.Decimal `json:"open"`
	High      decimal.Decimal `json:"high"`
	Low       decimal.Decimal `json:"low"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// NewProjection computes change against the previous close.
// A zero previous close falls back to the current price so the change is zero.
func NewProjection(symbol string, q Quote, at time.Time) Projection {
	prev := q.PreviousClose
	if prev.IsZero() {
		prev = q.Current
	}
	change := q.Current.Sub(prev)
	pct := decimal.Zero
	if !prev.IsZero() {
		pct = change.Div(prev).Mul(hundred)
	}
	return Projection{
		Symbol:    symbol,
		Price:     q.Current,
		Change:    change,
		ChangePct: pct,
		Open:      q.Open,
		High:      q.High,
		Low:       q.Low,
		UpdatedAt: at,
	}
}

// LastSeen is the per-symbol entry of the market overview table
type LastSeen struct {
	Symbol        string          `json:"symbol"`
	Price         decimal.Decimal `json:"price"`
	PercentChange decimal.Decimal `json:"percent_change"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Candle is one OHLCV bar; Time is the bar open in unix seconds
type Candle struct {
	Time   int64           `json:"time"`
	Open   decimal.Decimal `json:"open"`
	High   decimal.Decimal `json:"high"`
	Low    decimal.Decimal `json:"low"`
	Close  decimal.Decimal `json:"close"`
	Volume int64           `json:"volume"`
}

// CandleSeries is ordered by strictly increasing Time
type CandleSeries []Candle

// Profile is company metadata for a symbol
type Profile struct {
	Name                 string  `json:"name"`
	MarketCapitalization float64 `json:"marketCapitalization"`
	Logo                 string  `json:"logo"`
}

// Sentiment classifies a headline
type Sentiment string

const (
	SentimentBullish Sentiment = "bullish"
	SentimentBearish Sentiment = "bearish"
	SentimentNeutral Sentiment = "neutral"
)

// NewsItem is a market headline
type NewsItem struct {
	Headline  string    `json:"headline"`
	Source    string    `json:"source"`
	URL       string    `json:"url"`
	Datetime  int64     `json:"datetime"`
	Sentiment Sentiment `json:"sentiment,omitempty"`
}
