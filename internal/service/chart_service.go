package service

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"exchange_pro/internal/domain"
	"exchange_pro/internal/indicator"
)

// Timeframe maps a chart range to the provider resolution fetched for it
type Timeframe struct {
	Name       string        `json:"name"`
	Span       time.Duration `json:"span"`
	Resolution string        `json:"resolution"`
}

// DefaultTimeframe is used for unknown timeframe names
const DefaultTimeframe = "1W"

var timeframes = map[string]Timeframe{
	"1D": {Name: "1D", Span: 24 * time.Hour, Resolution: "5"},
	"1W": {Name: "1W", Span: 7 * 24 * time.Hour, Resolution: "15"},
	"1M": {Name: "1M", Span: 30 * 24 * time.Hour, Resolution: "60"},
	"3M": {Name: "3M", Span: 90 * 24 * time.Hour, Resolution: "D"},
	"1Y": {Name: "1Y", Span: 365 * 24 * time.Hour, Resolution: "D"},
	"5Y": {Name: "5Y", Span: 5 * 365 * 24 * time.Hour, Resolution: "W"},
}

// LookupTimeframe resolves name, falling back to DefaultTimeframe
func LookupTimeframe(name string) Timeframe {
	if tf, ok := timeframes[name]; ok {
		return tf
	}
	return timeframes[DefaultTimeframe]
}

// ChartService holds the candle series shown for the focused symbol
type ChartService struct {
	source domain.CandleSource
	now    func() time.Time

	mu        sync.RWMutex
	symbol    string
	timeframe Timeframe
	bars      domain.CandleSeries
}

// NewChartService creates an empty chart backed by source
func NewChartService(source domain.CandleSource) *ChartService {
	return &ChartService{
		source:    source,
		now:       time.Now,
		timeframe: timeframes[DefaultTimeframe],
	}
}

// LoadChart fetches and installs the series for symbol over timeframe
func (c *ChartService) LoadChart(ctx context.Context, symbol, timeframe string) domain.CandleSeries {
	tf := LookupTimeframe(timeframe)
	to := c.now()
	from := to.Add(-tf.Span)

	bars := c.source.FetchCandles(ctx, symbol, tf.Resolution, from.Unix(), to.Unix())

	c.mu.Lock()
	c.symbol = symbol
	c.timeframe = tf
	c.bars = bars
	c.mu.Unlock()

	return c.Bars()
}

// SetBars replaces the series
func (c *ChartService) SetBars(symbol string, bars domain.CandleSeries) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.symbol = symbol
	c.bars = append(domain.CandleSeries(nil), bars...)
}

// Bars returns a copy of the series
func (c *ChartService) Bars() domain.CandleSeries {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append(domain.CandleSeries(nil), c.bars...)
}

// Symbol returns the symbol the series belongs to
func (c *ChartService) Symbol() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.symbol
}

// Timeframe returns the loaded timeframe
func (c *ChartService) Timeframe() Timeframe {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.timeframe
}

// LastBar returns the most recent bar
func (c *ChartService) LastBar() (domain.Candle, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.bars) == 0 {
		return domain.Candle{}, false
	}
	return c.bars[len(c.bars)-1], true
}

// ExtendLastBar widens the last bar to include high and low and replaces its close.
// Time and open are kept and no bar is appended. No-op on an empty series.
func (c *ChartService) ExtendLastBar(high, low, close decimal.Decimal) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.bars) == 0 {
		return
	}
	c.extendLocked(high, low, close)
}

func (c *ChartService) extendLocked(high, low, close decimal.Decimal) {
	last := &c.bars[len(c.bars)-1]
	last.High = decimal.Max(last.High, high)
	last.Low = decimal.Min(last.Low, low)
	last.Close = close
}

// ExtendLastBarOf extends the last bar only while the series belongs to symbol.
// The symbol check and the update happen under one lock, so a quote for one
// symbol can never land in another symbol's bars.
func (c *ChartService) ExtendLastBarOf(symbol string, high, low, close decimal.Decimal) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.symbol != symbol || len(c.bars) == 0 {
		return false
	}
	c.extendLocked(high, low, close)
	return true
}

// Overlay returns the simple moving average of closes over period bars
func (c *ChartService) Overlay(period int) []indicator.Point {
	return indicator.SMA(c.Bars(), period)
}
