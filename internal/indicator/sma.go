package indicator

import (
	"github.com/shopspring/decimal"

	"exchange_pro/internal/domain"
)

// Point is one value of an overlay series, aligned to a bar time
type Point struct {
	Time  int64           `json:"time"`
	Value decimal.Decimal `json:"value"`
}

// MovingAverage is a simple moving average over the last period values.
// It keeps a ring buffer and a running sum, so each Push is O(1).
type MovingAverage struct {
	period int

	// State (Ring Buffer)
	values []decimal.Decimal
	head   int // Current write position
	count  int // Number of elements filled
	sum    decimal.Decimal
}

// NewMovingAverage creates an average over period values.
func NewMovingAverage(period int) *MovingAverage {
	if period <= 0 {
		panic("MovingAverage: period must be positive")
	}
	return &MovingAverage{
		period: period,
		values: make([]decimal.Decimal, period), // Fixed size allocation
	}
}

// Push adds a value and returns the current average once the window is full.
func (m *MovingAverage) Push(v decimal.Decimal) (decimal.Decimal, bool) {
	// If full, head points to the oldest value; drop it from the sum before overwriting
	if m.count == m.period {
		m.sum = m.sum.Sub(m.values[m.head])
	}

	m.values[m.head] = v
	m.sum = m.sum.Add(v)
	m.head = (m.head + 1) % m.period

	if m.count < m.period {
		m.count++
	}
	if m.count < m.period {
		return decimal.Zero, false
	}
	return m.sum.Div(decimal.NewFromInt(int64(m.period))), true
}

// Ready reports whether enough values have been pushed
func (m *MovingAverage) Ready() bool {
	return m.count == m.period
}

// SMA computes the simple moving average of closes. The first period-1 bars have no point.
func SMA(series domain.CandleSeries, period int) []Point {
	if period <= 0 || len(series) < period {
		return nil
	}
	ma := NewMovingAverage(period)
	out := make([]Point, 0, len(series)-period+1)
	for _, c := range series {
		if v, ok := ma.Push(c.Close); ok {
			out = append(out, Point{Time: c.Time, Value: v})
		}
	}
	return out
}
