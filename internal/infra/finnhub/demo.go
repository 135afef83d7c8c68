package finnhub

import (
	"github.com/shopspring/decimal"

	"exchange_pro/internal/domain"
)

// DefaultCandleCount is the number of synthetic bars generated per series
const DefaultCandleCount = 100

// defaultCandleBase seeds synthetic series for symbols with no baseline quote
var defaultCandleBase = decimal.NewFromInt(150)

func q(c, pc, o, h, l, dp string) domain.Quote {
	return domain.Quote{
		Current:       decimal.RequireFromString(c),
		PreviousClose: decimal.RequireFromString(pc),
		Open:          decimal.RequireFromString(o),
		High:          decimal.RequireFromString(h),
		Low:           decimal.RequireFromString(l),
		PercentChange: decimal.RequireFromString(dp),
	}
}

var demoQuotes = map[string]domain.Quote{
	"BINANCE:BTCUSDT": q("42500", "42000", "42100", "43000", "41800", "1.19"),
	"BINANCE:ETHUSDT": q("2250", "2200", "2210", "2280", "2180", "2.27"),
	"BINANCE:SOLUSDT": q("98.5", "96", "96.5", "100", "95", "2.60"),
	"OANDA:XAU_USD":   q("2045", "2038", "2040", "2050", "2035", "0.34"),
	"OANDA:EUR_USD":   q("1.0865", "1.0850", "1.0855", "1.0880", "1.0840", "0.14"),
	"OANDA:USD_JPY":   q("148.25", "147.80", "147.90", "148.50", "147.60", "0.30"),
	"NVDA":            q("495", "488", "490", "500", "485", "1.43"),
	"GOOGL":           q("140.25", "138.50", "139", "141", "138", "1.26"),
	"AMZN":            q("178.25", "175", "176", "180", "174.50", "1.86"),
	"AAPL":            q("178.50", "175.20", "176", "180", "175.50", "1.88"),
	"TSLA":            q("248.50", "242", "244", "252", "241", "2.69"),
}

var demoProfiles = map[string]domain.Profile{
	"NVDA":  {Name: "NVIDIA Corporation", MarketCapitalization: 1220000},
	"GOOGL": {Name: "Alphabet Inc.", MarketCapitalization: 1750000},
	"AMZN":  {Name: "Amazon.com Inc.", MarketCapitalization: 1560000},
	"AAPL":  {Name: "Apple Inc.", MarketCapitalization: 2800000},
	"TSLA":  {Name: "Tesla Inc.", MarketCapitalization: 787000},
}

// demoBaseline returns the fixed baseline quote for symbol
func demoBaseline(symbol string) (domain.Quote, bool) {
	b, ok := demoQuotes[symbol]
	return b, ok
}

// jitterQuote scales the current price by 1 + (r-0.5)*0.002, keeping it within ±0.1% of baseline
func jitterQuote(b domain.Quote, r float64) domain.Quote {
	factor := decimal.NewFromFloat(1 + (r-0.5)*0.002)
	out := b
	out.Current = b.Current.Mul(factor).Round(6)
	return out
}

func demoProfile(symbol string) domain.Profile {
	if p, ok := demoProfiles[symbol]; ok {
		return p
	}
	return domain.Profile{Name: symbol}
}

// resolutionStep maps a candle resolution to bar spacing in seconds
func resolutionStep(resolution string) int64 {
	switch resolution {
	case "1":
		return 60
	case "5":
		return 5 * 60
	case "15":
		return 15 * 60
	case "30":
		return 30 * 60
	case "60":
		return 3600
	case "D":
		return 86400
	case "W":
		return 7 * 86400
	case "M":
		return 30 * 86400
	default:
		return 3600
	}
}

// syntheticCandles builds a random walk of count bars ending at now.
// Closes never drop below half the base; wicks extend at most 1% of base beyond the body.
func syntheticCandles(base decimal.Decimal, count int, step, now int64, rnd func() float64) domain.CandleSeries {
	if count <= 0 {
		return nil
	}
	var (
		floor = base.Mul(decimal.NewFromFloat(0.5))
		price = base
		out   = make(domain.CandleSeries, 0, count)
	)
	for i := count - 1; i >= 0; i-- {
		change := base.Mul(decimal.NewFromFloat((rnd() - 0.48) * 0.02)).Round(6)
		open := price
		price = decimal.Max(floor, price.Add(change))
		closePrice := price

		upper := base.Mul(decimal.NewFromFloat(rnd() * 0.01)).Round(6)
		lower := base.Mul(decimal.NewFromFloat(rnd() * 0.01)).Round(6)

		out = append(out, domain.Candle{
			Time:   now - int64(i)*step,
			Open:   open,
			High:   decimal.Max(open, closePrice).Add(upper),
			Low:    decimal.Min(open, closePrice).Sub(lower),
			Close:  closePrice,
			Volume: int64(1e6 + rnd()*5e6),
		})
	}
	return out
}
