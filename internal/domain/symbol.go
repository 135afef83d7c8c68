package domain

import "strings"

// AssetClass groups registry symbols by market
type AssetClass string

const (
	AssetCrypto    AssetClass = "crypto"
	AssetForex     AssetClass = "forex"
	AssetCommodity AssetClass = "commodity"
	AssetStock     AssetClass = "stock"
)

// DefaultSymbol is focused when nothing else has been selected
const DefaultSymbol = "AAPL"

// SymbolDescriptor describes one tradable instrument
type SymbolDescriptor struct {
	Symbol  string     `json:"symbol"`  // Provider symbol (e.g., "BINANCE:BTCUSDT")
	Display string     `json:"display"` // Short label (e.g., "BTC")
	Name    string     `json:"name"`
	Class   AssetClass `json:"type"`
}

var registry = []SymbolDescriptor{
	{Symbol: "BINANCE:BTCUSDT", Display: "BTC", Name: "Bitcoin", Class: AssetCrypto},
	{Symbol: "BINANCE:ETHUSDT", Display: "ETH", Name: "Ethereum", Class: AssetCrypto},
	{Symbol: "BINANCE:SOLUSDT", Display: "SOL", Name: "Solana", Class: AssetCrypto},
	{Symbol: "OANDA:XAU_USD", Display: "GOLD", Name: "Gold/USD", Class: AssetCommodity},
	{Symbol: "OANDA:EUR_USD", Display: "EUR", Name: "Euro/USD", Class: AssetForex},
	{Symbol: "OANDA:USD_JPY", Display: "JPY", Name: "USD/JPY", Class: AssetForex},
	{Symbol: "NVDA", Display: "NVDA", Name: "NVIDIA", Class: AssetStock},
	{Symbol: "GOOGL", Display: "GOOGL", Name: "Alphabet", Class: AssetStock},
	{Symbol: "AMZN", Display: "AMZN", Name: "Amazon", Class: AssetStock},
	{Symbol: "AAPL", Display: "AAPL", Name: "Apple", Class: AssetStock},
	{Symbol: "TSLA", Display: "TSLA", Name: "Tesla", Class: AssetStock},
}

// Registry returns a copy of the fixed symbol registry in polling order
func Registry() []SymbolDescriptor {
	out := make([]SymbolDescriptor, len(registry))
	copy(out, registry)
	return out
}

// RegistrySymbols returns the provider symbols in polling order
func RegistrySymbols() []string {
	out := make([]string, len(registry))
	for i, d := range registry {
		out[i] = d.Symbol
	}
	return out
}

// LookupSymbol finds a descriptor by provider symbol
func LookupSymbol(symbol string) (SymbolDescriptor, bool) {
	for _, d := range registry {
		if d.Symbol == symbol {
			return d, true
		}
	}
	return SymbolDescriptor{}, false
}

// SearchSymbols matches query against symbol, display label and name, case-insensitively.
// At most limit results are returned; limit <= 0 means no limit.
func SearchSymbols(query string, limit int) []SymbolDescriptor {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}
	var out []SymbolDescriptor
	for _, d := range registry {
		if strings.Contains(strings.ToLower(d.Symbol), q) ||
			strings.Contains(strings.ToLower(d.Display), q) ||
			strings.Contains(strings.ToLower(d.Name), q) {
			out = append(out, d)
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out
}
