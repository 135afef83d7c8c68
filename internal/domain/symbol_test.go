package domain

import "testing"

func TestRegistryOrder(t *testing.T) {
	symbols := RegistrySymbols()
	if len(symbols) != 11 {
		t.Fatalf("registry size = %d, want 11", len(symbols))
	}
	if symbols[0] != "BINANCE:BTCUSDT" || symbols[len(symbols)-1] != "TSLA" {
		t.Errorf("unexpected order: first=%s last=%s", symbols[0], symbols[len(symbols)-1])
	}
}

func TestRegistryIsCopy(t *testing.T) {
	r := Registry()
	r[0].Symbol = "MUTATED"
	if d, _ := LookupSymbol("BINANCE:BTCUSDT"); d.Display != "BTC" {
		t.Error("mutating the returned slice must not affect the registry")
	}
}

func TestLookupSymbol(t *testing.T) {
	d, ok := LookupSymbol("OANDA:XAU_USD")
	if !ok {
		t.Fatal("gold should be registered")
	}
	if d.Class != AssetCommodity || d.Display != "GOLD" {
		t.Errorf("got %+v", d)
	}
	if _, ok := LookupSymbol("MSFT"); ok {
		t.Error("MSFT is not registered")
	}
}

func TestSearchSymbols(t *testing.T) {
	tests := []struct {
		name  string
		query string
		limit int
		want  int
	}{
		{"by display", "btc", 0, 1},
		{"by name", "apple", 0, 1},
		{"by provider prefix", "binance", 0, 3},
		{"limit applies", "a", 2, 2},
		{"blank query", "   ", 0, 0},
		{"no match", "zzz", 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SearchSymbols(tt.query, tt.limit)
			if len(got) != tt.want {
				t.Errorf("SearchSymbols(%q) returned %d results, want %d", tt.query, len(got), tt.want)
			}
		})
	}
}
