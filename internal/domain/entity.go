package domain

import (
	"time"
)

// WatchlistItem is one persisted watchlist entry; Position keeps insertion order
type WatchlistItem struct {
	Symbol    string    `gorm:"primaryKey" json:"symbol"`
	Position  int       `gorm:"index" json:"position"`
	CreatedAt time.Time `json:"created_at"`
}

// SymbolAsset holds metadata synced for a registry symbol
type SymbolAsset struct {
	Symbol       string    `gorm:"primaryKey" json:"symbol"`
	Name         string    `json:"name"`
	MarketCap    float64   `json:"market_cap"`
	LogoPath     string    `json:"logo_path"`
	LastSyncedAt time.Time `json:"last_synced_at"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// AppConfig represents user-specific configuration (Key-Value)
type AppConfig struct {
	Key       string    `gorm:"primaryKey" json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Setting keys persisted in AppConfig
const (
	SettingFinnhubKey      = "finnhub_key"
	SettingCouncilURL      = "council_url"
	SettingRefreshInterval = "refresh_interval_ms"
)

// DefaultWatchlist seeds the watchlist on first run
var DefaultWatchlist = []string{"AAPL", "NVDA", "BINANCE:BTCUSDT"}

// SettingsUpdate is a partial change to the user settings; nil fields are left as they are
type SettingsUpdate struct {
	FinnhubKey        *string `json:"finnhub_key,omitempty"`
	CouncilURL        *string `json:"council_url,omitempty"`
	RefreshIntervalMS *int    `json:"refresh_interval_ms,omitempty"`
}

// Empty reports whether the update changes nothing
func (u SettingsUpdate) Empty() bool {
	return u.FinnhubKey == nil && u.CouncilURL == nil && u.RefreshIntervalMS == nil
}
