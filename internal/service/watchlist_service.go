package service

import (
	"fmt"
	"slices"
	"sync"

	"exchange_pro/internal/domain"
)

// WatchlistStore persists the watchlist
type WatchlistStore interface {
	SeedWatchlist(defaults []string) error
	WatchlistSymbols() ([]string, error)
	AddWatchlist(symbol string) (bool, error)
	RemoveWatchlist(symbol string) (bool, error)
}

// WatchlistService is the ordered, persisted list of symbols the user follows
type WatchlistService struct {
	store WatchlistStore

	mu    sync.RWMutex
	items []string
}

// NewWatchlistService seeds defaults on first run and loads the list
func NewWatchlistService(store WatchlistStore) (*WatchlistService, error) {
	if err := store.SeedWatchlist(domain.DefaultWatchlist); err != nil {
		return nil, fmt.Errorf("seed watchlist: %w", err)
	}
	items, err := store.WatchlistSymbols()
	if err != nil {
		return nil, fmt.Errorf("load watchlist: %w", err)
	}
	return &WatchlistService{store: store, items: items}, nil
}

// Add appends a registry symbol; false means it was already listed
func (w *WatchlistService) Add(symbol string) (bool, error) {
	if _, ok := domain.LookupSymbol(symbol); !ok {
		return false, fmt.Errorf("%w: %s", domain.ErrUnknownSymbol, symbol)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if slices.Contains(w.items, symbol) {
		return false, nil
	}
	added, err := w.store.AddWatchlist(symbol)
	if err != nil {
		return false, err
	}
	if added {
		w.items = append(w.items, symbol)
	}
	return added, nil
}

// Remove drops symbol; false means it was not listed
func (w *WatchlistService) Remove(symbol string) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	idx := slices.Index(w.items, symbol)
	if idx < 0 {
		return false, nil
	}
	if _, err := w.store.RemoveWatchlist(symbol); err != nil {
		return false, err
	}
	w.items = slices.Delete(w.items, idx, idx+1)
	return true, nil
}

// Has reports whether symbol is listed
func (w *WatchlistService) Has(symbol string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return slices.Contains(w.items, symbol)
}

// Items returns the list in insertion order
func (w *WatchlistService) Items() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return slices.Clone(w.items)
}
