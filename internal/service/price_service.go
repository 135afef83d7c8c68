package service

import (
	"sort"
	"sync"
	"time"

	"exchange_pro/internal/domain"
)

// PriceService is the fan-out target of the poller. For every delivered quote it
// updates the overview table, evaluates alerts, and refreshes the focused view.
type PriceService struct {
	mu         sync.RWMutex // Used only for external reads (e.g. HTTP handlers)
	lastSeen   map[string]domain.LastSeen
	focused    string
	projection *domain.Projection

	alerts domain.AlertChecker
	chart  domain.BarExtender
	now    func() time.Time
}

// NewPriceService creates a PriceService focused on focus. Either collaborator may be nil.
func NewPriceService(focus string, alerts domain.AlertChecker, chart domain.BarExtender) *PriceService {
	return &PriceService{
		lastSeen: make(map[string]domain.LastSeen),
		focused:  focus,
		alerts:   alerts,
		chart:    chart,
		now:      time.Now,
	}
}

// OnQuote applies one quote. Steps run in a fixed order:
// overview table, then alerts, then (focused symbol only) projection and last-bar extension.
func (s *PriceService) OnQuote(symbol string, q domain.Quote) {
	if !q.Valid() {
		return
	}
	at := s.now()

	s.mu.Lock()
	s.lastSeen[symbol] = domain.LastSeen{
		Symbol:        symbol,
		Price:         q.Current,
		PercentChange: q.PercentChange,
		UpdatedAt:     at,
	}
	focused := s.focused == symbol
	s.mu.Unlock()

	if s.alerts != nil {
		s.alerts.CheckAlerts(symbol, q.Current)
	}

	if !focused {
		return
	}

	p := domain.NewProjection(symbol, q, at)
	s.mu.Lock()
	// Focus may have moved while alerts ran.
	if s.focused != symbol {
		s.mu.Unlock()
		return
	}
	s.projection = &p
	s.mu.Unlock()

	if s.chart != nil {
		s.chart.ExtendLastBarOf(symbol, q.Current, q.Current, q.Current)
	}
}

// SetFocus makes symbol the focused one and clears the previous projection
func (s *PriceService) SetFocus(symbol string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.focused == symbol {
		return
	}
	s.focused = symbol
	s.projection = nil
}

// SetProjection installs a projection computed outside the poll, e.g. on focus change
func (s *PriceService) SetProjection(symbol string, q domain.Quote) {
	if !q.Valid() {
		return
	}
	p := domain.NewProjection(symbol, q, s.now())

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.focused == symbol {
		s.projection = &p
	}
}

// Focused returns the focused symbol
func (s *PriceService) Focused() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.focused
}

// Projection returns the focused-symbol view, if a quote has arrived for it
func (s *PriceService) Projection() (domain.Projection, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.projection == nil {
		return domain.Projection{}, false
	}
	return *s.projection, true
}

// LastSeen returns the overview entry for symbol
func (s *PriceService) LastSeen(symbol string) (domain.LastSeen, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ls, ok := s.lastSeen[symbol]
	return ls, ok
}

// Snapshot returns every overview entry, registry symbols first in registry order,
// then any others sorted by symbol.
func (s *PriceService) Snapshot() []domain.LastSeen {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.LastSeen, 0, len(s.lastSeen))
	seen := make(map[string]bool, len(s.lastSeen))
	for _, sym := range domain.RegistrySymbols() {
		if ls, ok := s.lastSeen[sym]; ok {
			result = append(result, ls)
			seen[sym] = true
		}
	}

	var extra []domain.LastSeen
	for sym, ls := range s.lastSeen {
		if !seen[sym] {
			extra = append(extra, ls)
		}
	}
	// Sort by symbol for consistent ordering
	sort.Slice(extra, func(i, j int) bool {
		return extra[i].Symbol < extra[j].Symbol
	})

	return append(result, extra...)
}
