package service

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/shopspring/decimal"

	"exchange_pro/internal/domain"
	"exchange_pro/internal/infra"
)

// AlertStore persists alerts
type AlertStore interface {
	SaveAlert(alert *domain.Alert) error
	ListAlerts() ([]domain.Alert, error)
	DeleteAlert(id string) error
}

// AlertService keeps price alerts in memory and writes every mutation through to the store
type AlertService struct {
	store   AlertStore
	metrics *infra.Metrics
	logger  *slog.Logger

	mu        sync.Mutex
	alerts    []*domain.Alert
	onTrigger func(domain.Alert, decimal.Decimal)
}

// NewAlertService loads persisted alerts from store
func NewAlertService(store AlertStore, metrics *infra.Metrics) (*AlertService, error) {
	if metrics == nil {
		metrics = infra.GlobalMetrics
	}
	saved, err := store.ListAlerts()
	if err != nil {
		return nil, fmt.Errorf("load alerts: %w", err)
	}

	alerts := make([]*domain.Alert, len(saved))
	for i := range saved {
		alerts[i] = &saved[i]
	}

	return &AlertService{
		store:   store,
		metrics: metrics,
		logger:  slog.Default().With(slog.String("module", "alerts")),
		alerts:  alerts,
	}, nil
}

// OnTrigger registers fn to be called with each fired alert and the price that fired it
func (s *AlertService) OnTrigger(fn func(domain.Alert, decimal.Decimal)) {
	s.mu.Lock()
	s.onTrigger = fn
	s.mu.Unlock()
}

// Add creates and persists an alert on a registry symbol
func (s *AlertService) Add(symbol string, condition domain.AlertCondition, price decimal.Decimal) (domain.Alert, error) {
	if _, ok := domain.LookupSymbol(symbol); !ok {
		return domain.Alert{}, fmt.Errorf("%w: %s", domain.ErrUnknownSymbol, symbol)
	}
	alert, err := domain.NewAlert(symbol, condition, price)
	if err != nil {
		return domain.Alert{}, err
	}
	if err := s.store.SaveAlert(alert); err != nil {
		return domain.Alert{}, fmt.Errorf("save alert: %w", err)
	}

	s.mu.Lock()
	s.alerts = append(s.alerts, alert)
	s.mu.Unlock()

	s.logger.Info("Alert created",
		slog.String("symbol", symbol),
		slog.String("condition", string(condition)),
		slog.String("price", price.String()),
	)
	return *alert, nil
}

// Remove deletes an alert by ID
func (s *AlertService) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, a := range s.alerts {
		if a.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return domain.ErrAlertNotFound
	}
	if err := s.store.DeleteAlert(id); err != nil {
		return fmt.Errorf("delete alert: %w", err)
	}
	s.alerts = append(s.alerts[:idx], s.alerts[idx+1:]...)
	return nil
}

// List returns copies of all alerts in creation order
func (s *AlertService) List() []domain.Alert {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]domain.Alert, len(s.alerts))
	for i, a := range s.alerts {
		out[i] = *a
	}
	return out
}

// CheckAlerts fires every untriggered alert on symbol whose condition holds at price.
// A fired alert is persisted immediately and never fires again.
func (s *AlertService) CheckAlerts(symbol string, price decimal.Decimal) {
	s.mu.Lock()
	var fired []domain.Alert
	for _, a := range s.alerts {
		if a.Symbol != symbol || !a.CheckCondition(price) {
			continue
		}
		if !a.Trigger() {
			continue
		}
		if err := s.store.SaveAlert(a); err != nil {
			s.logger.Error("Failed to persist triggered alert", slog.String("id", a.ID), slog.Any("error", err))
		}
		fired = append(fired, *a)
	}
	notify := s.onTrigger
	s.mu.Unlock()

	for _, a := range fired {
		s.metrics.IncrementAlertsTriggered()
		s.logger.Info("🔔 Price alert triggered",
			slog.String("symbol", a.Symbol),
			slog.String("condition", string(a.Condition)),
			slog.String("threshold", a.Threshold.String()),
			slog.String("price", price.String()),
		)
		if notify != nil {
			notify(a, price)
		}
	}
}
