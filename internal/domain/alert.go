package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AlertCondition is the side of the threshold that fires an alert
type AlertCondition string

const (
	ConditionAbove AlertCondition = "above"
	ConditionBelow AlertCondition = "below"
)

// ParseAlertCondition accepts "above"/"below" in any case
func ParseAlertCondition(s string) (AlertCondition, error) {
	switch AlertCondition(strings.ToLower(strings.TrimSpace(s))) {
	case ConditionAbove:
		return ConditionAbove, nil
	case ConditionBelow:
		return ConditionBelow, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidCondition, s)
	}
}

// Alert is a one-shot price threshold on a symbol.
// Triggered only ever moves from false to true.
type Alert struct {
	ID        string          `gorm:"primaryKey" json:"id"`
	Symbol    string          `gorm:"index" json:"symbol"`
	Condition AlertCondition  `json:"condition"`
	Threshold decimal.Decimal `gorm:"type:text" json:"price"`
	Triggered bool            `json:"triggered"`
	CreatedAt time.Time       `json:"created_at"`
}

// NewAlert creates an untriggered alert with a fresh ID
func NewAlert(symbol string, condition AlertCondition, threshold decimal.Decimal) (*Alert, error) {
	if symbol == "" {
		return nil, ErrUnknownSymbol
	}
	if condition != ConditionAbove && condition != ConditionBelow {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCondition, condition)
	}
	return &Alert{
		ID:        uuid.NewString(),
		Symbol:    symbol,
		Condition: condition,
		Threshold: threshold,
		CreatedAt: time.Now(),
	}, nil
}

// CheckCondition checks if the alert should fire at price.
// Returns true when:
// - Condition is above and price >= threshold
// - Condition is below and price <= threshold
// Triggered alerts never match again.
func (a *Alert) CheckCondition(price decimal.Decimal) bool {
	if a.Triggered {
		return false
	}
	switch a.Condition {
	case ConditionAbove:
		return price.GreaterThanOrEqual(a.Threshold)
	case ConditionBelow:
		return price.LessThanOrEqual(a.Threshold)
	default:
		return false
	}
}

// Trigger marks the alert fired and reports whether the state changed
func (a *Alert) Trigger() bool {
	if a.Triggered {
		return false
	}
	a.Triggered = true
	return true
}
