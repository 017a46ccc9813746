package model

import (
	"fmt"
	"time"

	"telegram-virtual-number/internal/domain"
)

// OrderStatus mirrors the vendor status codes (1..6).
type OrderStatus int

const (
	OrderStatusWaitingCode      OrderStatus = 1
	OrderStatusCodeReceived     OrderStatus = 2
	OrderStatusCanceled         OrderStatus = 3
	OrderStatusBanned           OrderStatus = 4
	OrderStatusWaitingCodeAgain OrderStatus = 5
	OrderStatusCompleted        OrderStatus = 6
)

var orderStatusNames = map[OrderStatus]string{
	OrderStatusWaitingCode:      "waiting_code",
	OrderStatusCodeReceived:     "code_received",
	OrderStatusCanceled:         "canceled",
	OrderStatusBanned:           "banned",
	OrderStatusWaitingCodeAgain: "waiting_code_again",
	OrderStatusCompleted:        "completed",
}

func (s OrderStatus) String() string {
	if n, ok := orderStatusNames[s]; ok {
		return n
	}
	return fmt.Sprintf("status(%d)", int(s))
}

func (s OrderStatus) Valid() bool {
	_, ok := orderStatusNames[s]
	return ok
}

// IsTerminal reports whether no further transition is allowed.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCanceled || s == OrderStatusBanned || s == OrderStatusCompleted
}

// allowedTransitions lists the forward-only edges of the order state machine.
// code_received is not terminal: a repeat moves it back to waiting_code_again.
var allowedTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusWaitingCode: {
		OrderStatusCodeReceived, OrderStatusCanceled, OrderStatusBanned,
		OrderStatusWaitingCodeAgain, OrderStatusCompleted,
	},
	OrderStatusWaitingCodeAgain: {
		OrderStatusCodeReceived, OrderStatusCanceled, OrderStatusBanned, OrderStatusCompleted,
	},
	OrderStatusCodeReceived: {
		OrderStatusWaitingCodeAgain, OrderStatusCanceled, OrderStatusBanned, OrderStatusCompleted,
	},
}

// CanTransition reports whether from -> to is a legal edge. Staying in the same
// non-terminal state is allowed (a poll that sees no change).
func CanTransition(from, to OrderStatus) bool {
	if from.IsTerminal() {
		return false
	}
	if from == to {
		return true
	}
	for _, s := range allowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Order is a purchased virtual number.
type Order struct {
	ID             string        `json:"id"`
	Provider       string        `json:"provider"`
	UserID         int64         `json:"user_id"`
	ServiceID      string        `json:"service_id,omitempty"`
	CountryID      string        `json:"country_id,omitempty"`
	Operator       string        `json:"operator,omitempty"`
	PhoneNumber    string        `json:"number"`
	BaseAmount     int64         `json:"base_amount"`
	SellPrice      int64         `json:"sell_price"`
	ValidityWindow time.Duration `json:"validity_window"`
	RepeatCapable  bool          `json:"repeat"`
	CreatedAt      time.Time     `json:"created_at"`
	ExpiresAt      time.Time     `json:"expires_at"`
	Status         OrderStatus   `json:"status"`
	LastCode       string        `json:"code,omitempty"`
}

// NewOrder builds an order in waiting_code from a vendor purchase.
func NewOrder(userID int64, provider string, p Purchase, q PricedQuote, now time.Time) (*Order, error) {
	if p.ID == "" || provider == "" {
		return nil, domain.ErrInvalidArgument
	}
	window := p.ValidityWindow
	if window <= 0 {
		window = DefaultValidityWindow
	}
	return &Order{
		ID:             p.ID,
		Provider:       provider,
		UserID:         userID,
		ServiceID:      q.ServiceID,
		CountryID:      q.CountryID,
		Operator:       q.Operator,
		PhoneNumber:    p.PhoneNumber,
		BaseAmount:     q.BaseAmount,
		SellPrice:      q.SellPrice,
		ValidityWindow: window,
		RepeatCapable:  p.RepeatCapable,
		CreatedAt:      now,
		ExpiresAt:      now.Add(window),
		Status:         OrderStatusWaitingCode,
	}, nil
}

// Key identifies the order across vendors: "{provider}:{id}".
func (o *Order) Key() string { return OrderKey(o.Provider, o.ID) }

func OrderKey(provider, id string) string { return provider + ":" + id }

// Apply moves the order to status, recording code when present.
func (o *Order) Apply(status OrderStatus, code string) error {
	if !CanTransition(o.Status, status) {
		return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, o.Status, status)
	}
	o.Status = status
	if code != "" {
		o.LastCode = code
	}
	return nil
}

// Remaining is the time left in the validity window, never negative.
func (o *Order) Remaining(now time.Time) time.Duration {
	if d := o.ExpiresAt.Sub(now); d > 0 {
		return d
	}
	return 0
}
