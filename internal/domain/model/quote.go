package model

import "time"

// DefaultValidityWindow is used whenever a vendor omits or garbles the window.
const DefaultValidityWindow = 20 * time.Minute

// Quote is a vendor's wholesale price and availability for a
// service+country+operator combination.
type Quote struct {
	BaseAmount     int64
	Available      int
	RepeatCapable  bool
	ValidityWindow time.Duration
}

// ZeroQuote is returned when the vendor has no usable entry.
func ZeroQuote() Quote {
	return Quote{ValidityWindow: DefaultValidityWindow}
}

func (q Quote) IsZero() bool { return q.BaseAmount == 0 && q.Available == 0 }

// PricedQuote is a quote with the sell price applied.
type PricedQuote struct {
	Quote
	Provider  string
	ServiceID string
	CountryID string
	Operator  string
	SellPrice int64
}

// Purchase is the normalized result of a successful buy call.
type Purchase struct {
	ID             string
	PhoneNumber    string
	Amount         int64
	RepeatCapable  bool
	ValidityWindow time.Duration
}

// StatusResult is the normalized answer of a status check.
type StatusResult struct {
	Status      OrderStatus
	Code        string
	Description string
}

// ActionResult is the generic answer of cancel/ban/repeat/close.
type ActionResult struct {
	Accepted    bool
	Description string
}
