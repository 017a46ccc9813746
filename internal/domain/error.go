package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound          = errors.New("entity not found")
	ErrAlreadyExists     = errors.New("entity already exists")
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrUnknownProvider   = errors.New("unknown provider")
	ErrConfiguration     = errors.New("configuration error")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrPermissionDenied  = errors.New("permission denied")
	ErrAlreadyProcessed  = errors.New("request already processed")
	ErrInvalidTransition = errors.New("invalid order status transition")
	ErrPurchaseInFlight  = errors.New("another purchase is in progress")
	ErrRateLimited       = errors.New("rate limit exceeded")
	ErrNoQuote           = errors.New("no price available for this selection")
)
