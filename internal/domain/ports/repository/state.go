package repository

import (
	"context"
)

// Conversation steps of the bot. The buy flow walks service -> country ->
// operator -> confirm; top-up waits for a typed amount.
const (
	StepChoosingService  = "choosing_service"
	StepChoosingCountry  = "choosing_country"
	StepChoosingOperator = "choosing_operator"
	StepConfirmPurchase  = "confirm_purchase"
	StepAwaitingTopUp    = "awaiting_topup_amount"
)

// ConversationState holds the user's progress in any multi-step conversation.
type ConversationState struct {
	Step string            `json:"step"`
	Data map[string]string `json:"data"` // provider, service_id, country_id, operator ...
}

// StateRepository is the port for managing any user's conversational state.
// GetState returns (nil, nil) when no conversation is in progress.
type StateRepository interface {
	SetState(ctx context.Context, tgID int64, state *ConversationState) error
	GetState(ctx context.Context, tgID int64) (*ConversationState, error)
	ClearState(ctx context.Context, tgID int64) error
}
