package model

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"

	"telegram-virtual-number/internal/domain"
)

type TopUpStatus string

const (
	TopUpPending  TopUpStatus = "pending"
	TopUpApproved TopUpStatus = "approved"
	TopUpRejected TopUpStatus = "rejected"
)

// TopUpRequest is a manual wallet charge awaiting admin approval.
type TopUpRequest struct {
	ID        string      `json:"id"`
	UserID    int64       `json:"user_id"`
	Amount    int64       `json:"amount"`
	Status    TopUpStatus `json:"status"`
	CreatedAt time.Time   `json:"created_at"`
	DecidedBy int64       `json:"decided_by,omitempty"`
	DecidedAt *time.Time  `json:"decided_at,omitempty"`
}

func NewTopUpRequest(userID, amount int64) (*TopUpRequest, error) {
	if userID == 0 || amount <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now().UTC()
	return &TopUpRequest{
		ID:        ulid.MustNew(ulid.Timestamp(now), rand.Reader).String(),
		UserID:    userID,
		Amount:    amount,
		Status:    TopUpPending,
		CreatedAt: now,
	}, nil
}

func (r *TopUpRequest) IsPending() bool { return r.Status == TopUpPending }
