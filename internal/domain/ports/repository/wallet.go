package repository

import (
	"context"
	"time"

	"telegram-virtual-number/internal/domain/model"
)

// -----------------------------
// Wallet
// -----------------------------

type WalletRepository interface {
	Balance(ctx context.Context, userID int64) (int64, error)
	// Credit adds amount and appends tx to the capped history; returns the
	// new balance.
	Credit(ctx context.Context, userID int64, tx model.Transaction) (int64, error)
	// Debit atomically checks balance >= amount and subtracts it. Returns
	// domain.ErrInsufficientFunds without mutating anything otherwise.
	Debit(ctx context.Context, userID int64, tx model.Transaction) (int64, error)
	History(ctx context.Context, userID int64, limit int) ([]model.Transaction, error)
}

// -----------------------------
// Top-up requests
// -----------------------------

type TopUpRepository interface {
	Create(ctx context.Context, r *model.TopUpRequest, ttl time.Duration) error
	// FindByID returns domain.ErrNotFound when missing or expired.
	FindByID(ctx context.Context, id string) (*model.TopUpRequest, error)
	// Decide moves a pending request to status exactly once. It returns
	// domain.ErrNotFound if missing and domain.ErrAlreadyProcessed if the
	// request is no longer pending. The decided record is kept for ttl.
	Decide(ctx context.Context, id string, status model.TopUpStatus, actor int64, ttl time.Duration) (*model.TopUpRequest, error)
}
