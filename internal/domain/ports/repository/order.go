package repository

import (
	"context"
	"time"

	"telegram-virtual-number/internal/domain/model"
)

// -----------------------------
// Orders
// -----------------------------

// OrderRepository persists orders twice: a capped most-recent-first history
// per user and an active-set per user keyed by "{provider}:{id}" with TTL.
type OrderRepository interface {
	AppendHistory(ctx context.Context, o *model.Order) error
	History(ctx context.Context, userID int64, limit int) ([]*model.Order, error)

	// PutActive inserts or overwrites the active entry and refreshes the
	// active-set TTL to ttl.
	PutActive(ctx context.Context, o *model.Order, ttl time.Duration) error
	// UpdateActive overwrites an existing entry, keeping the TTL. Returns
	// domain.ErrNotFound when the entry is gone.
	UpdateActive(ctx context.Context, o *model.Order) error
	GetActive(ctx context.Context, userID int64, provider, orderID string) (*model.Order, error)
	ListActive(ctx context.Context, userID int64) ([]*model.Order, error)
	RemoveActive(ctx context.Context, userID int64, provider, orderID string) error
}
