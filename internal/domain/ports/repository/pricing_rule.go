package repository

import (
	"context"

	"telegram-virtual-number/internal/domain/model"
)

// PricingRuleRepository stores admin markup rules keyed by PricingRule.Key().
type PricingRuleRepository interface {
	Save(ctx context.Context, r model.PricingRule) error
	Delete(ctx context.Context, key string) error
	ListActive(ctx context.Context) ([]model.PricingRule, error)
}
