package redis

import (
	"context"
	"encoding/json"

	"github.com/go-redis/redis/v8"

	"telegram-virtual-number/internal/domain/model"
	"telegram-virtual-number/internal/domain/ports/repository"
)

var _ repository.PricingRuleRepository = (*PricingRuleRepo)(nil)

const pricingRulesKey = "pricing:rules"

type PricingRuleRepo struct {
	cli *redis.Client
}

func NewPricingRuleRepo(client *redClient) *PricingRuleRepo {
	return &PricingRuleRepo{cli: client.cli}
}

func (p *PricingRuleRepo) Save(ctx context.Context, r model.PricingRule) error {
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return p.cli.HSet(ctx, pricingRulesKey, r.Key(), data).Err()
}

func (p *PricingRuleRepo) Delete(ctx context.Context, key string) error {
	return p.cli.HDel(ctx, pricingRulesKey, key).Err()
}

func (p *PricingRuleRepo) ListActive(ctx context.Context) ([]model.PricingRule, error) {
	m, err := p.cli.HGetAll(ctx, pricingRulesKey).Result()
	if err != nil {
		return nil, err
	}
	var out []model.PricingRule
	for _, v := range m {
		var r model.PricingRule
		if err := json.Unmarshal([]byte(v), &r); err != nil {
			continue
		}
		if r.Active {
			out = append(out, r)
		}
	}
	return out, nil
}
