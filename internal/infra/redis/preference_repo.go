package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"

	"telegram-virtual-number/internal/domain/ports/repository"
)

var _ repository.PreferenceRepository = (*PreferenceRepo)(nil)

// PreferenceRepo stores user:lang:{id} and user:provider:{id} without TTL.
type PreferenceRepo struct {
	client RedisClient
}

func NewPreferenceRepo(client RedisClient) *PreferenceRepo {
	return &PreferenceRepo{client: client}
}

func (p *PreferenceRepo) get(ctx context.Context, key string) (string, error) {
	v, err := p.client.Get(ctx, key)
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return v, err
}

func (p *PreferenceRepo) GetLang(ctx context.Context, tgID int64) (string, error) {
	return p.get(ctx, fmt.Sprintf("user:lang:%d", tgID))
}

func (p *PreferenceRepo) SetLang(ctx context.Context, tgID int64, lang string) error {
	return p.client.Set(ctx, fmt.Sprintf("user:lang:%d", tgID), lang, 0)
}

func (p *PreferenceRepo) GetProvider(ctx context.Context, tgID int64) (string, error) {
	return p.get(ctx, fmt.Sprintf("user:provider:%d", tgID))
}

func (p *PreferenceRepo) SetProvider(ctx context.Context, tgID int64, provider string) error {
	return p.client.Set(ctx, fmt.Sprintf("user:provider:%d", tgID), provider, 0)
}
