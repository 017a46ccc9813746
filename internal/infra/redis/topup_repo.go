package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"telegram-virtual-number/internal/domain"
	"telegram-virtual-number/internal/domain/model"
	"telegram-virtual-number/internal/domain/ports/repository"
)

var _ repository.TopUpRepository = (*TopUpRepo)(nil)

// TopUpRepo stores wallet:topup:{id} as JSON with a TTL.
type TopUpRepo struct {
	cli *redis.Client
}

func NewTopUpRepo(client *redClient) *TopUpRepo {
	return &TopUpRepo{cli: client.cli}
}

func topUpKey(id string) string { return "wallet:topup:" + id }

func (t *TopUpRepo) Create(ctx context.Context, r *model.TopUpRequest, ttl time.Duration) error {
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}
	ok, err := t.cli.SetNX(ctx, topUpKey(r.ID), data, ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrAlreadyExists
	}
	return nil
}

func (t *TopUpRepo) FindByID(ctx context.Context, id string) (*model.TopUpRequest, error) {
	raw, err := t.cli.Get(ctx, topUpKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var r model.TopUpRequest
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("decode topup %s: %w", id, err)
	}
	return &r, nil
}

// Decide is an optimistic compare-and-set on the record: concurrent deciders
// race on WATCH and exactly one of them observes "pending".
func (t *TopUpRepo) Decide(ctx context.Context, id string, status model.TopUpStatus, actor int64, ttl time.Duration) (*model.TopUpRequest, error) {
	key := topUpKey(id)
	var decided *model.TopUpRequest

	txf := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return domain.ErrNotFound
		}
		if err != nil {
			return err
		}
		var r model.TopUpRequest
		if err := json.Unmarshal(raw, &r); err != nil {
			return fmt.Errorf("decode topup %s: %w", id, err)
		}
		if !r.IsPending() {
			return domain.ErrAlreadyProcessed
		}
		now := time.Now().UTC()
		r.Status = status
		r.DecidedBy = actor
		r.DecidedAt = &now
		data, err := json.Marshal(&r)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, key, data, ttl)
			return nil
		})
		if err == nil {
			decided = &r
		}
		return err
	}

	for i := 0; i < 3; i++ {
		err := t.cli.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			// another decider touched the key; re-read and let the status check decide
			continue
		}
		if err != nil {
			return nil, err
		}
		return decided, nil
	}
	return nil, domain.ErrAlreadyProcessed
}
