package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/go-redis/redis/v8"

	"telegram-virtual-number/internal/domain"
	"telegram-virtual-number/internal/domain/model"
	"telegram-virtual-number/internal/domain/ports/repository"
)

var _ repository.OrderRepository = (*OrderRepo)(nil)

// OrderRepo keeps orders:{uid} (capped list) and active:{uid} (hash keyed by
// "{provider}:{id}", expiring as a whole).
type OrderRepo struct {
	cli *redis.Client
	cap int
}

func NewOrderRepo(client *redClient, historyCap int) *OrderRepo {
	if historyCap <= 0 {
		historyCap = 50
	}
	return &OrderRepo{cli: client.cli, cap: historyCap}
}

func historyKey(uid int64) string { return fmt.Sprintf("orders:%d", uid) }
func activeKey(uid int64) string  { return fmt.Sprintf("active:%d", uid) }

func (r *OrderRepo) AppendHistory(ctx context.Context, o *model.Order) error {
	data, err := json.Marshal(o)
	if err != nil {
		return err
	}
	key := historyKey(o.UserID)
	_, err = r.cli.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.LPush(ctx, key, data)
		p.LTrim(ctx, key, 0, int64(r.cap-1))
		return nil
	})
	return err
}

func (r *OrderRepo) History(ctx context.Context, userID int64, limit int) ([]*model.Order, error) {
	if limit <= 0 || limit > r.cap {
		limit = r.cap
	}
	items, err := r.cli.LRange(ctx, historyKey(userID), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]*model.Order, 0, len(items))
	for _, it := range items {
		var o model.Order
		if err := json.Unmarshal([]byte(it), &o); err != nil {
			continue
		}
		out = append(out, &o)
	}
	return out, nil
}

// KEYS: active hash. ARGV: field, json, ttl ms. The hash TTL only grows, so a
// short-lived order never cuts the life of a longer one already in the set.
var luaPutActive = redis.NewScript(`
redis.call("HSET", KEYS[1], ARGV[1], ARGV[2])
local ttl = tonumber(ARGV[3])
local cur = redis.call("PTTL", KEYS[1])
if cur < ttl then
	redis.call("PEXPIRE", KEYS[1], ttl)
end
return 1`)

func (r *OrderRepo) PutActive(ctx context.Context, o *model.Order, ttl time.Duration) error {
	data, err := json.Marshal(o)
	if err != nil {
		return err
	}
	return luaPutActive.Run(ctx, r.cli, []string{activeKey(o.UserID)}, o.Key(), data, ttl.Milliseconds()).Err()
}

// KEYS: active hash. ARGV: field, json. HSET does not touch the key TTL.
var luaUpdateActive = redis.NewScript(`
if redis.call("HEXISTS", KEYS[1], ARGV[1]) == 1 then
	redis.call("HSET", KEYS[1], ARGV[1], ARGV[2])
	return 1
end
return 0`)

func (r *OrderRepo) UpdateActive(ctx context.Context, o *model.Order) error {
	data, err := json.Marshal(o)
	if err != nil {
		return err
	}
	n, err := luaUpdateActive.Run(ctx, r.cli, []string{activeKey(o.UserID)}, o.Key(), data).Int()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *OrderRepo) GetActive(ctx context.Context, userID int64, provider, orderID string) (*model.Order, error) {
	raw, err := r.cli.HGet(ctx, activeKey(userID), model.OrderKey(provider, orderID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var o model.Order
	if err := json.Unmarshal(raw, &o); err != nil {
		return nil, fmt.Errorf("decode order %s:%s: %w", provider, orderID, err)
	}
	return &o, nil
}

// ListActive returns active orders, newest first.
func (r *OrderRepo) ListActive(ctx context.Context, userID int64) ([]*model.Order, error) {
	m, err := r.cli.HGetAll(ctx, activeKey(userID)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]*model.Order, 0, len(m))
	for _, v := range m {
		var o model.Order
		if err := json.Unmarshal([]byte(v), &o); err != nil {
			continue
		}
		out = append(out, &o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *OrderRepo) RemoveActive(ctx context.Context, userID int64, provider, orderID string) error {
	return r.cli.HDel(ctx, activeKey(userID), model.OrderKey(provider, orderID)).Err()
}
