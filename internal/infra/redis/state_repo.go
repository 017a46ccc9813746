package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"telegram-virtual-number/internal/domain/ports/repository"
)

var _ repository.StateRepository = (*StateRepo)(nil)

const stateDataPrefix = "d:"

// StateRepo keeps the bot conversation as a hash: "step" plus one "d:<name>"
// field per collected value.
type StateRepo struct {
	cli *redis.Client
	ttl time.Duration
}

func NewStateRepo(client *redClient, ttl time.Duration) *StateRepo {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &StateRepo{cli: client.cli, ttl: ttl}
}

func stateKey(tgID int64) string { return fmt.Sprintf("fsm:%d", tgID) }

// SetState replaces the whole conversation and refreshes its TTL.
func (s *StateRepo) SetState(ctx context.Context, tgID int64, state *repository.ConversationState) error {
	key := stateKey(tgID)
	fields := map[string]interface{}{"step": state.Step}
	for k, v := range state.Data {
		fields[stateDataPrefix+k] = v
	}
	_, err := s.cli.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, key)
		p.HSet(ctx, key, fields)
		p.Expire(ctx, key, s.ttl)
		return nil
	})
	return err
}

func (s *StateRepo) GetState(ctx context.Context, tgID int64) (*repository.ConversationState, error) {
	m, err := s.cli.HGetAll(ctx, stateKey(tgID)).Result()
	if err != nil {
		return nil, err
	}
	if len(m) == 0 {
		return nil, nil
	}
	st := &repository.ConversationState{Step: m["step"], Data: map[string]string{}}
	for k, v := range m {
		if name, ok := strings.CutPrefix(k, stateDataPrefix); ok {
			st.Data[name] = v
		}
	}
	return st, nil
}

func (s *StateRepo) ClearState(ctx context.Context, tgID int64) error {
	return s.cli.Del(ctx, stateKey(tgID)).Err()
}
