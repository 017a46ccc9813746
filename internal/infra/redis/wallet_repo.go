package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/go-redis/redis/v8"

	"telegram-virtual-number/internal/domain"
	"telegram-virtual-number/internal/domain/model"
	"telegram-virtual-number/internal/domain/ports/repository"
)

var _ repository.WalletRepository = (*WalletRepo)(nil)

// WalletRepo keeps wallet:bal:{uid} as an integer and wallet:tx:{uid} as a
// capped most-recent-first list of JSON transactions.
type WalletRepo struct {
	cli *redis.Client
	cap int
}

func NewWalletRepo(client *redClient, historyCap int) *WalletRepo {
	if historyCap <= 0 {
		historyCap = 50
	}
	return &WalletRepo{cli: client.cli, cap: historyCap}
}

func balanceKey(uid int64) string { return fmt.Sprintf("wallet:bal:%d", uid) }
func txKey(uid int64) string      { return fmt.Sprintf("wallet:tx:%d", uid) }

// KEYS: bal, tx. ARGV: amount, tx json, cap.
var luaCredit = redis.NewScript(`
local bal = redis.call("INCRBY", KEYS[1], ARGV[1])
redis.call("LPUSH", KEYS[2], ARGV[2])
redis.call("LTRIM", KEYS[2], 0, tonumber(ARGV[3]) - 1)
return bal`)

// Returns {1, new balance} or {0, current balance} when funds are short.
var luaDebit = redis.NewScript(`
local bal = tonumber(redis.call("GET", KEYS[1]) or "0")
local amount = tonumber(ARGV[1])
if bal < amount then
	return {0, bal}
end
bal = redis.call("DECRBY", KEYS[1], amount)
redis.call("LPUSH", KEYS[2], ARGV[2])
redis.call("LTRIM", KEYS[2], 0, tonumber(ARGV[3]) - 1)
return {1, bal}`)

func (w *WalletRepo) Balance(ctx context.Context, userID int64) (int64, error) {
	v, err := w.cli.Get(ctx, balanceKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(v, 10, 64)
}

func (w *WalletRepo) Credit(ctx context.Context, userID int64, tx model.Transaction) (int64, error) {
	data, err := json.Marshal(tx)
	if err != nil {
		return 0, err
	}
	return luaCredit.Run(ctx, w.cli, []string{balanceKey(userID), txKey(userID)}, tx.Amount, data, w.cap).Int64()
}

func (w *WalletRepo) Debit(ctx context.Context, userID int64, tx model.Transaction) (int64, error) {
	data, err := json.Marshal(tx)
	if err != nil {
		return 0, err
	}
	res, err := luaDebit.Run(ctx, w.cli, []string{balanceKey(userID), txKey(userID)}, tx.Amount, data, w.cap).Int64Slice()
	if err != nil {
		return 0, err
	}
	if len(res) != 2 {
		return 0, fmt.Errorf("debit: unexpected script reply %v", res)
	}
	if res[0] == 0 {
		return res[1], domain.ErrInsufficientFunds
	}
	return res[1], nil
}

func (w *WalletRepo) History(ctx context.Context, userID int64, limit int) ([]model.Transaction, error) {
	if limit <= 0 || limit > w.cap {
		limit = w.cap
	}
	items, err := w.cli.LRange(ctx, txKey(userID), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]model.Transaction, 0, len(items))
	for _, it := range items {
		var tx model.Transaction
		if err := json.Unmarshal([]byte(it), &tx); err != nil {
			continue
		}
		out = append(out, tx)
	}
	return out, nil
}
