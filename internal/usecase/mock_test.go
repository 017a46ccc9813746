//go:build !integration

package usecase_test

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"telegram-virtual-number/internal/domain"
	"telegram-virtual-number/internal/domain/model"
	"telegram-virtual-number/internal/domain/ports/adapter"
	"telegram-virtual-number/internal/domain/ports/repository"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

// =============================
// Adapters
// =============================

// ---- MockProvider ----

type MockProvider struct {
	KeyValue string

	QuoteFunc  func(ctx context.Context, service, country, operator string) (model.Quote, error)
	BuyFunc    func(ctx context.Context, service, country, operator string, price *int64) (model.Purchase, error)
	StatusFunc func(ctx context.Context, id string) (model.StatusResult, error)
	ActionFunc func(ctx context.Context, action, id string) (model.ActionResult, error)

	mu      sync.Mutex
	actions []string
}

var _ adapter.Provider = (*MockProvider)(nil)

func (m *MockProvider) Key() string         { return m.KeyValue }
func (m *MockProvider) DisplayName() string { return strings.ToUpper(m.KeyValue) }

func (m *MockProvider) Balance(ctx context.Context) (model.ProviderBalance, error) {
	return model.ProviderBalance{Amount: "0", Currency: "Toman"}, nil
}

func (m *MockProvider) ListServices(ctx context.Context) ([]model.Service, error) { return nil, nil }
func (m *MockProvider) ListCountries(ctx context.Context) ([]model.Country, error) { return nil, nil }

func (m *MockProvider) Quote(ctx context.Context, service, country, operator string) (model.Quote, error) {
	if m.QuoteFunc != nil {
		return m.QuoteFunc(ctx, service, country, operator)
	}
	return model.ZeroQuote(), nil
}

func (m *MockProvider) Buy(ctx context.Context, service, country, operator string, price *int64) (model.Purchase, error) {
	if m.BuyFunc != nil {
		return m.BuyFunc(ctx, service, country, operator, price)
	}
	return model.Purchase{}, fmt.Errorf("buy not configured")
}

func (m *MockProvider) Status(ctx context.Context, id string) (model.StatusResult, error) {
	if m.StatusFunc != nil {
		return m.StatusFunc(ctx, id)
	}
	return model.StatusResult{Status: model.OrderStatusWaitingCode}, nil
}

func (m *MockProvider) action(ctx context.Context, action, id string) (model.ActionResult, error) {
	m.mu.Lock()
	m.actions = append(m.actions, action+":"+id)
	m.mu.Unlock()
	if m.ActionFunc != nil {
		return m.ActionFunc(ctx, action, id)
	}
	return model.ActionResult{Accepted: true}, nil
}

func (m *MockProvider) Cancel(ctx context.Context, id string) (model.ActionResult, error) {
	return m.action(ctx, "cancel", id)
}
func (m *MockProvider) Ban(ctx context.Context, id string) (model.ActionResult, error) {
	return m.action(ctx, "ban", id)
}
func (m *MockProvider) Repeat(ctx context.Context, id string) (model.ActionResult, error) {
	return m.action(ctx, "repeat", id)
}
func (m *MockProvider) Close(ctx context.Context, id string) (model.ActionResult, error) {
	return m.action(ctx, "close", id)
}

func (m *MockProvider) Actions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.actions...)
}

// ---- MockRegistry ----

type MockRegistry struct {
	providers map[string]adapter.Provider
	order     []string
}

var _ adapter.ProviderRegistry = (*MockRegistry)(nil)

func NewMockRegistry(ps ...adapter.Provider) *MockRegistry {
	r := &MockRegistry{providers: map[string]adapter.Provider{}}
	for _, p := range ps {
		r.providers[p.Key()] = p
		r.order = append(r.order, p.Key())
	}
	return r
}

func (r *MockRegistry) Get(key string) (adapter.Provider, error) {
	p, ok := r.providers[strings.ToLower(strings.TrimSpace(key))]
	if !ok {
		return nil, domain.ErrUnknownProvider
	}
	return p, nil
}
func (r *MockRegistry) Enabled() []string             { return r.order }
func (r *MockRegistry) DisplayName(key string) string { return key }
func (r *MockRegistry) Default() string               { return r.order[0] }

// ---- MockNotifier ----

type Notification struct {
	UserID int64
	Key    string
	Args   []any
	Rows   [][]adapter.InlineButton
}

type MockNotifier struct {
	mu   sync.Mutex
	Sent []Notification
}

var _ adapter.Notifier = (*MockNotifier)(nil)

func (m *MockNotifier) Notify(ctx context.Context, userID int64, key string, args ...any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, Notification{UserID: userID, Key: key, Args: args})
	return nil
}

func (m *MockNotifier) NotifyButtons(ctx context.Context, userID int64, rows [][]adapter.InlineButton, key string, args ...any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, Notification{UserID: userID, Key: key, Args: args, Rows: rows})
	return nil
}

func (m *MockNotifier) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.Sent))
	for _, n := range m.Sent {
		out = append(out, n.Key)
	}
	return out
}

// =============================
// Repositories
// =============================

// ---- MockWalletRepo ----

type MockWalletRepo struct {
	mu       sync.Mutex
	balances map[int64]int64
	txs      map[int64][]model.Transaction
}

var _ repository.WalletRepository = (*MockWalletRepo)(nil)

func NewMockWalletRepo() *MockWalletRepo {
	return &MockWalletRepo{balances: map[int64]int64{}, txs: map[int64][]model.Transaction{}}
}

func (m *MockWalletRepo) Balance(ctx context.Context, userID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[userID], nil
}

func (m *MockWalletRepo) Credit(ctx context.Context, userID int64, tx model.Transaction) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[userID] += tx.Amount
	m.txs[userID] = append([]model.Transaction{tx}, m.txs[userID]...)
	return m.balances[userID], nil
}

func (m *MockWalletRepo) Debit(ctx context.Context, userID int64, tx model.Transaction) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.balances[userID] < tx.Amount {
		return m.balances[userID], domain.ErrInsufficientFunds
	}
	m.balances[userID] -= tx.Amount
	m.txs[userID] = append([]model.Transaction{tx}, m.txs[userID]...)
	return m.balances[userID], nil
}

func (m *MockWalletRepo) History(ctx context.Context, userID int64, limit int) ([]model.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	txs := m.txs[userID]
	if limit > 0 && len(txs) > limit {
		txs = txs[:limit]
	}
	return append([]model.Transaction(nil), txs...), nil
}

// ---- MockTopUpRepo ----

type MockTopUpRepo struct {
	mu   sync.Mutex
	reqs map[string]model.TopUpRequest
}

var _ repository.TopUpRepository = (*MockTopUpRepo)(nil)

func NewMockTopUpRepo() *MockTopUpRepo {
	return &MockTopUpRepo{reqs: map[string]model.TopUpRequest{}}
}

func (m *MockTopUpRepo) Create(ctx context.Context, r *model.TopUpRequest, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.reqs[r.ID]; ok {
		return domain.ErrAlreadyExists
	}
	m.reqs[r.ID] = *r
	return nil
}

func (m *MockTopUpRepo) FindByID(ctx context.Context, id string) (*model.TopUpRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reqs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &r, nil
}

func (m *MockTopUpRepo) Decide(ctx context.Context, id string, status model.TopUpStatus, actor int64, ttl time.Duration) (*model.TopUpRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reqs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if !r.IsPending() {
		return nil, domain.ErrAlreadyProcessed
	}
	now := time.Now()
	r.Status, r.DecidedBy, r.DecidedAt = status, actor, &now
	m.reqs[id] = r
	return &r, nil
}

// ---- MockOrderRepo ----

type MockOrderRepo struct {
	mu      sync.Mutex
	history map[int64][]model.Order
	active  map[int64]map[string]model.Order
	TTLs    map[string]time.Duration
}

var _ repository.OrderRepository = (*MockOrderRepo)(nil)

func NewMockOrderRepo() *MockOrderRepo {
	return &MockOrderRepo{
		history: map[int64][]model.Order{},
		active:  map[int64]map[string]model.Order{},
		TTLs:    map[string]time.Duration{},
	}
}

func (m *MockOrderRepo) AppendHistory(ctx context.Context, o *model.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history[o.UserID] = append([]model.Order{*o}, m.history[o.UserID]...)
	return nil
}

func (m *MockOrderRepo) History(ctx context.Context, userID int64, limit int) ([]*model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Order
	for i := range m.history[userID] {
		if limit > 0 && i >= limit {
			break
		}
		o := m.history[userID][i]
		out = append(out, &o)
	}
	return out, nil
}

func (m *MockOrderRepo) PutActive(ctx context.Context, o *model.Order, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active[o.UserID] == nil {
		m.active[o.UserID] = map[string]model.Order{}
	}
	m.active[o.UserID][o.Key()] = *o
	m.TTLs[o.Key()] = ttl
	return nil
}

func (m *MockOrderRepo) UpdateActive(ctx context.Context, o *model.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.active[o.UserID][o.Key()]; !ok {
		return domain.ErrNotFound
	}
	m.active[o.UserID][o.Key()] = *o
	return nil
}

func (m *MockOrderRepo) GetActive(ctx context.Context, userID int64, provider, orderID string) (*model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.active[userID][model.OrderKey(provider, orderID)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &o, nil
}

func (m *MockOrderRepo) ListActive(ctx context.Context, userID int64) ([]*model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Order
	for _, o := range m.active[userID] {
		o := o
		out = append(out, &o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MockOrderRepo) RemoveActive(ctx context.Context, userID int64, provider, orderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.active[userID], model.OrderKey(provider, orderID))
	return nil
}

// ---- MockRuleRepo ----

type MockRuleRepo struct {
	mu    sync.Mutex
	rules map[string]model.PricingRule
}

var _ repository.PricingRuleRepository = (*MockRuleRepo)(nil)

func NewMockRuleRepo() *MockRuleRepo { return &MockRuleRepo{rules: map[string]model.PricingRule{}} }

func (m *MockRuleRepo) Save(ctx context.Context, r model.PricingRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules[r.Key()] = r
	return nil
}

func (m *MockRuleRepo) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rules, key)
	return nil
}

func (m *MockRuleRepo) ListActive(ctx context.Context) ([]model.PricingRule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.PricingRule
	for _, r := range m.rules {
		if r.Active {
			out = append(out, r)
		}
	}
	return out, nil
}

// ---- MockLocker ----

type MockLocker struct {
	mu   sync.Mutex
	held map[string]string
}

var _ repository.Locker = (*MockLocker)(nil)

func NewMockLocker() *MockLocker { return &MockLocker{held: map[string]string{}} }

func (m *MockLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.held[key]; ok {
		return "", domain.ErrPurchaseInFlight
	}
	token := fmt.Sprintf("tok-%d", len(m.held)+1)
	m.held[key] = token
	return token, nil
}

func (m *MockLocker) Unlock(ctx context.Context, key, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.held[key] == token {
		delete(m.held, key)
	}
	return nil
}

// ---- MockPollers ----

// MockPollers records CancelAndReplace/Remove calls without running loops.
type MockPollers struct {
	mu    sync.Mutex
	Calls []string
}

func (m *MockPollers) CancelAndReplace(key string, fn func(ctx context.Context)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, "replace:"+key)
}

func (m *MockPollers) Remove(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, "remove:"+key)
}
