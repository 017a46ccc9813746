//go:build !integration

package application_test

import (
	"context"
	"errors"
	"sync"

	"telegram-virtual-number/internal/domain"
	"telegram-virtual-number/internal/domain/model"
	"telegram-virtual-number/internal/domain/ports/adapter"
	"telegram-virtual-number/internal/domain/ports/repository"
	"telegram-virtual-number/internal/usecase"
)

// ---- provider & registry ----

type mockProvider struct {
	key       string
	operators []string
	services  []model.Service
	countries []model.Country
	balance   model.ProviderBalance
	balErr    error
}

func (m *mockProvider) Key() string         { return m.key }
func (m *mockProvider) DisplayName() string { return m.key }
func (m *mockProvider) Balance(ctx context.Context) (model.ProviderBalance, error) {
	return m.balance, m.balErr
}
func (m *mockProvider) ListServices(ctx context.Context) ([]model.Service, error) {
	return m.services, nil
}
func (m *mockProvider) ListCountries(ctx context.Context) ([]model.Country, error) {
	return m.countries, nil
}
func (m *mockProvider) Quote(ctx context.Context, service, country, operator string) (model.Quote, error) {
	return model.ZeroQuote(), nil
}
func (m *mockProvider) Buy(ctx context.Context, service, country, operator string, price *int64) (model.Purchase, error) {
	return model.Purchase{}, errors.New("not used")
}
func (m *mockProvider) Status(ctx context.Context, id string) (model.StatusResult, error) {
	return model.StatusResult{}, nil
}
func (m *mockProvider) Cancel(ctx context.Context, id string) (model.ActionResult, error) {
	return model.ActionResult{}, nil
}
func (m *mockProvider) Ban(ctx context.Context, id string) (model.ActionResult, error) {
	return model.ActionResult{}, nil
}
func (m *mockProvider) Repeat(ctx context.Context, id string) (model.ActionResult, error) {
	return model.ActionResult{}, nil
}
func (m *mockProvider) Close(ctx context.Context, id string) (model.ActionResult, error) {
	return model.ActionResult{}, nil
}

// operatorProvider also lists operators.
type operatorProvider struct{ *mockProvider }

func (o operatorProvider) Operators() []string { return o.operators }

type mockRegistry struct {
	order []string
	ps    map[string]adapter.Provider
}

func newMockRegistry(ps ...adapter.Provider) *mockRegistry {
	r := &mockRegistry{ps: map[string]adapter.Provider{}}
	for _, p := range ps {
		r.order = append(r.order, p.Key())
		r.ps[p.Key()] = p
	}
	return r
}

func (r *mockRegistry) Get(key string) (adapter.Provider, error) {
	if p, ok := r.ps[key]; ok {
		return p, nil
	}
	return nil, domain.ErrUnknownProvider
}
func (r *mockRegistry) Enabled() []string             { return r.order }
func (r *mockRegistry) DisplayName(key string) string { return "[" + key + "]" }
func (r *mockRegistry) Default() string               { return r.order[0] }

// ---- usecases ----

type mockOrderUC struct {
	QuoteFunc    func(ctx context.Context, provider, service, country, operator string) (model.PricedQuote, error)
	PurchaseFunc func(ctx context.Context, req usecase.PurchaseRequest) (*model.Order, error)
	ActFunc      func(ctx context.Context, action usecase.OrderAction, userID int64, provider, orderID string) (*model.Order, error)
	Active       []*model.Order
	Past         []*model.Order
}

func (m *mockOrderUC) Quote(ctx context.Context, provider, service, country, operator string) (model.PricedQuote, error) {
	return m.QuoteFunc(ctx, provider, service, country, operator)
}
func (m *mockOrderUC) Purchase(ctx context.Context, req usecase.PurchaseRequest) (*model.Order, error) {
	return m.PurchaseFunc(ctx, req)
}
func (m *mockOrderUC) Cancel(ctx context.Context, userID int64, provider, orderID string) (*model.Order, error) {
	return m.ActFunc(ctx, usecase.ActionCancel, userID, provider, orderID)
}
func (m *mockOrderUC) Ban(ctx context.Context, userID int64, provider, orderID string) (*model.Order, error) {
	return m.ActFunc(ctx, usecase.ActionBan, userID, provider, orderID)
}
func (m *mockOrderUC) Repeat(ctx context.Context, userID int64, provider, orderID string) (*model.Order, error) {
	return m.ActFunc(ctx, usecase.ActionRepeat, userID, provider, orderID)
}
func (m *mockOrderUC) Close(ctx context.Context, userID int64, provider, orderID string) (*model.Order, error) {
	return m.ActFunc(ctx, usecase.ActionClose, userID, provider, orderID)
}
func (m *mockOrderUC) Refresh(ctx context.Context, userID int64, provider, orderID string) (*model.Order, error) {
	return m.ActFunc(ctx, usecase.ActionRefresh, userID, provider, orderID)
}
func (m *mockOrderUC) ActiveOrders(ctx context.Context, userID int64) ([]*model.Order, error) {
	return m.Active, nil
}
func (m *mockOrderUC) History(ctx context.Context, userID int64, limit int) ([]*model.Order, error) {
	return m.Past, nil
}

type mockWalletUC struct {
	admins   map[int64]bool
	balance  int64
	txs      []model.Transaction
	requests []int64
	decided  []string
}

func (m *mockWalletUC) Balance(ctx context.Context, userID int64) (int64, error) { return m.balance, nil }
func (m *mockWalletUC) Account(ctx context.Context, userID int64, limit int) (*model.WalletAccount, error) {
	return &model.WalletAccount{UserID: userID, Balance: m.balance, Transactions: m.txs}, nil
}
func (m *mockWalletUC) History(ctx context.Context, userID int64, limit int) ([]model.Transaction, error) {
	return m.txs, nil
}
func (m *mockWalletUC) Credit(ctx context.Context, userID, amount int64, meta string) (int64, error) {
	m.balance += amount
	return m.balance, nil
}
func (m *mockWalletUC) Debit(ctx context.Context, userID, amount int64, meta string) (int64, error) {
	if amount > m.balance {
		return m.balance, domain.ErrInsufficientFunds
	}
	m.balance -= amount
	return m.balance, nil
}
func (m *mockWalletUC) RequestTopUp(ctx context.Context, userID, amount int64) (*model.TopUpRequest, error) {
	m.requests = append(m.requests, amount)
	return &model.TopUpRequest{ID: "req-1", UserID: userID, Amount: amount, Status: model.TopUpPending}, nil
}
func (m *mockWalletUC) Approve(ctx context.Context, id string, actor int64) (*model.TopUpRequest, error) {
	if !m.admins[actor] {
		return nil, domain.ErrPermissionDenied
	}
	m.decided = append(m.decided, "approve:"+id)
	return &model.TopUpRequest{ID: id, Status: model.TopUpApproved}, nil
}
func (m *mockWalletUC) Reject(ctx context.Context, id string, actor int64) (*model.TopUpRequest, error) {
	if !m.admins[actor] {
		return nil, domain.ErrPermissionDenied
	}
	m.decided = append(m.decided, "reject:"+id)
	return &model.TopUpRequest{ID: id, Status: model.TopUpRejected}, nil
}
func (m *mockWalletUC) IsAdmin(userID int64) bool { return m.admins[userID] }

// ---- repositories ----

type memPrefs struct {
	mu       sync.Mutex
	lang     map[int64]string
	provider map[int64]string
}

func newMemPrefs() *memPrefs {
	return &memPrefs{lang: map[int64]string{}, provider: map[int64]string{}}
}

func (p *memPrefs) GetLang(ctx context.Context, id int64) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lang[id], nil
}
func (p *memPrefs) SetLang(ctx context.Context, id int64, lang string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lang[id] = lang
	return nil
}
func (p *memPrefs) GetProvider(ctx context.Context, id int64) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.provider[id], nil
}
func (p *memPrefs) SetProvider(ctx context.Context, id int64, key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.provider[id] = key
	return nil
}

type memStates struct {
	states map[int64]*repository.ConversationState
}

func newMemStates() *memStates { return &memStates{states: map[int64]*repository.ConversationState{}} }

func (s *memStates) SetState(ctx context.Context, id int64, st *repository.ConversationState) error {
	cp := &repository.ConversationState{Step: st.Step, Data: map[string]string{}}
	for k, v := range st.Data {
		cp.Data[k] = v
	}
	s.states[id] = cp
	return nil
}
func (s *memStates) GetState(ctx context.Context, id int64) (*repository.ConversationState, error) {
	st, ok := s.states[id]
	if !ok {
		return nil, nil
	}
	cp := &repository.ConversationState{Step: st.Step, Data: map[string]string{}}
	for k, v := range st.Data {
		cp.Data[k] = v
	}
	return cp, nil
}
func (s *memStates) ClearState(ctx context.Context, id int64) error {
	delete(s.states, id)
	return nil
}

// ---- bot ----

type sentMessage struct {
	To   int64
	Text string
	Rows [][]adapter.InlineButton
}

type fakeBot struct {
	mu   sync.Mutex
	sent []sentMessage
}

func (f *fakeBot) SendMessage(ctx context.Context, id int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMessage{To: id, Text: text})
	return nil
}

func (f *fakeBot) SendButtons(ctx context.Context, id int64, text string, rows [][]adapter.InlineButton) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMessage{To: id, Text: text, Rows: rows})
	return nil
}
