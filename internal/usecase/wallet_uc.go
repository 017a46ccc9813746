package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"telegram-virtual-number/internal/domain"
	"telegram-virtual-number/internal/domain/model"
	"telegram-virtual-number/internal/domain/ports/adapter"
	"telegram-virtual-number/internal/domain/ports/repository"
	"telegram-virtual-number/internal/infra/metrics"

	"github.com/rs/zerolog"
)

// WalletSettings configures the top-up workflow.
type WalletSettings struct {
	AdminIDs   []int64
	PendingTTL time.Duration
	DecidedTTL time.Duration
	Currency   string
}

// WalletUseCase is the prepaid balance ledger plus the admin-approved
// top-up workflow.
type WalletUseCase interface {
	Balance(ctx context.Context, userID int64) (int64, error)
	Account(ctx context.Context, userID int64, limit int) (*model.WalletAccount, error)
	History(ctx context.Context, userID int64, limit int) ([]model.Transaction, error)

	// Credit and Debit return the balance after the movement. Debit fails with
	// domain.ErrInsufficientFunds and leaves the balance untouched when the
	// balance is lower than amount.
	Credit(ctx context.Context, userID, amount int64, meta string) (int64, error)
	Debit(ctx context.Context, userID, amount int64, meta string) (int64, error)

	RequestTopUp(ctx context.Context, userID, amount int64) (*model.TopUpRequest, error)
	Approve(ctx context.Context, id string, actor int64) (*model.TopUpRequest, error)
	Reject(ctx context.Context, id string, actor int64) (*model.TopUpRequest, error)
	IsAdmin(userID int64) bool
}

var _ WalletUseCase = (*walletUC)(nil)

type walletUC struct {
	wallets  repository.WalletRepository
	topups   repository.TopUpRepository
	notifier adapter.Notifier
	settings WalletSettings
	admins   map[int64]struct{}
	log      *zerolog.Logger
}

func NewWalletUseCase(
	wallets repository.WalletRepository,
	topups repository.TopUpRepository,
	notifier adapter.Notifier,
	settings WalletSettings,
	logger *zerolog.Logger,
) WalletUseCase {
	if settings.PendingTTL <= 0 {
		settings.PendingTTL = 24 * time.Hour
	}
	if settings.DecidedTTL <= 0 {
		settings.DecidedTTL = time.Hour
	}
	if logger == nil {
		logger = nopLogger()
	}
	admins := make(map[int64]struct{}, len(settings.AdminIDs))
	for _, id := range settings.AdminIDs {
		admins[id] = struct{}{}
	}
	return &walletUC{
		wallets:  wallets,
		topups:   topups,
		notifier: notifier,
		settings: settings,
		admins:   admins,
		log:      logger,
	}
}

func (w *walletUC) IsAdmin(userID int64) bool {
	_, ok := w.admins[userID]
	return ok
}

func (w *walletUC) Balance(ctx context.Context, userID int64) (int64, error) {
	return w.wallets.Balance(ctx, userID)
}

func (w *walletUC) History(ctx context.Context, userID int64, limit int) ([]model.Transaction, error) {
	return w.wallets.History(ctx, userID, limit)
}

func (w *walletUC) Account(ctx context.Context, userID int64, limit int) (*model.WalletAccount, error) {
	bal, err := w.wallets.Balance(ctx, userID)
	if err != nil {
		return nil, err
	}
	txs, err := w.wallets.History(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	return &model.WalletAccount{UserID: userID, Balance: bal, Transactions: txs}, nil
}

func (w *walletUC) Credit(ctx context.Context, userID, amount int64, meta string) (int64, error) {
	if userID == 0 || amount <= 0 {
		return 0, domain.ErrInvalidArgument
	}
	bal, err := w.wallets.Credit(ctx, userID, model.NewTransaction(model.TransactionCredit, amount, meta))
	if err != nil {
		metrics.ObserveWallet("credit", "error", amount)
		return 0, fmt.Errorf("credit wallet %d: %w", userID, err)
	}
	metrics.ObserveWallet("credit", "ok", amount)
	return bal, nil
}

func (w *walletUC) Debit(ctx context.Context, userID, amount int64, meta string) (int64, error) {
	if userID == 0 || amount <= 0 {
		return 0, domain.ErrInvalidArgument
	}
	bal, err := w.wallets.Debit(ctx, userID, model.NewTransaction(model.TransactionDebit, amount, meta))
	if errors.Is(err, domain.ErrInsufficientFunds) {
		metrics.ObserveWallet("debit", "insufficient_funds", amount)
		return bal, err
	}
	if err != nil {
		metrics.ObserveWallet("debit", "error", amount)
		return 0, fmt.Errorf("debit wallet %d: %w", userID, err)
	}
	metrics.ObserveWallet("debit", "ok", amount)
	return bal, nil
}

func (w *walletUC) RequestTopUp(ctx context.Context, userID, amount int64) (*model.TopUpRequest, error) {
	req, err := model.NewTopUpRequest(userID, amount)
	if err != nil {
		return nil, err
	}
	if err := w.topups.Create(ctx, req, w.settings.PendingTTL); err != nil {
		return nil, fmt.Errorf("store topup: %w", err)
	}
	metrics.IncTopUp(string(model.TopUpPending))

	rows := [][]adapter.InlineButton{{
		{Text: "btn.approve", Data: "w:approve:" + req.ID},
		{Text: "btn.reject", Data: "w:reject:" + req.ID},
	}}
	for _, admin := range w.settings.AdminIDs {
		if err := w.notifier.NotifyButtons(ctx, admin, rows, "admin.topup_request", userID, amount, w.settings.Currency, req.ID); err != nil {
			w.warn(err).Int64("admin_id", admin).Str("topup_id", req.ID).Msg("notify admin about topup failed")
		}
	}
	return req, nil
}

func (w *walletUC) Approve(ctx context.Context, id string, actor int64) (*model.TopUpRequest, error) {
	req, err := w.decide(ctx, id, model.TopUpApproved, actor)
	if err != nil {
		return nil, err
	}
	bal, err := w.Credit(ctx, req.UserID, req.Amount, "topup:"+req.ID)
	if err != nil {
		// the request is already approved; an operator has to credit manually
		w.log.Error().Err(err).Str("topup_id", req.ID).Int64("user_id", req.UserID).Int64("amount", req.Amount).
			Msg("topup approved but credit failed")
		return req, err
	}
	if err := w.notifier.Notify(ctx, req.UserID, "wallet.topup_approved", req.Amount, w.settings.Currency, bal); err != nil {
		w.warn(err).Int64("user_id", req.UserID).Msg("notify topup approved failed")
	}
	return req, nil
}

func (w *walletUC) Reject(ctx context.Context, id string, actor int64) (*model.TopUpRequest, error) {
	req, err := w.decide(ctx, id, model.TopUpRejected, actor)
	if err != nil {
		return nil, err
	}
	if err := w.notifier.Notify(ctx, req.UserID, "wallet.topup_rejected", req.Amount, w.settings.Currency); err != nil {
		w.warn(err).Int64("user_id", req.UserID).Msg("notify topup rejected failed")
	}
	return req, nil
}

func (w *walletUC) decide(ctx context.Context, id string, status model.TopUpStatus, actor int64) (*model.TopUpRequest, error) {
	if !w.IsAdmin(actor) {
		return nil, domain.ErrPermissionDenied
	}
	req, err := w.topups.Decide(ctx, id, status, actor, w.settings.DecidedTTL)
	if err != nil {
		return nil, err
	}
	metrics.IncTopUp(string(status))
	w.log.Info().Str("topup_id", id).Str("status", string(status)).Int64("actor", actor).
		Int64("user_id", req.UserID).Int64("amount", req.Amount).Msg("topup decided")
	return req, nil
}

func (w *walletUC) warn(err error) *zerolog.Event {
	return w.log.Warn().Err(err)
}

func nopLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}
