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

// PollSettings drives the background status poller.
type PollSettings struct {
	Interval               time.Duration
	Grace                  time.Duration
	MaxConsecutiveFailures int
	NotifyOnExpiry         bool
}

// PollerRegistry runs at most one poll loop per key.
type PollerRegistry interface {
	CancelAndReplace(key string, fn func(ctx context.Context))
	Remove(key string)
}

type PurchaseRequest struct {
	UserID    int64
	Provider  string
	ServiceID string
	CountryID string
	Operator  string
}

// OrderAction is a user action on an active order.
type OrderAction string

const (
	ActionCancel  OrderAction = "cancel"
	ActionBan     OrderAction = "ban"
	ActionRepeat  OrderAction = "repeat"
	ActionClose   OrderAction = "close"
	ActionRefresh OrderAction = "refresh"
)

// OrderUseCase owns the order lifecycle: quote, purchase, background polling
// and user actions.
type OrderUseCase interface {
	Quote(ctx context.Context, provider, service, country, operator string) (model.PricedQuote, error)
	Purchase(ctx context.Context, req PurchaseRequest) (*model.Order, error)

	Cancel(ctx context.Context, userID int64, provider, orderID string) (*model.Order, error)
	Ban(ctx context.Context, userID int64, provider, orderID string) (*model.Order, error)
	Repeat(ctx context.Context, userID int64, provider, orderID string) (*model.Order, error)
	Close(ctx context.Context, userID int64, provider, orderID string) (*model.Order, error)
	Refresh(ctx context.Context, userID int64, provider, orderID string) (*model.Order, error)

	ActiveOrders(ctx context.Context, userID int64) ([]*model.Order, error)
	History(ctx context.Context, userID int64, limit int) ([]*model.Order, error)
}

var _ OrderUseCase = (*orderUC)(nil)

type orderUC struct {
	providers adapter.ProviderRegistry
	pricing   PricingUseCase
	wallet    WalletUseCase
	orders    repository.OrderRepository
	locker    repository.Locker
	pollers   PollerRegistry
	notifier  adapter.Notifier
	settings  PollSettings
	log       *zerolog.Logger
	now       func() time.Time
}

// NewOrderUseCase wires the lifecycle manager. locker may be nil.
func NewOrderUseCase(
	providers adapter.ProviderRegistry,
	pricing PricingUseCase,
	wallet WalletUseCase,
	orders repository.OrderRepository,
	locker repository.Locker,
	pollers PollerRegistry,
	notifier adapter.Notifier,
	settings PollSettings,
	logger *zerolog.Logger,
) OrderUseCase {
	if settings.Interval <= 0 {
		settings.Interval = 4 * time.Second
	}
	if settings.Grace < 0 {
		settings.Grace = 0
	}
	if logger == nil {
		logger = nopLogger()
	}
	return &orderUC{
		providers: providers,
		pricing:   pricing,
		wallet:    wallet,
		orders:    orders,
		locker:    locker,
		pollers:   pollers,
		notifier:  notifier,
		settings:  settings,
		log:       logger,
		now:       time.Now,
	}
}

const purchaseLockTTL = 2 * time.Minute

func purchaseLockKey(userID int64) string { return fmt.Sprintf("lock:purchase:%d", userID) }

func (u *orderUC) Quote(ctx context.Context, provider, service, country, operator string) (model.PricedQuote, error) {
	p, err := u.providers.Get(provider)
	if err != nil {
		return model.PricedQuote{}, err
	}
	q, err := p.Quote(ctx, service, country, operator)
	if err != nil {
		return model.PricedQuote{}, err
	}
	return u.pricing.Apply(ctx, p.Key(), service, country, operator, q)
}

func (u *orderUC) Purchase(ctx context.Context, req PurchaseRequest) (*model.Order, error) {
	if req.UserID == 0 || req.ServiceID == "" || req.CountryID == "" {
		return nil, domain.ErrInvalidArgument
	}
	p, err := u.providers.Get(req.Provider)
	if err != nil {
		return nil, err
	}
	key := p.Key()
	log := u.log.With().Int64("user_id", req.UserID).Str("provider", key).
		Str("service", req.ServiceID).Str("country", req.CountryID).Logger()

	if u.locker != nil {
		lockKey := purchaseLockKey(req.UserID)
		token, err := u.locker.TryLock(ctx, lockKey, purchaseLockTTL)
		if err != nil {
			return nil, err
		}
		defer func() {
			if err := u.locker.Unlock(context.WithoutCancel(ctx), lockKey, token); err != nil {
				log.Warn().Err(err).Msg("release purchase lock")
			}
		}()
	}

	q, err := p.Quote(ctx, req.ServiceID, req.CountryID, req.Operator)
	if err != nil {
		metrics.IncPurchase(key, "vendor_failed")
		return nil, err
	}
	if q.BaseAmount <= 0 {
		metrics.IncPurchase(key, "no_quote")
		return nil, domain.ErrNoQuote
	}
	pq, err := u.pricing.Apply(ctx, key, req.ServiceID, req.CountryID, req.Operator, q)
	if err != nil {
		return nil, err
	}

	meta := fmt.Sprintf("buy:%s:%s:%s", key, req.ServiceID, req.CountryID)
	if _, err := u.wallet.Debit(ctx, req.UserID, pq.SellPrice, meta); err != nil {
		if errors.Is(err, domain.ErrInsufficientFunds) {
			metrics.IncPurchase(key, "insufficient_funds")
		}
		return nil, err
	}

	base := q.BaseAmount
	bought, err := p.Buy(ctx, req.ServiceID, req.CountryID, req.Operator, &base)
	if err != nil {
		u.refund(ctx, req.UserID, pq.SellPrice, meta, log)
		metrics.IncPurchase(key, "refunded")
		return nil, err
	}
	o, err := model.NewOrder(req.UserID, key, bought, pq, u.now())
	if err != nil {
		u.refund(ctx, req.UserID, pq.SellPrice, meta, log)
		metrics.IncPurchase(key, "refunded")
		return nil, &domain.DecodeError{Provider: key, Method: "buy", Body: "empty order id"}
	}

	// the vendor has charged us at this point; storage failures are logged
	// and the order is still handed to the user and polled
	if err := u.orders.AppendHistory(ctx, o); err != nil {
		log.Error().Err(err).Str("order_id", o.ID).Msg("append order history")
	}
	if err := u.orders.PutActive(ctx, o, o.ValidityWindow+u.settings.Grace); err != nil {
		log.Error().Err(err).Str("order_id", o.ID).Msg("store active order")
	}

	metrics.IncPurchase(key, "ok")
	metrics.AddPurchaseRevenue(key, o.SellPrice)
	log.Info().Str("order_id", o.ID).Int64("sell_price", o.SellPrice).Int64("base", o.BaseAmount).
		Dur("window", o.ValidityWindow).Msg("number purchased")

	u.watch(o, o.ValidityWindow)
	return o, nil
}

func (u *orderUC) refund(ctx context.Context, userID, amount int64, meta string, log zerolog.Logger) {
	if _, err := u.wallet.Credit(context.WithoutCancel(ctx), userID, amount, "refund:"+meta); err != nil {
		log.Error().Err(err).Int64("amount", amount).Msg("refund after failed purchase")
	}
}

func (u *orderUC) Cancel(ctx context.Context, userID int64, provider, orderID string) (*model.Order, error) {
	return u.act(ctx, userID, provider, orderID, ActionCancel)
}

func (u *orderUC) Ban(ctx context.Context, userID int64, provider, orderID string) (*model.Order, error) {
	return u.act(ctx, userID, provider, orderID, ActionBan)
}

func (u *orderUC) Repeat(ctx context.Context, userID int64, provider, orderID string) (*model.Order, error) {
	return u.act(ctx, userID, provider, orderID, ActionRepeat)
}

func (u *orderUC) Close(ctx context.Context, userID int64, provider, orderID string) (*model.Order, error) {
	return u.act(ctx, userID, provider, orderID, ActionClose)
}

func (u *orderUC) Refresh(ctx context.Context, userID int64, provider, orderID string) (*model.Order, error) {
	return u.act(ctx, userID, provider, orderID, ActionRefresh)
}

// assumedStatus is used when an accepted action's status cannot be re-read.
var assumedStatus = map[OrderAction]model.OrderStatus{
	ActionCancel: model.OrderStatusCanceled,
	ActionBan:    model.OrderStatusBanned,
	ActionClose:  model.OrderStatusCompleted,
	ActionRepeat: model.OrderStatusWaitingCodeAgain,
}

func (u *orderUC) act(ctx context.Context, userID int64, provider, orderID string, action OrderAction) (*model.Order, error) {
	o, err := u.orders.GetActive(ctx, userID, provider, orderID)
	if err != nil {
		return nil, err
	}
	p, err := u.providers.Get(o.Provider)
	if err != nil {
		return nil, err
	}
	log := u.log.With().Int64("user_id", userID).Str("provider", o.Provider).Str("order_id", o.ID).
		Str("action", string(action)).Logger()

	if action != ActionRefresh {
		var res model.ActionResult
		switch action {
		case ActionCancel:
			res, err = p.Cancel(ctx, o.ID)
		case ActionBan:
			res, err = p.Ban(ctx, o.ID)
		case ActionRepeat:
			res, err = p.Repeat(ctx, o.ID)
		case ActionClose:
			res, err = p.Close(ctx, o.ID)
		default:
			return nil, domain.ErrInvalidArgument
		}
		if err != nil {
			return o, err
		}
		if !res.Accepted {
			return o, &domain.VendorAPIError{Provider: o.Provider, Description: res.Description}
		}
	}

	st, err := p.Status(ctx, o.ID)
	if err != nil {
		fallback, ok := assumedStatus[action]
		if !ok {
			return o, err
		}
		log.Warn().Err(err).Str("assumed", fallback.String()).Msg("status re-read after action failed")
		st = model.StatusResult{Status: fallback}
	}

	if err := o.Apply(st.Status, st.Code); err != nil {
		log.Warn().Err(err).Msg("vendor reported a backward transition; keeping local state")
	}
	switch {
	case o.Status.IsTerminal():
		u.pollers.Remove(o.Key())
		if err := u.orders.RemoveActive(ctx, userID, o.Provider, o.ID); err != nil {
			return o, err
		}
	case action == ActionRepeat:
		if err := u.orders.UpdateActive(ctx, o); err != nil {
			return o, err
		}
		budget := o.Remaining(u.now())
		if budget <= 0 {
			budget = o.ValidityWindow
		}
		u.watch(o, budget)
	default:
		if o.Status == model.OrderStatusCodeReceived {
			u.pollers.Remove(o.Key())
		}
		if err := u.orders.UpdateActive(ctx, o); err != nil {
			return o, err
		}
	}
	log.Info().Str("status", o.Status.String()).Msg("order action applied")
	return o, nil
}

func (u *orderUC) ActiveOrders(ctx context.Context, userID int64) ([]*model.Order, error) {
	return u.orders.ListActive(ctx, userID)
}

func (u *orderUC) History(ctx context.Context, userID int64, limit int) ([]*model.Order, error) {
	return u.orders.History(ctx, userID, limit)
}
