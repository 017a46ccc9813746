package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"telegram-virtual-number/internal/application"
	"telegram-virtual-number/internal/domain"
	"telegram-virtual-number/internal/infra/metrics"
	"telegram-virtual-number/internal/usecase"
)

type cbHandler func(ctx context.Context, userID int64, arg string) (application.Reply, error)

type prefixCB struct {
	Prefix string
	Fn     cbHandler
}

func (r *RealTelegramBotAdapter) cbRoutes() map[string]cbHandler {
	f := r.facade
	return map[string]cbHandler{
		application.CBHome:         screen(f.MainMenu),
		application.CBLanguage:     screen(f.LanguageMenu),
		application.CBProviders:    screen(f.ProvidersMenu),
		application.CBWallet:       screen(f.Wallet),
		application.CBTopUp:        screen(f.StartTopUp),
		application.CBWalletHist:   screen(f.WalletHistory),
		application.CBSupport:      screen(f.Support),
		application.CBOrders:       screen(f.OrderHistory),
		application.CBActiveOrders: screen(f.ActiveOrders),
		application.CBBuyTemp:      screen(f.BuyTemporary),
		application.CBBuyPerm:      screen(f.BuyPermanent),
		application.CBConfirmBuy:   screen(f.ConfirmPurchase),
	}
}

// Prefix-match callbacks; the handler receives the data after the prefix.
func (r *RealTelegramBotAdapter) cbPrefixRoutes() []prefixCB {
	f := r.facade
	return []prefixCB{
		{Prefix: application.PrefixLang, Fn: f.SetLanguage},
		{Prefix: application.PrefixProvider, Fn: f.SetProvider},
		{Prefix: application.PrefixServicePage, Fn: paged(f.Services)},
		{Prefix: application.PrefixService, Fn: f.ChooseService},
		{Prefix: application.PrefixCountryPage, Fn: paged(f.Countries)},
		{Prefix: application.PrefixCountry, Fn: f.ChooseCountry},
		{Prefix: application.PrefixOperator, Fn: f.ChooseOperator},
		{Prefix: application.PrefixStatus, Fn: r.statusCBRoute},
		{Prefix: application.PrefixApprove, Fn: r.decideCBRoute(true)},
		{Prefix: application.PrefixReject, Fn: r.decideCBRoute(false)},
	}
}

func (r *RealTelegramBotAdapter) handleQuery(ctx context.Context, query *tgbotapi.CallbackQuery) error {
	if r.ack != nil {
		defer r.ack(query.ID)
	}
	if query.From == nil {
		return nil
	}
	userID := query.From.ID
	chatID := userID
	if query.Message != nil && query.Message.Chat != nil {
		chatID = query.Message.Chat.ID
	}
	if !r.allow(ctx, userID, "cb") {
		return r.respond(ctx, chatID, userID, application.Reply{}, domain.ErrRateLimited)
	}

	handler, arg, route, ok := r.matchCallback(query.Data)
	if !ok {
		return fmt.Errorf("unknown callback data %q", query.Data)
	}
	metrics.IncTelegramCallback(route)
	rep, err := handler(ctx, userID, arg)
	return r.respond(ctx, chatID, userID, rep, err)
}

// matchCallback resolves data to a handler, its argument and a route label
// for metrics.
func (r *RealTelegramBotAdapter) matchCallback(data string) (cbHandler, string, string, bool) {
	if h, ok := r.cbRoutes()[data]; ok {
		return h, "", data, true
	}
	for _, p := range r.cbPrefixRoutes() {
		if strings.HasPrefix(data, p.Prefix) {
			return p.Fn, strings.TrimPrefix(data, p.Prefix), p.Prefix, true
		}
	}
	return nil, "", "", false
}

// statusCBRoute handles "st:{action}:{provider}:{orderID}".
func (r *RealTelegramBotAdapter) statusCBRoute(ctx context.Context, userID int64, arg string) (application.Reply, error) {
	parts := strings.SplitN(arg, ":", 3)
	if len(parts) != 3 || parts[1] == "" || parts[2] == "" {
		return application.Reply{}, fmt.Errorf("%w: status callback %q", domain.ErrInvalidArgument, arg)
	}
	return r.facade.OrderAction(ctx, userID, usecase.OrderAction(parts[0]), parts[1], parts[2])
}

func (r *RealTelegramBotAdapter) decideCBRoute(approve bool) cbHandler {
	return func(ctx context.Context, userID int64, id string) (application.Reply, error) {
		if id == "" {
			return application.Reply{}, fmt.Errorf("%w: empty top-up id", domain.ErrInvalidArgument)
		}
		return r.facade.DecideTopUp(ctx, userID, id, approve)
	}
}

func screen(fn func(context.Context, int64) (application.Reply, error)) cbHandler {
	return func(ctx context.Context, userID int64, _ string) (application.Reply, error) {
		return fn(ctx, userID)
	}
}

func paged(fn func(context.Context, int64, int) (application.Reply, error)) cbHandler {
	return func(ctx context.Context, userID int64, arg string) (application.Reply, error) {
		page, err := strconv.Atoi(arg)
		if err != nil || page < 0 {
			return application.Reply{}, fmt.Errorf("%w: page %q", domain.ErrInvalidArgument, arg)
		}
		return fn(ctx, userID, page)
	}
}
