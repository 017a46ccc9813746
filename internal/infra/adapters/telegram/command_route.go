package telegram

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"telegram-virtual-number/internal/application"
	"telegram-virtual-number/internal/domain"
	"telegram-virtual-number/internal/infra/metrics"
)

type commandHandler func(ctx context.Context, message *tgbotapi.Message) error

// menuSetter is implemented by outputs that can publish the command menu.
type menuSetter interface {
	SetMenuCommands(ctx context.Context, chatID int64, isAdmin bool) error
}

// commandRoutes defines all available bot commands and their handlers.
func (r *RealTelegramBotAdapter) commandRoutes() map[string]commandHandler {
	return map[string]commandHandler{
		"start":   r.handleStartCommand,
		"help":    r.facadeCommand(r.facade.Help),
		"balance": r.facadeCommand(r.facade.Wallet),
		"orders":  r.facadeCommand(r.facade.ActiveOrders),
		"lang":    r.facadeCommand(r.facade.LanguageMenu),

		"panel": r.adminOnly(r.facadeCommand(r.facade.PanelBalances)),
	}
}

func (r *RealTelegramBotAdapter) handleCommand(ctx context.Context, message *tgbotapi.Message) error {
	cmd := message.Command()
	handler, ok := r.commandRoutes()[cmd]
	if !ok {
		return r.respondTo(ctx, message, r.facade.MainMenu)
	}
	if !r.allow(ctx, message.From.ID, cmd) {
		return r.respond(ctx, message.Chat.ID, message.From.ID, application.Reply{}, domain.ErrRateLimited)
	}
	metrics.IncTelegramCommand(cmd)
	if err := handler(ctx, message); err != nil {
		return fmt.Errorf("command /%s: %w", cmd, err)
	}
	return nil
}

func (r *RealTelegramBotAdapter) adminOnly(next commandHandler) commandHandler {
	return func(ctx context.Context, message *tgbotapi.Message) error {
		if !r.facade.IsAdmin(message.From.ID) {
			metrics.IncAdminCommand("/"+message.Command(), "unauthorized")
			return r.respond(ctx, message.Chat.ID, message.From.ID, application.Reply{}, domain.ErrPermissionDenied)
		}
		metrics.IncAdminCommand("/"+message.Command(), "authorized")
		return next(ctx, message)
	}
}

func (r *RealTelegramBotAdapter) handleStartCommand(ctx context.Context, message *tgbotapi.Message) error {
	if ms, ok := r.out.(menuSetter); ok {
		if err := ms.SetMenuCommands(ctx, message.Chat.ID, r.facade.IsAdmin(message.From.ID)); err != nil {
			r.log.Warn().Err(err).Int64("tg_id", message.From.ID).Msg("failed to set dynamic menu commands")
		}
	}
	return r.respondTo(ctx, message, r.facade.Start)
}

// facadeCommand adapts a facade screen to a command handler.
func (r *RealTelegramBotAdapter) facadeCommand(fn func(context.Context, int64) (application.Reply, error)) commandHandler {
	return func(ctx context.Context, message *tgbotapi.Message) error {
		return r.respondTo(ctx, message, fn)
	}
}

func (r *RealTelegramBotAdapter) respondTo(ctx context.Context, message *tgbotapi.Message, fn func(context.Context, int64) (application.Reply, error)) error {
	rep, err := fn(ctx, message.From.ID)
	return r.respond(ctx, message.Chat.ID, message.From.ID, rep, err)
}
