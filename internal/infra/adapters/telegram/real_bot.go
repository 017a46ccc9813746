package telegram

import (
	"context"
	"errors"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"telegram-virtual-number/internal/application"
	"telegram-virtual-number/internal/config"
	"telegram-virtual-number/internal/domain"
	"telegram-virtual-number/internal/domain/ports/adapter"
	"telegram-virtual-number/internal/domain/ports/repository"
	"telegram-virtual-number/internal/infra/metrics"
	red "telegram-virtual-number/internal/infra/redis"
	"telegram-virtual-number/internal/infra/worker"
)

var _ adapter.TelegramBotAdapter = (*RealTelegramBotAdapter)(nil)

// RealTelegramBotAdapter polls updates with tgbotapi, hands each one to the
// worker pool and delegates to the bot facade.
type RealTelegramBotAdapter struct {
	bot         *tgbotapi.BotAPI
	cfg         *config.BotConfig
	facade      application.BotFacadeIface
	rateLimiter repository.RateLimiter
	pool        *worker.Pool
	log         *zerolog.Logger

	// out renders replies; it is the adapter itself outside tests.
	out           adapter.TelegramBotAdapter
	ack           func(queryID string)
	cancelPolling context.CancelFunc
}

// NewRealTelegramBotAdapter connects to the Bot API. The facade is attached
// in StartPolling so the adapter can be handed to the notifier first.
func NewRealTelegramBotAdapter(cfg *config.BotConfig, rateLimiter repository.RateLimiter, pool *worker.Pool, logger *zerolog.Logger) (*RealTelegramBotAdapter, error) {
	if cfg == nil {
		return nil, errors.New("bot config is nil")
	}
	if pool == nil {
		return nil, errors.New("worker pool is nil")
	}
	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		l := zerolog.Nop()
		logger = &l
	}
	l := logger.With().Str("component", "telegram").Str("bot", bot.Self.UserName).Logger()
	r := &RealTelegramBotAdapter{
		bot:         bot,
		cfg:         cfg,
		rateLimiter: rateLimiter,
		pool:        pool,
		log:         &l,
	}
	r.out = r
	r.ack = func(id string) { _, _ = r.bot.Request(tgbotapi.NewCallback(id, "")) }
	return r, nil
}

// StartPolling blocks until ctx is canceled or StopPolling is called.
func (r *RealTelegramBotAdapter) StartPolling(ctx context.Context, facade application.BotFacadeIface) error {
	if facade == nil {
		return errors.New("bot facade is nil")
	}
	r.facade = facade

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := r.bot.GetUpdatesChan(u)

	ctx, cancel := context.WithCancel(ctx)
	r.cancelPolling = cancel
	defer r.bot.StopReceivingUpdates()

	r.log.Info().Msg("telegram polling started")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case up, ok := <-updates:
			if !ok {
				return nil
			}
			if err := r.pool.Submit(func(ctx context.Context) error { return r.handleUpdate(ctx, up) }); err != nil {
				r.log.Warn().Err(err).Int("update_id", up.UpdateID).Msg("update dropped")
			}
		}
	}
}

func (r *RealTelegramBotAdapter) StopPolling() {
	if r.cancelPolling != nil {
		r.cancelPolling()
	}
}

// SendMessage sends plain text to a chat.
func (r *RealTelegramBotAdapter) SendMessage(ctx context.Context, tgID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := r.bot.Send(tgbotapi.NewMessage(tgID, text))
	return err
}

// SendButtons sends a message with inline buttons.
// - If btn.URL is set, the button opens a link
// - Else if btn.Data is set, the button sends callback data
// - Else a safe fallback uses btn.Text as callback data
func (r *RealTelegramBotAdapter) SendButtons(ctx context.Context, tgID int64, text string, rows [][]adapter.InlineButton) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(tgID, text)
	if kb := keyboard(rows); len(kb) > 0 {
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(kb...)
	}
	_, err := r.bot.Send(msg)
	return err
}

func keyboard(rows [][]adapter.InlineButton) [][]tgbotapi.InlineKeyboardButton {
	kbRows := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		kr := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			label := strings.TrimSpace(b.Text)
			if label == "" {
				label = "•"
			}
			switch {
			case b.URL != "":
				kr = append(kr, tgbotapi.NewInlineKeyboardButtonURL(label, b.URL))
			case b.Data != "":
				kr = append(kr, tgbotapi.NewInlineKeyboardButtonData(label, b.Data))
			default:
				kr = append(kr, tgbotapi.NewInlineKeyboardButtonData(label, label))
			}
		}
		kbRows = append(kbRows, kr)
	}
	return kbRows
}

// SetMenuCommands publishes the slash-command menu for one chat; admins get
// the panel command too.
func (r *RealTelegramBotAdapter) SetMenuCommands(ctx context.Context, chatID int64, isAdmin bool) error {
	cmds := []tgbotapi.BotCommand{
		{Command: "start", Description: "Main menu"},
		{Command: "balance", Description: "Wallet balance"},
		{Command: "orders", Description: "Active orders"},
		{Command: "lang", Description: "Language"},
		{Command: "help", Description: "Help"},
	}
	if isAdmin {
		cmds = append(cmds, tgbotapi.BotCommand{Command: "panel", Description: "Provider balances"})
	}
	_, err := r.bot.Request(tgbotapi.NewSetMyCommandsWithScope(tgbotapi.NewBotCommandScopeChat(chatID), cmds...))
	return err
}

// reply forwards a facade answer to the chat.
func (r *RealTelegramBotAdapter) reply(ctx context.Context, chatID int64, rep application.Reply) error {
	if len(rep.Rows) == 0 {
		return r.out.SendMessage(ctx, chatID, rep.Text)
	}
	return r.out.SendButtons(ctx, chatID, rep.Text, rep.Rows)
}

// respond renders either the reply or the localized error.
func (r *RealTelegramBotAdapter) respond(ctx context.Context, chatID, userID int64, rep application.Reply, err error) error {
	if err != nil {
		r.log.Debug().Err(err).Int64("user_id", userID).Msg("handler failed")
		rep = r.facade.ErrorReply(ctx, userID, err)
	}
	return r.reply(ctx, chatID, rep)
}

// allow applies the per-user fixed window limit. Limiter failures let the
// update through.
func (r *RealTelegramBotAdapter) allow(ctx context.Context, userID int64, command string) bool {
	if r.rateLimiter == nil || r.cfg == nil || r.cfg.RateLimit <= 0 {
		return true
	}
	ok, err := r.rateLimiter.Allow(ctx, red.UserCommandKey(userID, command), r.cfg.RateLimit, time.Minute)
	if err != nil {
		r.log.Warn().Err(err).Int64("user_id", userID).Msg("rate limit check failed")
		return true
	}
	if !ok {
		metrics.IncRateLimitTriggered()
	}
	return ok
}

func (r *RealTelegramBotAdapter) handleUpdate(ctx context.Context, update tgbotapi.Update) error {
	if update.CallbackQuery != nil {
		return r.handleQuery(ctx, update.CallbackQuery)
	}
	msg := update.Message
	if msg == nil || msg.From == nil || msg.Chat == nil {
		return nil
	}
	if msg.IsCommand() {
		return r.handleCommand(ctx, msg)
	}
	return r.handleText(ctx, msg)
}

func (r *RealTelegramBotAdapter) handleText(ctx context.Context, msg *tgbotapi.Message) error {
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return nil
	}
	if !r.allow(ctx, msg.From.ID, "message") {
		return r.respond(ctx, msg.Chat.ID, msg.From.ID, application.Reply{}, domain.ErrRateLimited)
	}
	rep, handled, err := r.facade.HandleText(ctx, msg.From.ID, text)
	if !handled && err == nil {
		rep, err = r.facade.MainMenu(ctx, msg.From.ID)
	}
	return r.respond(ctx, msg.Chat.ID, msg.From.ID, rep, err)
}
