package application

import (
	"context"

	"github.com/rs/zerolog"

	"telegram-virtual-number/internal/domain/ports/adapter"
	"telegram-virtual-number/internal/domain/ports/repository"
	"telegram-virtual-number/internal/infra/i18n"
)

var _ adapter.Notifier = (*Notifier)(nil)

// Notifier renders translation keys in the recipient's language and sends
// them through the bot adapter.
type Notifier struct {
	bot    adapter.TelegramBotAdapter
	prefs  repository.PreferenceRepository
	bundle *i18n.Bundle
	log    *zerolog.Logger
}

func NewNotifier(bot adapter.TelegramBotAdapter, prefs repository.PreferenceRepository, bundle *i18n.Bundle, logger *zerolog.Logger) *Notifier {
	if logger == nil {
		l := zerolog.Nop()
		logger = &l
	}
	return &Notifier{bot: bot, prefs: prefs, bundle: bundle, log: logger}
}

func (n *Notifier) translator(ctx context.Context, userID int64) *i18n.Translator {
	lang, err := n.prefs.GetLang(ctx, userID)
	if err != nil {
		n.log.Debug().Err(err).Int64("user_id", userID).Msg("notifier: language lookup failed, using default")
	}
	return n.bundle.For(lang)
}

func (n *Notifier) Notify(ctx context.Context, userID int64, key string, args ...any) error {
	tr := n.translator(ctx, userID)
	return n.bot.SendMessage(ctx, userID, tr.T(key, args...))
}

// NotifyButtons translates the button texts as keys too.
func (n *Notifier) NotifyButtons(ctx context.Context, userID int64, rows [][]adapter.InlineButton, key string, args ...any) error {
	tr := n.translator(ctx, userID)
	out := make([][]adapter.InlineButton, 0, len(rows))
	for _, row := range rows {
		r := make([]adapter.InlineButton, 0, len(row))
		for _, b := range row {
			b.Text = tr.T(b.Text)
			r = append(r, b)
		}
		out = append(out, r)
	}
	return n.bot.SendButtons(ctx, userID, tr.T(key, args...), out)
}
