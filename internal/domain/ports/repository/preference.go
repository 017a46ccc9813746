package repository

import (
	"context"
)

// PreferenceRepository stores per-user settings picked in the bot: UI locale
// and the selected vendor. Missing values return ("", nil).
type PreferenceRepository interface {
	GetLang(ctx context.Context, tgID int64) (string, error)
	SetLang(ctx context.Context, tgID int64, lang string) error
	GetProvider(ctx context.Context, tgID int64) (string, error)
	SetProvider(ctx context.Context, tgID int64, provider string) error
}
