package adapter

import "context"

// Notifier renders a localized message to a user. key is a translation key;
// button texts are translation keys too.
type Notifier interface {
	Notify(ctx context.Context, userID int64, key string, args ...any) error
	NotifyButtons(ctx context.Context, userID int64, rows [][]InlineButton, key string, args ...any) error
}
