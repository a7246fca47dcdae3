package telegram

import "context"

// Notifier pushes plain-text operator messages to a chat. Implementations
// decide formatting and link previews.
type Notifier interface {
	Notify(ctx context.Context, chatID int64, text string) error
}
