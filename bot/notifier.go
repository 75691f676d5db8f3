// Package bot exposes the roster over Telegram and implements services.BotNotifier
package bot

import "afterschool-toast/internal/services"

// Notifier wraps the package-level bot functions to implement services.BotNotifier interface
type Notifier struct{}

// NewNotifier creates a new bot notifier
func NewNotifier() *Notifier {
	return &Notifier{}
}

// SendNotification sends a notification to the authorized chat
func (n *Notifier) SendNotification(message string) {
	SendNotification(message)
}

var _ services.BotNotifier = (*Notifier)(nil)
