// Package notifier routes typed notifications to the Telegram bots
// subscribed to them and records every dispatch in history. Delivery is
// fire-and-forget: failed bots are counted, never retried.
package notifier

import (
	"encoding/json"
	"errors"
	"time"
)

// Notification types the rest of the system emits.
const (
	TypeLowStock   = "low_stock"
	TypePaymentDue = "payment_due"
	TypeSyncError  = "sync_error"
	TypeDayClose   = "day_close"
	TypeSystem     = "system"
)

// Priority orders how loudly a notification is tagged.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Valid reports whether p names a known priority.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Bot is a configured Telegram destination with its subscriptions.
type Bot struct {
	ID                int64    `json:"id" db:"id"`
	ChatID            string   `json:"chat_id" db:"chat_id"`
	BotToken          string   `json:"-" db:"bot_token"`
	NotificationTypes []string `json:"notification_types" db:"notification_types"`
	IsActive          bool     `json:"is_active" db:"is_active"`
}

// Subscribed reports whether the bot receives notifications of typ.
func (b Bot) Subscribed(typ string) bool {
	for _, t := range b.NotificationTypes {
		if t == typ {
			return true
		}
	}
	return false
}

// DeliveryDetail is the per-bot outcome of one dispatch.
type DeliveryDetail struct {
	BotID  int64  `json:"bot_id"`
	ChatID string `json:"chat_id"`
	OK     bool   `json:"ok"`
	Error  string `json:"error,omitempty"`
}

// SendResult summarises one dispatch. Success means at least one bot
// received the message.
type SendResult struct {
	Success bool             `json:"success"`
	SentTo  int              `json:"sent_to"`
	Failed  int              `json:"failed"`
	Details []DeliveryDetail `json:"details"`
}

// History is the persisted record of one dispatch.
type History struct {
	ID               int64           `json:"id" db:"id"`
	NotificationType string          `json:"notification_type" db:"notification_type"`
	Title            *string         `json:"title,omitempty" db:"title"`
	Message          string          `json:"message" db:"message"`
	Priority         Priority        `json:"priority" db:"priority"`
	SentTo           int             `json:"sent_to" db:"sent_to"`
	Failed           int             `json:"failed" db:"failed"`
	Success          bool            `json:"success" db:"success"`
	Data             json.RawMessage `json:"data,omitempty" db:"data"`
	CreatedAt        time.Time       `json:"created_at" db:"created_at"`
}

var (
	// ErrTelegram wraps failures of the Telegram Bot API.
	ErrTelegram = errors.New("notifier: telegram request failed")
	// ErrBadPriority rejects unknown priorities.
	ErrBadPriority = errors.New("notifier: unknown priority")
)
