package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// RepositoryPort is the persistence surface the service needs.
type RepositoryPort interface {
	ActiveBotsFor(ctx context.Context, typ string) ([]Bot, error)
	InsertHistory(ctx context.Context, h History) (History, error)
	ListHistory(ctx context.Context, limit, offset int) ([]History, error)
}

// TransportPort delivers a formatted message to one chat.
type TransportPort interface {
	SendMessage(ctx context.Context, botToken, chatID, text string) error
}

// Service dispatches notifications and records outcomes.
type Service struct {
	repo      RepositoryPort
	transport TransportPort
	logger    *slog.Logger
	now       func() time.Time
}

// NewService constructs a Service.
func NewService(repo RepositoryPort, transport TransportPort, logger *slog.Logger) *Service {
	return &Service{repo: repo, transport: transport, logger: logger, now: time.Now}
}

// Send dispatches the message to every active bot subscribed to typ and
// persists a history row. It succeeds when at least one bot received the
// message; individual failures are recorded, never retried.
func (s *Service) Send(ctx context.Context, typ, title, msg string, priority Priority) (SendResult, error) {
	if priority == "" {
		priority = PriorityMedium
	}
	if !priority.Valid() {
		return SendResult{}, fmt.Errorf("%w: %q", ErrBadPriority, priority)
	}

	bots, err := s.repo.ActiveBotsFor(ctx, typ)
	if err != nil {
		return SendResult{}, err
	}

	text := formatHTML(title, msg, priority, s.now().UTC())
	result := SendResult{Details: make([]DeliveryDetail, 0, len(bots))}
	for _, bot := range bots {
		detail := DeliveryDetail{BotID: bot.ID, ChatID: bot.ChatID}
		if err := s.transport.SendMessage(ctx, bot.BotToken, bot.ChatID, text); err != nil {
			detail.Error = err.Error()
			result.Failed++
			s.logger.Warn("notification delivery failed",
				slog.Int64("bot_id", bot.ID), slog.String("type", typ), slog.Any("error", err))
		} else {
			detail.OK = true
			result.SentTo++
		}
		result.Details = append(result.Details, detail)
	}
	result.Success = result.SentTo > 0

	data, err := json.Marshal(result.Details)
	if err != nil {
		return result, err
	}
	h := History{
		NotificationType: typ,
		Message:          msg,
		Priority:         priority,
		SentTo:           result.SentTo,
		Failed:           result.Failed,
		Success:          result.Success,
		Data:             data,
	}
	if title != "" {
		h.Title = &title
	}
	if _, err := s.repo.InsertHistory(ctx, h); err != nil {
		return result, err
	}
	return result, nil
}

// ListHistory returns dispatch records newest first.
func (s *Service) ListHistory(ctx context.Context, limit, offset int) ([]History, error) {
	return s.repo.ListHistory(ctx, limit, offset)
}

func formatHTML(title, msg string, priority Priority, at time.Time) string {
	var b strings.Builder
	if title != "" {
		fmt.Fprintf(&b, "<b>%s</b>\n\n", html.EscapeString(title))
	}
	b.WriteString(msg)
	fmt.Fprintf(&b, "\n\n<i>%s · %s</i>", priorityLabel(priority), at.Format("02.01.2006 15:04"))
	return b.String()
}

func priorityLabel(p Priority) string {
	switch p {
	case PriorityHigh:
		return "❗ Высокий приоритет"
	case PriorityLow:
		return "Низкий приоритет"
	default:
		return "Средний приоритет"
	}
}

var ruPrinter = message.NewPrinter(language.Russian)

// FormatAmount renders a money amount with Russian digit grouping, e.g.
// "12 345,60".
func FormatAmount(d decimal.Decimal) string {
	f, _ := d.Float64()
	return ruPrinter.Sprint(number.Decimal(f,
		number.MinFractionDigits(2), number.MaxFractionDigits(2)))
}

// FormatCount renders an integer with Russian digit grouping.
func FormatCount(n int64) string {
	return ruPrinter.Sprint(number.Decimal(n))
}
