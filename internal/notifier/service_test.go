package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type memRepo struct {
	bots    []Bot
	history []History
}

func (m *memRepo) ActiveBotsFor(_ context.Context, typ string) ([]Bot, error) {
	var out []Bot
	for _, b := range m.bots {
		if b.IsActive && b.Subscribed(typ) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *memRepo) InsertHistory(_ context.Context, h History) (History, error) {
	h.ID = int64(len(m.history) + 1)
	m.history = append(m.history, h)
	return h, nil
}

func (m *memRepo) ListHistory(_ context.Context, _, _ int) ([]History, error) {
	return m.history, nil
}

type stubTransport struct {
	failTokens map[string]bool
	sent       []string
}

func (t *stubTransport) SendMessage(_ context.Context, botToken, chatID, text string) error {
	if t.failTokens[botToken] {
		return fmt.Errorf("%w: status 403", ErrTelegram)
	}
	t.sent = append(t.sent, chatID+"|"+text)
	return nil
}

func newTestService(repo *memRepo, transport TransportPort) *Service {
	return NewService(repo, transport, slog.Default())
}

func TestSendRoutesBySubscription(t *testing.T) {
	repo := &memRepo{bots: []Bot{
		{ID: 1, ChatID: "-100", BotToken: "a", NotificationTypes: []string{TypeLowStock, TypePaymentDue}, IsActive: true},
		{ID: 2, ChatID: "-200", BotToken: "b", NotificationTypes: []string{TypePaymentDue}, IsActive: true},
		{ID: 3, ChatID: "-300", BotToken: "c", NotificationTypes: []string{TypeLowStock}, IsActive: false},
	}}
	transport := &stubTransport{}
	svc := newTestService(repo, transport)

	result, err := svc.Send(context.Background(), TypeLowStock, "Остатки", "Игрушки заканчиваются", PriorityHigh)
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Equal(t, 1, result.SentTo)
	require.Equal(t, 0, result.Failed)
	require.Len(t, transport.sent, 1)
	require.Contains(t, transport.sent[0], "-100|")
	require.Contains(t, transport.sent[0], "<b>Остатки</b>")
	require.Contains(t, transport.sent[0], "Высокий приоритет")

	require.Len(t, repo.history, 1)
	h := repo.history[0]
	require.Equal(t, TypeLowStock, h.NotificationType)
	require.Equal(t, "Остатки", *h.Title)
	require.True(t, h.Success)
}

func TestSendCountsFailuresWithoutRetry(t *testing.T) {
	repo := &memRepo{bots: []Bot{
		{ID: 1, ChatID: "-100", BotToken: "good", NotificationTypes: []string{TypeSystem}, IsActive: true},
		{ID: 2, ChatID: "-200", BotToken: "bad", NotificationTypes: []string{TypeSystem}, IsActive: true},
	}}
	transport := &stubTransport{failTokens: map[string]bool{"bad": true}}
	svc := newTestService(repo, transport)

	result, err := svc.Send(context.Background(), TypeSystem, "", "проверка", PriorityLow)
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Equal(t, 1, result.SentTo)
	require.Equal(t, 1, result.Failed)
	require.Len(t, transport.sent, 1, "failed bot must not be retried")

	var details []DeliveryDetail
	require.NoError(t, json.Unmarshal(repo.history[0].Data, &details))
	require.Len(t, details, 2)
	require.True(t, details[0].OK)
	require.False(t, details[1].OK)
	require.Contains(t, details[1].Error, "403")
}

func TestSendWithoutSubscribersFailsButRecords(t *testing.T) {
	repo := &memRepo{}
	svc := newTestService(repo, &stubTransport{})

	result, err := svc.Send(context.Background(), TypeDayClose, "", "итоги", "")
	require.NoError(t, err)
	require.False(t, result.Success)
	require.Equal(t, 0, result.SentTo)
	require.Len(t, repo.history, 1)
	require.False(t, repo.history[0].Success)
	require.Equal(t, PriorityMedium, repo.history[0].Priority)
}

func TestSendRejectsUnknownPriority(t *testing.T) {
	svc := newTestService(&memRepo{}, &stubTransport{})
	_, err := svc.Send(context.Background(), TypeSystem, "", "x", Priority("urgent"))
	require.ErrorIs(t, err, ErrBadPriority)
}

func TestTelegramClientPosting(t *testing.T) {
	var got sendMessageRequest
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	tg := NewTelegram(srv.URL, srv.Client())
	err := tg.SendMessage(context.Background(), "token123", "-42", "<b>hi</b>")
	require.NoError(t, err)
	require.Equal(t, "/bottoken123/sendMessage", path)
	require.Equal(t, "-42", got.ChatID)
	require.Equal(t, "<b>hi</b>", got.Text)
	require.Equal(t, "HTML", got.ParseMode)
}

func TestTelegramClientWrapsFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	tg := NewTelegram(srv.URL, srv.Client())
	err := tg.SendMessage(context.Background(), "t", "-1", "x")
	require.ErrorIs(t, err, ErrTelegram)
}

func TestFormatAmountRussianGrouping(t *testing.T) {
	s := FormatAmount(decimal.RequireFromString("12345.6"))
	require.True(t, strings.HasSuffix(s, ",60"), "got %q", s)
	require.Contains(t, s, "12")
	require.Contains(t, s, "345")
	require.NotContains(t, s, "12345")
}
