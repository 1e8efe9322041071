package notifier

import (
	"context"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists bots and notification history in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ActiveBotsFor returns active bots subscribed to the notification type.
func (r *Repository) ActiveBotsFor(ctx context.Context, typ string) ([]Bot, error) {
	var bots []Bot
	err := pgxscan.Select(ctx, r.pool, &bots,
		`SELECT id, chat_id, bot_token, notification_types, is_active
		 FROM telegram_bots
		 WHERE is_active AND $1 = ANY(notification_types)
		 ORDER BY id`, typ)
	return bots, err
}

// InsertHistory records one dispatch.
func (r *Repository) InsertHistory(ctx context.Context, h History) (History, error) {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO notification_history
			(notification_type, title, message, priority, sent_to, failed, success, data, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id, created_at`,
		h.NotificationType, h.Title, h.Message, h.Priority,
		h.SentTo, h.Failed, h.Success, h.Data, time.Now().UTC()).
		Scan(&h.ID, &h.CreatedAt)
	return h, err
}

// ListHistory returns dispatch records newest first.
func (r *Repository) ListHistory(ctx context.Context, limit, offset int) ([]History, error) {
	var rows []History
	err := pgxscan.Select(ctx, r.pool, &rows,
		`SELECT id, notification_type, title, message, priority,
			sent_to, failed, success, data, created_at
		 FROM notification_history
		 ORDER BY created_at DESC, id DESC
		 LIMIT $1 OFFSET $2`, limit, offset)
	return rows, err
}
