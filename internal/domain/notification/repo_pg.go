package notification

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/strokeunit/strokeunit/internal/platform/db"
	"github.com/strokeunit/strokeunit/pkg/apperr"
)

type notificationRepoPG struct{ pool *pgxpool.Pool }

func NewNotificationRepoPG(pool *pgxpool.Pool) Repository { return &notificationRepoPG{pool: pool} }

func (r *notificationRepoPG) conn(ctx context.Context) db.Querier {
	if q := db.QuerierFromContext(ctx); q != nil {
		return q
	}
	return r.pool
}

const notificationCols = `id, user_id, created_at, notification_type, title, message, is_read,
	related_consultation, related_tpa_request, related_url`

func scanNotification(row pgx.Row) (*Notification, error) {
	var n Notification
	err := row.Scan(&n.ID, &n.UserID, &n.CreatedAt, &n.Type, &n.Title, &n.Message, &n.IsRead,
		&n.RelatedConsultation, &n.RelatedTPARequest, &n.RelatedURL)
	return &n, err
}

func (r *notificationRepoPG) Create(ctx context.Context, n *Notification) error {
	n.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO notifications (id, user_id, notification_type, title, message,
			related_consultation, related_tpa_request, related_url)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING created_at`,
		n.ID, n.UserID, n.Type, n.Title, n.Message,
		n.RelatedConsultation, n.RelatedTPARequest, n.RelatedURL,
	).Scan(&n.CreatedAt)
}

func (r *notificationRepoPG) ListByUser(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit, offset int) ([]*Notification, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND (NOT $2 OR NOT is_read)`,
		userID, unreadOnly).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+notificationCols+` FROM notifications
		WHERE user_id = $1 AND (NOT $2 OR NOT is_read)
		ORDER BY created_at DESC LIMIT $3 OFFSET $4`, userID, unreadOnly, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, n)
	}
	return items, total, rows.Err()
}

func (r *notificationRepoPG) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND NOT is_read`, userID).Scan(&n)
	return n, err
}

func (r *notificationRepoPG) GetForUser(ctx context.Context, id, userID uuid.UUID) (*Notification, error) {
	n, err := scanNotification(r.conn(ctx).QueryRow(ctx,
		`SELECT `+notificationCols+` FROM notifications WHERE id = $1 AND user_id = $2`, id, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("notification", id.String())
	}
	return n, err
}

func (r *notificationRepoPG) MarkRead(ctx context.Context, id, userID uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE notifications SET is_read = TRUE WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("notification", id.String())
	}
	return nil
}

func (r *notificationRepoPG) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE notifications SET is_read = TRUE WHERE user_id = $1 AND NOT is_read`, userID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *notificationRepoPG) MarkReadForConsultation(ctx context.Context, userID, consultationID uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `UPDATE notifications SET is_read = TRUE
		WHERE user_id = $1 AND related_consultation = $2 AND NOT is_read`, userID, consultationID)
	return err
}
