package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/HanZheTing7/ReservelyGithub/internal/model"
)

// NotificationRepository handles persistence for per-user notifications.
type NotificationRepository struct {
	db *pgxpool.Pool
}

// NewNotificationRepository constructs a NotificationRepository.
func NewNotificationRepository(db *pgxpool.Pool) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// CreateNotification inserts a notification record.
func (r *NotificationRepository) CreateNotification(ctx context.Context, n *model.Notification) error {
	query, args, err := build(dialect.Insert(tableNotifications).
		Rows(goqu.Record{
			"id":         n.ID,
			"to_user_id": n.ToUserID,
			"title":      n.Title,
			"message":    n.Message,
			"type":       n.Type,
			"event_id":   n.EventID,
			"created_at": n.CreatedAt,
			"expires_at": n.ExpiresAt,
			"is_read":    n.IsRead,
		}).
		Prepared(true))
	if err != nil {
		return err
	}
	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

// ListNotifications returns a user's notifications, newest first.
func (r *NotificationRepository) ListNotifications(ctx context.Context, userID string) ([]model.Notification, error) {
	query, args, err := build(dialect.From(tableNotifications).
		Select("id", "to_user_id", "title", "message", "type", "event_id", "created_at", "expires_at", "is_read").
		Where(goqu.C("to_user_id").Eq(userID)).
		Order(goqu.C("created_at").Desc()).
		Prepared(true))
	if err != nil {
		return nil, err
	}
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var out []model.Notification
	for rows.Next() {
		var n model.Notification
		if err := rows.Scan(&n.ID, &n.ToUserID, &n.Title, &n.Message, &n.Type, &n.EventID,
			&n.CreatedAt, &n.ExpiresAt, &n.IsRead); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// DeleteNotificationsBefore removes notifications created before cutoff.
func (r *NotificationRepository) DeleteNotificationsBefore(ctx context.Context, cutoff time.Time) (int, error) {
	query, args, err := build(dialect.Delete(tableNotifications).
		Where(goqu.C("created_at").Lt(cutoff)).
		Prepared(true))
	if err != nil {
		return 0, err
	}
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("delete old notifications: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
