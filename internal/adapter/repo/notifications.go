package repo

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"clothdonate/internal/domain"
	"clothdonate/internal/infra"
	"clothdonate/internal/sqlinline"
)

// NotificationRepositoryPG implements domain.NotificationRepository.
type NotificationRepositoryPG struct {
	db infra.SQLExecutor
}

// Insert stores n unless the recipient already has a notification with the
// same dedupe key, in which case the existing row is returned.
func (r *NotificationRepositoryPG) Insert(ctx context.Context, n *domain.Notification) (*domain.Notification, bool, error) {
	var kind, relatedID string
	if n.Related != nil {
		kind, relatedID = string(n.Related.Kind), n.Related.ID
	}
	stored, err := scanNotification(r.db.QueryRow(ctx, sqlinline.QInsertNotification,
		n.ID,
		n.UserID,
		string(n.Type),
		n.Title,
		n.Message,
		kind,
		relatedID,
		n.DedupeKey,
		n.CreatedAt,
	))
	if err == nil {
		return stored, true, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, false, err
	}
	// ON CONFLICT DO NOTHING returned no row.
	existing, err := scanNotification(r.db.QueryRow(ctx, sqlinline.QGetNotificationByDedupeKey, n.UserID, n.DedupeKey))
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (r *NotificationRepositoryPG) GetByID(ctx context.Context, id string) (*domain.Notification, error) {
	return scanNotification(r.db.QueryRow(ctx, sqlinline.QGetNotification, id))
}

func (r *NotificationRepositoryPG) ListByUser(ctx context.Context, userID string, limit int) ([]domain.Notification, error) {
	rows, err := r.db.Query(ctx, sqlinline.QListNotificationsByUser, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *NotificationRepositoryPG) CountUnread(ctx context.Context, userID string) (int, error) {
	var count int
	if err := r.db.QueryRow(ctx, sqlinline.QCountUnreadNotifications, userID).Scan(&count); err != nil {
		return 0, translate(err)
	}
	return count, nil
}

// MarkRead is a no-op for notifications that are already read.
func (r *NotificationRepositoryPG) MarkRead(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.Exec(ctx, sqlinline.QMarkNotificationRead, id, at)
	return translate(err)
}

func (r *NotificationRepositoryPG) MarkAllRead(ctx context.Context, userID string, at time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, sqlinline.QMarkAllNotificationsRead, userID, at)
	if err != nil {
		return 0, translate(err)
	}
	return tag.RowsAffected(), nil
}

func scanNotification(row pgx.Row) (*domain.Notification, error) {
	var n domain.Notification
	var typ, kind, relatedID string
	if err := row.Scan(
		&n.ID,
		&n.UserID,
		&typ,
		&n.Title,
		&n.Message,
		&n.IsRead,
		&kind,
		&relatedID,
		&n.DedupeKey,
		&n.CreatedAt,
		&n.ReadAt,
	); err != nil {
		return nil, translate(err)
	}
	n.Type = domain.NotificationType(typ)
	if kind != "" {
		n.Related = &domain.EntityRef{Kind: domain.EntityKind(kind), ID: relatedID}
	}
	return &n, nil
}
