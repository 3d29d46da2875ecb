package lifecycle

import (
	"context"
	"fmt"
	"strings"
	"time"

	"clothdonate/internal/domain"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// Renderer produces the localized title and message for a catalog key.
type Renderer interface {
	Render(locale, key string, params map[string]string) (title, message string)
}

// NotifyInput is one fully-formed notification request.
type NotifyInput struct {
	UserID    string
	Type      domain.NotificationType
	Title     string
	Message   string
	Related   *domain.EntityRef
	DedupeKey string
}

// Dispatcher is the only path that creates notifications. Notify runs inside
// the caller's transaction so a notification commits with its transition.
type Dispatcher struct {
	uow   domain.UnitOfWork
	clock func() time.Time
	newID func() string
}

// Notify stores one notification. A second call with the same recipient and
// dedupe key returns the stored row instead of creating another.
func (d *Dispatcher) Notify(ctx context.Context, repos domain.Repositories, in NotifyInput) (*domain.Notification, error) {
	userID := strings.TrimSpace(in.UserID)
	if userID == "" {
		return nil, fmt.Errorf("%w: notification recipient is required", domain.ErrInvalidInput)
	}
	if !in.Type.Valid() {
		return nil, fmt.Errorf("%w: unknown notification type %q", domain.ErrInvalidInput, in.Type)
	}
	if strings.TrimSpace(in.Title) == "" {
		return nil, fmt.Errorf("%w: notification title is required", domain.ErrInvalidInput)
	}
	dedupe := strings.TrimSpace(in.DedupeKey)
	if dedupe == "" {
		dedupe = d.newID()
	}
	n := &domain.Notification{
		ID:        d.newID(),
		UserID:    userID,
		Type:      in.Type,
		Title:     in.Title,
		Message:   in.Message,
		Related:   in.Related,
		DedupeKey: dedupe,
		CreatedAt: d.clock().UTC(),
	}
	stored, _, err := repos.Notifications.Insert(ctx, n)
	if err != nil {
		return nil, fmt.Errorf("insert notification: %w", err)
	}
	return stored, nil
}

// MarkRead marks one of userID's notifications as read. Already-read
// notifications are left as they are.
func (d *Dispatcher) MarkRead(ctx context.Context, userID, notificationID string) error {
	repos := d.uow.Repos()
	n, err := repos.Notifications.GetByID(ctx, notificationID)
	if err != nil {
		return err
	}
	if n.UserID != userID {
		return domain.ErrUnauthorized
	}
	if n.IsRead {
		return nil
	}
	return repos.Notifications.MarkRead(ctx, notificationID, d.clock().UTC())
}

// MarkAllRead marks every unread notification of userID as read and returns
// how many changed.
func (d *Dispatcher) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	if strings.TrimSpace(userID) == "" {
		return 0, fmt.Errorf("%w: user id is required", domain.ErrInvalidInput)
	}
	return d.uow.Repos().Notifications.MarkAllRead(ctx, userID, d.clock().UTC())
}

// UnreadCount returns the number of unread notifications for userID.
func (d *Dispatcher) UnreadCount(ctx context.Context, userID string) (int, error) {
	if strings.TrimSpace(userID) == "" {
		return 0, fmt.Errorf("%w: user id is required", domain.ErrInvalidInput)
	}
	return d.uow.Repos().Notifications.CountUnread(ctx, userID)
}

// List returns userID's notifications, newest first.
func (d *Dispatcher) List(ctx context.Context, userID string, limit int) ([]domain.Notification, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: user id is required", domain.ErrInvalidInput)
	}
	return d.uow.Repos().Notifications.ListByUser(ctx, userID, clampLimit(limit))
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultListLimit
	case limit > maxListLimit:
		return maxListLimit
	}
	return limit
}
