package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"clothdonate/internal/domain"
)

// ProfileInput is the contact data the authentication layer knows about a caller.
type ProfileInput struct {
	Email string
	Name  string
}

// EnsureUser returns the caller's user row, creating it on first sight. The
// role and locale come from the actor; an existing row is returned unchanged.
func (e *Engine) EnsureUser(ctx context.Context, actor Actor, in ProfileInput) (user *domain.User, err error) {
	ctx, span := e.start(ctx, "EnsureUser", attribute.String("user.id", actor.UserID))
	defer func() { endSpan(span, err) }()

	if actor.UserID == "" {
		return nil, e.rejected("EnsureUser", domain.ErrUnauthorized)
	}
	email := strings.TrimSpace(in.Email)
	if email == "" {
		return nil, e.rejected("EnsureUser", fmt.Errorf("%w: email is required", domain.ErrInvalidInput))
	}
	role := actor.Role
	if role == "" {
		role = domain.UserRoleUser
	}

	created := false
	err = e.store.InTx(ctx, func(ctx context.Context, repos domain.Repositories) error {
		existing, err := repos.Users.GetByID(ctx, actor.UserID)
		if err == nil {
			user = existing
			return nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		now := e.now()
		user = &domain.User{
			ID:        actor.UserID,
			Email:     email,
			Name:      strings.TrimSpace(in.Name),
			Locale:    actor.Locale,
			Role:      role,
			CreatedAt: now,
			UpdatedAt: now,
		}
		created = true
		return repos.Users.Create(ctx, user)
	})
	if errors.Is(err, domain.ErrDuplicateOperation) {
		// Either a concurrent first request created this user, or the email
		// belongs to someone else.
		existing, getErr := e.store.Repos().Users.GetByID(ctx, actor.UserID)
		if getErr == nil {
			return existing, nil
		}
		if errors.Is(getErr, domain.ErrNotFound) {
			return nil, e.rejected("EnsureUser", err)
		}
		return nil, getErr
	}
	if err != nil {
		return nil, err
	}
	if created {
		e.logger.Info().Str("user_id", user.ID).Msg("user provisioned")
	}
	return user, nil
}
