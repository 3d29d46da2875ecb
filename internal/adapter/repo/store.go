// Package repo implements the domain repositories on PostgreSQL. Every
// query goes through an infra.SQLExecutor so it is logged by its marker.
package repo

import (
	"context"
	"fmt"

	"clothdonate/internal/domain"
	"clothdonate/internal/infra"
)

// Store is the PostgreSQL domain.UnitOfWork.
type Store struct {
	runner *infra.SQLRunner
}

// NewStore wraps runner.
func NewStore(runner *infra.SQLRunner) *Store {
	return &Store{runner: runner}
}

// InTx runs fn in one database transaction.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, repos domain.Repositories) error) error {
	return s.runner.InTx(ctx, func(ctx context.Context, exec infra.SQLExecutor) error {
		return fn(ctx, Repositories(exec))
	})
}

// Repos returns repositories that run each statement on its own.
func (s *Store) Repos() domain.Repositories {
	return Repositories(s.runner)
}

// Repositories binds every repository to exec.
func Repositories(exec infra.SQLExecutor) domain.Repositories {
	return domain.Repositories{
		Users:         &UserRepositoryPG{db: exec},
		Donations:     &DonationRepositoryPG{db: exec},
		Organizations: &OrganizationRepositoryPG{db: exec},
		Deliveries:    &DeliveryRepositoryPG{db: exec},
		Notifications: &NotificationRepositoryPG{db: exec},
	}
}

// translate maps driver errors onto domain errors. Ids are cast with
// ::uuid, so an id that is not a uuid cannot name a row.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case infra.IsNoRows(err):
		return domain.ErrNotFound
	case infra.IsInvalidText(err):
		return fmt.Errorf("%w: %v", domain.ErrNotFound, err)
	case infra.IsUniqueViolation(err):
		return fmt.Errorf("%w: %v", domain.ErrDuplicateOperation, err)
	}
	return err
}

var _ domain.UnitOfWork = (*Store)(nil)
