package repo

import (
	"context"

	"github.com/jackc/pgx/v5"

	"clothdonate/internal/domain"
	"clothdonate/internal/infra"
	"clothdonate/internal/sqlinline"
)

// UserRepositoryPG implements domain.UserRepository backed by PostgreSQL.
type UserRepositoryPG struct {
	db infra.SQLExecutor
}

// Create inserts a new user.
func (r *UserRepositoryPG) Create(ctx context.Context, u *domain.User) error {
	role := u.Role
	if role == "" {
		role = domain.UserRoleUser
	}
	_, err := r.db.Exec(ctx, sqlinline.QInsertUser, u.ID, u.Email, u.Name, u.Locale, string(role), u.CreatedAt)
	return translate(err)
}

// GetByID fetches a user by UUID.
func (r *UserRepositoryPG) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return scanUser(r.db.QueryRow(ctx, sqlinline.QGetUser, id))
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	var role string
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Locale, &role, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, translate(err)
	}
	u.Role = domain.UserRole(role)
	return &u, nil
}
