package repo

import (
	"context"

	"github.com/jackc/pgx/v5"

	"clothdonate/internal/domain"
	"clothdonate/internal/infra"
	"clothdonate/internal/sqlinline"
)

// OrganizationRepositoryPG implements domain.OrganizationRepository.
type OrganizationRepositoryPG struct {
	db infra.SQLExecutor
}

// Create inserts an organization. Unique user or business number conflicts
// surface as domain.ErrDuplicateOperation.
func (r *OrganizationRepositoryPG) Create(ctx context.Context, o *domain.Organization) error {
	_, err := r.db.Exec(ctx, sqlinline.QInsertOrganization, o.ID, o.UserID, o.Name, o.BusinessNumber, string(o.Status), o.CreatedAt)
	return translate(err)
}

func (r *OrganizationRepositoryPG) GetByID(ctx context.Context, id string) (*domain.Organization, error) {
	return scanOrganization(r.db.QueryRow(ctx, sqlinline.QGetOrganization, id))
}

func (r *OrganizationRepositoryPG) GetByUserID(ctx context.Context, userID string) (*domain.Organization, error) {
	return scanOrganization(r.db.QueryRow(ctx, sqlinline.QGetOrganizationByUser, userID))
}

// GetForUpdate locks the row until the surrounding transaction ends.
func (r *OrganizationRepositoryPG) GetForUpdate(ctx context.Context, id string) (*domain.Organization, error) {
	return scanOrganization(r.db.QueryRow(ctx, sqlinline.QLockOrganization, id))
}

// UpdateStatus changes status only while it still equals from.
func (r *OrganizationRepositoryPG) UpdateStatus(ctx context.Context, id string, from, to domain.OrganStatus) error {
	tag, err := r.db.Exec(ctx, sqlinline.QUpdateOrganizationStatus, id, string(from), string(to))
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrStaleState
	}
	return nil
}

// ListByStatus returns organizations in status, oldest first.
func (r *OrganizationRepositoryPG) ListByStatus(ctx context.Context, status domain.OrganStatus, limit int) ([]domain.Organization, error) {
	rows, err := r.db.Query(ctx, sqlinline.QListOrganizationsByStatus, string(status), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.Organization
	for rows.Next() {
		o, err := scanOrganization(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func scanOrganization(row pgx.Row) (*domain.Organization, error) {
	var o domain.Organization
	var status string
	if err := row.Scan(&o.ID, &o.UserID, &o.Name, &o.BusinessNumber, &status, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, translate(err)
	}
	o.Status = domain.OrganStatus(status)
	return &o, nil
}
