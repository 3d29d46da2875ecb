package repo

import (
	"context"

	"github.com/jackc/pgx/v5"

	"clothdonate/internal/domain"
	"clothdonate/internal/infra"
	"clothdonate/internal/sqlinline"
)

// DonationRepositoryPG implements domain.DonationRepository using PostgreSQL.
type DonationRepositoryPG struct {
	db infra.SQLExecutor
}

// Create inserts a new donation record.
func (r *DonationRepositoryPG) Create(ctx context.Context, d *domain.Donation) error {
	_, err := r.db.Exec(ctx, sqlinline.QInsertDonation,
		d.ID,
		d.DonorID,
		d.ItemDescription,
		string(d.Status),
		string(d.MatchType),
		d.RequestedOrganizationID,
		d.OrganizationID,
		d.CreatedAt,
	)
	return translate(err)
}

func (r *DonationRepositoryPG) GetByID(ctx context.Context, id string) (*domain.Donation, error) {
	return scanDonation(r.db.QueryRow(ctx, sqlinline.QGetDonation, id))
}

// GetForUpdate locks the donation row until the transaction ends.
func (r *DonationRepositoryPG) GetForUpdate(ctx context.Context, id string) (*domain.Donation, error) {
	return scanDonation(r.db.QueryRow(ctx, sqlinline.QLockDonation, id))
}

func (r *DonationRepositoryPG) UpdateStatus(ctx context.Context, id string, from, to domain.DonationStatus) error {
	tag, err := r.db.Exec(ctx, sqlinline.QUpdateDonationStatus, id, string(from), string(to))
	return affected(tag.RowsAffected(), err)
}

// AssignOrganization matches a PENDING, unmatched donation in one statement.
func (r *DonationRepositoryPG) AssignOrganization(ctx context.Context, id, organizationID string, matchType domain.MatchType) error {
	tag, err := r.db.Exec(ctx, sqlinline.QAssignDonationOrganization, id, organizationID, string(matchType))
	return affected(tag.RowsAffected(), err)
}

func (r *DonationRepositoryPG) SetRequestedOrganization(ctx context.Context, id string, organizationID *string, matchType domain.MatchType) error {
	tag, err := r.db.Exec(ctx, sqlinline.QSetRequestedOrganization, id, organizationID, string(matchType))
	return affected(tag.RowsAffected(), err)
}

func (r *DonationRepositoryPG) ListByDonor(ctx context.Context, donorID string, limit int) ([]domain.Donation, error) {
	return r.list(ctx, sqlinline.QListDonationsByDonor, donorID, limit)
}

func (r *DonationRepositoryPG) ListByOrganization(ctx context.Context, organizationID string, limit int) ([]domain.Donation, error) {
	return r.list(ctx, sqlinline.QListDonationsByOrganization, organizationID, limit)
}

func (r *DonationRepositoryPG) list(ctx context.Context, query, id string, limit int) ([]domain.Donation, error) {
	rows, err := r.db.Query(ctx, query, id, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.Donation
	for rows.Next() {
		d, err := scanDonation(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func scanDonation(row pgx.Row) (*domain.Donation, error) {
	var d domain.Donation
	var status, matchType string
	if err := row.Scan(
		&d.ID,
		&d.DonorID,
		&d.ItemDescription,
		&status,
		&matchType,
		&d.RequestedOrganizationID,
		&d.OrganizationID,
		&d.CreatedAt,
		&d.UpdatedAt,
	); err != nil {
		return nil, translate(err)
	}
	d.Status = domain.DonationStatus(status)
	d.MatchType = domain.MatchType(matchType)
	return &d, nil
}

// affected turns a conditional update that touched no rows into ErrStaleState.
func affected(rows int64, err error) error {
	if err != nil {
		return translate(err)
	}
	if rows == 0 {
		return domain.ErrStaleState
	}
	return nil
}
