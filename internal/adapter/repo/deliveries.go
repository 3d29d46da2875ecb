package repo

import (
	"context"

	"github.com/jackc/pgx/v5"

	"clothdonate/internal/domain"
	"clothdonate/internal/infra"
	"clothdonate/internal/sqlinline"
)

// DeliveryRepositoryPG implements domain.DeliveryRepository.
type DeliveryRepositoryPG struct {
	db infra.SQLExecutor
}

// Create inserts a delivery. A second delivery for the same donation
// violates deliveries.donation_id and returns domain.ErrDuplicateOperation.
func (r *DeliveryRepositoryPG) Create(ctx context.Context, dl *domain.Delivery) error {
	_, err := r.db.Exec(ctx, sqlinline.QInsertDelivery,
		dl.ID,
		dl.DonationID,
		string(dl.Status),
		dl.Sender.Name,
		dl.Sender.Email,
		dl.Receiver.Name,
		dl.Receiver.Email,
		dl.TrackingNumber,
		dl.Carrier,
		dl.CreatedAt,
	)
	return translate(err)
}

func (r *DeliveryRepositoryPG) GetByID(ctx context.Context, id string) (*domain.Delivery, error) {
	return scanDelivery(r.db.QueryRow(ctx, sqlinline.QGetDelivery, id))
}

func (r *DeliveryRepositoryPG) GetByDonationID(ctx context.Context, donationID string) (*domain.Delivery, error) {
	return scanDelivery(r.db.QueryRow(ctx, sqlinline.QGetDeliveryByDonation, donationID))
}

func (r *DeliveryRepositoryPG) GetForUpdate(ctx context.Context, id string) (*domain.Delivery, error) {
	return scanDelivery(r.db.QueryRow(ctx, sqlinline.QLockDelivery, id))
}

func (r *DeliveryRepositoryPG) UpdateStatus(ctx context.Context, id string, from, to domain.DeliveryStatus) error {
	tag, err := r.db.Exec(ctx, sqlinline.QUpdateDeliveryStatus, id, string(from), string(to))
	return affected(tag.RowsAffected(), err)
}

func (r *DeliveryRepositoryPG) SetTracking(ctx context.Context, id string, trackingNumber, carrier *string) error {
	tag, err := r.db.Exec(ctx, sqlinline.QSetDeliveryTracking, id, trackingNumber, carrier)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanDelivery(row pgx.Row) (*domain.Delivery, error) {
	var dl domain.Delivery
	var status string
	if err := row.Scan(
		&dl.ID,
		&dl.DonationID,
		&status,
		&dl.Sender.Name,
		&dl.Sender.Email,
		&dl.Receiver.Name,
		&dl.Receiver.Email,
		&dl.TrackingNumber,
		&dl.Carrier,
		&dl.CreatedAt,
		&dl.UpdatedAt,
	); err != nil {
		return nil, translate(err)
	}
	dl.Status = domain.DeliveryStatus(status)
	return &dl, nil
}
