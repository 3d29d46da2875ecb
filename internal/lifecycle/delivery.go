package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"clothdonate/internal/domain"
)

// ShipmentInput carries optional tracking metadata.
type ShipmentInput struct {
	TrackingNumber string
	Carrier        string
}

// DeliveryResult is the state of a delivery and its donation after a step.
type DeliveryResult struct {
	Delivery *domain.Delivery
	Donation *domain.Donation
}

// RecordShipment moves a PENDING delivery to PREPARING. The donation stays
// IN_PROGRESS.
func (e *Engine) RecordShipment(ctx context.Context, actor Actor, deliveryID string, in ShipmentInput) (*DeliveryResult, error) {
	return e.advance(ctx, actor, deliveryID, DeliveryEventRecordShipment, &in)
}

// MarkInTransit moves a PREPARING delivery to IN_TRANSIT and ships the donation.
func (e *Engine) MarkInTransit(ctx context.Context, actor Actor, deliveryID string) (*DeliveryResult, error) {
	return e.advance(ctx, actor, deliveryID, DeliveryEventInTransit, nil)
}

// MarkDelivered moves an IN_TRANSIT delivery to DELIVERED and completes the donation.
func (e *Engine) MarkDelivered(ctx context.Context, actor Actor, deliveryID string) (*DeliveryResult, error) {
	return e.advance(ctx, actor, deliveryID, DeliveryEventDelivered, nil)
}

// CancelDelivery cancels a non-terminal delivery together with its donation.
func (e *Engine) CancelDelivery(ctx context.Context, actor Actor, deliveryID string) (*DeliveryResult, error) {
	return e.advance(ctx, actor, deliveryID, DeliveryEventCancel, nil)
}

// lockDelivery locks the parent donation before the delivery so every
// transaction acquires row locks in the same order.
func lockDelivery(ctx context.Context, repos domain.Repositories, deliveryID string) (*domain.Delivery, *domain.Donation, error) {
	peek, err := repos.Deliveries.GetByID(ctx, deliveryID)
	if err != nil {
		return nil, nil, err
	}
	d, err := repos.Donations.GetForUpdate(ctx, peek.DonationID)
	if err != nil {
		return nil, nil, fmt.Errorf("load donation %s: %w", peek.DonationID, err)
	}
	dl, err := repos.Deliveries.GetForUpdate(ctx, deliveryID)
	if err != nil {
		return nil, nil, err
	}
	return dl, d, nil
}

func (e *Engine) authorizeDelivery(actor Actor, org *domain.Organization) error {
	if e.auth.IsAdmin(actor) {
		return nil
	}
	if org != nil && e.auth.OwnsOrganization(actor, *org) {
		return nil
	}
	return domain.ErrUnauthorized
}

func (e *Engine) advance(ctx context.Context, actor Actor, deliveryID string, ev DeliveryEvent, shipment *ShipmentInput) (res *DeliveryResult, err error) {
	op := string(ev)
	ctx, span := e.start(ctx, "Delivery."+op,
		attribute.String("delivery.id", deliveryID),
		attribute.String("delivery.event", op),
	)
	defer func() { endSpan(span, err) }()

	var from domain.DeliveryStatus
	var donationFrom domain.DonationStatus
	err = e.store.InTx(ctx, func(ctx context.Context, repos domain.Repositories) error {
		dl, d, err := lockDelivery(ctx, repos, deliveryID)
		if err != nil {
			return err
		}
		parties, org, err := partiesFor(ctx, repos, d.DonorID, d.OrganizationID)
		if err != nil {
			return err
		}
		if err := e.authorizeDelivery(actor, org); err != nil {
			return err
		}
		next, err := deliveryTransition(dl, ev)
		if err != nil {
			return err
		}
		from, donationFrom = dl.Status, d.Status

		if ev == DeliveryEventCancel {
			// The donation cascade cancels this delivery too.
			if err := e.cancelLocked(ctx, repos, actor, d, parties); err != nil {
				return err
			}
			dl.Status = next
			dl.UpdatedAt = e.now()
			res = &DeliveryResult{Delivery: dl, Donation: d}
			return nil
		}

		dnext := d.Status
		if dev, ok := CascadeEvent(next); ok {
			if dnext, err = donationTransition(d, dev); err != nil {
				return err
			}
		}
		if shipment != nil {
			tracking, carrier := optional(shipment.TrackingNumber), optional(shipment.Carrier)
			if tracking != nil || carrier != nil {
				if err := repos.Deliveries.SetTracking(ctx, dl.ID, tracking, carrier); err != nil {
					return err
				}
				dl.TrackingNumber, dl.Carrier = tracking, carrier
			}
		}
		if err := repos.Deliveries.UpdateStatus(ctx, dl.ID, dl.Status, next); err != nil {
			if errors.Is(err, domain.ErrStaleState) {
				return &domain.TransitionError{Entity: domain.EntityDelivery, ID: dl.ID, From: string(dl.Status), Event: string(ev)}
			}
			return err
		}
		dl.Status = next
		dl.UpdatedAt = e.now()
		if dnext != d.Status {
			if err := repos.Donations.UpdateStatus(ctx, d.ID, d.Status, dnext); err != nil {
				if errors.Is(err, domain.ErrStaleState) {
					return &domain.TransitionError{Entity: domain.EntityDonation, ID: d.ID, From: string(d.Status), Event: string(ev)}
				}
				return err
			}
			d.Status = dnext
			d.UpdatedAt = dl.UpdatedAt
		}
		res = &DeliveryResult{Delivery: dl, Donation: d}

		params := map[string]string{"item": d.ItemDescription}
		if dl.TrackingNumber != nil {
			params["tracking_number"] = *dl.TrackingNumber
		}
		if dl.Carrier != nil {
			params["carrier"] = *dl.Carrier
		}
		event := deliveryEventName(next)
		return e.emit(ctx, repos, actor, notice{
			kind:       domain.EntityDelivery,
			entityID:   dl.ID,
			event:      event,
			typ:        domain.NotificationDeliveryStatusChanged,
			messageKey: "delivery." + event,
			params:     params,
			related:    domain.EntityRef{Kind: domain.EntityDelivery, ID: dl.ID},
		}, parties)
	})
	if err != nil {
		return nil, e.rejected("Delivery."+op, err)
	}
	e.logger.Info().
		Str("delivery_id", res.Delivery.ID).
		Str("donation_id", res.Donation.ID).
		Str("from", string(from)).
		Str("to", string(res.Delivery.Status)).
		Str("donation_from", string(donationFrom)).
		Str("donation_to", string(res.Donation.Status)).
		Msg("lifecycle: delivery advanced")
	return res, nil
}

// UpdateTracking fills in tracking metadata on a non-terminal delivery without
// changing its status.
func (e *Engine) UpdateTracking(ctx context.Context, actor Actor, deliveryID string, in ShipmentInput) (dl *domain.Delivery, err error) {
	ctx, span := e.start(ctx, "UpdateTracking", attribute.String("delivery.id", deliveryID))
	defer func() { endSpan(span, err) }()

	tracking, carrier := optional(in.TrackingNumber), optional(in.Carrier)
	if tracking == nil && carrier == nil {
		return nil, e.rejected("UpdateTracking", fmt.Errorf("%w: tracking number or carrier is required", domain.ErrInvalidInput))
	}
	err = e.store.InTx(ctx, func(ctx context.Context, repos domain.Repositories) error {
		locked, d, err := lockDelivery(ctx, repos, deliveryID)
		if err != nil {
			return err
		}
		_, org, err := partiesFor(ctx, repos, d.DonorID, d.OrganizationID)
		if err != nil {
			return err
		}
		if err := e.authorizeDelivery(actor, org); err != nil {
			return err
		}
		if locked.Status.Terminal() {
			return &domain.TransitionError{Entity: domain.EntityDelivery, ID: locked.ID, From: string(locked.Status), Event: "update_tracking"}
		}
		if tracking == nil {
			tracking = locked.TrackingNumber
		}
		if carrier == nil {
			carrier = locked.Carrier
		}
		if err := repos.Deliveries.SetTracking(ctx, locked.ID, tracking, carrier); err != nil {
			return err
		}
		locked.TrackingNumber, locked.Carrier = tracking, carrier
		locked.UpdatedAt = e.now()
		dl = locked
		return nil
	})
	if err != nil {
		return nil, e.rejected("UpdateTracking", err)
	}
	return dl, nil
}

// GetDelivery returns a delivery visible to the caller.
func (e *Engine) GetDelivery(ctx context.Context, actor Actor, deliveryID string) (*domain.Delivery, error) {
	repos := e.store.Repos()
	dl, err := repos.Deliveries.GetByID(ctx, deliveryID)
	if err != nil {
		return nil, err
	}
	if err := e.checkDeliveryVisible(ctx, repos, actor, dl.DonationID); err != nil {
		return nil, err
	}
	return dl, nil
}

// GetDeliveryForDonation returns the delivery of a matched donation.
func (e *Engine) GetDeliveryForDonation(ctx context.Context, actor Actor, donationID string) (*domain.Delivery, error) {
	repos := e.store.Repos()
	if err := e.checkDeliveryVisible(ctx, repos, actor, donationID); err != nil {
		return nil, err
	}
	return repos.Deliveries.GetByDonationID(ctx, donationID)
}

func (e *Engine) checkDeliveryVisible(ctx context.Context, repos domain.Repositories, actor Actor, donationID string) error {
	d, err := repos.Donations.GetByID(ctx, donationID)
	if err != nil {
		return err
	}
	ok, err := e.canView(ctx, repos, actor, d)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrUnauthorized
	}
	return nil
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
