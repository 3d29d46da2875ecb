package lifecycle

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"clothdonate/internal/domain"
)

// CancelDonation cancels a non-terminal donation. Before a match only the
// donor (or an admin) may cancel; afterwards the matched organization or an
// admin. A non-terminal delivery is cancelled with it.
func (e *Engine) CancelDonation(ctx context.Context, actor Actor, donationID string) (donation *domain.Donation, err error) {
	ctx, span := e.start(ctx, "CancelDonation", attribute.String("donation.id", donationID))
	defer func() { endSpan(span, err) }()

	var from domain.DonationStatus
	err = e.store.InTx(ctx, func(ctx context.Context, repos domain.Repositories) error {
		d, err := repos.Donations.GetForUpdate(ctx, donationID)
		if err != nil {
			return err
		}
		parties, org, err := partiesFor(ctx, repos, d.DonorID, d.OrganizationID)
		if err != nil {
			return err
		}
		if !e.mayCancel(actor, d, org) {
			return domain.ErrUnauthorized
		}
		if _, err := donationTransition(d, DonationEventCancel); err != nil {
			return err
		}
		from = d.Status
		if err := e.cancelLocked(ctx, repos, actor, d, parties); err != nil {
			return err
		}
		donation = d
		return nil
	})
	if err != nil {
		return nil, e.rejected("CancelDonation", err)
	}
	e.logger.Info().
		Str("donation_id", donation.ID).
		Str("from", string(from)).
		Str("to", string(donation.Status)).
		Msg("lifecycle: donation cancelled")
	return donation, nil
}

func (e *Engine) mayCancel(actor Actor, d *domain.Donation, org *domain.Organization) bool {
	if e.auth.IsAdmin(actor) {
		return true
	}
	if !d.Matched() {
		return e.auth.OwnsDonation(actor, *d)
	}
	return org != nil && e.auth.OwnsOrganization(actor, *org)
}

// cancelLocked moves a locked donation and its delivery to CANCELLED and
// notifies both parties. The donation row must already be locked.
func (e *Engine) cancelLocked(ctx context.Context, repos domain.Repositories, actor Actor, d *domain.Donation, parties Parties) error {
	next, err := donationTransition(d, DonationEventCancel)
	if err != nil {
		return err
	}
	if err := repos.Donations.UpdateStatus(ctx, d.ID, d.Status, next); err != nil {
		if errors.Is(err, domain.ErrStaleState) {
			return &domain.TransitionError{Entity: domain.EntityDonation, ID: d.ID, From: string(d.Status), Event: string(DonationEventCancel)}
		}
		return err
	}
	d.Status = next
	d.UpdatedAt = e.now()

	if d.Matched() {
		dl, err := repos.Deliveries.GetByDonationID(ctx, d.ID)
		if err != nil {
			return fmt.Errorf("load delivery for donation %s: %w", d.ID, err)
		}
		if !dl.Status.Terminal() {
			dl, err = repos.Deliveries.GetForUpdate(ctx, dl.ID)
			if err != nil {
				return err
			}
			dnext, err := deliveryTransition(dl, DeliveryEventCancel)
			if err != nil {
				return err
			}
			if err := repos.Deliveries.UpdateStatus(ctx, dl.ID, dl.Status, dnext); err != nil {
				if errors.Is(err, domain.ErrStaleState) {
					return &domain.TransitionError{Entity: domain.EntityDelivery, ID: dl.ID, From: string(dl.Status), Event: string(DeliveryEventCancel)}
				}
				return err
			}
		}
	}

	return e.emit(ctx, repos, actor, notice{
		kind:       domain.EntityDonation,
		entityID:   d.ID,
		event:      eventCancelled,
		typ:        domain.NotificationGeneral,
		messageKey: "donation.cancelled",
		params:     map[string]string{"item": d.ItemDescription},
		related:    domain.EntityRef{Kind: domain.EntityDonation, ID: d.ID},
	}, parties)
}

// GetDonation returns a donation visible to the caller.
func (e *Engine) GetDonation(ctx context.Context, actor Actor, donationID string) (*domain.Donation, error) {
	repos := e.store.Repos()
	d, err := repos.Donations.GetByID(ctx, donationID)
	if err != nil {
		return nil, err
	}
	ok, err := e.canView(ctx, repos, actor, d)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrUnauthorized
	}
	return d, nil
}

// canView reports whether actor is the admin, the donor, or the user behind
// the matched or requested organization.
func (e *Engine) canView(ctx context.Context, repos domain.Repositories, actor Actor, d *domain.Donation) (bool, error) {
	if e.auth.IsAdmin(actor) || e.auth.OwnsDonation(actor, *d) {
		return true, nil
	}
	for _, orgID := range []*string{d.OrganizationID, d.RequestedOrganizationID} {
		if orgID == nil || *orgID == "" {
			continue
		}
		org, err := repos.Organizations.GetByID(ctx, *orgID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			return false, err
		}
		if e.auth.OwnsOrganization(actor, *org) {
			return true, nil
		}
	}
	return false, nil
}

// ListDonations returns the caller's own donations, newest first.
func (e *Engine) ListDonations(ctx context.Context, actor Actor, limit int) ([]domain.Donation, error) {
	return e.store.Repos().Donations.ListByDonor(ctx, actor.UserID, clampLimit(limit))
}

// ListOrganizationDonations returns donations matched to or requested from the
// caller's organization, newest first.
func (e *Engine) ListOrganizationDonations(ctx context.Context, actor Actor, limit int) ([]domain.Donation, error) {
	repos := e.store.Repos()
	org, err := repos.Organizations.GetByUserID(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	return repos.Donations.ListByOrganization(ctx, org.ID, clampLimit(limit))
}
