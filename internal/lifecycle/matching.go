package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"clothdonate/internal/domain"
)

// CreateDonationInput is a donor's offer.
type CreateDonationInput struct {
	ItemDescription string
	// RequestedOrganizationID optionally names the organization the donor wants.
	RequestedOrganizationID string
}

// CreateDonation records a PENDING donation for the calling user. A PENDING
// donation is matchable right away; there is no separate approval step.
func (e *Engine) CreateDonation(ctx context.Context, actor Actor, in CreateDonationInput) (donation *domain.Donation, err error) {
	ctx, span := e.start(ctx, "CreateDonation", attribute.String("user.id", actor.UserID))
	defer func() { endSpan(span, err) }()

	desc := strings.TrimSpace(in.ItemDescription)
	if desc == "" {
		return nil, e.rejected("CreateDonation", fmt.Errorf("%w: item description is required", domain.ErrInvalidInput))
	}
	requested := strings.TrimSpace(in.RequestedOrganizationID)

	err = e.store.InTx(ctx, func(ctx context.Context, repos domain.Repositories) error {
		if _, err := repos.Users.GetByID(ctx, actor.UserID); err != nil {
			return fmt.Errorf("load donor %s: %w", actor.UserID, err)
		}
		now := e.now()
		donation = &domain.Donation{
			ID:              e.newID(),
			DonorID:         actor.UserID,
			ItemDescription: desc,
			Status:          domain.DonationStatusPending,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		var org *domain.Organization
		if requested != "" {
			o, err := repos.Organizations.GetByID(ctx, requested)
			if err != nil {
				return fmt.Errorf("load organization %s: %w", requested, err)
			}
			if !o.Eligible() {
				return fmt.Errorf("%w: organization %s is %s", domain.ErrOrganizationNotEligible, o.ID, o.Status)
			}
			org = o
			donation.RequestedOrganizationID = &o.ID
			donation.MatchType = domain.MatchTypeDirect
		}
		if err := repos.Donations.Create(ctx, donation); err != nil {
			return err
		}
		if org == nil {
			return nil
		}
		return e.emit(ctx, repos, actor, notice{
			kind:         domain.EntityDonation,
			entityID:     donation.ID,
			event:        eventRequested,
			dedupeSuffix: org.ID,
			typ:          domain.NotificationDonationRequested,
			messageKey:   "donation.requested",
			params:       map[string]string{"item": desc, "organization": org.Name},
			related:      domain.EntityRef{Kind: domain.EntityDonation, ID: donation.ID},
		}, Parties{DonorID: donation.DonorID, OrganizationUserID: org.UserID})
	})
	if err != nil {
		return nil, e.rejected("CreateDonation", err)
	}
	e.logger.Info().Str("donation_id", donation.ID).Str("donor_id", donation.DonorID).Msg("lifecycle: donation created")
	return donation, nil
}

// MatchResult is the state after a successful match.
type MatchResult struct {
	Donation *domain.Donation
	Delivery *domain.Delivery
}

// MatchDirect assigns a donation to an organization chosen by the donor or
// accepted by the requested organization.
func (e *Engine) MatchDirect(ctx context.Context, actor Actor, donationID, orgID string) (*MatchResult, error) {
	return e.match(ctx, actor, donationID, orgID, domain.MatchTypeDirect)
}

// MatchIndirect assigns a donation to an organization picked by an admin.
func (e *Engine) MatchIndirect(ctx context.Context, actor Actor, donationID, orgID string) (*MatchResult, error) {
	return e.match(ctx, actor, donationID, orgID, domain.MatchTypeIndirect)
}

func (e *Engine) match(ctx context.Context, actor Actor, donationID, orgID string, matchType domain.MatchType) (res *MatchResult, err error) {
	op := "MatchDirect"
	if matchType == domain.MatchTypeIndirect {
		op = "MatchIndirect"
	}
	ctx, span := e.start(ctx, op,
		attribute.String("donation.id", donationID),
		attribute.String("organization.id", orgID),
	)
	defer func() { endSpan(span, err) }()

	err = e.store.InTx(ctx, func(ctx context.Context, repos domain.Repositories) error {
		d, err := repos.Donations.GetForUpdate(ctx, donationID)
		if err != nil {
			return err
		}
		if err := e.authorizeMatch(ctx, repos, actor, d, orgID, matchType); err != nil {
			return err
		}
		if d.Matched() {
			return fmt.Errorf("%w: donation %s", domain.ErrAlreadyMatched, d.ID)
		}
		next, err := donationTransition(d, DonationEventMatch)
		if err != nil {
			return err
		}
		org, err := repos.Organizations.GetByID(ctx, orgID)
		if err != nil {
			return fmt.Errorf("load organization %s: %w", orgID, err)
		}
		if !org.Eligible() {
			return fmt.Errorf("%w: organization %s is %s", domain.ErrOrganizationNotEligible, org.ID, org.Status)
		}
		if err := repos.Donations.AssignOrganization(ctx, d.ID, org.ID, matchType); err != nil {
			if errors.Is(err, domain.ErrStaleState) {
				return fmt.Errorf("%w: donation %s", domain.ErrAlreadyMatched, d.ID)
			}
			return err
		}
		d.Status = next
		d.OrganizationID = &org.ID
		d.MatchType = matchType
		d.UpdatedAt = e.now()

		delivery, err := e.openDelivery(ctx, repos, d, org)
		if err != nil {
			return err
		}
		res = &MatchResult{Donation: d, Delivery: delivery}
		return e.emit(ctx, repos, actor, notice{
			kind:       domain.EntityDonation,
			entityID:   d.ID,
			event:      eventMatched,
			typ:        domain.NotificationDonationMatched,
			messageKey: "donation.matched",
			params:     map[string]string{"item": d.ItemDescription, "organization": org.Name},
			related:    domain.EntityRef{Kind: domain.EntityDonation, ID: d.ID},
		}, Parties{DonorID: d.DonorID, OrganizationUserID: org.UserID})
	})
	if err != nil {
		return nil, e.rejected(op, err)
	}
	e.logger.Info().
		Str("donation_id", res.Donation.ID).
		Str("organization_id", orgID).
		Str("match_type", string(matchType)).
		Str("delivery_id", res.Delivery.ID).
		Msg("lifecycle: donation matched")
	return res, nil
}

func (e *Engine) authorizeMatch(ctx context.Context, repos domain.Repositories, actor Actor, d *domain.Donation, orgID string, matchType domain.MatchType) error {
	if e.auth.IsAdmin(actor) {
		return nil
	}
	if matchType == domain.MatchTypeIndirect {
		return domain.ErrUnauthorized
	}
	if e.auth.OwnsDonation(actor, *d) {
		return nil
	}
	if d.RequestedOrganizationID != nil && *d.RequestedOrganizationID == orgID {
		requested, err := repos.Organizations.GetByID(ctx, orgID)
		if err != nil {
			return fmt.Errorf("load organization %s: %w", orgID, err)
		}
		if e.auth.OwnsOrganization(actor, *requested) {
			return nil
		}
	}
	return domain.ErrUnauthorized
}

// openDelivery creates the PENDING delivery that every matched donation owns.
func (e *Engine) openDelivery(ctx context.Context, repos domain.Repositories, d *domain.Donation, org *domain.Organization) (*domain.Delivery, error) {
	donor, err := repos.Users.GetByID(ctx, d.DonorID)
	if err != nil {
		return nil, fmt.Errorf("load donor %s: %w", d.DonorID, err)
	}
	receiver, err := repos.Users.GetByID(ctx, org.UserID)
	if err != nil {
		return nil, fmt.Errorf("load organization user %s: %w", org.UserID, err)
	}
	now := e.now()
	delivery := &domain.Delivery{
		ID:         e.newID(),
		DonationID: d.ID,
		Status:     domain.DeliveryStatusPending,
		Sender:     donor.Contact(),
		Receiver:   domain.Contact{Name: org.Name, Email: receiver.Email},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := repos.Deliveries.Create(ctx, delivery); err != nil {
		return nil, fmt.Errorf("create delivery: %w", err)
	}
	return delivery, nil
}

// DeclineRequest lets the requested organization turn a direct request down.
// The donation stays PENDING and can be matched elsewhere.
func (e *Engine) DeclineRequest(ctx context.Context, actor Actor, donationID string) (donation *domain.Donation, err error) {
	ctx, span := e.start(ctx, "DeclineRequest", attribute.String("donation.id", donationID))
	defer func() { endSpan(span, err) }()

	err = e.store.InTx(ctx, func(ctx context.Context, repos domain.Repositories) error {
		d, err := repos.Donations.GetForUpdate(ctx, donationID)
		if err != nil {
			return err
		}
		declined := func() error {
			return &domain.TransitionError{Entity: domain.EntityDonation, ID: d.ID, From: string(d.Status), Event: "decline"}
		}
		if d.RequestedOrganizationID == nil {
			if !e.auth.IsAdmin(actor) {
				return domain.ErrUnauthorized
			}
			return declined()
		}
		org, err := repos.Organizations.GetByID(ctx, *d.RequestedOrganizationID)
		if err != nil {
			return fmt.Errorf("load organization %s: %w", *d.RequestedOrganizationID, err)
		}
		if !e.auth.IsAdmin(actor) && !e.auth.OwnsOrganization(actor, *org) {
			return domain.ErrUnauthorized
		}
		if d.Status != domain.DonationStatusPending {
			return declined()
		}
		if err := repos.Donations.SetRequestedOrganization(ctx, d.ID, nil, ""); err != nil {
			if errors.Is(err, domain.ErrStaleState) {
				return declined()
			}
			return err
		}
		d.RequestedOrganizationID = nil
		d.MatchType = ""
		d.UpdatedAt = e.now()
		donation = d
		return e.emit(ctx, repos, actor, notice{
			kind:         domain.EntityDonation,
			entityID:     d.ID,
			event:        eventDeclined,
			dedupeSuffix: org.ID,
			typ:          domain.NotificationDonationRejected,
			messageKey:   "donation.declined",
			params:       map[string]string{"item": d.ItemDescription, "organization": org.Name},
			related:      domain.EntityRef{Kind: domain.EntityDonation, ID: d.ID},
		}, Parties{DonorID: d.DonorID, OrganizationUserID: org.UserID})
	})
	if err != nil {
		return nil, e.rejected("DeclineRequest", err)
	}
	e.logger.Info().Str("donation_id", donation.ID).Msg("lifecycle: donation request declined")
	return donation, nil
}
