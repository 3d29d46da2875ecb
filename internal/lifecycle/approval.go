package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"go.opentelemetry.io/otel/attribute"

	"clothdonate/internal/domain"
)

// RegisterOrganizationInput is an organization signup request.
type RegisterOrganizationInput struct {
	Name           string
	BusinessNumber string
}

// NormalizeBusinessNumber strips separators so "123-45-67890" and
// "1234567890" compare equal.
func NormalizeBusinessNumber(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if unicode.IsDigit(r) || unicode.IsLetter(r) {
			b.WriteRune(unicode.ToUpper(r))
		}
	}
	return b.String()
}

// RegisterOrganization files a PENDING organization for the calling user.
func (e *Engine) RegisterOrganization(ctx context.Context, actor Actor, in RegisterOrganizationInput) (org *domain.Organization, err error) {
	ctx, span := e.start(ctx, "RegisterOrganization", attribute.String("user.id", actor.UserID))
	defer func() { endSpan(span, err) }()

	name := strings.TrimSpace(in.Name)
	number := NormalizeBusinessNumber(in.BusinessNumber)
	if name == "" || number == "" {
		return nil, e.rejected("RegisterOrganization", fmt.Errorf("%w: name and business number are required", domain.ErrInvalidInput))
	}
	err = e.store.InTx(ctx, func(ctx context.Context, repos domain.Repositories) error {
		if _, err := repos.Users.GetByID(ctx, actor.UserID); err != nil {
			return fmt.Errorf("load user %s: %w", actor.UserID, err)
		}
		existing, err := repos.Organizations.GetByUserID(ctx, actor.UserID)
		switch {
		case err == nil:
			return fmt.Errorf("%w: user %s already owns organization %s", domain.ErrDuplicateOperation, actor.UserID, existing.ID)
		case !errors.Is(err, domain.ErrNotFound):
			return err
		}
		now := e.now()
		org = &domain.Organization{
			ID:             e.newID(),
			UserID:         actor.UserID,
			Name:           name,
			BusinessNumber: number,
			Status:         domain.OrganStatusPending,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		return repos.Organizations.Create(ctx, org)
	})
	if err != nil {
		return nil, e.rejected("RegisterOrganization", err)
	}
	e.logger.Info().Str("organization_id", org.ID).Str("user_id", org.UserID).Msg("lifecycle: organization registered")
	return org, nil
}

// Approve moves a PENDING organization to APPROVED and tells its user.
func (e *Engine) Approve(ctx context.Context, actor Actor, orgID string) (*domain.Organization, error) {
	return e.decide(ctx, actor, orgID, OrganEventApprove)
}

// Reject moves a PENDING organization to REJECTED and tells its user.
func (e *Engine) Reject(ctx context.Context, actor Actor, orgID string) (*domain.Organization, error) {
	return e.decide(ctx, actor, orgID, OrganEventReject)
}

func (e *Engine) decide(ctx context.Context, actor Actor, orgID string, ev OrganEvent) (org *domain.Organization, err error) {
	op := "Approve"
	n := notice{event: eventApproved, typ: domain.NotificationOrganApproved, messageKey: "organization.approved"}
	if ev == OrganEventReject {
		op = "Reject"
		n = notice{event: eventRejected, typ: domain.NotificationGeneral, messageKey: "organization.rejected"}
	}
	ctx, span := e.start(ctx, op, attribute.String("organization.id", orgID))
	defer func() { endSpan(span, err) }()

	if !e.auth.IsAdmin(actor) {
		return nil, e.rejected(op, domain.ErrUnauthorized)
	}
	var from domain.OrganStatus
	err = e.store.InTx(ctx, func(ctx context.Context, repos domain.Repositories) error {
		o, err := repos.Organizations.GetForUpdate(ctx, orgID)
		if err != nil {
			return err
		}
		next, err := organTransition(o, ev)
		if err != nil {
			return err
		}
		if err := repos.Organizations.UpdateStatus(ctx, o.ID, o.Status, next); err != nil {
			if errors.Is(err, domain.ErrStaleState) {
				return &domain.TransitionError{Entity: domain.EntityOrganization, ID: o.ID, From: string(o.Status), Event: string(ev)}
			}
			return err
		}
		from = o.Status
		o.Status = next
		o.UpdatedAt = e.now()
		org = o

		n.kind = domain.EntityOrganization
		n.entityID = o.ID
		n.params = map[string]string{"organization": o.Name}
		n.related = domain.EntityRef{Kind: domain.EntityOrganization, ID: o.ID}
		return e.emit(ctx, repos, actor, n, Parties{OrganizationUserID: o.UserID})
	})
	if err != nil {
		return nil, e.rejected(op, err)
	}
	e.logger.Info().
		Str("organization_id", org.ID).
		Str("from", string(from)).
		Str("to", string(org.Status)).
		Msg("lifecycle: organization decided")
	return org, nil
}

// ListPendingOrganizations returns the moderation queue, oldest request first.
func (e *Engine) ListPendingOrganizations(ctx context.Context, actor Actor, limit int) (orgs []domain.Organization, err error) {
	ctx, span := e.start(ctx, "ListPendingOrganizations")
	defer func() { endSpan(span, err) }()

	if !e.auth.IsAdmin(actor) {
		return nil, domain.ErrUnauthorized
	}
	return e.store.Repos().Organizations.ListByStatus(ctx, domain.OrganStatusPending, clampLimit(limit))
}

// GetOrganization returns an organization to its owner or an admin. Approved
// organizations are visible to everyone so donors can pick one.
func (e *Engine) GetOrganization(ctx context.Context, actor Actor, orgID string) (*domain.Organization, error) {
	org, err := e.store.Repos().Organizations.GetByID(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if org.Eligible() || e.auth.IsAdmin(actor) || e.auth.OwnsOrganization(actor, *org) {
		return org, nil
	}
	return nil, domain.ErrUnauthorized
}

// ListApprovedOrganizations returns organizations that can receive donations.
func (e *Engine) ListApprovedOrganizations(ctx context.Context, limit int) ([]domain.Organization, error) {
	return e.store.Repos().Organizations.ListByStatus(ctx, domain.OrganStatusApproved, clampLimit(limit))
}
