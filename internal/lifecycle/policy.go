package lifecycle

import "clothdonate/internal/domain"

// Actor is the authenticated caller of an operation.
type Actor struct {
	UserID string
	Role   domain.UserRole
	// Locale is the caller's request locale, used when a recipient has none stored.
	Locale string
}

// Authorizer supplies role and ownership facts. The engine trusts the answers.
type Authorizer interface {
	IsAdmin(actor Actor) bool
	OwnsDonation(actor Actor, donation domain.Donation) bool
	OwnsOrganization(actor Actor, org domain.Organization) bool
}

// RolePolicy answers authorization questions from the actor's claims.
type RolePolicy struct{}

func (RolePolicy) IsAdmin(actor Actor) bool {
	return actor.Role == domain.UserRoleAdmin
}

func (RolePolicy) OwnsDonation(actor Actor, donation domain.Donation) bool {
	return actor.UserID != "" && donation.DonorID == actor.UserID
}

func (RolePolicy) OwnsOrganization(actor Actor, org domain.Organization) bool {
	return actor.UserID != "" && org.UserID == actor.UserID
}
