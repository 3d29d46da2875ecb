package domain

import "time"

// DonationStatus enumerates the donation lifecycle states.
type DonationStatus string

const (
	DonationStatusPending    DonationStatus = "PENDING"
	DonationStatusInProgress DonationStatus = "IN_PROGRESS"
	DonationStatusShipped    DonationStatus = "SHIPPED"
	DonationStatusCompleted  DonationStatus = "COMPLETED"
	DonationStatusCancelled  DonationStatus = "CANCELLED"
)

// Valid reports whether s is one of the known donation statuses.
func (s DonationStatus) Valid() bool {
	switch s {
	case DonationStatusPending, DonationStatusInProgress, DonationStatusShipped,
		DonationStatusCompleted, DonationStatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transition may leave s.
func (s DonationStatus) Terminal() bool {
	return s == DonationStatusCompleted || s == DonationStatusCancelled
}

// MatchType records who chose the receiving organization.
type MatchType string

const (
	MatchTypeDirect   MatchType = "DIRECT"
	MatchTypeIndirect MatchType = "INDIRECT"
)

// Valid reports whether m is a known match type.
func (m MatchType) Valid() bool {
	return m == MatchTypeDirect || m == MatchTypeIndirect
}

// Donation represents a donor's clothing package tracked until delivery.
type Donation struct {
	ID              string
	DonorID         string
	ItemDescription string
	Status          DonationStatus
	// MatchType is empty until a request names an organization or a match happens.
	MatchType MatchType
	// RequestedOrganizationID is the organization the donor asked for, if any.
	RequestedOrganizationID *string
	// OrganizationID is set once, on PENDING -> IN_PROGRESS.
	OrganizationID *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Matched reports whether an organization has been assigned.
func (d Donation) Matched() bool {
	return d.OrganizationID != nil && *d.OrganizationID != ""
}
