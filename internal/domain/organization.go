package domain

import "time"

// OrganStatus enumerates organization approval states.
type OrganStatus string

const (
	OrganStatusPending  OrganStatus = "PENDING"
	OrganStatusApproved OrganStatus = "APPROVED"
	OrganStatusRejected OrganStatus = "REJECTED"
)

// Valid reports whether s is a known approval status.
func (s OrganStatus) Valid() bool {
	switch s {
	case OrganStatusPending, OrganStatusApproved, OrganStatusRejected:
		return true
	}
	return false
}

// Organization is a recipient institution account owned by exactly one user.
type Organization struct {
	ID             string
	UserID         string
	Name           string
	BusinessNumber string
	Status         OrganStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Eligible reports whether the organization may receive matches.
func (o Organization) Eligible() bool {
	return o.Status == OrganStatusApproved
}
