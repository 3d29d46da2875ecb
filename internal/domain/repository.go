package domain

import (
	"context"
	"time"
)

// UserRepository defines access methods for users.
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id string) (*User, error)
}

// DonationRepository handles donation persistence.
type DonationRepository interface {
	Create(ctx context.Context, donation *Donation) error
	GetByID(ctx context.Context, id string) (*Donation, error)
	// GetForUpdate loads the donation and holds its row lock until the
	// surrounding transaction ends.
	GetForUpdate(ctx context.Context, id string) (*Donation, error)
	// UpdateStatus moves the donation to `to` only if it is currently `from`.
	// ErrStaleState is returned when no row matched.
	UpdateStatus(ctx context.Context, id string, from, to DonationStatus) error
	// AssignOrganization sets the organization and match type and moves a
	// PENDING, unmatched donation to IN_PROGRESS.
	AssignOrganization(ctx context.Context, id, organizationID string, matchType MatchType) error
	// SetRequestedOrganization sets or clears the requested organization of a PENDING donation.
	SetRequestedOrganization(ctx context.Context, id string, organizationID *string, matchType MatchType) error
	ListByDonor(ctx context.Context, donorID string, limit int) ([]Donation, error)
	ListByOrganization(ctx context.Context, organizationID string, limit int) ([]Donation, error)
}

// OrganizationRepository handles organization persistence.
type OrganizationRepository interface {
	Create(ctx context.Context, org *Organization) error
	GetByID(ctx context.Context, id string) (*Organization, error)
	GetByUserID(ctx context.Context, userID string) (*Organization, error)
	GetForUpdate(ctx context.Context, id string) (*Organization, error)
	UpdateStatus(ctx context.Context, id string, from, to OrganStatus) error
	// ListByStatus returns organizations oldest first.
	ListByStatus(ctx context.Context, status OrganStatus, limit int) ([]Organization, error)
}

// DeliveryRepository handles delivery persistence.
type DeliveryRepository interface {
	Create(ctx context.Context, delivery *Delivery) error
	GetByID(ctx context.Context, id string) (*Delivery, error)
	GetByDonationID(ctx context.Context, donationID string) (*Delivery, error)
	GetForUpdate(ctx context.Context, id string) (*Delivery, error)
	UpdateStatus(ctx context.Context, id string, from, to DeliveryStatus) error
	SetTracking(ctx context.Context, id string, trackingNumber, carrier *string) error
}

// NotificationRepository handles notification persistence.
type NotificationRepository interface {
	// Insert stores the notification unless one with the same recipient and
	// dedupe key exists; in that case the stored row is returned and created is false.
	Insert(ctx context.Context, n *Notification) (stored *Notification, created bool, err error)
	GetByID(ctx context.Context, id string) (*Notification, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]Notification, error)
	CountUnread(ctx context.Context, userID string) (int, error)
	// MarkRead is a no-op for notifications that are already read.
	MarkRead(ctx context.Context, id string, at time.Time) error
	MarkAllRead(ctx context.Context, userID string, at time.Time) (int64, error)
}

// Repositories groups the repositories bound to one unit of work.
type Repositories struct {
	Users         UserRepository
	Donations     DonationRepository
	Organizations OrganizationRepository
	Deliveries    DeliveryRepository
	Notifications NotificationRepository
}

// UnitOfWork runs fn inside one all-or-nothing transaction. Any error returned
// by fn rolls back every write made through the supplied repositories.
type UnitOfWork interface {
	InTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
	// Repos returns repositories bound to no transaction; every call commits
	// on its own and takes no row locks.
	Repos() Repositories
}
