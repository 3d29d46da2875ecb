package domain

import "time"

// NotificationType enumerates the notification kinds. Each type has a fixed
// recipient role; callers pass the recipient explicitly.
type NotificationType string

const (
	NotificationDonationMatched       NotificationType = "DONATION_MATCHED"
	NotificationDeliveryStatusChanged NotificationType = "DELIVERY_STATUS_CHANGED"
	NotificationOrganApproved         NotificationType = "ORGAN_APPROVED"
	NotificationDonationRequested     NotificationType = "DONATION_REQUESTED"
	NotificationDonationApproved      NotificationType = "DONATION_APPROVED"
	NotificationDonationRejected      NotificationType = "DONATION_REJECTED"
	NotificationGeneral               NotificationType = "GENERAL"
)

// Valid reports whether t is a known notification type.
func (t NotificationType) Valid() bool {
	switch t {
	case NotificationDonationMatched, NotificationDeliveryStatusChanged, NotificationOrganApproved,
		NotificationDonationRequested, NotificationDonationApproved, NotificationDonationRejected,
		NotificationGeneral:
		return true
	}
	return false
}

// EntityKind names the entity a notification points back to.
type EntityKind string

const (
	EntityDonation     EntityKind = "DONATION"
	EntityDelivery     EntityKind = "DELIVERY"
	EntityOrganization EntityKind = "ORGANIZATION"
)

// EntityRef is a typed reference to a related entity.
type EntityRef struct {
	Kind EntityKind
	ID   string
}

// Notification is an in-app message addressed to one user.
type Notification struct {
	ID      string
	UserID  string
	Type    NotificationType
	Title   string
	Message string
	IsRead  bool
	Related *EntityRef
	// DedupeKey is unique per recipient and identifies the causing event.
	DedupeKey string
	CreatedAt time.Time
	ReadAt    *time.Time
}
