package domain

import "time"

// DeliveryStatus enumerates the shipment sub-lifecycle.
type DeliveryStatus string

const (
	DeliveryStatusPending   DeliveryStatus = "PENDING"
	DeliveryStatusPreparing DeliveryStatus = "PREPARING"
	DeliveryStatusInTransit DeliveryStatus = "IN_TRANSIT"
	DeliveryStatusDelivered DeliveryStatus = "DELIVERED"
	DeliveryStatusCancelled DeliveryStatus = "CANCELLED"
)

// Valid reports whether s is a known delivery status.
func (s DeliveryStatus) Valid() bool {
	switch s {
	case DeliveryStatusPending, DeliveryStatusPreparing, DeliveryStatusInTransit,
		DeliveryStatusDelivered, DeliveryStatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether the delivery can no longer change.
func (s DeliveryStatus) Terminal() bool {
	return s == DeliveryStatusDelivered || s == DeliveryStatusCancelled
}

// Contact is a point-in-time copy of a party's contact details.
type Contact struct {
	Name  string
	Email string
}

// Delivery tracks shipment of a matched donation. One per donation.
type Delivery struct {
	ID             string
	DonationID     string
	Status         DeliveryStatus
	Sender         Contact
	Receiver       Contact
	TrackingNumber *string
	Carrier        *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
