package lifecycle

import "clothdonate/internal/domain"

// DonationEvent drives the donation state machine.
type DonationEvent string

const (
	DonationEventMatch     DonationEvent = "match"
	DonationEventShipped   DonationEvent = "ship"
	DonationEventDelivered DonationEvent = "complete"
	DonationEventCancel    DonationEvent = "cancel"
)

// DeliveryEvent drives the delivery pipeline.
type DeliveryEvent string

const (
	DeliveryEventRecordShipment DeliveryEvent = "record_shipment"
	DeliveryEventInTransit      DeliveryEvent = "mark_in_transit"
	DeliveryEventDelivered      DeliveryEvent = "mark_delivered"
	DeliveryEventCancel         DeliveryEvent = "cancel"
)

// OrganEvent drives the organization approval gate.
type OrganEvent string

const (
	OrganEventApprove OrganEvent = "approve"
	OrganEventReject  OrganEvent = "reject"
)

// NextDonationStatus returns the status reached by applying ev to from.
func NextDonationStatus(from domain.DonationStatus, ev DonationEvent) (domain.DonationStatus, bool) {
	switch from {
	case domain.DonationStatusPending:
		switch ev {
		case DonationEventMatch:
			return domain.DonationStatusInProgress, true
		case DonationEventCancel:
			return domain.DonationStatusCancelled, true
		}
	case domain.DonationStatusInProgress:
		switch ev {
		case DonationEventShipped:
			return domain.DonationStatusShipped, true
		case DonationEventCancel:
			return domain.DonationStatusCancelled, true
		}
	case domain.DonationStatusShipped:
		switch ev {
		case DonationEventDelivered:
			return domain.DonationStatusCompleted, true
		case DonationEventCancel:
			return domain.DonationStatusCancelled, true
		}
	case domain.DonationStatusCompleted, domain.DonationStatusCancelled:
	}
	return from, false
}

// NextDeliveryStatus returns the status reached by applying ev to from. Steps
// cannot be skipped.
func NextDeliveryStatus(from domain.DeliveryStatus, ev DeliveryEvent) (domain.DeliveryStatus, bool) {
	switch from {
	case domain.DeliveryStatusPending:
		switch ev {
		case DeliveryEventRecordShipment:
			return domain.DeliveryStatusPreparing, true
		case DeliveryEventCancel:
			return domain.DeliveryStatusCancelled, true
		}
	case domain.DeliveryStatusPreparing:
		switch ev {
		case DeliveryEventInTransit:
			return domain.DeliveryStatusInTransit, true
		case DeliveryEventCancel:
			return domain.DeliveryStatusCancelled, true
		}
	case domain.DeliveryStatusInTransit:
		switch ev {
		case DeliveryEventDelivered:
			return domain.DeliveryStatusDelivered, true
		case DeliveryEventCancel:
			return domain.DeliveryStatusCancelled, true
		}
	case domain.DeliveryStatusDelivered, domain.DeliveryStatusCancelled:
	}
	return from, false
}

// NextOrganStatus returns the approval status reached by ev. Only PENDING
// organizations can be decided.
func NextOrganStatus(from domain.OrganStatus, ev OrganEvent) (domain.OrganStatus, bool) {
	if from != domain.OrganStatusPending {
		return from, false
	}
	switch ev {
	case OrganEventApprove:
		return domain.OrganStatusApproved, true
	case OrganEventReject:
		return domain.OrganStatusRejected, true
	}
	return from, false
}

// CascadeEvent maps a delivery status to the donation event it triggers.
// Reaching PREPARING leaves the donation untouched.
func CascadeEvent(to domain.DeliveryStatus) (DonationEvent, bool) {
	switch to {
	case domain.DeliveryStatusInTransit:
		return DonationEventShipped, true
	case domain.DeliveryStatusDelivered:
		return DonationEventDelivered, true
	case domain.DeliveryStatusCancelled:
		return DonationEventCancel, true
	case domain.DeliveryStatusPending, domain.DeliveryStatusPreparing:
	}
	return "", false
}

func donationTransition(d *domain.Donation, ev DonationEvent) (domain.DonationStatus, error) {
	next, ok := NextDonationStatus(d.Status, ev)
	if !ok {
		return d.Status, &domain.TransitionError{Entity: domain.EntityDonation, ID: d.ID, From: string(d.Status), Event: string(ev)}
	}
	return next, nil
}

func deliveryTransition(dl *domain.Delivery, ev DeliveryEvent) (domain.DeliveryStatus, error) {
	next, ok := NextDeliveryStatus(dl.Status, ev)
	if !ok {
		return dl.Status, &domain.TransitionError{Entity: domain.EntityDelivery, ID: dl.ID, From: string(dl.Status), Event: string(ev)}
	}
	return next, nil
}

func organTransition(o *domain.Organization, ev OrganEvent) (domain.OrganStatus, error) {
	next, ok := NextOrganStatus(o.Status, ev)
	if !ok {
		return o.Status, &domain.TransitionError{Entity: domain.EntityOrganization, ID: o.ID, From: string(o.Status), Event: string(ev)}
	}
	return next, nil
}
