package lifecycle

import "clothdonate/internal/domain"

// Parties are the users that may be addressed about one donation or organization.
type Parties struct {
	DonorID            string
	OrganizationUserID string
}

// Event names used in dedupe keys and recipient resolution.
const (
	eventRequested = "requested"
	eventDeclined  = "declined"
	eventMatched   = "matched"
	eventCancelled = "cancelled"
	eventApproved  = "approved"
	eventRejected  = "rejected"
)

// ResolveRecipients maps an (entity, event) pair to the users that must be
// told about it. Unknown pairs have no recipients.
func ResolveRecipients(kind domain.EntityKind, event string, p Parties) []string {
	var out []string
	add := func(id string) {
		if id != "" {
			out = append(out, id)
		}
	}
	switch kind {
	case domain.EntityDonation:
		switch event {
		case eventMatched, eventDeclined:
			add(p.DonorID)
		case eventRequested:
			add(p.OrganizationUserID)
		case eventCancelled:
			add(p.DonorID)
			add(p.OrganizationUserID)
		}
	case domain.EntityDelivery:
		switch event {
		case deliveryEventName(domain.DeliveryStatusPreparing),
			deliveryEventName(domain.DeliveryStatusInTransit),
			deliveryEventName(domain.DeliveryStatusDelivered):
			add(p.DonorID)
		}
	case domain.EntityOrganization:
		switch event {
		case eventApproved, eventRejected:
			add(p.OrganizationUserID)
		}
	}
	return out
}

func deliveryEventName(status domain.DeliveryStatus) string {
	switch status {
	case domain.DeliveryStatusPreparing:
		return "preparing"
	case domain.DeliveryStatusInTransit:
		return "in_transit"
	case domain.DeliveryStatusDelivered:
		return "delivered"
	case domain.DeliveryStatusCancelled:
		return "cancelled"
	}
	return "pending"
}

func dedupeKey(kind domain.EntityKind, id, event string) string {
	switch kind {
	case domain.EntityDonation:
		return "donation:" + id + ":" + event
	case domain.EntityDelivery:
		return "delivery:" + id + ":" + event
	case domain.EntityOrganization:
		return "organization:" + id + ":" + event
	}
	return string(kind) + ":" + id + ":" + event
}
