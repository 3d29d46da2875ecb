package handlers

import (
	"time"

	"clothdonate/internal/domain"
)

type userView struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Locale    string    `json:"locale,omitempty"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

func viewUser(u *domain.User) userView {
	return userView{ID: u.ID, Email: u.Email, Name: u.Name, Locale: u.Locale, Role: string(u.Role), CreatedAt: u.CreatedAt}
}

type organizationView struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	Name           string    `json:"name"`
	BusinessNumber string    `json:"business_number"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func viewOrganization(o *domain.Organization) organizationView {
	return organizationView{
		ID:             o.ID,
		UserID:         o.UserID,
		Name:           o.Name,
		BusinessNumber: o.BusinessNumber,
		Status:         string(o.Status),
		CreatedAt:      o.CreatedAt,
		UpdatedAt:      o.UpdatedAt,
	}
}

func viewOrganizations(orgs []domain.Organization) []organizationView {
	out := make([]organizationView, 0, len(orgs))
	for i := range orgs {
		out = append(out, viewOrganization(&orgs[i]))
	}
	return out
}

type donationView struct {
	ID                      string    `json:"id"`
	DonorID                 string    `json:"donor_id"`
	ItemDescription         string    `json:"item_description"`
	Status                  string    `json:"status"`
	MatchType               string    `json:"match_type,omitempty"`
	RequestedOrganizationID *string   `json:"requested_organization_id"`
	OrganizationID          *string   `json:"organization_id"`
	CreatedAt               time.Time `json:"created_at"`
	UpdatedAt               time.Time `json:"updated_at"`
}

func viewDonation(d *domain.Donation) donationView {
	return donationView{
		ID:                      d.ID,
		DonorID:                 d.DonorID,
		ItemDescription:         d.ItemDescription,
		Status:                  string(d.Status),
		MatchType:               string(d.MatchType),
		RequestedOrganizationID: d.RequestedOrganizationID,
		OrganizationID:          d.OrganizationID,
		CreatedAt:               d.CreatedAt,
		UpdatedAt:               d.UpdatedAt,
	}
}

func viewDonations(ds []domain.Donation) []donationView {
	out := make([]donationView, 0, len(ds))
	for i := range ds {
		out = append(out, viewDonation(&ds[i]))
	}
	return out
}

type contactView struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type deliveryView struct {
	ID             string      `json:"id"`
	DonationID     string      `json:"donation_id"`
	Status         string      `json:"status"`
	Sender         contactView `json:"sender"`
	Receiver       contactView `json:"receiver"`
	TrackingNumber *string     `json:"tracking_number"`
	Carrier        *string     `json:"carrier"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

func viewDelivery(dl *domain.Delivery) *deliveryView {
	if dl == nil {
		return nil
	}
	return &deliveryView{
		ID:             dl.ID,
		DonationID:     dl.DonationID,
		Status:         string(dl.Status),
		Sender:         contactView{Name: dl.Sender.Name, Email: dl.Sender.Email},
		Receiver:       contactView{Name: dl.Receiver.Name, Email: dl.Receiver.Email},
		TrackingNumber: dl.TrackingNumber,
		Carrier:        dl.Carrier,
		CreatedAt:      dl.CreatedAt,
		UpdatedAt:      dl.UpdatedAt,
	}
}

type relatedView struct {
	Kind string `json:"kind"`
	ID   string `json:"id"`
}

type notificationView struct {
	ID        string       `json:"id"`
	Type      string       `json:"type"`
	Title     string       `json:"title"`
	Message   string       `json:"message"`
	IsRead    bool         `json:"is_read"`
	Related   *relatedView `json:"related,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
	ReadAt    *time.Time   `json:"read_at"`
}

func viewNotifications(ns []domain.Notification) []notificationView {
	out := make([]notificationView, 0, len(ns))
	for _, n := range ns {
		v := notificationView{
			ID:        n.ID,
			Type:      string(n.Type),
			Title:     n.Title,
			Message:   n.Message,
			IsRead:    n.IsRead,
			CreatedAt: n.CreatedAt,
			ReadAt:    n.ReadAt,
		}
		if n.Related != nil {
			v.Related = &relatedView{Kind: string(n.Related.Kind), ID: n.Related.ID}
		}
		out = append(out, v)
	}
	return out
}
