package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"clothdonate/internal/lifecycle"
)

type createDonationRequest struct {
	ItemDescription         string `json:"item_description"`
	RequestedOrganizationID string `json:"requested_organization_id"`
}

type matchRequest struct {
	OrganizationID string `json:"organization_id"`
}

type matchResponse struct {
	Donation donationView  `json:"donation"`
	Delivery *deliveryView `json:"delivery"`
}

func (a *App) DonationsCreate(w http.ResponseWriter, r *http.Request) {
	actor, ok := a.actor(w, r)
	if !ok {
		return
	}
	var req createDonationRequest
	if !a.decode(w, r, &req) {
		return
	}
	d, err := a.Engine.CreateDonation(r.Context(), actor, lifecycle.CreateDonationInput{
		ItemDescription:         req.ItemDescription,
		RequestedOrganizationID: req.RequestedOrganizationID,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusCreated, viewDonation(d))
}

// DonationsMine lists the caller's own donations.
func (a *App) DonationsMine(w http.ResponseWriter, r *http.Request) {
	actor, ok := a.actor(w, r)
	if !ok {
		return
	}
	ds, err := a.Engine.ListDonations(r.Context(), actor, limit(r))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"items": viewDonations(ds)})
}

// DonationsForOrganization lists donations matched to or requested from the
// caller's organization.
func (a *App) DonationsForOrganization(w http.ResponseWriter, r *http.Request) {
	actor, ok := a.actor(w, r)
	if !ok {
		return
	}
	ds, err := a.Engine.ListOrganizationDonations(r.Context(), actor, limit(r))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"items": viewDonations(ds)})
}

func (a *App) DonationsGet(w http.ResponseWriter, r *http.Request) {
	actor, ok := a.actor(w, r)
	if !ok {
		return
	}
	d, err := a.Engine.GetDonation(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, viewDonation(d))
}

// DonationsMatch performs a direct match.
func (a *App) DonationsMatch(w http.ResponseWriter, r *http.Request) {
	a.match(w, r, a.Engine.MatchDirect)
}

// DonationsAssign performs an admin (indirect) match.
func (a *App) DonationsAssign(w http.ResponseWriter, r *http.Request) {
	a.match(w, r, a.Engine.MatchIndirect)
}

func (a *App) match(w http.ResponseWriter, r *http.Request, do func(ctx context.Context, actor lifecycle.Actor, donationID, orgID string) (*lifecycle.MatchResult, error)) {
	actor, ok := a.actor(w, r)
	if !ok {
		return
	}
	var req matchRequest
	if !a.decode(w, r, &req) {
		return
	}
	if req.OrganizationID == "" {
		a.error(w, http.StatusBadRequest, "invalid_input", "organization_id is required")
		return
	}
	res, err := do(r.Context(), actor, chi.URLParam(r, "id"), req.OrganizationID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, matchResponse{Donation: viewDonation(res.Donation), Delivery: viewDelivery(res.Delivery)})
}

func (a *App) DonationsDecline(w http.ResponseWriter, r *http.Request) {
	actor, ok := a.actor(w, r)
	if !ok {
		return
	}
	d, err := a.Engine.DeclineRequest(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, viewDonation(d))
}

func (a *App) DonationsCancel(w http.ResponseWriter, r *http.Request) {
	actor, ok := a.actor(w, r)
	if !ok {
		return
	}
	d, err := a.Engine.CancelDonation(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, viewDonation(d))
}

func (a *App) DonationsDelivery(w http.ResponseWriter, r *http.Request) {
	actor, ok := a.actor(w, r)
	if !ok {
		return
	}
	dl, err := a.Engine.GetDeliveryForDonation(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, viewDelivery(dl))
}
