package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"clothdonate/internal/domain"
	"clothdonate/internal/lifecycle"
)

type registerOrganizationRequest struct {
	Name           string `json:"name"`
	BusinessNumber string `json:"business_number"`
}

func (a *App) OrganizationsRegister(w http.ResponseWriter, r *http.Request) {
	actor, ok := a.actor(w, r)
	if !ok {
		return
	}
	var req registerOrganizationRequest
	if !a.decode(w, r, &req) {
		return
	}
	org, err := a.Engine.RegisterOrganization(r.Context(), actor, lifecycle.RegisterOrganizationInput{
		Name:           req.Name,
		BusinessNumber: req.BusinessNumber,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusCreated, viewOrganization(org))
}

func (a *App) OrganizationsPending(w http.ResponseWriter, r *http.Request) {
	actor, ok := a.actor(w, r)
	if !ok {
		return
	}
	orgs, err := a.Engine.ListPendingOrganizations(r.Context(), actor, limit(r))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"items": viewOrganizations(orgs)})
}

func (a *App) OrganizationsApproved(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.actor(w, r); !ok {
		return
	}
	orgs, err := a.Engine.ListApprovedOrganizations(r.Context(), limit(r))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"items": viewOrganizations(orgs)})
}

func (a *App) OrganizationsGet(w http.ResponseWriter, r *http.Request) {
	actor, ok := a.actor(w, r)
	if !ok {
		return
	}
	org, err := a.Engine.GetOrganization(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, viewOrganization(org))
}

func (a *App) OrganizationsApprove(w http.ResponseWriter, r *http.Request) {
	a.decideOrganization(w, r, a.Engine.Approve)
}

func (a *App) OrganizationsReject(w http.ResponseWriter, r *http.Request) {
	a.decideOrganization(w, r, a.Engine.Reject)
}

type decision func(ctx context.Context, actor lifecycle.Actor, orgID string) (*domain.Organization, error)

func (a *App) decideOrganization(w http.ResponseWriter, r *http.Request, decide decision) {
	actor, ok := a.actor(w, r)
	if !ok {
		return
	}
	org, err := decide(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, viewOrganization(org))
}
