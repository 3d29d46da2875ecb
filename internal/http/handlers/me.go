package handlers

import (
	"net/http"

	"clothdonate/internal/lifecycle"
)

type profileRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// SyncMe provisions the caller's user row from the token subject.
func (a *App) SyncMe(w http.ResponseWriter, r *http.Request) {
	actor, ok := a.actor(w, r)
	if !ok {
		return
	}
	var req profileRequest
	if !a.decode(w, r, &req) {
		return
	}
	u, err := a.Engine.EnsureUser(r.Context(), actor, lifecycle.ProfileInput{Email: req.Email, Name: req.Name})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, viewUser(u))
}
