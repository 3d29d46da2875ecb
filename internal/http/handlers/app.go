// Package handlers exposes the lifecycle engine as a JSON API.
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"clothdonate/internal/domain"
	"clothdonate/internal/lifecycle"
	"clothdonate/internal/middleware"
)

const maxBodyBytes = 1 << 20

type App struct {
	Engine *lifecycle.Engine
	Logger zerolog.Logger
}

func NewApp(engine *lifecycle.Engine, logger zerolog.Logger) *App {
	return &App{Engine: engine, Logger: logger}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, errCode, message string) {
	a.json(w, code, map[string]any{
		"error": map[string]string{"code": errCode, "message": message},
	})
}

// fail writes the envelope matching a lifecycle error.
func (a *App) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	if status == http.StatusInternalServerError {
		a.Logger.Error().Err(err).
			Str("request_id", middleware.RequestIDFromContext(r.Context())).
			Str("path", r.URL.Path).
			Msg("request failed")
		a.error(w, status, code, "internal error")
		return
	}
	a.error(w, status, code, err.Error())
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, domain.ErrAlreadyMatched):
		return http.StatusConflict, "already_matched"
	case errors.Is(err, domain.ErrInvalidStateTransition):
		return http.StatusConflict, "invalid_state_transition"
	case errors.Is(err, domain.ErrDuplicateOperation):
		return http.StatusConflict, "duplicate"
	case errors.Is(err, domain.ErrOrganizationNotEligible):
		return http.StatusUnprocessableEntity, "organization_not_eligible"
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, "invalid_input"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

// actor builds the lifecycle caller from the authenticated principal. A
// locale claim in the token wins over the negotiated request locale.
func (a *App) actor(w http.ResponseWriter, r *http.Request) (lifecycle.Actor, bool) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return lifecycle.Actor{}, false
	}
	locale := p.Locale
	if locale == "" {
		locale = middleware.LocaleFromContext(r.Context())
	}
	return lifecycle.Actor{UserID: p.UserID, Role: p.Role, Locale: locale}, true
}

func (a *App) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return false
	}
	return true
}

// limit reads ?limit=; the engine clamps out-of-range values.
func limit(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil {
		return 0
	}
	return n
}
