package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (a *App) NotificationsList(w http.ResponseWriter, r *http.Request) {
	actor, ok := a.actor(w, r)
	if !ok {
		return
	}
	ns, err := a.Engine.Notifications().List(r.Context(), actor.UserID, limit(r))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"items": viewNotifications(ns)})
}

func (a *App) NotificationsUnreadCount(w http.ResponseWriter, r *http.Request) {
	actor, ok := a.actor(w, r)
	if !ok {
		return
	}
	n, err := a.Engine.Notifications().UnreadCount(r.Context(), actor.UserID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]int{"unread": n})
}

func (a *App) NotificationsMarkRead(w http.ResponseWriter, r *http.Request) {
	actor, ok := a.actor(w, r)
	if !ok {
		return
	}
	if err := a.Engine.Notifications().MarkRead(r.Context(), actor.UserID, chi.URLParam(r, "id")); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *App) NotificationsMarkAllRead(w http.ResponseWriter, r *http.Request) {
	actor, ok := a.actor(w, r)
	if !ok {
		return
	}
	n, err := a.Engine.Notifications().MarkAllRead(r.Context(), actor.UserID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]int64{"updated": n})
}
