package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"clothdonate/internal/lifecycle"
)

type shipmentRequest struct {
	TrackingNumber string `json:"tracking_number"`
	Carrier        string `json:"carrier"`
}

type deliveryResponse struct {
	Delivery *deliveryView `json:"delivery"`
	Donation donationView  `json:"donation"`
}

func (a *App) DeliveriesGet(w http.ResponseWriter, r *http.Request) {
	actor, ok := a.actor(w, r)
	if !ok {
		return
	}
	dl, err := a.Engine.GetDelivery(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, viewDelivery(dl))
}

// DeliveriesShipment records shipment details and moves PENDING to PREPARING.
func (a *App) DeliveriesShipment(w http.ResponseWriter, r *http.Request) {
	actor, ok := a.actor(w, r)
	if !ok {
		return
	}
	var req shipmentRequest
	if !a.decode(w, r, &req) {
		return
	}
	res, err := a.Engine.RecordShipment(r.Context(), actor, chi.URLParam(r, "id"), lifecycle.ShipmentInput{
		TrackingNumber: req.TrackingNumber,
		Carrier:        req.Carrier,
	})
	a.writeStep(w, r, res, err)
}

func (a *App) DeliveriesInTransit(w http.ResponseWriter, r *http.Request) {
	a.step(w, r, a.Engine.MarkInTransit)
}

func (a *App) DeliveriesDelivered(w http.ResponseWriter, r *http.Request) {
	a.step(w, r, a.Engine.MarkDelivered)
}

func (a *App) DeliveriesCancel(w http.ResponseWriter, r *http.Request) {
	a.step(w, r, a.Engine.CancelDelivery)
}

func (a *App) DeliveriesTracking(w http.ResponseWriter, r *http.Request) {
	actor, ok := a.actor(w, r)
	if !ok {
		return
	}
	var req shipmentRequest
	if !a.decode(w, r, &req) {
		return
	}
	dl, err := a.Engine.UpdateTracking(r.Context(), actor, chi.URLParam(r, "id"), lifecycle.ShipmentInput{
		TrackingNumber: req.TrackingNumber,
		Carrier:        req.Carrier,
	})
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, viewDelivery(dl))
}

func (a *App) step(w http.ResponseWriter, r *http.Request, do func(ctx context.Context, actor lifecycle.Actor, deliveryID string) (*lifecycle.DeliveryResult, error)) {
	actor, ok := a.actor(w, r)
	if !ok {
		return
	}
	res, err := do(r.Context(), actor, chi.URLParam(r, "id"))
	a.writeStep(w, r, res, err)
}

func (a *App) writeStep(w http.ResponseWriter, r *http.Request, res *lifecycle.DeliveryResult, err error) {
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, deliveryResponse{Delivery: viewDelivery(res.Delivery), Donation: viewDonation(res.Donation)})
}
