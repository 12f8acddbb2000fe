package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi"
	"github.com/go-chi/render"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/sksmith/stock-ledger/core/inventory"
)

const (
	CtxKeyOrderID CtxKey = "orderID"
)

type ReservationApi struct {
	service inventory.ReservationService
}

func NewReservationApi(service inventory.ReservationService) *ReservationApi {
	return &ReservationApi{service: service}
}

func (a *ReservationApi) ConfigureRouter(r chi.Router) {
	r.Route("/{orderID}/reservation", func(r chi.Router) {
		r.Use(a.OrderCtx)
		r.Get("/", a.List)

		r.Group(func(r chi.Router) {
			r.Use(AdminOnly)
			r.Put("/", a.Reserve)
			r.Post("/confirm", a.Confirm)
			r.Delete("/", a.Release)
		})
	})
}

func (a *ReservationApi) OrderCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
		if orderID == "" {
			Render(w, r, ErrInvalidRequest(errors.New("order id is required")))
			return
		}

		ctx := context.WithValue(r.Context(), CtxKeyOrderID, orderID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *ReservationApi) Reserve(w http.ResponseWriter, r *http.Request) {
	orderID := r.Context().Value(CtxKeyOrderID).(string)

	data := &ReserveOrderRequest{}
	if err := render.Bind(r, data); err != nil {
		Render(w, r, ErrInvalidRequest(err))
		return
	}

	if _, err := a.service.ReserveForOrder(r.Context(), data.Quantities(), orderID); err != nil {
		Render(w, r, ErrFromService(err))
		return
	}

	reservations, err := a.service.Reservations(r.Context(), orderID)
	if err != nil {
		log.Warn().Err(err).Str("orderId", orderID).Msg("reserved but failed to read back reservations")
		reservations = []inventory.Reservation{}
	}

	render.Status(r, http.StatusCreated)
	Render(w, r, NewOrderReservationResponse(orderID, OrderReserved, reservations))
}

func (a *ReservationApi) List(w http.ResponseWriter, r *http.Request) {
	orderID := r.Context().Value(CtxKeyOrderID).(string)

	reservations, err := a.service.Reservations(r.Context(), orderID)
	if err != nil {
		Render(w, r, ErrFromService(err))
		return
	}
	if len(reservations) == 0 {
		Render(w, r, ErrNotFound)
		return
	}

	Render(w, r, NewOrderReservationResponse(orderID, OrderReserved, reservations))
}

func (a *ReservationApi) Confirm(w http.ResponseWriter, r *http.Request) {
	orderID := r.Context().Value(CtxKeyOrderID).(string)

	if err := a.service.ConfirmReservation(r.Context(), orderID); err != nil {
		Render(w, r, ErrFromService(err))
		return
	}

	Render(w, r, NewOrderReservationResponse(orderID, OrderConfirmed, nil))
}

func (a *ReservationApi) Release(w http.ResponseWriter, r *http.Request) {
	orderID := r.Context().Value(CtxKeyOrderID).(string)

	if err := a.service.ReleaseAllForOrder(r.Context(), orderID); err != nil {
		Render(w, r, ErrFromService(err))
		return
	}

	Render(w, r, NewOrderReservationResponse(orderID, OrderReleased, nil))
}
