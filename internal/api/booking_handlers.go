package api

import (
	"context"
	"net/http"

	"parkingapi/internal/auth"
	"parkingapi/internal/db"
	"parkingapi/internal/entities"
	"parkingapi/internal/service"
)

type BookingHandler struct {
	Service *service.BookingCoordinator
}

func NewBookingHandler(svc *service.BookingCoordinator) *BookingHandler {
	return &BookingHandler{Service: svc}
}

func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	caller, err := callerOf(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req entities.BookingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	booking, err := h.Service.CreateBooking(r.Context(), caller, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, booking)
}

func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request) {
	caller, err := callerOf(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	bookings, err := h.Service.ListBookings(r.Context(), caller)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bookings)
}

func (h *BookingHandler) ListForUser(w http.ResponseWriter, r *http.Request) {
	caller, err := callerOf(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	userID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	bookings, err := h.Service.ListForUser(r.Context(), caller, userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bookings)
}

func (h *BookingHandler) Get(w http.ResponseWriter, r *http.Request) {
	h.withBooking(w, r, http.StatusOK, h.Service.GetBooking)
}

func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.withBooking(w, r, http.StatusOK, h.Service.CancelBooking)
}

func (h *BookingHandler) Complete(w http.ResponseWriter, r *http.Request) {
	h.withBooking(w, r, http.StatusOK, h.Service.CompleteBooking)
}

func (h *BookingHandler) Update(w http.ResponseWriter, r *http.Request) {
	caller, err := callerOf(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req entities.BookingUpdateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	booking, err := h.Service.UpdateBooking(r.Context(), caller, id, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (h *BookingHandler) Delete(w http.ResponseWriter, r *http.Request) {
	caller, err := callerOf(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.Service.DeleteBooking(r.Context(), caller, id); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Booking deleted"})
}

func (h *BookingHandler) Quote(w http.ResponseWriter, r *http.Request) {
	caller, err := callerOf(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	quote, err := h.Service.Quote(r.Context(), caller, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

type bookingOp func(ctx context.Context, caller auth.Caller, id int64) (*db.BookingDetail, error)

func (h *BookingHandler) withBooking(w http.ResponseWriter, r *http.Request, status int, op bookingOp) {
	caller, err := callerOf(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	booking, err := op(r.Context(), caller, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, status, booking)
}
