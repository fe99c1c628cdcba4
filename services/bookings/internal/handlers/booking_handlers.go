package handlers

import (
	"net/http"
	"strconv"

	"github.com/diagnosis/rental-bookings/internal/lifecycle"
	"github.com/diagnosis/rental-bookings/pkg/response"
	"github.com/diagnosis/rental-bookings/services/bookings/internal/domain"
)

// ListBookings returns the caller's bookings, as guest by default or as host
// with ?as=host.
func (h *Handlers) ListBookings(w http.ResponseWriter, r *http.Request) {
	as := lifecycle.RoleGuest
	switch r.URL.Query().Get("as") {
	case "", "guest":
	case "host":
		as = lifecycle.RoleHost
	default:
		response.BadRequest(w, "as must be guest or host")
		return
	}

	var statusPtr *lifecycle.Status
	if raw := r.URL.Query().Get("status"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			response.BadRequest(w, "Invalid status parameter")
			return
		}
		st, ok := lifecycle.ParseStatus(n)
		if !ok {
			response.BadRequest(w, "Invalid status parameter")
			return
		}
		statusPtr = &st
	}

	limit, offset := parsePagination(r)

	views, err := h.bookingService.ListForCaller(r.Context(), callerFrom(r), as, limit, offset, statusPtr, h.now().Unix())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"bookings": views,
		"limit":    limit,
		"offset":   offset,
	})
}

func (h *Handlers) GetBooking(w http.ResponseWriter, r *http.Request) {
	id, ok := bookingID(r)
	if !ok {
		response.BadRequest(w, "Invalid booking ID")
		return
	}

	view, err := h.bookingService.GetView(r.Context(), id, callerFrom(r), h.now().Unix())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, view)
}

func (h *Handlers) GetCountdown(w http.ResponseWriter, r *http.Request) {
	id, ok := bookingID(r)
	if !ok {
		response.BadRequest(w, "Invalid booking ID")
		return
	}

	cd, err := h.bookingService.Countdown(r.Context(), id, h.now().Unix())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, cd)
}

// RequestAction accepts a transition request for the ledger. 202 means the
// call was handed off, not that the status changed.
func (h *Handlers) RequestAction(w http.ResponseWriter, r *http.Request) {
	id, ok := bookingID(r)
	if !ok {
		response.BadRequest(w, "Invalid booking ID")
		return
	}

	var req domain.ActionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		response.BadRequest(w, "Invalid JSON format")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		response.WriteErrorWithDetails(w, http.StatusBadRequest, "Validation failed", response.CodeInvalidInput, err.Error())
		return
	}
	kind, ok := lifecycle.ParseActionKind(req.Action)
	if !ok {
		response.BadRequest(w, "Unknown action")
		return
	}

	resp, err := h.bookingService.RequestAction(r.Context(), id, callerFrom(r), kind, h.now().Unix())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.WriteJSON(w, http.StatusAccepted, resp)
}
