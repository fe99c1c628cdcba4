package handlers

import (
	"net/http"

	"github.com/diagnosis/rental-bookings/pkg/response"
	"github.com/diagnosis/rental-bookings/services/bookings/internal/domain"
)

// Quote prices a prospective stay. Amounts are estimates; the ledger computes
// the binding split at booking time.
func (h *Handlers) Quote(w http.ResponseWriter, r *http.Request) {
	var req domain.QuoteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		response.BadRequest(w, "Invalid JSON format")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		response.WriteErrorWithDetails(w, http.StatusBadRequest, "Validation failed", response.CodeInvalidInput, err.Error())
		return
	}

	q, err := h.bookingService.Quote(r.Context(), req, h.now().Unix())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, q)
}
