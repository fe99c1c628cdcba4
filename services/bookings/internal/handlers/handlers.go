package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/diagnosis/rental-bookings/internal/lifecycle"
	"github.com/diagnosis/rental-bookings/pkg/auth"
	"github.com/diagnosis/rental-bookings/pkg/config"
	"github.com/diagnosis/rental-bookings/pkg/logger"
	"github.com/diagnosis/rental-bookings/pkg/response"
	"github.com/diagnosis/rental-bookings/services/bookings/internal/domain"
	"github.com/diagnosis/rental-bookings/services/bookings/internal/service"
)

type Handlers struct {
	bookingService service.BookingService
	config         *config.Config
	validate       *validator.Validate
	now            func() time.Time
}

func New(bookingService service.BookingService, cfg *config.Config) *Handlers {
	return &Handlers{
		bookingService: bookingService,
		config:         cfg,
		validate:       validator.New(validator.WithRequiredStructEnabled()),
		now:            time.Now,
	}
}

// Routes mounts the authenticated API. actionMW wraps only the state-changing
// action endpoint (idempotency, rate limiting).
func (h *Handlers) Routes(actionMW ...func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(h.RequireWallet)

	r.Get("/bookings", h.ListBookings)
	r.Get("/bookings/{id}", h.GetBooking)
	r.Get("/bookings/{id}/countdown", h.GetCountdown)
	r.With(actionMW...).Post("/bookings/{id}/actions", h.RequestAction)
	r.Post("/quotes", h.Quote)

	return r
}

// RequireWallet authenticates a wallet session and puts the caller identity
// on the request context.
func (h *Handlers) RequireWallet(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			response.Unauthorized(w, "Missing or invalid authorization header")
			return
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		claims, err := auth.Parse(token, h.config.Auth.JWTSecret)
		if err != nil {
			response.WriteError(w, http.StatusUnauthorized, "Invalid token", response.CodeInvalidToken)
			return
		}
		if claims.ChainID != h.config.Chain.ChainID {
			response.WriteError(w, http.StatusUnauthorized, "Session was issued for a different chain", response.CodeInvalidToken)
			return
		}

		ctx := context.WithValue(r.Context(), logger.WalletKey, string(lifecycle.NewIdentity(claims.Wallet)))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func callerFrom(r *http.Request) lifecycle.Identity {
	if wallet, ok := r.Context().Value(logger.WalletKey).(string); ok {
		return lifecycle.NewIdentity(wallet)
	}
	return ""
}

func bookingID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id < 0 {
		return 0, false
	}
	return id, true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func parsePagination(r *http.Request) (limit, offset int) {
	limit = domain.DefaultPageSize

	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= domain.MaxPageSize {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	return limit, offset
}

// writeServiceError maps service and lifecycle errors onto HTTP responses.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		verr      *lifecycle.ValidationError
		malformed *lifecycle.MalformedBookingError
	)

	switch {
	case errors.As(err, &verr):
		code := response.CodeInvalidInput
		switch verr.Reason {
		case lifecycle.ReasonPastCheckIn:
			code = response.CodePastDateTime
		case lifecycle.ReasonInvalidRange:
			code = response.CodeInvalidRange
		case lifecycle.ReasonTooShort:
			code = response.CodeTooShort
		}
		response.WriteError(w, http.StatusBadRequest, verr.Error(), code)
	case errors.Is(err, lifecycle.ErrInvalidPrice):
		response.WriteError(w, http.StatusBadGateway, "Property price is invalid", response.CodeMalformedLedgerData)
	case errors.As(err, &malformed):
		logger.ErrorContext(r.Context(), "Malformed ledger data", "error", err)
		response.WriteErrorWithDetails(w, http.StatusBadGateway, "Booking record from ledger is inconsistent", response.CodeMalformedLedgerData, malformed.Field)
	case errors.Is(err, service.ErrBookingNotFound):
		response.NotFound(w, "Booking not found")
	case errors.Is(err, service.ErrPropertyNotFound):
		response.NotFound(w, "Property not found")
	case errors.Is(err, service.ErrNoActiveDeadline):
		response.NotFound(w, "Booking has no active deadline")
	case errors.Is(err, service.ErrPropertyInactive):
		response.WriteError(w, http.StatusUnprocessableEntity, "Property is not accepting bookings", response.CodePropertyInactive)
	case errors.Is(err, service.ErrActionNotPermitted):
		response.WriteError(w, http.StatusForbidden, "Action not permitted", response.CodeActionNotPermitted)
	case errors.Is(err, service.ErrActionInFlight):
		response.WriteError(w, http.StatusConflict, "Another action for this booking is in flight", response.CodeActionInFlight)
	default:
		logger.ErrorContext(r.Context(), "Request failed", "error", err, "path", r.URL.Path)
		response.InternalError(w, "Internal server error")
	}
}
