package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/diagnosis/rental-bookings/internal/lifecycle"
	"github.com/diagnosis/rental-bookings/pkg/config"
	"github.com/diagnosis/rental-bookings/pkg/events"
	"github.com/diagnosis/rental-bookings/pkg/logger"
	"github.com/diagnosis/rental-bookings/services/bookings/internal/domain"
	"github.com/diagnosis/rental-bookings/services/bookings/internal/repository"
)

var (
	ErrBookingNotFound    = errors.New("booking not found")
	ErrPropertyNotFound   = errors.New("property not found")
	ErrPropertyInactive   = errors.New("property is not accepting bookings")
	ErrActionNotPermitted = errors.New("action not permitted for caller at this time")
	ErrActionInFlight     = errors.New("a ledger write for this booking is already in flight")
	ErrNoActiveDeadline   = errors.New("booking has no active deadline")
)

type BookingService interface {
	GetView(ctx context.Context, id int64, caller lifecycle.Identity, now int64) (*domain.BookingView, error)
	ListForCaller(ctx context.Context, caller lifecycle.Identity, as lifecycle.Role, limit, offset int, status *lifecycle.Status, now int64) ([]domain.BookingView, error)
	Countdown(ctx context.Context, id int64, now int64) (*domain.CountdownDTO, error)
	Quote(ctx context.Context, req domain.QuoteRequest, now int64) (*domain.QuoteResponse, error)
	RequestAction(ctx context.Context, id int64, caller lifecycle.Identity, kind lifecycle.ActionKind, now int64) (*domain.ActionResponse, error)
}

type bookingService struct {
	bookingRepo  repository.BookingRepository
	propertyRepo repository.PropertyRepository
	pendingRepo  repository.PendingRepository
	publisher    events.Publisher
	config       *config.Config
}

func NewBookingService(
	bookingRepo repository.BookingRepository,
	propertyRepo repository.PropertyRepository,
	pendingRepo repository.PendingRepository,
	publisher events.Publisher,
	config *config.Config,
) BookingService {
	return &bookingService{
		bookingRepo:  bookingRepo,
		propertyRepo: propertyRepo,
		pendingRepo:  pendingRepo,
		publisher:    publisher,
		config:       config,
	}
}

func (s *bookingService) GetView(ctx context.Context, id int64, caller lifecycle.Identity, now int64) (*domain.BookingView, error) {
	booking, property, pending, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return buildView(booking, property, caller, pending, now)
}

// load fetches the booking, then its property and in-flight marker together.
func (s *bookingService) load(ctx context.Context, id int64) (*domain.Booking, *domain.Property, bool, error) {
	booking, err := s.bookingRepo.GetByID(ctx, id)
	if err != nil {
		return nil, nil, false, fmt.Errorf("failed to get booking: %w", err)
	}
	if booking == nil {
		return nil, nil, false, ErrBookingNotFound
	}

	var (
		property *domain.Property
		pending  bool
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := s.propertyRepo.GetByID(gctx, booking.PropertyID)
		if err != nil {
			return fmt.Errorf("failed to get property: %w", err)
		}
		property = p
		return nil
	})
	g.Go(func() error {
		action, _, err := s.pendingRepo.Get(gctx, booking.ID)
		if err != nil {
			return fmt.Errorf("failed to read pending state: %w", err)
		}
		pending = action != ""
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, false, err
	}
	return booking, property, pending, nil
}

func (s *bookingService) ListForCaller(ctx context.Context, caller lifecycle.Identity, as lifecycle.Role, limit, offset int, status *lifecycle.Status, now int64) ([]domain.BookingView, error) {
	var (
		bookings []domain.Booking
		err      error
	)
	switch as {
	case lifecycle.RoleHost:
		bookings, err = s.bookingRepo.ListByHost(ctx, caller, limit, offset, status)
	default:
		bookings, err = s.bookingRepo.ListByGuest(ctx, caller, limit, offset, status)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}

	properties := make(map[string]*domain.Property)
	views := make([]domain.BookingView, 0, len(bookings))
	for i := range bookings {
		b := &bookings[i]

		p, ok := properties[b.PropertyID]
		if !ok {
			if p, err = s.propertyRepo.GetByID(ctx, b.PropertyID); err != nil {
				return nil, fmt.Errorf("failed to get property: %w", err)
			}
			properties[b.PropertyID] = p
		}

		action, _, err := s.pendingRepo.Get(ctx, b.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to read pending state: %w", err)
		}

		view, err := buildView(b, p, caller, action != "", now)
		if err != nil {
			// One bad ledger record must not hide the rest of the list.
			logger.ErrorContext(ctx, "Skipping malformed booking", "error", err, "booking_id", b.ID)
			continue
		}
		views = append(views, *view)
	}
	return views, nil
}

func (s *bookingService) Countdown(ctx context.Context, id int64, now int64) (*domain.CountdownDTO, error) {
	booking, err := s.bookingRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	if booking == nil {
		return nil, ErrBookingNotFound
	}

	lb := booking.ToLifecycle()
	if err := lb.Validate(); err != nil {
		return nil, err
	}
	deadline, ok := lb.ActiveDeadline()
	if !ok {
		return nil, ErrNoActiveDeadline
	}
	return countdown(deadline, now), nil
}

func (s *bookingService) Quote(ctx context.Context, req domain.QuoteRequest, now int64) (*domain.QuoteResponse, error) {
	property, err := s.propertyRepo.GetByID(ctx, req.PropertyID)
	if err != nil {
		return nil, fmt.Errorf("failed to get property: %w", err)
	}
	if property == nil {
		return nil, ErrPropertyNotFound
	}
	if !property.IsActive {
		return nil, ErrPropertyInactive
	}

	q, err := lifecycle.Quote(property.PricePerNight, req.CheckIn, req.CheckOut, now)
	if err != nil {
		return nil, err
	}

	return &domain.QuoteResponse{
		PropertyID:    property.ID,
		CheckIn:       req.CheckIn,
		CheckOut:      req.CheckOut,
		Nights:        q.Nights,
		PricePerNight: domain.FormatAmount(q.PricePerNight),
		Total:         domain.FormatAmount(q.Total),
		PlatformFee:   domain.FormatAmount(q.PlatformFee),
		HostAmount:    domain.FormatAmount(q.HostAmount),
		Estimate:      true,
	}, nil
}

// RequestAction gates a transition and hands it to the ledger side. The
// projection is left untouched; it changes only when the ledger reports back.
func (s *bookingService) RequestAction(ctx context.Context, id int64, caller lifecycle.Identity, kind lifecycle.ActionKind, now int64) (*domain.ActionResponse, error) {
	booking, property, pending, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if pending {
		return nil, ErrActionInFlight
	}

	actions, err := lifecycle.AvailableActions(booking.ToLifecycle(), property.ToLifecycle(), caller, now, false)
	if err != nil {
		return nil, err
	}
	if !lifecycle.Permits(actions, kind) {
		return nil, ErrActionNotPermitted
	}

	requestID := uuid.NewString()
	marked, err := s.pendingRepo.Mark(ctx, booking.ID, string(kind), requestID, s.config.Lifecycle.PendingTxTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to mark pending action: %w", err)
	}
	if !marked {
		return nil, ErrActionInFlight
	}

	event := events.LedgerTxRequestedEvent{
		RequestID:       requestID,
		BookingID:       booking.ID,
		Action:          string(kind),
		Method:          kind.LedgerMethod(),
		Caller:          string(caller),
		ChainID:         s.config.Chain.ChainID,
		ContractAddress: s.config.Chain.ContractAddress,
		RequestedAt:     time.Unix(now, 0).UTC(),
	}
	if err := s.publisher.Publish(ctx, events.LedgerTxRequested, event); err != nil {
		if cerr := s.pendingRepo.Clear(ctx, booking.ID); cerr != nil {
			logger.ErrorContext(ctx, "Failed to clear pending action", "error", cerr, "booking_id", booking.ID)
		}
		return nil, fmt.Errorf("failed to publish ledger request: %w", err)
	}

	logger.InfoContext(ctx, "Ledger action requested",
		"booking_id", booking.ID,
		"action", kind,
		"request_id", requestID,
	)

	return &domain.ActionResponse{
		RequestID: requestID,
		BookingID: booking.ID,
		Action:    string(kind),
		Method:    kind.LedgerMethod(),
		ChainID:   s.config.Chain.ChainID,
		Status:    "requested",
	}, nil
}
