package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/diagnosis/rental-bookings/internal/lifecycle"
	"github.com/diagnosis/rental-bookings/pkg/events"
	"github.com/diagnosis/rental-bookings/pkg/logger"
	"github.com/diagnosis/rental-bookings/services/bookings/internal/domain"
	"github.com/diagnosis/rental-bookings/services/bookings/internal/repository"
)

const handlerTimeout = 5 * time.Second

// LedgerService keeps the local projection in step with the ledger. It is the
// only writer of booking and property rows.
type LedgerService struct {
	bookingRepo  repository.BookingRepository
	propertyRepo repository.PropertyRepository
	pendingRepo  repository.PendingRepository
	publisher    events.Publisher
	now          func() time.Time
}

func NewLedgerService(
	bookingRepo repository.BookingRepository,
	propertyRepo repository.PropertyRepository,
	pendingRepo repository.PendingRepository,
	publisher events.Publisher,
) *LedgerService {
	return &LedgerService{
		bookingRepo:  bookingRepo,
		propertyRepo: propertyRepo,
		pendingRepo:  pendingRepo,
		publisher:    publisher,
		now:          time.Now,
	}
}

// Subscribe registers queue subscriptions so that replicas share the stream.
func (s *LedgerService) Subscribe(sub events.Subscriber, queue string) error {
	handlers := map[string]func(context.Context, []byte) error{
		events.LedgerBookingUpdated: func(ctx context.Context, data []byte) error {
			var e events.LedgerBooking
			if err := json.Unmarshal(data, &e); err != nil {
				return fmt.Errorf("decode booking snapshot: %w", err)
			}
			return s.ApplyBooking(ctx, e)
		},
		events.LedgerPropertyUpdated: func(ctx context.Context, data []byte) error {
			var e events.LedgerProperty
			if err := json.Unmarshal(data, &e); err != nil {
				return fmt.Errorf("decode property snapshot: %w", err)
			}
			return s.ApplyProperty(ctx, e)
		},
		events.LedgerTxSettled: func(ctx context.Context, data []byte) error {
			var e events.LedgerTxSettledEvent
			if err := json.Unmarshal(data, &e); err != nil {
				return fmt.Errorf("decode settled tx: %w", err)
			}
			return s.ApplyTxSettled(ctx, e)
		},
	}

	for subject, handle := range handlers {
		err := sub.QueueSubscribe(subject, queue, func(msg *events.Message) {
			ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
			defer cancel()
			if err := handle(ctx, msg.Data); err != nil {
				logger.Error("Failed to handle ledger event",
					"error", err,
					"subject", msg.Subject,
					"message_id", msg.ID,
				)
			}
		})
		if err != nil {
			return fmt.Errorf("subscribe %s: %w", subject, err)
		}
		logger.Info("Subscribed to ledger events", "subject", subject, "queue", queue)
	}
	return nil
}

func (s *LedgerService) ApplyBooking(ctx context.Context, e events.LedgerBooking) error {
	b, err := bookingFromLedger(e)
	if err != nil {
		return err
	}
	if !b.Status.Valid() {
		logger.WarnContext(ctx, "Ledger reported unknown booking status", "booking_id", b.ID, "status", e.Status)
	}
	if err := b.ToLifecycle().Validate(); err != nil {
		// Stored anyway; readers surface it as malformed ledger data.
		logger.WarnContext(ctx, "Ledger booking snapshot is inconsistent", "booking_id", b.ID, "error", err)
	}

	res, err := s.bookingRepo.Upsert(ctx, b)
	if err != nil {
		return fmt.Errorf("failed to upsert booking %d: %w", b.ID, err)
	}
	if !res.Applied {
		logger.DebugContext(ctx, "Ignoring stale booking snapshot", "booking_id", b.ID, "block", b.LedgerBlock)
		return nil
	}
	if res.Previous == nil || *res.Previous == b.Status {
		return nil
	}

	if err := s.pendingRepo.Clear(ctx, b.ID); err != nil {
		logger.WarnContext(ctx, "Failed to clear pending action", "booking_id", b.ID, "error", err)
	}

	changed := events.BookingStatusChangedEvent{
		BookingID:  b.ID,
		PropertyID: b.PropertyID,
		Guest:      b.Guest,
		From:       int(*res.Previous),
		To:         int(b.Status),
		Label:      b.Status.Label(),
		ChangedAt:  s.now().UTC(),
	}
	if err := s.publisher.Publish(ctx, events.BookingStatusChanged, changed); err != nil {
		return fmt.Errorf("failed to publish status change: %w", err)
	}

	logger.InfoContext(ctx, "Booking status changed",
		"booking_id", b.ID,
		"from", res.Previous.String(),
		"to", b.Status.String(),
	)
	return nil
}

func (s *LedgerService) ApplyProperty(ctx context.Context, e events.LedgerProperty) error {
	price, err := domain.ParseAmount(e.PricePerNight)
	if err != nil {
		return fmt.Errorf("property %s: price_per_night: %w", e.PropertyID, err)
	}
	p := &domain.Property{
		ID:            e.PropertyID,
		Owner:         e.Owner,
		PricePerNight: price,
		IsActive:      e.IsActive,
		URI:           e.PropertyURI,
		TokenAddress:  e.PropertyTokenAddress,
		LedgerBlock:   e.BlockNumber,
	}

	applied, err := s.propertyRepo.Upsert(ctx, p)
	if err != nil {
		return fmt.Errorf("failed to upsert property %s: %w", p.ID, err)
	}
	if !applied {
		logger.DebugContext(ctx, "Ignoring stale property snapshot", "property_id", p.ID, "block", p.LedgerBlock)
	}
	return nil
}

// ApplyTxSettled releases the in-flight marker for the request that settled.
// A marker owned by a newer request is left alone.
func (s *LedgerService) ApplyTxSettled(ctx context.Context, e events.LedgerTxSettledEvent) error {
	cleared, err := s.pendingRepo.ClearIfOwner(ctx, e.BookingID, e.RequestID)
	if err != nil {
		return fmt.Errorf("failed to clear pending action: %w", err)
	}
	if !cleared {
		logger.DebugContext(ctx, "Settled tx does not own pending marker",
			"booking_id", e.BookingID,
			"request_id", e.RequestID,
		)
	}

	if !e.Success {
		logger.WarnContext(ctx, "Ledger action failed",
			"booking_id", e.BookingID,
			"action", e.Action,
			"request_id", e.RequestID,
			"error", e.Error,
		)
		return nil
	}
	logger.InfoContext(ctx, "Ledger action settled",
		"booking_id", e.BookingID,
		"action", e.Action,
		"tx_hash", e.TxHash,
	)
	return nil
}

func bookingFromLedger(e events.LedgerBooking) (*domain.Booking, error) {
	total, err := domain.ParseAmount(e.TotalAmount)
	if err != nil {
		return nil, fmt.Errorf("booking %d: total_amount: %w", e.BookingID, err)
	}
	fee, err := domain.ParseAmount(e.PlatformFee)
	if err != nil {
		return nil, fmt.Errorf("booking %d: platform_fee: %w", e.BookingID, err)
	}
	host, err := domain.ParseAmount(e.HostAmount)
	if err != nil {
		return nil, fmt.Errorf("booking %d: host_amount: %w", e.BookingID, err)
	}

	return &domain.Booking{
		ID:                 e.BookingID,
		PropertyID:         e.PropertyID,
		Guest:              string(lifecycle.NewIdentity(e.Guest)),
		CheckInDate:        e.CheckInDate,
		CheckOutDate:       e.CheckOutDate,
		TotalAmount:        total,
		PlatformFee:        fee,
		HostAmount:         host,
		Status:             lifecycle.Status(e.Status),
		CheckInWindowStart: e.CheckInWindowStart,
		CheckInDeadline:    e.CheckInDeadline,
		DisputeDeadline:    e.DisputeDeadline,
		IsCheckInComplete:  e.IsCheckInComplete,
		IsResolvedByHost:   e.IsResolvedByHost,
		IsResolvedByGuest:  e.IsResolvedByGuest,
		DisputeReason:      e.DisputeReason,
		LedgerBlock:        e.BlockNumber,
	}, nil
}
