package service

import (
	"fmt"

	"github.com/diagnosis/rental-bookings/internal/lifecycle"
	"github.com/diagnosis/rental-bookings/services/bookings/internal/domain"
)

func buildView(b *domain.Booking, p *domain.Property, caller lifecycle.Identity, pending bool, now int64) (*domain.BookingView, error) {
	lb := b.ToLifecycle()
	lp := p.ToLifecycle()

	actions, err := lifecycle.AvailableActions(lb, lp, caller, now, pending)
	if err != nil {
		return nil, fmt.Errorf("booking %d: %w", b.ID, err)
	}

	view := &domain.BookingView{
		BookingID:          b.ID,
		PropertyID:         b.PropertyID,
		Guest:              b.Guest,
		CheckInDate:        b.CheckInDate,
		CheckOutDate:       b.CheckOutDate,
		Nights:             lifecycle.Nights(b.CheckInDate, b.CheckOutDate),
		Status:             int(b.Status),
		StatusLabel:        b.Status.Label(),
		StatusColor:        string(b.Status.Color()),
		Terminal:           b.Status.IsTerminal(),
		Role:               string(lifecycle.RoleOf(lb, lp, caller)),
		Actions:            actions,
		Pending:            pending,
		CheckInWindowStart: b.CheckInWindowStart,
		CheckInDeadline:    b.CheckInDeadline,
		DisputeDeadline:    b.DisputeDeadline,
		IsCheckInComplete:  b.IsCheckInComplete,
		IsResolvedByHost:   b.IsResolvedByHost,
		IsResolvedByGuest:  b.IsResolvedByGuest,
		DisputeReason:      b.DisputeReason,
		Amounts:            amounts(lb, lp),
	}
	if deadline, ok := lb.ActiveDeadline(); ok {
		view.Countdown = countdown(deadline, now)
	}
	if p != nil {
		view.Property = &domain.PropertyDTO{
			PropertyID:    p.ID,
			Owner:         p.Owner,
			PricePerNight: domain.FormatAmount(p.PricePerNight),
			IsActive:      p.IsActive,
			PropertyURI:   p.URI,
		}
	}
	return view, nil
}

// amounts prefers the ledger's recorded split; the local 3% computation is
// only a stand-in until the ledger reports one.
func amounts(b lifecycle.Booking, p *lifecycle.Property) *domain.AmountsDTO {
	if b.HasLedgerAmounts() {
		return &domain.AmountsDTO{
			Total:       b.TotalAmount.String(),
			PlatformFee: b.PlatformFee.String(),
			HostAmount:  b.HostAmount.String(),
			Source:      domain.AmountSourceLedger,
		}
	}

	total := b.TotalAmount
	if total == nil {
		if p == nil || p.PricePerNight == nil {
			return nil
		}
		total = lifecycle.TotalPrice(p.PricePerNight, b.CheckInDate, b.CheckOutDate)
	}
	fee := lifecycle.PlatformFee(total)
	return &domain.AmountsDTO{
		Total:       total.String(),
		PlatformFee: fee.String(),
		HostAmount:  lifecycle.HostAmount(total, fee).String(),
		Source:      domain.AmountSourceEstimate,
	}
}

func countdown(deadline, now int64) *domain.CountdownDTO {
	r := lifecycle.TimeRemaining(deadline, now)
	return &domain.CountdownDTO{
		Deadline:  deadline,
		Expired:   r.Expired,
		Seconds:   r.Seconds,
		Formatted: r.Formatted(),
	}
}
