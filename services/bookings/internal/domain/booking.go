package domain

import (
	"fmt"
	"math/big"
	"time"

	"github.com/diagnosis/rental-bookings/internal/lifecycle"
)

// Booking is the stored projection of a ledger booking.
type Booking struct {
	ID                 int64            `json:"booking_id"`
	PropertyID         string           `json:"property_id"`
	Guest              string           `json:"guest"`
	CheckInDate        int64            `json:"check_in_date"`
	CheckOutDate       int64            `json:"check_out_date"`
	TotalAmount        *big.Int         `json:"total_amount,omitempty"`
	PlatformFee        *big.Int         `json:"platform_fee,omitempty"`
	HostAmount         *big.Int         `json:"host_amount,omitempty"`
	Status             lifecycle.Status `json:"status"`
	CheckInWindowStart int64            `json:"check_in_window_start"`
	CheckInDeadline    int64            `json:"check_in_deadline"`
	DisputeDeadline    int64            `json:"dispute_deadline"`
	IsCheckInComplete  bool             `json:"is_check_in_complete"`
	IsResolvedByHost   bool             `json:"is_resolved_by_host"`
	IsResolvedByGuest  bool             `json:"is_resolved_by_guest"`
	DisputeReason      string           `json:"dispute_reason"`
	LedgerBlock        uint64           `json:"ledger_block"`
	UpdatedAt          time.Time        `json:"updated_at"`
}

func (b *Booking) ToLifecycle() lifecycle.Booking {
	return lifecycle.Booking{
		ID:                 b.ID,
		PropertyID:         b.PropertyID,
		Guest:              lifecycle.NewIdentity(b.Guest),
		CheckInDate:        b.CheckInDate,
		CheckOutDate:       b.CheckOutDate,
		TotalAmount:        b.TotalAmount,
		PlatformFee:        b.PlatformFee,
		HostAmount:         b.HostAmount,
		Status:             b.Status,
		CheckInWindowStart: b.CheckInWindowStart,
		CheckInDeadline:    b.CheckInDeadline,
		DisputeDeadline:    b.DisputeDeadline,
		IsCheckInComplete:  b.IsCheckInComplete,
		IsResolvedByHost:   b.IsResolvedByHost,
		IsResolvedByGuest:  b.IsResolvedByGuest,
		DisputeReason:      b.DisputeReason,
	}
}

type Property struct {
	ID            string    `json:"property_id"`
	Owner         string    `json:"owner"`
	PricePerNight *big.Int  `json:"price_per_night"`
	IsActive      bool      `json:"is_active"`
	URI           string    `json:"property_uri"`
	TokenAddress  string    `json:"property_token_address"`
	LedgerBlock   uint64    `json:"ledger_block"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (p *Property) ToLifecycle() *lifecycle.Property {
	if p == nil {
		return nil
	}
	return &lifecycle.Property{
		ID:            p.ID,
		Owner:         lifecycle.NewIdentity(p.Owner),
		PricePerNight: p.PricePerNight,
		IsActive:      p.IsActive,
		URI:           p.URI,
		TokenAddress:  p.TokenAddress,
	}
}

// ParseAmount reads a base-10 minor-unit amount. An empty string means the
// ledger did not report the field.
func ParseAmount(s string) (*big.Int, error) {
	if s == "" {
		return nil, nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", s)
	}
	if v.Sign() < 0 {
		return nil, fmt.Errorf("negative amount %q", s)
	}
	return v, nil
}

// FormatAmount is the inverse of ParseAmount.
func FormatAmount(v *big.Int) string {
	if v == nil {
		return ""
	}
	return v.String()
}

const (
	AmountSourceLedger   = "ledger"
	AmountSourceEstimate = "estimate"
)

type AmountsDTO struct {
	Total       string `json:"total"`
	PlatformFee string `json:"platform_fee"`
	HostAmount  string `json:"host_amount"`
	Source      string `json:"source"`
}

type CountdownDTO struct {
	Deadline  int64  `json:"deadline"`
	Expired   bool   `json:"expired"`
	Seconds   int64  `json:"seconds"`
	Formatted string `json:"formatted,omitempty"`
}

type PropertyDTO struct {
	PropertyID    string `json:"property_id"`
	Owner         string `json:"owner"`
	PricePerNight string `json:"price_per_night"`
	IsActive      bool   `json:"is_active"`
	PropertyURI   string `json:"property_uri"`
}

// BookingView is a booking plus everything a client needs to render it
// without re-deriving lifecycle rules.
type BookingView struct {
	BookingID          int64              `json:"booking_id"`
	PropertyID         string             `json:"property_id"`
	Guest              string             `json:"guest"`
	CheckInDate        int64              `json:"check_in_date"`
	CheckOutDate       int64              `json:"check_out_date"`
	Nights             int64              `json:"nights"`
	Status             int                `json:"status"`
	StatusLabel        string             `json:"status_label"`
	StatusColor        string             `json:"status_color"`
	Terminal           bool               `json:"terminal"`
	Role               string             `json:"role"`
	Actions            []lifecycle.Action `json:"actions"`
	Pending            bool               `json:"pending"`
	Countdown          *CountdownDTO      `json:"countdown,omitempty"`
	Amounts            *AmountsDTO        `json:"amounts,omitempty"`
	CheckInWindowStart int64              `json:"check_in_window_start,omitempty"`
	CheckInDeadline    int64              `json:"check_in_deadline,omitempty"`
	DisputeDeadline    int64              `json:"dispute_deadline,omitempty"`
	IsCheckInComplete  bool               `json:"is_check_in_complete"`
	IsResolvedByHost   bool               `json:"is_resolved_by_host"`
	IsResolvedByGuest  bool               `json:"is_resolved_by_guest"`
	DisputeReason      string             `json:"dispute_reason,omitempty"`
	Property           *PropertyDTO       `json:"property,omitempty"`
}

type QuoteRequest struct {
	PropertyID string `json:"property_id" validate:"required,max=128"`
	CheckIn    int64  `json:"check_in" validate:"required,gt=0"`
	CheckOut   int64  `json:"check_out" validate:"required,gt=0"`
}

type QuoteResponse struct {
	PropertyID    string `json:"property_id"`
	CheckIn       int64  `json:"check_in"`
	CheckOut      int64  `json:"check_out"`
	Nights        int64  `json:"nights"`
	PricePerNight string `json:"price_per_night"`
	Total         string `json:"total"`
	PlatformFee   string `json:"platform_fee"`
	HostAmount    string `json:"host_amount"`
	Estimate      bool   `json:"estimate"`
}

type ActionRequest struct {
	Action string `json:"action" validate:"required"`
}

type ActionResponse struct {
	RequestID string `json:"request_id"`
	BookingID int64  `json:"booking_id"`
	Action    string `json:"action"`
	Method    string `json:"method"`
	ChainID   int64  `json:"chain_id"`
	Status    string `json:"status"`
}

// Pagination limits shared by list endpoints.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)
