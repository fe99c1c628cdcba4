package lifecycle

import "math/big"

// Booking is a read-only projection of the ledger's booking record.
// Timestamps are Unix seconds; the ledger reports unset deadlines as zero.
type Booking struct {
	ID         int64
	PropertyID string
	Guest      Identity

	CheckInDate  int64
	CheckOutDate int64

	TotalAmount *big.Int
	PlatformFee *big.Int
	HostAmount  *big.Int

	Status Status

	CheckInWindowStart int64
	CheckInDeadline    int64
	DisputeDeadline    int64

	IsCheckInComplete bool
	IsResolvedByHost  bool
	IsResolvedByGuest bool
	DisputeReason     string
}

type Property struct {
	ID            string
	Owner         Identity
	PricePerNight *big.Int
	IsActive      bool
	URI           string
	TokenAddress  string
}

// Validate checks the structural contract of a ledger record. It never looks
// at the clock.
func (b Booking) Validate() error {
	if b.CheckOutDate <= b.CheckInDate {
		return &MalformedBookingError{BookingID: b.ID, Field: "checkOutDate", Detail: "must be after checkInDate"}
	}

	switch b.Status {
	case StatusCheckInReady:
		if b.CheckInWindowStart <= 0 {
			return &MalformedBookingError{BookingID: b.ID, Field: "checkInWindowStart", Detail: "required while CheckInReady"}
		}
		if b.CheckInDeadline <= 0 {
			return &MalformedBookingError{BookingID: b.ID, Field: "checkInDeadline", Detail: "required while CheckInReady"}
		}
		if b.CheckInDeadline < b.CheckInWindowStart {
			return &MalformedBookingError{BookingID: b.ID, Field: "checkInDeadline", Detail: "precedes checkInWindowStart"}
		}
	case StatusDisputed:
		if b.DisputeDeadline <= 0 {
			return &MalformedBookingError{BookingID: b.ID, Field: "disputeDeadline", Detail: "required while Disputed"}
		}
	}

	if b.HasLedgerAmounts() {
		sum := new(big.Int).Add(b.PlatformFee, b.HostAmount)
		if sum.Cmp(b.TotalAmount) != 0 {
			return &MalformedBookingError{BookingID: b.ID, Field: "totalAmount", Detail: "does not equal platformFee + hostAmount"}
		}
	}
	return nil
}

// HasLedgerAmounts reports whether the ledger already returned the
// authoritative fee split.
func (b Booking) HasLedgerAmounts() bool {
	return b.TotalAmount != nil && b.PlatformFee != nil && b.HostAmount != nil
}

// ActiveDeadline returns the deadline a countdown should track for the
// current status, if any.
func (b Booking) ActiveDeadline() (int64, bool) {
	switch b.Status {
	case StatusCheckInReady:
		return b.CheckInDeadline, b.CheckInDeadline > 0
	case StatusDisputed:
		return b.DisputeDeadline, b.DisputeDeadline > 0
	default:
		return 0, false
	}
}
