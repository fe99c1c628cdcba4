package lifecycle

import "fmt"

// ValidationReason enumerates why a requested stay window was rejected.
type ValidationReason string

const (
	ReasonPastCheckIn  ValidationReason = "PastCheckIn"
	ReasonInvalidRange ValidationReason = "InvalidRange"
	ReasonTooShort     ValidationReason = "TooShort"
)

// ValidationError is returned by ValidateBookingWindow. It is a user-input
// problem and is meant to be rendered inline.
type ValidationError struct {
	Reason ValidationReason
}

func (e *ValidationError) Error() string {
	switch e.Reason {
	case ReasonPastCheckIn:
		return "check-in must be in the future"
	case ReasonInvalidRange:
		return "check-out must be after check-in"
	case ReasonTooShort:
		return "stay must be at least one night"
	default:
		return "invalid booking window"
	}
}

// MalformedBookingError signals a ledger record that violates its own
// structural contract, e.g. a Disputed booking without a dispute deadline.
type MalformedBookingError struct {
	BookingID int64
	Field     string
	Detail    string
}

func (e *MalformedBookingError) Error() string {
	return fmt.Sprintf("malformed booking %d: %s %s", e.BookingID, e.Field, e.Detail)
}
