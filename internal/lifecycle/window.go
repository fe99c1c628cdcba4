package lifecycle

import "strconv"

// ValidateBookingWindow must pass before any booking creation or price quote.
func ValidateBookingWindow(checkIn, checkOut, now int64) error {
	if checkIn <= now {
		return &ValidationError{Reason: ReasonPastCheckIn}
	}
	if checkOut <= checkIn {
		return &ValidationError{Reason: ReasonInvalidRange}
	}
	if Nights(checkIn, checkOut) < 1 {
		return &ValidationError{Reason: ReasonTooShort}
	}
	return nil
}

// IsInCheckInWindow is inclusive at both ends: at the deadline instant the
// window is still open.
func IsInCheckInWindow(b Booking, now int64) bool {
	return b.Status == StatusCheckInReady &&
		now >= b.CheckInWindowStart &&
		now <= b.CheckInDeadline
}

func IsCheckInWindowExpired(b Booking, now int64) bool {
	return b.Status == StatusCheckInReady && now > b.CheckInDeadline
}

func IsDisputeWindowExpired(b Booking, now int64) bool {
	return b.Status == StatusDisputed && now > b.DisputeDeadline
}

// Remaining is the decomposed time left until a deadline.
type Remaining struct {
	Expired bool  `json:"expired"`
	Seconds int64 `json:"seconds"`
	Hours   int64 `json:"hours"`
	Minutes int64 `json:"minutes"`
	Secs    int64 `json:"secs"`
}

// TimeRemaining is called on every countdown tick, so it does no allocation.
func TimeRemaining(deadline, now int64) Remaining {
	if deadline <= now {
		return Remaining{Expired: true}
	}
	left := deadline - now
	return Remaining{
		Seconds: left,
		Hours:   left / 3600,
		Minutes: (left % 3600) / 60,
		Secs:    left % 60,
	}
}

// Formatted renders "{h}h {m}m {s}s", or "" when expired.
func (r Remaining) Formatted() string {
	if r.Expired {
		return ""
	}
	var buf [48]byte
	b := strconv.AppendInt(buf[:0], r.Hours, 10)
	b = append(b, "h "...)
	b = strconv.AppendInt(b, r.Minutes, 10)
	b = append(b, "m "...)
	b = strconv.AppendInt(b, r.Secs, 10)
	b = append(b, 's')
	return string(b)
}
