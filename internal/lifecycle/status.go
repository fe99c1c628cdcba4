package lifecycle

import "strconv"

// Status mirrors the ledger's booking status ordinal.
type Status int

const (
	StatusActive Status = iota
	StatusCheckInReady
	StatusCheckedIn
	StatusCompleted
	StatusDisputed
	StatusCancelled
	StatusRefunded
	StatusEscalatedToAdmin
)

// Color is a presentation token consumed by clients.
type Color string

const (
	ColorBlue    Color = "blue"
	ColorYellow  Color = "yellow"
	ColorGreen   Color = "green"
	ColorGray    Color = "gray"
	ColorRed     Color = "red"
	ColorOrange  Color = "orange"
	ColorPurple  Color = "purple"
	ColorDefault Color = "default"
)

// ParseStatus converts a raw ledger ordinal. The second result is false for
// values outside the known range; the returned Status still carries the raw
// value so it can be rendered as "Unknown".
func ParseStatus(n int) (Status, bool) {
	s := Status(n)
	return s, s.Valid()
}

func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusCheckInReady, StatusCheckedIn, StatusCompleted,
		StatusDisputed, StatusCancelled, StatusRefunded, StatusEscalatedToAdmin:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no further caller-initiated transition exists.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusRefunded, StatusEscalatedToAdmin:
		return true
	default:
		return false
	}
}

// Label returns the human-readable status. Unknown values map to "Unknown".
func (s Status) Label() string {
	switch s {
	case StatusActive:
		return "Active"
	case StatusCheckInReady:
		return "Check-in Ready"
	case StatusCheckedIn:
		return "Checked In"
	case StatusCompleted:
		return "Completed"
	case StatusDisputed:
		return "Disputed"
	case StatusCancelled:
		return "Cancelled"
	case StatusRefunded:
		return "Refunded"
	case StatusEscalatedToAdmin:
		return "Escalated to Admin"
	default:
		return "Unknown"
	}
}

func (s Status) Color() Color {
	switch s {
	case StatusActive:
		return ColorBlue
	case StatusCheckInReady:
		return ColorYellow
	case StatusCheckedIn:
		return ColorGreen
	case StatusCompleted:
		return ColorGray
	case StatusDisputed:
		return ColorRed
	case StatusCancelled:
		return ColorGray
	case StatusRefunded:
		return ColorOrange
	case StatusEscalatedToAdmin:
		return ColorPurple
	default:
		return ColorDefault
	}
}

func (s Status) String() string {
	if !s.Valid() {
		return "Unknown(" + strconv.Itoa(int(s)) + ")"
	}
	return s.Label()
}
