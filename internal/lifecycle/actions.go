package lifecycle

type ActionKind string

const (
	ActionCheckIn              ActionKind = "checkIn"
	ActionCancel               ActionKind = "cancel"
	ActionTriggerCheckInWindow ActionKind = "triggerCheckInWindow"
	ActionProcessMissedCheckIn ActionKind = "processMissedCheckIn"
	ActionHostResolve          ActionKind = "hostResolve"
	ActionGuestResolve         ActionKind = "guestResolve"
	ActionEscalate             ActionKind = "escalate"
)

func ParseActionKind(s string) (ActionKind, bool) {
	switch k := ActionKind(s); k {
	case ActionCheckIn, ActionCancel, ActionTriggerCheckInWindow, ActionProcessMissedCheckIn,
		ActionHostResolve, ActionGuestResolve, ActionEscalate:
		return k, true
	default:
		return "", false
	}
}

// LedgerMethod names the contract call that executes the transition.
func (k ActionKind) LedgerMethod() string {
	switch k {
	case ActionCheckIn:
		return "checkIn"
	case ActionCancel:
		return "cancelBooking"
	case ActionTriggerCheckInWindow:
		return "triggerCheckInWindow"
	case ActionProcessMissedCheckIn:
		return "processMissedCheckIn"
	case ActionHostResolve:
		return "hostResolveDispute"
	case ActionGuestResolve:
		return "guestResolveDispute"
	case ActionEscalate:
		return "escalateDispute"
	default:
		return ""
	}
}

// Action is an entry in the caller's transition menu. Disabled is set while a
// ledger write for the booking is already in flight.
type Action struct {
	Kind     ActionKind `json:"kind"`
	Disabled bool       `json:"disabled"`
}

// AvailableActions derives what the caller may attempt right now. The ledger
// remains the authority that executes (or rejects) the transition.
func AvailableActions(b Booking, p *Property, caller Identity, now int64, inFlight bool) ([]Action, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}

	var kinds []ActionKind
	switch RoleOf(b, p, caller) {
	case RoleGuest:
		kinds = guestActions(b, now)
	case RoleHost:
		kinds = hostActions(b, now)
	case RoleNone:
	}

	actions := make([]Action, 0, len(kinds))
	for _, k := range kinds {
		actions = append(actions, Action{Kind: k, Disabled: inFlight})
	}
	return actions, nil
}

func guestActions(b Booking, now int64) []ActionKind {
	switch b.Status {
	case StatusActive:
		return []ActionKind{ActionCancel}
	case StatusCheckInReady:
		if IsInCheckInWindow(b, now) {
			return []ActionKind{ActionCheckIn}
		}
	case StatusDisputed:
		if IsDisputeWindowExpired(b, now) {
			return []ActionKind{ActionEscalate}
		}
		return []ActionKind{ActionGuestResolve}
	case StatusCheckedIn, StatusCompleted, StatusCancelled, StatusRefunded, StatusEscalatedToAdmin:
	}
	return nil
}

func hostActions(b Booking, now int64) []ActionKind {
	switch b.Status {
	case StatusActive:
		return []ActionKind{ActionTriggerCheckInWindow}
	case StatusCheckInReady:
		if IsCheckInWindowExpired(b, now) {
			return []ActionKind{ActionProcessMissedCheckIn}
		}
	case StatusDisputed:
		if !IsDisputeWindowExpired(b, now) {
			return []ActionKind{ActionHostResolve}
		}
	case StatusCheckedIn, StatusCompleted, StatusCancelled, StatusRefunded, StatusEscalatedToAdmin:
	}
	return nil
}

// Permits reports whether kind is present and enabled in actions.
func Permits(actions []Action, kind ActionKind) bool {
	for _, a := range actions {
		if a.Kind == kind && !a.Disabled {
			return true
		}
	}
	return false
}
