package lifecycle

import "strings"

// Identity is a wallet address or account key. Hex casing is not significant,
// so comparisons always fold case.
type Identity string

func NewIdentity(s string) Identity {
	return Identity(strings.ToLower(strings.TrimSpace(s)))
}

func (i Identity) IsZero() bool {
	return strings.TrimSpace(string(i)) == ""
}

// Equal compares case-insensitively. Empty identities never match.
func (i Identity) Equal(other Identity) bool {
	if i.IsZero() || other.IsZero() {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(string(i)), strings.TrimSpace(string(other)))
}

type Role string

const (
	RoleGuest Role = "guest"
	RoleHost  Role = "host"
	RoleNone  Role = "none"
)

// RoleOf resolves the caller's relation to a booking. A caller who is both
// guest and owner is treated as the guest.
func RoleOf(b Booking, p *Property, caller Identity) Role {
	if caller.Equal(b.Guest) {
		return RoleGuest
	}
	if p != nil && caller.Equal(p.Owner) {
		return RoleHost
	}
	return RoleNone
}
