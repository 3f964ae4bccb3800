package identity

import "strings"

// Role is one of the three fixed workflow roles.
type Role string

const (
	RoleRequester Role = "requester"
	RolePurchaser Role = "purchaser"
	RoleCEO       Role = "ceo"
)

// rank is the single source of the role ordering: requester < purchaser < ceo.
func (r Role) rank() int {
	switch r {
	case RoleRequester:
		return 1
	case RolePurchaser:
		return 2
	case RoleCEO:
		return 3
	default:
		return 0
	}
}

func (r Role) Valid() bool {
	return r.rank() > 0
}

func (r Role) String() string {
	return string(r)
}

// Compare returns -1, 0 or 1 as a ranks below, equal to or above b.
func Compare(a, b Role) int {
	ra, rb := a.rank(), b.rank()
	switch {
	case ra < rb:
		return -1
	case ra > rb:
		return 1
	default:
		return 0
	}
}

// AtLeast reports whether r ranks at or above min. Unknown roles never qualify.
func (r Role) AtLeast(min Role) bool {
	return r.Valid() && Compare(r, min) >= 0
}

// ParseRole maps a stored claim back to a Role.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", false
	}
	return r, true
}
