package identity

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// User is derived from an email claim on every authentication. It is never persisted.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
	Name  string `json:"name"`
}

// NewUser builds a fresh identity for an already resolved role.
func NewUser(email string, role Role) *User {
	return newUserAt(email, role, time.Now())
}

func newUserAt(email string, role Role, now time.Time) *User {
	email = NormalizeEmail(email)
	return &User{
		ID:    fmt.Sprintf("user_%d_%s", now.UnixMilli(), strings.ReplaceAll(uuid.NewString(), "-", "")[:9]),
		Email: email,
		Role:  role,
		Name:  DisplayName(email),
	}
}

// DisplayName is the local part of the address.
func DisplayName(email string) string {
	if at := strings.Index(email, "@"); at > 0 {
		return email[:at]
	}
	return email
}

func ValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

func (u *User) Is(role Role) bool {
	return u != nil && u.Role == role
}
