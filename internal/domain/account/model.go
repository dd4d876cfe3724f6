package account

import (
	"strings"
	"time"
	"unicode/utf8"

	"shepherd/internal/domain/fault"
)

// Max length constants for directory fields.
const (
	MaxEmailLength       = 254
	MaxDisplayNameLength = 150
)

// Role is the actor role supplied by the identity provider.
type Role string

// Role constants
const (
	RoleMember    Role = "MEMBER"
	RoleCounselor Role = "COUNSELOR"
	RoleAdmin     Role = "ADMIN"
)

// ValidRoles contains all valid role values.
var ValidRoles = []Role{RoleMember, RoleCounselor, RoleAdmin}

// ParseRole normalises a role string. "PASTOR" is accepted as an alias of
// COUNSELOR.
func ParseRole(s string) (Role, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "MEMBER":
		return RoleMember, nil
	case "COUNSELOR", "PASTOR":
		return RoleCounselor, nil
	case "ADMIN":
		return RoleAdmin, nil
	}
	names := make([]string, len(ValidRoles))
	for i, r := range ValidRoles {
		names[i] = string(r)
	}
	return "", fault.Validation("role", "must be one of: "+strings.Join(names, ", "))
}

// Account is the local directory entry for a person known to the identity
// provider. It carries what notifications need: an address and a name.
type Account struct {
	ID          string
	Email       string
	DisplayName string
	Role        Role
	CreatedAt   time.Time
}

// Validate checks if the Account has valid data.
// PRE: Account struct is populated
// POST: Returns nil if valid, a *fault.ValidationError otherwise
func (a *Account) Validate() error {
	if strings.TrimSpace(a.ID) == "" {
		return fault.Validation("id", "cannot be empty")
	}
	email := strings.TrimSpace(a.Email)
	if email == "" {
		return fault.Validation("email", "cannot be empty")
	}
	if len(email) > MaxEmailLength {
		return fault.Validation("email", "cannot exceed 254 characters")
	}
	if !strings.Contains(email, "@") {
		return fault.Validation("email", "must contain '@'")
	}
	if strings.TrimSpace(a.DisplayName) == "" {
		return fault.Validation("display_name", "cannot be empty")
	}
	if utf8.RuneCountInString(a.DisplayName) > MaxDisplayNameLength {
		return fault.Validation("display_name", "cannot exceed 150 characters")
	}
	if _, err := ParseRole(string(a.Role)); err != nil {
		return err
	}
	return nil
}

// IsCounselor returns true if the account has the counselor role.
// INVARIANT: Account fields are not mutated
func (a *Account) IsCounselor() bool {
	return a.Role == RoleCounselor
}
