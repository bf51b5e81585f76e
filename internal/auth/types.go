package auth

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// usernamePattern: alphanumeric, dots, hyphens, underscores, 1-64 characters.
var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9._-]{1,64}$`)

// IsValidUsername checks if a username meets format requirements.
func IsValidUsername(username string) bool {
	return usernamePattern.MatchString(username)
}

// Role is a staff member's job function. It decides which permissions the
// member's token carries.
type Role string

const (
	// RoleAdmin runs the installation: hub settings, staff accounts, everything else.
	RoleAdmin Role = "admin"

	// RoleManager oversees operations and may manage breakers, but cannot
	// change the hub connection or staff accounts.
	RoleManager Role = "manager"

	// RoleReceptionist checks guests in and out.
	RoleReceptionist Role = "receptionist"

	// RoleHousekeeping flips rooms between cleaning and available.
	RoleHousekeeping Role = "housekeeping"

	// RoleMaintenance works on the electrical side and may switch breakers by hand.
	RoleMaintenance Role = "maintenance"
)

// ValidRoles lists every role a staff account may hold.
var ValidRoles = []Role{RoleAdmin, RoleManager, RoleReceptionist, RoleHousekeeping, RoleMaintenance}

// Valid reports whether r is one of ValidRoles.
func (r Role) Valid() bool {
	for _, v := range ValidRoles {
		if r == v {
			return true
		}
	}
	return false
}

// ParseRole converts a case-insensitive name to a Role.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidRole, s)
	}
	return r, nil
}

// User represents a staff account.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	DisplayName  string    `json:"display_name"`
	Email        string    `json:"email,omitempty"`
	PasswordHash string    `json:"-"` // never serialised
	Role         Role      `json:"role"`
	IsActive     bool      `json:"is_active"`
	CreatedBy    string    `json:"created_by,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Sentinel errors for auth operations.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrUserInactive       = errors.New("user account is inactive")
	ErrUsernameExists     = errors.New("username already exists")
	ErrInvalidUsername    = errors.New("invalid username")
	ErrInvalidRole        = errors.New("invalid role")
	ErrPasswordTooShort   = errors.New("password too short")
	ErrTokenInvalid       = errors.New("invalid token")
	ErrForbidden          = errors.New("insufficient permissions")
)
