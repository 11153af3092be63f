package auth

import (
	"errors"
	"time"
)

// Role represents an authorisation tier in the system.
type Role string

const (
	// RoleUser can read and block only their own account.
	RoleUser Role = "user"

	// RoleAdmin can read, list, block and change the role of any account.
	RoleAdmin Role = "admin"
)

// ValidRoles is the fixed set of account roles.
var ValidRoles = []Role{RoleUser, RoleAdmin}

// IsValidRole returns true if r is one of ValidRoles.
func IsValidRole(r Role) bool {
	for _, v := range ValidRoles {
		if r == v {
			return true
		}
	}
	return false
}

// Account is a full row of the users table.
type Account struct {
	ID           int64     `json:"id"`
	FullName     string    `json:"full_name"`
	BirthDate    time.Time `json:"-"` // rendered as YYYY-MM-DD by the API
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // never serialised
	Role         Role      `json:"role"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Snapshot is the minimal account state needed to authorise a request.
// It is always read fresh from the store.
type Snapshot struct {
	ID       int64
	Role     Role
	IsActive bool
}

// Snapshot returns the authorisation-relevant part of the account.
func (a *Account) Snapshot() Snapshot {
	return Snapshot{ID: a.ID, Role: a.Role, IsActive: a.IsActive}
}

// Identity is the request-scoped authenticated principal.
// Its Role comes from the store, never from token claims.
type Identity struct {
	ID   int64 `json:"id"`
	Role Role  `json:"role"`
}

// Sentinel errors for auth operations.
var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountNotFound    = errors.New("account not found")
	ErrAccountBlocked     = errors.New("account blocked")
	ErrEmailExists        = errors.New("email already in use")
	ErrInvalidRole        = errors.New("invalid role")
	ErrForbidden          = errors.New("insufficient permissions")

	// ErrTokenRequired means the Authorization header was missing or not "Bearer <token>".
	ErrTokenRequired = errors.New("token required")

	// ErrInvalidToken is the parent of every token verification failure.
	ErrInvalidToken   = errors.New("invalid or expired token")
	ErrTokenExpired   = errors.New("token has expired")
	ErrTokenMalformed = errors.New("malformed token")

	// ErrInvalidClaims is returned by Issue for a non-positive subject or unknown role.
	ErrInvalidClaims = errors.New("invalid token claims")

	// ErrMissingSecret is returned when the token service is built without a signing secret.
	ErrMissingSecret = errors.New("token signing secret is required")
)
