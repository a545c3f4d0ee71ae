package types

import (
	"time"

	"github.com/google/uuid"
)

// Role is the authorization level of an account.
type Role string

const (
	RoleJobSeeker     Role = "job_seeker"
	RoleEmployer      Role = "employer"
	RoleAdmin         Role = "admin"
	RoleRecruiter     Role = "recruiter"
	RoleHiringManager Role = "hiring_manager"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleJobSeeker, RoleEmployer, RoleAdmin, RoleRecruiter, RoleHiringManager:
		return true
	}
	return false
}

// User represents an account in the system.
// It contains identity, role, and audit metadata.
type User struct {
	// ID is the unique identifier of the user.
	ID uuid.UUID `json:"id" db:"id"`

	// Email is the login identifier. It is unique and compared exactly as stored.
	Email string `json:"email" db:"email"`

	// PasswordHash stores the bcrypt hash of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// Role indicates the user's authorization level.
	Role Role `json:"role" db:"role"`

	// OrganizationID optionally links employers and recruiters to a company.
	OrganizationID *uuid.UUID `json:"organization_id,omitempty" db:"organization_id"`

	// IsActive gates authentication; inactive accounts can never log in.
	IsActive bool `json:"is_active" db:"is_active"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// LastLoginAt is stamped on every successful password login.
	LastLoginAt *time.Time `json:"last_login_at,omitempty" db:"last_login_at"`
}
