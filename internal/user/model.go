package user

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Role is one of the three account tiers, totally ordered by privilege.
type Role string

const (
	RoleUser       Role = "user"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "superadmin"
)

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin || r == RoleSuperAdmin
}

// Privileged reports whether the role sits above the base user tier.
func (r Role) Privileged() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}

// Tier maps a role to its position in the privilege order.
func (r Role) Tier() int {
	switch r {
	case RoleAdmin:
		return 1
	case RoleSuperAdmin:
		return 2
	default:
		return 0
	}
}

type User struct {
	ID             primitive.ObjectID `bson:"_id,omitempty"`
	Email          string             `bson:"email"`
	FirstName      string             `bson:"first_name"`
	LastName       string             `bson:"last_name"`
	PasswordHash   string             `bson:"password_hash"`
	Role           Role               `bson:"role"`
	IsActive       bool               `bson:"is_active"`
	FailedAttempts int                `bson:"failed_attempts"`
	LockedUntil    *time.Time         `bson:"locked_until,omitempty"`
	Phone          string             `bson:"phone,omitempty"`
	Department     string             `bson:"department,omitempty"`
	Position       string             `bson:"position,omitempty"`
	CreatedAt      time.Time          `bson:"created_at"`
	UpdatedAt      time.Time          `bson:"updated_at"`
}

// Locked reports whether the account is inside an active lock window.
// A lock in the past is treated as released; the stored field is cleared
// lazily on the next successful sign-in or by the maintenance sweep.
func (u *User) Locked(now time.Time) bool {
	return u.LockedUntil != nil && now.Before(*u.LockedUntil)
}

// Profile is the subset of an account safe to return to API clients.
// The password hash and lockout internals never leave the server.
type Profile struct {
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	FirstName  string    `json:"firstName"`
	LastName   string    `json:"lastName"`
	Role       Role      `json:"role"`
	IsActive   bool      `json:"isActive"`
	Phone      string    `json:"phone,omitempty"`
	Department string    `json:"department,omitempty"`
	Position   string    `json:"position,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func (u *User) Profile() Profile {
	return Profile{
		ID:         u.ID.Hex(),
		Email:      u.Email,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		Role:       u.Role,
		IsActive:   u.IsActive,
		Phone:      u.Phone,
		Department: u.Department,
		Position:   u.Position,
		CreatedAt:  u.CreatedAt,
		UpdatedAt:  u.UpdatedAt,
	}
}

// CanAccess implements the target-resource check: a superadmin reaches any
// account, an admin reaches user-tier accounts and their own, and everyone
// else only themselves.
func CanAccess(caller, target *User) bool {
	switch caller.Role {
	case RoleSuperAdmin:
		return true
	case RoleAdmin:
		return target.Role == RoleUser || caller.ID == target.ID
	default:
		return caller.ID == target.ID
	}
}

// NormalizeEmail lowercases and trims an email so lookups and the unique
// index agree on a single canonical form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
