package user

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound     = errors.New("user not found")
	ErrEmailTaken   = errors.New("email already registered")
	ErrAccessDenied = errors.New("access denied")
)

// Filter narrows and pages a listing. A zero Role matches any tier.
type Filter struct {
	Role  Role
	Page  int
	Limit int
}

// Update carries a sparse account mutation. Nil means the field was omitted
// from the request; a pointer to the zero value clears the field. This keeps
// "absent" and "set to empty" distinct instead of relying on truthiness.
type Update struct {
	FirstName  *string
	LastName   *string
	Phone      *string
	Department *string
	Position   *string
	Role       *Role
	IsActive   *bool
}

type Store interface {
	Insert(ctx context.Context, u *User) error
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, id string) (*User, error)
	List(ctx context.Context, filter Filter) ([]User, int64, error)
	Update(ctx context.Context, id string, upd Update) (*User, error)
	Delete(ctx context.Context, id string) error
	SetPassword(ctx context.Context, id, hash string) error

	// RecordFailedAttempt increments the failure counter and, when the
	// counter reaches maxAttempts, starts a lock window. It returns the
	// lock expiry when this attempt triggered the lock.
	RecordFailedAttempt(ctx context.Context, id string, maxAttempts int, lockFor time.Duration, now time.Time) (*time.Time, error)
	ResetLockout(ctx context.Context, id string) error
	ReleaseExpiredLocks(ctx context.Context, now time.Time) (int64, error)
}
