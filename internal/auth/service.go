package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"userbase/internal/user"
)

const (
	defaultMaxAttempts  = 5
	defaultLockDuration = 2 * time.Hour
)

var (
	ErrInvalidCredentials     = errors.New("invalid credentials")
	ErrAccountDeactivated     = errors.New("account is deactivated")
	ErrInvalidCurrentPassword = errors.New("current password is incorrect")
)

// ErrAccountLocked reports an active lock window so the handler can tell the
// client when sign-in becomes possible again.
type ErrAccountLocked struct {
	Until time.Time
}

func (e ErrAccountLocked) Error() string {
	return "account temporarily locked"
}

// Service implements the authentication flows: sign-up, sign-in with the
// brute-force lockout policy, password rotation, and token refresh. The
// signing secret and the shared privileged-role code are injected at
// construction, never read from ambient state.
type Service struct {
	users        user.Store
	tokens       *TokenManager
	adminCode    string
	maxAttempts  int
	lockDuration time.Duration
}

func NewService(users user.Store, tokens *TokenManager, adminCode string) *Service {
	return &Service{
		users:        users,
		tokens:       tokens,
		adminCode:    adminCode,
		maxAttempts:  defaultMaxAttempts,
		lockDuration: defaultLockDuration,
	}
}

func (s *Service) WithLockoutConfig(maxAttempts int, lockDuration time.Duration) {
	if maxAttempts > 0 {
		s.maxAttempts = maxAttempts
	}
	if lockDuration > 0 {
		s.lockDuration = lockDuration
	}
}

type Credentials struct {
	Email            string
	Password         string
	VerificationCode string
}

// SignIn authenticates an account and issues a session token. Failures are
// deliberately ambiguous between unknown email and wrong password; only the
// lock and deactivation states are reported distinctly.
func (s *Service) SignIn(ctx context.Context, creds Credentials) (*user.User, string, error) {
	account, err := s.users.FindByEmail(ctx, creds.Email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", err
	}

	now := time.Now().UTC()
	if account.Locked(now) {
		return nil, "", ErrAccountLocked{Until: *account.LockedUntil}
	}
	if !account.IsActive {
		return nil, "", ErrAccountDeactivated
	}

	// Privileged tiers present a shared verification code before the
	// password is even checked; a mismatch looks like bad credentials.
	if account.Role.Privileged() && creds.VerificationCode != s.adminCode {
		return nil, "", ErrInvalidCredentials
	}

	if !user.CheckPassword(creds.Password, account.PasswordHash) {
		lockedUntil, recErr := s.users.RecordFailedAttempt(ctx, account.ID.Hex(), s.maxAttempts, s.lockDuration, now)
		if recErr != nil {
			return nil, "", recErr
		}
		if lockedUntil != nil {
			return nil, "", ErrAccountLocked{Until: *lockedUntil}
		}
		return nil, "", ErrInvalidCredentials
	}

	if err := s.users.ResetLockout(ctx, account.ID.Hex()); err != nil {
		return nil, "", err
	}
	account.FailedAttempts = 0
	account.LockedUntil = nil

	token, err := s.tokens.Issue(account.ID.Hex())
	if err != nil {
		return nil, "", err
	}
	return account, token, nil
}

type NewAccount struct {
	FirstName  string
	LastName   string
	Email      string
	Password   string
	Phone      string
	Department string
	Position   string
	Role       user.Role
	AdminCode  string
}

// SignUp registers an account. Requesting a privileged role demands the
// shared code; the default role is user. A session token is issued on
// success so the client is signed in immediately.
func (s *Service) SignUp(ctx context.Context, in NewAccount) (*user.User, string, error) {
	if in.Role == "" {
		in.Role = user.RoleUser
	}
	if in.Role.Privileged() && in.AdminCode != s.adminCode {
		return nil, "", user.ErrAccessDenied
	}

	account, err := s.createAccount(ctx, in)
	if err != nil {
		return nil, "", err
	}

	token, err := s.tokens.Issue(account.ID.Hex())
	if err != nil {
		return nil, "", err
	}
	return account, token, nil
}

// CreateAccount is the superadmin creation path: any role, no shared code,
// no token issued for the new account.
func (s *Service) CreateAccount(ctx context.Context, in NewAccount) (*user.User, error) {
	if in.Role == "" {
		in.Role = user.RoleUser
	}
	return s.createAccount(ctx, in)
}

func (s *Service) createAccount(ctx context.Context, in NewAccount) (*user.User, error) {
	hash, err := user.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}

	account := &user.User{
		Email:        user.NormalizeEmail(in.Email),
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		PasswordHash: hash,
		Role:         in.Role,
		IsActive:     true,
		Phone:        in.Phone,
		Department:   in.Department,
		Position:     in.Position,
	}
	if err := s.users.Insert(ctx, account); err != nil {
		return nil, err
	}
	return account, nil
}

// ChangePassword rotates the caller's secret after re-verifying the current
// one.
func (s *Service) ChangePassword(ctx context.Context, accountID, current, next string) error {
	account, err := s.users.FindByID(ctx, accountID)
	if err != nil {
		return err
	}
	if !user.CheckPassword(current, account.PasswordHash) {
		return ErrInvalidCurrentPassword
	}

	hash, err := user.HashPassword(next)
	if err != nil {
		return err
	}
	return s.users.SetPassword(ctx, accountID, hash)
}

// Refresh issues a new token for an already-authenticated caller. The old
// token stays valid until its natural expiry.
func (s *Service) Refresh(accountID string) (string, error) {
	return s.tokens.Issue(accountID)
}

// BootstrapSuperAdmin upserts the superadmin account named by the env pair.
// Both values empty means no bootstrap; only one set is a config error.
func (s *Service) BootstrapSuperAdmin(ctx context.Context, email, password string) error {
	if email == "" && password == "" {
		return nil
	}
	if email == "" || password == "" {
		return fmt.Errorf("SUPERADMIN_EMAIL and SUPERADMIN_PASSWORD are required together")
	}

	existing, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, user.ErrNotFound) {
			return err
		}
		_, err = s.createAccount(ctx, NewAccount{
			FirstName: "Super",
			LastName:  "Admin",
			Email:     email,
			Password:  password,
			Role:      user.RoleSuperAdmin,
		})
		return err
	}

	hash, err := user.HashPassword(password)
	if err != nil {
		return err
	}
	if err := s.users.SetPassword(ctx, existing.ID.Hex(), hash); err != nil {
		return err
	}

	role := user.RoleSuperAdmin
	active := true
	_, err = s.users.Update(ctx, existing.ID.Hex(), user.Update{Role: &role, IsActive: &active})
	return err
}
