package user

import "context"

// Service enforces the role-tier authorization policy on top of the store.
// Every operation takes the resolved caller account; route-level role checks
// have already run, so what remains is the per-target tier check.
type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// Get loads an account the caller is allowed to see. The target is loaded
// first because the tier check depends on the target's role; an absent
// target yields ErrNotFound since there is no tier to protect.
func (s *Service) Get(ctx context.Context, caller *User, id string) (*User, error) {
	target, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanAccess(caller, target) {
		return nil, ErrAccessDenied
	}
	return target, nil
}

// List pages through accounts visible to the caller. Admins see only the
// user tier; superadmins see everything.
func (s *Service) List(ctx context.Context, caller *User, page, limit int) ([]User, int64, error) {
	filter := Filter{Page: page, Limit: limit}
	if caller.Role != RoleSuperAdmin {
		filter.Role = RoleUser
	}
	return s.store.List(ctx, filter)
}

// Update applies a sparse mutation to a target account. Role changes are
// superadmin-only: an admin can never make a target's role anything other
// than what it already is, so no account self-elevates through this path.
func (s *Service) Update(ctx context.Context, caller *User, id string, upd Update) (*User, error) {
	target, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanAccess(caller, target) {
		return nil, ErrAccessDenied
	}
	if upd.Role != nil && *upd.Role != target.Role && caller.Role != RoleSuperAdmin {
		return nil, ErrAccessDenied
	}
	return s.store.Update(ctx, id, upd)
}

func (s *Service) Delete(ctx context.Context, caller *User, id string) error {
	target, err := s.store.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if !CanAccess(caller, target) {
		return ErrAccessDenied
	}
	return s.store.Delete(ctx, id)
}

// SetActive toggles the activity flag, subject to the same tier check as
// any other mutation.
func (s *Service) SetActive(ctx context.Context, caller *User, id string, active bool) (*User, error) {
	target, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanAccess(caller, target) {
		return nil, ErrAccessDenied
	}
	return s.store.Update(ctx, id, Update{IsActive: &active})
}

// UpdateProfile is the self-service path: only profile fields, never role
// or activity.
func (s *Service) UpdateProfile(ctx context.Context, caller *User, upd Update) (*User, error) {
	upd.Role = nil
	upd.IsActive = nil
	return s.store.Update(ctx, caller.ID.Hex(), upd)
}

func (s *Service) DeleteProfile(ctx context.Context, caller *User) error {
	return s.store.Delete(ctx, caller.ID.Hex())
}
