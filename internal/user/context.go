package user

import "context"

type contextKey struct{}

// WithContext attaches the authenticated account to a request context.
func WithContext(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, contextKey{}, u)
}

// FromContext returns the authenticated account, or nil when the request
// did not pass through the authentication gate.
func FromContext(ctx context.Context) *User {
	u, _ := ctx.Value(contextKey{}).(*User)
	return u
}
