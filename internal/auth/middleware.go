package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/getsentry/sentry-go"

	"userbase/internal/user"
)

// Gate is the per-request authentication middleware: it resolves a bearer
// token to an active account and attaches it to the request context.
func Gate(tokens *TokenManager, users user.Store, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenStr := bearerToken(r)
		if tokenStr == "" {
			writeError(w, http.StatusUnauthorized, "NO_TOKEN", "missing authorization token")
			return
		}

		accountID, err := tokens.Verify(tokenStr)
		if err != nil {
			if errors.Is(err, ErrTokenExpired) {
				writeError(w, http.StatusUnauthorized, "TOKEN_EXPIRED", "token has expired")
				return
			}
			writeError(w, http.StatusUnauthorized, "INVALID_TOKEN", "invalid token")
			return
		}

		account, err := users.FindByID(r.Context(), accountID)
		if err != nil {
			// A token whose account no longer exists is indistinguishable
			// from a forged one to the caller.
			if errors.Is(err, user.ErrNotFound) {
				writeError(w, http.StatusUnauthorized, "INVALID_TOKEN", "invalid token")
				return
			}
			sentry.CaptureException(err)
			writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to resolve account")
			return
		}

		if !account.IsActive {
			writeError(w, http.StatusUnauthorized, "ACCOUNT_DEACTIVATED", "account is deactivated")
			return
		}

		next.ServeHTTP(w, r.WithContext(user.WithContext(r.Context(), account)))
	})
}

// Authorize is the pure role check: true when the caller's role is one of
// the required roles. Routes compose it explicitly via RequireRole instead
// of a closure-captured role list.
func Authorize(callerRole user.Role, required ...user.Role) bool {
	for _, role := range required {
		if callerRole == role {
			return true
		}
	}
	return false
}

// RequireRole rejects callers outside the given tiers with ACCESS_DENIED.
// It must run inside Gate, which guarantees a context account.
func RequireRole(next http.Handler, required ...user.Role) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller := user.FromContext(r.Context())
		if caller == nil || !Authorize(caller.Role, required...) {
			writeError(w, http.StatusForbidden, "ACCESS_DENIED", "insufficient role for this operation")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
