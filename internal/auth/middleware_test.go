package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"userbase/internal/user"
)

func seedActive(t *testing.T, store *user.MemoryStore, email string, role user.Role) *user.User {
	t.Helper()
	u := &user.User{
		Email:     email,
		FirstName: "Test",
		LastName:  "Account",
		Role:      role,
		IsActive:  true,
	}
	require.NoError(t, store.Insert(context.Background(), u))
	return u
}

func gateResponse(t *testing.T, tokens *TokenManager, store *user.MemoryStore, authHeader string) (*httptest.ResponseRecorder, *user.User) {
	t.Helper()

	var resolved *user.User
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resolved = user.FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	Gate(tokens, store, next).ServeHTTP(rec, req)
	return rec, resolved
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body["code"]
}

func TestGate_NoToken(t *testing.T) {
	t.Parallel()
	store := user.NewMemoryStore()
	tokens := NewTokenManager("test-secret", time.Hour)

	rec, _ := gateResponse(t, tokens, store, "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "NO_TOKEN", errorCode(t, rec))

	rec, _ = gateResponse(t, tokens, store, "NotBearer abc")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "NO_TOKEN", errorCode(t, rec))
}

func TestGate_InvalidAndExpiredToken(t *testing.T) {
	t.Parallel()
	store := user.NewMemoryStore()
	tokens := NewTokenManager("test-secret", time.Hour)

	rec, _ := gateResponse(t, tokens, store, "Bearer not.a.jwt")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "INVALID_TOKEN", errorCode(t, rec))

	short := NewTokenManager("test-secret", time.Nanosecond)
	expired, err := short.Issue("anything")
	require.NoError(t, err)
	time.Sleep(10 * time.Millisecond)

	rec, _ = gateResponse(t, tokens, store, "Bearer "+expired)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "TOKEN_EXPIRED", errorCode(t, rec))
}

func TestGate_OrphanedToken(t *testing.T) {
	t.Parallel()
	store := user.NewMemoryStore()
	tokens := NewTokenManager("test-secret", time.Hour)

	account := seedActive(t, store, "jo@x.com", user.RoleUser)
	token, err := tokens.Issue(account.ID.Hex())
	require.NoError(t, err)

	require.NoError(t, store.Delete(context.Background(), account.ID.Hex()))

	// A token whose account is gone behaves like a forged one.
	rec, _ := gateResponse(t, tokens, store, "Bearer "+token)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "INVALID_TOKEN", errorCode(t, rec))
}

func TestGate_DeactivatedAccount(t *testing.T) {
	t.Parallel()
	store := user.NewMemoryStore()
	tokens := NewTokenManager("test-secret", time.Hour)

	account := seedActive(t, store, "jo@x.com", user.RoleUser)
	token, err := tokens.Issue(account.ID.Hex())
	require.NoError(t, err)

	inactive := false
	_, err = store.Update(context.Background(), account.ID.Hex(), user.Update{IsActive: &inactive})
	require.NoError(t, err)

	rec, _ := gateResponse(t, tokens, store, "Bearer "+token)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "ACCOUNT_DEACTIVATED", errorCode(t, rec))
}

func TestGate_AttachesAccount(t *testing.T) {
	t.Parallel()
	store := user.NewMemoryStore()
	tokens := NewTokenManager("test-secret", time.Hour)

	account := seedActive(t, store, "jo@x.com", user.RoleUser)
	token, err := tokens.Issue(account.ID.Hex())
	require.NoError(t, err)

	rec, resolved := gateResponse(t, tokens, store, "Bearer "+token)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, resolved)
	require.Equal(t, account.ID, resolved.ID)
}

func TestAuthorize(t *testing.T) {
	t.Parallel()

	require.True(t, Authorize(user.RoleAdmin, user.RoleAdmin, user.RoleSuperAdmin))
	require.True(t, Authorize(user.RoleSuperAdmin, user.RoleSuperAdmin))
	require.False(t, Authorize(user.RoleUser, user.RoleAdmin, user.RoleSuperAdmin))
	require.False(t, Authorize(user.RoleAdmin, user.RoleSuperAdmin))
	require.False(t, Authorize(user.RoleUser))
}

func TestRequireRole(t *testing.T) {
	t.Parallel()
	store := user.NewMemoryStore()
	tokens := NewTokenManager("test-secret", time.Hour)

	admin := seedActive(t, store, "admin@x.com", user.RoleAdmin)
	plain := seedActive(t, store, "user@x.com", user.RoleUser)

	handler := Gate(tokens, store, RequireRole(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}), user.RoleAdmin, user.RoleSuperAdmin))

	adminToken, err := tokens.Issue(admin.ID.Hex())
	require.NoError(t, err)
	userToken, err := tokens.Issue(plain.ID.Hex())
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/admin/users", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/admin/users", nil)
	req.Header.Set("Authorization", "Bearer "+userToken)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Equal(t, "ACCESS_DENIED", errorCode(t, rec))
}
