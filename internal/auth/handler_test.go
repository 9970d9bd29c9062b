package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"userbase/internal/user"
)

// newTestRouter wires the auth and user handlers the same way the app
// bootstrap does, against the in-memory store.
func newTestRouter(t *testing.T) (*http.ServeMux, *Service, *user.MemoryStore) {
	t.Helper()

	store := user.NewMemoryStore()
	tokens := NewTokenManager("test-secret", time.Hour)
	svc := NewService(store, tokens, testAdminCode)
	authHandler := NewHandler(svc)
	userHandler := user.NewHandler(user.NewService(store))

	gate := func(h http.HandlerFunc) http.Handler {
		return Gate(tokens, store, h)
	}
	adminTier := func(h http.HandlerFunc) http.Handler {
		return Gate(tokens, store, RequireRole(h, user.RoleAdmin, user.RoleSuperAdmin))
	}
	superadminOnly := func(h http.HandlerFunc) http.Handler {
		return Gate(tokens, store, RequireRole(h, user.RoleSuperAdmin))
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/signup", authHandler.SignUp)
	mux.HandleFunc("POST /auth/signin", authHandler.SignIn)
	mux.Handle("POST /auth/logout", gate(authHandler.Logout))
	mux.Handle("GET /auth/me", gate(authHandler.Me))
	mux.Handle("POST /auth/refresh", gate(authHandler.Refresh))
	mux.Handle("POST /auth/change-password", gate(authHandler.ChangePassword))
	mux.Handle("GET /users/profile", gate(userHandler.GetProfile))
	mux.Handle("PUT /users/profile", gate(userHandler.UpdateProfile))
	mux.Handle("DELETE /users/profile", gate(userHandler.DeleteProfile))
	mux.Handle("GET /users/{id}", gate(userHandler.GetUser))
	mux.Handle("GET /admin/users", adminTier(userHandler.ListUsers))
	mux.Handle("PUT /admin/users/{id}", adminTier(userHandler.UpdateUser))
	mux.Handle("DELETE /admin/users/{id}", adminTier(userHandler.DeleteUser))
	mux.Handle("POST /admin/users/{id}/deactivate", adminTier(userHandler.DeactivateUser))
	mux.Handle("POST /superadmin/users", superadminOnly(authHandler.CreateUser))

	return mux, svc, store
}

func doJSON(t *testing.T, mux *http.ServeMux, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestSignUpThenSignIn(t *testing.T) {
	t.Parallel()
	mux, _, _ := newTestRouter(t)

	rec := doJSON(t, mux, http.MethodPost, "/auth/signup", "",
		`{"firstName":"Jo","lastName":"Doe","email":"jo@x.com","password":"Abcdef1","role":"user"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	signup := decodeBody(t, rec)
	token1, _ := signup["token"].(string)
	require.NotEmpty(t, token1)
	created := signup["user"].(map[string]any)

	rec = doJSON(t, mux, http.MethodPost, "/auth/signin", "",
		`{"email":"jo@x.com","password":"Abcdef1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	signin := decodeBody(t, rec)
	token2, _ := signin["token"].(string)
	require.NotEmpty(t, token2)
	require.NotEqual(t, token1, token2)
	require.Equal(t, created["id"], signin["user"].(map[string]any)["id"])
}

func TestSignUp_Validation(t *testing.T) {
	t.Parallel()
	mux, _, _ := newTestRouter(t)

	tests := []struct {
		name string
		body string
	}{
		{"short first name", `{"firstName":"J","lastName":"Doe","email":"jo@x.com","password":"Abcdef1"}`},
		{"bad email", `{"firstName":"Jo","lastName":"Doe","email":"nope","password":"Abcdef1"}`},
		{"weak password", `{"firstName":"Jo","lastName":"Doe","email":"jo@x.com","password":"abcdefg"}`},
		{"bad phone", `{"firstName":"Jo","lastName":"Doe","email":"jo@x.com","password":"Abcdef1","phone":"12"}`},
		{"bad role", `{"firstName":"Jo","lastName":"Doe","email":"jo@x.com","password":"Abcdef1","role":"root"}`},
		{"not json", `{{`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, mux, http.MethodPost, "/auth/signup", "", tt.body)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			require.Equal(t, "VALIDATION_FAILED", decodeBody(t, rec)["code"])
		})
	}
}

func TestSignUp_EmailExists(t *testing.T) {
	t.Parallel()
	mux, _, _ := newTestRouter(t)

	body := `{"firstName":"Jo","lastName":"Doe","email":"jo@x.com","password":"Abcdef1"}`
	rec := doJSON(t, mux, http.MethodPost, "/auth/signup", "", body)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, mux, http.MethodPost, "/auth/signup", "", body)
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, "EMAIL_EXISTS", decodeBody(t, rec)["code"])
}

func TestSignIn_LockedResponse(t *testing.T) {
	t.Parallel()
	mux, _, _ := newTestRouter(t)

	rec := doJSON(t, mux, http.MethodPost, "/auth/signup", "",
		`{"firstName":"Jo","lastName":"Doe","email":"jo@x.com","password":"Abcdef1"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	for i := 0; i < 4; i++ {
		rec = doJSON(t, mux, http.MethodPost, "/auth/signin", "", `{"email":"jo@x.com","password":"Wrong1x"}`)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Equal(t, "INVALID_CREDENTIALS", decodeBody(t, rec)["code"])
	}

	rec = doJSON(t, mux, http.MethodPost, "/auth/signin", "", `{"email":"jo@x.com","password":"Wrong1x"}`)
	require.Equal(t, http.StatusLocked, rec.Code)
	body := decodeBody(t, rec)
	require.Equal(t, "ACCOUNT_LOCKED", body["code"])
	require.NotEmpty(t, body["lockedUntil"])
	require.NotEmpty(t, rec.Header().Get("Retry-After"))

	// Correct password while locked is still rejected with the lock error.
	rec = doJSON(t, mux, http.MethodPost, "/auth/signin", "", `{"email":"jo@x.com","password":"Abcdef1"}`)
	require.Equal(t, http.StatusLocked, rec.Code)
}

func TestDeactivationBlocksSignIn(t *testing.T) {
	t.Parallel()
	mux, svc, _ := newTestRouter(t)

	signUpUser(t, svc, "jo@x.com", "", "")
	admin := signUpUser(t, svc, "admin@x.com", user.RoleAdmin, testAdminCode)
	adminToken, err := svc.Refresh(admin.ID.Hex())
	require.NoError(t, err)

	rec := doJSON(t, mux, http.MethodPost, "/auth/signin", "", `{"email":"jo@x.com","password":"Abcdef1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	target := decodeBody(t, rec)["user"].(map[string]any)["id"].(string)

	rec = doJSON(t, mux, http.MethodPost, "/admin/users/"+target+"/deactivate", adminToken, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, mux, http.MethodPost, "/auth/signin", "", `{"email":"jo@x.com","password":"Abcdef1"}`)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "ACCOUNT_DEACTIVATED", decodeBody(t, rec)["code"])
}

func TestSelfDeleteOrphansToken(t *testing.T) {
	t.Parallel()
	mux, _, _ := newTestRouter(t)

	rec := doJSON(t, mux, http.MethodPost, "/auth/signup", "",
		`{"firstName":"Jo","lastName":"Doe","email":"jo@x.com","password":"Abcdef1"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	token := decodeBody(t, rec)["token"].(string)

	rec = doJSON(t, mux, http.MethodDelete, "/users/profile", token, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, mux, http.MethodGet, "/auth/me", token, "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "INVALID_TOKEN", decodeBody(t, rec)["code"])
}

func TestMeAndRefresh(t *testing.T) {
	t.Parallel()
	mux, _, _ := newTestRouter(t)

	rec := doJSON(t, mux, http.MethodPost, "/auth/signup", "",
		`{"firstName":"Jo","lastName":"Doe","email":"jo@x.com","password":"Abcdef1"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	token := decodeBody(t, rec)["token"].(string)

	rec = doJSON(t, mux, http.MethodGet, "/auth/me", token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	me := decodeBody(t, rec)["user"].(map[string]any)
	require.Equal(t, "jo@x.com", me["email"])

	rec = doJSON(t, mux, http.MethodPost, "/auth/refresh", token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	refreshed := decodeBody(t, rec)["token"].(string)
	require.NotEmpty(t, refreshed)
	require.NotEqual(t, token, refreshed)

	// The old token keeps working until expiry.
	rec = doJSON(t, mux, http.MethodGet, "/auth/me", token, "")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestChangePasswordEndpoint(t *testing.T) {
	t.Parallel()
	mux, _, _ := newTestRouter(t)

	rec := doJSON(t, mux, http.MethodPost, "/auth/signup", "",
		`{"firstName":"Jo","lastName":"Doe","email":"jo@x.com","password":"Abcdef1"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	token := decodeBody(t, rec)["token"].(string)

	rec = doJSON(t, mux, http.MethodPost, "/auth/change-password", token,
		`{"currentPassword":"Wrong1x","newPassword":"Newpass1"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "INVALID_CURRENT_PASSWORD", decodeBody(t, rec)["code"])

	rec = doJSON(t, mux, http.MethodPost, "/auth/change-password", token,
		`{"currentPassword":"Abcdef1","newPassword":"weak"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "VALIDATION_FAILED", decodeBody(t, rec)["code"])

	rec = doJSON(t, mux, http.MethodPost, "/auth/change-password", token,
		`{"currentPassword":"Abcdef1","newPassword":"Newpass1"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, mux, http.MethodPost, "/auth/signin", "", `{"email":"jo@x.com","password":"Newpass1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminTierIsolationOverHTTP(t *testing.T) {
	t.Parallel()
	mux, svc, _ := newTestRouter(t)

	admin := signUpUser(t, svc, "admin@x.com", user.RoleAdmin, testAdminCode)
	otherAdmin := signUpUser(t, svc, "admin2@x.com", user.RoleAdmin, testAdminCode)
	adminToken, err := svc.Refresh(admin.ID.Hex())
	require.NoError(t, err)

	rec := doJSON(t, mux, http.MethodPut, "/admin/users/"+otherAdmin.ID.Hex(), adminToken,
		`{"firstName":"Eve"}`)
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Equal(t, "ACCESS_DENIED", decodeBody(t, rec)["code"])

	rec = doJSON(t, mux, http.MethodDelete, "/admin/users/"+otherAdmin.ID.Hex(), adminToken, "")
	require.Equal(t, http.StatusForbidden, rec.Code)

	// Promotion attempts by an admin are rejected too.
	plain := signUpUser(t, svc, "user@x.com", "", "")
	rec = doJSON(t, mux, http.MethodPut, "/admin/users/"+plain.ID.Hex(), adminToken,
		`{"role":"admin"}`)
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Equal(t, "ACCESS_DENIED", decodeBody(t, rec)["code"])
}

func TestSuperadminCreateUser(t *testing.T) {
	t.Parallel()
	mux, svc, _ := newTestRouter(t)

	super := signUpUser(t, svc, "root@x.com", user.RoleSuperAdmin, testAdminCode)
	admin := signUpUser(t, svc, "admin@x.com", user.RoleAdmin, testAdminCode)
	superToken, err := svc.Refresh(super.ID.Hex())
	require.NoError(t, err)
	adminToken, err := svc.Refresh(admin.ID.Hex())
	require.NoError(t, err)

	body := `{"firstName":"Ada","lastName":"Ops","email":"ops@x.com","password":"Abcdef1","role":"admin"}`

	// Creation is superadmin-only; an admin is rejected at the route.
	rec := doJSON(t, mux, http.MethodPost, "/superadmin/users", adminToken, body)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = doJSON(t, mux, http.MethodPost, "/superadmin/users", superToken, body)
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decodeBody(t, rec)["user"].(map[string]any)
	require.Equal(t, "admin", created["role"])

	rec = doJSON(t, mux, http.MethodPost, "/superadmin/users", superToken, body)
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, "EMAIL_EXISTS", decodeBody(t, rec)["code"])
}

func TestGetUserTargetCheck(t *testing.T) {
	t.Parallel()
	mux, svc, _ := newTestRouter(t)

	plain := signUpUser(t, svc, "user@x.com", "", "")
	other := signUpUser(t, svc, "other@x.com", "", "")
	token, err := svc.Refresh(plain.ID.Hex())
	require.NoError(t, err)

	rec := doJSON(t, mux, http.MethodGet, "/users/"+plain.ID.Hex(), token, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, mux, http.MethodGet, "/users/"+other.ID.Hex(), token, "")
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Equal(t, "ACCESS_DENIED", decodeBody(t, rec)["code"])

	rec = doJSON(t, mux, http.MethodGet, "/users/000000000000000000000000", token, "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "USER_NOT_FOUND", decodeBody(t, rec)["code"])
}
