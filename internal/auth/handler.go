package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/getsentry/sentry-go"

	"userbase/internal/user"
)

const maxJSONBodyBytes = 1 << 20

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type signUpRequest struct {
	FirstName  string    `json:"firstName"`
	LastName   string    `json:"lastName"`
	Email      string    `json:"email"`
	Password   string    `json:"password"`
	Phone      string    `json:"phone"`
	Department string    `json:"department"`
	Position   string    `json:"position"`
	Role       user.Role `json:"role"`
	AdminCode  string    `json:"adminCode"`
}

type signInRequest struct {
	Email            string `json:"email"`
	Password         string `json:"password"`
	VerificationCode string `json:"verificationCode"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

func (h *Handler) SignUp(w http.ResponseWriter, r *http.Request) {
	body, ok := decodeNewAccount(w, r)
	if !ok {
		return
	}

	account, token, err := h.service.SignUp(r.Context(), body)
	if err != nil {
		h.writeSignUpError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"user":  account.Profile(),
		"token": token,
	})
}

// CreateUser serves POST /superadmin/users. Route wiring guarantees a
// superadmin caller, so any role may be assigned without the shared code.
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	body, ok := decodeNewAccount(w, r)
	if !ok {
		return
	}

	account, err := h.service.CreateAccount(r.Context(), body)
	if err != nil {
		h.writeSignUpError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"user": account.Profile()})
}

func (h *Handler) SignIn(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	var body signInRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_FAILED", "invalid json body")
		return
	}
	if body.Email == "" || body.Password == "" {
		writeError(w, http.StatusBadRequest, "VALIDATION_FAILED", "email and password are required")
		return
	}

	account, token, err := h.service.SignIn(r.Context(), Credentials{
		Email:            body.Email,
		Password:         body.Password,
		VerificationCode: body.VerificationCode,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidCredentials):
			writeError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "invalid email or password")
		case errors.Is(err, ErrAccountDeactivated):
			writeError(w, http.StatusUnauthorized, "ACCOUNT_DEACTIVATED", "account is deactivated")
		default:
			var locked ErrAccountLocked
			if errors.As(err, &locked) {
				retryAfter := int(time.Until(locked.Until).Seconds())
				if retryAfter < 1 {
					retryAfter = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				writeJSON(w, http.StatusLocked, map[string]any{
					"code":        "ACCOUNT_LOCKED",
					"message":     "account temporarily locked due to failed sign-in attempts",
					"lockedUntil": locked.Until.UTC().Format(time.RFC3339),
				})
				return
			}
			sentry.CaptureException(err)
			writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to sign in")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"user":  account.Profile(),
		"token": token,
	})
}

// Logout is a server-side no-op: tokens are stateless and stay valid until
// expiry. Clients discard the token.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "signed out"})
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	caller := user.FromContext(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{"user": caller.Profile()})
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	caller := user.FromContext(r.Context())

	token, err := h.service.Refresh(caller.ID.Hex())
	if err != nil {
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to refresh token")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	caller := user.FromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
	var body changePasswordRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_FAILED", "invalid json body")
		return
	}
	if body.CurrentPassword == "" {
		writeError(w, http.StatusBadRequest, "VALIDATION_FAILED", "currentPassword is required")
		return
	}
	if err := user.ValidatePassword(body.NewPassword); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_FAILED", err.Error())
		return
	}

	err := h.service.ChangePassword(r.Context(), caller.ID.Hex(), body.CurrentPassword, body.NewPassword)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidCurrentPassword):
			writeError(w, http.StatusBadRequest, "INVALID_CURRENT_PASSWORD", "current password is incorrect")
		case errors.Is(err, user.ErrNotFound):
			writeError(w, http.StatusNotFound, "USER_NOT_FOUND", "user not found")
		default:
			sentry.CaptureException(err)
			writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to change password")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "password updated"})
}

func decodeNewAccount(w http.ResponseWriter, r *http.Request) (NewAccount, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	var body signUpRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_FAILED", "invalid json body")
		return NewAccount{}, false
	}

	if err := validateNewAccount(body); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_FAILED", err.Error())
		return NewAccount{}, false
	}

	return NewAccount{
		FirstName:  body.FirstName,
		LastName:   body.LastName,
		Email:      body.Email,
		Password:   body.Password,
		Phone:      body.Phone,
		Department: body.Department,
		Position:   body.Position,
		Role:       body.Role,
		AdminCode:  body.AdminCode,
	}, true
}

func validateNewAccount(body signUpRequest) error {
	if err := user.ValidateName("firstName", body.FirstName); err != nil {
		return err
	}
	if err := user.ValidateName("lastName", body.LastName); err != nil {
		return err
	}
	if err := user.ValidateEmail(body.Email); err != nil {
		return err
	}
	if err := user.ValidatePassword(body.Password); err != nil {
		return err
	}
	if err := user.ValidatePhone(body.Phone); err != nil {
		return err
	}
	if err := user.ValidateOptionalField("department", body.Department); err != nil {
		return err
	}
	if err := user.ValidateOptionalField("position", body.Position); err != nil {
		return err
	}
	if body.Role != "" {
		if err := user.ValidateRole(body.Role); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) writeSignUpError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, user.ErrEmailTaken):
		writeError(w, http.StatusConflict, "EMAIL_EXISTS", "email is already registered")
	case errors.Is(err, user.ErrAccessDenied):
		writeError(w, http.StatusForbidden, "ACCESS_DENIED", "a valid admin code is required for privileged roles")
	default:
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to create account")
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"code": code, "message": message})
}
