package user

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/getsentry/sentry-go"
)

const maxJSONBodyBytes = 1 << 20

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type updateRequest struct {
	FirstName  *string `json:"firstName"`
	LastName   *string `json:"lastName"`
	Phone      *string `json:"phone"`
	Department *string `json:"department"`
	Position   *string `json:"position"`
}

type adminUpdateRequest struct {
	FirstName  *string `json:"firstName"`
	LastName   *string `json:"lastName"`
	Phone      *string `json:"phone"`
	Department *string `json:"department"`
	Position   *string `json:"position"`
	Role       *Role   `json:"role"`
	IsActive   *bool   `json:"isActive"`
}

// GetProfile returns the caller's own public profile.
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	caller := FromContext(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{"user": caller.Profile()})
}

func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	caller := FromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
	var body updateRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_FAILED", "invalid json body")
		return
	}

	upd := Update{
		FirstName:  body.FirstName,
		LastName:   body.LastName,
		Phone:      body.Phone,
		Department: body.Department,
		Position:   body.Position,
	}
	if err := validateUpdate(upd); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_FAILED", err.Error())
		return
	}

	updated, err := h.service.UpdateProfile(r.Context(), caller, upd)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "USER_NOT_FOUND", "user not found")
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to update profile")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"user": updated.Profile()})
}

func (h *Handler) DeleteProfile(w http.ResponseWriter, r *http.Request) {
	caller := FromContext(r.Context())

	if err := h.service.DeleteProfile(r.Context(), caller); err != nil {
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "USER_NOT_FOUND", "user not found")
			return
		}
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to delete account")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "account deleted"})
}

// GetUser serves GET /users/{id}: any authenticated caller, gated by the
// target-resource check.
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	caller := FromContext(r.Context())

	target, err := h.service.Get(r.Context(), caller, r.PathValue("id"))
	if err != nil {
		h.writeServiceError(w, err, "failed to load user")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"user": target.Profile()})
}

// ListUsers serves both the admin and superadmin listings; visibility is
// scoped by the caller's role inside the service.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	caller := FromContext(r.Context())

	page := queryInt(r, "page", 1)
	limit := queryInt(r, "limit", 20)
	if limit > 100 {
		limit = 100
	}

	users, total, err := h.service.List(r.Context(), caller, page, limit)
	if err != nil {
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to list users")
		return
	}

	profiles := make([]Profile, 0, len(users))
	for i := range users {
		profiles = append(profiles, users[i].Profile())
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"users": profiles,
		"total": total,
		"page":  page,
		"limit": limit,
	})
}

func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	caller := FromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
	var body adminUpdateRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_FAILED", "invalid json body")
		return
	}

	upd := Update{
		FirstName:  body.FirstName,
		LastName:   body.LastName,
		Phone:      body.Phone,
		Department: body.Department,
		Position:   body.Position,
		Role:       body.Role,
		IsActive:   body.IsActive,
	}
	if err := validateUpdate(upd); err != nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_FAILED", err.Error())
		return
	}

	updated, err := h.service.Update(r.Context(), caller, r.PathValue("id"), upd)
	if err != nil {
		h.writeServiceError(w, err, "failed to update user")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"user": updated.Profile()})
}

func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	caller := FromContext(r.Context())

	if err := h.service.Delete(r.Context(), caller, r.PathValue("id")); err != nil {
		h.writeServiceError(w, err, "failed to delete user")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "user deleted"})
}

func (h *Handler) ActivateUser(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, true)
}

func (h *Handler) DeactivateUser(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, false)
}

func (h *Handler) setActive(w http.ResponseWriter, r *http.Request, active bool) {
	caller := FromContext(r.Context())

	updated, err := h.service.SetActive(r.Context(), caller, r.PathValue("id"), active)
	if err != nil {
		h.writeServiceError(w, err, "failed to update user status")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"user": updated.Profile()})
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, "USER_NOT_FOUND", "user not found")
	case errors.Is(err, ErrAccessDenied):
		writeError(w, http.StatusForbidden, "ACCESS_DENIED", "insufficient permissions for this account")
	default:
		sentry.CaptureException(err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", fallback)
	}
}

func validateUpdate(upd Update) error {
	if upd.FirstName != nil {
		if err := ValidateName("firstName", *upd.FirstName); err != nil {
			return err
		}
	}
	if upd.LastName != nil {
		if err := ValidateName("lastName", *upd.LastName); err != nil {
			return err
		}
	}
	if upd.Phone != nil {
		if err := ValidatePhone(*upd.Phone); err != nil {
			return err
		}
	}
	if upd.Department != nil {
		if err := ValidateOptionalField("department", *upd.Department); err != nil {
			return err
		}
	}
	if upd.Position != nil {
		if err := ValidateOptionalField("position", *upd.Position); err != nil {
			return err
		}
	}
	if upd.Role != nil {
		if err := ValidateRole(*upd.Role); err != nil {
			return err
		}
	}
	return nil
}

func queryInt(r *http.Request, name string, fallback int) int {
	value := r.URL.Query().Get(name)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 1 {
		return fallback
	}
	return parsed
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"code": code, "message": message})
}
