package maintenance

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"userbase/internal/observability"
	"userbase/internal/user"
)

// LockSweepHandler releases expired account locks on demand. It is meant to
// be hit by a scheduler and is disabled entirely when no cron secret is
// configured. Locks are also evaluated lazily at sign-in, so the sweep only
// keeps stored state tidy.
type LockSweepHandler struct {
	store      user.Store
	logger     *observability.Logger
	cronSecret string
}

func NewLockSweepHandler(store user.Store, logger *observability.Logger, cronSecret string) *LockSweepHandler {
	return &LockSweepHandler{
		store:      store,
		logger:     logger,
		cronSecret: strings.TrimSpace(cronSecret),
	}
}

func (h *LockSweepHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if h.cronSecret == "" {
		writeJSON(w, http.StatusNotFound, map[string]string{"code": "NOT_FOUND", "message": "not found"})
		return
	}

	header := strings.TrimSpace(r.Header.Get("Authorization"))
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) != h.cronSecret {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"code": "NO_TOKEN", "message": "unauthorized"})
		return
	}

	released, err := h.store.ReleaseExpiredLocks(r.Context(), time.Now().UTC())
	if err != nil {
		h.logger.Error("lock_sweep_failed", map[string]any{"error": err.Error()})
		writeJSON(w, http.StatusInternalServerError, map[string]string{"code": "INTERNAL_ERROR", "message": "sweep failed"})
		return
	}

	h.logger.Info("lock_sweep_completed", map[string]any{"released_locks": released})

	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "ok",
		"releasedLocks": released,
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
