// Package maintenance exposes the cron-triggered sweep that prunes expired
// refresh tokens and old draw records.
package maintenance

import (
	"context"
	"net/http"
	"strings"
	"time"

	"tarot-api/internal/apperr"
	"tarot-api/internal/auth"
	"tarot-api/internal/observability"
)

// Cleaner is implemented by *auth.Repository.
type Cleaner interface {
	CleanupStaleAuthData(ctx context.Context, drawRetention time.Duration, batchSize int) (auth.CleanupResult, error)
}

type CleanupHandler struct {
	cleaner       Cleaner
	logger        *observability.Logger
	cronSecret    string
	drawRetention time.Duration
	batchSize     int
}

func NewCleanupHandler(
	cleaner Cleaner,
	logger *observability.Logger,
	cronSecret string,
	drawRetention time.Duration,
	batchSize int,
) *CleanupHandler {
	return &CleanupHandler{
		cleaner:       cleaner,
		logger:        logger,
		cronSecret:    strings.TrimSpace(cronSecret),
		drawRetention: drawRetention,
		batchSize:     batchSize,
	}
}

// Handle hides the route entirely when no cron secret is configured.
func (h *CleanupHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if h.cronSecret == "" {
		apperr.WriteMessage(w, http.StatusNotFound, "not found")
		return
	}

	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) != h.cronSecret {
		apperr.WriteMessage(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	result, err := h.cleaner.CleanupStaleAuthData(r.Context(), h.drawRetention, h.batchSize)
	if err != nil {
		h.logger.Error("auth_cleanup_failed", map[string]any{"error": err.Error()})
		apperr.WriteMessage(w, http.StatusInternalServerError, "cleanup failed")
		return
	}

	h.logger.Info("auth_cleanup_completed", map[string]any{
		"deleted_refresh_tokens": result.DeletedRefreshTokens,
		"deleted_draw_records":   result.DeletedDrawRecords,
	})

	apperr.WriteJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"result": result,
	})
}
