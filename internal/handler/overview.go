package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/entrasecure/entrasecure/internal/domain"
	"github.com/entrasecure/entrasecure/internal/service"
)

// OverviewHandler serves the tenant security overview dashboard
type OverviewHandler struct {
	overview  *service.OverviewService
	snapshots domain.SnapshotRepository
	tokens    domain.TokenProvider
	logger    *slog.Logger
	timeout   time.Duration
}

// NewOverviewHandler creates a new overview handler
func NewOverviewHandler(overview *service.OverviewService, snapshots domain.SnapshotRepository, tokens domain.TokenProvider, logger *slog.Logger, timeout time.Duration) *OverviewHandler {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &OverviewHandler{
		overview:  overview,
		snapshots: snapshots,
		tokens:    tokens,
		logger:    logger,
		timeout:   timeout,
	}
}

// ServeHTTP handles GET /api/security/overview requests. `?cached=1` serves
// the latest stored snapshot when one exists, skipping the full aggregation
// pass.
func (h *OverviewHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if r.URL.Query().Get("cached") == "1" {
		snapshot, err := h.snapshots.GetLatest()
		if err != nil {
			h.logger.Warn("snapshot read failed, building fresh", slog.String("error", err.Error()))
		} else if snapshot != nil {
			writeJSON(w, http.StatusOK, snapshot)
			return
		}
	}

	token, claims, ok := graphToken(w, r, h.tokens, h.logger)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	overview, err := h.overview.BuildOverview(ctx, token)
	if err != nil {
		writeServiceError(w, h.logger, "security.overview", err)
		return
	}

	if err := h.snapshots.SaveLatest(overview); err != nil {
		// Serving the fresh result matters more than persisting it.
		h.logger.Warn("snapshot save failed", slog.String("error", err.Error()))
	}

	h.logger.Info("overview served", slog.String("user_id", claims.UserID))
	writeJSON(w, http.StatusOK, overview)
}

// OverviewHistoryHandler serves recent overview snapshots for trend views
type OverviewHistoryHandler struct {
	snapshots domain.SnapshotRepository
	logger    *slog.Logger
}

// NewOverviewHistoryHandler creates a new overview history handler
func NewOverviewHistoryHandler(snapshots domain.SnapshotRepository, logger *slog.Logger) *OverviewHistoryHandler {
	return &OverviewHistoryHandler{snapshots: snapshots, logger: logger}
}

// ServeHTTP handles GET /api/security/overview/history requests
func (h *OverviewHistoryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			limit = v
		}
	}

	history, err := h.snapshots.History(limit)
	if err != nil {
		writeServiceError(w, h.logger, "security.history", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"snapshots": history})
}
