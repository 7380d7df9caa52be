package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/entrasecure/entrasecure/internal/security"
	"github.com/entrasecure/entrasecure/internal/security/audit"
)

// AuditHandler serves the persisted audit trail for review
type AuditHandler struct {
	store  *audit.Store
	logger *slog.Logger
}

func NewAuditHandler(store *audit.Store, logger *slog.Logger) *AuditHandler {
	return &AuditHandler{store: store, logger: logger}
}

type auditEventResponse struct {
	ID         string `json:"id"`
	OccurredAt string `json:"occurredAt"`
	ActorID    string `json:"actorId"`
	Action     string `json:"action"`
	Resource   string `json:"resource"`
	ResourceID string `json:"resourceId,omitempty"`
	Status     string `json:"status"`
	Details    string `json:"details,omitempty"`
}

func (h *AuditHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeMessage(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	events, err := h.store.Recent(r.Context(), limit)
	if err != nil {
		h.logger.Error("audit query failed", slog.String("error", err.Error()))
		writeMessage(w, http.StatusInternalServerError, security.MsgInternalError)
		return
	}

	out := make([]auditEventResponse, 0, len(events))
	for _, e := range events {
		out = append(out, auditEventResponse{
			ID:         e.ID,
			OccurredAt: e.OccurredAt.Format("2006-01-02T15:04:05Z07:00"),
			ActorID:    e.ActorID,
			Action:     e.Action,
			Resource:   e.Resource,
			ResourceID: e.ResourceID,
			Status:     e.Status,
			Details:    e.Details,
		})
	}
	writeJSON(w, http.StatusOK, out)
}
