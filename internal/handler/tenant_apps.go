package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/entrasecure/entrasecure/internal/domain"
	"github.com/entrasecure/entrasecure/internal/security/audit"
	"github.com/entrasecure/entrasecure/internal/service"
)

// TenantAppsHandler serves the enterprise-app explorer and portal role
// assignment
type TenantAppsHandler struct {
	directory *service.DirectoryService
	tokens    domain.TokenProvider
	auditLog  *audit.Logger
	logger    *slog.Logger
}

// NewTenantAppsHandler creates a new tenant apps handler
func NewTenantAppsHandler(directory *service.DirectoryService, tokens domain.TokenProvider, auditLog *audit.Logger, logger *slog.Logger) *TenantAppsHandler {
	return &TenantAppsHandler{directory: directory, tokens: tokens, auditLog: auditLog, logger: logger}
}

// List handles GET /api/tenant/apps
func (h *TenantAppsHandler) List(w http.ResponseWriter, r *http.Request) {
	token, _, ok := graphToken(w, r, h.tokens, h.logger)
	if !ok {
		return
	}

	apps, err := h.directory.ListApps(r.Context(), token)
	if err != nil {
		writeServiceError(w, h.logger, "apps.list", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"apps": apps})
}

// AssignRoleRequest is the payload for POST /api/tenant/apps/{id}/roles
type AssignRoleRequest struct {
	PrincipalID string `json:"principalId"`
	AppRoleID   string `json:"appRoleId"`
}

// AssignRole handles POST /api/tenant/apps/{id}/roles, granting one of the
// app's roles to a principal
func (h *TenantAppsHandler) AssignRole(w http.ResponseWriter, r *http.Request) {
	token, claims, ok := graphToken(w, r, h.tokens, h.logger)
	if !ok {
		return
	}

	var req AssignRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	spID := r.PathValue("id")
	if err := h.directory.AssignPortalRole(r.Context(), token, spID, req.PrincipalID, req.AppRoleID); err != nil {
		writeServiceError(w, h.logger, "apps.assign_role", err)
		return
	}

	h.auditLog.LogAction(r.Context(), claims.UserID, "app.assign_role", "servicePrincipal", spID, "success", req.PrincipalID)
	w.WriteHeader(http.StatusNoContent)
}
