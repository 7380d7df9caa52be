package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/entrasecure/entrasecure/internal/domain"
	"github.com/entrasecure/entrasecure/internal/security/audit"
	"github.com/entrasecure/entrasecure/internal/service"
)

// TenantRolesHandler serves the directory-role explorer and role management
type TenantRolesHandler struct {
	directory *service.DirectoryService
	tokens    domain.TokenProvider
	auditLog  *audit.Logger
	logger    *slog.Logger
}

// NewTenantRolesHandler creates a new tenant roles handler
func NewTenantRolesHandler(directory *service.DirectoryService, tokens domain.TokenProvider, auditLog *audit.Logger, logger *slog.Logger) *TenantRolesHandler {
	return &TenantRolesHandler{directory: directory, tokens: tokens, auditLog: auditLog, logger: logger}
}

// List handles GET /api/tenant/roles
func (h *TenantRolesHandler) List(w http.ResponseWriter, r *http.Request) {
	token, _, ok := graphToken(w, r, h.tokens, h.logger)
	if !ok {
		return
	}

	roles, err := h.directory.ListRoles(r.Context(), token)
	if err != nil {
		writeServiceError(w, h.logger, "roles.list", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"roles": roles})
}

// Members handles GET /api/tenant/roles/{id}/members
func (h *TenantRolesHandler) Members(w http.ResponseWriter, r *http.Request) {
	token, _, ok := graphToken(w, r, h.tokens, h.logger)
	if !ok {
		return
	}

	members, err := h.directory.ListRoleMembers(r.Context(), token, r.PathValue("id"))
	if err != nil {
		writeServiceError(w, h.logger, "roles.members", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"members": members})
}

// AddMember handles POST /api/tenant/roles/{id}/members
func (h *TenantRolesHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	token, claims, ok := graphToken(w, r, h.tokens, h.logger)
	if !ok {
		return
	}

	var req memberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	roleID := r.PathValue("id")
	if err := h.directory.AddRoleMember(r.Context(), token, roleID, req.UserID); err != nil {
		writeServiceError(w, h.logger, "roles.update", err)
		return
	}

	h.auditLog.LogAction(r.Context(), claims.UserID, "role.add_member", "directoryRole", roleID, "success", req.UserID)
	w.WriteHeader(http.StatusNoContent)
}

// ActivateRoleRequest is the payload for POST /api/tenant/roles/activate
type ActivateRoleRequest struct {
	RoleTemplateID string `json:"roleTemplateId"`
}

// Activate handles POST /api/tenant/roles/activate. Implicit built-in roles
// return 409 with a catalog message instead of failing.
func (h *TenantRolesHandler) Activate(w http.ResponseWriter, r *http.Request) {
	token, claims, ok := graphToken(w, r, h.tokens, h.logger)
	if !ok {
		return
	}

	var req ActivateRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.directory.ActivateRole(r.Context(), token, req.RoleTemplateID); err != nil {
		writeServiceError(w, h.logger, "roles.activate", err)
		return
	}

	h.auditLog.LogAction(r.Context(), claims.UserID, "role.activate", "directoryRole", req.RoleTemplateID, "success", "")
	w.WriteHeader(http.StatusNoContent)
}
