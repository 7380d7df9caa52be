package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/entrasecure/entrasecure/internal/domain"
	"github.com/entrasecure/entrasecure/internal/security/audit"
	"github.com/entrasecure/entrasecure/internal/service"
)

// TenantGroupsHandler serves the group explorer and group management
type TenantGroupsHandler struct {
	directory *service.DirectoryService
	tokens    domain.TokenProvider
	auditLog  *audit.Logger
	logger    *slog.Logger
}

// NewTenantGroupsHandler creates a new tenant groups handler
func NewTenantGroupsHandler(directory *service.DirectoryService, tokens domain.TokenProvider, auditLog *audit.Logger, logger *slog.Logger) *TenantGroupsHandler {
	return &TenantGroupsHandler{directory: directory, tokens: tokens, auditLog: auditLog, logger: logger}
}

// List handles GET /api/tenant/groups with optional `?top=N` preview
func (h *TenantGroupsHandler) List(w http.ResponseWriter, r *http.Request) {
	token, _, ok := graphToken(w, r, h.tokens, h.logger)
	if !ok {
		return
	}

	var (
		groups []domain.Group
		err    error
	)
	if raw := r.URL.Query().Get("top"); raw != "" {
		top, convErr := strconv.Atoi(raw)
		if convErr != nil || top <= 0 {
			writeMessage(w, http.StatusBadRequest, "top must be a positive integer")
			return
		}
		groups, err = h.directory.ListGroupsPreview(r.Context(), token, top)
	} else {
		groups, err = h.directory.ListGroups(r.Context(), token)
	}
	if err != nil {
		writeServiceError(w, h.logger, "groups.list", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"groups": groups})
}

// CreateGroupRequest is the payload for POST /api/tenant/groups
type CreateGroupRequest struct {
	DisplayName  string   `json:"displayName"`
	MailNickname string   `json:"mailNickname"`
	Description  string   `json:"description,omitempty"`
	OwnerIDs     []string `json:"ownerIds"`
}

// Create handles POST /api/tenant/groups
func (h *TenantGroupsHandler) Create(w http.ResponseWriter, r *http.Request) {
	token, claims, ok := graphToken(w, r, h.tokens, h.logger)
	if !ok {
		return
	}

	var req CreateGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	group, err := h.directory.CreateGroup(r.Context(), token, domain.NewGroupInput{
		DisplayName:  req.DisplayName,
		MailNickname: req.MailNickname,
		Description:  req.Description,
		OwnerIDs:     req.OwnerIDs,
	})
	if err != nil {
		writeServiceError(w, h.logger, "groups.create", err)
		return
	}

	h.auditLog.LogAction(r.Context(), claims.UserID, "group.create", "group", group.ID, "success", group.DisplayName)
	writeJSON(w, http.StatusCreated, group)
}

// Delete handles DELETE /api/tenant/groups/{id}
func (h *TenantGroupsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	token, claims, ok := graphToken(w, r, h.tokens, h.logger)
	if !ok {
		return
	}

	groupID := r.PathValue("id")
	if err := h.directory.DeleteGroup(r.Context(), token, groupID); err != nil {
		writeServiceError(w, h.logger, "groups.delete", err)
		return
	}

	h.auditLog.LogAction(r.Context(), claims.UserID, "group.delete", "group", groupID, "success", "")
	w.WriteHeader(http.StatusNoContent)
}

// memberRequest is the payload for owner/member additions
type memberRequest struct {
	UserID string `json:"userId"`
}

// AddOwner handles POST /api/tenant/groups/{id}/owners
func (h *TenantGroupsHandler) AddOwner(w http.ResponseWriter, r *http.Request) {
	h.addLink(w, r, "owner")
}

// AddMember handles POST /api/tenant/groups/{id}/members
func (h *TenantGroupsHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	h.addLink(w, r, "member")
}

func (h *TenantGroupsHandler) addLink(w http.ResponseWriter, r *http.Request, kind string) {
	token, claims, ok := graphToken(w, r, h.tokens, h.logger)
	if !ok {
		return
	}

	var req memberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	groupID := r.PathValue("id")
	var err error
	if kind == "owner" {
		err = h.directory.AddGroupOwner(r.Context(), token, groupID, req.UserID)
	} else {
		err = h.directory.AddGroupMember(r.Context(), token, groupID, req.UserID)
	}
	if err != nil {
		writeServiceError(w, h.logger, "groups.update", err)
		return
	}

	h.auditLog.LogAction(r.Context(), claims.UserID, "group.add_"+kind, "group", groupID, "success", req.UserID)
	w.WriteHeader(http.StatusNoContent)
}
