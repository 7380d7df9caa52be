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

// TenantUsersHandler serves the user explorer and user management
type TenantUsersHandler struct {
	directory *service.DirectoryService
	tokens    domain.TokenProvider
	auditLog  *audit.Logger
	logger    *slog.Logger
}

// NewTenantUsersHandler creates a new tenant users handler
func NewTenantUsersHandler(directory *service.DirectoryService, tokens domain.TokenProvider, auditLog *audit.Logger, logger *slog.Logger) *TenantUsersHandler {
	return &TenantUsersHandler{directory: directory, tokens: tokens, auditLog: auditLog, logger: logger}
}

// List handles GET /api/tenant/users. `?top=N` returns a preview instead of
// the full directory.
func (h *TenantUsersHandler) List(w http.ResponseWriter, r *http.Request) {
	token, _, ok := graphToken(w, r, h.tokens, h.logger)
	if !ok {
		return
	}

	var (
		users []domain.User
		err   error
	)
	if raw := r.URL.Query().Get("top"); raw != "" {
		top, convErr := strconv.Atoi(raw)
		if convErr != nil || top <= 0 {
			writeMessage(w, http.StatusBadRequest, "top must be a positive integer")
			return
		}
		users, err = h.directory.ListUsersPreview(r.Context(), token, top)
	} else {
		users, err = h.directory.ListUsers(r.Context(), token)
	}
	if err != nil {
		writeServiceError(w, h.logger, "users.list", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

// CreateUserRequest is the payload for POST /api/tenant/users
type CreateUserRequest struct {
	DisplayName       string `json:"displayName"`
	UserPrincipalName string `json:"userPrincipalName"`
	MailNickname      string `json:"mailNickname,omitempty"`
	Password          string `json:"password"`
}

// Create handles POST /api/tenant/users
func (h *TenantUsersHandler) Create(w http.ResponseWriter, r *http.Request) {
	token, claims, ok := graphToken(w, r, h.tokens, h.logger)
	if !ok {
		return
	}

	var req CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.directory.CreateUser(r.Context(), token, domain.NewUserInput{
		DisplayName:       req.DisplayName,
		UserPrincipalName: req.UserPrincipalName,
		MailNickname:      req.MailNickname,
		Password:          req.Password,
	})
	if err != nil {
		writeServiceError(w, h.logger, "users.create", err)
		return
	}

	h.auditLog.LogAction(r.Context(), claims.UserID, "user.create", "user", user.ID, "success", user.DisplayName)
	writeJSON(w, http.StatusCreated, user)
}

// Delete handles DELETE /api/tenant/users/{id}
func (h *TenantUsersHandler) Delete(w http.ResponseWriter, r *http.Request) {
	token, claims, ok := graphToken(w, r, h.tokens, h.logger)
	if !ok {
		return
	}

	userID := r.PathValue("id")
	if err := h.directory.DeleteUser(r.Context(), token, userID); err != nil {
		writeServiceError(w, h.logger, "users.delete", err)
		return
	}

	h.auditLog.LogAction(r.Context(), claims.UserID, "user.delete", "user", userID, "success", "")
	w.WriteHeader(http.StatusNoContent)
}
