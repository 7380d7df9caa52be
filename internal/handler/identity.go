package handler

import (
	"log/slog"
	"net/http"

	"github.com/entrasecure/entrasecure/internal/domain"
	"github.com/entrasecure/entrasecure/internal/service"
)

// IdentityHandler serves the authenticated user's own identity view
type IdentityHandler struct {
	identity *service.IdentityService
	tokens   domain.TokenProvider
	logger   *slog.Logger
}

// NewIdentityHandler creates a new identity handler
func NewIdentityHandler(identity *service.IdentityService, tokens domain.TokenProvider, logger *slog.Logger) *IdentityHandler {
	return &IdentityHandler{identity: identity, tokens: tokens, logger: logger}
}

// ServeHTTP handles GET /api/me requests
func (h *IdentityHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	token, _, ok := graphToken(w, r, h.tokens, h.logger)
	if !ok {
		return
	}

	view, err := h.identity.MyIdentity(r.Context(), token)
	if err != nil {
		writeServiceError(w, h.logger, "identity.me", err)
		return
	}

	writeJSON(w, http.StatusOK, view)
}
