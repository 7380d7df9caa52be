package handler

import (
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"net/http"
	"time"

	"github.com/entrasecure/entrasecure/internal/security"
	"github.com/entrasecure/entrasecure/internal/security/auth"
	"github.com/entrasecure/entrasecure/internal/security/middleware"
	"github.com/entrasecure/entrasecure/pkg/cache"
)

const loginStateTTL = 10 * time.Minute

// AuthHandler drives the OIDC login flow and issues portal session tokens
type AuthHandler struct {
	provider     *auth.Provider
	tokenManager *auth.TokenManager
	states       *cache.Cache[string]
	sessionTTL   time.Duration
	logger       *slog.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(provider *auth.Provider, tokenManager *auth.TokenManager, sessionTTL time.Duration, logger *slog.Logger) *AuthHandler {
	if sessionTTL <= 0 {
		sessionTTL = time.Hour
	}
	return &AuthHandler{
		provider:     provider,
		tokenManager: tokenManager,
		states:       cache.New[string](),
		sessionTTL:   sessionTTL,
		logger:       logger,
	}
}

// Login handles GET /api/auth/login: answers with the authority URL the
// frontend must redirect to
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	state := randomState()
	h.states.Set(state, state, loginStateTTL)
	writeJSON(w, http.StatusOK, map[string]string{"loginUrl": h.provider.LoginURL(state)})
}

// Callback handles GET /api/auth/callback: verifies the state, exchanges
// the authorization code and issues the portal session token
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("state")
	if _, ok := h.states.Get(state); !ok {
		writeMessage(w, http.StatusBadRequest, "invalid or expired login state")
		return
	}
	h.states.Delete(state)

	code := r.URL.Query().Get("code")
	if code == "" {
		writeMessage(w, http.StatusBadRequest, "missing authorization code")
		return
	}

	result, err := h.provider.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Warn("token exchange failed", slog.String("error", err.Error()))
		writeMessage(w, http.StatusUnauthorized, security.MsgAuthRequired)
		return
	}

	session, err := h.tokenManager.GenerateToken(result.UserID, result.UserPrincipalName, result.DisplayName, result.PortalRoles, h.sessionTTL)
	if err != nil {
		h.logger.Error("session token generation failed", slog.String("error", err.Error()))
		writeMessage(w, http.StatusInternalServerError, security.MsgInternalError)
		return
	}

	h.logger.Info("user signed in", slog.String("user_id", result.UserID), slog.Int("portal_roles", len(result.PortalRoles)))
	writeJSON(w, http.StatusOK, map[string]any{
		"token":       session,
		"displayName": result.DisplayName,
		"roles":       result.PortalRoles,
		"expiresIn":   int(h.sessionTTL.Seconds()),
	})
}

// Logout handles POST /api/auth/logout: drops the cached Graph token source
// for the signed-in user. The stateless session token simply expires.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaimsFromContext(r.Context())
	if claims == nil {
		writeMessage(w, http.StatusUnauthorized, security.MsgAuthRequired)
		return
	}
	h.provider.Logout(claims.UserID)
	w.WriteHeader(http.StatusNoContent)
}

func randomState() string {
	buf := make([]byte, 16)
	rand.Read(buf)
	return hex.EncodeToString(buf)
}
