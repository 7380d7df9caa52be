package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/entrasecure/entrasecure/internal/domain"
	"github.com/entrasecure/entrasecure/internal/security"
	"github.com/entrasecure/entrasecure/internal/security/auth"
	"github.com/entrasecure/entrasecure/internal/security/middleware"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeServiceError translates a service-layer error into the catalog's
// user-facing JSON shape for the given action key
func writeServiceError(w http.ResponseWriter, log *slog.Logger, actionKey string, err error) {
	status, message := security.MapError(actionKey, err)
	if status >= http.StatusInternalServerError {
		log.Error("request failed", slog.String("action", actionKey), slog.String("error", err.Error()))
	} else {
		log.Warn("request rejected", slog.String("action", actionKey), slog.Int("status", status), slog.String("error", err.Error()))
	}
	writeMessage(w, status, message)
}

// graphToken resolves the session claims and exchanges them for a Microsoft
// Graph access token. A false return means the response is already written.
func graphToken(w http.ResponseWriter, r *http.Request, tokens domain.TokenProvider, log *slog.Logger) (string, *auth.Claims, bool) {
	claims := middleware.GetClaimsFromContext(r.Context())
	if claims == nil {
		writeMessage(w, http.StatusUnauthorized, security.MsgAuthRequired)
		return "", nil, false
	}
	token, err := tokens.AccessToken(r.Context(), claims.UserID)
	if err != nil {
		log.Warn("token acquisition failed", slog.String("user_id", claims.UserID), slog.String("error", err.Error()))
		writeMessage(w, http.StatusUnauthorized, security.MsgAuthRequired)
		return "", nil, false
	}
	return token, claims, true
}
