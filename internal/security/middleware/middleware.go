package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/entrasecure/entrasecure/internal/security"
	"github.com/entrasecure/entrasecure/internal/security/audit"
	"github.com/entrasecure/entrasecure/internal/security/auth"
	"github.com/entrasecure/entrasecure/internal/security/ratelimit"
)

type ClaimsContextKey struct{}

// isPublic reports whether a path is reachable without a portal session.
// Logout is not public: it needs the session claims to know which cached
// token source to drop.
func isPublic(path string) bool {
	if path == "/api/auth/logout" {
		return false
	}
	return path == "/healthz" || path == "/readyz" || path == "/metrics" ||
		strings.HasPrefix(path, "/api/auth/")
}

// SessionMiddleware validates the portal session token and places its
// claims in the request context
func SessionMiddleware(tm *auth.TokenManager, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isPublic(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			var tokenString string
			if authHeader := r.Header.Get("Authorization"); authHeader != "" {
				var err error
				tokenString, err = auth.ExtractToken(authHeader)
				if err != nil {
					http.Error(w, `{"error":"invalid auth"}`, http.StatusUnauthorized)
					return
				}
			} else if strings.HasPrefix(r.URL.Path, "/ws/") {
				// Browsers cannot set headers on a websocket upgrade, so
				// stream clients pass the session token as ?token=
				tokenString = r.URL.Query().Get("token")
			}
			if tokenString == "" {
				http.Error(w, `{"error":"missing auth"}`, http.StatusUnauthorized)
				return
			}

			claims, err := tm.ValidateToken(tokenString)
			if err != nil {
				log.Debug("session token rejected", slog.String("error", err.Error()))
				http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), ClaimsContextKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RateLimitMiddleware limits authenticated traffic per principal
func RateLimitMiddleware(limiter *ratelimit.Limiter, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isPublic(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			principalID := ""
			if claims := GetClaimsFromContext(r.Context()); claims != nil {
				principalID = claims.UserID
			}
			if !limiter.Allow(principalID) {
				log.Warn("rate limit exceeded", slog.String("user_id", principalID))
				http.Error(w, `{"error":"rate limit exceeded"}`, http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// AuditMiddleware records directory mutations before they are attempted
func AuditMiddleware(auditLog *audit.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodPost || r.Method == http.MethodDelete {
				actorID := ""
				if claims := GetClaimsFromContext(r.Context()); claims != nil {
					actorID = claims.UserID
				}
				if strings.HasPrefix(r.URL.Path, "/api/tenant/") {
					auditLog.LogAction(r.Context(), actorID,
						strings.ToLower(r.Method), r.URL.Path, r.PathValue("id"), "initiated", "")
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRoles wraps a handler with a portal role check. TenantAdmin always
// passes (the authorization service implements the bypass).
func RequireRoles(authz *security.AuthorizationService, auditLog *audit.Logger, roles ...security.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := GetClaimsFromContext(r.Context())
			if claims == nil {
				http.Error(w, `{"error":"missing auth"}`, http.StatusUnauthorized)
				return
			}
			if !authz.HasAnyRole(claims.PortalRoles, roles...) {
				auditLog.LogDenied(r.Context(), claims.UserID, "missing portal role")
				http.Error(w, `{"error":"`+security.MsgForbiddenPortalRole+`"}`, http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetClaimsFromContext returns the session claims, or nil outside a session
func GetClaimsFromContext(ctx context.Context) *auth.Claims {
	if c := ctx.Value(ClaimsContextKey{}); c != nil {
		return c.(*auth.Claims)
	}
	return nil
}
