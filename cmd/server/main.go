package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/entrasecure/entrasecure/internal/featureflags"
	"github.com/entrasecure/entrasecure/internal/handler"
	"github.com/entrasecure/entrasecure/internal/infrastructure/graph"
	"github.com/entrasecure/entrasecure/internal/infrastructure/logger"
	"github.com/entrasecure/entrasecure/internal/infrastructure/redis"
	"github.com/entrasecure/entrasecure/internal/observability/metrics"
	"github.com/entrasecure/entrasecure/internal/observability/tracing"
	"github.com/entrasecure/entrasecure/internal/repository"
	"github.com/entrasecure/entrasecure/internal/security"
	"github.com/entrasecure/entrasecure/internal/security/audit"
	"github.com/entrasecure/entrasecure/internal/security/auth"
	"github.com/entrasecure/entrasecure/internal/security/middleware"
	"github.com/entrasecure/entrasecure/internal/security/ratelimit"
	"github.com/entrasecure/entrasecure/internal/service"
	"github.com/entrasecure/entrasecure/internal/worker"
	"github.com/entrasecure/entrasecure/pkg/config"
	"github.com/entrasecure/entrasecure/pkg/database"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. Initialize structured logger
	log := logger.NewLogger(cfg.LogLevel)
	log.Info("starting EntraSecure server", slog.String("environment", cfg.Environment))

	// 3. Initialize tracing (no-op without an OTLP endpoint)
	shutdownTracing, err := tracing.Init(context.Background(), log, "entrasecure", cfg.Environment)
	if err != nil {
		log.Error("failed to initialize tracing", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. Initialize Redis (snapshot store)
	redisClient, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		log.Error("failed to connect to Redis", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer redisClient.Close()

	// 5. Initialize Postgres (audit store), optional behind a flag
	var db *database.ConnectionPool
	var auditStore *audit.Store
	if featureflags.Enabled(featureflags.AuditPersistence) {
		db, err = database.NewConnectionPool(context.Background(), cfg.Postgres, log)
		if err != nil {
			log.Error("failed to connect to Postgres", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer db.Close()
		if err := db.EnsureAuditSchema(context.Background()); err != nil {
			log.Error("failed to ensure audit schema", slog.String("error", err.Error()))
			os.Exit(1)
		}
		auditStore = audit.NewStore(db.DB())
	}

	// 6. Initialize the Graph client and repositories
	graphClient := graph.NewClient(cfg.GraphBaseURL, log)
	directoryRepo := repository.NewDirectoryRepository(graphClient, log)
	snapshotRepo := repository.NewSnapshotRepository(redisClient, time.Duration(cfg.SnapshotTTLMinutes)*time.Minute, log)

	// 7. Initialize auth components
	oidcProvider := auth.NewProvider(cfg.TenantID, cfg.ClientID, cfg.ClientSecret, cfg.RedirectURI, cfg.GraphScopes, log)
	tokenManager := auth.NewTokenManager(cfg.SessionSecret, "entrasecure")
	appTokens := auth.NewAppTokenProvider(cfg.TenantID, cfg.ClientID, cfg.ClientSecret, log)

	// 8. Initialize services
	overviewService := service.NewOverviewService(directoryRepo, service.OverviewConfig{
		PortalAppID:          cfg.ClientID,
		PlanName:             cfg.PlanName,
		CredentialWindowDays: cfg.CredentialWindowDays,
		GroupOwnersLimit:     cfg.GroupOwnersLimit,
		AppOwnersLimit:       cfg.AppOwnersLimit,
		RoleMembersLimit:     cfg.RoleMembersLimit,
		RoleDetailLimit:      cfg.RoleDetailLimit,
	}, log)
	identityService := service.NewIdentityService(directoryRepo, log)
	directoryService := service.NewDirectoryService(directoryRepo, directoryRepo, log)

	// 9. Initialize security components
	authz := security.NewAuthorizationService(log)
	rateLimiter := ratelimit.NewLimiter(cfg.RateLimitPerMinute, time.Minute)
	auditLogger := audit.NewLogger(log, auditStore)

	// 10. Initialize handlers
	overviewTimeout := time.Duration(cfg.OverviewTimeoutSeconds) * time.Second
	sessionTTL := time.Duration(cfg.SessionTTLMinutes) * time.Minute
	authHandler := handler.NewAuthHandler(oidcProvider, tokenManager, sessionTTL, log)
	overviewHandler := handler.NewOverviewHandler(overviewService, snapshotRepo, oidcProvider, log, overviewTimeout)
	historyHandler := handler.NewOverviewHistoryHandler(snapshotRepo, log)
	identityHandler := handler.NewIdentityHandler(identityService, oidcProvider, log)
	usersHandler := handler.NewTenantUsersHandler(directoryService, oidcProvider, auditLogger, log)
	groupsHandler := handler.NewTenantGroupsHandler(directoryService, oidcProvider, auditLogger, log)
	rolesHandler := handler.NewTenantRolesHandler(directoryService, oidcProvider, auditLogger, log)
	appsHandler := handler.NewTenantAppsHandler(directoryService, oidcProvider, auditLogger, log)
	healthHandler := handler.NewHealthHandler(redisClient, db, log)
	overviewStream := handler.NewOverviewStream(cfg.CORSAllowedOrigins, log)

	requireTenantAdmin := middleware.RequireRoles(authz, auditLogger, security.RoleTenantAdmin)
	requireUserAdmin := middleware.RequireRoles(authz, auditLogger, security.RoleUserAdmin, security.RoleReader)
	requireUserManage := middleware.RequireRoles(authz, auditLogger, security.RoleUserAdmin)
	requireGroupRead := middleware.RequireRoles(authz, auditLogger, security.RoleGroupAdmin, security.RoleReader)
	requireGroupManage := middleware.RequireRoles(authz, auditLogger, security.RoleGroupAdmin)
	requireAppRead := middleware.RequireRoles(authz, auditLogger, security.RoleAppAdmin, security.RoleReader)
	requireAppManage := middleware.RequireRoles(authz, auditLogger, security.RoleAppAdmin)
	requireRoleRead := middleware.RequireRoles(authz, auditLogger, security.RoleRoleAdmin, security.RoleReader)
	requireRoleManage := middleware.RequireRoles(authz, auditLogger, security.RoleRoleAdmin)

	// 11. Setup HTTP routes
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/auth/login", authHandler.Login)
	mux.HandleFunc("GET /api/auth/callback", authHandler.Callback)
	mux.HandleFunc("POST /api/auth/logout", authHandler.Logout)

	mux.Handle("GET /api/me", identityHandler)
	mux.Handle("GET /api/security/overview", requireTenantAdmin(overviewHandler))
	mux.Handle("GET /api/security/overview/history", requireTenantAdmin(historyHandler))
	if auditStore != nil {
		mux.Handle("GET /api/audit", requireTenantAdmin(handler.NewAuditHandler(auditStore, log)))
	}

	mux.Handle("GET /api/tenant/users", requireUserAdmin(http.HandlerFunc(usersHandler.List)))
	mux.Handle("POST /api/tenant/users", requireUserManage(http.HandlerFunc(usersHandler.Create)))
	mux.Handle("DELETE /api/tenant/users/{id}", requireUserManage(http.HandlerFunc(usersHandler.Delete)))

	mux.Handle("GET /api/tenant/groups", requireGroupRead(http.HandlerFunc(groupsHandler.List)))
	mux.Handle("POST /api/tenant/groups", requireGroupManage(http.HandlerFunc(groupsHandler.Create)))
	mux.Handle("DELETE /api/tenant/groups/{id}", requireGroupManage(http.HandlerFunc(groupsHandler.Delete)))
	mux.Handle("POST /api/tenant/groups/{id}/owners", requireGroupManage(http.HandlerFunc(groupsHandler.AddOwner)))
	mux.Handle("POST /api/tenant/groups/{id}/members", requireGroupManage(http.HandlerFunc(groupsHandler.AddMember)))

	mux.Handle("GET /api/tenant/apps", requireAppRead(http.HandlerFunc(appsHandler.List)))
	mux.Handle("POST /api/tenant/apps/{id}/roles", requireAppManage(http.HandlerFunc(appsHandler.AssignRole)))

	mux.Handle("GET /api/tenant/roles", requireRoleRead(http.HandlerFunc(rolesHandler.List)))
	mux.Handle("GET /api/tenant/roles/{id}/members", requireRoleRead(http.HandlerFunc(rolesHandler.Members)))
	mux.Handle("POST /api/tenant/roles/{id}/members", requireRoleManage(http.HandlerFunc(rolesHandler.AddMember)))
	mux.Handle("POST /api/tenant/roles/activate", requireRoleManage(http.HandlerFunc(rolesHandler.Activate)))

	if featureflags.Enabled(featureflags.OverviewStream) {
		mux.Handle("GET /ws/overview", requireTenantAdmin(overviewStream))
	}

	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("GET /healthz", healthHandler.Health)
	mux.HandleFunc("GET /readyz", healthHandler.Ready)

	// Session runs before rate limiting and audit so both see the
	// principal's claims
	protected := middleware.SessionMiddleware(tokenManager, log)(
		middleware.RateLimitMiddleware(rateLimiter, log)(
			middleware.AuditMiddleware(auditLogger)(mux),
		),
	)

	// CORS middleware honoring configured origins. Sits outside the session
	// check so preflight requests are answered without credentials.
	handlerWithCORS := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if originAllowed(cfg.CORSAllowedOrigins, origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
		} else if len(cfg.CORSAllowedOrigins) > 0 {
			w.Header().Set("Access-Control-Allow-Origin", cfg.CORSAllowedOrigins[0])
		}
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS, DELETE")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		protected.ServeHTTP(w, r)
	})

	// Chain middleware: request ID -> metrics -> CORS -> session -> rate limit -> audit
	rootHandler := withRequestID(metrics.HTTPMetricsMiddleware(handlerWithCORS), log)

	// 12. Start the refresh worker in background
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if featureflags.Enabled(featureflags.BackgroundRefresh) {
		refreshWorker := worker.NewRefreshWorker(
			overviewService,
			snapshotRepo,
			appTokens,
			overviewStream,
			log,
			time.Duration(cfg.RefreshIntervalMinutes)*time.Minute,
		)
		go refreshWorker.Start(ctx)
	}

	// 13. Start HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      rootHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: time.Duration(cfg.OverviewTimeoutSeconds+10) * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Info("server starting",
		slog.Int("port", cfg.ServerPort),
		slog.String("graph_base_url", cfg.GraphBaseURL),
		slog.Int("rate_limit", cfg.RateLimitPerMinute),
	)

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", slog.String("error", err.Error()))
		}
	}()

	<-sigChan
	log.Info("shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", slog.String("error", err.Error()))
	}

	cancel() // Stop refresh worker
	rateLimiter.Stop()
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error("tracing shutdown error", slog.String("error", err.Error()))
	}
	log.Info("server stopped")
}

func originAllowed(allowed []string, origin string) bool {
	for _, a := range allowed {
		if a == origin {
			return true
		}
	}
	return false
}

type requestIDKey struct{}

// withRequestID attaches a request ID to the context and response headers
// for traceability
func withRequestID(next http.Handler, log *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := generateRequestID()
		w.Header().Set("X-Request-ID", reqID)

		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		start := time.Now()

		next.ServeHTTP(w, r.WithContext(ctx))

		log.Debug("request handled",
			slog.String("request_id", reqID),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Duration("duration", time.Since(start)),
		)
	})
}

func generateRequestID() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(buf)
}
