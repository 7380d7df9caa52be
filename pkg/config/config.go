package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds the application configuration
type Config struct {
	Environment string
	ServerPort  int
	LogLevel    string

	// Entra ID / Microsoft Graph
	TenantID     string
	ClientID     string
	ClientSecret string
	RedirectURI  string
	GraphBaseURL string
	GraphScopes  []string

	// Portal sessions
	SessionSecret     string
	SessionTTLMinutes int

	// Aggregation tuning
	CredentialWindowDays   int
	GroupOwnersLimit       int
	AppOwnersLimit         int
	RoleMembersLimit       int
	RoleDetailLimit        int
	OverviewTimeoutSeconds int
	RefreshIntervalMinutes int
	SnapshotTTLMinutes     int
	PlanName               string

	// Infrastructure
	RedisURL           string
	Postgres           PostgresConfig
	CORSAllowedOrigins []string
	RateLimitPerMinute int
}

// PostgresConfig holds the audit store connection settings
type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	port, err := intEnv("SERVER_PORT", 8080)
	if err != nil {
		return nil, err
	}
	windowDays, err := intEnv("CREDENTIAL_WINDOW_DAYS", 30)
	if err != nil {
		return nil, err
	}
	groupOwnersLimit, err := intEnv("GROUP_OWNERS_LIMIT", 6)
	if err != nil {
		return nil, err
	}
	appOwnersLimit, err := intEnv("APP_OWNERS_LIMIT", 6)
	if err != nil {
		return nil, err
	}
	roleMembersLimit, err := intEnv("ROLE_MEMBERS_LIMIT", 5)
	if err != nil {
		return nil, err
	}
	roleDetailLimit, err := intEnv("ROLE_DETAIL_LIMIT", 4)
	if err != nil {
		return nil, err
	}
	overviewTimeout, err := intEnv("OVERVIEW_TIMEOUT_SECONDS", 120)
	if err != nil {
		return nil, err
	}
	refreshInterval, err := intEnv("OVERVIEW_REFRESH_MINUTES", 15)
	if err != nil {
		return nil, err
	}
	snapshotTTL, err := intEnv("OVERVIEW_SNAPSHOT_TTL_MINUTES", 60)
	if err != nil {
		return nil, err
	}
	sessionTTL, err := intEnv("SESSION_TTL_MINUTES", 60)
	if err != nil {
		return nil, err
	}
	rateLimit, err := intEnv("RATE_LIMIT_PER_MINUTE", 100)
	if err != nil {
		return nil, err
	}
	pgPort, err := intEnv("POSTGRES_PORT", 5432)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		ServerPort:  port,
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		TenantID:     os.Getenv("AZURE_TENANT_ID"),
		ClientID:     os.Getenv("AZURE_CLIENT_ID"),
		ClientSecret: os.Getenv("AZURE_CLIENT_SECRET"),
		RedirectURI:  getEnv("AZURE_REDIRECT_URI", "http://localhost:8080/api/auth/callback"),
		GraphBaseURL: getEnv("GRAPH_BASE_URL", "https://graph.microsoft.com/v1.0"),
		GraphScopes: parseCSVEnv("GRAPH_SCOPES", []string{
			"User.Read",
			"User.Read.All",
			"Group.Read.All",
			"Application.Read.All",
			"RoleManagement.Read.Directory",
		}),

		SessionSecret:     getEnv("SESSION_SECRET", ""),
		SessionTTLMinutes: sessionTTL,

		CredentialWindowDays:   windowDays,
		GroupOwnersLimit:       groupOwnersLimit,
		AppOwnersLimit:         appOwnersLimit,
		RoleMembersLimit:       roleMembersLimit,
		RoleDetailLimit:        roleDetailLimit,
		OverviewTimeoutSeconds: overviewTimeout,
		RefreshIntervalMinutes: refreshInterval,
		SnapshotTTLMinutes:     snapshotTTL,
		PlanName:               getEnv("TENANT_PLAN_NAME", "Microsoft Entra ID Free"),

		RedisURL: getEnv("REDIS_URL", "redis://localhost:6379"),
		Postgres: PostgresConfig{
			Host:     getEnv("POSTGRES_HOST", "localhost"),
			Port:     pgPort,
			User:     getEnv("POSTGRES_USER", "entrasecure"),
			Password: os.Getenv("POSTGRES_PASSWORD"),
			Database: getEnv("POSTGRES_DB", "entrasecure"),
			SSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		},
		CORSAllowedOrigins: parseCSVEnv("CORS_ALLOWED_ORIGINS", []string{
			"http://localhost:5173",
			"http://localhost:3000",
		}),
		RateLimitPerMinute: rateLimit,
	}

	if cfg.TenantID == "" || cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("AZURE_TENANT_ID, AZURE_CLIENT_ID and AZURE_CLIENT_SECRET are required")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func intEnv(key string, defaultValue int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func parseCSVEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			trimmed := strings.TrimSpace(p)
			if trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}
