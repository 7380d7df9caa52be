package featureflags

import (
	"os"
	"strings"
)

// Flags the portal checks at startup. Each is read from env as
// FLAG_<NAME>=true/1/yes (case-insensitive).
const (
	// BackgroundRefresh enables the worker that rebuilds the overview
	// snapshot on an interval with an app-only token.
	BackgroundRefresh = "background_refresh"

	// OverviewStream enables the websocket push of refreshed snapshots.
	OverviewStream = "overview_stream"

	// AuditPersistence enables writing audit events to postgres in
	// addition to the structured log.
	AuditPersistence = "audit_persistence"
)

// Enabled returns true if a flag is enabled via environment variable
func Enabled(name string) bool {
	v := os.Getenv("FLAG_" + strings.ToUpper(name))
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
