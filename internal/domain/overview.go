package domain

import "time"

// CapacityLevel is a qualitative three-tier indicator for the dashboard
type CapacityLevel struct {
	Label string `json:"label"` // Low, Moderate or High
	Pct   int    `json:"pct"`   // gauge fill percentage for the UI
}

// OverviewTotals holds the headline counts
type OverviewTotals struct {
	Users          int    `json:"users"`
	Groups         int    `json:"groups"`
	Apps           int    `json:"apps"` // tenant-owned enterprise apps only
	DirectoryRoles int    `json:"directoryRoles"`
	Plan           string `json:"plan"`
}

// GroupsBreakdown partitions groups by flavor
type GroupsBreakdown struct {
	Security int `json:"security"`
	M365     int `json:"m365"`
}

// IdentityBreakdown partitions the user population
type IdentityBreakdown struct {
	Members  int `json:"members"`
	Guests   int `json:"guests"`
	Disabled int `json:"disabled"`
}

// GroupRef identifies a group in a governance list
type GroupRef struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

// AppRef identifies an application in a governance list
type AppRef struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	AppID       string `json:"appId"`
}

// OwnerlessGroups lists groups confirmed to have zero owners
type OwnerlessGroups struct {
	Count int        `json:"count"`
	Items []GroupRef `json:"items"`
}

// OwnerlessApps lists tenant-owned enterprise apps with zero owners
type OwnerlessApps struct {
	Count int      `json:"count"`
	Items []AppRef `json:"items"`
}

// CredentialStats summarizes credential hygiene over app registrations
type CredentialStats struct {
	ExpiringSoon int `json:"expiringSoon"`
	Expired      int `json:"expired"`
	WithinDays   int `json:"withinDays"`
}

// PrivilegedStats summarizes assignments to high-impact directory roles
type PrivilegedStats struct {
	Assignments          int `json:"assignments"`
	HighImpactRolesCount int `json:"highImpactRolesCount"`
}

// RoleMemberRef is a user principal shown in a privileged-role member list
type RoleMemberRef struct {
	ID                string `json:"id"`
	DisplayName       string `json:"displayName"`
	UserPrincipalName string `json:"userPrincipalName"`
}

// PrivilegedRole is a high-impact role with at least one member
type PrivilegedRole struct {
	ID           string          `json:"id"`
	DisplayName  string          `json:"displayName"`
	MembersCount int             `json:"membersCount"`
	Users        []RoleMemberRef `json:"users"`
}

// PortalRBAC reports the distribution of the portal's own app role
// assignments. An absent portal service principal is an expected
// configuration state, reported through Error rather than a failure.
type PortalRBAC struct {
	PortalAppID      string         `json:"portalAppId,omitempty"`
	PortalSPName     string         `json:"portalSpName,omitempty"`
	TotalAssignments int            `json:"totalAssignments"`
	ByLabel          map[string]int `json:"byLabel,omitempty"`
	Error            string         `json:"error,omitempty"`
}

// Capacity groups the qualitative indicators
type Capacity struct {
	IdentityVolume          CapacityLevel `json:"identityVolume"`
	AppFootprint            CapacityLevel `json:"appFootprint"`
	PrivilegedConcentration CapacityLevel `json:"privilegedConcentration"`
	Notes                   []string      `json:"notes"`
}

// AppsExpiringSoon lists app registrations holding at least one credential
// that expires within the window (excluding already-expired ones)
type AppsExpiringSoon struct {
	Count int      `json:"count"`
	Items []AppRef `json:"items"`
}

// SecurityOverview is the aggregate produced by one aggregation pass.
// It is assembled once and never mutated afterwards; every count is derived
// from the same snapshot of Graph reads.
type SecurityOverview struct {
	GeneratedAt time.Time `json:"generatedAt"`

	Totals          OverviewTotals    `json:"totals"`
	TenantInfo      Organization      `json:"tenantInfo"`
	GroupsBreakdown GroupsBreakdown   `json:"groupsBreakdown"`
	Identity        IdentityBreakdown `json:"identity"`

	GroupsWithoutOwners OwnerlessGroups `json:"groupsWithoutOwners"`
	AppsWithoutOwners   OwnerlessApps   `json:"appsWithoutOwners"`

	Credentials CredentialStats `json:"credentials"`

	Privileged           PrivilegedStats  `json:"privileged"`
	PrivilegedRolesInUse []PrivilegedRole `json:"privilegedRolesInUse"`

	PortalRBAC PortalRBAC `json:"portalRbac"`

	Capacity Capacity `json:"capacity"`

	AppsExpiringSoon AppsExpiringSoon `json:"appsExpiringSoon"`
}

// SnapshotRepository persists overview snapshots so the dashboard can serve
// a recent view without waiting for a full aggregation pass
type SnapshotRepository interface {
	SaveLatest(overview *SecurityOverview) error
	GetLatest() (*SecurityOverview, error)
	History(limit int) ([]*SecurityOverview, error)
}
