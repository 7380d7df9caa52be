package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/entrasecure/entrasecure/internal/domain"
	"github.com/entrasecure/entrasecure/internal/observability/metrics"
	"github.com/entrasecure/entrasecure/pkg/batch"
)

// defaultAccessRoleID is the reserved app role id Graph uses for assignments
// made without an explicit role.
const defaultAccessRoleID = "00000000-0000-0000-0000-000000000000"

// privilegedRoleNames is the fixed allow-list of high-impact directory
// roles. Matching is by exact display name.
var privilegedRoleNames = map[string]struct{}{
	"Global Administrator":             {},
	"Privileged Role Administrator":    {},
	"Security Administrator":           {},
	"Conditional Access Administrator": {},
	"Application Administrator":        {},
	"Cloud Application Administrator":  {},
	"User Administrator":               {},
	"Helpdesk Administrator":           {},
	"Authentication Administrator":     {},
}

// OverviewConfig tunes one aggregation pass
type OverviewConfig struct {
	PortalAppID          string
	PlanName             string
	CredentialWindowDays int
	GroupOwnersLimit     int
	AppOwnersLimit       int
	RoleMembersLimit     int
	RoleDetailLimit      int
}

func (c *OverviewConfig) applyDefaults() {
	if c.CredentialWindowDays <= 0 {
		c.CredentialWindowDays = 30
	}
	if c.GroupOwnersLimit <= 0 {
		c.GroupOwnersLimit = 6
	}
	if c.AppOwnersLimit <= 0 {
		c.AppOwnersLimit = 6
	}
	if c.RoleMembersLimit <= 0 {
		c.RoleMembersLimit = 5
	}
	if c.RoleDetailLimit <= 0 {
		c.RoleDetailLimit = 4
	}
}

// OverviewService builds the tenant security overview. One call produces one
// immutable snapshot; every count is derived from reads taken within that
// call, never mixed across passes.
type OverviewService struct {
	dir    domain.DirectoryReader
	cfg    OverviewConfig
	logger *slog.Logger
	nowFn  func() time.Time
}

// NewOverviewService creates a new overview service
func NewOverviewService(dir domain.DirectoryReader, cfg OverviewConfig, logger *slog.Logger) *OverviewService {
	cfg.applyDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &OverviewService{
		dir:    dir,
		cfg:    cfg,
		logger: logger,
		nowFn:  time.Now,
	}
}

// BuildOverview runs one full aggregation pass against the directory
func (s *OverviewService) BuildOverview(ctx context.Context, token string) (*domain.SecurityOverview, error) {
	start := time.Now()
	overview, err := s.build(ctx, token)
	if err != nil {
		metrics.ObserveOverviewBuild("error", time.Since(start))
		return nil, err
	}
	metrics.ObserveOverviewBuild("success", time.Since(start))
	s.logger.Info("security overview built",
		"duration_ms", time.Since(start).Milliseconds(),
		"users", overview.Totals.Users,
		"groups", overview.Totals.Groups,
		"apps", overview.Totals.Apps)
	return overview, nil
}

func (s *OverviewService) build(ctx context.Context, token string) (*domain.SecurityOverview, error) {
	now := s.nowFn()

	// The five bulk reads have no ordering dependency; run them as a fixed
	// parallel join and wait for all before reducing anything.
	var (
		users   []domain.User
		groups  []domain.Group
		sps     []domain.ServicePrincipal
		roles   []domain.DirectoryRole
		appRegs []domain.AppRegistration
	)
	var wg sync.WaitGroup
	errs := make([]error, 5)
	wg.Add(5)
	go func() { defer wg.Done(); users, errs[0] = s.dir.ListUsers(ctx, token) }()
	go func() { defer wg.Done(); groups, errs[1] = s.dir.ListGroups(ctx, token) }()
	go func() { defer wg.Done(); sps, errs[2] = s.dir.ListServicePrincipals(ctx, token) }()
	go func() { defer wg.Done(); roles, errs[3] = s.dir.ListDirectoryRoles(ctx, token) }()
	go func() { defer wg.Done(); appRegs, errs[4] = s.dir.ListAppRegistrations(ctx, token) }()
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	org, err := s.dir.GetOrganization(ctx, token)
	if err != nil {
		return nil, err
	}

	// Tenant-authored apps only: an enterprise app is "own" iff its appId
	// matches an app registration. Duplicate appIds collapse in the set.
	ownAppIDs := make(map[string]struct{}, len(appRegs))
	for _, a := range appRegs {
		if a.AppID != "" {
			ownAppIDs[a.AppID] = struct{}{}
		}
	}
	ownApps := make([]domain.ServicePrincipal, 0, len(sps))
	for _, sp := range sps {
		if _, ok := ownAppIDs[sp.AppID]; ok && sp.AppID != "" {
			ownApps = append(ownApps, sp)
		}
	}

	totals, identity, groupsBreakdown := breakdowns(users, groups, roles, ownApps, s.cfg.PlanName)

	ownerlessGroups, err := s.detectOwnerlessGroups(ctx, token, groups)
	if err != nil {
		return nil, err
	}
	ownerlessApps, err := s.detectOwnerlessApps(ctx, token, ownApps)
	if err != nil {
		return nil, err
	}

	expired, expiringSoon := countExpiringCredentials(appRegs, now, s.cfg.CredentialWindowDays)
	appsExpiring := appsExpiringSoon(appRegs, now, s.cfg.CredentialWindowDays)

	privileged, rolesInUse, err := s.privilegedConcentration(ctx, token, roles)
	if err != nil {
		return nil, err
	}

	portalRBAC, err := s.portalRBACDistribution(ctx, token)
	if err != nil {
		return nil, err
	}

	return &domain.SecurityOverview{
		GeneratedAt:     now,
		Totals:          totals,
		TenantInfo:      *org,
		GroupsBreakdown: groupsBreakdown,
		Identity:        identity,

		GroupsWithoutOwners: ownerlessGroups,
		AppsWithoutOwners:   ownerlessApps,

		Credentials: domain.CredentialStats{
			ExpiringSoon: expiringSoon,
			Expired:      expired,
			WithinDays:   s.cfg.CredentialWindowDays,
		},

		Privileged:           privileged,
		PrivilegedRolesInUse: rolesInUse,
		PortalRBAC:           portalRBAC,
		Capacity:             s.capacity(len(users), len(ownApps), privileged.Assignments),
		AppsExpiringSoon:     appsExpiring,
	}, nil
}

func breakdowns(users []domain.User, groups []domain.Group, roles []domain.DirectoryRole, ownApps []domain.ServicePrincipal, plan string) (domain.OverviewTotals, domain.IdentityBreakdown, domain.GroupsBreakdown) {
	guests, disabled := 0, 0
	for _, u := range users {
		if u.IsGuest() {
			guests++
		}
		if !u.AccountEnabled {
			disabled++
		}
	}

	m365, security := 0, 0
	for _, g := range groups {
		switch {
		case g.IsUnified():
			m365++
		case g.IsSecurity():
			security++
		}
	}

	totals := domain.OverviewTotals{
		Users:          len(users),
		Groups:         len(groups),
		Apps:           len(ownApps),
		DirectoryRoles: len(roles),
		Plan:           plan,
	}
	identity := domain.IdentityBreakdown{
		Members:  len(users) - guests,
		Guests:   guests,
		Disabled: disabled,
	}
	return totals, identity, domain.GroupsBreakdown{Security: security, M365: m365}
}

// ownerProbe is the sentinel result of one ownership check. A failed probe
// means "unknown", which must never be conflated with zero owners.
type ownerProbe struct {
	id          string
	displayName string
	appID       string
	ownersCount int
	ok          bool
}

func (s *OverviewService) detectOwnerlessGroups(ctx context.Context, token string, groups []domain.Group) (domain.OwnerlessGroups, error) {
	probes, err := batch.MapWithConcurrency(ctx, groups, s.cfg.GroupOwnersLimit, func(ctx context.Context, g domain.Group) (ownerProbe, error) {
		owners, err := s.dir.ListGroupOwners(ctx, token, g.ID)
		if err != nil {
			metrics.ObserveProbeFailure("group_owners")
			s.logger.Warn("group owners probe failed", "group_id", g.ID, "error", err)
			return ownerProbe{id: g.ID, displayName: g.DisplayName}, nil
		}
		return ownerProbe{id: g.ID, displayName: g.DisplayName, ownersCount: len(owners), ok: true}, nil
	})
	if err != nil {
		return domain.OwnerlessGroups{}, err
	}

	items := make([]domain.GroupRef, 0)
	for _, p := range probes {
		if p.ok && p.ownersCount == 0 {
			items = append(items, domain.GroupRef{ID: p.id, DisplayName: p.displayName})
		}
	}
	return domain.OwnerlessGroups{Count: len(items), Items: items}, nil
}

func (s *OverviewService) detectOwnerlessApps(ctx context.Context, token string, ownApps []domain.ServicePrincipal) (domain.OwnerlessApps, error) {
	probes, err := batch.MapWithConcurrency(ctx, ownApps, s.cfg.AppOwnersLimit, func(ctx context.Context, sp domain.ServicePrincipal) (ownerProbe, error) {
		owners, err := s.dir.ListServicePrincipalOwners(ctx, token, sp.ID)
		if err != nil {
			metrics.ObserveProbeFailure("app_owners")
			s.logger.Warn("app owners probe failed", "sp_id", sp.ID, "error", err)
			return ownerProbe{id: sp.ID, displayName: sp.DisplayName, appID: sp.AppID}, nil
		}
		return ownerProbe{id: sp.ID, displayName: sp.DisplayName, appID: sp.AppID, ownersCount: len(owners), ok: true}, nil
	})
	if err != nil {
		return domain.OwnerlessApps{}, err
	}

	items := make([]domain.AppRef, 0)
	for _, p := range probes {
		if p.ok && p.ownersCount == 0 {
			items = append(items, domain.AppRef{ID: p.id, DisplayName: p.displayName, AppID: p.appID})
		}
	}
	return domain.OwnerlessApps{Count: len(items), Items: items}, nil
}

func (s *OverviewService) privilegedConcentration(ctx context.Context, token string, roles []domain.DirectoryRole) (domain.PrivilegedStats, []domain.PrivilegedRole, error) {
	type roleCount struct {
		role       domain.DirectoryRole
		count      int
		highImpact bool
	}
	counts, err := batch.MapWithConcurrency(ctx, roles, s.cfg.RoleMembersLimit, func(ctx context.Context, r domain.DirectoryRole) (roleCount, error) {
		members, err := s.dir.ListDirectoryRoleMembers(ctx, token, r.ID)
		if err != nil {
			return roleCount{}, err
		}
		_, highImpact := privilegedRoleNames[r.DisplayName]
		return roleCount{role: r, count: len(members), highImpact: highImpact}, nil
	})
	if err != nil {
		return domain.PrivilegedStats{}, nil, err
	}

	assignments, highImpactCount := 0, 0
	inUse := make([]domain.DirectoryRole, 0)
	for _, rc := range counts {
		if !rc.highImpact {
			continue
		}
		highImpactCount++
		assignments += rc.count
		if rc.count > 0 {
			inUse = append(inUse, rc.role)
		}
	}

	// Second pass over the in-use roles only, to resolve member names for
	// the UI. Non-user principals are dropped from the display list.
	rolesInUse, err := batch.MapWithConcurrency(ctx, inUse, s.cfg.RoleDetailLimit, func(ctx context.Context, r domain.DirectoryRole) (domain.PrivilegedRole, error) {
		members, err := s.dir.ListDirectoryRoleMembers(ctx, token, r.ID)
		if err != nil {
			return domain.PrivilegedRole{}, err
		}
		users := make([]domain.RoleMemberRef, 0, len(members))
		for _, m := range members {
			if m.Kind != domain.KindUser {
				continue
			}
			users = append(users, domain.RoleMemberRef{
				ID:                m.ID,
				DisplayName:       m.DisplayName,
				UserPrincipalName: m.UserPrincipalName,
			})
		}
		return domain.PrivilegedRole{
			ID:           r.ID,
			DisplayName:  r.DisplayName,
			MembersCount: len(users),
			Users:        users,
		}, nil
	})
	if err != nil {
		return domain.PrivilegedStats{}, nil, err
	}

	stats := domain.PrivilegedStats{
		Assignments:          assignments,
		HighImpactRolesCount: highImpactCount,
	}
	return stats, rolesInUse, nil
}

// portalRBACDistribution resolves the portal's own service principal and
// groups its app role assignments by human-readable label. An absent service
// principal or missing configuration is an expected state, reported inside
// the result; a failed read propagates.
func (s *OverviewService) portalRBACDistribution(ctx context.Context, token string) (domain.PortalRBAC, error) {
	if s.cfg.PortalAppID == "" {
		return domain.PortalRBAC{Error: "portal application id not configured"}, nil
	}

	sp, err := s.dir.GetServicePrincipalByAppID(ctx, token, s.cfg.PortalAppID)
	if err != nil {
		return domain.PortalRBAC{}, err
	}
	if sp == nil {
		return domain.PortalRBAC{
			PortalAppID: s.cfg.PortalAppID,
			Error:       "service principal not found for portal application id",
		}, nil
	}

	assignments, err := s.dir.ListAppRoleAssignments(ctx, token, sp.ID)
	if err != nil {
		return domain.PortalRBAC{}, err
	}

	labels := map[string]string{defaultAccessRoleID: "Default access"}
	for _, r := range sp.AppRoles {
		if r.ID == "" {
			continue
		}
		switch {
		case r.DisplayName != "":
			labels[r.ID] = r.DisplayName
		case r.Value != "":
			labels[r.ID] = r.Value
		default:
			labels[r.ID] = r.ID
		}
	}

	byLabel := make(map[string]int)
	for _, a := range assignments {
		key := a.AppRoleID
		if key == "" {
			key = "unknown"
		}
		label, ok := labels[key]
		if !ok {
			label = key
		}
		byLabel[label]++
	}

	return domain.PortalRBAC{
		PortalAppID:      s.cfg.PortalAppID,
		PortalSPName:     sp.DisplayName,
		TotalAssignments: len(assignments),
		ByLabel:          byLabel,
	}, nil
}

func (s *OverviewService) capacity(totalUsers, ownApps, privilegedAssignments int) domain.Capacity {
	ratio := 0.0
	if totalUsers > 0 {
		ratio = float64(privilegedAssignments) / float64(totalUsers)
	}

	var concentration domain.CapacityLevel
	switch {
	case ratio < 0.02:
		concentration = domain.CapacityLevel{Label: "Low", Pct: 25}
	case ratio < 0.06:
		concentration = domain.CapacityLevel{Label: "Moderate", Pct: 55}
	default:
		concentration = domain.CapacityLevel{Label: "High", Pct: 85}
	}

	return domain.Capacity{
		IdentityVolume:          levelByThreshold(totalUsers, 200, 2000),
		AppFootprint:            levelByThreshold(ownApps, 30, 200),
		PrivilegedConcentration: concentration,
		Notes: []string{
			"Plan: " + s.cfg.PlanName + ". Advanced features such as PIM, sign-in logs and Conditional Access may not be available on this plan.",
		},
	}
}

func levelByThreshold(n, t1, t2 int) domain.CapacityLevel {
	switch {
	case n < t1:
		return domain.CapacityLevel{Label: "Low", Pct: 25}
	case n < t2:
		return domain.CapacityLevel{Label: "Moderate", Pct: 55}
	default:
		return domain.CapacityLevel{Label: "High", Pct: 85}
	}
}

// parseCredentialDate accepts the timestamp shapes Graph actually emits.
// Anything unparseable is no signal, not an error.
func parseCredentialDate(raw string) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func countExpiringCredentials(appRegs []domain.AppRegistration, now time.Time, windowDays int) (expired, expiringSoon int) {
	threshold := now.AddDate(0, 0, windowDays)
	for _, a := range appRegs {
		for _, c := range append(append([]domain.Credential{}, a.PasswordCredentials...), a.KeyCredentials...) {
			end, ok := parseCredentialDate(c.EndDateTime)
			if !ok {
				continue
			}
			switch {
			case end.Before(now):
				expired++
			case !end.After(threshold):
				expiringSoon++
			}
		}
	}
	return expired, expiringSoon
}

// appsExpiringSoon lists registrations holding at least one credential that
// is still valid now but lapses within the window
func appsExpiringSoon(appRegs []domain.AppRegistration, now time.Time, windowDays int) domain.AppsExpiringSoon {
	threshold := now.AddDate(0, 0, windowDays)
	items := make([]domain.AppRef, 0)
	for _, a := range appRegs {
		creds := append(append([]domain.Credential{}, a.PasswordCredentials...), a.KeyCredentials...)
		for _, c := range creds {
			end, ok := parseCredentialDate(c.EndDateTime)
			if !ok {
				continue
			}
			if end.After(now) && !end.After(threshold) {
				items = append(items, domain.AppRef{ID: a.ID, DisplayName: a.DisplayName, AppID: a.AppID})
				break
			}
		}
	}
	return domain.AppsExpiringSoon{Count: len(items), Items: items}
}
