package service

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/entrasecure/entrasecure/internal/domain"
)

type fakeDirectory struct {
	users   []domain.User
	groups  []domain.Group
	sps     []domain.ServicePrincipal
	appRegs []domain.AppRegistration
	roles   []domain.DirectoryRole

	groupOwners    map[string][]domain.Principal
	groupOwnersErr map[string]error
	spOwners       map[string][]domain.Principal
	spOwnersErr    map[string]error
	roleMembers    map[string][]domain.Principal
	portalSP       *domain.ServicePrincipal
	assignments    []domain.AppRoleAssignment

	usersErr error
}

func (f *fakeDirectory) ListUsers(ctx context.Context, token string) ([]domain.User, error) {
	if f.usersErr != nil {
		return nil, f.usersErr
	}
	return f.users, nil
}

func (f *fakeDirectory) ListUsersPreview(ctx context.Context, token string, top int) ([]domain.User, error) {
	if top < len(f.users) {
		return f.users[:top], nil
	}
	return f.users, nil
}

func (f *fakeDirectory) ListGroups(ctx context.Context, token string) ([]domain.Group, error) {
	return f.groups, nil
}

func (f *fakeDirectory) ListGroupsPreview(ctx context.Context, token string, top int) ([]domain.Group, error) {
	if top < len(f.groups) {
		return f.groups[:top], nil
	}
	return f.groups, nil
}

func (f *fakeDirectory) ListServicePrincipals(ctx context.Context, token string) ([]domain.ServicePrincipal, error) {
	return f.sps, nil
}

func (f *fakeDirectory) ListAppRegistrations(ctx context.Context, token string) ([]domain.AppRegistration, error) {
	return f.appRegs, nil
}

func (f *fakeDirectory) ListDirectoryRoles(ctx context.Context, token string) ([]domain.DirectoryRole, error) {
	return f.roles, nil
}

func (f *fakeDirectory) ListDirectoryRoleMembers(ctx context.Context, token, roleID string) ([]domain.Principal, error) {
	return f.roleMembers[roleID], nil
}

func (f *fakeDirectory) ListGroupOwners(ctx context.Context, token, groupID string) ([]domain.Principal, error) {
	if err := f.groupOwnersErr[groupID]; err != nil {
		return nil, err
	}
	return f.groupOwners[groupID], nil
}

func (f *fakeDirectory) ListServicePrincipalOwners(ctx context.Context, token, spID string) ([]domain.Principal, error) {
	if err := f.spOwnersErr[spID]; err != nil {
		return nil, err
	}
	return f.spOwners[spID], nil
}

func (f *fakeDirectory) GetServicePrincipalByAppID(ctx context.Context, token, appID string) (*domain.ServicePrincipal, error) {
	if f.portalSP != nil && f.portalSP.AppID == appID {
		return f.portalSP, nil
	}
	return nil, nil
}

func (f *fakeDirectory) ListAppRoleAssignments(ctx context.Context, token, spID string) ([]domain.AppRoleAssignment, error) {
	return f.assignments, nil
}

func (f *fakeDirectory) GetOrganization(ctx context.Context, token string) (*domain.Organization, error) {
	return &domain.Organization{TenantID: "tid", DisplayName: "Contoso", PrimaryDomain: "contoso.com"}, nil
}

var fixedNow = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func newTestService(dir domain.DirectoryReader, cfg OverviewConfig) *OverviewService {
	svc := NewOverviewService(dir, cfg, nil)
	svc.nowFn = func() time.Time { return fixedNow }
	return svc
}

func owner(id string) domain.Principal {
	return domain.Principal{Kind: domain.KindUser, ID: id}
}

func TestOwnerlessGroupsExcludeFailedProbes(t *testing.T) {
	dir := &fakeDirectory{
		groups: []domain.Group{
			{ID: "g1", DisplayName: "G1"},
			{ID: "g2", DisplayName: "G2"},
			{ID: "g3", DisplayName: "G3"},
		},
		groupOwners: map[string][]domain.Principal{
			"g2": {owner("u1"), owner("u2")},
		},
		groupOwnersErr: map[string]error{
			"g3": errors.New("probe failed"),
		},
	}

	overview, err := newTestService(dir, OverviewConfig{}).BuildOverview(context.Background(), "token")
	if err != nil {
		t.Fatalf("BuildOverview failed: %v", err)
	}

	got := overview.GroupsWithoutOwners
	if got.Count != 1 || len(got.Items) != 1 {
		t.Fatalf("expected exactly one ownerless group, got count=%d items=%v", got.Count, got.Items)
	}
	if got.Items[0].ID != "g1" {
		t.Fatalf("expected g1 as the only ownerless group, got %s", got.Items[0].ID)
	}
}

func TestCredentialWindows(t *testing.T) {
	dir := &fakeDirectory{
		appRegs: []domain.AppRegistration{
			{
				ID: "app1", AppID: "a-1", DisplayName: "App One",
				PasswordCredentials: []domain.Credential{
					{KeyID: "k1", EndDateTime: "2023-12-01T00:00:00Z"}, // past
					{KeyID: "k2", EndDateTime: "2024-01-15T00:00:00Z"}, // within window
					{KeyID: "k3", EndDateTime: "2024-03-01T00:00:00Z"}, // beyond window
					{KeyID: "k4", EndDateTime: ""},                     // no signal
				},
			},
		},
	}

	overview, err := newTestService(dir, OverviewConfig{CredentialWindowDays: 30}).BuildOverview(context.Background(), "token")
	if err != nil {
		t.Fatalf("BuildOverview failed: %v", err)
	}

	creds := overview.Credentials
	if creds.Expired != 1 {
		t.Errorf("expected 1 expired credential, got %d", creds.Expired)
	}
	if creds.ExpiringSoon != 1 {
		t.Errorf("expected 1 expiring-soon credential, got %d", creds.ExpiringSoon)
	}
	if creds.WithinDays != 30 {
		t.Errorf("expected withinDays 30, got %d", creds.WithinDays)
	}
	if overview.AppsExpiringSoon.Count != 1 {
		t.Errorf("expected 1 app expiring soon, got %d", overview.AppsExpiringSoon.Count)
	}
}

func TestOwnAppFilter(t *testing.T) {
	dir := &fakeDirectory{
		sps: []domain.ServicePrincipal{
			{ID: "sp1", AppID: "own-app", DisplayName: "Own"},
			{ID: "sp2", AppID: "third-party", DisplayName: "Marketplace"},
		},
		appRegs: []domain.AppRegistration{
			{ID: "reg1", AppID: "own-app", DisplayName: "Own"},
		},
		spOwners: map[string][]domain.Principal{},
	}

	overview, err := newTestService(dir, OverviewConfig{}).BuildOverview(context.Background(), "token")
	if err != nil {
		t.Fatalf("BuildOverview failed: %v", err)
	}

	if overview.Totals.Apps != 1 {
		t.Fatalf("expected totals.apps to count only own apps, got %d", overview.Totals.Apps)
	}
	for _, item := range overview.AppsWithoutOwners.Items {
		if item.ID == "sp2" {
			t.Fatalf("third-party app must not appear in ownerless apps: %v", item)
		}
	}
}

func TestPrivilegedRatioWithZeroUsers(t *testing.T) {
	dir := &fakeDirectory{
		roles: []domain.DirectoryRole{{ID: "r1", DisplayName: "Global Administrator"}},
		roleMembers: map[string][]domain.Principal{
			"r1": {owner("u1"), owner("u2")},
		},
	}

	overview, err := newTestService(dir, OverviewConfig{}).BuildOverview(context.Background(), "token")
	if err != nil {
		t.Fatalf("BuildOverview failed: %v", err)
	}

	got := overview.Capacity.PrivilegedConcentration
	if got.Label != "Low" || got.Pct != 25 {
		t.Fatalf("expected Low/25 with zero users, got %+v", got)
	}
}

func TestPrivilegedRolesInUse(t *testing.T) {
	dir := &fakeDirectory{
		roles: []domain.DirectoryRole{
			{ID: "r1", DisplayName: "Global Administrator"},
			{ID: "r2", DisplayName: "User Administrator"},
			{ID: "r3", DisplayName: "Directory Readers"}, // not high impact
		},
		roleMembers: map[string][]domain.Principal{
			"r1": {
				{Kind: domain.KindUser, ID: "u1", DisplayName: "Alice", UserPrincipalName: "alice@contoso.com"},
				{Kind: domain.KindServicePrincipal, ID: "sp9", DisplayName: "Automation"},
			},
			"r2": {},
			"r3": {owner("u2")},
		},
	}

	overview, err := newTestService(dir, OverviewConfig{}).BuildOverview(context.Background(), "token")
	if err != nil {
		t.Fatalf("BuildOverview failed: %v", err)
	}

	if overview.Privileged.Assignments != 2 {
		t.Errorf("expected 2 privileged assignments, got %d", overview.Privileged.Assignments)
	}
	if overview.Privileged.HighImpactRolesCount != 2 {
		t.Errorf("expected 2 high-impact roles, got %d", overview.Privileged.HighImpactRolesCount)
	}

	if len(overview.PrivilegedRolesInUse) != 1 {
		t.Fatalf("expected only non-empty high-impact roles in use, got %v", overview.PrivilegedRolesInUse)
	}
	role := overview.PrivilegedRolesInUse[0]
	if role.ID != "r1" {
		t.Fatalf("expected r1 in use, got %s", role.ID)
	}
	if role.MembersCount != 1 || len(role.Users) != 1 || role.Users[0].ID != "u1" {
		t.Fatalf("expected only user principals in the member list, got %+v", role)
	}
}

func TestPortalRBACLabelFallback(t *testing.T) {
	dir := &fakeDirectory{
		portalSP: &domain.ServicePrincipal{
			ID: "portal-sp", AppID: "portal-app", DisplayName: "EntraSecure",
			AppRoles: []domain.AppRole{
				{ID: "role-1", DisplayName: "Tenant Admin", Value: "Portal.TenantAdmin"},
				{ID: "role-2", Value: "Portal.Reader"},
			},
		},
		assignments: []domain.AppRoleAssignment{
			{AppRoleID: "role-1", PrincipalID: "u1"},
			{AppRoleID: "role-2", PrincipalID: "u2"},
			{AppRoleID: "00000000-0000-0000-0000-000000000000", PrincipalID: "u3"},
			{AppRoleID: "ghost-role", PrincipalID: "u4"},
		},
	}

	overview, err := newTestService(dir, OverviewConfig{PortalAppID: "portal-app"}).BuildOverview(context.Background(), "token")
	if err != nil {
		t.Fatalf("BuildOverview failed: %v", err)
	}

	rbac := overview.PortalRBAC
	if rbac.Error != "" {
		t.Fatalf("unexpected rbac error: %s", rbac.Error)
	}
	if rbac.TotalAssignments != 4 {
		t.Errorf("expected 4 assignments, got %d", rbac.TotalAssignments)
	}
	expected := map[string]int{
		"Tenant Admin":   1, // displayName wins
		"Portal.Reader":  1, // value fallback
		"Default access": 1, // reserved zero GUID
		"ghost-role":     1, // raw id fallback
	}
	if !reflect.DeepEqual(rbac.ByLabel, expected) {
		t.Fatalf("expected labels %v, got %v", expected, rbac.ByLabel)
	}
}

func TestPortalRBACMissingServicePrincipal(t *testing.T) {
	overview, err := newTestService(&fakeDirectory{}, OverviewConfig{PortalAppID: "portal-app"}).BuildOverview(context.Background(), "token")
	if err != nil {
		t.Fatalf("BuildOverview failed: %v", err)
	}
	if overview.PortalRBAC.Error == "" {
		t.Fatal("expected a structured rbac error for a missing service principal")
	}
	if overview.PortalRBAC.PortalAppID != "portal-app" {
		t.Fatalf("expected portal app id carried on the error shape, got %+v", overview.PortalRBAC)
	}
}

func TestPortalRBACNotConfigured(t *testing.T) {
	overview, err := newTestService(&fakeDirectory{}, OverviewConfig{}).BuildOverview(context.Background(), "token")
	if err != nil {
		t.Fatalf("BuildOverview failed: %v", err)
	}
	if overview.PortalRBAC.Error == "" {
		t.Fatal("expected a structured rbac error when no portal app id is configured")
	}
}

func TestBulkReadFailurePropagates(t *testing.T) {
	dir := &fakeDirectory{usersErr: errors.New("graph unavailable")}
	if _, err := newTestService(dir, OverviewConfig{}).BuildOverview(context.Background(), "token"); err == nil {
		t.Fatal("expected a bulk read failure to fail the whole pass")
	}
}

func TestBuildOverviewDeterministic(t *testing.T) {
	dir := scenarioDirectory()
	svc := newTestService(dir, OverviewConfig{PortalAppID: "portal-app"})

	first, err := svc.BuildOverview(context.Background(), "token")
	if err != nil {
		t.Fatalf("first pass failed: %v", err)
	}
	second, err := svc.BuildOverview(context.Background(), "token")
	if err != nil {
		t.Fatalf("second pass failed: %v", err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Fatal("two passes against unchanged directory state must be identical")
	}
}

// scenarioDirectory models a mid-size tenant: 500 users (50 guests, 5
// disabled), 40 groups (10 Unified, 20 plain security, 10 neither), 12 own
// enterprise apps (3 ownerless) among third-party ones, and one registration
// with a secret expiring in ten days.
func scenarioDirectory() *fakeDirectory {
	users := make([]domain.User, 0, 500)
	for i := 0; i < 500; i++ {
		u := domain.User{ID: fmt.Sprintf("u%d", i), UserType: "Member", AccountEnabled: true}
		if i < 50 {
			u.UserType = "Guest"
		}
		if i >= 495 {
			u.AccountEnabled = false
		}
		users = append(users, u)
	}

	groups := make([]domain.Group, 0, 40)
	groupOwners := make(map[string][]domain.Principal)
	for i := 0; i < 40; i++ {
		g := domain.Group{ID: fmt.Sprintf("g%d", i), DisplayName: fmt.Sprintf("Group %d", i)}
		switch {
		case i < 10:
			g.GroupTypes = []string{"Unified"}
		case i < 30:
			g.SecurityEnabled = true
		}
		groups = append(groups, g)
		groupOwners[g.ID] = []domain.Principal{owner("u0")}
	}

	sps := make([]domain.ServicePrincipal, 0, 15)
	appRegs := make([]domain.AppRegistration, 0, 12)
	spOwners := make(map[string][]domain.Principal)
	for i := 0; i < 12; i++ {
		appID := fmt.Sprintf("app-%d", i)
		sp := domain.ServicePrincipal{ID: fmt.Sprintf("sp%d", i), AppID: appID, DisplayName: fmt.Sprintf("App %d", i)}
		sps = append(sps, sp)
		appRegs = append(appRegs, domain.AppRegistration{ID: fmt.Sprintf("reg%d", i), AppID: appID, DisplayName: sp.DisplayName})
		if i >= 3 {
			spOwners[sp.ID] = []domain.Principal{owner("u0")}
		}
	}
	// third-party enterprise apps, no matching registration
	for i := 0; i < 3; i++ {
		sps = append(sps, domain.ServicePrincipal{ID: fmt.Sprintf("ext%d", i), AppID: fmt.Sprintf("ext-app-%d", i)})
	}
	appRegs[0].PasswordCredentials = []domain.Credential{
		{KeyID: "secret", EndDateTime: fixedNow.AddDate(0, 0, 10).Format(time.RFC3339)},
	}

	return &fakeDirectory{
		users:       users,
		groups:      groups,
		sps:         sps,
		appRegs:     appRegs,
		roles:       []domain.DirectoryRole{{ID: "r1", DisplayName: "Global Administrator"}},
		groupOwners: groupOwners,
		spOwners:    spOwners,
		roleMembers: map[string][]domain.Principal{"r1": {owner("u0"), owner("u1")}},
		portalSP: &domain.ServicePrincipal{
			ID: "portal-sp", AppID: "portal-app", DisplayName: "EntraSecure",
			AppRoles: []domain.AppRole{{ID: "role-1", DisplayName: "Tenant Admin"}},
		},
		assignments: []domain.AppRoleAssignment{{AppRoleID: "role-1", PrincipalID: "u0"}},
	}
}

func TestBuildOverviewScenario(t *testing.T) {
	overview, err := newTestService(scenarioDirectory(), OverviewConfig{PortalAppID: "portal-app"}).BuildOverview(context.Background(), "token")
	if err != nil {
		t.Fatalf("BuildOverview failed: %v", err)
	}

	if overview.Identity.Members != 450 || overview.Identity.Guests != 50 {
		t.Errorf("expected 450 members / 50 guests, got %+v", overview.Identity)
	}
	if overview.Identity.Disabled != 5 {
		t.Errorf("expected 5 disabled users, got %d", overview.Identity.Disabled)
	}
	if overview.GroupsBreakdown.M365 != 10 || overview.GroupsBreakdown.Security != 20 {
		t.Errorf("expected m365=10 security=20, got %+v", overview.GroupsBreakdown)
	}
	if overview.Totals.Apps != 12 {
		t.Errorf("expected 12 own apps, got %d", overview.Totals.Apps)
	}
	if overview.AppsWithoutOwners.Count != 3 {
		t.Errorf("expected 3 ownerless apps, got %d", overview.AppsWithoutOwners.Count)
	}
	if overview.Credentials.ExpiringSoon < 1 {
		t.Errorf("expected at least one expiring credential, got %d", overview.Credentials.ExpiringSoon)
	}
	if overview.AppsExpiringSoon.Count < 1 {
		t.Errorf("expected at least one app expiring soon, got %d", overview.AppsExpiringSoon.Count)
	}
	if overview.GroupsWithoutOwners.Count != 0 {
		t.Errorf("expected no ownerless groups, got %d", overview.GroupsWithoutOwners.Count)
	}
	if !overview.GeneratedAt.Equal(fixedNow) {
		t.Errorf("expected generatedAt pinned to the injected clock, got %v", overview.GeneratedAt)
	}
}
