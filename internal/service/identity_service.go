package service

import (
	"context"
	"log/slog"
	"sync"

	"github.com/entrasecure/entrasecure/internal/domain"
	"github.com/entrasecure/entrasecure/internal/infrastructure/graph"
)

// IdentityService assembles the "My Identity" view from the signed-in
// user's own Graph reads
type IdentityService struct {
	ids    domain.IdentityReader
	logger *slog.Logger
}

// NewIdentityService creates a new identity service
func NewIdentityService(ids domain.IdentityReader, logger *slog.Logger) *IdentityService {
	if logger == nil {
		logger = slog.Default()
	}
	return &IdentityService{ids: ids, logger: logger}
}

// MyIdentity fetches the user's profile, memberships, app roles and devices
// in parallel. A 403 from Graph means the tenant has not granted the
// delegated read permissions; the view degrades to an empty, explicitly
// blocked payload instead of failing the page.
func (s *IdentityService) MyIdentity(ctx context.Context, token string) (*domain.IdentityView, error) {
	var (
		profile  *domain.UserProfile
		memberOf []domain.Principal
		appRoles []domain.AppRoleAssignment
		devices  []domain.Device
	)

	var wg sync.WaitGroup
	errs := make([]error, 4)
	wg.Add(4)
	go func() { defer wg.Done(); profile, errs[0] = s.ids.GetProfile(ctx, token) }()
	go func() { defer wg.Done(); memberOf, errs[1] = s.ids.ListMemberOf(ctx, token) }()
	go func() { defer wg.Done(); appRoles, errs[2] = s.ids.ListMyAppRoleAssignments(ctx, token) }()
	go func() { defer wg.Done(); devices, errs[3] = s.ids.ListMyDevices(ctx, token) }()
	wg.Wait()

	for _, err := range errs {
		if err == nil {
			continue
		}
		if graph.IsForbidden(err) {
			s.logger.Warn("identity reads denied, returning blocked view", "error", err)
			return blockedIdentityView(), nil
		}
		return nil, err
	}

	groups := make([]domain.Principal, 0, len(memberOf))
	directoryRoles := make([]domain.Principal, 0)
	for _, p := range memberOf {
		switch p.Kind {
		case domain.KindDirectoryRole:
			directoryRoles = append(directoryRoles, p)
		case domain.KindGroup:
			groups = append(groups, p)
		}
	}

	return &domain.IdentityView{
		Profile:        profile,
		Groups:         groups,
		DirectoryRoles: directoryRoles,
		AppRoles:       appRoles,
		Devices:        devices,
	}, nil
}

func blockedIdentityView() *domain.IdentityView {
	return &domain.IdentityView{
		Groups:         []domain.Principal{},
		DirectoryRoles: []domain.Principal{},
		AppRoles:       []domain.AppRoleAssignment{},
		Devices:        []domain.Device{},
		Blocked:        true,
	}
}
