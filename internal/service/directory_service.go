package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/entrasecure/entrasecure/internal/domain"
	"github.com/entrasecure/entrasecure/internal/security"
)

// DirectoryService covers the tenant explorer and the management
// operations. Inputs are validated here; Graph failures surface as the
// client's typed errors for the handlers to translate.
type DirectoryService struct {
	dir    domain.DirectoryReader
	writer domain.DirectoryWriter
	logger *slog.Logger
}

// NewDirectoryService creates a new directory service
func NewDirectoryService(dir domain.DirectoryReader, writer domain.DirectoryWriter, logger *slog.Logger) *DirectoryService {
	if logger == nil {
		logger = slog.Default()
	}
	return &DirectoryService{dir: dir, writer: writer, logger: logger}
}

// ListUsers returns all directory users for the explorer
func (s *DirectoryService) ListUsers(ctx context.Context, token string) ([]domain.User, error) {
	return s.dir.ListUsers(ctx, token)
}

// ListUsersPreview returns the first top users for the explorer landing page
func (s *DirectoryService) ListUsersPreview(ctx context.Context, token string, top int) ([]domain.User, error) {
	if top <= 0 {
		top = 5
	}
	return s.dir.ListUsersPreview(ctx, token, top)
}

// ListGroups returns all directory groups for the explorer
func (s *DirectoryService) ListGroups(ctx context.Context, token string) ([]domain.Group, error) {
	return s.dir.ListGroups(ctx, token)
}

// ListGroupsPreview returns the first top groups
func (s *DirectoryService) ListGroupsPreview(ctx context.Context, token string, top int) ([]domain.Group, error) {
	if top <= 0 {
		top = 5
	}
	return s.dir.ListGroupsPreview(ctx, token, top)
}

// ListApps returns all enterprise apps for the explorer
func (s *DirectoryService) ListApps(ctx context.Context, token string) ([]domain.ServicePrincipal, error) {
	return s.dir.ListServicePrincipals(ctx, token)
}

// ListRoles returns the activated directory roles for the explorer
func (s *DirectoryService) ListRoles(ctx context.Context, token string) ([]domain.DirectoryRole, error) {
	return s.dir.ListDirectoryRoles(ctx, token)
}

// ListRoleMembers returns the typed members of one directory role
func (s *DirectoryService) ListRoleMembers(ctx context.Context, token, roleID string) ([]domain.Principal, error) {
	if strings.TrimSpace(roleID) == "" {
		return nil, security.NewValidationError(security.MsgObjectIDRequired)
	}
	return s.dir.ListDirectoryRoleMembers(ctx, token, roleID)
}

// CreateUser validates and provisions a new directory user
func (s *DirectoryService) CreateUser(ctx context.Context, token string, input domain.NewUserInput) (*domain.User, error) {
	input.DisplayName = strings.TrimSpace(input.DisplayName)
	input.UserPrincipalName = strings.TrimSpace(input.UserPrincipalName)
	if input.DisplayName == "" || input.UserPrincipalName == "" {
		return nil, security.NewValidationError(security.MsgUserNameRequired)
	}
	if input.Password == "" {
		return nil, security.NewValidationError(security.MsgUserPasswordRequired)
	}
	if input.MailNickname == "" {
		input.MailNickname = nicknameFromUPN(input.UserPrincipalName)
	}
	return s.writer.CreateUser(ctx, token, input)
}

// DeleteUser removes a directory user
func (s *DirectoryService) DeleteUser(ctx context.Context, token, userID string) error {
	if strings.TrimSpace(userID) == "" {
		return security.NewValidationError(security.MsgObjectIDRequired)
	}
	return s.writer.DeleteUser(ctx, token, userID)
}

// CreateGroup validates and provisions a new security group. Graph allows
// ownerless groups at creation time; the portal does not.
func (s *DirectoryService) CreateGroup(ctx context.Context, token string, input domain.NewGroupInput) (*domain.Group, error) {
	input.DisplayName = strings.TrimSpace(input.DisplayName)
	input.MailNickname = strings.TrimSpace(input.MailNickname)
	if input.DisplayName == "" || input.MailNickname == "" {
		return nil, security.NewValidationError(security.MsgGroupNameRequired)
	}
	owners := make([]string, 0, len(input.OwnerIDs))
	for _, id := range input.OwnerIDs {
		if trimmed := strings.TrimSpace(id); trimmed != "" {
			owners = append(owners, trimmed)
		}
	}
	if len(owners) == 0 {
		return nil, security.NewValidationError(security.MsgGroupOwnerRequired)
	}
	input.OwnerIDs = owners
	return s.writer.CreateGroup(ctx, token, input)
}

// DeleteGroup removes a directory group
func (s *DirectoryService) DeleteGroup(ctx context.Context, token, groupID string) error {
	if strings.TrimSpace(groupID) == "" {
		return security.NewValidationError(security.MsgObjectIDRequired)
	}
	return s.writer.DeleteGroup(ctx, token, groupID)
}

// AddGroupOwner links a user as owner of a group
func (s *DirectoryService) AddGroupOwner(ctx context.Context, token, groupID, userID string) error {
	if strings.TrimSpace(groupID) == "" || strings.TrimSpace(userID) == "" {
		return security.NewValidationError(security.MsgObjectIDRequired)
	}
	return s.writer.AddGroupOwner(ctx, token, groupID, userID)
}

// AddGroupMember links a user as member of a group
func (s *DirectoryService) AddGroupMember(ctx context.Context, token, groupID, userID string) error {
	if strings.TrimSpace(groupID) == "" || strings.TrimSpace(userID) == "" {
		return security.NewValidationError(security.MsgObjectIDRequired)
	}
	return s.writer.AddGroupMember(ctx, token, groupID, userID)
}

// AddRoleMember links a user into an activated directory role
func (s *DirectoryService) AddRoleMember(ctx context.Context, token, roleID, userID string) error {
	if strings.TrimSpace(roleID) == "" || strings.TrimSpace(userID) == "" {
		return security.NewValidationError(security.MsgObjectIDRequired)
	}
	return s.writer.AddRoleMember(ctx, token, roleID, userID)
}

// ActivateRole activates a directory role template. Implicit built-in roles
// come back from the writer as *graph.ImplicitRoleError; that is the
// caller's signal to report the role as already effective, so it passes
// through untouched.
func (s *DirectoryService) ActivateRole(ctx context.Context, token, roleTemplateID string) error {
	if strings.TrimSpace(roleTemplateID) == "" {
		return security.NewValidationError(security.MsgObjectIDRequired)
	}
	return s.writer.ActivateDirectoryRole(ctx, token, roleTemplateID)
}

// AssignPortalRole grants one of the portal's own app roles to a principal
func (s *DirectoryService) AssignPortalRole(ctx context.Context, token, spID, principalID, appRoleID string) error {
	if strings.TrimSpace(spID) == "" || strings.TrimSpace(principalID) == "" || strings.TrimSpace(appRoleID) == "" {
		return security.NewValidationError(security.MsgObjectIDRequired)
	}
	return s.writer.AssignAppRole(ctx, token, spID, principalID, appRoleID)
}

func nicknameFromUPN(upn string) string {
	if at := strings.Index(upn, "@"); at > 0 {
		return upn[:at]
	}
	return upn
}
