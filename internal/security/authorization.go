package security

import (
	"fmt"
	"log/slog"
)

// Role is a portal app role claim issued by Entra ID at login. Portal roles
// gate features of this portal; they are distinct from directory roles.
type Role string

const (
	RoleTenantAdmin Role = "Portal.TenantAdmin"
	RoleUserAdmin   Role = "Portal.UserAdmin"
	RoleGroupAdmin  Role = "Portal.GroupAdmin"
	RoleAppAdmin    Role = "Portal.AppAdmin"
	RoleRoleAdmin   Role = "Portal.RoleAdmin"
	RoleReader      Role = "Portal.Reader"
)

// Permission represents an action permission
type Permission string

const (
	PermViewSecurityOverview Permission = "view_security_overview"
	PermViewIdentity         Permission = "view_identity"
	PermListUsers            Permission = "list_users"
	PermManageUsers          Permission = "manage_users"
	PermListGroups           Permission = "list_groups"
	PermManageGroups         Permission = "manage_groups"
	PermListApps             Permission = "list_apps"
	PermManageApps           Permission = "manage_apps"
	PermListRoles            Permission = "list_roles"
	PermManageRoles          Permission = "manage_roles"
)

// RolePermissions maps portal roles to their permissions. TenantAdmin is
// deliberately absent: it bypasses permission checks entirely.
var RolePermissions = map[Role][]Permission{
	RoleUserAdmin: {
		PermViewIdentity,
		PermListUsers,
		PermManageUsers,
	},
	RoleGroupAdmin: {
		PermViewIdentity,
		PermListGroups,
		PermManageGroups,
	},
	RoleAppAdmin: {
		PermViewIdentity,
		PermListApps,
		PermManageApps,
	},
	RoleRoleAdmin: {
		PermViewIdentity,
		PermListRoles,
		PermManageRoles,
	},
	RoleReader: {
		PermViewIdentity,
		PermListUsers,
		PermListGroups,
		PermListApps,
		PermListRoles,
	},
}

// AuthorizationService decides admit/deny from the portal role claims of an
// authenticated principal. A pure predicate over the granted role set.
type AuthorizationService struct {
	logger *slog.Logger
}

// NewAuthorizationService creates a new authorization service
func NewAuthorizationService(logger *slog.Logger) *AuthorizationService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthorizationService{logger: logger}
}

// IsTenantAdmin reports whether the granted roles include the super-role
func (as *AuthorizationService) IsTenantAdmin(granted []string) bool {
	for _, r := range granted {
		if Role(r) == RoleTenantAdmin {
			return true
		}
	}
	return false
}

// HasPermission checks whether any granted role carries the permission.
// TenantAdmin bypasses the table.
func (as *AuthorizationService) HasPermission(granted []string, permission Permission) bool {
	if as.IsTenantAdmin(granted) {
		return true
	}
	for _, r := range granted {
		for _, p := range RolePermissions[Role(r)] {
			if p == permission {
				return true
			}
		}
	}
	return false
}

// ValidatePermission returns an error when the permission is not granted
func (as *AuthorizationService) ValidatePermission(granted []string, permission Permission) error {
	if !as.HasPermission(granted, permission) {
		as.logger.Warn("permission denied",
			slog.Any("roles", granted),
			slog.String("permission", string(permission)),
		)
		return fmt.Errorf("permission denied: %s", permission)
	}
	return nil
}

// HasAnyRole reports whether the principal holds at least one of the
// allowed roles, with the TenantAdmin bypass
func (as *AuthorizationService) HasAnyRole(granted []string, allowed ...Role) bool {
	if as.IsTenantAdmin(granted) {
		return true
	}
	for _, r := range granted {
		for _, a := range allowed {
			if Role(r) == a {
				return true
			}
		}
	}
	return false
}
