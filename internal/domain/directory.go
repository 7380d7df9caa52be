package domain

import (
	"context"
	"strings"
)

// User is a directory user as returned by Microsoft Graph
type User struct {
	ID                string `json:"id"`
	DisplayName       string `json:"displayName"`
	UserPrincipalName string `json:"userPrincipalName"`
	UserType          string `json:"userType"` // Member or Guest
	AccountEnabled    bool   `json:"accountEnabled"`
}

// IsGuest reports whether the user is an external guest account. Graph
// normally reports "Guest" but the casing is not contractual.
func (u User) IsGuest() bool {
	return strings.EqualFold(u.UserType, "Guest")
}

// Group is a directory group. The groupTypes set determines the flavor:
// presence of "Unified" means Microsoft 365 group.
type Group struct {
	ID              string   `json:"id"`
	DisplayName     string   `json:"displayName"`
	GroupTypes      []string `json:"groupTypes"`
	SecurityEnabled bool     `json:"securityEnabled"`
}

// IsUnified reports whether the group is a Microsoft 365 (Unified) group
func (g Group) IsUnified() bool {
	for _, t := range g.GroupTypes {
		if t == "Unified" {
			return true
		}
	}
	return false
}

// IsSecurity reports whether the group is a plain security group
// (security-enabled and not Unified)
func (g Group) IsSecurity() bool {
	return g.SecurityEnabled && !g.IsUnified()
}

// AppRole is an application-defined role declared on a service principal
type AppRole struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Value       string `json:"value"`
}

// ServicePrincipal is the tenant-local representation of an application
// (an "enterprise app")
type ServicePrincipal struct {
	ID          string    `json:"id"`
	AppID       string    `json:"appId"`
	DisplayName string    `json:"displayName"`
	AppRoles    []AppRole `json:"appRoles"`
}

// Credential is a password or key credential on an app registration.
// EndDateTime is kept as the raw Graph string; expiry classification parses
// it defensively because Graph can return null or malformed values.
type Credential struct {
	KeyID       string `json:"keyId"`
	DisplayName string `json:"displayName"`
	EndDateTime string `json:"endDateTime"`
}

// AppRegistration is the definition of an application owned by the tenant
type AppRegistration struct {
	ID                  string       `json:"id"`
	AppID               string       `json:"appId"`
	DisplayName         string       `json:"displayName"`
	PasswordCredentials []Credential `json:"passwordCredentials"`
	KeyCredentials      []Credential `json:"keyCredentials"`
}

// DirectoryRole is an activated directory role (Global Administrator, ...)
type DirectoryRole struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

// PrincipalKind is the discriminant for heterogeneous directory objects.
// Graph tags them with @odata.type; the repository decodes that tag once so
// nothing downstream has to inspect OData metadata.
type PrincipalKind string

const (
	KindUser             PrincipalKind = "user"
	KindGroup            PrincipalKind = "group"
	KindDirectoryRole    PrincipalKind = "directoryRole"
	KindServicePrincipal PrincipalKind = "servicePrincipal"
	KindDevice           PrincipalKind = "device"
	KindUnknown          PrincipalKind = "unknown"
)

// Principal is a member of a role or group resolved to a typed shape
type Principal struct {
	Kind              PrincipalKind `json:"kind"`
	ID                string        `json:"id"`
	DisplayName       string        `json:"displayName"`
	UserPrincipalName string        `json:"userPrincipalName,omitempty"`
}

// AppRoleAssignment is one edge of a service principal's appRoleAssignedTo
// collection
type AppRoleAssignment struct {
	ID                   string `json:"id"`
	AppRoleID            string `json:"appRoleId"`
	PrincipalID          string `json:"principalId"`
	PrincipalType        string `json:"principalType"`
	PrincipalDisplayName string `json:"principalDisplayName"`
	ResourceDisplayName  string `json:"resourceDisplayName"`
}

// Organization is the tenant's organization object
type Organization struct {
	TenantID      string `json:"tenantId"`
	DisplayName   string `json:"displayName"`
	PrimaryDomain string `json:"primaryDomain"`
}

// Device is a device registered by a user
type Device struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

// UserProfile is the authenticated user's own directory object (/me)
type UserProfile struct {
	ID                         string `json:"id"`
	DisplayName                string `json:"displayName"`
	UserPrincipalName          string `json:"userPrincipalName"`
	UserType                   string `json:"userType"`
	CreatedDateTime            string `json:"createdDateTime"`
	MailNickname               string `json:"mailNickname"`
	LastPasswordChangeDateTime string `json:"lastPasswordChangeDateTime"`
}

// DirectoryReader is the typed query surface over Microsoft Graph consumed
// by the services. Implementations must return empty slices, never nil, for
// absent collections, and must propagate the client's typed errors.
type DirectoryReader interface {
	ListUsers(ctx context.Context, token string) ([]User, error)
	ListUsersPreview(ctx context.Context, token string, top int) ([]User, error)
	ListGroups(ctx context.Context, token string) ([]Group, error)
	ListGroupsPreview(ctx context.Context, token string, top int) ([]Group, error)
	ListServicePrincipals(ctx context.Context, token string) ([]ServicePrincipal, error)
	ListAppRegistrations(ctx context.Context, token string) ([]AppRegistration, error)
	ListDirectoryRoles(ctx context.Context, token string) ([]DirectoryRole, error)
	ListDirectoryRoleMembers(ctx context.Context, token, roleID string) ([]Principal, error)
	ListGroupOwners(ctx context.Context, token, groupID string) ([]Principal, error)
	ListServicePrincipalOwners(ctx context.Context, token, spID string) ([]Principal, error)
	GetServicePrincipalByAppID(ctx context.Context, token, appID string) (*ServicePrincipal, error)
	ListAppRoleAssignments(ctx context.Context, token, spID string) ([]AppRoleAssignment, error)
	GetOrganization(ctx context.Context, token string) (*Organization, error)
}

// NewUserInput is the payload for creating a directory user
type NewUserInput struct {
	DisplayName       string
	MailNickname      string
	UserPrincipalName string
	Password          string
}

// NewGroupInput is the payload for creating a security group. At least one
// owner is required.
type NewGroupInput struct {
	DisplayName  string
	MailNickname string
	Description  string
	OwnerIDs     []string
}

// DirectoryWriter is the mutation surface over Microsoft Graph used by the
// management operations
type DirectoryWriter interface {
	CreateUser(ctx context.Context, token string, input NewUserInput) (*User, error)
	DeleteUser(ctx context.Context, token, userID string) error
	CreateGroup(ctx context.Context, token string, input NewGroupInput) (*Group, error)
	DeleteGroup(ctx context.Context, token, groupID string) error
	AddGroupOwner(ctx context.Context, token, groupID, userID string) error
	AddGroupMember(ctx context.Context, token, groupID, userID string) error
	AddRoleMember(ctx context.Context, token, roleID, userID string) error
	ActivateDirectoryRole(ctx context.Context, token, roleTemplateID string) error
	AssignAppRole(ctx context.Context, token, spID, principalID, appRoleID string) error
}

// IdentityReader covers the /me reads used by the My Identity page
type IdentityReader interface {
	GetProfile(ctx context.Context, token string) (*UserProfile, error)
	ListMemberOf(ctx context.Context, token string) ([]Principal, error)
	ListMyAppRoleAssignments(ctx context.Context, token string) ([]AppRoleAssignment, error)
	ListMyDevices(ctx context.Context, token string) ([]Device, error)
}

// TokenProvider yields a Microsoft Graph access token for an authenticated
// principal. The OAuth2 handshake itself lives behind this interface.
type TokenProvider interface {
	AccessToken(ctx context.Context, principalID string) (string, error)
}
