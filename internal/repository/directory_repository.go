package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/entrasecure/entrasecure/internal/domain"
	"github.com/entrasecure/entrasecure/internal/infrastructure/graph"
)

// Field-selection contracts. Fixed per entity so every aggregation pass
// reads the same shape.
const (
	userSelect      = "id,displayName,userPrincipalName,userType,accountEnabled"
	groupSelect     = "id,displayName,groupTypes,securityEnabled"
	spSelect        = "id,appId,displayName,appRoles"
	appRegSelect    = "id,appId,displayName,passwordCredentials,keyCredentials"
	roleSelect      = "id,displayName"
	principalSelect = "id,displayName,userPrincipalName"
)

// DirectoryRepository implements domain.DirectoryReader over the Graph
// client. All collection reads return empty slices, never nil, and all
// errors propagate as the client's typed errors.
type DirectoryRepository struct {
	client *graph.Client
	logger *slog.Logger
}

// NewDirectoryRepository creates a new directory repository
func NewDirectoryRepository(client *graph.Client, logger *slog.Logger) *DirectoryRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &DirectoryRepository{client: client, logger: logger}
}

func listAs[T any](ctx context.Context, r *DirectoryRepository, token, path string) ([]T, error) {
	raw, err := r.client.List(ctx, path, token)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(raw))
	for _, item := range raw {
		var v T
		if err := json.Unmarshal(item, &v); err != nil {
			return nil, fmt.Errorf("decode %s item: %w", path, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// ListUsers returns every directory user
func (r *DirectoryRepository) ListUsers(ctx context.Context, token string) ([]domain.User, error) {
	return listAs[domain.User](ctx, r, token, "/users?$select="+userSelect)
}

// ListUsersPreview returns the first top users for the explorer landing page
func (r *DirectoryRepository) ListUsersPreview(ctx context.Context, token string, top int) ([]domain.User, error) {
	return listAs[domain.User](ctx, r, token, fmt.Sprintf("/users?$select=%s&$top=%d", userSelect, top))
}

// ListGroups returns every directory group
func (r *DirectoryRepository) ListGroups(ctx context.Context, token string) ([]domain.Group, error) {
	return listAs[domain.Group](ctx, r, token, "/groups?$select="+groupSelect)
}

// ListGroupsPreview returns the first top groups
func (r *DirectoryRepository) ListGroupsPreview(ctx context.Context, token string, top int) ([]domain.Group, error) {
	return listAs[domain.Group](ctx, r, token, fmt.Sprintf("/groups?$select=%s&$top=%d", groupSelect, top))
}

// ListServicePrincipals returns every enterprise app in the tenant
func (r *DirectoryRepository) ListServicePrincipals(ctx context.Context, token string) ([]domain.ServicePrincipal, error) {
	return listAs[domain.ServicePrincipal](ctx, r, token, "/servicePrincipals?$select="+spSelect)
}

// ListAppRegistrations returns every application definition
func (r *DirectoryRepository) ListAppRegistrations(ctx context.Context, token string) ([]domain.AppRegistration, error) {
	return listAs[domain.AppRegistration](ctx, r, token, "/applications?$select="+appRegSelect)
}

// ListDirectoryRoles returns the activated directory roles
func (r *DirectoryRepository) ListDirectoryRoles(ctx context.Context, token string) ([]domain.DirectoryRole, error) {
	return listAs[domain.DirectoryRole](ctx, r, token, "/directoryRoles?$select="+roleSelect)
}

// ListDirectoryRoleMembers returns the members of one role as typed
// principals. The member collection is heterogeneous (users, groups,
// service principals); the OData discriminant is decoded here, once.
func (r *DirectoryRepository) ListDirectoryRoleMembers(ctx context.Context, token, roleID string) ([]domain.Principal, error) {
	raw, err := r.client.List(ctx, fmt.Sprintf("/directoryRoles/%s/members?$select=%s", roleID, principalSelect), token)
	if err != nil {
		return nil, err
	}
	return decodePrincipals(raw)
}

// ListGroupOwners returns the user-type owners of one group
func (r *DirectoryRepository) ListGroupOwners(ctx context.Context, token, groupID string) ([]domain.Principal, error) {
	raw, err := r.client.List(ctx, fmt.Sprintf("/groups/%s/owners/microsoft.graph.user?$select=id", groupID), token)
	if err != nil {
		return nil, err
	}
	owners := make([]domain.Principal, 0, len(raw))
	for _, item := range raw {
		var p domain.Principal
		if err := json.Unmarshal(item, &p); err != nil {
			return nil, fmt.Errorf("decode group owner: %w", err)
		}
		p.Kind = domain.KindUser
		owners = append(owners, p)
	}
	return owners, nil
}

// ListServicePrincipalOwners returns the owners of one enterprise app
func (r *DirectoryRepository) ListServicePrincipalOwners(ctx context.Context, token, spID string) ([]domain.Principal, error) {
	raw, err := r.client.List(ctx, fmt.Sprintf("/servicePrincipals/%s/owners?$select=%s", spID, principalSelect), token)
	if err != nil {
		return nil, err
	}
	return decodePrincipals(raw)
}

// GetServicePrincipalByAppID resolves an enterprise app by its application
// identifier; nil when the tenant has none
func (r *DirectoryRepository) GetServicePrincipalByAppID(ctx context.Context, token, appID string) (*domain.ServicePrincipal, error) {
	filter := url.QueryEscape(fmt.Sprintf("appId eq '%s'", appID))
	path := fmt.Sprintf("/servicePrincipals?$filter=%s&$select=%s", filter, spSelect)
	sps, err := listAs[domain.ServicePrincipal](ctx, r, token, path)
	if err != nil {
		return nil, err
	}
	if len(sps) == 0 {
		return nil, nil
	}
	return &sps[0], nil
}

// ListAppRoleAssignments returns every app role assignment edge of one
// service principal
func (r *DirectoryRepository) ListAppRoleAssignments(ctx context.Context, token, spID string) ([]domain.AppRoleAssignment, error) {
	path := fmt.Sprintf("/servicePrincipals/%s/appRoleAssignedTo?$select=id,principalId,principalType,principalDisplayName,appRoleId", spID)
	return listAs[domain.AppRoleAssignment](ctx, r, token, path)
}

// GetOrganization returns tenant id, display name and the primary verified
// domain (preferring the default one)
func (r *DirectoryRepository) GetOrganization(ctx context.Context, token string) (*domain.Organization, error) {
	raw, err := r.client.List(ctx, "/organization?$select=id,displayName,verifiedDomains", token)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return &domain.Organization{}, nil
	}

	var org struct {
		ID              string `json:"id"`
		DisplayName     string `json:"displayName"`
		VerifiedDomains []struct {
			Name      string `json:"name"`
			IsDefault bool   `json:"isDefault"`
		} `json:"verifiedDomains"`
	}
	if err := json.Unmarshal(raw[0], &org); err != nil {
		return nil, fmt.Errorf("decode organization: %w", err)
	}

	primary := ""
	for _, d := range org.VerifiedDomains {
		if d.IsDefault {
			primary = d.Name
			break
		}
	}
	if primary == "" && len(org.VerifiedDomains) > 0 {
		primary = org.VerifiedDomains[0].Name
	}

	return &domain.Organization{
		TenantID:      org.ID,
		DisplayName:   org.DisplayName,
		PrimaryDomain: primary,
	}, nil
}

// decodePrincipals converts a heterogeneous directory object array into
// typed principals, validating the @odata.type discriminant exactly once
func decodePrincipals(raw []json.RawMessage) ([]domain.Principal, error) {
	out := make([]domain.Principal, 0, len(raw))
	for _, item := range raw {
		var probe struct {
			ODataType         string `json:"@odata.type"`
			ID                string `json:"id"`
			DisplayName       string `json:"displayName"`
			UserPrincipalName string `json:"userPrincipalName"`
		}
		if err := json.Unmarshal(item, &probe); err != nil {
			return nil, fmt.Errorf("decode directory object: %w", err)
		}
		out = append(out, domain.Principal{
			Kind:              kindFromODataType(probe.ODataType),
			ID:                probe.ID,
			DisplayName:       probe.DisplayName,
			UserPrincipalName: probe.UserPrincipalName,
		})
	}
	return out, nil
}

func kindFromODataType(t string) domain.PrincipalKind {
	switch {
	case strings.HasSuffix(t, ".user"):
		return domain.KindUser
	case strings.HasSuffix(t, ".group"):
		return domain.KindGroup
	case strings.HasSuffix(t, ".directoryRole"):
		return domain.KindDirectoryRole
	case strings.HasSuffix(t, ".servicePrincipal"):
		return domain.KindServicePrincipal
	case strings.HasSuffix(t, ".device"):
		return domain.KindDevice
	default:
		return domain.KindUnknown
	}
}
