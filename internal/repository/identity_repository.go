package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/entrasecure/entrasecure/internal/domain"
)

const profileSelect = "id,displayName,userPrincipalName,userType,createdDateTime,mailNickname,lastPasswordChangeDateTime"

// GetProfile returns the signed-in user's own directory object
func (r *DirectoryRepository) GetProfile(ctx context.Context, token string) (*domain.UserProfile, error) {
	raw, err := r.client.Get(ctx, "/me?$select="+profileSelect, token)
	if err != nil {
		return nil, err
	}
	var profile domain.UserProfile
	if err := json.Unmarshal(raw, &profile); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}
	return &profile, nil
}

// ListMemberOf returns the signed-in user's group and role memberships as
// typed principals
func (r *DirectoryRepository) ListMemberOf(ctx context.Context, token string) ([]domain.Principal, error) {
	raw, err := r.client.List(ctx, "/me/memberOf?$select=id,displayName", token)
	if err != nil {
		return nil, err
	}
	return decodePrincipals(raw)
}

// ListMyAppRoleAssignments returns the app roles assigned to the signed-in
// user
func (r *DirectoryRepository) ListMyAppRoleAssignments(ctx context.Context, token string) ([]domain.AppRoleAssignment, error) {
	return listAs[domain.AppRoleAssignment](ctx, r, token, "/me/appRoleAssignments?$select=id,appRoleId,principalId,resourceDisplayName")
}

// ListMyDevices returns the devices registered by the signed-in user
func (r *DirectoryRepository) ListMyDevices(ctx context.Context, token string) ([]domain.Device, error) {
	return listAs[domain.Device](ctx, r, token, "/me/registeredDevices?$select=id,displayName")
}
