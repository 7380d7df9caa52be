package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/entrasecure/entrasecure/internal/domain"
)

// directoryObjectRef builds the $ref binding body Graph expects when linking
// an existing directory object into a collection.
func directoryObjectRef(id string) map[string]string {
	return map[string]string{
		"@odata.id": "https://graph.microsoft.com/v1.0/directoryObjects/" + id,
	}
}

// CreateUser provisions a new member user with a forced password change on
// first sign-in
func (r *DirectoryRepository) CreateUser(ctx context.Context, token string, input domain.NewUserInput) (*domain.User, error) {
	body := map[string]any{
		"accountEnabled":    true,
		"displayName":       input.DisplayName,
		"mailNickname":      input.MailNickname,
		"userPrincipalName": input.UserPrincipalName,
		"passwordProfile": map[string]any{
			"forceChangePasswordNextSignIn": true,
			"password":                      input.Password,
		},
	}
	raw, err := r.client.Post(ctx, "/users", token, body)
	if err != nil {
		return nil, err
	}
	var user domain.User
	if err := json.Unmarshal(raw, &user); err != nil {
		return nil, fmt.Errorf("decode created user: %w", err)
	}
	r.logger.Info("user created", "user_id", user.ID)
	return &user, nil
}

// DeleteUser removes a directory user
func (r *DirectoryRepository) DeleteUser(ctx context.Context, token, userID string) error {
	return r.client.Delete(ctx, "/users/"+userID, token)
}

// CreateGroup provisions a security group with its initial owners bound at
// creation time
func (r *DirectoryRepository) CreateGroup(ctx context.Context, token string, input domain.NewGroupInput) (*domain.Group, error) {
	ownerBinds := make([]string, 0, len(input.OwnerIDs))
	for _, id := range input.OwnerIDs {
		ownerBinds = append(ownerBinds, "https://graph.microsoft.com/v1.0/users/"+id)
	}
	body := map[string]any{
		"displayName":       input.DisplayName,
		"mailNickname":      input.MailNickname,
		"description":       input.Description,
		"mailEnabled":       false,
		"securityEnabled":   true,
		"groupTypes":        []string{},
		"owners@odata.bind": ownerBinds,
	}
	raw, err := r.client.Post(ctx, "/groups", token, body)
	if err != nil {
		return nil, err
	}
	var group domain.Group
	if err := json.Unmarshal(raw, &group); err != nil {
		return nil, fmt.Errorf("decode created group: %w", err)
	}
	r.logger.Info("group created", "group_id", group.ID)
	return &group, nil
}

// DeleteGroup removes a directory group
func (r *DirectoryRepository) DeleteGroup(ctx context.Context, token, groupID string) error {
	return r.client.Delete(ctx, "/groups/"+groupID, token)
}

// AddGroupOwner links an existing user as an owner of the group
func (r *DirectoryRepository) AddGroupOwner(ctx context.Context, token, groupID, userID string) error {
	_, err := r.client.Post(ctx, fmt.Sprintf("/groups/%s/owners/$ref", groupID), token, directoryObjectRef(userID))
	return err
}

// AddGroupMember links an existing user as a member of the group
func (r *DirectoryRepository) AddGroupMember(ctx context.Context, token, groupID, userID string) error {
	_, err := r.client.Post(ctx, fmt.Sprintf("/groups/%s/members/$ref", groupID), token, directoryObjectRef(userID))
	return err
}

// AddRoleMember links an existing user into an activated directory role
func (r *DirectoryRepository) AddRoleMember(ctx context.Context, token, roleID, userID string) error {
	_, err := r.client.Post(ctx, fmt.Sprintf("/directoryRoles/%s/members/$ref", roleID), token, directoryObjectRef(userID))
	return err
}

// ActivateDirectoryRole activates a role template in the tenant. Built-in
// implicit roles cannot be activated; the client surfaces that case as a
// typed error.
func (r *DirectoryRepository) ActivateDirectoryRole(ctx context.Context, token, roleTemplateID string) error {
	return r.client.ActivateDirectoryRole(ctx, token, roleTemplateID)
}

// AssignAppRole grants an app role on a service principal to a principal
func (r *DirectoryRepository) AssignAppRole(ctx context.Context, token, spID, principalID, appRoleID string) error {
	body := map[string]any{
		"principalId": principalID,
		"resourceId":  spID,
		"appRoleId":   appRoleID,
	}
	_, err := r.client.Post(ctx, fmt.Sprintf("/servicePrincipals/%s/appRoleAssignedTo", spID), token, body)
	return err
}
