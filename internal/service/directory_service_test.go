package service

import (
	"context"
	"errors"
	"testing"

	"github.com/entrasecure/entrasecure/internal/domain"
	"github.com/entrasecure/entrasecure/internal/infrastructure/graph"
	"github.com/entrasecure/entrasecure/internal/security"
)

type fakeWriter struct {
	createdUser  *domain.NewUserInput
	createdGroup *domain.NewGroupInput
	activatedID  string
	activateErr  error
	linked       []string
}

func (f *fakeWriter) CreateUser(ctx context.Context, token string, input domain.NewUserInput) (*domain.User, error) {
	f.createdUser = &input
	return &domain.User{ID: "new-user", DisplayName: input.DisplayName}, nil
}

func (f *fakeWriter) DeleteUser(ctx context.Context, token, userID string) error { return nil }

func (f *fakeWriter) CreateGroup(ctx context.Context, token string, input domain.NewGroupInput) (*domain.Group, error) {
	f.createdGroup = &input
	return &domain.Group{ID: "new-group", DisplayName: input.DisplayName}, nil
}

func (f *fakeWriter) DeleteGroup(ctx context.Context, token, groupID string) error { return nil }

func (f *fakeWriter) AddGroupOwner(ctx context.Context, token, groupID, userID string) error {
	f.linked = append(f.linked, "owner:"+groupID+":"+userID)
	return nil
}

func (f *fakeWriter) AddGroupMember(ctx context.Context, token, groupID, userID string) error {
	f.linked = append(f.linked, "member:"+groupID+":"+userID)
	return nil
}

func (f *fakeWriter) AddRoleMember(ctx context.Context, token, roleID, userID string) error {
	f.linked = append(f.linked, "role:"+roleID+":"+userID)
	return nil
}

func (f *fakeWriter) ActivateDirectoryRole(ctx context.Context, token, roleTemplateID string) error {
	f.activatedID = roleTemplateID
	return f.activateErr
}

func (f *fakeWriter) AssignAppRole(ctx context.Context, token, spID, principalID, appRoleID string) error {
	f.linked = append(f.linked, "approle:"+spID+":"+principalID+":"+appRoleID)
	return nil
}

func TestCreateUserValidation(t *testing.T) {
	svc := NewDirectoryService(&fakeDirectory{}, &fakeWriter{}, nil)

	_, err := svc.CreateUser(context.Background(), "token", domain.NewUserInput{DisplayName: "Alice"})
	var ve *security.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected a validation error for missing upn, got %v", err)
	}

	_, err = svc.CreateUser(context.Background(), "token", domain.NewUserInput{
		DisplayName:       "Alice",
		UserPrincipalName: "alice@contoso.com",
	})
	if !errors.As(err, &ve) {
		t.Fatalf("expected a validation error for missing password, got %v", err)
	}
}

func TestCreateUserDerivesMailNickname(t *testing.T) {
	writer := &fakeWriter{}
	svc := NewDirectoryService(&fakeDirectory{}, writer, nil)

	user, err := svc.CreateUser(context.Background(), "token", domain.NewUserInput{
		DisplayName:       "Alice",
		UserPrincipalName: "alice@contoso.com",
		Password:          "initial-secret",
	})
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	if user.ID != "new-user" {
		t.Fatalf("expected the created user back, got %+v", user)
	}
	if writer.createdUser.MailNickname != "alice" {
		t.Fatalf("expected mail nickname derived from upn, got %q", writer.createdUser.MailNickname)
	}
}

func TestCreateGroupRequiresOwner(t *testing.T) {
	svc := NewDirectoryService(&fakeDirectory{}, &fakeWriter{}, nil)

	_, err := svc.CreateGroup(context.Background(), "token", domain.NewGroupInput{
		DisplayName:  "Sec Ops",
		MailNickname: "secops",
		OwnerIDs:     []string{"  "},
	})
	var ve *security.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected a validation error for blank owners, got %v", err)
	}
	if ve.Message != security.MsgGroupOwnerRequired {
		t.Fatalf("unexpected message: %s", ve.Message)
	}
}

func TestCreateGroupTrimsOwners(t *testing.T) {
	writer := &fakeWriter{}
	svc := NewDirectoryService(&fakeDirectory{}, writer, nil)

	_, err := svc.CreateGroup(context.Background(), "token", domain.NewGroupInput{
		DisplayName:  "Sec Ops",
		MailNickname: "secops",
		OwnerIDs:     []string{" u1 ", "", "u2"},
	})
	if err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}
	if len(writer.createdGroup.OwnerIDs) != 2 {
		t.Fatalf("expected 2 owners after trimming, got %v", writer.createdGroup.OwnerIDs)
	}
}

func TestActivateRolePassesThroughImplicitError(t *testing.T) {
	implicit := graph.NewImplicitRoleError("template-1", &graph.Error{StatusCode: 400, Message: "implicit role"})
	writer := &fakeWriter{activateErr: implicit}
	svc := NewDirectoryService(&fakeDirectory{}, writer, nil)

	err := svc.ActivateRole(context.Background(), "token", "template-1")
	var ire *graph.ImplicitRoleError
	if !errors.As(err, &ire) {
		t.Fatalf("expected the implicit role error to pass through, got %v", err)
	}
	if ire.RoleTemplateID != "template-1" {
		t.Fatalf("expected the template id on the error, got %s", ire.RoleTemplateID)
	}
	if writer.activatedID != "template-1" {
		t.Fatalf("expected the writer to be invoked, got %q", writer.activatedID)
	}
}

func TestMutationsRequireObjectIDs(t *testing.T) {
	svc := NewDirectoryService(&fakeDirectory{}, &fakeWriter{}, nil)
	ctx := context.Background()

	checks := []error{
		svc.DeleteUser(ctx, "token", ""),
		svc.DeleteGroup(ctx, "token", " "),
		svc.AddGroupOwner(ctx, "token", "", "u1"),
		svc.AddGroupMember(ctx, "token", "g1", ""),
		svc.AddRoleMember(ctx, "token", "", ""),
		svc.ActivateRole(ctx, "token", ""),
		svc.AssignPortalRole(ctx, "token", "sp1", "", "role-1"),
	}
	for i, err := range checks {
		var ve *security.ValidationError
		if !errors.As(err, &ve) {
			t.Fatalf("check %d: expected a validation error, got %v", i, err)
		}
	}
}
