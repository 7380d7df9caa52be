package service

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/entrasecure/entrasecure/internal/domain"
	"github.com/entrasecure/entrasecure/internal/infrastructure/graph"
)

type fakeIdentityReader struct {
	profile  *domain.UserProfile
	memberOf []domain.Principal
	appRoles []domain.AppRoleAssignment
	devices  []domain.Device

	memberOfErr error
}

func (f *fakeIdentityReader) GetProfile(ctx context.Context, token string) (*domain.UserProfile, error) {
	return f.profile, nil
}

func (f *fakeIdentityReader) ListMemberOf(ctx context.Context, token string) ([]domain.Principal, error) {
	if f.memberOfErr != nil {
		return nil, f.memberOfErr
	}
	return f.memberOf, nil
}

func (f *fakeIdentityReader) ListMyAppRoleAssignments(ctx context.Context, token string) ([]domain.AppRoleAssignment, error) {
	return f.appRoles, nil
}

func (f *fakeIdentityReader) ListMyDevices(ctx context.Context, token string) ([]domain.Device, error) {
	return f.devices, nil
}

func TestMyIdentitySplitsMemberships(t *testing.T) {
	reader := &fakeIdentityReader{
		profile: &domain.UserProfile{ID: "u1", DisplayName: "Alice"},
		memberOf: []domain.Principal{
			{Kind: domain.KindGroup, ID: "g1", DisplayName: "Sec Ops"},
			{Kind: domain.KindDirectoryRole, ID: "r1", DisplayName: "User Administrator"},
			{Kind: domain.KindUnknown, ID: "x1"},
		},
		appRoles: []domain.AppRoleAssignment{{ID: "a1", AppRoleID: "role-1"}},
		devices:  []domain.Device{{ID: "d1", DisplayName: "Laptop"}},
	}

	view, err := NewIdentityService(reader, nil).MyIdentity(context.Background(), "token")
	if err != nil {
		t.Fatalf("MyIdentity failed: %v", err)
	}

	if view.Blocked {
		t.Fatal("view must not be blocked")
	}
	if len(view.Groups) != 1 || view.Groups[0].ID != "g1" {
		t.Fatalf("expected one group membership, got %v", view.Groups)
	}
	if len(view.DirectoryRoles) != 1 || view.DirectoryRoles[0].ID != "r1" {
		t.Fatalf("expected one directory role, got %v", view.DirectoryRoles)
	}
	if len(view.AppRoles) != 1 || len(view.Devices) != 1 {
		t.Fatalf("expected app roles and devices carried through, got %+v", view)
	}
}

func TestMyIdentityBlockedOnForbidden(t *testing.T) {
	reader := &fakeIdentityReader{
		memberOfErr: &graph.Error{StatusCode: http.StatusForbidden, Code: "Authorization_RequestDenied"},
	}

	view, err := NewIdentityService(reader, nil).MyIdentity(context.Background(), "token")
	if err != nil {
		t.Fatalf("expected a blocked view, not an error: %v", err)
	}
	if !view.Blocked {
		t.Fatal("expected the view to be marked blocked")
	}
	if view.Groups == nil || view.AppRoles == nil || view.Devices == nil || view.DirectoryRoles == nil {
		t.Fatalf("blocked view must carry empty, non-nil collections: %+v", view)
	}
}

func TestMyIdentityPropagatesOtherErrors(t *testing.T) {
	reader := &fakeIdentityReader{memberOfErr: errors.New("network down")}
	if _, err := NewIdentityService(reader, nil).MyIdentity(context.Background(), "token"); err == nil {
		t.Fatal("expected non-403 failures to propagate")
	}
}
