package auth

import (
	"testing"
	"time"
)

func TestGenerateAndValidateToken(t *testing.T) {
	tm := NewTokenManager("test-secret", "entrasecure")

	token, err := tm.GenerateToken("u1", "alice@contoso.com", "Alice", []string{"Portal.TenantAdmin"}, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	claims, err := tm.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken failed: %v", err)
	}
	if claims.UserID != "u1" || claims.UserPrincipalName != "alice@contoso.com" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if len(claims.PortalRoles) != 1 || claims.PortalRoles[0] != "Portal.TenantAdmin" {
		t.Fatalf("expected portal roles carried through, got %v", claims.PortalRoles)
	}
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	token, err := NewTokenManager("secret-a", "entrasecure").GenerateToken("u1", "a@b.c", "A", nil, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}
	if _, err := NewTokenManager("secret-b", "entrasecure").ValidateToken(token); err == nil {
		t.Fatal("expected validation to fail with a different secret")
	}
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	tm := NewTokenManager("test-secret", "entrasecure")
	token, err := tm.GenerateToken("u1", "a@b.c", "A", nil, -time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}
	if _, err := tm.ValidateToken(token); err == nil {
		t.Fatal("expected an expired token to be rejected")
	}
}

func TestExtractToken(t *testing.T) {
	if _, err := ExtractToken(""); err == nil {
		t.Fatal("expected an error for a missing header")
	}
	if _, err := ExtractToken("Basic abc"); err == nil {
		t.Fatal("expected an error for a non-bearer header")
	}
	token, err := ExtractToken("Bearer abc.def.ghi")
	if err != nil {
		t.Fatalf("ExtractToken failed: %v", err)
	}
	if token != "abc.def.ghi" {
		t.Fatalf("unexpected token: %q", token)
	}
}
