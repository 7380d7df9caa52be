package config

import "testing"

func setRequiredEnv(t *testing.T) {
	t.Setenv("AZURE_TENANT_ID", "tenant-id")
	t.Setenv("AZURE_CLIENT_ID", "client-id")
	t.Setenv("AZURE_CLIENT_SECRET", "client-secret")
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.ServerPort != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.ServerPort)
	}
	if cfg.CredentialWindowDays != 30 {
		t.Errorf("expected default credential window 30, got %d", cfg.CredentialWindowDays)
	}
	if cfg.GroupOwnersLimit != 6 || cfg.AppOwnersLimit != 6 {
		t.Errorf("expected default owner probe limits 6/6, got %d/%d", cfg.GroupOwnersLimit, cfg.AppOwnersLimit)
	}
	if cfg.RoleMembersLimit != 5 || cfg.RoleDetailLimit != 4 {
		t.Errorf("expected default role limits 5/4, got %d/%d", cfg.RoleMembersLimit, cfg.RoleDetailLimit)
	}
}

func TestLoadFanoutLimitsFromEnv(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("GROUP_OWNERS_LIMIT", "3")
	t.Setenv("APP_OWNERS_LIMIT", "2")
	t.Setenv("ROLE_MEMBERS_LIMIT", "8")
	t.Setenv("ROLE_DETAIL_LIMIT", "1")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.GroupOwnersLimit != 3 {
		t.Errorf("expected group owners limit 3, got %d", cfg.GroupOwnersLimit)
	}
	if cfg.AppOwnersLimit != 2 {
		t.Errorf("expected app owners limit 2, got %d", cfg.AppOwnersLimit)
	}
	if cfg.RoleMembersLimit != 8 {
		t.Errorf("expected role members limit 8, got %d", cfg.RoleMembersLimit)
	}
	if cfg.RoleDetailLimit != 1 {
		t.Errorf("expected role detail limit 1, got %d", cfg.RoleDetailLimit)
	}
}

func TestLoadRejectsBadInt(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("GROUP_OWNERS_LIMIT", "six")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for non-numeric GROUP_OWNERS_LIMIT")
	}
}

func TestLoadRequiresAzureCredentials(t *testing.T) {
	t.Setenv("AZURE_TENANT_ID", "")
	t.Setenv("AZURE_CLIENT_ID", "")
	t.Setenv("AZURE_CLIENT_SECRET", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error when Azure credentials are missing")
	}
}
