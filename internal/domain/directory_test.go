package domain

import "testing"

func TestIsGuestCaseInsensitive(t *testing.T) {
	cases := []struct {
		userType string
		want     bool
	}{
		{"Guest", true},
		{"guest", true},
		{"GUEST", true},
		{"Member", false},
		{"member", false},
		{"", false},
	}
	for _, tc := range cases {
		u := User{UserType: tc.userType}
		if got := u.IsGuest(); got != tc.want {
			t.Errorf("IsGuest(%q) = %v, want %v", tc.userType, got, tc.want)
		}
	}
}

func TestIsUnified(t *testing.T) {
	if (Group{GroupTypes: []string{"Unified"}}).IsUnified() != true {
		t.Error("expected Unified group to be detected")
	}
	if (Group{GroupTypes: []string{"DynamicMembership"}}).IsUnified() {
		t.Error("expected non-Unified group to not be detected")
	}
	if (Group{}).IsUnified() {
		t.Error("expected group without types to not be Unified")
	}
}
