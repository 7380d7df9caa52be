package domain

// IdentityView is the "My Identity" page model: the authenticated user's own
// profile plus their IAM context, split by principal kind at read time.
type IdentityView struct {
	Profile        *UserProfile        `json:"profile"`
	Groups         []Principal         `json:"groups"`
	DirectoryRoles []Principal         `json:"directoryRoles"`
	AppRoles       []AppRoleAssignment `json:"appRoles"`
	Devices        []Device            `json:"devices"`

	// Blocked is set when Graph denied the identity reads; the view is
	// returned empty instead of failing the page.
	Blocked bool `json:"blocked,omitempty"`
}
