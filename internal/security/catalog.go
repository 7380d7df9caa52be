package security

import (
	"errors"
	"net/http"
	"strings"

	"github.com/entrasecure/entrasecure/internal/infrastructure/graph"
)

// User-facing messages for the error states the portal can hit. Centralized
// so handlers never hardcode copy and technical errors never leak to users.
const (
	MsgAuthRequired        = "You must sign in to access this feature."
	MsgForbiddenPortalRole = "Your account lacks the portal role required for this feature."

	MsgGraphForbiddenIdentity = "Microsoft Graph denied reading your identity (403). Check delegated permissions and directory roles."
	MsgGraphForbiddenUsers    = "Your account lacks the 'User Administrator' directory role in this tenant."
	MsgGraphForbiddenGroups   = "Your account lacks the 'Groups Administrator' directory role in this tenant."
	MsgGraphForbiddenApps     = "Your account lacks the 'Application Administrator' directory role in this tenant."
	MsgGraphForbiddenRoles    = "This action requires the 'Privileged Role Administrator' directory role in this tenant."
	MsgGraphForbiddenGeneric  = "Microsoft Graph denied the action (403). Check directory roles and permissions."

	MsgGraphBadRequest = "The request is not valid. Review the submitted fields."
	MsgGraphNotFound   = "The requested resource was not found."
	MsgInternalError   = "An internal portal error occurred."

	MsgRoleActivateImplicit = "This directory role is implicit and cannot be activated explicitly."

	MsgUserNameRequired     = "Display name and user principal name are required."
	MsgUserPasswordRequired = "An initial password is required."
	MsgGroupNameRequired    = "Group display name and mail nickname are required."
	MsgGroupOwnerRequired   = "A new group needs at least one owner."
	MsgObjectIDRequired     = "An object id is required."
)

// ValidationError is a rejected user input with a catalog-backed message
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// NewValidationError builds a typed validation failure
func NewValidationError(message string) error {
	return &ValidationError{Message: message}
}

// forbiddenByAction maps an action-key prefix to the message explaining
// which directory role is missing
var forbiddenByAction = []struct {
	prefix  string
	message string
}{
	{"identity.", MsgGraphForbiddenIdentity},
	{"users.", MsgGraphForbiddenUsers},
	{"groups.", MsgGraphForbiddenGroups},
	{"apps.", MsgGraphForbiddenApps},
	{"roles.", MsgGraphForbiddenRoles},
}

// MapError translates an error from the service layer into an HTTP status
// and a user-facing message for the given action key. Typed errors are
// switched on; no message sniffing happens here.
func MapError(actionKey string, err error) (int, string) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return http.StatusBadRequest, ve.Message
	}

	var ire *graph.ImplicitRoleError
	if errors.As(err, &ire) {
		return http.StatusConflict, MsgRoleActivateImplicit
	}

	switch {
	case graph.IsForbidden(err):
		for _, m := range forbiddenByAction {
			if strings.HasPrefix(actionKey, m.prefix) {
				return http.StatusForbidden, m.message
			}
		}
		return http.StatusForbidden, MsgGraphForbiddenGeneric
	case graph.IsBadRequest(err):
		return http.StatusBadRequest, MsgGraphBadRequest
	case graph.IsNotFound(err):
		return http.StatusNotFound, MsgGraphNotFound
	default:
		return http.StatusInternalServerError, MsgInternalError
	}
}
