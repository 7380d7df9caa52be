package graph

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Error is a non-2xx response from Microsoft Graph. Code and Message come
// from the OData error envelope when one was present.
type Error struct {
	StatusCode int
	Code       string
	Message    string
	Method     string
	Path       string
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("graph %s %s: %d %s: %s", e.Method, e.Path, e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("graph %s %s: %d", e.Method, e.Path, e.StatusCode)
}

// ImplicitRoleError is returned when a directory-role activation fails
// because the role only exists as an implicit built-in. Callers switch on
// this type instead of sniffing message strings.
type ImplicitRoleError struct {
	RoleTemplateID string
	underlying     *Error
}

func (e *ImplicitRoleError) Error() string {
	return fmt.Sprintf("directory role template %s cannot be activated explicitly", e.RoleTemplateID)
}

func (e *ImplicitRoleError) Unwrap() error { return e.underlying }

// NewImplicitRoleError builds the typed activation failure around the Graph
// response that triggered it
func NewImplicitRoleError(roleTemplateID string, underlying *Error) *ImplicitRoleError {
	return &ImplicitRoleError{RoleTemplateID: roleTemplateID, underlying: underlying}
}

// IsForbidden reports whether err is a Graph 403, typically a missing
// delegated permission or directory role
func IsForbidden(err error) bool {
	var ge *Error
	return errors.As(err, &ge) && ge.StatusCode == http.StatusForbidden
}

// IsBadRequest reports whether err is a Graph 400
func IsBadRequest(err error) bool {
	var ge *Error
	return errors.As(err, &ge) && ge.StatusCode == http.StatusBadRequest
}

// IsNotFound reports whether err is a Graph 404
func IsNotFound(err error) bool {
	var ge *Error
	return errors.As(err, &ge) && ge.StatusCode == http.StatusNotFound
}

// retryable reports whether a failed call may succeed on a second attempt.
// 429 and 5xx are transient; other Graph statuses are final. Transport
// errors (no *Error) are retried.
func retryable(err error) bool {
	var ge *Error
	if !errors.As(err, &ge) {
		return true
	}
	return ge.StatusCode == http.StatusTooManyRequests || ge.StatusCode >= 500
}

// classifyActivation converts the known activation failure shape into its
// typed variant. The message match lives here, at the client boundary, so no
// caller ever inspects error text.
func classifyActivation(err *Error, roleTemplateID string) error {
	if err.StatusCode == http.StatusBadRequest && strings.Contains(strings.ToLower(err.Message), "implicit") {
		return &ImplicitRoleError{RoleTemplateID: roleTemplateID, underlying: err}
	}
	return err
}
