package auth

import (
	"errors"
	"fmt"
	"strings"
)

// Common errors returned by the authentication subsystem.
var (
	ErrInvalidToken     = errors.New("invalid token")
	ErrMissingToken     = errors.New("missing bearer token")
	ErrPermissionDenied = errors.New("permission denied")
)

// Permissions understood by the API.
const (
	PermissionRead  = "anchor:read"
	PermissionWrite = "anchor:write"
)

// Subject is the resolved caller. Sender becomes MessageInfo.Sender for
// instantiate and execute messages.
type Subject struct {
	Sender      string
	Permissions []string

	permissionsSet map[string]struct{}
}

// normalise prepares the lookup set for permission checks.
func (s *Subject) normalise() {
	if s == nil {
		return
	}
	if s.permissionsSet == nil {
		s.permissionsSet = make(map[string]struct{}, len(s.Permissions))
		for _, perm := range s.Permissions {
			s.permissionsSet[strings.ToLower(strings.TrimSpace(perm))] = struct{}{}
		}
	}
}

// HasPermission reports whether the subject has the specified permission.
func (s *Subject) HasPermission(permission string) bool {
	if s == nil {
		return false
	}
	s.normalise()
	_, ok := s.permissionsSet[strings.ToLower(strings.TrimSpace(permission))]
	return ok
}

// Authorize ensures the subject has all required permissions.
func (s *Subject) Authorize(perms ...string) error {
	if s == nil {
		return ErrInvalidToken
	}
	for _, perm := range perms {
		if perm == "" {
			continue
		}
		if !s.HasPermission(perm) {
			return fmt.Errorf("%w: missing %s", ErrPermissionDenied, perm)
		}
	}
	return nil
}

// Config configures the authentication service.
type Config struct {
	Mode Mode
	// Operator is the identity used for every request when Mode is disabled.
	Operator string
	// Tokens maps a bearer token to the sender identity it represents.
	Tokens map[string]string
	// ReadOnly lists senders that may only query.
	ReadOnly []string
}

// Mode enumerates the supported authentication providers.
type Mode string

const (
	ModeDisabled Mode = "disabled"
	ModeStatic   Mode = "static"
)
