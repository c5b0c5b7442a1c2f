package auth

import (
	"context"
	"fmt"
)

// Restricted is implemented by commands and queries limited to some roles.
type Restricted interface {
	AllowedRoles() []Role
}

// RoleAuthorizer rejects restricted messages sent by actors outside their
// allowed roles. Admins and the system actor pass every check.
type RoleAuthorizer struct{}

func (RoleAuthorizer) Authorize(ctx context.Context, message any) error {
	restricted, ok := message.(Restricted)
	if !ok {
		return nil
	}
	actor, err := RequireActor(ctx)
	if err != nil {
		return err
	}
	if actor.IsAdmin() {
		return nil
	}
	for _, role := range restricted.AllowedRoles() {
		if actor.Role == role {
			return nil
		}
	}
	return fmt.Errorf("%w: role %s", ErrForbidden, actor.Role)
}
