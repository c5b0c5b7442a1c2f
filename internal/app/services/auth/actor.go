package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnauthorized = errors.New("auth: unauthorized")
	ErrForbidden    = fmt.Errorf("%w: actor may not act on this resource", ErrUnauthorized)
	ErrUnknownRole  = errors.New("auth: unknown role")
)

type Role string

const (
	RoleGuest  Role = "guest"
	RoleHost   Role = "host"
	RoleAdmin  Role = "admin"
	RoleSystem Role = "system"
)

func ParseRole(raw string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(raw))); r {
	case RoleGuest, RoleHost, RoleAdmin:
		return r, nil
	case "":
		return RoleGuest, nil
	}
	return "", ErrUnknownRole
}

// Actor is the caller of an operation as asserted by the upstream gateway.
type Actor struct {
	ID   string
	Role Role
}

// System is the actor of scheduled maintenance such as the expiry sweep.
var System = Actor{ID: "system", Role: RoleSystem}

func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin || a.Role == RoleSystem
}

func (a Actor) Is(id string) bool {
	return a.ID != "" && a.ID == id
}

type actorKey struct{}

func ContextWithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

func ActorFromContext(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(actorKey{}).(Actor)
	if !ok || strings.TrimSpace(a.ID) == "" {
		return Actor{}, false
	}
	return a, true
}

// RequireActor returns the actor in ctx or ErrUnauthorized.
func RequireActor(ctx context.Context) (Actor, error) {
	a, ok := ActorFromContext(ctx)
	if !ok {
		return Actor{}, ErrUnauthorized
	}
	return a, nil
}
