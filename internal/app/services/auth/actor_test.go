package auth

import (
	"context"
	"errors"
	"testing"
)

type hostOnly struct{}

func (hostOnly) AllowedRoles() []Role { return []Role{RoleHost} }

func TestRoleAuthorizer(t *testing.T) {
	authz := RoleAuthorizer{}
	cases := []struct {
		name  string
		actor *Actor
		msg   any
		want  error
	}{
		{"unrestricted without actor", nil, struct{}{}, nil},
		{"restricted without actor", nil, hostOnly{}, ErrUnauthorized},
		{"guest on host command", &Actor{ID: "g", Role: RoleGuest}, hostOnly{}, ErrForbidden},
		{"host on host command", &Actor{ID: "h", Role: RoleHost}, hostOnly{}, nil},
		{"admin passes", &Actor{ID: "a", Role: RoleAdmin}, hostOnly{}, nil},
		{"system passes", &System, hostOnly{}, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			if tc.actor != nil {
				ctx = ContextWithActor(ctx, *tc.actor)
			}
			err := authz.Authorize(ctx, tc.msg)
			if !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestForbiddenIsUnauthorized(t *testing.T) {
	if !errors.Is(ErrForbidden, ErrUnauthorized) {
		t.Fatal("forbidden should match unauthorized")
	}
	if _, err := ParseRole("landlord"); !errors.Is(err, ErrUnknownRole) {
		t.Fatalf("err = %v", err)
	}
	if r, _ := ParseRole(""); r != RoleGuest {
		t.Fatalf("default role = %s", r)
	}
}
