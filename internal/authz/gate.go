package authz

import (
	"context"
	"errors"
	"fmt"

	"github.com/openshelf/openshelf/internal/shared"
)

// RoleResolver looks up the role assigned to an identity. Implementations
// return shared.ErrNotFound when the identity does not resolve.
type RoleResolver interface {
	ResolveRole(ctx context.Context, userID string) (Role, error)
}

// Denial reasons. Kept server-side; HTTP responses stay generic.
const (
	reasonGranted       = "permission granted"
	reasonUserNotFound  = "user not found, make sure you are logged in"
	reasonNotRegistered = "action is not registered"
)

// Gate decides, per request, whether an identity may invoke an action. It is
// a pure decision function over the registry and externally supplied state.
type Gate struct {
	registry *Registry
	resolver RoleResolver
}

// NewGate constructs a Gate.
func NewGate(registry *Registry, resolver RoleResolver) *Gate {
	return &Gate{registry: registry, resolver: resolver}
}

// Decide checks whether userID may invoke action. An empty userID means the
// caller is anonymous and only open actions are reachable. Unknown actions
// are always denied, for every role.
//
// A non-nil error is returned only when the role lookup itself fails for
// reasons other than a missing identity; every policy outcome is a Decision.
func (g *Gate) Decide(ctx context.Context, userID string, action Action) (Decision, error) {
	if g.registry.IsOpen(action) {
		return Decision{Allowed: true, Reason: reasonGranted, UserID: userID}, nil
	}

	if userID == "" {
		return Decision{Reason: reasonUserNotFound}, nil
	}

	role, err := g.resolver.ResolveRole(ctx, userID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return Decision{Reason: reasonUserNotFound}, nil
		}
		return Decision{}, fmt.Errorf("authz: resolve role: %w", err)
	}

	if !g.registry.IsRegistered(action) {
		return Decision{Reason: reasonNotRegistered}, nil
	}

	if !g.registry.Allows(role, action) {
		return Decision{Reason: fmt.Sprintf("no permission for role %s", role)}, nil
	}

	return Decision{Allowed: true, Reason: reasonGranted, UserID: userID}, nil
}
