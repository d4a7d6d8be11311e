package identity

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/openshelf/openshelf/internal/authz"
	"github.com/openshelf/openshelf/internal/shared"
)

// RepositoryPort defines data access for user accounts.
type RepositoryPort interface {
	FindUser(ctx context.Context, id string) (User, error)
	UpdateProfile(ctx context.Context, id string, patch ProfilePatch) (User, error)
	UpdateRole(ctx context.Context, id string, role authz.Role) (User, error)
}

// Service handles profile and role administration.
type Service struct {
	repo RepositoryPort
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

var emailPattern = regexp.MustCompile(`^\S+@\S+\.\S+$`)

// GetProfile returns the account for the given identity.
func (s *Service) GetProfile(ctx context.Context, userID string) (User, error) {
	return s.repo.FindUser(ctx, userID)
}

// EditProfile applies an explicit-presence patch to the caller's account.
func (s *Service) EditProfile(ctx context.Context, userID string, patch ProfilePatch) (User, error) {
	if patch.Empty() {
		return User{}, fmt.Errorf("%w: no fields provided to update", shared.ErrValidation)
	}
	if patch.Email != nil && !emailPattern.MatchString(*patch.Email) {
		return User{}, fmt.Errorf("%w: invalid email address", shared.ErrValidation)
	}
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		return User{}, fmt.Errorf("%w: name must not be blank", shared.ErrValidation)
	}
	return s.repo.UpdateProfile(ctx, userID, patch)
}

// ChangeRole reassigns a user's role. The ADMIN gating happens in the
// authorization gate; here only the target role is validated.
func (s *Service) ChangeRole(ctx context.Context, userID string, roleName string) (User, error) {
	role, err := authz.ParseRole(roleName)
	if err != nil {
		return User{}, fmt.Errorf("%w: role must be one of USER, EDUCATOR or ADMIN", shared.ErrValidation)
	}
	return s.repo.UpdateRole(ctx, userID, role)
}

// ResolveRole implements authz.RoleResolver on top of the account store.
func (s *Service) ResolveRole(ctx context.Context, userID string) (authz.Role, error) {
	user, err := s.repo.FindUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	return user.Role, nil
}
