package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/openshelf/openshelf/internal/authz"
	"github.com/openshelf/openshelf/internal/shared"
)

// Repository provides PostgreSQL backed persistence for user accounts.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// FindUser loads one account by id.
func (r *Repository) FindUser(ctx context.Context, id string) (User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, email, name, role, created_at, updated_at FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// UpdateProfile applies the provided fields only. Explicit presence markers
// mean an intentional zero value is still written.
func (r *Repository) UpdateProfile(ctx context.Context, id string, patch ProfilePatch) (User, error) {
	sets := make([]string, 0, 2)
	args := []any{id}
	if patch.Name != nil {
		args = append(args, *patch.Name)
		sets = append(sets, fmt.Sprintf("name = $%d", len(args)))
	}
	if patch.Email != nil {
		args = append(args, *patch.Email)
		sets = append(sets, fmt.Sprintf("email = $%d", len(args)))
	}

	query := fmt.Sprintf(
		`UPDATE users SET %s, updated_at = now() WHERE id = $1
		 RETURNING id, email, name, role, created_at, updated_at`,
		strings.Join(sets, ", "))
	return scanUser(r.pool.QueryRow(ctx, query, args...))
}

// UpdateRole reassigns the user's role.
func (r *Repository) UpdateRole(ctx context.Context, id string, role authz.Role) (User, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE users SET role = $2, updated_at = now() WHERE id = $1
		 RETURNING id, email, name, role, created_at, updated_at`,
		id, role.String())
	return scanUser(row)
}

func scanUser(row pgx.Row) (User, error) {
	var (
		user    User
		rawRole string
	)
	if err := row.Scan(&user.ID, &user.Email, &user.Name, &rawRole, &user.CreatedAt, &user.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, fmt.Errorf("%w: user", shared.ErrNotFound)
		}
		return User{}, fmt.Errorf("%w: %v", shared.ErrPersistence, err)
	}
	role, err := authz.ParseRole(rawRole)
	if err != nil {
		return User{}, fmt.Errorf("%w: user %s has invalid role %q", shared.ErrPersistence, user.ID, rawRole)
	}
	user.Role = role
	return user, nil
}
