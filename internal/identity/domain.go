// Package identity resolves user accounts and their assigned roles. Account
// creation and credential verification belong to the external credential
// provider; this package only reads and administers what it stores.
package identity

import (
	"time"

	"github.com/openshelf/openshelf/internal/authz"
)

// User is a platform account. Exactly one role is assigned at any time.
type User struct {
	ID        string
	Email     string
	Name      string
	Role      authz.Role
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ProfilePatch carries an explicit-presence update: nil means "leave alone",
// a pointer to the zero value means "set to the zero value".
type ProfilePatch struct {
	Name  *string
	Email *string
}

// Empty reports whether the patch changes nothing.
func (p ProfilePatch) Empty() bool {
	return p.Name == nil && p.Email == nil
}
