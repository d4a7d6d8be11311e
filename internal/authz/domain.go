// Package authz implements the capability registry and the per-request
// authorization gate. The registry is built once at startup and treated as
// immutable process-wide configuration.
package authz

import (
	"fmt"
	"strings"
)

// Role classifies a caller. Exactly one role is assigned per identity.
type Role uint8

const (
	RoleUser Role = iota + 1
	RoleEducator
	RoleAdmin
)

// Roles lists every member of the closed enumeration.
func Roles() []Role {
	return []Role{RoleUser, RoleEducator, RoleAdmin}
}

// String returns the canonical upper-case name of the role.
func (r Role) String() string {
	switch r {
	case RoleUser:
		return "USER"
	case RoleEducator:
		return "EDUCATOR"
	case RoleAdmin:
		return "ADMIN"
	default:
		return fmt.Sprintf("ROLE(%d)", uint8(r))
	}
}

// Valid reports whether r is a member of the closed enumeration.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleEducator, RoleAdmin:
		return true
	default:
		return false
	}
}

// ParseRole maps a stored role name onto the enumeration.
func ParseRole(s string) (Role, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "USER":
		return RoleUser, nil
	case "EDUCATOR":
		return RoleEducator, nil
	case "ADMIN":
		return RoleAdmin, nil
	default:
		return 0, fmt.Errorf("authz: unknown role %q", s)
	}
}

// Action names one invocable capability. Matching against the registry is
// exact: anything not registered is denied.
type Action string

const (
	ActionCreateFileRecord  Action = "createFileRecord"
	ActionEditFileRecord    Action = "editFileRecord"
	ActionLikeFile          Action = "likeFile"
	ActionRateFile          Action = "rateFile"
	ActionSearchFile        Action = "searchFile"
	ActionGetUserFiles      Action = "getUserFiles"
	ActionToggleVisibility  Action = "toggleVisibility"
	ActionReportFile        Action = "reportFile"
	ActionGetCommunityFiles Action = "getCommunityFiles"
	ActionGetFile           Action = "getFile"
	ActionGetProfile        Action = "getProfile"
	ActionEditProfile       Action = "editProfile"
	ActionGetFilteredFiles  Action = "getFilteredFiles"
	ActionChangeUserRole    Action = "changeUserRole"
	ActionGetFAQ            Action = "getFAQ"
)

// AllActions enumerates every action the system implements. The registry is
// validated against this catalogue at startup.
func AllActions() []Action {
	return []Action{
		ActionCreateFileRecord,
		ActionEditFileRecord,
		ActionLikeFile,
		ActionRateFile,
		ActionSearchFile,
		ActionGetUserFiles,
		ActionToggleVisibility,
		ActionReportFile,
		ActionGetCommunityFiles,
		ActionGetFile,
		ActionGetProfile,
		ActionEditProfile,
		ActionGetFilteredFiles,
		ActionChangeUserRole,
		ActionGetFAQ,
	}
}

// Decision is the transient outcome of one authorization check. It is
// produced per request and never persisted.
type Decision struct {
	Allowed bool
	Reason  string
	UserID  string
}
