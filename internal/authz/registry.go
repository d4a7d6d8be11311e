package authz

import (
	"fmt"
	"sort"
)

// Registry is the single versioned table mapping roles to granted actions.
// It is immutable after construction; changing grants means shipping a new
// version, never mutating at runtime, so authorization stays auditable.
type Registry struct {
	version int
	open    map[Action]struct{}
	grants  map[Role]map[Action]struct{}
}

// NewRegistry builds and validates a registry. Construction fails when the
// table does not cover the action catalogue exactly once.
func NewRegistry(version int, open []Action, grants map[Role][]Action) (*Registry, error) {
	r := &Registry{
		version: version,
		open:    make(map[Action]struct{}, len(open)),
		grants:  make(map[Role]map[Action]struct{}, len(grants)),
	}
	for _, a := range open {
		r.open[a] = struct{}{}
	}
	for role, actions := range grants {
		if !role.Valid() {
			return nil, fmt.Errorf("authz: registry v%d grants to invalid role %s", version, role)
		}
		set := make(map[Action]struct{}, len(actions))
		for _, a := range actions {
			set[a] = struct{}{}
		}
		r.grants[role] = set
	}
	if err := r.validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// validate checks that every implemented action is registered exactly once:
// either open or role-gated, never both, with no strays and no gaps.
func (r *Registry) validate() error {
	catalogue := make(map[Action]struct{}, len(AllActions()))
	for _, a := range AllActions() {
		catalogue[a] = struct{}{}
	}

	seen := make(map[Action]struct{})
	for a := range r.open {
		if _, ok := catalogue[a]; !ok {
			return fmt.Errorf("authz: registry v%d opens unknown action %q", r.version, a)
		}
		seen[a] = struct{}{}
	}
	for role, set := range r.grants {
		for a := range set {
			if _, ok := catalogue[a]; !ok {
				return fmt.Errorf("authz: registry v%d grants unknown action %q to %s", r.version, a, role)
			}
			if _, ok := r.open[a]; ok {
				return fmt.Errorf("authz: registry v%d action %q is both open and gated", r.version, a)
			}
			seen[a] = struct{}{}
		}
	}

	var missing []string
	for a := range catalogue {
		if _, ok := seen[a]; !ok {
			missing = append(missing, string(a))
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("authz: registry v%d does not cover actions %v", r.version, missing)
	}
	return nil
}

// Version returns the registry version.
func (r *Registry) Version() int {
	return r.version
}

// IsOpen reports whether the action is reachable without an identity.
func (r *Registry) IsOpen(a Action) bool {
	_, ok := r.open[a]
	return ok
}

// IsRegistered reports whether the action exists anywhere in the table.
func (r *Registry) IsRegistered(a Action) bool {
	if r.IsOpen(a) {
		return true
	}
	for _, set := range r.grants {
		if _, ok := set[a]; ok {
			return true
		}
	}
	return false
}

// Allows reports whether the role is granted the action. Open actions are
// allowed for every role.
func (r *Registry) Allows(role Role, a Action) bool {
	if r.IsOpen(a) {
		return true
	}
	set, ok := r.grants[role]
	if !ok {
		return false
	}
	_, ok = set[a]
	return ok
}

// registryVersion tracks the shipped capability table. Bump on any change.
const registryVersion = 2

// DefaultRegistry returns the process-wide capability table.
//
// USER is granted everything except review rating, moderation filtering and
// role administration; EDUCATOR additionally reviews; ADMIN gets all.
func DefaultRegistry() *Registry {
	userActions := []Action{
		ActionCreateFileRecord,
		ActionEditFileRecord,
		ActionLikeFile,
		ActionSearchFile,
		ActionGetUserFiles,
		ActionToggleVisibility,
		ActionReportFile,
		ActionGetCommunityFiles,
		ActionGetFile,
		ActionGetProfile,
		ActionEditProfile,
	}
	educatorActions := append(append([]Action{}, userActions...),
		ActionRateFile,
		ActionGetFilteredFiles,
	)
	adminActions := append(append([]Action{}, educatorActions...),
		ActionChangeUserRole,
	)

	r, err := NewRegistry(registryVersion,
		[]Action{ActionGetFAQ},
		map[Role][]Action{
			RoleUser:     userActions,
			RoleEducator: educatorActions,
			RoleAdmin:    adminActions,
		},
	)
	if err != nil {
		// The default table is covered by tests; reaching this is a bug.
		panic(err)
	}
	return r
}
