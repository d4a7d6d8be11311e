package authz

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/openshelf/openshelf/internal/shared"
)

type staticResolver struct {
	roles map[string]Role
	err   error
}

func (r staticResolver) ResolveRole(_ context.Context, userID string) (Role, error) {
	if r.err != nil {
		return 0, r.err
	}
	role, ok := r.roles[userID]
	if !ok {
		return 0, shared.ErrNotFound
	}
	return role, nil
}

func newTestGate(t *testing.T, roles map[string]Role) *Gate {
	t.Helper()
	return NewGate(DefaultRegistry(), staticResolver{roles: roles})
}

func TestDefaultRegistryCoversEveryAction(t *testing.T) {
	reg := DefaultRegistry()
	for _, action := range AllActions() {
		require.True(t, reg.IsRegistered(action), "action %s missing from registry", action)
	}
}

// expectedGrants is the full role x action matrix: decide must grant iff the
// action is in the role's capability set or the action is open.
func expectedGrants() map[Role]map[Action]bool {
	denied := map[Role][]Action{
		RoleUser:     {ActionRateFile, ActionGetFilteredFiles, ActionChangeUserRole},
		RoleEducator: {ActionChangeUserRole},
		RoleAdmin:    {},
	}
	matrix := make(map[Role]map[Action]bool, len(denied))
	for role, deniedActions := range denied {
		row := make(map[Action]bool, len(AllActions()))
		for _, action := range AllActions() {
			row[action] = true
		}
		for _, action := range deniedActions {
			row[action] = false
		}
		matrix[role] = row
	}
	return matrix
}

func TestDecideMatrix(t *testing.T) {
	gate := newTestGate(t, map[string]Role{
		"u-user":     RoleUser,
		"u-educator": RoleEducator,
		"u-admin":    RoleAdmin,
	})
	users := map[Role]string{
		RoleUser:     "u-user",
		RoleEducator: "u-educator",
		RoleAdmin:    "u-admin",
	}
	ctx := context.Background()

	for role, row := range expectedGrants() {
		for action, want := range row {
			decision, err := gate.Decide(ctx, users[role], action)
			require.NoError(t, err)
			require.Equal(t, want, decision.Allowed, "role=%s action=%s", role, action)
		}
	}
}

func TestDecideUnknownActionFailsClosed(t *testing.T) {
	gate := newTestGate(t, map[string]Role{
		"u-user":  RoleUser,
		"u-admin": RoleAdmin,
	})
	ctx := context.Background()

	for _, userID := range []string{"u-user", "u-admin"} {
		decision, err := gate.Decide(ctx, userID, Action("dropAllTables"))
		require.NoError(t, err)
		require.False(t, decision.Allowed, "unknown action must be denied for %s", userID)
	}

	// Anonymous callers fail closed too.
	decision, err := gate.Decide(ctx, "", Action("dropAllTables"))
	require.NoError(t, err)
	require.False(t, decision.Allowed)
}

func TestDecideOpenActionSkipsIdentityResolution(t *testing.T) {
	// The resolver always errors; open actions must not consult it.
	gate := NewGate(DefaultRegistry(), staticResolver{err: errors.New("identity store down")})

	decision, err := gate.Decide(context.Background(), "", ActionGetFAQ)
	require.NoError(t, err)
	require.True(t, decision.Allowed)
}

func TestDecideAnonymousDeniedForGatedAction(t *testing.T) {
	gate := newTestGate(t, nil)

	decision, err := gate.Decide(context.Background(), "", ActionGetFile)
	require.NoError(t, err)
	require.False(t, decision.Allowed)
	require.Equal(t, reasonUserNotFound, decision.Reason)
}

func TestDecideUnresolvableIdentity(t *testing.T) {
	gate := newTestGate(t, map[string]Role{"u-known": RoleUser})

	decision, err := gate.Decide(context.Background(), "u-ghost", ActionGetFile)
	require.NoError(t, err)
	require.False(t, decision.Allowed)
	require.Equal(t, reasonUserNotFound, decision.Reason)
}

func TestDecideResolverFailurePropagates(t *testing.T) {
	gate := NewGate(DefaultRegistry(), staticResolver{err: errors.New("connection refused")})

	_, err := gate.Decide(context.Background(), "u-user", ActionGetFile)
	require.Error(t, err)
}

func TestNewRegistryRejectsIncompleteTable(t *testing.T) {
	_, err := NewRegistry(1, []Action{ActionGetFAQ}, map[Role][]Action{
		RoleUser: {ActionGetFile},
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "does not cover")
}

func TestNewRegistryRejectsOverlap(t *testing.T) {
	grants := map[Role][]Action{RoleAdmin: AllActions()}
	_, err := NewRegistry(1, []Action{ActionGetFAQ}, grants)
	require.Error(t, err)
	require.Contains(t, err.Error(), "both open and gated")
}

func TestNewRegistryRejectsUnknownAction(t *testing.T) {
	grants := map[Role][]Action{
		RoleUser:     {Action("flyToTheMoon")},
		RoleEducator: {},
		RoleAdmin:    {},
	}
	_, err := NewRegistry(1, []Action{ActionGetFAQ}, grants)
	require.Error(t, err)
}

func TestParseRole(t *testing.T) {
	cases := []struct {
		in   string
		want Role
		ok   bool
	}{
		{"USER", RoleUser, true},
		{"educator", RoleEducator, true},
		{" Admin ", RoleAdmin, true},
		{"SUPERUSER", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		role, err := ParseRole(tc.in)
		if tc.ok {
			require.NoError(t, err, tc.in)
			require.Equal(t, tc.want, role)
		} else {
			require.Error(t, err, tc.in)
		}
	}
}

func TestTokenRoundTrip(t *testing.T) {
	token, err := NewAccessToken("sekrit", "openshelf", "u-1", time.Minute)
	require.NoError(t, err)

	claims, err := ParseToken("sekrit", token)
	require.NoError(t, err)
	require.Equal(t, "u-1", claims.UserID)
}

func TestTokenVerificationIsAHardGate(t *testing.T) {
	token, err := NewAccessToken("sekrit", "openshelf", "u-1", time.Minute)
	require.NoError(t, err)

	_, err = ParseToken("wrong-secret", token)
	require.Error(t, err)

	_, err = ParseToken("sekrit", token+"tampered")
	require.Error(t, err)

	expired, err := NewAccessToken("sekrit", "openshelf", "u-1", -time.Minute)
	require.NoError(t, err)
	_, err = ParseToken("sekrit", expired)
	require.Error(t, err)
}

func TestActionFromPath(t *testing.T) {
	require.Equal(t, ActionGetFile, ActionFromPath("/api/getFile"))
	require.Equal(t, ActionGetFile, ActionFromPath("/api/getFile/"))
	require.Equal(t, Action("getfile"), ActionFromPath("/api/getfile"), "matching is case-exact")
	require.Equal(t, ActionGetFAQ, ActionFromPath("getFAQ"))
}
