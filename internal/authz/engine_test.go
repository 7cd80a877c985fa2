package authz

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chorale-hq/chorale/internal/shared"
)

type stubCatalog struct {
	grants map[string][]Grant
}

func (s stubCatalog) GrantsForRoles(_ context.Context, roles []string) ([]Grant, error) {
	var matched []Grant
	for _, role := range roles {
		matched = append(matched, s.grants[role]...)
	}
	return matched, nil
}

func newTestEngine() *Engine {
	return NewEngine(stubCatalog{grants: map[string][]Grant{
		"President": {
			{Role: "President", Permission: PermEditAttendance, Scope: GeneralScope()},
		},
		"Section Leader": {
			{Role: "Section Leader", Permission: PermEditAttendance, Scope: TypeScope(EventSectional)},
			{Role: "Section Leader", Permission: PermEditAttendanceOwnSection, Scope: TypeScope(EventRehearsal)},
		},
	}})
}

func TestCheckGeneralGrantMatchesEveryScope(t *testing.T) {
	engine := newTestEngine()
	ctx := context.Background()
	president := Principal{Email: "p@example.com", Roles: []string{"President"}}

	for _, eventType := range KnownEventTypes() {
		ok, err := engine.Check(ctx, president, PermEditAttendance, TypeScope(eventType))
		require.NoError(t, err)
		require.True(t, ok, "general grant must cover %s", eventType)
	}

	ok, err := engine.Check(ctx, president, PermEditAttendance, GeneralScope())
	require.NoError(t, err)
	require.True(t, ok, "general grant must cover the unscoped check")
}

func TestCheckScopedGrantMatchesOnlyItsType(t *testing.T) {
	engine := newTestEngine()
	ctx := context.Background()
	leader := Principal{Email: "l@example.com", Roles: []string{"Section Leader"}}

	ok, err := engine.Check(ctx, leader, PermEditAttendance, TypeScope(EventSectional))
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = engine.Check(ctx, leader, PermEditAttendance, TypeScope(EventRehearsal))
	require.NoError(t, err)
	require.False(t, ok)

	// A type-scoped grant does not satisfy a check with no requested scope.
	ok, err = engine.Check(ctx, leader, PermEditAttendance, GeneralScope())
	require.NoError(t, err)
	require.False(t, ok)
}

func TestCheckUnrelatedPermissionDenied(t *testing.T) {
	engine := newTestEngine()
	ctx := context.Background()

	ok, err := engine.Check(ctx, Principal{Email: "p@example.com", Roles: []string{"President"}}, PermDeleteEvent, GeneralScope())
	require.NoError(t, err)
	require.False(t, ok)

	ok, err = engine.Check(ctx, Principal{Email: "n@example.com"}, PermEditAttendance, GeneralScope())
	require.NoError(t, err)
	require.False(t, ok, "no roles means no grants")
}

func TestRequireSurfacesPermissionName(t *testing.T) {
	engine := newTestEngine()
	ctx := context.Background()

	err := engine.Require(ctx, Principal{Email: "n@example.com", Roles: []string{"Member"}}, PermEditSetlist, GeneralScope())
	var forbidden *shared.ForbiddenError
	require.ErrorAs(t, err, &forbidden)
	require.Equal(t, "edit-setlist", forbidden.Permission)

	require.NoError(t, engine.Require(ctx, Principal{Email: "p@example.com", Roles: []string{"President"}}, PermEditAttendance, GeneralScope()))
}

func TestCheckOwnSection(t *testing.T) {
	engine := newTestEngine()
	ctx := context.Background()
	leader := Principal{Email: "l@example.com", Roles: []string{"Section Leader"}, Section: "Tenor 1"}
	scope := TypeScope(EventRehearsal)

	ok, err := engine.CheckOwnSection(ctx, leader, PermEditAttendanceOwnSection, scope, "Tenor 1")
	require.NoError(t, err)
	require.True(t, ok)

	// Denied when sections differ even though the variant is granted.
	ok, err = engine.CheckOwnSection(ctx, leader, PermEditAttendanceOwnSection, scope, "Bass 2")
	require.NoError(t, err)
	require.False(t, ok)

	// An unsectioned principal never passes the carve-out.
	unsectioned := Principal{Email: "u@example.com", Roles: []string{"Section Leader"}}
	ok, err = engine.CheckOwnSection(ctx, unsectioned, PermEditAttendanceOwnSection, scope, "")
	require.NoError(t, err)
	require.False(t, ok)

	// Matching sections alone are not enough without the grant.
	plain := Principal{Email: "m@example.com", Roles: []string{"Member"}, Section: "Tenor 1"}
	ok, err = engine.CheckOwnSection(ctx, plain, PermEditAttendanceOwnSection, scope, "Tenor 1")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestGrantMatches(t *testing.T) {
	general := Grant{Role: "President", Permission: PermCreateEvent, Scope: GeneralScope()}
	require.True(t, general.Matches(PermCreateEvent, TypeScope(EventRehearsal)))
	require.True(t, general.Matches(PermCreateEvent, GeneralScope()))
	require.False(t, general.Matches(PermDeleteEvent, GeneralScope()))

	scoped := Grant{Role: "Section Leader", Permission: PermCreateEvent, Scope: TypeScope(EventSectional)}
	require.True(t, scoped.Matches(PermCreateEvent, TypeScope(EventSectional)))
	require.False(t, scoped.Matches(PermCreateEvent, TypeScope(EventRehearsal)))
	require.False(t, scoped.Matches(PermCreateEvent, GeneralScope()))
}

func TestParseClosedDomains(t *testing.T) {
	perm, err := ParsePermission("edit-attendance")
	require.NoError(t, err)
	require.Equal(t, PermEditAttendance, perm)

	_, err = ParsePermission("edit-atendance")
	require.ErrorIs(t, err, ErrUnknownPermission)

	eventType, err := ParseEventType("tutti")
	require.NoError(t, err)
	require.Equal(t, EventTuttiGig, eventType)

	_, err = ParseEventType("banquet")
	require.ErrorIs(t, err, ErrUnknownEventType)
}
