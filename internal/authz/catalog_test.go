package authz

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/chorale-hq/chorale/internal/shared"
)

type memoryCatalogRepo struct {
	roles       map[string]Role
	permissions []PermissionInfo
	grants      []Grant
	memberRoles []MemberRole
	listCalls   int
}

func newMemoryCatalogRepo() *memoryCatalogRepo {
	return &memoryCatalogRepo{
		roles: map[string]Role{
			"President":      {Name: "President", Rank: 1, MaxQuantity: 1},
			"Section Leader": {Name: "Section Leader", Rank: 5, MaxQuantity: 4},
		},
		permissions: []PermissionInfo{
			{Name: PermCreateEvent, Kind: KindEvent},
			{Name: PermEditAttendance, Kind: KindEvent},
			{Name: PermEditOfficers, Kind: KindStatic},
		},
	}
}

func (m *memoryCatalogRepo) ListRoles(context.Context) ([]Role, error) {
	var roles []Role
	for _, role := range m.roles {
		roles = append(roles, role)
	}
	return roles, nil
}

func (m *memoryCatalogRepo) GetRole(_ context.Context, name string) (Role, error) {
	role, ok := m.roles[name]
	if !ok {
		return Role{}, shared.NotFound("no role named %q", name)
	}
	return role, nil
}

func (m *memoryCatalogRepo) ListPermissions(context.Context) ([]PermissionInfo, error) {
	return m.permissions, nil
}

func (m *memoryCatalogRepo) ListGrants(context.Context) ([]Grant, error) {
	m.listCalls++
	return append([]Grant(nil), m.grants...), nil
}

func (m *memoryCatalogRepo) GrantExists(_ context.Context, grant Grant) (bool, error) {
	for _, stored := range m.grants {
		if stored == grant {
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryCatalogRepo) InsertGrant(_ context.Context, grant Grant) error {
	m.grants = append(m.grants, grant)
	return nil
}

func (m *memoryCatalogRepo) DeleteGrant(_ context.Context, grant Grant) error {
	kept := m.grants[:0]
	for _, stored := range m.grants {
		if stored != grant {
			kept = append(kept, stored)
		}
	}
	m.grants = kept
	return nil
}

func (m *memoryCatalogRepo) RolesForMember(_ context.Context, email string) ([]string, error) {
	var roles []string
	for _, mr := range m.memberRoles {
		if mr.Member == email {
			roles = append(roles, mr.Role)
		}
	}
	return roles, nil
}

func (m *memoryCatalogRepo) ListMemberRoles(context.Context) ([]MemberRole, error) {
	return m.memberRoles, nil
}

func (m *memoryCatalogRepo) CountRoleHolders(_ context.Context, role string) (int, error) {
	count := 0
	for _, mr := range m.memberRoles {
		if mr.Role == role {
			count++
		}
	}
	return count, nil
}

func (m *memoryCatalogRepo) AssignRole(_ context.Context, email, role string) error {
	m.memberRoles = append(m.memberRoles, MemberRole{Member: email, Role: role, GrantedAt: time.Now()})
	return nil
}

func (m *memoryCatalogRepo) RemoveRole(_ context.Context, email, role string) error {
	kept := m.memberRoles[:0]
	for _, mr := range m.memberRoles {
		if mr.Member != email || mr.Role != role {
			kept = append(kept, mr)
		}
	}
	m.memberRoles = kept
	return nil
}

func newCachedCatalog(t *testing.T, repo RepositoryPort) *Catalog {
	t.Helper()
	mini := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mini.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCatalog(repo, client, time.Minute)
}

func TestEnableGrantIsIdempotent(t *testing.T) {
	repo := newMemoryCatalogRepo()
	catalog := NewCatalog(repo, nil, 0)
	ctx := context.Background()
	grant := Grant{Role: "Section Leader", Permission: PermEditAttendance, Scope: TypeScope(EventSectional)}

	require.NoError(t, catalog.EnableGrant(ctx, grant))
	require.NoError(t, catalog.EnableGrant(ctx, grant))
	require.Len(t, repo.grants, 1)

	require.NoError(t, catalog.DisableGrant(ctx, grant))
	require.Empty(t, repo.grants)
	require.NoError(t, catalog.DisableGrant(ctx, grant))
}

func TestEnableGrantRejectsUnknownNames(t *testing.T) {
	catalog := NewCatalog(newMemoryCatalogRepo(), nil, 0)
	ctx := context.Background()
	var badReq *shared.BadRequestError

	err := catalog.EnableGrant(ctx, Grant{Role: "President", Permission: "rule-the-world", Scope: GeneralScope()})
	require.ErrorAs(t, err, &badReq)

	err = catalog.EnableGrant(ctx, Grant{Role: "President", Permission: PermCreateEvent, Scope: TypeScope("banquet")})
	require.ErrorAs(t, err, &badReq)
}

func TestValidateCatchesBadRows(t *testing.T) {
	repo := newMemoryCatalogRepo()
	catalog := NewCatalog(repo, nil, 0)
	ctx := context.Background()

	repo.grants = []Grant{{Role: "President", Permission: PermCreateEvent, Scope: GeneralScope()}}
	require.NoError(t, catalog.Validate(ctx))

	repo.grants = []Grant{{Role: "President", Permission: PermEditSetlist, Scope: GeneralScope()}}
	require.ErrorIs(t, catalog.Validate(ctx), ErrUnknownPermission)

	// A static permission cannot carry an event-type scope.
	repo.grants = []Grant{{Role: "President", Permission: PermEditOfficers, Scope: TypeScope(EventRehearsal)}}
	require.Error(t, catalog.Validate(ctx))
}

func TestGrantsForRolesUsesCache(t *testing.T) {
	repo := newMemoryCatalogRepo()
	repo.grants = []Grant{
		{Role: "President", Permission: PermCreateEvent, Scope: GeneralScope()},
		{Role: "Section Leader", Permission: PermEditAttendance, Scope: TypeScope(EventSectional)},
	}
	catalog := newCachedCatalog(t, repo)
	ctx := context.Background()

	grants, err := catalog.GrantsForRoles(ctx, []string{"Section Leader"})
	require.NoError(t, err)
	require.Len(t, grants, 1)
	require.Equal(t, PermEditAttendance, grants[0].Permission)

	_, err = catalog.GrantsForRoles(ctx, []string{"President"})
	require.NoError(t, err)
	require.Equal(t, 1, repo.listCalls, "second lookup must hit the cache")
}

func TestGrantChangeInvalidatesCache(t *testing.T) {
	repo := newMemoryCatalogRepo()
	catalog := newCachedCatalog(t, repo)
	ctx := context.Background()

	grants, err := catalog.GrantsForRoles(ctx, []string{"President"})
	require.NoError(t, err)
	require.Empty(t, grants)

	grant := Grant{Role: "President", Permission: PermCreateEvent, Scope: GeneralScope()}
	require.NoError(t, catalog.EnableGrant(ctx, grant))

	grants, err = catalog.GrantsForRoles(ctx, []string{"President"})
	require.NoError(t, err)
	require.Len(t, grants, 1, "enable must invalidate the cached grant set")

	require.NoError(t, catalog.DisableGrant(ctx, grant))
	grants, err = catalog.GrantsForRoles(ctx, []string{"President"})
	require.NoError(t, err)
	require.Empty(t, grants)
}

func TestAssignRoleHonorsOccupancy(t *testing.T) {
	repo := newMemoryCatalogRepo()
	catalog := NewCatalog(repo, nil, 0)
	ctx := context.Background()

	require.NoError(t, catalog.AssignRole(ctx, "a@example.com", "President"))

	var badReq *shared.BadRequestError
	err := catalog.AssignRole(ctx, "b@example.com", "President")
	require.ErrorAs(t, err, &badReq)

	err = catalog.AssignRole(ctx, "a@example.com", "Treasurer")
	require.ErrorAs(t, err, &badReq)

	require.NoError(t, catalog.RemoveRole(ctx, "a@example.com", "President"))
	require.NoError(t, catalog.AssignRole(ctx, "b@example.com", "President"))

	roles, err := catalog.RolesForMember(ctx, "b@example.com")
	require.NoError(t, err)
	require.Equal(t, []string{"President"}, roles)
}
