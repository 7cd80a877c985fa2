package authz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/chorale-hq/chorale/internal/shared"
)

// RepositoryPort defines data access for roles, permissions, and grants.
type RepositoryPort interface {
	ListRoles(ctx context.Context) ([]Role, error)
	GetRole(ctx context.Context, name string) (Role, error)
	ListPermissions(ctx context.Context) ([]PermissionInfo, error)
	ListGrants(ctx context.Context) ([]Grant, error)
	GrantExists(ctx context.Context, grant Grant) (bool, error)
	InsertGrant(ctx context.Context, grant Grant) error
	DeleteGrant(ctx context.Context, grant Grant) error
	RolesForMember(ctx context.Context, email string) ([]string, error)
	ListMemberRoles(ctx context.Context) ([]MemberRole, error)
	CountRoleHolders(ctx context.Context, role string) (int, error)
	AssignRole(ctx context.Context, email, role string) error
	RemoveRole(ctx context.Context, email, role string) error
}

const grantCacheKey = "authz:grants"

// Catalog serves the permission catalog: roles, permissions, and role
// grants. The full grant set is cached in Redis and invalidated whenever a
// grant changes; concurrent cache misses collapse into one database load.
type Catalog struct {
	repo     RepositoryPort
	cache    *redis.Client
	cacheTTL time.Duration
	group    singleflight.Group
}

// NewCatalog constructs a Catalog. The cache client may be nil, in which
// case every lookup goes to the repository.
func NewCatalog(repo RepositoryPort, cache *redis.Client, ttl time.Duration) *Catalog {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Catalog{repo: repo, cache: cache, cacheTTL: ttl}
}

// Validate checks every stored grant against the closed permission and
// event-type domains. Scoped grants are only legal on event-kind
// permissions. Run at startup so typo-class catalog rows fail loudly instead
// of silently never matching.
func (c *Catalog) Validate(ctx context.Context) error {
	perms, err := c.repo.ListPermissions(ctx)
	if err != nil {
		return err
	}
	kinds := make(map[Permission]PermissionKind, len(perms))
	for _, p := range perms {
		if _, err := ParsePermission(string(p.Name)); err != nil {
			return err
		}
		kinds[p.Name] = p.Kind
	}
	grants, err := c.repo.ListGrants(ctx)
	if err != nil {
		return err
	}
	for _, grant := range grants {
		kind, ok := kinds[grant.Permission]
		if !ok {
			return fmt.Errorf("%w: grant for role %q references %q", ErrUnknownPermission, grant.Role, grant.Permission)
		}
		if t, scoped := grant.Scope.Type(); scoped {
			if _, err := ParseEventType(string(t)); err != nil {
				return err
			}
			if kind != KindEvent {
				return fmt.Errorf("authz: permission %q is static and cannot be scoped to %q", grant.Permission, t)
			}
		}
	}
	return nil
}

// GrantsForRoles returns every grant held by any of the given roles. It
// satisfies the engine's CatalogPort.
func (c *Catalog) GrantsForRoles(ctx context.Context, roles []string) ([]Grant, error) {
	all, err := c.allGrants(ctx)
	if err != nil {
		return nil, err
	}
	held := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		held[role] = struct{}{}
	}
	var matched []Grant
	for _, grant := range all {
		if _, ok := held[grant.Role]; ok {
			matched = append(matched, grant)
		}
	}
	return matched, nil
}

// EnableGrant adds a grant for the role. Enabling an existing grant is a
// no-op so officer tooling can re-apply its desired state freely.
func (c *Catalog) EnableGrant(ctx context.Context, grant Grant) error {
	if err := c.validateGrant(grant); err != nil {
		return err
	}
	exists, err := c.repo.GrantExists(ctx, grant)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	if err := c.repo.InsertGrant(ctx, grant); err != nil {
		return err
	}
	c.invalidate(ctx)
	return nil
}

// DisableGrant removes a grant from the role. Removing an absent grant is a
// no-op.
func (c *Catalog) DisableGrant(ctx context.Context, grant Grant) error {
	if err := c.validateGrant(grant); err != nil {
		return err
	}
	if err := c.repo.DeleteGrant(ctx, grant); err != nil {
		return err
	}
	c.invalidate(ctx)
	return nil
}

// RolesForMember returns the names of the roles the member currently holds.
func (c *Catalog) RolesForMember(ctx context.Context, email string) ([]string, error) {
	return c.repo.RolesForMember(ctx, email)
}

// ListRoles returns all roles ordered by rank.
func (c *Catalog) ListRoles(ctx context.Context) ([]Role, error) {
	return c.repo.ListRoles(ctx)
}

// ListPermissions returns all permissions in the catalog.
func (c *Catalog) ListPermissions(ctx context.Context) ([]PermissionInfo, error) {
	return c.repo.ListPermissions(ctx)
}

// ListGrants returns every grant in the catalog.
func (c *Catalog) ListGrants(ctx context.Context) ([]Grant, error) {
	return c.allGrants(ctx)
}

// ListOfficers returns every current role holder, ordered by role rank.
func (c *Catalog) ListOfficers(ctx context.Context) ([]MemberRole, error) {
	return c.repo.ListMemberRoles(ctx)
}

// AssignRole gives a member a role, honoring the role's maximum occupancy.
func (c *Catalog) AssignRole(ctx context.Context, email, roleName string) error {
	role, err := c.repo.GetRole(ctx, roleName)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return shared.BadRequest("no role named %q", roleName)
		}
		return err
	}
	if role.MaxQuantity > 0 {
		holders, err := c.repo.CountRoleHolders(ctx, roleName)
		if err != nil {
			return err
		}
		if holders >= role.MaxQuantity {
			return shared.BadRequest("all %d spots for role %q are filled", role.MaxQuantity, roleName)
		}
	}
	return c.repo.AssignRole(ctx, email, roleName)
}

// RemoveRole takes a role away from a member.
func (c *Catalog) RemoveRole(ctx context.Context, email, roleName string) error {
	return c.repo.RemoveRole(ctx, email, roleName)
}

func (c *Catalog) validateGrant(grant Grant) error {
	if _, err := ParsePermission(string(grant.Permission)); err != nil {
		return shared.BadRequest("%s", err)
	}
	if t, scoped := grant.Scope.Type(); scoped {
		if _, err := ParseEventType(string(t)); err != nil {
			return shared.BadRequest("%s", err)
		}
	}
	return nil
}

type grantRecord struct {
	Role       string  `json:"role"`
	Permission string  `json:"permission"`
	EventType  *string `json:"event_type"`
}

func (c *Catalog) allGrants(ctx context.Context) ([]Grant, error) {
	if c.cache == nil {
		return c.repo.ListGrants(ctx)
	}

	if data, err := c.cache.Get(ctx, grantCacheKey).Bytes(); err == nil {
		if grants, err := decodeGrants(data); err == nil {
			return grants, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		return nil, err
	}

	value, err, _ := c.group.Do(grantCacheKey, func() (any, error) {
		grants, err := c.repo.ListGrants(ctx)
		if err != nil {
			return nil, err
		}
		if data, err := encodeGrants(grants); err == nil {
			_ = c.cache.Set(ctx, grantCacheKey, data, c.cacheTTL).Err()
		}
		return grants, nil
	})
	if err != nil {
		return nil, err
	}
	return value.([]Grant), nil
}

func (c *Catalog) invalidate(ctx context.Context) {
	if c.cache == nil {
		return
	}
	_ = c.cache.Del(ctx, grantCacheKey).Err()
}

func encodeGrants(grants []Grant) ([]byte, error) {
	records := make([]grantRecord, 0, len(grants))
	for _, grant := range grants {
		record := grantRecord{Role: grant.Role, Permission: string(grant.Permission)}
		if t, scoped := grant.Scope.Type(); scoped {
			name := string(t)
			record.EventType = &name
		}
		records = append(records, record)
	}
	return json.Marshal(records)
}

func decodeGrants(data []byte) ([]Grant, error) {
	var records []grantRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, err
	}
	grants := make([]Grant, 0, len(records))
	for _, record := range records {
		scope := GeneralScope()
		if record.EventType != nil {
			scope = TypeScope(EventType(*record.EventType))
		}
		grants = append(grants, Grant{Role: record.Role, Permission: Permission(record.Permission), Scope: scope})
	}
	return grants, nil
}
