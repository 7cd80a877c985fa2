package authz

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chorale-hq/chorale/internal/shared"
)

// Repository provides PostgreSQL backed persistence for the catalog.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListRoles returns all roles ordered by rank.
func (r *Repository) ListRoles(ctx context.Context) ([]Role, error) {
	rows, err := r.pool.Query(ctx, `SELECT name, rank, max_quantity FROM roles ORDER BY rank`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roles []Role
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.Name, &role.Rank, &role.MaxQuantity); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// GetRole fetches one role by name.
func (r *Repository) GetRole(ctx context.Context, name string) (Role, error) {
	var role Role
	err := r.pool.QueryRow(ctx, `SELECT name, rank, max_quantity FROM roles WHERE name = $1`, name).
		Scan(&role.Name, &role.Rank, &role.MaxQuantity)
	if errors.Is(err, pgx.ErrNoRows) {
		return Role{}, shared.NotFound("no role named %q", name)
	}
	if err != nil {
		return Role{}, err
	}
	return role, nil
}

// ListPermissions returns all permissions ordered by name.
func (r *Repository) ListPermissions(ctx context.Context) ([]PermissionInfo, error) {
	rows, err := r.pool.Query(ctx, `SELECT name, description, kind FROM permissions ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var perms []PermissionInfo
	for rows.Next() {
		var perm PermissionInfo
		if err := rows.Scan(&perm.Name, &perm.Description, &perm.Kind); err != nil {
			return nil, err
		}
		perms = append(perms, perm)
	}
	return perms, rows.Err()
}

// ListGrants returns every role grant.
func (r *Repository) ListGrants(ctx context.Context) ([]Grant, error) {
	rows, err := r.pool.Query(ctx, `SELECT role, permission, event_type FROM role_permissions`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var grants []Grant
	for rows.Next() {
		grant, err := scanGrant(rows)
		if err != nil {
			return nil, err
		}
		grants = append(grants, grant)
	}
	return grants, rows.Err()
}

// GrantExists reports whether the exact grant is already stored.
func (r *Repository) GrantExists(ctx context.Context, grant Grant) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM role_permissions
			WHERE role = $1 AND permission = $2 AND event_type IS NOT DISTINCT FROM $3
		)`, grant.Role, grant.Permission, scopeParam(grant.Scope)).Scan(&exists)
	return exists, err
}

// InsertGrant stores a grant.
func (r *Repository) InsertGrant(ctx context.Context, grant Grant) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO role_permissions (role, permission, event_type) VALUES ($1, $2, $3)`,
		grant.Role, grant.Permission, scopeParam(grant.Scope))
	return err
}

// DeleteGrant removes a grant; deleting an absent grant is not an error.
func (r *Repository) DeleteGrant(ctx context.Context, grant Grant) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM role_permissions
		 WHERE role = $1 AND permission = $2 AND event_type IS NOT DISTINCT FROM $3`,
		grant.Role, grant.Permission, scopeParam(grant.Scope))
	return err
}

// RolesForMember returns the names of the roles the member holds.
func (r *Repository) RolesForMember(ctx context.Context, email string) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT role FROM member_roles WHERE member = $1`, email)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roles []string
	for rows.Next() {
		var role string
		if err := rows.Scan(&role); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// ListMemberRoles returns all current role holders ordered by role rank.
func (r *Repository) ListMemberRoles(ctx context.Context) ([]MemberRole, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT mr.member, mr.role, mr.granted_at
		 FROM member_roles mr
		 JOIN roles r ON r.name = mr.role
		 ORDER BY r.rank`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var holders []MemberRole
	for rows.Next() {
		var holder MemberRole
		if err := rows.Scan(&holder.Member, &holder.Role, &holder.GrantedAt); err != nil {
			return nil, err
		}
		holders = append(holders, holder)
	}
	return holders, rows.Err()
}

// CountRoleHolders returns how many members currently hold the role.
func (r *Repository) CountRoleHolders(ctx context.Context, role string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM member_roles WHERE role = $1`, role).Scan(&count)
	return count, err
}

// AssignRole records that the member holds the role.
func (r *Repository) AssignRole(ctx context.Context, email, role string) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO member_roles (member, role) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		email, role)
	return err
}

// RemoveRole removes a role from a member.
func (r *Repository) RemoveRole(ctx context.Context, email, role string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM member_roles WHERE member = $1 AND role = $2`, email, role)
	return err
}

func scanGrant(rows pgx.Rows) (Grant, error) {
	var grant Grant
	var eventType *string
	if err := rows.Scan(&grant.Role, &grant.Permission, &eventType); err != nil {
		return Grant{}, err
	}
	if eventType != nil {
		grant.Scope = TypeScope(EventType(*eventType))
	}
	return grant, nil
}

func scopeParam(scope Scope) *string {
	if t, scoped := scope.Type(); scoped {
		name := string(t)
		return &name
	}
	return nil
}
