package authz

import (
	"context"

	"github.com/chorale-hq/chorale/internal/shared"
)

// CatalogPort supplies the grants held by a set of roles.
type CatalogPort interface {
	GrantsForRoles(ctx context.Context, roles []string) ([]Grant, error)
}

// Engine decides whether a principal may perform a named action. It owns no
// state of its own; every decision is a pure evaluation over the grants the
// catalog supplies.
type Engine struct {
	catalog CatalogPort
}

// NewEngine constructs an Engine backed by the given catalog.
func NewEngine(catalog CatalogPort) *Engine {
	return &Engine{catalog: catalog}
}

// Check reports whether the principal holds the permission at the requested
// scope. A general grant authorizes every scope, so it short-circuits before
// any type-scoped comparison; a type-scoped grant authorizes only a check
// requesting that same type.
func (e *Engine) Check(ctx context.Context, principal Principal, perm Permission, scope Scope) (bool, error) {
	if len(principal.Roles) == 0 {
		return false, nil
	}
	grants, err := e.catalog.GrantsForRoles(ctx, principal.Roles)
	if err != nil {
		return false, err
	}
	for _, grant := range grants {
		if grant.Permission != perm {
			continue
		}
		if grant.Scope.IsGeneral() {
			return true, nil
		}
	}
	if scope.IsGeneral() {
		// Only a general grant satisfies a check with no requested scope.
		return false, nil
	}
	for _, grant := range grants {
		if grant.Matches(perm, scope) {
			return true, nil
		}
	}
	return false, nil
}

// Require is the strict form of Check: denial surfaces as a ForbiddenError
// naming the permission so callers can abort uniformly.
func (e *Engine) Require(ctx context.Context, principal Principal, perm Permission, scope Scope) error {
	ok, err := e.Check(ctx, principal, perm, scope)
	if err != nil {
		return err
	}
	if !ok {
		return shared.Forbidden(string(perm))
	}
	return nil
}

// CheckOwnSection evaluates a "-own-section" carve-out: the principal must
// hold the narrower permission per the usual rules AND share a section with
// the target member. Callers invoke this only after the primary permission
// check failed; it never widens access beyond the principal's own section.
func (e *Engine) CheckOwnSection(ctx context.Context, principal Principal, perm Permission, scope Scope, targetSection string) (bool, error) {
	if principal.Section == "" || principal.Section != targetSection {
		return false, nil
	}
	return e.Check(ctx, principal, perm, scope)
}
