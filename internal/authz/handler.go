package authz

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/chorale-hq/chorale/internal/platform/httpx"
)

// Handler exposes catalog management endpoints: roles, permissions, grants,
// and officer assignments.
type Handler struct {
	logger    *slog.Logger
	catalog   *Catalog
	authz     Middleware
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, catalog *Catalog, authz Middleware) *Handler {
	return &Handler{logger: logger, catalog: catalog, authz: authz, validator: validator.New()}
}

// MountRoutes registers catalog routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Use(h.authz.RequireMember)
	r.Get("/roles", h.listRoles)
	r.Get("/permissions", h.listPermissions)
	r.Get("/role_permissions", h.listGrants)
	r.Get("/member_roles", h.listOfficers)
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequirePermission(PermEditPermissions))
		r.Post("/permissions/{role}/enable", h.enableGrant)
		r.Post("/permissions/{role}/disable", h.disableGrant)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequirePermission(PermEditOfficers))
		r.Post("/member_roles/add", h.assignRole)
		r.Post("/member_roles/remove", h.removeRole)
	})
}

type grantForm struct {
	Permission string  `json:"permission" validate:"required"`
	EventType  *string `json:"event_type"`
}

type officerForm struct {
	Member string `json:"member" validate:"required,email"`
	Role   string `json:"role" validate:"required"`
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.catalog.ListRoles(r.Context())
	if err != nil {
		h.fail(w, "list roles", err)
		return
	}
	out := make([]map[string]any, 0, len(roles))
	for _, role := range roles {
		out = append(out, map[string]any{"name": role.Name, "rank": role.Rank, "max_quantity": role.MaxQuantity})
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) listPermissions(w http.ResponseWriter, r *http.Request) {
	perms, err := h.catalog.ListPermissions(r.Context())
	if err != nil {
		h.fail(w, "list permissions", err)
		return
	}
	out := make([]map[string]any, 0, len(perms))
	for _, perm := range perms {
		out = append(out, map[string]any{"name": perm.Name, "description": perm.Description, "kind": perm.Kind})
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) listGrants(w http.ResponseWriter, r *http.Request) {
	grants, err := h.catalog.ListGrants(r.Context())
	if err != nil {
		h.fail(w, "list grants", err)
		return
	}
	out := make([]map[string]any, 0, len(grants))
	for _, grant := range grants {
		entry := map[string]any{"role": grant.Role, "permission": grant.Permission}
		if t, scoped := grant.Scope.Type(); scoped {
			entry["event_type"] = t
		}
		out = append(out, entry)
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) listOfficers(w http.ResponseWriter, r *http.Request) {
	officers, err := h.catalog.ListOfficers(r.Context())
	if err != nil {
		h.fail(w, "list officers", err)
		return
	}
	out := make([]map[string]any, 0, len(officers))
	for _, officer := range officers {
		out = append(out, map[string]any{"member": officer.Member, "role": officer.Role})
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) enableGrant(w http.ResponseWriter, r *http.Request) {
	grant, ok := h.decodeGrant(w, r)
	if !ok {
		return
	}
	if err := h.catalog.EnableGrant(r.Context(), grant); err != nil {
		h.fail(w, "enable grant", err)
		return
	}
	httpx.Success(w)
}

func (h *Handler) disableGrant(w http.ResponseWriter, r *http.Request) {
	grant, ok := h.decodeGrant(w, r)
	if !ok {
		return
	}
	if err := h.catalog.DisableGrant(r.Context(), grant); err != nil {
		h.fail(w, "disable grant", err)
		return
	}
	httpx.Success(w)
}

func (h *Handler) assignRole(w http.ResponseWriter, r *http.Request) {
	form, ok := h.decodeOfficer(w, r)
	if !ok {
		return
	}
	if err := h.catalog.AssignRole(r.Context(), form.Member, form.Role); err != nil {
		h.fail(w, "assign role", err)
		return
	}
	httpx.Success(w)
}

func (h *Handler) removeRole(w http.ResponseWriter, r *http.Request) {
	form, ok := h.decodeOfficer(w, r)
	if !ok {
		return
	}
	if err := h.catalog.RemoveRole(r.Context(), form.Member, form.Role); err != nil {
		h.fail(w, "remove role", err)
		return
	}
	httpx.Success(w)
}

func (h *Handler) decodeGrant(w http.ResponseWriter, r *http.Request) (Grant, bool) {
	var form grantForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return Grant{}, false
	}
	if err := h.validator.Struct(form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return Grant{}, false
	}
	scope := GeneralScope()
	if form.EventType != nil {
		scope = TypeScope(EventType(*form.EventType))
	}
	return Grant{
		Role:       chi.URLParam(r, "role"),
		Permission: Permission(form.Permission),
		Scope:      scope,
	}, true
}

func (h *Handler) decodeOfficer(w http.ResponseWriter, r *http.Request) (officerForm, bool) {
	var form officerForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return officerForm{}, false
	}
	if err := h.validator.Struct(form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
		return officerForm{}, false
	}
	return form, true
}

func (h *Handler) fail(w http.ResponseWriter, action string, err error) {
	if h.logger != nil {
		h.logger.Error(action, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
