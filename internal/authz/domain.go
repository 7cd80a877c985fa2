package authz

import (
	"errors"
	"fmt"
	"time"
)

// EventType tags an event with its domain category. Grants may be scoped to
// one of these types.
type EventType string

// Event types recognized by the catalog.
const (
	EventRehearsal EventType = "rehearsal"
	EventSectional EventType = "sectional"
	EventTuttiGig  EventType = "tutti"
	EventVolunteer EventType = "volunteer"
	EventOmbuds    EventType = "ombuds"
	EventOther     EventType = "other"
)

// KnownEventTypes lists every event type the catalog accepts.
func KnownEventTypes() []EventType {
	return []EventType{
		EventRehearsal,
		EventSectional,
		EventTuttiGig,
		EventVolunteer,
		EventOmbuds,
		EventOther,
	}
}

// Permission names an atomic capability grantable to a role.
type Permission string

// Permissions recognized by the catalog.
const (
	PermCreateEvent              Permission = "create-event"
	PermModifyEvent              Permission = "modify-event"
	PermEditAllEvents            Permission = "edit-all-events"
	PermDeleteEvent              Permission = "delete-event"
	PermViewAttendance           Permission = "view-attendance"
	PermViewAttendanceOwnSection Permission = "view-attendance-own-section"
	PermEditAttendance           Permission = "edit-attendance"
	PermEditAttendanceOwnSection Permission = "edit-attendance-own-section"
	PermEditSetlist              Permission = "edit-setlist"
	PermProcessAbsenceRequests   Permission = "process-absence-requests"
	PermProcessGigRequests       Permission = "process-gig-requests"
	PermEditOfficers             Permission = "edit-officers"
	PermEditPermissions          Permission = "edit-permissions"
)

// KnownPermissions lists every permission the catalog accepts.
func KnownPermissions() []Permission {
	return []Permission{
		PermCreateEvent,
		PermModifyEvent,
		PermEditAllEvents,
		PermDeleteEvent,
		PermViewAttendance,
		PermViewAttendanceOwnSection,
		PermEditAttendance,
		PermEditAttendanceOwnSection,
		PermEditSetlist,
		PermProcessAbsenceRequests,
		PermProcessGigRequests,
		PermEditOfficers,
		PermEditPermissions,
	}
}

// PermissionKind distinguishes capabilities that can carry an event-type
// scope from those that are always general.
type PermissionKind string

const (
	// KindStatic marks permissions that never take an event-type scope.
	KindStatic PermissionKind = "static"
	// KindEvent marks permissions that may be scoped to one event type.
	KindEvent PermissionKind = "event"
)

// PermissionInfo describes a permission as stored in the catalog.
type PermissionInfo struct {
	Name        Permission
	Description string
	Kind        PermissionKind
}

// Scope restricts a grant or a check to one event type. The general scope
// matches every event type; construct values with GeneralScope or TypeScope
// so the two cases stay an explicit branch rather than a nil check.
type Scope struct {
	eventType EventType
	scoped    bool
}

// GeneralScope returns the scope that matches every event type.
func GeneralScope() Scope {
	return Scope{}
}

// TypeScope returns a scope restricted to the given event type.
func TypeScope(t EventType) Scope {
	return Scope{eventType: t, scoped: true}
}

// IsGeneral reports whether the scope matches every event type.
func (s Scope) IsGeneral() bool {
	return !s.scoped
}

// Type returns the restricting event type and whether one is set.
func (s Scope) Type() (EventType, bool) {
	return s.eventType, s.scoped
}

func (s Scope) String() string {
	if s.scoped {
		return string(s.eventType)
	}
	return "general"
}

// Grant authorizes one role for one permission, either universally or for a
// single event type.
type Grant struct {
	Role       string
	Permission Permission
	Scope      Scope
}

// Matches reports whether the grant authorizes the permission at the
// requested scope. A general grant matches every requested scope; a scoped
// grant matches only the identical type scope.
func (g Grant) Matches(perm Permission, scope Scope) bool {
	if g.Permission != perm {
		return false
	}
	if g.Scope.IsGeneral() {
		return true
	}
	grantType, _ := g.Scope.Type()
	requested, scoped := scope.Type()
	return scoped && grantType == requested
}

// Role is a named office with a display rank and a maximum number of
// simultaneous holders. Rank orders officer listings only; it carries no
// authority by itself.
type Role struct {
	Name        string
	Rank        int
	MaxQuantity int
}

// MemberRole records that a member currently holds a role.
type MemberRole struct {
	Member    string
	Role      string
	GrantedAt time.Time
}

// Principal is the acting member as the engine sees it: identity, held
// roles, and the member's section for the current semester ("" when
// unsectioned).
type Principal struct {
	Email   string
	Roles   []string
	Section string
}

var (
	// ErrUnknownPermission indicates a grant referencing a permission name
	// outside the catalog's closed set.
	ErrUnknownPermission = errors.New("authz: unknown permission")
	// ErrUnknownEventType indicates a scope referencing an event type outside
	// the catalog's closed set.
	ErrUnknownEventType = errors.New("authz: unknown event type")
)

// ParsePermission validates a raw permission name against the closed set.
func ParsePermission(raw string) (Permission, error) {
	for _, p := range KnownPermissions() {
		if string(p) == raw {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPermission, raw)
}

// ParseEventType validates a raw event type against the closed set.
func ParseEventType(raw string) (EventType, error) {
	for _, t := range KnownEventTypes() {
		if string(t) == raw {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownEventType, raw)
}
