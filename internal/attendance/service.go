package attendance

import (
	"context"
	"time"

	"github.com/chorale-hq/chorale/internal/authz"
	"github.com/chorale-hq/chorale/internal/events"
	"github.com/chorale-hq/chorale/internal/members"
	"github.com/chorale-hq/chorale/internal/shared"
)

// RepositoryPort defines data access methods for attendance records.
type RepositoryPort interface {
	Get(ctx context.Context, member string, event int64) (Attendance, bool, error)
	Upsert(ctx context.Context, record Attendance) error
	ListForEvent(ctx context.Context, event int64) ([]Attendance, error)
	ExcuseAll(ctx context.Context, event int64, memberEmails []string) error
}

// EventPort supplies the events attendance is kept against.
type EventPort interface {
	Get(ctx context.Context, id int64) (events.Event, error)
}

// RosterPort supplies member eligibility and sections per semester.
type RosterPort interface {
	Enrollment(ctx context.Context, email, semester string) (members.ActiveSemester, bool, error)
	SectionFor(ctx context.Context, email, semester string) (string, error)
	ActiveRoster(ctx context.Context, semester string) ([]members.RosterEntry, error)
}

// ExcusalPort reports whether a member holds an approved absence request for
// an event.
type ExcusalPort interface {
	IsExcused(ctx context.Context, member string, event int64) (bool, error)
}

// Service handles the per-(member, event) attendance state machine.
type Service struct {
	repo      RepositoryPort
	eventsSvc EventPort
	roster    RosterPort
	excusals  ExcusalPort
	engine    *authz.Engine
	now       func() time.Time
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, eventsSvc EventPort, roster RosterPort, excusals ExcusalPort, engine *authz.Engine) *Service {
	return &Service{
		repo:      repo,
		eventsSvc: eventsSvc,
		roster:    roster,
		excusals:  excusals,
		engine:    engine,
		now:       time.Now,
	}
}

// recordFor returns the stored record, or the lazily-created default when the
// member has not interacted with the event yet.
func (s *Service) recordFor(ctx context.Context, member string, event int64) (Attendance, error) {
	record, ok, err := s.repo.Get(ctx, member, event)
	if err != nil {
		return Attendance{}, err
	}
	if !ok {
		record = Attendance{Member: member, Event: event}
	}
	return record, nil
}

// viewRecordFor is recordFor plus the excusal implied by an approved absence
// request, which counts as excused even before any sweep writes the flag.
func (s *Service) viewRecordFor(ctx context.Context, member string, event int64) (Attendance, error) {
	record, err := s.recordFor(ctx, member, event)
	if err != nil {
		return Attendance{}, err
	}
	if !record.Excused {
		excused, err := s.excusals.IsExcused(ctx, member, event)
		if err != nil {
			return Attendance{}, err
		}
		record.Excused = excused
	}
	return record, nil
}

// RSVP records the member's stated intent for the event. Repeating the call
// with the same value changes nothing. Only members active for the event's
// semester may respond.
func (s *Service) RSVP(ctx context.Context, principal authz.Principal, eventID int64, attending bool) error {
	event, err := s.eventsSvc.Get(ctx, eventID)
	if err != nil {
		return err
	}
	_, active, err := s.roster.Enrollment(ctx, principal.Email, event.Semester)
	if err != nil {
		return err
	}
	if !active {
		return shared.BadRequest("you are not active for semester %q", event.Semester)
	}
	record, err := s.recordFor(ctx, principal.Email, eventID)
	if err != nil {
		return err
	}
	record.RSVP = &attending
	return s.repo.Upsert(ctx, record)
}

// Confirm affirms the member will attend. Valid only after a positive RSVP;
// confirming twice is a no-op.
func (s *Service) Confirm(ctx context.Context, principal authz.Principal, eventID int64) error {
	if _, err := s.eventsSvc.Get(ctx, eventID); err != nil {
		return err
	}
	record, err := s.recordFor(ctx, principal.Email, eventID)
	if err != nil {
		return err
	}
	if record.RSVP == nil || !*record.RSVP {
		return shared.BadRequest("confirming requires a positive rsvp first")
	}
	if record.Confirmed {
		return nil
	}
	record.Confirmed = true
	return s.repo.Upsert(ctx, record)
}

// UpdateInput carries the officer-editable attendance flags.
type UpdateInput struct {
	Confirmed bool
	Excused   bool
	DidAttend bool
}

// Update lets an officer rewrite a member's record for an event. The caller
// needs edit-attendance for the event's type, or the own-section variant when
// sharing a section with the target member for that semester.
func (s *Service) Update(ctx context.Context, principal authz.Principal, eventID int64, member string, input UpdateInput) error {
	event, err := s.eventsSvc.Get(ctx, eventID)
	if err != nil {
		return err
	}
	scope := authz.TypeScope(event.Type)
	allowed, err := s.engine.Check(ctx, principal, authz.PermEditAttendance, scope)
	if err != nil {
		return err
	}
	if !allowed {
		targetSection, err := s.roster.SectionFor(ctx, member, event.Semester)
		if err != nil {
			return err
		}
		allowed, err = s.engine.CheckOwnSection(ctx, principal, authz.PermEditAttendanceOwnSection, scope, targetSection)
		if err != nil {
			return err
		}
	}
	if !allowed {
		return shared.Forbidden(string(authz.PermEditAttendance))
	}
	if _, active, err := s.roster.Enrollment(ctx, member, event.Semester); err != nil {
		return err
	} else if !active {
		return shared.BadRequest("member %q is not active for semester %q", member, event.Semester)
	}
	record, err := s.recordFor(ctx, member, eventID)
	if err != nil {
		return err
	}
	record.Confirmed = input.Confirmed
	record.Excused = input.Excused
	record.DidAttend = input.DidAttend
	return s.repo.Upsert(ctx, record)
}

// ExcuseUnconfirmed excuses every eligible member who neither confirmed nor
// holds an approved absence request. The sweep writes as one transaction so a
// failure excuses nobody.
func (s *Service) ExcuseUnconfirmed(ctx context.Context, principal authz.Principal, eventID int64) error {
	event, err := s.eventsSvc.Get(ctx, eventID)
	if err != nil {
		return err
	}
	if err := s.engine.Require(ctx, principal, authz.PermEditAttendance, authz.TypeScope(event.Type)); err != nil {
		return err
	}
	roster, err := s.roster.ActiveRoster(ctx, event.Semester)
	if err != nil {
		return err
	}
	var sweep []string
	for _, entry := range roster {
		record, err := s.recordFor(ctx, entry.Member.Email, eventID)
		if err != nil {
			return err
		}
		if record.Confirmed {
			continue
		}
		excused, err := s.excusals.IsExcused(ctx, entry.Member.Email, eventID)
		if err != nil {
			return err
		}
		if excused {
			continue
		}
		sweep = append(sweep, entry.Member.Email)
	}
	if len(sweep) == 0 {
		return nil
	}
	return s.repo.ExcuseAll(ctx, eventID, sweep)
}

// RosterRecord is one member's attendance as shown to a viewer.
type RosterRecord struct {
	Member     string
	Name       string
	Section    string
	Attendance Attendance
	State      State
}

// Roster returns the event's attendance. A viewer with view-attendance sees
// every eligible member; one holding only the own-section variant sees their
// section; anyone else is denied.
func (s *Service) Roster(ctx context.Context, principal authz.Principal, eventID int64) ([]RosterRecord, error) {
	event, err := s.eventsSvc.Get(ctx, eventID)
	if err != nil {
		return nil, err
	}
	scope := authz.TypeScope(event.Type)
	full, err := s.engine.Check(ctx, principal, authz.PermViewAttendance, scope)
	if err != nil {
		return nil, err
	}
	sectionOnly := false
	if !full {
		sectionOnly, err = s.engine.Check(ctx, principal, authz.PermViewAttendanceOwnSection, scope)
		if err != nil {
			return nil, err
		}
		if !sectionOnly || principal.Section == "" {
			return nil, shared.Forbidden(string(authz.PermViewAttendance))
		}
	}

	roster, err := s.roster.ActiveRoster(ctx, event.Semester)
	if err != nil {
		return nil, err
	}
	past := event.CallTime.Before(s.now())
	var out []RosterRecord
	for _, entry := range roster {
		if sectionOnly && entry.Section != principal.Section {
			continue
		}
		record, err := s.viewRecordFor(ctx, entry.Member.Email, eventID)
		if err != nil {
			return nil, err
		}
		out = append(out, RosterRecord{
			Member:     entry.Member.Email,
			Name:       entry.Member.FullName(),
			Section:    entry.Section,
			Attendance: record,
			State:      record.State(past),
		})
	}
	return out, nil
}

// ForMember returns one member's record for the event. Members always see
// their own record; anyone else falls under the roster view rules.
func (s *Service) ForMember(ctx context.Context, principal authz.Principal, eventID int64, member string) (RosterRecord, error) {
	event, err := s.eventsSvc.Get(ctx, eventID)
	if err != nil {
		return RosterRecord{}, err
	}
	if principal.Email != member {
		scope := authz.TypeScope(event.Type)
		allowed, err := s.engine.Check(ctx, principal, authz.PermViewAttendance, scope)
		if err != nil {
			return RosterRecord{}, err
		}
		if !allowed {
			targetSection, err := s.roster.SectionFor(ctx, member, event.Semester)
			if err != nil {
				return RosterRecord{}, err
			}
			allowed, err = s.engine.CheckOwnSection(ctx, principal, authz.PermViewAttendanceOwnSection, scope, targetSection)
			if err != nil {
				return RosterRecord{}, err
			}
		}
		if !allowed {
			return RosterRecord{}, shared.Forbidden(string(authz.PermViewAttendance))
		}
	}
	section, err := s.roster.SectionFor(ctx, member, event.Semester)
	if err != nil {
		return RosterRecord{}, err
	}
	record, err := s.viewRecordFor(ctx, member, eventID)
	if err != nil {
		return RosterRecord{}, err
	}
	return RosterRecord{
		Member:     member,
		Section:    section,
		Attendance: record,
		State:      record.State(event.CallTime.Before(s.now())),
	}, nil
}
