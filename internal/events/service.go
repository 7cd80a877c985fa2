package events

import (
	"context"
	"strings"
	"time"

	"github.com/chorale-hq/chorale/internal/authz"
	"github.com/chorale-hq/chorale/internal/members"
	"github.com/chorale-hq/chorale/internal/shared"
)

// RepositoryPort defines data access methods for events and setlists.
type RepositoryPort interface {
	InsertEvents(ctx context.Context, events []Event) ([]int64, error)
	GetEvent(ctx context.Context, id int64) (Event, error)
	ListForSemester(ctx context.Context, semester string) ([]Event, error)
	UpdateEvent(ctx context.Context, event Event) error
	DeleteEvent(ctx context.Context, id int64) error
	Setlist(ctx context.Context, eventID int64) ([]SetlistEntry, error)
	ReplaceSetlist(ctx context.Context, eventID int64, entries []SetlistEntry) error
}

// SemesterPort looks up semesters when validating event placement.
type SemesterPort interface {
	GetSemester(ctx context.Context, name string) (members.Semester, error)
	CurrentSemester(ctx context.Context) (members.Semester, error)
}

// Service handles event scheduling business logic.
type Service struct {
	repo      RepositoryPort
	semesters SemesterPort
	engine    *authz.Engine
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, semesters SemesterPort, engine *authz.Engine) *Service {
	return &Service{repo: repo, semesters: semesters, engine: engine}
}

// CreateInput carries a new event, optionally repeated on a schedule.
type CreateInput struct {
	Name          string
	Semester      string
	Type          authz.EventType
	CallTime      time.Time
	ReleaseTime   *time.Time
	Points        int
	Comments      string
	Location      string
	GigCount      bool
	DefaultAttend bool
	Repeat        RepeatPeriod
	RepeatUntil   time.Time
}

// Create schedules an event, expanding a repeat schedule into one row per
// occurrence inside a single transaction. It returns the id of the first
// occurrence.
func (s *Service) Create(ctx context.Context, principal authz.Principal, input CreateInput) (int64, error) {
	if _, err := authz.ParseEventType(string(input.Type)); err != nil {
		return 0, shared.BadRequest("unknown event type %q", input.Type)
	}
	if err := s.engine.Require(ctx, principal, authz.PermCreateEvent, authz.TypeScope(input.Type)); err != nil {
		return 0, err
	}
	batch, err := s.expand(ctx, input)
	if err != nil {
		return 0, err
	}
	ids, err := s.repo.InsertEvents(ctx, batch)
	if err != nil {
		return 0, err
	}
	return ids[0], nil
}

// CreateEvent inserts one event on behalf of a collaborating service that has
// already authorized the write. It joins the caller's transaction when one is
// running.
func (s *Service) CreateEvent(ctx context.Context, event Event) (int64, error) {
	input := CreateInput{
		Name:          event.Name,
		Semester:      event.Semester,
		Type:          event.Type,
		CallTime:      event.CallTime,
		ReleaseTime:   event.ReleaseTime,
		Points:        event.Points,
		Comments:      event.Comments,
		Location:      event.Location,
		GigCount:      event.GigCount,
		DefaultAttend: event.DefaultAttend,
		Repeat:        RepeatNo,
	}
	batch, err := s.expand(ctx, input)
	if err != nil {
		return 0, err
	}
	ids, err := s.repo.InsertEvents(ctx, batch)
	if err != nil {
		return 0, err
	}
	return ids[0], nil
}

func (s *Service) expand(ctx context.Context, input CreateInput) ([]Event, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, shared.BadRequest("event name is required")
	}
	if input.CallTime.IsZero() {
		return nil, shared.BadRequest("call time is required")
	}
	if input.ReleaseTime != nil && !input.ReleaseTime.After(input.CallTime) {
		return nil, shared.BadRequest("release time must come after call time")
	}
	if _, err := s.semesters.GetSemester(ctx, input.Semester); err != nil {
		return nil, err
	}

	base := Event{
		Name:          strings.TrimSpace(input.Name),
		Semester:      input.Semester,
		Type:          input.Type,
		CallTime:      input.CallTime,
		ReleaseTime:   input.ReleaseTime,
		Points:        input.Points,
		Comments:      input.Comments,
		Location:      input.Location,
		GigCount:      input.GigCount,
		DefaultAttend: input.DefaultAttend,
	}
	if input.Repeat == "" || input.Repeat == RepeatNo {
		return []Event{base}, nil
	}
	if input.RepeatUntil.Before(input.CallTime) {
		return nil, shared.BadRequest("repeat end date precedes the first call time")
	}

	var batch []Event
	call := input.CallTime
	for !call.After(input.RepeatUntil) {
		occurrence := base
		occurrence.CallTime = call
		if base.ReleaseTime != nil {
			release := call.Add(base.ReleaseTime.Sub(base.CallTime))
			occurrence.ReleaseTime = &release
		}
		batch = append(batch, occurrence)
		next := input.Repeat.next(call)
		if !next.After(call) {
			return nil, shared.BadRequest("unknown repeat period %q", input.Repeat)
		}
		call = next
	}
	return batch, nil
}

// ResolveSemester returns the named semester, or the current one when name is
// empty.
func (s *Service) ResolveSemester(ctx context.Context, name string) (string, error) {
	if name != "" {
		sem, err := s.semesters.GetSemester(ctx, name)
		if err != nil {
			return "", err
		}
		return sem.Name, nil
	}
	sem, err := s.semesters.CurrentSemester(ctx)
	if err != nil {
		return "", err
	}
	return sem.Name, nil
}

// Get returns one event by id.
func (s *Service) Get(ctx context.Context, id int64) (Event, error) {
	return s.repo.GetEvent(ctx, id)
}

// ListForSemester returns a semester's events ordered by call time.
func (s *Service) ListForSemester(ctx context.Context, semester string) ([]Event, error) {
	return s.repo.ListForSemester(ctx, semester)
}

// WeekOf returns the semester's events falling in the calendar week (Sunday
// through Saturday) containing the given instant.
func (s *Service) WeekOf(ctx context.Context, semester string, at time.Time) ([]Event, error) {
	all, err := s.repo.ListForSemester(ctx, semester)
	if err != nil {
		return nil, err
	}
	day := time.Date(at.Year(), at.Month(), at.Day(), 0, 0, 0, 0, at.Location())
	start := day.AddDate(0, 0, -int(day.Weekday()))
	end := start.AddDate(0, 0, 7)
	var week []Event
	for _, event := range all {
		if !event.CallTime.Before(start) && event.CallTime.Before(end) {
			week = append(week, event)
		}
	}
	return week, nil
}

// UpdateInput carries replacement values for an existing event.
type UpdateInput struct {
	Name          string
	Type          authz.EventType
	CallTime      time.Time
	ReleaseTime   *time.Time
	Points        int
	Comments      string
	Location      string
	GigCount      bool
	DefaultAttend bool
}

// Update rewrites an event. The caller needs either the blanket edit
// permission or the scoped modify permission for the event's current type.
func (s *Service) Update(ctx context.Context, principal authz.Principal, id int64, input UpdateInput) error {
	event, err := s.repo.GetEvent(ctx, id)
	if err != nil {
		return err
	}
	allowed, err := s.engine.Check(ctx, principal, authz.PermEditAllEvents, authz.GeneralScope())
	if err != nil {
		return err
	}
	if !allowed {
		allowed, err = s.engine.Check(ctx, principal, authz.PermModifyEvent, authz.TypeScope(event.Type))
		if err != nil {
			return err
		}
	}
	if !allowed {
		return shared.Forbidden(string(authz.PermModifyEvent))
	}

	if _, err := authz.ParseEventType(string(input.Type)); err != nil {
		return shared.BadRequest("unknown event type %q", input.Type)
	}
	if strings.TrimSpace(input.Name) == "" {
		return shared.BadRequest("event name is required")
	}
	if input.CallTime.IsZero() {
		return shared.BadRequest("call time is required")
	}
	if input.ReleaseTime != nil && !input.ReleaseTime.After(input.CallTime) {
		return shared.BadRequest("release time must come after call time")
	}

	event.Name = strings.TrimSpace(input.Name)
	event.Type = input.Type
	event.CallTime = input.CallTime
	event.ReleaseTime = input.ReleaseTime
	event.Points = input.Points
	event.Comments = input.Comments
	event.Location = input.Location
	event.GigCount = input.GigCount
	event.DefaultAttend = input.DefaultAttend
	return s.repo.UpdateEvent(ctx, event)
}

// Delete removes an event and its dependent rows.
func (s *Service) Delete(ctx context.Context, principal authz.Principal, id int64) error {
	event, err := s.repo.GetEvent(ctx, id)
	if err != nil {
		return err
	}
	if err := s.engine.Require(ctx, principal, authz.PermDeleteEvent, authz.TypeScope(event.Type)); err != nil {
		return err
	}
	return s.repo.DeleteEvent(ctx, id)
}

// Setlist returns the event's setlist in performance order.
func (s *Service) Setlist(ctx context.Context, eventID int64) ([]SetlistEntry, error) {
	if _, err := s.repo.GetEvent(ctx, eventID); err != nil {
		return nil, err
	}
	return s.repo.Setlist(ctx, eventID)
}

// ReplaceSetlist swaps the event's entire setlist for the given titles in one
// transaction. An empty list clears the setlist.
func (s *Service) ReplaceSetlist(ctx context.Context, principal authz.Principal, eventID int64, titles []string) error {
	event, err := s.repo.GetEvent(ctx, eventID)
	if err != nil {
		return err
	}
	if err := s.engine.Require(ctx, principal, authz.PermEditSetlist, authz.TypeScope(event.Type)); err != nil {
		return err
	}
	entries := make([]SetlistEntry, 0, len(titles))
	for i, title := range titles {
		title = strings.TrimSpace(title)
		if title == "" {
			return shared.BadRequest("setlist entry %d has no title", i+1)
		}
		entries = append(entries, SetlistEntry{Event: eventID, Order: i + 1, Title: title})
	}
	return s.repo.ReplaceSetlist(ctx, eventID, entries)
}
