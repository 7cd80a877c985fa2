package gigs

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/chorale-hq/chorale/internal/authz"
	"github.com/chorale-hq/chorale/internal/events"
	"github.com/chorale-hq/chorale/internal/shared"
)

// RepositoryPort defines data access methods for gig requests.
type RepositoryPort interface {
	Get(ctx context.Context, id int64) (GigRequest, error)
	Insert(ctx context.Context, request GigRequest) (int64, error)
	SetStatus(ctx context.Context, id int64, status Status) error
	MarkConverted(ctx context.Context, id, eventID int64) (bool, error)
	List(ctx context.Context, statuses []Status) ([]GigRequest, error)
}

// EventCreator schedules the event a request converts into. The call joins
// the ambient transaction so the event and the status flip commit together.
type EventCreator interface {
	CreateEvent(ctx context.Context, event events.Event) (int64, error)
}

// TxRunner opens the transaction scope shared by conversion writes.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Notifier tells officers a new request arrived. Delivery is best effort.
type Notifier interface {
	GigRequestSubmitted(ctx context.Context, request GigRequest) error
}

// Service handles the gig request lifecycle.
type Service struct {
	repo     RepositoryPort
	creator  EventCreator
	tx       TxRunner
	engine   *authz.Engine
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, creator EventCreator, tx TxRunner, engine *authz.Engine, notifier Notifier, logger *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		creator:  creator,
		tx:       tx,
		engine:   engine,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
	}
}

// SubmitInput carries a public gig request submission.
type SubmitInput struct {
	Name         string
	Organization string
	ContactName  string
	ContactEmail string
	ContactPhone string
	StartTime    time.Time
	Location     string
	Comments     string
}

// Submit files an inbound request. No authentication is required; the form
// comes from the public site.
func (s *Service) Submit(ctx context.Context, input SubmitInput) (int64, error) {
	if strings.TrimSpace(input.Name) == "" {
		return 0, shared.BadRequest("event name is required")
	}
	if strings.TrimSpace(input.ContactEmail) == "" {
		return 0, shared.BadRequest("a contact email is required")
	}
	if input.StartTime.IsZero() {
		return 0, shared.BadRequest("a start time is required")
	}
	request := GigRequest{
		Time:         s.now(),
		Name:         strings.TrimSpace(input.Name),
		Organization: strings.TrimSpace(input.Organization),
		ContactName:  strings.TrimSpace(input.ContactName),
		ContactEmail: strings.TrimSpace(input.ContactEmail),
		ContactPhone: strings.TrimSpace(input.ContactPhone),
		StartTime:    input.StartTime,
		Location:     strings.TrimSpace(input.Location),
		Comments:     strings.TrimSpace(input.Comments),
		Status:       StatusPending,
	}
	id, err := s.repo.Insert(ctx, request)
	if err != nil {
		return 0, err
	}
	request.ID = id
	if s.notifier != nil {
		if err := s.notifier.GigRequestSubmitted(ctx, request); err != nil && s.logger != nil {
			s.logger.Warn("enqueue gig request notification", slog.Int64("request", id), slog.Any("error", err))
		}
	}
	return id, nil
}

// Get returns one request for an officer.
func (s *Service) Get(ctx context.Context, principal authz.Principal, id int64) (GigRequest, error) {
	if err := s.engine.Require(ctx, principal, authz.PermProcessGigRequests, authz.GeneralScope()); err != nil {
		return GigRequest{}, err
	}
	return s.repo.Get(ctx, id)
}

// List returns requests in the given statuses, all of them when none are
// named.
func (s *Service) List(ctx context.Context, principal authz.Principal, statuses []Status) ([]GigRequest, error) {
	if err := s.engine.Require(ctx, principal, authz.PermProcessGigRequests, authz.GeneralScope()); err != nil {
		return nil, err
	}
	return s.repo.List(ctx, statuses)
}

// Dismiss shelves a pending request. A converted request cannot be dismissed.
func (s *Service) Dismiss(ctx context.Context, principal authz.Principal, id int64) error {
	return s.flip(ctx, principal, id, StatusDismissed)
}

// Reopen returns a dismissed request to the pending queue. A converted
// request cannot be reopened.
func (s *Service) Reopen(ctx context.Context, principal authz.Principal, id int64) error {
	return s.flip(ctx, principal, id, StatusPending)
}

func (s *Service) flip(ctx context.Context, principal authz.Principal, id int64, to Status) error {
	if err := s.engine.Require(ctx, principal, authz.PermProcessGigRequests, authz.GeneralScope()); err != nil {
		return err
	}
	request, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if request.Status == StatusConverted {
		return shared.BadRequest("gig request was already converted to an event")
	}
	if request.Status == to {
		return nil
	}
	return s.repo.SetStatus(ctx, id, to)
}

// ConvertInput carries the officer's event details for a conversion. Zero
// fields fall back to the request's own values.
type ConvertInput struct {
	Name        string
	Semester    string
	CallTime    time.Time
	ReleaseTime *time.Time
	Points      int
	Comments    string
	Location    string
}

// CreateEvent converts a pending request into a gig event. The event insert
// and the status flip commit in one transaction, and the request records the
// first created event's id. Converting from any state but Pending fails.
func (s *Service) CreateEvent(ctx context.Context, principal authz.Principal, id int64, input ConvertInput) (int64, error) {
	if err := s.engine.Require(ctx, principal, authz.PermProcessGigRequests, authz.GeneralScope()); err != nil {
		return 0, err
	}
	request, err := s.repo.Get(ctx, id)
	if err != nil {
		return 0, err
	}
	if request.Status != StatusPending {
		return 0, shared.BadRequest("gig request must be pending")
	}

	event := events.Event{
		Name:      request.Name,
		Semester:  input.Semester,
		Type:      authz.EventTuttiGig,
		CallTime:  request.StartTime,
		Points:    input.Points,
		Comments:  request.Comments,
		Location:  request.Location,
		GigCount:  true,
	}
	if input.Name != "" {
		event.Name = input.Name
	}
	if !input.CallTime.IsZero() {
		event.CallTime = input.CallTime
	}
	event.ReleaseTime = input.ReleaseTime
	if input.Comments != "" {
		event.Comments = input.Comments
	}
	if input.Location != "" {
		event.Location = input.Location
	}

	var eventID int64
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		created, err := s.creator.CreateEvent(ctx, event)
		if err != nil {
			return err
		}
		flipped, err := s.repo.MarkConverted(ctx, id, created)
		if err != nil {
			return err
		}
		if !flipped {
			// A concurrent conversion won the race; abort ours entirely.
			return shared.BadRequest("gig request must be pending")
		}
		eventID = created
		return nil
	})
	if err != nil {
		return 0, err
	}
	return eventID, nil
}
