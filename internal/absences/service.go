package absences

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/chorale-hq/chorale/internal/authz"
	"github.com/chorale-hq/chorale/internal/events"
	"github.com/chorale-hq/chorale/internal/shared"
)

// RepositoryPort defines data access methods for absence requests.
type RepositoryPort interface {
	Get(ctx context.Context, member string, event int64) (AbsenceRequest, error)
	Insert(ctx context.Context, request AbsenceRequest) error
	SetDecision(ctx context.Context, member string, event int64, status Status, reviewer string, at time.Time) error
	ListForSemester(ctx context.Context, semester string) ([]AbsenceRequest, error)
	ListForMember(ctx context.Context, member, semester string) ([]AbsenceRequest, error)
}

// EventPort supplies the events requests refer to.
type EventPort interface {
	Get(ctx context.Context, id int64) (events.Event, error)
}

// Notifier tells the member about a decision on their request. Delivery is
// best effort and never blocks the decision itself.
type Notifier interface {
	AbsenceDecided(ctx context.Context, request AbsenceRequest, eventName string) error
}

// Service handles the absence request lifecycle.
type Service struct {
	repo      RepositoryPort
	eventsSvc EventPort
	engine    *authz.Engine
	notifier  Notifier
	logger    *slog.Logger
	now       func() time.Time
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, eventsSvc EventPort, engine *authz.Engine, notifier Notifier, logger *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		eventsSvc: eventsSvc,
		engine:    engine,
		notifier:  notifier,
		logger:    logger,
		now:       time.Now,
	}
}

// Submit files a request to excuse the member's absence from the event. A
// second request for the same (member, event) is rejected.
func (s *Service) Submit(ctx context.Context, member string, eventID int64, reason string) error {
	if strings.TrimSpace(reason) == "" {
		return shared.BadRequest("a reason is required")
	}
	if _, err := s.eventsSvc.Get(ctx, eventID); err != nil {
		return err
	}
	_, err := s.repo.Get(ctx, member, eventID)
	if err == nil {
		return shared.BadRequest("you already requested an absence for this event")
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return err
	}
	err = s.repo.Insert(ctx, AbsenceRequest{
		Member: member,
		Event:  eventID,
		Time:   s.now(),
		Reason: strings.TrimSpace(reason),
		Status: StatusPending,
	})
	// The unique constraint backstops the pre-check under concurrent submits.
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return shared.BadRequest("you already requested an absence for this event")
	}
	return err
}

// Get returns one request. Members read their own requests freely; reading
// another member's requires process-absence-requests.
func (s *Service) Get(ctx context.Context, principal authz.Principal, member string, eventID int64) (AbsenceRequest, error) {
	if principal.Email != member {
		if err := s.engine.Require(ctx, principal, authz.PermProcessAbsenceRequests, authz.GeneralScope()); err != nil {
			return AbsenceRequest{}, err
		}
	}
	return s.repo.Get(ctx, member, eventID)
}

// Approve grants the request. Legal only from Pending.
func (s *Service) Approve(ctx context.Context, principal authz.Principal, member string, eventID int64) error {
	return s.decide(ctx, principal, member, eventID, StatusApproved)
}

// Deny refuses the request. Legal only from Pending.
func (s *Service) Deny(ctx context.Context, principal authz.Principal, member string, eventID int64) error {
	return s.decide(ctx, principal, member, eventID, StatusDenied)
}

func (s *Service) decide(ctx context.Context, principal authz.Principal, member string, eventID int64, status Status) error {
	if err := s.engine.Require(ctx, principal, authz.PermProcessAbsenceRequests, authz.GeneralScope()); err != nil {
		return err
	}
	request, err := s.repo.Get(ctx, member, eventID)
	if err != nil {
		return err
	}
	if request.Status != StatusPending {
		return shared.BadRequest("request is already %s", request.Status)
	}
	decidedAt := s.now()
	if err := s.repo.SetDecision(ctx, member, eventID, status, principal.Email, decidedAt); err != nil {
		return err
	}
	if s.notifier != nil {
		request.Status = status
		request.ReviewedBy = principal.Email
		request.ReviewedAt = &decidedAt
		eventName := ""
		if event, err := s.eventsSvc.Get(ctx, eventID); err == nil {
			eventName = event.Name
		}
		if err := s.notifier.AbsenceDecided(ctx, request, eventName); err != nil && s.logger != nil {
			s.logger.Warn("enqueue absence notification",
				slog.String("member", member), slog.Int64("event", eventID), slog.Any("error", err))
		}
	}
	return nil
}

// IsExcused reports whether the member holds an approved request for the
// event.
func (s *Service) IsExcused(ctx context.Context, member string, eventID int64) (bool, error) {
	request, err := s.repo.Get(ctx, member, eventID)
	if errors.Is(err, shared.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return request.Status == StatusApproved, nil
}

// ListForSemester returns every request against the semester's events, for
// officers processing the queue.
func (s *Service) ListForSemester(ctx context.Context, principal authz.Principal, semester string) ([]AbsenceRequest, error) {
	if err := s.engine.Require(ctx, principal, authz.PermProcessAbsenceRequests, authz.GeneralScope()); err != nil {
		return nil, err
	}
	return s.repo.ListForSemester(ctx, semester)
}

// ListOwn returns the member's own requests for the semester.
func (s *Service) ListOwn(ctx context.Context, member, semester string) ([]AbsenceRequest, error) {
	return s.repo.ListForMember(ctx, member, semester)
}
