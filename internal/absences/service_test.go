package absences

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/chorale-hq/chorale/internal/authz"
	"github.com/chorale-hq/chorale/internal/events"
	"github.com/chorale-hq/chorale/internal/shared"
)

type stubCatalog struct {
	grants []authz.Grant
}

func (s stubCatalog) GrantsForRoles(context.Context, []string) ([]authz.Grant, error) {
	return s.grants, nil
}

type memoryRepo struct {
	requests map[string]AbsenceRequest
}

func requestKey(member string, event int64) string {
	return member + "|" + strconv.FormatInt(event, 10)
}

func (m *memoryRepo) Get(_ context.Context, member string, event int64) (AbsenceRequest, error) {
	request, ok := m.requests[requestKey(member, event)]
	if !ok {
		return AbsenceRequest{}, shared.NotFound("no absence request from %q for event %d", member, event)
	}
	return request, nil
}

func (m *memoryRepo) Insert(_ context.Context, request AbsenceRequest) error {
	m.requests[requestKey(request.Member, request.Event)] = request
	return nil
}

func (m *memoryRepo) SetDecision(_ context.Context, member string, event int64, status Status, reviewer string, at time.Time) error {
	request, ok := m.requests[requestKey(member, event)]
	if !ok {
		return shared.NotFound("no absence request from %q for event %d", member, event)
	}
	request.Status = status
	request.ReviewedBy = reviewer
	request.ReviewedAt = &at
	m.requests[requestKey(member, event)] = request
	return nil
}

func (m *memoryRepo) ListForSemester(_ context.Context, _ string) ([]AbsenceRequest, error) {
	var list []AbsenceRequest
	for _, request := range m.requests {
		list = append(list, request)
	}
	return list, nil
}

func (m *memoryRepo) ListForMember(_ context.Context, member, _ string) ([]AbsenceRequest, error) {
	var list []AbsenceRequest
	for _, request := range m.requests {
		if request.Member == member {
			list = append(list, request)
		}
	}
	return list, nil
}

type memoryEvents struct{}

func (memoryEvents) Get(_ context.Context, id int64) (events.Event, error) {
	if id != 1 {
		return events.Event{}, shared.NotFound("no event with id %d", id)
	}
	return events.Event{ID: 1, Name: "Fall Concert", Semester: "Fall 2026", Type: authz.EventTuttiGig}, nil
}

type recordingNotifier struct {
	decided []AbsenceRequest
}

func (n *recordingNotifier) AbsenceDecided(_ context.Context, request AbsenceRequest, _ string) error {
	n.decided = append(n.decided, request)
	return nil
}

func newTestService(grants ...authz.Grant) (*Service, *memoryRepo, *recordingNotifier) {
	repo := &memoryRepo{requests: map[string]AbsenceRequest{}}
	notifier := &recordingNotifier{}
	svc := NewService(repo, memoryEvents{}, authz.NewEngine(stubCatalog{grants: grants}), notifier, nil)
	return svc, repo, notifier
}

func officerGrant() authz.Grant {
	return authz.Grant{
		Role:       "Vice President",
		Permission: authz.PermProcessAbsenceRequests,
		Scope:      authz.GeneralScope(),
	}
}

func vicePresident() authz.Principal {
	return authz.Principal{Email: "vp@example.com", Roles: []string{"Vice President"}}
}

func TestSubmitRejectsDuplicates(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	require.NoError(t, svc.Submit(ctx, "a@example.com", 1, "family wedding"))

	err := svc.Submit(ctx, "a@example.com", 1, "second try")
	var badReq *shared.BadRequestError
	require.ErrorAs(t, err, &badReq)

	// A different member may still request the same event.
	require.NoError(t, svc.Submit(ctx, "b@example.com", 1, "exam conflict"))
}

func TestSubmitValidatesInput(t *testing.T) {
	svc, _, _ := newTestService()
	ctx := context.Background()

	var badReq *shared.BadRequestError
	require.ErrorAs(t, svc.Submit(ctx, "a@example.com", 1, "   "), &badReq)
	require.ErrorIs(t, svc.Submit(ctx, "a@example.com", 99, "reason"), shared.ErrNotFound)
}

func TestDecisionsRequirePermission(t *testing.T) {
	svc, _, _ := newTestService(officerGrant())
	ctx := context.Background()
	require.NoError(t, svc.Submit(ctx, "a@example.com", 1, "family wedding"))

	nobody := authz.Principal{Email: "member@example.com"}
	var forbidden *shared.ForbiddenError
	require.ErrorAs(t, svc.Approve(ctx, nobody, "a@example.com", 1), &forbidden)
	require.Equal(t, "process-absence-requests", forbidden.Permission)

	require.NoError(t, svc.Approve(ctx, vicePresident(), "a@example.com", 1))
}

func TestDecisionsAreTerminal(t *testing.T) {
	svc, repo, _ := newTestService(officerGrant())
	ctx := context.Background()
	vp := vicePresident()
	var badReq *shared.BadRequestError

	require.NoError(t, svc.Submit(ctx, "a@example.com", 1, "family wedding"))
	require.NoError(t, svc.Approve(ctx, vp, "a@example.com", 1))
	require.ErrorAs(t, svc.Approve(ctx, vp, "a@example.com", 1), &badReq)
	require.ErrorAs(t, svc.Deny(ctx, vp, "a@example.com", 1), &badReq)

	stored := repo.requests[requestKey("a@example.com", 1)]
	require.Equal(t, StatusApproved, stored.Status)
	require.Equal(t, "vp@example.com", stored.ReviewedBy)

	require.NoError(t, svc.Submit(ctx, "b@example.com", 1, "exam"))
	require.NoError(t, svc.Deny(ctx, vp, "b@example.com", 1))
	require.ErrorAs(t, svc.Approve(ctx, vp, "b@example.com", 1), &badReq)
}

func TestIsExcused(t *testing.T) {
	svc, _, _ := newTestService(officerGrant())
	ctx := context.Background()

	excused, err := svc.IsExcused(ctx, "a@example.com", 1)
	require.NoError(t, err)
	require.False(t, excused)

	require.NoError(t, svc.Submit(ctx, "a@example.com", 1, "family wedding"))
	excused, err = svc.IsExcused(ctx, "a@example.com", 1)
	require.NoError(t, err)
	require.False(t, excused, "pending is not excused")

	require.NoError(t, svc.Approve(ctx, vicePresident(), "a@example.com", 1))
	excused, err = svc.IsExcused(ctx, "a@example.com", 1)
	require.NoError(t, err)
	require.True(t, excused)

	require.NoError(t, svc.Submit(ctx, "b@example.com", 1, "exam"))
	require.NoError(t, svc.Deny(ctx, vicePresident(), "b@example.com", 1))
	excused, err = svc.IsExcused(ctx, "b@example.com", 1)
	require.NoError(t, err)
	require.False(t, excused)
}

func TestDecisionNotifiesMember(t *testing.T) {
	svc, _, notifier := newTestService(officerGrant())
	ctx := context.Background()

	require.NoError(t, svc.Submit(ctx, "a@example.com", 1, "family wedding"))
	require.NoError(t, svc.Approve(ctx, vicePresident(), "a@example.com", 1))

	require.Len(t, notifier.decided, 1)
	require.Equal(t, StatusApproved, notifier.decided[0].Status)
	require.Equal(t, "a@example.com", notifier.decided[0].Member)
}

func TestGetGuardsOtherMembersRequests(t *testing.T) {
	svc, _, _ := newTestService(officerGrant())
	ctx := context.Background()
	require.NoError(t, svc.Submit(ctx, "a@example.com", 1, "family wedding"))

	owner := authz.Principal{Email: "a@example.com"}
	_, err := svc.Get(ctx, owner, "a@example.com", 1)
	require.NoError(t, err)

	stranger := authz.Principal{Email: "b@example.com"}
	var forbidden *shared.ForbiddenError
	_, err = svc.Get(ctx, stranger, "a@example.com", 1)
	require.ErrorAs(t, err, &forbidden)

	_, err = svc.Get(ctx, vicePresident(), "a@example.com", 1)
	require.NoError(t, err)
}
