package todos

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chorale-hq/chorale/internal/authz"
	"github.com/chorale-hq/chorale/internal/members"
	"github.com/chorale-hq/chorale/internal/shared"
)

type memoryRepo struct {
	nextID int64
	todos  map[int64]Todo
}

func (m *memoryRepo) InsertForMembers(_ context.Context, text string, memberEmails []string) error {
	for _, member := range memberEmails {
		m.todos[m.nextID] = Todo{ID: m.nextID, Member: member, Text: text}
		m.nextID++
	}
	return nil
}

func (m *memoryRepo) Get(_ context.Context, id int64) (Todo, error) {
	todo, ok := m.todos[id]
	if !ok {
		return Todo{}, shared.NotFound("no todo with id %d", id)
	}
	return todo, nil
}

func (m *memoryRepo) ListIncomplete(_ context.Context, member string) ([]Todo, error) {
	var list []Todo
	for _, todo := range m.todos {
		if todo.Member == member && !todo.Completed {
			list = append(list, todo)
		}
	}
	return list, nil
}

func (m *memoryRepo) MarkComplete(_ context.Context, id int64) error {
	todo, ok := m.todos[id]
	if !ok {
		return shared.NotFound("no todo with id %d", id)
	}
	todo.Completed = true
	m.todos[id] = todo
	return nil
}

type memoryMembers struct {
	known map[string]bool
}

func (m memoryMembers) GetMember(_ context.Context, email string) (members.Member, error) {
	if !m.known[email] {
		return members.Member{}, shared.NotFound("no member with email %q", email)
	}
	return members.Member{Email: email}, nil
}

func newTestService() (*Service, *memoryRepo) {
	repo := &memoryRepo{nextID: 1, todos: map[int64]Todo{}}
	svc := NewService(repo, memoryMembers{known: map[string]bool{
		"a@example.com": true,
		"b@example.com": true,
	}})
	return svc, repo
}

func TestCreateFansOutToEveryMember(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()
	creator := authz.Principal{Email: "a@example.com"}

	err := svc.Create(ctx, creator, "Return your music folder", []string{"a@example.com", "b@example.com", "a@example.com"})
	require.NoError(t, err)
	require.Len(t, repo.todos, 2, "duplicates collapse to one row per member")
}

func TestCreateRejectsUnknownMembers(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()
	creator := authz.Principal{Email: "a@example.com"}

	err := svc.Create(ctx, creator, "Return your music folder", []string{"a@example.com", "ghost@example.com"})
	require.ErrorIs(t, err, shared.ErrNotFound)
	require.Empty(t, repo.todos, "a bad address creates nothing")

	var badReq *shared.BadRequestError
	require.ErrorAs(t, svc.Create(ctx, creator, "  ", []string{"a@example.com"}), &badReq)
	require.ErrorAs(t, svc.Create(ctx, creator, "text", nil), &badReq)
}

func TestMarkCompleteOwnOnly(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()
	require.NoError(t, svc.Create(ctx, authz.Principal{Email: "a@example.com"}, "Pay dues", []string{"a@example.com", "b@example.com"}))

	var aID, bID int64
	for id, todo := range repo.todos {
		if todo.Member == "a@example.com" {
			aID = id
		} else {
			bID = id
		}
	}

	a := authz.Principal{Email: "a@example.com"}
	require.NoError(t, svc.MarkComplete(ctx, a, aID))
	require.True(t, repo.todos[aID].Completed)
	require.NoError(t, svc.MarkComplete(ctx, a, aID), "completing twice is a no-op")

	require.ErrorIs(t, svc.MarkComplete(ctx, a, bID), shared.ErrNotFound)
	require.False(t, repo.todos[bID].Completed)

	list, err := svc.ListIncomplete(ctx, a)
	require.NoError(t, err)
	require.Empty(t, list)
}
