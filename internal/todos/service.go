package todos

import (
	"context"
	"strings"

	"github.com/chorale-hq/chorale/internal/authz"
	"github.com/chorale-hq/chorale/internal/members"
	"github.com/chorale-hq/chorale/internal/shared"
)

// RepositoryPort defines data access methods for todos.
type RepositoryPort interface {
	InsertForMembers(ctx context.Context, text string, memberEmails []string) error
	Get(ctx context.Context, id int64) (Todo, error)
	ListIncomplete(ctx context.Context, member string) ([]Todo, error)
	MarkComplete(ctx context.Context, id int64) error
}

// MemberPort verifies the members a todo fans out to.
type MemberPort interface {
	GetMember(ctx context.Context, email string) (members.Member, error)
}

// Service handles action items assigned across members.
type Service struct {
	repo       RepositoryPort
	memberLook MemberPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, memberLook MemberPort) *Service {
	return &Service{repo: repo, memberLook: memberLook}
}

// Create fans the todo out to every listed member in one transaction, so a
// bad email address partway through creates nothing.
func (s *Service) Create(ctx context.Context, _ authz.Principal, text string, memberEmails []string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return shared.BadRequest("todo text is required")
	}
	if len(memberEmails) == 0 {
		return shared.BadRequest("at least one member is required")
	}
	seen := make(map[string]bool, len(memberEmails))
	var targets []string
	for _, email := range memberEmails {
		if seen[email] {
			continue
		}
		seen[email] = true
		if _, err := s.memberLook.GetMember(ctx, email); err != nil {
			return err
		}
		targets = append(targets, email)
	}
	return s.repo.InsertForMembers(ctx, text, targets)
}

// ListIncomplete returns the member's open todos.
func (s *Service) ListIncomplete(ctx context.Context, principal authz.Principal) ([]Todo, error) {
	return s.repo.ListIncomplete(ctx, principal.Email)
}

// MarkComplete checks off one of the member's own todos. Anyone else's todo
// is invisible to the caller.
func (s *Service) MarkComplete(ctx context.Context, principal authz.Principal, id int64) error {
	todo, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if todo.Member != principal.Email {
		return shared.NotFound("no todo with id %d", id)
	}
	if todo.Completed {
		return nil
	}
	return s.repo.MarkComplete(ctx, id)
}
