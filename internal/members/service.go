package members

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/chorale-hq/chorale/internal/shared"
)

// RepositoryPort defines data access methods for members and semesters.
type RepositoryPort interface {
	GetMember(ctx context.Context, email string) (Member, error)
	ListMembers(ctx context.Context) ([]Member, error)
	UpdateProfile(ctx context.Context, member Member) error
	CurrentSemester(ctx context.Context) (Semester, error)
	GetSemester(ctx context.Context, name string) (Semester, error)
	ListSections(ctx context.Context) ([]string, error)
	GetActiveSemester(ctx context.Context, email, semester string) (ActiveSemester, error)
	UpsertActiveSemester(ctx context.Context, active ActiveSemester) error
	ActiveRoster(ctx context.Context, semester string) ([]RosterEntry, error)
}

// Service handles member and semester business logic.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// GetMember returns one member by email.
func (s *Service) GetMember(ctx context.Context, email string) (Member, error) {
	return s.repo.GetMember(ctx, email)
}

// List returns all members.
func (s *Service) List(ctx context.Context) ([]Member, error) {
	return s.repo.ListMembers(ctx)
}

// ProfileInput carries the member-editable profile fields.
type ProfileInput struct {
	FirstName     string
	PreferredName string
	LastName      string
	PhoneNumber   string
	Location      string
	Passengers    int
	AboutMe       string
}

// UpdateProfile applies the member's own profile changes.
func (s *Service) UpdateProfile(ctx context.Context, email string, input ProfileInput) error {
	member, err := s.repo.GetMember(ctx, email)
	if err != nil {
		return err
	}
	if strings.TrimSpace(input.FirstName) == "" || strings.TrimSpace(input.LastName) == "" {
		return shared.BadRequest("first and last name are required")
	}
	member.FirstName = strings.TrimSpace(input.FirstName)
	member.PreferredName = strings.TrimSpace(input.PreferredName)
	member.LastName = strings.TrimSpace(input.LastName)
	member.PhoneNumber = strings.TrimSpace(input.PhoneNumber)
	member.Location = strings.TrimSpace(input.Location)
	member.Passengers = input.Passengers
	member.AboutMe = strings.TrimSpace(input.AboutMe)
	return s.repo.UpdateProfile(ctx, member)
}

// CurrentSemester returns the semester currently in effect.
func (s *Service) CurrentSemester(ctx context.Context) (Semester, error) {
	return s.repo.CurrentSemester(ctx)
}

// GetSemester returns one semester by name.
func (s *Service) GetSemester(ctx context.Context, name string) (Semester, error) {
	return s.repo.GetSemester(ctx, name)
}

// Enrollment returns the member's active-semester record for the named
// semester, with ok=false when the member is inactive for it.
func (s *Service) Enrollment(ctx context.Context, email, semester string) (ActiveSemester, bool, error) {
	active, err := s.repo.GetActiveSemester(ctx, email, semester)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return ActiveSemester{}, false, nil
		}
		return ActiveSemester{}, false, err
	}
	return active, true, nil
}

// ConfirmInput carries a member's semester confirmation.
type ConfirmInput struct {
	Enrollment Enrollment
	Section    string
}

// ConfirmForSemester enrolls the member in the current semester, recording
// how they participate and which section they sing in.
func (s *Service) ConfirmForSemester(ctx context.Context, email string, input ConfirmInput) error {
	if input.Enrollment != EnrollmentClass && input.Enrollment != EnrollmentClub {
		return shared.BadRequest("enrollment must be %q or %q", EnrollmentClass, EnrollmentClub)
	}
	section := NormalizeSection(input.Section)
	if section != "" {
		known, err := s.repo.ListSections(ctx)
		if err != nil {
			return err
		}
		found := false
		for _, name := range known {
			if name == section {
				found = true
				break
			}
		}
		if !found {
			return shared.BadRequest("no section named %q", section)
		}
	}
	current, err := s.repo.CurrentSemester(ctx)
	if err != nil {
		return err
	}
	return s.repo.UpsertActiveSemester(ctx, ActiveSemester{
		Member:     email,
		Semester:   current.Name,
		Enrollment: input.Enrollment,
		Section:    section,
	})
}

// SectionFor returns the member's section for the given semester, or ""
// when the member is unsectioned or inactive for it.
func (s *Service) SectionFor(ctx context.Context, email, semester string) (string, error) {
	active, ok, err := s.Enrollment(ctx, email, semester)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", nil
	}
	return active.Section, nil
}

// ActiveRoster returns every member active for the semester with their
// section, the set eligible for that semester's events.
func (s *Service) ActiveRoster(ctx context.Context, semester string) ([]RosterEntry, error) {
	return s.repo.ActiveRoster(ctx, semester)
}

// ListSections returns the known section names.
func (s *Service) ListSections(ctx context.Context) ([]string, error) {
	return s.repo.ListSections(ctx)
}

var sectionTitle = cases.Title(language.English)

// NormalizeSection canonicalizes a section name ("tenor 1" -> "Tenor 1").
func NormalizeSection(raw string) string {
	trimmed := strings.Join(strings.Fields(raw), " ")
	if trimmed == "" {
		return ""
	}
	return sectionTitle.String(trimmed)
}
