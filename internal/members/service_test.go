package members

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/chorale-hq/chorale/internal/shared"
)

type memoryRepo struct {
	members   map[string]Member
	semesters map[string]Semester
	sections  []string
	active    map[string]ActiveSemester
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		members:   map[string]Member{},
		semesters: map[string]Semester{},
		sections:  []string{"Baritone", "Bass 1", "Bass 2", "Tenor 1", "Tenor 2"},
		active:    map[string]ActiveSemester{},
	}
}

func activeKey(email, semester string) string { return email + "|" + semester }

func (m *memoryRepo) GetMember(_ context.Context, email string) (Member, error) {
	member, ok := m.members[email]
	if !ok {
		return Member{}, shared.NotFound("no member with email %q", email)
	}
	return member, nil
}

func (m *memoryRepo) ListMembers(_ context.Context) ([]Member, error) {
	var list []Member
	for _, member := range m.members {
		list = append(list, member)
	}
	return list, nil
}

func (m *memoryRepo) UpdateProfile(_ context.Context, member Member) error {
	if _, ok := m.members[member.Email]; !ok {
		return shared.NotFound("no member with email %q", member.Email)
	}
	m.members[member.Email] = member
	return nil
}

func (m *memoryRepo) CurrentSemester(_ context.Context) (Semester, error) {
	for _, sem := range m.semesters {
		if sem.Current {
			return sem, nil
		}
	}
	return Semester{}, shared.NotFound("no current semester is set")
}

func (m *memoryRepo) GetSemester(_ context.Context, name string) (Semester, error) {
	sem, ok := m.semesters[name]
	if !ok {
		return Semester{}, shared.NotFound("no semester named %q", name)
	}
	return sem, nil
}

func (m *memoryRepo) ListSections(_ context.Context) ([]string, error) {
	return m.sections, nil
}

func (m *memoryRepo) GetActiveSemester(_ context.Context, email, semester string) (ActiveSemester, error) {
	active, ok := m.active[activeKey(email, semester)]
	if !ok {
		return ActiveSemester{}, shared.NotFound("member %q is not active for semester %q", email, semester)
	}
	return active, nil
}

func (m *memoryRepo) UpsertActiveSemester(_ context.Context, active ActiveSemester) error {
	m.active[activeKey(active.Member, active.Semester)] = active
	return nil
}

func (m *memoryRepo) ActiveRoster(_ context.Context, semester string) ([]RosterEntry, error) {
	var roster []RosterEntry
	for _, active := range m.active {
		if active.Semester != semester {
			continue
		}
		member := m.members[active.Member]
		roster = append(roster, RosterEntry{Member: member, Section: active.Section})
	}
	return roster, nil
}

func seedSemester(repo *memoryRepo, name string, current bool) {
	repo.semesters[name] = Semester{
		Name:      name,
		StartDate: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 12, 15, 0, 0, 0, 0, time.UTC),
		Current:   current,
	}
}

func TestFullNamePrefersPreferredName(t *testing.T) {
	m := Member{FirstName: "Gregory", PreferredName: "Greg", LastName: "Harris"}
	require.Equal(t, "Greg Harris", m.FullName())

	m.PreferredName = ""
	require.Equal(t, "Gregory Harris", m.FullName())
}

func TestConfirmForSemester(t *testing.T) {
	repo := newMemoryRepo()
	repo.members["greg@example.com"] = Member{Email: "greg@example.com", FirstName: "Greg", LastName: "Harris"}
	seedSemester(repo, "Fall 2026", true)
	svc := NewService(repo)
	ctx := context.Background()

	err := svc.ConfirmForSemester(ctx, "greg@example.com", ConfirmInput{
		Enrollment: EnrollmentClub,
		Section:    "tenor 1",
	})
	require.NoError(t, err)

	active, ok, err := svc.Enrollment(ctx, "greg@example.com", "Fall 2026")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, EnrollmentClub, active.Enrollment)
	require.Equal(t, "Tenor 1", active.Section)
}

func TestConfirmForSemesterRejectsUnknownInput(t *testing.T) {
	repo := newMemoryRepo()
	seedSemester(repo, "Fall 2026", true)
	svc := NewService(repo)
	ctx := context.Background()

	err := svc.ConfirmForSemester(ctx, "greg@example.com", ConfirmInput{Enrollment: "alumni"})
	var badReq *shared.BadRequestError
	require.ErrorAs(t, err, &badReq)

	err = svc.ConfirmForSemester(ctx, "greg@example.com", ConfirmInput{
		Enrollment: EnrollmentClass,
		Section:    "Soprano 1",
	})
	require.ErrorAs(t, err, &badReq)
}

func TestConfirmForSemesterIsRepeatable(t *testing.T) {
	repo := newMemoryRepo()
	repo.members["greg@example.com"] = Member{Email: "greg@example.com"}
	seedSemester(repo, "Fall 2026", true)
	svc := NewService(repo)
	ctx := context.Background()

	require.NoError(t, svc.ConfirmForSemester(ctx, "greg@example.com", ConfirmInput{
		Enrollment: EnrollmentClass, Section: "Bass 1",
	}))
	require.NoError(t, svc.ConfirmForSemester(ctx, "greg@example.com", ConfirmInput{
		Enrollment: EnrollmentClub, Section: "Bass 2",
	}))

	section, err := svc.SectionFor(ctx, "greg@example.com", "Fall 2026")
	require.NoError(t, err)
	require.Equal(t, "Bass 2", section)
}

func TestEnrollmentReportsInactiveMembers(t *testing.T) {
	repo := newMemoryRepo()
	seedSemester(repo, "Fall 2026", true)
	svc := NewService(repo)

	_, ok, err := svc.Enrollment(context.Background(), "stranger@example.com", "Fall 2026")
	require.NoError(t, err)
	require.False(t, ok)

	section, err := svc.SectionFor(context.Background(), "stranger@example.com", "Fall 2026")
	require.NoError(t, err)
	require.Empty(t, section)
}

func TestUpdateProfileTrimsAndValidates(t *testing.T) {
	repo := newMemoryRepo()
	repo.members["greg@example.com"] = Member{Email: "greg@example.com", FirstName: "Greg", LastName: "Harris"}
	svc := NewService(repo)
	ctx := context.Background()

	err := svc.UpdateProfile(ctx, "greg@example.com", ProfileInput{FirstName: "  ", LastName: "Harris"})
	var badReq *shared.BadRequestError
	require.ErrorAs(t, err, &badReq)

	err = svc.UpdateProfile(ctx, "greg@example.com", ProfileInput{
		FirstName:   " Gregory ",
		LastName:    "Harris",
		PhoneNumber: "404-555-0100",
		Passengers:  3,
	})
	require.NoError(t, err)

	member, err := svc.GetMember(ctx, "greg@example.com")
	require.NoError(t, err)
	require.Equal(t, "Gregory", member.FirstName)
	require.Equal(t, 3, member.Passengers)
}

func TestNormalizeSection(t *testing.T) {
	require.Equal(t, "Tenor 1", NormalizeSection("  tenor   1 "))
	require.Equal(t, "Bass 2", NormalizeSection("BASS 2"))
	require.Empty(t, NormalizeSection("   "))
}
