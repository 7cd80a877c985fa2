package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/chorale-hq/chorale/internal/members"
	"github.com/chorale-hq/chorale/internal/shared"
)

type memoryMembers struct {
	members  map[string]members.Member
	current  members.Semester
	sections map[string]string
}

func (m memoryMembers) GetMember(_ context.Context, email string) (members.Member, error) {
	member, ok := m.members[email]
	if !ok {
		return members.Member{}, shared.NotFound("no member with email %q", email)
	}
	return member, nil
}

func (m memoryMembers) CurrentSemester(context.Context) (members.Semester, error) {
	if m.current.Name == "" {
		return members.Semester{}, shared.NotFound("no current semester is set")
	}
	return m.current, nil
}

func (m memoryMembers) SectionFor(_ context.Context, email, _ string) (string, error) {
	return m.sections[email], nil
}

type memoryRoles struct {
	roles map[string][]string
}

func (m memoryRoles) RolesForMember(_ context.Context, email string) ([]string, error) {
	return m.roles[email], nil
}

type memoryAudit struct {
	logins []string
}

func (m *memoryAudit) RecordLogin(_ context.Context, email, sessionID string, _ time.Time) error {
	m.logins = append(m.logins, email+"|"+sessionID)
	return nil
}

func hashOf(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func newTestService(t *testing.T) (*Service, *memoryAudit) {
	t.Helper()
	audit := &memoryAudit{}
	svc := NewService(
		memoryMembers{
			members: map[string]members.Member{
				"greg@example.com": {Email: "greg@example.com", FirstName: "Greg", LastName: "Harris", PassHash: hashOf(t, "correct horse")},
			},
			current:  members.Semester{Name: "Fall 2026", Current: true},
			sections: map[string]string{"greg@example.com": "Tenor 1"},
		},
		memoryRoles{roles: map[string][]string{"greg@example.com": {"President", "Section Leader"}}},
		audit,
	)
	return svc, audit
}

func TestAuthenticate(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	member, err := svc.Authenticate(ctx, "greg@example.com", "correct horse")
	require.NoError(t, err)
	require.Equal(t, "greg@example.com", member.Email)

	_, err = svc.Authenticate(ctx, "greg@example.com", "wrong password")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)

	// An unknown address fails identically to a wrong password.
	_, err = svc.Authenticate(ctx, "ghost@example.com", "correct horse")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestPrincipalFor(t *testing.T) {
	svc, _ := newTestService(t)

	principal, err := svc.PrincipalFor(context.Background(), "greg@example.com")
	require.NoError(t, err)
	require.Equal(t, "greg@example.com", principal.Email)
	require.ElementsMatch(t, []string{"President", "Section Leader"}, principal.Roles)
	require.Equal(t, "Tenor 1", principal.Section)

	_, err = svc.PrincipalFor(context.Background(), "ghost@example.com")
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestRecordLogin(t *testing.T) {
	svc, audit := newTestService(t)
	require.NoError(t, svc.RecordLogin(context.Background(), "greg@example.com", "sess-1"))
	require.Equal(t, []string{"greg@example.com|sess-1"}, audit.logins)
}
