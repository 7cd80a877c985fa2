package auth

import (
	"context"
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/chorale-hq/chorale/internal/authz"
	"github.com/chorale-hq/chorale/internal/members"
	"github.com/chorale-hq/chorale/internal/shared"
)

// MemberPort looks up members during login and principal resolution.
type MemberPort interface {
	GetMember(ctx context.Context, email string) (members.Member, error)
	CurrentSemester(ctx context.Context) (members.Semester, error)
	SectionFor(ctx context.Context, email, semester string) (string, error)
}

// RolePort supplies the roles a member currently holds.
type RolePort interface {
	RolesForMember(ctx context.Context, email string) ([]string, error)
}

// AuditPort records session issuance for the officer audit trail. Optional.
type AuditPort interface {
	RecordLogin(ctx context.Context, email, sessionID string, at time.Time) error
}

// Service handles authentication and principal resolution.
type Service struct {
	membersSvc MemberPort
	roles      RolePort
	audit      AuditPort
	now        func() time.Time
}

// NewService builds Service instance.
func NewService(membersSvc MemberPort, roles RolePort, audit AuditPort) *Service {
	return &Service{membersSvc: membersSvc, roles: roles, audit: audit, now: time.Now}
}

// Authenticate verifies the member's password. A missing member and a wrong
// password both collapse into ErrInvalidCredentials so the response does not
// reveal which one happened.
func (s *Service) Authenticate(ctx context.Context, email, password string) (members.Member, error) {
	member, err := s.membersSvc.GetMember(ctx, email)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return members.Member{}, shared.ErrInvalidCredentials
		}
		return members.Member{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(member.PassHash), []byte(password)) != nil {
		return members.Member{}, shared.ErrInvalidCredentials
	}
	return member, nil
}

// RecordLogin notes the issued session in the audit trail, when one is
// configured.
func (s *Service) RecordLogin(ctx context.Context, email, sessionID string) error {
	if s.audit == nil {
		return nil
	}
	return s.audit.RecordLogin(ctx, email, sessionID, s.now())
}

// PrincipalFor resolves the member into an authorization principal: held
// roles plus the member's section for the current semester. It satisfies
// authz.PrincipalResolver.
func (s *Service) PrincipalFor(ctx context.Context, email string) (authz.Principal, error) {
	if _, err := s.membersSvc.GetMember(ctx, email); err != nil {
		return authz.Principal{}, err
	}
	roles, err := s.roles.RolesForMember(ctx, email)
	if err != nil {
		return authz.Principal{}, err
	}
	principal := authz.Principal{Email: email, Roles: roles}
	current, err := s.membersSvc.CurrentSemester(ctx)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			// Between semesters nobody has a section.
			return principal, nil
		}
		return authz.Principal{}, err
	}
	section, err := s.membersSvc.SectionFor(ctx, email, current.Name)
	if err != nil {
		return authz.Principal{}, err
	}
	principal.Section = section
	return principal, nil
}
