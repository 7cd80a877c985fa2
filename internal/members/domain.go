package members

import "time"

// Member represents a member of the organization, keyed by email.
type Member struct {
	Email         string
	FirstName     string
	PreferredName string
	LastName      string
	PassHash      string
	PhoneNumber   string
	Location      string
	Passengers    int
	AboutMe       string
}

// FullName returns the member's preferred name when set, falling back to
// the legal first name.
func (m Member) FullName() string {
	first := m.FirstName
	if m.PreferredName != "" {
		first = m.PreferredName
	}
	return first + " " + m.LastName
}

// Semester is one term of operation. Exactly one semester is current.
type Semester struct {
	Name      string
	StartDate time.Time
	EndDate   time.Time
	Current   bool
}

// Enrollment is how a member participates in a semester.
type Enrollment string

const (
	EnrollmentClass Enrollment = "class"
	EnrollmentClub  Enrollment = "club"
)

// ActiveSemester records that a member counts for attendance and voting in
// a semester, with their (possibly empty) section for that semester.
type ActiveSemester struct {
	Member     string
	Semester   string
	Enrollment Enrollment
	Section    string
}

// RosterEntry pairs a member with their section for one semester.
type RosterEntry struct {
	Member  Member
	Section string
}
