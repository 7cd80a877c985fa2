package members

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chorale-hq/chorale/internal/shared"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const memberColumns = `email, first_name, preferred_name, last_name, pass_hash, phone_number, location, passengers, about_me`

// GetMember returns one member by email.
func (r *Repository) GetMember(ctx context.Context, email string) (Member, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+memberColumns+` FROM members WHERE email = $1`, email)
	member, err := scanMember(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Member{}, shared.NotFound("no member with email %q", email)
	}
	return member, err
}

// ListMembers returns all members ordered by last name.
func (r *Repository) ListMembers(ctx context.Context) ([]Member, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+memberColumns+` FROM members ORDER BY last_name, first_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []Member
	for rows.Next() {
		member, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, member)
	}
	return list, rows.Err()
}

// UpdateProfile persists member-editable profile fields.
func (r *Repository) UpdateProfile(ctx context.Context, member Member) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE members
		 SET first_name = $2, preferred_name = $3, last_name = $4, phone_number = $5,
		     location = $6, passengers = $7, about_me = $8
		 WHERE email = $1`,
		member.Email, member.FirstName, member.PreferredName, member.LastName,
		member.PhoneNumber, member.Location, member.Passengers, member.AboutMe)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFound("no member with email %q", member.Email)
	}
	return nil
}

// CurrentSemester returns the semester flagged current.
func (r *Repository) CurrentSemester(ctx context.Context) (Semester, error) {
	var sem Semester
	err := r.pool.QueryRow(ctx,
		`SELECT name, start_date, end_date, current FROM semesters WHERE current LIMIT 1`).
		Scan(&sem.Name, &sem.StartDate, &sem.EndDate, &sem.Current)
	if errors.Is(err, pgx.ErrNoRows) {
		return Semester{}, shared.NotFound("no current semester is set")
	}
	return sem, err
}

// GetSemester returns one semester by name.
func (r *Repository) GetSemester(ctx context.Context, name string) (Semester, error) {
	var sem Semester
	err := r.pool.QueryRow(ctx,
		`SELECT name, start_date, end_date, current FROM semesters WHERE name = $1`, name).
		Scan(&sem.Name, &sem.StartDate, &sem.EndDate, &sem.Current)
	if errors.Is(err, pgx.ErrNoRows) {
		return Semester{}, shared.NotFound("no semester named %q", name)
	}
	return sem, err
}

// ListSections returns known section names in display order.
func (r *Repository) ListSections(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT name FROM sections ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// GetActiveSemester returns the member's enrollment for one semester.
func (r *Repository) GetActiveSemester(ctx context.Context, email, semester string) (ActiveSemester, error) {
	var active ActiveSemester
	var section *string
	err := r.pool.QueryRow(ctx,
		`SELECT member, semester, enrollment, section
		 FROM active_semesters WHERE member = $1 AND semester = $2`, email, semester).
		Scan(&active.Member, &active.Semester, &active.Enrollment, &section)
	if errors.Is(err, pgx.ErrNoRows) {
		return ActiveSemester{}, shared.NotFound("member %q is not active for semester %q", email, semester)
	}
	if err != nil {
		return ActiveSemester{}, err
	}
	if section != nil {
		active.Section = *section
	}
	return active, nil
}

// UpsertActiveSemester inserts or refreshes the member's enrollment.
func (r *Repository) UpsertActiveSemester(ctx context.Context, active ActiveSemester) error {
	var section *string
	if active.Section != "" {
		section = &active.Section
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO active_semesters (member, semester, enrollment, section)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (member, semester) DO UPDATE SET enrollment = $3, section = $4`,
		active.Member, active.Semester, active.Enrollment, section)
	return err
}

// ActiveRoster returns all members active for a semester with sections.
func (r *Repository) ActiveRoster(ctx context.Context, semester string) ([]RosterEntry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT m.email, m.first_name, m.preferred_name, m.last_name, m.pass_hash,
		        m.phone_number, m.location, m.passengers, m.about_me, a.section
		 FROM active_semesters a
		 JOIN members m ON m.email = a.member
		 WHERE a.semester = $1
		 ORDER BY m.last_name, m.first_name`, semester)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roster []RosterEntry
	for rows.Next() {
		var entry RosterEntry
		var section *string
		if err := rows.Scan(
			&entry.Member.Email, &entry.Member.FirstName, &entry.Member.PreferredName,
			&entry.Member.LastName, &entry.Member.PassHash, &entry.Member.PhoneNumber,
			&entry.Member.Location, &entry.Member.Passengers, &entry.Member.AboutMe,
			&section,
		); err != nil {
			return nil, err
		}
		if section != nil {
			entry.Section = *section
		}
		roster = append(roster, entry)
	}
	return roster, rows.Err()
}

func scanMember(row pgx.Row) (Member, error) {
	var member Member
	var preferred, location, about *string
	err := row.Scan(
		&member.Email, &member.FirstName, &preferred, &member.LastName,
		&member.PassHash, &member.PhoneNumber, &location, &member.Passengers, &about,
	)
	if err != nil {
		return Member{}, err
	}
	if preferred != nil {
		member.PreferredName = *preferred
	}
	if location != nil {
		member.Location = *location
	}
	if about != nil {
		member.AboutMe = *about
	}
	return member, nil
}
