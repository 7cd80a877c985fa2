package absences

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chorale-hq/chorale/internal/platform/db"
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

const requestColumns = `member, event, time, reason, status, reviewed_by, reviewed_at`

// Get returns the request for (member, event).
func (r *Repository) Get(ctx context.Context, member string, event int64) (AbsenceRequest, error) {
	q := db.QuerierFor(ctx, r.pool)
	request, err := scanRequest(q.QueryRow(ctx,
		`SELECT `+requestColumns+` FROM absence_requests WHERE member = $1 AND event = $2`,
		member, event))
	if errors.Is(err, pgx.ErrNoRows) {
		return AbsenceRequest{}, shared.NotFound("no absence request from %q for event %d", member, event)
	}
	return request, err
}

// Insert files a new request. The primary key on (member, event) rejects
// duplicates.
func (r *Repository) Insert(ctx context.Context, request AbsenceRequest) error {
	q := db.QuerierFor(ctx, r.pool)
	_, err := q.Exec(ctx,
		`INSERT INTO absence_requests (member, event, time, reason, status)
		 VALUES ($1, $2, $3, $4, $5)`,
		request.Member, request.Event, request.Time, request.Reason, request.Status)
	return err
}

// SetDecision records the terminal decision on a request.
func (r *Repository) SetDecision(ctx context.Context, member string, event int64, status Status, reviewer string, at time.Time) error {
	q := db.QuerierFor(ctx, r.pool)
	tag, err := q.Exec(ctx,
		`UPDATE absence_requests
		 SET status = $3, reviewed_by = $4, reviewed_at = $5
		 WHERE member = $1 AND event = $2`,
		member, event, status, reviewer, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFound("no absence request from %q for event %d", member, event)
	}
	return nil
}

// ListForSemester returns every request against the semester's events, newest
// first.
func (r *Repository) ListForSemester(ctx context.Context, semester string) ([]AbsenceRequest, error) {
	q := db.QuerierFor(ctx, r.pool)
	rows, err := q.Query(ctx,
		`SELECT a.member, a.event, a.time, a.reason, a.status, a.reviewed_by, a.reviewed_at
		 FROM absence_requests a
		 JOIN events e ON e.id = a.event
		 WHERE e.semester = $1
		 ORDER BY a.time DESC`, semester)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRequests(rows)
}

// ListForMember returns the member's requests against the semester's events.
func (r *Repository) ListForMember(ctx context.Context, member, semester string) ([]AbsenceRequest, error) {
	q := db.QuerierFor(ctx, r.pool)
	rows, err := q.Query(ctx,
		`SELECT a.member, a.event, a.time, a.reason, a.status, a.reviewed_by, a.reviewed_at
		 FROM absence_requests a
		 JOIN events e ON e.id = a.event
		 WHERE a.member = $1 AND e.semester = $2
		 ORDER BY a.time DESC`, member, semester)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRequests(rows)
}

func collectRequests(rows pgx.Rows) ([]AbsenceRequest, error) {
	var requests []AbsenceRequest
	for rows.Next() {
		request, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, request)
	}
	return requests, rows.Err()
}

func scanRequest(row pgx.Row) (AbsenceRequest, error) {
	var request AbsenceRequest
	var reviewedBy *string
	err := row.Scan(&request.Member, &request.Event, &request.Time, &request.Reason,
		&request.Status, &reviewedBy, &request.ReviewedAt)
	if err != nil {
		return AbsenceRequest{}, err
	}
	if reviewedBy != nil {
		request.ReviewedBy = *reviewedBy
	}
	return request, nil
}
