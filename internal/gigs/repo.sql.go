package gigs

import (
	"context"
	"errors"

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

const requestColumns = `id, time, name, organization, contact_name, contact_email, contact_phone, start_time, location, comments, status, event`

// Get returns one request by id.
func (r *Repository) Get(ctx context.Context, id int64) (GigRequest, error) {
	q := db.QuerierFor(ctx, r.pool)
	request, err := scanRequest(q.QueryRow(ctx,
		`SELECT `+requestColumns+` FROM gig_requests WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return GigRequest{}, shared.NotFound("no gig request with id %d", id)
	}
	return request, err
}

// Insert files a new request and returns its id.
func (r *Repository) Insert(ctx context.Context, request GigRequest) (int64, error) {
	q := db.QuerierFor(ctx, r.pool)
	var id int64
	err := q.QueryRow(ctx,
		`INSERT INTO gig_requests (time, name, organization, contact_name, contact_email, contact_phone, start_time, location, comments, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING id`,
		request.Time, request.Name, request.Organization, request.ContactName,
		request.ContactEmail, request.ContactPhone, request.StartTime,
		request.Location, request.Comments, request.Status).
		Scan(&id)
	return id, err
}

// SetStatus flips a request between pending and dismissed.
func (r *Repository) SetStatus(ctx context.Context, id int64, status Status) error {
	q := db.QuerierFor(ctx, r.pool)
	tag, err := q.Exec(ctx,
		`UPDATE gig_requests SET status = $2 WHERE id = $1 AND status <> $3`,
		id, status, StatusConverted)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFound("no gig request with id %d", id)
	}
	return nil
}

// MarkConverted flips a pending request to converted, recording the first
// created event. It reports false when the request was no longer pending, so
// a racing conversion can abort its transaction.
func (r *Repository) MarkConverted(ctx context.Context, id, eventID int64) (bool, error) {
	q := db.QuerierFor(ctx, r.pool)
	tag, err := q.Exec(ctx,
		`UPDATE gig_requests SET status = $2, event = $3 WHERE id = $1 AND status = $4`,
		id, StatusConverted, eventID, StatusPending)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// List returns requests in the given statuses, newest first. An empty status
// list returns everything.
func (r *Repository) List(ctx context.Context, statuses []Status) ([]GigRequest, error) {
	q := db.QuerierFor(ctx, r.pool)
	query := `SELECT ` + requestColumns + ` FROM gig_requests`
	var args []any
	if len(statuses) > 0 {
		query += ` WHERE status = ANY($1)`
		names := make([]string, 0, len(statuses))
		for _, status := range statuses {
			names = append(names, string(status))
		}
		args = append(args, names)
	}
	query += ` ORDER BY time DESC`
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var requests []GigRequest
	for rows.Next() {
		request, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, request)
	}
	return requests, rows.Err()
}

func scanRequest(row pgx.Row) (GigRequest, error) {
	var request GigRequest
	err := row.Scan(
		&request.ID, &request.Time, &request.Name, &request.Organization,
		&request.ContactName, &request.ContactEmail, &request.ContactPhone,
		&request.StartTime, &request.Location, &request.Comments,
		&request.Status, &request.Event,
	)
	return request, err
}
