package events

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chorale-hq/chorale/internal/platform/db"
	"github.com/chorale-hq/chorale/internal/shared"
)

// Repository provides PostgreSQL backed persistence. Queries run through the
// ambient transaction when the context carries one.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const eventColumns = `id, name, semester, type, call_time, release_time, points, comments, location, gig_count, default_attend`

// InsertEvents writes the batch in one transaction and returns the new ids in
// input order.
func (r *Repository) InsertEvents(ctx context.Context, batch []Event) ([]int64, error) {
	ids := make([]int64, 0, len(batch))
	err := db.RunInTx(ctx, r.pool, func(ctx context.Context) error {
		q := db.QuerierFor(ctx, r.pool)
		for _, event := range batch {
			var id int64
			err := q.QueryRow(ctx,
				`INSERT INTO events (name, semester, type, call_time, release_time, points, comments, location, gig_count, default_attend)
				 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
				 RETURNING id`,
				event.Name, event.Semester, event.Type, event.CallTime, event.ReleaseTime,
				event.Points, event.Comments, event.Location, event.GigCount, event.DefaultAttend).
				Scan(&id)
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// GetEvent returns one event by id.
func (r *Repository) GetEvent(ctx context.Context, id int64) (Event, error) {
	q := db.QuerierFor(ctx, r.pool)
	event, err := scanEvent(q.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Event{}, shared.NotFound("no event with id %d", id)
	}
	return event, err
}

// ListForSemester returns the semester's events ordered by call time.
func (r *Repository) ListForSemester(ctx context.Context, semester string) ([]Event, error) {
	q := db.QuerierFor(ctx, r.pool)
	rows, err := q.Query(ctx,
		`SELECT `+eventColumns+` FROM events WHERE semester = $1 ORDER BY call_time, id`, semester)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, event)
	}
	return list, rows.Err()
}

// UpdateEvent rewrites every mutable column of the event.
func (r *Repository) UpdateEvent(ctx context.Context, event Event) error {
	q := db.QuerierFor(ctx, r.pool)
	tag, err := q.Exec(ctx,
		`UPDATE events
		 SET name = $2, type = $3, call_time = $4, release_time = $5, points = $6,
		     comments = $7, location = $8, gig_count = $9, default_attend = $10
		 WHERE id = $1`,
		event.ID, event.Name, event.Type, event.CallTime, event.ReleaseTime,
		event.Points, event.Comments, event.Location, event.GigCount, event.DefaultAttend)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFound("no event with id %d", event.ID)
	}
	return nil
}

// DeleteEvent removes the event and its dependent rows in one transaction.
func (r *Repository) DeleteEvent(ctx context.Context, id int64) error {
	return db.RunInTx(ctx, r.pool, func(ctx context.Context) error {
		q := db.QuerierFor(ctx, r.pool)
		if _, err := q.Exec(ctx, `DELETE FROM setlist_entries WHERE event = $1`, id); err != nil {
			return err
		}
		if _, err := q.Exec(ctx, `DELETE FROM attendance WHERE event = $1`, id); err != nil {
			return err
		}
		if _, err := q.Exec(ctx, `DELETE FROM absence_requests WHERE event = $1`, id); err != nil {
			return err
		}
		tag, err := q.Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return shared.NotFound("no event with id %d", id)
		}
		return nil
	})
}

// Setlist returns the event's setlist in performance order.
func (r *Repository) Setlist(ctx context.Context, eventID int64) ([]SetlistEntry, error) {
	q := db.QuerierFor(ctx, r.pool)
	rows, err := q.Query(ctx,
		`SELECT event, ord, title FROM setlist_entries WHERE event = $1 ORDER BY ord`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []SetlistEntry
	for rows.Next() {
		var entry SetlistEntry
		if err := rows.Scan(&entry.Event, &entry.Order, &entry.Title); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// ReplaceSetlist clears and rewrites the event's setlist in one transaction,
// so readers never observe a half-replaced list.
func (r *Repository) ReplaceSetlist(ctx context.Context, eventID int64, entries []SetlistEntry) error {
	return db.RunInTx(ctx, r.pool, func(ctx context.Context) error {
		q := db.QuerierFor(ctx, r.pool)
		if _, err := q.Exec(ctx, `DELETE FROM setlist_entries WHERE event = $1`, eventID); err != nil {
			return err
		}
		for _, entry := range entries {
			_, err := q.Exec(ctx,
				`INSERT INTO setlist_entries (event, ord, title) VALUES ($1, $2, $3)`,
				entry.Event, entry.Order, entry.Title)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func scanEvent(row pgx.Row) (Event, error) {
	var event Event
	err := row.Scan(
		&event.ID, &event.Name, &event.Semester, &event.Type, &event.CallTime,
		&event.ReleaseTime, &event.Points, &event.Comments, &event.Location,
		&event.GigCount, &event.DefaultAttend,
	)
	return event, err
}
