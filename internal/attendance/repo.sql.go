package attendance

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chorale-hq/chorale/internal/platform/db"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Get returns the stored record for (member, event), reporting whether one
// exists yet.
func (r *Repository) Get(ctx context.Context, member string, event int64) (Attendance, bool, error) {
	q := db.QuerierFor(ctx, r.pool)
	var record Attendance
	err := q.QueryRow(ctx,
		`SELECT member, event, rsvp, confirmed, excused, did_attend
		 FROM attendance WHERE member = $1 AND event = $2`, member, event).
		Scan(&record.Member, &record.Event, &record.RSVP, &record.Confirmed, &record.Excused, &record.DidAttend)
	if errors.Is(err, pgx.ErrNoRows) {
		return Attendance{}, false, nil
	}
	if err != nil {
		return Attendance{}, false, err
	}
	return record, true, nil
}

// Upsert writes the record, creating the row on first interaction.
func (r *Repository) Upsert(ctx context.Context, record Attendance) error {
	q := db.QuerierFor(ctx, r.pool)
	_, err := q.Exec(ctx,
		`INSERT INTO attendance (member, event, rsvp, confirmed, excused, did_attend)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (member, event)
		 DO UPDATE SET rsvp = $3, confirmed = $4, excused = $5, did_attend = $6`,
		record.Member, record.Event, record.RSVP, record.Confirmed, record.Excused, record.DidAttend)
	return err
}

// ListForEvent returns every stored record for the event.
func (r *Repository) ListForEvent(ctx context.Context, event int64) ([]Attendance, error) {
	q := db.QuerierFor(ctx, r.pool)
	rows, err := q.Query(ctx,
		`SELECT member, event, rsvp, confirmed, excused, did_attend
		 FROM attendance WHERE event = $1 ORDER BY member`, event)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var records []Attendance
	for rows.Next() {
		var record Attendance
		if err := rows.Scan(&record.Member, &record.Event, &record.RSVP, &record.Confirmed, &record.Excused, &record.DidAttend); err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// ExcuseAll marks every listed member excused for the event in a single
// transaction. Rows that do not exist yet are created excused.
func (r *Repository) ExcuseAll(ctx context.Context, event int64, memberEmails []string) error {
	return db.RunInTx(ctx, r.pool, func(ctx context.Context) error {
		q := db.QuerierFor(ctx, r.pool)
		for _, member := range memberEmails {
			_, err := q.Exec(ctx,
				`INSERT INTO attendance (member, event, excused)
				 VALUES ($1, $2, TRUE)
				 ON CONFLICT (member, event) DO UPDATE SET excused = TRUE`,
				member, event)
			if err != nil {
				return err
			}
		}
		return nil
	})
}
