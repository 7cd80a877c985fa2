package auth

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository records session issuance in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// RecordLogin appends one row to the login audit trail.
func (r *Repository) RecordLogin(ctx context.Context, email, sessionID string, at time.Time) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO session_log (member, session_id, issued_at) VALUES ($1, $2, $3)`,
		email, sessionID, at)
	return err
}
