package todos

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

// InsertForMembers writes one row per member inside a single transaction.
func (r *Repository) InsertForMembers(ctx context.Context, text string, memberEmails []string) error {
	return db.RunInTx(ctx, r.pool, func(ctx context.Context) error {
		q := db.QuerierFor(ctx, r.pool)
		for _, member := range memberEmails {
			_, err := q.Exec(ctx,
				`INSERT INTO todos (member, text, completed) VALUES ($1, $2, FALSE)`,
				member, text)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// Get returns one todo by id.
func (r *Repository) Get(ctx context.Context, id int64) (Todo, error) {
	q := db.QuerierFor(ctx, r.pool)
	var todo Todo
	err := q.QueryRow(ctx,
		`SELECT id, member, text, completed FROM todos WHERE id = $1`, id).
		Scan(&todo.ID, &todo.Member, &todo.Text, &todo.Completed)
	if errors.Is(err, pgx.ErrNoRows) {
		return Todo{}, shared.NotFound("no todo with id %d", id)
	}
	return todo, err
}

// ListIncomplete returns the member's open todos, oldest first.
func (r *Repository) ListIncomplete(ctx context.Context, member string) ([]Todo, error) {
	q := db.QuerierFor(ctx, r.pool)
	rows, err := q.Query(ctx,
		`SELECT id, member, text, completed FROM todos
		 WHERE member = $1 AND NOT completed ORDER BY id`, member)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []Todo
	for rows.Next() {
		var todo Todo
		if err := rows.Scan(&todo.ID, &todo.Member, &todo.Text, &todo.Completed); err != nil {
			return nil, err
		}
		list = append(list, todo)
	}
	return list, rows.Err()
}

// MarkComplete checks the todo off.
func (r *Repository) MarkComplete(ctx context.Context, id int64) error {
	q := db.QuerierFor(ctx, r.pool)
	tag, err := q.Exec(ctx, `UPDATE todos SET completed = TRUE WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.NotFound("no todo with id %d", id)
	}
	return nil
}
