package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/quantfold/sibyl/internal/domain"
)

// ActivityStore implements domain.ActivityStore backed by PostgreSQL.
type ActivityStore struct {
	client *Client
}

// NewActivityStore creates an ActivityStore using the given client.
func NewActivityStore(client *Client) *ActivityStore {
	return &ActivityStore{client: client}
}

// Log appends one entry to the activity feed.
func (s *ActivityStore) Log(ctx context.Context, kind domain.ActivityKind, message string) error {
	_, err := s.client.pool.Exec(ctx,
		"INSERT INTO activity_log (kind, message) VALUES ($1, $2)",
		kind, message)
	if err != nil {
		return fmt.Errorf("activity store: log: %w", err)
	}
	return nil
}

// List returns activity entries, newest first.
func (s *ActivityStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.ActivityEntry, error) {
	rows, err := s.client.pool.Query(ctx, `
		SELECT id, kind, message, created_at
		FROM activity_log
		ORDER BY id DESC
		LIMIT $1 OFFSET $2`,
		limitOrDefault(opts.Limit), opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("activity store: list: %w", err)
	}
	defer rows.Close()
	return scanActivity(rows)
}

// ListBefore returns all entries created before the given time, oldest
// first. The archiver drains entries in this order before pruning them.
func (s *ActivityStore) ListBefore(ctx context.Context, before time.Time) ([]domain.ActivityEntry, error) {
	rows, err := s.client.pool.Query(ctx, `
		SELECT id, kind, message, created_at
		FROM activity_log
		WHERE created_at < $1
		ORDER BY id ASC`,
		before)
	if err != nil {
		return nil, fmt.Errorf("activity store: list before: %w", err)
	}
	defer rows.Close()
	return scanActivity(rows)
}

// DeleteBefore prunes entries older than the given time and reports how
// many were removed.
func (s *ActivityStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.client.pool.Exec(ctx,
		"DELETE FROM activity_log WHERE created_at < $1", before)
	if err != nil {
		return 0, fmt.Errorf("activity store: delete before: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanActivity(rows pgx.Rows) ([]domain.ActivityEntry, error) {
	var out []domain.ActivityEntry
	for rows.Next() {
		var e domain.ActivityEntry
		if err := rows.Scan(&e.ID, &e.Kind, &e.Message, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("activity store: scan entry: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("activity store: iterate entries: %w", err)
	}
	return out, nil
}
