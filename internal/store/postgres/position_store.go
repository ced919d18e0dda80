package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/quantfold/sibyl/internal/domain"
)

// PositionStore implements domain.PositionStore backed by PostgreSQL.
type PositionStore struct {
	client *Client
}

// NewPositionStore creates a PositionStore using the given client.
func NewPositionStore(client *Client) *PositionStore {
	return &PositionStore{client: client}
}

const positionColumns = `id, contract_id, question, outcome_index, outcome,
	price, quantity, cost, potential_payout, status, cluster_key, reasoning,
	end_date, pnl, created_at, resolved_at, last_checked_at`

// CreateWithDebit inserts the position and debits its cost from the
// portfolio in one transaction. The debit is a conditional in-database
// decrement: if the balance cannot cover the cost, nothing is written and
// domain.ErrInsufficientFunds is returned.
func (s *PositionStore) CreateWithDebit(ctx context.Context, pos domain.Position) error {
	tx, err := s.client.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("position store: begin create tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	tag, err := tx.Exec(ctx, `
		UPDATE portfolio
		SET balance = balance - $1, updated_at = NOW()
		WHERE id = 1 AND balance >= $1`,
		pos.Cost,
	)
	if err != nil {
		return fmt.Errorf("position store: debit balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrInsufficientFunds
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO positions (
			id, contract_id, question, outcome_index, outcome,
			price, quantity, cost, potential_payout, status,
			cluster_key, reasoning, end_date, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		pos.ID, pos.ContractID, pos.Question, pos.OutcomeIndex, pos.Outcome,
		pos.Price, pos.Quantity, pos.Cost, pos.PotentialPayout, pos.Status,
		pos.ClusterKey, pos.Reasoning, pos.EndDate, pos.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("position store: insert position: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("position store: commit create tx: %w", err)
	}
	return nil
}

// Settle marks an open position won or lost, credits the payout, and bumps
// realized pnl in one transaction. The status guard on the position update
// makes settlement idempotent: a position that is already settled matches
// zero rows and the method returns domain.ErrAlreadySettled without
// touching the balance.
func (s *PositionStore) Settle(ctx context.Context, id string, status domain.PositionStatus, payout, pnl float64) error {
	if status != domain.PositionStatusWon && status != domain.PositionStatusLost {
		return fmt.Errorf("position store: settle %s: invalid terminal status %q", id, status)
	}

	tx, err := s.client.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("position store: begin settle tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	tag, err := tx.Exec(ctx, `
		UPDATE positions
		SET status = $2, pnl = $3, resolved_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status IN ('pending', 'filled')`,
		id, status, pnl,
	)
	if err != nil {
		return fmt.Errorf("position store: settle position %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx,
			"SELECT EXISTS(SELECT 1 FROM positions WHERE id = $1)", id,
		).Scan(&exists); err != nil {
			return fmt.Errorf("position store: check position %s: %w", id, err)
		}
		if !exists {
			return domain.ErrNotFound
		}
		return domain.ErrAlreadySettled
	}

	if _, err := tx.Exec(ctx, `
		UPDATE portfolio
		SET balance = balance + $1, realized_pnl = realized_pnl + $2, updated_at = NOW()
		WHERE id = 1`,
		payout, pnl,
	); err != nil {
		return fmt.Errorf("position store: credit payout for %s: %w", id, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("position store: commit settle tx: %w", err)
	}
	return nil
}

// Cancel marks a pending position cancelled and refunds its full cost. The
// refund and the status change commit together.
func (s *PositionStore) Cancel(ctx context.Context, id string) error {
	tx, err := s.client.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("position store: begin cancel tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var cost float64
	err = tx.QueryRow(ctx, `
		UPDATE positions
		SET status = 'cancelled', resolved_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
		RETURNING cost`,
		id,
	).Scan(&cost)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("position store: cancel position %s: %w", id, err)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE portfolio
		SET balance = balance + $1, updated_at = NOW()
		WHERE id = 1`,
		cost,
	); err != nil {
		return fmt.Errorf("position store: refund cost for %s: %w", id, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("position store: commit cancel tx: %w", err)
	}
	return nil
}

// GetByID fetches one position.
func (s *PositionStore) GetByID(ctx context.Context, id string) (domain.Position, error) {
	row := s.client.pool.QueryRow(ctx,
		"SELECT "+positionColumns+" FROM positions WHERE id = $1", id)
	pos, err := scanPosition(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Position{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Position{}, fmt.Errorf("position store: get %s: %w", id, err)
	}
	return pos, nil
}

// ListOpen returns all pending and filled positions, oldest first.
func (s *PositionStore) ListOpen(ctx context.Context) ([]domain.Position, error) {
	rows, err := s.client.pool.Query(ctx,
		"SELECT "+positionColumns+` FROM positions
		WHERE status IN ('pending', 'filled')
		ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("position store: list open: %w", err)
	}
	defer rows.Close()
	return scanPositions(rows)
}

// ListByStatus returns positions with the given status, newest first.
func (s *PositionStore) ListByStatus(ctx context.Context, status domain.PositionStatus, opts domain.ListOpts) ([]domain.Position, error) {
	rows, err := s.client.pool.Query(ctx,
		"SELECT "+positionColumns+` FROM positions
		WHERE status = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`,
		status, limitOrDefault(opts.Limit), opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("position store: list by status %s: %w", status, err)
	}
	defer rows.Close()
	return scanPositions(rows)
}

// ListSettled returns won and lost positions, most recently resolved first.
func (s *PositionStore) ListSettled(ctx context.Context, opts domain.ListOpts) ([]domain.Position, error) {
	rows, err := s.client.pool.Query(ctx,
		"SELECT "+positionColumns+` FROM positions
		WHERE status IN ('won', 'lost')
		ORDER BY resolved_at DESC NULLS LAST
		LIMIT $1 OFFSET $2`,
		limitOrDefault(opts.Limit), opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("position store: list settled: %w", err)
	}
	defer rows.Close()
	return scanPositions(rows)
}

// OpenClusterKeys returns the distinct cluster keys held by open positions.
func (s *PositionStore) OpenClusterKeys(ctx context.Context) (map[string]bool, error) {
	rows, err := s.client.pool.Query(ctx, `
		SELECT DISTINCT cluster_key FROM positions
		WHERE status IN ('pending', 'filled') AND cluster_key <> ''`)
	if err != nil {
		return nil, fmt.Errorf("position store: open cluster keys: %w", err)
	}
	defer rows.Close()

	keys := make(map[string]bool)
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("position store: scan cluster key: %w", err)
		}
		keys[key] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("position store: iterate cluster keys: %w", err)
	}
	return keys, nil
}

// TouchChecked records a resolution probe timestamp.
func (s *PositionStore) TouchChecked(ctx context.Context, id string, at time.Time) error {
	tag, err := s.client.pool.Exec(ctx,
		"UPDATE positions SET last_checked_at = $2, updated_at = NOW() WHERE id = $1",
		id, at)
	if err != nil {
		return fmt.Errorf("position store: touch %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// DeleteAll removes every position.
func (s *PositionStore) DeleteAll(ctx context.Context) error {
	if _, err := s.client.pool.Exec(ctx, "DELETE FROM positions"); err != nil {
		return fmt.Errorf("position store: delete all: %w", err)
	}
	return nil
}

func limitOrDefault(limit int) int {
	if limit <= 0 {
		return 100
	}
	return limit
}

func scanPosition(row pgx.Row) (domain.Position, error) {
	var pos domain.Position
	err := row.Scan(
		&pos.ID, &pos.ContractID, &pos.Question, &pos.OutcomeIndex, &pos.Outcome,
		&pos.Price, &pos.Quantity, &pos.Cost, &pos.PotentialPayout, &pos.Status,
		&pos.ClusterKey, &pos.Reasoning, &pos.EndDate, &pos.PnL, &pos.CreatedAt,
		&pos.ResolvedAt, &pos.LastCheckedAt,
	)
	return pos, err
}

func scanPositions(rows pgx.Rows) ([]domain.Position, error) {
	var out []domain.Position
	for rows.Next() {
		pos, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("position store: scan position: %w", err)
		}
		out = append(out, pos)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("position store: iterate positions: %w", err)
	}
	return out, nil
}
