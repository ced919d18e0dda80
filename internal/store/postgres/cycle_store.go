package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/quantfold/sibyl/internal/domain"
)

// CycleStore implements domain.CycleStore backed by PostgreSQL.
type CycleStore struct {
	client *Client
}

// NewCycleStore creates a CycleStore using the given client.
func NewCycleStore(client *Client) *CycleStore {
	return &CycleStore{client: client}
}

// GetState returns the persisted controller state. A missing row reads as
// the zero state rather than an error: the first cycle of a fresh
// deployment has no state yet.
func (s *CycleStore) GetState(ctx context.Context) (domain.CycleState, error) {
	var st domain.CycleState
	err := s.client.pool.QueryRow(ctx,
		"SELECT cycle_count, last_run_at, updated_at FROM cycle_state WHERE id = 1",
	).Scan(&st.CycleCount, &st.LastRunAt, &st.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.CycleState{}, nil
	}
	if err != nil {
		return domain.CycleState{}, fmt.Errorf("cycle store: get state: %w", err)
	}
	return st, nil
}

// MarkRun bumps the cycle count and sets the throttle timestamp.
func (s *CycleStore) MarkRun(ctx context.Context, at time.Time) error {
	_, err := s.client.pool.Exec(ctx, `
		INSERT INTO cycle_state (id, cycle_count, last_run_at)
		VALUES (1, 1, $1)
		ON CONFLICT (id) DO UPDATE SET
			cycle_count = cycle_state.cycle_count + 1,
			last_run_at = EXCLUDED.last_run_at,
			updated_at = NOW()`,
		at)
	if err != nil {
		return fmt.Errorf("cycle store: mark run: %w", err)
	}
	return nil
}

// ClearState resets the controller state. Only the explicit portfolio
// reset calls this.
func (s *CycleStore) ClearState(ctx context.Context) error {
	if _, err := s.client.pool.Exec(ctx, "DELETE FROM cycle_state"); err != nil {
		return fmt.Errorf("cycle store: clear state: %w", err)
	}
	return nil
}

// LogCycle appends the audit record of one cycle invocation.
func (s *CycleStore) LogCycle(ctx context.Context, report domain.CycleReport) error {
	breakdown, err := json.Marshal(report.Breakdown)
	if err != nil {
		return fmt.Errorf("cycle store: marshal breakdown: %w", err)
	}

	_, err = s.client.pool.Exec(ctx, `
		INSERT INTO cycle_audit (
			cycle, status, started_at, finished_at, markets_scanned,
			breakdown, filter_level, candidates, batches, assessed,
			bets_placed, total_staked, oracle_cost, error
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		report.Cycle, report.Status, report.StartedAt, report.FinishedAt,
		report.MarketsScanned, breakdown, report.FilterLevel, report.Candidates,
		report.Batches, report.Assessed, report.BetsPlaced, report.TotalStaked,
		report.OracleCost, report.Error,
	)
	if err != nil {
		return fmt.Errorf("cycle store: log cycle: %w", err)
	}
	return nil
}

// ListCycles returns cycle audit records, newest first.
func (s *CycleStore) ListCycles(ctx context.Context, opts domain.ListOpts) ([]domain.CycleReport, error) {
	rows, err := s.client.pool.Query(ctx, `
		SELECT cycle, status, started_at, finished_at, markets_scanned,
			breakdown, filter_level, candidates, batches, assessed,
			bets_placed, total_staked, oracle_cost, error
		FROM cycle_audit
		ORDER BY id DESC
		LIMIT $1 OFFSET $2`,
		limitOrDefault(opts.Limit), opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("cycle store: list cycles: %w", err)
	}
	defer rows.Close()

	var out []domain.CycleReport
	for rows.Next() {
		var (
			r         domain.CycleReport
			breakdown []byte
		)
		if err := rows.Scan(
			&r.Cycle, &r.Status, &r.StartedAt, &r.FinishedAt, &r.MarketsScanned,
			&breakdown, &r.FilterLevel, &r.Candidates, &r.Batches, &r.Assessed,
			&r.BetsPlaced, &r.TotalStaked, &r.OracleCost, &r.Error,
		); err != nil {
			return nil, fmt.Errorf("cycle store: scan cycle: %w", err)
		}
		if len(breakdown) > 0 {
			if err := json.Unmarshal(breakdown, &r.Breakdown); err != nil {
				return nil, fmt.Errorf("cycle store: unmarshal breakdown: %w", err)
			}
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("cycle store: iterate cycles: %w", err)
	}
	return out, nil
}
