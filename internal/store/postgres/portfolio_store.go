package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/quantfold/sibyl/internal/domain"
)

// PortfolioStore implements domain.PortfolioStore backed by PostgreSQL.
// The portfolio is a single row; every mutation is an in-database
// increment or a guarded overwrite, never a read-then-write.
type PortfolioStore struct {
	client *Client
}

// NewPortfolioStore creates a PortfolioStore using the given client.
func NewPortfolioStore(client *Client) *PortfolioStore {
	return &PortfolioStore{client: client}
}

// Ensure seeds the single portfolio row if it does not exist yet. Called
// once at startup; an existing row is left untouched.
func (s *PortfolioStore) Ensure(ctx context.Context, initialBalance float64) error {
	_, err := s.client.pool.Exec(ctx, `
		INSERT INTO portfolio (id, balance, initial_balance)
		VALUES (1, $1, $1)
		ON CONFLICT (id) DO NOTHING`,
		initialBalance)
	if err != nil {
		return fmt.Errorf("portfolio store: ensure row: %w", err)
	}
	return nil
}

// Get returns the current portfolio.
func (s *PortfolioStore) Get(ctx context.Context) (domain.Portfolio, error) {
	var p domain.Portfolio
	err := s.client.pool.QueryRow(ctx, `
		SELECT balance, initial_balance, realized_pnl, oracle_spend, updated_at
		FROM portfolio WHERE id = 1`,
	).Scan(&p.Balance, &p.InitialBalance, &p.RealizedPnL, &p.OracleSpend, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Portfolio{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Portfolio{}, fmt.Errorf("portfolio store: get: %w", err)
	}
	return p, nil
}

// AdjustBalance applies delta to the balance atomically.
func (s *PortfolioStore) AdjustBalance(ctx context.Context, delta float64) error {
	tag, err := s.client.pool.Exec(ctx,
		"UPDATE portfolio SET balance = balance + $1, updated_at = NOW() WHERE id = 1",
		delta)
	if err != nil {
		return fmt.Errorf("portfolio store: adjust balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// AddOracleSpend accumulates oracle API cost.
func (s *PortfolioStore) AddOracleSpend(ctx context.Context, cost float64) error {
	if cost <= 0 {
		return nil
	}
	tag, err := s.client.pool.Exec(ctx,
		"UPDATE portfolio SET oracle_spend = oracle_spend + $1, updated_at = NOW() WHERE id = 1",
		cost)
	if err != nil {
		return fmt.Errorf("portfolio store: add oracle spend: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ForceBalance overwrites the balance. Only drift reconciliation calls
// this.
func (s *PortfolioStore) ForceBalance(ctx context.Context, balance float64) error {
	tag, err := s.client.pool.Exec(ctx,
		"UPDATE portfolio SET balance = $1, updated_at = NOW() WHERE id = 1",
		balance)
	if err != nil {
		return fmt.Errorf("portfolio store: force balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Reset restores the portfolio to a fresh state at the given initial
// balance.
func (s *PortfolioStore) Reset(ctx context.Context, initialBalance float64) error {
	_, err := s.client.pool.Exec(ctx, `
		INSERT INTO portfolio (id, balance, initial_balance, realized_pnl, oracle_spend)
		VALUES (1, $1, $1, 0, 0)
		ON CONFLICT (id) DO UPDATE SET
			balance = EXCLUDED.balance,
			initial_balance = EXCLUDED.initial_balance,
			realized_pnl = 0,
			oracle_spend = 0,
			updated_at = NOW()`,
		initialBalance)
	if err != nil {
		return fmt.Errorf("portfolio store: reset: %w", err)
	}
	return nil
}
