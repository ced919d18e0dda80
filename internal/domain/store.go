package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and time filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// PositionStore persists ledger positions. Balance-coupled operations
// (create, settle, cancel) are single logical transactions: the position
// row change and the portfolio balance adjustment commit together, and
// every balance mutation is an in-database increment, never a
// read-then-write.
type PositionStore interface {
	// CreateWithDebit inserts the position and atomically debits its cost
	// from the portfolio balance. Returns ErrInsufficientFunds when the
	// balance would go negative.
	CreateWithDebit(ctx context.Context, pos Position) error

	// Settle marks an open position won or lost, records pnl, credits the
	// payout (0 for losses), and bumps realized pnl, all in one
	// transaction. Settling an already-settled position returns
	// ErrAlreadySettled and changes nothing.
	Settle(ctx context.Context, id string, status PositionStatus, payout, pnl float64) error

	// Cancel marks a pending position cancelled and atomically refunds its
	// full cost.
	Cancel(ctx context.Context, id string) error

	GetByID(ctx context.Context, id string) (Position, error)
	ListOpen(ctx context.Context) ([]Position, error)
	ListByStatus(ctx context.Context, status PositionStatus, opts ListOpts) ([]Position, error)
	ListSettled(ctx context.Context, opts ListOpts) ([]Position, error)

	// OpenClusterKeys returns the cluster keys of all open positions, used
	// to keep mutually-exclusive variants out of new candidate pools.
	OpenClusterKeys(ctx context.Context) (map[string]bool, error)

	// TouchChecked records a resolution probe timestamp without changing
	// anything else.
	TouchChecked(ctx context.Context, id string, at time.Time) error

	// DeleteAll removes every position. Only the explicit portfolio reset
	// calls this.
	DeleteAll(ctx context.Context) error
}

// PortfolioStore persists the cash ledger.
type PortfolioStore interface {
	Get(ctx context.Context) (Portfolio, error)

	// AdjustBalance applies delta to the balance as an atomic in-database
	// increment.
	AdjustBalance(ctx context.Context, delta float64) error

	// AddOracleSpend accumulates oracle API cost.
	AddOracleSpend(ctx context.Context, cost float64) error

	// ForceBalance overwrites the balance. Only the reconciliation path
	// uses this, after logging the drift it corrects.
	ForceBalance(ctx context.Context, balance float64) error

	// Reset restores the portfolio to the given initial balance.
	Reset(ctx context.Context, initialBalance float64) error
}

// CycleStore persists controller state and per-cycle audit records.
type CycleStore interface {
	GetState(ctx context.Context) (CycleState, error)
	// MarkRun records a completed oracle-call cycle: bumps the cycle count
	// and sets the throttle timestamp.
	MarkRun(ctx context.Context, at time.Time) error
	ClearState(ctx context.Context) error

	LogCycle(ctx context.Context, report CycleReport) error
	ListCycles(ctx context.Context, opts ListOpts) ([]CycleReport, error)
}

// ActivityStore persists the append-only activity feed.
type ActivityStore interface {
	Log(ctx context.Context, kind ActivityKind, message string) error
	List(ctx context.Context, opts ListOpts) ([]ActivityEntry, error)
	ListBefore(ctx context.Context, before time.Time) ([]ActivityEntry, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// RecentCache remembers which contracts were sent to the oracle recently.
// Entries expire after the throttle interval: while fresh, a contract is
// excluded from new candidate pools so the same question is not re-billed
// while its assessment is still considered current.
type RecentCache interface {
	MarkAnalyzed(ctx context.Context, contractIDs []string, ttl time.Duration) error
	// FilterFresh returns the subset of contractIDs that are still fresh.
	FilterFresh(ctx context.Context, contractIDs []string) (map[string]bool, error)
	Clear(ctx context.Context) error
}

// LockManager provides the short-lived distributed cycle lock. The TTL is
// the lock's bounded validity window: a crashed cycle self-expires instead
// of wedging the controller.
type LockManager interface {
	// Acquire returns an unlock function on success, or ErrLockHeld when
	// another holder owns the lock. The unlock function is safe to call
	// more than once.
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}
