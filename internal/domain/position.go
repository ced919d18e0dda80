package domain

import "time"

// PositionStatus tracks the position lifecycle.
type PositionStatus string

const (
	PositionStatusPending   PositionStatus = "pending" // placed, not yet filled
	PositionStatusFilled    PositionStatus = "filled"  // holding, awaiting resolution
	PositionStatusWon       PositionStatus = "won"
	PositionStatusLost      PositionStatus = "lost"
	PositionStatusCancelled PositionStatus = "cancelled"
)

// Open reports whether the position still ties up capital (not yet settled
// or cancelled).
func (s PositionStatus) Open() bool {
	return s == PositionStatusPending || s == PositionStatusFilled
}

// Position is a ledger entry for one bet on one contract outcome. It is
// created by the order ledger, mutated only by the ledger (cancellation,
// refund) and the resolution engine (settlement), and never deleted except
// by an explicit portfolio reset.
type Position struct {
	ID              string
	ContractID      string
	Question        string
	OutcomeIndex    int
	Outcome         string // outcome label at entry, e.g. "Yes"
	Price           float64
	Quantity        float64 // shares = cost / price
	Cost            float64
	PotentialPayout float64 // quantity * $1 if the outcome wins
	Status          PositionStatus
	ClusterKey      string
	Reasoning       string     // oracle reasoning snapshot at entry
	EndDate         *time.Time // contract end date snapshot at entry
	PnL             *float64
	CreatedAt       time.Time
	ResolvedAt      *time.Time
	LastCheckedAt   *time.Time // last resolution probe, bounds API load
}

// Portfolio is the cash ledger. Balance is available cash, not total
// equity: capital committed to open positions has already been debited.
// Invariant: Balance == InitialBalance - sum(open cost) + sum(realized pnl).
type Portfolio struct {
	Balance        float64
	InitialBalance float64
	RealizedPnL    float64
	OracleSpend    float64 // cumulative oracle API cost
	UpdatedAt      time.Time
}
