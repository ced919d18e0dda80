package domain

import "time"

// CycleState is the persisted controller state shared by every instance of
// the service. The lock itself lives in the distributed lock manager; the
// throttle timestamp lives here so it survives process restarts.
type CycleState struct {
	CycleCount int64
	LastRunAt  *time.Time // last successful oracle-call cycle
	UpdatedAt  time.Time
}

// CycleStatus summarises how a cycle invocation ended.
type CycleStatus string

const (
	CycleStatusCompleted CycleStatus = "completed"
	CycleStatusWaiting   CycleStatus = "waiting" // throttle interval not yet elapsed
	CycleStatusLocked    CycleStatus = "locked"  // another cycle is running
	CycleStatusError     CycleStatus = "error"
)

// FilterBreakdown counts rejections per reason for one filter pass. The
// counts are audit data: they explain why the candidate pool has the size
// it has.
type FilterBreakdown struct {
	NoEndDate    int `json:"no_end_date"`
	Expired      int `json:"expired"`
	Inactive     int `json:"inactive"`
	TooFarOut    int `json:"too_far_out"`
	ClosingSoon  int `json:"closing_soon"`
	LowLiquidity int `json:"low_liquidity"`
	LowVolume    int `json:"low_volume"`
	WideSpread   int `json:"wide_spread"`
	ExtremePrice int `json:"extreme_price"`
	JunkPattern  int `json:"junk_pattern"`
	AlreadyHeld  int `json:"already_held"`
	RecentlySent int `json:"recently_sent"`
}

// Total returns the total number of rejected contracts.
func (b FilterBreakdown) Total() int {
	return b.NoEndDate + b.Expired + b.Inactive + b.TooFarOut + b.ClosingSoon +
		b.LowLiquidity + b.LowVolume + b.WideSpread + b.ExtremePrice +
		b.JunkPattern + b.AlreadyHeld + b.RecentlySent
}

// CycleReport is the audit record of one cycle invocation.
type CycleReport struct {
	Cycle          int64
	Status         CycleStatus
	StartedAt      time.Time
	FinishedAt     time.Time
	MarketsScanned int
	Breakdown      FilterBreakdown
	FilterLevel    int // progressive-relaxation level used (0 = strict)
	Candidates     int // pool size after dedup and diversification
	Batches        int
	Assessed       int
	BetsPlaced     int
	TotalStaked    float64
	OracleCost     float64
	Error          string // human-readable reason when Status is error
}

// ActivityKind classifies activity log entries.
type ActivityKind string

const (
	ActivityInfo      ActivityKind = "info"
	ActivityEdge      ActivityKind = "edge"
	ActivityOrder     ActivityKind = "order"
	ActivityResolved  ActivityKind = "resolved"
	ActivityWarning   ActivityKind = "warning"
	ActivityError     ActivityKind = "error"
	ActivityInference ActivityKind = "inference"
)

// ActivityEntry is one line of the human-readable activity feed.
type ActivityEntry struct {
	ID        int64
	Kind      ActivityKind
	Message   string
	CreatedAt time.Time
}

// BotStats is the derived performance summary shown on the status surface
// and fed back to the oracle as historical context.
type BotStats struct {
	Balance        float64 `json:"balance"`
	InitialBalance float64 `json:"initial_balance"`
	TotalPnL       float64 `json:"total_pnl"`
	Wins           int     `json:"wins"`
	Losses         int     `json:"losses"`
	TotalTrades    int     `json:"total_trades"`
	WinRate        float64 `json:"win_rate"` // percent
	AvgBet         float64 `json:"avg_bet"`
	BestTrade      float64 `json:"best_trade"`
	WorstTrade     float64 `json:"worst_trade"`
	SharpeRatio    float64 `json:"sharpe_ratio"`
	OpenPositions  int     `json:"open_positions"`
	OpenExposure   float64 `json:"open_exposure"`
	OracleSpend    float64 `json:"oracle_spend"`
	RunwayDays     int     `json:"runway_days"`
	Cycles         int64   `json:"cycles"`
}
