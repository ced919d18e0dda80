package domain

import "context"

// MarketSource supplies contract snapshots. The core treats it as
// read-only and polls it on demand.
type MarketSource interface {
	// ListContracts returns up to limit active contracts starting at offset.
	ListContracts(ctx context.Context, limit, offset int) ([]Contract, error)
	// GetContract re-fetches a single contract, used by the resolution
	// engine to detect closure.
	GetContract(ctx context.Context, id string) (Contract, error)
}

// OracleRequest is the payload for one forecasting-oracle call: a batch of
// contracts plus the context the oracle needs to reason about sizing and
// correlation.
type OracleRequest struct {
	Contracts     []Contract
	OpenPositions []Position
	AvailableCash float64
	Stats         BotStats
}

// OracleReply is the raw structured-text payload returned by the oracle,
// together with the incremental API cost of producing it. The core must
// tolerate partial or malformed text.
type OracleReply struct {
	Text string
	Cost float64
}

// Oracle is the external forecasting collaborator. Timeouts are its
// responsibility; the caller treats any error as batch-fatal.
type Oracle interface {
	Analyze(ctx context.Context, req OracleRequest) (OracleReply, error)
}
