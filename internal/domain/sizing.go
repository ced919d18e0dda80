package domain

// RejectReason explains why the sizing engine declined to bet.
type RejectReason string

const (
	RejectNone             RejectReason = ""
	RejectNoRecommendation RejectReason = "no_recommendation"
	RejectInsufficientCash RejectReason = "insufficient_cash"
	RejectLowConfidence    RejectReason = "low_confidence"
	RejectPriceTooLow      RejectReason = "price_too_low"
	RejectPriceTooHigh     RejectReason = "price_too_high"
	RejectNoKellyEdge      RejectReason = "no_kelly_edge"
	RejectBelowMinOrder    RejectReason = "below_min_order"
	RejectNetEdgeTooSmall  RejectReason = "net_edge_too_small"
	RejectReturnNegligible RejectReason = "return_negligible"
)

// SizingDecision is the result of the Kelly sizing engine. It is a pure
// computation result: no state, no side effects. Amount is 0 whenever
// Reason is non-empty.
type SizingDecision struct {
	OutcomeIndex  int
	EntryPrice    float64
	KellyRaw      float64 // unconstrained Kelly fraction
	KellyCapped   float64 // after fractional multiplier and bankroll cap
	Amount        float64 // dollars to bet; 0 when rejected
	ExpectedValue float64
	NetEdge       float64 // edge after amortized oracle cost
	Reason        RejectReason
}

// Rejected reports whether the decision is a no-bet.
func (d SizingDecision) Rejected() bool {
	return d.Reason != RejectNone
}
