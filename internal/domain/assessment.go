package domain

// Side is the outcome side the oracle recommends taking.
type Side string

const (
	SideYes  Side = "YES"
	SideNo   Side = "NO"
	SideNone Side = "NONE" // no recommendation
)

// OutcomeIndex maps the recommended side to the contract outcome index.
// SideNone maps to -1.
func (s Side) OutcomeIndex() int {
	switch s {
	case SideYes:
		return 0
	case SideNo:
		return 1
	default:
		return -1
	}
}

// Assessment is the oracle's opinion on a single contract. Probability is
// always the estimated probability that the YES outcome occurs, regardless
// of the recommended side; the interpreter repairs replies that violate
// this convention. Assessments are ephemeral: they are consumed by the
// interpreter and sizing engine within the same cycle.
type Assessment struct {
	ContractID  string
	Side        Side
	Probability float64 // estimated P(YES)
	ProbLow     float64 // pessimistic bound on P(YES)
	ProbHigh    float64 // optimistic bound on P(YES)
	Confidence  int     // 0-100
	Reasoning   string
	Citations   []string
	ClusterID   string // oracle-assigned correlation group; may be empty
}

// ScoredAssessment is an assessment after interpretation: the edge has been
// recomputed against the live price from this cycle's candidate pool.
type ScoredAssessment struct {
	Assessment
	Contract  Contract
	LivePrice float64 // live price of the recommended side
	Edge      float64 // Probability-vs-live-price edge for the recommended side
}
