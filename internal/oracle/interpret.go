package oracle

import (
	"log/slog"

	"github.com/quantfold/sibyl/internal/domain"
)

// InterpreterConfig bounds what the interpreter will accept.
type InterpreterConfig struct {
	// EdgeCeiling discards assessments whose recomputed edge is
	// implausibly large: a stale price or a hallucination, not an
	// opportunity.
	EdgeCeiling float64
}

// DropReason explains why an individual assessment was discarded before
// sizing.
type DropReason string

const (
	DropUnknownContract  DropReason = "unknown_contract"
	DropNoRecommendation DropReason = "no_recommendation"
	DropNonPositiveEdge  DropReason = "non_positive_edge"
	DropEdgeTooLarge     DropReason = "edge_too_large"
)

// Drop records one discarded assessment for the cycle audit.
type Drop struct {
	ContractID string
	Reason     DropReason
}

// Interpreter normalizes and sanity-checks parsed assessments against the
// live prices from this cycle's candidate pool.
type Interpreter struct {
	cfg    InterpreterConfig
	logger *slog.Logger
}

// NewInterpreter creates an Interpreter.
func NewInterpreter(cfg InterpreterConfig, logger *slog.Logger) *Interpreter {
	return &Interpreter{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "interpreter")),
	}
}

// Interpret scores each assessment against the live contract snapshot from
// the pool. The oracle may have been constructed against prices that moved
// while it was thinking, so the edge is always recomputed from the pool's
// price, never taken from the reply. Returns the surviving scored
// assessments and a drop record per discard.
func (it *Interpreter) Interpret(assessments []domain.Assessment, pool map[string]domain.Contract) ([]domain.ScoredAssessment, []Drop) {
	scored := make([]domain.ScoredAssessment, 0, len(assessments))
	var drops []Drop

	for _, a := range assessments {
		contract, ok := pool[a.ContractID]
		if !ok {
			drops = append(drops, Drop{a.ContractID, DropUnknownContract})
			continue
		}
		if a.Side == domain.SideNone {
			drops = append(drops, Drop{a.ContractID, DropNoRecommendation})
			continue
		}

		a = fixConvention(a)
		a.Probability = clamp01(a.Probability)

		livePrice := contract.PriceFor(a.Side.OutcomeIndex())
		edge := sideProbability(a) - livePrice

		if edge <= 0 {
			// The recommended side contradicts the live price direction.
			drops = append(drops, Drop{a.ContractID, DropNonPositiveEdge})
			continue
		}
		if it.cfg.EdgeCeiling > 0 && edge > it.cfg.EdgeCeiling {
			it.logger.Warn("edge above ceiling, likely stale price or hallucination",
				slog.String("contract_id", a.ContractID),
				slog.Float64("edge", edge),
			)
			drops = append(drops, Drop{a.ContractID, DropEdgeTooLarge})
			continue
		}

		scored = append(scored, domain.ScoredAssessment{
			Assessment: a,
			Contract:   contract,
			LivePrice:  livePrice,
			Edge:       edge,
		})
	}

	return scored, drops
}

// fixConvention repairs the recurring probability-convention mistake:
// the schema defines probability as P(YES), but when the recommended side
// is NO and the reported probability exceeds 0.5 the oracle almost
// certainly meant "probability my recommendation is correct". Flip it,
// and flip the optimistic/pessimistic bounds symmetrically.
func fixConvention(a domain.Assessment) domain.Assessment {
	if a.Side == domain.SideNo && a.Probability > 0.5 {
		a.Probability = 1 - a.Probability
		a.ProbLow, a.ProbHigh = 1-a.ProbHigh, 1-a.ProbLow
	}
	return a
}

// sideProbability returns the estimated probability that the recommended
// side wins.
func sideProbability(a domain.Assessment) float64 {
	if a.Side == domain.SideNo {
		return 1 - a.Probability
	}
	return a.Probability
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
