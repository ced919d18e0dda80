// Package sizing converts a vetted assessment into a capital-constrained
// bet amount using fractional Kelly with hard safety caps. Size is a pure
// function: identical inputs always produce the identical decision, and
// nothing here touches storage or the network.
package sizing

import (
	"github.com/shopspring/decimal"

	"github.com/quantfold/sibyl/internal/domain"
)

// Config holds the sizing thresholds and caps.
type Config struct {
	// KellyFraction scales the raw Kelly stake down (0.25 = quarter-Kelly)
	// to reduce variance.
	KellyFraction float64
	// BankrollCap is the hard ceiling on any single bet as a fraction of
	// available cash.
	BankrollCap float64
	// MinOrder is the venue's minimum order size in dollars.
	MinOrder float64
	// ConfidenceFloor rejects assessments the oracle itself is unsure of.
	ConfidenceFloor int
	// MinPrice / MaxPrice bound the executable band: below MinPrice the
	// contract is a lottery ticket, above MaxPrice there is no upside left.
	MinPrice float64
	MaxPrice float64
	// MinNetEdge is the minimum edge that must survive after amortizing
	// the oracle's API cost over the bet.
	MinNetEdge float64
	// MinReturnPct rejects bets whose expected percentage return is
	// negligible even when the edge is technically positive.
	MinReturnPct float64
}

// Size turns one scored assessment into a sizing decision. amortizedCost
// is this bet's share of the cycle's oracle API cost. The returned
// decision always satisfies 0 <= Amount <= min(cash, cash*BankrollCap).
func Size(cfg Config, a domain.ScoredAssessment, cash, amortizedCost float64) domain.SizingDecision {
	d := domain.SizingDecision{
		OutcomeIndex: a.Side.OutcomeIndex(),
		EntryPrice:   a.LivePrice,
	}

	if a.Side == domain.SideNone {
		d.Reason = domain.RejectNoRecommendation
		return d
	}
	if cash < cfg.MinOrder {
		d.Reason = domain.RejectInsufficientCash
		return d
	}
	if a.Confidence < cfg.ConfidenceFloor {
		d.Reason = domain.RejectLowConfidence
		return d
	}

	price := a.LivePrice
	if price < cfg.MinPrice {
		d.Reason = domain.RejectPriceTooLow
		return d
	}
	if price > cfg.MaxPrice {
		d.Reason = domain.RejectPriceTooHigh
		return d
	}

	// Kelly: b is the net odds a winning dollar returns, p the estimated
	// probability the recommended side wins.
	p := sideProbability(a)
	q := 1 - p
	b := (1 - price) / price
	fRaw := (p*b - q) / b
	if fRaw <= 0 {
		d.Reason = domain.RejectNoKellyEdge
		return d
	}
	d.KellyRaw = fRaw

	fCapped := fRaw * cfg.KellyFraction
	if fCapped > cfg.BankrollCap {
		fCapped = cfg.BankrollCap
	}
	d.KellyCapped = fCapped

	amount := fCapped * cash
	if amount < cfg.MinOrder {
		d.Reason = domain.RejectBelowMinOrder
		return d
	}

	// Net edge: the raw edge minus the oracle cost amortized over this
	// stake. A big model bill on a small bet can eat the whole edge.
	netEdge := a.Edge - amortizedCost/amount
	d.NetEdge = netEdge
	if netEdge < cfg.MinNetEdge {
		d.Reason = domain.RejectNetEdgeTooSmall
		return d
	}

	ev := expectedValue(p, price, amount, amortizedCost)
	if ev/amount < cfg.MinReturnPct {
		d.Reason = domain.RejectReturnNegligible
		return d
	}

	// Floor to the currency's minimum unit, then re-apply the bankroll
	// ceiling as a last safety check.
	amount = floorCents(amount)
	if ceiling := floorCents(cfg.BankrollCap * cash); amount > ceiling {
		amount = ceiling
	}
	if amount < cfg.MinOrder {
		d.Reason = domain.RejectBelowMinOrder
		return d
	}

	d.Amount = amount
	d.ExpectedValue = expectedValue(p, price, amount, amortizedCost)
	return d
}

// expectedValue is p * profit_if_correct - (1-p) * amount - amortizedCost,
// where a winning share pays out $1.
func expectedValue(p, price, amount, amortizedCost float64) float64 {
	profit := amount * (1/price - 1)
	return p*profit - (1-p)*amount - amortizedCost
}

func sideProbability(a domain.ScoredAssessment) float64 {
	if a.Side == domain.SideNo {
		return 1 - a.Probability
	}
	return a.Probability
}

func floorCents(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).RoundFloor(2).Float64()
	return f
}
