// Package screener builds each cycle's candidate pool: it filters the raw
// contract universe down to liquid, tradeable, non-duplicate candidates,
// collapses mutually-exclusive variants, and diversifies the survivors
// across topic categories before batching them for the oracle.
package screener

import (
	"regexp"
	"sort"
	"time"

	"github.com/quantfold/sibyl/internal/domain"
)

// FilterConfig holds the market-filter thresholds. The liquidity floor is
// capital-scaled so tradeability requirements track how large a typical
// bet would be: floor = max(AbsoluteFloor, Multiplier * cash *
// TypicalBetFraction), capped at FloorCeiling.
type FilterConfig struct {
	MaxDaysToClose     int
	MinTimeToClose     time.Duration
	AbsoluteFloor      float64
	FloorCeiling       float64
	Multiplier         float64
	TypicalBetFraction float64
	// VolumeFloorRatio scales the liquidity floor to obtain the traded
	// volume floor.
	VolumeFloorRatio   float64
	MaxSpread          float64
	SlowCategorySpread float64
	ExtremePrice       float64
	TargetPoolSize     int
}

// FilterResult is the outcome of one filter pass: the ordered candidate
// pool, the per-reason rejection counts, and the progressive-relaxation
// level that was needed to reach the target pool size (0 = strict).
type FilterResult struct {
	Pool      []domain.Contract
	Breakdown domain.FilterBreakdown
	Level     int
}

// junkPatterns matches recurring noise markets that are never worth an
// oracle call: intraday price ranges, repetitive dailies, scalar proxies.
// Kept as a data table so the list can grow without touching control flow.
var junkPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bprice of .* be between\b`),
	regexp.MustCompile(`(?i)\b(up or down|higher or lower)\b.*\b(today|tomorrow|this hour)\b`),
	regexp.MustCompile(`(?i)\btouch \$?[\d,.]+\b.*\bby\b`),
	regexp.MustCompile(`(?i)\b(5pm|12pm|noon|midnight) et\b`),
	regexp.MustCompile(`(?i)\bhow many (tweets|posts|times)\b`),
	regexp.MustCompile(`(?i)\btemperature in\b`),
}

// opportunisticCategories are excluded from the strict pool and folded
// back in one at a time by progressive relaxation, in this order.
var opportunisticCategories = []Category{CategoryCrypto, CategorySports}

// slowCategory tolerates wider estimated spreads: its long time horizon
// means entry slippage amortizes over a longer hold.
const slowCategory = CategoryPolitics

// Filter reduces the raw contract universe to a candidate pool.
type Filter struct {
	cfg FilterConfig
}

// NewFilter creates a Filter with the given thresholds.
func NewFilter(cfg FilterConfig) *Filter {
	return &Filter{cfg: cfg}
}

// LiquidityFloor returns the dynamic minimum liquidity for the given
// available capital.
func (f *Filter) LiquidityFloor(cash float64) float64 {
	floor := f.cfg.Multiplier * cash * f.cfg.TypicalBetFraction
	if floor < f.cfg.AbsoluteFloor {
		floor = f.cfg.AbsoluteFloor
	}
	if f.cfg.FloorCeiling > 0 && floor > f.cfg.FloorCeiling {
		floor = f.cfg.FloorCeiling
	}
	return floor
}

// EstimateSpread estimates the bid-ask spread as a step function of
// liquidity: deeper books imply tighter spreads.
func EstimateSpread(liquidity float64) float64 {
	switch {
	case liquidity >= 100_000:
		return 0.01
	case liquidity >= 50_000:
		return 0.02
	case liquidity >= 20_000:
		return 0.03
	case liquidity >= 10_000:
		return 0.05
	default:
		return 0.08
	}
}

// Apply runs the full filter over the universe. held contains contract ids
// already open as positions; recent contains contract ids still fresh in
// the recently-analyzed cache. The returned pool is ordered by traded
// volume, highest first.
func (f *Filter) Apply(
	universe []domain.Contract,
	held map[string]bool,
	recent map[string]bool,
	now time.Time,
	cash float64,
) FilterResult {
	var res FilterResult

	liqFloor := f.LiquidityFloor(cash)
	volFloor := liqFloor * f.cfg.VolumeFloorRatio
	maxHours := float64(f.cfg.MaxDaysToClose) * 24
	minHours := f.cfg.MinTimeToClose.Hours()

	// First pass: apply every per-contract rule. Survivors are split into
	// the strict pool and per-category opportunistic reserves.
	var strict []domain.Contract
	reserves := make(map[Category][]domain.Contract)

	for _, c := range universe {
		if c.EndDate == nil {
			res.Breakdown.NoEndDate++
			continue
		}
		if c.Expired(now) {
			res.Breakdown.Expired++
			continue
		}
		if !c.Active || c.Closed {
			res.Breakdown.Inactive++
			continue
		}
		hours := c.HoursToClose(now)
		if hours > maxHours {
			res.Breakdown.TooFarOut++
			continue
		}
		if hours < minHours {
			res.Breakdown.ClosingSoon++
			continue
		}
		if isJunk(c.Question) {
			res.Breakdown.JunkPattern++
			continue
		}
		if held[c.ID] {
			res.Breakdown.AlreadyHeld++
			continue
		}
		if recent[c.ID] {
			res.Breakdown.RecentlySent++
			continue
		}
		if p := c.YesPrice(); p <= f.cfg.ExtremePrice || p >= 1-f.cfg.ExtremePrice {
			// A price pinned at an extreme is a de-facto resolved market,
			// not an opportunity.
			res.Breakdown.ExtremePrice++
			continue
		}
		if c.Liquidity < liqFloor {
			res.Breakdown.LowLiquidity++
			continue
		}
		if c.Volume < volFloor {
			res.Breakdown.LowVolume++
			continue
		}

		cat := Classify(c)
		spreadCeiling := f.cfg.MaxSpread
		if cat == slowCategory {
			spreadCeiling = f.cfg.SlowCategorySpread
		}
		if EstimateSpread(c.Liquidity) > spreadCeiling {
			res.Breakdown.WideSpread++
			continue
		}

		if isOpportunistic(cat) {
			reserves[cat] = append(reserves[cat], c)
			continue
		}
		strict = append(strict, c)
	}

	sortByVolume(strict)
	res.Pool = strict

	// Progressive relaxation: fold opportunistic categories back in one at
	// a time until the pool reaches the target size. The level records how
	// far we had to loosen, for audit.
	for _, cat := range opportunisticCategories {
		if len(res.Pool) >= f.cfg.TargetPoolSize {
			break
		}
		extra := reserves[cat]
		if len(extra) == 0 {
			continue
		}
		res.Level++
		sortByVolume(extra)
		res.Pool = append(res.Pool, extra...)
	}

	return res
}

func isJunk(question string) bool {
	for _, re := range junkPatterns {
		if re.MatchString(question) {
			return true
		}
	}
	return false
}

func isOpportunistic(cat Category) bool {
	for _, c := range opportunisticCategories {
		if c == cat {
			return true
		}
	}
	return false
}

func sortByVolume(contracts []domain.Contract) {
	sort.SliceStable(contracts, func(i, j int) bool {
		return contracts[i].Volume > contracts[j].Volume
	})
}
