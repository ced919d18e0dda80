package sizing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfold/sibyl/internal/domain"
)

func testConfig() Config {
	return Config{
		KellyFraction:   0.25,
		BankrollCap:     0.10,
		MinOrder:        1.0,
		ConfidenceFloor: 60,
		MinPrice:        0.05,
		MaxPrice:        0.95,
		MinNetEdge:      0.02,
		MinReturnPct:    0.005,
	}
}

func yesAt(probability, livePrice float64, confidence int) domain.ScoredAssessment {
	return domain.ScoredAssessment{
		Assessment: domain.Assessment{
			Side:        domain.SideYes,
			Probability: probability,
			Confidence:  confidence,
		},
		LivePrice: livePrice,
		Edge:      probability - livePrice,
	}
}

func TestSizeQuarterKelly(t *testing.T) {
	// p=0.60 at even money: raw Kelly 0.20, quarter-Kelly 0.05.
	d := Size(testConfig(), yesAt(0.60, 0.50, 75), 1000, 0)

	require.False(t, d.Rejected())
	assert.Equal(t, 0, d.OutcomeIndex)
	assert.Equal(t, 0.50, d.EntryPrice)
	assert.InDelta(t, 0.20, d.KellyRaw, 1e-9)
	assert.InDelta(t, 0.05, d.KellyCapped, 1e-9)
	assert.Equal(t, 50.0, d.Amount)
	assert.InDelta(t, 0.10, d.NetEdge, 1e-9)
	// EV: 0.6*50 won minus 0.4*50 lost.
	assert.InDelta(t, 10.0, d.ExpectedValue, 1e-9)
}

func TestSizeNoSideUsesComplementProbability(t *testing.T) {
	a := domain.ScoredAssessment{
		Assessment: domain.Assessment{
			Side:        domain.SideNo,
			Probability: 0.30, // P(YES); the NO side wins with 0.70
			Confidence:  70,
		},
		LivePrice: 0.60,
		Edge:      0.10,
	}

	d := Size(testConfig(), a, 1000, 0)
	require.False(t, d.Rejected())
	assert.Equal(t, 1, d.OutcomeIndex)
	// b = 0.4/0.6, fRaw = (0.7*b - 0.3)/b = 0.25
	assert.InDelta(t, 0.25, d.KellyRaw, 1e-9)
	assert.InDelta(t, 0.0625, d.KellyCapped, 1e-9)
	assert.Equal(t, 62.5, d.Amount)
}

func TestSizeBankrollCap(t *testing.T) {
	// p=0.90 at even money: raw Kelly 0.80, quarter-Kelly 0.20, capped
	// at a tenth of the bankroll.
	d := Size(testConfig(), yesAt(0.90, 0.50, 90), 1000, 0)

	require.False(t, d.Rejected())
	assert.InDelta(t, 0.80, d.KellyRaw, 1e-9)
	assert.InDelta(t, 0.10, d.KellyCapped, 1e-9)
	assert.Equal(t, 100.0, d.Amount)
}

func TestSizeFloorsToWholeCents(t *testing.T) {
	d := Size(testConfig(), yesAt(0.60, 0.50, 75), 333.33, 0)

	require.False(t, d.Rejected())
	// 0.05 * 333.33 = 16.6665, floored to 16.66.
	assert.Equal(t, 16.66, d.Amount)
}

func TestSizeNetEdgeAmortization(t *testing.T) {
	// The same bet that passes cost-free fails once its share of the
	// oracle bill eats the edge: 0.10 - 4.50/50 = 0.01 < 0.02.
	d := Size(testConfig(), yesAt(0.60, 0.50, 75), 1000, 4.50)

	require.True(t, d.Rejected())
	assert.Equal(t, domain.RejectNetEdgeTooSmall, d.Reason)
	assert.InDelta(t, 0.01, d.NetEdge, 1e-9)
	assert.Equal(t, 0.0, d.Amount)
}

func TestSizeRejections(t *testing.T) {
	cfg := testConfig()

	cases := []struct {
		name      string
		a         domain.ScoredAssessment
		cash      float64
		amortized float64
		want      domain.RejectReason
	}{
		{"no recommendation", domain.ScoredAssessment{Assessment: domain.Assessment{Side: domain.SideNone}}, 1000, 0, domain.RejectNoRecommendation},
		{"insufficient cash", yesAt(0.60, 0.50, 75), 0.50, 0, domain.RejectInsufficientCash},
		{"low confidence", yesAt(0.60, 0.50, 50), 1000, 0, domain.RejectLowConfidence},
		{"price too low", yesAt(0.20, 0.03, 75), 1000, 0, domain.RejectPriceTooLow},
		{"price too high", yesAt(0.99, 0.97, 75), 1000, 0, domain.RejectPriceTooHigh},
		{"no kelly edge", yesAt(0.40, 0.50, 75), 1000, 0, domain.RejectNoKellyEdge},
		{"below min order", yesAt(0.60, 0.50, 75), 10, 0, domain.RejectBelowMinOrder},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := Size(cfg, tc.a, tc.cash, tc.amortized)
			assert.Equal(t, tc.want, d.Reason)
			assert.True(t, d.Rejected())
			assert.Equal(t, 0.0, d.Amount)
		})
	}
}

func TestSizeReturnNegligible(t *testing.T) {
	// A thin edge with a nonzero oracle bill: net edge survives a zero
	// floor but the expected percentage return does not clear the bar.
	cfg := testConfig()
	cfg.MinNetEdge = 0
	cfg.MinReturnPct = 0.05

	// p=0.52 at even money, cash 10000 -> amount 100. Expected return
	// per dollar is 0.04 - 0.01 = 0.03.
	d := Size(cfg, yesAt(0.52, 0.50, 75), 10_000, 1.0)

	require.True(t, d.Rejected())
	assert.Equal(t, domain.RejectReturnNegligible, d.Reason)
}

func TestSizeDeterministic(t *testing.T) {
	a := yesAt(0.63, 0.48, 80)
	first := Size(testConfig(), a, 812.77, 0.42)
	second := Size(testConfig(), a, 812.77, 0.42)
	assert.Equal(t, first, second)
}
