package screener

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfold/sibyl/internal/domain"
)

func TestClusterKeyStripsNumbers(t *testing.T) {
	cases := []struct {
		question string
		want     string
	}{
		{"Will Bitcoin reach $100,000 by March 31?", "will bitcoin reach $# by march #?"},
		{"Will Bitcoin reach $90,000 by March 31?", "will bitcoin reach $# by march #?"},
		{"Will inflation exceed 3.5% in 2026?", "will inflation exceed # in #?"},
		{"Will  extra   spaces collapse?", "will extra spaces collapse?"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, ClusterKey(c.question), c.question)
	}
}

func TestDedupPoolKeepsFirstPerCluster(t *testing.T) {
	pool := []domain.Contract{
		{ID: "a", Question: "Will Bitcoin reach $100,000 by June 30?", Volume: 900},
		{ID: "b", Question: "Will Bitcoin reach $90,000 by June 30?", Volume: 500},
		{ID: "c", Question: "Will the senate pass the budget?", Volume: 300},
	}

	out := DedupPool(pool)
	require.Len(t, out, 2)
	assert.Equal(t, "a", out[0].ID)
	assert.Equal(t, "c", out[1].ID)
}

func TestExcludeHeldClusters(t *testing.T) {
	pool := []domain.Contract{
		{ID: "a", Question: "Will Bitcoin reach $100,000 by June 30?"},
		{ID: "b", Question: "Will the senate pass the budget?"},
	}
	held := map[string]bool{
		ClusterKey("Will Bitcoin reach $120,000 by June 30?"): true,
	}

	out, excluded := ExcludeHeldClusters(pool, held)
	require.Len(t, out, 1)
	assert.Equal(t, "b", out[0].ID)
	assert.Equal(t, 1, excluded)

	out, excluded = ExcludeHeldClusters(pool, nil)
	assert.Len(t, out, 2)
	assert.Equal(t, 0, excluded)
}

func scoredFor(id, question, clusterID string, edge float64, confidence int) domain.ScoredAssessment {
	return domain.ScoredAssessment{
		Assessment: domain.Assessment{
			ContractID: id,
			ClusterID:  clusterID,
			Confidence: confidence,
		},
		Contract: domain.Contract{ID: id, Question: question},
		Edge:     edge,
	}
}

func TestDedupAssessedByOracleCluster(t *testing.T) {
	scored := []domain.ScoredAssessment{
		scoredFor("a", "Will candidate A win the primary?", "primary-race", 0.08, 70),
		scoredFor("b", "Will candidate B win the primary?", "primary-race", 0.15, 60),
		scoredFor("c", "Will GDP growth beat the forecast?", "", 0.05, 80),
	}

	out := DedupAssessed(scored)
	require.Len(t, out, 2)
	// Largest absolute edge wins the shared oracle cluster.
	assert.Equal(t, "b", out[0].ContractID)
	assert.Equal(t, "c", out[1].ContractID)
}

func TestDedupAssessedFallsBackToTextKey(t *testing.T) {
	scored := []domain.ScoredAssessment{
		scoredFor("a", "Will Bitcoin reach $100,000 by June 30?", "", 0.10, 65),
		scoredFor("b", "Will Bitcoin reach $90,000 by June 30?", "", 0.10, 80),
	}

	out := DedupAssessed(scored)
	require.Len(t, out, 1)
	// Equal edge falls through to confidence.
	assert.Equal(t, "b", out[0].ContractID)
}

func TestDedupAssessedPreservesFirstSeenOrder(t *testing.T) {
	scored := []domain.ScoredAssessment{
		scoredFor("a", "Will the fed cut the interest rate?", "", 0.04, 60),
		scoredFor("b", "Will the NBA finals go to seven games?", "", 0.12, 60),
		scoredFor("c", "Will the fed cut the interest rate?", "", 0.09, 60),
	}

	out := DedupAssessed(scored)
	require.Len(t, out, 2)
	assert.Equal(t, "c", out[0].ContractID)
	assert.Equal(t, "b", out[1].ContractID)
}
