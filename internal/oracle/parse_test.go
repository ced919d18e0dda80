package oracle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfold/sibyl/internal/domain"
)

const replyJSON = `{
  "assessments": [
    {
      "contract_id": "mkt-1",
      "side": "YES",
      "probability": 0.72,
      "prob_low": 0.65,
      "prob_high": 0.80,
      "confidence": 75,
      "reasoning": "polls moved {sharply} last week",
      "citations": ["https://example.com/poll"],
      "cluster_id": "senate-race"
    },
    {
      "contract_id": "mkt-2",
      "side": "no",
      "probability": 0.30,
      "confidence": 62
    }
  ],
  "summary": "two opportunities"
}`

func TestParseDirectJSON(t *testing.T) {
	assessments, summary, err := Parse(replyJSON)
	require.NoError(t, err)
	require.Len(t, assessments, 2)

	a := assessments[0]
	assert.Equal(t, "mkt-1", a.ContractID)
	assert.Equal(t, domain.SideYes, a.Side)
	assert.Equal(t, 0.72, a.Probability)
	assert.Equal(t, 0.65, a.ProbLow)
	assert.Equal(t, 75, a.Confidence)
	assert.Equal(t, "senate-race", a.ClusterID)
	assert.Equal(t, []string{"https://example.com/poll"}, a.Citations)

	// Side strings are normalized case-insensitively.
	assert.Equal(t, domain.SideNo, assessments[1].Side)
	assert.Equal(t, "two opportunities", summary)
}

func TestParseFencedBlock(t *testing.T) {
	text := "Here is my analysis of the batch.\n\n```json\n" + replyJSON + "\n```\n\nLet me know if you need more detail."

	assessments, summary, err := Parse(text)
	require.NoError(t, err)
	assert.Len(t, assessments, 2)
	assert.Equal(t, "two opportunities", summary)
}

func TestParseEmbeddedObject(t *testing.T) {
	// No fence at all: the brace scanner has to find the object. The
	// reasoning field above contains braces inside a string literal, which
	// must not break the depth count.
	text := "I looked at the markets and concluded the following: " + replyJSON + " That is all."

	assessments, _, err := Parse(text)
	require.NoError(t, err)
	assert.Len(t, assessments, 2)
}

func TestParseUnknownSideBecomesNone(t *testing.T) {
	assessments, _, err := Parse(`{"assessments":[{"contract_id":"mkt-1","side":"maybe","probability":0.5}]}`)
	require.NoError(t, err)
	require.Len(t, assessments, 1)
	assert.Equal(t, domain.SideNone, assessments[0].Side)
}

func TestParseSkipsMissingContractID(t *testing.T) {
	assessments, _, err := Parse(`{"assessments":[{"side":"YES","probability":0.8},{"contract_id":"mkt-2","side":"NO","probability":0.2}]}`)
	require.NoError(t, err)
	require.Len(t, assessments, 1)
	assert.Equal(t, "mkt-2", assessments[0].ContractID)
}

func TestParseEmptyAssessments(t *testing.T) {
	assessments, summary, err := Parse(`{"assessments": [], "summary": "nothing worth betting"}`)
	require.NoError(t, err)
	assert.Empty(t, assessments)
	assert.Equal(t, "nothing worth betting", summary)
}

func TestParseFailure(t *testing.T) {
	for _, text := range []string{
		"",
		"I could not produce JSON today, sorry.",
		`{"something_else": true}`,
		`{"assessments": [`,
	} {
		_, _, err := Parse(text)
		assert.ErrorIs(t, err, domain.ErrUnparsedResponse, "input: %q", text)
	}
}
