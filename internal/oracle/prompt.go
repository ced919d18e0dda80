// Package oracle turns forecasting-oracle replies into vetted, live-price
// assessments. It owns prompt construction, defensive parsing of the
// structured-text payload, and the interpretation layer that recomputes
// edges and repairs known convention mistakes.
package oracle

import (
	"fmt"
	"strings"

	"github.com/quantfold/sibyl/internal/domain"
)

// SystemPrompt instructs the oracle to reply in the strict JSON schema the
// parser expects. Probability is always stated as P(YES) regardless of the
// recommended side; the interpreter repairs replies that get this wrong.
const SystemPrompt = `You are a quantitative analyst for binary prediction markets.
For each market below, estimate the TRUE probability that the YES outcome occurs,
decide whether there is a tradeable edge against the current price, and state your
confidence.

Respond with ONLY a JSON object in this exact schema:
{
  "assessments": [
    {
      "contract_id": "<id>",
      "side": "YES" | "NO" | "NONE",
      "probability": 0.0-1.0,
      "prob_low": 0.0-1.0,
      "prob_high": 0.0-1.0,
      "confidence": 0-100,
      "reasoning": "<one or two sentences>",
      "citations": ["<source>", ...],
      "cluster_id": "<shared id when markets are correlated or mutually exclusive, else empty>"
    }
  ],
  "summary": "<one-line overview>"
}

Rules:
- "probability" is ALWAYS the probability of YES occurring, even when you recommend NO.
- Use "NONE" when you have no edge or the market looks efficiently priced.
- Assign the same "cluster_id" to markets that cannot all resolve YES together.
- Be conservative: state confidence below 60 when your information is thin.`

// BuildPrompt renders the user message for one batch: the contracts to
// assess plus the portfolio context the oracle needs to reason about
// exposure and correlation.
func BuildPrompt(req domain.OracleRequest) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Available cash: $%.2f\n", req.AvailableCash)
	fmt.Fprintf(&b, "Record: %d wins / %d losses, total PnL $%.2f\n\n",
		req.Stats.Wins, req.Stats.Losses, req.Stats.TotalPnL)

	if len(req.OpenPositions) > 0 {
		b.WriteString("Open positions (do not recommend markets mutually exclusive with these):\n")
		for _, p := range req.OpenPositions {
			fmt.Fprintf(&b, "- %s: %s @ %.2f ($%.2f)\n", p.Question, p.Outcome, p.Price, p.Cost)
		}
		b.WriteString("\n")
	}

	b.WriteString("Markets to assess:\n")
	for _, c := range req.Contracts {
		fmt.Fprintf(&b, "\ncontract_id: %s\nquestion: %s\noutcomes: %s=%.3f, %s=%.3f\nvolume: $%.0f  liquidity: $%.0f\n",
			c.ID, c.Question,
			c.Outcomes[0], c.OutcomePrices[0],
			c.Outcomes[1], c.OutcomePrices[1],
			c.Volume, c.Liquidity,
		)
		if c.EndDate != nil {
			fmt.Fprintf(&b, "closes: %s\n", c.EndDate.UTC().Format("2006-01-02 15:04 MST"))
		}
	}

	return b.String()
}
