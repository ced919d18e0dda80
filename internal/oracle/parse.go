package oracle

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/quantfold/sibyl/internal/domain"
)

// payload is the strict wire schema of an oracle reply.
type payload struct {
	Assessments []assessmentPayload `json:"assessments"`
	Summary     string              `json:"summary"`
}

type assessmentPayload struct {
	ContractID  string   `json:"contract_id"`
	Side        string   `json:"side"`
	Probability float64  `json:"probability"`
	ProbLow     float64  `json:"prob_low"`
	ProbHigh    float64  `json:"prob_high"`
	Confidence  int      `json:"confidence"`
	Reasoning   string   `json:"reasoning"`
	Citations   []string `json:"citations"`
	ClusterID   string   `json:"cluster_id"`
}

var fencedBlock = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")

// Parse decodes the oracle's structured-text reply into assessments and a
// textual summary. It tries three strategies in order: direct JSON decode,
// fenced-code-block extraction, and brace-counting extraction of the
// largest well-formed object containing an "assessments" key. When all
// three fail it returns domain.ErrUnparsedResponse; the cycle records
// zero assessments with an unparsed-response note rather than aborting.
func Parse(text string) ([]domain.Assessment, string, error) {
	candidates := []string{strings.TrimSpace(text)}

	if m := fencedBlock.FindStringSubmatch(text); m != nil {
		candidates = append(candidates, m[1])
	}
	if obj := largestObject(text); obj != "" {
		candidates = append(candidates, obj)
	}

	for _, cand := range candidates {
		var p payload
		if err := json.Unmarshal([]byte(cand), &p); err != nil {
			continue
		}
		if p.Assessments == nil {
			continue
		}
		return toDomain(p), p.Summary, nil
	}

	return nil, "", fmt.Errorf("oracle: decode reply (%d bytes): %w", len(text), domain.ErrUnparsedResponse)
}

func toDomain(p payload) []domain.Assessment {
	out := make([]domain.Assessment, 0, len(p.Assessments))
	for _, a := range p.Assessments {
		if a.ContractID == "" {
			continue
		}
		out = append(out, domain.Assessment{
			ContractID:  a.ContractID,
			Side:        normalizeSide(a.Side),
			Probability: a.Probability,
			ProbLow:     a.ProbLow,
			ProbHigh:    a.ProbHigh,
			Confidence:  a.Confidence,
			Reasoning:   a.Reasoning,
			Citations:   a.Citations,
			ClusterID:   a.ClusterID,
		})
	}
	return out
}

func normalizeSide(s string) domain.Side {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "YES", "Y":
		return domain.SideYes
	case "NO", "N":
		return domain.SideNo
	default:
		return domain.SideNone
	}
}

// largestObject scans text for top-level balanced {...} spans and returns
// the longest one that mentions the "assessments" key. String literals are
// honoured so braces inside reasoning text do not break the count.
func largestObject(text string) string {
	var best string

	for start := 0; start < len(text); start++ {
		if text[start] != '{' {
			continue
		}
		depth := 0
		inString := false
		escaped := false
		for i := start; i < len(text); i++ {
			ch := text[i]
			if inString {
				switch {
				case escaped:
					escaped = false
				case ch == '\\':
					escaped = true
				case ch == '"':
					inString = false
				}
				continue
			}
			switch ch {
			case '"':
				inString = true
			case '{':
				depth++
			case '}':
				depth--
				if depth == 0 {
					span := text[start : i+1]
					if strings.Contains(span, `"assessments"`) && len(span) > len(best) {
						best = span
					}
					// Resume the outer scan after this span.
					start = i
					i = len(text)
				}
			}
		}
	}
	return best
}
