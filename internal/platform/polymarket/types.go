package polymarket

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/quantfold/sibyl/internal/domain"
)

// flexBool unmarshals from JSON bool or string ("true"/"false"): the Gamma
// API is inconsistent about which it sends.
type flexBool bool

func (f *flexBool) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = flexBool(b)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*f = flexBool(strings.EqualFold(s, "true") || s == "1")
	return nil
}

// flexFloat unmarshals from JSON number or numeric string. Volume and
// liquidity arrive as strings on some endpoints and numbers on others.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*f = flexFloat(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*f = 0
		return nil
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*f = flexFloat(n)
	return nil
}

// APIMarket represents a market as returned by the Polymarket Gamma API.
type APIMarket struct {
	ID              string    `json:"id"`
	Question        string    `json:"question"`
	Slug            string    `json:"slug"`
	Active          flexBool  `json:"active"`
	Closed          flexBool  `json:"closed"`
	AcceptingOrders flexBool  `json:"acceptingOrders"`
	Outcomes        string    `json:"outcomes"`      // JSON-encoded, e.g. "[\"Yes\",\"No\"]"
	OutcomePrices   string    `json:"outcomePrices"` // JSON-encoded, e.g. "[\"0.52\",\"0.48\"]"
	Volume          flexFloat `json:"volume"`
	Liquidity       flexFloat `json:"liquidity"`
	EndDateISO      string    `json:"endDateIso"`
	EndDate         string    `json:"endDate"`
	Category        string    `json:"category"`
}

// ToContract converts the API payload to a domain.Contract snapshot.
// Markets with more than two outcomes keep only the first two; the decision
// pipeline is binary-only and later filter stages reject anything that does
// not price to roughly $1 across both sides.
func (m *APIMarket) ToContract(fetchedAt time.Time) domain.Contract {
	c := domain.Contract{
		ID:              m.ID,
		Question:        m.Question,
		Slug:            m.Slug,
		Volume:          float64(m.Volume),
		Liquidity:       float64(m.Liquidity),
		Active:          bool(m.Active),
		Closed:          bool(m.Closed),
		AcceptingOrders: bool(m.AcceptingOrders),
		Category:        m.Category,
		FetchedAt:       fetchedAt,
	}

	var outcomes []string
	if err := json.Unmarshal([]byte(m.Outcomes), &outcomes); err == nil {
		for i := 0; i < len(outcomes) && i < 2; i++ {
			c.Outcomes[i] = outcomes[i]
		}
	}

	var prices []string
	if err := json.Unmarshal([]byte(m.OutcomePrices), &prices); err == nil {
		for i := 0; i < len(prices) && i < 2; i++ {
			if p, err := strconv.ParseFloat(prices[i], 64); err == nil {
				c.OutcomePrices[i] = p
			}
		}
	}

	endDate := m.EndDateISO
	if endDate == "" {
		endDate = m.EndDate
	}
	if endDate != "" {
		if t, err := time.Parse(time.RFC3339, endDate); err == nil {
			c.EndDate = &t
		} else if t, err := time.Parse("2006-01-02", endDate); err == nil {
			c.EndDate = &t
		}
	}

	return c
}
