package domain

import "time"

// Contract is a binary-outcome prediction-market instrument. It is an
// immutable snapshot taken at fetch time: the decision pipeline only reads
// it, and prices may already have moved by the time the oracle replies.
type Contract struct {
	ID              string
	Question        string
	Slug            string
	Outcomes        [2]string  // e.g. ["Yes","No"]
	OutcomePrices   [2]float64 // implied probabilities, each in (0,1)
	Volume          float64
	Liquidity       float64
	EndDate         *time.Time
	Active          bool
	Closed          bool
	AcceptingOrders bool
	Category        string // upstream tag; may be empty
	FetchedAt       time.Time
}

// YesPrice returns the market-implied probability of the first outcome.
func (c Contract) YesPrice() float64 {
	return c.OutcomePrices[0]
}

// PriceFor returns the live price of the outcome at index idx. Out-of-range
// indexes return 0.
func (c Contract) PriceFor(idx int) float64 {
	if idx < 0 || idx >= len(c.OutcomePrices) {
		return 0
	}
	return c.OutcomePrices[idx]
}

// HoursToClose returns the number of hours until the contract's end date,
// or -1 when no end date is set.
func (c Contract) HoursToClose(now time.Time) float64 {
	if c.EndDate == nil {
		return -1
	}
	return c.EndDate.Sub(now).Hours()
}

// MaxPrice returns the highest outcome price.
func (c Contract) MaxPrice() float64 {
	if c.OutcomePrices[0] >= c.OutcomePrices[1] {
		return c.OutcomePrices[0]
	}
	return c.OutcomePrices[1]
}

// Expired reports whether the contract's end date has passed.
func (c Contract) Expired(now time.Time) bool {
	return c.EndDate != nil && !c.EndDate.After(now)
}
