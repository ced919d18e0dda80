package screener

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/quantfold/sibyl/internal/domain"
)

func TestClassifyByQuestionText(t *testing.T) {
	cases := []struct {
		question string
		want     Category
	}{
		{"Will Bitcoin close above $100,000 this month?", CategoryCrypto},
		{"Will the Chiefs win the Super Bowl?", CategorySports},
		{"Will a ceasefire hold through April?", CategoryGeopolitics},
		{"Will the senate confirm the nominee?", CategoryPolitics},
		{"Will the Fed cut the interest rate in June?", CategoryEconomy},
		{"Will SpaceX launch Starship before July?", CategoryScience},
		{"Will the film win Best Picture at the Oscars?", CategoryEntertainment},
		{"Will it rain on the parade?", CategoryOther},
	}
	for _, c := range cases {
		got := Classify(domain.Contract{Question: c.question})
		assert.Equal(t, c.want, got, c.question)
	}
}

func TestClassifyUpstreamTagWins(t *testing.T) {
	// The metadata tag takes precedence over text matching.
	c := domain.Contract{
		Question: "Will Bitcoin adoption change sanctions policy?",
		Category: "World",
	}
	assert.Equal(t, CategoryGeopolitics, Classify(c))
}

func TestClassifyUnknownTagFallsBackToText(t *testing.T) {
	c := domain.Contract{
		Question: "Will Ethereum flip Bitcoin by market cap?",
		Category: "weird-upstream-tag",
	}
	assert.Equal(t, CategoryCrypto, Classify(c))
}
