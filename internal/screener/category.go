package screener

import (
	"regexp"
	"strings"

	"github.com/quantfold/sibyl/internal/domain"
)

// Category is the fixed topic taxonomy used for diversification.
type Category string

const (
	CategoryPolitics      Category = "politics"
	CategoryGeopolitics   Category = "geopolitics"
	CategoryEconomy       Category = "economy"
	CategoryScience       Category = "science"
	CategoryCrypto        Category = "crypto"
	CategorySports        Category = "sports"
	CategoryEntertainment Category = "entertainment"
	CategoryOther         Category = "other"
)

// categoryPriority is the fixed round-robin order used by the
// diversifier. Slower-moving, higher-conviction topics come first.
var categoryPriority = []Category{
	CategoryPolitics,
	CategoryGeopolitics,
	CategoryEconomy,
	CategoryScience,
	CategoryEntertainment,
	CategoryCrypto,
	CategorySports,
	CategoryOther,
}

// categoryRule maps question-text patterns to a taxonomy category. The
// table is ordered: the first matching rule wins.
type categoryRule struct {
	cat      Category
	patterns []*regexp.Regexp
}

var categoryRules = []categoryRule{
	{CategoryCrypto, compileAll(
		`(?i)\b(bitcoin|btc|ethereum|eth|solana|crypto|token|stablecoin|airdrop)\b`,
	)},
	{CategorySports, compileAll(
		`(?i)\b(nba|nfl|mlb|nhl|ufc|premier league|champions league|super bowl|world cup|grand slam|f1)\b`,
		`(?i)\b(win the .* (game|match|series|title)|score .* points)\b`,
	)},
	{CategoryGeopolitics, compileAll(
		`(?i)\b(ceasefire|invasion|nato|sanctions|treaty|missile|nuclear deal|border)\b`,
		`(?i)\b(ukraine|russia|taiwan|iran|israel|gaza|north korea)\b`,
	)},
	{CategoryPolitics, compileAll(
		`(?i)\b(election|president|senate|congress|parliament|prime minister|governor|nominee|impeach|cabinet|veto)\b`,
		`(?i)\b(approval rating|executive order|supreme court)\b`,
	)},
	{CategoryEconomy, compileAll(
		`(?i)\b(fed|interest rate|inflation|cpi|gdp|recession|unemployment|tariff|s&p|nasdaq|treasury)\b`,
	)},
	{CategoryScience, compileAll(
		`(?i)\b(spacex|nasa|launch|vaccine|fda|ai model|openai|climate|hurricane|earthquake)\b`,
	)},
	{CategoryEntertainment, compileAll(
		`(?i)\b(oscar|grammy|emmy|box office|album|netflix|taylor swift|celebrity)\b`,
	)},
}

// categoryAliases normalize upstream metadata tags onto the taxonomy.
var categoryAliases = map[string]Category{
	"politics":      CategoryPolitics,
	"us-politics":   CategoryPolitics,
	"geopolitics":   CategoryGeopolitics,
	"world":         CategoryGeopolitics,
	"economy":       CategoryEconomy,
	"economics":     CategoryEconomy,
	"finance":       CategoryEconomy,
	"business":      CategoryEconomy,
	"science":       CategoryScience,
	"tech":          CategoryScience,
	"technology":    CategoryScience,
	"crypto":        CategoryCrypto,
	"sports":        CategorySports,
	"entertainment": CategoryEntertainment,
	"pop-culture":   CategoryEntertainment,
}

// Classify assigns a contract to a taxonomy category. An upstream
// metadata tag takes precedence over question-text pattern matching.
func Classify(c domain.Contract) Category {
	if tag := strings.ToLower(strings.TrimSpace(c.Category)); tag != "" {
		if cat, ok := categoryAliases[tag]; ok {
			return cat
		}
	}
	for _, rule := range categoryRules {
		for _, re := range rule.patterns {
			if re.MatchString(c.Question) {
				return rule.cat
			}
		}
	}
	return CategoryOther
}

func compileAll(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, regexp.MustCompile(p))
	}
	return out
}
