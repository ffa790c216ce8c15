package extract

import (
	"strings"

	"github.com/DeividasMat/deal-website-sub000/internal/deal"
)

const (
	minTitleLength   = 10
	minSummaryLength = 30
)

var placeholderPhrases = []string{
	"no specific",
	"no relevant",
	"no new deals",
	"no information",
	"no deals",
	"no data",
	"no results",
	"no_results",
	"no announcements",
	"no transactions",
	"not available",
	"not provided",
	"not found",
	"unable to find",
	"could not find",
	"couldn't find",
	"none reported",
	"nothing to report",
	"placeholder",
	"lorem ipsum",
	"example deal",
	"[company",
	"[lender",
	"xyz corp",
	"n/a",
}

// IsPlaceholder reports whether text is an empty-result phrasing rather than
// a description of a transaction.
func IsPlaceholder(text string) bool {
	lower := strings.ToLower(strings.TrimSpace(text))
	if lower == "" {
		return true
	}
	for _, phrase := range placeholderPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

func usable(c deal.Candidate) bool {
	title := strings.TrimSpace(c.Title)
	summary := strings.TrimSpace(c.Summary)
	if len(title) < minTitleLength || len(summary) < minSummaryLength {
		return false
	}
	return !IsPlaceholder(title) && !IsPlaceholder(summary)
}

func filterPlaceholders(candidates []deal.Candidate) []deal.Candidate {
	out := candidates[:0]
	for _, c := range candidates {
		if usable(c) {
			out = append(out, c)
		}
	}
	return out
}
