package search

import (
	"fmt"
	"time"
)

const dateLayout = "January 2, 2006"

var variantTemplates = []string{
	"List %[1]s announcements published on %[2]s: private credit and direct lending deals with lender, borrower, amount and source URL.",
	"Which %[1]s transactions were announced on %[2]s by private credit funds, BDCs or banks? Include amounts and the publisher link for each.",
	"Find press releases and news from %[2]s about %[1]s deals (credit facilities, unitranche loans, fund closes). Give each deal's source URL.",
}

const broadTemplate = "Summarize all private credit, direct lending and leveraged finance news published on %[2]s, including any %[1]s deals, with amounts, parties and source URLs."

// Variants returns the ordered query variants for one category.
func Variants(category string, targetDate time.Time) []string {
	day := targetDate.UTC().Format(dateLayout)
	out := make([]string, 0, len(variantTemplates))
	for _, tmpl := range variantTemplates {
		out = append(out, fmt.Sprintf(tmpl, category, day))
	}
	return out
}

// BroadQuery is issued once for each category whose variants all came back
// empty.
func BroadQuery(category string, targetDate time.Time) string {
	return fmt.Sprintf(broadTemplate, category, targetDate.UTC().Format(dateLayout))
}
