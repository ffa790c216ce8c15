package dedup

import (
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/samber/lo"

	"github.com/DeividasMat/deal-website-sub000/internal/deal"
)

// TitleWords returns the distinct normalized title words of at least
// minLength runes.
func TitleWords(title string, minLength int) []string {
	words := lo.Filter(strings.Fields(deal.NormalizeTitle(title)), func(word string, _ int) bool {
		return utf8.RuneCountInString(word) >= minLength
	})
	return lo.Uniq(words)
}

// Jaccard is |a ∩ b| / |a ∪ b| over distinct elements. Two empty sets
// score 0.
func Jaccard(a, b []string) float64 {
	a, b = lo.Uniq(a), lo.Uniq(b)
	union := len(lo.Uniq(append(append([]string(nil), a...), b...)))
	if union == 0 {
		return 0
	}
	return float64(len(lo.Intersect(a, b))) / float64(union)
}

var fundNamePattern = regexp.MustCompile(`\b([A-Z][A-Za-z&.-]+(?:\s+[A-Z][A-Za-z&.-]+){0,2})\s+(?:(?:Credit|Debt|Lending|Opportunities|Income)\s+)?Fund\s+([IVX]{1,5}|\d{1,2})\b`)

var nameStopWords = lo.Associate([]string{
	"the", "and", "for", "with", "from", "into", "over", "after", "amid", "its", "new",
	"deal", "deals", "transaction", "million", "billion", "bn", "mm", "usd", "eur", "gbp",
	"provides", "provided", "secures", "secured", "closes", "closed", "raises", "raised",
	"prices", "priced", "announces", "announced", "lands", "obtains", "receives", "completes",
	"completed", "launches", "leads", "led", "arranges", "arranged", "backs", "extends",
	"upsizes", "upsized", "agrees", "signs", "amends", "inks", "wins", "taps", "commits",
	"senior", "unsecured", "term", "private", "capital", "partners", "group",
	"holdings", "management", "global", "company", "inc", "corp", "corporation", "llc",
	"ltd", "plc", "co", "lp", "fund", "funds", "final", "first", "close",
	"january", "february", "march", "april", "may", "june", "july", "august",
	"september", "october", "november", "december", "monday", "tuesday", "wednesday",
	"thursday", "friday", "saturday", "sunday",
}, func(word string) (string, struct{}) { return word, struct{}{} })

// Entities extracts the comparison entity set of an article: normalized
// currency amounts, known sponsors, fund names and capitalized party names
// from the title. Elements are prefixed by kind and sorted.
func Entities(title, summary string) []string {
	text := title + " " + summary
	var out []string
	for _, amount := range deal.FindAmounts(text) {
		out = append(out, "amt:"+strings.ToLower(amount))
	}
	for _, sponsor := range deal.FindSponsors(text) {
		out = append(out, "firm:"+sponsor)
	}
	for _, m := range fundNamePattern.FindAllStringSubmatch(text, -1) {
		out = append(out, "fund:"+strings.ToLower(m[1])+" "+strings.ToLower(m[2]))
	}
	for _, name := range titleNames(title) {
		out = append(out, "name:"+name)
	}
	out = lo.Uniq(out)
	sort.Strings(out)
	return out
}

func titleNames(title string) []string {
	var out []string
	for _, field := range strings.Fields(strings.ReplaceAll(title, "**", "")) {
		word := strings.TrimFunc(field, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsNumber(r)
		})
		word = strings.TrimSuffix(strings.TrimSuffix(word, "'s"), "’s")
		if utf8.RuneCountInString(word) < 3 {
			continue
		}
		first, _ := utf8.DecodeRuneInString(word)
		if !unicode.IsUpper(first) {
			continue
		}
		lower := strings.ToLower(word)
		if _, stop := nameStopWords[lower]; stop {
			continue
		}
		if deal.IsSponsorToken(lower) || deal.FirstDealKeyword(lower) != "" || deal.HasAmount(word) {
			continue
		}
		if deal.CanonicalCategory(lower) != "" {
			continue
		}
		out = append(out, lower)
	}
	return out
}

// SharesDealFamily reports whether both texts mention deal keywords from a
// common family (debt, fund, acquisition, securitization, rating).
func SharesDealFamily(a, b string) bool {
	fa := deal.DealFamilies(a)
	for family := range deal.DealFamilies(b) {
		if _, ok := fa[family]; ok {
			return true
		}
	}
	return false
}

func sameSource(a, b deal.Article) bool {
	if da, db := deal.URLDomain(a.SourceURL), deal.URLDomain(b.SourceURL); da != "" && da == db {
		return true
	}
	na := deal.NormalizeText(a.SourceName)
	return na != "" && na == deal.NormalizeText(b.SourceName)
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
