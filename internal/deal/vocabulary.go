package deal

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

const (
	CategoryCreditFacility = "Credit Facility"
	CategoryFundRaising    = "Fund Raising"
	CategoryMAFinancing    = "M&A Financing"
	CategorySecuritization = "Securitization"
	CategoryRatingAction   = "Rating Action"
	CategoryRefinancing    = "Refinancing"
	CategoryDirectLending  = "Direct Lending"
	CategoryOther          = "Other"
)

// Categories lists the canonical categories searched by default.
var Categories = []string{
	CategoryCreditFacility,
	CategoryFundRaising,
	CategoryMAFinancing,
	CategorySecuritization,
	CategoryRatingAction,
	CategoryRefinancing,
	CategoryDirectLending,
}

type categoryRule struct {
	category string
	pattern  *regexp.Regexp
}

// Evaluated in order; the first matching rule wins.
var categoryRules = []categoryRule{
	{CategoryRatingAction, regexp.MustCompile(`(?i)\b(rating|ratings|upgrades?|upgraded|downgrades?|downgraded|moody'?s|fitch|kbra|s&p global ratings|outlook)\b`)},
	{CategorySecuritization, regexp.MustCompile(`(?i)\b(securiti[sz]ation|securiti[sz]ed|clo|clos|cmbs|rmbs|abs|asset[- ]backed)\b`)},
	{CategoryFundRaising, regexp.MustCompile(`(?i)\b(fund ?rais(e|es|ed|ing)|final close|first close|closes? (its |a )?(\w+ )?fund|hard cap|capital commitments|raises? \S+ (for|in) (its |a )?(\w+ )?fund)\b`)},
	{CategoryMAFinancing, regexp.MustCompile(`(?i)\b(acquisitions?|acquire[sd]?|buyouts?|lbo|mergers?|m&a|take-?private|takeover)\b`)},
	{CategoryRefinancing, regexp.MustCompile(`(?i)\b(refinanc\w*|repric\w*|amend[- ]and[- ]extend|recapitali[sz]ation)\b`)},
	{CategoryCreditFacility, regexp.MustCompile(`(?i)\b(credit facility|credit facilities|revolving|revolver|term loans?|facility|facilities|asset[- ]based loan)\b`)},
	{CategoryDirectLending, regexp.MustCompile(`(?i)\b(direct lending|direct lender|unitranche|private credit|private debt|loans?|financing|debt)\b`)},
}

// InferCategory applies the keyword rules to text. Returns CategoryOther
// when nothing matches.
func InferCategory(text string) string {
	for _, rule := range categoryRules {
		if rule.pattern.MatchString(text) {
			return rule.category
		}
	}
	return CategoryOther
}

// CanonicalCategory maps a free-form label onto a canonical category, or
// returns "" when the label is not recognized.
func CanonicalCategory(label string) string {
	key := categoryKey(label)
	if key == "" {
		return ""
	}
	for _, category := range Categories {
		if categoryKey(category) == key {
			return category
		}
	}
	if key == categoryKey(CategoryOther) {
		return CategoryOther
	}
	switch key {
	case "creditfacilities", "loans", "lending":
		return CategoryCreditFacility
	case "fundraising", "fundraise", "funds":
		return CategoryFundRaising
	case "mafinancing", "ma", "acquisitionfinancing", "lbofinancing":
		return CategoryMAFinancing
	case "securitisation", "abs", "clo", "clos":
		return CategorySecuritization
	case "ratings", "ratingactions":
		return CategoryRatingAction
	case "refinancings", "repricing":
		return CategoryRefinancing
	case "privatecredit", "privatedebt":
		return CategoryDirectLending
	}
	return ""
}

func categoryKey(label string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(label) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Deal keyword families group deal vocabulary so "credit facility" and
// "financing" are recognized as the same kind of transaction.
const (
	FamilyDebt           = "debt"
	FamilyFund           = "fund"
	FamilyAcquisition    = "acquisition"
	FamilySecuritization = "securitization"
	FamilyRating         = "rating"
)

type dealKeyword struct {
	word    string
	family  string
	pattern *regexp.Regexp
}

var dealKeywords = buildDealKeywords(map[string][]string{
	FamilyDebt: {
		"credit", "facility", "facilities", "loan", "loans", "financing", "financings",
		"debt", "lending", "lender", "revolver", "revolving", "unitranche", "notes",
		"bonds", "refinancing", "refinances", "refinanced",
	},
	FamilyFund:           {"fund", "funds", "fundraise", "fundraising"},
	FamilyAcquisition:    {"acquisition", "acquires", "buyout", "merger", "takeover", "lbo"},
	FamilySecuritization: {"securitization", "securitisation", "clo", "abs", "cmbs"},
	FamilyRating:         {"rating", "upgrade", "upgrades", "downgrade", "downgrades"},
})

func buildDealKeywords(families map[string][]string) []dealKeyword {
	names := make([]string, 0, len(families))
	for family := range families {
		names = append(names, family)
	}
	sort.Strings(names)

	out := make([]dealKeyword, 0, 48)
	for _, family := range names {
		for _, word := range families[family] {
			out = append(out, dealKeyword{
				word:    word,
				family:  family,
				pattern: regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(word) + `\b`),
			})
		}
	}
	return out
}

// FirstDealKeyword returns the deal keyword that appears earliest in text,
// lowercased, or "" when none is present.
func FirstDealKeyword(text string) string {
	best := ""
	bestAt := -1
	for _, kw := range dealKeywords {
		loc := kw.pattern.FindStringIndex(text)
		if loc == nil {
			continue
		}
		if bestAt < 0 || loc[0] < bestAt || (loc[0] == bestAt && len(kw.word) > len(best)) {
			best = kw.word
			bestAt = loc[0]
		}
	}
	return best
}

// DealFamilies returns the set of keyword families present in text.
func DealFamilies(text string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, kw := range dealKeywords {
		if _, seen := out[kw.family]; seen {
			continue
		}
		if kw.pattern.MatchString(text) {
			out[kw.family] = struct{}{}
		}
	}
	return out
}

// DealKeywordSpans returns [start, end) byte offsets of every deal keyword
// in text, in order of appearance.
func DealKeywordSpans(text string) [][]int {
	var spans [][]int
	for _, kw := range dealKeywords {
		spans = append(spans, kw.pattern.FindAllStringIndex(text, -1)...)
	}
	sort.Slice(spans, func(i, j int) bool {
		if spans[i][0] != spans[j][0] {
			return spans[i][0] < spans[j][0]
		}
		return spans[i][1] > spans[j][1]
	})
	return spans
}

// Sponsors are lender, manager and bank names that identify a deal party.
var Sponsors = []string{
	"apollo", "ares", "antares", "audax", "bain capital", "bank of america",
	"barclays", "barings", "benefit street", "blackrock", "blackstone",
	"blue owl", "brookfield", "carlyle", "cerberus", "churchill", "citi",
	"citigroup", "crescent", "deutsche bank", "eqt", "fortress", "golub",
	"goldman sachs", "hayfin", "hps", "icg", "jefferies", "jpmorgan",
	"kayne anderson", "kkr", "monroe capital", "morgan stanley", "nuveen",
	"oaktree", "owl rock", "partners group", "permira", "pimco", "sixth street",
	"stonepeak", "tpg", "twin brook", "ubs", "wells fargo",
}

var sponsorPatterns = func() []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(Sponsors))
	for i, name := range Sponsors {
		out[i] = regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(name) + `\b`)
	}
	return out
}()

// FindSponsors returns the sponsor names mentioned in text, in list order.
func FindSponsors(text string) []string {
	var out []string
	for i, pattern := range sponsorPatterns {
		if pattern.MatchString(text) {
			out = append(out, Sponsors[i])
		}
	}
	return out
}

// IsSponsorToken reports whether a single lowercase word is part of a sponsor name.
func IsSponsorToken(word string) bool {
	word = strings.ToLower(strings.TrimSpace(word))
	if word == "" {
		return false
	}
	for _, name := range Sponsors {
		for _, part := range strings.Fields(name) {
			if part == word {
				return true
			}
		}
	}
	return false
}

var (
	symbolAmountPattern = regexp.MustCompile(`(?i)([$€£])\s?(\d{1,3}(?:,\d{3})+(?:\.\d+)?|\d+(?:\.\d+)?)\s?(billion|bn|b|million|mm|mn|m|thousand|k)?\b`)
	codeAmountPattern   = regexp.MustCompile(`(?i)\b(usd|eur|gbp)\s?(\d{1,3}(?:,\d{3})+(?:\.\d+)?|\d+(?:\.\d+)?)\s?(billion|bn|b|million|mm|mn|m|thousand|k)?\b`)
)

var currencyCodes = map[string]string{"usd": "$", "eur": "€", "gbp": "£"}

// AmountSpans returns byte offsets of currency amounts in text.
func AmountSpans(text string) [][]int {
	spans := symbolAmountPattern.FindAllStringIndex(text, -1)
	spans = append(spans, codeAmountPattern.FindAllStringIndex(text, -1)...)
	sort.Slice(spans, func(i, j int) bool { return spans[i][0] < spans[j][0] })
	return spans
}

// HasAmount reports whether text mentions a currency amount.
func HasAmount(text string) bool {
	return symbolAmountPattern.MatchString(text) || codeAmountPattern.MatchString(text)
}

// FindAmounts returns normalized currency amounts such as "$500m" or "€1.5b".
func FindAmounts(text string) []string {
	var out []string
	seen := make(map[string]struct{})
	add := func(symbol, number, suffix string) {
		amount := normalizeAmount(symbol, number, suffix)
		if amount == "" {
			return
		}
		if _, ok := seen[amount]; ok {
			return
		}
		seen[amount] = struct{}{}
		out = append(out, amount)
	}
	for _, m := range symbolAmountPattern.FindAllStringSubmatch(text, -1) {
		add(m[1], m[2], m[3])
	}
	for _, m := range codeAmountPattern.FindAllStringSubmatch(text, -1) {
		add(currencyCodes[strings.ToLower(m[1])], m[2], m[3])
	}
	return out
}

func normalizeAmount(symbol, number, suffix string) string {
	number = strings.ReplaceAll(number, ",", "")
	value, err := strconv.ParseFloat(number, 64)
	if err != nil || value <= 0 {
		return ""
	}

	unit := ""
	switch strings.ToLower(suffix) {
	case "billion", "bn", "b":
		unit = "b"
	case "million", "mm", "mn", "m":
		unit = "m"
	case "thousand", "k":
		unit = "k"
	default:
		switch {
		case value >= 1e9:
			value, unit = value/1e9, "b"
		case value >= 1e6:
			value, unit = value/1e6, "m"
		case value >= 1e3:
			value, unit = value/1e3, "k"
		}
	}
	if unit == "m" && value >= 1000 {
		value, unit = value/1000, "b"
	}
	return symbol + strconv.FormatFloat(value, 'f', -1, 64) + unit
}
