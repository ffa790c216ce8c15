package extract

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/DeividasMat/deal-website-sub000/internal/deal"
)

// BatchKey groups candidates that describe the same deal within one batch:
// the first capitalized multi-character title token plus the first deal
// keyword in the title.
func BatchKey(title string) string {
	token := firstCapitalizedToken(title)
	keyword := deal.FirstDealKeyword(title)
	if token == "" && keyword == "" {
		return "title:" + deal.NormalizeTitle(title)
	}
	return strings.ToLower(token) + "|" + keyword
}

func firstCapitalizedToken(title string) string {
	for _, field := range strings.Fields(title) {
		word := strings.TrimFunc(field, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsNumber(r)
		})
		word = strings.TrimSuffix(strings.TrimSuffix(word, "'s"), "’s")
		if utf8.RuneCountInString(word) < 2 {
			continue
		}
		first, _ := utf8.DecodeRuneInString(word)
		if unicode.IsUpper(first) {
			return word
		}
	}
	return ""
}

// MergeBatch keeps one candidate per BatchKey, preserving first-seen order.
// Within a group the longer summary wins; on a tie the candidate with a
// source URL wins. Attribution missing on the winner is copied from the
// candidates it replaces.
func MergeBatch(candidates []deal.Candidate) []deal.Candidate {
	if len(candidates) < 2 {
		return candidates
	}

	order := make([]string, 0, len(candidates))
	groups := make(map[string]deal.Candidate, len(candidates))
	for _, c := range candidates {
		key := BatchKey(c.Title)
		existing, ok := groups[key]
		if !ok {
			order = append(order, key)
			groups[key] = c
			continue
		}
		groups[key] = pickBatchWinner(existing, c)
	}

	out := make([]deal.Candidate, 0, len(order))
	for _, key := range order {
		out = append(out, groups[key])
	}
	return out
}

func pickBatchWinner(current, next deal.Candidate) deal.Candidate {
	winner, loser := current, next
	currentLen := len(strings.TrimSpace(current.Summary))
	nextLen := len(strings.TrimSpace(next.Summary))
	switch {
	case nextLen > currentLen:
		winner, loser = next, current
	case nextLen == currentLen && strings.TrimSpace(current.SourceURL) == "" && strings.TrimSpace(next.SourceURL) != "":
		winner, loser = next, current
	}

	if strings.TrimSpace(winner.SourceURL) == "" {
		winner.SourceURL = loser.SourceURL
	}
	if strings.TrimSpace(winner.SourceName) == "" {
		winner.SourceName = loser.SourceName
	}
	return winner
}
