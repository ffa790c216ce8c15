package dedup

import (
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/DeividasMat/deal-website-sub000/internal/deal"
)

// Score is the additive survivor score of an article at time now.
func (p Policy) Score(a deal.Article, now time.Time) float64 {
	w := p.Weights
	score := p.sourceScore(a)

	titleLen := float64(utf8.RuneCountInString(strings.TrimSpace(a.Title)))
	score += math.Min(math.Floor(titleLen/10), w.TitleLengthCap)
	if deal.HasAmount(a.Title) {
		score += w.TitleAmountBonus
	}
	if deal.FirstDealKeyword(a.Title) != "" || len(deal.FindSponsors(a.Title)) > 0 {
		score += w.TitleKeywordBonus
	}

	summaryLen := float64(utf8.RuneCountInString(strings.TrimSpace(a.Summary)))
	score += math.Min(math.Floor(summaryLen/40), w.SummaryLengthCap)
	if strings.Contains(a.Summary, "**") {
		score += w.SummaryEmphasis
	}

	score += float64(a.Upvotes) * w.PerUpvote
	score += p.recencyBonus(a, now)
	return score
}

func (p Policy) sourceScore(a deal.Article) float64 {
	w := p.Weights
	switch deal.URLTier(a.SourceURL) {
	case deal.TierMajor:
		return w.URLMajor
	case deal.TierTrade:
		return w.URLTrade
	case deal.TierOther:
		if strings.HasPrefix(strings.ToLower(strings.TrimSpace(a.SourceURL)), "https://") {
			return w.URLOtherHTTPS
		}
		return w.URLOtherHTTP
	case deal.TierPaywalled:
		return w.URLPaywalled
	case deal.TierTerminal:
		return w.URLTerminal
	}

	score := w.URLNone
	switch deal.NameTier(a.SourceName) {
	case deal.TierMajor:
		score += w.NameMajor
	case deal.TierTrade:
		score += w.NameTrade
	case deal.TierOther:
		score += w.NameOther
	case deal.TierPaywalled:
		score += w.NamePaywalled
	case deal.TierTerminal:
		score += w.NameTerminal
	}
	return score
}

// recencyBonus decays linearly from RecencyMax at creation to zero at
// RecencyWindow. Unsaved articles count as brand new.
func (p Policy) recencyBonus(a deal.Article, now time.Time) float64 {
	if p.RecencyWindow <= 0 {
		return 0
	}
	created := a.CreatedAt
	if created.IsZero() {
		created = now
	}
	age := now.Sub(created)
	if age < 0 {
		age = 0
	}
	if age >= p.RecencyWindow {
		return 0
	}
	return p.Weights.RecencyMax * (1 - float64(age)/float64(p.RecencyWindow))
}

// Survivor orders two duplicates by score. Equal scores prefer a stored
// record over an unsaved one, then the lower ID.
func (p Policy) Survivor(a, b deal.Article, now time.Time) (winner, loser deal.Article) {
	sa, sb := p.Score(a, now), p.Score(b, now)
	switch {
	case sa > sb:
		return a, b
	case sb > sa:
		return b, a
	}

	switch {
	case a.ID == 0 && b.ID != 0:
		return b, a
	case b.ID == 0 && a.ID != 0:
		return a, b
	case b.ID < a.ID:
		return b, a
	default:
		return a, b
	}
}
