package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/DeividasMat/deal-website-sub000/internal/deal"
)

var (
	bareURLPattern      = regexp.MustCompile(`https?://[^\s<>"'\)\]]+`)
	markdownLinkPattern = regexp.MustCompile(`\[([^\]]+)\]\((https?://[^)\s]+)\)`)
)

var ignoredURLHosts = []string{
	"google.com",
	"bing.com",
	"duckduckgo.com",
	"perplexity.ai",
	"t.co",
}

// CollectURLs returns the absolute http(s) URLs mentioned in text, in order,
// including href targets of any HTML anchors.
func CollectURLs(text string) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(raw string) {
		raw = strings.TrimRight(strings.TrimSpace(raw), ".,;:!?*")
		key := deal.URLKey(raw)
		if key == "" {
			return
		}
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		out = append(out, raw)
	}

	for _, m := range bareURLPattern.FindAllString(text, -1) {
		add(m)
	}
	if strings.Contains(strings.ToLower(text), "<a ") {
		for _, href := range anchorHrefs(text) {
			add(href)
		}
	}
	return out
}

func anchorHrefs(text string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(text))
	if err != nil {
		return nil
	}
	var out []string
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		if href, ok := sel.Attr("href"); ok {
			out = append(out, href)
		}
	})
	return out
}

// RecoverURL picks the best attribution URL for title from the section text.
// Reputable publishers rank first, then URLs whose path shares a word with
// the title. Returns "" when the text carries no usable URL.
func RecoverURL(sectionText, title string) string {
	words := titleWords(title)
	best := ""
	bestScore := -1
	for _, raw := range CollectURLs(sectionText) {
		if ignoredHost(raw) {
			continue
		}
		score := 0
		if deal.IsReputableDomain(raw) {
			score += 2
		}
		if slugMatches(raw, words) {
			score++
		}
		if score > bestScore {
			best, bestScore = raw, score
		}
	}
	if best == "" {
		return ""
	}
	canonical, _ := deal.NormalizeURL(best)
	return canonical
}

func ignoredHost(raw string) bool {
	domain := deal.URLDomain(raw)
	for _, host := range ignoredURLHosts {
		if domain == host || strings.HasSuffix(domain, "."+host) {
			return true
		}
	}
	return false
}

func titleWords(title string) []string {
	var out []string
	for _, token := range deal.Tokenize(title) {
		if len(token) > 3 {
			out = append(out, token)
		}
	}
	return out
}

func slugMatches(raw string, words []string) bool {
	if len(words) == 0 {
		return false
	}
	key := strings.ToLower(deal.URLKey(raw))
	slash := strings.IndexByte(key, '/')
	if slash < 0 {
		return false
	}
	path := key[slash:]
	for _, word := range words {
		if strings.Contains(path, word) {
			return true
		}
	}
	return false
}
