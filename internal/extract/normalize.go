package extract

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/DeividasMat/deal-website-sub000/internal/deal"
)

const (
	maxSummarySentences = 3
	maxTitleLength      = 160
	emphasisMarker      = "**"
)

var listMarkerPattern = regexp.MustCompile(`^(?:[-*•▪◦]+|\d{1,2}[.)]|#+)\s*`)

var abbreviations = map[string]struct{}{
	"inc": {}, "corp": {}, "co": {}, "ltd": {}, "llc": {}, "lp": {}, "l.p": {},
	"u.s": {}, "u.k": {}, "mr": {}, "ms": {}, "dr": {}, "st": {}, "no": {},
	"vs": {}, "e.g": {}, "i.e": {}, "jr": {}, "sr": {}, "approx": {}, "est": {},
}

// SplitSentences breaks text on terminal punctuation followed by whitespace,
// ignoring common corporate and title abbreviations.
func SplitSentences(text string) []string {
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return nil
	}

	var out []string
	start := 0
	for i := 0; i < len(text); i++ {
		c := text[i]
		if c != '.' && c != '!' && c != '?' {
			continue
		}
		end := i + 1
		for end < len(text) && (text[end] == '"' || text[end] == '\'' || text[end] == ')' || text[end] == '*') {
			end++
		}
		if end < len(text) && text[end] != ' ' {
			continue
		}
		if c == '.' && endsWithAbbreviation(text[start:i]) {
			continue
		}
		if sentence := strings.TrimSpace(text[start:end]); sentence != "" {
			out = append(out, sentence)
		}
		start = end
		i = end - 1
	}
	if tail := strings.TrimSpace(text[start:]); tail != "" {
		out = append(out, tail)
	}
	return out
}

func endsWithAbbreviation(prefix string) bool {
	idx := strings.LastIndexByte(prefix, ' ')
	word := strings.ToLower(strings.Trim(prefix[idx+1:], "(\"'*"))
	if word == "" {
		return false
	}
	if _, ok := abbreviations[word]; ok {
		return true
	}
	// Single initials such as "J." in "J. Smith".
	return utf8.RuneCountInString(word) == 1 && unicode.IsLetter([]rune(word)[0])
}

// ClampSentences keeps at most max sentences of text.
func ClampSentences(text string, max int) string {
	sentences := SplitSentences(text)
	if len(sentences) <= max {
		return strings.Join(sentences, " ")
	}
	return strings.Join(sentences[:max], " ")
}

// EnsureEmphasis wraps the first currency amount and the first deal keyword
// phrase in ** markers when text carries no emphasis yet. When neither is
// present the first sponsor name is emphasized instead.
func EnsureEmphasis(text string) string {
	if strings.Contains(text, emphasisMarker) {
		return text
	}

	var spans [][2]int
	if amounts := deal.AmountSpans(text); len(amounts) > 0 {
		spans = append(spans, [2]int{amounts[0][0], trimSpanEnd(text, amounts[0][0], amounts[0][1])})
	}
	if phrase, ok := firstKeywordPhrase(text); ok && !overlapsAny(phrase, spans) {
		spans = append(spans, phrase)
	}
	if len(spans) == 0 {
		if span, ok := firstSponsorSpan(text); ok {
			spans = append(spans, span)
		}
	}
	if len(spans) == 0 {
		return text
	}

	sort.Slice(spans, func(i, j int) bool { return spans[i][0] > spans[j][0] })
	for _, span := range spans {
		text = text[:span[0]] + emphasisMarker + text[span[0]:span[1]] + emphasisMarker + text[span[1]:]
	}
	return text
}

func trimSpanEnd(text string, start, end int) int {
	for end > start && text[end-1] == ' ' {
		end--
	}
	return end
}

// firstKeywordPhrase merges adjacent keyword hits so "credit facility" is
// emphasized as one phrase.
func firstKeywordPhrase(text string) ([2]int, bool) {
	spans := deal.DealKeywordSpans(text)
	if len(spans) == 0 {
		return [2]int{}, false
	}
	phrase := [2]int{spans[0][0], spans[0][1]}
	for _, next := range spans[1:] {
		if next[0] < phrase[1] {
			continue
		}
		if next[0] == phrase[1]+1 && text[phrase[1]] == ' ' {
			phrase[1] = next[1]
			continue
		}
		break
	}
	return phrase, true
}

func firstSponsorSpan(text string) ([2]int, bool) {
	lower := strings.ToLower(text)
	best := [2]int{-1, -1}
	for _, name := range deal.FindSponsors(text) {
		idx := strings.Index(lower, name)
		if idx >= 0 && (best[0] < 0 || idx < best[0]) {
			best = [2]int{idx, idx + len(name)}
		}
	}
	return best, best[0] >= 0
}

func overlapsAny(span [2]int, spans [][2]int) bool {
	for _, other := range spans {
		if span[0] < other[1] && other[0] < span[1] {
			return true
		}
	}
	return false
}

func cleanTitle(title string) string {
	title = strings.Join(strings.Fields(title), " ")
	title = strings.Trim(title, " *\"'`#")
	title = strings.TrimPrefix(title, "- ")
	if len(title) > maxTitleLength {
		cut := strings.LastIndexByte(title[:maxTitleLength], ' ')
		if cut <= 0 {
			cut = maxTitleLength
		}
		title = strings.TrimRight(title[:cut], " ,;:-")
	}
	return title
}

func resolveCategory(llmCategory, sectionCategory, text string) string {
	if category := deal.CanonicalCategory(llmCategory); category != "" {
		return category
	}
	if category := deal.CanonicalCategory(sectionCategory); category != "" && category != deal.CategoryOther {
		return category
	}
	return deal.InferCategory(text)
}

// normalize finishes a candidate for persistence: cleaned title, clamped and
// emphasized summary, canonical category and recovered attribution.
func normalize(c deal.Candidate, section deal.Section) deal.Candidate {
	c.Title = cleanTitle(c.Title)
	c.Summary = EnsureEmphasis(ClampSentences(c.Summary, maxSummarySentences))
	c.Category = resolveCategory(c.Category, section.Category, c.Title+" "+c.Summary)
	c.OriginSectionText = section.Content

	if canonical, _ := deal.NormalizeURL(c.SourceURL); canonical == "" {
		c.SourceURL = ""
	}
	if c.SourceURL == "" {
		c.SourceURL = RecoverURL(section.Content, c.Title)
	}
	c.SourceName = strings.TrimSpace(c.SourceName)
	if c.SourceName == "" && c.SourceURL != "" {
		c.SourceName = deal.SourceNameForURL(c.SourceURL)
	}
	return c
}

// Minimal builds the single fallback candidate for a section from its own
// text: the first sentence becomes the title and the first few sentences
// the summary.
func Minimal(section deal.Section) deal.Candidate {
	sentences := SplitSentences(stripMarkup(section.Content))
	title := ""
	if len(sentences) > 0 {
		title = strings.TrimRight(sentences[0], ".!? ")
	}
	c := deal.Candidate{
		Title:    title,
		Summary:  strings.Join(sentences[:min(len(sentences), maxSummarySentences)], " "),
		Category: section.Category,
		Fallback: true,
	}
	return normalize(c, section)
}

func stripMarkup(text string) string {
	text = strings.ReplaceAll(text, emphasisMarker, "")
	text = markdownLinkPattern.ReplaceAllString(text, "$1")
	text = bareURLPattern.ReplaceAllString(text, "")
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = listMarkerPattern.ReplaceAllString(strings.TrimSpace(line), "")
	}
	return strings.Join(lines, " ")
}
