// Package sections splits raw search output into labeled sections.
package sections

import (
	"regexp"
	"strings"

	"github.com/DeividasMat/deal-website-sub000/internal/deal"
)

const (
	// MinSectionLength drops sections too short to hold a deal description.
	MinSectionLength = 80
	// MinBlockLength is the minimum size of a blank-line block considered
	// on its own by the paragraph heuristic.
	MinBlockLength = 120
	// GenericLabel labels sections whose category could not be determined.
	GenericLabel = "General"
)

var (
	// "- Credit Facility: ...", "• **Fund Raising**: ...", "* M&A Financing - ..."
	bulletLabelPattern = regexp.MustCompile(`(?m)^[ \t]*(?:[-*•▪◦]|\*\*)[ \t]*\**[ \t]*([A-Za-z][A-Za-z0-9 &/().'-]{1,48}?)[ \t]*\**(?::|[ \t]+[–-][ \t])[ \t]*\**`)
	// "1. ...", "2) ..."
	numberedPattern = regexp.MustCompile(`(?m)^[ \t]*\d{1,2}[.)][ \t]+`)
	// "## Credit Facility" style headings preceding a numbered block.
	headingPattern = regexp.MustCompile(`^\s*#{1,6}\s*(.+?)\s*#*\s*$`)
	blankLines     = regexp.MustCompile(`\n[ \t]*\n+`)
	labelOnlyLine  = regexp.MustCompile(`^\**([A-Za-z][A-Za-z0-9 &/().'-]{1,48}?)\**:?\**$`)
)

// Parse applies, in order: bullet "label:" split, numbered list split,
// blank-line blocks, and finally the whole text as one section. Sections
// shorter than MinSectionLength are discarded.
func Parse(raw string) []deal.Section {
	text := strings.TrimSpace(strings.ReplaceAll(raw, "\r\n", "\n"))
	if text == "" {
		return nil
	}

	candidates := splitBulletLabels(text)
	if len(candidates) <= 1 {
		if numbered := splitNumbered(text); len(numbered) > 0 {
			candidates = numbered
		}
	}
	if len(candidates) == 0 {
		candidates = splitBlocks(text)
	}
	if len(candidates) == 0 {
		candidates = []deal.Section{{Category: inferLabel("", text), Content: text}}
	}

	out := make([]deal.Section, 0, len(candidates))
	for _, section := range candidates {
		section.Content = strings.TrimSpace(section.Content)
		if len(section.Content) < MinSectionLength {
			continue
		}
		out = append(out, section)
	}
	return out
}

func splitBulletLabels(text string) []deal.Section {
	matches := bulletLabelPattern.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return nil
	}

	var out []deal.Section
	for i, m := range matches {
		label := strings.TrimSpace(text[m[2]:m[3]])
		end := len(text)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		content := strings.TrimSpace(text[m[1]:end])
		if content == "" {
			continue
		}
		out = appendOrMerge(out, label, content)
	}
	return out
}

func splitNumbered(text string) []deal.Section {
	locs := numberedPattern.FindAllStringIndex(text, -1)
	if len(locs) < 2 {
		return nil
	}

	label := ""
	if preamble := strings.TrimSpace(text[:locs[0][0]]); preamble != "" {
		lines := strings.Split(preamble, "\n")
		label = headingLabel(lines[len(lines)-1])
	}

	out := make([]deal.Section, 0, len(locs))
	for i, loc := range locs {
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		content := strings.TrimSpace(text[loc[1]:end])
		if content == "" {
			continue
		}
		out = append(out, deal.Section{Category: inferLabel(label, content), Content: content})
	}
	return out
}

func splitBlocks(text string) []deal.Section {
	blocks := blankLines.Split(text, -1)
	var out []deal.Section
	pendingLabel := ""
	for _, block := range blocks {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		if label := headingLabel(block); label != "" && !strings.Contains(block, "\n") && len(block) < 60 {
			pendingLabel = label
			continue
		}
		if len(block) < MinBlockLength {
			continue
		}
		out = append(out, deal.Section{Category: inferLabel(pendingLabel, block), Content: block})
		pendingLabel = ""
	}
	return out
}

// appendOrMerge folds a short bullet with a non-category label
// ("- Lender: X") into the previous section.
func appendOrMerge(sections []deal.Section, label, content string) []deal.Section {
	if n := len(sections); n > 0 && len(content) < MinSectionLength && deal.CanonicalCategory(label) == "" {
		sections[n-1].Content = sections[n-1].Content + "\n" + label + ": " + content
		return sections
	}
	return append(sections, deal.Section{Category: inferLabel(label, content), Content: content})
}

func headingLabel(line string) string {
	line = strings.TrimSpace(line)
	if m := headingPattern.FindStringSubmatch(line); m != nil {
		return strings.Trim(strings.TrimSpace(m[1]), "*:")
	}
	if m := labelOnlyLine.FindStringSubmatch(line); m != nil && deal.CanonicalCategory(m[1]) != "" {
		return strings.TrimSpace(m[1])
	}
	return ""
}

// inferLabel prefers a canonical label, then the category implied by the
// content, then the raw label.
func inferLabel(label, content string) string {
	if canonical := deal.CanonicalCategory(label); canonical != "" {
		return canonical
	}
	if inferred := deal.InferCategory(content); inferred != deal.CategoryOther {
		return inferred
	}
	if label = strings.TrimSpace(label); label != "" {
		return label
	}
	return GenericLabel
}
