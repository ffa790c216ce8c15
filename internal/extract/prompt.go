package extract

import (
	"fmt"
	"strings"

	"github.com/DeividasMat/deal-website-sub000/internal/deal"
)

const extractionSystemPrompt = `You extract private credit and financing deals from research notes.
Respond with JSON only, no prose, in exactly this shape:
{"articles":[{"title":"...","summary":"...","category":"...","sourceUrl":"...","originalSource":"..."}]}

Rules:
1. One entry per distinct transaction. Never invent deals, parties, amounts or URLs.
2. title: "<Lender or Sponsor> <verb> <amount> <deal type> <to/for Borrower>", under 120 characters.
3. summary: 2-3 sentences. Wrap the amount and the deal type in **double asterisks**.
4. category: one of %s.
5. sourceUrl: the publisher URL for this deal if present in the text, otherwise null.
6. originalSource: the publisher name (for example Bloomberg, Reuters), otherwise null.
7. If the text contains no concrete transaction, respond with {"articles":[]}.`

const fallbackSystemPrompt = `Summarize the single most important financing transaction in the text.
Respond with JSON only: {"articles":[{"title":"...","summary":"...","sourceUrl":null,"originalSource":null}]}
The summary must be 2-3 sentences. If there is no transaction, respond with {"articles":[]}.`

func extractionSystem() string {
	return fmt.Sprintf(extractionSystemPrompt, strings.Join(deal.Categories, ", "))
}

func extractionPrompt(section deal.Section) string {
	var b strings.Builder
	b.WriteString("Category hint: ")
	b.WriteString(section.Category)
	b.WriteString("\n\nText:\n")
	b.WriteString(section.Content)
	return b.String()
}
