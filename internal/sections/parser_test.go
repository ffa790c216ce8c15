package sections

import (
	"strings"
	"testing"

	"github.com/DeividasMat/deal-website-sub000/internal/deal"
)

const filler = "The transaction was arranged by a club of direct lenders and closed this week according to people familiar with the matter."

func TestParseBulletLabels(t *testing.T) {
	t.Parallel()

	raw := strings.Join([]string{
		"- Credit Facility: Apollo provided a $500M credit facility to TechCorp. " + filler,
		"- **Fund Raising**: Ares closed its sixth senior direct lending fund at $15B. " + filler,
		"- Lender: Ares Capital",
	}, "\n")

	got := Parse(raw)
	if len(got) != 2 {
		t.Fatalf("expected 2 sections, got %d: %+v", len(got), got)
	}
	if got[0].Category != deal.CategoryCreditFacility {
		t.Fatalf("unexpected first category: %q", got[0].Category)
	}
	if got[1].Category != deal.CategoryFundRaising {
		t.Fatalf("unexpected second category: %q", got[1].Category)
	}
	if !strings.Contains(got[1].Content, "Lender: Ares Capital") {
		t.Fatalf("expected short field bullet to merge into previous section, got %q", got[1].Content)
	}
}

func TestParseNumberedList(t *testing.T) {
	t.Parallel()

	raw := "## Securitization\n" +
		"1. Blackstone priced a $600M CLO backed by middle-market loans. " + filler + "\n" +
		"2. Carlyle refinanced an existing CLO vehicle with new AAA notes. " + filler + "\n"

	got := Parse(raw)
	if len(got) != 2 {
		t.Fatalf("expected 2 sections, got %d", len(got))
	}
	for _, section := range got {
		if section.Category != deal.CategorySecuritization {
			t.Fatalf("expected heading label to apply, got %q", section.Category)
		}
		if strings.HasPrefix(section.Content, "1.") || strings.HasPrefix(section.Content, "2.") {
			t.Fatalf("expected list marker to be stripped, got %q", section.Content)
		}
	}
}

func TestParseBlankLineBlocks(t *testing.T) {
	t.Parallel()

	raw := "Golub Capital led a $300M unitranche loan for a healthcare software company. " + filler +
		"\n\nshort\n\n" +
		"Moody's upgraded the borrower to B1 after the refinancing reduced leverage meaningfully. " + filler

	got := Parse(raw)
	if len(got) != 2 {
		t.Fatalf("expected 2 blocks, got %d: %+v", len(got), got)
	}
	if got[0].Category != deal.CategoryDirectLending {
		t.Fatalf("unexpected inferred category: %q", got[0].Category)
	}
	if got[1].Category != deal.CategoryRatingAction {
		t.Fatalf("unexpected inferred category: %q", got[1].Category)
	}
}

func TestParseWholeTextFallback(t *testing.T) {
	t.Parallel()

	raw := "Weekly market commentary without structure that still runs long enough to be worth extracting from."
	got := Parse(raw)
	if len(got) != 1 {
		t.Fatalf("expected single fallback section, got %d", len(got))
	}
	if got[0].Category != GenericLabel {
		t.Fatalf("expected generic label, got %q", got[0].Category)
	}
}

func TestParseDropsShortAndEmpty(t *testing.T) {
	t.Parallel()

	if got := Parse("   "); len(got) != 0 {
		t.Fatalf("expected no sections for blank input")
	}
	if got := Parse("- Credit Facility: too short"); len(got) != 0 {
		t.Fatalf("expected short section to be dropped, got %+v", got)
	}
}
