package langdetect

import "testing"

func TestNormalizeCode(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"en":      "en",
		" EN_us ": "en",
		"pt-BR":   "pt",
		"":        "",
		"e1":      "",
	}
	for in, want := range cases {
		if got := NormalizeCode(in); got != want {
			t.Fatalf("NormalizeCode(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestShortTextIsUndetected(t *testing.T) {
	t.Parallel()

	if got := DetectISO6391("$500M"); got != "" {
		t.Fatalf("expected short text to be undetected, got %q", got)
	}
	if !IsLanguage("$500M", "en") {
		t.Fatalf("expected undetectable text to be kept")
	}
}

func TestDetectsEnglishAndGerman(t *testing.T) {
	t.Parallel()

	english := "Apollo provided a five hundred million dollar credit facility to the software company to refinance existing debt."
	if !IsLanguage(english, "en") {
		t.Fatalf("expected English sample to be detected as English, got %q", DetectISO6391(english))
	}
	german := "Die Bank hat dem Unternehmen einen Kredit über fünfhundert Millionen Euro gewährt, um die bestehenden Schulden zu refinanzieren."
	if IsLanguage(german, "en") {
		t.Fatalf("expected German sample not to match English")
	}
}
