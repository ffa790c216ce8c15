package deal

import (
	"net/url"
	"sort"
	"strings"
	"unicode"
)

// TitleKeyLength is the prefix length of the normalized title used for
// near-date duplicate lookups.
const TitleKeyLength = 24

var trackingQueryKeys = map[string]struct{}{
	"fbclid":  {},
	"gclid":   {},
	"mc_cid":  {},
	"mc_eid":  {},
	"ref":     {},
	"ref_src": {},
	"cmpid":   {},
	"srnd":    {},
}

// NormalizeText lowercases and collapses whitespace, dropping control runes.
func NormalizeText(input string) string {
	trimmed := strings.TrimSpace(strings.ToLower(input))
	if trimmed == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(trimmed))
	lastSpace := false
	for _, r := range trimmed {
		if unicode.IsSpace(r) {
			if !lastSpace {
				b.WriteRune(' ')
				lastSpace = true
			}
			continue
		}
		if unicode.IsControl(r) {
			continue
		}
		b.WriteRune(r)
		lastSpace = false
	}
	return strings.TrimSpace(b.String())
}

// NormalizeTitle case-folds a title, drops possessive suffixes and strips
// punctuation so headline variants compare equal.
func NormalizeTitle(title string) string {
	text := NormalizeText(title)
	if text == "" {
		return ""
	}
	text = strings.NewReplacer("'s ", " ", "’s ", " ").Replace(text + " ")
	return strings.Join(Tokenize(text), " ")
}

// TitleKey is the normalized title prefix stored for duplicate lookups.
func TitleKey(title string) string {
	normalized := NormalizeTitle(title)
	runes := []rune(normalized)
	if len(runes) > TitleKeyLength {
		runes = runes[:TitleKeyLength]
	}
	return strings.TrimSpace(string(runes))
}

// Tokenize splits normalized text on anything that is not a letter or digit.
func Tokenize(text string) []string {
	normalized := NormalizeText(text)
	if normalized == "" {
		return nil
	}
	return strings.FieldsFunc(normalized, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

// NormalizeURL canonicalizes scheme/host casing, default ports, trailing
// slashes and query ordering, and removes tracking parameters. Returns
// empty strings for values that are not absolute http(s) URLs.
func NormalizeURL(raw string) (canonical string, host string) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", ""
	}

	parsed, err := url.Parse(trimmed)
	if err != nil {
		return "", ""
	}
	parsed.Scheme = strings.ToLower(parsed.Scheme)
	if (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return "", ""
	}

	parsed.Host = strings.ToLower(parsed.Hostname())
	if port := parsed.Port(); port != "" {
		defaultPort := (parsed.Scheme == "http" && port == "80") || (parsed.Scheme == "https" && port == "443")
		if !defaultPort {
			parsed.Host = parsed.Host + ":" + port
		}
	}

	parsed.Fragment = ""
	path := strings.TrimSpace(parsed.EscapedPath())
	if path == "" {
		path = "/"
	}
	for strings.Contains(path, "//") {
		path = strings.ReplaceAll(path, "//", "/")
	}
	if strings.HasSuffix(path, "/") && path != "/" {
		path = strings.TrimSuffix(path, "/")
	}
	parsed.Path = path
	parsed.RawPath = ""

	q := parsed.Query()
	for key := range q {
		lower := strings.ToLower(key)
		if strings.HasPrefix(lower, "utm_") {
			q.Del(key)
			continue
		}
		if _, ok := trackingQueryKeys[lower]; ok {
			q.Del(key)
		}
	}
	if len(q) > 0 {
		for key := range q {
			sort.Strings(q[key])
		}
		parsed.RawQuery = q.Encode()
	} else {
		parsed.RawQuery = ""
	}

	return parsed.String(), parsed.Hostname()
}

// URLKey is the scheme-less, www-less comparison form of a URL.
func URLKey(raw string) string {
	canonical, _ := NormalizeURL(raw)
	if canonical == "" {
		return ""
	}
	key := strings.TrimPrefix(strings.TrimPrefix(canonical, "https://"), "http://")
	key = strings.TrimPrefix(key, "www.")
	return strings.TrimSuffix(key, "/")
}

// URLDomain returns the registrable-looking host of raw without "www.".
func URLDomain(raw string) string {
	_, host := NormalizeURL(raw)
	return strings.TrimPrefix(host, "www.")
}
