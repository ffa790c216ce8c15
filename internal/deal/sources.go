package deal

import "strings"

// SourceTier ranks publishers for survivor scoring and URL recovery.
type SourceTier int

const (
	TierNone SourceTier = iota
	TierTerminal
	TierPaywalled
	TierOther
	TierTrade
	TierMajor
)

func (t SourceTier) String() string {
	switch t {
	case TierMajor:
		return "major"
	case TierTrade:
		return "trade"
	case TierOther:
		return "other"
	case TierPaywalled:
		return "paywalled"
	case TierTerminal:
		return "terminal"
	default:
		return "none"
	}
}

type publisher struct {
	domain string
	name   string
	tier   SourceTier
}

var publishers = []publisher{
	{"reuters.com", "Reuters", TierMajor},
	{"apnews.com", "AP News", TierMajor},
	{"cnbc.com", "CNBC", TierMajor},
	{"businesswire.com", "Business Wire", TierMajor},
	{"prnewswire.com", "PR Newswire", TierMajor},
	{"globenewswire.com", "GlobeNewswire", TierMajor},
	{"axios.com", "Axios", TierMajor},
	{"finance.yahoo.com", "Yahoo Finance", TierMajor},
	{"pehub.com", "PE Hub", TierTrade},
	{"pitchbook.com", "PitchBook", TierTrade},
	{"privatedebtinvestor.com", "Private Debt Investor", TierTrade},
	{"creditflux.com", "Creditflux", TierTrade},
	{"institutionalinvestor.com", "Institutional Investor", TierTrade},
	{"abfjournal.com", "ABF Journal", TierTrade},
	{"bloomberg.com", "Bloomberg", TierPaywalled},
	{"wsj.com", "Wall Street Journal", TierPaywalled},
	{"ft.com", "Financial Times", TierPaywalled},
	{"barrons.com", "Barron's", TierPaywalled},
	{"law360.com", "Law360", TierPaywalled},
	{"9fin.com", "9fin", TierTerminal},
	{"debtwire.com", "Debtwire", TierTerminal},
	{"lseg.com", "LSEG", TierTerminal},
	{"spglobal.com", "S&P Global", TierTerminal},
	{"bloomberglaw.com", "Bloomberg Law", TierTerminal},
}

func lookupDomain(domain string) (publisher, bool) {
	domain = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(domain), "www."))
	if domain == "" {
		return publisher{}, false
	}
	for _, p := range publishers {
		if domain == p.domain || strings.HasSuffix(domain, "."+p.domain) {
			return p, true
		}
	}
	return publisher{}, false
}

// URLTier classifies a source URL. Unknown https hosts rank TierOther; any
// URL ranks above no URL.
func URLTier(raw string) SourceTier {
	canonical, host := NormalizeURL(raw)
	if canonical == "" {
		return TierNone
	}
	if p, ok := lookupDomain(host); ok {
		return p.tier
	}
	return TierOther
}

// NameTier classifies a free-form source name.
func NameTier(name string) SourceTier {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return TierNone
	}
	for _, p := range publishers {
		if key == strings.ToLower(p.name) || strings.Contains(key, strings.ToLower(p.name)) || key == p.domain {
			return p.tier
		}
	}
	return TierOther
}

// IsReputableDomain reports whether the URL host is on the publisher list.
func IsReputableDomain(raw string) bool {
	_, host := NormalizeURL(raw)
	_, ok := lookupDomain(host)
	return ok
}

// SourceNameForURL returns the publisher name for a known domain, or the
// bare host otherwise.
func SourceNameForURL(raw string) string {
	_, host := NormalizeURL(raw)
	if host == "" {
		return ""
	}
	if p, ok := lookupDomain(host); ok {
		return p.name
	}
	return strings.TrimPrefix(host, "www.")
}
