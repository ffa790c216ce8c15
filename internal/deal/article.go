// Package deal holds the domain records that flow through ingestion:
// search sections, extracted candidates and stored articles.
package deal

import (
	"strings"
	"time"
)

// Section is one labeled block of search output.
type Section struct {
	Category string
	Content  string
}

// Candidate is an extracted, unsaved article. It carries no date: the
// ingestion run assigns its own target date when the candidate is saved.
type Candidate struct {
	Title             string
	Summary           string
	Category          string
	SourceName        string
	SourceURL         string
	OriginSectionText string
	Fallback          bool
}

// Article is a persisted deal record.
type Article struct {
	ID         int64     `json:"id"`
	Date       time.Time `json:"date"`
	Title      string    `json:"title"`
	Summary    string    `json:"summary"`
	Content    string    `json:"content,omitempty"`
	SourceName string    `json:"source_name,omitempty"`
	SourceURL  string    `json:"source_url,omitempty"`
	Category   string    `json:"category"`
	Upvotes    int       `json:"upvotes"`
	CreatedAt  time.Time `json:"created_at"`
}

// FromCandidate builds an unsaved Article pinned to targetDate.
func FromCandidate(c Candidate, targetDate time.Time) Article {
	return Article{
		Date:       DayOf(targetDate),
		Title:      strings.TrimSpace(c.Title),
		Summary:    strings.TrimSpace(c.Summary),
		Content:    c.OriginSectionText,
		SourceName: strings.TrimSpace(c.SourceName),
		SourceURL:  strings.TrimSpace(c.SourceURL),
		Category:   strings.TrimSpace(c.Category),
	}
}

// MissingAttribution reports which attribution fields other could fill on a.
func (a Article) MissingAttribution(other Article) (url string, name string, ok bool) {
	if strings.TrimSpace(a.SourceURL) == "" && strings.TrimSpace(other.SourceURL) != "" {
		url = strings.TrimSpace(other.SourceURL)
	}
	if strings.TrimSpace(a.SourceName) == "" && strings.TrimSpace(other.SourceName) != "" {
		name = strings.TrimSpace(other.SourceName)
	}
	return url, name, url != "" || name != ""
}

// DayOf truncates t to midnight UTC of its calendar day.
func DayOf(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
