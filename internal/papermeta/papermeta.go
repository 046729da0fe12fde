// Package papermeta derives bibliographic fields from extracted paper text.
//
// Embedded PDF metadata is authoritative when present; free-text heuristics
// are the fallback. Each field is evaluated independently so extraction never
// fails as a whole: a field that cannot be parsed is simply left unset.
package papermeta

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Metadata is the best-effort structured description of a paper.
// Unparsed string fields are empty; Authors is empty (not nil-checked) when
// nothing was found.
type Metadata struct {
	Title   string   `json:"title,omitempty"`
	Authors []string `json:"authors,omitempty"`
	DOI     string   `json:"doi,omitempty"`
	Venue   string   `json:"venue,omitempty"`
	Year    string   `json:"year,omitempty"`
	Volume  string   `json:"volume,omitempty"`
	Pages   string   `json:"pages,omitempty"`
}

const (
	titleScanLines   = 5
	titleMinLength   = 10
	authorSearchSpan = 1000
)

var (
	authorSplitRe = regexp.MustCompile(`(?i),|;|\band\b`)

	// Labeled author lines near the top of the document. Full-width colon
	// appears in papers typeset with CJK tooling.
	authorLineRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)authors?[:：](.+)`),
		regexp.MustCompile(`(?i)\bby (.+)`),
	}

	doiLabeledRe = regexp.MustCompile(`(?i)doi[:：]\s*(10\.\d{4,}(?:\.\d+)*/\S+)`)
	doiBareRe    = regexp.MustCompile(`10\.\d{4,}(?:\.\d+)*/\S+`)

	// Venue patterns are tried in priority order; the first one that matches
	// anywhere in the text wins.
	venueRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)journal[:：]\s*(.+)`),
		regexp.MustCompile(`(?i)conference[:：]\s*(.+)`),
		regexp.MustCompile(`(?i)proceedings of\s+(.+)`),
	}

	yearRe   = regexp.MustCompile(`(?:©|\(c\)|\(C\))?\s*\b((?:19|20)\d{2})\b`)
	volumeRe = regexp.MustCompile(`(?i)vol(?:ume)?\.?\s*(\d+)`)
	pagesRe  = regexp.MustCompile(`(?i)(?:pages|pp)\.?\s*(\d+)[-–](\d+)`)
)

// Extract builds Metadata from raw document text and the optional embedded
// metadata dictionary (PDF Info keys such as "Title" and "Author"). It is a
// pure function and safe for concurrent use.
func Extract(rawText string, embedded map[string]string) Metadata {
	return Metadata{
		Title:   extractTitle(rawText, embedded),
		Authors: extractAuthors(rawText, embedded),
		DOI:     extractDOI(rawText),
		Venue:   extractVenue(rawText),
		Year:    extractYear(rawText),
		Volume:  extractVolume(rawText),
		Pages:   extractPages(rawText),
	}
}

func extractTitle(rawText string, embedded map[string]string) string {
	if title := strings.TrimSpace(embedded["Title"]); title != "" {
		return embedded["Title"]
	}

	lines := strings.Split(rawText, "\n")
	if len(lines) > titleScanLines {
		lines = lines[:titleScanLines]
	}
	for _, line := range lines {
		candidate := strings.TrimSpace(line)
		if utf8.RuneCountInString(candidate) > titleMinLength {
			return candidate
		}
	}
	return ""
}

func extractAuthors(rawText string, embedded map[string]string) []string {
	if raw := embedded["Author"]; strings.TrimSpace(raw) != "" {
		if authors := splitAuthors(raw); len(authors) > 0 {
			return authors
		}
	}

	head := rawText
	if len(head) > authorSearchSpan {
		head = head[:authorSearchSpan]
	}
	for _, re := range authorLineRes {
		if m := re.FindStringSubmatch(head); m != nil {
			if authors := splitAuthors(m[1]); len(authors) > 0 {
				return authors
			}
		}
	}
	return []string{}
}

func splitAuthors(raw string) []string {
	parts := authorSplitRe.Split(raw, -1)
	authors := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			authors = append(authors, trimmed)
		}
	}
	return authors
}

func extractDOI(rawText string) string {
	if m := doiLabeledRe.FindStringSubmatch(rawText); m != nil {
		return m[1]
	}
	return doiBareRe.FindString(rawText)
}

func extractVenue(rawText string) string {
	for _, re := range venueRes {
		if m := re.FindStringSubmatch(rawText); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	return ""
}

func extractYear(rawText string) string {
	if m := yearRe.FindStringSubmatch(rawText); m != nil {
		return m[1]
	}
	return ""
}

func extractVolume(rawText string) string {
	if m := volumeRe.FindStringSubmatch(rawText); m != nil {
		return m[1]
	}
	return ""
}

func extractPages(rawText string) string {
	if m := pagesRe.FindStringSubmatch(rawText); m != nil {
		return m[1] + "-" + m[2]
	}
	return ""
}
