// Package news defines the record model, collaborator interfaces, and
// normalization helpers shared by the collector and read services.
package news

import (
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/unicode/norm"
)

// CleanText strips markup, decodes HTML entities, and NFC-normalizes s.
func CleanText(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}
	text := s
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err == nil {
		text = doc.Text()
	}
	return strings.TrimSpace(norm.NFC.String(text))
}

// NewRecord builds a Record from a raw search hit. Image fields start absent.
func NewRecord(item SourceItem, keyword, id string, collectedAt time.Time) Record {
	return Record{
		ID:           id,
		Title:        CleanText(item.Title),
		Description:  CleanText(item.Description),
		Keyword:      keyword,
		PublishedAt:  strings.TrimSpace(item.PubDate),
		OriginalURL:  strings.TrimSpace(item.OriginalLink),
		CanonicalURL: strings.TrimSpace(item.Link),
		CollectedAt:  collectedAt.UTC(),
		ContentType:  ContentTypeNews,
		SourceName:   SourceNaver,
	}
}

// Summarize returns the compact form of r.
func (r Record) Summarize() Summary {
	return Summary{ID: r.ID, Title: r.Title}
}

// MatchesKeyword reports whether keyword occurs in the record's keyword,
// title, or description, ignoring case. An empty keyword matches everything.
func (r Record) MatchesKeyword(keyword string) bool {
	keyword = strings.ToLower(strings.TrimSpace(keyword))
	if keyword == "" {
		return true
	}
	for _, field := range []string{r.Keyword, r.Title, r.Description} {
		if strings.Contains(strings.ToLower(field), keyword) {
			return true
		}
	}
	return false
}
