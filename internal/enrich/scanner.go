package enrich

import (
	"bytes"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	imageClass     = regexp.MustCompile(`(?i)article|news|content|photo`)
	containerClass = regexp.MustCompile(`(?i)article|content|body`)
	imageExts      = []string{".jpg", ".jpeg", ".png", ".gif", ".webp"}
)

// probe selects at most one candidate element from the document.
type probe func(doc *goquery.Document) *goquery.Selection

// probes run in priority order; the first one whose element yields a usable
// image URL wins.
var probes = []probe{
	func(doc *goquery.Document) *goquery.Selection {
		return doc.Find(`meta[property="og:image"]`).First()
	},
	func(doc *goquery.Document) *goquery.Selection {
		return doc.Find(`meta[name="twitter:image"]`).First()
	},
	func(doc *goquery.Document) *goquery.Selection {
		return doc.Find("img[class]").FilterFunction(func(_ int, s *goquery.Selection) bool {
			return imageClass.MatchString(s.AttrOr("class", ""))
		}).First()
	},
	func(doc *goquery.Document) *goquery.Selection {
		return doc.Find("div[class]").FilterFunction(func(_ int, s *goquery.Selection) bool {
			return containerClass.MatchString(s.AttrOr("class", ""))
		}).First().Find("img").First()
	},
	func(doc *goquery.Document) *goquery.Selection {
		return doc.Find("img").First()
	},
}

// FindImage returns the representative image URL of an article page.
func FindImage(pageURL string, body []byte) (string, bool) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", false
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		base = nil
	}
	for _, p := range probes {
		sel := p(doc)
		if sel.Length() == 0 {
			continue
		}
		src := sourceOf(sel)
		if src == "" {
			continue
		}
		abs, ok := resolve(base, src)
		if !ok || !hasImageExt(abs) {
			continue
		}
		return abs, true
	}
	return "", false
}

func sourceOf(sel *goquery.Selection) string {
	if goquery.NodeName(sel) == "meta" {
		return strings.TrimSpace(sel.AttrOr("content", ""))
	}
	for _, attr := range []string{"src", "data-src", "data-original"} {
		if v := strings.TrimSpace(sel.AttrOr(attr, "")); v != "" {
			return v
		}
	}
	return ""
}

// resolve turns a candidate into an absolute URL. Protocol-relative values
// get https; root-relative values are joined to the page URL; other relative
// forms are rejected.
func resolve(base *url.URL, src string) (string, bool) {
	switch {
	case strings.HasPrefix(src, "//"):
		return "https:" + src, true
	case strings.HasPrefix(src, "/"):
		if base == nil || base.Host == "" {
			return "", false
		}
		ref, err := url.Parse(src)
		if err != nil {
			return "", false
		}
		return base.ResolveReference(ref).String(), true
	case strings.HasPrefix(src, "http"):
		return src, true
	default:
		return "", false
	}
}

func hasImageExt(raw string) bool {
	lower := strings.ToLower(raw)
	if u, err := url.Parse(lower); err == nil {
		lower = u.Path
	}
	for _, ext := range imageExts {
		if strings.Contains(lower, ext) {
			return true
		}
	}
	return false
}
