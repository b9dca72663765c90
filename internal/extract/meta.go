package extract

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/talentwire/jobfetch/internal/scrape"
)

// MetaExtractor reads OpenGraph and twitter card tags. Lower confidence than
// JSON-LD: the og:description is usually a truncated summary, and title and
// company come from parsing the og:title string.
type MetaExtractor struct{}

// Name identifies this method in extraction results.
func (e *MetaExtractor) Name() string { return "meta_tags" }

// LinkedIn og:title shape: "Acme Corp hiring Senior Gopher in Pune, India".
var ogTitleHiring = regexp.MustCompile(`^(.*?)\s+hiring\s+(.*?)(?:\s+in\s+(.+))?$`)

// Extract builds a posting from page metadata.
func (e *MetaExtractor) Extract(pageURL string, body []byte) (scrape.Extraction, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return scrape.Extraction{}, ErrInsufficient
	}

	result := scrape.Posting{SourceURL: pageURL}

	ogTitle := metaContent(doc, `meta[property="og:title"]`)
	if m := ogTitleHiring.FindStringSubmatch(ogTitle); m != nil {
		result.Company = strings.TrimSpace(m[1])
		result.Title = strings.TrimSpace(m[2])
		result.Location = strings.TrimSpace(m[3])
	} else if ogTitle != "" {
		result.Title = ogTitle
	} else if pageTitle := strings.TrimSpace(doc.Find("title").First().Text()); pageTitle != "" {
		result.Title = pageTitle
	}

	desc := metaContent(doc, `meta[property="og:description"]`)
	if desc == "" {
		desc = metaContent(doc, `meta[name="twitter:description"]`)
	}
	if desc == "" {
		desc = metaContent(doc, `meta[name="description"]`)
	}
	result.Description = normalizeWhitespace(desc)

	if ogURL := metaContent(doc, `meta[property="og:url"]`); ogURL != "" {
		result.ApplyURL = ogURL
	}

	if !sufficient(result) || result.Title == "" {
		return scrape.Extraction{}, ErrInsufficient
	}
	return scrape.Extraction{Posting: result, Method: e.Name(), Confidence: 0.6}, nil
}

func metaContent(doc *goquery.Document, selector string) string {
	return strings.TrimSpace(doc.Find(selector).First().AttrOr("content", ""))
}
