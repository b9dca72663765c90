// Package extract pulls job-posting content out of fetched HTML. Extractors
// run as a waterfall: structured JSON-LD first, then OpenGraph metadata, then
// platform-specific CSS selectors.
package extract

import (
	"errors"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/talentwire/jobfetch/internal/scrape"
)

// ErrInsufficient signals that this method found no usable content and the
// caller should fall through to the next extractor.
var ErrInsufficient = errors.New("insufficient content")

// minDescriptionLen is the shortest description accepted as a real posting
// body rather than boilerplate.
const minDescriptionLen = 50

// Waterfall returns the extractors for a platform in priority order.
func Waterfall(platform scrape.Platform) []scrape.Extractor {
	return []scrape.Extractor{
		&JSONLDExtractor{},
		&MetaExtractor{},
		NewSelectorExtractor(platform),
	}
}

// sufficient applies the minimum-quality bar shared by every extractor.
func sufficient(p scrape.Posting) bool {
	return len(strings.TrimSpace(p.Description)) >= minDescriptionLen
}

// htmlToText flattens an HTML fragment into plain text. JSON-LD descriptions
// and selector matches both carry markup.
func htmlToText(fragment string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return strings.TrimSpace(fragment)
	}
	return normalizeWhitespace(doc.Text())
}

func normalizeWhitespace(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return strings.Join(out, "\n")
}
