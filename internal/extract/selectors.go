package extract

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/talentwire/jobfetch/internal/scrape"
)

// selectorSet lists the CSS selectors tried in order for each posting field.
// Sites ship several page generations at once, so each field carries the
// selectors for all of them, newest last-known-good first.
type selectorSet struct {
	title       []string
	company     []string
	location    []string
	postedAt    []string
	description []string
}

var linkedinSelectors = selectorSet{
	title: []string{
		"h1.top-card-layout__title",
		"h1.topcard__title",
		".job-details-jobs-unified-top-card__job-title h1",
		"h1.jobs-unified-top-card__job-title",
		"section.top-card-layout h1",
	},
	company: []string{
		"a.topcard__org-name-link",
		".job-details-jobs-unified-top-card__company-name a",
		".jobs-unified-top-card__company-name a",
		"div[class*='company-name'] a",
	},
	location: []string{
		"span.topcard__flavor--bullet",
		".jobs-unified-top-card__bullet",
		"span[class*='location']",
	},
	postedAt: []string{
		"span.posted-time-ago__text",
		"span[class*='posted-time']",
	},
	description: []string{
		"div.show-more-less-html__markup",
		"section.show-more-less-html",
		"div.jobs-description__text",
		"div.description__text",
	},
}

var internshalaSelectors = selectorSet{
	title: []string{
		"div.heading_4_5.profile",
		"h1.profile_on_detail_page",
	},
	company: []string{
		"div.heading_6.company_name a",
		"a.link_display_like_text",
	},
	location: []string{
		"div#location_names",
		"a.location_link",
	},
	postedAt: []string{
		"div.status.status-small.status-inactive",
	},
	description: []string{
		"div.internship_details div.text-container",
		"div.internship_details",
	},
}

var indeedSelectors = selectorSet{
	title: []string{
		"h1.jobsearch-JobInfoHeader-title",
		"h1[data-testid='jobsearch-JobInfoHeader-title']",
	},
	company: []string{
		"div[data-testid='inlineHeader-companyName'] a",
		"div[data-company-name='true']",
	},
	location: []string{
		"div[data-testid='job-location']",
		"div[data-testid='inlineHeader-companyLocation']",
	},
	postedAt: nil,
	description: []string{
		"#jobDescriptionText",
		".jobsearch-jobDescriptionText",
		".jobsearch-JobComponent-description",
		"[data-testid='job-description']",
	},
}

// SelectorExtractor walks platform-specific CSS selectors. Last in the
// waterfall: markup-based selectors break whenever the site redesigns.
type SelectorExtractor struct {
	platform  scrape.Platform
	selectors selectorSet
}

// NewSelectorExtractor creates the selector extractor for a platform.
// Unknown platforms get the LinkedIn set, which is also the broadest.
func NewSelectorExtractor(platform scrape.Platform) *SelectorExtractor {
	sel := linkedinSelectors
	switch platform {
	case scrape.PlatformInternshala:
		sel = internshalaSelectors
	case scrape.PlatformIndeed:
		sel = indeedSelectors
	}
	return &SelectorExtractor{platform: platform, selectors: sel}
}

// Name identifies this method in extraction results.
func (e *SelectorExtractor) Name() string { return "css_selectors" }

var trailingBullet = regexp.MustCompile(`[·•].*$`)

// Extract builds a posting from the platform's selector tables.
func (e *SelectorExtractor) Extract(pageURL string, body []byte) (scrape.Extraction, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return scrape.Extraction{}, ErrInsufficient
	}

	result := scrape.Posting{
		Title:       firstText(doc, e.selectors.title),
		Location:    strings.TrimSpace(trailingBullet.ReplaceAllString(firstText(doc, e.selectors.location), "")),
		PostedAt:    firstText(doc, e.selectors.postedAt),
		Description: "",
		SourceURL:   pageURL,
	}

	for _, sel := range e.selectors.company {
		node := doc.Find(sel).First()
		if node.Length() == 0 {
			continue
		}
		result.Company = strings.TrimSpace(node.Text())
		if href, ok := node.Attr("href"); ok {
			result.CompanyURL = href
		}
		break
	}

	for _, sel := range e.selectors.description {
		node := doc.Find(sel).First()
		if node.Length() == 0 {
			continue
		}
		if text := normalizeWhitespace(node.Text()); len(text) >= minDescriptionLen {
			result.Description = text
			break
		}
	}

	if !sufficient(result) {
		return scrape.Extraction{}, ErrInsufficient
	}
	return scrape.Extraction{Posting: result, Method: e.Name(), Confidence: 0.4}, nil
}

func firstText(doc *goquery.Document, selectors []string) string {
	for _, sel := range selectors {
		if node := doc.Find(sel).First(); node.Length() > 0 {
			if text := strings.TrimSpace(node.Text()); text != "" {
				return text
			}
		}
	}
	return ""
}
