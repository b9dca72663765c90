package extract

import (
	"bytes"
	"encoding/json"

	"github.com/PuerkitoBio/goquery"

	"github.com/talentwire/jobfetch/internal/scrape"
)

// JSONLDExtractor reads schema.org JobPosting blocks embedded as
// application/ld+json. This is the highest-confidence source: sites publish
// it for search engines and keep it stable across page redesigns.
type JSONLDExtractor struct{}

// Name identifies this method in extraction results.
func (e *JSONLDExtractor) Name() string { return "json_ld" }

type ldOrganization struct {
	Name   string `json:"name"`
	SameAs string `json:"sameAs"`
}

type ldAddress struct {
	AddressLocality string `json:"addressLocality"`
	AddressRegion   string `json:"addressRegion"`
	AddressCountry  json.RawMessage `json:"addressCountry"`
}

type ldPlace struct {
	Address ldAddress `json:"address"`
}

type ldJobPosting struct {
	Type               string             `json:"@type"`
	Title              string             `json:"title"`
	Description        string             `json:"description"`
	DatePosted         string             `json:"datePosted"`
	EmploymentType     json.RawMessage    `json:"employmentType"`
	HiringOrganization ldOrganization     `json:"hiringOrganization"`
	JobLocation        json.RawMessage    `json:"jobLocation"`
	URL                string             `json:"url"`
}

// Extract scans every ld+json script for a JobPosting node.
func (e *JSONLDExtractor) Extract(pageURL string, body []byte) (scrape.Extraction, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return scrape.Extraction{}, ErrInsufficient
	}

	var posting *ldJobPosting
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if p := decodeJobPosting([]byte(s.Text())); p != nil {
			posting = p
			return false
		}
		return true
	})
	if posting == nil {
		return scrape.Extraction{}, ErrInsufficient
	}

	result := scrape.Posting{
		Title:          posting.Title,
		Company:        posting.HiringOrganization.Name,
		CompanyURL:     posting.HiringOrganization.SameAs,
		Location:       locationFromLD(posting.JobLocation),
		EmploymentType: employmentTypeFromLD(posting.EmploymentType),
		Description:    htmlToText(posting.Description),
		ApplyURL:       posting.URL,
		PostedAt:       posting.DatePosted,
		SourceURL:      pageURL,
	}
	if !sufficient(result) {
		return scrape.Extraction{}, ErrInsufficient
	}
	return scrape.Extraction{Posting: result, Method: e.Name(), Confidence: 0.9}, nil
}

// decodeJobPosting handles the three shapes sites use: a bare JobPosting
// object, a top-level array, and an @graph wrapper.
func decodeJobPosting(raw []byte) *ldJobPosting {
	var single ldJobPosting
	if err := json.Unmarshal(raw, &single); err == nil && single.Type == "JobPosting" {
		return &single
	}

	var list []ldJobPosting
	if err := json.Unmarshal(raw, &list); err == nil {
		for i := range list {
			if list[i].Type == "JobPosting" {
				return &list[i]
			}
		}
	}

	var graph struct {
		Graph []ldJobPosting `json:"@graph"`
	}
	if err := json.Unmarshal(raw, &graph); err == nil {
		for i := range graph.Graph {
			if graph.Graph[i].Type == "JobPosting" {
				return &graph.Graph[i]
			}
		}
	}
	return nil
}

func locationFromLD(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var place ldPlace
	if err := json.Unmarshal(raw, &place); err == nil {
		if loc := joinLocality(place.Address); loc != "" {
			return loc
		}
	}
	var places []ldPlace
	if err := json.Unmarshal(raw, &places); err == nil {
		for _, p := range places {
			if loc := joinLocality(p.Address); loc != "" {
				return loc
			}
		}
	}
	return ""
}

func joinLocality(a ldAddress) string {
	switch {
	case a.AddressLocality != "" && a.AddressRegion != "":
		return a.AddressLocality + ", " + a.AddressRegion
	case a.AddressLocality != "":
		return a.AddressLocality
	default:
		return a.AddressRegion
	}
}

func employmentTypeFromLD(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil && len(list) > 0 {
		return list[0]
	}
	return ""
}
