package platform

import (
	"fmt"
	"net/url"
	"regexp"

	"github.com/talentwire/jobfetch/internal/scrape"
)

// LinkedIn job IDs are 10+ digit numbers. Postings appear under several URL
// shapes (collections, search, path-based, regional domains); all of them
// canonicalize to https://www.linkedin.com/jobs/view/<id>.
var (
	linkedinSlugID = regexp.MustCompile(`/jobs/view/.*?-(\d{10,})(?:/.*)?$`)
	linkedinPathID = regexp.MustCompile(`/jobs/view/(\d{10,})(?:/.*)?$`)
	linkedinAnyID  = regexp.MustCompile(`\d{10,}`)
)

func linkedinCapability() Capability {
	return Capability{
		Kind: scrape.PlatformLinkedIn,
		Detect: func(u *url.URL) bool {
			return hostMatches(u.Hostname(), "linkedin.com")
		},
		Normalize: normalizeLinkedIn,
	}
}

func normalizeLinkedIn(u *url.URL) (string, error) {
	// Collection and search URLs carry the posting in currentJobId.
	if id := u.Query().Get("currentJobId"); linkedinAnyID.MatchString(id) {
		return linkedinJobURL(id), nil
	}
	if m := linkedinSlugID.FindStringSubmatch(u.Path); m != nil {
		return linkedinJobURL(m[1]), nil
	}
	if m := linkedinPathID.FindStringSubmatch(u.Path); m != nil {
		return linkedinJobURL(m[1]), nil
	}
	// Last resort: the longest 10+ digit run anywhere in the URL.
	if ids := linkedinAnyID.FindAllString(u.String(), -1); len(ids) > 0 {
		best := ids[0]
		for _, id := range ids[1:] {
			if len(id) > len(best) {
				best = id
			}
		}
		return linkedinJobURL(best), nil
	}
	return "", fmt.Errorf("no job id in %q", u.String())
}

func linkedinJobURL(id string) string {
	return "https://www.linkedin.com/jobs/view/" + id
}
