package platform

import (
	"net/url"
	"strings"

	"github.com/talentwire/jobfetch/internal/scrape"
)

// Internshala posting URLs are already well-formed; canonicalization strips
// query and fragment so tracking parameters do not split the cache.
func internshalaCapability() Capability {
	return Capability{
		Kind: scrape.PlatformInternshala,
		Detect: func(u *url.URL) bool {
			return hostMatches(u.Hostname(), "internshala.com")
		},
		Normalize: normalizeInternshala,
	}
}

func normalizeInternshala(u *url.URL) (string, error) {
	path := strings.TrimSuffix(u.Path, "/")
	return "https://" + strings.ToLower(u.Host) + path, nil
}
