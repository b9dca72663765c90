package platform

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/talentwire/jobfetch/internal/scrape"
)

// Indeed posting URLs carry the job key in the jk parameter, on regional
// domains (in.indeed.com, ca.indeed.com, ...). Canonical form keeps the
// regional domain and drops everything except jk.
func indeedCapability() Capability {
	return Capability{
		Kind: scrape.PlatformIndeed,
		Detect: func(u *url.URL) bool {
			return hostMatches(u.Hostname(), "indeed.com")
		},
		Normalize: normalizeIndeed,
	}
}

func normalizeIndeed(u *url.URL) (string, error) {
	if jk := u.Query().Get("jk"); jk != "" {
		return fmt.Sprintf("https://%s/viewjob?jk=%s", strings.ToLower(u.Host), jk), nil
	}
	// Some posting links embed the key in the path: /viewjob/f521d46062b182d1.
	if rest, ok := strings.CutPrefix(u.Path, "/viewjob/"); ok && rest != "" {
		key := strings.Split(rest, "/")[0]
		return fmt.Sprintf("https://%s/viewjob?jk=%s", strings.ToLower(u.Host), key), nil
	}
	return "", fmt.Errorf("no jk job key in %q", u.String())
}
