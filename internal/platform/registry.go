// Package platform routes raw URLs to supported job sites and canonicalizes
// them for caching and fetching.
package platform

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/talentwire/jobfetch/internal/scrape"
)

// Capability bundles what the service can do for one platform: recognize its
// URLs and rewrite them into the canonical posting form. Canonicalization is
// idempotent; normalizing a canonical URL returns it unchanged.
type Capability struct {
	Kind      scrape.Platform
	Detect    func(u *url.URL) bool
	Normalize func(u *url.URL) (string, error)
}

// Registry resolves raw URLs against the registered capabilities in order.
type Registry struct {
	caps []Capability
}

// NewRegistry creates a Registry with all supported platforms.
func NewRegistry() *Registry {
	return &Registry{
		caps: []Capability{
			linkedinCapability(),
			internshalaCapability(),
			indeedCapability(),
		},
	}
}

// Supported lists the registered platform kinds.
func (r *Registry) Supported() []scrape.Platform {
	out := make([]scrape.Platform, 0, len(r.caps))
	for _, c := range r.caps {
		out = append(out, c.Kind)
	}
	return out
}

// Resolve parses raw, finds the owning platform, and returns the canonical
// target. Unrecognized hosts resolve to an error.
func (r *Registry) Resolve(raw string) (scrape.Target, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return scrape.Target{}, fmt.Errorf("url is required")
	}
	if !strings.HasPrefix(trimmed, "http://") && !strings.HasPrefix(trimmed, "https://") {
		trimmed = "https://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return scrape.Target{}, fmt.Errorf("parse url %q: %w", raw, err)
	}
	if u.Hostname() == "" {
		return scrape.Target{}, fmt.Errorf("url %q has no host", raw)
	}
	for _, c := range r.caps {
		if !c.Detect(u) {
			continue
		}
		canonical, err := c.Normalize(u)
		if err != nil {
			return scrape.Target{}, fmt.Errorf("normalize %s url %q: %w", c.Kind, raw, err)
		}
		return scrape.Target{Raw: raw, Canonical: canonical, Platform: c.Kind}, nil
	}
	return scrape.Target{}, fmt.Errorf("unsupported site %q", u.Hostname())
}

// hostMatches reports whether host equals domain or is a subdomain of it.
func hostMatches(host, domain string) bool {
	host = strings.ToLower(host)
	return host == domain || strings.HasSuffix(host, "."+domain)
}
