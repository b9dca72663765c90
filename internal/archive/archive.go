// Package archive decorates a Fetcher so raw HTML of successful fetches is
// preserved in a blob store. Archival is best-effort: failures are logged and
// never affect the fetch result.
package archive

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/talentwire/jobfetch/internal/scrape"
)

// Fetcher wraps another scrape.Fetcher and archives 2xx response bodies.
type Fetcher struct {
	next   scrape.Fetcher
	store  scrape.BlobStore
	prefix string
	hasher scrape.Hasher
	clock  scrape.Clock
	logger *zap.Logger
}

// NewFetcher creates the archiving decorator.
func NewFetcher(next scrape.Fetcher, store scrape.BlobStore, prefix string, hasher scrape.Hasher, clk scrape.Clock, logger *zap.Logger) (*Fetcher, error) {
	if next == nil {
		return nil, fmt.Errorf("next fetcher is required")
	}
	if store == nil {
		return nil, fmt.Errorf("blob store is required")
	}
	if hasher == nil {
		return nil, fmt.Errorf("hasher is required")
	}
	if clk == nil {
		return nil, fmt.Errorf("clock is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		next:   next,
		store:  store,
		prefix: strings.Trim(prefix, "/"),
		hasher: hasher,
		clock:  clk,
		logger: logger.Named("archive"),
	}, nil
}

// Fetch delegates and archives successful bodies.
func (f *Fetcher) Fetch(ctx context.Context, request scrape.FetchRequest) (scrape.FetchResponse, error) {
	resp, err := f.next.Fetch(ctx, request)
	if err != nil || resp.StatusCode < 200 || resp.StatusCode >= 300 || len(resp.Body) == 0 {
		return resp, err
	}

	path := f.objectPath(request.URL)
	contentType := resp.Headers.Get("Content-Type")
	if contentType == "" {
		contentType = "text/html"
	}
	if uri, putErr := f.store.PutObject(ctx, path, contentType, resp.Body); putErr != nil {
		f.logger.Warn("archive fetch body", zap.String("url", request.URL), zap.Error(putErr))
	} else {
		f.logger.Debug("archived fetch body", zap.String("url", request.URL), zap.String("uri", uri))
	}
	return resp, nil
}

// objectPath buckets archives by day so lifecycle rules can expire them.
func (f *Fetcher) objectPath(url string) string {
	day := f.clock.Now().UTC().Format("2006-01-02")
	name := f.hasher.Hash([]byte(url))
	if f.prefix == "" {
		return fmt.Sprintf("%s/%s.html", day, name)
	}
	return fmt.Sprintf("%s/%s/%s.html", f.prefix, day, name)
}
