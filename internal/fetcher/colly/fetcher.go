// Package collyfetcher implements scrape.Fetcher using gocolly.
package collyfetcher

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/talentwire/jobfetch/internal/scrape"
)

// Config controls collector behavior.
type Config struct {
	UserAgent       string
	Timeout         time.Duration
	ProxyURL        string
	PolitenessRPS   float64
	PolitenessBurst int
}

// Fetcher implements scrape.Fetcher using the Colly collector. Each Fetch
// builds its own collector, so the visited-URL store and proxy routing never
// leak between attempts: retries of the same target re-fetch, and a proxied
// attempt cannot redirect later direct attempts through the proxy.
type Fetcher struct {
	cfg Config
	// transport is shared by direct fetches only. SetProxy mutates the
	// transport it is given, so proxied fetches get a fresh one each time.
	transport http.RoundTripper
	pacer     *pacer
}

// New builds a Fetcher.
func New(cfg Config) *Fetcher {
	return &Fetcher{
		cfg:       cfg,
		transport: newHTTPTransport(),
		pacer:     newPacer(cfg.PolitenessRPS, cfg.PolitenessBurst),
	}
}

// Fetch executes a single HTTP GET using Colly. HTTP error statuses come back
// as a FetchResponse; only transport failures return an error.
func (f *Fetcher) Fetch(ctx context.Context, request scrape.FetchRequest) (scrape.FetchResponse, error) {
	if err := f.pacer.Wait(ctx, request.URL); err != nil {
		return scrape.FetchResponse{}, fmt.Errorf("politeness wait: %w", err)
	}

	var (
		result   scrape.FetchResponse
		fetchErr error
	)
	start := time.Now()
	collector, err := f.buildCollector(request, start, &result, &fetchErr)
	if err != nil {
		return scrape.FetchResponse{}, err
	}

	if err := f.runCollector(ctx, collector, request.URL, &fetchErr, &result); err != nil {
		return scrape.FetchResponse{}, err
	}
	return result, nil
}

func (f *Fetcher) buildCollector(
	request scrape.FetchRequest,
	start time.Time,
	result *scrape.FetchResponse,
	fetchErr *error,
) (*colly.Collector, error) {
	collector := colly.NewCollector(colly.Async(false))
	collector.IgnoreRobotsTxt = true
	collector.AllowURLRevisit = true
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	timeout := f.cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	collector.SetRequestTimeout(timeout)

	if request.UseProxy && f.cfg.ProxyURL != "" {
		collector.WithTransport(newHTTPTransport())
		if err := collector.SetProxy(f.cfg.ProxyURL); err != nil {
			return nil, fmt.Errorf("set proxy: %w", err)
		}
	} else {
		collector.WithTransport(f.transport)
	}

	collector.OnRequest(func(r *colly.Request) {
		copyHeaders(request, r)
	})

	collector.OnResponse(func(r *colly.Response) {
		*result = scrape.FetchResponse{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Headers:    r.Headers.Clone(),
			Body:       append([]byte(nil), r.Body...),
			Duration:   time.Since(start),
		}
	})

	collector.OnError(func(r *colly.Response, err error) {
		// Colly reports non-2xx statuses here; surface them as responses so
		// the session can classify the status code.
		if r != nil && r.StatusCode > 0 {
			headers := http.Header{}
			if r.Headers != nil {
				headers = r.Headers.Clone()
			}
			*result = scrape.FetchResponse{
				URL:        request.URL,
				StatusCode: r.StatusCode,
				Headers:    headers,
				Body:       append([]byte(nil), r.Body...),
				Duration:   time.Since(start),
			}
			return
		}
		*fetchErr = err
	})

	return collector, nil
}

func (f *Fetcher) runCollector(
	ctx context.Context,
	collector *colly.Collector,
	url string,
	fetchErr *error,
	result *scrape.FetchResponse,
) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("fetch canceled: %w", ctx.Err())
	case err := <-done:
		if *fetchErr != nil {
			return fmt.Errorf("fetch failed: %w", *fetchErr)
		}
		if result.StatusCode != 0 {
			// An HTTP error status was captured; Visit's error mirrors it.
			return nil
		}
		if err != nil {
			return fmt.Errorf("visit failed: %w", err)
		}
		return nil
	}
}

func copyHeaders(request scrape.FetchRequest, r *colly.Request) {
	if request.Headers == nil {
		return
	}
	for key, values := range request.Headers {
		for _, v := range values {
			r.Headers.Set(key, v)
		}
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
