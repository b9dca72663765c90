// Package session maintains one long-lived fetch identity per platform:
// browser-shaped headers, health state, retry policy and proxy fallback.
package session

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/talentwire/jobfetch/internal/scrape"
	"github.com/talentwire/jobfetch/internal/telemetry"
)

// State is the session lifecycle state.
type State string

// Session states. Transitions: Uninitialized -> Reinitializing -> Ready;
// Ready -> Degraded on auth failure or timeout; Degraded -> Reinitializing
// before the next attempt.
const (
	StateUninitialized  State = "uninitialized"
	StateReady          State = "ready"
	StateDegraded       State = "degraded"
	StateReinitializing State = "reinitializing"
)

// InitFunc produces a fresh header context for the session. The default
// builds browser-shaped headers; tests inject failures through it.
type InitFunc func(ctx context.Context) (http.Header, error)

// Config controls session behavior.
type Config struct {
	Platform           scrape.Platform
	MaxAttempts        int
	Backoff            Backoff
	Staleness          time.Duration
	ReinitMaxAttempts  int
	ProxyEnabled       bool
	ProxyAttemptBudget int
	UserAgent          string
}

// Session executes fetch attempts for one platform. Safe for concurrent use;
// reinitialization is serialized so concurrent workers never stampede the
// target with fresh-session probes.
type Session struct {
	cfg        Config
	fetcher    scrape.Fetcher
	extractors []scrape.Extractor
	clock      scrape.Clock
	logger     *zap.Logger
	initFn     InitFunc

	mu           sync.Mutex
	cond         *sync.Cond
	state        State
	headers      http.Header
	createdAt    time.Time
	lastUsedAt   time.Time
	requestCount int64
}

// New creates a Session.
func New(cfg Config, fetcher scrape.Fetcher, extractors []scrape.Extractor, clk scrape.Clock, logger *zap.Logger, opts ...Option) (*Session, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("fetcher is required")
	}
	if len(extractors) == 0 {
		return nil, fmt.Errorf("at least one extractor is required")
	}
	if clk == nil {
		return nil, fmt.Errorf("clock is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.ReinitMaxAttempts <= 0 {
		cfg.ReinitMaxAttempts = 3
	}
	s := &Session{
		cfg:        cfg,
		fetcher:    fetcher,
		extractors: extractors,
		clock:      clk,
		logger:     logger.Named("session").With(zap.String("platform", string(cfg.Platform))),
		state:      StateUninitialized,
	}
	s.cond = sync.NewCond(&s.mu)
	s.initFn = s.defaultInit
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Option customizes a Session.
type Option func(*Session)

// WithInitFunc replaces the session initializer.
func WithInitFunc(fn InitFunc) Option {
	return func(s *Session) {
		if fn != nil {
			s.initFn = fn
		}
	}
}

// defaultInit builds the browser-shaped header context sent on every fetch.
func (s *Session) defaultInit(_ context.Context) (http.Header, error) {
	h := http.Header{}
	if s.cfg.UserAgent != "" {
		h.Set("User-Agent", s.cfg.UserAgent)
	}
	h.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	h.Set("Accept-Language", "en-US,en;q=0.9")
	h.Set("DNT", "1")
	h.Set("Connection", "keep-alive")
	h.Set("Upgrade-Insecure-Requests", "1")
	return h, nil
}

// Execute fetches and extracts one canonical target. It returns the winning
// extraction, the number of attempts consumed, and a classified error when
// every attempt failed.
func (s *Session) Execute(ctx context.Context, target string) (scrape.Extraction, int, error) {
	proxyEnabled := s.cfg.ProxyEnabled
	var lastErr error

	for attempt := 1; attempt <= s.cfg.MaxAttempts; attempt++ {
		if err := s.ensureReady(ctx); err != nil {
			return scrape.Extraction{}, attempt, err
		}

		useProxy := proxyEnabled && attempt <= s.cfg.ProxyAttemptBudget
		resp, err := s.fetcher.Fetch(ctx, scrape.FetchRequest{
			URL:      target,
			Headers:  s.snapshotHeaders(),
			UseProxy: useProxy,
		})
		s.touch()

		if err != nil {
			if ctx.Err() != nil {
				return scrape.Extraction{}, attempt, scrape.WrapError(scrape.KindTransientNetwork, "fetch canceled", err)
			}
			telemetry.RecordFetchAttempt(string(s.cfg.Platform), "transport_error")
			s.logger.Warn("fetch transport failure",
				zap.String("target", target),
				zap.Int("attempt", attempt),
				zap.Error(err))
			lastErr = scrape.WrapError(scrape.KindTransientNetwork, "transport failure", err)
			if isTimeout(err) {
				s.markDegraded()
			}
			if err := s.backoff(ctx, attempt); err != nil {
				return scrape.Extraction{}, attempt, err
			}
			continue
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			telemetry.RecordFetchAttempt(string(s.cfg.Platform), "success")
			extraction, exErr := s.extract(target, resp.Body)
			if exErr == nil {
				return extraction, attempt, nil
			}
			s.logger.Warn("extraction insufficient",
				zap.String("target", target),
				zap.Int("attempt", attempt),
				zap.Int("body_bytes", len(resp.Body)))
			lastErr = scrape.NewError(scrape.KindExtractionInsufficient, "no extractor produced usable content")
			if err := s.backoff(ctx, attempt); err != nil {
				return scrape.Extraction{}, attempt, err
			}
			continue
		}

		kind := scrape.ClassifyStatus(resp.StatusCode)
		telemetry.RecordFetchAttempt(string(s.cfg.Platform), fmt.Sprintf("http_%d", resp.StatusCode))
		lastErr = scrape.NewError(kind, "target returned status %d", resp.StatusCode)

		switch kind {
		case scrape.KindResourceNotFound:
			// Terminal: retrying a 404 cannot succeed.
			return scrape.Extraction{}, attempt, lastErr
		case scrape.KindProxyAuthFailure:
			// Drop the proxy for the rest of this item and retry at once.
			s.logger.Warn("proxy auth failure, disabling proxy for item", zap.String("target", target))
			proxyEnabled = false
			continue
		case scrape.KindAuthExpired:
			s.markDegraded()
		}

		if err := s.backoff(ctx, attempt); err != nil {
			return scrape.Extraction{}, attempt, err
		}
	}
	return scrape.Extraction{}, s.cfg.MaxAttempts, lastErr
}

// extract runs the waterfall in priority order.
func (s *Session) extract(target string, body []byte) (scrape.Extraction, error) {
	for _, e := range s.extractors {
		extraction, err := e.Extract(target, body)
		if err == nil {
			s.logger.Debug("extraction succeeded",
				zap.String("target", target),
				zap.String("method", extraction.Method))
			return extraction, nil
		}
	}
	return scrape.Extraction{}, scrape.NewError(scrape.KindExtractionInsufficient, "all extractors insufficient")
}

// backoff pauses between attempts unless this was the final one.
func (s *Session) backoff(ctx context.Context, attempt int) error {
	if attempt >= s.cfg.MaxAttempts {
		return nil
	}
	if err := sleep(ctx, s.cfg.Backoff.Delay(attempt)); err != nil {
		return scrape.WrapError(scrape.KindTransientNetwork, "backoff interrupted", err)
	}
	return nil
}

// ensureReady brings the session to Ready, reinitializing when the session is
// new, degraded, or stale. Only one reinitialization runs at a time; other
// callers wait for its outcome.
func (s *Session) ensureReady(ctx context.Context) error {
	s.mu.Lock()
	for s.state == StateReinitializing {
		s.cond.Wait()
	}

	needsInit := false
	switch s.state {
	case StateUninitialized, StateDegraded:
		needsInit = true
	case StateReady:
		if s.cfg.Staleness > 0 && s.clock.Now().Sub(s.lastUsedAt) > s.cfg.Staleness {
			s.logger.Info("session stale, reinitializing",
				zap.Duration("idle", s.clock.Now().Sub(s.lastUsedAt)))
			needsInit = true
		}
	}
	if !needsInit {
		s.mu.Unlock()
		return nil
	}
	s.state = StateReinitializing
	s.mu.Unlock()

	headers, err := s.reinitialize(ctx)

	s.mu.Lock()
	if err != nil {
		s.state = StateDegraded
	} else {
		s.headers = headers
		s.state = StateReady
		now := s.clock.Now()
		s.createdAt = now
		s.lastUsedAt = now
	}
	s.cond.Broadcast()
	s.mu.Unlock()

	if err != nil {
		return scrape.WrapError(scrape.KindSessionReinitFailed,
			fmt.Sprintf("reinitialization exhausted after %d attempts", s.cfg.ReinitMaxAttempts), err)
	}
	return nil
}

// reinitialize runs the initializer with bounded attempts.
func (s *Session) reinitialize(ctx context.Context) (http.Header, error) {
	var lastErr error
	for i := 1; i <= s.cfg.ReinitMaxAttempts; i++ {
		headers, err := s.initFn(ctx)
		if err == nil {
			telemetry.RecordSessionReinit(string(s.cfg.Platform), "success")
			s.logger.Info("session initialized", zap.Int("attempt", i))
			return headers, nil
		}
		lastErr = err
		telemetry.RecordSessionReinit(string(s.cfg.Platform), "failure")
		s.logger.Warn("session init failed", zap.Int("attempt", i), zap.Error(err))
		if ctx.Err() != nil {
			break
		}
	}
	return nil, lastErr
}

// Refresh forces a reinitialization regardless of current health.
func (s *Session) Refresh(ctx context.Context) error {
	s.markDegraded()
	return s.ensureReady(ctx)
}

func (s *Session) markDegraded() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateReady {
		s.state = StateDegraded
	}
}

func (s *Session) touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requestCount++
	s.lastUsedAt = s.clock.Now()
}

func (s *Session) snapshotHeaders() http.Header {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.headers.Clone()
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Stats reports the admin view of this session.
func (s *Session) Stats() scrape.SessionStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	stats := scrape.SessionStats{
		Platform:     s.cfg.Platform,
		State:        string(s.state),
		RequestCount: s.requestCount,
	}
	if !s.createdAt.IsZero() {
		stats.SessionAge = now.Sub(s.createdAt)
	}
	if !s.lastUsedAt.IsZero() {
		stats.IdleFor = now.Sub(s.lastUsedAt)
	}
	return stats
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
