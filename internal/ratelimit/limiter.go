// Package ratelimit provides sliding-window admission control for outbound
// scraping work.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/talentwire/jobfetch/internal/scrape"
	"github.com/talentwire/jobfetch/internal/telemetry"
)

// Config controls the admission window.
type Config struct {
	MaxPermits int
	Window     time.Duration
}

// Limiter admits at most MaxPermits operations within any trailing Window.
// It counts actual admission timestamps rather than refilling tokens, so a
// burst straddling a fixed-window boundary is still bounded.
type Limiter struct {
	mu         sync.Mutex
	maxPermits int
	window     time.Duration
	admissions []time.Time
	clock      scrape.Clock
}

// New creates a Limiter.
func New(cfg Config, clk scrape.Clock) (*Limiter, error) {
	if cfg.MaxPermits <= 0 {
		return nil, fmt.Errorf("max permits must be positive, got %d", cfg.MaxPermits)
	}
	if cfg.Window <= 0 {
		return nil, fmt.Errorf("window must be positive, got %s", cfg.Window)
	}
	if clk == nil {
		return nil, fmt.Errorf("clock is required")
	}
	return &Limiter{
		maxPermits: cfg.MaxPermits,
		window:     cfg.Window,
		admissions: make([]time.Time, 0, cfg.MaxPermits),
		clock:      clk,
	}, nil
}

// TryAdmit grants a permit if the trailing window has room. Non-blocking.
func (l *Limiter) TryAdmit() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	l.pruneLocked(now)
	if len(l.admissions) >= l.maxPermits {
		return false
	}
	l.admissions = append(l.admissions, now)
	return true
}

// AdmitBlocking waits until a permit is available, the timeout elapses, or
// ctx is done. It returns true only when a permit was granted.
func (l *Limiter) AdmitBlocking(ctx context.Context, timeout time.Duration) bool {
	start := l.clock.Now()
	deadline := start.Add(timeout)
	defer func() {
		telemetry.ObserveAdmissionWait(l.clock.Now().Sub(start))
	}()

	for {
		if l.TryAdmit() {
			return true
		}
		now := l.clock.Now()
		if !now.Before(deadline) {
			return false
		}
		wait := l.nextSlot(now)
		if remaining := deadline.Sub(now); wait > remaining {
			wait = remaining
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return false
		case <-timer.C:
		}
	}
}

// nextSlot returns how long until the oldest admission leaves the window.
func (l *Limiter) nextSlot(now time.Time) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.pruneLocked(now)
	if len(l.admissions) < l.maxPermits {
		return time.Millisecond
	}
	wait := l.admissions[0].Add(l.window).Sub(now)
	if wait < time.Millisecond {
		wait = time.Millisecond
	}
	return wait
}

// InFlight returns the number of admissions still inside the window.
func (l *Limiter) InFlight() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.pruneLocked(l.clock.Now())
	return len(l.admissions)
}

// pruneLocked drops timestamps older than the trailing window.
func (l *Limiter) pruneLocked(now time.Time) {
	cutoff := now.Add(-l.window)
	idx := 0
	for idx < len(l.admissions) && !l.admissions[idx].After(cutoff) {
		idx++
	}
	if idx > 0 {
		l.admissions = append(l.admissions[:0], l.admissions[idx:]...)
	}
}
