// Package executor fans a batch of scrape targets out over a bounded worker
// pool, resolving cache hits up front and mapping results back to input order.
package executor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/talentwire/jobfetch/internal/cache"
	"github.com/talentwire/jobfetch/internal/platform"
	"github.com/talentwire/jobfetch/internal/ratelimit"
	"github.com/talentwire/jobfetch/internal/scrape"
	"github.com/talentwire/jobfetch/internal/telemetry"
)

// SessionRunner is the slice of a platform session the executor needs.
type SessionRunner interface {
	Execute(ctx context.Context, target string) (scrape.Extraction, int, error)
}

// Config controls batch execution.
type Config struct {
	Workers          int
	BatchMax         int
	BatchTimeout     time.Duration
	AdmissionTimeout time.Duration
	PublishTopic     string
}

// Deps are the collaborators wired in by the server. Records and Publisher
// are optional; everything else is required.
type Deps struct {
	Cache     *cache.Cache[scrape.Posting]
	Limiter   *ratelimit.Limiter
	Registry  *platform.Registry
	Sessions  map[scrape.Platform]SessionRunner
	Hasher    scrape.Hasher
	Clock     scrape.Clock
	IDs       scrape.IDGenerator
	Records   scrape.RecordStore
	Publisher scrape.Publisher
	Logger    *zap.Logger
}

// Executor runs batches. Cache and limiter are shared with the rest of the
// service; sessions are shared per platform across workers.
type Executor struct {
	cfg  Config
	deps Deps
	log  *zap.Logger
}

// New creates an Executor.
func New(cfg Config, deps Deps) (*Executor, error) {
	if deps.Cache == nil {
		return nil, fmt.Errorf("cache is required")
	}
	if deps.Limiter == nil {
		return nil, fmt.Errorf("limiter is required")
	}
	if deps.Registry == nil {
		return nil, fmt.Errorf("registry is required")
	}
	if len(deps.Sessions) == 0 {
		return nil, fmt.Errorf("at least one platform session is required")
	}
	if deps.Hasher == nil {
		return nil, fmt.Errorf("hasher is required")
	}
	if deps.Clock == nil {
		return nil, fmt.Errorf("clock is required")
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	return &Executor{cfg: cfg, deps: deps, log: deps.Logger.Named("executor")}, nil
}

// CacheKey returns the cache key for a raw URL, resolving it first. Used by
// the admin API for targeted invalidation.
func (e *Executor) CacheKey(raw string) (string, error) {
	target, err := e.deps.Registry.Resolve(raw)
	if err != nil {
		return "", err
	}
	return e.deps.Hasher.Hash([]byte(target.Canonical)), nil
}

// RunBatch processes targets and returns one result per input, in input
// order. Per-item failures never abort siblings; RunBatch itself errors only
// on invalid input.
func (e *Executor) RunBatch(ctx context.Context, targets []string, opts scrape.BatchOptions) ([]scrape.ItemResult, error) {
	if len(targets) == 0 {
		return []scrape.ItemResult{}, nil
	}
	if e.cfg.BatchMax > 0 && len(targets) > e.cfg.BatchMax {
		return nil, fmt.Errorf("batch size %d exceeds maximum %d", len(targets), e.cfg.BatchMax)
	}
	telemetry.ObserveBatchSize(len(targets))

	batchCtx := ctx
	if e.cfg.BatchTimeout > 0 {
		var cancel context.CancelFunc
		batchCtx, cancel = context.WithTimeout(ctx, e.cfg.BatchTimeout)
		defer cancel()
	}

	results := make([]scrape.ItemResult, len(targets))
	var pending []scrape.WorkItem

	for i, raw := range targets {
		target, err := e.deps.Registry.Resolve(raw)
		if err != nil {
			results[i] = scrape.ItemResult{
				Target:       raw,
				Platform:     scrape.PlatformUnknown,
				ErrorKind:    scrape.KindResourceNotFound,
				ErrorMessage: err.Error(),
			}
			telemetry.RecordItem(string(scrape.PlatformUnknown), "failed")
			continue
		}
		key := e.deps.Hasher.Hash([]byte(target.Canonical))
		if !opts.BypassCache {
			if posting, age, ok := e.deps.Cache.Get(key); ok {
				results[i] = scrape.ItemResult{
					Target:   raw,
					Platform: target.Platform,
					Success:  true,
					Posting:  &posting,
					Cached:   true,
					CacheAge: age,
				}
				telemetry.RecordItem(string(target.Platform), "cached")
				continue
			}
		}
		pending = append(pending, scrape.WorkItem{
			Index:       i,
			Target:      target,
			Key:         key,
			SubmittedAt: e.deps.Clock.Now(),
			State:       scrape.WorkPending,
		})
	}

	if len(pending) == 0 {
		return results, nil
	}

	workers := e.cfg.Workers
	if workers > len(pending) {
		workers = len(pending)
	}
	work := make(chan scrape.WorkItem)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range work {
				telemetry.IncActiveWorkers()
				// Distinct indexes per item, so no write overlaps.
				results[item.Index] = e.processItem(batchCtx, item, opts)
				telemetry.DecActiveWorkers()
			}
		}()
	}
	for _, item := range pending {
		work <- item
	}
	close(work)
	wg.Wait()

	return results, nil
}

func (e *Executor) processItem(ctx context.Context, item scrape.WorkItem, opts scrape.BatchOptions) scrape.ItemResult {
	start := e.deps.Clock.Now()
	raw := item.Target.Raw
	plat := item.Target.Platform

	if ctx.Err() != nil {
		return e.complete(ctx, item, e.failResult(raw, plat, scrape.KindTransientNetwork, "batch deadline exceeded", 0, start))
	}

	if !e.deps.Limiter.AdmitBlocking(ctx, e.cfg.AdmissionTimeout) {
		if ctx.Err() != nil {
			return e.complete(ctx, item, e.failResult(raw, plat, scrape.KindTransientNetwork, "batch deadline exceeded", 0, start))
		}
		msg := fmt.Sprintf("rate limiter admission timed out after %s", e.cfg.AdmissionTimeout)
		return e.complete(ctx, item, e.failResult(raw, plat, scrape.KindRateLimiterExhausted, msg, 0, start))
	}
	item.State = scrape.WorkAdmitted

	sess, ok := e.deps.Sessions[plat]
	if !ok {
		return e.complete(ctx, item, e.failResult(raw, plat, scrape.KindTransientNetwork,
			fmt.Sprintf("no session configured for platform %s", plat), 0, start))
	}

	item.State = scrape.WorkExecuting
	extraction, attempts, err := sess.Execute(ctx, item.Target.Canonical)
	if err != nil {
		msg := err.Error()
		if ctx.Err() != nil {
			msg = "batch deadline exceeded"
		}
		item.State = scrape.WorkFailed
		e.log.Warn("item failed",
			zap.String("target", raw),
			zap.String("platform", string(plat)),
			zap.String("kind", string(scrape.KindOf(err))),
			zap.Int("attempts", attempts))
		return e.complete(ctx, item, e.failResult(raw, plat, scrape.KindOf(err), msg, attempts, start))
	}

	posting := extraction.Posting
	posting.FetchedAt = e.deps.Clock.Now()
	if opts.TTLOverride > 0 {
		e.deps.Cache.SetTTL(item.Key, posting, opts.TTLOverride)
	} else {
		e.deps.Cache.Set(item.Key, posting)
	}

	item.State = scrape.WorkSucceeded
	telemetry.RecordItem(string(plat), "succeeded")
	result := scrape.ItemResult{
		Target:   raw,
		Platform: plat,
		Success:  true,
		Posting:  &posting,
		Attempts: attempts,
		Duration: e.deps.Clock.Now().Sub(start),
	}
	return e.complete(ctx, item, result)
}

func (e *Executor) failResult(raw string, plat scrape.Platform, kind scrape.ErrorKind, msg string, attempts int, start time.Time) scrape.ItemResult {
	telemetry.RecordItem(string(plat), "failed")
	return scrape.ItemResult{
		Target:       raw,
		Platform:     plat,
		ErrorKind:    kind,
		ErrorMessage: msg,
		Attempts:     attempts,
		Duration:     e.deps.Clock.Now().Sub(start),
	}
}

// complete runs the best-effort side channel: audit record and completion
// event. Failures there are logged and never change the item result.
func (e *Executor) complete(ctx context.Context, item scrape.WorkItem, result scrape.ItemResult) scrape.ItemResult {
	if e.deps.Records == nil && e.deps.Publisher == nil {
		return result
	}

	sideCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	id := ""
	if e.deps.IDs != nil {
		if generated, err := e.deps.IDs.NewID(); err == nil {
			id = generated
		}
	}
	now := e.deps.Clock.Now()

	if e.deps.Records != nil {
		record := scrape.ScrapeRecord{
			ID:        id,
			Target:    item.Target.Canonical,
			Platform:  result.Platform,
			Success:   result.Success,
			ErrorKind: result.ErrorKind,
			Cached:    result.Cached,
			Attempts:  result.Attempts,
			Duration:  result.Duration,
			FetchedAt: now,
		}
		if err := e.deps.Records.StoreRecord(sideCtx, record); err != nil {
			e.log.Warn("store scrape record", zap.String("target", item.Target.Canonical), zap.Error(err))
		}
	}

	if e.deps.Publisher != nil && e.cfg.PublishTopic != "" {
		event := scrape.CompletionEvent{
			ID:        id,
			Target:    item.Target.Canonical,
			Platform:  result.Platform,
			Success:   result.Success,
			ErrorKind: result.ErrorKind,
			Cached:    result.Cached,
			FetchedAt: now,
		}
		if _, err := e.deps.Publisher.Publish(sideCtx, e.cfg.PublishTopic, event); err != nil {
			e.log.Warn("publish completion event", zap.String("target", item.Target.Canonical), zap.Error(err))
		}
	}
	return result
}
