// Package main hosts the job-posting fetch service entrypoint.
//
// Architecture overview:
//   - HTTP API: internal/api.Server exposes scrape, batch, cache-admin,
//     session-admin and health endpoints. Single and batch requests flow
//     through the same executor, so one URL is just a batch of one.
//   - Executor: targets are resolved against the platform registry, served
//     from the posting cache when possible, and otherwise fanned out over a
//     bounded worker pool. Results always come back in input order and
//     per-item failures never abort siblings.
//   - Rate limiting: a sliding-window limiter bounds outbound fetch admissions
//     globally; a per-host pacer inside the Colly fetcher spaces requests to
//     any single site.
//   - Sessions: one long-lived session per platform carries browser-shaped
//     headers, classifies HTTP failures, retries with exponential backoff and
//     reinitializes itself when degraded or stale. Reinitialization is
//     serialized so concurrent workers never stampede a target.
//   - Extraction: JSON-LD first, OpenGraph metadata second, platform CSS
//     selectors last; the first extractor producing a sufficient posting wins.
//   - Persistence & fanout: completed items are recorded to Postgres (or
//     memory) and published to Pub/Sub when configured. Raw HTML can be
//     archived to GCS via the archive fetcher decorator.
//   - Configuration & plumbing: Viper populates config from env/files with the
//     JOBFETCH_ prefix; zap provides structured logging; Prometheus metrics
//     are exported via middleware and /metrics.
//
// Operational notes:
//   - Shutdown is coordinated via context cancellation from SIGINT/SIGTERM;
//     the HTTP server drains with a 10s grace period.
//   - Sessions initialize lazily on first use, so a freshly started instance
//     reports ready before it has fetched anything.
//
// Run locally: go run ./cmd/jobfetch -config config.yaml (or rely solely on
// JOBFETCH_* env overrides).
package main
