// Package server builds the application dependency graph and runs the HTTP
// service.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/talentwire/jobfetch/internal/api"
	"github.com/talentwire/jobfetch/internal/archive"
	archivegcs "github.com/talentwire/jobfetch/internal/archive/gcs"
	archivememory "github.com/talentwire/jobfetch/internal/archive/memory"
	"github.com/talentwire/jobfetch/internal/cache"
	"github.com/talentwire/jobfetch/internal/clock/system"
	"github.com/talentwire/jobfetch/internal/config"
	"github.com/talentwire/jobfetch/internal/executor"
	"github.com/talentwire/jobfetch/internal/extract"
	collyfetcher "github.com/talentwire/jobfetch/internal/fetcher/colly"
	"github.com/talentwire/jobfetch/internal/hash/sha256"
	"github.com/talentwire/jobfetch/internal/id/uuid"
	"github.com/talentwire/jobfetch/internal/logging"
	"github.com/talentwire/jobfetch/internal/platform"
	memorypublisher "github.com/talentwire/jobfetch/internal/publisher/memory"
	gcppublisher "github.com/talentwire/jobfetch/internal/publisher/pubsub"
	"github.com/talentwire/jobfetch/internal/ratelimit"
	"github.com/talentwire/jobfetch/internal/scrape"
	"github.com/talentwire/jobfetch/internal/session"
	memorystore "github.com/talentwire/jobfetch/internal/store/memory"
	pgstore "github.com/talentwire/jobfetch/internal/store/postgres"
	"github.com/talentwire/jobfetch/internal/telemetry"
)

// App holds the built dependency graph.
type App struct {
	cfg           *config.Config
	logger        *zap.Logger
	apiServer     *api.Server
	pubsubClient  *pubsub.Client
	storageClient *storage.Client
	records       scrape.RecordStore
}

// Build creates every component from config and wires them together.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}
	zap.ReplaceGlobals(logger)
	telemetry.Init()

	app := &App{cfg: cfg, logger: logger}
	app.logger.Info("building application dependencies", zap.Int("port", cfg.Server.Port))

	clk := system.New()
	hasher := sha256.New()
	registry := platform.NewRegistry()

	postingCache, err := cache.New[scrape.Posting](cache.Config{
		Capacity:   cfg.Cache.Capacity,
		DefaultTTL: cfg.CacheTTL(),
	}, clk)
	if err != nil {
		return nil, fmt.Errorf("cache init failed: %w", err)
	}

	limiter, err := ratelimit.New(ratelimit.Config{
		MaxPermits: cfg.RateLimit.MaxPermits,
		Window:     cfg.RateLimit.Window(),
	}, clk)
	if err != nil {
		return nil, fmt.Errorf("rate limiter init failed: %w", err)
	}

	fetcher, err := app.setupFetcher(ctx, hasher, clk)
	if err != nil {
		return nil, err
	}

	sessions, err := app.buildSessions(registry, fetcher, clk)
	if err != nil {
		return nil, err
	}

	if err = app.setupRecords(ctx); err != nil {
		return nil, err
	}

	publisher, err := app.setupPublisher(ctx)
	if err != nil {
		return nil, err
	}

	runnerSessions := make(map[scrape.Platform]executor.SessionRunner, len(sessions))
	adminSessions := make(map[scrape.Platform]api.SessionAdmin, len(sessions))
	for plat, sess := range sessions {
		runnerSessions[plat] = sess
		adminSessions[plat] = sess
	}

	exec, err := executor.New(executor.Config{
		Workers:          cfg.Executor.Workers,
		BatchMax:         cfg.Executor.BatchMax,
		BatchTimeout:     cfg.Executor.BatchTimeout(),
		AdmissionTimeout: cfg.RateLimit.AdmissionTimeout(),
		PublishTopic:     cfg.PubSub.Topic,
	}, executor.Deps{
		Cache:     postingCache,
		Limiter:   limiter,
		Registry:  registry,
		Sessions:  runnerSessions,
		Hasher:    hasher,
		Clock:     clk,
		IDs:       uuid.New(),
		Records:   app.records,
		Publisher: publisher,
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("executor init failed: %w", err)
	}

	app.apiServer = api.NewServer(exec, postingCache, adminSessions, registry, app.records, *cfg, logger)
	return app, nil
}

// setupFetcher builds the colly fetcher and, when archival is configured,
// wraps it so raw pages land in the blob store.
func (a *App) setupFetcher(ctx context.Context, hasher scrape.Hasher, clk scrape.Clock) (scrape.Fetcher, error) {
	base := collyfetcher.New(collyfetcher.Config{
		UserAgent:       a.cfg.HTTP.UserAgent,
		Timeout:         a.cfg.HTTP.Timeout(),
		ProxyURL:        a.cfg.Session.ProxyURL,
		PolitenessRPS:   a.cfg.HTTP.PolitenessRPS,
		PolitenessBurst: a.cfg.HTTP.PolitenessBurst,
	})

	var store scrape.BlobStore
	switch a.cfg.Archive.Backend {
	case "gcs":
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("gcs client init failed: %w", err)
		}
		a.storageClient = client
		store, err = archivegcs.New(client, archivegcs.Config{Bucket: a.cfg.Archive.Bucket})
		if err != nil {
			return nil, fmt.Errorf("gcs blob store init failed: %w", err)
		}
		a.logger.Info("archiving raw pages to GCS", zap.String("bucket", a.cfg.Archive.Bucket))
	case "memory":
		store = archivememory.NewBlobStore()
		a.logger.Info("archiving raw pages in memory")
	default:
		return base, nil
	}

	wrapped, err := archive.NewFetcher(base, store, a.cfg.Archive.Prefix, hasher, clk, a.logger)
	if err != nil {
		return nil, fmt.Errorf("archive fetcher init failed: %w", err)
	}
	return wrapped, nil
}

func (a *App) buildSessions(registry *platform.Registry, fetcher scrape.Fetcher, clk scrape.Clock) (map[scrape.Platform]*session.Session, error) {
	sessions := make(map[scrape.Platform]*session.Session)
	for _, plat := range registry.Supported() {
		sess, err := session.New(session.Config{
			Platform:    plat,
			MaxAttempts: a.cfg.Session.MaxAttempts,
			Backoff: session.Backoff{
				Initial: time.Duration(a.cfg.Session.BackoffInitialMs) * time.Millisecond,
				Max:     time.Duration(a.cfg.Session.BackoffMaxMs) * time.Millisecond,
				Factor:  a.cfg.Session.BackoffFactor,
			},
			Staleness:          time.Duration(a.cfg.Session.StalenessSeconds) * time.Second,
			ReinitMaxAttempts:  a.cfg.Session.ReinitMaxAttempts,
			ProxyEnabled:       a.cfg.Session.ProxyURL != "",
			ProxyAttemptBudget: a.cfg.Session.ProxyAttemptBudget,
			UserAgent:          a.cfg.HTTP.UserAgent,
		}, fetcher, extract.Waterfall(plat), clk, a.logger)
		if err != nil {
			return nil, fmt.Errorf("session init failed for %s: %w", plat, err)
		}
		sessions[plat] = sess
	}
	return sessions, nil
}

func (a *App) setupRecords(ctx context.Context) error {
	if a.cfg.Records.DSN == "" {
		a.logger.Info("no records DSN configured, keeping audit records in memory")
		a.records = memorystore.NewRecordStore()
		return nil
	}
	store, err := pgstore.NewRecordStore(ctx, pgstore.Config{
		DSN:   a.cfg.Records.DSN,
		Table: a.cfg.Records.Table,
	})
	if err != nil {
		return fmt.Errorf("record store init failed: %w", err)
	}
	a.records = store
	a.logger.Info("record store initialized", zap.String("table", a.cfg.Records.Table))
	return nil
}

func (a *App) setupPublisher(ctx context.Context) (scrape.Publisher, error) {
	if a.cfg.PubSub.ProjectID == "" {
		a.logger.Info("no Pub/Sub project configured, using in-memory publisher")
		return memorypublisher.New(), nil
	}
	client, err := pubsub.NewClient(ctx, a.cfg.PubSub.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("pubsub client init failed: %w", err)
	}
	a.pubsubClient = client
	a.logger.Info("Pub/Sub publisher initialized",
		zap.String("project", a.cfg.PubSub.ProjectID),
		zap.String("topic", a.cfg.PubSub.Topic),
	)
	return gcppublisher.New(client)
}

// Run starts the HTTP server and blocks until the context is canceled or a
// termination signal arrives.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}

	return a.Close(shutdownCtx)
}

// Close releases external clients.
func (a *App) Close(_ context.Context) error {
	if a.pubsubClient != nil {
		if err := a.pubsubClient.Close(); err != nil {
			a.logger.Warn("pubsub client close failed", zap.Error(err))
		}
	}
	if a.storageClient != nil {
		if err := a.storageClient.Close(); err != nil {
			a.logger.Warn("gcs client close failed", zap.Error(err))
		}
	}
	if a.records != nil {
		a.records.Close()
	}
	if err := a.logger.Sync(); err != nil {
		a.logger.Warn("logger sync failed", zap.Error(err))
	}
	a.logger.Info("shutdown complete")
	return nil
}
