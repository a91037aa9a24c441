// Package app initializes and holds long-lived application services, acting as a dependency injection container.
package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/atlas-archive/atlas/internal/clock/system"
	"github.com/atlas-archive/atlas/internal/config"
	"github.com/atlas-archive/atlas/internal/content"
	"github.com/atlas-archive/atlas/internal/errhandler"
	"github.com/atlas-archive/atlas/internal/evaluator"
	"github.com/atlas-archive/atlas/internal/fetcher"
	collyfetcher "github.com/atlas-archive/atlas/internal/fetcher/colly"
	"github.com/atlas-archive/atlas/internal/fetcher/headless"
	"github.com/atlas-archive/atlas/internal/id/uuid"
	"github.com/atlas-archive/atlas/internal/ingest"
	"github.com/atlas-archive/atlas/internal/instapaper"
	"github.com/atlas-archive/atlas/internal/logging"
	"github.com/atlas-archive/atlas/internal/metrics"
	"github.com/atlas-archive/atlas/internal/paths"
	"github.com/atlas-archive/atlas/internal/podcast"
	"github.com/atlas-archive/atlas/internal/policy/backoff"
	"github.com/atlas-archive/atlas/internal/policy/ratelimit"
	"github.com/atlas-archive/atlas/internal/retryqueue"
	"github.com/atlas-archive/atlas/internal/storage/local"
	"github.com/atlas-archive/atlas/internal/youtube"
)

// App holds the shared, long-lived services of one CLI invocation: the
// logger, the on-disk library, the retry queue and the HTTP and browser
// transports. Ingestors are built from it on demand.
type App struct {
	cfg      config.Config
	logger   *zap.Logger
	paths    *paths.Manager
	files    *local.Store
	queue    *retryqueue.Queue
	clock    *system.Clock
	eval     *evaluator.Hook
	http     *collyfetcher.Fetcher
	renderer fetcher.Renderer
	closers  []func() error
}

// GetLogger returns the shared zap logger.
func (a *App) GetLogger() *zap.Logger {
	return a.logger
}

// GetConfig returns the configuration snapshot the app was built from.
func (a *App) GetConfig() config.Config {
	return a.cfg
}

// GetPaths exposes the path manager.
func (a *App) GetPaths() *paths.Manager {
	return a.paths
}

// NewApp creates the service container from cfg. It fails fast if the data
// directory cannot be prepared.
func NewApp(cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()

	pathCfg, err := cfg.PathConfig()
	if err != nil {
		return nil, err
	}
	pm, err := paths.New(pathCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize paths: %w", err)
	}
	files, err := local.New(local.Config{
		BaseDir:   pm.DataDir(),
		Validator: pm,
		Suffixer:  uuid.NewUUIDGenerator(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	clock := system.New()
	queue, err := retryqueue.New(cfg.RetryQueuePath, clock)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize retry queue: %w", err)
	}
	eval, err := evaluator.FromSettings(cfg.Evaluator)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize evaluator: %w", err)
	}

	a := &App{
		cfg:    cfg,
		logger: logger,
		paths:  pm,
		files:  files,
		queue:  queue,
		clock:  clock,
		eval:   evaluator.NewHook(eval, pm, files, clock, logger),
		http:   collyfetcher.New(collyfetcher.Config{UserAgent: fetcher.DesktopUserAgent}),
	}
	if cfg.HeadlessEnabled {
		browser := headless.NewChromedp(headless.Config{UserAgent: fetcher.DesktopUserAgent})
		a.renderer = browser
		a.closers = append(a.closers, func() error {
			browser.Close()
			return nil
		})
	} else {
		a.renderer = headless.Noop{}
	}

	logger.Info("application services initialized",
		zap.String("data_directory", pm.DataDir()),
		zap.String("retry_queue", queue.Path()),
		zap.Strings("fetch_strategies", cfg.FetchStrategies),
		zap.Bool("headless", cfg.HeadlessEnabled))
	return a, nil
}

// deps builds the ingestor collaborators for ct. The returned logger also
// writes the content type's plain-text ingest log.
func (a *App) deps(ct paths.ContentType, reprocess bool) (ingest.Deps, error) {
	logPath, err := a.paths.LogPath(ct)
	if err != nil {
		return ingest.Deps{}, err
	}
	logger, closeLog, err := logging.WithIngestLog(a.logger, logPath, string(ct))
	if err != nil {
		return ingest.Deps{}, err
	}
	a.closers = append(a.closers, closeLog)
	return ingest.Deps{
		Paths:     a.paths,
		Files:     a.files,
		Errors:    errhandler.NewHandler(a.queue, logger),
		Evaluator: a.eval,
		Clock:     a.clock,
		Logger:    logger,
		Reprocess: reprocess,
	}, nil
}

// Articles builds the article ingestor over the configured fetch cascade.
func (a *App) Articles(reprocess bool) (*ingest.Article, error) {
	deps, err := a.deps(paths.Article, reprocess)
	if err != nil {
		return nil, err
	}
	strategies, err := fetcher.Build(a.cfg.FetchStrategies, a.http, a.renderer, fetcher.Endpoints{})
	if err != nil {
		return nil, err
	}
	analyzer := content.NewAnalyzer(content.DefaultOptions(), deps.Logger)
	cascade := fetcher.NewOrchestrator(strategies, analyzer, deps.Logger, metrics.ObserveFetchAttempt)
	return ingest.NewArticle(deps, cascade)
}

// YouTube builds the video ingestor with the yt-dlp fallback.
func (a *App) YouTube(reprocess bool) (*ingest.YouTube, error) {
	deps, err := a.deps(paths.YouTube, reprocess)
	if err != nil {
		return nil, err
	}
	return ingest.NewYouTube(deps, youtube.NewClient(nil), youtube.NewYtDLP(a.cfg.YtDLPPath), ingest.DefaultTranscriptLanguage)
}

// Podcasts builds the podcast ingestor. transcriber may be nil.
func (a *App) Podcasts(reprocess bool, transcriber podcast.Transcriber) (*ingest.Podcast, error) {
	deps, err := a.deps(paths.Podcast, reprocess)
	if err != nil {
		return nil, err
	}
	return ingest.NewPodcast(deps, podcast.NewFeedReader(a.http), podcast.NewDownloader(nil, fetcher.DesktopUserAgent), transcriber)
}

// Instapaper builds the bookmark ingestor. export may be nil.
func (a *App) Instapaper(reprocess bool, export []instapaper.ExportRow) (*ingest.Instapaper, error) {
	apiCfg, err := a.cfg.Instapaper()
	if err != nil {
		return nil, err
	}
	deps, err := a.deps(paths.Instapaper, reprocess)
	if err != nil {
		return nil, err
	}
	pacer := ratelimit.New(ratelimit.Config{
		MinInterval: a.cfg.InstapaperMinInterval,
		BatchSize:   a.cfg.InstapaperBatchSize,
		BatchPause:  a.cfg.InstapaperBatchPause,
		OnDelay: func(d time.Duration) {
			metrics.ObserveRateLimitDelay("instapaper", d)
		},
	})
	client, err := instapaper.NewClient(apiCfg, a.http, pacer, backoff.NewExponential(errhandler.ShouldRetry), deps.Logger)
	if err != nil {
		return nil, err
	}
	return ingest.NewInstapaper(deps, client, pacer, export)
}

// RetryQueue exposes the retry queue.
func (a *App) RetryQueue() *retryqueue.Queue {
	return a.queue
}

// FlushMetrics writes the metrics textfile when one is configured.
func (a *App) FlushMetrics(_ context.Context) error {
	if a.cfg.MetricsTextfile == "" {
		return nil
	}
	return metrics.WriteTextfile(a.cfg.MetricsTextfile)
}

// Close releases the browser and flushes the ingest logs.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("error closing service", zap.Error(err))
		}
	}
	a.closers = nil
	_ = a.logger.Sync() //nolint:errcheck // stderr sync fails on some platforms
}
