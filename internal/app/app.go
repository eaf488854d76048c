// Package app builds the long-lived services of a crawl run from config and
// owns their shutdown.
package app

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"net/http"
	"sync"
	"time"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/campus-kg-crawler/internal/api"
	"github.com/JakeFAU/campus-kg-crawler/internal/chunker"
	"github.com/JakeFAU/campus-kg-crawler/internal/clock/system"
	"github.com/JakeFAU/campus-kg-crawler/internal/config"
	"github.com/JakeFAU/campus-kg-crawler/internal/crawler"
	"github.com/JakeFAU/campus-kg-crawler/internal/discovery"
	"github.com/JakeFAU/campus-kg-crawler/internal/dispatcher"
	"github.com/JakeFAU/campus-kg-crawler/internal/extraction"
	collyfetcher "github.com/JakeFAU/campus-kg-crawler/internal/fetcher/colly"
	"github.com/JakeFAU/campus-kg-crawler/internal/hash/sha256"
	"github.com/JakeFAU/campus-kg-crawler/internal/id/uuid"
	"github.com/JakeFAU/campus-kg-crawler/internal/ledger"
	"github.com/JakeFAU/campus-kg-crawler/internal/oracle"
	queueMemory "github.com/JakeFAU/campus-kg-crawler/internal/queue/memory"
	"github.com/JakeFAU/campus-kg-crawler/internal/resolver"
	gcsstorage "github.com/JakeFAU/campus-kg-crawler/internal/storage/gcs"
	localstorage "github.com/JakeFAU/campus-kg-crawler/internal/storage/local"
	pgstore "github.com/JakeFAU/campus-kg-crawler/internal/storage/postgres"
	"github.com/JakeFAU/campus-kg-crawler/internal/worker"
)

// App contains the application's dependencies.
type App struct {
	cfg    config.Config
	logger *zap.Logger

	ledger   crawler.Ledger
	pgLedger *pgstore.LedgerStore
	status   *localstorage.StatusFile
	oracle   crawler.Oracle
	chunker  *chunker.Chunker
	resolver *resolver.Resolver
	archive  crawler.BlobStore
	storage  *storage.Client

	prober *discovery.Prober
	links  *discovery.LinkDiscoverer
	// transport is shared by every Target's fetcher and robots lookup.
	transport *http.Transport

	ids    crawler.IDGenerator
	clock  crawler.Clock
	hasher crawler.Hasher

	// newFetcher is replaced in tests to avoid real network access.
	newFetcher worker.FetcherFactory
}

// Summary describes a finished run. Counts cover the reports this run wrote,
// not the cumulative status file.
type Summary struct {
	RunID      string
	Targets    int
	ReportPath string
	Counts     map[crawler.RoutingStatus]int
}

// tallySink counts the routing of every report written through it.
type tallySink struct {
	crawler.ReportSink

	mu     sync.Mutex
	counts map[crawler.RoutingStatus]int
}

func newTallySink(sink crawler.ReportSink) *tallySink {
	return &tallySink{ReportSink: sink, counts: map[crawler.RoutingStatus]int{}}
}

func (t *tallySink) WriteReport(ctx context.Context, report crawler.TargetReport) error {
	if err := t.ReportSink.WriteReport(ctx, report); err != nil {
		return err
	}
	t.mu.Lock()
	t.counts[report.Routing.Status]++
	t.mu.Unlock()
	return nil
}

func (t *tallySink) snapshot() map[crawler.RoutingStatus]int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return maps.Clone(t.counts)
}

// New builds every service named by cfg. Services that open connections or
// files are released by Close.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{
		cfg:    cfg,
		logger: logger,
		ids:    uuid.New(),
		clock:  system.New(),
		hasher: sha256.New(),

		transport: collyfetcher.NewTransport(),
	}
	a.newFetcher = a.defaultFetcher

	if err := a.setupLedger(ctx); err != nil {
		return nil, err
	}
	if err := a.setupPipeline(); err != nil {
		a.closeInfrastructure()
		return nil, err
	}
	if err := a.setupArchive(ctx); err != nil {
		a.closeInfrastructure()
		return nil, err
	}
	if err := a.setupStatus(); err != nil {
		a.closeInfrastructure()
		return nil, err
	}
	return a, nil
}

// Config returns the configuration the App was built from.
func (a *App) Config() config.Config {
	return a.cfg
}

// Logger returns the shared logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Ledger returns the failed-site ledger.
func (a *App) Ledger() crawler.Ledger {
	return a.ledger
}

// Chunker returns the configured chunker.
func (a *App) Chunker() *chunker.Chunker {
	return a.chunker
}

// Crawl runs every Target from source through the worker pool and appends
// one report per Target to the configured report stream.
func (a *App) Crawl(ctx context.Context, source crawler.TargetSource) (Summary, error) {
	runID, err := a.ids.NewID()
	if err != nil {
		return Summary{}, fmt.Errorf("generate run id: %w", err)
	}
	status, err := a.statusFile()
	if err != nil {
		return Summary{}, err
	}
	sink, err := localstorage.NewReportSink(a.cfg.Output.ReportPath)
	if err != nil {
		return Summary{}, err
	}
	defer func() {
		if cerr := sink.Close(); cerr != nil {
			a.logger.Warn("report sink close failed", zap.Error(cerr))
		}
	}()

	tally := newTallySink(sink)

	orchestrator, err := a.orchestrator(runID)
	if err != nil {
		return Summary{}, err
	}

	workers := a.cfg.Crawler.Workers
	queue := queueMemory.NewQueue(workers * 2)
	gate := worker.NewGate(
		a.ledger,
		status,
		crawler.NewDomainBlocklist(a.cfg.Crawler.BlockedDomains),
		a.cfg.Crawler.Resume,
		a.logger.Named("gate"),
	)
	workerCfg := worker.Config{
		HomepageMaxRetry: a.cfg.Crawler.HomepageMaxRetry,
		HomepageTimeout:  time.Duration(a.cfg.Crawler.HomepageTimeoutSeconds) * time.Second,
		ProbeEnabled:     a.cfg.Discovery.ProbeEnabled,
	}
	runners := make([]dispatcher.Runner, 0, workers)
	for i := 0; i < workers; i++ {
		runners = append(runners, worker.New(
			queue,
			gate,
			a.newFetcher,
			a.prober,
			a.links,
			orchestrator,
			tally,
			a.clock,
			workerCfg,
			a.logger.Named("worker").With(zap.Int("index", i)),
		))
	}

	targets := source.Targets()
	a.logger.Info("crawl started",
		zap.String("run_id", runID),
		zap.Int("targets", len(targets)),
		zap.Int("workers", workers),
		zap.String("oracle", a.cfg.ExtractionProvider()),
	)
	queued, err := dispatcher.New(queue, runners, a.logger.Named("dispatcher")).Crawl(ctx, runID, targets)
	summary := Summary{
		RunID:      runID,
		Targets:    queued,
		ReportPath: sink.Path(),
		Counts:     tally.snapshot(),
	}
	if err != nil {
		return summary, fmt.Errorf("crawl run %s: %w", runID, err)
	}
	a.logger.Info("crawl finished",
		zap.String("run_id", runID),
		zap.Int("targets", queued),
		zap.Int("completed", summary.Counts[crawler.RoutingSuccess]),
		zap.Int("skipped", summary.Counts[crawler.RoutingSkipped]),
		zap.Int("failed", summary.Counts[crawler.RoutingFailed]),
	)
	return summary, nil
}

// ServeMetrics runs the status listener on metrics.addr until ctx ends. It
// returns immediately when no address is configured.
func (a *App) ServeMetrics(ctx context.Context) error {
	if a.cfg.Metrics.Addr == "" {
		return nil
	}
	var counter api.StatusCounter
	if a.status != nil {
		counter = a.status
	}
	srv := &http.Server{
		Addr:              a.cfg.Metrics.Addr,
		Handler:           api.NewServer(a.ledger, counter, a.ready, a.logger.Named("api")).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("metrics listener started", zap.String("addr", a.cfg.Metrics.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("metrics listener: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("metrics listener shutdown: %w", err)
	}
	return nil
}

// Close releases connections and flushes the logger.
func (a *App) Close() {
	a.closeInfrastructure()
	if err := a.logger.Sync(); err != nil {
		a.logger.Debug("logger sync failed", zap.Error(err))
	}
}

func (a *App) closeInfrastructure() {
	if a.transport != nil {
		a.transport.CloseIdleConnections()
	}
	if a.storage != nil {
		if err := a.storage.Close(); err != nil {
			a.logger.Warn("gcs client close failed", zap.Error(err))
		}
		a.storage = nil
	}
	if a.pgLedger != nil {
		a.pgLedger.Close()
		a.pgLedger = nil
	}
}

func (a *App) ready(ctx context.Context) error {
	if _, err := a.ledger.List(ctx, crawler.FailureSSL); err != nil {
		return fmt.Errorf("ledger: %w", err)
	}
	return nil
}

func (a *App) setupLedger(ctx context.Context) error {
	switch a.cfg.Ledger.Backend {
	case config.LedgerBackendPostgres:
		store, err := pgstore.NewLedgerStore(ctx, pgstore.LedgerStoreConfig{
			DSN:      a.cfg.Ledger.DSN,
			Table:    a.cfg.Ledger.Table,
			MaxConns: a.cfg.Ledger.MaxConns,
		})
		if err != nil {
			return fmt.Errorf("postgres ledger init failed: %w", err)
		}
		a.pgLedger = store
		a.ledger = store
		a.logger.Info("using postgres ledger", zap.String("table", a.cfg.Ledger.Table))
	default:
		store, err := ledger.NewFileLedger(
			a.cfg.Ledger.Path,
			ledger.WithClock(a.clock),
			ledger.WithLogger(a.logger.Named("ledger")),
		)
		if err != nil {
			return fmt.Errorf("file ledger init failed: %w", err)
		}
		a.ledger = store
		a.logger.Info("using file ledger", zap.String("path", a.cfg.Ledger.Path))
	}
	return nil
}

func (a *App) setupPipeline() error {
	var err error
	a.chunker, err = chunker.New(a.cfg.Chunking.Size, a.cfg.Chunking.Overlap)
	if err != nil {
		return fmt.Errorf("chunker init failed: %w", err)
	}
	a.resolver = resolver.New(nil)

	switch a.cfg.ExtractionProvider() {
	case config.ProviderOpenRouter:
		a.oracle, err = oracle.NewOpenRouter(oracle.OpenRouterConfig{
			APIKey:            a.cfg.Extraction.APIKey,
			Model:             a.cfg.Extraction.Model,
			RequestsPerSecond: a.cfg.Extraction.RequestsPerSecond,
			Burst:             a.cfg.Extraction.Burst,
		}, a.logger.Named("oracle"))
		if err != nil {
			return fmt.Errorf("openrouter oracle init failed: %w", err)
		}
		a.logger.Info("using openrouter oracle", zap.String("model", a.cfg.Extraction.Model))
	default:
		a.oracle = oracle.RuleBased{}
		a.logger.Info("using rule-based oracle")
	}

	if a.cfg.Discovery.ProbeEnabled {
		a.prober = discovery.NewProber(discovery.ProberConfig{
			Timeout: time.Duration(a.cfg.Discovery.ProbeTimeoutSeconds) * time.Second,
		}, a.logger.Named("prober"))
	}
	a.links = discovery.NewLinkDiscoverer(discovery.LinkConfig{
		MaxDepth:         a.cfg.Discovery.MaxDepth,
		MaxResults:       a.cfg.Discovery.MaxResults,
		Keywords:         a.cfg.Discovery.Keywords,
		FallbackSegments: a.cfg.Discovery.FallbackSegments,
		FetchOptions:     a.pageFetchOptions(),
	}, a.logger.Named("links"))
	return nil
}

func (a *App) setupArchive(ctx context.Context) error {
	switch {
	case a.cfg.Output.GCSBucket != "":
		client, err := storage.NewClient(ctx)
		if err != nil {
			return fmt.Errorf("gcs client init failed: %w", err)
		}
		a.storage = client
		a.archive, err = gcsstorage.New(client, gcsstorage.Config{Bucket: a.cfg.Output.GCSBucket})
		if err != nil {
			return fmt.Errorf("gcs archive init failed: %w", err)
		}
		a.logger.Info("archiving pages to gcs", zap.String("bucket", a.cfg.Output.GCSBucket))
	case a.cfg.Output.ArchiveDir != "":
		store, err := localstorage.New(localstorage.Config{BaseDir: a.cfg.Output.ArchiveDir})
		if err != nil {
			return fmt.Errorf("local archive init failed: %w", err)
		}
		a.archive = store
		a.logger.Info("archiving pages locally", zap.String("dir", a.cfg.Output.ArchiveDir))
	}
	return nil
}

func (a *App) setupStatus() error {
	if a.cfg.Output.StatusPath == "" {
		return nil
	}
	status, err := localstorage.OpenStatusFile(a.cfg.Output.StatusPath)
	if err != nil {
		return fmt.Errorf("status file init failed: %w", err)
	}
	a.status = status
	return nil
}

func (a *App) statusFile() (*localstorage.StatusFile, error) {
	if a.status == nil {
		return nil, errors.New("output.status_path must be set")
	}
	return a.status, nil
}

func (a *App) orchestrator(runID string) (*extraction.Orchestrator, error) {
	opts := []extraction.Option{
		extraction.WithHasher(a.hasher),
		extraction.WithLogger(a.logger.Named("extraction")),
	}
	if a.archive != nil {
		opts = append(opts, extraction.WithArchive(a.archive))
	}
	o, err := extraction.New(extraction.Config{
		ConfidenceThreshold: a.cfg.Extraction.ConfidenceThreshold,
		RunID:               runID,
		ArchivePrefix:       a.cfg.Output.ArchivePrefix,
		FetchOptions:        a.pageFetchOptions(),
	}, a.chunker, a.oracle, a.resolver, opts...)
	if err != nil {
		return nil, fmt.Errorf("orchestrator init failed: %w", err)
	}
	return o, nil
}

func (a *App) pageFetchOptions() []crawler.FetchOption {
	return []crawler.FetchOption{
		crawler.WithMaxRetry(a.cfg.Crawler.PageMaxRetry),
		crawler.WithTimeout(time.Duration(a.cfg.Crawler.PageTimeoutSeconds) * time.Second),
	}
}

// defaultFetcher builds a colly fetcher for one Target, gated by its
// robots.txt unless robots are ignored.
func (a *App) defaultFetcher(ctx context.Context, target crawler.Target) worker.SiteFetcher {
	var robots crawler.RobotsPolicy
	if !a.cfg.Crawler.IgnoreRobots {
		robots = crawler.NewRobotsGate(ctx, crawler.NormalizeWebsite(target.Website), crawler.RobotsGateConfig{
			UserAgent: a.cfg.Crawler.UserAgent,
			Timeout:   time.Duration(a.cfg.Crawler.RobotsTimeoutSeconds) * time.Second,
			Client:    &http.Client{Transport: a.transport},
		}, a.logger.Named("robots"))
	}
	return collyfetcher.New(collyfetcher.Config{
		UserAgent:        a.cfg.Crawler.UserAgent,
		Timeout:          time.Duration(a.cfg.Crawler.TimeoutSeconds) * time.Second,
		MaxRetry:         a.cfg.Crawler.MaxRetry,
		Delay:            config.Seconds(a.cfg.Crawler.DelaySeconds),
		RetryDelay:       config.Seconds(a.cfg.Crawler.RetryDelaySeconds),
		RateLimitedDelay: config.Seconds(a.cfg.Crawler.RateLimitedDelaySeconds),
		Transport:        a.transport,
	}, robots, a.logger.Named("fetcher"))
}
