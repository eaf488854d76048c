// Package worker runs the per-Target crawl pipeline: admission, homepage,
// probing, discovery, extraction and reporting.
package worker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/campus-kg-crawler/internal/crawler"
	"github.com/JakeFAU/campus-kg-crawler/internal/discovery"
	"github.com/JakeFAU/campus-kg-crawler/internal/metrics"
	"github.com/JakeFAU/campus-kg-crawler/internal/parsers"
)

// SiteFetcher is a Target-scoped fetcher that latches certificate failures.
type SiteFetcher interface {
	crawler.Fetcher
	SSLFailure() (url string, message string, ok bool)
}

// FetcherFactory builds the fetcher for one Target.
type FetcherFactory func(ctx context.Context, target crawler.Target) SiteFetcher

// PageExtractor turns a candidate URL into triples.
type PageExtractor interface {
	ExtractPage(ctx context.Context, fetcher crawler.Fetcher, target crawler.Target, url string) (crawler.PageTriples, bool)
}

// Config controls Worker behavior.
type Config struct {
	HomepageMaxRetry int
	HomepageTimeout  time.Duration
	ProbeEnabled     bool
}

// Homepage defaults.
const (
	DefaultHomepageMaxRetry = 1
	DefaultHomepageTimeout  = 15 * time.Second
)

// Worker consumes queue items and executes the Target pipeline.
type Worker struct {
	queue      crawler.Queue
	gate       *Gate
	newFetcher FetcherFactory
	prober     *discovery.Prober
	links      *discovery.LinkDiscoverer
	extractor  PageExtractor
	sink       crawler.ReportSink
	clock      crawler.Clock
	cfg        Config
	logger     *zap.Logger
}

// New constructs a Worker. A nil prober disables probing.
func New(
	queue crawler.Queue,
	gate *Gate,
	newFetcher FetcherFactory,
	prober *discovery.Prober,
	links *discovery.LinkDiscoverer,
	extractor PageExtractor,
	sink crawler.ReportSink,
	clock crawler.Clock,
	cfg Config,
	logger *zap.Logger,
) *Worker {
	if cfg.HomepageMaxRetry < 0 {
		cfg.HomepageMaxRetry = DefaultHomepageMaxRetry
	}
	if cfg.HomepageTimeout <= 0 {
		cfg.HomepageTimeout = DefaultHomepageTimeout
	}
	if gate == nil {
		gate = NewGate(nil, nil, nil, false, logger)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		queue:      queue,
		gate:       gate,
		newFetcher: newFetcher,
		prober:     prober,
		links:      links,
		extractor:  extractor,
		sink:       sink,
		clock:      clock,
		cfg:        cfg,
		logger:     logger,
	}
}

// Run blocks, consuming queue items until the queue closes or the context
// finishes.
func (w *Worker) Run(ctx context.Context) {
	for {
		item, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, crawler.ErrQueueClosed) {
				return
			}
			w.logger.Error("queue dequeue failed", zap.Error(err))
			continue
		}
		w.logger.Debug("dequeued target",
			zap.String("run_id", item.RunID),
			zap.Int("index", item.Index),
			zap.String("school", item.Target.Name),
		)
		w.Process(ctx, item)
	}
}

// Process runs the pipeline for one Target, writes its report to the sink
// and always returns the report. The status file is marked only after the
// report is written, so a Target never counts as done without its output.
func (w *Worker) Process(ctx context.Context, item crawler.QueueItem) crawler.TargetReport {
	report, admission := w.execute(ctx, item)
	if w.sink != nil {
		if err := w.sink.WriteReport(ctx, report); err != nil {
			w.logger.Error("write report failed; status left unchanged",
				zap.String("website", report.Website),
				zap.Error(err),
			)
			return report
		}
	}
	if !admission.Resumed {
		if err := w.gate.Mark(item.Target, report.Routing.Status); err != nil {
			w.logger.Error("record target status", zap.String("website", report.Website), zap.Error(err))
		}
	}
	return report
}

func (w *Worker) execute(ctx context.Context, item crawler.QueueItem) (report crawler.TargetReport, admission Admission) {
	metrics.IncActiveWorkers()
	defer metrics.DecActiveWorkers()

	target := item.Target
	report = crawler.TargetReport{
		RunID:          item.RunID,
		SchoolName:     target.Name,
		Website:        target.Website,
		DiscoveredURLs: []string{},
		Triples:        []crawler.PageTriples{},
		StartedAt:      w.now(),
	}
	logger := w.logger.With(zap.String("school", target.Name), zap.String("website", target.Website))

	admission = w.gate.Admit(ctx, target)
	if admission.Skip {
		logger.Info("target skipped", zap.String("reason", admission.Reason))
		report.Routing = crawler.Routing{Status: crawler.RoutingSkipped, Skipped: true, Reason: admission.Reason}
		report.FinishedAt = w.now()
		metrics.ObserveTarget(string(crawler.RoutingSkipped))
		return report, admission
	}

	var fetcher SiteFetcher
	defer func() {
		if r := recover(); r != nil {
			logger.Error("target pipeline panicked", zap.Any("panic", r))
			report.Routing = crawler.Routing{Status: crawler.RoutingFailed, Reason: fmt.Sprintf("panic: %v", r)}
			w.finish(ctx, target, &report, fetcher, logger)
		}
	}()

	fetcher = w.newFetcher(ctx, target)
	if closer, ok := fetcher.(interface{ Close() }); ok {
		defer closer.Close()
	}
	report.Routing = w.crawl(ctx, target, fetcher, &report, logger)
	w.finish(ctx, target, &report, fetcher, logger)
	return report, admission
}

func (w *Worker) crawl(ctx context.Context, target crawler.Target, fetcher SiteFetcher, report *crawler.TargetReport, logger *zap.Logger) crawler.Routing {
	homepage := fetcher.Fetch(ctx, crawler.NormalizeWebsite(target.Website),
		crawler.WithMaxRetry(w.cfg.HomepageMaxRetry),
		crawler.WithTimeout(w.cfg.HomepageTimeout),
	)
	switch homepage.Status {
	case crawler.FetchOK:
	case crawler.FetchSSLBlocked:
		return sslRouting(fetcher)
	case crawler.FetchDisallowed:
		return crawler.Routing{Status: crawler.RoutingSkipped, Skipped: true, Reason: "homepage disallowed by robots.txt"}
	default:
		return crawler.Routing{Status: crawler.RoutingFailed, Reason: homepageReason(homepage)}
	}

	pages := parsers.ProfilePages{Homepage: string(homepage.Result.Body)}
	if w.cfg.ProbeEnabled && w.prober != nil {
		probed, blocked := w.prober.ProbeAll(ctx, fetcher, target)
		if blocked {
			return sslRouting(fetcher)
		}
		report.ProbedPages = make(map[string]string, len(probed))
		for category, result := range probed {
			report.ProbedPages[string(category)] = result.URL
		}
		pages.International = string(probed[discovery.CategoryInternational].Body)
		pages.Programs = string(probed[discovery.CategoryPrograms].Body)
		pages.CampusLife = string(probed[discovery.CategoryCampusLife].Body)
	}
	profile := parsers.ParseProfile(pages)
	report.Profile = &profile

	if w.links != nil {
		report.DiscoveredURLs = append(report.DiscoveredURLs, w.links.DiscoverFrom(ctx, fetcher, target, &homepage.Result)...)
	}
	if _, _, blocked := fetcher.SSLFailure(); blocked {
		return sslRouting(fetcher)
	}
	if len(report.DiscoveredURLs) == 0 {
		return crawler.Routing{Status: crawler.RoutingSkipped, Skipped: true, Reason: "no candidate urls"}
	}

	if w.extractor != nil {
		for _, url := range report.DiscoveredURLs {
			if ctx.Err() != nil {
				return crawler.Routing{Status: crawler.RoutingFailed, Reason: ctx.Err().Error()}
			}
			page, ok := w.extractor.ExtractPage(ctx, fetcher, target, url)
			if ok {
				report.Triples = append(report.Triples, page)
			}
			if _, _, blocked := fetcher.SSLFailure(); blocked {
				return sslRouting(fetcher)
			}
		}
	}

	logger.Info("target crawled",
		zap.Int("urls", len(report.DiscoveredURLs)),
		zap.Int("pages", len(report.Triples)),
		zap.Int("triples", report.TripleCount()),
	)
	return crawler.Routing{Status: crawler.RoutingSuccess}
}

func (w *Worker) finish(ctx context.Context, target crawler.Target, report *crawler.TargetReport, fetcher SiteFetcher, logger *zap.Logger) {
	sslMessage := ""
	if fetcher != nil {
		if _, msg, ok := fetcher.SSLFailure(); ok {
			sslMessage = msg
			if sslMessage == "" {
				sslMessage = "certificate verification failed"
			}
		}
	}
	if sslMessage != "" {
		if err := w.gate.RecordSSLFailure(ctx, target, sslMessage); err != nil {
			logger.Error("record ssl failure", zap.Error(err))
		}
	}
	report.FinishedAt = w.now()
	metrics.ObserveTarget(string(report.Routing.Status))
}

func (w *Worker) now() time.Time {
	if w.clock == nil {
		return time.Now().UTC()
	}
	return w.clock.Now()
}

func sslRouting(fetcher SiteFetcher) crawler.Routing {
	reason := "ssl verification failed"
	if _, msg, ok := fetcher.SSLFailure(); ok && msg != "" {
		reason += ": " + crawler.Truncate(msg, 200)
	}
	return crawler.Routing{Status: crawler.RoutingFailed, Reason: reason}
}

func homepageReason(outcome crawler.FetchOutcome) string {
	switch {
	case outcome.Err != nil:
		return fmt.Sprintf("homepage %s: %v", outcome.Status, outcome.Err)
	case outcome.Result.StatusCode != 0:
		return fmt.Sprintf("homepage %s: HTTP %d %s", outcome.Status, outcome.Result.StatusCode, http.StatusText(outcome.Result.StatusCode))
	default:
		return fmt.Sprintf("homepage %s", outcome.Status)
	}
}
