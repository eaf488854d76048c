// Package discovery selects the pages of a Target worth parsing: well-known
// paths probed directly, and keyword-matching links found breadth-first.
package discovery

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/campus-kg-crawler/internal/crawler"
)

// Category names a family of well-known paths.
type Category string

// Probe categories, in probing order.
const (
	CategoryInternational Category = "international"
	CategoryPrograms      Category = "programs"
	CategoryCampusLife    Category = "campus_life"
)

// Categories lists every probe category in probing order.
var Categories = []Category{CategoryInternational, CategoryPrograms, CategoryCampusLife}

// DefaultProbePaths returns the candidate paths tried for each category.
func DefaultProbePaths() map[Category][]string {
	return map[Category][]string{
		CategoryInternational: {
			"/international",
			"/international-students",
			"/admissions/international",
			"/students/international",
			"/global",
			"/international-programs",
		},
		CategoryPrograms: {
			"/programs",
			"/academics",
			"/academics/programs",
			"/degrees",
			"/programs-of-study",
		},
		CategoryCampusLife: {
			"/campus-life",
			"/student-life",
			"/campus",
			"/facilities",
			"/about/campus",
		},
	}
}

// DefaultProbeTimeout bounds each probe request.
const DefaultProbeTimeout = 10 * time.Second

// ProberConfig tunes a Prober.
type ProberConfig struct {
	Timeout time.Duration
	Paths   map[Category][]string
}

// Prober tries well-known paths under a Target's website. Probes are
// best-effort: no retries and a short timeout.
type Prober struct {
	timeout time.Duration
	paths   map[Category][]string
	logger  *zap.Logger
}

// NewProber builds a Prober; zero config fields take defaults.
func NewProber(cfg ProberConfig, logger *zap.Logger) *Prober {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultProbeTimeout
	}
	if cfg.Paths == nil {
		cfg.Paths = DefaultProbePaths()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Prober{timeout: cfg.Timeout, paths: cfg.Paths, logger: logger}
}

// Probe returns the first candidate of category answering HTTP 200. The
// outcome of an SSL-blocked attempt is returned with false so callers can
// stop the Target.
func (p *Prober) Probe(ctx context.Context, fetcher crawler.Fetcher, target crawler.Target, category Category) (crawler.FetchOutcome, bool) {
	for _, rel := range p.paths[category] {
		if ctx.Err() != nil {
			return crawler.FetchOutcome{Status: crawler.FetchRetryable, Err: ctx.Err()}, false
		}
		candidate, err := crawler.JoinPath(target.Website, rel)
		if err != nil {
			p.logger.Debug("skipping probe path", zap.String("path", rel), zap.Error(err))
			continue
		}
		outcome := fetcher.Fetch(ctx, candidate,
			crawler.WithMaxRetry(0),
			crawler.WithTimeout(p.timeout),
		)
		if outcome.Status == crawler.FetchSSLBlocked {
			p.logger.Warn("certificate failure while probing; aborting",
				zap.String("category", string(category)),
				zap.String("url", candidate),
			)
			return outcome, false
		}
		if outcome.OK() && outcome.Result.StatusCode == http.StatusOK {
			p.logger.Info("probe matched",
				zap.String("category", string(category)),
				zap.String("url", candidate),
			)
			return outcome, true
		}
	}
	p.logger.Info("probe category not found",
		zap.String("category", string(category)),
		zap.String("website", target.Website),
	)
	return crawler.FetchOutcome{Status: crawler.FetchNotFound}, false
}

// ProbeAll probes every category in order and returns the pages found.
// A certificate failure stops probing; sslBlocked reports it.
func (p *Prober) ProbeAll(ctx context.Context, fetcher crawler.Fetcher, target crawler.Target) (pages map[Category]crawler.FetchResult, sslBlocked bool) {
	pages = make(map[Category]crawler.FetchResult, len(Categories))
	for _, category := range Categories {
		outcome, ok := p.Probe(ctx, fetcher, target, category)
		if outcome.Status == crawler.FetchSSLBlocked {
			return pages, true
		}
		if ok {
			pages[category] = outcome.Result
		}
	}
	return pages, false
}
