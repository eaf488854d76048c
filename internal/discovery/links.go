package discovery

import (
	"context"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/campus-kg-crawler/internal/crawler"
	"github.com/JakeFAU/campus-kg-crawler/internal/htmltext"
	"github.com/JakeFAU/campus-kg-crawler/internal/keywords"
)

// Discovery defaults.
const (
	DefaultMaxDepth   = 2
	DefaultMaxResults = 5
)

// DefaultKeywords mark links that lead to outcome or program pages.
var DefaultKeywords = []string{
	"career",
	"careers",
	"employment",
	"outcome",
	"placement",
	"program",
	"academics",
	"student-success",
	"alumni",
	"degree",
	"pathways",
	"job",
}

// DefaultFallbackSegments are guessed when no link matches a keyword.
var DefaultFallbackSegments = []string{
	"/career-outcomes",
	"/career-services",
	"/employment-outcomes",
	"/career-center",
	"/career-paths",
	"/student-success",
	"/programs",
	"/academics/programs",
	"/programs-of-study",
	"/placement",
}

// LinkConfig bounds a LinkDiscoverer. Zero values take defaults.
type LinkConfig struct {
	MaxDepth         int
	MaxResults       int
	Keywords         []string
	FallbackSegments []string
	// FetchOptions apply to every page fetched during traversal.
	FetchOptions []crawler.FetchOption
}

// LinkDiscoverer finds keyword-matching internal links breadth-first.
type LinkDiscoverer struct {
	maxDepth   int
	maxResults int
	dict       *keywords.Dictionary
	fallback   []string
	fetchOpts  []crawler.FetchOption
	logger     *zap.Logger
}

// NewLinkDiscoverer builds a LinkDiscoverer.
func NewLinkDiscoverer(cfg LinkConfig, logger *zap.Logger) *LinkDiscoverer {
	if cfg.MaxDepth < 0 {
		cfg.MaxDepth = DefaultMaxDepth
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = DefaultMaxResults
	}
	if len(cfg.Keywords) == 0 {
		cfg.Keywords = DefaultKeywords
	}
	if len(cfg.FallbackSegments) == 0 {
		cfg.FallbackSegments = DefaultFallbackSegments
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LinkDiscoverer{
		maxDepth:   cfg.MaxDepth,
		maxResults: cfg.MaxResults,
		dict:       keywords.New(cfg.Keywords),
		fallback:   cfg.FallbackSegments,
		fetchOpts:  cfg.FetchOptions,
		logger:     logger,
	}
}

type queued struct {
	url   string
	depth int
}

// Discover fetches the Target's homepage and walks outward from it.
func (d *LinkDiscoverer) Discover(ctx context.Context, fetcher crawler.Fetcher, target crawler.Target) []string {
	return d.DiscoverFrom(ctx, fetcher, target, nil)
}

// DiscoverFrom walks outward from the homepage. A non-nil homepage is used
// as the depth-0 page instead of fetching it again.
func (d *LinkDiscoverer) DiscoverFrom(ctx context.Context, fetcher crawler.Fetcher, target crawler.Target, homepage *crawler.FetchResult) []string {
	start := crawler.NormalizeWebsite(target.Website)
	base, err := url.Parse(start)
	if err != nil || base.Host == "" {
		d.logger.Warn("invalid website; skipping discovery", zap.String("website", target.Website))
		return nil
	}

	visited := crawler.NewVisitTracker()
	visited.MarkIfNew(start)
	visited.MarkIfNew(start + "/")

	var results []string
	queue := []queued{{url: start}}
	for len(queue) > 0 && len(results) < d.maxResults {
		if ctx.Err() != nil {
			return results
		}
		current := queue[0]
		queue = queue[1:]

		body, ok, blocked := d.page(ctx, fetcher, current.url, start, homepage)
		if blocked {
			d.logger.Warn("certificate failure during discovery; stopping",
				zap.String("url", current.url))
			return results
		}
		if !ok {
			continue
		}
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
		if err != nil {
			d.logger.Debug("unparseable page", zap.String("url", current.url), zap.Error(err))
			continue
		}
		pageURL, err := url.Parse(current.url)
		if err != nil {
			continue
		}

		nextDepth := current.depth + 1
		doc.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
			href, _ := a.Attr("href")
			link, ok := crawler.ResolveLink(pageURL, href)
			if !ok {
				return true
			}
			parsed, err := url.Parse(link)
			if err != nil || !crawler.SameSite(base, parsed) {
				return true
			}
			if nextDepth > d.maxDepth || !visited.MarkIfNew(link) {
				return true
			}
			if crawler.HasUnsupportedExtension(link) {
				return true
			}
			if d.dict.Contains(parsed.Path) || d.dict.Contains(htmltext.Text(a)) {
				results = append(results, link)
				return len(results) < d.maxResults
			}
			if nextDepth < d.maxDepth {
				queue = append(queue, queued{url: link, depth: nextDepth})
			}
			return true
		})
	}

	if len(results) == 0 {
		results = d.fallbackURLs(start)
		d.logger.Info("no keyword links found; using fallback paths",
			zap.String("website", start),
			zap.Int("count", len(results)),
		)
	}
	return results
}

// page returns the body for rawURL. The second result is false when the
// page could not be fetched; the third is true on a certificate failure.
func (d *LinkDiscoverer) page(ctx context.Context, fetcher crawler.Fetcher, rawURL, start string, homepage *crawler.FetchResult) ([]byte, bool, bool) {
	if rawURL == start && homepage != nil {
		return homepage.Body, len(homepage.Body) > 0, false
	}
	outcome := fetcher.Fetch(ctx, rawURL, d.fetchOpts...)
	switch {
	case outcome.Status == crawler.FetchSSLBlocked:
		return nil, false, true
	case !outcome.OK():
		d.logger.Debug("discovery fetch skipped",
			zap.String("url", rawURL),
			zap.Stringer("status", outcome.Status),
			zap.Error(outcome.Err),
		)
		return nil, false, false
	}
	return outcome.Result.Body, len(outcome.Result.Body) > 0, false
}

func (d *LinkDiscoverer) fallbackURLs(start string) []string {
	out := make([]string, 0, d.maxResults)
	for _, segment := range d.fallback {
		if len(out) >= d.maxResults {
			break
		}
		joined, err := crawler.JoinPath(start, segment)
		if err != nil {
			continue
		}
		out = append(out, joined)
	}
	return out
}
