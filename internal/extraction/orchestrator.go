// Package extraction turns fetched pages into normalized, confidence-filtered
// triples: chunk, ask the oracle per chunk, resolve once per page.
package extraction

import (
	"context"
	"fmt"
	"path"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/campus-kg-crawler/internal/chunker"
	"github.com/JakeFAU/campus-kg-crawler/internal/crawler"
	"github.com/JakeFAU/campus-kg-crawler/internal/metrics"
	"github.com/JakeFAU/campus-kg-crawler/internal/resolver"
)

// DefaultConfidenceThreshold is the minimum confidence kept in a page result.
const DefaultConfidenceThreshold = 0.8

// Config tunes an Orchestrator.
type Config struct {
	ConfidenceThreshold float64
	// RunID and ArchivePrefix place archived pages at
	// <prefix>/<run_id>/<host>/<sha256>.html.
	RunID         string
	ArchivePrefix string
	// FetchOptions apply to each page fetch.
	FetchOptions []crawler.FetchOption
}

// Orchestrator wires the chunker, oracle and resolver together. It is safe
// for concurrent use when its oracle is.
type Orchestrator struct {
	cfg      Config
	chunker  *chunker.Chunker
	oracle   crawler.Oracle
	resolver *resolver.Resolver
	hasher   crawler.Hasher
	archive  crawler.BlobStore
	logger   *zap.Logger
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithArchive stores the raw HTML of every extracted page.
func WithArchive(store crawler.BlobStore) Option {
	return func(o *Orchestrator) {
		o.archive = store
	}
}

// WithHasher sets the content hasher used for PageTriples.ContentHash.
func WithHasher(h crawler.Hasher) Option {
	return func(o *Orchestrator) {
		o.hasher = h
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// New builds an Orchestrator. A nil resolver uses the default alias table.
func New(cfg Config, ch *chunker.Chunker, oracle crawler.Oracle, res *resolver.Resolver, opts ...Option) (*Orchestrator, error) {
	if ch == nil {
		return nil, fmt.Errorf("extraction: chunker is required")
	}
	if oracle == nil {
		return nil, fmt.Errorf("extraction: oracle is required")
	}
	if cfg.ConfidenceThreshold < 0 || cfg.ConfidenceThreshold > 1 {
		return nil, fmt.Errorf("extraction: confidence threshold %v outside [0,1]", cfg.ConfidenceThreshold)
	}
	if res == nil {
		res = resolver.New(nil)
	}
	o := &Orchestrator{
		cfg:      cfg,
		chunker:  ch,
		oracle:   oracle,
		resolver: res,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.archive != nil && o.hasher == nil {
		return nil, fmt.Errorf("extraction: archive requires a hasher")
	}
	return o, nil
}

// ExtractPage fetches url and extracts its triples. The boolean is false
// when the page was skipped (fetch failure or empty body).
func (o *Orchestrator) ExtractPage(ctx context.Context, fetcher crawler.Fetcher, target crawler.Target, url string) (crawler.PageTriples, bool) {
	outcome := fetcher.Fetch(ctx, url, o.cfg.FetchOptions...)
	if !outcome.OK() {
		o.logger.Info("skipping page",
			zap.String("url", url),
			zap.Stringer("status", outcome.Status),
			zap.Error(outcome.Err),
		)
		return crawler.PageTriples{}, false
	}
	body := outcome.Result.Body
	if len(strings.TrimSpace(string(body))) == 0 {
		o.logger.Info("skipping empty page", zap.String("url", url))
		return crawler.PageTriples{}, false
	}

	page := crawler.PageTriples{SourceURL: url}
	if o.hasher != nil {
		digest, err := o.hasher.Hash(body)
		if err != nil {
			o.logger.Warn("hash page", zap.String("url", url), zap.Error(err))
		} else {
			page.ContentHash = digest
			page.ArchiveURI = o.archivePage(ctx, url, digest, body)
		}
	}

	page.Entries = o.ExtractText(ctx, string(body), target.Name, url)
	page.Count = len(page.Entries)
	metrics.ObserveTriples(page.Count)
	return page, true
}

// ExtractText runs chunk, oracle and resolve over already fetched HTML.
func (o *Orchestrator) ExtractText(ctx context.Context, html, contextName, sourceURL string) []crawler.NormalizedTriple {
	if strings.TrimSpace(html) == "" {
		return []crawler.NormalizedTriple{}
	}
	chunks, err := o.chunker.HTML(html)
	if err != nil {
		o.logger.Warn("chunk page", zap.String("url", sourceURL), zap.Error(err))
		return []crawler.NormalizedTriple{}
	}

	var raw []crawler.RawTriple
	for i, chunk := range chunks {
		if ctx.Err() != nil {
			break
		}
		triples, err := o.callOracle(ctx, chunk.Text, contextName, sourceURL)
		if err != nil {
			o.logger.Warn("oracle failed for chunk",
				zap.String("url", sourceURL),
				zap.Int("chunk", i),
				zap.Error(err),
			)
			continue
		}
		raw = append(raw, triples...)
	}

	normalized := o.resolver.NormalizeTriples(raw)
	kept := make([]crawler.NormalizedTriple, 0, len(normalized))
	for _, t := range normalized {
		if t.Confidence >= o.cfg.ConfidenceThreshold {
			kept = append(kept, t)
		}
	}
	return kept
}

// callOracle isolates one oracle call: errors and panics become an error.
func (o *Orchestrator) callOracle(ctx context.Context, text, contextName, sourceURL string) (triples []crawler.RawTriple, err error) {
	defer func() {
		if r := recover(); r != nil {
			metrics.ObserveOracleCall("panic")
			triples = nil
			err = fmt.Errorf("oracle panic: %v", r)
		}
	}()
	triples, err = o.oracle.ExtractTriples(ctx, text, contextName, sourceURL)
	if err != nil {
		metrics.ObserveOracleCall("error")
		return nil, err
	}
	metrics.ObserveOracleCall("ok")
	return triples, nil
}

func (o *Orchestrator) archivePage(ctx context.Context, url, digest string, body []byte) string {
	if o.archive == nil {
		return ""
	}
	host := crawler.HostOf(url)
	if host == "" {
		host = "unknown"
	}
	key := path.Join(o.cfg.ArchivePrefix, o.cfg.RunID, host, digest+".html")
	uri, err := o.archive.PutObject(ctx, key, "text/html; charset=utf-8", body)
	if err != nil {
		o.logger.Warn("archive page", zap.String("url", url), zap.String("path", key), zap.Error(err))
		return ""
	}
	return uri
}
