// Package collyfetcher implements crawler.Fetcher using gocolly.
package collyfetcher

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/campus-kg-crawler/internal/crawler"
	"github.com/JakeFAU/campus-kg-crawler/internal/metrics"
)

// Config controls collector behavior and politeness for one Target.
type Config struct {
	UserAgent        string
	Timeout          time.Duration
	MaxRetry         int
	Delay            time.Duration
	RetryDelay       time.Duration
	RateLimitedDelay time.Duration
	// Transport is shared across Targets when set; otherwise the Fetcher
	// owns a private transport that Close releases.
	Transport http.RoundTripper
	// Pauser replaces the timer used for delays when set.
	Pauser crawler.Pauser
}

// DefaultConfig mirrors the crawler defaults: 2s delay, 3 retries, 30s timeout.
func DefaultConfig() Config {
	policy := crawler.NewFixedRetryPolicy()
	return Config{
		Timeout:          30 * time.Second,
		MaxRetry:         policy.MaxRetry,
		Delay:            2 * time.Second,
		RetryDelay:       policy.RetryDelay,
		RateLimitedDelay: policy.RateLimitedDelay,
	}
}

// Fetcher fetches pages of a single Target. Once a certificate failure is
// seen, every later call returns FetchSSLBlocked without touching the network.
type Fetcher struct {
	cfg           Config
	robots        crawler.RobotsPolicy
	retry         crawler.FixedRetryPolicy
	pauser        crawler.Pauser
	baseCollector *colly.Collector
	ownTransport  *http.Transport
	logger        *zap.Logger

	mu         sync.Mutex
	sslFailed  bool
	sslURL     string
	sslMessage string
	sslErr     error
}

type collectorHooks interface {
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// New builds a Fetcher. A nil robots policy allows everything.
func New(cfg Config, robots crawler.RobotsPolicy, logger *zap.Logger) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetry < 0 {
		cfg.MaxRetry = 0
	}
	if robots == nil {
		robots = crawler.AllowAllPolicy{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	pauser := cfg.Pauser
	if pauser == nil {
		pauser = crawler.TimerPauser{}
	}

	c := colly.NewCollector(colly.Async(false))
	c.IgnoreRobotsTxt = true
	c.AllowURLRevisit = true
	c.ParseHTTPErrorResponse = true
	if cfg.UserAgent != "" {
		c.UserAgent = cfg.UserAgent
	}
	// Per-attempt deadlines come from the request context.
	c.SetRequestTimeout(0)
	var own *http.Transport
	transport := cfg.Transport
	if transport == nil {
		own = NewTransport()
		transport = own
	}
	c.WithTransport(transport)

	return &Fetcher{
		cfg:    cfg,
		robots: robots,
		retry: crawler.FixedRetryPolicy{
			MaxRetry:         cfg.MaxRetry,
			RetryDelay:       cfg.RetryDelay,
			RateLimitedDelay: cfg.RateLimitedDelay,
		},
		pauser:        pauser,
		baseCollector: c,
		ownTransport:  own,
		logger:        logger,
	}
}

// Close drops idle connections of a transport the Fetcher built itself.
// A shared Transport is left to its owner.
func (f *Fetcher) Close() {
	if f.ownTransport != nil {
		f.ownTransport.CloseIdleConnections()
	}
}

// SSLFailure returns the URL and message of the certificate failure that
// latched this fetcher, if any.
func (f *Fetcher) SSLFailure() (string, string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sslURL, f.sslMessage, f.sslFailed
}

// Fetch implements crawler.Fetcher.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, opts ...crawler.FetchOption) crawler.FetchOutcome {
	settings := crawler.ApplyFetchOptions(crawler.FetchSettings{
		MaxRetry: f.cfg.MaxRetry,
		Timeout:  f.cfg.Timeout,
	}, opts...)

	if blocked, err := f.latched(); blocked {
		return f.finish(rawURL, crawler.FetchOutcome{Status: crawler.FetchSSLBlocked, Err: err})
	}
	if _, err := url.ParseRequestURI(rawURL); err != nil {
		return f.finish(rawURL, crawler.FetchOutcome{Status: crawler.FetchNotFound, Err: fmt.Errorf("invalid url: %w", err)})
	}
	if !f.robots.Allowed(rawURL) {
		f.logger.Info("robots.txt disallows url", zap.String("url", rawURL))
		return f.finish(rawURL, crawler.FetchOutcome{Status: crawler.FetchDisallowed})
	}

	for retries := 0; ; retries++ {
		result, err := f.attempt(ctx, rawURL, settings.Timeout)
		if err != nil {
			class := crawler.ClassifyError(err)
			if class == crawler.FailureTrust {
				f.latch(rawURL, err)
				f.logger.Warn("certificate verification failed; not retrying",
					zap.String("url", rawURL),
					zap.Error(err),
				)
				return f.finish(rawURL, crawler.FetchOutcome{Status: crawler.FetchSSLBlocked, Err: err})
			}
			if class == crawler.FailureCanceled || ctx.Err() != nil {
				return f.finish(rawURL, crawler.FetchOutcome{Status: crawler.FetchRetryable, Err: err})
			}
			if !f.retry.ShouldRetry(class, retries, settings.MaxRetry) {
				f.logger.Warn("fetch failed; retries exhausted",
					zap.String("url", rawURL),
					zap.Int("retries", retries),
					zap.Bool("timeout", crawler.IsTimeout(err)),
					zap.Error(err),
				)
				return f.finish(rawURL, crawler.FetchOutcome{Status: crawler.FetchRetryable, Err: err})
			}
			if !f.backoff(ctx, rawURL, class, retries, err) {
				return f.finish(rawURL, crawler.FetchOutcome{Status: crawler.FetchRetryable, Err: err})
			}
			continue
		}

		switch class := crawler.ClassifyStatus(result.StatusCode); class {
		case crawler.FailureNone:
			// The inter-request delay throttles consecutive calls on one Target.
			if pauseErr := f.pauser.Pause(ctx, f.cfg.Delay); pauseErr != nil {
				f.logger.Debug("crawl delay interrupted", zap.Error(pauseErr))
			}
			return f.finish(rawURL, crawler.FetchOutcome{Status: crawler.FetchOK, Result: result})
		case crawler.FailureRateLimited:
			statusErr := fmt.Errorf("status %d", result.StatusCode)
			if !f.retry.ShouldRetry(class, retries, settings.MaxRetry) {
				f.logger.Warn("rate limited; retries exhausted",
					zap.String("url", rawURL),
					zap.Int("status", result.StatusCode),
				)
				return f.finish(rawURL, crawler.FetchOutcome{Status: crawler.FetchRetryable, Err: statusErr})
			}
			if !f.backoff(ctx, rawURL, class, retries, statusErr) {
				return f.finish(rawURL, crawler.FetchOutcome{Status: crawler.FetchRetryable, Err: statusErr})
			}
		default:
			f.logger.Debug("non-success status",
				zap.String("url", rawURL),
				zap.Int("status", result.StatusCode),
			)
			return f.finish(rawURL, crawler.FetchOutcome{
				Status: crawler.FetchNotFound,
				Result: result,
				Err:    fmt.Errorf("status %d", result.StatusCode),
			})
		}
	}
}

func (f *Fetcher) backoff(ctx context.Context, rawURL string, class crawler.FailureClass, retries int, cause error) bool {
	delay := f.retry.Backoff(class)
	f.logger.Info("retrying fetch",
		zap.String("url", rawURL),
		zap.Stringer("reason", class),
		zap.Int("retry", retries+1),
		zap.Duration("delay", delay),
		zap.Error(cause),
	)
	metrics.ObserveRetry(class.String())
	return f.pauser.Pause(ctx, delay) == nil
}

func (f *Fetcher) attempt(ctx context.Context, rawURL string, timeout time.Duration) (crawler.FetchResult, error) {
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var (
		result   crawler.FetchResult
		fetchErr error
	)
	collector := f.baseCollector.Clone()
	collector.Context = reqCtx
	f.configureCollectorHooks(collector, time.Now(), &result, &fetchErr)

	if err := collector.Visit(rawURL); err != nil {
		return crawler.FetchResult{}, fmt.Errorf("colly visit failed: %w", err)
	}
	if fetchErr != nil {
		return crawler.FetchResult{}, fmt.Errorf("colly response failed: %w", fetchErr)
	}
	return result, nil
}

func (f *Fetcher) configureCollectorHooks(
	hooks collectorHooks,
	start time.Time,
	result *crawler.FetchResult,
	fetchErr *error,
) {
	hooks.OnResponse(func(r *colly.Response) {
		var headers http.Header
		if r.Headers != nil {
			headers = r.Headers.Clone()
		}
		finalURL := ""
		if r.Request != nil && r.Request.URL != nil {
			finalURL = r.Request.URL.String()
		}
		*result = crawler.FetchResult{
			URL:        finalURL,
			StatusCode: r.StatusCode,
			Headers:    headers,
			Body:       append([]byte(nil), r.Body...),
			FetchedAt:  time.Now().UTC(),
			Duration:   time.Since(start),
		}
	})

	hooks.OnError(func(_ *colly.Response, err error) {
		*fetchErr = err
	})
}

func (f *Fetcher) latched() (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sslFailed, f.sslErr
}

func (f *Fetcher) latch(rawURL string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sslFailed {
		return
	}
	f.sslFailed = true
	f.sslURL = rawURL
	f.sslMessage = err.Error()
	f.sslErr = err
	metrics.ObserveSSLFailure()
}

func (f *Fetcher) finish(rawURL string, outcome crawler.FetchOutcome) crawler.FetchOutcome {
	metrics.ObserveFetch(rawURL, outcome.Status.String(), len(outcome.Result.Body))
	return outcome
}

// NewTransport returns the pooled transport used for crawling. One transport
// is meant to be shared by every Fetcher of a run.
func NewTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
