package crawler

import (
	"context"
	"errors"
	"time"
)

// ErrQueueClosed is returned by Queue.Dequeue once a closed queue is drained.
var ErrQueueClosed = errors.New("queue closed")

// Fetcher retrieves pages for a single Target.
type Fetcher interface {
	Fetch(ctx context.Context, url string, opts ...FetchOption) FetchOutcome
}

// FetchOption overrides per-call fetch settings.
type FetchOption func(*FetchSettings)

// FetchSettings holds the per-call knobs a FetchOption can change.
type FetchSettings struct {
	MaxRetry int
	Timeout  time.Duration
}

// WithMaxRetry overrides the retry budget for one call.
func WithMaxRetry(n int) FetchOption {
	return func(s *FetchSettings) {
		if n >= 0 {
			s.MaxRetry = n
		}
	}
}

// WithTimeout overrides the request timeout for one call.
func WithTimeout(d time.Duration) FetchOption {
	return func(s *FetchSettings) {
		if d > 0 {
			s.Timeout = d
		}
	}
}

// ApplyFetchOptions folds opts over the defaults.
func ApplyFetchOptions(defaults FetchSettings, opts ...FetchOption) FetchSettings {
	settings := defaults
	for _, opt := range opts {
		if opt != nil {
			opt(&settings)
		}
	}
	return settings
}

// RobotsPolicy answers whether a URL may be fetched.
type RobotsPolicy interface {
	Allowed(url string) bool
}

// Ledger durably records sites that must not be crawled again.
type Ledger interface {
	RecordSSLFailure(ctx context.Context, target Target, message string) error
	ShouldSkip(ctx context.Context, website string) (bool, string, error)
	List(ctx context.Context, category FailureCategory) ([]SiteFailureRecord, error)
	Reset(ctx context.Context, category FailureCategory, website string) error
}

// Oracle turns free text into candidate triples.
type Oracle interface {
	ExtractTriples(ctx context.Context, text, contextName, sourceURL string) ([]RawTriple, error)
}

// TargetSource supplies the Targets of a run.
type TargetSource interface {
	Targets() []Target
}

// ReportSink receives one report per Target.
type ReportSink interface {
	WriteReport(ctx context.Context, report TargetReport) error
}

// StatusTracker records the final routing of each website across runs.
type StatusTracker interface {
	Status(website string) (RoutingStatus, bool)
	Mark(website string, status RoutingStatus) error
}

// BlobStore writes raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// Queue provides enqueue/dequeue semantics for crawl targets.
type Queue interface {
	Enqueue(ctx context.Context, item QueueItem) error
	Dequeue(ctx context.Context) (QueueItem, error)
}

// Hasher computes digests for deduplication/integrity.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}

// QueueItem wraps a Target ready to run.
type QueueItem struct {
	RunID  string
	Target Target
	Index  int
}
