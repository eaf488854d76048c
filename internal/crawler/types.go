// Package crawler defines core types shared across subsystems.
package crawler

import (
	"net/http"
	"time"
)

// Target is one institution whose public website is crawled in a run.
type Target struct {
	Name    string `json:"name"`
	Website string `json:"website"`
}

// FetchResult is the response captured for a single successful request.
type FetchResult struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	FetchedAt  time.Time
	Duration   time.Duration
}

// FetchStatus tags the terminal state of a fetch.
type FetchStatus int

// Fetch states returned by a Fetcher.
const (
	FetchOK FetchStatus = iota
	FetchNotFound
	FetchSSLBlocked
	FetchRetryable
	FetchDisallowed
)

func (s FetchStatus) String() string {
	switch s {
	case FetchOK:
		return "ok"
	case FetchNotFound:
		return "not_found"
	case FetchSSLBlocked:
		return "ssl_blocked"
	case FetchRetryable:
		return "retryable"
	case FetchDisallowed:
		return "disallowed"
	default:
		return "unknown"
	}
}

// FetchOutcome is the tagged result of Fetcher.Fetch. Result is only
// meaningful when Status is FetchOK; Err carries the last failure otherwise.
type FetchOutcome struct {
	Status FetchStatus
	Result FetchResult
	Err    error
}

// OK reports whether the fetch produced a usable body.
func (o FetchOutcome) OK() bool {
	return o.Status == FetchOK
}

// RawTriple is a candidate fact returned by an Oracle.
type RawTriple struct {
	Head       string  `json:"head"`
	Relation   string  `json:"relation"`
	Tail       string  `json:"tail"`
	Confidence float64 `json:"confidence"`
}

// NormalizedTriple is a canonicalized, deduplicated fact.
type NormalizedTriple struct {
	Head       string  `json:"head"`
	Relation   string  `json:"relation"`
	Tail       string  `json:"tail"`
	Confidence float64 `json:"confidence"`
}

// PageTriples groups the accepted triples extracted from one page.
type PageTriples struct {
	SourceURL   string             `json:"source_url"`
	Count       int                `json:"count"`
	Entries     []NormalizedTriple `json:"entries"`
	ContentHash string             `json:"content_hash,omitempty"`
	ArchiveURI  string             `json:"archive_uri,omitempty"`
}

// Contact holds the international office contact found on a site.
type Contact struct {
	Email string `json:"international_email,omitempty"`
	Phone string `json:"international_phone,omitempty"`
}

// ESLInfo describes English-as-a-second-language availability.
type ESLInfo struct {
	Available   bool   `json:"available"`
	Description string `json:"description,omitempty"`
}

// SupportInfo describes services offered to international students.
type SupportInfo struct {
	Available   bool     `json:"available"`
	Services    []string `json:"services"`
	Description string   `json:"description,omitempty"`
}

// SiteProfile aggregates field-parser output for one Target.
type SiteProfile struct {
	Contact              Contact           `json:"contact"`
	Facilities           map[string]bool   `json:"facilities"`
	FacilityDetails      map[string]string `json:"facility_details,omitempty"`
	ESL                  ESLInfo           `json:"esl"`
	Majors               []string          `json:"majors"`
	InternationalSupport SupportInfo       `json:"international_support"`
}

// RoutingStatus classifies how a Target's run ended.
type RoutingStatus string

// Routing outcomes written to every report.
const (
	RoutingSuccess RoutingStatus = "success"
	RoutingSkipped RoutingStatus = "skipped"
	RoutingFailed  RoutingStatus = "failed"
)

// Routing explains why a Target was or was not processed.
type Routing struct {
	Status  RoutingStatus `json:"status"`
	Skipped bool          `json:"skipped"`
	Reason  string        `json:"reason,omitempty"`
}

// TargetReport is the self-contained record emitted once per Target per run.
type TargetReport struct {
	RunID          string            `json:"run_id"`
	SchoolName     string            `json:"school_name"`
	Website        string            `json:"website"`
	DiscoveredURLs []string          `json:"discovered_urls"`
	ProbedPages    map[string]string `json:"probed_pages,omitempty"`
	Profile        *SiteProfile      `json:"profile,omitempty"`
	Triples        []PageTriples     `json:"triples"`
	Routing        Routing           `json:"routing"`
	StartedAt      time.Time         `json:"started_at"`
	FinishedAt     time.Time         `json:"finished_at"`
}

// TripleCount sums accepted triples across pages.
func (r TargetReport) TripleCount() int {
	total := 0
	for _, page := range r.Triples {
		total += page.Count
	}
	return total
}

// FailureCategory partitions the failed-site ledger.
type FailureCategory string

// Ledger categories. Only FailureSSL is written by the pipeline.
const (
	FailureSSL     FailureCategory = "ssl_verification_failed"
	FailureRobots  FailureCategory = "robots_blocked"
	FailureTimeout FailureCategory = "timeout_failed"
)

// FailureCategories lists every valid ledger category in display order.
var FailureCategories = []FailureCategory{FailureSSL, FailureRobots, FailureTimeout}

// Valid reports whether c is a known ledger category.
func (c FailureCategory) Valid() bool {
	for _, known := range FailureCategories {
		if c == known {
			return true
		}
	}
	return false
}

// SSLErrorType is the error_type stored for certificate failures.
const SSLErrorType = "SSL_CERTIFICATE_VERIFY_FAILED"

// SiteFailureRecord is one durable ledger entry, unique per (Category, Website).
type SiteFailureRecord struct {
	Category      FailureCategory `json:"-"`
	Name          string          `json:"name"`
	Website       string          `json:"website"`
	ErrorType     string          `json:"error_type"`
	ErrorMessage  string          `json:"error_message"`
	FirstFailedAt time.Time       `json:"first_failed_at"`
	LastCheckedAt time.Time       `json:"last_checked_at"`
	RetryCount    int             `json:"retry_count"`
	Skip          bool            `json:"skip"`
	Note          string          `json:"note,omitempty"`
}
