// Package ledger persists the failed-site ledger: sites with a trust failure
// on record are never fetched again until an operator resets them.
package ledger

import (
	"errors"
	"fmt"
	"time"

	"github.com/JakeFAU/campus-kg-crawler/internal/crawler"
)

// ErrUnknownCategory is returned when a category outside the ledger enum is used.
var ErrUnknownCategory = errors.New("unknown ledger category")

// CheckCategory validates c against the category enum.
func CheckCategory(c crawler.FailureCategory) error {
	if !c.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownCategory, c)
	}
	return nil
}

// SkipReason renders the human-readable reason attached to a skipped Target.
func SkipReason(rec crawler.SiteFailureRecord) string {
	switch rec.Category {
	case crawler.FailureSSL, "":
		return fmt.Sprintf("SSL failure history (first: %s)", rec.FirstFailedAt.UTC().Format(time.RFC3339))
	default:
		return fmt.Sprintf("%s history (first: %s)", rec.Category, rec.FirstFailedAt.UTC().Format(time.RFC3339))
	}
}

// NewSSLRecord builds the first ledger entry for a certificate failure.
func NewSSLRecord(target crawler.Target, message string, now time.Time) crawler.SiteFailureRecord {
	return crawler.SiteFailureRecord{
		Category:      crawler.FailureSSL,
		Name:          target.Name,
		Website:       crawler.NormalizeWebsite(target.Website),
		ErrorType:     crawler.SSLErrorType,
		ErrorMessage:  message,
		FirstFailedAt: now,
		LastCheckedAt: now,
		RetryCount:    1,
		Skip:          true,
	}
}

// touch applies a repeat occurrence to an existing record.
func touch(rec *crawler.SiteFailureRecord, target crawler.Target, message string, now time.Time) {
	rec.RetryCount++
	rec.LastCheckedAt = now
	rec.ErrorMessage = message
	rec.ErrorType = crawler.SSLErrorType
	rec.Skip = true
	if rec.Name == "" {
		rec.Name = target.Name
	}
}
