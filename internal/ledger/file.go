package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/campus-kg-crawler/internal/crawler"
	"github.com/JakeFAU/campus-kg-crawler/internal/storage/local"
)

// FileLedger stores the ledger as a JSON document keyed by category.
// Writes go to a temp file that is renamed over the original.
type FileLedger struct {
	path   string
	now    func() time.Time
	logger *zap.Logger

	mu sync.Mutex
}

// FileOption customizes a FileLedger.
type FileOption func(*FileLedger)

// WithClock overrides the time source used for timestamps.
func WithClock(clock crawler.Clock) FileOption {
	return func(l *FileLedger) {
		if clock != nil {
			l.now = clock.Now
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *zap.Logger) FileOption {
	return func(l *FileLedger) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// NewFileLedger returns a ledger backed by path. The file is created lazily.
func NewFileLedger(path string, opts ...FileOption) (*FileLedger, error) {
	if path == "" {
		return nil, fmt.Errorf("ledger path is required")
	}
	l := &FileLedger{
		path:   path,
		now:    func() time.Time { return time.Now().UTC() },
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

type document map[crawler.FailureCategory][]crawler.SiteFailureRecord

// RecordSSLFailure upserts the ssl_verification_failed entry for target.
func (l *FileLedger) RecordSSLFailure(_ context.Context, target crawler.Target, message string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	doc, err := l.load()
	if err != nil {
		return err
	}
	now := l.now()
	website := crawler.NormalizeWebsite(target.Website)
	records := doc[crawler.FailureSSL]
	found := false
	for i := range records {
		if records[i].Website == website {
			touch(&records[i], target, message, now)
			found = true
			break
		}
	}
	if !found {
		records = append(records, NewSSLRecord(target, message, now))
	}
	doc[crawler.FailureSSL] = records
	if err := l.save(doc); err != nil {
		return err
	}
	l.logger.Info("recorded ssl failure",
		zap.String("website", website),
		zap.Bool("new", !found),
	)
	return nil
}

// ShouldSkip reports whether any category holds a skip entry for website.
func (l *FileLedger) ShouldSkip(_ context.Context, website string) (bool, string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	doc, err := l.load()
	if err != nil {
		return false, "", err
	}
	key := crawler.NormalizeWebsite(website)
	for _, category := range crawler.FailureCategories {
		for _, rec := range doc[category] {
			if rec.Skip && rec.Website == key {
				rec.Category = category
				return true, SkipReason(rec), nil
			}
		}
	}
	return false, "", nil
}

// List returns every record in category.
func (l *FileLedger) List(_ context.Context, category crawler.FailureCategory) ([]crawler.SiteFailureRecord, error) {
	if err := CheckCategory(category); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	doc, err := l.load()
	if err != nil {
		return nil, err
	}
	records := make([]crawler.SiteFailureRecord, 0, len(doc[category]))
	for _, rec := range doc[category] {
		rec.Category = category
		records = append(records, rec)
	}
	return records, nil
}

// Reset removes the entry for website from category. Missing entries are not an error.
func (l *FileLedger) Reset(_ context.Context, category crawler.FailureCategory, website string) error {
	if err := CheckCategory(category); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	doc, err := l.load()
	if err != nil {
		return err
	}
	key := crawler.NormalizeWebsite(website)
	kept := doc[category][:0]
	removed := false
	for _, rec := range doc[category] {
		if rec.Website == key {
			removed = true
			continue
		}
		kept = append(kept, rec)
	}
	if !removed {
		return nil
	}
	doc[category] = kept
	if err := l.save(doc); err != nil {
		return err
	}
	l.logger.Info("ledger entry reset", zap.String("category", string(category)), zap.String("website", key))
	return nil
}

func (l *FileLedger) load() (document, error) {
	doc := document{}
	for _, category := range crawler.FailureCategories {
		doc[category] = []crawler.SiteFailureRecord{}
	}
	data, err := os.ReadFile(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		return doc, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read ledger: %w", err)
	}
	if len(data) == 0 {
		return doc, nil
	}
	var stored document
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("decode ledger: %w", err)
	}
	for category, records := range stored {
		if !category.Valid() {
			l.logger.Warn("ignoring unknown ledger category", zap.String("category", string(category)))
			continue
		}
		doc[category] = records
	}
	return doc, nil
}

func (l *FileLedger) save(doc document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode ledger: %w", err)
	}
	if err := local.WriteFileAtomic(l.path, data); err != nil {
		return fmt.Errorf("save ledger: %w", err)
	}
	return nil
}
