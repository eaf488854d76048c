package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/campus-kg-crawler/internal/crawler"
)

type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	current := c.now
	c.now = c.now.Add(time.Minute)
	return current
}

func newTestLedger(t *testing.T) (*FileLedger, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ledger", "failed_sites.json")
	clock := &stepClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	l, err := NewFileLedger(path, WithClock(clock))
	require.NoError(t, err)
	return l, path
}

func TestFileLedgerUpsertsSSLFailure(t *testing.T) {
	t.Parallel()

	l, path := newTestLedger(t)
	ctx := context.Background()
	target := crawler.Target{Name: "Example College", Website: "HTTPS://Example.edu/"}

	require.NoError(t, l.RecordSSLFailure(ctx, target, "x509: certificate signed by unknown authority"))
	require.NoError(t, l.RecordSSLFailure(ctx, target, "x509: certificate has expired"))

	records, err := l.List(ctx, crawler.FailureSSL)
	require.NoError(t, err)
	require.Len(t, records, 1)

	rec := records[0]
	require.Equal(t, crawler.FailureSSL, rec.Category)
	require.Equal(t, "https://example.edu", rec.Website)
	require.Equal(t, "Example College", rec.Name)
	require.Equal(t, crawler.SSLErrorType, rec.ErrorType)
	require.Equal(t, "x509: certificate has expired", rec.ErrorMessage)
	require.Equal(t, 2, rec.RetryCount)
	require.True(t, rec.Skip)
	require.Equal(t, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), rec.FirstFailedAt)
	require.Equal(t, time.Date(2024, 3, 1, 12, 1, 0, 0, time.UTC), rec.LastCheckedAt)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var raw map[string][]map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	require.Contains(t, raw, "ssl_verification_failed")
	require.Contains(t, raw, "robots_blocked")
	require.Contains(t, raw, "timeout_failed")
}

func TestFileLedgerShouldSkip(t *testing.T) {
	t.Parallel()

	l, _ := newTestLedger(t)
	ctx := context.Background()

	skip, reason, err := l.ShouldSkip(ctx, "https://example.edu")
	require.NoError(t, err)
	require.False(t, skip)
	require.Empty(t, reason)

	require.NoError(t, l.RecordSSLFailure(ctx, crawler.Target{Name: "X", Website: "https://example.edu"}, "bad cert"))

	skip, reason, err = l.ShouldSkip(ctx, "example.edu/")
	require.NoError(t, err)
	require.True(t, skip)
	require.Equal(t, "SSL failure history (first: 2024-03-01T12:00:00Z)", reason)
}

func TestFileLedgerReset(t *testing.T) {
	t.Parallel()

	l, _ := newTestLedger(t)
	ctx := context.Background()
	require.NoError(t, l.RecordSSLFailure(ctx, crawler.Target{Name: "A", Website: "https://a.edu"}, "bad"))
	require.NoError(t, l.RecordSSLFailure(ctx, crawler.Target{Name: "B", Website: "https://b.edu"}, "bad"))

	require.NoError(t, l.Reset(ctx, crawler.FailureSSL, "https://a.edu/"))
	require.NoError(t, l.Reset(ctx, crawler.FailureSSL, "https://missing.edu"))

	records, err := l.List(ctx, crawler.FailureSSL)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "https://b.edu", records[0].Website)

	skip, _, err := l.ShouldSkip(ctx, "https://a.edu")
	require.NoError(t, err)
	require.False(t, skip)
}

func TestFileLedgerRejectsUnknownCategory(t *testing.T) {
	t.Parallel()

	l, _ := newTestLedger(t)
	_, err := l.List(context.Background(), "bogus")
	require.True(t, errors.Is(err, ErrUnknownCategory))
	err = l.Reset(context.Background(), "bogus", "https://a.edu")
	require.ErrorIs(t, err, ErrUnknownCategory)
}

func TestFileLedgerConcurrentRecords(t *testing.T) {
	t.Parallel()

	l, _ := newTestLedger(t)
	ctx := context.Background()
	target := crawler.Target{Name: "Busy", Website: "https://busy.edu"}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, l.RecordSSLFailure(ctx, target, "bad"))
		}()
	}
	wg.Wait()

	records, err := l.List(ctx, crawler.FailureSSL)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, 10, records[0].RetryCount)
}

func TestFileLedgerCorruptFile(t *testing.T) {
	t.Parallel()

	l, path := newTestLedger(t)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, _, err := l.ShouldSkip(context.Background(), "https://a.edu")
	require.Error(t, err)
}

func TestNewFileLedgerRequiresPath(t *testing.T) {
	t.Parallel()

	_, err := NewFileLedger("")
	require.Error(t, err)
}
