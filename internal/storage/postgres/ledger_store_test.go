package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/campus-kg-crawler/internal/crawler"
	"github.com/JakeFAU/campus-kg-crawler/internal/ledger"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

var testNow = time.Unix(1700000000, 0).UTC()

func newMockStore(t *testing.T) (*LedgerStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	store, err := NewLedgerStoreWithPool(mock, "failed_sites", fixedClock{now: testNow})
	require.NoError(t, err)
	return store, mock
}

func TestRecordSSLFailureUpserts(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO failed_sites").
		WithArgs(
			"ssl_verification_failed",
			"Example College",
			"https://example.edu",
			crawler.SSLErrorType,
			"x509: certificate signed by unknown authority",
			testNow,
			testNow,
			1,
			true,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := store.RecordSSLFailure(context.Background(),
		crawler.Target{Name: "Example College", Website: "https://Example.edu/"},
		"x509: certificate signed by unknown authority",
	)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordSSLFailureUsesConflictClause(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectExec(`ON CONFLICT \(category, website\) DO UPDATE`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, store.RecordSSLFailure(context.Background(), crawler.Target{Website: "https://a.edu"}, "bad"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordSSLFailureWrapsError(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectExec("INSERT INTO failed_sites").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(errors.New("connection reset"))

	err := store.RecordSSLFailure(context.Background(), crawler.Target{Website: "https://a.edu"}, "bad")
	require.ErrorContains(t, err, "upsert ssl failure")
}

func TestShouldSkipFindsRow(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	first := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT category, first_failed_at").
		WithArgs("https://example.edu").
		WillReturnRows(pgxmock.NewRows([]string{"category", "first_failed_at"}).
			AddRow("ssl_verification_failed", first))

	skip, reason, err := store.ShouldSkip(context.Background(), "example.edu")
	require.NoError(t, err)
	require.True(t, skip)
	require.Equal(t, "SSL failure history (first: 2024-03-01T12:00:00Z)", reason)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestShouldSkipNoRows(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectQuery("SELECT category, first_failed_at").
		WithArgs("https://clean.edu").
		WillReturnRows(pgxmock.NewRows([]string{"category", "first_failed_at"}))

	skip, reason, err := store.ShouldSkip(context.Background(), "https://clean.edu")
	require.NoError(t, err)
	require.False(t, skip)
	require.Empty(t, reason)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListScansRows(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	cols := []string{"name", "website", "error_type", "error_message", "first_failed_at", "last_checked_at", "retry_count", "skip", "note"}
	mock.ExpectQuery("SELECT name, website").
		WithArgs("ssl_verification_failed").
		WillReturnRows(pgxmock.NewRows(cols).
			AddRow("A", "https://a.edu", crawler.SSLErrorType, "bad", testNow, testNow, 3, true, "").
			AddRow("B", "https://b.edu", crawler.SSLErrorType, "worse", testNow, testNow, 1, true, "manual"))

	records, err := store.List(context.Background(), crawler.FailureSSL)
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, crawler.FailureSSL, records[0].Category)
	require.Equal(t, 3, records[0].RetryCount)
	require.Equal(t, "manual", records[1].Note)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListRejectsUnknownCategory(t *testing.T) {
	t.Parallel()

	store, _ := newMockStore(t)
	_, err := store.List(context.Background(), "nope")
	require.ErrorIs(t, err, ledger.ErrUnknownCategory)
}

func TestResetDeletesRow(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectExec("DELETE FROM failed_sites").
		WithArgs("ssl_verification_failed", "https://a.edu").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	require.NoError(t, store.Reset(context.Background(), crawler.FailureSSL, "https://a.edu/"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureSchema(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS failed_sites`).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))

	require.NoError(t, store.EnsureSchema(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewLedgerStoreWithPoolValidatesTable(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewLedgerStoreWithPool(mock, "bad;table", nil)
	require.Error(t, err)

	_, err = NewLedgerStoreWithPool(nil, "", nil)
	require.Error(t, err)

	store, err := NewLedgerStoreWithPool(mock, "", nil)
	require.NoError(t, err)
	require.Equal(t, defaultTable, store.table)
}

func TestNewLedgerStoreRequiresDSN(t *testing.T) {
	t.Parallel()

	_, err := NewLedgerStore(context.Background(), LedgerStoreConfig{})
	require.Error(t, err)
}
