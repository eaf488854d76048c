// Package postgres provides the Postgres-backed failed-site ledger.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/campus-kg-crawler/internal/crawler"
	"github.com/JakeFAU/campus-kg-crawler/internal/ledger"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

const defaultTable = "failed_sites"

// LedgerStoreConfig controls the Postgres connection pool used for ledger rows.
type LedgerStoreConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	Close()
}

// LedgerStore implements crawler.Ledger on a table with one row per
// (category, website).
type LedgerStore struct {
	pool  pool
	table string
	now   func() time.Time
}

// NewLedgerStore creates a Postgres-backed ledger using the provided config.
func NewLedgerStore(ctx context.Context, cfg LedgerStoreConfig) (*LedgerStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("ledger.dsn is required")
	}
	table, err := tableName(cfg.Table)
	if err != nil {
		return nil, err
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &LedgerStore{pool: p, table: table, now: utcNow}, nil
}

// NewLedgerStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewLedgerStoreWithPool(p pool, table string, clock crawler.Clock) (*LedgerStore, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	name, err := tableName(table)
	if err != nil {
		return nil, err
	}
	now := utcNow
	if clock != nil {
		now = clock.Now
	}
	return &LedgerStore{pool: p, table: name, now: now}, nil
}

func tableName(table string) (string, error) {
	if table == "" {
		table = defaultTable
	}
	if !validTableName.MatchString(table) {
		return "", fmt.Errorf("invalid table name %q", table)
	}
	return table, nil
}

func utcNow() time.Time { return time.Now().UTC() }

// Close releases the underlying pool resources.
func (s *LedgerStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// EnsureSchema creates the ledger table if it does not exist.
func (s *LedgerStore) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	category        TEXT NOT NULL CHECK (category IN ('%s', '%s', '%s')),
	name            TEXT NOT NULL DEFAULT '',
	website         TEXT NOT NULL,
	error_type      TEXT NOT NULL DEFAULT '',
	error_message   TEXT NOT NULL DEFAULT '',
	first_failed_at TIMESTAMPTZ NOT NULL,
	last_checked_at TIMESTAMPTZ NOT NULL,
	retry_count     INTEGER NOT NULL DEFAULT 1,
	skip            BOOLEAN NOT NULL DEFAULT TRUE,
	note            TEXT NOT NULL DEFAULT '',
	UNIQUE (category, website)
)`, s.table, crawler.FailureSSL, crawler.FailureRobots, crawler.FailureTimeout)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create ledger table: %w", err)
	}
	return nil
}

// RecordSSLFailure upserts the ssl_verification_failed row for target.
func (s *LedgerStore) RecordSSLFailure(ctx context.Context, target crawler.Target, message string) error {
	rec := ledger.NewSSLRecord(target, message, s.now())
	query := fmt.Sprintf(`
INSERT INTO %[1]s (
	category,
	name,
	website,
	error_type,
	error_message,
	first_failed_at,
	last_checked_at,
	retry_count,
	skip
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9
)
ON CONFLICT (category, website) DO UPDATE
SET retry_count = %[1]s.retry_count + 1,
	last_checked_at = EXCLUDED.last_checked_at,
	error_type = EXCLUDED.error_type,
	error_message = EXCLUDED.error_message,
	skip = TRUE`, s.table)

	args := []any{
		string(rec.Category),
		rec.Name,
		rec.Website,
		rec.ErrorType,
		rec.ErrorMessage,
		rec.FirstFailedAt,
		rec.LastCheckedAt,
		rec.RetryCount,
		rec.Skip,
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert ssl failure: %w", err)
	}
	return nil
}

// ShouldSkip reports whether any category holds a skip row for website.
func (s *LedgerStore) ShouldSkip(ctx context.Context, website string) (bool, string, error) {
	query := fmt.Sprintf(`
SELECT category, first_failed_at
FROM %s
WHERE website = $1 AND skip
ORDER BY first_failed_at
LIMIT 1`, s.table)

	var (
		category string
		first    time.Time
	)
	err := s.pool.QueryRow(ctx, query, crawler.NormalizeWebsite(website)).Scan(&category, &first)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, "", nil
	}
	if err != nil {
		return false, "", fmt.Errorf("query ledger: %w", err)
	}
	return true, ledger.SkipReason(crawler.SiteFailureRecord{
		Category:      crawler.FailureCategory(category),
		FirstFailedAt: first,
	}), nil
}

// List returns every row in category, oldest first.
func (s *LedgerStore) List(ctx context.Context, category crawler.FailureCategory) ([]crawler.SiteFailureRecord, error) {
	if err := ledger.CheckCategory(category); err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`
SELECT name, website, error_type, error_message, first_failed_at, last_checked_at, retry_count, skip, note
FROM %s
WHERE category = $1
ORDER BY first_failed_at`, s.table)

	rows, err := s.pool.Query(ctx, query, string(category))
	if err != nil {
		return nil, fmt.Errorf("list ledger: %w", err)
	}
	defer rows.Close()

	var records []crawler.SiteFailureRecord
	for rows.Next() {
		rec := crawler.SiteFailureRecord{Category: category}
		if err := rows.Scan(
			&rec.Name,
			&rec.Website,
			&rec.ErrorType,
			&rec.ErrorMessage,
			&rec.FirstFailedAt,
			&rec.LastCheckedAt,
			&rec.RetryCount,
			&rec.Skip,
			&rec.Note,
		); err != nil {
			return nil, fmt.Errorf("scan ledger row: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ledger rows: %w", err)
	}
	return records, nil
}

// Reset deletes the row for website in category.
func (s *LedgerStore) Reset(ctx context.Context, category crawler.FailureCategory, website string) error {
	if err := ledger.CheckCategory(category); err != nil {
		return err
	}
	query := fmt.Sprintf(`DELETE FROM %s WHERE category = $1 AND website = $2`, s.table)
	if _, err := s.pool.Exec(ctx, query, string(category), crawler.NormalizeWebsite(website)); err != nil {
		return fmt.Errorf("reset ledger entry: %w", err)
	}
	return nil
}
