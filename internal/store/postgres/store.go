// Package postgres provides Postgres-backed persistence for scrape records.
package postgres

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/talentwire/jobfetch/internal/scrape"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool used for scrape records.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Close()
}

// RecordStore writes scrape records into Postgres.
type RecordStore struct {
	pool  pgxPool
	table string
}

// NewRecordStore creates a Postgres-backed RecordStore using the provided config.
func NewRecordStore(ctx context.Context, cfg Config) (*RecordStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("records.dsn is required")
	}
	table := cfg.Table
	if table == "" {
		table = "scrape_records"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
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
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &RecordStore{pool: pool, table: table}, nil
}

// NewRecordStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewRecordStoreWithPool(pool pgxPool, table string) (*RecordStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "scrape_records"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &RecordStore{pool: pool, table: table}, nil
}

// Close releases the underlying pool resources.
func (s *RecordStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// StoreRecord inserts a scrape record row into Postgres.
func (s *RecordStore) StoreRecord(ctx context.Context, record scrape.ScrapeRecord) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("record store is not configured")
	}
	if record.ID == "" {
		return fmt.Errorf("record id is required")
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	id,
	target,
	platform,
	success,
	error_kind,
	cached,
	attempts,
	duration_ms,
	fetched_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9
)`, s.table)

	args := []any{
		record.ID,
		record.Target,
		string(record.Platform),
		record.Success,
		string(record.ErrorKind),
		record.Cached,
		record.Attempts,
		record.Duration.Milliseconds(),
		record.FetchedAt,
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert scrape record: %w", err)
	}
	return nil
}

// RecentRecords returns up to limit records, newest first.
func (s *RecordStore) RecentRecords(ctx context.Context, limit int) ([]scrape.ScrapeRecord, error) {
	if s == nil || s.pool == nil {
		return nil, fmt.Errorf("record store is not configured")
	}
	if limit <= 0 {
		limit = 50
	}
	query := fmt.Sprintf(`
SELECT id, target, platform, success, error_kind, cached, attempts, duration_ms, fetched_at
FROM %s
ORDER BY fetched_at DESC
LIMIT $1`, s.table)

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query scrape records: %w", err)
	}
	defer rows.Close()

	var out []scrape.ScrapeRecord
	for rows.Next() {
		var (
			record     scrape.ScrapeRecord
			platform   string
			errorKind  string
			durationMS int64
		)
		if err := rows.Scan(
			&record.ID,
			&record.Target,
			&platform,
			&record.Success,
			&errorKind,
			&record.Cached,
			&record.Attempts,
			&durationMS,
			&record.FetchedAt,
		); err != nil {
			return nil, fmt.Errorf("scan scrape record: %w", err)
		}
		record.Platform = scrape.Platform(platform)
		record.ErrorKind = scrape.ErrorKind(errorKind)
		record.Duration = time.Duration(durationMS) * time.Millisecond
		out = append(out, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scrape records: %w", err)
	}
	return out, nil
}
