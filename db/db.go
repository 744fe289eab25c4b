// Package db stores cache entries in Postgres so several instances can share them
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"feedgrid/cache"

	sqlbuilder "github.com/huandu/go-sqlbuilder"
	log "github.com/sirupsen/logrus"
)

const table = "feed_cache"

// DB is a cache.Store backed by the feed_cache table. Expired rows are never
// returned and are removed by Tidy.
type DB struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

// NewDB connects to databaseURL and runs the migrations
func NewDB(ctx context.Context, databaseURL string, ttl time.Duration) (*DB, error) {
	if err := Migrate(databaseURL); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	conn, err := connection(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	if ttl <= 0 {
		ttl = cache.DefaultTTL
	}

	return &DB{db: conn, ttl: ttl, now: time.Now}, nil
}

func (db *DB) Get(ctx context.Context, key string) (cache.Entry, bool, error) {
	query, args := selectEntry(key, db.now())

	var entry cache.Entry
	err := db.db.QueryRowContext(ctx, query, args...).Scan(&entry.StatusCode, &entry.Body, &entry.FetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return cache.Entry{}, false, nil
	}
	if err != nil {
		return cache.Entry{}, false, fmt.Errorf("select error: %w", err)
	}
	return entry, true, nil
}

// Set writes the entry in a single upsert, last writer wins
func (db *DB) Set(ctx context.Context, key string, entry cache.Entry) error {
	query, args := upsertEntry(key, entry, entry.FetchedAt.Add(db.ttl))
	if _, err := db.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert error: %w", err)
	}
	return nil
}

func (db *DB) Delete(ctx context.Context, key string) error {
	query, args := deleteEntry(key)
	if _, err := db.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete error: %w", err)
	}
	return nil
}

func (db *DB) Close() error {
	log.Info("Closing database connection")
	return db.db.Close()
}

func selectEntry(key string, now time.Time) (string, []interface{}) {
	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("status_code", "body", "fetched_at").From(table)
	sb.Where(sb.Equal("key", key), sb.GreaterThan("expires_at", now))
	return sb.Build()
}

func upsertEntry(key string, entry cache.Entry, expiresAt time.Time) (string, []interface{}) {
	ib := sqlbuilder.PostgreSQL.NewInsertBuilder()
	ib.InsertInto(table).
		Cols("key", "status_code", "body", "fetched_at", "expires_at").
		Values(key, entry.StatusCode, entry.Body, entry.FetchedAt, expiresAt)
	ib.SQL(`ON CONFLICT (key) DO UPDATE SET
		status_code = EXCLUDED.status_code,
		body = EXCLUDED.body,
		fetched_at = EXCLUDED.fetched_at,
		expires_at = EXCLUDED.expires_at`)
	return ib.Build()
}

func deleteEntry(key string) (string, []interface{}) {
	dlb := sqlbuilder.PostgreSQL.NewDeleteBuilder()
	dlb.DeleteFrom(table).Where(dlb.Equal("key", key))
	return dlb.Build()
}
