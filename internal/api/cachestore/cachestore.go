// Package cachestore is the durable read-through/write-through memo
// for provider results. Values are derived deterministically from
// their key's inputs, so entries never expire; a key's version segment
// is bumped whenever the meaning of its value changes.
package cachestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/go-trip-planner/app/tracer"
)

// DB is the subset of pgxpool.Pool the store needs; pgxmock satisfies
// it in tests.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var _ Store = (*PostgresStore)(nil)

// Store is the durable cache contract. Both operations degrade rather
// than fail: a storage error reads as a miss and drops writes
// silently, because the cache is a performance optimization, not a
// correctness dependency.
type Store interface {
	Get(ctx context.Context, key string, dst any) bool
	Put(ctx context.Context, key string, v any)
}

type PostgresStore struct {
	logger *slog.Logger
	db     DB
}

func NewPostgresStore(db DB, logger *slog.Logger) *PostgresStore {
	return &PostgresStore{logger: logger, db: db}
}

// Get loads the value for key into dst and reports whether it was
// found. Storage and decode failures are logged and read as a miss.
func (s *PostgresStore) Get(ctx context.Context, key string, dst any) bool {
	ctx, span := otel.Tracer("CacheStore").Start(ctx, "Get", trace.WithAttributes(
		attribute.String("cache.key", key),
	))
	defer span.End()

	var raw []byte
	err := s.db.QueryRow(ctx, `SELECT value FROM cache_entries WHERE key = $1`, key).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		span.SetAttributes(attribute.Bool("cache.hit", false))
		tracer.RecordCacheLookup(ctx, false)
		return false
	}
	if err != nil {
		s.logger.WarnContext(ctx, "Cache read failed, treating as miss",
			slog.String("key", key), slog.Any("error", err))
		span.RecordError(err)
		tracer.RecordCacheLookup(ctx, false)
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		s.logger.WarnContext(ctx, "Cache value undecodable, treating as miss",
			slog.String("key", key), slog.Any("error", err))
		span.RecordError(err)
		tracer.RecordCacheLookup(ctx, false)
		return false
	}
	span.SetAttributes(attribute.Bool("cache.hit", true))
	tracer.RecordCacheLookup(ctx, true)
	return true
}

// Put upserts the value for key. Concurrent writers to the same key
// race with last-write-wins, which is acceptable because both derive
// the value from the same inputs. Failures are logged and dropped.
func (s *PostgresStore) Put(ctx context.Context, key string, v any) {
	ctx, span := otel.Tracer("CacheStore").Start(ctx, "Put", trace.WithAttributes(
		attribute.String("cache.key", key),
	))
	defer span.End()

	raw, err := json.Marshal(v)
	if err != nil {
		s.logger.WarnContext(ctx, "Cache value unmarshalable, dropping write",
			slog.String("key", key), slog.Any("error", err))
		span.RecordError(err)
		return
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO cache_entries (key, value, created_at)
		VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, created_at = now()`,
		key, raw)
	if err != nil {
		s.logger.WarnContext(ctx, "Cache write failed, dropping",
			slog.String("key", key), slog.Any("error", err))
		span.RecordError(err)
	}
}

// Fingerprint builds a versioned, namespaced cache key:
// "{domain}_v{n}:{part|part|...}". The parts must capture every input
// that affects the cached value.
func Fingerprint(domain string, version int, parts ...string) string {
	return fmt.Sprintf("%s_v%d:%s", domain, version, strings.Join(parts, "|"))
}

// Round6 renders a coordinate at 6 decimal places (~0.11 m) so float
// noise does not fragment cache keys for the same point.
func Round6(f float64) string {
	return strconv.FormatFloat(math.Round(f*1e6)/1e6, 'f', 6, 64)
}
