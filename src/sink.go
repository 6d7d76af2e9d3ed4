package main

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Sink persists merged rows, replacing any row with the same id.
type Sink interface {
	Upsert(ctx context.Context, rows []MergedRow) error
	Close() error
}

// OpenSink builds the sink selected by cfg.Kind. Missing credentials are
// reported as *ConfigError.
func OpenSink(ctx context.Context, cfg SinkConfig, timeout time.Duration, log logrus.FieldLogger) (Sink, error) {
	switch strings.ToLower(cfg.Kind) {
	case SinkSupabase, "":
		if cfg.SupabaseURL == "" {
			return nil, &ConfigError{Key: "SUPABASE_URL"}
		}
		if cfg.SupabaseKey == "" {
			return nil, &ConfigError{Key: "SUPABASE_KEY"}
		}
		return NewSupabaseSink(cfg.SupabaseURL, cfg.SupabaseKey, cfg.Table, timeout), nil
	case SinkPostgres:
		if cfg.PostgresDSN == "" {
			return nil, &ConfigError{Key: "DATABASE_URL"}
		}
		return openDatabase(ctx, "postgres", cfg.PostgresDSN, cfg.Table)
	case SinkSQLite:
		if cfg.SQLitePath == "" {
			return nil, &ConfigError{Key: "SQLITE_PATH"}
		}
		return openDatabase(ctx, "sqlite3", cfg.SQLitePath, cfg.Table)
	default:
		return nil, &ConfigError{Key: "sink.kind", Reason: "unsupported sink " + cfg.Kind}
	}
}

func openDatabase(ctx context.Context, driver, dsn, table string) (Sink, error) {
	db, err := NewDatabase(ctx, driver, dsn, table)
	if err != nil {
		return nil, err
	}
	return db, nil
}
