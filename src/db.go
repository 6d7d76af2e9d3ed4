package main

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

var rowColumns = []string{
	"id",
	"name",
	"funding_bfx",
	"funding_bluefin",
	"funding_orderly",
	"funding_hyperliquid",
	"timestamp",
}

// Database is a Sink backed by database/sql. It serves both the postgres and
// the sqlite3 drivers.
type Database struct {
	db     *sql.DB
	driver string
	table  string
}

func NewDatabase(ctx context.Context, driver, dsn, table string) (*Database, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	d := &Database{db: db, driver: driver, table: table}
	if err := d.InitSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table %s: %w", table, err)
	}
	return d, nil
}

func (d *Database) InitSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			funding_bfx DOUBLE PRECISION,
			funding_bluefin DOUBLE PRECISION,
			funding_orderly DOUBLE PRECISION,
			funding_hyperliquid DOUBLE PRECISION,
			"timestamp" DOUBLE PRECISION NOT NULL
		)
	`, quoteIdent(d.table))
	_, err := d.db.ExecContext(ctx, query)
	return err
}

func (d *Database) Upsert(ctx context.Context, rows []MergedRow) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, upsertQuery(d.driver, d.table))
	if err != nil {
		return fmt.Errorf("preparing upsert: %w", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		_, err := stmt.ExecContext(ctx,
			row.ID,
			row.Name,
			row.FundingBFX,
			row.FundingBluefin,
			row.FundingOrderly,
			row.FundingHyperliquid,
			row.Timestamp,
		)
		if err != nil {
			return fmt.Errorf("upserting row %s: %w", row.ID, err)
		}
	}

	return tx.Commit()
}

func (d *Database) Close() error {
	return d.db.Close()
}

// upsertQuery builds an insert that replaces every column of an existing row
// with the same id.
func upsertQuery(driver, table string) string {
	cols := make([]string, len(rowColumns))
	placeholders := make([]string, len(rowColumns))
	var updates []string
	for i, c := range rowColumns {
		cols[i] = quoteIdent(c)
		if driver == "postgres" {
			placeholders[i] = fmt.Sprintf("$%d", i+1)
		} else {
			placeholders[i] = "?"
		}
		if c != "id" {
			updates = append(updates, fmt.Sprintf("%s = excluded.%s", cols[i], cols[i]))
		}
	}

	return fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO UPDATE SET %s",
		quoteIdent(table),
		strings.Join(cols, ", "),
		strings.Join(placeholders, ", "),
		quoteIdent("id"),
		strings.Join(updates, ", "),
	)
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
