package main

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDatabase(t *testing.T) *Database {
	t.Helper()
	path := filepath.Join(t.TempDir(), "funding.db")
	db, err := NewDatabase(context.Background(), "sqlite3", path, "Perpetuos")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

type storedRow struct {
	name        string
	bfx         sql.NullFloat64
	bluefin     sql.NullFloat64
	orderly     sql.NullFloat64
	hyperliquid sql.NullFloat64
	timestamp   float64
}

func loadRow(t *testing.T, db *Database, id string) storedRow {
	t.Helper()
	var r storedRow
	err := db.db.QueryRow(
		`SELECT name, funding_bfx, funding_bluefin, funding_orderly, funding_hyperliquid, "timestamp" FROM "Perpetuos" WHERE id = ?`,
		id,
	).Scan(&r.name, &r.bfx, &r.bluefin, &r.orderly, &r.hyperliquid, &r.timestamp)
	require.NoError(t, err)
	return r
}

func countRows(t *testing.T, db *Database) int {
	t.Helper()
	var n int
	require.NoError(t, db.db.QueryRow(`SELECT COUNT(*) FROM "Perpetuos"`).Scan(&n))
	return n
}

func TestDatabase_Upsert(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()

	rows := BuildRecords([]MergedRow{
		{Name: "BTC", FundingBFX: ratePtr(0.0001), FundingHyperliquid: ratePtr(0.0000125)},
		{Name: "SOL", FundingBluefin: ratePtr(0.0003)},
	}, 1700000000.5)

	require.NoError(t, db.Upsert(ctx, rows))
	assert.Equal(t, 2, countRows(t, db))

	btc := loadRow(t, db, "BTC_1700000000.5")
	assert.Equal(t, "BTC", btc.name)
	assert.Equal(t, sql.NullFloat64{Float64: 0.0001, Valid: true}, btc.bfx)
	assert.False(t, btc.bluefin.Valid)
	assert.False(t, btc.orderly.Valid)
	assert.Equal(t, sql.NullFloat64{Float64: 0.0000125, Valid: true}, btc.hyperliquid)
	assert.Equal(t, 1700000000.5, btc.timestamp)

	sol := loadRow(t, db, "SOL_1700000000.5")
	assert.False(t, sol.bfx.Valid)
	assert.Equal(t, sql.NullFloat64{Float64: 0.0003, Valid: true}, sol.bluefin)
}

func TestDatabase_UpsertReplacesExistingRow(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()

	first := BuildRecords([]MergedRow{{Name: "ETH", FundingBFX: ratePtr(0.0002)}}, 1700000000)
	require.NoError(t, db.Upsert(ctx, first))

	second := BuildRecords([]MergedRow{{Name: "ETH", FundingOrderly: ratePtr(0.01)}}, 1700000000)
	require.NoError(t, db.Upsert(ctx, second))

	assert.Equal(t, 1, countRows(t, db))
	eth := loadRow(t, db, "ETH_1700000000.0")
	assert.False(t, eth.bfx.Valid)
	assert.Equal(t, sql.NullFloat64{Float64: 0.01, Valid: true}, eth.orderly)
}

func TestDatabase_UpsertEmpty(t *testing.T) {
	db := newTestDatabase(t)
	require.NoError(t, db.Upsert(context.Background(), nil))
	assert.Equal(t, 0, countRows(t, db))
}

func TestUpsertQuery(t *testing.T) {
	tests := []struct {
		name   string
		driver string
		want   string
	}{
		{
			name:   "postgres placeholders",
			driver: "postgres",
			want: `INSERT INTO "Perpetuos" ("id", "name", "funding_bfx", "funding_bluefin", "funding_orderly", "funding_hyperliquid", "timestamp") ` +
				`VALUES ($1, $2, $3, $4, $5, $6, $7) ON CONFLICT ("id") DO UPDATE SET ` +
				`"name" = excluded."name", "funding_bfx" = excluded."funding_bfx", "funding_bluefin" = excluded."funding_bluefin", ` +
				`"funding_orderly" = excluded."funding_orderly", "funding_hyperliquid" = excluded."funding_hyperliquid", "timestamp" = excluded."timestamp"`,
		},
		{
			name:   "sqlite placeholders",
			driver: "sqlite3",
			want: `INSERT INTO "Perpetuos" ("id", "name", "funding_bfx", "funding_bluefin", "funding_orderly", "funding_hyperliquid", "timestamp") ` +
				`VALUES (?, ?, ?, ?, ?, ?, ?) ON CONFLICT ("id") DO UPDATE SET ` +
				`"name" = excluded."name", "funding_bfx" = excluded."funding_bfx", "funding_bluefin" = excluded."funding_bluefin", ` +
				`"funding_orderly" = excluded."funding_orderly", "funding_hyperliquid" = excluded."funding_hyperliquid", "timestamp" = excluded."timestamp"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, upsertQuery(tt.driver, "Perpetuos"))
		})
	}
}

func TestQuoteIdent(t *testing.T) {
	assert.Equal(t, `"Perpetuos"`, quoteIdent("Perpetuos"))
	assert.Equal(t, `"a""b"`, quoteIdent(`a"b`))
}
