package main

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ratePtr(v float64) *float64 {
	return &v
}

func TestMerge(t *testing.T) {
	results := []FetchResult{
		{Source: SourceBFX, Rates: []Rate{
			{Asset: "BTC", Source: SourceBFX, Rate: 0.0001},
			{Asset: "ETH", Source: SourceBFX, Rate: 0.0002},
		}},
		{Source: SourceBluefin, Rates: []Rate{
			{Asset: "SOL", Source: SourceBluefin, Rate: 0.0003},
		}},
		{Source: SourceOrderly},
		{Source: SourceHyperliquid, Err: errors.New("connection refused")},
	}

	rows, err := Merge(results)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, MergedRow{Name: "BTC", FundingBFX: ratePtr(0.0001)}, rows[0])
	assert.Equal(t, MergedRow{Name: "ETH", FundingBFX: ratePtr(0.0002)}, rows[1])
	assert.Equal(t, MergedRow{Name: "SOL", FundingBluefin: ratePtr(0.0003)}, rows[2])
}

func TestMerge_SeedsFromFirstNonEmptySource(t *testing.T) {
	results := []FetchResult{
		{Source: SourceBFX},
		{Source: SourceBluefin},
		{Source: SourceOrderly, Rates: []Rate{
			{Asset: "ETH", Source: SourceOrderly, Rate: 0.01},
		}},
		{Source: SourceHyperliquid, Rates: []Rate{
			{Asset: "BTC", Source: SourceHyperliquid, Rate: 0.0000125},
			{Asset: "ETH", Source: SourceHyperliquid, Rate: 0.00002},
		}},
	}

	rows, err := Merge(results)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "BTC", rows[0].Name)
	assert.Nil(t, rows[0].FundingOrderly)
	assert.Equal(t, ratePtr(0.0000125), rows[0].FundingHyperliquid)

	assert.Equal(t, "ETH", rows[1].Name)
	assert.Equal(t, ratePtr(0.01), rows[1].FundingOrderly)
	assert.Equal(t, ratePtr(0.00002), rows[1].FundingHyperliquid)
	assert.Nil(t, rows[1].FundingBFX)
	assert.Nil(t, rows[1].FundingBluefin)
}

func TestMerge_NoData(t *testing.T) {
	tests := []struct {
		name    string
		results []FetchResult
	}{
		{name: "no sources", results: nil},
		{name: "all empty", results: []FetchResult{
			{Source: SourceBFX},
			{Source: SourceBluefin, Rates: []Rate{}},
		}},
		{name: "all failed", results: []FetchResult{
			{Source: SourceOrderly, Err: errors.New("boom")},
			{Source: SourceHyperliquid, Err: errors.New("boom")},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := Merge(tt.results)
			assert.ErrorIs(t, err, ErrNoData)
			assert.Nil(t, rows)
		})
	}
}

func TestMerge_DuplicateAssetKeepsFirst(t *testing.T) {
	rows, err := Merge([]FetchResult{
		{Source: SourceOrderly, Rates: []Rate{
			{Asset: "BTC", Source: SourceOrderly, Rate: 0.01},
			{Asset: "BTC", Source: SourceOrderly, Rate: 0.02},
		}},
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, ratePtr(0.01), rows[0].FundingOrderly)
}

func TestBuildRecords(t *testing.T) {
	ts := RunTimestamp(time.Unix(1700000000, 123456000))
	assert.Equal(t, 1700000000.123456, ts)

	rows := []MergedRow{
		{Name: "BTC", FundingBFX: ratePtr(0.0001)},
		{Name: "ETH", FundingBluefin: ratePtr(0.0002)},
	}

	records := BuildRecords(rows, ts)
	require.Len(t, records, 2)

	assert.Equal(t, "BTC_1700000000.123456", records[0].ID)
	assert.Equal(t, "ETH_1700000000.123456", records[1].ID)
	for _, r := range records {
		assert.Equal(t, ts, r.Timestamp)
	}
	assert.Equal(t, ratePtr(0.0001), records[0].FundingBFX)

	// the input is left untouched
	assert.Empty(t, rows[0].ID)
	assert.Zero(t, rows[0].Timestamp)

	// the same timestamp always yields the same ids
	again := BuildRecords(rows, ts)
	assert.Equal(t, records, again)
}

func TestBuildRecords_UniqueIDs(t *testing.T) {
	rows := []MergedRow{{Name: "BTC"}, {Name: "ETH"}, {Name: "SOL"}}
	first := BuildRecords(rows, RunTimestamp(time.Unix(1700000000, 0)))
	second := BuildRecords(rows, RunTimestamp(time.Unix(1700000060, 0)))

	seen := make(map[string]bool)
	for _, r := range append(first, second...) {
		assert.False(t, seen[r.ID], "duplicate id %s", r.ID)
		seen[r.ID] = true
	}
	assert.Equal(t, "BTC_1700000000.0", first[0].ID)
}

func TestRecordID(t *testing.T) {
	tests := []struct {
		name      string
		timestamp float64
		want      string
	}{
		{name: "whole second keeps one decimal", timestamp: 1700000000, want: "BTC_1700000000.0"},
		{name: "half second", timestamp: 1700000000.5, want: "BTC_1700000000.5"},
		{name: "microseconds", timestamp: 1700000000.123456, want: "BTC_1700000000.123456"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, recordID("BTC", tt.timestamp))
		})
	}
}
