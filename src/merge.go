package main

import (
	"sort"
	"strconv"
	"strings"
	"time"
)

// Merge full-outer-joins the per-source rates on asset. The first source with
// rates seeds the table and every other non-empty source is joined onto it,
// so an asset reported by any source gets exactly one row. Rows come back
// ordered by asset.
func Merge(results []FetchResult) ([]MergedRow, error) {
	seed := -1
	for i, r := range results {
		if r.OK() && len(r.Rates) > 0 {
			seed = i
			break
		}
	}
	if seed < 0 {
		return nil, ErrNoData
	}

	table := make(map[string]*MergedRow)
	outerJoin(table, results[seed])
	for i, r := range results {
		if i == seed || !r.OK() || len(r.Rates) == 0 {
			continue
		}
		outerJoin(table, r)
	}

	rows := make([]MergedRow, 0, len(table))
	for _, row := range table {
		rows = append(rows, *row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Name < rows[j].Name })
	return rows, nil
}

func outerJoin(table map[string]*MergedRow, result FetchResult) {
	seen := make(map[string]bool, len(result.Rates))
	for _, rate := range result.Rates {
		// a source reporting an asset twice keeps its first value
		if seen[rate.Asset] {
			continue
		}
		seen[rate.Asset] = true

		row, ok := table[rate.Asset]
		if !ok {
			row = &MergedRow{Name: rate.Asset}
			table[rate.Asset] = row
		}
		row.setRate(result.Source, rate.Rate)
	}
}

func (r *MergedRow) setRate(source string, value float64) {
	v := value
	switch source {
	case SourceBFX:
		r.FundingBFX = &v
	case SourceBluefin:
		r.FundingBluefin = &v
	case SourceOrderly:
		r.FundingOrderly = &v
	case SourceHyperliquid:
		r.FundingHyperliquid = &v
	}
}

// RunTimestamp converts t to epoch seconds at microsecond resolution.
func RunTimestamp(t time.Time) float64 {
	return float64(t.UnixMicro()) / 1e6
}

// recordID always carries a fractional part, so a run on a whole second
// yields BTC_1700000000.0.
func recordID(asset string, timestamp float64) string {
	ts := strconv.FormatFloat(timestamp, 'f', -1, 64)
	if !strings.Contains(ts, ".") {
		ts += ".0"
	}
	return asset + "_" + ts
}

// BuildRecords stamps every row with the run timestamp and an id derived
// from asset and timestamp. The input rows are not modified.
func BuildRecords(rows []MergedRow, timestamp float64) []MergedRow {
	records := make([]MergedRow, len(rows))
	for i, row := range rows {
		row.ID = recordID(row.Name, timestamp)
		row.Timestamp = timestamp
		records[i] = row
	}
	return records
}
