package main

import (
	"context"

	"github.com/shopspring/decimal"
)

const (
	SourceBFX         = "bfx"
	SourceBluefin     = "bluefin"
	SourceOrderly     = "orderly"
	SourceHyperliquid = "hyperliquid"
)

// RawRate is a funding rate as the exchange reports it, before symbol and
// period normalization.
type RawRate struct {
	Source string
	Symbol string
	Value  decimal.Decimal
}

// Rate is a funding rate for one tracked asset, expressed per 8 hours.
type Rate struct {
	Asset  string  `json:"asset"`
	Source string  `json:"source"`
	Rate   float64 `json:"rate"`
}

// FetchResult is the outcome of polling one source. Err is set when the
// source failed; Rates is then empty.
type FetchResult struct {
	Source string
	Rates  []Rate
	Err    error
}

func (r FetchResult) OK() bool {
	return r.Err == nil
}

// MergedRow holds one asset's rate from every source for a single run.
// A nil rate means the source did not report the asset.
type MergedRow struct {
	Name               string   `json:"name"`
	FundingBFX         *float64 `json:"funding_bfx"`
	FundingBluefin     *float64 `json:"funding_bluefin"`
	FundingOrderly     *float64 `json:"funding_orderly"`
	FundingHyperliquid *float64 `json:"funding_hyperliquid"`
	ID                 string   `json:"id"`
	Timestamp          float64  `json:"timestamp"`
}

// RateSource polls a single exchange.
type RateSource interface {
	Name() string
	FetchRates(ctx context.Context) ([]RawRate, error)
}
