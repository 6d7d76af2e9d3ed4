package main

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	bluefinScale = decimal.New(1, 18)
	// Orderly's last_funding_rate is divided by 8 before storing. The factor
	// has been applied since the first version of the collector and has not
	// been checked against Orderly's API docs.
	orderlyDivisor = decimal.NewFromInt(8)
)

const bfxRatePlaces = 8

// Normalizer maps exchange symbols onto the tracked asset set and converts
// each exchange's rate representation into a per-8-hour decimal rate.
type Normalizer struct {
	assets map[string]struct{}
}

func NewNormalizer(assets []string) *Normalizer {
	set := make(map[string]struct{}, len(assets))
	for _, a := range assets {
		set[strings.ToUpper(strings.TrimSpace(a))] = struct{}{}
	}
	return &Normalizer{assets: set}
}

// Asset returns the tracked asset for an exchange symbol and whether the
// symbol maps onto one.
func (n *Normalizer) Asset(source, symbol string) (string, bool) {
	var asset string
	switch source {
	case SourceBFX:
		asset = strings.TrimSuffix(symbol, "-USD")
	case SourceBluefin:
		asset, _, _ = strings.Cut(symbol, "-")
	case SourceOrderly:
		start := strings.Index(symbol, "PERP_")
		end := strings.Index(symbol, "_USDC")
		if start < 0 || end < 0 || end < start+len("PERP_") {
			return "", false
		}
		asset = symbol[start+len("PERP_") : end]
	case SourceHyperliquid:
		asset = symbol
	default:
		return "", false
	}

	if _, ok := n.assets[asset]; !ok {
		return "", false
	}
	return asset, true
}

// Value converts a raw exchange rate to the common per-8-hour unit.
func (n *Normalizer) Value(source string, raw decimal.Decimal) (decimal.Decimal, error) {
	switch source {
	case SourceBFX:
		return raw.Round(bfxRatePlaces), nil
	case SourceBluefin:
		return raw.Div(bluefinScale), nil
	case SourceOrderly:
		return raw.Div(orderlyDivisor), nil
	case SourceHyperliquid:
		return raw, nil
	default:
		return decimal.Zero, fmt.Errorf("unknown source %q", source)
	}
}

// Normalize converts one source's raw rates, dropping symbols outside the
// tracked set.
func (n *Normalizer) Normalize(raw []RawRate) []Rate {
	rates := make([]Rate, 0, len(raw))
	for _, r := range raw {
		asset, ok := n.Asset(r.Source, r.Symbol)
		if !ok {
			continue
		}
		value, err := n.Value(r.Source, r.Value)
		if err != nil {
			continue
		}
		rates = append(rates, Rate{
			Asset:  asset,
			Source: r.Source,
			Rate:   value.InexactFloat64(),
		})
	}
	return rates
}
