package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type HyperliquidSource struct {
	client *http.Client
	log    *logrus.Entry
	APIURL string
}

type hyperliquidMeta struct {
	Universe []struct {
		Name string `json:"name"`
	} `json:"universe"`
}

type hyperliquidAssetCtx struct {
	Funding decimal.Decimal `json:"funding"`
}

func NewHyperliquidSource(cfg EndpointConfig, timeout time.Duration, log logrus.FieldLogger) *HyperliquidSource {
	return &HyperliquidSource{
		client: &http.Client{Timeout: timeout},
		log:    withComponent(log, "hyperliquid_source"),
		APIURL: cfg.URL,
	}
}

func (s *HyperliquidSource) Name() string {
	return SourceHyperliquid
}

// FetchRates asks for metaAndAssetCtxs, which answers with the asset list and
// the per-asset contexts as two arrays joined by position.
func (s *HyperliquidSource) FetchRates(ctx context.Context) ([]RawRate, error) {
	req, err := http.NewRequest(http.MethodPost, s.APIURL, strings.NewReader(`{"type":"metaAndAssetCtxs"}`))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var response []json.RawMessage
	if err := doJSON(ctx, s.client, req, &response); err != nil {
		return nil, err
	}
	if len(response) < 2 {
		return nil, fmt.Errorf("expected meta and asset contexts, got %d elements", len(response))
	}

	var meta hyperliquidMeta
	if err := json.Unmarshal(response[0], &meta); err != nil {
		return nil, fmt.Errorf("unmarshaling meta: %w", err)
	}
	var assetCtxs []hyperliquidAssetCtx
	if err := json.Unmarshal(response[1], &assetCtxs); err != nil {
		return nil, fmt.Errorf("unmarshaling asset contexts: %w", err)
	}

	if len(meta.Universe) != len(assetCtxs) {
		s.log.WithFields(logrus.Fields{
			"universe": len(meta.Universe),
			"contexts": len(assetCtxs),
		}).Warn("hyperliquid meta and contexts differ in length")
	}

	var rates []RawRate
	for i, asset := range meta.Universe {
		if i >= len(assetCtxs) {
			break
		}
		rates = append(rates, RawRate{
			Source: SourceHyperliquid,
			Symbol: asset.Name,
			Value:  assetCtxs[i].Funding,
		})
	}
	return rates, nil
}
