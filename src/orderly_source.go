package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type OrderlySource struct {
	client *http.Client
	log    *logrus.Entry
	APIURL string
}

type OrderlyResponse struct {
	Success bool `json:"success"`
	Data    struct {
		Rows []struct {
			Symbol          string          `json:"symbol"`
			LastFundingRate decimal.Decimal `json:"last_funding_rate"`
		} `json:"rows"`
	} `json:"data"`
}

func NewOrderlySource(cfg EndpointConfig, timeout time.Duration, log logrus.FieldLogger) *OrderlySource {
	return &OrderlySource{
		client: &http.Client{Timeout: timeout},
		log:    withComponent(log, "orderly_source"),
		APIURL: cfg.URL,
	}
}

func (s *OrderlySource) Name() string {
	return SourceOrderly
}

// FetchRates returns every market Orderly lists; the normalizer keeps the
// tracked ones.
func (s *OrderlySource) FetchRates(ctx context.Context) ([]RawRate, error) {
	req, err := http.NewRequest(http.MethodGet, s.APIURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	var response OrderlyResponse
	if err := doJSON(ctx, s.client, req, &response); err != nil {
		return nil, err
	}
	if !response.Success {
		return nil, fmt.Errorf("API returned unsuccessful response")
	}

	rates := make([]RawRate, 0, len(response.Data.Rows))
	for _, row := range response.Data.Rows {
		rates = append(rates, RawRate{
			Source: SourceOrderly,
			Symbol: row.Symbol,
			Value:  row.LastFundingRate,
		})
	}
	s.log.WithField("rows", len(rates)).Debug("orderly funding rates fetched")
	return rates, nil
}
