package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type BluefinSource struct {
	client  *http.Client
	log     *logrus.Entry
	APIURL  string
	Symbols []string
}

type BluefinResponse struct {
	Symbol      string          `json:"symbol"`
	FundingRate decimal.Decimal `json:"fundingRate"`
}

func NewBluefinSource(cfg BluefinConfig, timeout time.Duration, log logrus.FieldLogger) *BluefinSource {
	return &BluefinSource{
		client:  &http.Client{Timeout: timeout},
		log:     withComponent(log, "bluefin_source"),
		APIURL:  cfg.URL,
		Symbols: cfg.Symbols,
	}
}

func (s *BluefinSource) Name() string {
	return SourceBluefin
}

func (s *BluefinSource) FetchRates(ctx context.Context) ([]RawRate, error) {
	var (
		rates []RawRate
		errs  []error
	)
	for _, symbol := range s.Symbols {
		r, err := s.fetchSymbol(ctx, symbol)
		if err != nil {
			s.log.WithField("symbol", symbol).WithError(err).Warn("bluefin symbol request failed")
			errs = append(errs, fmt.Errorf("symbol %s: %w", symbol, err))
			continue
		}
		rates = append(rates, r)
	}

	if len(rates) == 0 && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return rates, nil
}

func (s *BluefinSource) fetchSymbol(ctx context.Context, symbol string) (RawRate, error) {
	endpoint, err := url.Parse(s.APIURL)
	if err != nil {
		return RawRate{}, fmt.Errorf("parsing url: %w", err)
	}
	q := endpoint.Query()
	q.Set("symbol", symbol)
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequest(http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return RawRate{}, fmt.Errorf("creating request: %w", err)
	}

	var response BluefinResponse
	if err := doJSON(ctx, s.client, req, &response); err != nil {
		return RawRate{}, err
	}
	if response.Symbol == "" {
		return RawRate{}, fmt.Errorf("response has no symbol")
	}

	return RawRate{
		Source: SourceBluefin,
		Symbol: response.Symbol,
		Value:  response.FundingRate,
	}, nil
}
