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
	"golang.org/x/time/rate"
)

type BFXSource struct {
	client  *http.Client
	limiter *rate.Limiter
	log     *logrus.Entry
	APIURL  string
	Markets []string
}

type BFXResponse struct {
	Result []struct {
		MarketID    string          `json:"market_id"`
		FundingRate decimal.Decimal `json:"funding_rate"`
	} `json:"result"`
}

// NewBFXSource returns a source that queries one market per request, waiting
// delay between consecutive requests.
func NewBFXSource(cfg BFXConfig, timeout time.Duration, log logrus.FieldLogger) *BFXSource {
	limit := rate.Inf
	if cfg.Delay > 0 {
		limit = rate.Every(cfg.Delay)
	}
	return &BFXSource{
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(limit, 1),
		log:     withComponent(log, "bfx_source"),
		APIURL:  cfg.URL,
		Markets: cfg.Markets,
	}
}

func (s *BFXSource) Name() string {
	return SourceBFX
}

func (s *BFXSource) FetchRates(ctx context.Context) ([]RawRate, error) {
	var (
		rates []RawRate
		errs  []error
	)
	for _, market := range s.Markets {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		r, err := s.fetchMarket(ctx, market)
		if err != nil {
			s.log.WithField("market", market).WithError(err).Warn("bfx market request failed")
			errs = append(errs, fmt.Errorf("market %s: %w", market, err))
			continue
		}
		if r == nil {
			s.log.WithField("market", market).Debug("bfx returned no funding rate")
			continue
		}
		rates = append(rates, *r)
	}

	if len(rates) == 0 && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return rates, nil
}

func (s *BFXSource) fetchMarket(ctx context.Context, market string) (*RawRate, error) {
	endpoint, err := url.Parse(s.APIURL)
	if err != nil {
		return nil, fmt.Errorf("parsing url: %w", err)
	}
	q := endpoint.Query()
	q.Set("market_id", market)
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequest(http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	var response BFXResponse
	if err := doJSON(ctx, s.client, req, &response); err != nil {
		return nil, err
	}

	if len(response.Result) == 0 {
		return nil, nil
	}

	first := response.Result[0]
	symbol := first.MarketID
	if symbol == "" {
		symbol = market
	}
	return &RawRate{
		Source: SourceBFX,
		Symbol: symbol,
		Value:  first.FundingRate,
	}, nil
}
