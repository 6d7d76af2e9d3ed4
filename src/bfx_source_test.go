package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const defaultTestTimeout = 5 * time.Second

func testLogger() *logrus.Logger {
	log, _ := test.NewNullLogger()
	return log
}

func TestBFXSource_FetchRates(t *testing.T) {
	tests := []struct {
		name          string
		responses     map[string]string
		statuses      map[string]int
		expectedRates map[string]string // market -> raw rate
		expectError   bool
	}{
		{
			name: "successful response",
			responses: map[string]string{
				"BTC-USD": `{"result":[{"market_id":"BTC-USD","funding_rate":"0.0001"},{"market_id":"BTC-USD","funding_rate":"0.5"}]}`,
				"ETH-USD": `{"result":[{"market_id":"ETH-USD","funding_rate":0.00002}]}`,
			},
			expectedRates: map[string]string{
				"BTC-USD": "0.0001",
				"ETH-USD": "0.00002",
			},
		},
		{
			name: "empty result is skipped",
			responses: map[string]string{
				"BTC-USD": `{"result":[]}`,
				"ETH-USD": `{"result":[{"market_id":"ETH-USD","funding_rate":"0.0003"}]}`,
			},
			expectedRates: map[string]string{
				"ETH-USD": "0.0003",
			},
		},
		{
			name: "market id from the response labels the rate",
			responses: map[string]string{
				"BTC-USD": `{"result":[{"market_id":"SOL-USD","funding_rate":"0.0004"}]}`,
				"ETH-USD": `{"result":[{"funding_rate":"0.0005"}]}`,
			},
			expectedRates: map[string]string{
				"SOL-USD": "0.0004",
				"ETH-USD": "0.0005",
			},
		},
		{
			name: "one market failing keeps the others",
			responses: map[string]string{
				"BTC-USD": `{"error":"busy"}`,
				"ETH-USD": `{"result":[{"market_id":"ETH-USD","funding_rate":"0.0003"}]}`,
			},
			statuses: map[string]int{"BTC-USD": http.StatusTooManyRequests},
			expectedRates: map[string]string{
				"ETH-USD": "0.0003",
			},
		},
		{
			name: "every market failing",
			responses: map[string]string{
				"BTC-USD": `invalid json`,
				"ETH-USD": `invalid json`,
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var (
				mu        sync.Mutex
				requested []string
			)
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				market := r.URL.Query().Get("market_id")
				mu.Lock()
				requested = append(requested, market)
				mu.Unlock()
				if status, ok := tt.statuses[market]; ok {
					w.WriteHeader(status)
				}
				_, err := w.Write([]byte(tt.responses[market]))
				if err != nil {
					t.Errorf("Failed to write test response: %v", err)
				}
			}))
			defer server.Close()

			source := NewBFXSource(BFXConfig{
				URL:     server.URL,
				Markets: []string{"BTC-USD", "ETH-USD"},
			}, defaultTestTimeout, testLogger())

			rates, err := source.FetchRates(context.Background())
			mu.Lock()
			assert.Equal(t, []string{"BTC-USD", "ETH-USD"}, requested)
			mu.Unlock()

			if tt.expectError {
				require.Error(t, err)
				assert.Empty(t, rates)
				return
			}
			require.NoError(t, err)
			require.Len(t, rates, len(tt.expectedRates))
			for _, r := range rates {
				assert.Equal(t, SourceBFX, r.Source)
				want, ok := tt.expectedRates[r.Symbol]
				require.True(t, ok, "unexpected market %s", r.Symbol)
				assert.Equal(t, want, r.Value.String())
			}
		})
	}
}

func TestBFXSource_CanceledContext(t *testing.T) {
	source := NewBFXSource(BFXConfig{
		URL:     "http://127.0.0.1:0",
		Markets: []string{"BTC-USD"},
	}, defaultTestTimeout, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := source.FetchRates(ctx)
	assert.Error(t, err)
}
