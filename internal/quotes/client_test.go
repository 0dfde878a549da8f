package quotes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"paper-trade-go/internal/config"
)

const chartBody = `{
  "chart": {
    "result": [
      {"meta": {"regularMarketPrice": 42.567, "chartPreviousClose": 40.10, "regularMarketTime": 1700000000}}
    ],
    "error": null
  }
}`

const chartErrorBody = `{
  "chart": {
    "result": null,
    "error": {"code": "Not Found", "description": "No data found, symbol may be delisted"}
  }
}`

const quoteBody = `{
  "quoteResponse": {
    "result": [
      {
        "symbol": "UBER",
        "marketState": "REGULAR",
        "regularMarketPrice": 42.57,
        "regularMarketPreviousClose": 40.10,
        "regularMarketOpen": 40.50,
        "regularMarketDayLow": 40.25,
        "regularMarketDayHigh": 43.00,
        "regularMarketVolume": 1234567,
        "averageDailyVolume3Month": 9876543,
        "fiftyTwoWeekLow": 28.31,
        "fiftyTwoWeekHigh": 47.08,
        "bid": 42.55,
        "bidSize": 900,
        "ask": 42.60,
        "askSize": 1100,
        "beta": 1.24,
        "trailingPE": 31.05,
        "epsTrailingTwelveMonths": 1.37,
        "marketCap": 88000000000,
        "earningsTimestamp": 1699290000,
        "dividendDate": 0,
        "trailingAnnualDividendRate": 0,
        "trailingAnnualDividendYield": 0,
        "targetMeanPrice": 55.50
      }
    ]
  }
}`

// setupTestClient creates a Client pointed at a mock quote API.
func setupTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := &config.Quotes{
		BaseURL:        server.URL,
		RateLimit:      1000, // effectively unlimited in tests
		RateLimitBurst: 100,
		TimeoutSeconds: 5,
	}
	return NewClient(cfg, zap.NewNop())
}

func chartAndQuoteHandler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasPrefix(r.URL.Path, "/v8/finance/chart/"):
			assert.Equal(t, "/v8/finance/chart/UBER", r.URL.Path)
			_, _ = w.Write([]byte(chartBody))
		case r.URL.Path == "/v7/finance/quote":
			_, _ = w.Write([]byte(quoteBody))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
}

func TestLivePrice(t *testing.T) {
	c := setupTestClient(t, chartAndQuoteHandler(t))

	price, err := c.LivePrice(context.Background(), "uber")
	require.NoError(t, err)
	// Rounded to cents from 42.567.
	assert.Equal(t, "42.57", price.StringFixed(2))
}

func TestPreviousCloseAndChange(t *testing.T) {
	c := setupTestClient(t, chartAndQuoteHandler(t))

	prev, err := c.PreviousClose(context.Background(), "uber")
	require.NoError(t, err)
	assert.Equal(t, "40.10", prev.StringFixed(2))

	change, err := c.CurrentChange(context.Background(), "uber")
	require.NoError(t, err)
	assert.Equal(t, "2.47", change.StringFixed(2))
}

func TestLivePriceUnknownTicker(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(chartErrorBody))
	})
	c := setupTestClient(t, handler)

	_, err := c.LivePrice(context.Background(), "nosuch")
	assert.ErrorIs(t, err, ErrUnknownTicker)
}

func TestLivePriceServerError(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	c := setupTestClient(t, handler)

	_, err := c.LivePrice(context.Background(), "uber")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnknownTicker)
}

func TestMarketStatus(t *testing.T) {
	testCases := []struct {
		state    string
		expected Status
	}{
		{"REGULAR", StatusOpen},
		{"CLOSED", StatusClosed},
		{"PRE", StatusPreMarket},
		{"PREPRE", StatusPreMarket},
		{"POST", StatusPostMarket},
		{"POSTPOST", StatusPostMarket},
		{"HOLIDAY", StatusUnknown},
	}

	for _, tc := range testCases {
		t.Run(tc.state, func(t *testing.T) {
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				body := strings.Replace(quoteBody, `"REGULAR"`, `"`+tc.state+`"`, 1)
				_, _ = w.Write([]byte(body))
			})
			c := setupTestClient(t, handler)

			status, err := c.MarketStatus(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tc.expected, status)
		})
	}
}

func TestQuoteTable(t *testing.T) {
	c := setupTestClient(t, chartAndQuoteHandler(t))

	table, err := c.QuoteTable(context.Background(), "uber")
	require.NoError(t, err)
	require.Len(t, table, 17)

	// Row order is part of the contract: the page splits after index 8.
	assert.Equal(t, "1y Target Est", table[0].Label)
	assert.Equal(t, "55.50", table[0].Value)
	assert.Equal(t, "Earnings Date", table[8].Label)
	assert.Equal(t, "Volume", table[16].Label)
	assert.Equal(t, "1234567", table[16].Value)

	assert.Equal(t, "28.31 - 47.08", table[1].Value)  // 52 Week Range
	assert.Equal(t, "42.60 x 1100", table[2].Value)   // Ask
	assert.Equal(t, "42.55 x 900", table[5].Value)    // Bid
	assert.Equal(t, "40.25 - 43.00", table[6].Value)  // Day's Range
	assert.Equal(t, "N/A", table[9].Value)            // no ex-dividend date
	assert.Equal(t, "40.10", table[14].Value)         // Previous Close
	assert.Equal(t, "42.57", table[15].Value)         // Quote Price
}

func TestQuoteTableUnknownTicker(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"quoteResponse": {"result": []}}`))
	})
	c := setupTestClient(t, handler)

	_, err := c.QuoteTable(context.Background(), "nosuch")
	assert.ErrorIs(t, err, ErrUnknownTicker)
}
