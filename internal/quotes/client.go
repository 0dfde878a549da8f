package quotes

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"paper-trade-go/internal/config"
)

// statusTicker is the symbol used to probe the overall market state.
const statusTicker = "SPY"

// Client fetches quotes from a Yahoo-style finance API.
// It implements the Provider interface.
type Client struct {
	client  *resty.Client
	logger  *zap.Logger
	limiter *rate.Limiter
}

// ensure Client implements the interface
var _ Provider = (*Client)(nil)

// NewClient creates a quote API client. Calls are rate limited; there is no
// retry policy, a failed call surfaces as a request failure.
func NewClient(cfg *config.Quotes, logger *zap.Logger) *Client {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(time.Duration(cfg.TimeoutSeconds) * time.Second).
		SetHeader("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36")

	limiter := rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimitBurst)

	return &Client{
		client:  client,
		logger:  logger,
		limiter: limiter,
	}
}

// chartResponse is the shape of /v8/finance/chart/{ticker}.
type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				RegularMarketPrice float64 `json:"regularMarketPrice"`
				ChartPreviousClose float64 `json:"chartPreviousClose"`
				RegularMarketTime  int64   `json:"regularMarketTime"`
			} `json:"meta"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// quoteResponse is the shape of /v7/finance/quote.
type quoteResponse struct {
	QuoteResponse struct {
		Result []quoteResult `json:"result"`
	} `json:"quoteResponse"`
}

type quoteResult struct {
	Symbol                     string  `json:"symbol"`
	MarketState                string  `json:"marketState"`
	RegularMarketPrice         float64 `json:"regularMarketPrice"`
	RegularMarketPreviousClose float64 `json:"regularMarketPreviousClose"`
	RegularMarketOpen          float64 `json:"regularMarketOpen"`
	RegularMarketDayLow        float64 `json:"regularMarketDayLow"`
	RegularMarketDayHigh       float64 `json:"regularMarketDayHigh"`
	RegularMarketVolume        int64   `json:"regularMarketVolume"`
	AverageDailyVolume3Month   int64   `json:"averageDailyVolume3Month"`
	FiftyTwoWeekLow            float64 `json:"fiftyTwoWeekLow"`
	FiftyTwoWeekHigh           float64 `json:"fiftyTwoWeekHigh"`
	Bid                        float64 `json:"bid"`
	BidSize                    int64   `json:"bidSize"`
	Ask                        float64 `json:"ask"`
	AskSize                    int64   `json:"askSize"`
	Beta                       float64 `json:"beta"`
	TrailingPE                 float64 `json:"trailingPE"`
	EpsTrailingTwelveMonths    float64 `json:"epsTrailingTwelveMonths"`
	MarketCap                  int64   `json:"marketCap"`
	EarningsTimestamp          int64   `json:"earningsTimestamp"`
	DividendDate               int64   `json:"dividendDate"`
	TrailingAnnualDividendRate float64 `json:"trailingAnnualDividendRate"`
	TrailingAnnualDividendYld  float64 `json:"trailingAnnualDividendYield"`
	TargetMeanPrice            float64 `json:"targetMeanPrice"`
}

// doRequest executes a single request behind the rate limiter.
func (c *Client) doRequest(ctx context.Context, url string, req *resty.Request) (*resty.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait failed: %w", err)
	}

	c.logger.Debug("Executing quote request", zap.String("url", c.client.BaseURL+url))
	resp, err := req.SetContext(ctx).Get(url)
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("quote request failed with status %s: %s", resp.Status(), resp.String())
	}
	return resp, nil
}

// chart fetches the chart meta block for a ticker.
func (c *Client) chart(ctx context.Context, ticker string) (*chartResponse, error) {
	req := c.client.R().SetResult(&chartResponse{})

	resp, err := c.doRequest(ctx, "/v8/finance/chart/"+strings.ToUpper(ticker), req)
	if err != nil {
		return nil, fmt.Errorf("failed to get chart for %s: %w", ticker, err)
	}

	result := resp.Result().(*chartResponse)
	if result.Chart.Error != nil || len(result.Chart.Result) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTicker, ticker)
	}
	return result, nil
}

// quote fetches the quote summary for a ticker.
func (c *Client) quote(ctx context.Context, ticker string) (*quoteResult, error) {
	req := c.client.R().
		SetResult(&quoteResponse{}).
		SetQueryParam("symbols", strings.ToUpper(ticker))

	resp, err := c.doRequest(ctx, "/v7/finance/quote", req)
	if err != nil {
		return nil, fmt.Errorf("failed to get quote for %s: %w", ticker, err)
	}

	result := resp.Result().(*quoteResponse)
	if len(result.QuoteResponse.Result) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTicker, ticker)
	}
	return &result.QuoteResponse.Result[0], nil
}

// LivePrice returns the current market price rounded to two decimals.
func (c *Client) LivePrice(ctx context.Context, ticker string) (decimal.Decimal, error) {
	chart, err := c.chart(ctx, ticker)
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromFloat(chart.Chart.Result[0].Meta.RegularMarketPrice).Round(2), nil
}

// PreviousClose returns the prior session's closing price.
func (c *Client) PreviousClose(ctx context.Context, ticker string) (decimal.Decimal, error) {
	chart, err := c.chart(ctx, ticker)
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromFloat(chart.Chart.Result[0].Meta.ChartPreviousClose).Round(2), nil
}

// CurrentChange returns the live price minus the previous close.
func (c *Client) CurrentChange(ctx context.Context, ticker string) (decimal.Decimal, error) {
	chart, err := c.chart(ctx, ticker)
	if err != nil {
		return decimal.Zero, err
	}
	meta := chart.Chart.Result[0].Meta
	live := decimal.NewFromFloat(meta.RegularMarketPrice)
	prev := decimal.NewFromFloat(meta.ChartPreviousClose)
	return live.Sub(prev).Round(2), nil
}

// MarketStatus reports the current market trading state.
func (c *Client) MarketStatus(ctx context.Context) (Status, error) {
	q, err := c.quote(ctx, statusTicker)
	if err != nil {
		return StatusUnknown, err
	}
	switch {
	case q.MarketState == "REGULAR":
		return StatusOpen, nil
	case strings.HasPrefix(q.MarketState, "PRE"):
		return StatusPreMarket, nil
	case strings.HasPrefix(q.MarketState, "POST"):
		return StatusPostMarket, nil
	case q.MarketState == "CLOSED":
		return StatusClosed, nil
	}
	return StatusUnknown, nil
}

// QuoteTable builds the ordered quote summary rows for a ticker. The order
// is fixed: rows 0-8 land in the first rendered column, the rest in the
// second.
func (c *Client) QuoteTable(ctx context.Context, ticker string) ([]Field, error) {
	q, err := c.quote(ctx, ticker)
	if err != nil {
		return nil, err
	}

	return []Field{
		{"1y Target Est", money(q.TargetMeanPrice)},
		{"52 Week Range", money(q.FiftyTwoWeekLow) + " - " + money(q.FiftyTwoWeekHigh)},
		{"Ask", money(q.Ask) + " x " + strconv.FormatInt(q.AskSize, 10)},
		{"Avg. Volume", strconv.FormatInt(q.AverageDailyVolume3Month, 10)},
		{"Beta (5Y Monthly)", money(q.Beta)},
		{"Bid", money(q.Bid) + " x " + strconv.FormatInt(q.BidSize, 10)},
		{"Day's Range", money(q.RegularMarketDayLow) + " - " + money(q.RegularMarketDayHigh)},
		{"EPS (TTM)", money(q.EpsTrailingTwelveMonths)},
		{"Earnings Date", date(q.EarningsTimestamp)},
		{"Ex-Dividend Date", date(q.DividendDate)},
		{"Forward Dividend & Yield", money(q.TrailingAnnualDividendRate) + " (" + percent(q.TrailingAnnualDividendYld) + ")"},
		{"Market Cap", strconv.FormatInt(q.MarketCap, 10)},
		{"Open", money(q.RegularMarketOpen)},
		{"PE Ratio (TTM)", money(q.TrailingPE)},
		{"Previous Close", money(q.RegularMarketPreviousClose)},
		{"Quote Price", money(q.RegularMarketPrice)},
		{"Volume", strconv.FormatInt(q.RegularMarketVolume, 10)},
	}, nil
}

func money(v float64) string {
	return decimal.NewFromFloat(v).Round(2).StringFixed(2)
}

func percent(v float64) string {
	return decimal.NewFromFloat(v * 100).Round(2).StringFixed(2) + "%"
}

func date(unix int64) string {
	if unix == 0 {
		return "N/A"
	}
	return time.Unix(unix, 0).UTC().Format("Jan 02, 2006")
}
