package yahoo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"StockForecaster/internal/domain/models"
	drepo "StockForecaster/internal/domain/repository"
	pkghttp "StockForecaster/pkg/http"
	"StockForecaster/pkg/util"
)

// ErrNoData means the provider returned no bars for the ticker and range.
var ErrNoData = errors.New("yahoo: no data returned")

// APIError is the error object embedded in a chart response.
type APIError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("yahoo api error %s: %s", e.Code, e.Description)
}

// Client implements MarketData over the Yahoo Finance chart API.
type Client struct {
	http      *pkghttp.Client
	baseURL   string
	userAgent string
}

var _ drepo.MarketData = (*Client)(nil)

// New creates a Yahoo chart client.
func New(baseURL, userAgent string, opts ...pkghttp.ClientOption) *Client {
	if userAgent == "" {
		userAgent = "Mozilla/5.0"
	}
	return &Client{
		http:      pkghttp.NewClient(opts...),
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: userAgent,
	}
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol    string `json:"symbol"`
				GMTOffset int64  `json:"gmtoffset"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
				AdjClose []struct {
					AdjClose []*float64 `json:"adjclose"`
				} `json:"adjclose"`
			} `json:"indicators"`
		} `json:"result"`
		Error *APIError `json:"error"`
	} `json:"chart"`
}

// FetchDaily returns daily bars for ticker in [start, end), ascending by date.
func (c *Client) FetchDaily(ctx context.Context, ticker string, start, end time.Time) ([]models.PriceBar, error) {
	var resp chartResponse
	err := c.http.SendAndParse(ctx, &pkghttp.RequestOptions{
		Method: pkghttp.MethodGet,
		URL:    fmt.Sprintf("%s/v8/finance/chart/%s", c.baseURL, url.PathEscape(ticker)),
		QueryParams: map[string][]string{
			"interval": {"1d"},
			"period1":  {strconv.FormatInt(start.Unix(), 10)},
			"period2":  {strconv.FormatInt(end.Unix(), 10)},
			"events":   {"history"},
		},
		Headers: map[string]string{"User-Agent": c.userAgent, "Accept": "application/json"},
	}, &resp)
	if err != nil {
		var se *pkghttp.StatusError
		if errors.As(err, &se) {
			// A 404 carries a chart error object for unknown or delisted tickers.
			if se.StatusCode == http.StatusNotFound {
				return nil, fmt.Errorf("%w: %s", ErrNoData, ticker)
			}
			if apiErr := parseAPIError(se.Body); apiErr != nil {
				return nil, apiErr
			}
		}
		return nil, fmt.Errorf("yahoo fetch %s: %w", ticker, err)
	}
	if resp.Chart.Error != nil {
		return nil, resp.Chart.Error
	}
	bars := decodeBars(&resp)
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoData, ticker)
	}
	return bars, nil
}

func decodeBars(resp *chartResponse) []models.PriceBar {
	if len(resp.Chart.Result) == 0 {
		return nil
	}
	result := resp.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 {
		return nil
	}
	quote := result.Indicators.Quote[0]
	var adj []*float64
	if len(result.Indicators.AdjClose) > 0 {
		adj = result.Indicators.AdjClose[0].AdjClose
	}

	byDate := make(map[time.Time]models.PriceBar, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		o, h, l, cl := at(quote.Open, i), at(quote.High, i), at(quote.Low, i), at(quote.Close, i)
		if o == nil || h == nil || l == nil || cl == nil {
			// holidays, halted sessions and partially reported bars
			continue
		}
		bar := models.PriceBar{
			// Exchange-local trading date.
			Date:  util.Day(time.Unix(ts+result.Meta.GMTOffset, 0)),
			Open:  *o,
			High:  *h,
			Low:   *l,
			Close: *cl,
		}
		if v := at(quote.Volume, i); v != nil {
			bar.Volume = int64(*v)
		}
		if a := at(adj, i); a != nil {
			bar.AdjClose = *a
		} else {
			bar.AdjClose = bar.Close
		}
		// a live session can repeat the last date; keep the latest
		byDate[bar.Date] = bar
	}

	bars := make([]models.PriceBar, 0, len(byDate))
	for _, b := range byDate {
		bars = append(bars, b)
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })
	return bars
}

func parseAPIError(body string) *APIError {
	var resp chartResponse
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		return nil
	}
	return resp.Chart.Error
}

func at(vs []*float64, i int) *float64 {
	if i < len(vs) {
		return vs[i]
	}
	return nil
}
