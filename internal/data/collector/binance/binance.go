package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/songzhibin97/seesaw/internal/models"
	"github.com/songzhibin97/seesaw/internal/trading"
	"github.com/songzhibin97/seesaw/internal/utils/request"
)

const (
	defaultBaseURL = "https://api.binance.com"
	depthLimit     = 5
	// Binance allows 6000 request weight per minute; depth(5) and ticker cost 2 each.
	requestsPerSecond = 20
	requestBurst      = 10
)

// BinanceDataSource reads public market data from the Binance REST API.
type BinanceDataSource struct {
	baseURL    string
	httpClient *resty.Client
	limiter    *rate.Limiter
}

func NewBinanceDataSource(timeout time.Duration, retries int) *BinanceDataSource {
	return &BinanceDataSource{
		baseURL:    defaultBaseURL,
		httpClient: request.New(timeout, retries),
		limiter:    rate.NewLimiter(requestsPerSecond, requestBurst),
	}
}

// WithBaseURL points the source at another endpoint, eg the spot testnet.
func (b *BinanceDataSource) WithBaseURL(url string) *BinanceDataSource {
	if url != "" {
		b.baseURL = url
	}
	return b
}

func (b *BinanceDataSource) Name() string {
	return "binance"
}

type apiErrorBody struct {
	Code int64  `json:"code"`
	Msg  string `json:"msg"`
}

// get runs a rate limited GET and decodes a 200 response into out.
func (b *BinanceDataSource) get(ctx context.Context, op, path string, params map[string]string, out any) error {
	if err := b.limiter.Wait(ctx); err != nil {
		return &trading.NetworkError{Op: op, Err: err}
	}

	resp, err := b.httpClient.R().
		SetContext(ctx).
		SetQueryParams(params).
		Get(b.baseURL + path)
	if err != nil {
		return &trading.NetworkError{Op: op, Err: fmt.Errorf("failed to execute request: %w", err)}
	}

	status := resp.StatusCode()
	switch {
	case status == http.StatusTooManyRequests || status == 418 || status >= http.StatusInternalServerError:
		return &trading.NetworkError{Op: op, Err: fmt.Errorf("unexpected status code: %d", status)}
	case status != http.StatusOK:
		var body apiErrorBody
		_ = json.Unmarshal(resp.Body(), &body)
		if body.Msg == "" {
			body.Msg = fmt.Sprintf("unexpected status code: %d", status)
		}
		return &trading.APIError{Op: op, Code: body.Code, Message: body.Msg}
	}

	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return &trading.APIError{Op: op, Message: "failed to decode response", Err: err}
	}
	return nil
}

func (b *BinanceDataSource) FetchOrderBook(ctx context.Context, marketID string) (*models.OrderBook, error) {
	var depth struct {
		LastUpdateID int64       `json:"lastUpdateId"`
		Bids         [][2]string `json:"bids"`
		Asks         [][2]string `json:"asks"`
	}

	err := b.get(ctx, "fetch order book", "/api/v3/depth", map[string]string{
		"symbol": marketID,
		"limit":  fmt.Sprint(depthLimit),
	}, &depth)
	if err != nil {
		return nil, err
	}

	bids, err := parseLevels(depth.Bids)
	if err != nil {
		return nil, &trading.APIError{Op: "fetch order book", Message: "malformed bid level", Err: err}
	}
	asks, err := parseLevels(depth.Asks)
	if err != nil {
		return nil, &trading.APIError{Op: "fetch order book", Message: "malformed ask level", Err: err}
	}

	return &models.OrderBook{
		MarketID:  marketID,
		Bids:      bids,
		Asks:      asks,
		Timestamp: time.Now(),
	}, nil
}

func (b *BinanceDataSource) FetchLatestTradePrice(ctx context.Context, marketID string) (decimal.Decimal, error) {
	var ticker struct {
		Symbol string `json:"symbol"`
		Price  string `json:"price"`
	}

	err := b.get(ctx, "fetch latest trade price", "/api/v3/ticker/price", map[string]string{
		"symbol": marketID,
	}, &ticker)
	if err != nil {
		return decimal.Zero, err
	}

	price, err := decimal.NewFromString(ticker.Price)
	if err != nil {
		return decimal.Zero, &trading.APIError{Op: "fetch latest trade price", Message: "failed to parse price", Err: err}
	}
	return price, nil
}

func parseLevels(raw [][2]string) ([]models.PriceLevel, error) {
	levels := make([]models.PriceLevel, 0, len(raw))
	for _, l := range raw {
		price, err := decimal.NewFromString(l[0])
		if err != nil {
			return nil, fmt.Errorf("failed to parse price %q: %w", l[0], err)
		}
		qty, err := decimal.NewFromString(l[1])
		if err != nil {
			return nil, fmt.Errorf("failed to parse quantity %q: %w", l[1], err)
		}
		levels = append(levels, models.PriceLevel{Price: price, Quantity: qty})
	}
	return levels, nil
}
