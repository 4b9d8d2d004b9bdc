package binance

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
	"github.com/shopspring/decimal"

	"github.com/songzhibin97/seesaw/internal/models"
	"github.com/songzhibin97/seesaw/internal/trading"
)

const depthLimit = 5

// 可重试的错误码: 限流/断连/超时
var transientCodes = map[int64]struct{}{
	-1001: {}, // DISCONNECTED
	-1003: {}, // TOO_MANY_REQUESTS
	-1007: {}, // TIMEOUT
	-1015: {}, // TOO_MANY_ORDERS
}

// BinanceExecutor implements trading.TradingAPI for Binance spot
type BinanceExecutor struct {
	client    *binance.Client
	apiKey    string
	secretKey string
	mu        sync.RWMutex
}

// NewBinanceExecutor creates a new BinanceExecutor instance
func NewBinanceExecutor(apiKey, secretKey string, debug ...bool) *BinanceExecutor {
	debug = append(debug, false)
	if debug[0] {
		binance.UseTestnet = true
	}

	client := binance.NewClient(apiKey, secretKey)

	return &BinanceExecutor{
		client:    client,
		apiKey:    apiKey,
		secretKey: secretKey,
	}
}

func (b *BinanceExecutor) Name() string {
	return "binance"
}

// FetchOrderBook implements trading.TradingAPI
func (b *BinanceExecutor) FetchOrderBook(ctx context.Context, marketID string) (*models.OrderBook, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	depth, err := b.client.NewDepthService().
		Symbol(marketID).
		Limit(depthLimit).
		Do(ctx)
	if err != nil {
		return nil, classify("fetch order book", err)
	}

	book := &models.OrderBook{
		MarketID:  marketID,
		Bids:      make([]models.PriceLevel, 0, len(depth.Bids)),
		Asks:      make([]models.PriceLevel, 0, len(depth.Asks)),
		Timestamp: time.Now(),
	}
	for _, bid := range depth.Bids {
		level, err := parseLevel(bid.Price, bid.Quantity)
		if err != nil {
			return nil, &trading.APIError{Op: "fetch order book", Message: "malformed bid level", Err: err}
		}
		book.Bids = append(book.Bids, level)
	}
	for _, ask := range depth.Asks {
		level, err := parseLevel(ask.Price, ask.Quantity)
		if err != nil {
			return nil, &trading.APIError{Op: "fetch order book", Message: "malformed ask level", Err: err}
		}
		book.Asks = append(book.Asks, level)
	}

	return book, nil
}

// FetchOpenOrders implements trading.TradingAPI
func (b *BinanceExecutor) FetchOpenOrders(ctx context.Context, marketID string) ([]models.OpenOrder, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	orders, err := b.client.NewListOpenOrdersService().
		Symbol(marketID).
		Do(ctx)
	if err != nil {
		return nil, classify("fetch open orders", err)
	}

	result := make([]models.OpenOrder, 0, len(orders))
	for _, o := range orders {
		// price and quantity are informational; a malformed value must not hide the order
		price, _ := decimal.NewFromString(o.Price)
		amount, _ := decimal.NewFromString(o.OrigQuantity)
		side, _ := models.ParseOrderSide(string(o.Side))

		result = append(result, models.OpenOrder{
			ID:     strconv.FormatInt(o.OrderID, 10),
			Side:   side,
			Price:  price,
			Amount: amount,
		})
	}
	return result, nil
}

// FetchLatestTradePrice implements trading.TradingAPI
func (b *BinanceExecutor) FetchLatestTradePrice(ctx context.Context, marketID string) (decimal.Decimal, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	prices, err := b.client.NewListPricesService().
		Symbol(marketID).
		Do(ctx)
	if err != nil {
		return decimal.Zero, classify("fetch latest trade price", err)
	}

	for _, p := range prices {
		if p.Symbol != marketID {
			continue
		}
		price, err := decimal.NewFromString(p.Price)
		if err != nil {
			return decimal.Zero, &trading.APIError{Op: "fetch latest trade price", Message: "failed to parse price", Err: err}
		}
		return price, nil
	}

	return decimal.Zero, &trading.APIError{
		Op:      "fetch latest trade price",
		Message: fmt.Sprintf("price not found for symbol: %s", marketID),
	}
}

// SubmitOrder implements trading.TradingAPI with a GTC limit order
func (b *BinanceExecutor) SubmitOrder(ctx context.Context, req trading.SubmitOrderRequest) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	// Convert side to Binance format
	var side binance.SideType
	switch req.Side {
	case models.SideBuy:
		side = binance.SideTypeBuy
	case models.SideSell:
		side = binance.SideTypeSell
	default:
		return "", &trading.APIError{Op: "submit order", Message: fmt.Sprintf("invalid side: %s", req.Side)}
	}

	result, err := b.client.NewCreateOrderService().
		Symbol(req.MarketID).
		Side(side).
		Type(binance.OrderTypeLimit).
		TimeInForce(binance.TimeInForceTypeGTC).
		Quantity(req.Amount.String()).
		Price(req.Price.String()).
		Do(ctx)
	if err != nil {
		return "", classify("submit order", err)
	}

	return strconv.FormatInt(result.OrderID, 10), nil
}

// classify wraps a go-binance error: answered rejections become
// *trading.APIError, everything else (and throttling) a *trading.NetworkError.
// go-binance reports any HTTP >= 400 as *common.APIError; a body without an
// exchange code (gateway 5xx pages) leaves Code at zero and is transient.
func classify(op string, err error) error {
	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		if _, ok := transientCodes[apiErr.Code]; ok || apiErr.Code == 0 {
			return &trading.NetworkError{Op: op, Err: err}
		}
		return &trading.APIError{Op: op, Code: apiErr.Code, Message: apiErr.Message, Err: err}
	}
	return &trading.NetworkError{Op: op, Err: err}
}

func parseLevel(price, quantity string) (models.PriceLevel, error) {
	p, err := decimal.NewFromString(price)
	if err != nil {
		return models.PriceLevel{}, fmt.Errorf("failed to parse price %q: %w", price, err)
	}
	q, err := decimal.NewFromString(quantity)
	if err != nil {
		return models.PriceLevel{}, fmt.Errorf("failed to parse quantity %q: %w", quantity, err)
	}
	return models.PriceLevel{Price: p, Quantity: q}, nil
}
