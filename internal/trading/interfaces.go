package trading

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/songzhibin97/seesaw/internal/models"
)

// TradingAPI is the exchange capability consumed by the strategy.
// Every call is blocking and returns *NetworkError or *APIError on failure.
type TradingAPI interface {
	// Name identifies the exchange in logs
	Name() string

	// FetchOrderBook returns the current order book for the market
	FetchOrderBook(ctx context.Context, marketID string) (*models.OrderBook, error)

	// FetchOpenOrders returns the caller's orders that are still open on the market
	FetchOpenOrders(ctx context.Context, marketID string) ([]models.OpenOrder, error)

	// FetchLatestTradePrice returns the price of the last trade on the market
	FetchLatestTradePrice(ctx context.Context, marketID string) (decimal.Decimal, error)

	// SubmitOrder places a limit order and returns the exchange-assigned order ID
	SubmitOrder(ctx context.Context, req SubmitOrderRequest) (string, error)
}

// SubmitOrderRequest 下单请求
type SubmitOrderRequest struct {
	MarketID string
	Side     models.OrderSide
	Amount   decimal.Decimal // 基础货币数量
	Price    decimal.Decimal // 限价
}
