package data

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/songzhibin97/seesaw/internal/models"
)

// ErrOrderExists is returned by OrderStore.SaveOrder for an already stored order ID.
var ErrOrderExists = errors.New("order already stored")

// MarketDataSource 公开行情数据源
type MarketDataSource interface {
	// Name identifies the source in logs
	Name() string

	// FetchOrderBook retrieves the order book of a market
	FetchOrderBook(ctx context.Context, marketID string) (*models.OrderBook, error)

	// FetchLatestTradePrice retrieves the last traded price of a market
	FetchLatestTradePrice(ctx context.Context, marketID string) (decimal.Decimal, error)
}

// OrderStore 订单历史的持久化, 只追加
type OrderStore interface {
	// SaveOrder stores an order once; a second save of the same ID returns ErrOrderExists
	SaveOrder(ctx context.Context, order models.OrderRecord) error

	// ListOrders returns the orders of a market in the order they were saved
	ListOrders(ctx context.Context, marketID string) ([]models.OrderRecord, error)

	// ListMarkets returns every market with at least one stored order
	ListMarkets(ctx context.Context) ([]string, error)

	// Close releases the underlying connection
	Close() error
}
