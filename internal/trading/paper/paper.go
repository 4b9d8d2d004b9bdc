package paper

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/songzhibin97/seesaw/internal/data"
	"github.com/songzhibin97/seesaw/internal/models"
	"github.com/songzhibin97/seesaw/internal/trading"
)

// Exchange is a simulated trading.TradingAPI. Market data comes from a real
// source; submitted orders rest in memory and fill once the book crosses
// their price: a BUY when the best ask drops to it, a SELL when the best bid
// rises to it. Fills are evaluated whenever open orders are listed.
type Exchange struct {
	source data.MarketDataSource
	logger *slog.Logger

	mu     sync.Mutex
	open   map[string][]models.OpenOrder // marketID -> 挂单
	filled int
}

func NewExchange(source data.MarketDataSource, logger *slog.Logger) *Exchange {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exchange{
		source: source,
		logger: logger,
		open:   make(map[string][]models.OpenOrder),
	}
}

func (e *Exchange) Name() string {
	return "paper(" + e.source.Name() + ")"
}

// FetchOrderBook implements trading.TradingAPI
func (e *Exchange) FetchOrderBook(ctx context.Context, marketID string) (*models.OrderBook, error) {
	return e.source.FetchOrderBook(ctx, marketID)
}

// FetchLatestTradePrice implements trading.TradingAPI
func (e *Exchange) FetchLatestTradePrice(ctx context.Context, marketID string) (decimal.Decimal, error) {
	return e.source.FetchLatestTradePrice(ctx, marketID)
}

// FetchOpenOrders implements trading.TradingAPI. Resting orders crossed by the
// current book are filled and removed before the remainder is returned.
func (e *Exchange) FetchOpenOrders(ctx context.Context, marketID string) ([]models.OpenOrder, error) {
	e.mu.Lock()
	pending := len(e.open[marketID])
	e.mu.Unlock()

	if pending == 0 {
		return []models.OpenOrder{}, nil
	}

	book, err := e.source.FetchOrderBook(ctx, marketID)
	if err != nil {
		return nil, err
	}
	snap, ok := book.Snapshot()

	e.mu.Lock()
	defer e.mu.Unlock()

	remaining := make([]models.OpenOrder, 0, len(e.open[marketID]))
	for _, o := range e.open[marketID] {
		if ok && crosses(o, snap) {
			e.filled++
			e.logger.Info("paper order filled",
				"market", marketID,
				"order_id", o.ID,
				"side", o.Side,
				"price", o.Price.String(),
				"amount", o.Amount.String())
			continue
		}
		remaining = append(remaining, o)
	}
	e.open[marketID] = remaining

	result := make([]models.OpenOrder, len(remaining))
	copy(result, remaining)
	return result, nil
}

// SubmitOrder implements trading.TradingAPI
func (e *Exchange) SubmitOrder(ctx context.Context, req trading.SubmitOrderRequest) (string, error) {
	if !req.Side.Valid() {
		return "", &trading.APIError{Op: "submit order", Message: fmt.Sprintf("invalid side: %s", req.Side)}
	}
	if !req.Amount.IsPositive() {
		return "", &trading.APIError{Op: "submit order", Message: fmt.Sprintf("invalid amount: %s", req.Amount)}
	}
	if !req.Price.IsPositive() {
		return "", &trading.APIError{Op: "submit order", Message: fmt.Sprintf("invalid price: %s", req.Price)}
	}
	if err := ctx.Err(); err != nil {
		return "", &trading.NetworkError{Op: "submit order", Err: err}
	}

	order := models.OpenOrder{
		ID:     uuid.New().String(),
		Side:   req.Side,
		Price:  req.Price,
		Amount: req.Amount,
	}

	e.mu.Lock()
	e.open[req.MarketID] = append(e.open[req.MarketID], order)
	e.mu.Unlock()

	return order.ID, nil
}

// Filled returns how many simulated orders have filled so far.
func (e *Exchange) Filled() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.filled
}

func crosses(o models.OpenOrder, snap models.OrderBookSnapshot) bool {
	if o.Side == models.SideBuy {
		return snap.BestAsk.LessThanOrEqual(o.Price)
	}
	return snap.BestBid.GreaterThanOrEqual(o.Price)
}
