package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OrderSide 订单方向
type OrderSide string

const (
	SideBuy  OrderSide = "BUY"
	SideSell OrderSide = "SELL"
)

// Opposite returns the other side.
func (s OrderSide) Opposite() OrderSide {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

func (s OrderSide) Valid() bool {
	return s == SideBuy || s == SideSell
}

// ParseOrderSide accepts "buy"/"sell" in any case.
func ParseOrderSide(v string) (OrderSide, error) {
	switch OrderSide(strings.ToUpper(strings.TrimSpace(v))) {
	case SideBuy:
		return SideBuy, nil
	case SideSell:
		return SideSell, nil
	default:
		return "", fmt.Errorf("invalid order side: %q", v)
	}
}

// Market 交易市场
type Market struct {
	ID              string `json:"id"`               // 交易所市场ID, eg: BTCUSDT
	Name            string `json:"name"`             // 展示名称, eg: BTC/USDT
	BaseCurrency    string `json:"base_currency"`    // 基础货币
	CounterCurrency string `json:"counter_currency"` // 计价货币
}

// OrderRecord 已提交到交易所的订单
type OrderRecord struct {
	ID        string          `json:"id"`
	MarketID  string          `json:"market_id"`
	Side      OrderSide       `json:"side"`
	Price     decimal.Decimal `json:"price"`
	Amount    decimal.Decimal `json:"amount"`
	CreatedAt time.Time       `json:"created_at"`
}

func (o OrderRecord) String() string {
	return fmt.Sprintf("OrderRecord{id=%s, side=%s, price=%s, amount=%s}",
		o.ID, o.Side, o.Price.String(), o.Amount.String())
}

// PriceLevel 订单簿档位
type PriceLevel struct {
	Price    decimal.Decimal `json:"price"`
	Quantity decimal.Decimal `json:"quantity"`
}

// OrderBook 订单簿, bids 降序, asks 升序
type OrderBook struct {
	MarketID  string       `json:"market_id"`
	Bids      []PriceLevel `json:"bids"`
	Asks      []PriceLevel `json:"asks"`
	Timestamp time.Time    `json:"timestamp"`
}

// OrderBookSnapshot holds the top of book used by one decision cycle.
type OrderBookSnapshot struct {
	BestBid decimal.Decimal `json:"best_bid"`
	BestAsk decimal.Decimal `json:"best_ask"`
}

// Snapshot returns the best bid and ask. ok is false when either side has no levels.
func (b *OrderBook) Snapshot() (snap OrderBookSnapshot, ok bool) {
	if b == nil || len(b.Bids) == 0 || len(b.Asks) == 0 {
		return OrderBookSnapshot{}, false
	}
	return OrderBookSnapshot{
		BestBid: b.Bids[0].Price,
		BestAsk: b.Asks[0].Price,
	}, true
}

// OpenOrder 交易所上仍未成交的订单
type OpenOrder struct {
	ID     string          `json:"id"`
	Side   OrderSide       `json:"side"`
	Price  decimal.Decimal `json:"price"`
	Amount decimal.Decimal `json:"amount"`
}
