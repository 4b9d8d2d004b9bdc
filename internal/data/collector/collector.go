package collector

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/songzhibin97/seesaw/internal/data"
	"github.com/songzhibin97/seesaw/internal/models"
)

// MultiSourceCollector implements data.MarketDataSource by asking each
// source in turn until one answers.
type MultiSourceCollector struct {
	sources []data.MarketDataSource
	logger  Logger
}

type Logger interface {
	Error(msg string, fields ...interface{})
	Debug(msg string, fields ...interface{})
}

func NewMultiSourceCollector(sources []data.MarketDataSource, logger Logger) *MultiSourceCollector {
	return &MultiSourceCollector{
		sources: sources,
		logger:  logger,
	}
}

func (c *MultiSourceCollector) Name() string {
	names := make([]string, 0, len(c.sources))
	for _, s := range c.sources {
		names = append(names, s.Name())
	}
	return strings.Join(names, "+")
}

// FetchOrderBook implements data.MarketDataSource. When every source fails
// the last error is returned as is, so its network or API class survives.
func (c *MultiSourceCollector) FetchOrderBook(ctx context.Context, marketID string) (*models.OrderBook, error) {
	err := fmt.Errorf("no market data source configured")

	for _, source := range c.sources {
		var book *models.OrderBook
		book, err = source.FetchOrderBook(ctx, marketID)
		if err == nil && book != nil {
			c.logger.Debug("collected order book", "source", source.Name(), "market", marketID)
			return book, nil
		}
		if err == nil {
			err = fmt.Errorf("source %s returned no order book", source.Name())
		}
		c.logger.Error("failed to collect order book", "source", source.Name(), "market", marketID, "error", err)
	}

	return nil, err
}

// FetchLatestTradePrice implements data.MarketDataSource
func (c *MultiSourceCollector) FetchLatestTradePrice(ctx context.Context, marketID string) (decimal.Decimal, error) {
	err := fmt.Errorf("no market data source configured")

	for _, source := range c.sources {
		var price decimal.Decimal
		price, err = source.FetchLatestTradePrice(ctx, marketID)
		if err == nil {
			c.logger.Debug("collected latest trade price", "source", source.Name(), "market", marketID)
			return price, nil
		}
		c.logger.Error("failed to collect latest trade price", "source", source.Name(), "market", marketID, "error", err)
	}

	return decimal.Zero, err
}
