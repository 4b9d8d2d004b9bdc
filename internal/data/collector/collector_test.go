package collector

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/songzhibin97/seesaw/internal/data"
	"github.com/songzhibin97/seesaw/internal/models"
	"github.com/songzhibin97/seesaw/internal/trading"
)

type stubSource struct {
	name  string
	book  *models.OrderBook
	price decimal.Decimal
	err   error
	calls int
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) FetchOrderBook(ctx context.Context, marketID string) (*models.OrderBook, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.book, nil
}

func (s *stubSource) FetchLatestTradePrice(ctx context.Context, marketID string) (decimal.Decimal, error) {
	s.calls++
	return s.price, s.err
}

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestMultiSourceCollector_FallsBack(t *testing.T) {
	failing := &stubSource{name: "down", err: &trading.NetworkError{Op: "depth", Err: errors.New("timeout")}}
	healthy := &stubSource{
		name:  "up",
		book:  &models.OrderBook{MarketID: "BTCUSDT", Bids: []models.PriceLevel{{Price: decimal.NewFromInt(10)}}},
		price: decimal.NewFromInt(11),
	}
	c := NewMultiSourceCollector([]data.MarketDataSource{failing, healthy}, discard)

	book, err := c.FetchOrderBook(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, "BTCUSDT", book.MarketID)

	price, err := c.FetchLatestTradePrice(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(11).Equal(price))

	assert.Equal(t, 2, failing.calls)
	assert.Equal(t, 2, healthy.calls)
	assert.Equal(t, "down+up", c.Name())
}

func TestMultiSourceCollector_StopsAtFirstSuccess(t *testing.T) {
	first := &stubSource{name: "a", price: decimal.NewFromInt(1)}
	second := &stubSource{name: "b", price: decimal.NewFromInt(2)}
	c := NewMultiSourceCollector([]data.MarketDataSource{first, second}, discard)

	price, err := c.FetchLatestTradePrice(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(1).Equal(price))
	assert.Zero(t, second.calls)
}

func TestMultiSourceCollector_KeepsLastErrorClass(t *testing.T) {
	c := NewMultiSourceCollector([]data.MarketDataSource{
		&stubSource{name: "a", err: &trading.APIError{Op: "depth", Message: "bad symbol"}},
		&stubSource{name: "b", err: &trading.NetworkError{Op: "depth", Err: errors.New("reset")}},
	}, discard)

	_, err := c.FetchOrderBook(context.Background(), "BTCUSDT")
	assert.True(t, trading.IsNetworkError(err))

	_, err = c.FetchLatestTradePrice(context.Background(), "BTCUSDT")
	assert.True(t, trading.IsNetworkError(err))
}

func TestMultiSourceCollector_NilBookIsAnError(t *testing.T) {
	c := NewMultiSourceCollector([]data.MarketDataSource{&stubSource{name: "empty"}}, discard)

	book, err := c.FetchOrderBook(context.Background(), "BTCUSDT")
	assert.Error(t, err)
	assert.Nil(t, book)
}

func TestMultiSourceCollector_NoSources(t *testing.T) {
	c := NewMultiSourceCollector(nil, discard)

	_, err := c.FetchOrderBook(context.Background(), "BTCUSDT")
	assert.Error(t, err)
	_, err = c.FetchLatestTradePrice(context.Background(), "BTCUSDT")
	assert.Error(t, err)
}
