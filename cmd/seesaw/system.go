package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/songzhibin97/seesaw/internal/data"
	"github.com/songzhibin97/seesaw/internal/strategy"
)

// TradingSystem drives one strategy engine per market on a shared interval.
type TradingSystem struct {
	engines  []*strategy.Engine
	interval time.Duration
	logger   *slog.Logger
}

func NewTradingSystem(engines []*strategy.Engine, interval time.Duration, logger *slog.Logger) *TradingSystem {
	if logger == nil {
		logger = slog.Default()
	}
	return &TradingSystem{
		engines:  engines,
		interval: interval,
		logger:   logger,
	}
}

// Run 运行交易系统. It returns nil once ctx is cancelled, or the joined fatal
// faults once every market has stopped on its own.
func (s *TradingSystem) Run(ctx context.Context) error {
	if len(s.engines) == 0 {
		return errors.New("no market to trade")
	}

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		faults []error
	)
	for _, engine := range s.engines {
		wg.Add(1)
		go func(engine *strategy.Engine) {
			defer wg.Done()
			if err := s.runMarket(ctx, engine); err != nil {
				mu.Lock()
				faults = append(faults, err)
				mu.Unlock()
			}
		}(engine)
	}
	wg.Wait()

	if ctx.Err() != nil {
		return nil
	}
	return errors.Join(faults...)
}

// runMarket cycles one engine until ctx is done or a fatal fault occurs.
func (s *TradingSystem) runMarket(ctx context.Context, engine *strategy.Engine) error {
	logger := s.logger.With("market", engine.Market().Name)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// 主循环, 启动后立即执行一次
	for {
		action, err := engine.RunCycle(ctx)
		switch {
		case err == nil:
			logger.Debug("cycle finished", "action", action.String())
		case ctx.Err() != nil:
			return nil
		case strategy.IsFatal(err):
			logger.Error("fatal strategy fault, stopping market", "err", err)
			return fmt.Errorf("market %s: %w", engine.Market().ID, err)
		default:
			logger.Warn("recoverable strategy fault, retrying next cycle", "err", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// printHistory writes the stored orders of every market as a table.
func printHistory(ctx context.Context, w io.Writer, store data.OrderStore) error {
	markets, err := store.ListMarkets(ctx)
	if err != nil {
		return err
	}

	table := tablewriter.NewWriter(w)
	table.Header("Market", "#", "Order ID", "Side", "Price", "Amount", "Created At")

	for _, market := range markets {
		orders, err := store.ListOrders(ctx, market)
		if err != nil {
			return err
		}
		for i, o := range orders {
			table.Append(
				market,
				fmt.Sprintf("%d", i+1),
				o.ID,
				string(o.Side),
				o.Price.StringFixed(strategy.Scale),
				o.Amount.StringFixed(strategy.Scale),
				o.CreatedAt.UTC().Format(time.RFC3339),
			)
		}
	}

	return table.Render()
}
