package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/songzhibin97/seesaw/internal/configs"
	"github.com/songzhibin97/seesaw/internal/data"
	collectorData "github.com/songzhibin97/seesaw/internal/data/collector"
	"github.com/songzhibin97/seesaw/internal/data/collector/binance"
	"github.com/songzhibin97/seesaw/internal/data/storage"
	"github.com/songzhibin97/seesaw/internal/strategy"
	"github.com/songzhibin97/seesaw/internal/trading"
	binanceTrading "github.com/songzhibin97/seesaw/internal/trading/binance"
	"github.com/songzhibin97/seesaw/internal/trading/paper"
)

var (
	flagconf    string
	flaghistory bool
)

func init() {
	flag.StringVar(&flagconf, "conf", "configs/config.yaml", "config path, eg: -conf config.yaml")
	flag.BoolVar(&flaghistory, "history", false, "print the stored order history and exit")
}

func main() {
	flag.Parse()
	os.Exit(run())
}

func run() int {
	// 加载配置
	config, err := configs.Load(flagconf)
	if err != nil {
		slog.Error("Error loading config", "conf", flagconf, "err", err)
		return 1
	}

	log := newLogger(config.Log)
	slog.SetDefault(log)

	log.Debug("Loaded config", "markets", len(config.Markets), "mode", config.ExchangeConfig.Mode)

	if config.Proxy != "" {
		_ = os.Setenv("HTTP_PROXY", config.Proxy)
		_ = os.Setenv("HTTPS_PROXY", config.Proxy)
		log.Debug("set proxy ok", "proxy", config.Proxy)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	storager, err := newStore(config.Database)
	if err != nil {
		log.Error("Error creating storage", "err", err)
		return 1
	}
	if storager != nil {
		defer storager.Close()
		log.Debug("init storager", "driver", config.Database.Driver)
	}

	if flaghistory {
		if storager == nil {
			log.Error("no database configured, nothing to print")
			return 1
		}
		if err := printHistory(ctx, os.Stdout, storager); err != nil {
			log.Error("Error printing history", "err", err)
			return 1
		}
		return 0
	}

	api := newTradingAPI(config, log)
	log.Debug("init trading api", "exchange", api.Name())

	engines, err := newEngines(ctx, config, api, storager, log)
	if err != nil {
		log.Error("Error creating strategy engines", "err", err)
		return 1
	}

	// 运行系统
	system := NewTradingSystem(engines, config.Interval(), log)
	if err := system.Run(ctx); err != nil {
		log.Error("System error", "err", err)
		return 1
	}

	log.Info("shutting down")
	return 0
}

func newLogger(c configs.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Level)); err != nil {
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		AddSource: level == slog.LevelDebug,
		Level:     level,
	}
	if strings.EqualFold(c.Format, "text") {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

// newStore returns nil when no database is configured.
func newStore(c configs.Database) (data.OrderStore, error) {
	switch c.Driver {
	case configs.DriverPostgres:
		s, err := storage.NewPostgresStorage(c.ConnStr)
		if err != nil {
			return nil, err
		}
		return s, nil
	case configs.DriverSQLite:
		s, err := storage.NewSQLiteStorage(c.ConnStr)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, nil
	}
}

func newTradingAPI(config *configs.Config, log *slog.Logger) trading.TradingAPI {
	ex := config.ExchangeConfig
	if ex.Mode == configs.ModeLive {
		return binanceTrading.NewBinanceExecutor(ex.APIKey, ex.SecretKey, ex.Debug)
	}

	source := binance.NewBinanceDataSource(config.RequestTimeout(), ex.RetryCount)
	if ex.BaseURL != "" {
		source = source.WithBaseURL(ex.BaseURL)
	}
	collector := collectorData.NewMultiSourceCollector([]data.MarketDataSource{source}, log)
	return paper.NewExchange(collector, log)
}

func newEngines(ctx context.Context, config *configs.Config, api trading.TradingAPI, store data.OrderStore, log *slog.Logger) ([]*strategy.Engine, error) {
	engines := make([]*strategy.Engine, 0, len(config.Markets))
	for _, m := range config.Markets {
		params, err := m.Params()
		if err != nil {
			return nil, fmt.Errorf("market %s: %w", m.ID, err)
		}

		opts := []strategy.Option{strategy.WithLogger(log)}
		if store != nil {
			opts = append(opts, strategy.WithJournal(store))
		}

		engine, err := strategy.NewEngine(m.Market(), api, params, opts...)
		if err != nil {
			return nil, fmt.Errorf("market %s: %w", m.ID, err)
		}

		if store != nil {
			history, err := store.ListOrders(ctx, m.ID)
			if err != nil {
				return nil, fmt.Errorf("market %s: load history: %w", m.ID, err)
			}
			if err := engine.Restore(history); err != nil {
				return nil, fmt.Errorf("market %s: %w", m.ID, err)
			}
		}

		if err := engine.Reconcile(ctx); err != nil {
			if strategy.IsFatal(err) {
				return nil, fmt.Errorf("market %s: %w", m.ID, err)
			}
			log.Warn("could not reconcile open orders, trading anyway", "market", m.ID, "err", err)
		}

		engines = append(engines, engine)
	}
	return engines, nil
}
