package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/vitos/crypto_trade_engine/internal/config"
	"github.com/vitos/crypto_trade_engine/internal/infrastructure/exchange"
	"github.com/vitos/crypto_trade_engine/internal/infrastructure/logger"
	"github.com/vitos/crypto_trade_engine/internal/infrastructure/pricecache"
	"github.com/vitos/crypto_trade_engine/internal/infrastructure/storage"
	"github.com/vitos/crypto_trade_engine/internal/metrics"
	"github.com/vitos/crypto_trade_engine/internal/usecase"
	"github.com/vitos/crypto_trade_engine/internal/web"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	dbPath := flag.String("db", "trades.db", "path to the trade ledger database")
	flag.Parse()

	// Secrets live in .env; missing file is fine in containerized setups.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewFileLogger(cfg.Logging.Level, cfg.Logging.File)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ledger, err := storage.NewSQLiteLedger(*dbPath)
	if err != nil {
		log.Fatal("Failed to init trade ledger", zap.Error(err))
	}
	defer ledger.Close()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	cache := pricecache.New(rdb)
	if err := cache.Ping(context.Background()); err != nil {
		log.Fatal("Failed to connect to redis", zap.Error(err))
	}

	gateway := exchange.NewBinanceGateway(
		cfg.Exchange.APIKey,
		cfg.Exchange.APISecret,
		cfg.Exchange.RESTEndpoint,
		"",
	)

	promRegistry := prometheus.NewRegistry()
	engineMetrics := metrics.New(promRegistry)

	// Prefer live exchange filters over the configured table and seed the
	// price cache so monitors have a price before the first websocket tick.
	symbols := cfg.SymbolTable()
	seedCtx, seedCancel := context.WithTimeout(context.Background(), 15*time.Second)
	for _, sym := range cfg.Trading.WatchSymbols {
		if filters, err := gateway.SymbolFilters(seedCtx, sym); err == nil {
			symbols.Apply(filters)
		} else {
			log.Warn("Live symbol filters unavailable, using configured values",
				zap.String("symbol", sym), zap.Error(err))
		}
		if price, err := gateway.CurrentPrice(seedCtx, sym); err == nil {
			if err := cache.SetLastPrice(seedCtx, sym, price, time.Now()); err != nil {
				log.Warn("Price seed write failed", zap.String("symbol", sym), zap.Error(err))
			}
		} else {
			log.Warn("Startup price unavailable", zap.String("symbol", sym), zap.Error(err))
		}
	}
	seedCancel()

	registry := usecase.NewRegistry(log)
	sizer := usecase.NewOrderSizer(symbols, cfg.Trading)
	executor := usecase.NewTradeExecutor(gateway)
	accountant := usecase.NewPnLAccountant(cfg.Trading)

	engine := usecase.NewEngine(usecase.EngineDeps{
		Registry:   registry,
		Sizer:      sizer,
		Executor:   executor,
		Accountant: accountant,
		Ledger:     ledger,
		Prices:     cache,
		Signals:    cache,
		Trading:    cfg.Trading,
		Risk:       cfg.Risk,
		Exits:      cfg.Exits,
		Metrics:    engineMetrics,
		Logger:     log,
	})

	feeder := exchange.NewPriceFeeder(cfg.Exchange.WSEndpoint, cfg.Trading.WatchSymbols, time.Minute, cache, log)
	signalWorker := usecase.NewSignalWorker(engine, cache, cache, cfg.Trading, log)
	server := web.NewServer(cfg.Server.Port, engine, ledger, promRegistry, log)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return feeder.Run(gctx)
	})
	g.Go(func() error {
		return signalWorker.Run(gctx)
	})
	g.Go(func() error {
		return server.Start()
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("Web server shutdown failed", zap.Error(err))
		}
		return engine.Shutdown(shutdownCtx)
	})

	log.Info("Trade engine started",
		zap.Strings("symbols", cfg.Trading.WatchSymbols),
		zap.String("market_type", cfg.Trading.MarketType),
		zap.Int("port", cfg.Server.Port))

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		log.Fatal("Engine stopped unexpectedly", zap.Error(err))
	}
	log.Info("Shutdown complete")
}
