package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"bitcoin-ai-trader/aiengine"
	"bitcoin-ai-trader/config"
	"bitcoin-ai-trader/engine"
	"bitcoin-ai-trader/exchange"
	"bitcoin-ai-trader/logger"
	"bitcoin-ai-trader/market"
	"bitcoin-ai-trader/notification"
	"bitcoin-ai-trader/risk"
	"bitcoin-ai-trader/server"
	"bitcoin-ai-trader/signal"
	"bitcoin-ai-trader/storage"
)

func main() {
	var (
		port      = flag.Int("port", 0, "override HTTP server port")
		autostart = flag.Bool("autostart", true, "start the trading loop immediately")
	)
	flag.Parse()

	// .env is optional, real deployments set environment variables.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}

	logger.Init(logger.Options{
		Level:      cfg.Log.Level,
		FilePath:   cfg.Log.FilePath,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		MaxBackups: cfg.Log.MaxBackups,
		Compress:   cfg.Log.Compress,
	})
	defer logger.Sync()

	for _, warning := range cfg.Validate() {
		logger.Warn("config: " + warning)
	}

	logger.Info(fmt.Sprintf("Bitcoin AI trader starting (mode %s, symbol %s)",
		cfg.Bot.Mode, cfg.Bot.Symbol))

	exch, err := buildExchange(cfg)
	if err != nil {
		logger.Fatal(fmt.Sprintf("exchange setup failed: %v", err))
	}

	collector := market.NewCollector(
		cfg.Binance.APIKey, cfg.Binance.SecretKey,
		cfg.Analysis.Interval, cfg.Analysis.CandleLimit, cfg.Analysis.RSIPeriod)
	advisor := aiengine.NewClient(cfg.AI)
	scorer := signal.NewScorer(cfg.Analysis.RSIOversold, cfg.Analysis.RSIOverbought)
	combiner := signal.NewCombiner(cfg.Risk.MinConfidence)
	riskMgr := risk.NewManager(cfg.Risk)
	store := storage.NewStore(cfg.Redis)
	notifier := notification.NewManager(100)
	hub := server.NewHub()

	eng := engine.New(*cfg, collector, advisor, scorer, combiner, riskMgr, exch, store, notifier, hub)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if *autostart {
		eng.Start(ctx)
	}

	srv := server.New(*cfg, eng, exch, store, hub, notifier)
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	stop := make(chan os.Signal, 1)
	ossignal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stop:
		logger.Info(fmt.Sprintf("received %s, shutting down", sig))
	case err := <-errCh:
		if err != nil {
			logger.Error(fmt.Sprintf("server error: %v", err))
		}
	}

	eng.Stop()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn(fmt.Sprintf("server shutdown: %v", err))
	}
	logger.Info("shutdown complete")
}

func buildExchange(cfg *config.Config) (exchange.Exchange, error) {
	if cfg.Bot.Mode == config.ModeLive {
		return exchange.NewBinanceExchange(cfg.Binance.APIKey, cfg.Binance.SecretKey,
			cfg.Bot.Symbol, cfg.Bot.BaseCurrency, cfg.Binance.Testnet)
	}
	return exchange.NewPaperExchange(cfg.Bot.InitialBalance), nil
}
