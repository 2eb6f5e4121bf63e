package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"chartflow/config"
	"chartflow/internal/channel"
	"chartflow/internal/feed"
	"chartflow/internal/history"
	"chartflow/internal/hub"
	"chartflow/internal/ingest"
	"chartflow/internal/market"
	"chartflow/internal/metrics"
	"chartflow/internal/server"
	"chartflow/logger"
)

func main() {
	log := logger.GetLogger()

	// Load environment variables from .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Error loading .env file")
	}

	configPath := flag.String("config", "config/config.yml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}

	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		log.WithError(err).Error("Failed to configure logger")
		os.Exit(1)
	}

	log.WithFields(logger.Fields{
		"service":     cfg.Chartflow.Name,
		"version":     cfg.Chartflow.Version,
		"environment": config.AppEnvironment(),
	}).Info("starting chartflow")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Metrics.CloudWatch.Enabled {
		metrics.InitCloudWatch(
			cfg.Metrics.CloudWatch.Region,
			cfg.Metrics.CloudWatch.Namespace,
			cfg.Metrics.CloudWatch.Dashboard,
		)
	}

	if strings.ToLower(cfg.Logging.Level) == "report" {
		logger.StartReport(ctx, log, 30*time.Second)
	}

	mkt := market.NewMarket(cfg.Market)
	h := hub.NewHub(cfg.Session.QueueSize, log)

	channels := channel.NewChannels(cfg.Channels.EventBuffer)
	defer channels.Close()
	channels.StartMetricsReporting(ctx, 30*time.Second)

	adapter := ingest.NewAdapter(cfg, mkt, h, channels)
	reader := feed.NewBinanceReader(cfg, mkt, channels)
	hist := history.NewService(cfg.History, mkt, history.NewBinanceFetcher(cfg.History))
	srv := server.NewServer(cfg, mkt, h, hist)

	if err := adapter.Start(ctx); err != nil {
		log.WithError(err).Error("failed to start ingest adapter")
		os.Exit(1)
	}

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := reader.Start(ctx); err != nil {
			log.WithError(err).Warn("binance reader failed to start")
		}
	}()

	serverErr := make(chan error, 1)
	wg.Add(1)
	go func() {
		defer wg.Done()
		serverErr <- srv.Run(ctx)
	}()

	log.WithFields(logger.Fields{
		"instruments": mkt.Instruments(),
		"address":     cfg.Server.Address,
	}).Info("all components started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.WithFields(logger.Fields{"signal": sig.String()}).Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			log.WithError(err).Error("http server failed")
		}
	}

	log.Info("starting graceful shutdown")
	cancel()

	log.Info("stopping binance reader")
	reader.Stop()

	log.Info("stopping ingest adapter")
	adapter.Stop()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info("graceful shutdown completed")
	case <-time.After(30 * time.Second):
		log.Warn("graceful shutdown timeout exceeded")
	}

	log.Info("chartflow stopped")
}
