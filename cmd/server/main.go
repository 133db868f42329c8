package main

import (
	"context"
	"errors"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/xtrntr/cryptotrade/internal/api"
	"github.com/xtrntr/cryptotrade/internal/config"
	"github.com/xtrntr/cryptotrade/internal/db"
	"github.com/xtrntr/cryptotrade/internal/exchange"
	"github.com/xtrntr/cryptotrade/internal/feed"
	"github.com/xtrntr/cryptotrade/internal/ledger"
	"github.com/xtrntr/cryptotrade/internal/logger"
	"github.com/xtrntr/cryptotrade/internal/pricing"
	"github.com/xtrntr/cryptotrade/internal/quotecache"
	"github.com/xtrntr/cryptotrade/internal/store"
	"github.com/xtrntr/cryptotrade/internal/store/memstore"
)

// Main entry point: sets up storage, price aggregation, trading and the HTTP server
func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	log, err := logger.New(logger.Config{
		Level:      cfg.Log.Level,
		OutputFile: cfg.Log.File,
		MaxSize:    cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
	})
	if err != nil {
		logrus.Fatalf("Failed to initialize logger: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg, log)
	if err != nil {
		log.Fatalf("Failed to open storage: %v", err)
	}
	defer st.Close()

	// Optional raw quote cache
	var cache *quotecache.Cache
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
		cache = quotecache.New(rdb, cfg.Redis.QuoteTTL, log)
		if err := cache.Ping(ctx); err != nil {
			log.WithError(err).Warn("redis unreachable, quote cache disabled")
			cache = nil
		}
	}

	// Price aggregation
	var opts []pricing.Option
	if cache != nil {
		opts = append(opts, pricing.WithQuoteSink(cache))
	}
	agg := pricing.NewAggregator(st, buildFeeds(cfg, log), cfg.Feeds.Timeout, log, opts...)
	scheduler := pricing.NewScheduler(agg, cfg.Pricing.Interval, log)

	// Trading
	wallets := ledger.New(st, cfg.Ledger.RetryAttempts, log)
	engine := exchange.NewEngine(st, wallets, exchange.Config{
		MaxPriceAge:   cfg.Trading.MaxPriceAge,
		RetryAttempts: cfg.Trading.RetryAttempts,
		RetryBackoff:  cfg.Trading.RetryBackoff,
	}, log)
	history := exchange.NewHistory(st, cfg.Trading.DefaultPageSize)

	// Initialize API handlers
	handler := api.NewHandler(engine, history, pricing.NewPriceStore(st), wallets, st, cfg.Server.DefaultUserID, log)
	if cache != nil {
		handler.Sources = cache
	}

	httpServer := &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:           api.NewRouter(handler),
		ReadHeaderTimeout: 5 * time.Second,
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		scheduler.Run(ctx)
	}()

	go func() {
		log.WithField("address", httpServer.Addr).Info("server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("server failed")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("gracefully shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("error shutting down http server")
	}
	wg.Wait()
}

func openStore(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) (store.Store, error) {
	if cfg.Storage.Driver == "memory" {
		mem := memstore.New()
		if err := mem.Seed(cfg.Server.DefaultUserID, store.DefaultOpeningBalances()); err != nil {
			return nil, err
		}
		log.WithField("user_id", cfg.Server.DefaultUserID).Info("using in-memory storage with seeded wallets")
		return mem, nil
	}
	database, err := db.NewDB(ctx, cfg.Storage.DatabaseURL)
	if err != nil {
		return nil, err
	}
	return database, nil
}

func buildFeeds(cfg *config.Config, log logrus.FieldLogger) []feed.Feed {
	feeds := make([]feed.Feed, 0, len(cfg.Feeds.Sources))
	for _, src := range cfg.Feeds.Sources {
		switch src.Name {
		case config.FeedBinance:
			feeds = append(feeds, feed.NewBinance(src.Name, src.BaseURL, cfg.Feeds.Timeout, log))
		case config.FeedHuobi:
			feeds = append(feeds, feed.NewHuobi(src.Name, src.BaseURL, cfg.Feeds.Timeout, log))
		}
	}
	return feeds
}
