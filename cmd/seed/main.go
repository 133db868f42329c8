package main

import (
	"context"
	"flag"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/xtrntr/cryptotrade/internal/config"
	"github.com/xtrntr/cryptotrade/internal/db"
	"github.com/xtrntr/cryptotrade/internal/logger"
	"github.com/xtrntr/cryptotrade/internal/store"
)

// Seed the database with currencies, trading pairs and opening wallets
func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	migration := flag.String("migration", "migrations/001_init.sql", "schema script applied before seeding")
	userID := flag.Int64("user", 0, "user to open wallets for (defaults to server.default_user_id)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}
	log, err := logger.New(logger.Config{Level: cfg.Log.Level})
	if err != nil {
		logrus.Fatalf("Failed to initialize logger: %v", err)
	}
	if *userID == 0 {
		*userID = cfg.Server.DefaultUserID
	}

	ctx := context.Background()

	// Connect to database
	database, err := db.NewDB(ctx, cfg.Storage.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	if *migration != "" {
		script, err := os.ReadFile(*migration)
		if err != nil {
			log.Fatalf("Failed to read migration: %v", err)
		}
		if err := database.Migrate(ctx, string(script)); err != nil {
			log.Fatalf("Failed to apply migration: %v", err)
		}
	}

	for _, c := range store.DefaultCurrencies {
		if _, err := database.EnsureCurrency(ctx, c.Code, c.Name); err != nil {
			log.Fatalf("Failed to create currency %s: %v", c.Code, err)
		}
	}
	for _, p := range store.DefaultPairs {
		if _, err := database.EnsureTradingPair(ctx, p.Symbol, p.Base, p.Quote); err != nil {
			log.Fatalf("Failed to create trading pair %s: %v", p.Symbol, err)
		}
	}

	created := 0
	for code, balance := range store.DefaultOpeningBalances() {
		ok, err := database.EnsureWallet(ctx, *userID, code, balance)
		if err != nil {
			log.Fatalf("Failed to open %s wallet: %v", code, err)
		}
		if ok {
			created++
		}
	}

	trades, err := database.CountTrades(ctx)
	if err != nil {
		log.Fatalf("Failed to check trades: %v", err)
	}

	log.WithFields(logrus.Fields{
		"user_id":         *userID,
		"wallets_created": created,
		"existing_trades": trades,
	}).Info("database seeded")
}
