package main

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"paper-trade-go/internal/account"
	"paper-trade-go/internal/config"
	"paper-trade-go/internal/database"
	"paper-trade-go/internal/ledger"
	"paper-trade-go/internal/logger"
	"paper-trade-go/internal/quotes"
	"paper-trade-go/internal/server"
	"paper-trade-go/internal/session"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig("./configs")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.NewLogger(cfg.Logger.Level, cfg.Logger.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	log.Info("Configuration loaded")

	if cfg.Session.Secret == "" {
		log.Fatal("session.secret must be set")
	}

	// Connect to the database, migrate and seed
	db, err := database.NewDatabase(&cfg)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	log.Info("Database connected and schema migrated")

	// Quote provider client
	provider := quotes.NewClient(&cfg.Quotes, log)

	// Services
	sessions := session.NewManager(cfg.Session.Secret, cfg.Session.CookieName)
	accounts := account.NewService(log, db, &cfg.Trading)
	trades := ledger.NewService(log, db, provider, &cfg.Trading)

	// Web server
	srv := server.New(log, &cfg, sessions, accounts, trades, provider)
	if err := srv.Run("web/templates/*.html"); err != nil {
		log.Fatal("Web server failed", zap.Error(err))
	}
}
