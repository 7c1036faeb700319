package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"propdesk/configs"
	redisadapter "propdesk/internal/adapter/redis"
	"propdesk/internal/database"
	delivery "propdesk/internal/delivery/http"
	"propdesk/internal/domain"
	"propdesk/internal/infra"
	"propdesk/internal/lock"
	"propdesk/internal/repository"
	"propdesk/internal/repository/memory"
	"propdesk/internal/service"
	"propdesk/internal/usecase"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using environment variables")
	}

	// Load configuration
	cfg := configs.Load()

	// Initialize context
	ctx := context.Background()

	// Initialize the store backend
	var (
		accountRepo  domain.AccountRepository
		positionRepo domain.PositionRepository
		tradeRepo    domain.TradeRepository
		snapshotRepo domain.SnapshotRepository
		txManager    domain.TxManager
	)

	switch cfg.Database.Driver {
	case "memory":
		log.Println("Using in-memory store (STORE_DRIVER=memory)")
		store := memory.NewStore()
		accountRepo = store.Accounts()
		positionRepo = store.Positions()
		tradeRepo = store.Trades()
		snapshotRepo = store.SnapshotsRepo()
		txManager = store
	default:
		db, err := infra.NewDatabase(ctx, cfg.Database.URL)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()

		if err := database.RunMigrations(db); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}

		accountRepo = repository.NewAccountRepository(db)
		positionRepo = repository.NewPositionRepository(db)
		tradeRepo = repository.NewTradeRepository(db)
		snapshotRepo = repository.NewSnapshotRepository(db)
		txManager = repository.NewTxManager(db)
	}

	// Initialize the alert publisher
	var alertPublisher domain.AlertPublisher = redisadapter.NopPublisher{}
	if cfg.Redis.URL != "" {
		publisher, err := redisadapter.NewAlertPublisher(cfg.Redis.URL)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer publisher.Close()
		alertPublisher = publisher
		log.Println("[OK] Redis alert publisher connected")
	} else {
		log.Println("Warning: REDIS_URL not set, liquidation alerts will only be logged")
	}

	// Initialize services
	priceService := service.NewMarketPriceService(cfg.Market.BaseURL)
	accountLocks := lock.NewKeyed()

	tradeService := usecase.NewTradeService(
		accountRepo,
		positionRepo,
		tradeRepo,
		priceService,
		txManager,
		accountLocks,
		cfg.Monitor.LockTimeout,
	)
	riskService := usecase.NewRiskService(
		accountRepo,
		positionRepo,
		tradeRepo,
		snapshotRepo,
		priceService,
		alertPublisher,
		txManager,
		accountLocks,
		cfg.Monitor.LockTimeout,
	)
	accountService := usecase.NewAccountService(accountRepo, positionRepo, tradeRepo)
	monitor := usecase.NewMonitor(riskService, accountRepo)

	// Start the periodic risk sweep
	scheduler := infra.NewScheduler(monitor, cfg.Monitor.SweepInterval)
	if err := scheduler.Start(); err != nil {
		log.Fatalf("Failed to start risk monitor: %v", err)
	}
	defer scheduler.Stop()

	// Initialize HTTP server
	e := echo.New()
	e.HideBanner = true

	delivery.SetupRoutes(e, &delivery.RouterConfig{
		AccountHandler: delivery.NewAccountHandler(accountService),
		TradeHandler:   delivery.NewTradeHandler(tradeService, accountService, monitor),
	})

	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	log.Printf("PropDesk settlement engine starting on %s", addr)
	log.Printf("Environment: %s", cfg.Server.Env)
	log.Printf("Risk sweep interval: %s", cfg.Monitor.SweepInterval)

	// Run server in goroutine
	go func() {
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("[OK] Server exited gracefully")
}
