package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/finchbank/ledger-service/internal/config"
	"github.com/finchbank/ledger-service/internal/events"
	"github.com/finchbank/ledger-service/internal/handler"
	"github.com/finchbank/ledger-service/internal/ledger"
	"github.com/finchbank/ledger-service/internal/middleware"
	"github.com/finchbank/ledger-service/internal/query"
	redisClient "github.com/finchbank/ledger-service/internal/redis"
	"github.com/finchbank/ledger-service/internal/repository"
	"github.com/finchbank/ledger-service/internal/utils"
	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Database connection (write store)
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}

	// Redis connection (read model store + event streaming)
	redis, err := redisClient.NewClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redis.Close()

	// --- Ledger wiring ---
	publisher := events.NewPublisher(redis.Client)

	accountRepo := repository.NewAccountRepository(db)
	transactionRepo := repository.NewTransactionRepository(db)
	readRepo := repository.NewAccountReadRepository(db, redis.Client)

	engine := ledger.NewEngine(accountRepo, transactionRepo, publisher)
	querySvc := query.NewAccountQueryService(readRepo, transactionRepo)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := seedAdmin(ctx, engine, cfg); err != nil {
		log.Fatalf("Failed to seed admin account: %v", err)
	}

	authHandler := handler.NewAuthHandler(engine, accountRepo, []byte(cfg.JWTSecret), cfg.InitialBalance)
	accountHandler := handler.NewAccountHandler(engine, querySvc)

	// Setup router
	router := gin.Default()

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	auth := router.Group("/api/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
	}

	account := router.Group("/api/account", middleware.AuthMiddleware([]byte(cfg.JWTSecret)))
	{
		account.GET("/me", accountHandler.Me)
		account.POST("/transfer", accountHandler.Transfer)
		account.POST("/withdraw", accountHandler.Withdraw)
		account.POST("/deposit", accountHandler.Deposit)
		account.POST("/freeze", accountHandler.Freeze)
		account.POST("/unfreeze", accountHandler.Unfreeze)
		account.POST("/close", accountHandler.Close)
		account.GET("/transactions", accountHandler.ListTransactions)
		account.GET("/totals", accountHandler.Totals)
	}

	// Read-model sync: invalidate cached account views after committed
	// ledger mutations.
	go func() {
		subscriber := events.NewSubscriber(redis.Client, "ledger-service-group", "ledger-consumer-1", readRepo.HandleLedgerEvent)
		if err := subscriber.Run(ctx); err != nil {
			log.Printf("Subscriber stopped: %v", err)
		}
	}()

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		log.Println("Shutting down...")
		cancel()
	}()

	log.Printf("Ledger service starting on port %s", cfg.Port)
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// seedAdmin makes sure the configured admin account exists before the API
// accepts traffic. Repeat boots find the account and leave it untouched.
func seedAdmin(ctx context.Context, engine *ledger.Engine, cfg *config.Config) error {
	passwordHash, err := utils.HashPassword(cfg.AdminPassword)
	if err != nil {
		return err
	}
	admin, err := engine.EnsureAdmin(ctx, cfg.AdminName, cfg.AdminEmail, passwordHash, cfg.AdminBalance)
	if err != nil {
		return err
	}
	log.Printf("Admin account ready: %s", admin.AccountNumber)
	return nil
}
