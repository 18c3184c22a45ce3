package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	checkouthttp "github.com/orderflow/checkout-service/internal/http"
	"github.com/orderflow/checkout-service/internal/publisher"
	"github.com/orderflow/checkout-service/internal/repository"
	"github.com/orderflow/checkout-service/internal/service"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func main() {
	_ = godotenv.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer logger.Sync()

	// Configuration
	httpPort := getEnv("HTTP_PORT", "8080")
	kafkaBrokers := strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ",")
	requestTimeout := 5 * time.Second

	checkoutCfg := service.Config{
		MaxAttempts:    getEnvInt("CHECKOUT_MAX_ATTEMPTS", 3),
		BackoffBase:    time.Duration(getEnvInt("CHECKOUT_BACKOFF_BASE_MS", 50)) * time.Millisecond,
		StorageRetries: getEnvInt("CHECKOUT_STORAGE_RETRIES", 2),
	}

	// Database setup
	creds := &repository.Credentials{
		Host:              getEnv("DB_HOST", "localhost"),
		Port:              getEnvInt("DB_PORT", 5432),
		User:              getEnv("DB_USER", "postgres"),
		Password:          getEnv("DB_PASSWORD", "postgres"),
		DBName:            getEnv("DB_NAME", "checkout"),
		MigrationsDirPath: getEnv("MIGRATIONS_PATH", "./internal/repository/migrations"),
		SnapshotBatchSize: getEnvInt("SNAPSHOT_BATCH_SIZE", repository.DefaultSnapshotBatchSize),
	}

	repo, err := repository.NewRepository(creds)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer repo.Close()

	if err := repo.RunMigrations(creds); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}
	logger.Info("database migrations completed")

	checkoutService := service.NewCheckoutService(repo, checkoutCfg, logger)
	handler := checkouthttp.NewCheckoutHandler(checkoutService, repo, repo, requestTimeout, logger)

	// Outbox poller publishes committed orders to Kafka
	pollerCtx, stopPoller := context.WithCancel(context.Background())
	poller := publisher.NewOutboxPoller(repo, logger, kafkaBrokers...)
	go poller.Run(pollerCtx)

	// Setup router
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(checkouthttp.RequestIDMiddleware)
	r.Use(middleware.Timeout(requestTimeout))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/checkout", handler.PlaceOrder)
		r.Get("/orders/{order_id}", handler.GetOrder)
	})

	srv := &http.Server{
		Addr:         ":" + httpPort,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("checkout service listening", zap.String("port", httpPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("failed to serve", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down checkout service...")
	stopPoller()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown failed", zap.Error(err))
	}

	logger.Info("checkout service stopped")
}
