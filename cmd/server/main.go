package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"

	"github.com/zeshalondrag/sorapc-checkout/internal/adapter/handler"
	"github.com/zeshalondrag/sorapc-checkout/internal/adapter/mail"
	"github.com/zeshalondrag/sorapc-checkout/internal/adapter/storage"
	"github.com/zeshalondrag/sorapc-checkout/internal/core/service"
	"github.com/zeshalondrag/sorapc-checkout/pkg/config"
	"github.com/zeshalondrag/sorapc-checkout/pkg/logger"
	"github.com/zeshalondrag/sorapc-checkout/pkg/metrics"
	"github.com/zeshalondrag/sorapc-checkout/pkg/shutdown"
)

func main() {
	cfg := config.Load()

	log := logger.New(logger.Options{
		Service: "sorapc-checkout",
		Env:     cfg.AppEnv,
		Level:   cfg.LogLevel,
	})

	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	// MySQL
	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Error("failed to open mysql", "error", err)
		os.Exit(1)
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		log.Error("failed to ping mysql", "error", err)
		os.Exit(1)
	}
	log.Info("connected to mysql")

	// Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		PoolSize: 100,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Error("failed to connect redis", "error", err)
		os.Exit(1)
	}
	log.Info("connected to redis")

	// Adapters
	store := storage.NewMySQLAdapter(db)
	cache := storage.NewRedisAdapter(rdb)
	mailer := mail.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPFrom)

	checkoutMetrics := metrics.NewCheckoutMetrics()

	checkoutService := service.NewCheckoutService(service.Deps{
		Catalog:  store,
		Orders:   store,
		Carts:    store,
		Cache:    cache,
		Identity: store,
		Mailer:   mailer,
		Metrics:  checkoutMetrics,
		Logger:   log,
	}, service.Config{
		MaxConcurrent:  cfg.MaxConcurrent,
		StoreTimeout:   cfg.StoreTimeout,
		QueueSize:      cfg.QueueSize,
		ReceiptRetries: cfg.ReceiptRetries,
		CleanupRetries: cfg.CleanupRetries,
		RetryBackoff:   cfg.RetryBackoff,
	})

	// Receipt workers
	var wg sync.WaitGroup
	for i := 0; i < cfg.WorkerCount; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			checkoutService.DispatchReceipts(id)
		}(i)
	}
	log.Info("started receipt workers", "count", cfg.WorkerCount)

	// HTTP server
	httpHandler := handler.NewHTTPHandler(checkoutService)
	mux := http.NewServeMux()
	httpHandler.Register(mux)
	mux.Handle("/metrics", metrics.Handler())

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: mux,
	}

	go func() {
		log.Info("http server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			log.Error("http server error", "error", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)
	log.Info("http server stopped")

	// Drain receipts before closing connections.
	checkoutService.Close()
	wg.Wait()
	log.Info("receipt workers stopped")

	rdb.Close()
	db.Close()
	log.Info("connections closed")
}
