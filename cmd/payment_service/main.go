package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	gatewayadapter "github.com/ilmiynashr/journal-payments/internal/payment/adapters/gateway"
	httpadapter "github.com/ilmiynashr/journal-payments/internal/payment/adapters/http"
	"github.com/ilmiynashr/journal-payments/internal/payment/app"
	"github.com/ilmiynashr/journal-payments/internal/payment/domain"
	"github.com/ilmiynashr/journal-payments/internal/payment/middleware"
	"github.com/ilmiynashr/journal-payments/internal/payment/repository/postgres"
	"github.com/ilmiynashr/journal-payments/internal/platform/config"
	"github.com/ilmiynashr/journal-payments/internal/platform/database"
	"github.com/ilmiynashr/journal-payments/internal/platform/idempotency"
	"github.com/ilmiynashr/journal-payments/internal/platform/logger"
	"github.com/ilmiynashr/journal-payments/internal/platform/messagebroker"
)

const (
	serviceName     = "payment-service"
	shutdownTimeout = 15 * time.Second
)

// httpLogger is a middleware that logs HTTP requests using slog.
func httpLogger(logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			requestID := chiMiddleware.GetReqID(r.Context())

			next.ServeHTTP(ww, r)

			duration := time.Since(start)

			logger.LogAttrs(r.Context(), slog.LevelInfo, "HTTP request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status_code", ww.Status()),
				slog.Int64("duration_ms", duration.Milliseconds()),
				slog.String("request_id", requestID),
				slog.String("remote_ip", r.RemoteAddr),
			)
		}
		return http.HandlerFunc(fn)
	}
}

func main() {
	mainCtx, mainCancel := context.WithCancel(context.Background())
	defer mainCancel()

	cfg, err := config.Load(serviceName)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	appLogger := logger.New(cfg.LogLevel)
	appLogger = appLogger.With("service", serviceName)

	appLogger.Info("Payment service starting...",
		"http_port", cfg.PaymentServicePort,
		"metrics_port", cfg.PaymentServiceMetricsPort,
		"log_level", cfg.LogLevel,
	)

	dbPool, err := database.NewDBPool(mainCtx, cfg.PostgresDSN)
	if err != nil {
		appLogger.Error("Failed to connect to PostgreSQL", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()
	appLogger.Info("Successfully connected to PostgreSQL")

	natsClient, err := messagebroker.NewNatsClient(cfg.NATSUrl, serviceName, appLogger)
	if err != nil {
		appLogger.Error("Failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer natsClient.Close()
	appLogger.Info("Successfully connected to NATS")

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(mainCtx).Err(); err != nil {
		appLogger.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()
	appLogger.Info("Successfully connected to Redis")

	idemStore := idempotency.NewStore(redisClient, time.Duration(cfg.IdempotencyTTLMinutes)*time.Minute)

	gatewayHTTPClient := &http.Client{Timeout: 30 * time.Second}
	registry := gatewayadapter.NewRegistry()
	registry.Register(domain.ProviderClick, gatewayadapter.NewClickAdapter(
		appLogger, cfg.ClickAPIURL, cfg.ClickCheckoutURL,
		cfg.ClickMerchantID, cfg.ClickServiceID, cfg.ClickSecretKey,
		cfg.WebhookSigningSecret, gatewayHTTPClient,
	))
	registry.Register(domain.ProviderPayme, gatewayadapter.NewPaymeAdapter(
		appLogger, cfg.PaymeAPIURL, cfg.PaymeCheckoutURL,
		cfg.PaymeMerchantID, cfg.WebhookSigningSecret, gatewayHTTPClient,
	))
	appLogger.Info("Payment gateway adapters registered", "providers", "click,payme")

	transactionRepo := postgres.NewPgTransactionRepository(dbPool, appLogger)
	paymentApp := app.NewPaymentService(transactionRepo, registry, natsClient, appLogger, cfg.DefaultCurrency)
	appLogger.Info("PaymentService initialized")

	transactionHandler := httpadapter.NewTransactionHandler(paymentApp, idemStore, appLogger)
	webhookHandler := httpadapter.NewWebhookHandler(paymentApp, appLogger)

	httpRouter := chi.NewRouter()
	httpRouter.Use(chiMiddleware.RequestID)
	httpRouter.Use(chiMiddleware.RealIP)
	httpRouter.Use(chiMiddleware.Recoverer)
	httpRouter.Use(httpLogger(appLogger))
	httpRouter.Use(httpadapter.PrometheusMetricsMiddleware)

	// Gateway callbacks authenticate with signatures, not bearer tokens.
	httpRouter.Group(func(r chi.Router) {
		webhookHandler.RegisterRoutes(r)
	})
	httpRouter.Group(func(r chi.Router) {
		r.Use(middleware.AuthMiddleware(cfg.JWTAccessSecret, appLogger))
		transactionHandler.RegisterRoutes(r)
	})

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.PaymentServicePort),
		Handler:      httpRouter,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	g, groupCtx := errgroup.WithContext(mainCtx)

	g.Go(func() error {
		appLogger.Info("HTTP server starting", "address", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error("HTTP server ListenAndServe error", "error", err)
			return err
		}
		appLogger.Info("HTTP server shut down gracefully.")
		return nil
	})

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.PaymentServiceMetricsPort),
		Handler: metricsMux,
	}

	g.Go(func() error {
		appLogger.Info("Metrics HTTP server starting", "address", metricsServer.Addr)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error("Metrics HTTP server ListenAndServe error", "error", err)
			return err
		}
		appLogger.Info("Metrics HTTP server shut down gracefully.")
		return nil
	})

	stopSignal := make(chan os.Signal, 1)
	signal.Notify(stopSignal, syscall.SIGINT, syscall.SIGTERM)

	g.Go(func() error {
		select {
		case sig := <-stopSignal:
			appLogger.Info("Received termination signal", "signal", sig.String())
			mainCancel()
			return nil
		case <-groupCtx.Done():
			return nil
		}
	})

	g.Go(func() error {
		<-groupCtx.Done()
		appLogger.Info("Initiating graceful shutdown of servers...")

		shutdownCtx, cancelShutdownTimeout := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancelShutdownTimeout()

		var shutdownErrors error

		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			appLogger.Error("Metrics HTTP server graceful shutdown failed", "error", err)
			shutdownErrors = errors.Join(shutdownErrors, fmt.Errorf("metrics http shutdown: %w", err))
		}
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			appLogger.Error("HTTP server graceful shutdown failed", "error", err)
			shutdownErrors = errors.Join(shutdownErrors, fmt.Errorf("http shutdown: %w", err))
		}
		return shutdownErrors
	})

	if err := g.Wait(); err != nil {
		appLogger.Error("Payment service exited with error", "error", err)
		os.Exit(1)
	}
	appLogger.Info("Payment service shut down.")
}
