// Package main is the entry point for the back-office payment API server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/merchware/backpay/internal/api"
	"github.com/merchware/backpay/internal/auth"
	"github.com/merchware/backpay/internal/config"
	"github.com/merchware/backpay/internal/db"
	"github.com/merchware/backpay/internal/gateway"
	"github.com/merchware/backpay/internal/health"
	"github.com/merchware/backpay/internal/idempotency"
	"github.com/merchware/backpay/internal/jobs"
	"github.com/merchware/backpay/internal/middleware"
	"github.com/merchware/backpay/internal/order"
	"github.com/merchware/backpay/internal/payment"
	"github.com/merchware/backpay/internal/token"
	"github.com/merchware/backpay/internal/tracing"
)

const serviceName = "backpay-api"

func main() {
	help := flag.Bool("help", false, "display help message")
	configPath := flag.String("config", "", "path to optional YAML config file")
	flag.Parse()

	if *help {
		fmt.Println("Backpay API Server")
		fmt.Println()
		fmt.Println("Usage: api [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	cfg, errs := config.Load(*configPath)
	if len(errs) > 0 {
		for _, err := range errs {
			fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		}
		os.Exit(1)
	}

	logger := middleware.NewLogger(cfg.Env)
	slog.SetDefault(logger)
	logger.Info("configuration loaded", "config", cfg.LogSummary())

	// Tracing
	tracingProvider, err := tracing.NewProvider(tracingConfig(cfg.Env))
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}

	// Database and repositories
	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer conn.Close()

	orders := order.NewPostgresRepository(conn, logger)
	tokens := token.NewPostgresStore(conn, logger)
	idemRepo := idempotency.NewPostgresRepository(conn)

	// Redis backs rate limiting when configured; the limiter fails open
	// without it.
	var (
		rateLimitStore middleware.RateLimitStore = middleware.NewInMemoryRateLimitStore()
		redisChecker   api.HealthChecker
		redisClient    *redis.Client
	)
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Error("invalid REDIS_URL", "error", err)
			os.Exit(1)
		}
		redisClient = redis.NewClient(opts)
		defer redisClient.Close()
		rateLimitStore = middleware.NewRedisRateLimitStore(redisClient)
		redisChecker = health.NewRedisChecker(redisClient)
	}

	// Metrics
	registry := prometheus.NewRegistry()
	mwMetrics := middleware.NewMetrics()
	if err := mwMetrics.Register(registry); err != nil {
		logger.Error("failed to register middleware metrics", "error", err)
		os.Exit(1)
	}
	paymentMetrics := payment.NewMetrics()
	if err := paymentMetrics.Register(registry); err != nil {
		logger.Error("failed to register payment metrics", "error", err)
		os.Exit(1)
	}
	jobMetrics := jobs.NewMetrics()
	if err := jobMetrics.Register(registry); err != nil {
		logger.Error("failed to register job metrics", "error", err)
		os.Exit(1)
	}

	// Payment workflow
	gatewayClient := gateway.NewHTTPClient(cfg.GatewayAPIURL, cfg.GatewayLoginID, cfg.GatewayTransactionKey, logger)
	settings := gateway.Settings{
		GatewayID:             cfg.GatewayID,
		Mode:                  gateway.TransactionMode(cfg.TransactionMode),
		StoredProfilesEnabled: cfg.StoredProfilesEnabled,
	}
	orchestrator := payment.NewOrchestrator(gatewayClient, settings, tokens, orders, logger, paymentMetrics)

	paymentHandlers := api.NewPaymentHandlers(orchestrator, orders)
	orderHandlers := api.NewOrderHandlers(orders)
	healthHandlers := api.NewHealthHandlers(api.HealthHandlersConfig{
		DBChecker:      health.NewDBChecker(conn),
		RedisChecker:   redisChecker,
		MetricsEnabled: true,
	})

	currentSecret, previousSecret := cfg.GetJWTSecrets()
	var jwtService *auth.JWTService
	if previousSecret != "" {
		jwtService = auth.NewJWTServiceWithRotation(currentSecret, previousSecret)
	} else {
		jwtService = auth.NewJWTService(currentSecret)
	}

	// Payment submission gets its own rate limit and mandatory idempotency key
	paymentRoutes := map[string]bool{"/orders/{id}/payment": true}
	submitPayment := middleware.RateLimiter(rateLimitStore, middleware.DefaultPaymentLimit(), middleware.AdminKeyFunc(), mwMetrics)(
		middleware.IdempotencyMiddleware(idemRepo, paymentRoutes)(
			http.HandlerFunc(paymentHandlers.SubmitPayment)))

	ordersHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/payment"):
			submitPayment.ServeHTTP(w, r)
		case strings.HasSuffix(r.URL.Path, "/payment-eligibility"):
			paymentHandlers.PaymentEligibility(w, r)
		case strings.HasSuffix(r.URL.Path, "/notes"):
			orderHandlers.Notes(w, r)
		default:
			orderHandlers.GetOrder(w, r)
		}
	})

	requireAdmin := middleware.RequireAdmin(jwtService)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandlers.Health)
	mux.HandleFunc("/ready", healthHandlers.Ready)
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.Handle("/orders/", requireAdmin(ordersHandler))
	mux.Handle("/customers/", requireAdmin(http.HandlerFunc(paymentHandlers.ListPaymentMethods)))

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			ctx := middleware.SetErrorCode(r.Context(), api.ErrCodeNotFound)
			api.WriteError(w, ctx, http.StatusNotFound, api.ErrCodeNotFound, "The requested resource was not found")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(`{"service":"backpay-api","version":"0.1.0"}`)); err != nil {
			slog.Error("failed to write response", "error", err)
		}
	})

	// Outer middleware chain, innermost listed last:
	// RequestID -> Tracing -> Logging -> HTTPMetrics -> CORS -> global rate limit
	handler := middleware.RequestID(
		middleware.Tracing(serviceName)(
			middleware.Logging(logger)(
				middleware.HTTPMetrics(mwMetrics)(
					middleware.CORS(corsConfig())(
						middleware.RateLimiter(rateLimitStore, middleware.DefaultGlobalLimit(), middleware.IPKeyFunc(), mwMetrics)(
							mux))))))

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Periodic cleanup of expired idempotency keys
	cleanupStop := make(chan struct{})
	go runIdempotencyCleanup(idemRepo, jobMetrics, cleanupStop)

	// Periodic removal of saved payment methods with expired cards
	sweep := token.NewExpirySweep(token.ExpirySweepConfig{
		Logger:     logger,
		JobMetrics: jobMetrics,
	}, tokens)
	if err := sweep.Start(context.Background()); err != nil {
		logger.Error("failed to start token expiry sweep", "error", err)
		os.Exit(1)
	}

	go func() {
		logger.Info("starting server", "port", cfg.Port, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	close(cleanupStop)
	sweep.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	if err := tracingProvider.Shutdown(ctx); err != nil {
		logger.Warn("failed to shut down tracing provider", "error", err)
	}

	logger.Info("server stopped")
}

// runIdempotencyCleanup deletes expired idempotency keys hourly and records
// the outcome as a background job.
func runIdempotencyCleanup(repo idempotency.Repository, metrics jobs.Reporter, stop <-chan struct{}) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	run := func() {
		start := time.Now()
		_, err := idempotency.CleanupOldKeys(repo, idempotency.DefaultExpiry)
		if metrics == nil {
			return
		}
		metrics.ObserveJobDuration(jobs.JobTypeIdempotencyCleanup, time.Since(start).Seconds())
		if err != nil {
			metrics.IncJobsTotal(jobs.JobTypeIdempotencyCleanup, jobs.StatusFailure)
			metrics.IncJobErrors(jobs.JobTypeIdempotencyCleanup, "database_error")
			return
		}
		metrics.IncJobsTotal(jobs.JobTypeIdempotencyCleanup, jobs.StatusSuccess)
	}

	run()
	for {
		select {
		case <-ticker.C:
			run()
		case <-stop:
			slog.Info("stopping idempotency cleanup")
			return
		}
	}
}

// tracingConfig builds the tracing setup from environment variables. Tracing
// stays off unless explicitly enabled.
func tracingConfig(env string) tracing.Config {
	samplingRate := 1.0
	if raw := os.Getenv("TRACING_SAMPLING_RATE"); raw != "" {
		if parsed, err := strconv.ParseFloat(raw, 64); err == nil {
			samplingRate = parsed
		}
	}
	return tracing.Config{
		ServiceName:  serviceName,
		Enabled:      os.Getenv("TRACING_ENABLED") == "true",
		Environment:  env,
		ExporterType: os.Getenv("TRACING_EXPORTER"),
		OTLPEndpoint: os.Getenv("OTLP_ENDPOINT"),
		SamplingRate: samplingRate,
		InsecureMode: env != "production",
	}
}

// corsConfig builds the CORS allowlist from CORS_ALLOWED_ORIGINS. CORS stays
// disabled when no origins are configured.
func corsConfig() middleware.CORSConfig {
	var origins []string
	for _, origin := range strings.Split(os.Getenv("CORS_ALLOWED_ORIGINS"), ",") {
		origin = strings.TrimSpace(origin)
		if origin != "" {
			origins = append(origins, origin)
		}
	}
	return middleware.CORSConfig{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Request-ID", "Idempotency-Key"},
		AllowCredentials: true,
		MaxAge:           300,
	}
}
