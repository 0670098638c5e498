package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/tair/marketplace-listing/internal/listing/client"
	httpDelivery "github.com/tair/marketplace-listing/internal/listing/delivery/http"
	"github.com/tair/marketplace-listing/internal/listing/pager"
	"github.com/tair/marketplace-listing/internal/listing/repository"
	"github.com/tair/marketplace-listing/internal/listing/usecase/command"
	"github.com/tair/marketplace-listing/internal/listing/usecase/query"
	"github.com/tair/marketplace-listing/kafka"
	"github.com/tair/marketplace-listing/pkg/database"
	"github.com/tair/marketplace-listing/pkg/logger"
	"github.com/tair/marketplace-listing/pkg/tracing"
)

func main() {
	// Initialize logger
	serviceName := getEnv("OTEL_SERVICE_NAME", "listing-service")
	isDevelopment := getEnv("ENVIRONMENT", "development") == "development"
	logger.Init(serviceName, isDevelopment)

	logLevel := getEnv("LOG_LEVEL", "info")
	logger.SetLevel(logLevel)

	logger.Logger.Info().
		Str("service", serviceName).
		Str("environment", getEnv("ENVIRONMENT", "development")).
		Str("log_level", logLevel).
		Msg("Starting listing service")

	// Initialize tracer
	tp, err := tracing.InitTracer(serviceName)
	if err != nil {
		logger.Logger.Error().Err(err).Msg("Failed to initialize tracer")
	} else {
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tracing.Shutdown(ctx, tp); err != nil {
				logger.Logger.Error().Err(err).Msg("Failed to shutdown tracer")
			}
		}()
	}

	// Load database configuration
	dbConfig := database.Config{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnv("DB_PORT", "5432"),
		User:     getEnv("DB_USER", "postgres"),
		Password: getEnv("DB_PASSWORD", "postgres"),
		DBName:   getEnv("DB_NAME", "listingdb"),
		SSLMode:  getEnv("DB_SSLMODE", "disable"),
	}

	// Connect to database
	db, err := database.NewGormConnection(dbConfig)
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("Failed to connect to database")
	}

	sqlDB, err := db.DB()
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("Failed to get database instance")
	}
	defer sqlDB.Close()

	// Initialize repository and run migrations
	repo := repository.NewGormProductRepositoryWithTracing(db)
	if err := repo.AutoMigrate(); err != nil {
		logger.Logger.Fatal().Err(err).Msg("Failed to run migrations")
	}

	logger.Logger.Info().Msg("Database initialized successfully")

	// Kafka publisher for listing lifecycle events
	var publisher command.EventPublisher
	brokers := strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ",")
	kafkaPublisher, err := kafka.NewPublisher(brokers)
	if err != nil {
		logger.Logger.Warn().Err(err).Msg("Kafka unavailable, events disabled")
	} else {
		defer kafkaPublisher.Close()
		publisher = kafkaPublisher
	}

	// Identity service client for admin verification
	identityClient := client.NewIdentityClient(getEnv("IDENTITY_SERVICE_URL", "http://localhost:8081"))

	jwtSecret := getEnv("JWT_SECRET", "your-secret-key-change-in-production")

	// Wire up the CQRS handlers
	pageCache := pager.New(repo, pager.DefaultOptions())
	middleware := httpDelivery.NewMiddleware(jwtSecret, identityClient)
	listingHandler := httpDelivery.NewListingHandler(
		command.NewDeleteProductHandler(repo, publisher),
		query.NewListProductsHandler(pageCache),
		query.NewGetProductHandler(repo),
		repo,
		identityClient,
		middleware,
	)

	// Start HTTP server
	httpPort := getEnv("HTTP_PORT", "8080")
	server := buildHTTPServer(listingHandler, sqlDB, httpPort, serviceName)

	go func() {
		logger.Logger.Info().
			Str("port", httpPort).
			Str("metrics_endpoint", "/metrics").
			Msg("HTTP server started")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Logger.Fatal().Err(err).Msg("Failed to start HTTP server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Logger.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Logger.Error().Err(err).Msg("Forced shutdown")
	}
}

func buildHTTPServer(handler *httpDelivery.ListingHandler, db *sql.DB, port, serviceName string) *http.Server {
	router := mux.NewRouter()

	handler.RegisterRoutes(router)
	handler.RegisterHealthCheck(router, db)

	// Prometheus metrics endpoint
	router.Handle("/metrics", promhttp.Handler())

	// CORS middleware
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	return &http.Server{
		Addr:    ":" + port,
		Handler: otelhttp.NewHandler(c.Handler(router), serviceName),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
