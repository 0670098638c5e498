package http

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tair/marketplace-listing/internal/listing/domain"
	"github.com/tair/marketplace-listing/internal/listing/usecase/command"
	"github.com/tair/marketplace-listing/internal/listing/usecase/query"
	"github.com/tair/marketplace-listing/pkg/logger"
)

// ListingHandler handles HTTP requests for listings using CQRS pattern
type ListingHandler struct {
	// Command handlers
	deleteHandler *command.DeleteProductHandler

	// Query handlers
	listHandler *query.ListProductsHandler
	getHandler  *query.GetProductHandler

	repo       domain.ProductRepository
	identity   AdminChecker
	middleware *Middleware

	requestCounter *prometheus.CounterVec
	requestLatency *prometheus.HistogramVec
	requestSummary *prometheus.SummaryVec
	totalListings  prometheus.Gauge
}

// NewListingHandler creates a new listing handler
func NewListingHandler(
	deleteHandler *command.DeleteProductHandler,
	listHandler *query.ListProductsHandler,
	getHandler *query.GetProductHandler,
	repo domain.ProductRepository,
	identity AdminChecker,
	middleware *Middleware,
) *ListingHandler {
	// Initialize Prometheus metrics
	requestCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "listing_service_requests_total",
			Help: "Total number of requests to listing service",
		},
		[]string{"method", "endpoint", "status"},
	)

	requestLatency := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "listing_service_request_duration_seconds",
			Help:    "Duration of listing service requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Summary metric for percentile calculation (p50, p90, p95, p99)
	requestSummary := prometheus.NewSummaryVec(
		prometheus.SummaryOpts{
			Name: "listing_service_request_duration_summary",
			Help: "Summary of request durations with percentiles (client-side quantiles)",
			Objectives: map[float64]float64{
				0.5:  0.05,
				0.9:  0.01,
				0.95: 0.01,
				0.99: 0.001,
			},
			MaxAge: 10 * time.Minute,
		},
		[]string{"method", "endpoint"},
	)

	totalListings := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "listing_service_total_listings",
			Help: "Total number of listings in the system",
		},
	)

	prometheus.MustRegister(requestCounter)
	prometheus.MustRegister(requestLatency)
	prometheus.MustRegister(requestSummary)
	prometheus.MustRegister(totalListings)

	return &ListingHandler{
		deleteHandler:  deleteHandler,
		listHandler:    listHandler,
		getHandler:     getHandler,
		repo:           repo,
		identity:       identity,
		middleware:     middleware,
		requestCounter: requestCounter,
		requestLatency: requestLatency,
		requestSummary: requestSummary,
		totalListings:  totalListings,
	}
}

type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// metricsMiddleware wraps handlers with Prometheus metrics
func (h *ListingHandler) metricsMiddleware(endpoint string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()

		h.requestCounter.WithLabelValues(r.Method, endpoint, strconv.Itoa(rw.statusCode)).Inc()
		h.requestLatency.WithLabelValues(r.Method, endpoint).Observe(duration)
		h.requestSummary.WithLabelValues(r.Method, endpoint).Observe(duration)
	}
}

func (h *ListingHandler) RegisterRoutes(router *mux.Router) {
	// Browsing is public; a token only adds owner context
	router.HandleFunc("/api/listings", h.metricsMiddleware("/api/listings", h.middleware.OptionalAuth(h.ListListings))).Methods("GET")
	router.HandleFunc("/api/listings/{id}", h.metricsMiddleware("/api/listings/{id}", h.GetListing)).Methods("GET")

	// Removal requires the owner or an admin
	router.HandleFunc("/api/listings/{id}", h.metricsMiddleware("/api/listings/{id}", h.middleware.Auth(h.DeleteListing))).Methods("DELETE")
}

// ListListings handles GET /api/listings
func (h *ListingHandler) ListListings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	page, _ := strconv.Atoi(q.Get("page"))
	if page < 0 {
		page = 0
	}
	limit, _ := strconv.Atoi(q.Get("limit"))

	mine := q.Get("mine") == "true"

	// Public browsing sees published listings only; owners see their drafts
	// too unless they ask otherwise.
	published := !mine
	if v := q.Get("published"); v != "" {
		published = v == "true"
	}

	params := domain.ListParams{
		Search:        q.Get("search"),
		Category:      q.Get("category"),
		County:        q.Get("county"),
		Country:       q.Get("country"),
		Sort:          domain.SortOrder(q.Get("sort")),
		Limit:         limit,
		PublishedOnly: published,
		OwnerOnly:     mine,
	}

	if mine {
		params.OwnerID, _ = r.Context().Value(UserIDKey).(string)
	}

	result, err := h.listHandler.Handle(r.Context(), query.ListProductsQuery{
		Params: params,
		Page:   page,
	})
	if err != nil {
		logger.Logger.Error().Err(err).Msg("Failed to list listings")
		respondJSON(w, statusFromError(err), Response{
			Success: false,
			Error:   err.Error(),
		})
		return
	}

	respondJSON(w, http.StatusOK, Response{
		Success: true,
		Data:    result,
	})
}

// GetListing handles GET /api/listings/{id}
func (h *ListingHandler) GetListing(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	product, err := h.getHandler.Handle(r.Context(), query.GetProductQuery{ID: vars["id"]})
	if err != nil {
		respondJSON(w, statusFromError(err), Response{
			Success: false,
			Error:   "Listing not found",
		})
		return
	}

	respondJSON(w, http.StatusOK, Response{
		Success: true,
		Data:    product,
	})
}

// DeleteListing handles DELETE /api/listings/{id}
func (h *ListingHandler) DeleteListing(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	userID, _ := r.Context().Value(UserIDKey).(string)
	role, _ := r.Context().Value(RoleKey).(string)

	// The role claim alone is not trusted for cross-owner removal; the
	// identity service confirms it.
	isAdmin := false
	if role == "admin" {
		verified, err := h.identity.IsAdmin(r.Context(), userID)
		if err != nil {
			logger.Logger.Warn().
				Err(err).
				Str("user_id", userID).
				Msg("Failed to verify admin role with identity service")
		}
		isAdmin = verified
	}

	cmd := command.DeleteProductCommand{
		ProductID:   vars["id"],
		RequesterID: userID,
		IsAdmin:     isAdmin,
	}

	if err := h.deleteHandler.Handle(r.Context(), cmd); err != nil {
		logger.Logger.Error().Err(err).Str("product_id", cmd.ProductID).Msg("Failed to delete listing")
		respondJSON(w, statusFromError(err), Response{
			Success: false,
			Error:   err.Error(),
		})
		return
	}

	h.updateListingsMetric(r)

	respondJSON(w, http.StatusOK, Response{
		Success: true,
		Message: "Listing deleted successfully",
	})
}

func (h *ListingHandler) RegisterHealthCheck(router *mux.Router, db *sql.DB) {
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := db.Ping(); err != nil {
			respondJSON(w, http.StatusServiceUnavailable, Response{
				Success: false,
				Error:   "Database unavailable",
			})
			return
		}

		respondJSON(w, http.StatusOK, Response{
			Success: true,
			Message: "Listing service is healthy",
		})
	}).Methods("GET")
}

// updateListingsMetric updates the total listings gauge
func (h *ListingHandler) updateListingsMetric(r *http.Request) {
	count, err := h.repo.Count(r.Context())
	if err == nil {
		h.totalListings.Set(float64(count))
	}
}

// statusFromError maps domain errors to HTTP status codes
func statusFromError(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidCountry):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrAuthRequired):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
