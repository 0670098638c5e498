package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/tair/marketplace-listing/pkg/auth"
	"github.com/tair/marketplace-listing/pkg/logger"
)

type contextKey string

const (
	UserIDKey   contextKey = "user_id"
	UsernameKey contextKey = "username"
	RoleKey     contextKey = "role"
)

// AdminChecker verifies the admin role against the identity service
type AdminChecker interface {
	IsAdmin(ctx context.Context, userID string) (bool, error)
}

// Middleware holds the shared state of the auth middlewares
type Middleware struct {
	jwtSecret string
	identity  AdminChecker
}

// NewMiddleware creates the auth middleware set
func NewMiddleware(jwtSecret string, identity AdminChecker) *Middleware {
	return &Middleware{jwtSecret: jwtSecret, identity: identity}
}

// Auth validates the JWT token and puts the caller's identity on the context
func (m *Middleware) Auth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := m.claimsFromRequest(r)
		if !ok {
			respondError(w, http.StatusUnauthorized, "Invalid or missing token")
			return
		}

		ctx := context.WithValue(r.Context(), UserIDKey, claims.UserID)
		ctx = context.WithValue(ctx, UsernameKey, claims.Username)
		ctx = context.WithValue(ctx, RoleKey, claims.Role)

		next.ServeHTTP(w, r.WithContext(ctx))
	}
}

// OptionalAuth validates the JWT token if present, but doesn't require it
func (m *Middleware) OptionalAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if claims, ok := m.claimsFromRequest(r); ok {
			logger.Logger.Debug().
				Str("user_id", claims.UserID).
				Str("username", claims.Username).
				Msg("Optional auth: User identified")

			ctx := context.WithValue(r.Context(), UserIDKey, claims.UserID)
			ctx = context.WithValue(ctx, UsernameKey, claims.Username)
			ctx = context.WithValue(ctx, RoleKey, claims.Role)
			r = r.WithContext(ctx)
		}

		next.ServeHTTP(w, r)
	}
}

// Admin requires a valid token whose admin role the identity service confirms
func (m *Middleware) Admin(next http.HandlerFunc) http.HandlerFunc {
	return m.Auth(func(w http.ResponseWriter, r *http.Request) {
		userID, _ := r.Context().Value(UserIDKey).(string)

		isAdmin, err := m.identity.IsAdmin(r.Context(), userID)
		if err != nil {
			logger.Logger.Warn().
				Err(err).
				Str("user_id", userID).
				Msg("Failed to verify admin role with identity service")
			respondError(w, http.StatusUnauthorized, "Role verification failed")
			return
		}
		if !isAdmin {
			logger.Logger.Warn().
				Str("user_id", userID).
				Msg("Admin access denied")
			respondError(w, http.StatusForbidden, "Admin access required")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (m *Middleware) claimsFromRequest(r *http.Request) (*auth.Claims, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return nil, false
	}

	// Extract token from "Bearer <token>"
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		logger.Logger.Warn().Msg("Invalid authorization header format")
		return nil, false
	}

	claims, err := auth.ValidateToken(m.jwtSecret, parts[1])
	if err != nil {
		logger.Logger.Warn().Err(err).Msg("Invalid token")
		return nil, false
	}

	return claims, true
}

// Helper function for error responses
func respondError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(Response{
		Success: false,
		Error:   message,
	})
}
