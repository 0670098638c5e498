package config

import (
	"os"
	"strings"
	"time"
)

// ServiceConfig holds configuration for a backend service
type ServiceConfig struct {
	Name        string
	BaseURL     string
	Instances   []string
	Timeout     time.Duration
	HealthCheck string
}

// GatewayConfig holds the main gateway configuration
type GatewayConfig struct {
	Port      string
	JWTSecret string
	Services  map[string]ServiceConfig
}

// LoadConfig loads the gateway configuration
func LoadConfig() *GatewayConfig {
	return &GatewayConfig{
		Port:      getEnv("GATEWAY_PORT", "8000"),
		JWTSecret: getEnv("JWT_SECRET", "your-secret-key-change-in-production"),
		Services: map[string]ServiceConfig{
			"listing": {
				Name:        "listing-service",
				BaseURL:     getEnv("LISTING_SERVICE_URL", "http://localhost:8080"),
				Instances:   getInstances("LISTING_SERVICE_INSTANCES", "LISTING_SERVICE_URL", "http://localhost:8080"),
				Timeout:     30 * time.Second,
				HealthCheck: "/health",
			},
			"identity": {
				Name:        "identity-service",
				BaseURL:     getEnv("IDENTITY_SERVICE_URL", "http://localhost:8081"),
				Instances:   getInstances("IDENTITY_SERVICE_INSTANCES", "IDENTITY_SERVICE_URL", "http://localhost:8081"),
				Timeout:     30 * time.Second,
				HealthCheck: "/health",
			},
		},
	}
}

// getInstances reads a comma-separated instance list, falling back to the
// single base URL when no explicit list is configured.
func getInstances(listKey, urlKey, defaultURL string) []string {
	if raw := os.Getenv(listKey); raw != "" {
		parts := strings.Split(raw, ",")
		instances := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				instances = append(instances, trimmed)
			}
		}
		if len(instances) > 0 {
			return instances
		}
	}
	return []string{getEnv(urlKey, defaultURL)}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
