package health

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/tair/marketplace-listing/api-gateway/config"
	"github.com/tair/marketplace-listing/pkg/logger"
)

// InstanceHealth is the probe result for one service instance.
type InstanceHealth struct {
	URL     string        `json:"url"`
	Status  string        `json:"status"` // healthy, unhealthy
	Latency time.Duration `json:"latency_ms"`
	Error   string        `json:"error,omitempty"`
}

// ServiceHealth aggregates the instance probes of one marketplace service.
// A service with at least one healthy instance is still routable.
type ServiceHealth struct {
	Name      string           `json:"name"`
	Status    string           `json:"status"` // healthy, degraded, unhealthy
	Instances []InstanceHealth `json:"instances"`
	Timestamp time.Time        `json:"timestamp"`
}

// GatewayHealth represents the overall gateway health
type GatewayHealth struct {
	Gateway  string                   `json:"gateway"`
	Status   string                   `json:"status"` // healthy, degraded, unhealthy
	Services map[string]ServiceHealth `json:"services"`
	Uptime   time.Duration            `json:"uptime_seconds"`
}

// HealthChecker probes every configured instance of the listing and
// identity services.
type HealthChecker struct {
	config    *config.GatewayConfig
	client    *http.Client
	startTime time.Time
}

// NewHealthChecker creates a new health checker
func NewHealthChecker(cfg *config.GatewayConfig) *HealthChecker {
	return &HealthChecker{
		config: cfg,
		client: &http.Client{
			Timeout: 5 * time.Second,
		},
		startTime: time.Now(),
	}
}

// checkInstance probes one instance's health endpoint.
func (h *HealthChecker) checkInstance(ctx context.Context, instanceURL, healthPath string) InstanceHealth {
	start := time.Now()
	result := InstanceHealth{URL: instanceURL}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, instanceURL+healthPath, nil)
	if err != nil {
		result.Status = "unhealthy"
		result.Error = fmt.Sprintf("Failed to create request: %v", err)
		result.Latency = time.Since(start)
		return result
	}

	resp, err := h.client.Do(req)
	if err != nil {
		result.Status = "unhealthy"
		result.Error = fmt.Sprintf("Failed to reach instance: %v", err)
		result.Latency = time.Since(start)
		return result
	}
	defer resp.Body.Close()

	result.Latency = time.Since(start)

	if resp.StatusCode == http.StatusOK {
		result.Status = "healthy"
	} else {
		result.Status = "unhealthy"
		result.Error = fmt.Sprintf("Unexpected status code: %d", resp.StatusCode)
	}

	return result
}

// CheckService probes every instance of a service concurrently.
func (h *HealthChecker) CheckService(ctx context.Context, name string, svc config.ServiceConfig) ServiceHealth {
	instances := make([]InstanceHealth, len(svc.Instances))
	var wg sync.WaitGroup

	for i, instanceURL := range svc.Instances {
		wg.Add(1)
		go func(i int, url string) {
			defer wg.Done()
			instances[i] = h.checkInstance(ctx, url, svc.HealthCheck)
		}(i, instanceURL)
	}
	wg.Wait()

	healthy := 0
	for _, inst := range instances {
		if inst.Status == "healthy" {
			healthy++
		} else {
			logger.Logger.Warn().
				Str("service", name).
				Str("instance", inst.URL).
				Str("error", inst.Error).
				Msg("Instance health check failed")
		}
	}

	status := "unhealthy"
	switch {
	case healthy == len(instances) && len(instances) > 0:
		status = "healthy"
	case healthy > 0:
		status = "degraded"
	}

	return ServiceHealth{
		Name:      name,
		Status:    status,
		Instances: instances,
		Timestamp: time.Now(),
	}
}

// CheckAllServices checks health of all downstream services
func (h *HealthChecker) CheckAllServices(ctx context.Context) GatewayHealth {
	services := make(map[string]ServiceHealth)
	var wg sync.WaitGroup
	var mu sync.Mutex

	for name, svc := range h.config.Services {
		wg.Add(1)
		go func(n string, s config.ServiceConfig) {
			defer wg.Done()
			health := h.CheckService(ctx, n, s)

			mu.Lock()
			services[n] = health
			mu.Unlock()
		}(name, svc)
	}

	wg.Wait()

	return GatewayHealth{
		Gateway:  "api-gateway",
		Status:   h.determineOverallStatus(services),
		Services: services,
		Uptime:   time.Since(h.startTime),
	}
}

// determineOverallStatus folds per-service statuses into one gateway status.
// A degraded service still counts as routable.
func (h *HealthChecker) determineOverallStatus(services map[string]ServiceHealth) string {
	healthyCount := 0
	routableCount := 0

	for _, svc := range services {
		switch svc.Status {
		case "healthy":
			healthyCount++
			routableCount++
		case "degraded":
			routableCount++
		}
	}

	switch {
	case healthyCount == len(services):
		return "healthy"
	case routableCount > 0:
		return "degraded"
	}
	return "unhealthy"
}

// QuickCheck performs a quick health check (just gateway itself)
func (h *HealthChecker) QuickCheck() map[string]interface{} {
	return map[string]interface{}{
		"status":    "healthy",
		"gateway":   "api-gateway",
		"uptime":    time.Since(h.startTime).Seconds(),
		"timestamp": time.Now(),
	}
}
