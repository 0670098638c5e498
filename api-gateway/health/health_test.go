package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/tair/marketplace-listing/api-gateway/config"
)

func healthyServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func deadInstanceURL(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()
	return url
}

func TestCheckService_AllInstancesHealthy(t *testing.T) {
	a, b := healthyServer(t), healthyServer(t)
	checker := NewHealthChecker(&config.GatewayConfig{})

	svc := config.ServiceConfig{
		Name:        "listing-service",
		Instances:   []string{a.URL, b.URL},
		HealthCheck: "/health",
	}
	got := checker.CheckService(context.Background(), "listing", svc)

	if got.Status != "healthy" {
		t.Errorf("Status = %q, want healthy", got.Status)
	}
	if len(got.Instances) != 2 {
		t.Fatalf("len(Instances) = %d, want 2", len(got.Instances))
	}
}

func TestCheckService_OneDeadInstanceIsDegraded(t *testing.T) {
	live := healthyServer(t)
	checker := NewHealthChecker(&config.GatewayConfig{})

	svc := config.ServiceConfig{
		Name:        "listing-service",
		Instances:   []string{live.URL, deadInstanceURL(t)},
		HealthCheck: "/health",
	}
	got := checker.CheckService(context.Background(), "listing", svc)

	if got.Status != "degraded" {
		t.Errorf("Status = %q, want degraded with one live instance", got.Status)
	}
}

func TestCheckAllServices_DegradedServiceDegradesGateway(t *testing.T) {
	live := healthyServer(t)

	cfg := &config.GatewayConfig{
		Services: map[string]config.ServiceConfig{
			"listing": {
				Name:        "listing-service",
				Instances:   []string{live.URL, deadInstanceURL(t)},
				HealthCheck: "/health",
			},
			"identity": {
				Name:        "identity-service",
				Instances:   []string{live.URL},
				HealthCheck: "/health",
			},
		},
	}
	checker := NewHealthChecker(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	got := checker.CheckAllServices(ctx)
	if got.Status != "degraded" {
		t.Errorf("gateway Status = %q, want degraded", got.Status)
	}
	if got.Services["identity"].Status != "healthy" {
		t.Errorf("identity Status = %q, want healthy", got.Services["identity"].Status)
	}
}

func TestCheckAllServices_AllDownIsUnhealthy(t *testing.T) {
	cfg := &config.GatewayConfig{
		Services: map[string]config.ServiceConfig{
			"listing": {
				Name:        "listing-service",
				Instances:   []string{deadInstanceURL(t)},
				HealthCheck: "/health",
			},
		},
	}
	checker := NewHealthChecker(cfg)

	got := checker.CheckAllServices(context.Background())
	if got.Status != "unhealthy" {
		t.Errorf("gateway Status = %q, want unhealthy", got.Status)
	}
}
