package proxy

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/tair/marketplace-listing/api-gateway/config"
)

func gatewayFor(t *testing.T, instances []string) *fiber.App {
	t.Helper()

	cfg := &config.GatewayConfig{
		Services: map[string]config.ServiceConfig{
			"listing": {
				Name:      "listing-service",
				Instances: instances,
				Timeout:   2 * time.Second,
			},
		},
	}
	rp := NewReverseProxy(cfg)

	app := fiber.New()
	app.All("/api/listings/*", func(c *fiber.Ctx) error {
		return rp.ProxyRequest(c, "listing")
	})
	app.All("/api/listings", func(c *fiber.Ctx) error {
		return rp.ProxyRequest(c, "listing")
	})
	return app
}

func TestProxyRequest_ForwardsPathQueryAndHeaders(t *testing.T) {
	var gotPath, gotQuery, gotAuth string
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":true}`))
	}))
	defer backend.Close()

	app := gatewayFor(t, []string{backend.URL})

	req := httptest.NewRequest(http.MethodGet, "/api/listings?search=bike&page=1", nil)
	req.Header.Set("Authorization", "Bearer token-123")
	resp, err := app.Test(req, 5000)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if gotPath != "/api/listings" {
		t.Errorf("backend path = %q, want /api/listings", gotPath)
	}
	if gotQuery != "search=bike&page=1" {
		t.Errorf("backend query = %q", gotQuery)
	}
	if gotAuth != "Bearer token-123" {
		t.Errorf("Authorization = %q, not forwarded", gotAuth)
	}

	var body map[string]any
	data, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(data, &body); err != nil {
		t.Fatalf("invalid backend body %q: %v", data, err)
	}
}

func TestProxyRequest_FailsOverToHealthyInstance(t *testing.T) {
	live := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer live.Close()

	dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	deadURL := dead.URL
	dead.Close()

	app := gatewayFor(t, []string{deadURL, live.URL})

	// The dead instance is first in rotation; both requests must still land.
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/listings", nil)
		resp, err := app.Test(req, 5000)
		if err != nil {
			t.Fatalf("request %d: app.Test() error = %v", i, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200 after failover", i, resp.StatusCode)
		}
	}
}

func TestProxyRequest_BackendErrorPassesThrough(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer backend.Close()

	app := gatewayFor(t, []string{backend.URL})

	req := httptest.NewRequest(http.MethodGet, "/api/listings/missing", nil)
	resp, err := app.Test(req, 5000)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want the backend's 404 untouched", resp.StatusCode)
	}
}

func TestProxyRequest_UnknownService(t *testing.T) {
	rp := NewReverseProxy(&config.GatewayConfig{Services: map[string]config.ServiceConfig{}})

	app := fiber.New()
	app.Get("/api/payments", func(c *fiber.Ctx) error {
		return rp.ProxyRequest(c, "payments")
	})

	req := httptest.NewRequest(http.MethodGet, "/api/payments", nil)
	resp, err := app.Test(req, 5000)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("status = %d, want 502 for an unknown service", resp.StatusCode)
	}
}
