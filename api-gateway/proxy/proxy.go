package proxy

import (
	"bytes"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/tair/marketplace-listing/api-gateway/config"
	"github.com/tair/marketplace-listing/api-gateway/loadbalancer"
	"github.com/tair/marketplace-listing/pkg/logger"
)

const defaultTimeout = 30 * time.Second

// ReverseProxy forwards gateway requests to the listing and identity
// service instances, balancing across each service's instance pool.
type ReverseProxy struct {
	services  map[string]config.ServiceConfig
	balancers map[string]*loadbalancer.RoundRobin
	clients   map[string]*http.Client
}

// NewReverseProxy creates a proxy with one balancer and one HTTP client per
// configured service, the client carrying that service's timeout.
func NewReverseProxy(cfg *config.GatewayConfig) *ReverseProxy {
	balancers := make(map[string]*loadbalancer.RoundRobin, len(cfg.Services))
	clients := make(map[string]*http.Client, len(cfg.Services))

	for name, svc := range cfg.Services {
		balancers[name] = loadbalancer.NewRoundRobin(svc.Instances)

		timeout := svc.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		clients[name] = &http.Client{Timeout: timeout}
	}

	return &ReverseProxy{
		services:  cfg.Services,
		balancers: balancers,
		clients:   clients,
	}
}

// ProxyRequest forwards the request to the service's next instance. A
// transport failure puts the instance into cooldown and the request is
// retried once on another instance; backend HTTP errors are passed through
// untouched.
func (p *ReverseProxy) ProxyRequest(c *fiber.Ctx, serviceName string) error {
	svc, ok := p.services[serviceName]
	lb := p.balancers[serviceName]
	if !ok || lb == nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "Unknown service: " + serviceName,
		})
	}

	attempts := len(svc.Instances)
	if attempts > 2 {
		attempts = 2
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		instance := lb.Next()
		if instance == "" {
			break
		}

		logger.Logger.Debug().
			Str("service", serviceName).
			Str("instance", instance).
			Str("path", c.Path()).
			Int("attempt", attempt).
			Msg("Forwarding to instance")

		resp, err := p.forward(c, serviceName, instance)
		if err != nil {
			lb.MarkFailed(instance)
			lastErr = err
			logger.Logger.Warn().
				Err(err).
				Str("service", serviceName).
				Str("instance", instance).
				Msg("Instance unreachable")
			continue
		}

		return p.respond(c, resp)
	}

	details := "no instances available"
	if lastErr != nil {
		details = lastErr.Error()
	}
	return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
		"error":   "Failed to reach backend service",
		"service": serviceName,
		"details": details,
	})
}

// forward executes the proxied request against one instance.
func (p *ReverseProxy) forward(c *fiber.Ctx, serviceName, instance string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(
		c.UserContext(),
		c.Method(),
		buildTargetURL(c, instance),
		bytes.NewReader(c.Body()),
	)
	if err != nil {
		return nil, err
	}

	copyRequestHeaders(c, req)

	return p.clients[serviceName].Do(req)
}

// respond copies the backend response onto the fiber context.
func (p *ReverseProxy) respond(c *fiber.Ctx, resp *http.Response) error {
	defer resp.Body.Close()

	for key, values := range resp.Header {
		if strings.EqualFold(key, "Content-Length") {
			continue
		}
		for _, value := range values {
			c.Set(key, value)
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": "Failed to read backend response",
		})
	}

	c.Status(resp.StatusCode)
	return c.Send(body)
}

// Balancer exposes a service's load balancer (for stats).
func (p *ReverseProxy) Balancer(serviceName string) *loadbalancer.RoundRobin {
	return p.balancers[serviceName]
}

// buildTargetURL joins the instance base URL with the request path and query.
func buildTargetURL(c *fiber.Ctx, instance string) string {
	target := instance + string(c.Request().URI().Path())
	if query := string(c.Request().URI().QueryString()); query != "" {
		target += "?" + query
	}
	return target
}

// copyRequestHeaders copies request headers onto the outgoing request,
// adding the forwarding headers the services log against.
func copyRequestHeaders(c *fiber.Ctx, req *http.Request) {
	c.Request().Header.VisitAll(func(key, value []byte) {
		if strings.EqualFold(string(key), "host") {
			return
		}
		req.Header.Set(string(key), string(value))
	})

	req.Header.Set("X-Forwarded-For", c.IP())
	req.Header.Set("X-Forwarded-Proto", c.Protocol())
	req.Header.Set("X-Forwarded-Host", c.Hostname())
}
