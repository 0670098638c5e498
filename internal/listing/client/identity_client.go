package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/tair/marketplace-listing/pkg/logger"
)

// IdentityClient wraps the HTTP client for the identity service
type IdentityClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewIdentityClient creates a new identity service client
func NewIdentityClient(baseURL string) *IdentityClient {
	client := &http.Client{
		Timeout:   3 * time.Second,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}

	logger.Logger.Info().
		Str("base_url", baseURL).
		Msg("Identity service client initialized")

	return &IdentityClient{
		baseURL:    baseURL,
		httpClient: client,
	}
}

type isAdminRequest struct {
	UserID string `json:"user_id"`
}

type isAdminResponse struct {
	UserID  string `json:"user_id"`
	IsAdmin bool   `json:"is_admin"`
}

// IsAdmin asks the identity service whether the given user holds the admin
// role. Unknown users are reported as non-admin.
func (c *IdentityClient) IsAdmin(ctx context.Context, userID string) (bool, error) {
	body, err := json.Marshal(isAdminRequest{UserID: userID})
	if err != nil {
		return false, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/rpc/is_admin", bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("identity service unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("identity service returned status %d", resp.StatusCode)
	}

	var out isAdminResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return false, fmt.Errorf("failed to decode response: %w", err)
	}

	return out.IsAdmin, nil
}
