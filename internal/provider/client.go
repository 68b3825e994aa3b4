package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rickgao/market-gateway/internal/registry"
)

// Client performs authenticated requests for one provider. It resolves
// endpoint path templates from the ProviderConfig and injects the credential
// at the configured location.
type Client struct {
	cfg        registry.ProviderConfig
	httpClient *http.Client
	logger     *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) { c.logger = logger }
}

// NewClient creates a request client for the given provider configuration.
func NewClient(cfg registry.ProviderConfig, opts ...ClientOption) *Client {
	c := &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Endpoint resolves the path template for the named endpoint, substituting
// {id} with assetID when present.
func (c *Client) Endpoint(name, assetID string) (string, error) {
	tmpl, ok := c.cfg.Endpoints[name]
	if !ok {
		return "", fmt.Errorf("provider %s has no endpoint %q", c.cfg.ID, name)
	}
	return strings.ReplaceAll(tmpl, "{id}", url.PathEscape(assetID)), nil
}

// Get performs a GET against path and unmarshals the JSON body into result.
// Responses are classified: 429 → *RateLimitError, other >= 400 → *APIError,
// undecodable body → *MalformedError.
func (c *Client) Get(ctx context.Context, path string, query url.Values, result any) error {
	fullURL := c.cfg.BaseURL + path
	if c.cfg.RequiresAuth && c.cfg.AuthMethod == registry.AuthQuery && c.cfg.APIKey != "" {
		if query == nil {
			query = url.Values{}
		}
		query.Set(c.cfg.AuthParam, c.cfg.APIKey)
	}
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	for k, v := range c.cfg.DefaultHeaders {
		req.Header.Set(k, v)
	}
	if c.cfg.RequiresAuth && c.cfg.AuthMethod == registry.AuthHeader && c.cfg.APIKey != "" {
		req.Header.Set(c.cfg.AuthParam, c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return &RateLimitError{
			Provider:   c.cfg.ID,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}
	if resp.StatusCode >= 400 {
		return &APIError{
			Provider:   c.cfg.ID,
			StatusCode: resp.StatusCode,
			Body:       body,
		}
	}

	if err := json.Unmarshal(body, result); err != nil {
		return &MalformedError{Provider: c.cfg.ID, Cause: err}
	}
	return nil
}

// parseRetryAfter interprets a Retry-After header given in seconds.
func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
