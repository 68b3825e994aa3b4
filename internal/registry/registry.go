package registry

import (
	"context"
	"errors"
	"time"
)

// Errors
var (
	ErrNotFound    = errors.New("provider not found")
	ErrDuplicateID = errors.New("provider id already exists")
	ErrProtected   = errors.New("built-in provider cannot be deleted")
)

// AuthMethod says where a provider expects its credential.
type AuthMethod string

const (
	AuthHeader AuthMethod = "header" // credential sent as a request header
	AuthQuery  AuthMethod = "query"  // credential sent as a query parameter
)

// Quota tracks usage against a provider's allowance for the current window.
// The window is rolling: once WindowStart + Window has elapsed the counter
// resets on the next use or check.
type Quota struct {
	Used        int           `json:"used"`
	Max         int           `json:"max"` // 0 = unlimited
	Window      time.Duration `json:"window"`
	WindowStart time.Time     `json:"window_start"`
}

// ProviderConfig describes one upstream data provider.
type ProviderConfig struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	BaseURL  string `json:"base_url"`
	Enabled  bool   `json:"enabled"`
	Priority int    `json:"priority"` // lower = tried first
	Builtin  bool   `json:"builtin"`  // non-deletable

	// Endpoints maps abstract operation names to provider path templates.
	Endpoints map[string]string `json:"endpoints"`

	RequiresAuth bool       `json:"requires_auth"`
	AuthMethod   AuthMethod `json:"auth_method,omitempty"`
	AuthParam    string     `json:"auth_param,omitempty"` // header name or query key
	APIKey       string     `json:"api_key,omitempty"`

	DefaultHeaders map[string]string `json:"default_headers,omitempty"`

	// Client-side throttle applied by the dispatcher.
	MaxRequestsPerMinute int `json:"max_requests_per_minute"` // 0 = unthrottled
	Burst                int `json:"burst"`

	Quota Quota `json:"quota"`
}

// Registry provides read and mutate access to provider configuration.
type Registry interface {
	// List returns all providers in registration order.
	List() []ProviderConfig

	// Get returns a provider by id.
	Get(id string) (ProviderConfig, error)

	// ListEnabled returns enabled providers sorted ascending by priority,
	// ties broken by registration order.
	ListEnabled() []ProviderConfig

	// Add registers a new provider. Fails with ErrDuplicateID.
	Add(ctx context.Context, cfg ProviderConfig) error

	// Update replaces an existing provider's configuration.
	Update(ctx context.Context, id string, cfg ProviderConfig) error

	// Delete removes a provider. Fails with ErrProtected for built-ins.
	Delete(ctx context.Context, id string) error

	// ToggleEnabled flips the enabled flag and returns the new state.
	ToggleEnabled(ctx context.Context, id string) (bool, error)

	// SetCredential updates the stored API key.
	SetCredential(ctx context.Context, id, key string) error

	// ResetToDefaults discards all configuration and restores built-ins.
	ResetToDefaults(ctx context.Context) error

	// RecordUse counts one upstream request against the provider's quota.
	RecordUse(ctx context.Context, id string) error

	// QuotaExceeded reports whether the provider is out of allowance for
	// the current window.
	QuotaExceeded(id string) bool
}
