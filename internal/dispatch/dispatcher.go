package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/rickgao/market-gateway/internal/model"
	"github.com/rickgao/market-gateway/internal/provider"
	"github.com/rickgao/market-gateway/internal/registry"
	"github.com/rickgao/market-gateway/internal/store"
)

// Errors
var (
	ErrProviderDisabled = errors.New("provider is disabled")
	ErrNoProviders      = errors.New("no enabled providers")
)

// ExhaustedError is returned when every candidate provider failed. It
// carries the last underlying failure.
type ExhaustedError struct {
	Op      string
	LastErr error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("all providers exhausted for %s: %v", e.Op, e.LastErr)
}

func (e *ExhaustedError) Unwrap() error { return e.LastErr }

// AdapterFactory builds an adapter for a provider configuration, or nil
// when no adapter is known for the id.
type AdapterFactory func(cfg registry.ProviderConfig) provider.Adapter

// Config holds dispatcher configuration.
type Config struct {
	CandidateTimeout  time.Duration // per-provider attempt timeout
	RateLimitCooldown time.Duration // skip window when provider gives no Retry-After

	TopAssetsTTL time.Duration
	AssetTTL     time.Duration
	HistoryTTL   time.Duration
	SearchTTL    time.Duration
}

// DefaultConfig returns sensible defaults. Live prices get short TTLs,
// slow-moving history gets longer ones.
func DefaultConfig() Config {
	return Config{
		CandidateTimeout:  10 * time.Second,
		RateLimitCooldown: 60 * time.Second,
		TopAssetsTTL:      60 * time.Second,
		AssetTTL:          60 * time.Second,
		HistoryTTL:        10 * time.Minute,
		SearchTTL:         5 * time.Minute,
	}
}

// Options modify a single dispatch call.
type Options struct {
	// ForceFresh bypasses the cache read (the result is still written
	// through).
	ForceFresh bool

	// Provider pins the call to one provider id instead of the fallback
	// chain. The provider must be enabled.
	Provider string
}

// Result wraps dispatched data with its origin.
type Result[T any] struct {
	Data             T
	SourceProviderID string
	ServedFromCache  bool
}

// envelope is the cached form of a result, so cache hits can restore the
// original source provider.
type envelope[T any] struct {
	Provider string `json:"provider"`
	Data     T      `json:"data"`
}

// Dispatcher orchestrates cache, registry, and adapters.
type Dispatcher struct {
	cfg     Config
	cache   *store.Store
	reg     registry.Registry
	factory AdapterFactory
	logger  *slog.Logger
	now     func() time.Time

	sf singleflight.Group

	mu        sync.Mutex
	limiters  map[string]*rate.Limiter
	skipUntil map[string]time.Time // providers in a rate-limit cooldown
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithClock overrides the time source (used in tests).
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

// New creates a Dispatcher.
func New(cfg Config, cache *store.Store, reg registry.Registry, factory AdapterFactory, logger *slog.Logger, opts ...Option) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.CandidateTimeout <= 0 {
		cfg.CandidateTimeout = DefaultConfig().CandidateTimeout
	}
	if cfg.RateLimitCooldown <= 0 {
		cfg.RateLimitCooldown = DefaultConfig().RateLimitCooldown
	}

	d := &Dispatcher{
		cfg:       cfg,
		cache:     cache,
		reg:       reg,
		factory:   factory,
		logger:    logger,
		now:       time.Now,
		limiters:  make(map[string]*rate.Limiter),
		skipUntil: make(map[string]time.Time),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// -----------------------------------------------------------------------------
// Typed operations
// -----------------------------------------------------------------------------

// TopAssets returns up to limit assets ordered by market cap.
func (d *Dispatcher) TopAssets(ctx context.Context, limit int, opts Options) (Result[[]model.Asset], error) {
	return execute(ctx, d, registry.EndpointTopAssets, "limit="+strconv.Itoa(limit), d.cfg.TopAssetsTTL, opts,
		func(ctx context.Context, a provider.Adapter) ([]model.Asset, error) {
			return a.FetchTopAssets(ctx, limit)
		})
}

// History returns the series for one asset over the last days days.
func (d *Dispatcher) History(ctx context.Context, assetID string, days int, opts Options) (Result[model.History], error) {
	params := "id=" + assetID + "&days=" + strconv.Itoa(days)
	return execute(ctx, d, registry.EndpointHistory, params, d.cfg.HistoryTTL, opts,
		func(ctx context.Context, a provider.Adapter) (model.History, error) {
			return a.FetchHistory(ctx, assetID, days)
		})
}

// Asset returns a single asset by id.
func (d *Dispatcher) Asset(ctx context.Context, assetID string, opts Options) (Result[model.Asset], error) {
	return execute(ctx, d, registry.EndpointAsset, "id="+assetID, d.cfg.AssetTTL, opts,
		func(ctx context.Context, a provider.Adapter) (model.Asset, error) {
			return a.FetchAsset(ctx, assetID)
		})
}

// Search returns assets matching query.
func (d *Dispatcher) Search(ctx context.Context, query string, opts Options) (Result[[]model.Asset], error) {
	params := "q=" + strings.ToLower(strings.TrimSpace(query))
	return execute(ctx, d, registry.EndpointSearch, params, d.cfg.SearchTTL, opts,
		func(ctx context.Context, a provider.Adapter) ([]model.Asset, error) {
			return a.SearchAssets(ctx, query)
		})
}

// -----------------------------------------------------------------------------
// Core execution path
// -----------------------------------------------------------------------------

// execute implements the dispatch algorithm for one operation.
func execute[T any](ctx context.Context, d *Dispatcher, op, params string, ttl time.Duration, opts Options, fetch func(context.Context, provider.Adapter) (T, error)) (Result[T], error) {
	key := cacheKey(op, params, opts.Provider)

	if !opts.ForceFresh {
		var env envelope[T]
		if d.cache.Get(key, &env) {
			return Result[T]{
				Data:             env.Data,
				SourceProviderID: env.Provider,
				ServedFromCache:  true,
			}, nil
		}
	}

	// Collapse identical concurrent misses into one upstream call.
	v, err, _ := d.sf.Do(key, func() (any, error) {
		return fetchWithFallback(ctx, d, op, key, ttl, opts, fetch)
	})
	if err != nil {
		return Result[T]{}, err
	}
	return v.(Result[T]), nil
}

// fetchWithFallback walks the candidate chain strictly in priority order:
// a slow provider finishes or times out before the next is tried.
func fetchWithFallback[T any](ctx context.Context, d *Dispatcher, op, key string, ttl time.Duration, opts Options, fetch func(context.Context, provider.Adapter) (T, error)) (Result[T], error) {
	candidates, err := d.candidates(opts)
	if err != nil {
		return Result[T]{}, err
	}

	var lastErr error
	for _, cfg := range candidates {
		if reason, skip := d.shouldSkip(cfg); skip {
			d.logger.Debug("skipping provider", "op", op, "provider", cfg.ID, "reason", reason)
			if lastErr == nil {
				lastErr = fmt.Errorf("provider %s skipped: %s", cfg.ID, reason)
			}
			continue
		}

		adapter := d.factory(cfg)
		if adapter == nil {
			d.logger.Warn("no adapter for provider", "provider", cfg.ID)
			continue
		}

		// Detach from the caller so an abandoned request still completes
		// and populates the cache; keep a per-candidate timeout.
		attemptCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.cfg.CandidateTimeout)
		data, err := fetch(attemptCtx, adapter)
		cancel()

		if err != nil {
			lastErr = err
			if provider.IsRateLimited(err) {
				d.markRateLimited(cfg.ID, err)
			}
			d.logger.Warn("provider attempt failed",
				"op", op,
				"provider", cfg.ID,
				"error", err,
			)
			continue
		}

		if err := d.reg.RecordUse(context.WithoutCancel(ctx), cfg.ID); err != nil {
			d.logger.Warn("failed to record provider use", "provider", cfg.ID, "error", err)
		}

		env := envelope[T]{Provider: cfg.ID, Data: data}
		if err := d.cache.Set(key, env, ttl); err != nil {
			d.logger.Warn("failed to cache result", "key", key, "error", err)
		}

		return Result[T]{Data: data, SourceProviderID: cfg.ID}, nil
	}

	if lastErr == nil {
		lastErr = ErrNoProviders
	}
	return Result[T]{}, &ExhaustedError{Op: op, LastErr: lastErr}
}

// candidates resolves the provider chain for one call.
func (d *Dispatcher) candidates(opts Options) ([]registry.ProviderConfig, error) {
	if opts.Provider != "" {
		cfg, err := d.reg.Get(opts.Provider)
		if err != nil {
			return nil, err
		}
		if !cfg.Enabled {
			return nil, fmt.Errorf("%w: %s", ErrProviderDisabled, opts.Provider)
		}
		return []registry.ProviderConfig{cfg}, nil
	}

	enabled := d.reg.ListEnabled()
	if len(enabled) == 0 {
		return nil, ErrNoProviders
	}
	return enabled, nil
}

// shouldSkip applies the transient exclusion rules: rate-limit cooldown,
// exhausted quota, and the client-side request limiter.
func (d *Dispatcher) shouldSkip(cfg registry.ProviderConfig) (string, bool) {
	d.mu.Lock()
	until, limited := d.skipUntil[cfg.ID]
	d.mu.Unlock()

	if limited {
		if d.now().Before(until) {
			return "rate limit cooldown", true
		}
		d.mu.Lock()
		delete(d.skipUntil, cfg.ID)
		d.mu.Unlock()
	}

	if d.reg.QuotaExceeded(cfg.ID) {
		return "quota exhausted", true
	}

	if lim := d.limiterFor(cfg); lim != nil && !lim.Allow() {
		return "request limiter", true
	}
	return "", false
}

// markRateLimited starts a cooldown for the provider, preferring the
// upstream Retry-After hint over the configured default.
func (d *Dispatcher) markRateLimited(id string, err error) {
	cooldown := d.cfg.RateLimitCooldown
	var rl *provider.RateLimitError
	if errors.As(err, &rl) && rl.RetryAfter > 0 {
		cooldown = rl.RetryAfter
	}

	d.mu.Lock()
	d.skipUntil[id] = d.now().Add(cooldown)
	d.mu.Unlock()

	d.logger.Info("provider rate limited, cooling down", "provider", id, "cooldown", cooldown)
}

// limiterFor returns the client-side limiter for a provider, creating it on
// first use from the configured requests-per-minute budget.
func (d *Dispatcher) limiterFor(cfg registry.ProviderConfig) *rate.Limiter {
	if cfg.MaxRequestsPerMinute <= 0 {
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	lim, ok := d.limiters[cfg.ID]
	if !ok {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		lim = rate.NewLimiter(rate.Limit(float64(cfg.MaxRequestsPerMinute)/60.0), burst)
		d.limiters[cfg.ID] = lim
	}
	return lim
}

func cacheKey(op, params, override string) string {
	key := op + "?" + params
	if override != "" {
		key += "@" + override
	}
	return key
}
