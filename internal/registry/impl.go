package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/rickgao/market-gateway/internal/persist"
)

// registryImpl implements the Registry interface.
type registryImpl struct {
	persister persist.Persister
	logger    *slog.Logger
	now       func() time.Time

	mu        sync.RWMutex
	providers []ProviderConfig // registration order
}

// Option configures a registry.
type Option func(*registryImpl)

// WithClock overrides the time source (used in tests).
func WithClock(now func() time.Time) Option {
	return func(r *registryImpl) { r.now = now }
}

// New creates a Registry backed by persister. The persisted provider list is
// loaded if present; a missing or corrupt document falls back to the built-in
// defaults.
func New(ctx context.Context, persister persist.Persister, logger *slog.Logger, opts ...Option) (Registry, error) {
	if logger == nil {
		logger = slog.Default()
	}

	r := &registryImpl{
		persister: persister,
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}

	if err := r.load(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

// load reads the persisted provider list, falling back to defaults.
func (r *registryImpl) load(ctx context.Context) error {
	if r.persister == nil {
		r.providers = Defaults()
		return nil
	}

	data, err := r.persister.Load(ctx, persist.KeyProviders)
	if errors.Is(err, persist.ErrNotFound) {
		r.providers = Defaults()
		return r.persist(ctx)
	}
	if err != nil {
		return fmt.Errorf("load provider list: %w", err)
	}

	var loaded []ProviderConfig
	if err := json.Unmarshal(data, &loaded); err != nil {
		r.logger.Warn("provider list corrupt, restoring defaults", "error", err)
		r.providers = Defaults()
		return r.persist(ctx)
	}

	r.providers = loaded
	r.logger.Info("provider registry loaded", "providers", len(loaded))
	return nil
}

// persist writes the full provider list. Callers hold at least a read lock
// or have exclusive access during construction.
func (r *registryImpl) persist(ctx context.Context) error {
	if r.persister == nil {
		return nil
	}
	data, err := json.Marshal(r.providers)
	if err != nil {
		return fmt.Errorf("marshal provider list: %w", err)
	}
	return r.persister.Save(ctx, persist.KeyProviders, data)
}

func (r *registryImpl) List() []ProviderConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]ProviderConfig, len(r.providers))
	copy(out, r.providers)
	return out
}

func (r *registryImpl) Get(id string) (ProviderConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if i := r.index(id); i >= 0 {
		return r.providers[i], nil
	}
	return ProviderConfig{}, fmt.Errorf("%w: %s", ErrNotFound, id)
}

func (r *registryImpl) ListEnabled() []ProviderConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]ProviderConfig, 0, len(r.providers))
	for _, p := range r.providers {
		if p.Enabled {
			out = append(out, p)
		}
	}
	// Stable sort keeps registration order for equal priorities.
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority < out[j].Priority
	})
	return out
}

func (r *registryImpl) Add(ctx context.Context, cfg ProviderConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.index(cfg.ID) >= 0 {
		return fmt.Errorf("%w: %s", ErrDuplicateID, cfg.ID)
	}

	next := r.snapshot()
	next = append(next, cfg)
	return r.replace(ctx, next)
}

func (r *registryImpl) Update(ctx context.Context, id string, cfg ProviderConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.index(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	// Identity and protection flags are not updatable.
	cfg.ID = id
	cfg.Builtin = r.providers[i].Builtin

	next := r.snapshot()
	next[i] = cfg
	return r.replace(ctx, next)
}

func (r *registryImpl) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.index(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if r.providers[i].Builtin {
		return fmt.Errorf("%w: %s", ErrProtected, id)
	}

	next := r.snapshot()
	next = append(next[:i], next[i+1:]...)
	return r.replace(ctx, next)
}

func (r *registryImpl) ToggleEnabled(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.index(id)
	if i < 0 {
		return false, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	next := r.snapshot()
	next[i].Enabled = !next[i].Enabled
	if err := r.replace(ctx, next); err != nil {
		return false, err
	}
	return r.providers[i].Enabled, nil
}

func (r *registryImpl) SetCredential(ctx context.Context, id, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.index(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	next := r.snapshot()
	next[i].APIKey = key
	return r.replace(ctx, next)
}

func (r *registryImpl) ResetToDefaults(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.logger.Info("resetting provider registry to defaults")
	return r.replace(ctx, Defaults())
}

func (r *registryImpl) RecordUse(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.index(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	next := r.snapshot()
	q := &next[i].Quota
	r.rollWindow(q)
	q.Used++
	return r.replace(ctx, next)
}

func (r *registryImpl) QuotaExceeded(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i := r.index(id)
	if i < 0 {
		return false
	}
	q := r.providers[i].Quota
	if q.Max <= 0 {
		return false
	}
	if q.Window > 0 && r.now().Sub(q.WindowStart) >= q.Window {
		// Window elapsed; counter resets on next RecordUse.
		return false
	}
	return q.Used >= q.Max
}

// rollWindow resets the counter when the rolling window has elapsed.
func (r *registryImpl) rollWindow(q *Quota) {
	now := r.now()
	if q.WindowStart.IsZero() || (q.Window > 0 && now.Sub(q.WindowStart) >= q.Window) {
		q.WindowStart = now
		q.Used = 0
	}
}

// index returns the position of id, or -1. Callers hold a lock.
func (r *registryImpl) index(id string) int {
	for i, p := range r.providers {
		if p.ID == id {
			return i
		}
	}
	return -1
}

// snapshot copies the current list so mutations build a complete replacement.
func (r *registryImpl) snapshot() []ProviderConfig {
	next := make([]ProviderConfig, len(r.providers))
	copy(next, r.providers)
	return next
}

// replace persists next and only then swaps it in, so a failed save leaves
// the in-memory list untouched.
func (r *registryImpl) replace(ctx context.Context, next []ProviderConfig) error {
	prev := r.providers
	r.providers = next
	if err := r.persist(ctx); err != nil {
		r.providers = prev
		return fmt.Errorf("persist provider list: %w", err)
	}
	return nil
}
