package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rickgao/market-gateway/internal/persist"
)

// ErrCorrupt classifies an unreadable durable snapshot. It is logged and
// swallowed during Start; the store begins empty.
var ErrCorrupt = errors.New("cache snapshot corrupt")

// DefaultSweepInterval is how often expired entries are evicted.
const DefaultSweepInterval = 60 * time.Second

// entry is a cached payload with its absolute expiry.
type entry struct {
	Payload   json.RawMessage `json:"payload"`
	ExpiresAt time.Time       `json:"expires_at"`
}

// Config holds cache store configuration.
type Config struct {
	SweepInterval time.Duration
}

// Store is a TTL key/value cache with durable snapshotting.
type Store struct {
	cfg       Config
	persister persist.Persister
	logger    *slog.Logger
	now       func() time.Time

	mu      sync.RWMutex
	entries map[string]entry

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source (used in tests).
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates a cache store. persister may be nil for a purely in-memory cache.
func New(cfg Config, persister persist.Persister, logger *slog.Logger, opts ...Option) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultSweepInterval
	}

	s := &Store{
		cfg:       cfg,
		persister: persister,
		logger:    logger,
		now:       time.Now,
		entries:   make(map[string]entry),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start loads the durable snapshot and begins the background sweep.
func (s *Store) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)

	if err := s.load(s.ctx); err != nil {
		// Corrupt or unreadable state is non-fatal: start empty.
		s.logger.Warn("discarding cache snapshot", "error", err)
	}

	s.wg.Add(1)
	go s.sweepLoop()

	s.logger.Info("cache store started",
		"entries", s.Len(),
		"sweep_interval", s.cfg.SweepInterval,
	)
	return nil
}

// Stop halts the sweep loop and flushes the snapshot.
func (s *Store) Stop(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	if err := s.Flush(ctx); err != nil {
		s.logger.Warn("failed to flush cache snapshot", "error", err)
	}
	s.logger.Info("cache store stopped")
	return nil
}

// Get unmarshals the cached payload for key into dst.
// A read past expiry counts as a miss and evicts the entry.
func (s *Store) Get(key string, dst any) bool {
	raw, ok := s.GetRaw(key)
	if !ok {
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		s.logger.Warn("cache entry undecodable, evicting", "key", key, "error", err)
		s.Remove(key)
		return false
	}
	return true
}

// GetRaw returns the cached payload bytes for key.
func (s *Store) GetRaw(key string) (json.RawMessage, bool) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}

	if !s.now().Before(e.ExpiresAt) {
		s.Remove(key)
		return nil, false
	}
	return e.Payload, true
}

// Set stores v under key for ttl. The payload is serialized once so repeated
// reads return bit-identical bytes until expiry.
func (s *Store) Set(key string, v any, ttl time.Duration) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal cache entry %q: %w", key, err)
	}
	return s.SetRaw(key, payload, ttl)
}

// SetRaw stores pre-serialized payload bytes under key for ttl.
func (s *Store) SetRaw(key string, payload json.RawMessage, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("ttl must be positive, got %v", ttl)
	}

	s.mu.Lock()
	s.entries[key] = entry{Payload: payload, ExpiresAt: s.now().Add(ttl)}
	s.mu.Unlock()
	return nil
}

// Remove evicts a single entry.
func (s *Store) Remove(key string) {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
}

// Clear evicts everything.
func (s *Store) Clear() {
	s.mu.Lock()
	s.entries = make(map[string]entry)
	s.mu.Unlock()
}

// Len returns the number of entries, including not-yet-swept expired ones.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Flush saves the current snapshot to durable storage.
func (s *Store) Flush(ctx context.Context) error {
	if s.persister == nil {
		return nil
	}

	s.mu.RLock()
	data, err := json.Marshal(s.entries)
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("marshal cache snapshot: %w", err)
	}
	return s.persister.Save(ctx, persist.KeyCacheSnapshot, data)
}

// load reads the durable snapshot, dropping entries that expired while the
// process was down.
func (s *Store) load(ctx context.Context) error {
	if s.persister == nil {
		return nil
	}

	data, err := s.persister.Load(ctx, persist.KeyCacheSnapshot)
	if errors.Is(err, persist.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	var loaded map[string]entry
	if err := json.Unmarshal(data, &loaded); err != nil {
		return fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	now := s.now()
	admitted := make(map[string]entry, len(loaded))
	for k, e := range loaded {
		if now.Before(e.ExpiresAt) {
			admitted[k] = e
		}
	}

	s.mu.Lock()
	s.entries = admitted
	s.mu.Unlock()

	s.logger.Debug("cache snapshot loaded",
		"admitted", len(admitted),
		"dropped", len(loaded)-len(admitted),
	)
	return nil
}

// sweepLoop periodically evicts expired entries.
func (s *Store) sweepLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			if evicted := s.sweep(); evicted > 0 {
				// Only re-save when something changed.
				if err := s.Flush(s.ctx); err != nil {
					s.logger.Warn("failed to save cache snapshot after sweep", "error", err)
				}
				s.logger.Debug("cache sweep complete", "evicted", evicted)
			}
		}
	}
}

// sweep removes all expired entries and reports how many were evicted.
func (s *Store) sweep() int {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for k, e := range s.entries {
		if !now.Before(e.ExpiresAt) {
			delete(s.entries, k)
			evicted++
		}
	}
	return evicted
}
