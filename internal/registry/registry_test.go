package registry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rickgao/market-gateway/internal/persist"
)

// memPersister is an in-memory Persister for tests.
type memPersister struct {
	mu      sync.Mutex
	docs    map[string][]byte
	failing bool
}

func newMemPersister() *memPersister {
	return &memPersister{docs: make(map[string][]byte)}
}

func (m *memPersister) Load(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.docs[key]
	if !ok {
		return nil, persist.ErrNotFound
	}
	return data, nil
}

func (m *memPersister) Save(_ context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing {
		return errors.New("save failed")
	}
	m.docs[key] = append([]byte(nil), data...)
	return nil
}

func (m *memPersister) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.docs, key)
	return nil
}

func newTestRegistry(t *testing.T) Registry {
	t.Helper()
	r, err := New(context.Background(), newMemPersister(), nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return r
}

func TestNewSeedsDefaults(t *testing.T) {
	r := newTestRegistry(t)

	providers := r.List()
	if len(providers) != 3 {
		t.Fatalf("List returned %d providers, want 3", len(providers))
	}
	if providers[0].ID != ProviderCoinGecko {
		t.Errorf("first provider = %q, want %q", providers[0].ID, ProviderCoinGecko)
	}
	if !providers[0].Builtin {
		t.Error("coingecko is not marked builtin")
	}
}

func TestNewRestoresDefaultsOnCorruptDocument(t *testing.T) {
	p := newMemPersister()
	ctx := context.Background()
	p.Save(ctx, persist.KeyProviders, []byte("not json"))

	r, err := New(ctx, p, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if len(r.List()) != 3 {
		t.Errorf("List returned %d providers after corrupt document, want 3", len(r.List()))
	}
}

func TestAddDuplicate(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	err := r.Add(ctx, ProviderConfig{ID: ProviderCoinGecko, Name: "Copy"})
	if !errors.Is(err, ErrDuplicateID) {
		t.Errorf("Add duplicate error = %v, want ErrDuplicateID", err)
	}
}

func TestDeleteProtected(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	err := r.Delete(ctx, ProviderCoinGecko)
	if !errors.Is(err, ErrProtected) {
		t.Errorf("Delete builtin error = %v, want ErrProtected", err)
	}

	// Non-builtin providers are deletable.
	if err := r.Delete(ctx, ProviderCoinCap); err != nil {
		t.Errorf("Delete coincap failed: %v", err)
	}
	if _, err := r.Get(ProviderCoinCap); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after delete error = %v, want ErrNotFound", err)
	}
}

func TestUpdatePreservesIdentity(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	err := r.Update(ctx, ProviderCoinGecko, ProviderConfig{
		ID:      "renamed",
		Name:    "Changed",
		Builtin: false,
		Enabled: true,
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	p, err := r.Get(ProviderCoinGecko)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if p.Name != "Changed" {
		t.Errorf("Name = %q, want %q", p.Name, "Changed")
	}
	if !p.Builtin {
		t.Error("Update cleared the builtin flag")
	}
}

func TestToggleEnabled(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	enabled, err := r.ToggleEnabled(ctx, ProviderCoinCap)
	if err != nil {
		t.Fatalf("ToggleEnabled failed: %v", err)
	}
	if enabled {
		t.Error("ToggleEnabled = true after disabling, want false")
	}

	enabled, err = r.ToggleEnabled(ctx, ProviderCoinCap)
	if err != nil {
		t.Fatalf("ToggleEnabled failed: %v", err)
	}
	if !enabled {
		t.Error("ToggleEnabled = false after re-enabling, want true")
	}
}

func TestListEnabledOrdering(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	// Same priority as coincap; registered later, so it sorts after it.
	if err := r.Add(ctx, ProviderConfig{ID: "custom", Enabled: true, Priority: 2}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if _, err := r.ToggleEnabled(ctx, ProviderCoinPaprika); err != nil {
		t.Fatalf("ToggleEnabled failed: %v", err)
	}

	enabled := r.ListEnabled()
	wantIDs := []string{ProviderCoinGecko, ProviderCoinCap, "custom"}
	if len(enabled) != len(wantIDs) {
		t.Fatalf("ListEnabled returned %d providers, want %d", len(enabled), len(wantIDs))
	}
	for i, want := range wantIDs {
		if enabled[i].ID != want {
			t.Errorf("enabled[%d].ID = %q, want %q", i, enabled[i].ID, want)
		}
	}
}

func TestMutationsPersist(t *testing.T) {
	p := newMemPersister()
	ctx := context.Background()

	r, err := New(ctx, p, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := r.Add(ctx, ProviderConfig{ID: "custom", Enabled: true, Priority: 9}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	// A second registry over the same persister sees the addition.
	r2, err := New(ctx, p, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if _, err := r2.Get("custom"); err != nil {
		t.Errorf("Get on reloaded registry failed: %v", err)
	}
}

func TestFailedSaveRollsBack(t *testing.T) {
	p := newMemPersister()
	ctx := context.Background()

	r, err := New(ctx, p, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	p.mu.Lock()
	p.failing = true
	p.mu.Unlock()

	if err := r.Add(ctx, ProviderConfig{ID: "custom"}); err == nil {
		t.Fatal("Add succeeded with failing persister, want error")
	}
	if _, err := r.Get("custom"); !errors.Is(err, ErrNotFound) {
		t.Errorf("provider visible after failed save, Get error = %v, want ErrNotFound", err)
	}
}

func TestResetToDefaults(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	if err := r.Add(ctx, ProviderConfig{ID: "custom"}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := r.SetCredential(ctx, ProviderCoinGecko, "secret"); err != nil {
		t.Fatalf("SetCredential failed: %v", err)
	}

	if err := r.ResetToDefaults(ctx); err != nil {
		t.Fatalf("ResetToDefaults failed: %v", err)
	}

	if len(r.List()) != 3 {
		t.Errorf("List returned %d providers after reset, want 3", len(r.List()))
	}
	p, err := r.Get(ProviderCoinGecko)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if p.APIKey != "" {
		t.Error("credential survived reset")
	}
}

func TestQuotaWindow(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	r, err := New(context.Background(), newMemPersister(), nil, WithClock(clock))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	ctx := context.Background()

	if err := r.Add(ctx, ProviderConfig{
		ID:      "limited",
		Enabled: true,
		Quota:   Quota{Max: 2, Window: time.Hour},
	}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	if r.QuotaExceeded("limited") {
		t.Error("QuotaExceeded = true before any use")
	}

	r.RecordUse(ctx, "limited")
	r.RecordUse(ctx, "limited")
	if !r.QuotaExceeded("limited") {
		t.Error("QuotaExceeded = false at the limit, want true")
	}

	// Window elapses: allowance comes back.
	now = now.Add(2 * time.Hour)
	if r.QuotaExceeded("limited") {
		t.Error("QuotaExceeded = true after window elapsed, want false")
	}

	// Next use restarts the counter.
	r.RecordUse(ctx, "limited")
	p, _ := r.Get("limited")
	if p.Quota.Used != 1 {
		t.Errorf("Quota.Used = %d after window roll, want 1", p.Quota.Used)
	}
}

func TestQuotaUnlimited(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	// coincap has Max 0, meaning unlimited.
	for range 100 {
		r.RecordUse(ctx, ProviderCoinCap)
	}
	if r.QuotaExceeded(ProviderCoinCap) {
		t.Error("QuotaExceeded = true for unlimited provider")
	}
}
