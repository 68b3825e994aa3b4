package monitor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/rickgao/market-gateway/internal/dispatch"
	"github.com/rickgao/market-gateway/internal/model"
	"github.com/rickgao/market-gateway/internal/snapshot"
)

// AssetSource fetches single assets; satisfied by *dispatch.Dispatcher.
type AssetSource interface {
	Asset(ctx context.Context, assetID string, opts dispatch.Options) (dispatch.Result[model.Asset], error)
}

// Delta is one asset's movement since the previous poll cycle.
type Delta struct {
	AssetID    string  `json:"asset_id"`
	Price      float64 `json:"price"`
	Change     float64 `json:"change"`     // absolute delta; 0 when no prior cycle
	ChangePct  float64 `json:"change_pct"` // percentage delta
	FirstCycle bool    `json:"first_cycle"`
}

// Update is what subscribers receive after each cycle.
type Update struct {
	Assets      []model.Asset    `json:"assets"`
	Deltas      map[string]Delta `json:"deltas"`
	Stale       bool             `json:"stale"`       // serving last-good after a failed fetch
	Placeholder bool             `json:"placeholder"` // no successful fetch yet
	FetchedAt   time.Time        `json:"fetched_at"`
}

// UpdateHandler receives poll cycle results.
type UpdateHandler interface {
	HandleUpdate(Update)
}

// UpdateHandlerFunc is a function adapter for UpdateHandler.
type UpdateHandlerFunc func(Update)

func (f UpdateHandlerFunc) HandleUpdate(u Update) { f(u) }

// Config holds monitor configuration.
type Config struct {
	AssetIDs    []string      // fixed asset set to keep warm
	Interval    time.Duration // poll interval (default: 30s)
	Concurrency int           // max concurrent dispatcher calls (default: 4)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		AssetIDs:    []string{"bitcoin", "ethereum", "tether", "solana"},
		Interval:    30 * time.Second,
		Concurrency: 4,
	}
}

// Monitor keeps a fixed asset set refreshed through the dispatcher.
type Monitor struct {
	cfg     Config
	source  AssetSource
	snap    *snapshot.Snapshot
	handler UpdateHandler
	logger  *slog.Logger

	mu         sync.Mutex
	prevPrices map[string]float64
	lastGood   []model.Asset

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	stopped bool
}

// New creates a Monitor. snap may be shared with the live channel.
func New(cfg Config, source AssetSource, snap *snapshot.Snapshot, handler UpdateHandler, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if len(cfg.AssetIDs) == 0 {
		cfg.AssetIDs = def.AssetIDs
	}
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}

	return &Monitor{
		cfg:        cfg,
		source:     source,
		snap:       snap,
		handler:    handler,
		logger:     logger,
		prevPrices: make(map[string]float64),
	}
}

// Start polls once immediately, then on the configured interval.
func (m *Monitor) Start(ctx context.Context) error {
	m.ctx, m.cancel = context.WithCancel(ctx)

	m.wg.Add(1)
	go m.run()

	m.logger.Info("polling monitor started",
		"assets", len(m.cfg.AssetIDs),
		"interval", m.cfg.Interval,
	)
	return nil
}

// Stop cancels the poll loop. Calling it twice is a no-op.
func (m *Monitor) Stop(ctx context.Context) error {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return nil
	}
	m.stopped = true
	m.mu.Unlock()

	if m.cancel != nil {
		m.cancel()
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info("polling monitor stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run is the main polling loop.
func (m *Monitor) run() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	// Poll immediately on start.
	m.poll()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.poll()
		}
	}
}

// poll runs one cycle: fetch every asset, compute deltas, publish.
func (m *Monitor) poll() {
	start := time.Now()
	assets := m.fetchAll()

	if len(assets) == 0 {
		m.publishFallback()
		return
	}

	m.mu.Lock()
	deltas := make(map[string]Delta, len(assets))
	for _, a := range assets {
		d := Delta{AssetID: a.ID, Price: a.PriceUSD}
		prev, ok := m.prevPrices[a.ID]
		if !ok {
			// No prior cycle for this asset: zero delta by contract.
			d.FirstCycle = true
		} else {
			d.Change = a.PriceUSD - prev
			if prev != 0 {
				d.ChangePct = d.Change / prev * 100
			}
		}
		deltas[a.ID] = d
		m.prevPrices[a.ID] = a.PriceUSD
	}
	m.lastGood = assets
	m.mu.Unlock()

	if m.snap != nil {
		m.snap.ReplaceAll(assets)
	}
	m.publish(Update{
		Assets:    assets,
		Deltas:    deltas,
		FetchedAt: time.Now(),
	})

	m.logger.Debug("poll cycle complete",
		"assets", len(assets),
		"duration", time.Since(start),
	)
}

// fetchAll fetches the configured assets with bounded concurrency.
// Individual failures are logged and skipped; an empty result means the
// whole cycle failed.
func (m *Monitor) fetchAll() []model.Asset {
	sem := make(chan struct{}, m.cfg.Concurrency)
	results := make([]model.Asset, len(m.cfg.AssetIDs))
	ok := make([]bool, len(m.cfg.AssetIDs))

	var wg sync.WaitGroup
	for i, id := range m.cfg.AssetIDs {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-m.ctx.Done():
				return
			}

			res, err := m.source.Asset(m.ctx, id, dispatch.Options{})
			if err != nil {
				m.logger.Warn("failed to poll asset", "asset", id, "error", err)
				return
			}
			results[i] = res.Data
			ok[i] = true
		}(i, id)
	}
	wg.Wait()

	assets := make([]model.Asset, 0, len(results))
	for i, a := range results {
		if ok[i] {
			assets = append(assets, a)
		}
	}
	return assets
}

// publishFallback serves the last good cycle, or the placeholder dataset
// when nothing has ever been fetched.
func (m *Monitor) publishFallback() {
	m.mu.Lock()
	lastGood := m.lastGood
	m.mu.Unlock()

	if len(lastGood) > 0 {
		m.logger.Warn("poll cycle failed, serving last good snapshot")
		m.publish(Update{
			Assets:    lastGood,
			Deltas:    zeroDeltas(lastGood),
			Stale:     true,
			FetchedAt: time.Now(),
		})
		return
	}

	m.logger.Warn("poll cycle failed with no prior data, serving placeholder")
	assets := Placeholder()
	m.publish(Update{
		Assets:      assets,
		Deltas:      zeroDeltas(assets),
		Placeholder: true,
		FetchedAt:   time.Now(),
	})
}

func (m *Monitor) publish(u Update) {
	if m.handler != nil {
		m.handler.HandleUpdate(u)
	}
}

func zeroDeltas(assets []model.Asset) map[string]Delta {
	deltas := make(map[string]Delta, len(assets))
	for _, a := range assets {
		deltas[a.ID] = Delta{AssetID: a.ID, Price: a.PriceUSD}
	}
	return deltas
}
