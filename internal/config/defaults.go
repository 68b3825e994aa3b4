package config

import "time"

// Storage backend names.
const (
	BackendFile     = "file"
	BackendPostgres = "postgres"
)

// Default values for optional configuration fields.
const (
	DefaultStorageBackend     = BackendFile
	DefaultStorageDir         = "data"
	DefaultDBPort             = 5432
	DefaultDBSSLMode          = "prefer"
	DefaultMaxConns           = 10
	DefaultMinConns           = 2
	DefaultSweepInterval      = 60 * time.Second
	DefaultCandidateTimeout   = 10 * time.Second
	DefaultRateLimitCooldown  = 60 * time.Second
	DefaultTopAssetsTTL       = 60 * time.Second
	DefaultAssetTTL           = 60 * time.Second
	DefaultHistoryTTL         = 10 * time.Minute
	DefaultSearchTTL          = 5 * time.Minute
	DefaultMonitorInterval    = 30 * time.Second
	DefaultMonitorConcurrency = 4
	DefaultLiveURL            = "wss://ws.coincap.io/prices"
	DefaultReconnectBaseDelay = 1 * time.Second
	DefaultReconnectMaxDelay  = 60 * time.Second
	DefaultLiveBufferSize     = 256
	DefaultServerPort         = 8080
	DefaultShutdownTimeout    = 10 * time.Second
)

// DefaultMonitorAssets is the asset set kept warm when none is configured.
var DefaultMonitorAssets = []string{"bitcoin", "ethereum", "tether", "solana"}

func (c *GatewayConfig) applyDefaults() {
	// Storage defaults
	if c.Storage.Backend == "" {
		c.Storage.Backend = DefaultStorageBackend
	}
	if c.Storage.Dir == "" {
		c.Storage.Dir = DefaultStorageDir
	}
	if c.Storage.Postgres.Port == 0 {
		c.Storage.Postgres.Port = DefaultDBPort
	}
	if c.Storage.Postgres.SSLMode == "" {
		c.Storage.Postgres.SSLMode = DefaultDBSSLMode
	}
	if c.Storage.Postgres.MaxConns == 0 {
		c.Storage.Postgres.MaxConns = DefaultMaxConns
	}
	if c.Storage.Postgres.MinConns == 0 {
		c.Storage.Postgres.MinConns = DefaultMinConns
	}

	// Store defaults
	if c.Store.SweepInterval == 0 {
		c.Store.SweepInterval = DefaultSweepInterval
	}

	// Dispatcher defaults
	if c.Dispatcher.CandidateTimeout == 0 {
		c.Dispatcher.CandidateTimeout = DefaultCandidateTimeout
	}
	if c.Dispatcher.RateLimitCooldown == 0 {
		c.Dispatcher.RateLimitCooldown = DefaultRateLimitCooldown
	}
	if c.Dispatcher.TopAssetsTTL == 0 {
		c.Dispatcher.TopAssetsTTL = DefaultTopAssetsTTL
	}
	if c.Dispatcher.AssetTTL == 0 {
		c.Dispatcher.AssetTTL = DefaultAssetTTL
	}
	if c.Dispatcher.HistoryTTL == 0 {
		c.Dispatcher.HistoryTTL = DefaultHistoryTTL
	}
	if c.Dispatcher.SearchTTL == 0 {
		c.Dispatcher.SearchTTL = DefaultSearchTTL
	}

	// Monitor defaults
	if len(c.Monitor.AssetIDs) == 0 {
		c.Monitor.AssetIDs = DefaultMonitorAssets
	}
	if c.Monitor.Interval == 0 {
		c.Monitor.Interval = DefaultMonitorInterval
	}
	if c.Monitor.Concurrency == 0 {
		c.Monitor.Concurrency = DefaultMonitorConcurrency
	}

	// Live defaults
	if c.Live.URL == "" {
		c.Live.URL = DefaultLiveURL
	}
	if c.Live.ReconnectBaseDelay == 0 {
		c.Live.ReconnectBaseDelay = DefaultReconnectBaseDelay
	}
	if c.Live.ReconnectMaxDelay == 0 {
		c.Live.ReconnectMaxDelay = DefaultReconnectMaxDelay
	}
	if c.Live.BufferSize == 0 {
		c.Live.BufferSize = DefaultLiveBufferSize
	}

	// Server defaults
	if c.Server.Port == 0 {
		c.Server.Port = DefaultServerPort
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
}
