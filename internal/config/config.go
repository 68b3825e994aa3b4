package config

import (
	"time"

	"github.com/rickgao/market-gateway/internal/persist"
)

// GatewayConfig is the root configuration for a gateway instance.
type GatewayConfig struct {
	Instance   InstanceConfig   `yaml:"instance"`
	Storage    StorageConfig    `yaml:"storage"`
	Store      StoreConfig      `yaml:"store"`
	Dispatcher DispatcherConfig `yaml:"dispatcher"`
	Monitor    MonitorConfig    `yaml:"monitor"`
	Live       LiveConfig       `yaml:"live"`
	Server     ServerConfig     `yaml:"server"`
}

// InstanceConfig identifies this gateway.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// StorageConfig selects the durable document backend.
type StorageConfig struct {
	Backend  string           `yaml:"backend"` // "file" or "postgres"
	Dir      string           `yaml:"dir"`     // file backend only
	Postgres persist.DBConfig `yaml:"postgres"`
}

// StoreConfig holds cache settings.
type StoreConfig struct {
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// DispatcherConfig holds request dispatch and cache TTL settings.
type DispatcherConfig struct {
	CandidateTimeout  time.Duration `yaml:"candidate_timeout"`
	RateLimitCooldown time.Duration `yaml:"rate_limit_cooldown"`
	TopAssetsTTL      time.Duration `yaml:"top_assets_ttl"`
	AssetTTL          time.Duration `yaml:"asset_ttl"`
	HistoryTTL        time.Duration `yaml:"history_ttl"`
	SearchTTL         time.Duration `yaml:"search_ttl"`
}

// MonitorConfig holds polling monitor settings.
type MonitorConfig struct {
	AssetIDs    []string      `yaml:"asset_ids"`
	Interval    time.Duration `yaml:"interval"`
	Concurrency int           `yaml:"concurrency"`
}

// LiveConfig holds live stream settings.
type LiveConfig struct {
	URL                string        `yaml:"url"`
	ReconnectBaseDelay time.Duration `yaml:"reconnect_base_delay"`
	ReconnectMaxDelay  time.Duration `yaml:"reconnect_max_delay"`
	BufferSize         int           `yaml:"buffer_size"`
}

// ServerConfig holds HTTP API server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}
