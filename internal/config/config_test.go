package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rickgao/market-gateway/internal/persist"
)

func TestLoad(t *testing.T) {
	yaml := `
instance:
  id: test-gateway
storage:
  backend: file
  dir: /tmp/gateway-data
server:
  port: 9000
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Instance.ID != "test-gateway" {
		t.Errorf("Instance.ID = %q, want %q", cfg.Instance.ID, "test-gateway")
	}
	if cfg.Storage.Backend != "file" {
		t.Errorf("Storage.Backend = %q, want %q", cfg.Storage.Backend, "file")
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 9000)
	}
}

func TestLoadWithEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_DB_PASSWORD", "secret123")

	yaml := `
instance:
  id: test-gateway
storage:
  backend: postgres
  postgres:
    host: localhost
    name: gateway
    user: gateway
    password: ${TEST_DB_PASSWORD}
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Storage.Postgres.Password != "secret123" {
		t.Errorf("Storage.Postgres.Password = %q, want %q", cfg.Storage.Postgres.Password, "secret123")
	}
}

func TestLoadWithDefaults(t *testing.T) {
	yaml := `
instance:
  id: test-gateway
`
	path := writeTempFile(t, yaml)

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}

	// Check defaults were applied
	if cfg.Storage.Backend != DefaultStorageBackend {
		t.Errorf("Storage.Backend = %q, want default %q", cfg.Storage.Backend, DefaultStorageBackend)
	}
	if cfg.Store.SweepInterval != DefaultSweepInterval {
		t.Errorf("Store.SweepInterval = %v, want default %v", cfg.Store.SweepInterval, DefaultSweepInterval)
	}
	if cfg.Dispatcher.CandidateTimeout != DefaultCandidateTimeout {
		t.Errorf("Dispatcher.CandidateTimeout = %v, want default %v", cfg.Dispatcher.CandidateTimeout, DefaultCandidateTimeout)
	}
	if cfg.Dispatcher.HistoryTTL != DefaultHistoryTTL {
		t.Errorf("Dispatcher.HistoryTTL = %v, want default %v", cfg.Dispatcher.HistoryTTL, DefaultHistoryTTL)
	}
	if cfg.Monitor.Interval != DefaultMonitorInterval {
		t.Errorf("Monitor.Interval = %v, want default %v", cfg.Monitor.Interval, DefaultMonitorInterval)
	}
	if len(cfg.Monitor.AssetIDs) == 0 {
		t.Error("Monitor.AssetIDs is empty, want default asset set")
	}
	if cfg.Live.URL != DefaultLiveURL {
		t.Errorf("Live.URL = %q, want default %q", cfg.Live.URL, DefaultLiveURL)
	}
	if cfg.Server.Port != DefaultServerPort {
		t.Errorf("Server.Port = %d, want default %d", cfg.Server.Port, DefaultServerPort)
	}
}

func TestValidate(t *testing.T) {
	valid := func() GatewayConfig {
		cfg := GatewayConfig{Instance: InstanceConfig{ID: "test"}}
		cfg.applyDefaults()
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*GatewayConfig)
		wantErr string
	}{
		{
			name:    "valid config",
			mutate:  func(c *GatewayConfig) {},
			wantErr: "",
		},
		{
			name:    "missing instance id",
			mutate:  func(c *GatewayConfig) { c.Instance.ID = "" },
			wantErr: "instance.id is required",
		},
		{
			name:    "unknown storage backend",
			mutate:  func(c *GatewayConfig) { c.Storage.Backend = "redis" },
			wantErr: `storage.backend must be "file" or "postgres", got "redis"`,
		},
		{
			name: "postgres backend missing host",
			mutate: func(c *GatewayConfig) {
				c.Storage.Backend = BackendPostgres
			},
			wantErr: "storage.postgres.host is required",
		},
		{
			name: "min_conns exceeds max_conns",
			mutate: func(c *GatewayConfig) {
				c.Storage.Backend = BackendPostgres
				c.Storage.Postgres = persist.DBConfig{
					Host: "localhost", Name: "db", User: "user", Password: "pass",
					MaxConns: 5, MinConns: 10,
				}
			},
			wantErr: "storage.postgres.min_conns (10) cannot exceed max_conns (5)",
		},
		{
			name:    "zero monitor concurrency",
			mutate:  func(c *GatewayConfig) { c.Monitor.Concurrency = -1 },
			wantErr: "monitor.concurrency must be >= 1",
		},
		{
			name:    "port out of range",
			mutate:  func(c *GatewayConfig) { c.Server.Port = 70000 },
			wantErr: "server.port must be between 1 and 65535, got 70000",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
			} else {
				if err == nil {
					t.Errorf("Validate() expected error %q, got nil", tt.wantErr)
				} else if err.Error() != tt.wantErr {
					t.Errorf("Validate() error = %q, want %q", err.Error(), tt.wantErr)
				}
			}
		})
	}
}

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}
