package config

import (
	"errors"
	"fmt"

	"github.com/rickgao/market-gateway/internal/persist"
)

// Validate checks that all required fields are set and values are valid.
func (c *GatewayConfig) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}

	switch c.Storage.Backend {
	case BackendFile:
		if c.Storage.Dir == "" {
			return errors.New("storage.dir is required for the file backend")
		}
	case BackendPostgres:
		if err := validateDB(&c.Storage.Postgres, "storage.postgres"); err != nil {
			return err
		}
	default:
		return fmt.Errorf("storage.backend must be %q or %q, got %q",
			BackendFile, BackendPostgres, c.Storage.Backend)
	}

	if c.Store.SweepInterval < 0 {
		return errors.New("store.sweep_interval must be >= 0")
	}

	if c.Dispatcher.CandidateTimeout <= 0 {
		return errors.New("dispatcher.candidate_timeout must be > 0")
	}

	if c.Monitor.Concurrency < 1 {
		return errors.New("monitor.concurrency must be >= 1")
	}
	if c.Monitor.Interval <= 0 {
		return errors.New("monitor.interval must be > 0")
	}

	if c.Live.URL == "" {
		return errors.New("live.url is required")
	}
	if c.Live.ReconnectBaseDelay > c.Live.ReconnectMaxDelay {
		return fmt.Errorf("live.reconnect_base_delay (%s) cannot exceed reconnect_max_delay (%s)",
			c.Live.ReconnectBaseDelay, c.Live.ReconnectMaxDelay)
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}

	return nil
}

func validateDB(db *persist.DBConfig, prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
