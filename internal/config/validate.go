package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}

	if !strings.HasPrefix(c.API.WSURL, "ws://") && !strings.HasPrefix(c.API.WSURL, "wss://") {
		return fmt.Errorf("api.ws_url must be a websocket URL, got %q", c.API.WSURL)
	}

	if c.ColeDB.Root == "" {
		return errors.New("coledb.root is required")
	}
	if c.ColeDB.ChunkSize < 2 {
		return fmt.Errorf("coledb.chunk_size must be >= 2, got %d", c.ColeDB.ChunkSize)
	}

	// The database section is optional (collector-only deployments);
	// when present it must be complete.
	if c.Database.Host != "" {
		if err := c.Database.validate("database"); err != nil {
			return err
		}
	}

	if c.Collector.MaxMarkets < 0 {
		return errors.New("collector.max_markets must be >= 0")
	}

	if c.Archiver.BatchSize < 1 {
		return errors.New("archiver.batch_size must be >= 1")
	}
	if c.Archiver.Concurrency < 1 {
		return errors.New("archiver.concurrency must be >= 1")
	}

	if c.S3.Enabled && c.S3.Bucket == "" {
		return errors.New("s3.bucket is required when s3.enabled")
	}

	if c.Health.Port < 1 || c.Health.Port > 65535 {
		return fmt.Errorf("health.port must be between 1 and 65535, got %d", c.Health.Port)
	}

	return nil
}

func (db *DBConfig) validate(prefix string) error {
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
