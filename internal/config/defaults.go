package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultWSURL           = "wss://demo-api.kalshi.co/trade-api/ws/v2"
	DefaultAPITimeout      = 30 * time.Second
	DefaultMaxRetries      = 3
	DefaultColeDBRoot      = "coledb"
	DefaultChunkSize       = 5000
	DefaultRedisAddr       = "localhost:6379"
	DefaultQuoteTTL        = 2 * time.Minute
	DefaultDBPort          = 5432
	DefaultDBSSLMode       = "prefer"
	DefaultMaxConns        = 10
	DefaultMinConns        = 2
	DefaultRefreshInterval = 8 * time.Hour
	DefaultRetryDelay      = 30 * time.Second
	DefaultBatchSize       = 1000
	DefaultFlushInterval   = 5 * time.Second
	DefaultConcurrency     = 10
	DefaultSyncWorkers     = 8
	DefaultHealthPort      = 8080
	DefaultHealthPath      = "/health"
)

func (c *Config) applyDefaults() {
	// API defaults
	if c.API.WSURL == "" {
		c.API.WSURL = DefaultWSURL
	}
	if c.API.Timeout == 0 {
		c.API.Timeout = DefaultAPITimeout
	}
	if c.API.MaxRetries == 0 {
		c.API.MaxRetries = DefaultMaxRetries
	}

	// Store defaults
	if c.ColeDB.Root == "" {
		c.ColeDB.Root = DefaultColeDBRoot
	}
	if c.ColeDB.ChunkSize == 0 {
		c.ColeDB.ChunkSize = DefaultChunkSize
	}

	// Redis defaults apply only when the quote cache is enabled so a
	// bare config does not demand a redis server.
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			c.Redis.Addr = DefaultRedisAddr
		}
		if c.Redis.QuoteTTL == 0 {
			c.Redis.QuoteTTL = DefaultQuoteTTL
		}
	}

	// Database defaults
	if c.Database.Port == 0 {
		c.Database.Port = DefaultDBPort
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = DefaultDBSSLMode
	}
	if c.Database.MaxConns == 0 {
		c.Database.MaxConns = DefaultMaxConns
	}
	if c.Database.MinConns == 0 {
		c.Database.MinConns = DefaultMinConns
	}

	// Collector defaults
	if c.Collector.RefreshInterval == 0 {
		c.Collector.RefreshInterval = DefaultRefreshInterval
	}
	if c.Collector.RetryDelay == 0 {
		c.Collector.RetryDelay = DefaultRetryDelay
	}

	// Archiver defaults
	if c.Archiver.BatchSize == 0 {
		c.Archiver.BatchSize = DefaultBatchSize
	}
	if c.Archiver.FlushInterval == 0 {
		c.Archiver.FlushInterval = DefaultFlushInterval
	}
	if c.Archiver.Concurrency == 0 {
		c.Archiver.Concurrency = DefaultConcurrency
	}

	// S3 defaults
	if c.S3.Workers == 0 {
		c.S3.Workers = DefaultSyncWorkers
	}

	// Health defaults
	if c.Health.Port == 0 {
		c.Health.Port = DefaultHealthPort
	}
	if c.Health.Path == "" {
		c.Health.Path = DefaultHealthPath
	}
}
