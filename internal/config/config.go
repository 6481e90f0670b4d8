package config

import "time"

// Config is the root configuration shared by the collector and
// archiver services. Exchange credentials are not configured here:
// they come from the environment (see internal/auth).
type Config struct {
	Instance  InstanceConfig  `yaml:"instance"`
	API       APIConfig       `yaml:"api"`
	ColeDB    ColeDBConfig    `yaml:"coledb"`
	Redis     RedisConfig     `yaml:"redis"`
	Database  DBConfig        `yaml:"database"`
	Collector CollectorConfig `yaml:"collector"`
	Archiver  ArchiverConfig  `yaml:"archiver"`
	S3        S3Config        `yaml:"s3"`
	Health    HealthConfig    `yaml:"health"`
}

// InstanceConfig identifies this service instance.
type InstanceConfig struct {
	ID string `yaml:"id"`
	AZ string `yaml:"az"`
}

// APIConfig holds exchange API settings.
type APIConfig struct {
	WSURL      string        `yaml:"ws_url"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
}

// ColeDBConfig holds the on-disk orderbook store settings.
type ColeDBConfig struct {
	Root      string `yaml:"root"`
	ChunkSize int    `yaml:"chunk_size"`
}

// RedisConfig holds the quote cache connection. The cache is off
// unless enabled; a collector without redis still stores everything.
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	QuoteTTL time.Duration `yaml:"quote_ttl"`
}

// DBConfig holds the postgres connection for the archiver.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// CollectorConfig holds live collection settings.
type CollectorConfig struct {
	// RefreshInterval is how often the subscribed market set is
	// rediscovered.
	RefreshInterval time.Duration `yaml:"refresh_interval"`
	// RetryDelay is the pause before re-running collection after a
	// failure.
	RetryDelay time.Duration `yaml:"retry_delay"`
	// MaxMarkets caps the subscription size; 0 means no cap.
	MaxMarkets int `yaml:"max_markets"`
	// Fills also subscribes to our own fills.
	Fills bool `yaml:"fills"`
	// PollInterval enables the REST snapshot poller as a backup
	// source; 0 disables it.
	PollInterval time.Duration `yaml:"poll_interval"`
}

// ArchiverConfig holds trade/fill backfill settings.
type ArchiverConfig struct {
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	Concurrency   int           `yaml:"concurrency"`
}

// S3Config holds remote store sync settings.
type S3Config struct {
	Enabled bool   `yaml:"enabled"`
	Bucket  string `yaml:"bucket"`
	Workers int    `yaml:"workers"`
}

// HealthConfig holds the health endpoint settings.
type HealthConfig struct {
	Port int    `yaml:"port"`
	Path string `yaml:"path"`
}
