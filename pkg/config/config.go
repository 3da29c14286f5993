package config

import "time"

// BackpressurePolicy selects how a bounded event queue behaves once full.
type BackpressurePolicy string

const (
	// BackpressureBlock makes publishers wait for room in the queue.
	BackpressureBlock BackpressurePolicy = "block"
	// BackpressureDropOldest evicts the oldest queued event to make room.
	BackpressureDropOldest BackpressurePolicy = "drop_oldest"
	// BackpressureDropNewest discards the event that was about to be queued.
	BackpressureDropNewest BackpressurePolicy = "drop_newest"
)

// IsValid reports whether the policy is one of the known values.
func (p BackpressurePolicy) IsValid() bool {
	switch p {
	case BackpressureBlock, BackpressureDropOldest, BackpressureDropNewest:
		return true
	default:
		return false
	}
}

// SessionStoreBackend selects which SessionStore implementation to wire up.
type SessionStoreBackend string

const (
	// SessionStoreMemory keeps session state in process memory with a TTL sweeper.
	SessionStoreMemory SessionStoreBackend = "memory"
	// SessionStorePostgres persists session state in PostgreSQL.
	SessionStorePostgres SessionStoreBackend = "postgres"
)

// IsValid reports whether the backend is one of the known values.
func (b SessionStoreBackend) IsValid() bool {
	return b == SessionStoreMemory || b == SessionStorePostgres
}

// Config is the umbrella configuration object produced by Initialize and
// threaded through the service, stream engine, and transport layers.
type Config struct {
	configDir string

	Server      *ServerConfig
	Session     *SessionConfig
	Queue       *QueueConfig
	Heartbeat   *HeartbeatConfig
	Replay      *ReplayConfig
	Batch       *BatchConfig
	Metrics     *MetricsConfig
	Compression *CompressionConfig
	Logging     *LoggingConfig
}

// ServerConfig holds HTTP/WebSocket listener settings.
type ServerConfig struct {
	Host             string   `yaml:"host"`
	Port             int      `yaml:"port"`
	AllowedWSOrigins []string `yaml:"allowed_ws_origins"`
}

// SessionConfig controls session lifecycle and the storage backend.
type SessionConfig struct {
	Timeout              time.Duration       `yaml:"session_timeout"`
	CleanupInterval      time.Duration       `yaml:"cleanup_interval"`
	MaxConcurrentStreams int                 `yaml:"max_concurrent_streams" validate:"omitempty,min=1"`
	Store                SessionStoreBackend `yaml:"store"`
	Postgres             *PostgresConfig     `yaml:"postgres,omitempty"`
}

// PostgresConfig configures the remote-backed session store.
type PostgresConfig struct {
	DSN             string `yaml:"dsn_env"` // name of the env var holding the DSN
	MigrationsPath  string `yaml:"migrations_path"`
	MaxOpenConns    int    `yaml:"max_open_conns"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
}

// QueueConfig controls the bounded per-session event queue.
type QueueConfig struct {
	Size   int                `yaml:"queue_size" validate:"omitempty,min=1"`
	Policy BackpressurePolicy `yaml:"backpressure_policy"`
}

// HeartbeatConfig controls periodic keep-alive events on idle streams.
type HeartbeatConfig struct {
	Enabled  bool          `yaml:"enable_heartbeat"`
	Interval time.Duration `yaml:"heartbeat_interval"`
}

// ReplayConfig controls the per-session ring buffer used for reconnection replay.
type ReplayConfig struct {
	Enabled    bool `yaml:"enable_replay"`
	BufferSize int  `yaml:"event_buffer_size" validate:"omitempty,min=1"`
}

// BatchConfig controls event coalescing before it reaches a consumer.
type BatchConfig struct {
	Enabled        bool          `yaml:"enable_batching"`
	MaxSize        int           `yaml:"batch_size" validate:"omitempty,min=1"`
	MaxDelay       time.Duration `yaml:"batch_delay"`
	ImmediateTypes []string      `yaml:"immediate_types"`
}

// MetricsConfig controls the optional Prometheus sink.
type MetricsConfig struct {
	Enabled bool   `yaml:"enable_metrics"`
	Prefix  string `yaml:"metrics_prefix"`
}

// CompressionConfig controls gzip-compressed SSE responses.
type CompressionConfig struct {
	Enabled   bool `yaml:"enable_compression"`
	Threshold int  `yaml:"compression_threshold"`
}

// LoggingConfig controls the slog handler.
type LoggingConfig struct {
	Level string `yaml:"log_level"`
}

// ConfigDir returns the directory configuration was loaded from.
func (c *Config) ConfigDir() string {
	return c.configDir
}

// Stats summarizes the resolved configuration for a startup log line.
type Stats struct {
	SessionStore      SessionStoreBackend
	BackpressurePolicy BackpressurePolicy
	BatchingEnabled   bool
	MetricsEnabled    bool
}

// Stats returns a snapshot used for the startup banner.
func (c *Config) Stats() Stats {
	return Stats{
		SessionStore:       c.Session.Store,
		BackpressurePolicy: c.Queue.Policy,
		BatchingEnabled:    c.Batch.Enabled,
		MetricsEnabled:     c.Metrics.Enabled,
	}
}
