package config

import "time"

// DefaultConfig returns the configuration used when streamweaver.yaml omits a
// section entirely.
func DefaultConfig() *Config {
	return &Config{
		Server: &ServerConfig{
			Host: "0.0.0.0",
			Port: 8090,
		},
		Session: &SessionConfig{
			Timeout:              1 * time.Hour,
			CleanupInterval:      5 * time.Minute,
			MaxConcurrentStreams: 1000,
			Store:                SessionStoreMemory,
		},
		Queue: &QueueConfig{
			Size:   1000,
			Policy: BackpressureDropOldest,
		},
		Heartbeat: &HeartbeatConfig{
			Enabled:  true,
			Interval: 30 * time.Second,
		},
		Replay: &ReplayConfig{
			Enabled:    true,
			BufferSize: 100,
		},
		Batch: &BatchConfig{
			Enabled:  false,
			MaxSize:  10,
			MaxDelay: 50 * time.Millisecond,
			ImmediateTypes: []string{
				"workflow_completed",
				"error",
				"workflow_interruption",
			},
		},
		Metrics: &MetricsConfig{
			Enabled: false,
			Prefix:  "streamweaver",
		},
		Compression: &CompressionConfig{
			Enabled:   false,
			Threshold: 1024,
		},
		Logging: &LoggingConfig{
			Level: "info",
		},
	}
}
