package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// YAMLConfig mirrors the top-level sections of streamweaver.yaml. Every
// section is optional; anything left unset falls back to DefaultConfig.
type YAMLConfig struct {
	Server      *ServerConfig      `yaml:"server"`
	Session     *SessionConfig     `yaml:"session"`
	Queue       *QueueConfig       `yaml:"queue"`
	Heartbeat   *HeartbeatConfig   `yaml:"heartbeat"`
	Replay      *ReplayConfig      `yaml:"replay"`
	Batch       *BatchConfig       `yaml:"batch"`
	Metrics     *MetricsConfig     `yaml:"metrics"`
	Compression *CompressionConfig `yaml:"compression"`
	Logging     *LoggingConfig     `yaml:"logging"`
}

// Initialize loads, merges, and validates configuration.
//
// Steps performed:
//  1. Read streamweaver.yaml from configDir (missing file is not an error;
//     callers that want an explicit file must check it exists themselves)
//  2. Expand environment variables
//  3. Parse YAML into structs
//  4. Merge user-defined sections over DefaultConfig (non-zero user values
//     win; a zero value such as 0 or false leaves the default in place)
//  5. Validate the result
func Initialize(_ context.Context, configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)
	log.Info("initializing configuration")

	cfg, err := load(configDir)
	if err != nil {
		return nil, err
	}

	if err := NewValidator(cfg).ValidateAll(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidationFailed, err)
	}

	stats := cfg.Stats()
	log.Info("configuration initialized",
		"session_store", stats.SessionStore,
		"backpressure_policy", stats.BackpressurePolicy,
		"batching_enabled", stats.BatchingEnabled,
		"metrics_enabled", stats.MetricsEnabled)

	return cfg, nil
}

func load(configDir string) (*Config, error) {
	base := DefaultConfig()
	base.configDir = configDir

	path := filepath.Join(configDir, "streamweaver.yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Debug("no streamweaver.yaml found, using defaults", "path", path)
			return base, nil
		}
		return nil, NewLoadError(path, err)
	}

	data = ExpandEnv(data)

	var user YAMLConfig
	if err := yaml.Unmarshal(data, &user); err != nil {
		return nil, NewLoadError(path, fmt.Errorf("%w: %v", ErrInvalidYAML, err))
	}

	if err := mergeSection(&base.Server, user.Server); err != nil {
		return nil, NewLoadError(path, fmt.Errorf("merge server config: %w", err))
	}
	if err := mergeSection(&base.Session, user.Session); err != nil {
		return nil, NewLoadError(path, fmt.Errorf("merge session config: %w", err))
	}
	if err := mergeSection(&base.Queue, user.Queue); err != nil {
		return nil, NewLoadError(path, fmt.Errorf("merge queue config: %w", err))
	}
	if err := mergeSection(&base.Heartbeat, user.Heartbeat); err != nil {
		return nil, NewLoadError(path, fmt.Errorf("merge heartbeat config: %w", err))
	}
	if err := mergeSection(&base.Replay, user.Replay); err != nil {
		return nil, NewLoadError(path, fmt.Errorf("merge replay config: %w", err))
	}
	if err := mergeSection(&base.Batch, user.Batch); err != nil {
		return nil, NewLoadError(path, fmt.Errorf("merge batch config: %w", err))
	}
	if err := mergeSection(&base.Metrics, user.Metrics); err != nil {
		return nil, NewLoadError(path, fmt.Errorf("merge metrics config: %w", err))
	}
	if err := mergeSection(&base.Compression, user.Compression); err != nil {
		return nil, NewLoadError(path, fmt.Errorf("merge compression config: %w", err))
	}
	if err := mergeSection(&base.Logging, user.Logging); err != nil {
		return nil, NewLoadError(path, fmt.Errorf("merge logging config: %w", err))
	}

	return base, nil
}

// mergeSection overrides the fields of dst with any non-zero fields set in
// src, leaving dst untouched when src is nil.
func mergeSection[T any](dst **T, src *T) error {
	if src == nil {
		return nil
	}
	return mergo.Merge(*dst, src, mergo.WithOverride)
}
