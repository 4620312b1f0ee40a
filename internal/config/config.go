package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// FileName is the per-track configuration file, stored inside the bus directory.
const FileName = "bus.yml"

// Supported backends
const (
	BackendFile  = "file"
	BackendRedis = "redis"
)

// Defaults applied by Validate when a field is omitted
const (
	DefaultRedisURL       = "redis://localhost:6379"
	DefaultLockTTL        = 5 * time.Minute
	DefaultStaleThreshold = 10 * time.Minute
	DefaultWatchInterval  = 5 * time.Second
	DefaultRecent         = 5
	DefaultQuorum         = 5
)

// BusConfig represents the top-level bus.yml configuration
type BusConfig struct {
	Version   string         `yaml:"version"`
	Backend   string         `yaml:"backend,omitempty"`    // "file" (default) or "redis"
	TrackName string         `yaml:"track_name,omitempty"` // Redis key namespace; defaults to the track directory name
	Redis     *RedisConfig   `yaml:"redis,omitempty"`
	Locks     *LocksConfig   `yaml:"locks,omitempty"`
	Monitor   *MonitorConfig `yaml:"monitor,omitempty"`
	Board     *BoardConfig   `yaml:"board,omitempty"`
}

// RedisConfig specifies how to reach the Redis backend
type RedisConfig struct {
	URL string `yaml:"url"`
}

// LocksConfig specifies lock table behaviour
type LocksConfig struct {
	DefaultTTL time.Duration `yaml:"default_ttl"`
}

// MonitorConfig specifies auditor thresholds and watch loop pacing
type MonitorConfig struct {
	StaleThreshold time.Duration `yaml:"stale_threshold"`
	Interval       time.Duration `yaml:"interval"`
	Recent         int           `yaml:"recent"` // how many trailing messages the report shows
}

// BoardConfig specifies the reviewing board
type BoardConfig struct {
	Quorum int      `yaml:"quorum"`
	Seats  []string `yaml:"seats,omitempty"` // when set, only these directors may write
}

// Default returns a configuration with every default applied.
func Default() *BusConfig {
	c := &BusConfig{Version: "1.0"}
	// Validate on a fresh config only fills defaults and cannot fail
	_ = c.Validate()
	return c
}

// Validate performs strict validation on the configuration and applies
// defaults for omitted sections.
func (c *BusConfig) Validate() error {
	if c.Version != "1.0" {
		return fmt.Errorf("unsupported version: %s (expected: 1.0)", c.Version)
	}

	if c.Backend == "" {
		c.Backend = BackendFile
	}
	if c.Backend != BackendFile && c.Backend != BackendRedis {
		return fmt.Errorf("invalid backend: %s (must be '%s' or '%s')", c.Backend, BackendFile, BackendRedis)
	}

	if c.Redis == nil {
		c.Redis = &RedisConfig{}
	}
	if c.Redis.URL == "" {
		c.Redis.URL = DefaultRedisURL
	}
	if u, err := url.Parse(c.Redis.URL); err != nil || (u.Scheme != "redis" && u.Scheme != "rediss") {
		return fmt.Errorf("invalid redis.url: %s (expected redis:// or rediss://)", c.Redis.URL)
	}

	if c.Locks == nil {
		c.Locks = &LocksConfig{}
	}
	if c.Locks.DefaultTTL == 0 {
		c.Locks.DefaultTTL = DefaultLockTTL
	}
	if c.Locks.DefaultTTL < 0 {
		return fmt.Errorf("locks.default_ttl must be positive, got %s", c.Locks.DefaultTTL)
	}

	if c.Monitor == nil {
		c.Monitor = &MonitorConfig{}
	}
	if c.Monitor.StaleThreshold == 0 {
		c.Monitor.StaleThreshold = DefaultStaleThreshold
	}
	if c.Monitor.Interval == 0 {
		c.Monitor.Interval = DefaultWatchInterval
	}
	if c.Monitor.Recent == 0 {
		c.Monitor.Recent = DefaultRecent
	}
	if c.Monitor.StaleThreshold < 0 || c.Monitor.Interval < 0 || c.Monitor.Recent < 0 {
		return fmt.Errorf("monitor settings must be positive")
	}

	if c.Board == nil {
		c.Board = &BoardConfig{}
	}
	if c.Board.Quorum == 0 {
		c.Board.Quorum = DefaultQuorum
	}
	if c.Board.Quorum < 0 {
		return fmt.Errorf("board.quorum must be >= 1, got %d", c.Board.Quorum)
	}
	seen := make(map[string]bool, len(c.Board.Seats))
	for _, seat := range c.Board.Seats {
		if seat == "" {
			return fmt.Errorf("board.seats contains an empty director id")
		}
		if seen[seat] {
			return fmt.Errorf("duplicate board seat '%s'", seat)
		}
		seen[seat] = true
	}
	if len(c.Board.Seats) > 0 && c.Board.Quorum > len(c.Board.Seats) {
		return fmt.Errorf("board.quorum (%d) exceeds the number of seats (%d)", c.Board.Quorum, len(c.Board.Seats))
	}

	return nil
}

// Load reads and validates bus.yml from the specified path
func Load(path string) (*BusConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config BusConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// LoadOrDefault reads bus.yml, falling back to Default when the file does not exist.
func LoadOrDefault(path string) (*BusConfig, error) {
	config, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return config, err
}

// Save writes the configuration as YAML. An existing file is left untouched
// unless overwrite is set; the return value reports whether the file was written.
func Save(path string, c *BusConfig, overwrite bool) (bool, error) {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return false, nil
		}
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return false, fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return false, fmt.Errorf("failed to write config: %w", err)
	}
	return true, nil
}
