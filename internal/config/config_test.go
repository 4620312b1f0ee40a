package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0644))
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	configPath := writeConfig(t, `version: "1.0"
backend: redis
track_name: feature-xyz
redis:
  url: redis://cache:6379/2
locks:
  default_ttl: 90s
monitor:
  stale_threshold: 15m
  interval: 2s
  recent: 10
board:
  quorum: 3
  seats: [ceo, cto, cfo]
`)

	config, err := Load(configPath)
	require.NoError(t, err)
	assert.Equal(t, BackendRedis, config.Backend)
	assert.Equal(t, "feature-xyz", config.TrackName)
	assert.Equal(t, "redis://cache:6379/2", config.Redis.URL)
	assert.Equal(t, 90*time.Second, config.Locks.DefaultTTL)
	assert.Equal(t, 15*time.Minute, config.Monitor.StaleThreshold)
	assert.Equal(t, 2*time.Second, config.Monitor.Interval)
	assert.Equal(t, 10, config.Monitor.Recent)
	assert.Equal(t, 3, config.Board.Quorum)
	assert.Equal(t, []string{"ceo", "cto", "cfo"}, config.Board.Seats)
}

func TestLoad_AppliesDefaults(t *testing.T) {
	config, err := Load(writeConfig(t, `version: "1.0"`))
	require.NoError(t, err)

	assert.Equal(t, BackendFile, config.Backend)
	assert.Equal(t, DefaultRedisURL, config.Redis.URL)
	assert.Equal(t, DefaultLockTTL, config.Locks.DefaultTTL)
	assert.Equal(t, DefaultStaleThreshold, config.Monitor.StaleThreshold)
	assert.Equal(t, DefaultWatchInterval, config.Monitor.Interval)
	assert.Equal(t, DefaultRecent, config.Monitor.Recent)
	assert.Equal(t, DefaultQuorum, config.Board.Quorum)
}

func TestLoad_FileNotFound(t *testing.T) {
	config, err := Load("/nonexistent/bus.yml")
	assert.Error(t, err)
	assert.Nil(t, config)
	assert.Contains(t, err.Error(), "failed to read config")
}

func TestLoad_InvalidYAML(t *testing.T) {
	config, err := Load(writeConfig(t, `version: "1.0"
board:
  - this is invalid
    yaml syntax
`))
	assert.Error(t, err)
	assert.Nil(t, config)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		config  BusConfig
		wantErr string
	}{
		{"unsupported version", BusConfig{Version: "2.0"}, "unsupported version"},
		{"unknown backend", BusConfig{Version: "1.0", Backend: "etcd"}, "invalid backend"},
		{"bad redis url", BusConfig{Version: "1.0", Redis: &RedisConfig{URL: "http://x"}}, "invalid redis.url"},
		{"negative ttl", BusConfig{Version: "1.0", Locks: &LocksConfig{DefaultTTL: -time.Second}}, "default_ttl"},
		{"negative interval", BusConfig{Version: "1.0", Monitor: &MonitorConfig{Interval: -time.Second}}, "monitor settings"},
		{"negative quorum", BusConfig{Version: "1.0", Board: &BoardConfig{Quorum: -1}}, "board.quorum"},
		{"duplicate seat", BusConfig{Version: "1.0", Board: &BoardConfig{Quorum: 1, Seats: []string{"ceo", "ceo"}}}, "duplicate board seat"},
		{"empty seat", BusConfig{Version: "1.0", Board: &BoardConfig{Quorum: 1, Seats: []string{""}}}, "empty director"},
		{"quorum above seats", BusConfig{Version: "1.0", Board: &BoardConfig{Quorum: 3, Seats: []string{"ceo", "cto"}}}, "exceeds the number of seats"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadOrDefault(t *testing.T) {
	config, err := LoadOrDefault(filepath.Join(t.TempDir(), FileName))
	require.NoError(t, err)
	assert.Equal(t, "1.0", config.Version)
	assert.Equal(t, BackendFile, config.Backend)

	_, err = LoadOrDefault(writeConfig(t, `version: "9"`))
	assert.Error(t, err, "an invalid file is an error, not a fallback")
}

func TestSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)

	written, err := Save(path, Default(), false)
	require.NoError(t, err)
	assert.True(t, written)

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Default(), loaded)

	custom := Default()
	custom.Board.Quorum = 1
	written, err = Save(path, custom, false)
	require.NoError(t, err)
	assert.False(t, written, "existing config is never overwritten")

	written, err = Save(path, custom, true)
	require.NoError(t, err)
	assert.True(t, written)

	loaded, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.Board.Quorum)
}
