// Package scaffold creates a track's message bus.
package scaffold

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/Ibrahim-3d/conductor-orchestrator-superpowers/internal/config"
	"github.com/Ibrahim-3d/conductor-orchestrator-superpowers/internal/filestore"
	"github.com/Ibrahim-3d/conductor-orchestrator-superpowers/internal/redisstore"
	"github.com/Ibrahim-3d/conductor-orchestrator-superpowers/pkg/bus"
)

// Identity of the synthetic first event.
const (
	InitMessageID = "msg-init"
	InitSource    = "msgbus-init"
	BusVersion    = "1.0"
)

// Options controls Initialize.
type Options struct {
	TrackPath string

	// Config is written to bus.yml when none exists yet. Nil uses config.Default.
	Config *config.BusConfig

	// Redis receives the BUS_INIT event when Config selects the redis backend.
	Redis *redisstore.Store

	Now func() time.Time
}

// Result reports what Initialize actually created.
type Result struct {
	Paths         filestore.Paths
	Backend       string
	QueueCreated  bool
	InitWritten   bool
	ConfigWritten bool
}

// Initialize creates the bus layout inside an existing track. Files that
// already exist are left as they are, so running it twice is harmless.
// BUS_INIT is written whenever the backend's queue holds no records, so a run
// interrupted between creating the queue and logging BUS_INIT is completed by
// the next one.
func Initialize(ctx context.Context, opts Options) (*Result, error) {
	if err := CheckTrack(opts.TrackPath); err != nil {
		return nil, err
	}

	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	if cfg.TrackName == "" {
		cfg.TrackName = TrackName(opts.TrackPath)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	paths := filestore.BuildPaths(opts.TrackPath)
	queueCreated, err := filestore.EnsureLayout(paths)
	if err != nil {
		return nil, fmt.Errorf("failed to create bus layout: %w", err)
	}

	result := &Result{Paths: paths, Backend: cfg.Backend}

	var store bus.Store
	switch cfg.Backend {
	case config.BackendRedis:
		if opts.Redis == nil {
			return nil, fmt.Errorf("redis backend selected but no redis store given")
		}
		created, err := opts.Redis.Init(ctx, opts.TrackPath)
		if err != nil {
			return nil, err
		}
		result.QueueCreated = created
		store = opts.Redis
	default:
		result.QueueCreated = queueCreated
		fs, err := filestore.Open(opts.TrackPath)
		if err != nil {
			return nil, err
		}
		defer fs.Close()
		store = fs
	}

	empty, err := queueEmpty(ctx, store)
	if err != nil {
		return nil, err
	}
	if empty {
		client := bus.NewClient(store, bus.WithClock(now))
		if err := client.Append(ctx, initMessage(opts.TrackPath, now())); err != nil {
			return nil, fmt.Errorf("failed to write BUS_INIT: %w", err)
		}
		result.InitWritten = true
	}

	written, err := config.Save(paths.Config, cfg, false)
	if err != nil {
		return nil, err
	}
	result.ConfigWritten = written

	if err := validateCreatedFiles(paths); err != nil {
		return nil, err
	}
	return result, nil
}

func queueEmpty(ctx context.Context, store bus.Store) (bool, error) {
	for _, err := range store.Records(ctx, bus.StreamQueue) {
		if err != nil {
			return false, fmt.Errorf("failed to read queue: %w", err)
		}
		return false, nil
	}
	return true, nil
}

func initMessage(trackPath string, at time.Time) bus.Message {
	return bus.Message{
		ID:        InitMessageID,
		Type:      bus.TypeBusInit,
		Source:    InitSource,
		Timestamp: bus.At(at),
		Payload:   &bus.InitPayload{TrackPath: trackPath, Version: BusVersion},
	}
}

// validateCreatedFiles re-reads bus.yml so a broken file fails init rather
// than the first command that needs it.
func validateCreatedFiles(paths filestore.Paths) error {
	if _, err := config.Load(paths.Config); err != nil {
		return fmt.Errorf("created %s is not usable: %w", config.FileName, err)
	}
	return nil
}

// TrackName derives the Redis namespace from the track directory.
func TrackName(trackPath string) string {
	abs, err := filepath.Abs(trackPath)
	if err != nil {
		return filepath.Base(trackPath)
	}
	return filepath.Base(abs)
}

// Layout lists the created structure relative to the bus root, for display.
func Layout() []string {
	return []string{
		"├── queue.jsonl",
		"├── locks.json",
		"├── worker-status.json",
		"├── bus.yml",
		"├── events/",
		"└── board/",
		"    ├── assessments.json",
		"    ├── votes.json",
		"    └── discussion.jsonl",
	}
}
