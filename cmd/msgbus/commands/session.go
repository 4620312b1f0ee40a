package commands

import (
	"context"
	"fmt"

	"github.com/Ibrahim-3d/conductor-orchestrator-superpowers/internal/config"
	"github.com/Ibrahim-3d/conductor-orchestrator-superpowers/internal/filestore"
	"github.com/Ibrahim-3d/conductor-orchestrator-superpowers/internal/printer"
	"github.com/Ibrahim-3d/conductor-orchestrator-superpowers/internal/redisstore"
	"github.com/Ibrahim-3d/conductor-orchestrator-superpowers/internal/scaffold"
	"github.com/Ibrahim-3d/conductor-orchestrator-superpowers/pkg/bus"
	"github.com/redis/go-redis/v9"
)

// session is an opened track: its configuration, store and client.
type session struct {
	track  string
	paths  filestore.Paths
	cfg    *config.BusConfig
	store  bus.Store
	client *bus.Client
}

func (s *session) Close() error {
	return s.store.Close()
}

// notifier returns the store's change feed when it has one.
func (s *session) notifier() bus.Notifier {
	n, _ := s.store.(bus.Notifier)
	return n
}

// loadConfig reads the track's bus.yml (or defaults) and applies the global
// flag overrides.
func loadConfig(track string) (*config.BusConfig, error) {
	cfg, err := config.LoadOrDefault(filestore.BuildPaths(track).Config)
	if err != nil {
		return nil, printer.ErrorWithContext(
			"invalid bus configuration",
			err.Error(),
			map[string]string{"Track": track},
			[]string{"Fix or remove .message-bus/" + config.FileName},
		)
	}

	if backendFlag != "" {
		cfg.Backend = backendFlag
	}
	if redisURLFlag != "" {
		cfg.Redis.URL = redisURLFlag
	}
	if trackNameFlag != "" {
		cfg.TrackName = trackNameFlag
	}
	if cfg.TrackName == "" {
		cfg.TrackName = scaffold.TrackName(track)
	}

	if err := cfg.Validate(); err != nil {
		return nil, printer.Error("invalid bus configuration", err.Error(), nil)
	}
	return cfg, nil
}

// redisOptions parses the configured Redis URL.
func redisOptions(cfg *config.BusConfig) (*redis.Options, error) {
	opts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	return opts, nil
}

// openRedis connects to the configured Redis and verifies it answers.
// The track does not need to be initialized.
func openRedis(ctx context.Context, cfg *config.BusConfig) (*redisstore.Store, error) {
	opts, err := redisOptions(cfg)
	if err != nil {
		return nil, err
	}
	store, err := redisstore.New(opts, cfg.TrackName)
	if err != nil {
		return nil, err
	}
	if err := store.Ping(ctx); err != nil {
		store.Close()
		return nil, redisUnreachable(cfg)
	}
	return store, nil
}

func redisUnreachable(cfg *config.BusConfig) error {
	return printer.ErrorWithContext(
		"Redis connection failed",
		fmt.Sprintf("Could not connect to Redis at %s", cfg.Redis.URL),
		map[string]string{"Track name": cfg.TrackName},
		[]string{
			"Check that Redis is running and reachable",
			"Use --redis-url to point at a different server",
		},
	)
}

// openSession opens an initialized track using the configured backend.
func openSession(ctx context.Context, track string) (*session, error) {
	if err := scaffold.CheckInitialized(track); err != nil {
		return nil, notFoundError(track, err)
	}

	cfg, err := loadConfig(track)
	if err != nil {
		return nil, err
	}

	var store bus.Store
	switch cfg.Backend {
	case config.BackendRedis:
		opts, err := redisOptions(cfg)
		if err != nil {
			return nil, err
		}
		rs, err := redisstore.Open(ctx, opts, cfg.TrackName)
		if err != nil {
			if bus.IsNotFound(err) {
				return nil, notFoundError(track, err)
			}
			return nil, redisUnreachable(cfg)
		}
		store = rs
	default:
		fs, err := filestore.Open(track)
		if err != nil {
			return nil, err
		}
		store = fs
	}

	client := bus.NewClient(store,
		bus.WithQuorum(cfg.Board.Quorum),
		bus.WithSeats(cfg.Board.Seats...),
	)
	return &session{
		track:  track,
		paths:  filestore.BuildPaths(track),
		cfg:    cfg,
		store:  store,
		client: client,
	}, nil
}

// notFoundError turns a missing track or bus into the CLI's formatted error.
func notFoundError(track string, err error) error {
	if !bus.IsNotFound(err) {
		return err
	}
	return printer.ErrorWithContext(
		"message bus not found",
		err.Error(),
		map[string]string{"Track": track},
		[]string{fmt.Sprintf("Initialize the message bus first:\n  msgbus init %s", track)},
	)
}
