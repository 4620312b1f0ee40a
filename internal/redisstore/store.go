// Package redisstore implements bus.Store on Redis for tracks whose workers do
// not share a filesystem.
//
// Streams are Redis lists (RPUSH is atomic per record), tables are hashes, and
// compare-and-swap uses WATCH/MULTI on the table key. Every mutation publishes
// the changed stream or table name on the track's changes channel.
package redisstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/Ibrahim-3d/conductor-orchestrator-superpowers/pkg/bus"
	"github.com/redis/go-redis/v9"
)

// pageSize bounds how many stream records one LRANGE round trip fetches.
const pageSize = 256

// Store is a bus.Store backed by a single Redis database.
// It is safe for concurrent use.
type Store struct {
	rdb   *redis.Client
	track string
}

var _ bus.Store = (*Store)(nil)

// New creates a store for the named track without checking that it exists.
// Returns an error if track is empty.
func New(redisOpts *redis.Options, track string) (*Store, error) {
	if track == "" {
		return nil, fmt.Errorf("track name cannot be empty")
	}
	return &Store{rdb: redis.NewClient(redisOpts), track: track}, nil
}

// Open connects to Redis and opens an initialised track.
// Returns *bus.NotFoundError if the track's meta marker is missing.
func Open(ctx context.Context, redisOpts *redis.Options, track string) (*Store, error) {
	s, err := New(redisOpts, track)
	if err != nil {
		return nil, err
	}
	if err := s.Ping(ctx); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	n, err := s.rdb.Exists(ctx, MetaKey(track)).Result()
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to check track marker: %w", err)
	}
	if n == 0 {
		s.Close()
		return nil, &bus.NotFoundError{What: "message bus", Path: MetaKey(track)}
	}
	return s, nil
}

// Init writes the meta marker for the track. It returns true when the marker
// was created by this call and false if the track was already initialised.
func (s *Store) Init(ctx context.Context, trackPath string) (bool, error) {
	created, err := s.rdb.HSetNX(ctx, MetaKey(s.track), "created_at", time.Now().UTC().Format(time.RFC3339Nano)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to write track marker: %w", err)
	}
	if created {
		if err := s.rdb.HSet(ctx, MetaKey(s.track), "track_path", trackPath).Err(); err != nil {
			return true, fmt.Errorf("failed to write track marker: %w", err)
		}
	}
	return created, nil
}

// Track returns the track name the store is namespaced by.
func (s *Store) Track() string {
	return s.track
}

// Ping verifies Redis connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (s *Store) Close() error {
	return s.rdb.Close()
}

// Append pushes one record onto the stream's list and announces the change.
func (s *Store) Append(ctx context.Context, stream bus.Stream, record []byte) error {
	if err := checkStream(stream); err != nil {
		return err
	}
	if bytes.ContainsAny(record, "\r\n") {
		return fmt.Errorf("record for %s must be a single line", stream)
	}

	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, StreamKey(s.track, stream), record)
		pipe.Publish(ctx, ChangesChannel(s.track), string(stream))
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to append to %s: %w", stream, err)
	}
	return nil
}

// Records pages through the list from the head. Records pushed while the
// iteration runs are included.
func (s *Store) Records(ctx context.Context, stream bus.Stream) iter.Seq2[bus.Record, error] {
	return func(yield func(bus.Record, error) bool) {
		if err := checkStream(stream); err != nil {
			yield(bus.Record{}, err)
			return
		}

		key := StreamKey(s.track, stream)
		for start := int64(0); ; start += pageSize {
			page, err := s.rdb.LRange(ctx, key, start, start+pageSize-1).Result()
			if err != nil {
				yield(bus.Record{}, fmt.Errorf("failed to read %s: %w", stream, err))
				return
			}
			for i, data := range page {
				rec := bus.Record{Line: int(start) + i + 1, Data: []byte(data)}
				if !yield(rec, nil) {
					return
				}
			}
			if len(page) < pageSize {
				return
			}
		}
	}
}

// Get returns one table value, or bus.ErrKeyNotFound.
func (s *Store) Get(ctx context.Context, table bus.Table, key string) ([]byte, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}
	value, err := s.rdb.HGet(ctx, TableKey(s.track, table), key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, bus.ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s/%s: %w", table, key, err)
	}
	return value, nil
}

// Put overwrites one table value and announces the change.
func (s *Store) Put(ctx context.Context, table bus.Table, key string, value []byte) error {
	if err := checkTable(table); err != nil {
		return err
	}
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, TableKey(s.track, table), key, value)
		pipe.Publish(ctx, ChangesChannel(s.track), string(table))
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write %s/%s: %w", table, key, err)
	}
	return nil
}

// CompareAndSwap watches the table hash, compares the current field value with
// prev and commits next in a MULTI block. Losing the race to another writer
// reports (false, nil) so callers re-read and retry.
func (s *Store) CompareAndSwap(ctx context.Context, table bus.Table, key string, prev, next []byte) (bool, error) {
	if err := checkTable(table); err != nil {
		return false, err
	}
	hkey := TableKey(s.track, table)

	swapped := false
	err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.HGet(ctx, hkey, key).Bytes()
		exists := true
		if errors.Is(err, redis.Nil) {
			exists = false
		} else if err != nil {
			return err
		}

		switch {
		case prev == nil && exists:
			return nil
		case prev != nil && (!exists || !jsonEqual(current, prev)):
			return nil
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if next == nil {
				pipe.HDel(ctx, hkey, key)
			} else {
				pipe.HSet(ctx, hkey, key, next)
			}
			pipe.Publish(ctx, ChangesChannel(s.track), string(table))
			return nil
		})
		if err == nil {
			swapped = true
		}
		return err
	}, hkey)

	if errors.Is(err, redis.TxFailedErr) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to update %s/%s: %w", table, key, err)
	}
	return swapped, nil
}

// Entries returns every field of the table hash.
func (s *Store) Entries(ctx context.Context, table bus.Table) (map[string][]byte, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}
	raw, err := s.rdb.HGetAll(ctx, TableKey(s.track, table)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", table, err)
	}
	out := make(map[string][]byte, len(raw))
	for k, v := range raw {
		out[k] = []byte(v)
	}
	return out, nil
}

func checkStream(stream bus.Stream) error {
	for _, known := range bus.Streams {
		if stream == known {
			return nil
		}
	}
	return fmt.Errorf("unknown stream %q", stream)
}

func checkTable(table bus.Table) error {
	for _, known := range bus.Tables {
		if table == known {
			return nil
		}
	}
	return fmt.Errorf("unknown table %q", table)
}

// jsonEqual compares two JSON documents ignoring insignificant whitespace.
func jsonEqual(a, b []byte) bool {
	var ca, cb bytes.Buffer
	if err := json.Compact(&ca, a); err != nil {
		return bytes.Equal(a, b)
	}
	if err := json.Compact(&cb, b); err != nil {
		return false
	}
	return bytes.Equal(ca.Bytes(), cb.Bytes())
}
