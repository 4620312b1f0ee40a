// Package filestore implements bus.Store on a shared filesystem using the
// .message-bus/ layout inside a track directory.
//
// Streams are JSONL files appended with a single O_APPEND write per record.
// Tables are JSON objects rewritten atomically (temp file + rename). Writers from
// independent processes are serialised per file with an advisory flock on a
// sidecar lock file; readers never lock.
package filestore

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"

	"github.com/Ibrahim-3d/conductor-orchestrator-superpowers/pkg/bus"
)

// Store is a bus.Store backed by files under <track>/.message-bus.
type Store struct {
	paths Paths
}

var _ bus.Store = (*Store)(nil)

// Open opens the bus of an initialised track.
// Returns *bus.NotFoundError if the track or its bus directory is missing.
func Open(trackPath string) (*Store, error) {
	info, err := os.Stat(trackPath)
	if err != nil || !info.IsDir() {
		return nil, &bus.NotFoundError{What: "track", Path: trackPath}
	}

	paths := BuildPaths(trackPath)
	info, err = os.Stat(paths.Root)
	if err != nil || !info.IsDir() {
		return nil, &bus.NotFoundError{What: "message bus", Path: paths.Root}
	}
	return &Store{paths: paths}, nil
}

// Paths returns the layout this store reads and writes.
func (s *Store) Paths() Paths {
	return s.paths
}

// Append writes record plus a newline in a single O_APPEND write.
func (s *Store) Append(ctx context.Context, stream bus.Stream, record []byte) error {
	path, err := s.paths.StreamPath(stream)
	if err != nil {
		return err
	}
	if bytes.ContainsAny(record, "\r\n") {
		return fmt.Errorf("record for %s must be a single line", stream)
	}

	fl, err := acquireFileLock(ctx, path)
	if err != nil {
		return err
	}
	defer fl.unlock()

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", stream, err)
	}
	defer f.Close()

	line := make([]byte, 0, len(record)+1)
	line = append(line, record...)
	line = append(line, '\n')
	if _, err := f.Write(line); err != nil {
		return fmt.Errorf("append to %s: %w", stream, err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("sync %s: %w", stream, err)
	}
	return nil
}

// Records streams the JSONL file line by line. A missing file is an empty
// stream. A trailing line without its newline is an append still in flight and
// is not yielded.
func (s *Store) Records(ctx context.Context, stream bus.Stream) iter.Seq2[bus.Record, error] {
	return func(yield func(bus.Record, error) bool) {
		path, err := s.paths.StreamPath(stream)
		if err != nil {
			yield(bus.Record{}, err)
			return
		}

		f, err := os.Open(path)
		if os.IsNotExist(err) {
			return
		}
		if err != nil {
			yield(bus.Record{}, fmt.Errorf("open %s: %w", stream, err))
			return
		}
		defer f.Close()

		r := bufio.NewReader(f)
		lineNo := 0
		for {
			if err := ctx.Err(); err != nil {
				yield(bus.Record{}, err)
				return
			}

			line, err := r.ReadBytes('\n')
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(bus.Record{}, fmt.Errorf("read %s: %w", stream, err))
				return
			}

			lineNo++
			line = bytes.TrimSpace(line)
			if len(line) == 0 {
				continue
			}
			if !yield(bus.Record{Line: lineNo, Data: line}, nil) {
				return
			}
		}
	}
}

// Get returns one table value.
func (s *Store) Get(ctx context.Context, table bus.Table, key string) ([]byte, error) {
	path, err := s.paths.TablePath(table)
	if err != nil {
		return nil, err
	}
	entries, err := readTable(path)
	if err != nil {
		return nil, err
	}
	value, ok := entries[key]
	if !ok {
		return nil, bus.ErrKeyNotFound
	}
	return value, nil
}

// Put overwrites one table value.
func (s *Store) Put(ctx context.Context, table bus.Table, key string, value []byte) error {
	_, err := s.update(ctx, table, func(entries map[string]json.RawMessage) bool {
		entries[key] = json.RawMessage(value)
		return true
	})
	return err
}

// CompareAndSwap updates one table value under the file's write lock.
func (s *Store) CompareAndSwap(ctx context.Context, table bus.Table, key string, prev, next []byte) (bool, error) {
	return s.update(ctx, table, func(entries map[string]json.RawMessage) bool {
		current, exists := entries[key]
		switch {
		case prev == nil && exists:
			return false
		case prev != nil && (!exists || !jsonEqual(current, prev)):
			return false
		}

		if next == nil {
			delete(entries, key)
		} else {
			entries[key] = json.RawMessage(next)
		}
		return true
	})
}

// Entries returns a copy of the whole table.
func (s *Store) Entries(ctx context.Context, table bus.Table) (map[string][]byte, error) {
	path, err := s.paths.TablePath(table)
	if err != nil {
		return nil, err
	}
	entries, err := readTable(path)
	if err != nil {
		return nil, err
	}
	out := make(map[string][]byte, len(entries))
	for k, v := range entries {
		out[k] = v
	}
	return out, nil
}

// Close implements bus.Store. File handles are never held between calls.
func (s *Store) Close() error {
	return nil
}

// update runs mutate on the table under its write lock and persists the result
// when mutate returns true.
func (s *Store) update(ctx context.Context, table bus.Table, mutate func(map[string]json.RawMessage) bool) (bool, error) {
	path, err := s.paths.TablePath(table)
	if err != nil {
		return false, err
	}
	fl, err := acquireFileLock(ctx, path)
	if err != nil {
		return false, err
	}
	defer fl.unlock()

	entries, err := readTable(path)
	if err != nil {
		return false, err
	}
	if !mutate(entries) {
		return false, nil
	}
	if err := writeTable(path, entries); err != nil {
		return false, fmt.Errorf("write %s: %w", table, err)
	}
	return true, nil
}
