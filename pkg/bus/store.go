package bus

import (
	"context"
	"iter"
)

// Stream names an append-only record sequence.
type Stream string

// Table names a keyed store of JSON values.
type Table string

const (
	// StreamQueue holds the event log.
	StreamQueue Stream = "queue"

	// StreamDiscussion holds the board's discussion thread.
	StreamDiscussion Stream = "discussion"
)

const (
	// TableLocks maps resource -> Lock.
	TableLocks Table = "locks"

	// TableWorkers maps worker id -> WorkerStatus.
	TableWorkers Table = "workers"

	// TableAssessments maps director -> Assessment.
	TableAssessments Table = "assessments"

	// TableVotes maps director -> Vote.
	TableVotes Table = "votes"
)

// Streams lists every stream a track owns.
var Streams = []Stream{StreamQueue, StreamDiscussion}

// Tables lists every table a track owns.
var Tables = []Table{TableLocks, TableWorkers, TableAssessments, TableVotes}

// Record is one raw entry read from a stream.
type Record struct {
	Line int // 1-based position within the stream
	Data []byte
}

// Store is the physical medium behind a track.
//
// Implementations must make Append atomic per call (readers never see a torn
// record) and CompareAndSwap atomic per key. There is no cross-key or
// cross-table transaction.
type Store interface {
	// Append adds one record to the end of the stream.
	Append(ctx context.Context, stream Stream, record []byte) error

	// Records iterates the stream from the start. Each call re-reads the store.
	// A non-nil error ends the iteration.
	Records(ctx context.Context, stream Stream) iter.Seq2[Record, error]

	// Get returns the value stored under key, or ErrKeyNotFound.
	Get(ctx context.Context, table Table, key string) ([]byte, error)

	// Put unconditionally overwrites the value stored under key.
	Put(ctx context.Context, table Table, key string, value []byte) error

	// CompareAndSwap replaces the value under key with next only if the current
	// value equals prev. A nil prev means "key must be absent", a nil next deletes
	// the key. Values are compared as JSON documents.
	CompareAndSwap(ctx context.Context, table Table, key string, prev, next []byte) (bool, error)

	// Entries returns every key/value pair of the table.
	Entries(ctx context.Context, table Table) (map[string][]byte, error)

	// Close releases resources held by the store.
	Close() error
}

// Notifier is implemented by stores that can signal that something changed.
// Signals are hints: receivers must re-read the store to learn what changed.
type Notifier interface {
	Changes(ctx context.Context) (<-chan struct{}, error)
}
