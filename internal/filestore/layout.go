package filestore

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/Ibrahim-3d/conductor-orchestrator-superpowers/pkg/bus"
)

// BusDirName is the coordination directory created inside a track.
const BusDirName = ".message-bus"

// Paths lists every file and directory of a track's bus.
type Paths struct {
	Track       string
	Root        string
	Queue       string
	Locks       string
	Workers     string
	EventsDir   string
	BoardDir    string
	Assessments string
	Votes       string
	Discussion  string
	Config      string
	Quarantine  string
}

// BuildPaths returns the bus layout for trackPath without touching the filesystem.
func BuildPaths(trackPath string) Paths {
	root := filepath.Join(trackPath, BusDirName)
	board := filepath.Join(root, "board")
	return Paths{
		Track:       trackPath,
		Root:        root,
		Queue:       filepath.Join(root, "queue.jsonl"),
		Locks:       filepath.Join(root, "locks.json"),
		Workers:     filepath.Join(root, "worker-status.json"),
		EventsDir:   filepath.Join(root, "events"),
		BoardDir:    board,
		Assessments: filepath.Join(board, "assessments.json"),
		Votes:       filepath.Join(board, "votes.json"),
		Discussion:  filepath.Join(board, "discussion.jsonl"),
		Config:      filepath.Join(root, "bus.yml"),
		Quarantine:  filepath.Join(root, "quarantine"),
	}
}

// StreamPath maps a stream to its JSONL file.
func (p Paths) StreamPath(stream bus.Stream) (string, error) {
	switch stream {
	case bus.StreamQueue:
		return p.Queue, nil
	case bus.StreamDiscussion:
		return p.Discussion, nil
	default:
		return "", fmt.Errorf("unknown stream %q", stream)
	}
}

// TablePath maps a table to its JSON file.
func (p Paths) TablePath(table bus.Table) (string, error) {
	switch table {
	case bus.TableLocks:
		return p.Locks, nil
	case bus.TableWorkers:
		return p.Workers, nil
	case bus.TableAssessments:
		return p.Assessments, nil
	case bus.TableVotes:
		return p.Votes, nil
	default:
		return "", fmt.Errorf("unknown table %q", table)
	}
}

// EnsureLayout creates the bus directories and any missing file with an empty
// default. Existing files are never modified. Reports whether the queue was
// created by this call.
func EnsureLayout(p Paths) (queueCreated bool, err error) {
	for _, dir := range []string{p.Root, p.EventsDir, p.BoardDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return false, fmt.Errorf("create bus dir %s: %w", dir, err)
		}
	}

	for _, path := range []string{p.Queue, p.Discussion} {
		created, err := createIfMissing(path, nil)
		if err != nil {
			return false, err
		}
		if path == p.Queue {
			queueCreated = created
		}
	}

	for _, path := range []string{p.Locks, p.Workers, p.Assessments, p.Votes} {
		if _, err := createIfMissing(path, []byte("{}\n")); err != nil {
			return false, err
		}
	}
	return queueCreated, nil
}

func createIfMissing(path string, content []byte) (bool, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if os.IsExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	if len(content) > 0 {
		if _, err := f.Write(content); err != nil {
			return false, fmt.Errorf("write %s: %w", path, err)
		}
	}
	return true, nil
}
