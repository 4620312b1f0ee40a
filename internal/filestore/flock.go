package filestore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"
)

// lockRetryInterval is how often a blocked writer re-tries the advisory lock.
const lockRetryInterval = 5 * time.Millisecond

// fileLock is an exclusive advisory lock on a sidecar file next to the data file.
// It serialises writers from independent processes sharing the filesystem.
type fileLock struct {
	path string
	file *os.File
}

func lockPathFor(dataPath string) string {
	return filepath.Join(filepath.Dir(dataPath), "."+filepath.Base(dataPath)+".lock")
}

// acquireFileLock blocks until the lock for dataPath is held or ctx is done.
func acquireFileLock(ctx context.Context, dataPath string) (*fileLock, error) {
	path := lockPathFor(dataPath)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}

	for {
		err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
		if err == nil {
			return &fileLock{path: path, file: f}, nil
		}
		if !errors.Is(err, syscall.EWOULDBLOCK) && !errors.Is(err, syscall.EINTR) {
			f.Close()
			return nil, fmt.Errorf("acquire lock %s: %w", path, err)
		}

		select {
		case <-ctx.Done():
			f.Close()
			return nil, ctx.Err()
		case <-time.After(lockRetryInterval):
		}
	}
}

// unlock releases the lock. The sidecar file is left in place so that other
// processes blocked on it keep locking the same inode.
func (fl *fileLock) unlock() error {
	if fl.file == nil {
		return nil
	}
	if err := syscall.Flock(int(fl.file.Fd()), syscall.LOCK_UN); err != nil {
		fl.file.Close()
		fl.file = nil
		return fmt.Errorf("release lock: %w", err)
	}
	err := fl.file.Close()
	fl.file = nil
	if err != nil {
		return fmt.Errorf("close lock file: %w", err)
	}
	return nil
}
