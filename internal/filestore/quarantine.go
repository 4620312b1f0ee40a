package filestore

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/Ibrahim-3d/conductor-orchestrator-superpowers/pkg/bus"
)

// RepairResult describes what Repair did to a table file.
type RepairResult struct {
	QuarantinedTo string
	RestoredFrom  string // empty when the table was reset to {}
}

// Repair recovers a table file that no longer parses: the corrupt file is moved
// to quarantine/, then the .bak copy is restored if it is valid, otherwise the
// table is reset to {}. A healthy table is left untouched and nil is returned.
func (s *Store) Repair(ctx context.Context, table bus.Table) (*RepairResult, error) {
	path, err := s.paths.TablePath(table)
	if err != nil {
		return nil, err
	}

	fl, err := acquireFileLock(ctx, path)
	if err != nil {
		return nil, err
	}
	defer fl.unlock()

	if _, err := readTable(path); err == nil {
		return nil, nil
	}

	quarantined, err := quarantine(s.paths.Quarantine, path)
	if err != nil {
		return nil, fmt.Errorf("quarantine failed: %w", err)
	}
	result := &RepairResult{QuarantinedTo: quarantined}

	if err := restoreFromBackup(path); err != nil {
		log.Printf("[FileStore] backup restore failed for %s: %v, resetting to empty table", path, err)
		if err := atomicWriteRaw(path, []byte("{}\n")); err != nil {
			return result, fmt.Errorf("reset %s: %w", table, err)
		}
		return result, nil
	}

	result.RestoredFrom = path + ".bak"
	return result, nil
}

func quarantine(dir, filePath string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create quarantine dir: %w", err)
	}

	name := fmt.Sprintf("%s.%s.corrupt", filepath.Base(filePath), time.Now().UTC().Format("20060102T150405"))
	target := filepath.Join(dir, name)
	if err := os.Rename(filePath, target); err != nil {
		return "", fmt.Errorf("move to quarantine: %w", err)
	}

	log.Printf("[FileStore] quarantined corrupted file: %s -> %s", filePath, target)
	return target, nil
}

func restoreFromBackup(filePath string) error {
	bakPath := filePath + ".bak"
	content, err := os.ReadFile(bakPath)
	if err != nil {
		return fmt.Errorf("read backup: %w", err)
	}

	var table map[string]json.RawMessage
	if err := json.Unmarshal(content, &table); err != nil {
		return fmt.Errorf("backup is also corrupted: %w", err)
	}

	if err := os.WriteFile(filePath, content, 0o644); err != nil {
		return fmt.Errorf("restore from backup: %w", err)
	}

	log.Printf("[FileStore] restored from backup: %s -> %s", bakPath, filePath)
	return nil
}
