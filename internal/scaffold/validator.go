package scaffold

import (
	"fmt"
	"os"

	"github.com/Ibrahim-3d/conductor-orchestrator-superpowers/internal/filestore"
	"github.com/Ibrahim-3d/conductor-orchestrator-superpowers/pkg/bus"
)

// CheckTrack verifies the track directory exists. Init never creates the
// track itself, only the bus inside it.
func CheckTrack(trackPath string) error {
	info, err := os.Stat(trackPath)
	if os.IsNotExist(err) {
		return &bus.NotFoundError{What: "track", Path: trackPath}
	}
	if err != nil {
		return fmt.Errorf("failed to stat track: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("track path %s is not a directory", trackPath)
	}
	return nil
}

// CheckInitialized verifies both the track and its bus directory exist.
func CheckInitialized(trackPath string) error {
	if err := CheckTrack(trackPath); err != nil {
		return err
	}
	root := filestore.BuildPaths(trackPath).Root
	info, err := os.Stat(root)
	if os.IsNotExist(err) || (err == nil && !info.IsDir()) {
		return &bus.NotFoundError{What: "message bus", Path: root}
	}
	if err != nil {
		return fmt.Errorf("failed to stat message bus: %w", err)
	}
	return nil
}
