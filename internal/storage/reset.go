package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultResetFlagFile is the marker file name used inside the data dir.
const DefaultResetFlagFile = "RESET_REQUESTED"

// ResetFlag is a persisted request to destroy the durable database at the
// next open.
type ResetFlag interface {
	Requested() (bool, error)
	Request() error
	Clear() error
}

// FileResetFlag stores the reset request as a marker file.
type FileResetFlag struct {
	path string
}

// NewFileResetFlag creates a reset flag backed by the file at path.
func NewFileResetFlag(path string) *FileResetFlag {
	return &FileResetFlag{path: path}
}

// ResetFlagPath returns the marker path for a data dir.
func ResetFlagPath(dataDir, file string) string {
	if file == "" {
		file = DefaultResetFlagFile
	}
	if filepath.IsAbs(file) {
		return file
	}
	return filepath.Join(dataDir, file)
}

// Path returns the marker path.
func (f *FileResetFlag) Path() string { return f.path }

// Requested reports whether the marker exists.
func (f *FileResetFlag) Requested() (bool, error) {
	_, err := os.Stat(f.path)
	switch {
	case err == nil:
		return true, nil
	case os.IsNotExist(err):
		return false, nil
	default:
		return false, fmt.Errorf("reset flag: stat %s: %w", f.path, err)
	}
}

// Request creates the marker. The file holds the request time.
func (f *FileResetFlag) Request() error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o750); err != nil {
		return fmt.Errorf("reset flag: create dir: %w", err)
	}
	data := []byte(time.Now().UTC().Format(time.RFC3339) + "\n")
	if err := os.WriteFile(f.path, data, 0o600); err != nil {
		return fmt.Errorf("reset flag: write %s: %w", f.path, err)
	}
	return nil
}

// Clear removes the marker. A missing marker is not an error.
func (f *FileResetFlag) Clear() error {
	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("reset flag: remove %s: %w", f.path, err)
	}
	return nil
}
