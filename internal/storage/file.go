package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/kalambet/feedtrack/internal/feedback"
)

// FeedbackFile is the file name used inside the data directory.
const FeedbackFile = "feedback.json"

// FileStore keeps the feedback collection as a pretty-printed JSON array in a
// single file. Reads are lenient: a missing or corrupt file reads as an empty
// collection. Writes go to a temporary file that is renamed over the target,
// so readers never observe a partially written collection.
type FileStore struct {
	path   string
	logger *slog.Logger
}

// NewFileStore returns a store for the file at path. Nothing is touched on
// disk until Init or SaveAll is called.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path, logger: slog.Default()}
}

// Path returns the backing file path.
func (s *FileStore) Path() string {
	return s.path
}

// Init creates the data directory and an empty collection file if they do not
// exist yet. An existing file is left untouched.
func (s *FileStore) Init(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}
	if _, err := os.Stat(s.path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("checking %s: %w", s.path, err)
	}
	return s.SaveAll(ctx, nil)
}

// LoadAll reads the whole collection. It never returns an error: unreadable
// or invalid content is logged and treated as an empty collection.
func (s *FileStore) LoadAll(_ context.Context) ([]feedback.Record, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("reading feedback file failed, treating as empty", "path", s.path, "error", err)
		}
		return []feedback.Record{}, nil
	}

	var records []feedback.Record
	if err := json.Unmarshal(data, &records); err != nil {
		s.logger.Warn("feedback file is not a valid JSON array, treating as empty", "path", s.path, "error", err)
		return []feedback.Record{}, nil
	}
	if records == nil {
		records = []feedback.Record{}
	}
	return records, nil
}

// SaveAll replaces the stored collection with records.
func (s *FileStore) SaveAll(_ context.Context, records []feedback.Record) error {
	if records == nil {
		records = []feedback.Record{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding feedback: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".feedback-*.json")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		return fmt.Errorf("setting permissions: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("replacing %s: %w", s.path, err)
	}
	return nil
}
