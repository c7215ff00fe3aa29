// Package store provides a local file-based store for crash reports that
// could not be sent. Reports are written as timestamped JSON files, persist
// across restarts, and the oldest are dropped when the size limit is reached.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/memdiag/crashreport/internal/report"
)

// Store keeps unsent reports on disk, one JSON file per report.
type Store struct {
	dir       string
	maxSizeMB int
	logger    *zap.Logger
	mu        sync.Mutex
}

// New creates a store at the given directory path.
// The directory is created if it does not exist.
func New(dir string, maxSizeMB int, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("creating report store %s: %w", dir, err)
	}
	return &Store{
		dir:       dir,
		maxSizeMB: maxSizeMB,
		logger:    logger,
	}, nil
}

// Dir returns the directory backing the store.
func (s *Store) Dir() string { return s.dir }

// Store saves a report. If the store exceeds the configured size limit, the
// oldest report is dropped first.
func (s *Store) Store(data report.Data) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.maxSizeMB > 0 && s.currentSizeMB() >= s.maxSizeMB {
		s.logger.Warn("Report store full, dropping oldest report")
		s.dropOldest()
	}

	id := data.ID()
	if id == "" {
		id = ulid.Make().String()
	}
	filename := filepath.Join(s.dir, time.Now().UTC().Format("20060102T150405.000")+"-"+id+".json")

	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshaling report: %w", err)
	}
	return os.WriteFile(filename, raw, 0640)
}

// RetrieveAll reads all stored reports and removes the corresponding files.
// Corrupted files are removed and logged. Reports are returned in
// chronological order.
func (s *Store) RetrieveAll() ([]report.Data, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}

	var reports []report.Data
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}

		path := filepath.Join(s.dir, entry.Name())
		raw, err := os.ReadFile(path)
		if err != nil {
			s.logger.Warn("Failed to read stored report",
				zap.String("file", path),
				zap.Error(err))
			continue
		}

		var data report.Data
		if err := json.Unmarshal(raw, &data); err != nil {
			s.logger.Warn("Failed to parse stored report, removing corrupted file",
				zap.String("file", path),
				zap.Error(err))
			os.Remove(path)
			continue
		}

		reports = append(reports, data)
		os.Remove(path)
	}

	return reports, nil
}

// Count returns the number of stored reports.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0
	}
	count := 0
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".json" {
			count++
		}
	}
	return count
}

// currentSizeMB returns the total size of all stored files in megabytes.
// Must be called with s.mu held.
func (s *Store) currentSizeMB() int {
	var totalSize int64
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0
	}
	for _, entry := range entries {
		if info, err := entry.Info(); err == nil {
			totalSize += info.Size()
		}
	}
	return int(totalSize / (1024 * 1024))
}

// dropOldest removes the oldest report file to free space.
// Must be called with s.mu held.
func (s *Store) dropOldest() {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if !entry.IsDir() && filepath.Ext(entry.Name()) == ".json" {
			path := filepath.Join(s.dir, entry.Name())
			if err := os.Remove(path); err != nil {
				s.logger.Warn("Failed to remove oldest report",
					zap.String("file", path),
					zap.Error(err))
			}
			return // Remove just one
		}
	}
}
