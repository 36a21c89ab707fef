// Package memory keeps a bounded, durable record of past revelations.
package memory

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/ashureev/psiobot/internal/shared"
	"github.com/moby/sys/atomicwriter"
)

// DefaultCapacity is the number of revelations remembered.
const DefaultCapacity = 50

// Store is an order-preserving FIFO of revelations persisted as a JSON array.
// The in-memory state is authoritative; write failures are logged only.
type Store struct {
	path    string
	entries *shared.FIFO[string]
	logger  *slog.Logger

	// persistMu serializes snapshot+write so files are never written out of order.
	persistMu sync.Mutex
}

// Open loads the store from path. A missing or malformed file yields an
// empty store.
func Open(path string, capacity int, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	s := &Store{
		path:    path,
		entries: shared.NewFIFO[string](capacity),
		logger:  logger,
	}

	loaded, err := load(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		logger.Info("No memory file found, starting fresh", "path", path)
	case err != nil:
		logger.Warn("Memory file unreadable, starting fresh", "path", path, "error", err)
	default:
		for _, e := range loaded {
			s.entries.Push(e)
		}
		logger.Info("Memory restored", "path", path, "entries", s.entries.Len())
	}
	return s
}

func load(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var entries []string
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode memory: %w", err)
	}
	return entries, nil
}

// Record appends entry, evicting the oldest when full, then writes the whole
// sequence to disk before returning.
func (s *Store) Record(entry string) {
	s.entries.Push(entry)
	if err := s.persist(); err != nil {
		s.logger.Error("Failed to persist memory", "path", s.path, "error", err)
	}
}

func (s *Store) persist() error {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	data, err := json.Marshal(s.entries.Items())
	if err != nil {
		return fmt.Errorf("encode memory: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create memory directory: %w", err)
	}
	if err := atomicwriter.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write memory: %w", err)
	}
	return nil
}

// Entries returns all remembered revelations, oldest first.
func (s *Store) Entries() []string {
	return s.entries.Items()
}

// Recent returns up to n of the newest revelations, oldest first.
func (s *Store) Recent(n int) []string {
	return s.entries.Last(n)
}

// Len returns the number of remembered revelations.
func (s *Store) Len() int {
	return s.entries.Len()
}
