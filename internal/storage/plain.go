package storage

import (
	"context"
	"fmt"
	"os"

	"github.com/pfrederiksen/events-watch/internal/event"
)

// PlainStore keeps the observed set as a sorted JSON array in a file
type PlainStore struct {
	path string
}

// NewPlainStore creates a store backed by the file at path
func NewPlainStore(path string) *PlainStore {
	return &PlainStore{path: path}
}

// Path returns the state file location
func (s *PlainStore) Path() string {
	return s.path
}

// Load reads the state file. A missing file is an empty set; a malformed one is an
// error, since silently discarding it would re-announce every item.
func (s *PlainStore) Load(ctx context.Context) (event.Set, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return event.NewSet(), nil
		}
		return event.Set{}, fmt.Errorf("reading state: %w", err)
	}

	set, err := decodeSet(data)
	if err != nil {
		return event.Set{}, fmt.Errorf("parsing state %s: %w", s.path, err)
	}
	return set, nil
}

// Save atomically replaces the state file
func (s *PlainStore) Save(ctx context.Context, set event.Set) error {
	data, err := encodeSet(set)
	if err != nil {
		return fmt.Errorf("%w: encoding state: %w", ErrPersist, err)
	}

	if err := writeFileAtomic(s.path, data, 0644); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrPersist, s.path, err)
	}
	return nil
}
