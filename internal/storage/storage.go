package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pfrederiksen/events-watch/internal/config"
	"github.com/pfrederiksen/events-watch/internal/crypto"
	"github.com/pfrederiksen/events-watch/internal/event"
	"github.com/pfrederiksen/events-watch/internal/logger"
)

// ErrPersist is matched by every failure to write state. A lost save means the next
// run reports the same items again, so callers must treat it as fatal.
var ErrPersist = errors.New("persisting state")

// Store loads and saves the observed set
type Store interface {
	// Load returns the set saved by the previous run, or an empty set if there is none
	Load(ctx context.Context) (event.Set, error)
	// Save replaces the stored set
	Save(ctx context.Context, set event.Set) error
}

// New selects the store for this run.
//
// On an automated runner with an encryption key the sealed store is used, backed by
// a Gist when one is configured. Everywhere else the plain file is used.
func New(cfg config.Config, log *logger.Logger) (Store, error) {
	plainPath, err := expandPath(cfg.StateFile)
	if err != nil {
		return nil, err
	}
	plain := NewPlainStore(plainPath)

	if !cfg.Automated {
		log.Debug("Using plain state store", logger.Fields{"path": plainPath})
		return plain, nil
	}

	enc := crypto.NewEncryptor(cfg.EncryptionKey)
	if enc == nil {
		return nil, fmt.Errorf("%w: ARTIFACT_ENCRYPTION_KEY is required on automated runners", config.ErrMissing)
	}

	if cfg.GistID != "" {
		log.Debug("Using gist state store", logger.Fields{"gist_id": cfg.GistID})
		return NewGistStore(cfg.GistID, cfg.GitHubToken, enc, log)
	}

	sealedPath, err := expandPath(cfg.EncryptedStateFile())
	if err != nil {
		return nil, err
	}
	log.Debug("Using encrypted state store", logger.Fields{"path": sealedPath})
	return NewEncryptedStore(sealedPath, enc, plain, log), nil
}

// expandPath expands a leading ~/ to the home directory
func expandPath(path string) (string, error) {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting home directory: %w", err)
		}
		return filepath.Join(home, path[2:]), nil
	}
	return path, nil
}

func encodeSet(set event.Set) ([]byte, error) {
	data, err := json.MarshalIndent(set.Sorted(), "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

func decodeSet(data []byte) (event.Set, error) {
	var set event.Set
	if err := json.Unmarshal(data, &set); err != nil {
		return event.Set{}, err
	}
	return set, nil
}

// writeFileAtomic writes data to a temporary file next to path and renames it into
// place, so readers see either the old state or the new one, never a partial file.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // nolint:errcheck

	if _, err := tmp.Write(data); err != nil {
		tmp.Close() // nolint:errcheck
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close() // nolint:errcheck
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		return fmt.Errorf("setting permissions: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replacing state file: %w", err)
	}
	return nil
}
