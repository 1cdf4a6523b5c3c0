package storage

import (
	"context"
	"fmt"
	"os"

	"github.com/pfrederiksen/events-watch/internal/crypto"
	"github.com/pfrederiksen/events-watch/internal/event"
	"github.com/pfrederiksen/events-watch/internal/logger"
)

// EncryptedStore keeps the observed set sealed with an Encryptor.
//
// Loading fails closed: a sealed file that cannot be opened is treated as no state at
// all. The fallback store is only consulted when the sealed file does not exist yet,
// which lets a runner pick up a plain file left by an earlier unencrypted setup.
type EncryptedStore struct {
	path     string
	enc      *crypto.Encryptor
	fallback Store
	log      *logger.Logger
}

// NewEncryptedStore creates a sealed store at path. fallback may be nil.
func NewEncryptedStore(path string, enc *crypto.Encryptor, fallback Store, log *logger.Logger) *EncryptedStore {
	return &EncryptedStore{
		path:     path,
		enc:      enc,
		fallback: fallback,
		log:      log,
	}
}

// Path returns the sealed file location
func (s *EncryptedStore) Path() string {
	return s.path
}

// Load opens the sealed state
func (s *EncryptedStore) Load(ctx context.Context) (event.Set, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			return event.Set{}, fmt.Errorf("reading encrypted state: %w", err)
		}
		if s.fallback != nil {
			s.log.Info("No encrypted state, trying fallback", logger.Fields{"path": s.path})
			return s.fallback.Load(ctx)
		}
		return event.NewSet(), nil
	}

	return openSealed(data, s.enc, s.log, logger.Fields{"path": s.path}), nil
}

// Save seals the set and atomically replaces the sealed file
func (s *EncryptedStore) Save(ctx context.Context, set event.Set) error {
	sealed, err := seal(set, s.enc)
	if err != nil {
		return err
	}

	if err := writeFileAtomic(s.path, sealed, 0600); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrPersist, s.path, err)
	}
	return nil
}

func seal(set event.Set, enc *crypto.Encryptor) ([]byte, error) {
	data, err := encodeSet(set)
	if err != nil {
		return nil, fmt.Errorf("%w: encoding state: %w", ErrPersist, err)
	}
	sealed, err := enc.Encrypt(data)
	if err != nil {
		return nil, fmt.Errorf("%w: encrypting state: %w", ErrPersist, err)
	}
	return sealed, nil
}

// openSealed decrypts and decodes state. Any failure degrades to an empty set with
// a warning: the next notification may repeat items, but the run goes on.
func openSealed(data []byte, enc *crypto.Encryptor, log *logger.Logger, fields logger.Fields) event.Set {
	plaintext, err := enc.Decrypt(data)
	if err != nil {
		log.Warn("Encrypted state unreadable, starting from empty state", withError(fields, err))
		return event.NewSet()
	}

	set, err := decodeSet(plaintext)
	if err != nil {
		log.Warn("Decrypted state is malformed, starting from empty state", withError(fields, err))
		return event.NewSet()
	}
	return set
}

func withError(fields logger.Fields, err error) logger.Fields {
	out := make(logger.Fields, len(fields)+1)
	for k, v := range fields {
		out[k] = v
	}
	out["cause"] = err.Error()
	return out
}
