package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/q-controller/mediarelay/src/pkg/identity"
	"github.com/q-controller/mediarelay/src/pkg/utils"
)

// LocalStore is a bucket on local disk. Object bytes live under
// <root>/objects/<sha256(key)> and a badger index maps keys to metadata.
type LocalStore struct {
	root string
	db   *badger.DB
}

func NewLocalStore(root string) (*LocalStore, error) {
	for _, dir := range []string{filepath.Join(root, "objects"), filepath.Join(root, "tmp")} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create storage directory: %w", err)
		}
	}

	opts := badger.DefaultOptions(filepath.Join(root, "index"))
	opts.Logger = nil // Disable badger logging
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &LocalStore{
		root: root,
		db:   db,
	}, nil
}

func (s *LocalStore) objectPath(hash string) string {
	return filepath.Join(s.root, "objects", hash)
}

func (s *LocalStore) Put(ctx context.Context, key string, r io.Reader, size int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	hash := utils.Hash(key)
	hasher := identity.NewHasher()

	tmpPath := filepath.Join(s.root, "tmp", uuid.NewString())
	writeErr := utils.WriteFileAtomic(s.objectPath(hash), tmpPath, func(w io.Writer) error {
		if _, copyErr := io.Copy(io.MultiWriter(w, hasher), r); copyErr != nil {
			return copyErr
		}
		if size >= 0 && hasher.Size() != size {
			return fmt.Errorf("wrote %d bytes, expected %d", hasher.Size(), size)
		}
		return nil
	})
	if writeErr != nil {
		return fmt.Errorf("failed to write object %q: %w", key, writeErr)
	}

	metadata := &ObjectMetadata{
		Key:        key,
		Hash:       hash,
		Size:       hasher.Size(),
		Checksum:   hasher.Digest(),
		UploadedAt: time.Now(),
	}

	return s.db.Update(func(txn *badger.Txn) error {
		data, err := json.Marshal(metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
		return txn.Set([]byte(key), data)
	})
}

func (s *LocalStore) GetToWriter(ctx context.Context, key string, w io.Writer) (retErr error) {
	metadata, metaErr := s.Stat(ctx, key)
	if metaErr != nil {
		return metaErr
	}

	file, err := os.Open(filepath.Clean(s.objectPath(metadata.Hash)))
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("object file %q: %w", key, ErrNotFound)
		}
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			retErr = errors.Join(retErr, closeErr)
		}
	}()

	if _, copyErr := io.Copy(w, file); copyErr != nil {
		return fmt.Errorf("failed to read object %q: %w", key, copyErr)
	}
	return nil
}

// Stat returns the metadata recorded for key.
func (s *LocalStore) Stat(ctx context.Context, key string) (*ObjectMetadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var metadata ObjectMetadata
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("object %q: %w", key, ErrNotFound)
			}
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &metadata)
		})
	})
	if err != nil {
		return nil, err
	}

	return &metadata, nil
}

// Close closes the index.
func (s *LocalStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
