// Package auth holds the shared upload credential. The secret is either
// fixed at startup or read from a file that is reloaded when it changes.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

var ErrUnauthorized = errors.New("invalid auth")

type Secret struct {
	mu    sync.RWMutex
	value []byte
	path  string
}

func NewStatic(secret string) (*Secret, error) {
	if secret == "" {
		return nil, fmt.Errorf("secret must not be empty")
	}
	return &Secret{value: []byte(secret)}, nil
}

// NewFromFile reads the secret from path. Surrounding whitespace is ignored.
func NewFromFile(path string) (*Secret, error) {
	s := &Secret{path: filepath.Clean(path)}
	if err := s.reload(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Secret) reload() error {
	data, readErr := os.ReadFile(s.path)
	if readErr != nil {
		return fmt.Errorf("failed to read secret file: %w", readErr)
	}
	value := strings.TrimSpace(string(data))
	if value == "" {
		return fmt.Errorf("secret file %s is empty", s.path)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.value = []byte(value)
	return nil
}

// Check reports whether header carries the secret verbatim.
func (s *Secret) Check(header string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return subtle.ConstantTimeCompare([]byte(header), s.value) == 1
}

func (s *Secret) Verify(header string) error {
	if !s.Check(header) {
		return ErrUnauthorized
	}
	return nil
}

// Watch reloads a file-backed secret whenever its directory changes, until
// ctx is done. A failed reload keeps the previous secret. Static secrets
// return immediately.
func (s *Secret) Watch(ctx context.Context) error {
	if s.path == "" {
		return nil
	}

	watcher, watcherErr := fsnotify.NewWatcher()
	if watcherErr != nil {
		return watcherErr
	}
	defer func() {
		if err := watcher.Close(); err != nil {
			slog.Error("Failed to close secret watcher", "error", err)
		}
	}()

	// Secrets mounted by orchestrators are swapped through symlinks, so the
	// whole directory is watched rather than the file itself.
	if addErr := watcher.Add(filepath.Dir(s.path)); addErr != nil {
		return addErr
	}

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return fmt.Errorf("watcher closed")
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if err := s.reload(); err != nil {
				slog.Warn("Failed to reload secret, keeping previous one", "error", err)
				continue
			}
			slog.Debug("Reloaded secret", "path", s.path, "event", event.Op)
		case err, ok := <-watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher error channel closed")
			}
			slog.Warn("Secret watcher error", "error", err)
		case <-ctx.Done():
			return nil
		}
	}
}
