package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/q-controller/mediarelay/src/pkg/cache"
	"github.com/q-controller/mediarelay/src/pkg/identity"
	"github.com/q-controller/mediarelay/src/pkg/metrics"
	"github.com/q-controller/mediarelay/src/pkg/mimetype"
	"github.com/q-controller/mediarelay/src/pkg/store"
	"github.com/q-controller/mediarelay/src/pkg/utils"
)

var ErrNotFound = errors.New("asset not found")

// Service ties the upload and download pipelines together.
type Service struct {
	store    store.Store
	cache    *cache.Cache
	baseURL  string
	spoolDir string
	metrics  *metrics.Metrics
}

func NewService(st store.Store, c *cache.Cache, baseURL, spoolDir string, m *metrics.Metrics) (*Service, error) {
	if st == nil || c == nil {
		return nil, fmt.Errorf("store and cache are required")
	}
	if mkdirErr := os.MkdirAll(spoolDir, 0755); mkdirErr != nil {
		return nil, fmt.Errorf("failed to create spool directory: %w", mkdirErr)
	}

	return &Service{
		store:    st,
		cache:    c,
		baseURL:  baseURL,
		spoolDir: spoolDir,
		metrics:  m,
	}, nil
}

// URL is the public address of id.
func (s *Service) URL(id identity.Identity) string {
	return utils.JoinURL(s.baseURL, "i", id.String())
}

// Upload spools r to disk while hashing it, then stores it under its
// identity. Uploading the same bytes twice is harmless.
func (s *Service) Upload(ctx context.Context, filename string, r io.Reader) (_ identity.Identity, retErr error) {
	if _, extErr := identity.ExtensionOf(filename); extErr != nil {
		return "", extErr
	}

	spoolPath := filepath.Join(s.spoolDir, uuid.NewString())
	spool, createErr := os.OpenFile(spoolPath, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0600)
	if createErr != nil {
		return "", fmt.Errorf("failed to create spool file: %w", createErr)
	}
	defer func() {
		if closeErr := spool.Close(); closeErr != nil {
			retErr = errors.Join(retErr, closeErr)
		}
		if rmErr := os.Remove(spoolPath); rmErr != nil {
			slog.Warn("Failed to remove spool file", "path", spoolPath, "error", rmErr)
		}
	}()

	id, size, deriveErr := identity.Derive(io.TeeReader(r, spool), filename)
	if deriveErr != nil {
		return "", fmt.Errorf("failed to read upload: %w", deriveErr)
	}
	if _, seekErr := spool.Seek(0, io.SeekStart); seekErr != nil {
		return "", seekErr
	}

	putErr := s.store.Put(ctx, store.ObjectKey(id.String()), spool, size)
	s.metrics.StoreOp("put", putErr)
	if putErr != nil {
		return "", fmt.Errorf("failed to store %s: %w", id, putErr)
	}

	return id, nil
}

// Asset is an open cache entry ready to be streamed.
type Asset struct {
	*os.File
	Name        string
	ContentType string
	ModTime     time.Time
}

// Open sanitizes the requested name and resolves it through both cache
// tiers. Every failure is reported as ErrNotFound with the cause attached.
func (s *Service) Open(ctx context.Context, filename string) (*Asset, error) {
	name := utils.SanitizeFilename(filename)
	id, parseErr := identity.Parse(name)
	if parseErr != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrNotFound, filename, parseErr)
	}

	file, openErr := s.cache.Open(ctx, id)
	if openErr != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotFound, openErr)
	}

	info, statErr := file.Stat()
	if statErr != nil {
		if closeErr := file.Close(); closeErr != nil {
			slog.Warn("Failed to close file", "error", closeErr)
		}
		return nil, fmt.Errorf("%w: %w", ErrNotFound, statErr)
	}

	return &Asset{
		File:        file,
		Name:        name,
		ContentType: mimetype.ForName(name),
		ModTime:     info.ModTime(),
	}, nil
}
