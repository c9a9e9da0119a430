// Package cache keeps process-local copies of stored assets in two tiers
// under a cache root: images/ holds the bytes exactly as stored and
// optimized/ holds transcoded renditions.
//
// Entries are created lazily and never evicted. Work for one identity is
// shared between concurrent callers, and entries become visible only through
// an atomic rename, so a path returned by this package always names a
// complete file.
package cache

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
	"github.com/q-controller/mediarelay/src/pkg/identity"
	"github.com/q-controller/mediarelay/src/pkg/metrics"
	"github.com/q-controller/mediarelay/src/pkg/store"
	"github.com/q-controller/mediarelay/src/pkg/transcode"
	"github.com/q-controller/mediarelay/src/pkg/utils"
	"golang.org/x/sync/singleflight"
)

const (
	RawDir       = "images"
	OptimizedDir = "optimized"
	TempDir      = "tmp"

	tierRaw       = "raw"
	tierOptimized = "optimized"
)

type Cache struct {
	root        string
	store       store.Store
	transcoders *transcode.Registry
	metrics     *metrics.Metrics
	logger      *slog.Logger
	group       singleflight.Group
}

type Option func(*Cache)

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Cache) {
		c.metrics = m
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Cache) {
		c.logger = l
	}
}

// New prepares the tier directories under root. Leftovers of interrupted
// writes in the temp area are discarded.
func New(root string, st store.Store, transcoders *transcode.Registry, opts ...Option) (*Cache, error) {
	if transcoders == nil {
		transcoders = transcode.NewRegistry()
	}

	c := &Cache{
		root:        filepath.Clean(root),
		store:       st,
		transcoders: transcoders,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if err := os.RemoveAll(filepath.Join(c.root, TempDir)); err != nil {
		return nil, fmt.Errorf("failed to clear temp directory: %w", err)
	}
	for _, dir := range []string{RawDir, OptimizedDir, TempDir} {
		if err := os.MkdirAll(filepath.Join(c.root, dir), 0755); err != nil {
			return nil, fmt.Errorf("failed to create cache directory %s: %w", dir, err)
		}
	}

	return c, nil
}

func (c *Cache) RawPath(id identity.Identity) string {
	return filepath.Join(c.root, RawDir, id.String())
}

func (c *Cache) OptimizedPath(id identity.Identity) string {
	return filepath.Join(c.root, OptimizedDir, id.String())
}

func (c *Cache) tempPath() string {
	return filepath.Join(c.root, TempDir, uuid.NewString())
}

// do runs fn at most once at a time per key. The shared work is detached
// from the caller's cancellation; a caller that gives up only stops waiting.
func (c *Cache) do(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	work := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		return nil, fn(work)
	})

	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ResolveRaw returns the path of the raw entry for id, fetching it from the
// store on a miss. A missing object is reported with store.ErrNotFound.
func (c *Cache) ResolveRaw(ctx context.Context, id identity.Identity) (string, error) {
	path := c.RawPath(id)

	exists, statErr := utils.FileExists(path)
	if statErr != nil {
		return "", statErr
	}
	c.metrics.CacheLookup(tierRaw, exists)
	if exists {
		return path, nil
	}

	err := c.do(ctx, "raw/"+id.String(), func(ctx context.Context) error {
		// Another flight may have published it in the meantime.
		if ok, _ := utils.FileExists(path); ok {
			return nil
		}

		key := store.ObjectKey(id.String())
		fetchErr := utils.WriteFileAtomic(path, c.tempPath(), func(w io.Writer) error {
			return c.store.GetToWriter(ctx, key, w)
		})
		c.metrics.StoreOp("get", fetchErr)
		if fetchErr != nil {
			return fmt.Errorf("failed to fetch %s: %w", key, fetchErr)
		}

		c.logger.Debug("Cached asset", "identity", id, "path", path)
		return nil
	})
	if err != nil {
		return "", err
	}

	return path, nil
}

// ResolveOptimized returns the path to serve for id. Formats without a
// transcoder, and files the codec cannot handle, are served from the raw
// tier and never get an optimized entry.
func (c *Cache) ResolveOptimized(ctx context.Context, id identity.Identity) (string, error) {
	path := c.OptimizedPath(id)

	exists, statErr := utils.FileExists(path)
	if statErr != nil {
		return "", statErr
	}
	if exists {
		c.metrics.CacheLookup(tierOptimized, true)
		return path, nil
	}

	rawPath, rawErr := c.ResolveRaw(ctx, id)
	if rawErr != nil {
		return "", rawErr
	}

	transcoder, ok := c.transcoders.Lookup(id.Extension())
	if !ok {
		return rawPath, nil
	}
	c.metrics.CacheLookup(tierOptimized, false)

	err := c.do(ctx, "opt/"+id.String(), func(ctx context.Context) error {
		if ok, _ := utils.FileExists(path); ok {
			return nil
		}
		return c.optimize(ctx, transcoder, rawPath, path)
	})

	switch {
	case err == nil:
		return path, nil
	case errors.Is(err, transcode.ErrCodec):
		c.logger.Warn("Cannot optimize asset, serving original", "identity", id, "error", err)
		return rawPath, nil
	default:
		return "", err
	}
}

func (c *Cache) optimize(ctx context.Context, transcoder transcode.Transcoder, rawPath, path string) (retErr error) {
	tmp := c.tempPath()
	defer func() {
		if rmErr := os.Remove(tmp); rmErr != nil && !os.IsNotExist(rmErr) {
			retErr = errors.Join(retErr, rmErr)
		}
	}()

	start := time.Now()
	transcodeErr := transcoder.Transcode(ctx, rawPath, tmp)
	if transcodeErr == nil {
		transcodeErr = syncFile(tmp)
	}
	if transcodeErr != nil {
		c.metrics.Transcode(transcoder.Format(), "error", time.Since(start))
		return transcodeErr
	}

	if renameErr := os.Rename(tmp, path); renameErr != nil {
		return fmt.Errorf("failed to publish %s: %w", path, renameErr)
	}

	c.metrics.Transcode(transcoder.Format(), "ok", time.Since(start))
	c.logger.Debug("Optimized asset", "format", transcoder.Format(), "path", path, "elapsed", time.Since(start))
	return nil
}

// Open resolves the file to serve for id and opens it.
func (c *Cache) Open(ctx context.Context, id identity.Identity) (*os.File, error) {
	path, err := c.ResolveOptimized(ctx, id)
	if err != nil {
		return nil, err
	}
	return os.Open(path)
}

func syncFile(path string) (retErr error) {
	file, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			retErr = errors.Join(retErr, closeErr)
		}
	}()
	return file.Sync()
}
