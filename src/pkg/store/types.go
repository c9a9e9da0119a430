package store

import (
	"context"
	"errors"
	"io"
	"time"
)

// KeyPrefix namespaces every asset in the bucket.
const KeyPrefix = "images/"

var ErrNotFound = errors.New("object not found")

// Store is the durable bucket behind the local cache. Implementations make a
// single attempt per call and report a missing key with ErrNotFound.
type Store interface {
	// Put stores r under key. size is the number of bytes r will yield, or
	// -1 when unknown.
	Put(ctx context.Context, key string, r io.Reader, size int64) error
	// GetToWriter streams the object stored under key into w.
	GetToWriter(ctx context.Context, key string, w io.Writer) error
}

// ObjectKey returns the bucket key of an asset name.
func ObjectKey(name string) string {
	return KeyPrefix + name
}

type ObjectMetadata struct {
	Key        string    `json:"key"`
	Hash       string    `json:"hash"`
	Size       int64     `json:"size"`
	Checksum   string    `json:"checksum"`
	UploadedAt time.Time `json:"uploaded_at"`
}
