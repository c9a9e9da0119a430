package identity

import (
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"strings"

	"github.com/zeebo/blake3"
)

const (
	// DigestSize is the length in bytes of an asset digest.
	DigestSize = 32

	maxExtensionLength = 16
)

var (
	ErrInvalidExtension = errors.New("invalid file extension")
	ErrInvalidName      = errors.New("invalid identity")
)

// Identity is the content-derived name of an asset: <hex-digest>.<extension>.
type Identity string

// Digest returns the lowercase hex BLAKE3-256 digest of data.
func Digest(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Derive hashes everything read from r and names it after the extension of
// filename, which is kept verbatim. The extension is checked before r is
// read. It also returns the number of bytes consumed.
func Derive(r io.Reader, filename string) (Identity, int64, error) {
	ext, extErr := ExtensionOf(filename)
	if extErr != nil {
		return "", 0, extErr
	}

	h := NewHasher()
	if _, copyErr := io.Copy(h, r); copyErr != nil {
		return "", h.Size(), fmt.Errorf("failed to read content: %w", copyErr)
	}
	return New(h.Digest(), ext), h.Size(), nil
}

// New joins a digest and an extension.
func New(digest, ext string) Identity {
	return Identity(digest + "." + ext)
}

func (id Identity) String() string {
	return string(id)
}

// Digest returns the part of the identity before the extension.
func (id Identity) Digest() string {
	s := string(id)
	if idx := strings.LastIndexByte(s, '.'); idx > 0 {
		return s[:idx]
	}
	return s
}

// Extension returns the extension as stored, without the dot.
func (id Identity) Extension() string {
	s := string(id)
	if idx := strings.LastIndexByte(s, '.'); idx > 0 {
		return s[idx+1:]
	}
	return ""
}

// Parse turns an already sanitized download name into an Identity.
func Parse(name string) (Identity, error) {
	if name == "" {
		return "", fmt.Errorf("empty name: %w", ErrInvalidName)
	}
	return Identity(name), nil
}

// ExtensionOf extracts the extension of the final path segment of filename
// and checks it against the allow-list: 1 to 16 ASCII letters or digits.
func ExtensionOf(filename string) (string, error) {
	base := filename
	if idx := strings.LastIndexAny(base, `/\`); idx >= 0 {
		base = base[idx+1:]
	}

	idx := strings.LastIndexByte(base, '.')
	if idx <= 0 {
		return "", fmt.Errorf("%q has no extension: %w", filename, ErrInvalidExtension)
	}

	ext := base[idx+1:]
	if ext == "" || len(ext) > maxExtensionLength {
		return "", fmt.Errorf("%q: %w", ext, ErrInvalidExtension)
	}
	for _, r := range ext {
		if !isExtensionChar(r) {
			return "", fmt.Errorf("invalid character %q in %q: %w", r, ext, ErrInvalidExtension)
		}
	}
	return ext, nil
}

func isExtensionChar(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

// Hasher computes the digest of a stream. It is an io.Writer so it can sit
// behind an io.MultiWriter while an upload is spooled to disk.
type Hasher struct {
	h hash.Hash
	n int64
}

func NewHasher() *Hasher {
	return &Hasher{h: blake3.New()}
}

func (h *Hasher) Write(p []byte) (int, error) {
	n, err := h.h.Write(p)
	h.n += int64(n)
	return n, err
}

// Size returns the number of bytes written so far.
func (h *Hasher) Size() int64 {
	return h.n
}

// Digest returns the lowercase hex digest of everything written so far.
func (h *Hasher) Digest() string {
	return hex.EncodeToString(h.h.Sum(nil))
}
