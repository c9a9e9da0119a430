package utils

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// FileExists reports whether path names an existing regular file.
func FileExists(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return info.Mode().IsRegular(), nil
}

// WriteFileAtomic lets fill write into tmpPath and renames the result onto
// dst once fill returned and the data reached the disk. On any failure the
// temp file is removed and dst is left untouched. tmpPath must be on the same
// filesystem as dst.
func WriteFileAtomic(dst, tmpPath string, fill func(w io.Writer) error) (retErr error) {
	file, fileErr := os.OpenFile(tmpPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if fileErr != nil {
		return fmt.Errorf("failed to create temp file: %w", fileErr)
	}

	closed := false
	defer func() {
		if !closed {
			if closeErr := file.Close(); closeErr != nil {
				retErr = errors.Join(retErr, closeErr)
			}
		}
		if retErr != nil {
			if rmErr := os.Remove(tmpPath); rmErr != nil && !os.IsNotExist(rmErr) {
				retErr = errors.Join(retErr, rmErr)
			}
		}
	}()

	if fillErr := fill(file); fillErr != nil {
		return fillErr
	}

	if syncErr := file.Sync(); syncErr != nil {
		return fmt.Errorf("failed to sync %s: %w", tmpPath, syncErr)
	}

	closed = true
	if closeErr := file.Close(); closeErr != nil {
		return fmt.Errorf("failed to close %s: %w", tmpPath, closeErr)
	}

	if renameErr := os.Rename(tmpPath, dst); renameErr != nil {
		return fmt.Errorf("failed to publish %s: %w", dst, renameErr)
	}
	return nil
}

// SanitizeFilename reduces a client supplied name to something that is safe
// to use as a single path component: the last segment after splitting on '/'
// and '\', restricted to ASCII letters, digits, '-', '_' and '.', with
// leading dots removed. The result may be empty.
func SanitizeFilename(input string) string {
	name := input
	if idx := strings.LastIndexAny(name, `/\`); idx >= 0 {
		name = name[idx+1:]
	}

	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		if isFilenameChar(r) {
			b.WriteRune(r)
		}
	}

	return strings.TrimLeft(b.String(), ".")
}

func isFilenameChar(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') ||
		r == '-' || r == '_' || r == '.'
}
