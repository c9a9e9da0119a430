// Package metadata scrubs descriptive EXIF metadata from derived images.
//
// A derived image keeps whatever tags its encoder wrote, loses any GPS
// information, and receives exactly one field from the original: the
// orientation, so that viewers keep rotating it the same way.
package metadata

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"

	exif "github.com/dsoprea/go-exif/v3"
	exifcommon "github.com/dsoprea/go-exif/v3/common"
	jpegstructure "github.com/dsoprea/go-jpeg-image-structure/v2"
	"github.com/google/uuid"
	"github.com/q-controller/mediarelay/src/pkg/utils"
)

const (
	OrientationTagID uint16 = 0x0112
	orientationName         = "Orientation"
)

// ReadError reports a failure to read or parse metadata.
type ReadError struct {
	Path string
	Err  error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("failed to read metadata of %s: %v", e.Path, e.Err)
}

func (e *ReadError) Unwrap() error {
	return e.Err
}

// SaveError reports a failure to update or persist metadata.
type SaveError struct {
	Path string
	Err  error
}

func (e *SaveError) Error() string {
	return fmt.Sprintf("failed to save metadata of %s: %v", e.Path, e.Err)
}

func (e *SaveError) Unwrap() error {
	return e.Err
}

// Sanitize strips GPS data from the JPEG at derived and copies the
// orientation of original onto it. The file at derived is replaced
// atomically.
func Sanitize(original, derived string) error {
	orientation, found, readErr := ReadOrientation(original)
	if readErr != nil {
		return &ReadError{Path: original, Err: readErr}
	}

	segments, rootIb, existing, openErr := openForWrite(derived)
	if openErr != nil {
		return &ReadError{Path: derived, Err: openErr}
	}

	if !existing && !found {
		// No metadata on the derived file and nothing to copy onto it.
		return nil
	}

	if _, err := rootIb.DeleteAll(exifcommon.IfdGpsInfoStandardIfdIdentity.TagId()); err != nil {
		return &SaveError{Path: derived, Err: fmt.Errorf("failed to strip gps: %w", err)}
	}

	if found {
		if err := rootIb.SetStandardWithName(orientationName, []uint16{orientation}); err != nil {
			return &SaveError{Path: derived, Err: fmt.Errorf("failed to set orientation: %w", err)}
		}
	} else if _, err := rootIb.DeleteAll(OrientationTagID); err != nil {
		return &SaveError{Path: derived, Err: fmt.Errorf("failed to clear orientation: %w", err)}
	}

	if err := segments.SetExif(rootIb); err != nil {
		return &SaveError{Path: derived, Err: fmt.Errorf("failed to encode exif: %w", err)}
	}

	tmpPath := filepath.Join(filepath.Dir(derived), "."+filepath.Base(derived)+"."+uuid.NewString())
	if err := utils.WriteFileAtomic(derived, tmpPath, func(w io.Writer) error {
		return segments.Write(w)
	}); err != nil {
		return &SaveError{Path: derived, Err: err}
	}

	return nil
}

// ReadOrientation returns the IFD0 orientation of the image at path. found
// is false when the image has no EXIF block or no orientation tag.
func ReadOrientation(path string) (value uint16, found bool, err error) {
	rawExif, searchErr := exif.SearchFileAndExtractExif(path)
	if searchErr != nil {
		if errors.Is(searchErr, exif.ErrNoExif) {
			return 0, false, nil
		}
		return 0, false, searchErr
	}

	entries, _, flatErr := exif.GetFlatExifData(rawExif, nil)
	if flatErr != nil {
		return 0, false, flatErr
	}

	rootPath := exifcommon.IfdStandardIfdIdentity.UnindexedString()
	for _, entry := range entries {
		if entry.TagId != OrientationTagID || entry.IfdPath != rootPath {
			continue
		}
		values, ok := entry.Value.([]uint16)
		if !ok || len(values) == 0 {
			return 0, false, fmt.Errorf("unexpected orientation value %v", entry.Value)
		}
		return values[0], true, nil
	}

	return 0, false, nil
}

func openForWrite(path string) (*jpegstructure.SegmentList, *exif.IfdBuilder, bool, error) {
	parser := jpegstructure.NewJpegMediaParser()
	mc, parseErr := parser.ParseFile(path)
	if parseErr != nil {
		return nil, nil, false, parseErr
	}

	segments, ok := mc.(*jpegstructure.SegmentList)
	if !ok {
		return nil, nil, false, fmt.Errorf("unexpected media context %T", mc)
	}

	if _, _, findErr := segments.FindExif(); findErr != nil {
		rootIb, builderErr := NewRootBuilder()
		if builderErr != nil {
			return nil, nil, false, builderErr
		}
		return segments, rootIb, false, nil
	}

	rootIb, builderErr := segments.ConstructExifBuilder()
	if builderErr != nil {
		return nil, nil, false, builderErr
	}
	return segments, rootIb, true, nil
}

// NewRootBuilder returns an empty IFD0 builder with the standard tag set.
func NewRootBuilder() (*exif.IfdBuilder, error) {
	mapping, mappingErr := exifcommon.NewIfdMappingWithStandard()
	if mappingErr != nil {
		return nil, mappingErr
	}
	return exif.NewIfdBuilder(mapping, exif.NewTagIndex(), exifcommon.IfdStandardIfdIdentity, exifcommon.EncodeDefaultByteOrder), nil
}
