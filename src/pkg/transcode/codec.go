package transcode

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
)

// Options are the encoder settings applied to every optimized rendition.
type Options struct {
	Quality          int
	Progressive      bool
	OptimizeScans    bool
	TrellisMultiScan bool
}

// Policy is fixed; it is not configurable per request.
var Policy = Options{
	Quality:          80,
	Progressive:      true,
	OptimizeScans:    true,
	TrellisMultiScan: true,
}

// Codec decodes the JPEG at in and writes a re-encoded JPEG to out.
type Codec interface {
	Name() string
	Encode(ctx context.Context, in, out string, opts Options) error
}

const (
	CodecAuto    = "auto"
	CodecMozJPEG = "mozjpeg"
	CodecNative  = "native"
)

// NewCodec selects a codec by name. auto prefers mozjpeg when its cjpeg
// binary can be found and falls back to the native encoder.
func NewCodec(kind, cjpegPath string) (Codec, error) {
	if cjpegPath == "" {
		cjpegPath = defaultCjpeg
	}

	switch kind {
	case CodecNative:
		return Native{}, nil
	case CodecMozJPEG:
		path, err := exec.LookPath(cjpegPath)
		if err != nil {
			return nil, fmt.Errorf("mozjpeg codec requested but %q is unavailable: %w", cjpegPath, err)
		}
		return &MozJPEG{Path: path}, nil
	case CodecAuto, "":
		if path, err := exec.LookPath(cjpegPath); err == nil {
			return &MozJPEG{Path: path}, nil
		}
		slog.Warn("cjpeg not found, JPEGs will be re-encoded as baseline without scan optimization", "cjpeg", cjpegPath)
		return Native{}, nil
	}
	return nil, fmt.Errorf("%q: %w", kind, ErrUnsupported)
}
