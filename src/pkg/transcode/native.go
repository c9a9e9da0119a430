package transcode

import (
	"context"
	"errors"
	"fmt"
	"image/jpeg"
	"os"
)

// Native re-encodes with the standard library. image/jpeg only writes
// baseline files, so Progressive, OptimizeScans and TrellisMultiScan are
// not honored.
type Native struct{}

func (Native) Name() string {
	return CodecNative
}

func (Native) Encode(ctx context.Context, in, out string, opts Options) (retErr error) {
	src, openErr := os.Open(in)
	if openErr != nil {
		return openErr
	}
	defer func() {
		if closeErr := src.Close(); closeErr != nil {
			retErr = errors.Join(retErr, closeErr)
		}
	}()

	img, decodeErr := jpeg.Decode(src)
	if decodeErr != nil {
		return fmt.Errorf("failed to decode %s: %w", in, decodeErr)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	dst, createErr := os.Create(out)
	if createErr != nil {
		return createErr
	}
	defer func() {
		if closeErr := dst.Close(); closeErr != nil {
			retErr = errors.Join(retErr, closeErr)
		}
	}()

	if encodeErr := jpeg.Encode(dst, img, &jpeg.Options{Quality: opts.Quality}); encodeErr != nil {
		return fmt.Errorf("failed to encode %s: %w", out, encodeErr)
	}
	return nil
}
