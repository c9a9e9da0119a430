package transcode

import (
	"context"
	"fmt"

	"github.com/q-controller/mediarelay/src/pkg/metadata"
)

// JPEG re-encodes baseline and progressive JPEGs with Policy and scrubs the
// result's metadata.
type JPEG struct {
	codec    Codec
	sanitize func(original, derived string) error
}

func NewJPEG(codec Codec) *JPEG {
	return &JPEG{
		codec:    codec,
		sanitize: metadata.Sanitize,
	}
}

func (j *JPEG) Format() string {
	return "jpeg"
}

// Transcode encodes in to out inside Guard. The metadata step only runs
// once the encoder succeeded.
func (j *JPEG) Transcode(ctx context.Context, in, out string) error {
	if err := Guard(j.codec.Name(), func() error {
		return j.codec.Encode(ctx, in, out, Policy)
	}); err != nil {
		return err
	}

	if err := j.runSanitizer(in, out); err != nil {
		return fmt.Errorf("failed to sanitize %s: %w", out, err)
	}
	return nil
}

func (j *JPEG) runSanitizer(in, out string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrSanitizerAbort, r)
		}
	}()
	return j.sanitize(in, out)
}
