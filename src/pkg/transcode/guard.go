package transcode

import (
	"errors"
	"fmt"
	"runtime/debug"
)

// Guard runs fn and converts a panic into an *AbortError. Errors returned by
// fn are wrapped with ErrCodec.
func Guard(codec string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &AbortError{
				Codec: codec,
				Cause: r,
				Stack: debug.Stack(),
			}
		}
	}()

	if fnErr := fn(); fnErr != nil {
		if errors.Is(fnErr, ErrCodec) {
			return fnErr
		}
		return fmt.Errorf("%w: %s: %w", ErrCodec, codec, fnErr)
	}
	return nil
}
