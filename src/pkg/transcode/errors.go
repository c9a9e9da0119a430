package transcode

import (
	"errors"
	"fmt"
)

var (
	// ErrCodec marks every failure that happened inside a codec, including
	// aborts.
	ErrCodec = errors.New("codec failed")
	// ErrCodecAbort marks a codec that terminated abnormally instead of
	// returning an error.
	ErrCodecAbort = errors.New("codec aborted")
	// ErrSanitizerAbort marks a metadata step that panicked. It is not a
	// codec failure, so the original is not served in its place.
	ErrSanitizerAbort = errors.New("metadata sanitizer aborted")
	// ErrUnsupported is returned for a codec kind this build does not know.
	ErrUnsupported = errors.New("unsupported codec")
)

// AbortError describes an abnormal codec termination: a recovered panic or
// a helper process killed by a signal.
type AbortError struct {
	Codec string
	Cause any
	Stack []byte
}

func (e *AbortError) Error() string {
	return fmt.Sprintf("%s aborted: %v", e.Codec, e.Cause)
}

func (e *AbortError) Is(target error) bool {
	return target == ErrCodecAbort || target == ErrCodec
}
