package transcode

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

const defaultCjpeg = "cjpeg"

// MozJPEG runs mozjpeg's cjpeg in a child process, which reads JPEG input
// directly. A crash in the codec only takes down the child.
//
// cjpeg has no switch for trellis quantization across scans, so
// TrellisMultiScan only controls whether trellis quantization runs at all.
type MozJPEG struct {
	Path string
}

func (m *MozJPEG) Name() string {
	return CodecMozJPEG
}

func (m *MozJPEG) args(in, out string, opts Options) []string {
	args := []string{"-quality", strconv.Itoa(opts.Quality)}
	if opts.Progressive {
		args = append(args, "-progressive")
	} else {
		args = append(args, "-baseline")
	}
	if opts.OptimizeScans {
		args = append(args, "-optimize")
	} else {
		args = append(args, "-fastcrush")
	}
	if !opts.TrellisMultiScan {
		args = append(args, "-notrellis")
	}
	return append(args, "-outfile", out, in)
}

func (m *MozJPEG) Encode(ctx context.Context, in, out string, opts Options) error {
	path := m.Path
	if path == "" {
		path = defaultCjpeg
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, path, m.args(in, out, opts)...)
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	if runErr == nil {
		return nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) {
		// ExitCode is -1 when the process was killed by a signal.
		if exitErr.ExitCode() == -1 {
			return &AbortError{Codec: m.Name(), Cause: exitErr.String()}
		}
		return fmt.Errorf("cjpeg exited with %d: %s", exitErr.ExitCode(), strings.TrimSpace(stderr.String()))
	}
	return runErr
}
