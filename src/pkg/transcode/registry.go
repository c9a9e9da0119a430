package transcode

import (
	"context"
	"strings"
)

// Transcoder writes an optimized rendition of the file at in to out.
type Transcoder interface {
	Format() string
	Transcode(ctx context.Context, in, out string) error
}

// Registry maps lower-case extensions to transcoders.
type Registry struct {
	byExt map[string]Transcoder
}

func NewRegistry() *Registry {
	return &Registry{byExt: make(map[string]Transcoder)}
}

func (r *Registry) Register(t Transcoder, exts ...string) {
	for _, ext := range exts {
		r.byExt[strings.ToLower(ext)] = t
	}
}

// Lookup returns the transcoder for ext, compared case-insensitively.
func (r *Registry) Lookup(ext string) (Transcoder, bool) {
	t, ok := r.byExt[strings.ToLower(ext)]
	return t, ok
}

// DefaultRegistry registers the JPEG transcoder.
func DefaultRegistry(codec Codec) *Registry {
	r := NewRegistry()
	r.Register(NewJPEG(codec), "jpg", "jpeg")
	return r
}
