package auth_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/q-controller/mediarelay/src/pkg/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticSecret(t *testing.T) {
	_, err := auth.NewStatic("")
	require.Error(t, err)

	s, err := auth.NewStatic("s3cret")
	require.NoError(t, err)

	assert.True(t, s.Check("s3cret"))
	assert.False(t, s.Check(""))
	assert.False(t, s.Check("s3cre"))
	assert.False(t, s.Check("Bearer s3cret"))
	require.ErrorIs(t, s.Verify("wrong"), auth.ErrUnauthorized)
	require.NoError(t, s.Verify("s3cret"))

	// Static secrets have nothing to watch.
	require.NoError(t, s.Watch(context.Background()))
}

func TestFileSecret(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secret")
	require.NoError(t, os.WriteFile(path, []byte("  from-file\n"), 0600))

	s, err := auth.NewFromFile(path)
	require.NoError(t, err)
	assert.True(t, s.Check("from-file"))

	_, err = auth.NewFromFile(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)

	empty := filepath.Join(t.TempDir(), "empty")
	require.NoError(t, os.WriteFile(empty, []byte("\n"), 0600))
	_, err = auth.NewFromFile(empty)
	require.Error(t, err)
}

func TestFileSecretReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secret")
	require.NoError(t, os.WriteFile(path, []byte("first"), 0600))

	s, err := auth.NewFromFile(path)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- s.Watch(ctx)
	}()

	require.Eventually(t, func() bool {
		if err := os.WriteFile(path, []byte("second"), 0600); err != nil {
			return false
		}
		return s.Check("second")
	}, 5*time.Second, 20*time.Millisecond)
	assert.False(t, s.Check("first"))

	cancel()
	require.NoError(t, <-done)
}
