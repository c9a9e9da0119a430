package utils_test

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/q-controller/mediarelay/src/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeFilename(t *testing.T) {
	tests := map[string]string{
		"../../etc/passwd":         "passwd",
		"a/b/c.jpg":                "c.jpg",
		"..hidden.png":             "hidden.png",
		"%$#@!*&^":                 "",
		`..\..\windows\system.ini`: "system.ini",
		"abc.jpg":                  "abc.jpg",
		"name with spaces.JPG":     "namewithspaces.JPG",
		"dir/":                     "",
		"ünïcødé-ok_1.tar.gz":      "ncd-ok_1.tar.gz",
		"...":                      "",
		"a/..":                     "",
	}

	for input, want := range tests {
		t.Run(input, func(t *testing.T) {
			assert.Equal(t, want, utils.SanitizeFilename(input))
		})
	}
}

func TestWriteFileAtomicPublishes(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "out")
	tmp := filepath.Join(dir, "out.tmp")

	err := utils.WriteFileAtomic(dst, tmp, func(w io.Writer) error {
		_, err := io.Copy(w, strings.NewReader("payload"))
		return err
	})
	require.NoError(t, err)

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))

	_, statErr := os.Stat(tmp)
	assert.True(t, os.IsNotExist(statErr))
}

func TestWriteFileAtomicDiscardsOnFailure(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "out")
	tmp := filepath.Join(dir, "out.tmp")
	boom := errors.New("boom")

	err := utils.WriteFileAtomic(dst, tmp, func(w io.Writer) error {
		_, _ = w.Write([]byte("half"))
		return boom
	})
	require.ErrorIs(t, err, boom)

	exists, err := utils.FileExists(dst)
	require.NoError(t, err)
	assert.False(t, exists)

	exists, err = utils.FileExists(tmp)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestJoinURL(t *testing.T) {
	assert.Equal(t, "https://img.example.com/i/abc.jpg", utils.JoinURL("https://img.example.com/", "i", "abc.jpg"))
	assert.Equal(t, "http://localhost:3000/i/x.png", utils.JoinURL("http://localhost:3000", "/i/", "x.png"))
}

func TestIsHTTP(t *testing.T) {
	assert.True(t, utils.IsHTTP("https://img.example.com"))
	assert.False(t, utils.IsHTTP("ftp://img.example.com"))
	assert.False(t, utils.IsHTTP("img.example.com"))
}
