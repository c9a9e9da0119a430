package relay_test

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"github.com/q-controller/mediarelay/src/pkg/auth"
	"github.com/q-controller/mediarelay/src/pkg/cache"
	"github.com/q-controller/mediarelay/src/pkg/identity"
	"github.com/q-controller/mediarelay/src/pkg/logging"
	"github.com/q-controller/mediarelay/src/pkg/relay"
	"github.com/q-controller/mediarelay/src/pkg/store"
	"github.com/q-controller/mediarelay/src/pkg/transcode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	baseURL = "http://relay.test"
	secret  = "top-secret"
)

type fixture struct {
	server  *httptest.Server
	service *relay.Service
	cache   *cache.Cache
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// failingStore accepts uploads and fails every read the way an
// unreachable bucket does.
type failingStore struct{}

func (failingStore) Put(_ context.Context, _ string, r io.Reader, _ int64) error {
	_, err := io.Copy(io.Discard, r)
	return err
}

func (failingStore) GetToWriter(context.Context, string, io.Writer) error {
	return errors.New("access denied")
}

func newFixture(t *testing.T, maxUploadBytes int64) *fixture {
	t.Helper()
	st, err := store.NewLocalStore(filepath.Join(t.TempDir(), "store"))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = st.Close()
	})
	return newFixtureWithStore(t, st, maxUploadBytes, nil)
}

// newFixtureWithStore serves the relay over st. When logs is set, request
// loggers write there at the info level.
func newFixtureWithStore(t *testing.T, st store.Store, maxUploadBytes int64, logs io.Writer) *fixture {
	t.Helper()
	cacheRoot := filepath.Join(t.TempDir(), "cache")
	c, err := cache.New(cacheRoot, st, transcode.DefaultRegistry(transcode.Native{}))
	require.NoError(t, err)

	svc, err := relay.NewService(st, c, baseURL, filepath.Join(cacheRoot, cache.TempDir), nil)
	require.NoError(t, err)

	verifier, err := auth.NewStatic(secret)
	require.NoError(t, err)

	h, err := relay.CreateHandler(svc, verifier, maxUploadBytes)
	require.NoError(t, err)

	mux := runtime.NewServeMux()
	require.NoError(t, h.Register(mux))

	var handler http.Handler = mux
	if logs != nil {
		logger := slog.New(slog.NewTextHandler(logs, &slog.HandlerOptions{Level: slog.LevelInfo}))
		handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			mux.ServeHTTP(w, r.WithContext(logging.WithLogger(r.Context(), logger)))
		})
	}

	server := httptest.NewServer(logging.Middleware(handler))
	t.Cleanup(server.Close)

	return &fixture{server: server, service: svc, cache: c}
}

func multipartBody(t *testing.T, filename string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("note", "ignored"))
	if filename != "" {
		part, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func (f *fixture) upload(t *testing.T, credential, filename string, data []byte) (int, string) {
	t.Helper()
	body, contentType := multipartBody(t, filename, data)
	req, err := http.NewRequest(http.MethodPost, f.server.URL+relay.UploadPath, body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", contentType)
	if credential != "" {
		req.Header.Set("Authorization", credential)
	}
	return do(t, req)
}

func do(t *testing.T, req *http.Request) (int, string) {
	t.Helper()
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(data)
}

func get(t *testing.T, url string) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = resp.Body.Close()
	})
	return resp
}

func TestUploadDownloadFlow(t *testing.T) {
	f := newFixture(t, 0)
	payload := []byte("0123456789")

	code, body := f.upload(t, "", "photo.jpg", payload)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "Invalid auth", body)

	code, body = f.upload(t, "wrong", "photo.jpg", payload)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, body = f.upload(t, secret, "photo.jpg", payload)
	require.Equal(t, http.StatusOK, code)
	id := identity.Digest(payload) + ".jpg"
	assert.Equal(t, baseURL+"/i/"+id, body)

	// The same bytes under another name map to the same identity.
	code, again := f.upload(t, secret, "other.jpg", payload)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, body, again)

	resp := get(t, f.server.URL+"/i/"+id)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/jpeg", resp.Header.Get("Content-Type"))
	assert.Equal(t, "public, max-age=31536000, immutable", resp.Header.Get("Cache-Control"))
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, payload, data)
}

func TestUploadKeepsExtensionVerbatim(t *testing.T) {
	f := newFixture(t, 0)
	payload := []byte("not really a png")

	code, body := f.upload(t, secret, "dir/Image.PNG", payload)
	require.Equal(t, http.StatusOK, code)
	id := identity.Digest(payload) + ".PNG"
	assert.Equal(t, baseURL+"/i/"+id, body)

	resp := get(t, f.server.URL+"/i/"+id)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
}

func TestUploadRejectsMissingExtension(t *testing.T) {
	f := newFixture(t, 0)

	code, _ := f.upload(t, secret, "README", []byte("data"))
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = f.upload(t, secret, "archive.tar-gz", []byte("data"))
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestUploadWithoutFilePart(t *testing.T) {
	f := newFixture(t, 0)

	code, body := f.upload(t, secret, "", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "OK", body)
}

func TestUploadTooLarge(t *testing.T) {
	f := newFixture(t, 512)

	code, body := f.upload(t, secret, "big.bin", bytes.Repeat([]byte("x"), 4096))
	assert.Equal(t, http.StatusRequestEntityTooLarge, code)
	assert.Equal(t, "Payload too large", body)
}

func TestDownloadNotFound(t *testing.T) {
	f := newFixture(t, 0)

	resp := get(t, f.server.URL+"/i/"+identity.Digest([]byte("never uploaded"))+".jpg")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "Not found.", string(data))
}

func TestDownloadStoreFailureIsLogged(t *testing.T) {
	var logs syncBuffer
	f := newFixtureWithStore(t, failingStore{}, 0, &logs)

	resp := get(t, f.server.URL+"/i/"+identity.Digest([]byte("unreachable"))+".jpg")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "Not found.", string(data))

	assert.Contains(t, logs.String(), "level=ERROR")
	assert.Contains(t, logs.String(), "access denied")
}

func TestDownloadMissingAssetIsQuiet(t *testing.T) {
	st, err := store.NewLocalStore(filepath.Join(t.TempDir(), "store"))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = st.Close()
	})
	var logs syncBuffer
	f := newFixtureWithStore(t, st, 0, &logs)

	resp := get(t, f.server.URL+"/i/"+identity.Digest([]byte("never uploaded"))+".jpg")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp = get(t, f.server.URL+"/i/...")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	assert.NotContains(t, logs.String(), "level=ERROR")
}

func TestDownloadHead(t *testing.T) {
	f := newFixture(t, 0)
	payload := []byte("head me")
	code, _ := f.upload(t, secret, "notes.txt", payload)
	require.Equal(t, http.StatusOK, code)

	req, err := http.NewRequest(http.MethodHead, f.server.URL+"/i/"+identity.Digest(payload)+".txt", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/plain", resp.Header.Get("Content-Type"))
	assert.Equal(t, int64(len(payload)), resp.ContentLength)
}

func TestDownloadOptimizedJPEG(t *testing.T) {
	f := newFixture(t, 0)

	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	for x := range 64 {
		for y := range 48 {
			img.Set(x, y, color.RGBA{R: uint8(x * 4), G: uint8(y * 5), B: 90, A: 255})
		}
	}
	var original bytes.Buffer
	require.NoError(t, jpeg.Encode(&original, img, &jpeg.Options{Quality: 100}))

	code, _ := f.upload(t, secret, "gradient.jpeg", original.Bytes())
	require.Equal(t, http.StatusOK, code)
	id := identity.New(identity.Digest(original.Bytes()), "jpeg")

	resp := get(t, f.server.URL+"/i/"+id.String())
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/jpeg", resp.Header.Get("Content-Type"))

	decoded, err := jpeg.Decode(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, img.Bounds(), decoded.Bounds())
	assert.FileExists(t, f.cache.OptimizedPath(id))
}

func TestServiceOpenSanitizesName(t *testing.T) {
	f := newFixture(t, 0)
	payload := []byte("sanitized")
	id, err := f.service.Upload(context.Background(), "a.gif", bytes.NewReader(payload))
	require.NoError(t, err)

	asset, err := f.service.Open(context.Background(), "../../"+id.String())
	require.NoError(t, err)
	defer asset.Close()
	assert.Equal(t, id.String(), asset.Name)
	assert.Equal(t, "image/gif", asset.ContentType)

	_, err = f.service.Open(context.Background(), "/../..")
	require.ErrorIs(t, err, relay.ErrNotFound)
	_, err = f.service.Open(context.Background(), "???")
	require.ErrorIs(t, err, relay.ErrNotFound)
}

func TestClientRoundTrip(t *testing.T) {
	f := newFixture(t, 0)

	_, err := relay.NewClient("not a url", secret, nil)
	require.Error(t, err)

	cli, err := relay.NewClient(f.server.URL, secret, f.server.Client())
	require.NoError(t, err)

	payload := []byte("client payload")
	url, err := cli.Upload(context.Background(), "/tmp/clip.mp4", bytes.NewReader(payload))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(url, baseURL+"/i/"))

	var out bytes.Buffer
	require.NoError(t, cli.Download(context.Background(), path.Base(url), &out))
	assert.Equal(t, payload, out.Bytes())

	bad, err := relay.NewClient(f.server.URL, "nope", f.server.Client())
	require.NoError(t, err)
	_, err = bad.Upload(context.Background(), "clip.mp4", bytes.NewReader(payload))
	require.ErrorContains(t, err, "Invalid auth")
}

func TestOpenAPISpec(t *testing.T) {
	assert.Empty(t, relay.GetOpenAPISpec("", "/i", "Relay"))
	doc := relay.GetOpenAPISpec("/upload", "/i/", "Relay")
	assert.Contains(t, doc, "/upload:")
	assert.Contains(t, doc, "/i/{filename}:")
}
