package relay

import (
	"errors"
	"io"
	"net/http"

	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"github.com/q-controller/mediarelay/src/pkg/identity"
	"github.com/q-controller/mediarelay/src/pkg/logging"
	"github.com/q-controller/mediarelay/src/pkg/store"
)

const (
	UploadPath   = "/upload"
	DownloadPath = "/i/{filename}"

	cacheControl = "public, max-age=31536000, immutable"
)

// Verifier checks the credential sent with an upload.
type Verifier interface {
	Verify(header string) error
}

type Handler struct {
	service        *Service
	verifier       Verifier
	maxUploadBytes int64
}

func CreateHandler(svc *Service, verifier Verifier, maxUploadBytes int64) (*Handler, error) {
	if svc == nil || verifier == nil {
		return nil, errors.New("service and verifier are required")
	}
	return &Handler{
		service:        svc,
		verifier:       verifier,
		maxUploadBytes: maxUploadBytes,
	}, nil
}

// Register adds the upload and download routes to mux.
func (h *Handler) Register(mux *runtime.ServeMux) error {
	if err := mux.HandlePath(http.MethodPost, UploadPath, h.Upload); err != nil {
		return err
	}
	if err := mux.HandlePath(http.MethodGet, DownloadPath, h.Download); err != nil {
		return err
	}
	return mux.HandlePath(http.MethodHead, DownloadPath, h.Download)
}

func writeText(w http.ResponseWriter, code int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(code)
	_, _ = io.WriteString(w, body)
}

func (h *Handler) Upload(w http.ResponseWriter, r *http.Request, pathParams map[string]string) {
	logger := logging.FromContext(r.Context())

	if err := h.verifier.Verify(r.Header.Get("Authorization")); err != nil {
		writeText(w, http.StatusUnauthorized, "Invalid auth")
		return
	}

	if h.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	}

	reader, readerErr := r.MultipartReader()
	if readerErr != nil {
		writeText(w, http.StatusBadRequest, "Invalid multipart body")
		return
	}

	for {
		part, partErr := reader.NextPart()
		if errors.Is(partErr, io.EOF) {
			writeText(w, http.StatusOK, "OK")
			return
		}
		if partErr != nil {
			h.uploadFailed(w, r, partErr)
			return
		}

		filename := part.FileName()
		if filename == "" {
			if err := part.Close(); err != nil {
				logger.Warn("Failed to close multipart part", "error", err)
			}
			continue
		}

		id, uploadErr := h.service.Upload(r.Context(), filename, part)
		if err := part.Close(); err != nil {
			logger.Warn("Failed to close multipart part", "error", err)
		}
		if uploadErr != nil {
			h.uploadFailed(w, r, uploadErr)
			return
		}

		logger.Info("Uploaded asset", "identity", id, "filename", filename)
		writeText(w, http.StatusOK, h.service.URL(id))
		return
	}
}

func (h *Handler) uploadFailed(w http.ResponseWriter, r *http.Request, err error) {
	logger := logging.FromContext(r.Context())

	var tooLarge *http.MaxBytesError
	switch {
	case errors.Is(err, identity.ErrInvalidExtension):
		logger.Debug("Rejected upload", "error", err)
		writeText(w, http.StatusBadRequest, "Invalid file extension")
	case errors.As(err, &tooLarge):
		logger.Debug("Rejected upload", "limit", tooLarge.Limit)
		writeText(w, http.StatusRequestEntityTooLarge, "Payload too large")
	default:
		logger.Error("Failed to upload", "error", err)
		writeText(w, http.StatusInternalServerError, "Failed to upload")
	}
}

func (h *Handler) Download(w http.ResponseWriter, r *http.Request, pathParams map[string]string) {
	logger := logging.FromContext(r.Context())

	asset, openErr := h.service.Open(r.Context(), pathParams["filename"])
	if openErr != nil {
		if errors.Is(openErr, store.ErrNotFound) || errors.Is(openErr, identity.ErrInvalidName) {
			logger.Debug("Asset not found", "filename", pathParams["filename"], "error", openErr)
		} else {
			logger.Error("Failed to resolve asset", "filename", pathParams["filename"], "error", openErr)
		}
		writeText(w, http.StatusNotFound, "Not found.")
		return
	}
	defer func() {
		if err := asset.Close(); err != nil {
			logger.Warn("Failed to close file", "error", err)
		}
	}()

	w.Header().Set("Content-Type", asset.ContentType)
	w.Header().Set("Cache-Control", cacheControl)
	http.ServeContent(w, r, asset.Name, asset.ModTime, asset.File)
}
