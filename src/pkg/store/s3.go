package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/q-controller/mediarelay/src/pkg/mimetype"
)

const defaultS3Endpoint = "s3.amazonaws.com"

type S3Config struct {
	Bucket   string
	Region   string
	Endpoint string
	Insecure bool
}

// S3Store keeps objects in an S3 compatible bucket.
type S3Store struct {
	client *minio.Client
	bucket string
}

// NewS3Store connects to the bucket described by cfg. Credentials are taken
// from the environment, the shared credentials file or instance metadata, in
// that order.
func NewS3Store(cfg S3Config) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3 bucket is not set")
	}
	if cfg.Region == "" {
		return nil, errors.New("s3 region is not set")
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = defaultS3Endpoint
	}

	creds := credentials.NewChainCredentials([]credentials.Provider{
		&credentials.EnvAWS{},
		&credentials.FileAWSCredentials{},
		&credentials.IAM{
			Client: &http.Client{
				Transport: http.DefaultTransport,
			},
		},
	})

	client, clientErr := minio.New(endpoint, &minio.Options{
		Creds:  creds,
		Secure: !cfg.Insecure,
		Region: cfg.Region,
	})
	if clientErr != nil {
		return nil, fmt.Errorf("failed to create s3 client: %w", clientErr)
	}

	return &S3Store{
		client: client,
		bucket: cfg.Bucket,
	}, nil
}

func (s *S3Store) Put(ctx context.Context, key string, r io.Reader, size int64) error {
	info, err := s.client.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{
		ContentType: mimetype.ForName(key),
	})
	if err != nil {
		return fmt.Errorf("failed to put %q: %w", key, err)
	}
	if size >= 0 && info.Size != size {
		return fmt.Errorf("put %q: stored %d bytes, expected %d", key, info.Size, size)
	}
	return nil
}

func (s *S3Store) GetToWriter(ctx context.Context, key string, w io.Writer) (retErr error) {
	object, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return s.translate(key, err)
	}
	defer func() {
		if closeErr := object.Close(); closeErr != nil {
			retErr = errors.Join(retErr, closeErr)
		}
	}()

	// GetObject is lazy; a missing key only shows up on the first read.
	if _, copyErr := io.Copy(w, object); copyErr != nil {
		return s.translate(key, copyErr)
	}
	return nil
}

func (s *S3Store) translate(key string, err error) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NotFound":
		return fmt.Errorf("object %q: %w", key, ErrNotFound)
	}
	return fmt.Errorf("failed to get %q: %w", key, err)
}
