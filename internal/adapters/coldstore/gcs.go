package coldstore

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/eraguess/eraguess/pkg/metrics"
)

// GCSArchive implements Archive on a Google Cloud Storage bucket.
type GCSArchive struct {
	client *storage.Client
	bucket string
}

// GCSOption applies a configuration option to the GCS client setup.
type GCSOption func(*gcsConfig)

type gcsConfig struct {
	credentialsFile string
}

// WithCredentialsFile authenticates with a service account key file instead
// of application default credentials.
func WithCredentialsFile(path string) GCSOption {
	return func(c *gcsConfig) {
		if path != "" {
			c.credentialsFile = path
		}
	}
}

// NewGCSArchive creates a GCS-backed archive for bucket.
func NewGCSArchive(ctx context.Context, bucket string, opts ...GCSOption) (*GCSArchive, error) {
	var cfg gcsConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	var clientOpts []option.ClientOption
	if cfg.credentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(cfg.credentialsFile))
	}
	client, err := storage.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create GCS client: %w", err)
	}
	return &GCSArchive{client: client, bucket: bucket}, nil
}

// Put implements Archive.Put with a create-only precondition. A precondition
// failure means another writer already created the key; it is reported as
// ErrObjectExists because the loser's body was not stored.
func (a *GCSArchive) Put(ctx context.Context, key string, body []byte) error {
	obj := a.client.Bucket(a.bucket).Object(key).If(storage.Conditions{DoesNotExist: true})
	w := obj.NewWriter(ctx)
	w.ContentType = "application/x-ndjson"

	if _, err := w.Write(body); err != nil {
		_ = w.Close()
		metrics.RecordArchivePutError()
		return fmt.Errorf("%w: write %s: %w", ErrPutFailed, key, err)
	}
	if err := w.Close(); err != nil {
		if isPreconditionFailed(err) {
			return fmt.Errorf("%w: %s", ErrObjectExists, key)
		}
		metrics.RecordArchivePutError()
		return fmt.Errorf("%w: close %s: %w", ErrPutFailed, key, err)
	}
	metrics.RecordArchiveBatchBytes(len(body))
	return nil
}

// Close releases the underlying client.
func (a *GCSArchive) Close() error {
	return a.client.Close()
}

func isPreconditionFailed(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusPreconditionFailed
	}
	return false
}
