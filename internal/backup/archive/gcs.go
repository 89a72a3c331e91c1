package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"pg-lifecycle/internal/config"
)

// GCSProvider implements Provider for Google Cloud Storage.
type GCSProvider struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewGCSProvider creates a new GCSProvider instance. Without an explicit
// credentials file the client falls back to application default credentials.
func NewGCSProvider(ctx context.Context, settings config.ArchiveSettings) (*GCSProvider, error) {
	if settings.Bucket == "" {
		return nil, fmt.Errorf("gcs archive requires a bucket")
	}

	var (
		client *storage.Client
		err    error
	)
	if settings.CredentialsFile != "" {
		client, err = storage.NewClient(ctx, option.WithCredentialsFile(settings.CredentialsFile))
	} else {
		client, err = storage.NewClient(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}

	return &GCSProvider{
		client: client,
		bucket: settings.Bucket,
		prefix: normalizePrefix(settings.Prefix),
	}, nil
}

// Put uploads the local file at filePath under key.
func (p *GCSProvider) Put(ctx context.Context, key, filePath string) error {
	f, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("failed to open file for upload: %w", err)
	}
	defer f.Close()

	w := p.client.Bucket(p.bucket).Object(p.prefix + key).NewWriter(ctx)
	if _, err := io.Copy(w, f); err != nil {
		w.Close()
		return fmt.Errorf("failed to upload %s to gs://%s: %w", key, p.bucket, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to finalize upload of %s: %w", key, err)
	}
	return nil
}

// List returns the archived objects under the configured prefix.
func (p *GCSProvider) List(ctx context.Context) ([]Object, error) {
	it := p.client.Bucket(p.bucket).Objects(ctx, &storage.Query{Prefix: p.prefix})

	var objects []Object
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list gs://%s/%s: %w", p.bucket, p.prefix, err)
		}
		objects = append(objects, Object{
			Key:      strings.TrimPrefix(attrs.Name, p.prefix),
			Size:     attrs.Size,
			Modified: attrs.Updated,
		})
	}
	return objects, nil
}

// Delete removes an archived object.
func (p *GCSProvider) Delete(ctx context.Context, key string) error {
	if err := p.client.Bucket(p.bucket).Object(p.prefix + key).Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete %s from gs://%s: %w", key, p.bucket, err)
	}
	return nil
}

// Close releases the underlying client.
func (p *GCSProvider) Close() error {
	return p.client.Close()
}
